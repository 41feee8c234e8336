package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func testNotification() Notification {
	return Notification{
		Reason:         "reordered_timestamp",
		CandidateRate:  decimal.RequireFromString("1.000000001547125957863212448"),
		CandidateIndex: decimal.RequireFromString("1.03"),
		CandidateTS:    time.Unix(1_700_000_000, 0).UTC(),
		ObservedAt:     time.Unix(1_700_000_300, 0).UTC(),
		Channels:       []string{"telegram"},
	}
}

func TestTelegramNotifySendsMessage(t *testing.T) {
	var (
		gotPath string
		gotBody map[string]string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewTelegramNotifier("bot-token", "chat-42", server.URL, time.Second, zerolog.Nop())
	if err := n.Notify(context.Background(), testNotification()); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if gotPath != "/botbot-token/sendMessage" {
		t.Fatalf("path = %s", gotPath)
	}
	if gotBody["chat_id"] != "chat-42" {
		t.Fatalf("chat_id = %s", gotBody["chat_id"])
	}
	text := gotBody["text"]
	for _, want := range []string{"reordered_timestamp", "1.03", "2023-11-14T22:13:20Z"} {
		if !strings.Contains(text, want) {
			t.Fatalf("message %q missing %q", text, want)
		}
	}
}

func TestTelegramNotifyFailsOnHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	n := NewTelegramNotifier("bot-token", "chat-42", server.URL, time.Second, zerolog.Nop())
	if err := n.Notify(context.Background(), testNotification()); err == nil {
		t.Fatal("expected an error on HTTP 400")
	}
}

func TestTelegramNotifyFailsOnAPIRefusal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false}`))
	}))
	defer server.Close()

	n := NewTelegramNotifier("bot-token", "chat-42", server.URL, time.Second, zerolog.Nop())
	if err := n.Notify(context.Background(), testNotification()); err == nil {
		t.Fatal("expected an error when the API reports ok=false")
	}
}

func TestRenderMessageIncludesAdditionalContext(t *testing.T) {
	note := testNotification()
	note.AdditionalMsg = "simulated proposal"

	text := renderMessage(note)
	if !strings.Contains(text, "simulated proposal") {
		t.Fatalf("message %q missing additional context", text)
	}
}
