package relay

import (
	"bytes"
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"rate-index-oracle/internal/rates"
)

func testState(rate, index string, timestamp uint64) rates.State {
	return rates.State{
		Rate:      *uint256.MustFromDecimal(rate),
		Index:     *uint256.MustFromDecimal(index),
		Timestamp: timestamp,
	}
}

func maxForWidth(bits uint) *uint256.Int {
	one := uint256.NewInt(1)
	max := new(uint256.Int).Lsh(one, bits)
	return max.Sub(max, one)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []rates.State{
		{},
		testState("1000000000000000000000000000", "1000000000000000000000000000", 0),
		testState("1000000001547125957863212448", "1081499999999999999959902249", 1_700_000_000),
		// every field at its maximum wire width
		{
			Rate:      *maxForWidth(96),
			Index:     *maxForWidth(120),
			Timestamp: 1<<40 - 1,
		},
	}

	for i, want := range cases {
		buf, err := Encode(want)
		if err != nil {
			t.Fatalf("case %d: encode: %v", i, err)
		}
		if len(buf) != MessageSize {
			t.Fatalf("case %d: payload is %d bytes", i, len(buf))
		}
		got, err := Decode(buf)
		if err != nil {
			t.Fatalf("case %d: decode: %v", i, err)
		}
		if got != want {
			t.Fatalf("case %d: round trip = %+v, want %+v", i, got, want)
		}
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	s := testState("1000000001547125957863212448", "1030000000000000000000000000", 1_700_000_000)
	a, err := Encode(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, err := Encode(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("identical states must encode to identical payloads")
	}
}

func TestEncodeFieldOverflow(t *testing.T) {
	base := testState("1000000000000000000000000000", "1000000000000000000000000000", 1)

	wideRate := base
	wideRate.Rate = *new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	if _, err := Encode(wideRate); !errors.Is(err, ErrFieldOverflow) {
		t.Fatalf("rate: expected ErrFieldOverflow, got %v", err)
	}

	wideIndex := base
	wideIndex.Index = *new(uint256.Int).Lsh(uint256.NewInt(1), 120)
	if _, err := Encode(wideIndex); !errors.Is(err, ErrFieldOverflow) {
		t.Fatalf("index: expected ErrFieldOverflow, got %v", err)
	}

	wideTS := base
	wideTS.Timestamp = 1 << 40
	if _, err := Encode(wideTS); !errors.Is(err, ErrFieldOverflow) {
		t.Fatalf("timestamp: expected ErrFieldOverflow, got %v", err)
	}
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	for _, n := range []int{0, 1, MessageSize - 1, MessageSize + 1, 64} {
		if _, err := Decode(make([]byte, n)); !errors.Is(err, ErrMalformedMessage) {
			t.Fatalf("len=%d: expected ErrMalformedMessage, got %v", n, err)
		}
	}
}

func TestCacheEmpty(t *testing.T) {
	c := NewCache()
	if _, _, ok := c.Latest(); ok {
		t.Fatal("empty cache must report no observation")
	}
	if _, ok := c.SeenAt(); ok {
		t.Fatal("empty cache must report no seen time")
	}
}

func TestCachePutLatest(t *testing.T) {
	c := NewCache()
	s := testState("1000000001547125957863212448", "1030000000000000000000000000", 1_700_000_000)

	payload, err := c.Put(s)
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	got, latest, ok := c.Latest()
	if !ok {
		t.Fatal("expected an observation after Put")
	}
	if got != s {
		t.Fatalf("latest state = %+v", got)
	}
	if !bytes.Equal(latest, payload) {
		t.Fatal("latest payload differs from the one Put returned")
	}

	// Callers get a copy, not the cache's buffer.
	latest[0] ^= 0xff
	_, again, _ := c.Latest()
	if !bytes.Equal(again, payload) {
		t.Fatal("mutating a returned payload must not corrupt the cache")
	}

	if _, ok := c.SeenAt(); !ok {
		t.Fatal("expected a seen time after Put")
	}
}

func TestCachePutRejectsOversizedFields(t *testing.T) {
	c := NewCache()
	s := rates.State{Timestamp: 1 << 40}
	if _, err := c.Put(s); !errors.Is(err, ErrFieldOverflow) {
		t.Fatalf("expected ErrFieldOverflow, got %v", err)
	}
	if _, _, ok := c.Latest(); ok {
		t.Fatal("failed Put must leave the cache empty")
	}
}
