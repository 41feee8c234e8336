package rates

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

func TestToDecimal(t *testing.T) {
	cases := map[string]string{
		"0":                             "0",
		"1000000000000000000000000000":  "1",
		"1030000000000000000000000000":  "1.03",
		"48790164207174267760128000":    "0.048790164207174267760128",
		"1081499999999999999959902249":  "1.081499999999999999959902249",
		"79000000000000000000000000000": "79",
	}
	for raw, want := range cases {
		x := uint256.MustFromDecimal(raw)
		if got := ToDecimal(x).String(); got != want {
			t.Fatalf("ToDecimal(%s) = %s, want %s", raw, got, want)
		}
	}
}

func TestFromDecimal(t *testing.T) {
	got, err := FromDecimal(decimal.RequireFromString("1.03"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Dec() != "1030000000000000000000000000" {
		t.Fatalf("got %s", got.Dec())
	}

	// Sub-RAY precision is truncated, not rounded.
	got, err = FromDecimal(decimal.RequireFromString("0.0000000000000000000000000019"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Dec() != "1" {
		t.Fatalf("got %s", got.Dec())
	}

	if _, err := FromDecimal(decimal.RequireFromString("-1")); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow for negative input, got %v", err)
	}
}
