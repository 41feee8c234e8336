package rates

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

const (
	// Per-second rate equivalent to roughly 5% APY.
	fivePercentRate = "1000000001547125957863212448"
)

func mustState(t *testing.T, rate, index string, timestamp uint64) State {
	t.Helper()
	return State{
		Rate:      *uint256.MustFromDecimal(rate),
		Index:     *uint256.MustFromDecimal(index),
		Timestamp: timestamp,
	}
}

func TestRpowZeroExponentIsOne(t *testing.T) {
	x := uint256.MustFromDecimal(fivePercentRate)
	got, err := Rpow(x, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Eq(Ray) {
		t.Fatalf("expected 1 RAY, got %s", got.Dec())
	}
}

func TestRpowOneRayIsFixedPoint(t *testing.T) {
	for _, n := range []uint64{1, 2, 1000, 31536000} {
		got, err := Rpow(Ray, n)
		if err != nil {
			t.Fatalf("n=%d: unexpected error: %v", n, err)
		}
		if !got.Eq(Ray) {
			t.Fatalf("n=%d: expected 1 RAY, got %s", n, got.Dec())
		}
	}
}

func TestRpowOverflow(t *testing.T) {
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	if _, err := Rpow(huge, 4); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestConversionFivePercentYearVector(t *testing.T) {
	const (
		t0      = uint64(1_700_000_000)
		elapsed = uint64(365 * 24 * 3600)
	)
	s := mustState(t, fivePercentRate, "1030000000000000000000000000", t0)

	exact, err := s.ConversionRate(t0 + elapsed)
	if err != nil {
		t.Fatalf("exact: %v", err)
	}
	if got, want := exact.Dec(), "1081499999999999999959902249"; got != want {
		t.Fatalf("exact = %s, want %s", got, want)
	}

	binomial, err := s.ConversionRateBinomial(t0 + elapsed)
	if err != nil {
		t.Fatalf("binomial: %v", err)
	}
	if got, want := binomial.Dec(), "1081495968383924399665215760"; got != want {
		t.Fatalf("binomial = %s, want %s", got, want)
	}

	linear, err := s.ConversionRateLinear(t0 + elapsed)
	if err != nil {
		t.Fatalf("linear: %v", err)
	}
	if got, want := linear.Dec(), "1078790164207174267760128000"; got != want {
		t.Fatalf("linear = %s, want %s", got, want)
	}

	// Binomial stays within 0.001% of exact at this horizon.
	diff := new(uint256.Int).Sub(&exact, &binomial)
	diff.Mul(diff, uint256.NewInt(100_000))
	if diff.Cmp(&exact) > 0 {
		t.Fatalf("binomial off exact by more than 0.001%%")
	}
}

func TestConversionOrdering(t *testing.T) {
	rateVals := []string{
		"1000000000000000000000000000", // 0%
		"1000000000315522921573372069", // ~1% APY
		"1000000001547125957863212448", // ~5% APY
		"1000000005781378656804591713", // ~20% APY
	}
	horizons := []uint64{0, 1, 60, 86400, 31536000, 10 * 31536000}

	const t0 = uint64(1_600_000_000)
	for _, rate := range rateVals {
		s := mustState(t, rate, "1120000000000000000000000000", t0)
		for _, n := range horizons {
			exact, err := s.ConversionRate(t0 + n)
			if err != nil {
				t.Fatalf("rate=%s n=%d exact: %v", rate, n, err)
			}
			binomial, err := s.ConversionRateBinomial(t0 + n)
			if err != nil {
				t.Fatalf("rate=%s n=%d binomial: %v", rate, n, err)
			}
			linear, err := s.ConversionRateLinear(t0 + n)
			if err != nil {
				t.Fatalf("rate=%s n=%d linear: %v", rate, n, err)
			}

			if exact.Cmp(&binomial) < 0 {
				t.Errorf("rate=%s n=%d: exact %s < binomial %s", rate, n, exact.Dec(), binomial.Dec())
			}
			if binomial.Cmp(&linear) < 0 {
				t.Errorf("rate=%s n=%d: binomial %s < linear %s", rate, n, binomial.Dec(), linear.Dec())
			}
		}
	}
}

func TestConversionIdentityAtObservation(t *testing.T) {
	const t0 = uint64(1_650_000_000)
	s := mustState(t, fivePercentRate, "1030000000000000000000000000", t0)

	for name, query := range map[string]func(uint64) (uint256.Int, error){
		"exact":    s.ConversionRate,
		"binomial": s.ConversionRateBinomial,
		"linear":   s.ConversionRateLinear,
	} {
		got, err := query(t0)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got != s.Index {
			t.Fatalf("%s: expected index unchanged, got %s", name, got.Dec())
		}
	}
}

func TestConversionPastQueryFails(t *testing.T) {
	const t0 = uint64(1_650_000_000)
	s := mustState(t, fivePercentRate, "1030000000000000000000000000", t0)

	for name, query := range map[string]func(uint64) (uint256.Int, error){
		"exact":    s.ConversionRate,
		"binomial": s.ConversionRateBinomial,
		"linear":   s.ConversionRateLinear,
	} {
		if _, err := query(t0 - 1); !errors.Is(err, ErrPastQuery) {
			t.Fatalf("%s: expected ErrPastQuery, got %v", name, err)
		}
	}
}

func TestApproximationsRejectSubRayRate(t *testing.T) {
	const t0 = uint64(1_650_000_000)
	s := mustState(t, "999999999000000000000000000", "1000000000000000000000000000", t0)

	if _, err := s.ConversionRateBinomial(t0 + 100); !errors.Is(err, ErrRateBelowOne) {
		t.Fatalf("binomial: expected ErrRateBelowOne, got %v", err)
	}
	if _, err := s.ConversionRateLinear(t0 + 100); !errors.Is(err, ErrRateBelowOne) {
		t.Fatalf("linear: expected ErrRateBelowOne, got %v", err)
	}
}

func TestAPR(t *testing.T) {
	s := mustState(t, fivePercentRate, "1000000000000000000000000000", 1)
	apr, err := s.APR()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := apr.Dec(), "48790164207174267760128000"; got != want {
		t.Fatalf("apr = %s, want %s", got, want)
	}

	flat := mustState(t, "1000000000000000000000000000", "1000000000000000000000000000", 1)
	apr, err = flat.APR()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !apr.IsZero() {
		t.Fatalf("expected zero APR at 1 RAY, got %s", apr.Dec())
	}

	sub := mustState(t, "999999999999999999999999999", "1000000000000000000000000000", 1)
	if _, err := sub.APR(); !errors.Is(err, ErrRateBelowOne) {
		t.Fatalf("expected ErrRateBelowOne, got %v", err)
	}
}
