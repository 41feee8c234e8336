package rates

import (
	"errors"

	"github.com/holiman/uint256"
)

// SecondsPerYear is the annualisation horizon used by APR.
const SecondsPerYear = 365 * 24 * 60 * 60

var (
	// Ray is the fixed-point scale (10^27) for rates and indices.
	Ray = uint256.MustFromDecimal("1000000000000000000000000000")

	halfRay = uint256.MustFromDecimal("500000000000000000000000000")
)

var (
	// ErrPastQuery indicates a conversion factor was requested for a time
	// before the last observation.
	ErrPastQuery = errors.New("rates: query time precedes observation")
	// ErrOverflow indicates a 256-bit overflow in fixed-point arithmetic.
	ErrOverflow = errors.New("rates: fixed-point overflow")
	// ErrRateBelowOne indicates a rate below 1 RAY where a non-negative
	// nominal rate is required.
	ErrRateBelowOne = errors.New("rates: rate below one")
)

// State is a rate observation: the per-second accumulation factor, the
// accumulated index at Timestamp, and the observation time itself (unix
// seconds). A zero Timestamp marks the uninitialised sentinel. State is
// comparable with ==.
type State struct {
	Rate      uint256.Int
	Index     uint256.Int
	Timestamp uint64
}

// IsZero reports whether the state is the uninitialised sentinel.
func (s State) IsZero() bool {
	return s.Timestamp == 0
}

// APR returns the annualised simple rate in RAY units:
// (rate - 1 RAY) * SecondsPerYear.
func (s State) APR() (uint256.Int, error) {
	if s.Rate.Lt(Ray) {
		return uint256.Int{}, ErrRateBelowOne
	}
	b := new(uint256.Int).Sub(&s.Rate, Ray)
	apr, overflow := b.MulOverflow(b, uint256.NewInt(SecondsPerYear))
	if overflow {
		return uint256.Int{}, ErrOverflow
	}
	return *apr, nil
}
