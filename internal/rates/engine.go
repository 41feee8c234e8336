package rates

import (
	"github.com/holiman/uint256"
)

// Rpow raises x to the n-th power in the RAY fixed-point domain using
// binary exponentiation: O(log n) multiplications, each carried out at
// 256-bit width with half-up rounding on the rescale so truncation bias
// does not accumulate over long horizons.
func Rpow(x *uint256.Int, n uint64) (*uint256.Int, error) {
	z := new(uint256.Int)
	if n%2 == 0 {
		z.Set(Ray)
	} else {
		z.Set(x)
	}

	base := new(uint256.Int).Set(x)
	var err error
	for n /= 2; n > 0; n /= 2 {
		if base, err = mulRayHalfUp(base, base); err != nil {
			return nil, err
		}
		if n%2 == 1 {
			if z, err = mulRayHalfUp(z, base); err != nil {
				return nil, err
			}
		}
	}
	return z, nil
}

// mulRayHalfUp computes round((a*b)/RAY) with overflow detection.
func mulRayHalfUp(a, b *uint256.Int) (*uint256.Int, error) {
	p, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	p, carry := p.AddOverflow(p, halfRay)
	if carry {
		return nil, ErrOverflow
	}
	return p.Div(p, Ray), nil
}

// ConversionRate computes the exact conversion factor at time at:
// index * rate^(at - timestamp) / RAY, the final rescale flooring.
func (s State) ConversionRate(at uint64) (uint256.Int, error) {
	n, err := s.elapsed(at)
	if err != nil {
		return uint256.Int{}, err
	}

	growth, err := Rpow(&s.Rate, n)
	if err != nil {
		return uint256.Int{}, err
	}

	out, overflow := growth.MulOverflow(&s.Index, growth)
	if overflow {
		return uint256.Int{}, ErrOverflow
	}
	return *out.Div(out, Ray), nil
}

// ConversionRateBinomial approximates the conversion factor with the
// leading binomial-series terms of rate^n around 1 RAY, replacing the
// exponentiation with a constant number of multiplications. For rates at
// or above 1 RAY it never exceeds the exact value.
func (s State) ConversionRateBinomial(at uint64) (uint256.Int, error) {
	n, err := s.elapsed(at)
	if err != nil {
		return uint256.Int{}, err
	}
	if s.Rate.Lt(Ray) {
		return uint256.Int{}, ErrRateBelowOne
	}
	if n == 0 {
		return s.Index, nil
	}

	b := new(uint256.Int).Sub(&s.Rate, Ray)
	nn := uint256.NewInt(n)

	t1, overflow := new(uint256.Int).MulOverflow(nn, b)
	if overflow {
		return uint256.Int{}, ErrOverflow
	}

	bb, overflow := new(uint256.Int).MulOverflow(b, b)
	if overflow {
		return uint256.Int{}, ErrOverflow
	}

	// C(n,2) * (b^2 / RAY)
	c2 := new(uint256.Int).Sub(nn, uint256.NewInt(1))
	c2.Mul(c2, nn)
	c2.Div(c2, uint256.NewInt(2))
	t2, overflow := new(uint256.Int).MulOverflow(c2, new(uint256.Int).Div(bb, Ray))
	if overflow {
		return uint256.Int{}, ErrOverflow
	}

	// C(n,3) * (b^3 / RAY^2)
	bbb, overflow := new(uint256.Int).MulOverflow(bb, b)
	if overflow {
		return uint256.Int{}, ErrOverflow
	}
	bbb.Div(bbb, Ray)
	bbb.Div(bbb, Ray)
	c3 := new(uint256.Int).Set(c2)
	if n >= 2 {
		c3.Mul(c3, uint256.NewInt(n-2))
		c3.Div(c3, uint256.NewInt(3))
	} else {
		c3.Clear()
	}
	t3, overflow := c3.MulOverflow(c3, bbb)
	if overflow {
		return uint256.Int{}, ErrOverflow
	}

	sum := new(uint256.Int).Set(Ray)
	for _, term := range []*uint256.Int{t1, t2, t3} {
		var carry bool
		if sum, carry = sum.AddOverflow(sum, term); carry {
			return uint256.Int{}, ErrOverflow
		}
	}

	out, overflow := sum.MulOverflow(&s.Index, sum)
	if overflow {
		return uint256.Int{}, ErrOverflow
	}
	return *out.Div(out, Ray), nil
}

// ConversionRateLinear approximates growth as simple interest over the
// elapsed duration: index + n*(rate - RAY). Cheapest variant, and a valid
// underestimate whenever the index is at or above 1 RAY.
func (s State) ConversionRateLinear(at uint64) (uint256.Int, error) {
	n, err := s.elapsed(at)
	if err != nil {
		return uint256.Int{}, err
	}
	if s.Rate.Lt(Ray) {
		return uint256.Int{}, ErrRateBelowOne
	}

	b := new(uint256.Int).Sub(&s.Rate, Ray)
	t1, overflow := b.MulOverflow(b, uint256.NewInt(n))
	if overflow {
		return uint256.Int{}, ErrOverflow
	}
	out, carry := t1.AddOverflow(&s.Index, t1)
	if carry {
		return uint256.Int{}, ErrOverflow
	}
	return *out, nil
}

func (s State) elapsed(at uint64) (uint64, error) {
	if at < s.Timestamp {
		return 0, ErrPastQuery
	}
	return at - s.Timestamp, nil
}
