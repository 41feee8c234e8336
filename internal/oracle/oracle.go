package oracle

import (
	"context"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"rate-index-oracle/internal/rates"
)

// SourceReader is the read-only contract of the authoritative rate ledger.
// LocalOracle trusts its output; no validation is applied beyond what the
// arithmetic itself requires.
type SourceReader interface {
	Rate(ctx context.Context) (uint256.Int, error)
	Index(ctx context.Context) (uint256.Int, error)
	LastUpdate(ctx context.Context) (uint64, error)
}

// stateHolder carries the current observation and the query surface shared
// by both oracle variants. All conversion-factor queries route through the
// rates engine.
type stateHolder struct {
	mu    sync.RWMutex
	state rates.State
	now   func() uint64
}

func wallClock() uint64 {
	return uint64(time.Now().Unix())
}

// State returns a copy of the current observation.
func (h *stateHolder) State() rates.State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Rate returns the per-second accumulation factor.
func (h *stateHolder) Rate() uint256.Int {
	return h.State().Rate
}

// Index returns the accumulated conversion factor at the last observation.
func (h *stateHolder) Index() uint256.Int {
	return h.State().Index
}

// LastUpdate returns the observation timestamp in unix seconds.
func (h *stateHolder) LastUpdate() uint64 {
	return h.State().Timestamp
}

// APR returns the annualised simple rate derived from the current rate.
func (h *stateHolder) APR() (uint256.Int, error) {
	return h.State().APR()
}

// ConversionRate returns the exact conversion factor at the current time.
func (h *stateHolder) ConversionRate() (uint256.Int, error) {
	return h.ConversionRateAt(h.now())
}

// ConversionRateAt returns the exact conversion factor at time at.
func (h *stateHolder) ConversionRateAt(at uint64) (uint256.Int, error) {
	return h.State().ConversionRate(at)
}

// ConversionRateBinomial returns the binomial approximation at the current time.
func (h *stateHolder) ConversionRateBinomial() (uint256.Int, error) {
	return h.ConversionRateBinomialAt(h.now())
}

// ConversionRateBinomialAt returns the binomial approximation at time at.
func (h *stateHolder) ConversionRateBinomialAt(at uint64) (uint256.Int, error) {
	return h.State().ConversionRateBinomial(at)
}

// ConversionRateLinear returns the linear approximation at the current time.
func (h *stateHolder) ConversionRateLinear() (uint256.Int, error) {
	return h.ConversionRateLinearAt(h.now())
}

// ConversionRateLinearAt returns the linear approximation at time at.
func (h *stateHolder) ConversionRateLinearAt(at uint64) (uint256.Int, error) {
	return h.State().ConversionRateLinear(at)
}
