package oracle

import (
	"errors"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"rate-index-oracle/internal/rates"
)

// Token is an opaque capability presented by callers of the mutating entry
// points. The admin token gates SetCap; the provider token gates
// ProposeUpdate.
type Token string

var (
	// ErrUnauthorized indicates the presented capability does not permit
	// the call. No partial effect occurs.
	ErrUnauthorized = errors.New("oracle: unauthorized")
	// ErrCapBelowOne indicates an attempt to set a non-zero cap below 1 RAY,
	// which would reject every proposal.
	ErrCapBelowOne = errors.New("oracle: cap below one")
)

// RejectReason names a validation rejection so monitoring can tell a stale
// relay from bad data from a cap violation.
type RejectReason string

const (
	RejectReorderedTimestamp   RejectReason = "reordered_timestamp"
	RejectFutureTimestamp      RejectReason = "future_timestamp"
	RejectInvalidRate          RejectReason = "invalid_rate"
	RejectDecreasingIndex      RejectReason = "decreasing_index"
	RejectRateExceedsCap       RejectReason = "rate_exceeds_cap"
	RejectIndexExceedsCapBound RejectReason = "index_exceeds_cap_bound"
)

// RejectionError is returned by ProposeUpdate when a candidate fails
// validation. Rejections are expected, recoverable outcomes; the state is
// left untouched.
type RejectionError struct {
	Reason RejectReason
}

func (e *RejectionError) Error() string {
	return "oracle: proposal rejected: " + string(e.Reason)
}

// ReasonOf extracts the reject reason from an error, if it carries one.
func ReasonOf(err error) (RejectReason, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return "", false
}

func reject(reason RejectReason) error {
	return &RejectionError{Reason: reason}
}

// ValidatedRemoteOracle holds a relayed observation on a consuming domain.
// Candidates arrive from an untrusted transport, possibly delayed, reordered
// or duplicated; the acceptance state machine commits only those that keep
// the non-decreasing invariants and the optional cap bound.
type ValidatedRemoteOracle struct {
	stateHolder
	admin    Token
	provider Token
	cap      uint256.Int
	logger   zerolog.Logger
}

// NewValidatedRemote constructs an oracle in the uninitialised state.
func NewValidatedRemote(admin, provider Token, logger zerolog.Logger) *ValidatedRemoteOracle {
	o := &ValidatedRemoteOracle{
		admin:    admin,
		provider: provider,
		logger:   logger.With().Str("component", "remote_oracle").Logger(),
	}
	o.now = wallClock
	return o
}

// Cap returns the current rate cap; zero means no cap.
func (o *ValidatedRemoteOracle) Cap() uint256.Int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.cap
}

// SetCap installs a new rate cap. Zero disables the cap; a non-zero cap
// must be at least 1 RAY. Requires the admin capability.
func (o *ValidatedRemoteOracle) SetCap(auth Token, capRate uint256.Int) error {
	if auth != o.admin {
		return ErrUnauthorized
	}
	if !capRate.IsZero() && capRate.Lt(rates.Ray) {
		return ErrCapBelowOne
	}

	o.mu.Lock()
	o.cap = capRate
	o.mu.Unlock()

	o.logger.Info().Str("cap", capRate.Dec()).Msg("rate cap updated")
	return nil
}

// ProposeUpdate runs the acceptance state machine on a candidate
// observation. The first-ever proposal bootstraps the oracle
// unconditionally; afterwards the checks of the validation sequence apply
// in order, failing fast with a RejectionError on the first violation.
// Requires the data-provider capability. The read-validate-write sequence
// is atomic with respect to concurrent proposals.
func (o *ValidatedRemoteOracle) ProposeUpdate(auth Token, candidate rates.State) error {
	if auth != o.provider {
		return ErrUnauthorized
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.state.IsZero() {
		if err := o.validate(candidate); err != nil {
			o.logState(candidate, err)
			return err
		}
	}

	o.state = candidate
	o.logState(candidate, nil)
	return nil
}

func (o *ValidatedRemoteOracle) validate(candidate rates.State) error {
	now := o.now()
	cur := o.state

	if candidate.Timestamp < cur.Timestamp {
		return reject(RejectReorderedTimestamp)
	}
	if candidate.Timestamp > now {
		return reject(RejectFutureTimestamp)
	}
	if candidate.Rate.Lt(rates.Ray) {
		return reject(RejectInvalidRate)
	}
	if candidate.Index.Lt(&cur.Index) {
		return reject(RejectDecreasingIndex)
	}

	if o.cap.IsZero() {
		return nil
	}
	if candidate.Rate.Gt(&o.cap) {
		return reject(RejectRateExceedsCap)
	}
	// Bound how much the index could have grown over the elapsed interval
	// even at the maximum allowed rate.
	capped := rates.State{Rate: o.cap, Index: cur.Index, Timestamp: cur.Timestamp}
	bound, err := capped.ConversionRate(candidate.Timestamp)
	if err != nil {
		return err
	}
	if candidate.Index.Gt(&bound) {
		return reject(RejectIndexExceedsCapBound)
	}
	return nil
}

func (o *ValidatedRemoteOracle) logState(candidate rates.State, err error) {
	var evt *zerolog.Event
	if reason, ok := ReasonOf(err); ok {
		evt = o.logger.Warn().Str("reason", string(reason))
	} else if err != nil {
		evt = o.logger.Error().Err(err)
	} else {
		evt = o.logger.Debug()
	}
	evt.Str("rate", candidate.Rate.Dec()).
		Str("index", candidate.Index.Dec()).
		Uint64("timestamp", candidate.Timestamp).
		Bool("accepted", err == nil).
		Msg("proposal processed")
}
