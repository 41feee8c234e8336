package oracle

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"rate-index-oracle/internal/rates"
)

// LocalOracle serves rate queries on the same domain as the source ledger,
// reading it directly on demand. There is no trust boundary: whatever the
// source reports is taken as-is.
type LocalOracle struct {
	stateHolder
	src    SourceReader
	logger zerolog.Logger
}

// NewLocal constructs a LocalOracle and performs the initial source read.
func NewLocal(ctx context.Context, src SourceReader, logger zerolog.Logger) (*LocalOracle, error) {
	o := &LocalOracle{
		src:    src,
		logger: logger.With().Str("component", "local_oracle").Logger(),
	}
	o.now = wallClock
	if err := o.Refresh(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// Refresh re-reads the source ledger and atomically overwrites the held
// observation. No history is kept.
func (o *LocalOracle) Refresh(ctx context.Context) error {
	rate, err := o.src.Rate(ctx)
	if err != nil {
		return fmt.Errorf("read source rate: %w", err)
	}
	index, err := o.src.Index(ctx)
	if err != nil {
		return fmt.Errorf("read source index: %w", err)
	}
	last, err := o.src.LastUpdate(ctx)
	if err != nil {
		return fmt.Errorf("read source last update: %w", err)
	}

	next := rates.State{Rate: rate, Index: index, Timestamp: last}

	o.mu.Lock()
	o.state = next
	o.mu.Unlock()

	o.logger.Debug().
		Str("rate", rate.Dec()).
		Str("index", index.Dec()).
		Uint64("last_update", last).
		Msg("refreshed from source")
	return nil
}
