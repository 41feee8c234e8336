package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"rate-index-oracle/internal/alerting"
	"rate-index-oracle/internal/oracle"
	"rate-index-oracle/internal/rates"
)

// SimulateProposal replays a synthetic delivery against a fresh validated
// oracle: the base observation bootstraps it, then the candidate is
// proposed and the decision reported. A rejection triggers the same alert
// path a live one would, when alerting is enabled.
func (a *App) SimulateProposal(ctx context.Context, opts SimulateOptions) error {
	base, err := parseState(opts.BaseRate, opts.BaseIndex, opts.BaseTime)
	if err != nil {
		return fmt.Errorf("parse base observation: %w", err)
	}
	candidate, err := parseState(opts.Rate, opts.Index, opts.Time)
	if err != nil {
		return fmt.Errorf("parse candidate: %w", err)
	}

	remote, err := a.newRemoteOracle()
	if err != nil {
		return err
	}

	admin := oracle.Token(a.Config.Oracle.AdminToken)
	provider := oracle.Token(a.Config.Oracle.ProviderToken)

	if opts.Cap != "" {
		capDec, err := decimal.NewFromString(opts.Cap)
		if err != nil {
			return fmt.Errorf("parse --cap: %w", err)
		}
		capRate, err := rates.FromDecimal(capDec)
		if err != nil {
			return fmt.Errorf("convert --cap: %w", err)
		}
		if err := remote.SetCap(admin, capRate); err != nil {
			return err
		}
	}

	if err := remote.ProposeUpdate(provider, base); err != nil {
		return fmt.Errorf("bootstrap proposal: %w", err)
	}

	err = remote.ProposeUpdate(provider, candidate)
	if err == nil {
		fmt.Fprintln(os.Stdout, "candidate accepted")
		return nil
	}

	reason, ok := oracle.ReasonOf(err)
	if !ok {
		return err
	}

	fmt.Fprintf(os.Stdout, "candidate rejected: %s\n", reason)

	if a.Config.Alerting.Enabled {
		if notifier := a.newNotifier(); notifier != nil {
			note := alerting.Notification{
				Reason:         string(reason),
				CandidateRate:  rates.ToDecimal(&candidate.Rate),
				CandidateIndex: rates.ToDecimal(&candidate.Index),
				CandidateTS:    time.Unix(int64(candidate.Timestamp), 0).UTC(),
				ObservedAt:     time.Now().UTC(),
				Channels:       a.Config.Alerting.Channels,
				AdditionalMsg:  "simulated proposal",
			}
			if err := notifier.Notify(ctx, note); err != nil {
				a.Logger.Error().Err(err).Msg("failed to dispatch simulated alert")
			}
		}
	}

	return nil
}

func parseState(rate, index string, at time.Time) (rates.State, error) {
	rateDec, err := decimal.NewFromString(rate)
	if err != nil {
		return rates.State{}, fmt.Errorf("invalid rate %q: %w", rate, err)
	}
	indexDec, err := decimal.NewFromString(index)
	if err != nil {
		return rates.State{}, fmt.Errorf("invalid index %q: %w", index, err)
	}

	var s rates.State
	if s.Rate, err = rates.FromDecimal(rateDec); err != nil {
		return rates.State{}, err
	}
	if s.Index, err = rates.FromDecimal(indexDec); err != nil {
		return rates.State{}, err
	}
	if at.IsZero() {
		return rates.State{}, fmt.Errorf("timestamp is required")
	}
	s.Timestamp = uint64(at.Unix())
	return s, nil
}
