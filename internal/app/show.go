package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"rate-index-oracle/internal/storage"
)

type snapshotLister interface {
	ListRecentSnapshots(ctx context.Context, limit int) ([]storage.Snapshot, error)
}

type rejectionLister interface {
	ListRecentRejections(ctx context.Context, limit int) ([]storage.RejectionRecord, error)
}

// Show prints recent snapshots or rejections.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show history")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Rejections {
		return a.showRejections(ctx, store, opts.Limit)
	}
	return a.showSnapshots(ctx, store, opts.Limit)
}

func (a *App) showSnapshots(ctx context.Context, store snapshotLister, limit int) error {
	snapshots, err := store.ListRecentSnapshots(ctx, limit)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		fmt.Fprintln(os.Stdout, "no snapshots found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Observed (UTC)\tRate/sec\tIndex\tAPR%\tStored")

	for _, snapshot := range snapshots {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\n",
			snapshot.SnapshotTS.UTC().Format(time.RFC3339),
			formatDecimal(snapshot.Rate, 12),
			formatDecimal(snapshot.Index, 9),
			formatDecimal(snapshot.APR.Mul(decimal.NewFromInt(100)), 4),
			snapshot.CreatedAt.UTC().Format(time.RFC3339),
		)
	}

	return writer.Flush()
}

func (a *App) showRejections(ctx context.Context, store rejectionLister, limit int) error {
	rejections, err := store.ListRecentRejections(ctx, limit)
	if err != nil {
		return err
	}
	if len(rejections) == 0 {
		fmt.Fprintln(os.Stdout, "no rejections found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Observed (UTC)\tReason\tCand. Rate/sec\tCand. Index\tCand. Time")

	for _, rec := range rejections {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\n",
			rec.ObservedAt.UTC().Format(time.RFC3339),
			sanitizeInline(rec.Reason),
			formatDecimal(rec.CandidateRate, 12),
			formatDecimal(rec.CandidateIndex, 9),
			rec.CandidateTS.UTC().Format(time.RFC3339),
		)
	}

	return writer.Flush()
}

func sanitizeInline(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
