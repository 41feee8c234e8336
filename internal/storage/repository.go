package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertSnapshotSQL = `INSERT INTO oracle_snapshots (
        snapshot_ts,
        rate_per_second,
        index_value,
        apr,
        payload
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    ON CONFLICT (snapshot_ts) DO UPDATE
    SET
        rate_per_second = EXCLUDED.rate_per_second,
        index_value     = EXCLUDED.index_value,
        apr             = EXCLUDED.apr,
        payload         = EXCLUDED.payload;`

	listSnapshotsBetweenSQL = `SELECT
        snapshot_ts,
        rate_per_second,
        index_value,
        apr,
        payload,
        created_at
    FROM oracle_snapshots
    WHERE snapshot_ts >= $1
      AND snapshot_ts < $2
    ORDER BY snapshot_ts;`

	listRecentSnapshotsSQL = `SELECT
        snapshot_ts,
        rate_per_second,
        index_value,
        apr,
        payload,
        created_at
    FROM oracle_snapshots
    ORDER BY snapshot_ts DESC
    LIMIT $1;`

	countSnapshotsSQL = `SELECT COUNT(*) FROM oracle_snapshots;`

	insertRejectionSQL = `INSERT INTO oracle_rejections (
        reason,
        candidate_rate,
        candidate_index,
        candidate_ts,
        observed_at,
        channels
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    RETURNING id, reason, candidate_rate, candidate_index, candidate_ts, observed_at, channels, created_at;`

	listRecentRejectionsSQL = `SELECT
        id,
        reason,
        candidate_rate,
        candidate_index,
        candidate_ts,
        observed_at,
        channels,
        created_at
    FROM oracle_rejections
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteRejectionsBeforeSQL = `DELETE FROM oracle_rejections WHERE created_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SnapshotStore defines operations for accepted-snapshot persistence.
type SnapshotStore interface {
	UpsertSnapshot(ctx context.Context, snapshot Snapshot) error
	ListSnapshotsBetween(ctx context.Context, from, to time.Time) ([]Snapshot, error)
	ListRecentSnapshots(ctx context.Context, limit int) ([]Snapshot, error)
	CountSnapshots(ctx context.Context) (int64, error)
}

// RejectionStore defines operations for the rejection audit trail.
type RejectionStore interface {
	InsertRejection(ctx context.Context, rejection RejectionRecord) (RejectionRecord, error)
	ListRecentRejections(ctx context.Context, limit int) ([]RejectionRecord, error)
	DeleteRejectionsBefore(ctx context.Context, olderThan time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to snapshots and rejections.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertSnapshot persists or updates an accepted snapshot.
func (s *Store) UpsertSnapshot(ctx context.Context, snapshot Snapshot) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertSnapshotSQL,
		snapshot.SnapshotTS,
		snapshot.Rate.String(),
		snapshot.Index.String(),
		snapshot.APR.String(),
		snapshot.Payload,
	)
	if execErr != nil {
		return fmt.Errorf("upsert snapshot: %w", execErr)
	}
	return nil
}

// ListSnapshotsBetween lists snapshots within a time window.
func (s *Store) ListSnapshotsBetween(ctx context.Context, from, to time.Time) ([]Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSnapshotsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list snapshots between: %w", queryErr)
	}
	defer rows.Close()

	return collectSnapshots(rows, 0)
}

// ListRecentSnapshots lists the most recent snapshots, newest first.
func (s *Store) ListRecentSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSnapshotsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent snapshots: %w", queryErr)
	}
	defer rows.Close()

	return collectSnapshots(rows, limit)
}

func collectSnapshots(rows pgx.Rows, capacity int) ([]Snapshot, error) {
	snapshots := make([]Snapshot, 0, capacity)
	for rows.Next() {
		snapshot, scanErr := scanSnapshot(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		snapshots = append(snapshots, snapshot)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snapshots, nil
}

func scanSnapshot(row pgx.Row) (Snapshot, error) {
	var (
		snapshot          Snapshot
		rateStr, indexStr string
		aprStr            string
	)
	if err := row.Scan(
		&snapshot.SnapshotTS,
		&rateStr,
		&indexStr,
		&aprStr,
		&snapshot.Payload,
		&snapshot.CreatedAt,
	); err != nil {
		return Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}

	var err error
	if snapshot.Rate, err = decimal.NewFromString(rateStr); err != nil {
		return Snapshot{}, fmt.Errorf("parse rate: %w", err)
	}
	if snapshot.Index, err = decimal.NewFromString(indexStr); err != nil {
		return Snapshot{}, fmt.Errorf("parse index: %w", err)
	}
	if snapshot.APR, err = decimal.NewFromString(aprStr); err != nil {
		return Snapshot{}, fmt.Errorf("parse apr: %w", err)
	}
	return snapshot, nil
}

// CountSnapshots counts stored snapshots.
func (s *Store) CountSnapshots(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSnapshotsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count snapshots: %w", scanErr)
	}
	return count, nil
}

// InsertRejection persists a rejection audit record.
func (s *Store) InsertRejection(ctx context.Context, rejection RejectionRecord) (RejectionRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return RejectionRecord{}, err
	}

	row := pool.QueryRow(ctx, insertRejectionSQL,
		rejection.Reason,
		rejection.CandidateRate.String(),
		rejection.CandidateIndex.String(),
		rejection.CandidateTS,
		rejection.ObservedAt,
		rejection.Channels,
	)

	rec, scanErr := scanRejection(row)
	if scanErr != nil {
		return RejectionRecord{}, fmt.Errorf("insert rejection: %w", scanErr)
	}
	return rec, nil
}

// ListRecentRejections lists the most recent rejections, newest first.
func (s *Store) ListRecentRejections(ctx context.Context, limit int) ([]RejectionRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRejectionsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent rejections: %w", queryErr)
	}
	defer rows.Close()

	rejections := make([]RejectionRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanRejection(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		rejections = append(rejections, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return rejections, nil
}

func scanRejection(row pgx.Row) (RejectionRecord, error) {
	var (
		rec               RejectionRecord
		rateStr, indexStr string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.Reason,
		&rateStr,
		&indexStr,
		&rec.CandidateTS,
		&rec.ObservedAt,
		&rec.Channels,
		&rec.CreatedAt,
	); err != nil {
		return RejectionRecord{}, fmt.Errorf("scan rejection: %w", err)
	}

	var err error
	if rec.CandidateRate, err = decimal.NewFromString(rateStr); err != nil {
		return RejectionRecord{}, fmt.Errorf("parse candidate rate: %w", err)
	}
	if rec.CandidateIndex, err = decimal.NewFromString(indexStr); err != nil {
		return RejectionRecord{}, fmt.Errorf("parse candidate index: %w", err)
	}
	return rec, nil
}

// DeleteRejectionsBefore removes rejection records older than the cutoff.
func (s *Store) DeleteRejectionsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteRejectionsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete rejections before: %w", execErr)
	}
	return nil
}

var (
	_ SnapshotStore  = (*Store)(nil)
	_ RejectionStore = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
