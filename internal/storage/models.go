package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is a persisted accepted observation, with RAY quantities
// rendered as unit-scale decimals for querying and charting.
type Snapshot struct {
	SnapshotTS time.Time
	Rate       decimal.Decimal
	Index      decimal.Decimal
	APR        decimal.Decimal
	Payload    []byte
	CreatedAt  time.Time
}

// RejectionRecord captures a refused proposal for auditing and alert
// de-duplication.
type RejectionRecord struct {
	ID             int64
	Reason         string
	CandidateRate  decimal.Decimal
	CandidateIndex decimal.Decimal
	CandidateTS    time.Time
	ObservedAt     time.Time
	Channels       []string
	CreatedAt      time.Time
}
