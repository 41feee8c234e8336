package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"rate-index-oracle/internal/alerting"
	"rate-index-oracle/internal/config"
	"rate-index-oracle/internal/oracle"
	"rate-index-oracle/internal/rates"
	"rate-index-oracle/internal/relay"
	"rate-index-oracle/internal/scheduler"
	"rate-index-oracle/internal/storage"
)

// Service drives the in-process relay pipeline: refresh the local oracle
// from the source ledger, pack the observation through the wire codec, and
// propose it to the validated receiving oracle. Accepted snapshots are
// persisted; rejections are audited and alerted.
type Service struct {
	scheduler  *scheduler.Scheduler
	local      *oracle.LocalOracle
	remote     *oracle.ValidatedRemoteOracle
	cache      *relay.Cache
	provider   oracle.Token
	snapshots  storage.SnapshotStore
	rejections storage.RejectionStore
	notifier   alerting.Notifier
	logger     zerolog.Logger

	channels []string
	alertsOn bool
	locker   storage.AdvisoryLocker
	lockKey  int64
}

// New constructs the relay service.
func New(cfg *config.Config, sched *scheduler.Scheduler, local *oracle.LocalOracle, remote *oracle.ValidatedRemoteOracle, cache *relay.Cache, snapshots storage.SnapshotStore, rejections storage.RejectionStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := snapshots.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:  sched,
		local:      local,
		remote:     remote,
		cache:      cache,
		provider:   oracle.Token(cfg.Oracle.ProviderToken),
		snapshots:  snapshots,
		rejections: rejections,
		notifier:   notifier,
		logger:     logger.With().Str("component", "service").Logger(),
		channels:   cfg.Alerting.Channels,
		alertsOn:   cfg.Alerting.Enabled,
		locker:     locker,
		lockKey:    cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the aligned relay loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// ProcessTick executes a single relay round.
func (s *Service) ProcessTick(ctx context.Context, tick time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("tick", tick).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeTick(ctx, tick)
}

func (s *Service) executeTick(ctx context.Context, tick time.Time) error {
	if err := s.local.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh local oracle: %w", err)
	}

	observation := s.local.State()
	if observation.IsZero() {
		return fmt.Errorf("source reported uninitialised state")
	}

	payload, err := s.cache.Put(observation)
	if err != nil {
		return fmt.Errorf("pack observation: %w", err)
	}

	candidate, err := relay.Decode(payload)
	if err != nil {
		return fmt.Errorf("unpack observation: %w", err)
	}

	if err := s.remote.ProposeUpdate(s.provider, candidate); err != nil {
		if reason, ok := oracle.ReasonOf(err); ok {
			s.handleRejection(ctx, candidate, reason)
			return nil
		}
		return fmt.Errorf("propose update: %w", err)
	}

	s.persistSnapshot(ctx, observation, payload)

	s.logger.Info().Time("tick", tick).
		Str("index", rates.ToDecimal(&observation.Index).String()).
		Uint64("observed_at", observation.Timestamp).
		Msg("snapshot relayed")
	return nil
}

func (s *Service) persistSnapshot(ctx context.Context, observation rates.State, payload []byte) {
	if s.snapshots == nil {
		return
	}

	apr := decimal.Zero
	if raw, err := observation.APR(); err == nil {
		apr = rates.ToDecimal(&raw)
	} else {
		s.logger.Warn().Err(err).Msg("apr unavailable for snapshot")
	}

	snapshot := storage.Snapshot{
		SnapshotTS: time.Unix(int64(observation.Timestamp), 0).UTC(),
		Rate:       rates.ToDecimal(&observation.Rate),
		Index:      rates.ToDecimal(&observation.Index),
		APR:        apr,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.snapshots.UpsertSnapshot(ctx, snapshot); err != nil {
		s.logger.Error().Err(err).Msg("failed to upsert snapshot")
	}
}

func (s *Service) handleRejection(ctx context.Context, candidate rates.State, reason oracle.RejectReason) {
	observedAt := time.Now().UTC()
	candidateTS := time.Unix(int64(candidate.Timestamp), 0).UTC()

	s.logger.Warn().
		Str("reason", string(reason)).
		Time("candidate_ts", candidateTS).
		Msg("proposal rejected")

	if s.rejections != nil {
		record := storage.RejectionRecord{
			Reason:         string(reason),
			CandidateRate:  rates.ToDecimal(&candidate.Rate),
			CandidateIndex: rates.ToDecimal(&candidate.Index),
			CandidateTS:    candidateTS,
			ObservedAt:     observedAt,
			Channels:       s.channels,
		}
		if _, err := s.rejections.InsertRejection(ctx, record); err != nil {
			s.logger.Error().Err(err).Msg("failed to persist rejection record")
		}
	}

	if s.alertsOn && s.notifier != nil {
		note := alerting.Notification{
			Reason:         string(reason),
			CandidateRate:  rates.ToDecimal(&candidate.Rate),
			CandidateIndex: rates.ToDecimal(&candidate.Index),
			CandidateTS:    candidateTS,
			ObservedAt:     observedAt,
			Channels:       s.channels,
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			s.logger.Error().Err(err).Msg("failed to dispatch rejection alert")
		}
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
