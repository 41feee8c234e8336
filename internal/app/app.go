package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"rate-index-oracle/internal/alerting"
	"rate-index-oracle/internal/config"
	"rate-index-oracle/internal/oracle"
	"rate-index-oracle/internal/relay"
	"rate-index-oracle/internal/scheduler"
	"rate-index-oracle/internal/service"
	"rate-index-oracle/internal/source"
	"rate-index-oracle/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newSource() *source.Ledger {
	return source.NewLedger(source.Options{
		RPCURL:          a.Config.Ethereum.RPCURL,
		ContractAddress: a.Config.Ethereum.ContractAddress,
		Timeout:         a.Config.Ethereum.RequestTimeout,
	}, a.Logger)
}

func (a *App) newRemoteOracle() (*oracle.ValidatedRemoteOracle, error) {
	remote := oracle.NewValidatedRemote(
		oracle.Token(a.Config.Oracle.AdminToken),
		oracle.Token(a.Config.Oracle.ProviderToken),
		a.Logger,
	)

	maxRate, err := a.Config.Oracle.ParseMaxRate()
	if err != nil {
		return nil, err
	}
	if !maxRate.IsZero() {
		if err := remote.SetCap(oracle.Token(a.Config.Oracle.AdminToken), maxRate); err != nil {
			return nil, fmt.Errorf("install rate cap: %w", err)
		}
	}
	return remote, nil
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running relay service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	local, err := oracle.NewLocal(ctx, a.newSource(), a.Logger)
	if err != nil {
		return fmt.Errorf("initial source read: %w", err)
	}

	remote, err := a.newRemoteOracle()
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToInterval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	var snapshots storage.SnapshotStore
	var rejections storage.RejectionStore
	if store != nil {
		snapshots = store
		rejections = store
	}

	svc := service.New(a.Config, sched, local, remote, relay.NewCache(), snapshots, rejections, a.newNotifier(), a.Logger)

	a.Logger.Info().Msg("starting relay service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("relay service stopped")
	return nil
}

// ExportOptions hold parameters for exporting snapshot history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit      int
	Rejections bool
}

// SimulateOptions describe a synthetic proposal round.
type SimulateOptions struct {
	BaseRate  string
	BaseIndex string
	BaseTime  time.Time
	Rate      string
	Index     string
	Time      time.Time
	Cap       string
}
