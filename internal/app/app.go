package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"price-anomaly-repair/internal/alerting"
	"price-anomaly-repair/internal/config"
	"price-anomaly-repair/internal/lookup"
	"price-anomaly-repair/internal/policy"
	"price-anomaly-repair/internal/repair"
	"price-anomaly-repair/internal/scheduler"
	"price-anomaly-repair/internal/service"
	"price-anomaly-repair/internal/sink"
	"price-anomaly-repair/internal/source"
	"price-anomaly-repair/internal/storage"
	"price-anomaly-repair/internal/validate"
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

func (a *App) newSource() source.RecordSource {
	if a.Config.Source.Mode == "http" {
		return source.NewHTTP(source.HTTPOptions{
			URL:       a.Config.Source.URL,
			Timeout:   a.Config.Source.RequestTimeout,
			UserAgent: a.Config.Source.UserAgent,
		}, a.Logger)
	}
	return source.NewFile(source.FileOptions{
		Dir:  a.Config.Source.Dir,
		Glob: a.Config.Source.Glob,
	}, a.Logger)
}

func (a *App) newDetector() *validate.Detector {
	return validate.NewDetector(a.Config.Validation)
}

func (a *App) newLookup() repair.Lookup {
	if !a.Config.Repair.Enabled {
		return nil
	}

	var onchain *lookup.Onchain
	if a.Config.Ethereum.RPCURL != "" && len(a.Config.Ethereum.Aggregators) > 0 {
		onchain = lookup.NewOnchain(lookup.OnchainOptions{
			RPCURL:      a.Config.Ethereum.RPCURL,
			Aggregators: a.Config.Ethereum.Aggregators,
			Timeout:     a.Config.Ethereum.RequestTimeout,
		}, a.Logger)
	}

	var httpLookup *lookup.HTTP
	if a.Config.Repair.BaseURL != "" {
		httpLookup = lookup.NewHTTP(lookup.HTTPOptions{
			BaseURL:        a.Config.Repair.BaseURL,
			AuthHeader:     a.Config.Repair.AuthHeader,
			UserAgent:      a.Config.Repair.UserAgent,
			Timeout:        a.Config.Repair.LookupTimeout,
			RequestsPerSec: a.Config.Repair.RequestsPerSec,
			Burst:          a.Config.Repair.Burst,
		}, a.Logger)
	}

	if onchain == nil && httpLookup == nil {
		return nil
	}
	return lookup.NewRouter(onchain, httpLookup)
}

func (a *App) newOrchestrator(detector *validate.Detector, lk repair.Lookup) *repair.Orchestrator {
	return repair.NewOrchestrator(policy.NewEngine(), lk, detector, repair.Options{
		LookupTimeout: a.Config.Repair.LookupTimeout,
		Concurrency:   a.Config.Repair.Concurrency,
	}, a.Logger)
}

func (a *App) newSink() *sink.Writer {
	if a.Config.Sink.Dir == "" {
		return nil
	}
	return sink.NewWriter(sink.Options{
		Dir:         a.Config.Sink.Dir,
		PricesFile:  a.Config.Sink.PricesFile,
		ReportFile:  a.Config.Sink.ReportFile,
		PrettyPrint: a.Config.Sink.PrettyPrint,
	}, a.Logger)
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

func (a *App) newService(store *storage.Store, sched *scheduler.Scheduler) *service.Service {
	detector := a.newDetector()

	deps := service.Dependencies{
		Scheduler:    sched,
		Records:      a.newSource(),
		Detector:     detector,
		Orchestrator: a.newOrchestrator(detector, a.newLookup()),
		Sink:         a.newSink(),
		Notifier:     a.newNotifier(),
	}
	if store != nil {
		deps.RecordStore = store
		deps.RunStore = store
	}

	return service.New(a.Config, deps, a.Logger)
}

// Run executes the long-running validation service.
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

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := a.newService(store, sched)

	a.Logger.Info().Msg("starting validation service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("validation service stopped")
	return nil
}

// ValidateOptions configure the one-shot validate command.
type ValidateOptions struct {
	FeedPath string
	Limit    int
}

// ProcessOptions configure the one-shot process command.
type ProcessOptions struct {
	FeedPath string
	DryRun   bool
}

// ExportOptions hold parameters for exporting run history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
