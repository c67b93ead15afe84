// Package app wires configuration into a runnable scanner.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"arbscanner/internal/arbitrage"
	s3blob "arbscanner/internal/blob/s3"
	redismirror "arbscanner/internal/cache/redis"
	"arbscanner/internal/collector"
	"arbscanner/internal/config"
	"arbscanner/internal/database"
	"arbscanner/internal/exchange"
	"arbscanner/internal/ledger"
	"arbscanner/internal/model"
	"arbscanner/internal/quote"
)

const archiveTimeout = 30 * time.Second

// App owns every long-lived component of a scanner process.
type App struct {
	cfg       config.Config
	logger    *slog.Logger
	collector *collector.Collector
	engine    *arbitrage.Engine
	simulator *arbitrage.Simulator
	ledger    *ledger.FileLedger
	archiver  *s3blob.Archiver
	cleanups  []func()
}

// New validates cfg and builds the component graph. Optional sinks
// (Postgres, Redis, S3) are connected here, so a misconfigured sink fails
// startup rather than the first cycle.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	sc := cfg.Scanner
	profiles := cfg.Profiles()

	sources := make([]exchange.QuoteSource, 0, profiles.Len())
	for _, id := range profiles.IDs() {
		exCfg := cfg.Exchanges[id]
		src, err := exchange.NewClient(id, logger, &exCfg, sc.StalenessWindow)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
		}
		sources = append(sources, src)
	}

	store := quote.NewStore()
	a.collector = collector.New(sources, store, sc.Symbols, sc.FetchTimeout, logger)
	cooldown := arbitrage.NewCooldownLedger(logger)

	scanner, err := arbitrage.NewScanner(profiles, arbitrage.ScannerSettings{
		Symbols:          sc.Symbols,
		MinProfitPct:     decimal.NewFromFloat(sc.MinProfitPct),
		MinVolume24h:     decimal.NewFromFloat(sc.MinVolume24h),
		StalenessWindow:  sc.StalenessWindow,
		UseMakerFees:     sc.UseMakerFees,
		Cooldown:         sc.Cooldown(),
		MaxOpportunities: sc.MaxOpportunities,
	}, store, cooldown, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	sinks, err := a.openSinks(ctx)
	if err != nil {
		return nil, err
	}

	mode := model.TradingMode(sc.TradingMode)
	var placer exchange.OrderPlacer
	if mode == model.ModeReal {
		placer = exchange.DisabledOrderPlacer{}
	}
	a.simulator, err = arbitrage.NewSimulator(arbitrage.SimulatorConfig{
		PositionSize: decimal.NewFromFloat(sc.PositionSize),
		Mode:         mode,
	}, profiles, cooldown, sinks, placer, time.Now, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	var publisher arbitrage.Publisher
	if cfg.Redis.Enabled {
		mirror, err := redismirror.NewMirror(ctx, redismirror.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			QuoteTTL: cfg.Redis.QuoteTTL,
		})
		if err != nil {
			return nil, err
		}
		a.cleanups = append(a.cleanups, func() { _ = mirror.Close() })
		publisher = mirror
		logger.Info("Redis mirror enabled", "addr", cfg.Redis.Addr)
	}

	if cfg.Archive.Enabled {
		a.archiver, err = s3blob.NewArchiver(ctx, s3blob.Config{
			Bucket:         cfg.Archive.Bucket,
			Region:         cfg.Archive.Region,
			Endpoint:       cfg.Archive.Endpoint,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			Prefix:         cfg.Archive.Prefix,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		}, logger)
		if err != nil {
			return nil, err
		}
	}

	a.engine = arbitrage.NewEngine(arbitrage.EngineConfig{
		ScanInterval:      sc.ScanInterval,
		StatusInterval:    sc.StatusInterval,
		ExecuteTopN:       sc.ExecuteTopN,
		CooldownRetention: sc.Cooldown(),
	}, a.collector, store, scanner, a.simulator, cooldown, publisher, time.Now, logger)

	return a, nil
}

// openSinks opens the file ledger and, when enabled, the Postgres repository.
func (a *App) openSinks(ctx context.Context) (*ledger.Multi, error) {
	fileLedger, err := ledger.OpenFileLedger(a.cfg.Ledger.Path, a.logger)
	if err != nil {
		return nil, err
	}
	a.ledger = fileLedger

	if !a.cfg.Database.Enabled {
		return ledger.NewMulti(fileLedger), nil
	}
	repo, err := database.NewPostgresRepository(ctx, a.cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	a.cleanups = append(a.cleanups, repo.Close)
	if err := repo.Migrate(ctx); err != nil {
		return nil, err
	}
	a.logger.Info("Postgres trade ledger enabled", "host", a.cfg.Database.Host, "db", a.cfg.Database.DBName)
	return ledger.NewMulti(fileLedger, repo), nil
}

// Engine returns the scan loop.
func (a *App) Engine() *arbitrage.Engine {
	return a.engine
}

// Run connects the exchanges and runs the scan loop until ctx is cancelled.
// The ledger is archived on the way out when archiving is enabled.
func (a *App) Run(ctx context.Context) error {
	a.collector.Connect(ctx)
	defer a.collector.Disconnect()

	a.logger.Info("Scanner started",
		"symbols", a.cfg.Scanner.Symbols,
		"exchanges", len(a.cfg.Exchanges),
		"mode", a.cfg.Scanner.TradingMode,
		"positionSize", a.cfg.Scanner.PositionSize,
		"ledger", a.ledger.Path(),
	)
	err := a.engine.Run(ctx)

	if a.archiver != nil {
		archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
		defer cancel()
		if _, aerr := a.archiver.ArchiveFile(archiveCtx, a.ledger.Path(), time.Now()); aerr != nil {
			a.logger.Error("Failed to archive ledger", "error", aerr)
		}
	}
	return err
}

// Close releases every connection opened by New, most recent first.
func (a *App) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}

// OpenReader returns the trade history used by reporting commands: Postgres
// when fromDB is set, the ledger file otherwise.
func OpenReader(ctx context.Context, cfg config.Config, fromDB bool, logger *slog.Logger) (ledger.Reader, func(), error) {
	if fromDB {
		repo, err := database.NewPostgresRepository(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	}
	l, err := ledger.OpenFileLedger(cfg.Ledger.Path, logger)
	if err != nil {
		return nil, nil, err
	}
	return l, func() {}, nil
}
