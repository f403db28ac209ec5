package simulator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"marketsim/config"
	"marketsim/internal/alerts"
	"marketsim/internal/api"
	"marketsim/internal/market"
	"marketsim/internal/market/memorystore"
	"marketsim/internal/scheduler"
	"marketsim/internal/stream"
	"marketsim/internal/trading"
	"marketsim/pkg/storage/database"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Simulator owns every long-lived component of the process.
type Simulator struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *database.Client
	Registry *memorystore.MemorySymbolStore
	Market   *market.Generator
	Trading  *trading.Engine
	Alerts   *alerts.Evaluator
	Hub      *stream.Hub
	Loop     *scheduler.Loop
	Jobs     *scheduler.Scheduler
	Server   *api.Server
}

// Open connects to the configured database and wires the components.
func Open(cfg *config.Config, logger *zap.Logger) (*Simulator, error) {
	db, err := database.Open(cfg.Database, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	return New(cfg, db, logger), nil
}

// New wires the components around an open database client.
func New(cfg *config.Config, db *database.Client, logger *zap.Logger) *Simulator {
	registry := memorystore.NewSymbolStore()
	gen := market.NewGenerator(db, registry, logger.Named("market"), market.Options{
		Retention: cfg.Market.Retention,
	})
	engine := trading.NewEngine(db, gen, decimal.NewFromFloat(cfg.Paper.StartingCash), logger.Named("trading"))
	hub := stream.NewHub(logger.Named("stream"))
	evaluator := alerts.NewEvaluator(db, alerts.Notifiers{
		alerts.LogNotifier{Logger: logger.Named("alerts")},
		hub,
	}, logger.Named("alerts"))

	return &Simulator{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Registry: registry,
		Market:   gen,
		Trading:  engine,
		Alerts:   evaluator,
		Hub:      hub,
		Loop: &scheduler.Loop{
			Market:    gen,
			Alerts:    evaluator,
			Publisher: hub,
			Interval:  cfg.Market.TickInterval,
			Logger:    logger.Named("tick"),
		},
		Jobs: scheduler.New(logger),
		Server: api.New(api.Config{
			Addr:           cfg.HTTP.Addr,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			Logger:         logger,
			DB:             db,
			Market:         gen,
			Trading:        engine,
			Stream:         hub,
		}),
	}
}

func (s *Simulator) syncJob() *scheduler.SymbolSyncJob {
	return &scheduler.SymbolSyncJob{
		Source:   s.DB,
		Registry: s.Registry,
		Market:   s.Market,
		Logger:   s.Logger.Named("sync"),
	}
}

// Bootstrap seeds the symbols table from config, loads the registry and
// backfills every symbol that has no history yet.
func (s *Simulator) Bootstrap(ctx context.Context) error {
	seed := make([]database.SymbolRecord, 0, len(s.Config.Market.Symbols))
	for _, sym := range s.Config.Market.Symbols {
		seed = append(seed, database.SymbolRecord{Ticker: sym, CompanyName: market.CompanyName(sym)})
	}
	if err := s.DB.EnsureSymbols(ctx, seed); err != nil {
		return fmt.Errorf("seed symbols: %w", err)
	}

	// first sync sees every symbol as new and backfills the empty ones
	if err := s.Jobs.RunNow(ctx, s.syncJob()); err != nil {
		return fmt.Errorf("initial symbol sync: %w", err)
	}
	s.Logger.Info("symbols ready", zap.Strings("symbols", s.Registry.GetAll()))
	return nil
}

// Track adds symbol to the symbols table, backfills it and registers it for
// ticking. It returns the number of points written.
func (s *Simulator) Track(ctx context.Context, symbol string) (int, error) {
	symbol = strings.ToUpper(symbol)
	if symbol == "" {
		return 0, fmt.Errorf("empty symbol")
	}
	rec := database.SymbolRecord{Ticker: symbol, CompanyName: market.CompanyName(symbol)}
	if err := s.DB.EnsureSymbols(ctx, []database.SymbolRecord{rec}); err != nil {
		return 0, fmt.Errorf("seed symbol %s: %w", symbol, err)
	}
	n, err := s.Market.Backfill(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if s.Registry.Add(symbol) {
		s.Logger.Info("tracking symbol", zap.String("symbol", symbol), zap.Int("backfilled", n))
	}
	return n, nil
}

// Run serves HTTP, ticks the market and runs maintenance jobs until ctx is
// cancelled or one of them fails.
func (s *Simulator) Run(ctx context.Context) error {
	if err := s.Bootstrap(ctx); err != nil {
		return err
	}
	if _, err := s.Alerts.Sweep(ctx, s.Market); err != nil {
		s.Logger.Warn("start-up alert sweep failed", zap.Error(err))
	}

	if err := s.Jobs.AddJob(s.Config.Market.SyncSchedule, s.syncJob()); err != nil {
		return fmt.Errorf("register symbol sync: %w", err)
	}
	if err := s.Jobs.AddJob("@every 1m", &scheduler.HealthCheckJob{DB: s.DB, Logger: s.Logger}); err != nil {
		return fmt.Errorf("register health check: %w", err)
	}
	s.Jobs.Start()
	defer s.Jobs.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.Server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := s.Loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	return g.Wait()
}

func (s *Simulator) Close() error {
	return s.DB.Close()
}
