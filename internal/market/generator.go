package market

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"marketsim/internal/market/memorystore"
	"marketsim/pkg/storage/database"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultRetention is the number of daily points kept per symbol.
const DefaultRetention = 365

// Registry lists the symbols the generator advances on every tick.
type Registry interface {
	ListSymbols(ctx context.Context) ([]string, error)
}

type Options struct {
	// Retention caps the stored series per symbol. Zero means DefaultRetention.
	Retention int
	// Rand drives every synthetic draw. Nil seeds a new source from the runtime.
	Rand *rand.Rand
	// Now is the wall clock used to anchor backfills and empty series. Nil means time.Now.
	Now func() time.Time
	// Cache receives the last generated close per symbol. Nil allocates a private cache.
	Cache *memorystore.PriceCache
}

// Generator produces and stores the synthetic daily series. It is the only
// writer of price points.
type Generator struct {
	db        *database.Client
	registry  Registry
	cache     *memorystore.PriceCache
	retention int
	now       func() time.Time
	logger    *zap.Logger

	// mu serialises writes and guards rng
	mu  sync.Mutex
	rng *rand.Rand
}

func NewGenerator(db *database.Client, registry Registry, logger *zap.Logger, opts Options) *Generator {
	g := &Generator{
		db:        db,
		registry:  registry,
		cache:     opts.Cache,
		retention: opts.Retention,
		now:       opts.Now,
		rng:       opts.Rand,
		logger:    logger,
	}
	if g.retention <= 0 {
		g.retention = DefaultRetention
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if g.cache == nil {
		g.cache = memorystore.NewPriceCache()
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	return g
}

// Cache exposes the last-price cache, mainly for publishers that want the
// freshest close without a database read.
func (g *Generator) Cache() *memorystore.PriceCache {
	return g.cache
}

// Backfill fills an empty symbol with a full retention window of daily points
// ending today. It returns the number of points written; a symbol that already
// has data is left alone.
func (g *Generator) Backfill(ctx context.Context, symbol string) (int, error) {
	symbol = strings.ToUpper(symbol)

	g.mu.Lock()
	defer g.mu.Unlock()

	var series []PricePoint
	err := g.db.Transaction(ctx, func(tx *database.Client) error {
		count, err := tx.CountPricePoints(ctx, symbol)
		if err != nil {
			return fmt.Errorf("count price points: %w", err)
		}
		if count > 0 {
			g.logger.Info("backfill skipped, symbol already has data",
				zap.String("symbol", symbol), zap.Int64("points", count))
			return nil
		}

		series = g.synthesizeSeries(symbol, day(g.now()))
		records := make([]database.PricePointRecord, 0, len(series))
		for _, p := range series {
			if err := g.check(p); err != nil {
				return err
			}
			records = append(records, p.toRecord())
		}
		return tx.InsertPricePoints(ctx, records)
	})
	if err != nil {
		return 0, fmt.Errorf("backfill %s: %w", symbol, err)
	}
	if len(series) == 0 {
		return 0, nil
	}

	last := series[len(series)-1]
	g.cache.Set(symbol, memorystore.LastPrice{Price: last.Close.InexactFloat64(), Date: last.Date})
	g.logger.Info("backfilled symbol",
		zap.String("symbol", symbol),
		zap.Int("points", len(series)),
		zap.String("close", last.Close.String()))
	return len(series), nil
}

// synthesizeSeries walks a random seed price forward one day at a time so the
// final point lands on end. Callers hold g.mu.
func (g *Generator) synthesizeSeries(symbol string, end time.Time) []PricePoint {
	series := make([]PricePoint, 0, g.retention)
	price := seedPrice(g.rng)
	start := end.AddDate(0, 0, -(g.retention - 1))
	for i := 0; i < g.retention; i++ {
		b := nextBar(g.rng, price)
		p := b.point(symbol, start.AddDate(0, 0, i))
		series = append(series, p)
		price = p.Close.InexactFloat64()
	}
	return series
}

// Advance appends the next simulated day for symbol and trims the series back
// to the retention window, atomically.
func (g *Generator) Advance(ctx context.Context, symbol string) (PricePoint, error) {
	symbol = strings.ToUpper(symbol)

	g.mu.Lock()
	defer g.mu.Unlock()

	var point PricePoint
	err := g.db.Transaction(ctx, func(tx *database.Client) error {
		var (
			date time.Time
			base float64
		)
		cached, hasCache := g.cache.Get(symbol)

		last, err := tx.LatestPricePoint(ctx, symbol)
		switch {
		case errors.Is(err, database.ErrNotFound):
			date = day(g.now()).AddDate(0, 0, -g.retention)
			if hasCache {
				base = cached.Price
			} else {
				base = seedPrice(g.rng)
			}
		case err != nil:
			return fmt.Errorf("latest price point: %w", err)
		default:
			lastDate := last.Date.UTC()
			date = lastDate.AddDate(0, 0, 1)
			base = last.Close.InexactFloat64()
			if hasCache && !cached.Date.Before(lastDate) {
				base = cached.Price
			}
		}

		point = nextBar(g.rng, base).point(symbol, date)
		if err := g.check(point); err != nil {
			return err
		}

		record := point.toRecord()
		if err := tx.InsertPricePoint(ctx, &record); err != nil {
			return fmt.Errorf("insert price point: %w", err)
		}

		trimmed, err := tx.TrimPricePoints(ctx, symbol, g.retention)
		if err != nil {
			return fmt.Errorf("trim price points: %w", err)
		}
		if trimmed > 0 {
			g.logger.Debug("trimmed price points", zap.String("symbol", symbol), zap.Int64("deleted", trimmed))
		}
		return nil
	})
	if err != nil {
		return PricePoint{}, fmt.Errorf("advance %s: %w", symbol, err)
	}

	g.cache.Set(symbol, memorystore.LastPrice{Price: point.Close.InexactFloat64(), Date: point.Date})
	return point, nil
}

// AdvanceAll advances every registered symbol. A failing symbol is logged and
// reported in the joined error; the others are still advanced.
func (g *Generator) AdvanceAll(ctx context.Context) ([]PricePoint, error) {
	symbols, err := g.registry.ListSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}

	points := make([]PricePoint, 0, len(symbols))
	var errs []error
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		p, err := g.Advance(ctx, symbol)
		if err != nil {
			g.logger.Warn("failed to advance symbol", zap.String("symbol", symbol), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		points = append(points, p)
	}
	return points, errors.Join(errs...)
}

// LatestPrice returns the most recent close of symbol.
func (g *Generator) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	last, err := g.db.LatestPricePoint(ctx, strings.ToUpper(symbol))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return decimal.Zero, fmt.Errorf("%w: %s", ErrNotFound, symbol)
		}
		return decimal.Zero, err
	}
	return last.Close, nil
}

func (g *Generator) check(p PricePoint) error {
	if err := p.Validate(); err != nil {
		g.logger.DPanic("generated invalid price point", zap.String("symbol", p.Symbol), zap.Error(err))
		return err
	}
	return nil
}
