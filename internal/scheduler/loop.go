package scheduler

import (
	"context"
	"time"

	"marketsim/internal/market"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Advancer moves every registered symbol forward one simulated day.
type Advancer interface {
	AdvanceAll(ctx context.Context) ([]market.PricePoint, error)
}

// AlertEvaluator checks a fresh close against armed alerts.
type AlertEvaluator interface {
	Evaluate(ctx context.Context, symbol string, price decimal.Decimal) (int, error)
}

// Publisher pushes freshly generated bars to live subscribers.
type Publisher interface {
	PublishPoints(points []market.PricePoint)
}

// Loop is the background tick: one simulated day per Interval of wall clock.
type Loop struct {
	Market    Advancer
	Alerts    AlertEvaluator
	Publisher Publisher // optional
	Interval  time.Duration
	Logger    *zap.Logger
}

// Run ticks once immediately and then every Interval until ctx is cancelled.
// Cancellation is only observed between ticks.
func (l *Loop) Run(ctx context.Context) error {
	l.Tick(ctx)

	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.Logger.Info("tick loop stopped")
			return ctx.Err()
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick advances all symbols, evaluates alerts on every new close and
// publishes the new bars. Failures are logged; the next tick retries.
func (l *Loop) Tick(ctx context.Context) []market.PricePoint {
	// a tick in flight finishes even if ctx is cancelled meanwhile
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	points, err := l.Market.AdvanceAll(ctx)
	if err != nil {
		l.Logger.Warn("tick finished with errors", zap.Error(err))
	}

	fired := 0
	for _, p := range points {
		n, err := l.Alerts.Evaluate(ctx, p.Symbol, p.Close)
		if err != nil {
			l.Logger.Warn("failed to evaluate alerts", zap.String("symbol", p.Symbol), zap.Error(err))
			continue
		}
		fired += n
	}

	if l.Publisher != nil && len(points) > 0 {
		l.Publisher.PublishPoints(points)
	}

	l.Logger.Debug("tick completed",
		zap.Int("advanced", len(points)),
		zap.Int("alerts_fired", fired),
		zap.Duration("took", time.Since(start)))
	return points
}
