package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketsim/pkg/storage/database"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Side is the threshold an alert fired on.
type Side string

const (
	SideHigh Side = "high"
	SideLow  Side = "low"
)

// PriceLookup resolves the latest close of a symbol.
type PriceLookup interface {
	LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Evaluator fires one-shot alerts when a price crosses their thresholds.
type Evaluator struct {
	db       *database.Client
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewEvaluator(db *database.Client, notifier Notifier, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	return &Evaluator{
		db:       db,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// crossed reports which side of alert price has reached. High is checked first
// and wins when both thresholds are met.
func crossed(alert database.AlertRecord, price decimal.Decimal) (Side, decimal.Decimal, bool) {
	if alert.HighThreshold.Valid && price.GreaterThanOrEqual(alert.HighThreshold.Decimal) {
		return SideHigh, alert.HighThreshold.Decimal, true
	}
	if alert.LowThreshold.Valid && price.LessThanOrEqual(alert.LowThreshold.Decimal) {
		return SideLow, alert.LowThreshold.Decimal, true
	}
	return "", decimal.Zero, false
}

// Evaluate checks the armed alerts of symbol against price, disarms the ones
// that fire in a single transaction and then notifies each of them. It returns
// the number of alerts fired.
func (e *Evaluator) Evaluate(ctx context.Context, symbol string, price decimal.Decimal) (int, error) {
	symbol = strings.ToUpper(symbol)
	now := e.now()

	var fired []Notification
	err := e.db.Transaction(ctx, func(tx *database.Client) error {
		fired = fired[:0]

		armed, err := tx.ListArmedAlerts(ctx, symbol)
		if err != nil {
			return fmt.Errorf("list armed alerts: %w", err)
		}
		for _, alert := range armed {
			side, threshold, ok := crossed(alert, price)
			if !ok {
				continue
			}
			won, err := tx.MarkAlertTriggered(ctx, alert.ID, now, price, string(side))
			if err != nil {
				return fmt.Errorf("mark alert %d triggered: %w", alert.ID, err)
			}
			if !won {
				continue
			}
			fired = append(fired, Notification{
				AlertID:        alert.ID,
				UserID:         alert.UserID,
				Target:         alert.NotifyTarget,
				Symbol:         symbol,
				Side:           side,
				Price:          price,
				Threshold:      threshold,
				AlertCreatedAt: alert.CreatedAt,
				TriggeredAt:    now,
			})
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("evaluate alerts for %s: %w", symbol, err)
	}

	for _, n := range fired {
		if err := e.notifier.Notify(ctx, n); err != nil {
			e.logger.Error("failed to deliver alert notification",
				zap.Uint("alert_id", n.AlertID),
				zap.String("symbol", n.Symbol),
				zap.String("target", n.Target),
				zap.Error(err))
		}
	}
	return len(fired), nil
}

// Sweep evaluates every symbol that has armed alerts against its latest
// close. Symbols without a price are skipped.
func (e *Evaluator) Sweep(ctx context.Context, prices PriceLookup) (int, error) {
	symbols, err := e.db.ArmedAlertSymbols(ctx)
	if err != nil {
		return 0, fmt.Errorf("armed alert symbols: %w", err)
	}

	var (
		total int
		errs  []error
	)
	for _, symbol := range symbols {
		price, err := prices.LatestPrice(ctx, symbol)
		if err != nil {
			e.logger.Debug("skipping alert sweep for symbol without price", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		n, err := e.Evaluate(ctx, symbol, price)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		total += n
	}
	if total > 0 {
		e.logger.Info("alert sweep fired alerts", zap.Int("count", total))
	}
	return total, errors.Join(errs...)
}
