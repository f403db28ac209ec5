package trading

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PortfolioSummary marks every open position to market. A symbol whose price
// cannot be resolved is valued at its average cost and flagged PriceStale.
// The summary never interleaves with an order of the same user.
func (e *Engine) PortfolioSummary(ctx context.Context, userID int64) (*Portfolio, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	acct, err := e.account(ctx, userID)
	if err != nil {
		return nil, err
	}
	records, err := e.db.ListPositions(ctx, acct.ID)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}

	portfolio := &Portfolio{
		CashBalance: acct.CashBalance.Round(2),
		Positions:   make([]Position, 0, len(records)),
	}

	totalValue := acct.CashBalance
	totalPnL := decimal.Zero
	for _, rec := range records {
		qty := decimal.NewFromInt(rec.Quantity)

		price, err := e.prices.LatestPrice(ctx, rec.Symbol)
		stale := err != nil
		if stale {
			e.logger.Warn("price unavailable, valuing position at cost",
				zap.Int64("user_id", userID), zap.String("symbol", rec.Symbol), zap.Error(err))
			price = rec.AverageCost
		}

		basis := qty.Mul(rec.AverageCost)
		value := qty.Mul(price)
		pnl := value.Sub(basis)

		portfolio.Positions = append(portfolio.Positions, Position{
			Symbol:       rec.Symbol,
			Quantity:     rec.Quantity,
			AverageCost:  rec.AverageCost.Round(2),
			CurrentPrice: price.Round(2),
			Value:        value.Round(2),
			PnL:          pnl.Round(2),
			PnLPercent:   percent(pnl, basis),
			PriceStale:   stale,
		})

		totalValue = totalValue.Add(value)
		totalPnL = totalPnL.Add(pnl)
	}

	portfolio.TotalValue = totalValue.Round(2)
	portfolio.TotalPnL = totalPnL.Round(2)
	portfolio.TotalPnLPercent = percent(totalPnL, totalValue.Sub(totalPnL))
	return portfolio, nil
}

// percent returns part/whole*100 rounded to 2dp, or zero when whole <= 0.
func percent(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(2)
}
