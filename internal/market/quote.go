package market

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketsim/pkg/storage/database"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// trendDays is how many daily changes feed the volatility figures.
const trendDays = 7

// Quote summarises a symbol's latest point against the rest of its series.
type Quote struct {
	Symbol        string          `json:"ticker"`
	CompanyName   string          `json:"company_name"`
	Price         decimal.Decimal `json:"current_price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        int64           `json:"volume"`
	PeriodHigh    decimal.Decimal `json:"period_high"`
	PeriodLow     decimal.Decimal `json:"period_low"`

	// Percent figures over the last trendDays daily closes.
	AvgDailyChange float64 `json:"avg_daily_change"`
	Volatility     float64 `json:"volatility"`

	AsOf time.Time `json:"last_updated"`
}

// Quote reads the stored series of symbol and derives the day change, the
// retention-window range and recent volatility.
func (g *Generator) Quote(ctx context.Context, symbol string) (*Quote, error) {
	symbol = strings.ToUpper(symbol)

	records, err := g.db.RecentPricePoints(ctx, symbol, g.retention)
	if err != nil {
		return nil, fmt.Errorf("recent price points: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}

	last := records[len(records)-1]
	q := &Quote{
		Symbol:      symbol,
		CompanyName: g.companyName(ctx, symbol),
		Price:       last.Close,
		Volume:      last.Volume,
		PeriodHigh:  last.High,
		PeriodLow:   last.Low,
		AsOf:        last.Date.UTC(),
	}

	if len(records) > 1 {
		prev := records[len(records)-2].Close
		q.Change = last.Close.Sub(prev)
		if prev.IsPositive() {
			q.ChangePercent = q.Change.Div(prev).Mul(decimal.NewFromInt(100)).Round(2)
		}
	}

	for _, r := range records {
		q.PeriodHigh = decimal.Max(q.PeriodHigh, r.High)
		q.PeriodLow = decimal.Min(q.PeriodLow, r.Low)
	}

	changes := dailyChanges(records, trendDays)
	if len(changes) > 1 {
		q.AvgDailyChange, q.Volatility = stat.PopMeanStdDev(changes, nil)
	} else if len(changes) == 1 {
		q.AvgDailyChange = changes[0]
	}

	return q, nil
}

// dailyChanges returns the percent close-to-close moves of the newest n days.
func dailyChanges(records []database.PricePointRecord, n int) []float64 {
	start := len(records) - 1 - n
	if start < 0 {
		start = 0
	}
	var changes []float64
	for i := start + 1; i < len(records); i++ {
		prev := records[i-1].Close.InexactFloat64()
		if prev <= 0 {
			continue
		}
		changes = append(changes, (records[i].Close.InexactFloat64()-prev)/prev*100)
	}
	return changes
}

func (g *Generator) companyName(ctx context.Context, symbol string) string {
	rec, err := g.db.GetSymbol(ctx, symbol)
	if err == nil && rec.CompanyName != "" {
		return rec.CompanyName
	}
	return CompanyName(symbol)
}

// Chart returns the points of symbol inside period, counted back from the
// latest simulated day, oldest first.
func (g *Generator) Chart(ctx context.Context, symbol string, period string) ([]PricePoint, error) {
	meta, err := ParsePeriod(period)
	if err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(symbol)

	last, err := g.db.LatestPricePoint(ctx, symbol)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
		}
		return nil, err
	}

	since := last.Date.UTC().AddDate(0, 0, -(meta.Days - 1))
	records, err := g.db.ListPricePoints(ctx, symbol, since)
	if err != nil {
		return nil, fmt.Errorf("list price points: %w", err)
	}

	points := make([]PricePoint, 0, len(records))
	for _, r := range records {
		points = append(points, fromRecord(r))
	}
	return points, nil
}
