package market

import (
	"fmt"
	"time"

	"marketsim/pkg/storage/database"

	"github.com/shopspring/decimal"
)

// PricePoint is one synthetic trading day for a symbol.
type PricePoint struct {
	Symbol string          `json:"symbol"`
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// Validate checks high >= max(open, close), low <= min(open, close) and volume > 0.
func (p PricePoint) Validate() error {
	if p.High.LessThan(decimal.Max(p.Open, p.Close)) {
		return fmt.Errorf("%w: %s %s high %s below max(open %s, close %s)",
			ErrInvariantViolation, p.Symbol, p.Date.Format(time.DateOnly), p.High, p.Open, p.Close)
	}
	if p.Low.GreaterThan(decimal.Min(p.Open, p.Close)) {
		return fmt.Errorf("%w: %s %s low %s above min(open %s, close %s)",
			ErrInvariantViolation, p.Symbol, p.Date.Format(time.DateOnly), p.Low, p.Open, p.Close)
	}
	if p.Volume <= 0 {
		return fmt.Errorf("%w: %s %s volume %d", ErrInvariantViolation, p.Symbol, p.Date.Format(time.DateOnly), p.Volume)
	}
	return nil
}

func (p PricePoint) toRecord() database.PricePointRecord {
	return database.PricePointRecord{
		Symbol: p.Symbol,
		Date:   p.Date,
		Open:   p.Open,
		High:   p.High,
		Low:    p.Low,
		Close:  p.Close,
		Volume: p.Volume,
	}
}

func fromRecord(r database.PricePointRecord) PricePoint {
	return PricePoint{
		Symbol: r.Symbol,
		Date:   r.Date.UTC(),
		Open:   r.Open,
		High:   r.High,
		Low:    r.Low,
		Close:  r.Close,
		Volume: r.Volume,
	}
}
