package market

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"
)

const (
	minSeedPrice = 50.0
	maxSeedPrice = 500.0

	maxDailyReturn = 0.03  // close moves within ±3% of the base
	maxOpenGap     = 0.005 // open within ±0.5% of the base
	maxWick        = 0.01  // high/low extend up to 1% past the body

	minVolume = 1_000_000
	maxVolume = 10_000_000
)

// bar is an unrounded synthetic OHLCV day.
type bar struct {
	open, high, low, close float64
	volume                 int64
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func seedPrice(rng *rand.Rand) float64 {
	return uniform(rng, minSeedPrice, maxSeedPrice)
}

// nextBar derives one day from the previous close (base). The OHLC ordering
// holds by construction: high scales up the larger body end, low scales down the smaller.
func nextBar(rng *rand.Rand, base float64) bar {
	closePrice := base * (1 + uniform(rng, -maxDailyReturn, maxDailyReturn))
	open := base * (1 + uniform(rng, -maxOpenGap, maxOpenGap))
	high := math.Max(open, closePrice) * (1 + uniform(rng, 0, maxWick))
	low := math.Min(open, closePrice) * (1 - uniform(rng, 0, maxWick))
	volume := minVolume + rng.Int64N(maxVolume-minVolume+1)

	return bar{open: open, high: high, low: low, close: closePrice, volume: volume}
}

func round2(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

func (b bar) point(symbol string, date time.Time) PricePoint {
	return PricePoint{
		Symbol: symbol,
		Date:   date,
		Open:   round2(b.open),
		High:   round2(b.high),
		Low:    round2(b.low),
		Close:  round2(b.close),
		Volume: b.volume,
	}
}

// day truncates t to its UTC calendar day.
func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
