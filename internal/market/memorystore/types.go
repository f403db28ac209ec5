package memorystore

import "time"

// LastPrice is the most recent generated close for a symbol, kept unrounded so
// the random walk does not drift through repeated 2 dp rounding.
type LastPrice struct {
	Price float64   `json:"price"` // unrounded close
	Date  time.Time `json:"date"`  // simulated day the close belongs to
}
