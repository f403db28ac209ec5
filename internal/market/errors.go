package market

import "errors"

var (
	// ErrNotFound means the symbol has no generated price points.
	ErrNotFound = errors.New("market: symbol has no price data")
	// ErrInvariantViolation means a generated bar broke the OHLC rules. It indicates a bug.
	ErrInvariantViolation = errors.New("market: price point invariant violated")
	ErrInvalidPeriod      = errors.New("market: invalid chart period")
)
