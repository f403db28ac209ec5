package market

import "strings"

var companyNames = map[string]string{
	"AAPL":  "Apple Inc.",
	"GOOGL": "Alphabet Inc.",
	"MSFT":  "Microsoft Corporation",
	"AMZN":  "Amazon.com Inc.",
	"TSLA":  "Tesla Inc.",
	"META":  "Meta Platforms Inc.",
	"NVDA":  "NVIDIA Corporation",
	"NFLX":  "Netflix Inc.",
	"AMD":   "Advanced Micro Devices Inc.",
	"INTC":  "Intel Corporation",
}

// CompanyName returns the display name for a ticker, or "<TICKER> Corporation"
// for tickers it does not know.
func CompanyName(ticker string) string {
	ticker = strings.ToUpper(ticker)
	if name, ok := companyNames[ticker]; ok {
		return name
	}
	return ticker + " Corporation"
}
