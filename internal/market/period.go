package market

import "fmt"

// Period is a chart window label as used by the API (e.g. "1M").
type Period string

// PeriodMeta holds the label and the number of simulated days a Period covers.
type PeriodMeta struct {
	Label string
	Days  int
}

const (
	Period1D Period = "1D"
	Period1W Period = "1W"
	Period1M Period = "1M"
	Period3M Period = "3M"
	Period1Y Period = "1Y"

	DefaultPeriod = Period1M
)

var validPeriods = map[Period]PeriodMeta{
	Period1D: {Label: "1D", Days: 1},
	Period1W: {Label: "1W", Days: 7},
	Period1M: {Label: "1M", Days: 30},
	Period3M: {Label: "3M", Days: 90},
	Period1Y: {Label: "1Y", Days: 365},
}

// IsValid checks if the Period is a valid predefined window
func (p Period) IsValid() bool {
	_, ok := validPeriods[p]
	return ok
}

// ParsePeriod parses a string into a valid PeriodMeta. An empty string selects DefaultPeriod.
func ParsePeriod(s string) (PeriodMeta, error) {
	if s == "" {
		s = string(DefaultPeriod)
	}
	meta, ok := validPeriods[Period(s)]
	if !ok {
		return PeriodMeta{}, fmt.Errorf("%w: %s", ErrInvalidPeriod, s)
	}
	return meta, nil
}
