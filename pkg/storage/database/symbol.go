package database

import (
	"context"
	"strings"

	"gorm.io/gorm/clause"
)

// EnsureSymbols inserts the given symbols, leaving existing rows untouched.
func (c *Client) EnsureSymbols(ctx context.Context, symbols []SymbolRecord) error {
	if len(symbols) == 0 {
		return nil
	}
	for i := range symbols {
		symbols[i].Ticker = strings.ToUpper(symbols[i].Ticker)
	}
	return c.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ticker"}},
		DoNothing: true,
	}).Create(&symbols).Error
}

// ListSymbols returns every tracked ticker in alphabetical order.
func (c *Client) ListSymbols(ctx context.Context) ([]string, error) {
	var tickers []string
	err := c.DB.WithContext(ctx).
		Model(&SymbolRecord{}).
		Order("ticker ASC").
		Pluck("ticker", &tickers).Error
	return tickers, err
}

func (c *Client) GetSymbol(ctx context.Context, ticker string) (*SymbolRecord, error) {
	var symbol SymbolRecord
	err := c.DB.WithContext(ctx).
		Where("ticker = ?", strings.ToUpper(ticker)).
		First(&symbol).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &symbol, nil
}
