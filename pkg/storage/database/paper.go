package database

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

// GetOrCreateAccount returns the user's account, creating it with startingCash
// when absent. Concurrent callers for one user converge on a single row through
// the unique user_id index.
func (c *Client) GetOrCreateAccount(ctx context.Context, userID int64, startingCash decimal.Decimal) (*AccountRecord, bool, error) {
	account := AccountRecord{UserID: userID, CashBalance: startingCash}
	tx := c.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&account)
	if tx.Error != nil {
		return nil, false, fmt.Errorf("create account: %w", tx.Error)
	}
	created := tx.RowsAffected == 1

	var existing AccountRecord
	if err := c.DB.WithContext(ctx).Where("user_id = ?", userID).First(&existing).Error; err != nil {
		return nil, false, notFound(err)
	}
	return &existing, created, nil
}

// LockAccount reads the user's account, taking a row lock where the dialect
// supports it. Call it inside Transaction.
func (c *Client) LockAccount(ctx context.Context, userID int64) (*AccountRecord, error) {
	q := c.DB.WithContext(ctx)
	if c.SupportsRowLocks() {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var account AccountRecord
	if err := q.Where("user_id = ?", userID).First(&account).Error; err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

func (c *Client) UpdateCashBalance(ctx context.Context, accountID uint, cash decimal.Decimal) error {
	return c.DB.WithContext(ctx).
		Model(&AccountRecord{}).
		Where("id = ?", accountID).
		Update("cash_balance", cash).Error
}

// GetPosition returns the account's position in symbol or ErrNotFound.
func (c *Client) GetPosition(ctx context.Context, accountID uint, symbol string) (*PositionRecord, error) {
	var position PositionRecord
	err := c.DB.WithContext(ctx).
		Where("account_id = ? AND symbol = ?", accountID, symbol).
		First(&position).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &position, nil
}

func (c *Client) ListPositions(ctx context.Context, accountID uint) ([]PositionRecord, error) {
	var positions []PositionRecord
	err := c.DB.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("symbol ASC").
		Find(&positions).Error
	return positions, err
}

// SavePosition inserts a new position or updates quantity and average cost of an existing one.
func (c *Client) SavePosition(ctx context.Context, position *PositionRecord) error {
	return c.DB.WithContext(ctx).Save(position).Error
}

func (c *Client) DeletePosition(ctx context.Context, id uint) error {
	return c.DB.WithContext(ctx).Delete(&PositionRecord{}, id).Error
}

func (c *Client) InsertTrade(ctx context.Context, trade *TradeRecord) error {
	return c.DB.WithContext(ctx).Create(trade).Error
}

// ListTrades returns the account's newest trades first.
func (c *Client) ListTrades(ctx context.Context, accountID uint, limit int) ([]TradeRecord, error) {
	var trades []TradeRecord
	err := c.DB.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&trades).Error
	return trades, err
}

// ClearHoldings deletes every position and trade of the account.
func (c *Client) ClearHoldings(ctx context.Context, accountID uint) error {
	if err := c.DB.WithContext(ctx).Where("account_id = ?", accountID).Delete(&PositionRecord{}).Error; err != nil {
		return fmt.Errorf("delete positions: %w", err)
	}
	if err := c.DB.WithContext(ctx).Where("account_id = ?", accountID).Delete(&TradeRecord{}).Error; err != nil {
		return fmt.Errorf("delete trades: %w", err)
	}
	return nil
}
