package database

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CreateAlert stores a new armed alert.
func (c *Client) CreateAlert(ctx context.Context, alert *AlertRecord) error {
	alert.Symbol = strings.ToUpper(alert.Symbol)
	alert.Active = true
	alert.TriggeredAt = nil
	alert.TriggeredPrice = decimal.NullDecimal{}
	alert.TriggerSide = nil
	return c.DB.WithContext(ctx).Create(alert).Error
}

// ListArmedAlerts returns alerts on symbol that are active and have never fired.
func (c *Client) ListArmedAlerts(ctx context.Context, symbol string) ([]AlertRecord, error) {
	var alerts []AlertRecord
	err := c.DB.WithContext(ctx).
		Where("symbol = ? AND active = ? AND triggered_at IS NULL", symbol, true).
		Order("id ASC").
		Find(&alerts).Error
	return alerts, err
}

// ArmedAlertSymbols returns the distinct symbols that have at least one armed alert.
func (c *Client) ArmedAlertSymbols(ctx context.Context) ([]string, error) {
	var symbols []string
	err := c.DB.WithContext(ctx).
		Model(&AlertRecord{}).
		Where("active = ? AND triggered_at IS NULL", true).
		Distinct().
		Order("symbol ASC").
		Pluck("symbol", &symbols).Error
	return symbols, err
}

// MarkAlertTriggered disarms the alert if it is still armed. It reports false
// when another evaluator got there first.
func (c *Client) MarkAlertTriggered(ctx context.Context, id uint, at time.Time, price decimal.Decimal, side string) (bool, error) {
	tx := c.DB.WithContext(ctx).
		Model(&AlertRecord{}).
		Where("id = ? AND active = ? AND triggered_at IS NULL", id, true).
		Updates(map[string]any{
			"active":          false,
			"triggered_at":    at,
			"triggered_price": decimal.NewNullDecimal(price),
			"trigger_side":    side,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

func (c *Client) GetAlert(ctx context.Context, id uint) (*AlertRecord, error) {
	var alert AlertRecord
	if err := c.DB.WithContext(ctx).First(&alert, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &alert, nil
}

// ListUserAlerts returns the user's alerts, newest first.
func (c *Client) ListUserAlerts(ctx context.Context, userID int64) ([]AlertRecord, error) {
	var alerts []AlertRecord
	err := c.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&alerts).Error
	return alerts, err
}
