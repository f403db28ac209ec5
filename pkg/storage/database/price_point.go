package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"
)

func (c *Client) InsertPricePoint(ctx context.Context, record *PricePointRecord) error {
	tx := c.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "symbol"},
			{Name: "date"},
		},
		DoNothing: true,
	}).Create(record)

	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return fmt.Errorf(
			"duplicate price point skipped: symbol=%s date=%s",
			record.Symbol,
			record.Date.Format(time.DateOnly),
		)
	}

	return nil
}

// InsertPricePoints bulk-inserts a backfilled series.
func (c *Client) InsertPricePoints(ctx context.Context, records []PricePointRecord) error {
	if len(records) == 0 {
		return nil
	}
	return c.DB.WithContext(ctx).CreateInBatches(records, 100).Error
}

// LatestPricePoint returns the newest point for symbol or ErrNotFound.
func (c *Client) LatestPricePoint(ctx context.Context, symbol string) (*PricePointRecord, error) {
	var point PricePointRecord
	err := c.DB.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("date DESC").
		First(&point).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &point, nil
}

func (c *Client) CountPricePoints(ctx context.Context, symbol string) (int64, error) {
	var count int64
	err := c.DB.WithContext(ctx).
		Model(&PricePointRecord{}).
		Where("symbol = ?", symbol).
		Count(&count).Error
	return count, err
}

// TrimPricePoints deletes the oldest points of symbol until at most keep remain.
// It returns the number of deleted points.
func (c *Client) TrimPricePoints(ctx context.Context, symbol string, keep int) (int64, error) {
	count, err := c.CountPricePoints(ctx, symbol)
	if err != nil {
		return 0, err
	}
	excess := count - int64(keep)
	if excess <= 0 {
		return 0, nil
	}

	var ids []uint
	err = c.DB.WithContext(ctx).
		Model(&PricePointRecord{}).
		Where("symbol = ?", symbol).
		Order("date ASC").
		Limit(int(excess)).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}

	tx := c.DB.WithContext(ctx).Where("id IN ?", ids).Delete(&PricePointRecord{})
	return tx.RowsAffected, tx.Error
}

// ListPricePoints returns points of symbol dated on or after since, oldest first.
func (c *Client) ListPricePoints(ctx context.Context, symbol string, since time.Time) ([]PricePointRecord, error) {
	var points []PricePointRecord
	err := c.DB.WithContext(ctx).
		Where("symbol = ? AND date >= ?", symbol, since).
		Order("date ASC").
		Find(&points).Error
	return points, err
}

// RecentPricePoints returns the newest n points of symbol, oldest first.
func (c *Client) RecentPricePoints(ctx context.Context, symbol string, n int) ([]PricePointRecord, error) {
	var points []PricePointRecord
	err := c.DB.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("date DESC").
		Limit(n).
		Find(&points).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}
