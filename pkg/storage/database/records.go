package database

import (
	"time"

	"github.com/shopspring/decimal"
)

// SymbolRecord is a tracked ticker. The registry owner writes it; the simulator only reads.
type SymbolRecord struct {
	ID          uint      `gorm:"primaryKey"`
	Ticker      string    `gorm:"type:varchar(16);not null;uniqueIndex:idx_symbol_ticker"`
	CompanyName string    `gorm:"type:text"`
	AddedAt     time.Time `gorm:"autoCreateTime"`
}

func (SymbolRecord) TableName() string {
	return "symbols"
}

// PricePointRecord is one synthetic trading day for a symbol.
type PricePointRecord struct {
	ID uint `gorm:"primaryKey"`

	// unique index
	Symbol string    `gorm:"type:varchar(16);not null;index:idx_price_symbol_date,unique"`
	Date   time.Time `gorm:"not null;index:idx_price_symbol_date,unique"`

	Open  decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	High  decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Low   decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Close decimal.Decimal `gorm:"type:numeric(18,2);not null"`

	Volume int64 `gorm:"not null"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

func (PricePointRecord) TableName() string {
	return "price_points"
}

// AccountRecord is a user's paper account. At most one per user.
type AccountRecord struct {
	ID          uint            `gorm:"primaryKey"`
	UserID      int64           `gorm:"not null;uniqueIndex:idx_account_user"`
	CashBalance decimal.Decimal `gorm:"type:numeric;not null"`
	CreatedAt   time.Time       `gorm:"autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime"`
}

func (AccountRecord) TableName() string {
	return "paper_accounts"
}

// PositionRecord is an open holding. Rows are deleted, never zeroed, when fully sold.
type PositionRecord struct {
	ID          uint            `gorm:"primaryKey"`
	AccountID   uint            `gorm:"not null;index:idx_position_account_symbol,unique"`
	Symbol      string          `gorm:"type:varchar(16);not null;index:idx_position_account_symbol,unique"`
	Quantity    int64           `gorm:"not null"`
	AverageCost decimal.Decimal `gorm:"type:numeric;not null"`
	CreatedAt   time.Time       `gorm:"autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime"`
}

func (PositionRecord) TableName() string {
	return "paper_positions"
}

// TradeRecord is an immutable ledger entry for one fill.
type TradeRecord struct {
	ID          uint            `gorm:"primaryKey"`
	TradeID     string          `gorm:"type:varchar(36);not null;uniqueIndex:idx_trade_trade_id"`
	AccountID   uint            `gorm:"not null;index:idx_trade_account_created"`
	Symbol      string          `gorm:"type:varchar(16);not null"`
	Side        string          `gorm:"type:varchar(4);not null"` // "buy" or "sell"
	Quantity    int64           `gorm:"not null"`
	Price       decimal.Decimal `gorm:"type:numeric;not null"`
	TotalAmount decimal.Decimal `gorm:"type:numeric;not null"`
	CreatedAt   time.Time       `gorm:"not null;index:idx_trade_account_created"`
}

func (TradeRecord) TableName() string {
	return "paper_trades"
}

// AlertRecord is a one-shot price watch. Once TriggeredAt is set, Active stays false.
type AlertRecord struct {
	ID            uint                `gorm:"primaryKey"`
	UserID        int64               `gorm:"not null;index:idx_alert_user"`
	Symbol        string              `gorm:"type:varchar(16);not null;index:idx_alert_symbol_active"`
	HighThreshold decimal.NullDecimal `gorm:"type:numeric"`
	LowThreshold  decimal.NullDecimal `gorm:"type:numeric"`
	NotifyTarget  string              `gorm:"type:text;not null"`
	Active        bool                `gorm:"not null;index:idx_alert_symbol_active"`
	CreatedAt     time.Time           `gorm:"autoCreateTime"`

	TriggeredAt    *time.Time          `gorm:"index"`
	TriggeredPrice decimal.NullDecimal `gorm:"type:numeric"`
	TriggerSide    *string             `gorm:"type:varchar(4)"` // "high" or "low"
}

func (AlertRecord) TableName() string {
	return "price_alerts"
}
