package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"marketsim/config"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("record not found")

// Client wraps a gorm handle. Inside Transaction the handle is bound to the
// transaction, so every method can be used on either.
type Client struct {
	DB *gorm.DB
}

func NewClient(dialector gorm.Dialector) (*Client, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Client{DB: db}, nil
}

// Open connects using the configured driver, optionally creates the Postgres
// database, applies pool settings and runs AutoMigrate.
func Open(cfg config.DatabaseConfig, env string) (*Client, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		if cfg.CreateDB {
			if err := CreateDatabase(cfg.Postgres, env); err != nil {
				return nil, fmt.Errorf("failed to create database: %w", err)
			}
		}
		dialector = postgres.Open(cfg.Postgres.DSN(env))
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.SQLitePath + "?_busy_timeout=5000&_journal_mode=WAL")
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}

	client, err := NewClient(dialector)
	if err != nil {
		return nil, err
	}

	sqlDB, err := client.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// one writer at a time; sqlite rejects concurrent write transactions
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
	}

	if err := client.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return client, nil
}

// AutoMigrate creates or updates every table the simulator owns.
func (c *Client) AutoMigrate() error {
	if err := c.DB.AutoMigrate(
		&SymbolRecord{},
		&PricePointRecord{},
		&AccountRecord{},
		&PositionRecord{},
		&TradeRecord{},
		&AlertRecord{},
	); err != nil {
		return fmt.Errorf("auto-migrate tables: %w", err)
	}
	return nil
}

// Transaction runs fn inside a database transaction. fn must only use the
// client it is given; any error rolls the whole transaction back.
func (c *Client) Transaction(ctx context.Context, fn func(tx *Client) error) error {
	return c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Client{DB: tx})
	})
}

// SupportsRowLocks reports whether SELECT ... FOR UPDATE is meaningful.
func (c *Client) SupportsRowLocks() bool {
	return c.DB.Dialector.Name() == "postgres"
}

func (c *Client) IsHealthy(ctx context.Context) bool {
	db, err := c.DB.DB()
	if err != nil {
		return false
	}
	return db.PingContext(ctx) == nil
}

func (c *Client) Close() error {
	db, err := c.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	return db.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
