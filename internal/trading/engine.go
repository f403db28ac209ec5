package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketsim/pkg/storage/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultStartingCash = 100000

	DefaultTradeLimit = 50
	MaxTradeLimit     = 500

	// costScale is the number of decimal places kept on an average cost.
	costScale = 4
)

var hundred = decimal.NewFromInt(100)

// PriceLookup resolves the reference price of a symbol.
type PriceLookup interface {
	LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Engine settles paper orders against the simulated market. Orders and
// resets for one user are serialised in-process; the account row is also
// locked inside each transaction where the database supports it.
type Engine struct {
	db           *database.Client
	prices       PriceLookup
	startingCash decimal.Decimal
	locks        *userLocks
	logger       *zap.Logger

	now   func() time.Time
	newID func() string
}

func NewEngine(db *database.Client, prices PriceLookup, startingCash decimal.Decimal, logger *zap.Logger) *Engine {
	if !startingCash.IsPositive() {
		startingCash = decimal.NewFromInt(DefaultStartingCash)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:           db,
		prices:       prices,
		startingCash: startingCash,
		locks:        newUserLocks(),
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
	}
}

// GetOrCreateAccount returns the user's account, opening it with the starting
// cash on first use.
func (e *Engine) GetOrCreateAccount(ctx context.Context, userID int64) (*Account, error) {
	rec, err := e.account(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toAccount(rec), nil
}

func (e *Engine) account(ctx context.Context, userID int64) (*database.AccountRecord, error) {
	rec, created, err := e.db.GetOrCreateAccount(ctx, userID, e.startingCash)
	if err != nil {
		return nil, fmt.Errorf("get or create account: %w", err)
	}
	if created {
		e.logger.Info("opened paper account",
			zap.Int64("user_id", userID),
			zap.String("cash", e.startingCash.String()))
	}
	return rec, nil
}

// PlaceOrder validates the order and routes it to ExecuteBuy or ExecuteSell.
func (e *Engine) PlaceOrder(ctx context.Context, userID int64, order Order) (*OrderResult, error) {
	if err := order.normalize(); err != nil {
		return nil, err
	}
	if order.Side == SideBuy {
		return e.ExecuteBuy(ctx, userID, order.Symbol, order.Quantity, order.Type, order.LimitPrice)
	}
	return e.ExecuteSell(ctx, userID, order.Symbol, order.Quantity, order.Type, order.LimitPrice)
}

// ExecuteBuy fills a buy in full or rejects it without touching any state.
func (e *Engine) ExecuteBuy(ctx context.Context, userID int64, symbol string, quantity int64, orderType OrderType, limit *decimal.Decimal) (*OrderResult, error) {
	order := Order{Symbol: symbol, Side: SideBuy, Type: orderType, Quantity: quantity, LimitPrice: limit}
	if err := order.normalize(); err != nil {
		return nil, err
	}

	unlock := e.locks.lock(userID)
	defer unlock()

	account, err := e.account(ctx, userID)
	if err != nil {
		return nil, err
	}

	reference, err := e.prices.LatestPrice(ctx, order.Symbol)
	if err != nil {
		return nil, fmt.Errorf("reference price for %s: %w", order.Symbol, err)
	}

	price := reference
	if order.Type == OrderLimit {
		if order.LimitPrice.LessThan(reference) {
			return rejected(account.CashBalance, &Rejection{
				Code:           NotFilled,
				Message:        fmt.Sprintf("buy limit %s is below the market price %s", order.LimitPrice, reference),
				LimitPrice:     ptr(*order.LimitPrice),
				ReferencePrice: ptr(reference),
			}), nil
		}
		price = *order.LimitPrice
	}

	cost := price.Mul(decimal.NewFromInt(order.Quantity))

	var result *OrderResult
	err = e.db.Transaction(ctx, func(tx *database.Client) error {
		acct, err := tx.LockAccount(ctx, userID)
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}
		if cost.GreaterThan(acct.CashBalance) {
			result = rejected(acct.CashBalance, &Rejection{
				Code:      InsufficientFunds,
				Message:   fmt.Sprintf("order costs %s but only %s cash is available", cost, acct.CashBalance),
				Required:  ptr(cost),
				Available: ptr(acct.CashBalance),
			})
			return nil
		}

		cash := acct.CashBalance.Sub(cost)
		if err := tx.UpdateCashBalance(ctx, acct.ID, cash); err != nil {
			return fmt.Errorf("debit cash: %w", err)
		}

		position, err := tx.GetPosition(ctx, acct.ID, order.Symbol)
		switch {
		case errors.Is(err, database.ErrNotFound):
			position = &database.PositionRecord{
				AccountID:   acct.ID,
				Symbol:      order.Symbol,
				Quantity:    order.Quantity,
				AverageCost: price,
			}
		case err != nil:
			return fmt.Errorf("load position: %w", err)
		default:
			held := decimal.NewFromInt(position.Quantity)
			total := position.Quantity + order.Quantity
			position.AverageCost = held.Mul(position.AverageCost).Add(cost).Div(decimal.NewFromInt(total)).Round(costScale)
			position.Quantity = total
		}
		if err := tx.SavePosition(ctx, position); err != nil {
			return fmt.Errorf("save position: %w", err)
		}

		trade, err := e.recordTrade(ctx, tx, acct.ID, order, price, cost)
		if err != nil {
			return err
		}
		result = &OrderResult{Accepted: true, Trade: trade, CashBalance: cash}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("execute buy: %w", err)
	}

	e.logResult(userID, order, result)
	return result, nil
}

// ExecuteSell fills a sell in full or rejects it without touching any state.
// A sell limit is a floor: it fills at the limit only when the market is at or above it.
func (e *Engine) ExecuteSell(ctx context.Context, userID int64, symbol string, quantity int64, orderType OrderType, limit *decimal.Decimal) (*OrderResult, error) {
	order := Order{Symbol: symbol, Side: SideSell, Type: orderType, Quantity: quantity, LimitPrice: limit}
	if err := order.normalize(); err != nil {
		return nil, err
	}

	unlock := e.locks.lock(userID)
	defer unlock()

	account, err := e.account(ctx, userID)
	if err != nil {
		return nil, err
	}

	rej, err := e.checkHolding(ctx, e.db, account.ID, order)
	if err != nil {
		return nil, err
	}
	if rej != nil {
		return rejected(account.CashBalance, rej), nil
	}

	reference, err := e.prices.LatestPrice(ctx, order.Symbol)
	if err != nil {
		return nil, fmt.Errorf("reference price for %s: %w", order.Symbol, err)
	}

	price := reference
	if order.Type == OrderLimit {
		if order.LimitPrice.GreaterThan(reference) {
			return rejected(account.CashBalance, &Rejection{
				Code:           NotFilled,
				Message:        fmt.Sprintf("sell limit %s is above the market price %s", order.LimitPrice, reference),
				LimitPrice:     ptr(*order.LimitPrice),
				ReferencePrice: ptr(reference),
			}), nil
		}
		price = *order.LimitPrice
	}

	proceeds := price.Mul(decimal.NewFromInt(order.Quantity))

	var result *OrderResult
	err = e.db.Transaction(ctx, func(tx *database.Client) error {
		acct, err := tx.LockAccount(ctx, userID)
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}
		// another process may have sold in between
		rej, err := e.checkHolding(ctx, tx, acct.ID, order)
		if err != nil {
			return err
		}
		if rej != nil {
			result = rejected(acct.CashBalance, rej)
			return nil
		}

		position, err := tx.GetPosition(ctx, acct.ID, order.Symbol)
		if err != nil {
			return fmt.Errorf("load position: %w", err)
		}
		if order.Quantity == position.Quantity {
			if err := tx.DeletePosition(ctx, position.ID); err != nil {
				return fmt.Errorf("close position: %w", err)
			}
		} else {
			position.Quantity -= order.Quantity
			if err := tx.SavePosition(ctx, position); err != nil {
				return fmt.Errorf("reduce position: %w", err)
			}
		}

		cash := acct.CashBalance.Add(proceeds)
		if err := tx.UpdateCashBalance(ctx, acct.ID, cash); err != nil {
			return fmt.Errorf("credit cash: %w", err)
		}

		trade, err := e.recordTrade(ctx, tx, acct.ID, order, price, proceeds)
		if err != nil {
			return err
		}
		result = &OrderResult{Accepted: true, Trade: trade, CashBalance: cash}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("execute sell: %w", err)
	}

	e.logResult(userID, order, result)
	return result, nil
}

// checkHolding returns a rejection when the account cannot cover the sell.
func (e *Engine) checkHolding(ctx context.Context, db *database.Client, accountID uint, order Order) (*Rejection, error) {
	position, err := db.GetPosition(ctx, accountID, order.Symbol)
	if errors.Is(err, database.ErrNotFound) {
		return &Rejection{
			Code:      NoPosition,
			Message:   fmt.Sprintf("no open position in %s", order.Symbol),
			Held:      ptr(int64(0)),
			Requested: ptr(order.Quantity),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load position: %w", err)
	}
	if order.Quantity > position.Quantity {
		return &Rejection{
			Code:      InsufficientShares,
			Message:   fmt.Sprintf("cannot sell %d %s, only %d held", order.Quantity, order.Symbol, position.Quantity),
			Held:      ptr(position.Quantity),
			Requested: ptr(order.Quantity),
		}, nil
	}
	return nil, nil
}

func (e *Engine) recordTrade(ctx context.Context, tx *database.Client, accountID uint, order Order, price, total decimal.Decimal) (*Trade, error) {
	rec := &database.TradeRecord{
		TradeID:     e.newID(),
		AccountID:   accountID,
		Symbol:      order.Symbol,
		Side:        string(order.Side),
		Quantity:    order.Quantity,
		Price:       price,
		TotalAmount: total,
		CreatedAt:   e.now(),
	}
	if err := tx.InsertTrade(ctx, rec); err != nil {
		return nil, fmt.Errorf("insert trade: %w", err)
	}
	return toTrade(rec), nil
}

func (e *Engine) logResult(userID int64, order Order, result *OrderResult) {
	if result == nil {
		return
	}
	if !result.Accepted {
		e.logger.Info("order rejected",
			zap.Int64("user_id", userID),
			zap.String("symbol", order.Symbol),
			zap.String("side", string(order.Side)),
			zap.Int64("quantity", order.Quantity),
			zap.String("code", string(result.Rejection.Code)))
		return
	}
	e.logger.Info("order filled",
		zap.Int64("user_id", userID),
		zap.String("trade_id", result.Trade.TradeID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.Int64("quantity", order.Quantity),
		zap.String("price", result.Trade.Price.String()))
}

func rejected(cash decimal.Decimal, rej *Rejection) *OrderResult {
	return &OrderResult{Accepted: false, Rejection: rej, CashBalance: cash}
}

// Reset wipes the user's positions and trades and restores the starting cash.
func (e *Engine) Reset(ctx context.Context, userID int64) (*Account, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	if _, err := e.account(ctx, userID); err != nil {
		return nil, err
	}

	var account *Account
	err := e.db.Transaction(ctx, func(tx *database.Client) error {
		acct, err := tx.LockAccount(ctx, userID)
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}
		if err := tx.ClearHoldings(ctx, acct.ID); err != nil {
			return err
		}
		if err := tx.UpdateCashBalance(ctx, acct.ID, e.startingCash); err != nil {
			return fmt.Errorf("restore cash: %w", err)
		}
		acct.CashBalance = e.startingCash
		account = toAccount(acct)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reset account: %w", err)
	}

	e.logger.Info("reset paper account", zap.Int64("user_id", userID))
	return account, nil
}

// TradeHistory lists the user's trades, newest first. limit <= 0 selects
// DefaultTradeLimit and is capped at MaxTradeLimit.
func (e *Engine) TradeHistory(ctx context.Context, userID int64, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = DefaultTradeLimit
	}
	limit = min(limit, MaxTradeLimit)

	acct, err := e.account(ctx, userID)
	if err != nil {
		return nil, err
	}

	records, err := e.db.ListTrades(ctx, acct.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	trades := make([]Trade, 0, len(records))
	for i := range records {
		trades = append(trades, *toTrade(&records[i]))
	}
	return trades, nil
}

func toAccount(r *database.AccountRecord) *Account {
	return &Account{UserID: r.UserID, CashBalance: r.CashBalance, CreatedAt: r.CreatedAt}
}

func toTrade(r *database.TradeRecord) *Trade {
	return &Trade{
		TradeID:     r.TradeID,
		Symbol:      r.Symbol,
		Side:        Side(r.Side),
		Quantity:    r.Quantity,
		Price:       r.Price,
		TotalAmount: r.TotalAmount,
		CreatedAt:   r.CreatedAt,
	}
}
