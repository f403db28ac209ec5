package trading

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"marketsim/internal/market"
	"marketsim/pkg/storage/database"
	"marketsim/pkg/storage/database/dbtest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePrices struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
}

func (f *fakePrices) set(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = decimal.NewFromFloat(price)
}

func (f *fakePrices) LatestPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", market.ErrNotFound, symbol)
	}
	return p, nil
}

func newTestEngine(t *testing.T) (*Engine, *fakePrices, *database.Client) {
	t.Helper()
	db := dbtest.New(t)
	prices := &fakePrices{prices: map[string]decimal.Decimal{}}
	return NewEngine(db, prices, decimal.NewFromInt(100000), zap.NewNop()), prices, db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s, got %s", want, got}, msgAndArgs...)...)
}

func buy(t *testing.T, e *Engine, user int64, symbol string, qty int64) *OrderResult {
	t.Helper()
	res, err := e.PlaceOrder(context.Background(), user, Order{Symbol: symbol, Side: SideBuy, Quantity: qty})
	require.NoError(t, err)
	return res
}

func sell(t *testing.T, e *Engine, user int64, symbol string, qty int64) *OrderResult {
	t.Helper()
	res, err := e.PlaceOrder(context.Background(), user, Order{Symbol: symbol, Side: SideSell, Quantity: qty})
	require.NoError(t, err)
	return res
}

// go test -v --run ^TestCostBasisScenario$
func TestCostBasisScenario(t *testing.T) {
	engine, prices, db := newTestEngine(t)
	ctx := context.Background()

	prices.set("XYZ", 50)
	res := buy(t, engine, 1, "xyz", 10)
	require.True(t, res.Accepted)
	assertDecimal(t, "99500", res.CashBalance)
	assertDecimal(t, "500", res.Trade.TotalAmount)

	prices.set("XYZ", 70)
	res = buy(t, engine, 1, "XYZ", 10)
	require.True(t, res.Accepted)
	assertDecimal(t, "98800", res.CashBalance)

	acct, err := engine.account(ctx, 1)
	require.NoError(t, err)
	pos, err := db.GetPosition(ctx, acct.ID, "XYZ")
	require.NoError(t, err)
	assert.EqualValues(t, 20, pos.Quantity)
	assertDecimal(t, "60", pos.AverageCost)

	prices.set("XYZ", 80)
	res = sell(t, engine, 1, "XYZ", 15)
	require.True(t, res.Accepted)
	assertDecimal(t, "100000", res.CashBalance)
	assertDecimal(t, "1200", res.Trade.TotalAmount)

	pos, err = db.GetPosition(ctx, acct.ID, "XYZ")
	require.NoError(t, err)
	assert.EqualValues(t, 5, pos.Quantity)
	assertDecimal(t, "60", pos.AverageCost, "a sale leaves the cost basis alone")

	portfolio, err := engine.PortfolioSummary(ctx, 1)
	require.NoError(t, err)
	require.Len(t, portfolio.Positions, 1)
	p := portfolio.Positions[0]
	assertDecimal(t, "400", p.Value)
	assertDecimal(t, "100", p.PnL)
	assertDecimal(t, "33.33", p.PnLPercent)
	assert.False(t, p.PriceStale)
	assertDecimal(t, "100400", portfolio.TotalValue)
	assertDecimal(t, "100", portfolio.TotalPnL)
	assertDecimal(t, "0.1", portfolio.TotalPnLPercent)

	// full close deletes the row
	res = sell(t, engine, 1, "XYZ", 5)
	require.True(t, res.Accepted)
	_, err = db.GetPosition(ctx, acct.ID, "XYZ")
	assert.ErrorIs(t, err, database.ErrNotFound)

	trades, err := engine.TradeHistory(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, trades, 4)
	assert.Equal(t, SideSell, trades[0].Side)
	assert.EqualValues(t, 5, trades[0].Quantity)
}

// go test -v --run ^TestRoundTripIsCashNeutral$
func TestRoundTripIsCashNeutral(t *testing.T) {
	engine, prices, _ := newTestEngine(t)
	prices.set("ABC", 123.45)

	require.True(t, buy(t, engine, 2, "ABC", 17).Accepted)
	res := sell(t, engine, 2, "ABC", 17)
	require.True(t, res.Accepted)
	assertDecimal(t, "100000", res.CashBalance)
}

// go test -v --run ^TestAverageCostIsOrderIndependent$
func TestAverageCostIsOrderIndependent(t *testing.T) {
	engine, prices, db := newTestEngine(t)
	ctx := context.Background()

	run := func(user int64, first, second float64, q1, q2 int64) decimal.Decimal {
		prices.set("AVG", first)
		require.True(t, buy(t, engine, user, "AVG", q1).Accepted)
		prices.set("AVG", second)
		require.True(t, buy(t, engine, user, "AVG", q2).Accepted)
		acct, err := engine.account(ctx, user)
		require.NoError(t, err)
		pos, err := db.GetPosition(ctx, acct.ID, "AVG")
		require.NoError(t, err)
		return pos.AverageCost
	}

	a := run(10, 40, 100, 3, 1)
	b := run(11, 100, 40, 1, 3)
	assertDecimal(t, "55", a)
	assertDecimal(t, "55", b)
}

// go test -v --run ^TestRejectionsLeaveStateUnchanged$
func TestRejectionsLeaveStateUnchanged(t *testing.T) {
	engine, prices, db := newTestEngine(t)
	ctx := context.Background()
	prices.set("XYZ", 100)

	res := buy(t, engine, 3, "XYZ", 1001)
	require.False(t, res.Accepted)
	assert.Equal(t, InsufficientFunds, res.Rejection.Code)
	assertDecimal(t, "100100", *res.Rejection.Required)
	assertDecimal(t, "100000", *res.Rejection.Available)

	res = sell(t, engine, 3, "XYZ", 1)
	require.False(t, res.Accepted)
	assert.Equal(t, NoPosition, res.Rejection.Code)

	require.True(t, buy(t, engine, 3, "XYZ", 5).Accepted)
	res = sell(t, engine, 3, "XYZ", 6)
	require.False(t, res.Accepted)
	assert.Equal(t, InsufficientShares, res.Rejection.Code)
	assert.EqualValues(t, 5, *res.Rejection.Held)
	assert.EqualValues(t, 6, *res.Rejection.Requested)

	limit := dec("99")
	res, err := engine.PlaceOrder(ctx, 3, Order{Symbol: "XYZ", Side: SideBuy, Type: OrderLimit, Quantity: 1, LimitPrice: &limit})
	require.NoError(t, err)
	require.False(t, res.Accepted)
	assert.Equal(t, NotFilled, res.Rejection.Code)
	assertDecimal(t, "100", *res.Rejection.ReferencePrice)

	limit = dec("101")
	res, err = engine.PlaceOrder(ctx, 3, Order{Symbol: "XYZ", Side: SideSell, Type: OrderLimit, Quantity: 1, LimitPrice: &limit})
	require.NoError(t, err)
	require.False(t, res.Accepted)
	assert.Equal(t, NotFilled, res.Rejection.Code)

	acct, err := engine.account(ctx, 3)
	require.NoError(t, err)
	assertDecimal(t, "99500", acct.CashBalance)
	pos, err := db.GetPosition(ctx, acct.ID, "XYZ")
	require.NoError(t, err)
	assert.EqualValues(t, 5, pos.Quantity)

	trades, err := engine.TradeHistory(ctx, 3, 10)
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

// go test -v --run ^TestLimitOrdersFillAtLimit$
func TestLimitOrdersFillAtLimit(t *testing.T) {
	engine, prices, _ := newTestEngine(t)
	ctx := context.Background()
	prices.set("XYZ", 100)

	limit := dec("105")
	res, err := engine.PlaceOrder(ctx, 4, Order{Symbol: "XYZ", Side: SideBuy, Type: OrderLimit, Quantity: 2, LimitPrice: &limit})
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assertDecimal(t, "105", res.Trade.Price)

	limit = dec("95")
	res, err = engine.PlaceOrder(ctx, 4, Order{Symbol: "XYZ", Side: SideSell, Type: OrderLimit, Quantity: 2, LimitPrice: &limit})
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assertDecimal(t, "95", res.Trade.Price)
	assertDecimal(t, "99980", res.CashBalance)
}

// go test -v --run ^TestInvalidOrders$
func TestInvalidOrders(t *testing.T) {
	engine, prices, _ := newTestEngine(t)
	ctx := context.Background()
	prices.set("XYZ", 10)

	zero := decimal.Zero
	cases := []Order{
		{Symbol: "XYZ", Side: SideBuy, Quantity: 0},
		{Symbol: "XYZ", Side: "hold", Quantity: 1},
		{Symbol: "", Side: SideBuy, Quantity: 1},
		{Symbol: "XYZ", Side: SideBuy, Type: "stop", Quantity: 1},
		{Symbol: "XYZ", Side: SideBuy, Type: OrderLimit, Quantity: 1},
		{Symbol: "XYZ", Side: SideBuy, Type: OrderLimit, Quantity: 1, LimitPrice: &zero},
	}
	for _, o := range cases {
		_, err := engine.PlaceOrder(ctx, 5, o)
		assert.ErrorIs(t, err, ErrInvalidOrder, "%+v", o)
	}

	_, err := engine.PlaceOrder(ctx, 5, Order{Symbol: "NOPE", Side: SideBuy, Quantity: 1})
	assert.ErrorIs(t, err, market.ErrNotFound)
}

// go test -v --run ^TestPortfolioFallsBackToCost$
func TestPortfolioFallsBackToCost(t *testing.T) {
	engine, prices, _ := newTestEngine(t)
	ctx := context.Background()

	prices.set("GONE", 20)
	require.True(t, buy(t, engine, 6, "GONE", 10).Accepted)
	prices.mu.Lock()
	delete(prices.prices, "GONE")
	prices.mu.Unlock()

	portfolio, err := engine.PortfolioSummary(ctx, 6)
	require.NoError(t, err)
	require.Len(t, portfolio.Positions, 1)
	assert.True(t, portfolio.Positions[0].PriceStale)
	assertDecimal(t, "200", portfolio.Positions[0].Value)
	assertDecimal(t, "0", portfolio.Positions[0].PnL)
	assertDecimal(t, "100000", portfolio.TotalValue)
	assertDecimal(t, "0", portfolio.TotalPnLPercent)
}

// go test -v --run ^TestResetRestoresStartingCash$
func TestResetRestoresStartingCash(t *testing.T) {
	engine, prices, _ := newTestEngine(t)
	ctx := context.Background()
	prices.set("XYZ", 10)
	require.True(t, buy(t, engine, 7, "XYZ", 100).Accepted)

	acct, err := engine.Reset(ctx, 7)
	require.NoError(t, err)
	assertDecimal(t, "100000", acct.CashBalance)

	portfolio, err := engine.PortfolioSummary(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, portfolio.Positions)
	trades, err := engine.TradeHistory(ctx, 7, 0)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

// go test -v --run ^TestConcurrentBuysNeverOverdraw$
func TestConcurrentBuysNeverOverdraw(t *testing.T) {
	engine, prices, _ := newTestEngine(t)
	ctx := context.Background()
	prices.set("XYZ", 1000)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := engine.PlaceOrder(ctx, 8, Order{Symbol: "XYZ", Side: SideBuy, Quantity: 10})
			if !assert.NoError(t, err) {
				return
			}
			if res.Accepted {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, accepted)
	acct, err := engine.GetOrCreateAccount(ctx, 8)
	require.NoError(t, err)
	assert.True(t, acct.CashBalance.IsZero(), "got %s", acct.CashBalance)
}

// go test -v --run ^TestAverageCostKeepsFixedScale$
func TestAverageCostKeepsFixedScale(t *testing.T) {
	engine, prices, db := newTestEngine(t)
	ctx := context.Background()

	prices.set("XYZ", 60)
	require.True(t, buy(t, engine, 11, "XYZ", 2).Accepted)
	prices.set("XYZ", 70)
	require.True(t, buy(t, engine, 11, "XYZ", 1).Accepted)

	acct, err := engine.GetOrCreateAccount(ctx, 11)
	require.NoError(t, err)
	pos, err := db.GetPosition(ctx, acct.ID, "XYZ")
	require.NoError(t, err)
	assertDecimal(t, "63.3333", pos.AverageCost, "190/3 is stored at four places")
}

// go test -v --run ^TestPortfolioSummaryIsConsistentDuringBuys$
func TestPortfolioSummaryIsConsistentDuringBuys(t *testing.T) {
	engine, prices, _ := newTestEngine(t)
	ctx := context.Background()
	prices.set("XYZ", 100)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			res, err := engine.PlaceOrder(ctx, 12, Order{Symbol: "XYZ", Side: SideBuy, Quantity: 1})
			if !assert.NoError(t, err) || !assert.True(t, res.Accepted) {
				return
			}
		}
	}()

	// with a flat price every buy moves cash into stock at par
	for i := 0; i < 20; i++ {
		portfolio, err := engine.PortfolioSummary(ctx, 12)
		require.NoError(t, err)
		assertDecimal(t, "100000", portfolio.TotalValue)
	}
	wg.Wait()

	portfolio, err := engine.PortfolioSummary(ctx, 12)
	require.NoError(t, err)
	require.Len(t, portfolio.Positions, 1)
	assert.EqualValues(t, 20, portfolio.Positions[0].Quantity)
	assertDecimal(t, "98000", portfolio.CashBalance)
}
