package database_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketsim/pkg/storage/database"
	"marketsim/pkg/storage/database/dbtest"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run ^TestGetOrCreateAccountIsUnique$
func TestGetOrCreateAccountIsUnique(t *testing.T) {
	client := dbtest.New(t)
	ctx := context.Background()
	cash := decimal.NewFromInt(100000)

	var wg sync.WaitGroup
	ids := make([]uint, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acct, _, err := client.GetOrCreateAccount(ctx, 42, cash)
			if assert.NoError(t, err) {
				ids[i] = acct.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	var count int64
	require.NoError(t, client.DB.Model(&database.AccountRecord{}).Where("user_id = ?", 42).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

// go test -v --run ^TestPositionAndTradeLifecycle$
func TestPositionAndTradeLifecycle(t *testing.T) {
	client := dbtest.New(t)
	ctx := context.Background()

	acct, created, err := client.GetOrCreateAccount(ctx, 7, decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.True(t, created)

	err = client.Transaction(ctx, func(tx *database.Client) error {
		locked, err := tx.LockAccount(ctx, 7)
		if err != nil {
			return err
		}
		if err := tx.UpdateCashBalance(ctx, locked.ID, decimal.NewFromInt(500)); err != nil {
			return err
		}
		if err := tx.SavePosition(ctx, &database.PositionRecord{
			AccountID: locked.ID, Symbol: "XYZ", Quantity: 10, AverageCost: decimal.NewFromInt(50),
		}); err != nil {
			return err
		}
		return tx.InsertTrade(ctx, &database.TradeRecord{
			TradeID: uuid.NewString(), AccountID: locked.ID, Symbol: "XYZ", Side: "buy",
			Quantity: 10, Price: decimal.NewFromInt(50), TotalAmount: decimal.NewFromInt(500),
			CreatedAt: time.Now().UTC(),
		})
	})
	require.NoError(t, err)

	pos, err := client.GetPosition(ctx, acct.ID, "XYZ")
	require.NoError(t, err)
	assert.EqualValues(t, 10, pos.Quantity)

	trades, err := client.ListTrades(ctx, acct.ID, 50)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	require.NoError(t, client.Transaction(ctx, func(tx *database.Client) error {
		return tx.ClearHoldings(ctx, acct.ID)
	}))
	_, err = client.GetPosition(ctx, acct.ID, "XYZ")
	assert.ErrorIs(t, err, database.ErrNotFound)
	trades, err = client.ListTrades(ctx, acct.ID, 50)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

// go test -v --run ^TestTransactionRollsBack$
func TestTransactionRollsBack(t *testing.T) {
	client := dbtest.New(t)
	ctx := context.Background()

	acct, _, err := client.GetOrCreateAccount(ctx, 9, decimal.NewFromInt(1000))
	require.NoError(t, err)

	err = client.Transaction(ctx, func(tx *database.Client) error {
		if err := tx.UpdateCashBalance(ctx, acct.ID, decimal.Zero); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	again, _, err := client.GetOrCreateAccount(ctx, 9, decimal.NewFromInt(5))
	require.NoError(t, err)
	assert.True(t, again.CashBalance.Equal(decimal.NewFromInt(1000)), "got %s", again.CashBalance)
}
