package simulator

import (
	"context"
	"testing"
	"time"

	"marketsim/config"
	"marketsim/internal/trading"
	"marketsim/pkg/storage/database"
	"marketsim/pkg/storage/database/dbtest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "dev",
		Market: config.MarketConfig{
			Symbols:      []string{"AAPL", "zzz"},
			TickInterval: time.Hour,
			Retention:    30,
			SyncSchedule: "@every 1m",
		},
		Paper: config.PaperConfig{StartingCash: 5000},
		HTTP:  config.HTTPConfig{Addr: "127.0.0.1:0"},
	}
}

// go test -v --run ^TestBootstrapThenTick$
func TestBootstrapThenTick(t *testing.T) {
	db := dbtest.New(t)
	sim := New(testConfig(), db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, sim.Bootstrap(ctx))
	assert.Equal(t, []string{"AAPL", "ZZZ"}, sim.Registry.GetAll())

	rec, err := db.GetSymbol(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", rec.CompanyName)

	for _, sym := range []string{"AAPL", "ZZZ"} {
		count, err := db.CountPricePoints(ctx, sym)
		require.NoError(t, err)
		assert.EqualValues(t, 30, count, sym)
	}

	// bootstrapping twice does not add history
	require.NoError(t, sim.Bootstrap(ctx))

	before, err := sim.Market.LatestPrice(ctx, "AAPL")
	require.NoError(t, err)

	alert := &database.AlertRecord{
		UserID: 1, Symbol: "AAPL", NotifyTarget: "me@example.com",
		LowThreshold: decimal.NewNullDecimal(before.Mul(decimal.NewFromInt(2))),
	}
	require.NoError(t, db.CreateAlert(ctx, alert))

	points := sim.Loop.Tick(ctx)
	assert.Len(t, points, 2)

	got, err := db.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.False(t, got.Active, "any new close is below twice the old one")

	count, err := db.CountPricePoints(ctx, "AAPL")
	require.NoError(t, err)
	assert.EqualValues(t, 30, count)

	res, err := sim.Trading.PlaceOrder(ctx, 1, trading.Order{Symbol: "AAPL", Side: trading.SideBuy, Quantity: 1})
	require.NoError(t, err)
	assert.True(t, res.Accepted || res.Rejection.Code == trading.InsufficientFunds)
}

// go test -v --run ^TestTrackRegistersAndTicksSymbol$
func TestTrackRegistersAndTicksSymbol(t *testing.T) {
	db := dbtest.New(t)
	sim := New(testConfig(), db, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, sim.Bootstrap(ctx))

	n, err := sim.Track(ctx, "nflx")
	require.NoError(t, err)
	assert.Equal(t, 30, n)

	rec, err := db.GetSymbol(ctx, "NFLX")
	require.NoError(t, err)
	assert.Equal(t, "Netflix Inc.", rec.CompanyName)
	assert.Contains(t, sim.Registry.GetAll(), "NFLX")

	// tracking again leaves the history alone
	n, err = sim.Track(ctx, "NFLX")
	require.NoError(t, err)
	assert.Zero(t, n)

	points := sim.Loop.Tick(ctx)
	assert.Len(t, points, 3)

	_, err = sim.Track(ctx, "")
	assert.Error(t, err)
}

// go test -v --run ^TestRunStopsOnCancel$
func TestRunStopsOnCancel(t *testing.T) {
	db := dbtest.New(t)
	sim := New(testConfig(), db, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx) }()

	require.Eventually(t, func() bool {
		count, err := db.CountPricePoints(context.Background(), "ZZZ")
		return err == nil && count == 30
	}, 5*time.Second, 20*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("simulator did not stop")
	}
}
