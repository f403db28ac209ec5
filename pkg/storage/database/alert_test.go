package database_test

import (
	"context"
	"testing"
	"time"

	"marketsim/pkg/storage/database"
	"marketsim/pkg/storage/database/dbtest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run ^TestMarkAlertTriggeredOnce$
func TestMarkAlertTriggeredOnce(t *testing.T) {
	client := dbtest.New(t)
	ctx := context.Background()

	alert := &database.AlertRecord{
		UserID:        1,
		Symbol:        "xyz",
		HighThreshold: decimal.NewNullDecimal(decimal.NewFromInt(100)),
		NotifyTarget:  "trader@example.com",
	}
	require.NoError(t, client.CreateAlert(ctx, alert))
	assert.Equal(t, "XYZ", alert.Symbol)

	armed, err := client.ListArmedAlerts(ctx, "XYZ")
	require.NoError(t, err)
	require.Len(t, armed, 1)

	symbols, err := client.ArmedAlertSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"XYZ"}, symbols)

	now := time.Now().UTC()
	ok, err := client.MarkAlertTriggered(ctx, alert.ID, now, decimal.NewFromInt(101), "high")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.MarkAlertTriggered(ctx, alert.ID, now, decimal.NewFromInt(150), "high")
	require.NoError(t, err)
	assert.False(t, ok, "a fired alert must not fire again")

	got, err := client.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	require.NotNil(t, got.TriggeredAt)
	require.NotNil(t, got.TriggerSide)
	assert.Equal(t, "high", *got.TriggerSide)
	assert.True(t, got.TriggeredPrice.Valid)
	assert.True(t, got.TriggeredPrice.Decimal.Equal(decimal.NewFromInt(101)))

	armed, err = client.ListArmedAlerts(ctx, "XYZ")
	require.NoError(t, err)
	assert.Empty(t, armed)

	mine, err := client.ListUserAlerts(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
