package db

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/simple-backtester/internal/candle"
	dbconf "github.com/amirphl/simple-backtester/internal/db/conf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresCandleRoundTrip(t *testing.T) {
	cfg, cleanup := dbconf.NewTestConfig(t)
	require.NotNil(t, cfg)
	defer cleanup()

	ctx := context.Background()
	store, err := New(ctx, *cfg)
	require.NoError(t, err)

	// EnsureSchema is idempotent.
	require.NoError(t, store.EnsureSchema(ctx))

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := testCandles(base, 5, "binance")
	require.NoError(t, store.SaveCandles(ctx, candles))

	got, err := store.GetCandles(ctx, "BTCUSDT", "1h", "binance", base, base.Add(5*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.True(t, got[0].Timestamp.Equal(base))
	assert.Equal(t, candles[4].Close, got[4].Close)

	// Upsert replaces the row.
	updated := candles[2]
	updated.Close = updated.High
	require.NoError(t, store.SaveCandles(ctx, []candle.Candle{updated}))
	got, err = store.GetCandles(ctx, "BTCUSDT", "1h", "", base, base.Add(5*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, updated.High, got[2].Close)

	require.NoError(t, store.DeleteCandlesInRange(ctx, "BTCUSDT", "1h", "binance", base, base.Add(2*time.Hour)))
	got, err = store.GetCandles(ctx, "BTCUSDT", "1h", "", base, base.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestPostgresReplaceCandles(t *testing.T) {
	cfg, cleanup := dbconf.NewTestConfig(t)
	require.NotNil(t, cfg)
	defer cleanup()

	ctx := context.Background()
	store, err := New(ctx, *cfg)
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := base.Add(5 * time.Hour)
	require.NoError(t, store.SaveCandles(ctx, testCandles(base, 5, "binance")))
	require.NoError(t, store.SaveCandles(ctx, testCandles(base, 5, "wallex")))

	// An invalid replacement rolls back the delete as well.
	bad := testCandles(base, 2, "binance")
	bad[1].High = bad[1].Low - 1
	require.Error(t, store.ReplaceCandles(ctx, "BTCUSDT", "1h", "binance", base, end, bad))
	got, err := store.GetCandles(ctx, "BTCUSDT", "1h", "binance", base, end)
	require.NoError(t, err)
	assert.Len(t, got, 5)

	fresh := append(testCandles(base, 2, "binance"), testCandles(base.Add(3*time.Hour), 2, "binance")...)
	require.NoError(t, store.ReplaceCandles(ctx, "BTCUSDT", "1h", "binance", base, end, fresh))
	got, err = store.GetCandles(ctx, "BTCUSDT", "1h", "binance", base, end)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.True(t, got[2].Timestamp.Equal(base.Add(3*time.Hour)))

	other, err := store.GetCandles(ctx, "BTCUSDT", "1h", "wallex", base, end)
	require.NoError(t, err)
	assert.Len(t, other, 5)
}

func TestPostgresTransactionRollback(t *testing.T) {
	cfg, cleanup := dbconf.NewTestConfig(t)
	require.NotNil(t, cfg)
	defer cleanup()

	ctx := context.Background()
	store, err := New(ctx, *cfg)
	require.NoError(t, err)

	tx, err := cfg.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	txCtx := WithTransaction(ctx, tx)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveCandles(txCtx, testCandles(base, 3, "binance")))

	got, err := store.GetCandles(txCtx, "BTCUSDT", "1h", "", base, base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 3)

	require.NoError(t, tx.Rollback())
	got, err = store.GetCandles(ctx, "BTCUSDT", "1h", "", base, base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetTransaction(t *testing.T) {
	assert.Nil(t, GetTransaction(context.Background()))
}
