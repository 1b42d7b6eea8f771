package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ta-fetcher/src/config"
	"ta-fetcher/src/data_source/simulated"
	"ta-fetcher/src/models"
	"ta-fetcher/src/runtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, symbols ...string) *AppContext {
	t.Helper()
	m := config.Defaults()
	m.Storage.DBPath = filepath.Join(t.TempDir(), "ta.db")
	m.Catalog.Symbols = symbols
	m.Market.MIC = "none"
	m.OHLC.VendorWaitInterval = 20
	m.OHLC.VendorWaitAttempts = 100
	m.OHLC.SymbolTimeout = 5

	a, err := New(&config.Config{MConfig: m}, "")
	require.NoError(t, err)
	t.Cleanup(a.Close)

	now := time.Date(2024, 1, 3, 10, 0, 0, 0, a.Config.Location())
	sim := a.Connector.(*simulated.Connector)
	sim.Delay = 5 * time.Millisecond
	sim.Now = func() time.Time { return now }
	a.OHLC.Now = func() time.Time { return now }
	a.Tick.Now = func() time.Time { return now }
	return a
}

// -----------------------------------------------------------------------------

func TestBackfillPassReachesStoreAndCache(t *testing.T) {
	a := newTestApp(t, "2330", "2317")
	ctx := a.Start(context.Background())

	require.Eventually(t, a.Session.Ready, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, models.StatusOK, a.OHLC.Start())
	require.Eventually(t, func() bool { return !a.OHLC.IsRunning() }, 10*time.Second, 10*time.Millisecond)

	for _, symbol := range []string{"2330", "2317"} {
		bars, err := a.Store.QueryOHLC(ctx, symbol, false, 10)
		require.NoError(t, err)
		assert.Len(t, bars, 10, symbol)

		daily, err := a.Store.QueryOHLC(ctx, symbol, true, 0)
		require.NoError(t, err)
		assert.NotEmpty(t, daily, symbol)

		assert.True(t, a.Cache.HasSymbol(symbol), symbol)
	}

	stored, err := a.Store.LoadRuntimeConfig(ctx, runtime.OHLCRuntimeName)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Nil(t, stored.UpdatingSymbol)

	latest := a.Hub.Latest()
	require.Contains(t, latest, runtime.OHLCRuntimeName)
	assert.Equal(t, "completed", latest[runtime.OHLCRuntimeName].Event)
}

func TestStartResumesInterruptedPass(t *testing.T) {
	a := newTestApp(t, "2330", "2317")
	cursor := "2317"
	require.NoError(t, a.Store.SaveRuntimeConfig(context.Background(), models.MRuntimeConfig{
		Name: runtime.OHLCRuntimeName, IsActive: true, UpdatingSymbol: &cursor,
	}))

	ctx := a.Start(context.Background())
	assert.True(t, a.OHLC.IsRunning())
	require.Eventually(t, func() bool { return !a.OHLC.IsRunning() }, 10*time.Second, 10*time.Millisecond)

	bars, err := a.Store.QueryOHLC(ctx, "2330", false, 10)
	require.NoError(t, err)
	assert.Empty(t, bars)

	bars, err = a.Store.QueryOHLC(ctx, "2317", false, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, bars)
}

func TestRestartCancelsContext(t *testing.T) {
	a := newTestApp(t, "2330")
	ctx := a.Start(context.Background())
	assert.False(t, a.RestartRequested())

	a.RequestRestart()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled")
	}
	assert.True(t, a.RestartRequested())
}
