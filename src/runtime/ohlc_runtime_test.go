package runtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ta-fetcher/src/config"
	"ta-fetcher/src/logger"
	"ta-fetcher/src/models"
	"ta-fetcher/src/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type memConfigStore struct {
	mu    sync.Mutex
	state map[string]models.MRuntimeConfig
	saves []models.MRuntimeConfig
}

func newMemConfigStore() *memConfigStore {
	return &memConfigStore{state: make(map[string]models.MRuntimeConfig)}
}

func (m *memConfigStore) SaveRuntimeConfig(_ context.Context, cfg models.MRuntimeConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state[cfg.Name] = cfg
	m.saves = append(m.saves, cfg)
	return nil
}

func (m *memConfigStore) LoadRuntimeConfig(_ context.Context, name string) (models.MRuntimeConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.state[name]
	if !ok {
		return models.MRuntimeConfig{Name: name}, nil
	}
	return cfg, nil
}

func (m *memConfigStore) get(name string) models.MRuntimeConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state[name]
}

func (m *memConfigStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saves)
}

type staticCatalog []string

func (c staticCatalog) Name() string { return "static" }
func (c staticCatalog) List(context.Context) ([]string, error) {
	return append([]string(nil), c...), nil
}

// fakeVendor stands in for the session plus the callback bridge: onSubscribe
// decides what to post to the handoff.
type fakeVendor struct {
	ready       atomic.Bool
	handoff     *utils.Handoff
	onSubscribe func(key models.MSubscriptionKey) error

	mu           sync.Mutex
	subscribed   []string
	unsubscribed []string
}

func (f *fakeVendor) Ready() bool { return f.ready.Load() }

func (f *fakeVendor) Key(symbol string, start time.Time) models.MSubscriptionKey {
	return models.MSubscriptionKey{
		ProductID:     symbol,
		IndicatorType: models.IndicatorSMA,
		BarInterval:   models.BarK1m,
		StartDate:     start,
	}
}

func (f *fakeVendor) SubscribeKey(key models.MSubscriptionKey) error {
	f.mu.Lock()
	f.subscribed = append(f.subscribed, key.ProductID)
	f.mu.Unlock()
	if f.onSubscribe != nil {
		return f.onSubscribe(key)
	}
	f.handoff.Post(models.RtSuccess)
	return nil
}

func (f *fakeVendor) UnsubscribeKey(key models.MSubscriptionKey) error {
	f.mu.Lock()
	f.unsubscribed = append(f.unsubscribed, key.ProductID)
	f.mu.Unlock()
	return nil
}

func (f *fakeVendor) subs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subscribed...)
}

func (f *fakeVendor) unsubs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.unsubscribed...)
}

// -----------------------------------------------------------------------------

type ohlcFixture struct {
	rt      *OHLCRuntime
	store   *memConfigStore
	vendor  *fakeVendor
	handoff *utils.Handoff
}

func newOHLCFixture(t *testing.T, universe ...string) *ohlcFixture {
	t.Helper()
	cfg := config.Defaults()
	cfg.OHLC.VendorWaitAttempts = 3
	cfg.OHLC.VendorWaitInterval = 5

	loc, err := time.LoadLocation("Asia/Taipei")
	require.NoError(t, err)

	f := &ohlcFixture{
		store:   newMemConfigStore(),
		handoff: utils.NewHandoff(),
	}
	f.vendor = &fakeVendor{handoff: f.handoff}
	f.vendor.ready.Store(true)

	f.rt = NewOHLCRuntime(cfg, f.store, f.vendor, staticCatalog(universe), f.handoff, nil, loc, logger.NewLogger(nil, "OHLCRuntimeTest"))
	f.rt.Now = func() time.Time { return time.Date(2024, 1, 10, 15, 0, 0, 0, loc) }
	t.Cleanup(func() { f.rt.Stop() })
	return f
}

func waitStopped(t *testing.T, rt interface{ IsRunning() bool }) {
	t.Helper()
	require.Eventually(t, func() bool { return !rt.IsRunning() }, 3*time.Second, 5*time.Millisecond)
}

// -----------------------------------------------------------------------------
// Tests
// -----------------------------------------------------------------------------

func TestFullPassAdvancesCursorBeforeEachSubscribe(t *testing.T) {
	f := newOHLCFixture(t, "2330", "2317")

	var seen []models.MRuntimeConfig
	f.vendor.onSubscribe = func(key models.MSubscriptionKey) error {
		seen = append(seen, f.store.get(OHLCRuntimeName))
		assert.Equal(t, "20240103", key.DateBegin())
		f.handoff.Post(models.RtSuccess)
		return nil
	}

	require.Equal(t, models.StatusOK, f.rt.Start())
	waitStopped(t, f.rt)

	require.Len(t, seen, 2)
	assert.Equal(t, "2330", *seen[0].UpdatingSymbol)
	assert.True(t, seen[0].IsActive)
	assert.Equal(t, "2317", *seen[1].UpdatingSymbol)
	assert.True(t, seen[1].IsActive)

	final := f.store.get(OHLCRuntimeName)
	assert.Nil(t, final.UpdatingSymbol)
	assert.False(t, final.IsActive)

	assert.Equal(t, []string{"2330", "2317"}, f.vendor.subs())
	assert.Equal(t, []string{"2330", "2317"}, f.vendor.unsubs())
	assert.Equal(t, models.MStatusData{Name: OHLCRuntimeName, Active: false, Status: "Stopped."}, f.rt.Status())
}

func TestResumeAtPersistedCursor(t *testing.T) {
	f := newOHLCFixture(t, "2330", "2317", "1101")
	cursor := "2317"
	require.NoError(t, f.store.SaveRuntimeConfig(context.Background(), models.MRuntimeConfig{
		Name: OHLCRuntimeName, IsActive: true, UpdatingSymbol: &cursor,
	}))

	loaded, err := f.rt.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, loaded.IsActive)
	waitStopped(t, f.rt)

	assert.Equal(t, []string{"2317", "1101"}, f.vendor.subs())
}

func TestLoadInactiveDoesNotStart(t *testing.T) {
	f := newOHLCFixture(t, "2330")
	cursor := "2330"
	require.NoError(t, f.store.SaveRuntimeConfig(context.Background(), models.MRuntimeConfig{
		Name: OHLCRuntimeName, IsActive: false, UpdatingSymbol: &cursor,
	}))

	_, err := f.rt.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, f.rt.IsRunning())
	assert.Equal(t, map[string]interface{}{"is_active": false, "updating_symbol": "2330"}, f.rt.Info())
}

func TestUnknownCursorStartsFromHead(t *testing.T) {
	f := newOHLCFixture(t, "2330", "2317")
	cursor := "9999"
	require.NoError(t, f.store.SaveRuntimeConfig(context.Background(), models.MRuntimeConfig{
		Name: OHLCRuntimeName, IsActive: true, UpdatingSymbol: &cursor,
	}))

	_, err := f.rt.Load(context.Background())
	require.NoError(t, err)
	waitStopped(t, f.rt)
	assert.Equal(t, []string{"2330", "2317"}, f.vendor.subs())
}

func TestStartStopStateConflicts(t *testing.T) {
	f := newOHLCFixture(t, "2330", "2317")
	subscribed := make(chan struct{}, 1)
	f.vendor.onSubscribe = func(models.MSubscriptionKey) error {
		subscribed <- struct{}{}
		return nil // never completes
	}

	assert.Equal(t, models.StatusServiceNotRunning, f.rt.Stop())
	assert.Zero(t, f.store.saveCount())

	require.Equal(t, models.StatusOK, f.rt.Start())
	assert.Equal(t, models.StatusServiceIsRunning, f.rt.Start())

	<-subscribed
	assert.Equal(t, models.MStatusData{Name: OHLCRuntimeName, Active: true, Status: "Updating: 2330"}, f.rt.Status())

	assert.Equal(t, models.StatusAccepted, f.rt.Stop())
	assert.False(t, f.rt.IsRunning())
	assert.Equal(t, []string{"2330"}, f.vendor.subs())
	assert.Equal(t, []string{"2330"}, f.vendor.unsubs())

	persisted := f.store.get(OHLCRuntimeName)
	require.NotNil(t, persisted.UpdatingSymbol)
	assert.Equal(t, "2330", *persisted.UpdatingSymbol)
	assert.False(t, persisted.IsActive)

	assert.Equal(t, models.StatusServiceNotRunning, f.rt.Stop())
}

func TestStaleTokenIsDrainedBeforeSubscribe(t *testing.T) {
	f := newOHLCFixture(t, "2330")
	f.handoff.Post(models.RtDataError)

	subscribed := make(chan struct{}, 1)
	f.vendor.onSubscribe = func(models.MSubscriptionKey) error {
		subscribed <- struct{}{}
		return nil
	}

	require.Equal(t, models.StatusOK, f.rt.Start())
	<-subscribed
	time.Sleep(20 * time.Millisecond)
	assert.True(t, f.rt.IsRunning(), "stale token must not complete the symbol")

	f.handoff.Post(models.RtSuccess)
	waitStopped(t, f.rt)
}

func TestVendorNeverReadyExitsSilently(t *testing.T) {
	f := newOHLCFixture(t, "2330")
	f.vendor.ready.Store(false)

	require.Equal(t, models.StatusOK, f.rt.Start())
	waitStopped(t, f.rt)

	assert.Empty(t, f.vendor.subs())
	assert.Zero(t, f.store.saveCount())
}

func TestSubscribeFailureAdvances(t *testing.T) {
	f := newOHLCFixture(t, "2330", "2317")
	f.vendor.onSubscribe = func(key models.MSubscriptionKey) error {
		if key.ProductID == "2330" {
			return errors.New("rejected")
		}
		f.handoff.Post(models.RtDataError)
		return nil
	}

	require.Equal(t, models.StatusOK, f.rt.Start())
	waitStopped(t, f.rt)

	assert.Equal(t, []string{"2330", "2317"}, f.vendor.subs())
	assert.Equal(t, []string{"2317"}, f.vendor.unsubs())
	assert.Nil(t, f.store.get(OHLCRuntimeName).UpdatingSymbol)
}

func TestSymbolTimeoutAdvances(t *testing.T) {
	f := newOHLCFixture(t, "2330", "2317")
	f.rt.Config.OHLC.SymbolTimeout = 1
	f.vendor.onSubscribe = func(key models.MSubscriptionKey) error {
		if key.ProductID == "2317" {
			f.handoff.Post(models.RtSuccess)
		}
		return nil
	}

	require.Equal(t, models.StatusOK, f.rt.Start())
	waitStopped(t, f.rt)
	assert.Equal(t, []string{"2330", "2317"}, f.vendor.unsubs())
}

func TestBackfillSymbolLeavesCursorAlone(t *testing.T) {
	f := newOHLCFixture(t, "2330", "2317")

	status, code := f.rt.BackfillSymbol(context.Background(), "1101")
	assert.Equal(t, models.StatusOK, status)
	assert.Equal(t, models.RtSuccess, code)
	assert.Equal(t, []string{"1101"}, f.vendor.subs())
	assert.Zero(t, f.store.saveCount())

	block := make(chan struct{})
	f.vendor.onSubscribe = func(models.MSubscriptionKey) error {
		close(block)
		return nil
	}
	require.Equal(t, models.StatusOK, f.rt.Start())
	<-block
	status, _ = f.rt.BackfillSymbol(context.Background(), "1101")
	assert.Equal(t, models.StatusTaskIsRunning, status)
}

func TestShutdownKeepsPassResumable(t *testing.T) {
	f := newOHLCFixture(t, "2330", "2317")
	subscribed := make(chan struct{}, 1)
	f.vendor.onSubscribe = func(models.MSubscriptionKey) error {
		subscribed <- struct{}{}
		return nil
	}

	require.Equal(t, models.StatusOK, f.rt.Start())
	<-subscribed
	assert.Equal(t, models.StatusAccepted, f.rt.Shutdown())

	stored := f.store.get(OHLCRuntimeName)
	assert.True(t, stored.IsActive)
	require.NotNil(t, stored.UpdatingSymbol)
	assert.Equal(t, "2330", *stored.UpdatingSymbol)
	assert.Equal(t, models.StatusServiceNotRunning, f.rt.Shutdown())
}

func TestBackfillSymbolCancelStopsItsOwnPass(t *testing.T) {
	f := newOHLCFixture(t, "2330")
	ctx, cancel := context.WithCancel(context.Background())
	f.vendor.onSubscribe = func(models.MSubscriptionKey) error {
		cancel()
		return nil
	}

	status, code := f.rt.BackfillSymbol(ctx, "1101")
	assert.Equal(t, models.StatusRequestRejected, status)
	assert.Equal(t, models.RtFail, code)
	assert.False(t, f.rt.IsRunning())
}

func TestFinishedBackfillNeverStopsLaterPass(t *testing.T) {
	f := newOHLCFixture(t, "2330", "2317")

	f.rt.ctrl.Lock()
	f.rt.launch(pass{universe: func(context.Context) ([]string, error) { return []string{"1101"}, nil }})
	oneShot := f.rt.done
	f.rt.ctrl.Unlock()
	<-oneShot

	subscribed := make(chan struct{}, 1)
	f.vendor.onSubscribe = func(models.MSubscriptionKey) error {
		subscribed <- struct{}{}
		return nil
	}
	require.Equal(t, models.StatusOK, f.rt.Start())
	<-subscribed

	assert.False(t, f.rt.stopLaunched(oneShot))
	assert.True(t, f.rt.IsRunning())
	assert.True(t, f.store.get(OHLCRuntimeName).IsActive)
}

func TestStatusWhileWaitingReportsResumedCursor(t *testing.T) {
	f := newOHLCFixture(t, "2330", "2317")
	f.rt.Config.OHLC.VendorWaitAttempts = 1000
	f.vendor.ready.Store(false)
	cursor := "2317"
	require.NoError(t, f.store.SaveRuntimeConfig(context.Background(), models.MRuntimeConfig{
		Name: OHLCRuntimeName, IsActive: true, UpdatingSymbol: &cursor,
	}))

	_, err := f.rt.Load(context.Background())
	require.NoError(t, err)
	require.True(t, f.rt.IsRunning())
	assert.Equal(t, models.MStatusData{Name: OHLCRuntimeName, Active: true, Status: "Updating: 2317"}, f.rt.Status())

	assert.Equal(t, models.StatusAccepted, f.rt.Stop())
	assert.Equal(t, "Stopped.", f.rt.Status().Status)
}
