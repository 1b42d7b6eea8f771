package simulated

import (
	"context"
	"testing"
	"time"

	"ta-fetcher/src/logger"
	"ta-fetcher/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	conn chan bool
	done chan []models.MIndicatorResult
}

func (r *recorder) OnConnStatus(ok bool) { r.conn <- ok }
func (r *recorder) OnUpdate(models.IndicatorKind, models.MIndicatorResult, models.MIndicatorResult) {
}
func (r *recorder) OnRcvDone(_ models.IndicatorKind, batch []models.MIndicatorResult) {
	r.done <- batch
}

func newTestConnector(t *testing.T) (*Connector, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Taipei")
	require.NoError(t, err)

	c := NewConnector(loc, nil, logger.NewLogger(nil, "SimulatedTest"))
	c.Delay = time.Millisecond
	// Wednesday 2024-01-03 10:00
	c.Now = func() time.Time { return time.Date(2024, 1, 3, 10, 0, 0, 0, loc) }
	t.Cleanup(func() { c.Close() })
	return c, loc
}

func TestSimulatedHistory(t *testing.T) {
	c, loc := newTestConnector(t)

	key := models.MSubscriptionKey{
		ProductID:     "2330",
		IndicatorType: models.IndicatorSMA,
		BarInterval:   models.BarK1m,
		StartDate:     time.Date(2024, 1, 2, 0, 0, 0, 0, loc),
	}
	batch := c.History(key)

	// Full Tuesday session plus 09:01..10:00 on Wednesday.
	require.Len(t, batch, 270+60)
	assert.Equal(t, 901, batch[0].Bar.TimeSn)
	assert.Equal(t, 1330, batch[269].Bar.TimeSn)
	assert.Equal(t, 20240103, batch[270].Bar.Date)
	for _, r := range batch {
		assert.Equal(t, "2330", r.Bar.Product)
		assert.Equal(t, models.IndicatorSMA, r.Values.Kind())
	}

	// Deterministic
	assert.Equal(t, batch, c.History(key))
}

func TestSimulatedSubscribeDeliversBatch(t *testing.T) {
	c, loc := newTestConnector(t)
	rec := &recorder{conn: make(chan bool, 1), done: make(chan []models.MIndicatorResult, 1)}
	c.SetCallbacks(rec)

	require.Error(t, c.Subscribe(models.MSubscriptionKey{ProductID: "2330", IndicatorType: models.IndicatorSMA}))

	require.NoError(t, c.Login(context.Background(), "", ""))
	assert.True(t, <-rec.conn)

	require.NoError(t, c.Subscribe(models.MSubscriptionKey{
		ProductID:     "2317",
		IndicatorType: models.IndicatorSMA,
		BarInterval:   models.BarK5m,
		StartDate:     time.Date(2024, 1, 3, 0, 0, 0, 0, loc),
	}))

	select {
	case batch := <-rec.done:
		require.Len(t, batch, 12)
		assert.Equal(t, 905, batch[0].Bar.TimeSn)
	case <-time.After(time.Second):
		t.Fatal("no batch")
	}
}

func TestSimulatedTicks(t *testing.T) {
	c, loc := newTestConnector(t)
	rec := &recorder{conn: make(chan bool, 1), done: make(chan []models.MIndicatorResult, 1)}
	c.SetCallbacks(rec)
	require.NoError(t, c.Login(context.Background(), "", ""))
	<-rec.conn

	rows, code, err := c.HistoricalTicks(context.Background(), "2330", time.Date(2024, 1, 2, 0, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, models.RtSuccess, code)
	require.Len(t, rows, 60)
	assert.Equal(t, "09:00:00.250000", rows[0].Datetime.Format("15:04:05.000000"))
	assert.Equal(t, "09:04:30.250000", rows[1].Datetime.Format("15:04:05.000000"))

	_, code, err = c.HistoricalTicks(context.Background(), "2330", time.Date(2024, 1, 3, 0, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, models.RtDataError, code)

	_, code, _ = c.HistoricalTicks(context.Background(), "2330", time.Date(2023, 12, 30, 0, 0, 0, 0, loc))
	assert.Equal(t, models.RtEmptyData, code)
}
