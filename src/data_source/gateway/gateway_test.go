package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ta-fetcher/src/config"
	"ta-fetcher/src/logger"
	"ta-fetcher/src/models"
	"ta-fetcher/src/network"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	conn chan bool
	done chan []models.MIndicatorResult
}

func newRecorder() *recorder {
	return &recorder{conn: make(chan bool, 4), done: make(chan []models.MIndicatorResult, 4)}
}

func (r *recorder) OnConnStatus(ok bool) { r.conn <- ok }
func (r *recorder) OnUpdate(models.IndicatorKind, models.MIndicatorResult, models.MIndicatorResult) {
}
func (r *recorder) OnRcvDone(_ models.IndicatorKind, batch []models.MIndicatorResult) {
	r.done <- batch
}

// fakeGateway serves the REST endpoints and the callback stream.
type fakeGateway struct {
	t      *testing.T
	mu     sync.Mutex
	stream *websocket.Conn
	reject bool
}

func (g *fakeGateway) handler() http.Handler {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()

	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if g.reject {
			json.NewEncoder(w).Encode(loginResponse{OK: false, Message: "bad credentials"})
			return
		}
		json.NewEncoder(w).Encode(loginResponse{OK: true, Token: "t1"})
	})

	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer t1" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		g.mu.Lock()
		g.stream = conn
		conn.WriteJSON(frame{Event: eventConnStatus, OK: true})
		g.mu.Unlock()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	mux.HandleFunc("/subscribe", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(ackResponse{OK: true})

		bar := models.MIndicatorResult{
			Kind: models.IndicatorSMA,
			Bar: models.MOHLCRow{
				Date: 20240102, Product: req["product"], TimeSn: 901, TimeSnDply: 901,
				Quantity: 3, Volume: 30, OPrice: 600, HPrice: 601.5, LPrice: 599, CPrice: 600.5,
			},
			Values: models.MMovingAverage{Of: models.IndicatorSMA, Value: 600.25},
		}
		g.mu.Lock()
		defer g.mu.Unlock()
		g.stream.WriteJSON(frame{Event: eventRcvDone, Kind: req["indicator"], Batch: []wireResult{encodeResult(bar)}})
	})

	mux.HandleFunc("/ticks", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("date") == "20240103" {
			w.Write([]byte(`{"code": 2, "message": "today"}`))
			return
		}
		w.Write([]byte(`{"code": 1, "ticks": [
			{"Prod": "2330", "Sequence": 1, "Match_Time": "93000.5", "Match_Price": "600.5", "Match_Quantity": 2, "Match_Volume": 2, "BS": 1, "BP_1_Pre": 600, "SP_1_Pre": 601}
		]}`))
	})

	return mux
}

func newTestConnector(t *testing.T, srv *httptest.Server) (*Connector, *time.Location) {
	t.Helper()

	cfg := config.Defaults()
	cfg.Vendor.Type = "gateway"
	cfg.Vendor.BaseURL = srv.URL
	cfg.Vendor.StreamURL = "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	cfg.Network.MaxRetries = 0

	loc, err := time.LoadLocation("Asia/Taipei")
	require.NoError(t, err)

	log := logger.NewLogger(nil, "GatewayTest")
	c := NewConnector(cfg, network.NewAsyncNetworkManager(cfg, log), loc, log)
	t.Cleanup(func() { c.Close() })
	return c, loc
}

// -----------------------------------------------------------------------------

func TestGatewayLoginSubscribeAndReceive(t *testing.T) {
	gw := &fakeGateway{t: t}
	srv := httptest.NewServer(gw.handler())
	t.Cleanup(srv.Close)

	c, loc := newTestConnector(t, srv)
	rec := newRecorder()
	c.SetCallbacks(rec)

	require.NoError(t, c.Login(context.Background(), "user", "pass"))
	select {
	case ok := <-rec.conn:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("no connection status")
	}

	key := models.MSubscriptionKey{
		ProductID:     "2330",
		IndicatorType: models.IndicatorSMA,
		BarInterval:   models.BarK1m,
		StartDate:     time.Date(2024, 1, 2, 0, 0, 0, 0, loc),
	}
	require.NoError(t, c.Subscribe(key))

	select {
	case batch := <-rec.done:
		require.Len(t, batch, 1)
		r := batch[0]
		assert.Equal(t, "2330", r.Bar.Product)
		assert.Equal(t, 600.5, r.Bar.CPrice)
		assert.Equal(t, "2024-01-02 09:01", r.Bar.Datetime.Format("2006-01-02 15:04"))
		ma, ok := r.Values.(models.MMovingAverage)
		require.True(t, ok)
		assert.Equal(t, 600.25, ma.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("no batch delivered")
	}
}

func TestGatewayQuietStreamStaysOpen(t *testing.T) {
	gw := &fakeGateway{t: t}
	srv := httptest.NewServer(gw.handler())
	t.Cleanup(srv.Close)

	c, loc := newTestConnector(t, srv)
	c.ReadTimeout = 300 * time.Millisecond
	c.PingInterval = 50 * time.Millisecond
	rec := newRecorder()
	c.SetCallbacks(rec)

	require.NoError(t, c.Login(context.Background(), "user", "pass"))
	require.True(t, <-rec.conn)

	// No frames for several read timeouts; only keepalive pongs arrive.
	select {
	case ok := <-rec.conn:
		t.Fatalf("quiet stream reported conn status %v", ok)
	case <-time.After(4 * c.ReadTimeout):
	}

	key := models.MSubscriptionKey{
		ProductID:     "2317",
		IndicatorType: models.IndicatorSMA,
		BarInterval:   models.BarK1m,
		StartDate:     time.Date(2024, 1, 2, 0, 0, 0, 0, loc),
	}
	require.NoError(t, c.Subscribe(key))
	select {
	case batch := <-rec.done:
		require.Len(t, batch, 1)
		assert.Equal(t, "2317", batch[0].Bar.Product)
	case <-time.After(2 * time.Second):
		t.Fatal("no batch delivered after idle period")
	}
}

func TestGatewayLoginRejected(t *testing.T) {
	gw := &fakeGateway{t: t, reject: true}
	srv := httptest.NewServer(gw.handler())
	t.Cleanup(srv.Close)

	c, _ := newTestConnector(t, srv)
	rec := newRecorder()
	c.SetCallbacks(rec)

	err := c.Login(context.Background(), "user", "wrong")
	require.Error(t, err)
	assert.False(t, <-rec.conn)
}

func TestGatewayHistoricalTicks(t *testing.T) {
	gw := &fakeGateway{t: t}
	srv := httptest.NewServer(gw.handler())
	t.Cleanup(srv.Close)

	c, loc := newTestConnector(t, srv)

	rows, code, err := c.HistoricalTicks(context.Background(), "2330", time.Date(2024, 1, 2, 0, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, models.RtSuccess, code)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-01-02 09:30:00.500000", rows[0].Datetime.Format(models.DatetimeLayout))
	assert.Equal(t, 600.5, rows[0].MatchPrice)

	rows, code, err = c.HistoricalTicks(context.Background(), "2330", time.Date(2024, 1, 3, 0, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, models.RtDataError, code)
	assert.Empty(t, rows)
}
