package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ta-fetcher/src/helpers"
	"ta-fetcher/src/interfaces"
	"ta-fetcher/src/logger"
	"ta-fetcher/src/models"

	"github.com/gorilla/websocket"
)

const (
	dialRetries = 3
	dialDelay   = 500 * time.Millisecond
)

// Stream keepalive defaults. Pongs extend the read deadline, so a quiet but
// healthy stream stays open.
var (
	defaultReadTimeout  = 90 * time.Second
	defaultPingInterval = 30 * time.Second
)

// Connector talks to a vendor gateway: REST for requests and a websocket
// stream for the asynchronous callbacks.
type Connector struct {
	Config   *models.MConfig
	Network  interfaces.INetworkManager
	Logger   *logger.Logger
	Location *time.Location

	ReadTimeout  time.Duration
	PingInterval time.Duration

	callbacks atomic.Value // interfaces.ICallbacks
	token     atomic.Value // string

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// -----------------------------------------------------------------------------

func NewConnector(cfg *models.MConfig, network interfaces.INetworkManager, loc *time.Location, log *logger.Logger) *Connector {
	ctx, cancel := context.WithCancel(context.Background())
	if loc == nil {
		loc = time.UTC
	}
	return &Connector{
		Config:   cfg,
		Network:  network,
		Logger:   log,
		Location: loc,

		ReadTimeout:  defaultReadTimeout,
		PingInterval: defaultPingInterval,

		ctx:    ctx,
		cancel: cancel,
	}
}

// -----------------------------------------------------------------------------

func (c *Connector) Name() string { return "gateway" }

func (c *Connector) SetCallbacks(cb interfaces.ICallbacks) {
	c.callbacks.Store(cb)
}

func (c *Connector) cb() interfaces.ICallbacks {
	cb, _ := c.callbacks.Load().(interfaces.ICallbacks)
	return cb
}

func (c *Connector) endpoint(path string) string {
	return strings.TrimRight(c.Config.Vendor.BaseURL, "/") + path
}

// -----------------------------------------------------------------------------

// Login authenticates over REST and opens the callback stream. The stream's
// conn_status frame completes the login.
func (c *Connector) Login(ctx context.Context, username, password string) error {
	cb := c.cb()
	if cb == nil {
		return fmt.Errorf("callbacks not set")
	}

	body, err := c.Network.PostJSON(ctx, c.endpoint("/login"), map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return helpers.NewVendorError("gateway login", err)
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return helpers.NewVendorError("gateway login: invalid response", err)
	}
	if !resp.OK {
		cb.OnConnStatus(false)
		return fmt.Errorf("%w: %s", helpers.ErrLoginRejected, resp.Message)
	}
	c.token.Store(resp.Token)

	conn, err := helpers.RetryWithBackoff(ctx, "gateway stream dial", dialRetries, dialDelay, func() (*websocket.Conn, error) {
		return c.dial(ctx, resp.Token)
	})
	if err != nil {
		return helpers.NewVendorError("gateway stream", err)
	}

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn
	c.mu.Unlock()

	c.wg.Add(2)
	go c.readLoop(conn)
	go c.pingLoop(conn)
	return nil
}

// -----------------------------------------------------------------------------

func (c *Connector) dial(ctx context.Context, token string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := make(http.Header)
	header.Set("Authorization", "Bearer "+token)
	if ua := c.Config.Network.UserAgent; ua != "" {
		header.Set("User-Agent", ua)
	}

	conn, _, err := dialer.DialContext(ctx, c.Config.Vendor.StreamURL, header)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	return conn, nil
}

// -----------------------------------------------------------------------------

func (c *Connector) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.ReadTimeout))
	})

	for {
		conn.SetReadDeadline(time.Now().Add(c.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			current := c.conn == conn
			c.mu.Unlock()
			if current && c.ctx.Err() == nil {
				c.Logger.Warning("Gateway stream closed: %v", err)
				if cb := c.cb(); cb != nil {
					cb.OnConnStatus(false)
				}
			}
			return
		}
		c.handleMessage(msg)
	}
}

// -----------------------------------------------------------------------------

func (c *Connector) pingLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// -----------------------------------------------------------------------------

func (c *Connector) handleMessage(msg []byte) {
	var f frame
	if err := json.Unmarshal(msg, &f); err != nil {
		c.Logger.Warning("Gateway frame ignored: %v", err)
		return
	}

	cb := c.cb()
	if cb == nil {
		return
	}

	if f.Event == eventConnStatus {
		cb.OnConnStatus(f.OK)
		return
	}

	kind, err := models.ParseIndicatorKind(f.Kind)
	if err != nil {
		c.Logger.Warning("Gateway frame ignored: %v", err)
		return
	}

	switch f.Event {
	case eventUpdate:
		if f.Pre == nil || f.Last == nil {
			c.Logger.Warning("Gateway update without pre/last ignored")
			return
		}
		pre, err1 := decodeResult(kind, *f.Pre, c.Location)
		last, err2 := decodeResult(kind, *f.Last, c.Location)
		if err1 != nil || err2 != nil {
			c.Logger.Warning("Gateway update ignored: %v %v", err1, err2)
			return
		}
		cb.OnUpdate(kind, pre, last)

	case eventRcvDone:
		batch := make([]models.MIndicatorResult, 0, len(f.Batch))
		for _, w := range f.Batch {
			r, err := decodeResult(kind, w, c.Location)
			if err != nil {
				c.Logger.Warning("Gateway bar dropped: %v", err)
				continue
			}
			batch = append(batch, r)
		}
		cb.OnRcvDone(kind, batch)

	default:
		c.Logger.Debug("Gateway event %q ignored", f.Event)
	}
}

// -----------------------------------------------------------------------------

func (c *Connector) request(path string, key models.MSubscriptionKey) error {
	ctx, cancel := context.WithTimeout(c.ctx, time.Duration(c.Config.Network.RequestTimeout)*time.Second)
	defer cancel()

	body, err := c.Network.PostJSON(ctx, c.endpoint(path), map[string]string{
		"token":     c.currentToken(),
		"product":   key.ProductID,
		"indicator": key.IndicatorType.String(),
		"bar":       key.BarInterval.String(),
		"date":      key.DateBegin(),
	})
	if err != nil {
		return helpers.NewVendorError("gateway"+path, err)
	}

	var ack ackResponse
	if err := json.Unmarshal(body, &ack); err != nil {
		return helpers.NewVendorError("gateway"+path+": invalid response", err)
	}
	if !ack.OK {
		return helpers.NewVendorError("gateway"+path+": "+ack.Message, nil)
	}
	return nil
}

func (c *Connector) currentToken() string {
	t, _ := c.token.Load().(string)
	return t
}

// -----------------------------------------------------------------------------

func (c *Connector) Subscribe(key models.MSubscriptionKey) error {
	return c.request("/subscribe", key)
}

func (c *Connector) Unsubscribe(key models.MSubscriptionKey) error {
	return c.request("/unsubscribe", key)
}

// -----------------------------------------------------------------------------

func (c *Connector) HistoricalTicks(ctx context.Context, product string, date time.Time) ([]models.MTickRow, models.RtCode, error) {
	day := date.In(c.Location)
	body, err := c.Network.Get(ctx, c.endpoint("/ticks"), map[string]string{
		"token":   c.currentToken(),
		"product": product,
		"date":    day.Format(models.DateLayout),
	})
	if err != nil {
		return nil, models.RtAPIError, helpers.NewVendorError("gateway ticks", err)
	}

	var resp ticksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, models.RtAPIError, helpers.NewVendorError("gateway ticks: invalid response", err)
	}

	code := models.RtCode(resp.Code)
	if code != models.RtSuccess {
		if code == models.RtDataError || code == models.RtEmptyData {
			return nil, code, nil
		}
		return nil, code, helpers.NewVendorError("gateway ticks: "+resp.Message, nil)
	}

	rows := make([]models.MTickRow, 0, len(resp.Ticks))
	for _, w := range resp.Ticks {
		row, err := decodeTick(w, day)
		if err != nil {
			return nil, models.RtDataError, err
		}
		rows = append(rows, row)
	}
	return rows, models.RtSuccess, nil
}

// -----------------------------------------------------------------------------

func (c *Connector) Close() error {
	c.cancel()

	c.mu.Lock()
	if c.conn != nil {
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}
