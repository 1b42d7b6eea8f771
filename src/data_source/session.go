package datasource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ta-fetcher/src/helpers"
	"ta-fetcher/src/interfaces"
	"ta-fetcher/src/logger"
	"ta-fetcher/src/models"
)

// Session owns the vendor connector, its login state, and the set of
// symbols subscribed through the control surface.
type Session struct {
	Connector interfaces.IVendorConnector
	Config    *models.MConfig
	Logger    *logger.Logger

	indicator models.IndicatorKind
	bar       models.BarKind
	loc       *time.Location

	loggedIn atomic.Bool
	loginMu  sync.Mutex
	pending  chan bool // outcome of the login in flight, if any

	mu         sync.Mutex
	subscribed []models.MSubscriptionKey
}

// -----------------------------------------------------------------------------

func NewSession(cfg *models.MConfig, connector interfaces.IVendorConnector, loc *time.Location, log *logger.Logger) (*Session, error) {
	indicator, err := models.ParseIndicatorKind(cfg.OHLC.IndicatorType)
	if err != nil {
		return nil, err
	}
	bar, err := models.ParseBarKind(cfg.OHLC.BarInterval)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Session{
		Connector: connector,
		Config:    cfg,
		Logger:    log,
		indicator: indicator,
		bar:       bar,
		loc:       loc,
	}, nil
}

// -----------------------------------------------------------------------------

// Name returns the connector name
func (s *Session) Name() string {
	return s.Connector.Name()
}

// -----------------------------------------------------------------------------

// Ready reports whether the vendor session is logged in.
func (s *Session) Ready() bool {
	return s.loggedIn.Load()
}

// -----------------------------------------------------------------------------

// SetConnStatus records a connection-status notification from the vendor.
func (s *Session) SetConnStatus(ok bool) {
	s.loggedIn.Store(ok)

	s.loginMu.Lock()
	pending := s.pending
	s.loginMu.Unlock()

	if pending != nil {
		select {
		case pending <- ok:
		default:
		}
	}

	if ok {
		s.Logger.Info("Vendor %s connected", s.Connector.Name())
	} else {
		s.Logger.Warning("Vendor %s disconnected", s.Connector.Name())
	}
}

// -----------------------------------------------------------------------------

// Connect logs in and waits for the vendor's connection status.
// Returns OK when logged in, REQUEST_REJECTED otherwise.
func (s *Session) Connect(ctx context.Context) models.StatusCode {
	if s.Ready() {
		return models.StatusOK
	}

	pending := make(chan bool, 1)
	s.loginMu.Lock()
	s.pending = pending
	s.loginMu.Unlock()

	defer func() {
		s.loginMu.Lock()
		if s.pending == pending {
			s.pending = nil
		}
		s.loginMu.Unlock()
	}()

	if timeout := time.Duration(s.Config.Vendor.LoginTimeout) * time.Second; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	secrets := s.Config.Secrets
	if err := s.Connector.Login(ctx, secrets.APIUsername, secrets.APIPassword); err != nil {
		s.Logger.Error("Vendor login failed: %v", err)
		return models.StatusRequestRejected
	}

	select {
	case ok := <-pending:
		if ok {
			return models.StatusOK
		}
		s.Logger.Warning("Vendor rejected login")
	case <-ctx.Done():
		s.Logger.Warning("Vendor login did not complete: %v", ctx.Err())
	}
	return models.StatusRequestRejected
}

// -----------------------------------------------------------------------------

// Key builds the subscription key of symbol for the configured indicator
// policy, starting at start.
func (s *Session) Key(symbol string, start time.Time) models.MSubscriptionKey {
	start = start.In(s.loc)
	return models.MSubscriptionKey{
		ProductID:     symbol,
		IndicatorType: s.indicator,
		BarInterval:   s.bar,
		StartDate:     time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, s.loc),
	}
}

// -----------------------------------------------------------------------------

// SubscribeKey requests a feed without recording it in the subscribed set.
func (s *Session) SubscribeKey(key models.MSubscriptionKey) error {
	if !s.Ready() {
		return helpers.ErrNotLoggedIn
	}
	return s.Connector.Subscribe(key)
}

// -----------------------------------------------------------------------------

// UnsubscribeKey cancels a feed requested with SubscribeKey.
func (s *Session) UnsubscribeKey(key models.MSubscriptionKey) error {
	if !s.Ready() {
		return helpers.ErrNotLoggedIn
	}
	return s.Connector.Unsubscribe(key)
}

// -----------------------------------------------------------------------------

func (s *Session) indexOf(symbol string) int {
	for i, k := range s.subscribed {
		if k.ProductID == symbol {
			return i
		}
	}
	return -1
}

// -----------------------------------------------------------------------------

// Subscribe adds symbol to the subscribed set, starting today. Exactly one
// of several concurrent callers for the same symbol is accepted.
func (s *Session) Subscribe(symbol string) (models.StatusCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(symbol) >= 0 {
		return models.StatusSymbolAlreadySubscribed, helpers.ErrSymbolAlreadySubscribed
	}

	key := s.Key(symbol, time.Now())
	if err := s.SubscribeKey(key); err != nil {
		if errors.Is(err, helpers.ErrNotLoggedIn) {
			return models.StatusServiceUnavailable, err
		}
		return models.StatusBadGateway, fmt.Errorf("subscribe %s: %w", symbol, err)
	}

	s.subscribed = append(s.subscribed, key)
	return models.StatusAccepted, nil
}

// -----------------------------------------------------------------------------

// Unsubscribe removes symbol from the subscribed set.
func (s *Session) Unsubscribe(symbol string) (models.StatusCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(symbol)
	if i < 0 {
		return models.StatusSymbolNotSubscribed, helpers.ErrSymbolNotSubscribed
	}

	if err := s.UnsubscribeKey(s.subscribed[i]); err != nil {
		if errors.Is(err, helpers.ErrNotLoggedIn) {
			return models.StatusServiceUnavailable, err
		}
		return models.StatusBadGateway, fmt.Errorf("unsubscribe %s: %w", symbol, err)
	}

	s.subscribed = append(s.subscribed[:i], s.subscribed[i+1:]...)
	return models.StatusAccepted, nil
}

// -----------------------------------------------------------------------------

// List returns the subscribed product ids in subscription order.
func (s *Session) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.subscribed))
	for i, k := range s.subscribed {
		out[i] = k.ProductID
	}
	return out
}

// -----------------------------------------------------------------------------

// SubscribeAll subscribes every symbol not yet subscribed and returns the
// newly added ones. Failures are logged and skipped.
func (s *Session) SubscribeAll(symbols []string) []string {
	var added []string
	for _, symbol := range symbols {
		code, err := s.Subscribe(symbol)
		switch {
		case code == models.StatusAccepted:
			added = append(added, symbol)
		case errors.Is(err, helpers.ErrSymbolAlreadySubscribed):
		default:
			s.Logger.Warning("Subscribe %s failed: %s %v", symbol, code, err)
		}
	}
	return added
}

// -----------------------------------------------------------------------------

// UnsubscribeAll cancels every subscription and empties the set.
func (s *Session) UnsubscribeAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range s.subscribed {
		if err := s.UnsubscribeKey(key); err != nil {
			s.Logger.Warning("Unsubscribe %s failed: %v", key.ProductID, err)
		}
	}
	n := len(s.subscribed)
	s.subscribed = nil
	return n
}

// -----------------------------------------------------------------------------

// HistoricalTicks fetches one day of trades for product.
func (s *Session) HistoricalTicks(ctx context.Context, product string, date time.Time) ([]models.MTickRow, models.RtCode, error) {
	if !s.Ready() {
		return nil, models.RtAPIError, helpers.ErrNotLoggedIn
	}
	return s.Connector.HistoricalTicks(ctx, product, date)
}

// -----------------------------------------------------------------------------

// Close terminates the vendor session
func (s *Session) Close() error {
	s.loggedIn.Store(false)
	return s.Connector.Close()
}
