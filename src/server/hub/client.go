package hub

import (
	"time"

	"ta-fetcher/src/models"

	"github.com/gorilla/websocket"
)

const (
	eventWriteTimeout = 5 * time.Second
	idleTimeout       = 90 * time.Second
	keepAlive         = 30 * time.Second

	// Clients only send status commands
	maxCommandSize = 4 * 1024

	eventBacklog = 256
	replyBacklog = 16
)

// -----------------------------------------------------------------------------
// subscriber is one websocket connection watching runtime events.
// -----------------------------------------------------------------------------

type subscriber struct {
	hub  *Hub
	conn *websocket.Conn

	// events is closed by the hub when it drops the subscriber
	events chan models.MStatusEvent
	// replies answers status commands and is never closed
	replies chan models.MStatusEvent
}

func newSubscriber(h *Hub, conn *websocket.Conn) *subscriber {
	return &subscriber{
		hub:     h,
		conn:    conn,
		events:  make(chan models.MStatusEvent, eventBacklog),
		replies: make(chan models.MStatusEvent, replyBacklog),
	}
}

// -----------------------------------------------------------------------------

// listen decodes commands until the peer goes away or stays silent past
// idleTimeout, then detaches the subscriber from the hub.
func (s *subscriber) listen() {
	defer s.detach()

	s.conn.SetReadLimit(maxCommandSize)
	s.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})

	for {
		var cmd clientCommand
		if err := s.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.hub.Logger.Info("Dropping websocket subscriber: %v", err)
			}
			return
		}
		s.hub.handleCommand(s, cmd)
	}
}

func (s *subscriber) detach() {
	select {
	case s.hub.unregister <- s:
	case <-s.hub.done:
	}
	s.conn.Close()
	s.hub.Logger.Debug("Subscriber %s detached", s.conn.RemoteAddr())
}

// -----------------------------------------------------------------------------

// deliver writes hub events, command replies and keep-alive pings until the
// hub closes events or a write fails.
func (s *subscriber) deliver() {
	ping := time.NewTicker(keepAlive)
	defer ping.Stop()
	defer s.conn.Close()

	for {
		select {
		case ev, ok := <-s.events:
			if !ok {
				s.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "hub stopped"),
					time.Now().Add(eventWriteTimeout))
				return
			}
			if !s.write(ev) {
				return
			}

		case ev := <-s.replies:
			if !s.write(ev) {
				return
			}

		case <-ping.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventWriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (s *subscriber) write(ev models.MStatusEvent) bool {
	s.conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
	if err := s.conn.WriteJSON(ev); err != nil {
		s.hub.Logger.Info("Write to %s failed: %v", s.conn.RemoteAddr(), err)
		return false
	}
	return true
}
