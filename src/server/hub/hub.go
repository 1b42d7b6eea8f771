package hub

import (
	"context"
	"net/http"
	"sync"

	"ta-fetcher/src/logger"
	"ta-fetcher/src/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub fans runtime status events out to websocket clients.
// -----------------------------------------------------------------------------

type Hub struct {
	Logger *logger.Logger

	clients    map[*subscriber]struct{}
	broadcast  chan models.MStatusEvent
	register   chan *subscriber
	unregister chan *subscriber
	done       chan struct{}

	// Latest event per source, replayed to new clients
	latest     map[string]models.MStatusEvent
	stateMutex sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewLogger(nil, "Hub")
	}
	return &Hub{
		Logger:     log,
		clients:    make(map[*subscriber]struct{}),
		broadcast:  make(chan models.MStatusEvent, 256),
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		done:       make(chan struct{}),
		latest:     make(map[string]models.MStatusEvent),
	}
}

// -----------------------------------------------------------------------------

// Run is the hub loop; it returns when ctx is done and closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.events)
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			for _, ev := range h.Latest() {
				select {
				case client.events <- ev:
				default:
				}
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.events)
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.events <- message:
				default:
					// Slow consumer, drop it so the hub never blocks
					delete(h.clients, client)
					close(client.events)
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------
// IEventPublisher
// -----------------------------------------------------------------------------

// Publish records ev and queues it for broadcast. Events are dropped when the
// queue is full.
func (h *Hub) Publish(ev models.MStatusEvent) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	h.stateMutex.Lock()
	h.latest[ev.Source] = ev
	h.stateMutex.Unlock()

	select {
	case h.broadcast <- ev:
	default:
		h.Logger.Warning("Broadcast queue full, %s event from %s dropped", ev.Event, ev.Source)
	}
}

// -----------------------------------------------------------------------------

// Latest returns the most recent event of every source.
func (h *Hub) Latest() []models.MStatusEvent {
	h.stateMutex.RLock()
	defer h.stateMutex.RUnlock()

	out := make([]models.MStatusEvent, 0, len(h.latest))
	for _, ev := range h.latest {
		out = append(out, ev)
	}
	return out
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

// HandleWebSocket upgrades the request and attaches a client to the hub.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	sub := newSubscriber(h, conn)
	select {
	case h.register <- sub:
	case <-h.done:
		conn.Close()
		return
	}

	go sub.deliver()
	go sub.listen()
}

// -----------------------------------------------------------------------------
// Commands
// -----------------------------------------------------------------------------

// clientCommand is the only message clients send: {"command":"status","sources":[...]}
type clientCommand struct {
	Command string   `json:"command"`
	Sources []string `json:"sources"`
}

func (h *Hub) handleCommand(sub *subscriber, cmd clientCommand) {
	if cmd.Command != "status" {
		h.Logger.Debug("Ignoring websocket command %q", cmd.Command)
		return
	}

	for _, ev := range h.Latest() {
		if len(cmd.Sources) > 0 && !contains(cmd.Sources, ev.Source) {
			continue
		}
		select {
		case sub.replies <- ev:
		default:
		}
	}
}

// -----------------------------------------------------------------------------

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
