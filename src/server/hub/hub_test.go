package hub

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ta-fetcher/src/logger"
	"ta-fetcher/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubReplaysAndBroadcasts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHub(logger.NewLogger(nil, "HubTest"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	h.Publish(models.MStatusEvent{Source: "OHLCRuntime", Event: "started"})

	engine := gin.New()
	engine.GET("/ws", h.HandleWebSocket)
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var ev models.MStatusEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "started", ev.Event)
	assert.NotEmpty(t, ev.ID)

	h.Publish(models.MStatusEvent{Source: "OHLCRuntime", Event: "updating", Symbol: "2330"})
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "updating", ev.Event)
	assert.Equal(t, "2330", ev.Symbol)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"command": "status", "sources": []string{"OHLCRuntime"}}))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "updating", ev.Event)
}

func TestPublishNeverBlocks(t *testing.T) {
	h := NewHub(logger.NewLogger(nil, "HubTest"))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			h.Publish(models.MStatusEvent{Source: "TickRuntime", Event: "symbol_done"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked without a running hub")
	}
	require.Len(t, h.Latest(), 1)
}
