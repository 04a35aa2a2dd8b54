package sandbox

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/setavenger/zkwizard/internal/rollup"
)

const (
	writeWait   = 10 * time.Second
	clientQueue = 16
)

var upgrader = websocket.Upgrader{
	// the wizard is a desktop app, there is no browser origin to check
	CheckOrigin: func(r *http.Request) bool { return true },
}

// hub fans rollup events out to websocket subscribers.
type hub struct {
	logger zerolog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]chan rollup.RollupEvent
}

func newHub(logger zerolog.Logger) *hub {
	return &hub{
		logger:  logger,
		clients: make(map[*websocket.Conn]chan rollup.RollupEvent),
	}
}

func (h *hub) broadcast(rollupID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, queue := range h.clients {
		select {
		case queue <- rollup.RollupEvent{RollupID: rollupID}:
		default:
			// slow reader, it will catch up through polling
			h.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("dropping rollup event")
		}
	}
}

func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	queue := make(chan rollup.RollupEvent, clientQueue)
	h.mu.Lock()
	h.clients[conn] = queue
	h.mu.Unlock()
	h.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("subscriber connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		// reads only detect the peer going away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
		h.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("subscriber gone")
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case event := <-queue:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}

func (h *hub) subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// close disconnects all subscribers.
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait),
		)
		conn.Close()
	}
}
