// Package ws streams audit entries to WebSocket subscribers as the
// ledger seals them. The stream is read-only: intents still go through
// the JSON API, never through the socket.
package ws

import (
	"net/http"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gemimi2525-star/super-platform-sub003/internal/audit"
	"github.com/gemimi2525-star/super-platform-sub003/internal/infrastructure/logging"
	"github.com/gemimi2525-star/super-platform-sub003/internal/infrastructure/monitoring"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origin policy is enforced by the CORS layer in front
	},
}

// subscribeBuffer absorbs bursts; a subscriber that stays this far
// behind starts losing entries rather than stalling the ledger.
const subscribeBuffer = 64

// Handler manages WebSocket connections.
type Handler struct {
	ledger  *audit.Ledger
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewHandler creates a new WebSocket handler.
func NewHandler(ledger *audit.Ledger, log *logging.Logger, metrics *monitoring.Metrics) *Handler {
	if log == nil {
		log = logging.NewNop()
	}
	return &Handler{ledger: ledger, log: log, metrics: metrics}
}

// HandleConnection upgrades the request and forwards sealed entries
// until the peer goes away. A path_glob query narrows the stream to
// matching paths.
func (h *Handler) HandleConnection(c *gin.Context) {
	glob := c.Query("path_glob")
	if glob != "" && !doublestar.ValidatePattern(glob) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid path_glob pattern"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	entries, cancel := h.ledger.Subscribe(subscribeBuffer)
	defer cancel()

	h.send(conn, gin.H{"type": "system", "message": "audit stream connected"})

	// The read loop only signals; all writes happen below so the
	// connection never sees two concurrent writers.
	done := make(chan struct{})
	pings := make(chan struct{}, 1)
	go h.readLoop(conn, pings, done)

	for {
		select {
		case <-done:
			return
		case <-pings:
			if err := h.send(conn, gin.H{"type": "pong"}); err != nil {
				return
			}
		case e, ok := <-entries:
			if !ok {
				h.send(conn, gin.H{"type": "system", "message": "audit stream closed"})
				return
			}
			if glob != "" {
				if match, err := doublestar.Match(glob, e.Path); err != nil || !match {
					continue
				}
			}
			if err := h.send(conn, gin.H{"type": "entry", "entry": e}); err != nil {
				return
			}
		}
	}
}

func (h *Handler) readLoop(conn *websocket.Conn, pings chan<- struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		var msg struct {
			Type string `json:"type"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type == "ping" {
			select {
			case pings <- struct{}{}:
			default:
			}
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, data any) error {
	return conn.WriteJSON(data)
}
