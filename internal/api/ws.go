package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"drainsentry-backend/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// clients are browsers on other origins; the bearer token is the gate
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn serializes writes; alert fanout and the initial delivery can race.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) send(alerts []models.Alert) error {
	payload, err := json.Marshal(gin.H{"type": "alerts", "alerts": alerts})
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, payload)
}

// ServeWS upgrades the request and streams the user's alert collection: the
// current set immediately, then every republish until the client goes away.
func (h *Handler) ServeWS(c *gin.Context) {
	uid := userID(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed for user %s: %v", uid, err)
		return
	}
	ws := &wsConn{conn: conn}
	h.logger.Infof("WebSocket connected for user %s", uid)

	detach := h.alerts.Attach(uid, func(alerts []models.Alert) {
		if err := ws.send(alerts); err != nil {
			h.logger.Errorf("WebSocket send failed for user %s: %v", uid, err)
		}
	})
	defer func() {
		detach()
		conn.Close()
		h.logger.Infof("WebSocket disconnected for user %s", uid)
	}()

	// drain the read side to observe close frames
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
