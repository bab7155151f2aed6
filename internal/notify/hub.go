package notify

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"docqr-backend/internal/shared/server/middleware"
	"docqr-backend/internal/shared/server/respond"
	"docqr-backend/internal/shared/telemetry"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

var errConnClosed = errors.New("connection closed")

// Hub upgrades authenticated requests to websockets and binds each connection
// to its user's group on the broker.
type Hub struct {
	broker   *Broker
	upgrader websocket.Upgrader
}

// NewHub builds a hub. Browser origins must be in allowedOrigins; requests
// without an Origin header (non-browser clients) are accepted.
func NewHub(b *Broker, allowedOrigins []string) *Hub {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[strings.TrimSpace(o)] = struct{}{}
	}
	return &Hub{
		broker: b,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
	}
}

// RegisterRoutes attaches the hub endpoint. The group must run Auth.
func (h *Hub) RegisterRoutes(rg gin.IRoutes) {
	rg.GET("/hubs/documents", h.Serve)
}

// clientMessage is what clients may send: {"type":"join"} or {"type":"leave"}.
type clientMessage struct {
	Type string `json:"type"`
}

// Serve runs one connection until the client goes away. The connection joins
// its user's group on connect and always leaves it on disconnect.
func (h *Hub) Serve(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Unauthorized(c)
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		telemetry.Warn("notify.upgrade_failed", map[string]any{"user_id": userID, "error": err.Error()})
		return
	}

	conn := newWSConn(ws)
	key := GroupKey(userID)
	h.broker.Register(key, conn)
	telemetry.Info("notify.connected", map[string]any{"user_id": userID, "connection_id": conn.ID()})

	go conn.writePump()
	conn.readPump(func(msg clientMessage) {
		switch strings.ToLower(msg.Type) {
		case "join", "joinusergroup":
			h.broker.Register(key, conn)
		case "leave", "leaveusergroup":
			h.broker.Unregister(key, conn.ID())
		}
	})

	h.broker.Unregister(key, conn.ID())
	conn.close()
	telemetry.Info("notify.disconnected", map[string]any{"user_id": userID, "connection_id": conn.ID()})
}

type wsConn struct {
	id        string
	ws        *websocket.Conn
	send      chan Event
	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan Event, sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

// Send queues ev without blocking the publisher.
func (c *wsConn) Send(ev Event) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- ev:
		return nil
	default:
		return ErrSlowSubscriber
	}
}

func (c *wsConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *wsConn) readPump(onMessage func(clientMessage)) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var msg clientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if isDecodeErr(err) {
				// Malformed frame: ignore it and keep reading.
				continue
			}
			return
		}
		onMessage(msg)
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func isDecodeErr(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
