package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/protocol"
)

const (
	defaultWriteTimeout     = 5 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
)

// WSHandler serves players over websocket. The first text frame a player
// sends is its name; every later frame is one answer record.
type WSHandler struct {
	session      *app.Session
	upgrader     websocket.Upgrader
	writeTimeout time.Duration

	mu      sync.Mutex
	conns   map[*websocket.Conn]struct{}
	closing bool
}

func NewWSHandler(session *app.Session, writeTimeout time.Duration) *WSHandler {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &WSHandler{
		session:      session,
		writeTimeout: writeTimeout,
		conns:        make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades HTTP requests to websockets and wires them into the session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "ws: upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	if !h.track(conn) {
		return
	}
	defer h.untrack(conn)
	conn.SetReadLimit(protocol.MaxFrameSize)

	// The request context ends with the handler; the session outlives it.
	ctx := context.WithoutCancel(r.Context())

	name, err := h.readIdentity(conn)
	if err != nil {
		slog.InfoContext(ctx, "ws: handshake failed", "remote", r.RemoteAddr, "error", err)
		h.reject(conn, err)
		return
	}

	peer, err := h.session.Join(ctx, name, &wsConn{conn: conn, timeout: h.writeTimeout})
	if err != nil {
		slog.InfoContext(ctx, "ws: join rejected", "remote", r.RemoteAddr, "player", name, "error", err)
		h.reject(conn, err)
		return
	}
	defer h.session.Leave(ctx, peer)

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.DebugContext(ctx, "ws: read ended", "player", name, "error", err)
			}
			return
		}
		if typ != websocket.TextMessage {
			continue
		}

		ans, err := protocol.DecodeAnswer(data)
		if err != nil {
			slog.WarnContext(ctx, "ws: drop malformed record", "player", name, "error", err)
			continue
		}
		if err := h.session.SubmitAnswer(ctx, name, ans); err != nil {
			slog.DebugContext(ctx, "ws: answer rejected", "player", name, "error", err)
		}
	}
}

// CloseConnections says goodbye to every upgraded connection and closes it,
// ending their read loops. Connections upgraded afterwards are closed at once.
// http.Server.Shutdown does not see hijacked connections, so the server calls
// this on shutdown.
func (h *WSHandler) CloseConnections() {
	h.mu.Lock()
	h.closing = true
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, c := range conns {
		_ = c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.writeTimeout))
		_ = c.Close()
	}
	if len(conns) > 0 {
		slog.Info("ws: closed connections on shutdown", "count", len(conns))
	}
}

func (h *WSHandler) track(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.conns[conn] = struct{}{}
	return true
}

func (h *WSHandler) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

func (h *WSHandler) readIdentity(conn *websocket.Conn) (string, error) {
	_ = conn.SetReadDeadline(time.Now().Add(defaultHandshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	typ, data, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrTransportFailure, err)
	}
	if typ != websocket.TextMessage {
		return "", errors.New("expected a text frame with the player name")
	}
	return protocol.ParseIdentity(data)
}

func (h *WSHandler) reject(conn *websocket.Conn, cause error) {
	b, err := protocol.Encode(protocol.NewError(cause.Error()))
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	_ = conn.WriteMessage(websocket.TextMessage, b)
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, cause.Error()))
}

// wsConn adapts a websocket connection to app.Transport. Gorilla allows one
// concurrent writer, hence the mutex.
type wsConn struct {
	conn    *websocket.Conn
	timeout time.Duration
	mu      sync.Mutex
}

func (c *wsConn) WriteMessage(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransportFailure, err)
	}
	return nil
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
