package relay

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/vkotlar/deskbridge/internal/protocol"
)

// maxMessageBytes bounds a single relayed message. Screen frames are
// base64 JPEG and dominate; 8 MiB leaves ample headroom over the frame
// geometry the agent produces.
const maxMessageBytes = 8 << 20

// wsConn adapts *websocket.Conn to the registry's Conn interface. The write
// mutex keeps one in-flight send per destination so per-source ordering
// survives concurrent forwarders.
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws}
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close(reason string) error {
	return c.ws.Close(websocket.StatusNormalClosure, reason)
}

// WebSocketHandler accepts controller and agent connections and drives the
// relay loop for each. Establishment is accept-then-register: the only
// handshake parameters are the access code and the role tag.
type WebSocketHandler struct {
	reg           *Registry
	router        *Router
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates the relay WebSocket handler.
func NewWebSocketHandler(reg *Registry, router *Router, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		reg:           reg,
		router:        router,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing access code", http.StatusBadRequest)
		return
	}

	roleTag := r.URL.Query().Get("client_type")
	if roleTag == "" {
		roleTag = string(protocol.RoleController)
	}
	role, err := protocol.ParseRole(roleTag)
	if err != nil {
		http.Error(w, "unknown client_type", http.StatusBadRequest)
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "role", role)
		return
	}
	ws.SetReadLimit(maxMessageBytes)
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "code", code, "role", role)
		}
	}()

	slog.Info("Relay connection established", "code", code, "role", role, "ip", r.RemoteAddr)

	conn := newWSConn(ws)
	h.reg.Register(code, role, conn)
	defer h.reg.Unregister(code, role, conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.receiveLoop(ctx, ws, code, role)
	slog.Info("Relay connection ended", "code", code, "role", role)
}

// receiveLoop reads messages from one role and forwards each to the paired
// role. Messages are forwarded verbatim and in arrival order; the loop never
// inspects the payload beyond handing it to the router.
func (h *WebSocketHandler) receiveLoop(ctx context.Context, ws *websocket.Conn, code string, role protocol.Role) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "code", code, "role", role)
			} else {
				slog.Debug("WebSocket read error", "error", err, "code", code, "role", role)
			}
			return
		}

		h.router.Forward(ctx, code, role, data)
	}
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
