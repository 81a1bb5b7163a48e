// Package agent implements the desktop side of the bridge: it connects to
// the relay, streams screen frames, and executes controller commands.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/vkotlar/deskbridge/internal/protocol"
)

const maxMessageBytes = 8 << 20

// Agent owns one pairing: it holds the access code's agent slot on the
// relay for as long as it runs, reconnecting when the link drops.
type Agent struct {
	cfg      *Config
	exec     *Executor
	capturer Capturer
}

// New creates an Agent with the given desktop capabilities and capturer.
func New(cfg *Config, caps Capabilities, capturer Capturer) *Agent {
	return &Agent{
		cfg:      cfg,
		exec:     NewExecutor(caps),
		capturer: capturer,
	}
}

// Run connects to the relay under the access code and serves until ctx is
// cancelled, redialing with exponential backoff after each disconnect.
func (a *Agent) Run(ctx context.Context, accessCode string) error {
	endpoint, err := a.endpoint(accessCode)
	if err != nil {
		return err
	}

	backoff := a.cfg.ReconnectMin
	for {
		err := a.serve(ctx, endpoint)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("Disconnected from relay", "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > a.cfg.ReconnectMax {
			backoff = a.cfg.ReconnectMax
		}
	}
}

func (a *Agent) endpoint(accessCode string) (string, error) {
	u, err := url.Parse(a.cfg.ServerURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", a.cfg.ServerURL, err)
	}
	q := u.Query()
	q.Set("code", accessCode)
	q.Set("client_type", string(protocol.RoleAgent))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// serve runs one connection to completion: a pacer goroutine streams
// frames while the receive loop handles commands and fps changes.
func (a *Agent) serve(ctx context.Context, endpoint string) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	ws, _, err := websocket.Dial(dialCtx, endpoint, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}
	ws.SetReadLimit(maxMessageBytes)
	defer ws.Close(websocket.StatusNormalClosure, "agent shutting down")

	slog.Info("Connected to relay", "fps", a.cfg.FPS)

	conn := &agentConn{ws: ws}
	connCtx, cancelConn := context.WithCancel(ctx)
	defer cancelConn()

	pacer := NewPacer(a.capturer, conn.send, a.cfg.FPS)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pacer.Run(connCtx)
	}()

	err = a.receiveLoop(connCtx, ws, conn, pacer)
	cancelConn()
	wg.Wait()
	return err
}

func (a *Agent) receiveLoop(ctx context.Context, ws *websocket.Conn, conn *agentConn, pacer *Pacer) error {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("Discarding malformed message", "error", err)
			continue
		}

		switch env.Type {
		case protocol.TypeCommand:
			a.handleCommand(ctx, conn, env.Command)
		case protocol.TypeSetFPS:
			pacer.SetFPS(env.FPS)
			slog.Info("Frame rate updated", "fps", pacer.FPS())
		default:
			// Unknown types are ignored so protocol additions stay compatible.
		}
	}
}

func (a *Agent) handleCommand(ctx context.Context, conn *agentConn, raw json.RawMessage) {
	var result protocol.Result
	var cmd protocol.Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		result = protocol.ErrorResult("invalid command payload")
	} else {
		result = a.exec.Execute(cmd)
	}

	payload, err := json.Marshal(protocol.NewResultEnvelope(result))
	if err != nil {
		slog.Error("Failed to encode command result", "error", err)
		return
	}
	if err := conn.send(ctx, payload); err != nil {
		slog.Warn("Failed to send command result", "error", err)
	}
}

// agentConn serializes writes so frame and result transmissions never
// interleave on the socket.
type agentConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *agentConn) send(ctx context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.Write(ctx, websocket.MessageText, payload)
}
