// Package relay pairs controller and agent connections under an access code
// and forwards traffic between the two sides of each pairing.
package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vkotlar/deskbridge/internal/protocol"
)

// Conn is the transport handle the registry owns for one connected role.
// It abstracts the WebSocket connection so the registry and router are
// testable without real sockets.
type Conn interface {
	// Write transmits one message. Implementations must serialize concurrent
	// writers so a message is never interleaved with another.
	Write(ctx context.Context, data []byte) error
	// Close terminates the connection with a human-readable reason.
	Close(reason string) error
}

// session holds the pairing state for one access code. At most one handle
// per role; a session with neither handle is removed from the registry.
type session struct {
	controller Conn
	agent      Conn
}

func (s *session) get(role protocol.Role) Conn {
	if role == protocol.RoleController {
		return s.controller
	}
	return s.agent
}

func (s *session) set(role protocol.Role, conn Conn) {
	if role == protocol.RoleController {
		s.controller = conn
	} else {
		s.agent = conn
	}
}

func (s *session) empty() bool {
	return s.controller == nil && s.agent == nil
}

// Registry maps access codes to live controller/agent handles. It is the
// only state shared across connection handlers; all mutation goes through
// Register and Unregister.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*session)}
}

// Register stores conn as the handle for (code, role), creating the session
// lazily. An existing handle for the same role is closed and replaced:
// last writer wins, there is no queue of pending pairings.
func (r *Registry) Register(code string, role protocol.Role, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[code]
	if !ok {
		s = &session{}
		r.sessions[code] = s
	}

	if existing := s.get(role); existing != nil && existing != conn {
		_ = existing.Close("superseded by new connection")
		slog.Info("Connection superseded", "code", code, "role", role)
	}

	s.set(role, conn)
	slog.Info("Connection registered", "code", code, "role", role)
}

// Unregister removes conn as the handle for (code, role). The removal is
// conditional on identity so a stale disconnect never evicts a handle that
// already superseded it. A session left with no handles is deleted.
func (r *Registry) Unregister(code string, role protocol.Role, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[code]
	if !ok {
		return
	}
	if s.get(role) != conn {
		return
	}

	s.set(role, nil)
	if s.empty() {
		delete(r.sessions, code)
	}
	slog.Info("Connection unregistered", "code", code, "role", role)
}

// Lookup returns the current handle for (code, role), or nil if that role
// is not connected. A nil result is not an error: the router treats it as
// a deliberate drop.
func (r *Registry) Lookup(code string, role protocol.Role) Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[code]
	if !ok {
		return nil
	}
	return s.get(role)
}

// Counts reports connected controllers, connected agents, and fully paired
// sessions, for the health surface.
func (r *Registry) Counts() (controllers, agents, paired int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		if s.controller != nil {
			controllers++
		}
		if s.agent != nil {
			agents++
		}
		if s.controller != nil && s.agent != nil {
			paired++
		}
	}
	return controllers, agents, paired
}
