package relay

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/vkotlar/deskbridge/internal/protocol"
)

// Outcome classifies one forward attempt. The sender never sees it; it
// exists for diagnostics and the health surface.
type Outcome int

const (
	// OutcomeDelivered means the destination accepted the message.
	OutcomeDelivered Outcome = iota
	// OutcomeNoPeer means the paired role was absent and the message was dropped.
	OutcomeNoPeer
	// OutcomeSendFailed means the destination handle failed mid-send and was
	// closed; the drop is attributed to the destination's own disconnect.
	OutcomeSendFailed
)

// Router forwards envelopes between the two roles of a session. It keeps no
// per-message state: each Forward is a single registry lookup plus a single
// blocking send on the destination handle.
type Router struct {
	reg       *Registry
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewRouter creates a router over the given registry.
func NewRouter(reg *Registry) *Router {
	return &Router{reg: reg}
}

// Forward relays payload from source to its paired role, verbatim. An absent
// peer or a failed send is a silent drop: no error reaches the sender. A send
// failure additionally closes the destination handle so its own receive loop
// unwinds and unregisters it.
func (rt *Router) Forward(ctx context.Context, code string, source protocol.Role, payload []byte) Outcome {
	dest := rt.reg.Lookup(code, source.Peer())
	if dest == nil {
		rt.dropped.Add(1)
		slog.Debug("Relay drop, no peer", "code", code, "source", source)
		return OutcomeNoPeer
	}

	if err := dest.Write(ctx, payload); err != nil {
		rt.dropped.Add(1)
		_ = dest.Close("send failed")
		slog.Debug("Relay drop, send failed", "code", code, "source", source, "error", err)
		return OutcomeSendFailed
	}

	rt.delivered.Add(1)
	return OutcomeDelivered
}

// Stats returns the lifetime delivered and dropped counters.
func (rt *Router) Stats() (delivered, dropped uint64) {
	return rt.delivered.Load(), rt.dropped.Load()
}
