package api

import (
	"net/http"
	"time"
)

// Health reports a read-only snapshot of relay state: connection and
// pairing counts plus the delivery counters. It never exposes session
// contents or access codes.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	controllers, agents, paired := h.reg.Counts()
	delivered, dropped := h.router.Stats()

	status := "healthy"
	db := "ok"
	if err := h.repo.Ping(r.Context()); err != nil {
		status = "degraded"
		db = "unreachable"
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"status":             status,
		"timestamp":          time.Now().Format(time.RFC3339),
		"active_connections": controllers,
		"active_agents":      agents,
		"paired_sessions":    paired,
		"relay": map[string]uint64{
			"delivered": delivered,
			"dropped":   dropped,
		},
		"database": db,
	})
}
