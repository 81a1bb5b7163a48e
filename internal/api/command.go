package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vkotlar/deskbridge/internal/nlu"
	"github.com/vkotlar/deskbridge/internal/protocol"
	"github.com/vkotlar/deskbridge/internal/relay"
)

// executeCommandBody is the inbound shape for POST /api/execute-command.
type executeCommandBody struct {
	Command    string `json:"command"`
	AccessCode string `json:"access_code"`
}

// ExecuteCommand translates a natural-language command via the reasoning
// service and relays the result to the agent paired under the access code.
// Per the relay contract, an absent agent is a silent drop: the response
// reports the parsed action either way, and only parse/service failures
// surface as errors.
func (h *Handler) ExecuteCommand(w http.ResponseWriter, r *http.Request) {
	if h.parser == nil {
		Error(w, http.StatusServiceUnavailable, "natural-language commands are disabled")
		return
	}

	var body executeCommandBody
	if err := decodeJSONBody(r, &body); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	body.Command = strings.TrimSpace(body.Command)
	if body.Command == "" {
		Error(w, http.StatusBadRequest, "command is required")
		return
	}
	if body.AccessCode == "" {
		Error(w, http.StatusBadRequest, "access_code is required")
		return
	}

	cmd, err := h.parser.ParseCommand(r.Context(), body.Command)
	if err != nil {
		slog.Warn("Natural-language command rejected", "error", err)
		status := http.StatusBadGateway
		if errors.Is(err, nlu.ErrUnparseable) {
			status = http.StatusUnprocessableEntity
		}
		Error(w, status, fmt.Sprintf("could not interpret command: %v", err))
		return
	}

	payload, err := json.Marshal(protocol.NewCommandEnvelope(cmd))
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to encode command")
		return
	}

	outcome := h.router.Forward(r.Context(), body.AccessCode, protocol.RoleController, payload)
	slog.Info("Natural-language command relayed",
		"kind", cmd.Type,
		"delivered", outcome == relay.OutcomeDelivered)

	JSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"action": cmd,
	})
}

// decodeJSONBody decodes a bounded JSON request body.
func decodeJSONBody(r *http.Request, v interface{}) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	return dec.Decode(v)
}
