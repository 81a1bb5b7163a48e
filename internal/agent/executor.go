package agent

import (
	"errors"
	"sync"

	"github.com/vkotlar/deskbridge/internal/protocol"
)

// Executor runs commands against the host desktop one at a time. Commands
// never crash the agent: every outcome, including unknown kinds and bad
// parameters, becomes a Result.
type Executor struct {
	mu   sync.Mutex
	caps Capabilities
}

// NewExecutor creates an Executor over the given capabilities.
func NewExecutor(caps Capabilities) *Executor {
	return &Executor{caps: caps}
}

// Execute validates and dispatches one command, returning its result.
// Calls are serialized: a command runs only after the previous one has
// finished, so results are produced in dispatch order.
func (e *Executor) Execute(cmd protocol.Command) protocol.Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	action, err := cmd.Decode()
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownKind) {
			return protocol.ErrorResult("Unknown command type: %s", cmd.Type)
		}
		return protocol.ErrorResult("%v", err)
	}

	switch a := action.(type) {
	case protocol.MouseClick:
		if err := e.caps.MouseClick(a.X, a.Y); err != nil {
			return protocol.ErrorResult("%v", err)
		}
		return protocol.SuccessResult("Clicked at (%d, %d)", a.X, a.Y)
	case protocol.MouseMove:
		if err := e.caps.MouseMove(a.X, a.Y); err != nil {
			return protocol.ErrorResult("%v", err)
		}
		return protocol.SuccessResult("Moved to (%d, %d)", a.X, a.Y)
	case protocol.KeyboardType:
		if err := e.caps.TypeText(a.Text); err != nil {
			return protocol.ErrorResult("%v", err)
		}
		return protocol.SuccessResult("Typed: %s", a.Text)
	case protocol.KeyboardPress:
		if err := e.caps.PressKey(a.Key); err != nil {
			return protocol.ErrorResult("%v", err)
		}
		return protocol.SuccessResult("Pressed: %s", a.Key)
	case protocol.OpenURL:
		if err := e.caps.OpenURL(a.URL); err != nil {
			return protocol.ErrorResult("%v", err)
		}
		return protocol.SuccessResult("Opened URL: %s", a.URL)
	case protocol.OpenApp:
		if err := e.caps.OpenApp(a.App); err != nil {
			return protocol.ErrorResult("%v", err)
		}
		return protocol.SuccessResult("Opened app: %s", a.App)
	case protocol.Scroll:
		if err := e.caps.Scroll(a.Amount); err != nil {
			return protocol.ErrorResult("%v", err)
		}
		return protocol.SuccessResult("Scrolled: %d", a.Amount)
	}
	return protocol.ErrorResult("Unknown command type: %s", cmd.Type)
}
