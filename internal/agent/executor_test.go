package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vkotlar/deskbridge/internal/protocol"
)

// fakeCaps records invocations and can fail on demand.
type fakeCaps struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error

	active  atomic.Int32
	overlap atomic.Bool
	delay   time.Duration
}

func newFakeCaps() *fakeCaps {
	return &fakeCaps{errs: make(map[string]error)}
}

func (f *fakeCaps) record(call string) error {
	if f.active.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.active.Add(-1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	name := call[:strings.IndexByte(call, '(')]
	return f.errs[name]
}

func (f *fakeCaps) MouseClick(x, y int) error { return f.record(fmt.Sprintf("MouseClick(%d,%d)", x, y)) }
func (f *fakeCaps) MouseMove(x, y int) error  { return f.record(fmt.Sprintf("MouseMove(%d,%d)", x, y)) }
func (f *fakeCaps) TypeText(text string) error {
	return f.record(fmt.Sprintf("TypeText(%s)", text))
}
func (f *fakeCaps) PressKey(key string) error { return f.record(fmt.Sprintf("PressKey(%s)", key)) }
func (f *fakeCaps) OpenURL(url string) error  { return f.record(fmt.Sprintf("OpenURL(%s)", url)) }
func (f *fakeCaps) OpenApp(app string) error  { return f.record(fmt.Sprintf("OpenApp(%s)", app)) }
func (f *fakeCaps) Scroll(amount int) error   { return f.record(fmt.Sprintf("Scroll(%d)", amount)) }

func command(t *testing.T, kind protocol.CommandKind, params string) protocol.Command {
	t.Helper()
	return protocol.Command{Type: kind, Params: json.RawMessage(params)}
}

func TestExecutor_Dispatch(t *testing.T) {
	tests := []struct {
		name    string
		cmd     protocol.Command
		call    string
		message string
	}{
		{
			name:    "mouse click",
			cmd:     protocol.Command{Type: protocol.KindMouseClick, Params: json.RawMessage(`{"x":100,"y":200}`)},
			call:    "MouseClick(100,200)",
			message: "Clicked at (100, 200)",
		},
		{
			name:    "mouse move",
			cmd:     protocol.Command{Type: protocol.KindMouseMove, Params: json.RawMessage(`{"x":5,"y":7}`)},
			call:    "MouseMove(5,7)",
			message: "Moved to (5, 7)",
		},
		{
			name:    "keyboard type",
			cmd:     protocol.Command{Type: protocol.KindKeyboardType, Params: json.RawMessage(`{"text":"hello"}`)},
			call:    "TypeText(hello)",
			message: "Typed: hello",
		},
		{
			name:    "keyboard press",
			cmd:     protocol.Command{Type: protocol.KindKeyboardPress, Params: json.RawMessage(`{"key":"enter"}`)},
			call:    "PressKey(enter)",
			message: "Pressed: enter",
		},
		{
			name:    "open url",
			cmd:     protocol.Command{Type: protocol.KindOpenURL, Params: json.RawMessage(`{"url":"https://example.com"}`)},
			call:    "OpenURL(https://example.com)",
			message: "Opened URL: https://example.com",
		},
		{
			name:    "open app",
			cmd:     protocol.Command{Type: protocol.KindOpenApp, Params: json.RawMessage(`{"app":"calculator"}`)},
			call:    "OpenApp(calculator)",
			message: "Opened app: calculator",
		},
		{
			name:    "scroll",
			cmd:     protocol.Command{Type: protocol.KindScroll, Params: json.RawMessage(`{"amount":-3}`)},
			call:    "Scroll(-3)",
			message: "Scrolled: -3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := newFakeCaps()
			res := NewExecutor(caps).Execute(tt.cmd)
			if res.Status != protocol.StatusSuccess {
				t.Fatalf("Expected success, got %+v", res)
			}
			if res.Message != tt.message {
				t.Errorf("Expected message %q, got %q", tt.message, res.Message)
			}
			if len(caps.calls) != 1 || caps.calls[0] != tt.call {
				t.Errorf("Expected call %q, got %v", tt.call, caps.calls)
			}
		})
	}
}

func TestExecutor_UnknownKind(t *testing.T) {
	caps := newFakeCaps()
	res := NewExecutor(caps).Execute(command(t, "teleport", `{}`))
	if res.Status != protocol.StatusError {
		t.Fatalf("Expected error, got %+v", res)
	}
	if res.Message != "Unknown command type: teleport" {
		t.Errorf("Unexpected message: %q", res.Message)
	}
	if len(caps.calls) != 0 {
		t.Errorf("Expected no capability calls, got %v", caps.calls)
	}
}

func TestExecutor_InvalidParams(t *testing.T) {
	caps := newFakeCaps()
	exec := NewExecutor(caps)

	tests := []protocol.Command{
		command(t, protocol.KindMouseClick, `{"x":100}`),
		command(t, protocol.KindMouseClick, `{"x":"a","y":"b"}`),
		command(t, protocol.KindKeyboardType, `{}`),
		command(t, protocol.KindScroll, `{"amount":"up"}`),
	}
	for _, cmd := range tests {
		res := exec.Execute(cmd)
		if res.Status != protocol.StatusError {
			t.Errorf("%s: expected error result, got %+v", cmd.Type, res)
		}
	}
	if len(caps.calls) != 0 {
		t.Errorf("Expected no capability calls, got %v", caps.calls)
	}
}

func TestExecutor_CapabilityFailure(t *testing.T) {
	caps := newFakeCaps()
	caps.errs["PressKey"] = errors.New("key tap \"f99\": unsupported key")

	res := NewExecutor(caps).Execute(command(t, protocol.KindKeyboardPress, `{"key":"f99"}`))
	if res.Status != protocol.StatusError {
		t.Fatalf("Expected error, got %+v", res)
	}
	if !strings.Contains(res.Message, "unsupported key") {
		t.Errorf("Expected failure detail in message, got %q", res.Message)
	}
}

func TestExecutor_SerializesCommands(t *testing.T) {
	caps := newFakeCaps()
	caps.delay = 2 * time.Millisecond
	exec := NewExecutor(caps)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			exec.Execute(command(t, protocol.KindScroll, `{"amount":1}`))
		}()
	}
	wg.Wait()

	if caps.overlap.Load() {
		t.Error("Expected commands to run one at a time")
	}
	if len(caps.calls) != 16 {
		t.Errorf("Expected 16 executions, got %d", len(caps.calls))
	}
}
