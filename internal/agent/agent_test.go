package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vkotlar/deskbridge/internal/protocol"
)

// serveReceiveLoop runs the agent's receive loop over one accepted
// connection and returns the controller end for the test to drive.
func serveReceiveLoop(t *testing.T, a *Agent, pacer *Pacer) *websocket.Conn {
	t.Helper()

	loopDone := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer close(loopDone)
		_ = a.receiveLoop(r.Context(), ws, &agentConn{ws: ws}, pacer)
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		select {
		case <-loopDone:
		case <-time.After(2 * time.Second):
			t.Error("Receive loop did not exit after the connection closed")
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctrl, _, err := websocket.Dial(ctx, strings.Replace(srv.URL, "http", "ws", 1), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { _ = ctrl.Close(websocket.StatusNormalClosure, "test done") })
	return ctrl
}

func sendEnvelope(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
}

func readResult(t *testing.T, conn *websocket.Conn) protocol.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	var env protocol.ResultEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("Result payload not decodable: %v", err)
	}
	if env.Type != protocol.TypeCommandResult {
		t.Fatalf("Expected type %q, got %q", protocol.TypeCommandResult, env.Type)
	}
	return env.Result
}

func TestReceiveLoop_SetFPSReachesPacer(t *testing.T) {
	a := New(&Config{ServerURL: "ws://unused", FPS: 5}, newFakeCaps(), &fakeCapturer{})
	pacer := NewPacer(&fakeCapturer{}, newCollector().send, 5)
	ctrl := serveReceiveLoop(t, a, pacer)

	sendEnvelope(t, ctrl, `{"type":"set_fps","fps":12}`)

	deadline := time.Now().Add(2 * time.Second)
	for pacer.FPS() != 12 {
		if time.Now().After(deadline) {
			t.Fatalf("Pacer never picked up fps change, still %d", pacer.FPS())
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Out-of-range values go through the same clamp as the setter.
	sendEnvelope(t, ctrl, `{"type":"set_fps","fps":-4}`)
	deadline = time.Now().Add(2 * time.Second)
	for pacer.FPS() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected fps clamped to 1, still %d", pacer.FPS())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestReceiveLoop_CommandProducesResult(t *testing.T) {
	caps := newFakeCaps()
	a := New(&Config{ServerURL: "ws://unused", FPS: 5}, caps, &fakeCapturer{})
	pacer := NewPacer(&fakeCapturer{}, newCollector().send, 5)
	ctrl := serveReceiveLoop(t, a, pacer)

	// Unknown envelope types must be skipped without disturbing the loop.
	sendEnvelope(t, ctrl, `{"type":"mystery"}`)

	sendEnvelope(t, ctrl, `{"type":"command","command":{"type":"mouse_click","params":{"x":100,"y":200}}}`)
	res := readResult(t, ctrl)
	if res.Status != protocol.StatusSuccess || res.Message != "Clicked at (100, 200)" {
		t.Errorf("Unexpected result: %+v", res)
	}

	sendEnvelope(t, ctrl, `{"type":"command","command":{"type":"teleport","params":{}}}`)
	res = readResult(t, ctrl)
	if res.Status != protocol.StatusError || res.Message != "Unknown command type: teleport" {
		t.Errorf("Unexpected result: %+v", res)
	}
}
