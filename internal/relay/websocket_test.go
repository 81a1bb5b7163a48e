package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func newRelayServer(t *testing.T) (*httptest.Server, *Registry, *Router) {
	t.Helper()
	reg := NewRegistry()
	router := NewRouter(reg)
	handler := NewWebSocketHandler(reg, router, "*", true)

	mux := http.NewServeMux()
	mux.Handle("/ws", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, reg, router
}

func dial(t *testing.T, srv *httptest.Server, code, clientType string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := strings.Replace(srv.URL, "http", "ws", 1) + "/ws?code=" + code + "&client_type=" + clientType
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial %s as %s failed: %v", code, clientType, err)
	}
	conn.SetReadLimit(maxMessageBytes)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	return string(data)
}

func writeText(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
}

func waitForAgents(t *testing.T, reg *Registry, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, agents, _ := reg.Counts(); agents == want {
			return
		}
		if time.Now().After(deadline) {
			_, agents, _ := reg.Counts()
			t.Fatalf("Expected %d agent handles, have %d", want, agents)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func waitForPaired(t *testing.T, reg *Registry, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, _, paired := reg.Counts(); paired == want {
			return
		}
		if time.Now().After(deadline) {
			_, _, paired := reg.Counts()
			t.Fatalf("Expected %d paired sessions, have %d", want, paired)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRelay_CommandAndResultRoundTrip(t *testing.T) {
	srv, reg, _ := newRelayServer(t)

	ctrl := dial(t, srv, "demo", "web")
	agent := dial(t, srv, "demo", "agent")
	waitForPaired(t, reg, 1)

	command := `{"type":"command","command":{"type":"mouse_click","params":{"x":100,"y":200}}}`
	writeText(t, ctrl, command)
	if got := readText(t, agent); got != command {
		t.Errorf("Agent received modified command: %s", got)
	}

	result := `{"type":"command_result","result":{"status":"success","message":"Clicked at (100, 200)"}}`
	writeText(t, agent, result)
	if got := readText(t, ctrl); got != result {
		t.Errorf("Controller received modified result: %s", got)
	}
}

func TestRelay_SendWithoutPeerDropsSilently(t *testing.T) {
	srv, reg, router := newRelayServer(t)

	ctrl := dial(t, srv, "lonely", "web")
	writeText(t, ctrl, `{"type":"command","command":{"type":"scroll","params":{"amount":1}}}`)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, dropped := router.Stats(); dropped >= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Drop was never recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The connection must stay healthy: a later paired message still arrives.
	agent := dial(t, srv, "lonely", "agent")
	waitForAgents(t, reg, 1)

	writeText(t, ctrl, `second`)
	if got := readText(t, agent); got != "second" {
		t.Errorf("Expected later message to be delivered, got %q", got)
	}
}

func TestRelay_ReconnectSupersedesHandle(t *testing.T) {
	srv, reg, _ := newRelayServer(t)

	// Registration is asynchronous with respect to Dial returning, so wait
	// for the registry to observe each connection before moving on.
	first := dial(t, srv, "demo", "agent")
	waitForAgents(t, reg, 1)
	firstHandle := reg.Lookup("demo", "agent")
	_ = first

	second := dial(t, srv, "demo", "agent")
	deadline := time.Now().Add(2 * time.Second)
	for reg.Lookup("demo", "agent") == firstHandle {
		if time.Now().After(deadline) {
			t.Fatal("Second connection never superseded the first")
		}
		time.Sleep(10 * time.Millisecond)
	}
	waitForAgents(t, reg, 1)

	ctrl := dial(t, srv, "demo", "web")
	writeText(t, ctrl, "ping")
	if got := readText(t, second); got != "ping" {
		t.Errorf("Expected superseding connection to receive traffic, got %q", got)
	}
}

func TestRelay_RejectsBadHandshake(t *testing.T) {
	srv, _, _ := newRelayServer(t)

	resp, err := http.Get(srv.URL + "/ws?client_type=web")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing code, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/ws?code=demo&client_type=toaster")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown client_type, got %d", resp.StatusCode)
	}
}
