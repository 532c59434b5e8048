package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/resolving/chatsync/internal/backoff"
	"github.com/resolving/chatsync/internal/chat"
	"github.com/resolving/chatsync/internal/wire"
)

// testServer is a minimal push-channel peer: it records client frames and
// lets tests inject server frames or drop the connection.
type testServer struct {
	*httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conn     *websocket.Conn
	received chan wire.Frame
	accepted chan struct{}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		received: make(chan wire.Frame, 64),
		accepted: make(chan struct{}, 8),
	}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := ts.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.mu.Lock()
		ts.conn = conn
		ts.mu.Unlock()
		ts.accepted <- struct{}{}
		for {
			var frame wire.Frame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			ts.received <- frame
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) send(t *testing.T, frame wire.Frame) {
	t.Helper()
	ts.mu.Lock()
	conn := ts.conn
	ts.mu.Unlock()
	if conn == nil {
		t.Fatal("no client connected")
	}
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("server write failed: %v", err)
	}
}

func (ts *testServer) drop() {
	ts.mu.Lock()
	conn := ts.conn
	ts.conn = nil
	ts.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func waitEvent(t *testing.T, events <-chan wire.Event) wire.Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("event channel closed")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return wire.Event{}
}

func fastBackoff() backoff.Policy {
	return backoff.Policy{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond, Factor: 1.5, Jitter: 0}
}

func TestConn_ConnectAndOrderedDelivery(t *testing.T) {
	srv := newTestServer(t)

	conn, err := New(Config{URL: srv.URL, Backoff: fastBackoff()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := conn.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer conn.Stop(context.Background())

	if ev := waitEvent(t, conn.Events()); ev.Type != wire.EventConnected {
		t.Fatalf("first event = %s, want connect", ev.Type)
	}

	<-srv.accepted
	srv.send(t, wire.Frame{Event: "user_connected", Data: json.RawMessage(`{"user_id":1,"username":"ann"}`)})
	srv.send(t, wire.Frame{Event: "new_message", Data: json.RawMessage(`{"id":1,"user_id":1,"username":"ann","role":"user","text":"hi","timestamp":"12:00"}`)})
	srv.send(t, wire.Frame{Event: "user_disconnected", Data: json.RawMessage(`{"user_id":1,"username":"ann"}`)})

	wantOrder := []wire.EventType{wire.EventUserConnected, wire.EventNewMessage, wire.EventUserDisconnected}
	for i, want := range wantOrder {
		ev := waitEvent(t, conn.Events())
		if ev.Type != want {
			t.Fatalf("event %d = %s, want %s", i, ev.Type, want)
		}
	}
}

func TestConn_EmitReachesServer(t *testing.T) {
	srv := newTestServer(t)

	conn, err := New(Config{URL: srv.URL, Backoff: fastBackoff()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := conn.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer conn.Stop(context.Background())
	<-srv.accepted

	if err := conn.Emit(wire.SendMessage("hello")); err != nil {
		t.Fatalf("Emit() error: %v", err)
	}

	select {
	case frame := <-srv.received:
		if frame.Event != wire.EmitSendMessage {
			t.Errorf("server received %s, want send_message", frame.Event)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server never received the frame")
	}
}

func TestConn_HeartbeatEmission(t *testing.T) {
	srv := newTestServer(t)

	conn, err := New(Config{URL: srv.URL, HeartbeatInterval: 20 * time.Millisecond, Backoff: fastBackoff()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := conn.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer conn.Stop(context.Background())
	<-srv.accepted

	deadline := time.After(5 * time.Second)
	for {
		select {
		case frame := <-srv.received:
			if frame.Event == wire.EmitHeartbeat {
				return
			}
		case <-deadline:
			t.Fatal("no heartbeat observed")
		}
	}
}

func TestConn_ReconnectAfterDrop(t *testing.T) {
	srv := newTestServer(t)

	conn, err := New(Config{URL: srv.URL, Backoff: fastBackoff()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := conn.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer conn.Stop(context.Background())

	if ev := waitEvent(t, conn.Events()); ev.Type != wire.EventConnected {
		t.Fatalf("first event = %s, want connect", ev.Type)
	}
	<-srv.accepted

	srv.drop()

	if ev := waitEvent(t, conn.Events()); ev.Type != wire.EventDisconnected {
		t.Fatalf("after drop = %s, want disconnect", ev.Type)
	}
	// The transport redials on its own and synthesizes a fresh connect so
	// the session knows to resynchronize.
	if ev := waitEvent(t, conn.Events()); ev.Type != wire.EventConnected {
		t.Fatalf("after redial = %s, want connect", ev.Type)
	}
	<-srv.accepted

	srv.send(t, wire.Frame{Event: "message_error", Data: json.RawMessage(`{"message":"x"}`)})
	if ev := waitEvent(t, conn.Events()); ev.Type != wire.EventMessageError {
		t.Fatalf("post-reconnect delivery broken, got %s", ev.Type)
	}
}

func TestConn_StopClosesEvents(t *testing.T) {
	srv := newTestServer(t)

	conn, err := New(Config{URL: srv.URL, Backoff: fastBackoff()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := conn.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if ev := waitEvent(t, conn.Events()); ev.Type != wire.EventConnected {
		t.Fatalf("first event = %s, want connect", ev.Type)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-conn.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event channel did not close after Stop")
		}
	}
}

func TestConn_EmitWhileDown(t *testing.T) {
	conn, err := New(Config{URL: "http://127.0.0.1:0", Backoff: fastBackoff()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := conn.Emit(wire.Heartbeat()); chat.CodeOf(err) != chat.ErrCodeConnection {
		t.Errorf("expected CONNECTION_ERROR, got %v", err)
	}
}

func TestConn_InitialDialFailure(t *testing.T) {
	conn, err := New(Config{URL: "http://127.0.0.1:1", Backoff: fastBackoff()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := conn.Start(context.Background()); chat.CodeOf(err) != chat.ErrCodeConnection {
		t.Errorf("expected CONNECTION_ERROR, got %v", err)
	}
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://chat.example", "ws://chat.example/ws"},
		{"https://chat.example", "wss://chat.example/ws"},
		{"https://chat.example/socket", "wss://chat.example/socket"},
		{"ws://chat.example/ws", "ws://chat.example/ws"},
	}
	for _, tt := range tests {
		if got := websocketURL(tt.in); got != tt.want {
			t.Errorf("websocketURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
