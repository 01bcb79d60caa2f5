package graph

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hurttlocker/kwgraph/internal/view"
)

// dialViewer connects a viewer and returns its session id. The initial
// scene is left unread.
func dialViewer(t *testing.T, env *testEnv) (*websocket.Conn, string) {
	t.Helper()
	u := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dialing viewer socket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	hello := readMessage(t, conn)
	if hello.Type != MessageHello || hello.Session == "" {
		t.Fatalf("expected hello with a session id, got %+v", hello)
	}
	return conn, hello.Session
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading message: %v", err)
	}
	return msg
}

// readUntil skips frames until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(Message) bool) Message {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if msg := readMessage(t, conn); match(msg) {
			return msg
		}
	}
	t.Fatal("no matching message before deadline")
	return Message{}
}

func TestHub_SendsSceneOnConnect(t *testing.T) {
	env := newTestEnv(t)
	conn, _ := dialViewer(t, env)

	msg := readMessage(t, conn)
	if msg.Type != MessageScene || msg.Scene == nil {
		t.Fatalf("expected initial scene, got %+v", msg)
	}
	if len(msg.Scene.Nodes) != 10 {
		t.Fatalf("expected 10 nodes, got %d", len(msg.Scene.Nodes))
	}
}

func TestHub_GesturesBroadcastScenes(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go env.hub.Run(ctx)

	conn, _ := dialViewer(t, env)
	readMessage(t, conn)

	if err := conn.WriteJSON(Gesture{Type: GestureClick, ID: "louis-vuitton"}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, func(m Message) bool {
		return m.Type == MessageScene && m.Scene.State == view.Expanded("louis-vuitton")
	})

	if err := conn.WriteJSON(Gesture{Type: "spin"}); err != nil {
		t.Fatal(err)
	}
	msg := readUntil(t, conn, func(m Message) bool { return m.Type == MessageError })
	if !strings.Contains(msg.Error, "unknown gesture") {
		t.Fatalf("unexpected error %q", msg.Error)
	}

	// Clicking a keyword that does not expand returns its details.
	if err := conn.WriteJSON(Gesture{Type: GestureClick, ID: "pharrell"}); err != nil {
		t.Fatal(err)
	}
	msg = readUntil(t, conn, func(m Message) bool { return m.Type == MessageResult })
	res, ok := msg.Result.(map[string]any)
	if !ok || res["details"] == nil {
		t.Fatalf("expected details in click result, got %+v", msg.Result)
	}
}

func TestHub_StoreChangesReachViewers(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go env.hub.Run(ctx)

	conn, _ := dialViewer(t, env)
	readMessage(t, conn)

	if _, err := env.store.AddKeyword(ctx, "Zendaya", 40); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, func(m Message) bool {
		return m.Type == MessageScene && len(m.Scene.Nodes) == 11
	})
}

func TestHub_RunClosesViewers(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		env.hub.Run(ctx)
		close(done)
	}()

	conn, _ := dialViewer(t, env)
	readMessage(t, conn)
	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Clients() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if env.hub.Clients() != 1 {
		t.Fatalf("expected 1 client, got %d", env.hub.Clients())
	}

	cancel()
	<-done
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected connection to close")
	}
	if env.hub.Clients() != 0 {
		t.Fatalf("expected no clients, got %d", env.hub.Clients())
	}
}

func TestHub_ViewersHaveIndependentSessions(t *testing.T) {
	env := newTestEnv(t)
	tabA, idA := dialViewer(t, env)
	tabB, idB := dialViewer(t, env)
	readMessage(t, tabA)
	readMessage(t, tabB)
	if idA == idB {
		t.Fatalf("viewers share session id %q", idA)
	}
	sessA, ok := env.hub.Session(idA)
	if !ok {
		t.Fatal("tab A session not registered")
	}

	if err := tabB.WriteJSON(Gesture{Type: GestureClick, ID: "yayoi-kusama"}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, tabB, func(m Message) bool {
		return m.Type == MessageScene && m.Scene.State == view.Expanded("yayoi-kusama")
	})
	if err := tabB.WriteJSON(Gesture{Type: GestureResize, Width: 300, Height: 200}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, tabB, func(m Message) bool {
		return m.Type == MessageScene && m.Scene.Width == 300 && m.Scene.Height == 200
	})

	sc := sessA.Scene()
	if sc.State != view.Default() {
		t.Fatalf("tab A state changed to %+v by tab B", sc.State)
	}
	if sc.Width != 800 || sc.Height != 600 {
		t.Fatalf("tab A viewport = %.0fx%.0f, want 800x600", sc.Width, sc.Height)
	}
	if env.session.State() != view.Default() {
		t.Fatalf("HTTP session changed to %+v by a viewer", env.session.State())
	}

	// The viewer's session is reachable over HTTP by id.
	resp := env.do(t, http.MethodGet, "/api/scene?session="+idB, nil)
	expectStatus(t, resp, http.StatusOK)
	var got struct {
		State view.State `json:"state"`
	}
	decode(t, resp, &got)
	if got.State != view.Expanded("yayoi-kusama") {
		t.Fatalf("scene for tab B = %+v", got.State)
	}
	expectStatus(t, env.do(t, http.MethodPost, "/api/gesture?session=ghost", Gesture{Type: GestureReset}), http.StatusNotFound)
}

func TestHub_DisconnectClosesSession(t *testing.T) {
	env := newTestEnv(t)
	conn, id := dialViewer(t, env)
	readMessage(t, conn)
	if _, ok := env.hub.Session(id); !ok {
		t.Fatal("session not registered")
	}

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Clients() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if _, ok := env.hub.Session(id); ok {
		t.Fatal("session still registered after disconnect")
	}
}
