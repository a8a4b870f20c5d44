package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"menagerie/server/internal/sim"
	"menagerie/server/logging"
	logginglifecycle "menagerie/server/logging/lifecycle"
	"menagerie/server/logging/sinks"
)

type recordingQueue struct {
	mu       sync.Mutex
	commands []sim.Command
	reject   string
}

func (q *recordingQueue) Enqueue(cmd sim.Command) (bool, string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.reject != "" {
		return false, q.reject
	}
	q.commands = append(q.commands, cmd)
	return true, ""
}

func (q *recordingQueue) staged() []sim.Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]sim.Command(nil), q.commands...)
}

func websocketURL(t *testing.T, base, actor string) string {
	t.Helper()
	parsed, err := url.Parse(base)
	if err != nil {
		t.Fatalf("failed to parse server url: %v", err)
	}
	parsed.Scheme = "ws"
	if actor != "" {
		parsed.RawQuery = url.Values{"actor": {actor}}.Encode()
	}
	return parsed.String()
}

func dial(t *testing.T, handler *Handler, actor string) (*websocket.Conn, map[string]any) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(handler.Handle))
	t.Cleanup(srv.Close)

	conn, resp, err := websocket.DefaultDialer.Dial(websocketURL(t, srv.URL, actor), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})
	hello := readJSON(t, conn)
	if hello["type"] != TypeHello {
		t.Fatalf("expected hello first, got %v", hello)
	}
	return conn, hello
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("failed to decode %s: %v", payload, err)
	}
	return decoded
}

func TestHandlerRegistersSessions(t *testing.T) {
	memory := sinks.NewMemorySink()
	handler := NewHandler(&recordingQueue{}, HandlerConfig{Publisher: memory})
	_, hello := dial(t, handler, "keeper")
	if hello["actorId"] != "keeper" {
		t.Fatalf("expected actor keeper, got %v", hello["actorId"])
	}
	if got := len(handler.Sessions()); got != 1 {
		t.Fatalf("expected 1 session, got %d", got)
	}
	if got := len(memory.EventsOfType(logginglifecycle.EventInspectorConnected)); got != 1 {
		t.Fatalf("expected connect event, got %d", got)
	}
}

func TestHandlerFansOutRouterEvents(t *testing.T) {
	handler := NewHandler(&recordingQueue{}, HandlerConfig{})
	conn, _ := dial(t, handler, "")

	if err := handler.Write(logging.Event{Type: "regions.area_created", Tick: 7, Category: logging.CategoryRegions}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg := readJSON(t, conn)
	if msg["type"] != TypeEvent {
		t.Fatalf("expected event frame, got %v", msg)
	}
	event, ok := msg["event"].(map[string]any)
	if !ok || event["type"] != "regions.area_created" || event["tick"] != float64(7) {
		t.Fatalf("unexpected event payload %v", msg["event"])
	}
}

func TestHandlerStagesCommands(t *testing.T) {
	queue := &recordingQueue{}
	handler := NewHandler(queue, HandlerConfig{})
	conn, _ := dial(t, handler, "keeper")

	send := func(body string) map[string]any {
		t.Helper()
		if err := conn.WriteMessage(websocket.TextMessage, []byte(body)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		return readJSON(t, conn)
	}

	ack := send(`{"type":"command","seq":1,"command":{"type":"wall_add","actorId":"spoofed","edge":{"x":1,"y":2,"orientation":"v"}}}`)
	if ack["type"] != TypeCommandAck || ack["seq"] != float64(1) {
		t.Fatalf("expected ack for seq 1, got %v", ack)
	}
	staged := queue.staged()
	if len(staged) != 1 {
		t.Fatalf("expected 1 staged command, got %d", len(staged))
	}
	if staged[0].ActorID != "keeper" || staged[0].Type != sim.CommandWallAdd || staged[0].ID == "" {
		t.Fatalf("unexpected staged command %+v", staged[0])
	}
	if staged[0].Edge == nil || staged[0].Edge.Y != 2 {
		t.Fatalf("expected edge payload, got %+v", staged[0].Edge)
	}

	dup := send(`{"type":"command","seq":1,"command":{"type":"wall_add","edge":{"x":1,"y":2,"orientation":"v"}}}`)
	if dup["type"] != TypeCommandAck {
		t.Fatalf("expected duplicate to be re-acked, got %v", dup)
	}
	if got := len(queue.staged()); got != 1 {
		t.Fatalf("expected duplicate seq to be ignored, got %d staged", got)
	}

	malformed := send(`{"type":"command","seq":2}`)
	if malformed["type"] != TypeCommandReject || malformed["reason"] != RejectMalformed {
		t.Fatalf("expected malformed reject, got %v", malformed)
	}

	queue.mu.Lock()
	queue.reject = sim.CommandRejectQueueLimit
	queue.mu.Unlock()
	limited := send(`{"type":"command","seq":3,"command":{"type":"undo"}}`)
	if limited["type"] != TypeCommandReject || limited["retry"] != true {
		t.Fatalf("expected retryable reject, got %v", limited)
	}

	pong := send(`{"type":"ping"}`)
	if pong["type"] != TypePong {
		t.Fatalf("expected pong, got %v", pong)
	}
}

func TestHandlerCloseEndsSessions(t *testing.T) {
	memory := sinks.NewMemorySink()
	handler := NewHandler(&recordingQueue{}, HandlerConfig{Publisher: memory})
	conn, _ := dial(t, handler, "keeper")

	if err := handler.Close(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal closure, got %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for len(memory.EventsOfType(logginglifecycle.EventInspectorDisconnected)) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected disconnect event")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := len(handler.Sessions()); got != 0 {
		t.Fatalf("expected no sessions, got %d", got)
	}
}

func TestHandlerRejectsUntilQueueAttached(t *testing.T) {
	handler := NewHandler(nil, HandlerConfig{})
	conn, _ := dial(t, handler, "keeper")

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"command","seq":1,"command":{"type":"undo"}}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	reject := readJSON(t, conn)
	if reject["type"] != TypeCommandReject || reject["reason"] != RejectUnavailable || reject["retry"] != true {
		t.Fatalf("expected retryable unavailable reject, got %v", reject)
	}

	queue := &recordingQueue{}
	handler.SetCommands(queue)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"command","seq":1,"command":{"type":"undo"}}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if ack := readJSON(t, conn); ack["type"] != TypeCommandAck {
		t.Fatalf("expected ack once queue is attached, got %v", ack)
	}
}
