// Package ws streams logging events to inspector websockets and accepts
// edit commands from them.
package ws

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"menagerie/server/internal/sim"
	"menagerie/server/internal/telemetry"
	"menagerie/server/logging"
	logginglifecycle "menagerie/server/logging/lifecycle"
	"menagerie/server/logging/sinks"
)

const (
	TypeHello         = "hello"
	TypeEvent         = "event"
	TypeCommand       = "command"
	TypeCommandAck    = "commandAck"
	TypeCommandReject = "commandReject"
	TypePing          = "ping"
	TypePong          = "pong"

	RejectMalformed   = "malformed"
	RejectUnavailable = "unavailable"

	defaultSendBuffer = 256
	maxMessageSize    = 64 * 1024
)

// Enqueuer stages commands for the update loop.
type Enqueuer interface {
	Enqueue(cmd sim.Command) (bool, string)
}

type HandlerConfig struct {
	Logger     telemetry.Logger
	Publisher  logging.Publisher
	SendBuffer int
}

type clientMessage struct {
	Type    string       `json:"type"`
	Seq     *uint64      `json:"seq,omitempty"`
	Command *sim.Command `json:"command,omitempty"`
}

type helloMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	ActorID   string `json:"actorId"`
}

type eventMessage struct {
	Type  string         `json:"type"`
	Event map[string]any `json:"event"`
}

type commandAckMessage struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
	ID   string `json:"id,omitempty"`
}

type commandRejectMessage struct {
	Type   string `json:"type"`
	Seq    uint64 `json:"seq"`
	Reason string `json:"reason"`
	Retry  bool   `json:"retry,omitempty"`
}

// Handler upgrades inspector connections. It is also a logging.Sink: every
// event the router delivers is fanned out to the open sessions, and a
// saturated session skips events rather than stalling the router.
type Handler struct {
	commands   Enqueuer
	logger     telemetry.Logger
	publisher  logging.Publisher
	sendBuffer int
	upgrader   websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*session
	dropped  atomic.Uint64
}

func NewHandler(commands Enqueuer, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Discard()
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &Handler{
		commands:   commands,
		logger:     logger,
		publisher:  publisher,
		sendBuffer: buffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
		sessions: make(map[string]*session),
	}
}

// SetPublisher swaps the publisher used for connect and disconnect events.
// The router usually owns the handler as a sink, so it is wired afterwards.
func (h *Handler) SetPublisher(publisher logging.Publisher) {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	h.publisher = publisher
}

// SetCommands attaches the command queue. The update loop is usually built
// after the router that owns the handler, so it is wired before serving.
func (h *Handler) SetCommands(commands Enqueuer) {
	h.mu.Lock()
	h.commands = commands
	h.mu.Unlock()
}

// Sessions lists the open session ids.
func (h *Handler) Sessions() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dropped counts events skipped for slow sessions.
func (h *Handler) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Handler) Write(event logging.Event) error {
	data, err := json.Marshal(eventMessage{Type: TypeEvent, Event: sinks.Wire(event)})
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sess := range h.sessions {
		if !sess.enqueue(data) {
			h.dropped.Add(1)
		}
	}
	return nil
}

func (h *Handler) Close(context.Context) error {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]*session)
	h.mu.Unlock()
	for _, sess := range sessions {
		sess.finish()
	}
	return nil
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("inspector upgrade failed: %v", err)
		return
	}

	id := uuid.NewString()
	actorID := r.URL.Query().Get("actor")
	if actorID == "" {
		actorID = "inspector-" + id[:8]
	}
	sess := newSession(id, actorID, conn, h.sendBuffer)
	h.writeJSON(sess, helloMessage{Type: TypeHello, SessionID: id, ActorID: actorID})

	h.mu.Lock()
	h.sessions[id] = sess
	h.mu.Unlock()
	logginglifecycle.InspectorConnected(r.Context(), h.publisher, id, logginglifecycle.InspectorPayload{Remote: sess.remote})
	go sess.writePump()

	reason := h.readLoop(sess)

	h.mu.Lock()
	if h.sessions[id] == sess {
		delete(h.sessions, id)
	}
	h.mu.Unlock()
	sess.finish()
	<-sess.done
	logginglifecycle.InspectorDisconnected(context.Background(), h.publisher, id, logginglifecycle.InspectorPayload{Remote: sess.remote, Reason: reason})
}

func (h *Handler) readLoop(sess *session) string {
	sess.conn.SetReadLimit(maxMessageSize)
	sess.conn.SetReadDeadline(timeNow().Add(pongWait))
	sess.conn.SetPongHandler(func(string) error {
		sess.conn.SetReadDeadline(timeNow().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Printf("inspector %s read failed: %v", sess.id, err)
				return err.Error()
			}
			return "closed"
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", sess.id, err)
			continue
		}

		normalizedSeq := uint64(0)
		if msg.Seq != nil && *msg.Seq > 0 {
			normalizedSeq = *msg.Seq
		}

		switch msg.Type {
		case TypePing:
			h.writeJSON(sess, map[string]string{"type": TypePong})
		case TypeCommand:
			if normalizedSeq > 0 {
				if last := sess.LastCommandSeq(); last > 0 && normalizedSeq <= last {
					h.writeJSON(sess, commandAckMessage{Type: TypeCommandAck, Seq: normalizedSeq})
					continue
				}
			}
			if msg.Command == nil || msg.Command.Type == "" {
				h.writeJSON(sess, commandRejectMessage{Type: TypeCommandReject, Seq: normalizedSeq, Reason: RejectMalformed})
				continue
			}
			h.mu.RLock()
			commands := h.commands
			h.mu.RUnlock()
			if commands == nil {
				h.writeJSON(sess, commandRejectMessage{Type: TypeCommandReject, Seq: normalizedSeq, Reason: RejectUnavailable, Retry: true})
				continue
			}
			cmd := *msg.Command
			cmd.ActorID = sess.actorID
			if cmd.ID == "" {
				cmd.ID = uuid.NewString()
			}
			if cmd.IssuedAt.IsZero() {
				cmd.IssuedAt = timeNow()
			}
			if ok, reason := commands.Enqueue(cmd); !ok {
				h.writeJSON(sess, commandRejectMessage{
					Type:   TypeCommandReject,
					Seq:    normalizedSeq,
					Reason: reason,
					Retry:  reason == sim.CommandRejectQueueLimit,
				})
				continue
			}
			if normalizedSeq > 0 {
				sess.StoreLastCommandSeq(normalizedSeq)
			}
			h.writeJSON(sess, commandAckMessage{Type: TypeCommandAck, Seq: normalizedSeq, ID: cmd.ID})
		default:
			h.logger.Printf("unknown message type %q from %s", msg.Type, sess.id)
		}
	}
}

func (h *Handler) writeJSON(sess *session, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Printf("failed to marshal response for %s: %v", sess.id, err)
		return
	}
	if !sess.enqueue(data) {
		h.logger.Printf("inspector %s outbound queue full", sess.id)
	}
}
