package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var timeNow = time.Now

// session is one inspector connection. Outbound frames are queued on send
// and written by a single pump goroutine.
type session struct {
	id      string
	actorID string
	remote  string
	conn    *websocket.Conn
	send    chan []byte

	sendMu     sync.Mutex
	sendClosed bool

	closeOnce      sync.Once
	done           chan struct{}
	lastCommandSeq atomic.Uint64
}

func newSession(id, actorID string, conn *websocket.Conn, buffer int) *session {
	return &session{
		id:      id,
		actorID: actorID,
		remote:  conn.RemoteAddr().String(),
		conn:    conn,
		send:    make(chan []byte, buffer),
		done:    make(chan struct{}),
	}
}

// enqueue offers a frame without blocking. It reports false when the
// session is saturated.
func (s *session) enqueue(data []byte) bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.sendClosed {
		return false
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// finish closes the outbound queue; the pump flushes it and says goodbye.
func (s *session) finish() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if !s.sendClosed {
		s.sendClosed = true
		close(s.send)
	}
}

func (s *session) LastCommandSeq() uint64 {
	return s.lastCommandSeq.Load()
}

func (s *session) StoreLastCommandSeq(seq uint64) {
	s.lastCommandSeq.Store(seq)
}

// writePump drains send until it is closed or a write fails.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()
	for {
		select {
		case data, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}
