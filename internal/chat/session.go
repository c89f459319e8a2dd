package chat

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oneplusresilience/backend/internal/models"
)

// CloseUnauthorized is the distinguished close code sent on any failure while
// resolving the room or the caller during connect. Missing room,
// non-participant and unauthenticated caller are deliberately
// indistinguishable to the peer.
const CloseUnauthorized = 4003

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// Outbound events use a wall-clock time-of-day string.
	timestampLayout = "3:04 PM"
)

// Session is one WebSocket connection to a chat room. A session processes its
// own inbound messages in arrival order; cross-session ordering within a room
// follows publish order into the broadcast group.
type Session struct {
	conn  *websocket.Conn
	hub   *Hub
	store *Store

	// set only after authorization succeeds
	userID   int
	username string
	room     *models.ChatRoom

	send chan []byte
	once chan struct{} // closed exactly once on teardown
}

func newSession(conn *websocket.Conn, hub *Hub, store *Store) *Session {
	return &Session{
		conn:  conn,
		hub:   hub,
		store: store,
		send:  make(chan []byte, 32),
		once:  make(chan struct{}),
	}
}

// authorized reports whether the session completed the connect sequence.
func (s *Session) authorized() bool {
	return s.room != nil
}

// closeUnauthorized sends the distinguished close code and drops the
// connection without further message processing.
func (s *Session) closeUnauthorized() {
	msg := websocket.FormatCloseMessage(CloseUnauthorized, "unauthorized")
	s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	s.conn.Close()
}

// deliver queues an outbound payload. Slow consumers are disconnected rather
// than allowed to block the room's fan-out.
func (s *Session) deliver(payload []byte) {
	select {
	case s.send <- payload:
	default:
		// The hub's read lock may be held here; teardown re-enters the
		// hub, so it must run outside this call.
		go s.teardown()
	}
}

func (s *Session) sendJSON(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.deliver(payload)
}

// teardown leaves the broadcast group and closes the connection. Idempotent,
// and safe for sessions that never joined a group.
func (s *Session) teardown() {
	select {
	case <-s.once:
		return
	default:
		close(s.once)
	}
	if s.room != nil {
		s.hub.Leave(s.room.ID, s)
	}
	s.conn.Close()
}

// handleInbound processes one raw client frame.
func (s *Session) handleInbound(raw []byte) {
	if !s.authorized() {
		s.sendJSON(map[string]string{"error": "You are not authorized or the room does not exist."})
		return
	}

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.sendJSON(map[string]string{"error": "Invalid message payload."})
		return
	}

	// Empty or whitespace-only content is dropped silently.
	if strings.TrimSpace(payload.Message) == "" {
		return
	}

	now := time.Now()
	if _, err := s.store.SaveMessage(s.room.ID, s.userID, payload.Message, now); err != nil {
		log.Printf("[CHAT] Failed to persist message in room %d: %v", s.room.ID, err)
		s.sendJSON(map[string]string{"error": "Failed to send message."})
		return
	}

	ev := Event{
		Message:   payload.Message,
		Username:  s.username,
		Timestamp: now.Format(timestampLayout),
	}
	if err := s.hub.Publish(context.Background(), s.room.ID, ev); err != nil {
		log.Printf("[CHAT] Failed to publish to room %d: %v", s.room.ID, err)
	}
}

func (s *Session) readPump() {
	defer s.teardown()
	s.conn.SetReadLimit(4096)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleInbound(raw)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.teardown()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.once:
			return
		}
	}
}
