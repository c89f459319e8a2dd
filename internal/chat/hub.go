package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/go-redis/redis/v8"
)

// Event is the broadcast payload fanned out to every session in a room.
// Timestamp is a localized time-of-day string, not a machine timestamp.
type Event struct {
	Message   string `json:"message"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
}

// Hub is the broadcast-group registry: one group per chat room. The local
// session table is the only shared mutable structure in this package and is
// guarded by mu. With Redis present, publishes go through a per-room pub/sub
// channel so delivery order equals publish order and fan-out spans processes;
// without it, events are delivered to local sessions directly.
type Hub struct {
	redis *redis.Client

	mu    sync.RWMutex
	rooms map[int]map[*Session]struct{}
	subs  map[int]*redis.PubSub
}

func NewHub(redisClient *redis.Client) *Hub {
	return &Hub{
		redis: redisClient,
		rooms: make(map[int]map[*Session]struct{}),
		subs:  make(map[int]*redis.PubSub),
	}
}

func roomChannel(roomID int) string {
	return fmt.Sprintf("chat:room:%d", roomID)
}

// Join adds a session to a room's broadcast group. The first local member of
// a room starts its Redis subscriber.
func (h *Hub) Join(roomID int, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions, ok := h.rooms[roomID]
	if !ok {
		sessions = make(map[*Session]struct{})
		h.rooms[roomID] = sessions
		if h.redis != nil {
			sub := h.redis.Subscribe(context.Background(), roomChannel(roomID))
			h.subs[roomID] = sub
			go h.relay(roomID, sub)
		}
	}
	sessions[s] = struct{}{}
}

// Leave removes a session from a room's group. Idempotent; safe to call for
// sessions that never joined. The last member out stops the subscriber.
func (h *Hub) Leave(roomID int, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(sessions, s)
	if len(sessions) == 0 {
		delete(h.rooms, roomID)
		if sub, ok := h.subs[roomID]; ok {
			delete(h.subs, roomID)
			sub.Close()
		}
	}
}

// Publish sends an event to every session in the room's group.
func (h *Hub) Publish(ctx context.Context, roomID int, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if h.redis != nil {
		return h.redis.Publish(ctx, roomChannel(roomID), payload).Err()
	}

	h.deliverLocal(roomID, payload)
	return nil
}

// relay pumps a room's Redis channel into the local sessions until the
// subscription is closed by the last Leave.
func (h *Hub) relay(roomID int, sub *redis.PubSub) {
	for msg := range sub.Channel() {
		h.deliverLocal(roomID, []byte(msg.Payload))
	}
	log.Printf("[CHAT] Subscriber for room %d stopped", roomID)
}

func (h *Hub) deliverLocal(roomID int, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.rooms[roomID] {
		s.deliver(payload)
	}
}

// members reports the room's local session count.
func (h *Hub) members(roomID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
