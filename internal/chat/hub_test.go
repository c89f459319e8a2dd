package chat

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func drain(s *Session) []Event {
	events := []Event{}
	for {
		select {
		case payload := <-s.send:
			var ev Event
			if err := json.Unmarshal(payload, &ev); err == nil {
				events = append(events, ev)
			}
		default:
			return events
		}
	}
}

func TestHub_LocalFanOutReachesWholeRoom(t *testing.T) {
	hub := NewHub(nil)

	alice := newSession(nil, hub, nil)
	bob := newSession(nil, hub, nil)
	outsider := newSession(nil, hub, nil)

	hub.Join(1, alice)
	hub.Join(1, bob)
	hub.Join(2, outsider)

	err := hub.Publish(context.Background(), 1, Event{Message: "habari", Username: "asha", Timestamp: "2:15 PM"})
	assert.NoError(t, err)

	for _, s := range []*Session{alice, bob} {
		events := drain(s)
		assert.Len(t, events, 1)
		assert.Equal(t, "habari", events[0].Message)
		assert.Equal(t, "asha", events[0].Username)
	}
	assert.Empty(t, drain(outsider))
}

func TestHub_SenderReceivesOwnBroadcast(t *testing.T) {
	hub := NewHub(nil)
	sender := newSession(nil, hub, nil)
	hub.Join(1, sender)

	assert.NoError(t, hub.Publish(context.Background(), 1, Event{Message: "hi", Username: "asha"}))
	assert.Len(t, drain(sender), 1)
}

func TestHub_LeaveIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	s := newSession(nil, hub, nil)

	hub.Join(1, s)
	assert.Equal(t, 1, hub.members(1))

	hub.Leave(1, s)
	hub.Leave(1, s)
	assert.Equal(t, 0, hub.members(1))

	// leaving a room nobody ever joined is a no-op
	hub.Leave(99, s)
}

func TestHub_PublishToEmptyRoomIsSilent(t *testing.T) {
	hub := NewHub(nil)
	assert.NoError(t, hub.Publish(context.Background(), 7, Event{Message: "anyone?"}))
}
