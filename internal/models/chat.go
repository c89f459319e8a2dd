package models

import "time"

// ChatRoom is a direct-message room between exactly two users. The pair is
// unique: one room per pair.
type ChatRoom struct {
	ID        int       `json:"id" db:"id"`
	User1ID   int       `json:"user1_id" db:"user1_id"`
	User2ID   int       `json:"user2_id" db:"user2_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsParticipant reports whether userID is one of the room's two fixed members.
func (r *ChatRoom) IsParticipant(userID int) bool {
	return userID == r.User1ID || userID == r.User2ID
}

// OtherUser returns the peer of the given participant.
func (r *ChatRoom) OtherUser(userID int) int {
	if userID == r.User1ID {
		return r.User2ID
	}
	return r.User1ID
}

type ChatMessage struct {
	ID        int       `json:"id" db:"id"`
	RoomID    int       `json:"room_id" db:"room_id"`
	SenderID  int       `json:"sender_id" db:"sender_id"`
	Content   string    `json:"content" db:"content"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}
