package chat

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/oneplusresilience/backend/internal/models"
)

// Store persists chat rooms and messages.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetRoom loads a room by id. Returns sql.ErrNoRows when it does not exist.
func (st *Store) GetRoom(roomID int) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := st.db.QueryRow(`
		SELECT id, user1_id, user2_id, created_at
		FROM chat_rooms
		WHERE id = $1`, roomID).
		Scan(&room.ID, &room.User1ID, &room.User2ID, &room.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// GetOrCreateRoom returns the unique room for a user pair, creating it on
// first use. The pair is stored ordered so the unique constraint holds
// regardless of who starts the chat.
func (st *Store) GetOrCreateRoom(userA, userB int) (*models.ChatRoom, error) {
	if userA == userB {
		return nil, fmt.Errorf("cannot open a chat room with yourself")
	}
	user1, user2 := userA, userB
	if user1 > user2 {
		user1, user2 = user2, user1
	}

	var room models.ChatRoom
	err := st.db.QueryRow(`
		INSERT INTO chat_rooms (user1_id, user2_id)
		VALUES ($1, $2)
		ON CONFLICT (user1_id, user2_id) DO UPDATE SET user1_id = EXCLUDED.user1_id
		RETURNING id, user1_id, user2_id, created_at`,
		user1, user2).
		Scan(&room.ID, &room.User1ID, &room.User2ID, &room.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// SaveMessage persists one message and returns its id.
func (st *Store) SaveMessage(roomID, senderID int, content string, timestamp time.Time) (int, error) {
	var id int
	err := st.db.QueryRow(`
		INSERT INTO chat_messages (room_id, sender_id, content, timestamp)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		roomID, senderID, content, timestamp).Scan(&id)
	return id, err
}

// ListMessages returns a room's messages in send order.
func (st *Store) ListMessages(roomID int) ([]models.ChatMessage, error) {
	rows, err := st.db.Query(`
		SELECT id, room_id, sender_id, content, timestamp
		FROM chat_messages
		WHERE room_id = $1
		ORDER BY timestamp`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.ChatMessage{}
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ListRoomsForUser returns every room the user participates in.
func (st *Store) ListRoomsForUser(userID int) ([]models.ChatRoom, error) {
	rows, err := st.db.Query(`
		SELECT id, user1_id, user2_id, created_at
		FROM chat_rooms
		WHERE user1_id = $1 OR user2_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := []models.ChatRoom{}
	for rows.Next() {
		var room models.ChatRoom
		if err := rows.Scan(&room.ID, &room.User1ID, &room.User2ID, &room.CreatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// GetMember loads the identity fields needed to label outbound events.
func (st *Store) GetMember(userID int) (*models.User, error) {
	var user models.User
	err := st.db.QueryRow(`
		SELECT id, username, email
		FROM users
		WHERE id = $1`, userID).
		Scan(&user.ID, &user.Username, &user.Email)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
