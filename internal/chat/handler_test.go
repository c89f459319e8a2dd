package chat

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/oneplusresilience/backend/internal/middleware"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func chatToken(t *testing.T, userID int) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    "member",
		"exp":     time.Now().Add(time.Hour).Unix(),
		"iat":     time.Now().Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	assert.NoError(t, err)
	return signed
}

func newChatServer(t *testing.T) (*httptest.Server, sqlmock.Sqlmock, func()) {
	viper.Set("jwt.secret_key", "test-secret")

	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	handler := NewHandler(NewHub(nil), NewStore(db))
	router := chi.NewRouter()
	router.Get("/ws/chat/{roomId}", handler.ServeWS)

	server := httptest.NewServer(router)
	return server, mock, func() {
		server.Close()
		db.Close()
	}
}

func dialChat(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NoError(t, err)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func expectRoomLookup(mock sqlmock.Sqlmock, roomID, user1, user2 int) {
	mock.ExpectQuery("FROM chat_rooms").
		WithArgs(roomID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user1_id", "user2_id", "created_at"}).
			AddRow(roomID, user1, user2, time.Now()))
}

func TestServeWS_ConnectSendReceive(t *testing.T) {
	server, mock, teardown := newChatServer(t)
	defer teardown()

	expectRoomLookup(mock, 1, 7, 9)
	mock.ExpectQuery("FROM users").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email"}).
			AddRow(7, "asha", "asha@example.org"))
	mock.ExpectQuery("INSERT INTO chat_messages").
		WithArgs(1, 7, "habari", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	conn := dialChat(t, server, "/ws/chat/1?token="+chatToken(t, 7))
	defer conn.Close()

	// the ack goes to the connecting session only
	var ack map[string]string
	_, payload, err := conn.ReadMessage()
	assert.NoError(t, err)
	assert.NoError(t, json.Unmarshal(payload, &ack))
	assert.Equal(t, "connection_status", ack["type"])
	assert.Equal(t, "Connected successfully", ack["message"])

	assert.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"message": "habari"}`)))

	var ev Event
	_, payload, err = conn.ReadMessage()
	assert.NoError(t, err)
	assert.NoError(t, json.Unmarshal(payload, &ev))
	assert.Equal(t, "habari", ev.Message)
	assert.Equal(t, "asha", ev.Username)
	assert.Regexp(t, timestampPattern, ev.Timestamp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRooms_AnnotatesEachRoomWithPeer(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	handler := NewHandler(NewHub(nil), NewStore(db))

	mock.ExpectQuery("FROM chat_rooms").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user1_id", "user2_id", "created_at"}).
			AddRow(1, 7, 9, time.Now()).
			AddRow(2, 3, 7, time.Now()))

	req := httptest.NewRequest("GET", "/chat/rooms", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, 7))
	rec := httptest.NewRecorder()
	handler.ListRooms(rec, req)

	assert.Equal(t, 200, rec.Code)
	var body struct {
		Rooms []struct {
			ID     int `json:"id"`
			PeerID int `json:"peer_id"`
		} `json:"rooms"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Rooms, 2)
	assert.Equal(t, 9, body.Rooms[0].PeerID)
	assert.Equal(t, 3, body.Rooms[1].PeerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServeWS_InvalidTokenClosesWithAuthCode(t *testing.T) {
	server, _, teardown := newChatServer(t)
	defer teardown()

	// the upgrade is accepted first so the peer sees a structured close code
	conn := dialChat(t, server, "/ws/chat/1?token=garbage")
	defer conn.Close()

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, CloseUnauthorized), "expected close %d, got %v", CloseUnauthorized, err)
}

func TestServeWS_NonParticipantClosesWithAuthCode(t *testing.T) {
	server, mock, teardown := newChatServer(t)
	defer teardown()

	expectRoomLookup(mock, 1, 7, 9)

	conn := dialChat(t, server, "/ws/chat/1?token="+chatToken(t, 8))
	defer conn.Close()

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, CloseUnauthorized), "expected close %d, got %v", CloseUnauthorized, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServeWS_MissingRoomClosesWithAuthCode(t *testing.T) {
	server, mock, teardown := newChatServer(t)
	defer teardown()

	mock.ExpectQuery("FROM chat_rooms").
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user1_id", "user2_id", "created_at"}))

	conn := dialChat(t, server, "/ws/chat/42?token="+chatToken(t, 7))
	defer conn.Close()

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, CloseUnauthorized), "expected close %d, got %v", CloseUnauthorized, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
