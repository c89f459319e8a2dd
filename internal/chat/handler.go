package chat

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/oneplusresilience/backend/internal/middleware"
	"github.com/oneplusresilience/backend/internal/models"
	"github.com/oneplusresilience/backend/internal/services"
)

// Handler exposes the WebSocket endpoint and the room REST surface.
type Handler struct {
	hub       *Hub
	store     *Store
	validator *services.ValidationHelper
	upgrader  websocket.Upgrader
}

func NewHandler(hub *Hub, store *Store) *Handler {
	return &Handler{
		hub:       hub,
		store:     store,
		validator: services.NewValidationHelper(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers cannot set Authorization on WebSocket requests;
			// tokens arrive via query parameter and CORS is enforced at
			// the router, so cross-origin upgrades are allowed here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the connection and runs the connect sequence: accept
// first, then authorize, so a rejected peer receives a structured close code
// instead of a bare drop.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[CHAT] Upgrade failed: %v", err)
		return
	}

	session := newSession(conn, h.hub, h.store)

	room, userID, username, ok := h.resolveRoomAndUser(r)
	if !ok {
		session.closeUnauthorized()
		return
	}

	session.room = room
	session.userID = userID
	session.username = username
	h.hub.Join(room.ID, session)

	go session.writePump()

	// Acknowledgement goes to the caller only, not the group.
	session.sendJSON(map[string]string{
		"type":    "connection_status",
		"message": "Connected successfully",
	})

	session.readPump()
}

// resolveRoomAndUser authorizes the connect. Missing room, invalid token and
// non-participant caller all collapse into the same negative outcome; nothing
// about the cause leaks to the client.
func (h *Handler) resolveRoomAndUser(r *http.Request) (*models.ChatRoom, int, string, bool) {
	roomID, err := strconv.Atoi(chi.URLParam(r, "roomId"))
	if err != nil {
		return nil, 0, "", false
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		}
	}
	claims, err := middleware.ValidateToken(r.Context(), token)
	if err != nil {
		return nil, 0, "", false
	}

	room, err := h.store.GetRoom(roomID)
	if err != nil {
		log.Printf("[CHAT] Room %d resolution failed: %v", roomID, err)
		return nil, 0, "", false
	}
	if !room.IsParticipant(claims.UserID) {
		log.Printf("[CHAT] User %d is not a participant of room %d", claims.UserID, roomID)
		return nil, 0, "", false
	}

	member, err := h.store.GetMember(claims.UserID)
	if err != nil {
		return nil, 0, "", false
	}

	return room, claims.UserID, member.DisplayName(), true
}

type createRoomRequest struct {
	UserID int `json:"user_id" validate:"required,gt=0"`
}

// CreateRoom opens (or returns) the direct-message room with another user
// @Summary Open chat room
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createRoomRequest true "Peer user"
// @Success 200 {object} models.ChatRoom
// @Failure 400 {object} services.ErrorResponse
// @Router /chat/rooms [post]
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req createRoomRequest
	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	room, err := h.store.GetOrCreateRoom(userID, req.UserID)
	if err != nil {
		log.Printf("[CHAT] Room creation failed for users %d/%d: %v", userID, req.UserID, err)
		services.SendErrorResponse(w, "Failed to open chat room", http.StatusBadRequest, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(room)
}

// roomView is a room as seen by one participant, with the peer called out
// so clients need not work out which side of the pair they are.
type roomView struct {
	models.ChatRoom
	PeerID int `json:"peer_id"`
}

// ListRooms lists the caller's chat rooms
// @Summary List my chat rooms
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.ChatRoom
// @Router /chat/rooms [get]
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rooms, err := h.store.ListRoomsForUser(userID)
	if err != nil {
		log.Printf("[CHAT] Room listing failed for user %d: %v", userID, err)
		services.SendErrorResponse(w, "Failed to list rooms", http.StatusInternalServerError, nil)
		return
	}

	views := make([]roomView, 0, len(rooms))
	for _, room := range rooms {
		views = append(views, roomView{ChatRoom: room, PeerID: room.OtherUser(userID)})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"rooms": views})
}

// ListMessages returns a room's history to a participant
// @Summary List room messages
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param roomId path int true "Room ID"
// @Success 200 {array} models.ChatMessage
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /chat/rooms/{roomId}/messages [get]
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	roomID, err := strconv.Atoi(chi.URLParam(r, "roomId"))
	if err != nil {
		services.SendErrorResponse(w, "Invalid room id", http.StatusBadRequest, nil)
		return
	}

	room, err := h.store.GetRoom(roomID)
	if err != nil {
		services.SendErrorResponse(w, "Room not found", http.StatusNotFound, nil)
		return
	}
	if !room.IsParticipant(userID) {
		services.SendErrorResponse(w, "Insufficient permissions", http.StatusForbidden, nil)
		return
	}

	messages, err := h.store.ListMessages(roomID)
	if err != nil {
		log.Printf("[CHAT] Message listing failed for room %d: %v", roomID, err)
		services.SendErrorResponse(w, "Failed to list messages", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"messages": messages})
}
