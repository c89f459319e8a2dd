package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/oneplusresilience/backend/internal/middleware"
	"github.com/oneplusresilience/backend/internal/models"
)

type SuggestionService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewSuggestionService(db *sql.DB) *SuggestionService {
	return &SuggestionService{db: db, validator: NewValidationHelper()}
}

type submitSuggestionRequest struct {
	Subject string `json:"subject" validate:"required,max=255"`
	Message string `json:"message" validate:"required"`
}

// SubmitSuggestion records a member suggestion
// @Summary Submit suggestion
// @Tags suggestions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body submitSuggestionRequest true "Suggestion"
// @Success 201 {object} models.Suggestion
// @Router /suggestions [post]
func (s *SuggestionService) SubmitSuggestion(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req submitSuggestionRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	suggestion := models.Suggestion{UserID: userID, Subject: req.Subject, Message: req.Message}
	err := s.db.QueryRow(`
		INSERT INTO suggestions (user_id, subject, message)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		suggestion.UserID, suggestion.Subject, suggestion.Message).
		Scan(&suggestion.ID, &suggestion.CreatedAt)
	if err != nil {
		log.Printf("[SUGGESTION] Submission failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to submit suggestion", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(suggestion)
}

// ListSuggestions lists suggestions, newest first
// @Summary List suggestions
// @Tags suggestions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Suggestion
// @Router /suggestions [get]
func (s *SuggestionService) ListSuggestions(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(`
		SELECT id, user_id, subject, message, created_at
		FROM suggestions
		ORDER BY created_at DESC`)
	if err != nil {
		log.Printf("[SUGGESTION] List query failed: %v", err)
		SendErrorResponse(w, "Failed to list suggestions", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	suggestions := []models.Suggestion{}
	for rows.Next() {
		var sg models.Suggestion
		if err := rows.Scan(&sg.ID, &sg.UserID, &sg.Subject, &sg.Message, &sg.CreatedAt); err != nil {
			log.Printf("[SUGGESTION] List scan failed: %v", err)
			SendErrorResponse(w, "Failed to list suggestions", http.StatusInternalServerError, nil)
			return
		}
		suggestions = append(suggestions, sg)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"suggestions": suggestions})
}
