package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/oneplusresilience/backend/internal/middleware"
	"github.com/oneplusresilience/backend/internal/models"
)

type MeetingService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewMeetingService(db *sql.DB) *MeetingService {
	return &MeetingService{db: db, validator: NewValidationHelper()}
}

type createMeetingRequest struct {
	Title          string `json:"title" validate:"required,max=200"`
	StartTime      string `json:"start_time" validate:"required"` // RFC 3339
	EndTime        string `json:"end_time" validate:"required"`
	Location       string `json:"location" validate:"max=255"`
	Description    string `json:"description"`
	ConferenceLink string `json:"conference_link" validate:"omitempty,url,max=200"`
}

// CreateMeeting schedules a meeting
// @Summary Create meeting
// @Tags meetings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createMeetingRequest true "Meeting data"
// @Success 201 {object} models.Meeting
// @Failure 400 {object} ErrorResponse
// @Router /meetings [post]
func (s *MeetingService) CreateMeeting(w http.ResponseWriter, r *http.Request) {
	organizerID, _ := middleware.UserIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req createMeetingRequest
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

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		SendErrorResponse(w, "start_time must be RFC 3339", http.StatusBadRequest, nil)
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		SendErrorResponse(w, "end_time must be RFC 3339", http.StatusBadRequest, nil)
		return
	}
	if !end.After(start) {
		SendErrorResponse(w, "end_time must be after start_time", http.StatusBadRequest, nil)
		return
	}

	meeting := models.Meeting{
		Title:          req.Title,
		OrganizerID:    &organizerID,
		StartTime:      start,
		EndTime:        end,
		Location:       req.Location,
		Description:    req.Description,
		ConferenceLink: req.ConferenceLink,
	}

	err = s.db.QueryRow(`
		INSERT INTO meetings (title, organizer_id, start_time, end_time, location, description, conference_link)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		meeting.Title, meeting.OrganizerID, meeting.StartTime, meeting.EndTime,
		meeting.Location, meeting.Description, meeting.ConferenceLink).
		Scan(&meeting.ID, &meeting.CreatedAt, &meeting.UpdatedAt)
	if err != nil {
		log.Printf("[MEETING] Creation failed: %v", err)
		SendErrorResponse(w, "Failed to create meeting", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(meeting)
}

type meetingView struct {
	models.Meeting
	IsCurrent  bool `json:"is_current"`
	IsPast     bool `json:"is_past"`
	IsToday    bool `json:"is_today"`
	IsTomorrow bool `json:"is_tomorrow"`
}

// ListMeetings lists meetings in start order with derived time flags
// @Summary List meetings
// @Tags meetings
// @Produce json
// @Security BearerAuth
// @Success 200 {array} meetingView
// @Router /meetings [get]
func (s *MeetingService) ListMeetings(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(`
		SELECT id, title, organizer_id, start_time, end_time, location, description,
		       conference_link, created_at, updated_at
		FROM meetings
		ORDER BY start_time`)
	if err != nil {
		log.Printf("[MEETING] List query failed: %v", err)
		SendErrorResponse(w, "Failed to list meetings", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	now := time.Now()
	meetings := []meetingView{}
	for rows.Next() {
		var m models.Meeting
		if err := rows.Scan(&m.ID, &m.Title, &m.OrganizerID, &m.StartTime, &m.EndTime,
			&m.Location, &m.Description, &m.ConferenceLink, &m.CreatedAt, &m.UpdatedAt); err != nil {
			log.Printf("[MEETING] List scan failed: %v", err)
			SendErrorResponse(w, "Failed to list meetings", http.StatusInternalServerError, nil)
			return
		}
		meetings = append(meetings, meetingView{
			Meeting:    m,
			IsCurrent:  m.IsCurrent(now),
			IsPast:     m.IsPast(now),
			IsToday:    m.IsToday(now),
			IsTomorrow: m.IsTomorrow(now),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"meetings": meetings})
}
