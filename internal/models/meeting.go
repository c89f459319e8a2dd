package models

import "time"

type Meeting struct {
	ID             int       `json:"id" db:"id"`
	Title          string    `json:"title" db:"title"`
	OrganizerID    *int      `json:"organizer_id" db:"organizer_id"`
	StartTime      time.Time `json:"start_time" db:"start_time"`
	EndTime        time.Time `json:"end_time" db:"end_time"`
	Location       string    `json:"location" db:"location"`
	Description    string    `json:"description" db:"description"`
	ConferenceLink string    `json:"conference_link" db:"conference_link"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// IsCurrent reports whether the meeting is live at the given instant.
func (m *Meeting) IsCurrent(now time.Time) bool {
	return !m.StartTime.After(now) && now.Before(m.EndTime)
}

// IsPast reports whether the meeting has ended.
func (m *Meeting) IsPast(now time.Time) bool {
	return !now.Before(m.EndTime)
}

// IsToday reports whether the meeting starts on the given day.
func (m *Meeting) IsToday(now time.Time) bool {
	y1, mo1, d1 := m.StartTime.Date()
	y2, mo2, d2 := now.Date()
	return y1 == y2 && mo1 == mo2 && d1 == d2
}

// IsTomorrow reports whether the meeting starts the day after the given day.
func (m *Meeting) IsTomorrow(now time.Time) bool {
	return m.IsToday(now.AddDate(0, 0, 1))
}

type Suggestion struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	Subject   string    `json:"subject" db:"subject"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
