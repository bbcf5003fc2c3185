package models

import "time"

type Session struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Platform        string    `json:"platform"`
	CoachID         *int64    `json:"coach_id"`
	MaxParticipants int       `json:"max_participants"`
	IsFree          bool      `json:"is_free"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Enrollment struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session_id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionDetail struct {
	Session
	EnrollmentCount int  `json:"enrollment_count"`
	Enrolled        bool `json:"enrolled"`
	Joinable        bool `json:"joinable"`
}
