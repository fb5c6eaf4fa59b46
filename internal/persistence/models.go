package persistence

import "time"

// User represents a family member account as stored.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	Role         string
	PasswordHash string
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Event represents a calendar series anchor as stored. RecurrenceJSON holds
// the serialized recurrence rule, nil for one-off events. HiddenFrom is the
// set of user IDs the event is concealed from.
type Event struct {
	ID             string
	Title          string
	Description    string
	Location       string
	Category       string
	Color          string
	ImageURL       string
	Start          time.Time
	End            *time.Time
	AllDay         bool
	RecurrenceJSON *string
	CreatedByID    string
	HiddenFrom     []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RSVP represents one member's attendance answer for one event. At most one
// row exists per (event, user) pair.
type RSVP struct {
	EventID   string
	UserID    string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}
