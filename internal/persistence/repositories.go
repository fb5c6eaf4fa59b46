package persistence

import "context"
import "time"

// UserRepository exposes CRUD operations for family member accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	SetPasswordHash(ctx context.Context, userID, passwordHash string) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	MissingUserIDs(ctx context.Context, ids []string) ([]string, error)
	DeleteUser(ctx context.Context, id string) error
}

// EventFilter narrows candidate event queries. StartsOnOrBefore applies to
// one-off events only; recurring events are always returned because their
// anchor start may precede any window.
type EventFilter struct {
	StartsOnOrBefore *time.Time
	Category         *string
}

// EventRepository stores series anchors and their hidden-from sets.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) error
	UpdateEvent(ctx context.Context, event Event) error
	GetEvent(ctx context.Context, id string) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	ReplaceHiddenFrom(ctx context.Context, eventID string, userIDs []string) error
	DeleteEvent(ctx context.Context, id string) error
}

// RSVPRepository stores series-wide attendance answers.
type RSVPRepository interface {
	UpsertRSVP(ctx context.Context, rsvp RSVP) (RSVP, error)
	DeleteRSVP(ctx context.Context, eventID, userID string) error
	ListRSVPsForEvents(ctx context.Context, eventIDs []string) (map[string][]RSVP, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
