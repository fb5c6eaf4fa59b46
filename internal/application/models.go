package application

import (
	"time"

	"github.com/example/family-portal/internal/recurrence"
)

// Role classifies a family member's account.
type Role string

const (
	// RoleAdmin may manage every event, account and image in the portal.
	RoleAdmin Role = "admin"
	// RoleMember may create events and manage their own.
	RoleMember Role = "member"
	// RoleChild may browse the calendar but not create events or RSVP.
	RoleChild Role = "child"
)

// KnownRole reports whether the role is one of the portal's three roles.
func KnownRole(role Role) bool {
	return role == RoleAdmin || role == RoleMember || role == RoleChild
}

// Principal represents the authenticated family member invoking a service
// method. It is derived per request and never stored.
type Principal struct {
	UserID string
	Role   Role
}

// Category is the closed set of calendar event categories.
type Category string

const (
	CategoryGeneral     Category = "general"
	CategoryBirthday    Category = "birthday"
	CategoryAppointment Category = "appointment"
	CategoryHoliday     Category = "holiday"
	CategorySchool      Category = "school"
	CategoryTrip        Category = "trip"
)

// KnownCategory reports whether the category is part of the closed set.
func KnownCategory(category Category) bool {
	switch category {
	case CategoryGeneral, CategoryBirthday, CategoryAppointment, CategoryHoliday, CategorySchool, CategoryTrip:
		return true
	}
	return false
}

// Event is the stored series anchor. For a recurring event the anchor's
// Start is the first occurrence; for a one-off it is the event itself.
type Event struct {
	ID          string
	Title       string
	Description string
	Location    string
	Category    Category
	Color       string
	ImageURL    string
	Start       time.Time
	End         *time.Time
	AllDay      bool
	Recurrence  *recurrence.Rule
	CreatedByID string
	HiddenFrom  []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RSVPStatus is a member's series-wide attendance answer.
type RSVPStatus string

const (
	RSVPAttending    RSVPStatus = "attending"
	RSVPMaybe        RSVPStatus = "maybe"
	RSVPNotAttending RSVPStatus = "not_attending"
)

// KnownRSVPStatus reports whether the status is one of the three answers.
func KnownRSVPStatus(status RSVPStatus) bool {
	return status == RSVPAttending || status == RSVPMaybe || status == RSVPNotAttending
}

// RSVP is one member's answer for one anchor event. There is at most one
// per (event, user) pair; every occurrence of the series shares it.
type RSVP struct {
	EventID   string
	UserID    string
	Status    RSVPStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Occurrence is a concrete dated instance derived from an anchor. It is
// recomputed on every query and never persisted.
//
// HiddenFrom is nil when the hidden set was redacted for the viewer; for a
// creator or admin it is always non-nil, possibly empty.
type Occurrence struct {
	ID           string
	Title        string
	Description  string
	Location     string
	Category     Category
	Color        string
	ImageURL     string
	Start        time.Time
	End          *time.Time
	AllDay       bool
	IsRecurring  bool
	OriginalDate time.Time
	CreatedByID  string
	HiddenFrom   []string
	RSVPs        []RSVP
	CanEdit      bool
	CanRSVP      bool
}

// EventInput captures caller-provided event fields.
type EventInput struct {
	Title       string
	Description string
	Location    string
	Category    Category
	Color       string
	Start       time.Time
	End         *time.Time
	AllDay      bool
	Recurrence  *recurrence.Rule
	HiddenFrom  []string
}

// CreateEventParams wraps the data required to create an event.
type CreateEventParams struct {
	Principal Principal
	Input     EventInput
}

// UpdateEventParams wraps the data required to update an existing event.
type UpdateEventParams struct {
	Principal Principal
	EventID   string
	Input     EventInput
}

// ListOccurrencesParams wraps a windowed calendar query. Bounds are
// inclusive on both ends.
type ListOccurrencesParams struct {
	Principal  Principal
	RangeStart time.Time
	RangeEnd   time.Time
	Category   *Category
}

// SetHiddenFromParams replaces an event's hidden-from set.
type SetHiddenFromParams struct {
	Principal Principal
	EventID   string
	UserIDs   []string
}

// SetImageParams attaches or clears an event's image.
type SetImageParams struct {
	Principal Principal
	EventID   string
	ImageURL  string
}

// SetRSVPParams records or changes the caller's RSVP on an event.
type SetRSVPParams struct {
	Principal Principal
	EventID   string
	Status    RSVPStatus
}

// UserInput captures caller-provided account attributes.
type UserInput struct {
	Email       string
	DisplayName string
	Role        Role
	Password    string
}

// User represents a family member account exposed by the services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        Role
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateUserParams wraps the data required to create an account.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateUserParams wraps the data required to update an account.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserInput
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
	Disabled     bool
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// AuthenticateParams captures the data required to log in.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful login.
type AuthenticateResult struct {
	User    User
	Session Session
}
