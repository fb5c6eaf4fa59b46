// Package testfixtures provides deterministic clocks, ID generators and
// domain object builders shared by the portal's test suites.
package testfixtures

import (
	"time"

	"github.com/example/family-portal/internal/application"
	"github.com/example/family-portal/internal/recurrence"
)

// ReferenceTime is the fixed instant test data is anchored to.
func ReferenceTime() time.Time {
	return time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC)
}

// AdminPrincipal returns a principal with the admin role.
func AdminPrincipal(userID string) application.Principal {
	return application.Principal{UserID: userID, Role: application.RoleAdmin}
}

// MemberPrincipal returns a principal with the member role.
func MemberPrincipal(userID string) application.Principal {
	return application.Principal{UserID: userID, Role: application.RoleMember}
}

// ChildPrincipal returns a principal with the child role.
func ChildPrincipal(userID string) application.Principal {
	return application.Principal{UserID: userID, Role: application.RoleChild}
}

// Event builds a one-off event anchored at ReferenceTime, then applies the
// given mutations.
func Event(id, creatorID string, mutate ...func(*application.Event)) application.Event {
	ref := ReferenceTime()
	event := application.Event{
		ID:          id,
		Title:       "Family dinner",
		Category:    application.CategoryGeneral,
		Start:       ref,
		CreatedByID: creatorID,
		CreatedAt:   ref,
		UpdatedAt:   ref,
	}
	for _, fn := range mutate {
		fn(&event)
	}
	return event
}

// WeeklyEvent builds a recurring event repeating every week on the anchor's
// weekday.
func WeeklyEvent(id, creatorID string, mutate ...func(*application.Event)) application.Event {
	return Event(id, creatorID, append([]func(*application.Event){
		func(event *application.Event) {
			event.Recurrence = &recurrence.Rule{
				Frequency: recurrence.FrequencyWeekly,
				Interval:  1,
			}
		},
	}, mutate...)...)
}

// User builds a member account.
func User(id, email string, role application.Role) application.User {
	ref := ReferenceTime()
	return application.User{
		ID:          id,
		Email:       email,
		DisplayName: "User " + id,
		Role:        role,
		CreatedAt:   ref,
		UpdatedAt:   ref,
	}
}
