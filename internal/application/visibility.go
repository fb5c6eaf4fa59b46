package application

import "slices"

// IsVisible reports whether the viewer may see the event at all. A member
// listed in the event's hidden-from set cannot see it, unless they are an
// admin: surprise events must not be able to blind operational oversight.
//
// Occurrences inherit the anchor's hidden-from set, so the same answer
// applies to every occurrence of a series.
func IsVisible(event Event, viewer Principal) bool {
	if viewer.Role == RoleAdmin {
		return true
	}
	return !slices.Contains(event.HiddenFrom, viewer.UserID)
}

// CanSeeHiddenFrom reports whether the viewer may learn who an event is
// hidden from. Only the creator and admins need that to confirm the
// exclusion list; exposing it to anyone else would leak who is being
// surprised.
func CanSeeHiddenFrom(event Event, viewer Principal) bool {
	return viewer.Role == RoleAdmin || event.CreatedByID == viewer.UserID
}

// RedactHiddenFrom returns the hidden-from set as the viewer may see it:
// a non-nil copy for the creator and admins, nil for everyone else. A nil
// result means the field must be absent from any rendered view, not merely
// empty.
func RedactHiddenFrom(event Event, viewer Principal) []string {
	if !CanSeeHiddenFrom(event, viewer) {
		return nil
	}
	out := make([]string, len(event.HiddenFrom))
	copy(out, event.HiddenFrom)
	return out
}
