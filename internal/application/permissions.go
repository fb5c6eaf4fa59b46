package application

// Permission checks are stateless and re-evaluated on every mutating
// request; nothing here is cached on the event.

// CanCreateEvents reports whether the viewer may create calendar events.
// Child accounts cannot.
func CanCreateEvents(viewer Principal) bool {
	return viewer.Role == RoleAdmin || viewer.Role == RoleMember
}

// CanEditEvent reports whether the viewer may edit or delete the event:
// its creator, or an admin. No other member may touch someone else's event.
func CanEditEvent(event Event, viewer Principal) bool {
	return viewer.Role == RoleAdmin || event.CreatedByID == viewer.UserID
}

// CanSetImage reports whether the viewer may attach or clear event images.
// Images are a moderated resource: admin only, even for the event's creator.
func CanSetImage(viewer Principal) bool {
	return viewer.Role == RoleAdmin
}

// CanRSVP reports whether the viewer may submit an attendance answer.
// Child accounts see RSVPs read-only.
func CanRSVP(viewer Principal) bool {
	return viewer.Role == RoleAdmin || viewer.Role == RoleMember
}
