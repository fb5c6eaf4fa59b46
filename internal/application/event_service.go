package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/example/family-portal/internal/persistence"
	"github.com/example/family-portal/internal/recurrence"
)

// EventRepository captures the persistence interactions needed by the service.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	UpdateEvent(ctx context.Context, event Event) (Event, error)
	DeleteEvent(ctx context.Context, id string) error
	ListCandidateEvents(ctx context.Context, filter EventRepositoryFilter) ([]Event, error)
	ReplaceHiddenFrom(ctx context.Context, eventID string, userIDs []string) error
}

// EventRepositoryFilter narrows candidate queries. StartsOnOrBefore prunes
// one-off events only: a recurring anchor's own start may predate any window
// arbitrarily, so recurring anchors are always returned and the expander
// alone decides which occurrences fall inside.
type EventRepositoryFilter struct {
	StartsOnOrBefore *time.Time
	Category         *Category
}

// RSVPReader exposes the read side of stored attendance answers.
type RSVPReader interface {
	ListRSVPsForEvents(ctx context.Context, eventIDs []string) (map[string][]RSVP, error)
}

// UserDirectory exposes user lookup operations.
type UserDirectory interface {
	MissingUserIDs(ctx context.Context, ids []string) ([]string, error)
}

// EventDetail is a single event as exposed to a specific viewer, with the
// hidden-from set already redacted and per-viewer rights computed.
type EventDetail struct {
	Event   Event
	RSVPs   []RSVP
	CanEdit bool
	CanRSVP bool
}

// EventService orchestrates validation, expansion, visibility and
// persistence for calendar events.
type EventService struct {
	events      EventRepository
	rsvps       RSVPReader
	users       UserDirectory
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewEventService wires dependencies for event operations.
func NewEventService(events EventRepository, rsvps RSVPReader, users UserDirectory, idGenerator func() string, now func() time.Time) *EventService {
	return NewEventServiceWithLogger(events, rsvps, users, idGenerator, now, nil)
}

// NewEventServiceWithLogger constructs an EventService with a specified logger.
func NewEventServiceWithLogger(events EventRepository, rsvps RSVPReader, users UserDirectory, idGenerator func() string, now func() time.Time, logger *slog.Logger) *EventService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &EventService{
		events:      events,
		rsvps:       rsvps,
		users:       users,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *EventService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EventService", operation, attrs...)
}

// CreateEvent validates the request and permission before persisting a new anchor.
func (s *EventService) CreateEvent(ctx context.Context, params CreateEventParams) (Event, error) {
	if s == nil || s.events == nil {
		return Event{}, fmt.Errorf("event service not configured")
	}

	principal := params.Principal
	logger := s.loggerWith(ctx, "CreateEvent", "user_id", principal.UserID)

	if !CanCreateEvents(principal) {
		logger.WarnContext(ctx, "event creation denied", "role", principal.Role)
		return Event{}, ErrForbidden
	}

	input := params.Input
	if err := s.validateEventInput(ctx, input); err != nil {
		return Event{}, err
	}

	createdAt := s.now()
	event := Event{
		ID:          s.idGenerator(),
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Location:    strings.TrimSpace(input.Location),
		Category:    input.Category,
		Color:       strings.TrimSpace(input.Color),
		Start:       input.Start,
		End:         input.End,
		AllDay:      input.AllDay,
		Recurrence:  input.Recurrence,
		CreatedByID: principal.UserID,
		HiddenFrom:  sortStrings(uniqueStrings(input.HiddenFrom)),
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}

	persisted, err := s.events.CreateEvent(ctx, event)
	if err != nil {
		return Event{}, mapEventRepoError(err)
	}

	logger.InfoContext(ctx, "event created", "event_id", persisted.ID, "category", persisted.Category)
	return persisted, nil
}

// UpdateEvent applies visibility masking, authorization and validation
// before updating the stored anchor.
func (s *EventService) UpdateEvent(ctx context.Context, params UpdateEventParams) (Event, error) {
	if s == nil || s.events == nil {
		return Event{}, fmt.Errorf("event service not configured")
	}

	existing, err := s.loadVisible(ctx, params.EventID, params.Principal)
	if err != nil {
		return Event{}, err
	}

	if !CanEditEvent(existing, params.Principal) {
		return Event{}, ErrForbidden
	}

	input := params.Input
	if err := s.validateEventInput(ctx, input); err != nil {
		return Event{}, err
	}

	updated := existing
	updated.Title = strings.TrimSpace(input.Title)
	updated.Description = input.Description
	updated.Location = strings.TrimSpace(input.Location)
	updated.Category = input.Category
	updated.Color = strings.TrimSpace(input.Color)
	updated.Start = input.Start
	updated.End = input.End
	updated.AllDay = input.AllDay
	updated.Recurrence = input.Recurrence
	updated.UpdatedAt = s.now()

	persisted, err := s.events.UpdateEvent(ctx, updated)
	if err != nil {
		return Event{}, mapEventRepoError(err)
	}

	s.loggerWith(ctx, "UpdateEvent", "event_id", persisted.ID).InfoContext(ctx, "event updated")
	return persisted, nil
}

// DeleteEvent removes an anchor and everything derived from it.
func (s *EventService) DeleteEvent(ctx context.Context, principal Principal, eventID string) error {
	if s == nil || s.events == nil {
		return fmt.Errorf("event service not configured")
	}

	existing, err := s.loadVisible(ctx, eventID, principal)
	if err != nil {
		return err
	}

	if !CanEditEvent(existing, principal) {
		return ErrForbidden
	}

	if err := s.events.DeleteEvent(ctx, eventID); err != nil {
		return mapEventRepoError(err)
	}

	s.loggerWith(ctx, "DeleteEvent", "event_id", eventID).InfoContext(ctx, "event deleted")
	return nil
}

// GetEvent returns a single event view for the viewer. A viewer the event
// is hidden from receives ErrNotFound, indistinguishable from a genuinely
// nonexistent event.
func (s *EventService) GetEvent(ctx context.Context, principal Principal, eventID string) (EventDetail, error) {
	if s == nil || s.events == nil {
		return EventDetail{}, fmt.Errorf("event service not configured")
	}

	event, err := s.loadVisible(ctx, eventID, principal)
	if err != nil {
		return EventDetail{}, err
	}

	rsvps, err := s.rsvpsFor(ctx, []string{event.ID})
	if err != nil {
		return EventDetail{}, err
	}

	event.HiddenFrom = RedactHiddenFrom(event, principal)

	return EventDetail{
		Event:   event,
		RSVPs:   rsvps[event.ID],
		CanEdit: CanEditEvent(event, principal),
		CanRSVP: CanRSVP(principal),
	}, nil
}

// ListOccurrences expands every candidate anchor into the inclusive window,
// attaches series-wide RSVPs, applies the viewer's visibility mask and
// returns occurrences sorted by start, ties broken by anchor id.
func (s *EventService) ListOccurrences(ctx context.Context, params ListOccurrencesParams) ([]Occurrence, error) {
	if s == nil || s.events == nil {
		return nil, fmt.Errorf("event service not configured")
	}

	vErr := &ValidationError{}
	if params.RangeStart.IsZero() || params.RangeEnd.IsZero() {
		vErr.add("range", "range start and end are required")
	} else if params.RangeEnd.Before(params.RangeStart) {
		vErr.add("range", "range end must not precede range start")
	}
	if params.Category != nil && !KnownCategory(*params.Category) {
		vErr.add("category", "unknown category")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	logger := s.loggerWith(ctx, "ListOccurrences",
		"user_id", params.Principal.UserID,
		"range_start", params.RangeStart,
		"range_end", params.RangeEnd,
	)

	rangeEnd := params.RangeEnd
	candidates, err := s.events.ListCandidateEvents(ctx, EventRepositoryFilter{
		StartsOnOrBefore: &rangeEnd,
		Category:         params.Category,
	})
	if err != nil {
		return nil, mapEventRepoError(err)
	}

	ids := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		ids = append(ids, candidate.ID)
	}
	rsvps, err := s.rsvpsFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	occurrences := make([]Occurrence, 0, len(candidates))
	for _, anchor := range candidates {
		if !IsVisible(anchor, params.Principal) {
			continue
		}

		instances, err := recurrence.Expand(anchorOf(anchor), anchor.Recurrence, params.RangeStart, params.RangeEnd)
		if err != nil {
			// One malformed stored rule must not abort the whole query.
			logger.ErrorContext(ctx, "skipping event with malformed recurrence rule",
				"event_id", anchor.ID, "error", err)
			continue
		}

		view := anchor
		view.HiddenFrom = RedactHiddenFrom(anchor, params.Principal)

		for _, instance := range instances {
			occurrences = append(occurrences, Occurrence{
				ID:           view.ID,
				Title:        view.Title,
				Description:  view.Description,
				Location:     view.Location,
				Category:     view.Category,
				Color:        view.Color,
				ImageURL:     view.ImageURL,
				Start:        instance.Start,
				End:          instance.End,
				AllDay:       view.AllDay,
				IsRecurring:  anchor.Recurrence != nil,
				OriginalDate: anchor.Start,
				CreatedByID:  view.CreatedByID,
				HiddenFrom:   view.HiddenFrom,
				CanEdit:      CanEditEvent(anchor, params.Principal),
				CanRSVP:      CanRSVP(params.Principal),
			})
		}
	}

	occurrences = AttachRSVPs(occurrences, rsvps)

	sort.SliceStable(occurrences, func(i, j int) bool {
		if occurrences[i].Start.Equal(occurrences[j].Start) {
			return occurrences[i].ID < occurrences[j].ID
		}
		return occurrences[i].Start.Before(occurrences[j].Start)
	})

	return occurrences, nil
}

// ListVisibleEvents returns the anchors the viewer may see, for surfaces
// that work on series rather than occurrences, such as the ICS feed.
func (s *EventService) ListVisibleEvents(ctx context.Context, principal Principal) ([]Event, error) {
	if s == nil || s.events == nil {
		return nil, fmt.Errorf("event service not configured")
	}

	candidates, err := s.events.ListCandidateEvents(ctx, EventRepositoryFilter{})
	if err != nil {
		return nil, mapEventRepoError(err)
	}

	visible := make([]Event, 0, len(candidates))
	for _, event := range candidates {
		if !IsVisible(event, principal) {
			continue
		}
		event.HiddenFrom = RedactHiddenFrom(event, principal)
		visible = append(visible, event)
	}

	sort.SliceStable(visible, func(i, j int) bool {
		if visible[i].Start.Equal(visible[j].Start) {
			return visible[i].ID < visible[j].ID
		}
		return visible[i].Start.Before(visible[j].Start)
	})

	return visible, nil
}

// SetHiddenFrom replaces an event's hidden-from set. The repository applies
// the replacement atomically so readers never observe a partial set.
func (s *EventService) SetHiddenFrom(ctx context.Context, params SetHiddenFromParams) error {
	if s == nil || s.events == nil {
		return fmt.Errorf("event service not configured")
	}

	existing, err := s.loadVisible(ctx, params.EventID, params.Principal)
	if err != nil {
		return err
	}

	if !CanEditEvent(existing, params.Principal) {
		return ErrForbidden
	}

	userIDs := sortStrings(uniqueStrings(params.UserIDs))
	if err := s.ensureUsersExist(ctx, "hidden_from", userIDs); err != nil {
		return err
	}

	if err := s.events.ReplaceHiddenFrom(ctx, params.EventID, userIDs); err != nil {
		return mapEventRepoError(err)
	}

	s.loggerWith(ctx, "SetHiddenFrom", "event_id", params.EventID).
		InfoContext(ctx, "hidden-from set replaced", "hidden_count", len(userIDs))
	return nil
}

// SetImage attaches or clears an event's image. Admin only, independent of
// ownership.
func (s *EventService) SetImage(ctx context.Context, params SetImageParams) (Event, error) {
	if s == nil || s.events == nil {
		return Event{}, fmt.Errorf("event service not configured")
	}

	if !CanSetImage(params.Principal) {
		return Event{}, ErrForbidden
	}

	imageURL := strings.TrimSpace(params.ImageURL)
	if imageURL != "" {
		if _, err := url.ParseRequestURI(imageURL); err != nil {
			vErr := &ValidationError{}
			vErr.add("image_url", "must be a valid URL")
			return Event{}, vErr
		}
	}

	existing, err := s.events.GetEvent(ctx, params.EventID)
	if err != nil {
		return Event{}, mapEventRepoError(err)
	}

	existing.ImageURL = imageURL
	existing.UpdatedAt = s.now()

	persisted, err := s.events.UpdateEvent(ctx, existing)
	if err != nil {
		return Event{}, mapEventRepoError(err)
	}

	s.loggerWith(ctx, "SetImage", "event_id", persisted.ID).InfoContext(ctx, "event image updated")
	return persisted, nil
}

// loadVisible fetches an anchor and masks hidden events as missing for
// viewers they are hidden from.
func (s *EventService) loadVisible(ctx context.Context, eventID string, principal Principal) (Event, error) {
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return Event{}, mapEventRepoError(err)
	}
	if !IsVisible(event, principal) {
		return Event{}, ErrNotFound
	}
	return event, nil
}

func (s *EventService) validateEventInput(ctx context.Context, input EventInput) error {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Title) == "" {
		vErr.add("title", "title is required")
	}
	if !KnownCategory(input.Category) {
		vErr.add("category", "unknown category")
	}
	if input.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if input.End != nil && !input.Start.IsZero() && input.End.Before(input.Start) {
		vErr.add("end", "end must not precede start")
	}
	if input.Recurrence != nil {
		if err := input.Recurrence.Validate(); err != nil {
			vErr.add("recurrence", err.Error())
		}
	}

	if vErr.HasErrors() {
		return vErr
	}

	return s.ensureUsersExist(ctx, "hidden_from", uniqueStrings(input.HiddenFrom))
}

func (s *EventService) ensureUsersExist(ctx context.Context, field string, ids []string) error {
	if s.users == nil || len(ids) == 0 {
		return nil
	}
	missing, err := s.users.MissingUserIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}
	vErr := &ValidationError{}
	vErr.add(field, fmt.Sprintf("unknown user ids: %s", strings.Join(missing, ", ")))
	return vErr
}

func (s *EventService) rsvpsFor(ctx context.Context, eventIDs []string) (map[string][]RSVP, error) {
	if s.rsvps == nil || len(eventIDs) == 0 {
		return nil, nil
	}
	rsvps, err := s.rsvps.ListRSVPsForEvents(ctx, eventIDs)
	if err != nil {
		return nil, mapEventRepoError(err)
	}
	return rsvps, nil
}

func anchorOf(event Event) recurrence.Anchor {
	return recurrence.Anchor{Start: event.Start, End: event.End, AllDay: event.AllDay}
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}

func sortStrings(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)
	return out
}

func mapEventRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("references", "related records are missing")
		return vErr
	}
	return err
}
