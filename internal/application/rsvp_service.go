package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RSVPRepository captures the persistence interactions for attendance
// answers. UpsertRSVP must be atomic per (event, user) pair; it is the only
// transactional guarantee this engine asks of its store.
type RSVPRepository interface {
	UpsertRSVP(ctx context.Context, rsvp RSVP) (RSVP, error)
	DeleteRSVP(ctx context.Context, eventID, userID string) error
	ListRSVPsForEvents(ctx context.Context, eventIDs []string) (map[string][]RSVP, error)
}

// RSVPService manages series-wide attendance answers. An RSVP answers "are
// you coming to this recurring thing in general", not "to this specific
// date": every occurrence of an anchor shares one RSVP set.
type RSVPService struct {
	rsvps  RSVPRepository
	events EventRepository
	now    func() time.Time
	logger *slog.Logger
}

// NewRSVPService wires dependencies for RSVP operations.
func NewRSVPService(rsvps RSVPRepository, events EventRepository, now func() time.Time) *RSVPService {
	return NewRSVPServiceWithLogger(rsvps, events, now, nil)
}

// NewRSVPServiceWithLogger constructs an RSVPService with a specified logger.
func NewRSVPServiceWithLogger(rsvps RSVPRepository, events EventRepository, now func() time.Time, logger *slog.Logger) *RSVPService {
	if now == nil {
		now = time.Now
	}
	return &RSVPService{
		rsvps:  rsvps,
		events: events,
		now:    now,
		logger: defaultLogger(logger),
	}
}

func (s *RSVPService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RSVPService", operation, attrs...)
}

// SetRSVP records or overwrites the caller's answer for an event. Setting a
// new status for the same event replaces the prior one.
func (s *RSVPService) SetRSVP(ctx context.Context, params SetRSVPParams) (RSVP, error) {
	if s == nil || s.rsvps == nil {
		return RSVP{}, fmt.Errorf("rsvp service not configured")
	}

	principal := params.Principal
	logger := s.loggerWith(ctx, "SetRSVP", "user_id", principal.UserID, "event_id", params.EventID)

	if !CanRSVP(principal) {
		logger.WarnContext(ctx, "rsvp denied", "role", principal.Role)
		return RSVP{}, ErrForbidden
	}

	if !KnownRSVPStatus(params.Status) {
		vErr := &ValidationError{}
		vErr.add("status", "unknown rsvp status")
		return RSVP{}, vErr
	}

	if err := s.ensureEventVisible(ctx, params.EventID, principal); err != nil {
		return RSVP{}, err
	}

	now := s.now()
	persisted, err := s.rsvps.UpsertRSVP(ctx, RSVP{
		EventID:   params.EventID,
		UserID:    principal.UserID,
		Status:    params.Status,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return RSVP{}, mapEventRepoError(err)
	}

	logger.InfoContext(ctx, "rsvp recorded", "status", persisted.Status)
	return persisted, nil
}

// RemoveRSVP deletes the caller's answer entirely; no "no answer" sentinel
// is kept.
func (s *RSVPService) RemoveRSVP(ctx context.Context, principal Principal, eventID string) error {
	if s == nil || s.rsvps == nil {
		return fmt.Errorf("rsvp service not configured")
	}

	if !CanRSVP(principal) {
		return ErrForbidden
	}

	if err := s.ensureEventVisible(ctx, eventID, principal); err != nil {
		return err
	}

	if err := s.rsvps.DeleteRSVP(ctx, eventID, principal.UserID); err != nil {
		return mapEventRepoError(err)
	}

	s.loggerWith(ctx, "RemoveRSVP", "user_id", principal.UserID, "event_id", eventID).
		InfoContext(ctx, "rsvp removed")
	return nil
}

func (s *RSVPService) ensureEventVisible(ctx context.Context, eventID string, principal Principal) error {
	if s.events == nil {
		return nil
	}
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return mapEventRepoError(err)
	}
	if !IsVisible(event, principal) {
		return ErrNotFound
	}
	return nil
}

// AttachRSVPs copies each anchor's full RSVP set onto every occurrence
// derived from it.
func AttachRSVPs(occurrences []Occurrence, rsvps map[string][]RSVP) []Occurrence {
	if len(occurrences) == 0 || len(rsvps) == 0 {
		return occurrences
	}
	for i := range occurrences {
		set := rsvps[occurrences[i].ID]
		if len(set) == 0 {
			continue
		}
		copied := make([]RSVP, len(set))
		copy(copied, set)
		occurrences[i].RSVPs = copied
	}
	return occurrences
}
