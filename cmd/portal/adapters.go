package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/family-portal/internal/application"
	"github.com/example/family-portal/internal/persistence"
	"github.com/example/family-portal/internal/persistence/sqlite"
	"github.com/example/family-portal/internal/recurrence"
)

// eventRepositoryAdapter bridges the application event repository contract
// onto the sqlite implementation, converting between the two model layers.
type eventRepositoryAdapter struct {
	repo   *sqlite.EventRepository
	logger *slog.Logger
}

func newEventRepositoryAdapter(repo *sqlite.EventRepository, logger *slog.Logger) *eventRepositoryAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &eventRepositoryAdapter{repo: repo, logger: logger}
}

func (a *eventRepositoryAdapter) CreateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	stored, err := toPersistenceEvent(event)
	if err != nil {
		return application.Event{}, err
	}
	if err := a.repo.CreateEvent(ctx, stored); err != nil {
		return application.Event{}, err
	}
	return a.GetEvent(ctx, event.ID)
}

func (a *eventRepositoryAdapter) UpdateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	stored, err := toPersistenceEvent(event)
	if err != nil {
		return application.Event{}, err
	}
	if err := a.repo.UpdateEvent(ctx, stored); err != nil {
		return application.Event{}, err
	}
	return a.GetEvent(ctx, event.ID)
}

func (a *eventRepositoryAdapter) GetEvent(ctx context.Context, id string) (application.Event, error) {
	stored, err := a.repo.GetEvent(ctx, id)
	if err != nil {
		return application.Event{}, err
	}
	return a.toApplicationEvent(stored), nil
}

func (a *eventRepositoryAdapter) DeleteEvent(ctx context.Context, id string) error {
	return a.repo.DeleteEvent(ctx, id)
}

func (a *eventRepositoryAdapter) ListCandidateEvents(ctx context.Context, filter application.EventRepositoryFilter) ([]application.Event, error) {
	stored, err := a.repo.ListEvents(ctx, persistence.EventFilter{
		StartsOnOrBefore: filter.StartsOnOrBefore,
		Category:         categoryString(filter.Category),
	})
	if err != nil {
		return nil, err
	}
	events := make([]application.Event, 0, len(stored))
	for _, row := range stored {
		events = append(events, a.toApplicationEvent(row))
	}
	return events, nil
}

func (a *eventRepositoryAdapter) ReplaceHiddenFrom(ctx context.Context, eventID string, userIDs []string) error {
	return a.repo.ReplaceHiddenFrom(ctx, eventID, userIDs)
}

func (a *eventRepositoryAdapter) toApplicationEvent(stored persistence.Event) application.Event {
	event := application.Event{
		ID:          stored.ID,
		Title:       stored.Title,
		Description: stored.Description,
		Location:    stored.Location,
		Category:    application.Category(stored.Category),
		Color:       stored.Color,
		ImageURL:    stored.ImageURL,
		Start:       stored.Start,
		End:         cloneTime(stored.End),
		AllDay:      stored.AllDay,
		CreatedByID: stored.CreatedByID,
		HiddenFrom:  cloneStrings(stored.HiddenFrom),
		CreatedAt:   stored.CreatedAt,
		UpdatedAt:   stored.UpdatedAt,
	}
	if stored.RecurrenceJSON != nil {
		rule, err := recurrence.ParseRule([]byte(*stored.RecurrenceJSON))
		if err != nil {
			// A corrupt stored rule becomes an invalid rule so expansion
			// fails for this event alone instead of the whole query.
			a.logger.Warn("stored recurrence rule is malformed", "event_id", stored.ID, "error", err)
			rule = &recurrence.Rule{}
		}
		event.Recurrence = rule
	}
	return event
}

func toPersistenceEvent(event application.Event) (persistence.Event, error) {
	stored := persistence.Event{
		ID:          event.ID,
		Title:       event.Title,
		Description: event.Description,
		Location:    event.Location,
		Category:    string(event.Category),
		Color:       event.Color,
		ImageURL:    event.ImageURL,
		Start:       event.Start,
		End:         cloneTime(event.End),
		AllDay:      event.AllDay,
		CreatedByID: event.CreatedByID,
		HiddenFrom:  cloneStrings(event.HiddenFrom),
		CreatedAt:   event.CreatedAt,
		UpdatedAt:   event.UpdatedAt,
	}
	if event.Recurrence != nil {
		data, err := json.Marshal(event.Recurrence)
		if err != nil {
			return persistence.Event{}, fmt.Errorf("serialize recurrence rule: %w", err)
		}
		encoded := string(data)
		stored.RecurrenceJSON = &encoded
	}
	return stored, nil
}

// rsvpRepositoryAdapter bridges attendance answers between the model layers.
type rsvpRepositoryAdapter struct {
	repo *sqlite.RSVPRepository
}

func newRSVPRepositoryAdapter(repo *sqlite.RSVPRepository) *rsvpRepositoryAdapter {
	return &rsvpRepositoryAdapter{repo: repo}
}

func (a *rsvpRepositoryAdapter) UpsertRSVP(ctx context.Context, rsvp application.RSVP) (application.RSVP, error) {
	stored, err := a.repo.UpsertRSVP(ctx, persistence.RSVP{
		EventID:   rsvp.EventID,
		UserID:    rsvp.UserID,
		Status:    string(rsvp.Status),
		CreatedAt: rsvp.CreatedAt,
		UpdatedAt: rsvp.UpdatedAt,
	})
	if err != nil {
		return application.RSVP{}, err
	}
	return toApplicationRSVP(stored), nil
}

func (a *rsvpRepositoryAdapter) DeleteRSVP(ctx context.Context, eventID, userID string) error {
	return a.repo.DeleteRSVP(ctx, eventID, userID)
}

func (a *rsvpRepositoryAdapter) ListRSVPsForEvents(ctx context.Context, eventIDs []string) (map[string][]application.RSVP, error) {
	stored, err := a.repo.ListRSVPsForEvents(ctx, eventIDs)
	if err != nil {
		return nil, err
	}
	result := make(map[string][]application.RSVP, len(stored))
	for eventID, rows := range stored {
		converted := make([]application.RSVP, 0, len(rows))
		for _, row := range rows {
			converted = append(converted, toApplicationRSVP(row))
		}
		result[eventID] = converted
	}
	return result, nil
}

func toApplicationRSVP(stored persistence.RSVP) application.RSVP {
	return application.RSVP{
		EventID:   stored.EventID,
		UserID:    stored.UserID,
		Status:    application.RSVPStatus(stored.Status),
		CreatedAt: stored.CreatedAt,
		UpdatedAt: stored.UpdatedAt,
	}
}

// userRepositoryAdapter bridges account management and the user directory
// onto the sqlite user repository.
type userRepositoryAdapter struct {
	repo *sqlite.UserRepository
}

func newUserRepositoryAdapter(repo *sqlite.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	stored := toPersistenceUser(user)
	stored.PasswordHash = passwordHash
	if err := a.repo.CreateUser(ctx, stored); err != nil {
		return application.User{}, err
	}
	return a.GetUser(ctx, user.ID)
}

func (a *userRepositoryAdapter) UpdateUser(ctx context.Context, user application.User) (application.User, error) {
	if err := a.repo.UpdateUser(ctx, toPersistenceUser(user)); err != nil {
		return application.User{}, err
	}
	return a.GetUser(ctx, user.ID)
}

func (a *userRepositoryAdapter) SetPasswordHash(ctx context.Context, userID, passwordHash string) error {
	return a.repo.SetPasswordHash(ctx, userID, passwordHash)
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) DeleteUser(ctx context.Context, id string) error {
	return a.repo.DeleteUser(ctx, id)
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	stored, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]application.User, 0, len(stored))
	for _, row := range stored {
		users = append(users, toApplicationUser(row))
	}
	return users, nil
}

func (a *userRepositoryAdapter) MissingUserIDs(ctx context.Context, ids []string) ([]string, error) {
	return a.repo.MissingUserIDs(ctx, ids)
}

func toPersistenceUser(user application.User) persistence.User {
	return persistence.User{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

func toApplicationUser(stored persistence.User) application.User {
	return application.User{
		ID:          stored.ID,
		Email:       stored.Email,
		DisplayName: stored.DisplayName,
		Role:        application.Role(stored.Role),
		CreatedAt:   stored.CreatedAt,
		UpdatedAt:   stored.UpdatedAt,
	}
}

// credentialStoreAdapter exposes stored credentials to the auth service.
type credentialStoreAdapter struct {
	repo *sqlite.UserRepository
}

func newCredentialStoreAdapter(repo *sqlite.UserRepository) *credentialStoreAdapter {
	return &credentialStoreAdapter{repo: repo}
}

func (a *credentialStoreAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
		Disabled:     stored.Disabled,
	}, nil
}

func (a *credentialStoreAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

// sessionRepositoryAdapter bridges issued sessions between the model layers.
type sessionRepositoryAdapter struct {
	repo *sqlite.SessionRepository
}

func newSessionRepositoryAdapter(repo *sqlite.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:        session.ID,
		UserID:    session.UserID,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		RevokedAt: cloneTime(session.RevokedAt),
	}
}

func toApplicationSession(stored persistence.Session) application.Session {
	return application.Session{
		ID:        stored.ID,
		UserID:    stored.UserID,
		Token:     stored.Token,
		ExpiresAt: stored.ExpiresAt,
		CreatedAt: stored.CreatedAt,
		UpdatedAt: stored.UpdatedAt,
		RevokedAt: cloneTime(stored.RevokedAt),
	}
}

func categoryString(category *application.Category) *string {
	if category == nil {
		return nil
	}
	value := string(*category)
	return &value
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	copied := make([]string, len(values))
	copy(copied, values)
	return copied
}
