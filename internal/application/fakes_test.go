package application_test

import (
	"context"
	"sort"
	"time"

	"github.com/example/family-portal/internal/application"
	"github.com/example/family-portal/internal/persistence"
)

// fakeEventRepository keeps anchors in memory for service tests.
type fakeEventRepository struct {
	events map[string]application.Event
	err    error
}

func newFakeEventRepository(events ...application.Event) *fakeEventRepository {
	repo := &fakeEventRepository{events: make(map[string]application.Event)}
	for _, event := range events {
		repo.events[event.ID] = event
	}
	return repo
}

func (r *fakeEventRepository) CreateEvent(_ context.Context, event application.Event) (application.Event, error) {
	if r.err != nil {
		return application.Event{}, r.err
	}
	r.events[event.ID] = event
	return event, nil
}

func (r *fakeEventRepository) GetEvent(_ context.Context, id string) (application.Event, error) {
	if r.err != nil {
		return application.Event{}, r.err
	}
	event, ok := r.events[id]
	if !ok {
		return application.Event{}, persistence.ErrNotFound
	}
	return event, nil
}

func (r *fakeEventRepository) UpdateEvent(_ context.Context, event application.Event) (application.Event, error) {
	if r.err != nil {
		return application.Event{}, r.err
	}
	if _, ok := r.events[event.ID]; !ok {
		return application.Event{}, persistence.ErrNotFound
	}
	r.events[event.ID] = event
	return event, nil
}

func (r *fakeEventRepository) DeleteEvent(_ context.Context, id string) error {
	if r.err != nil {
		return r.err
	}
	if _, ok := r.events[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.events, id)
	return nil
}

func (r *fakeEventRepository) ListCandidateEvents(_ context.Context, filter application.EventRepositoryFilter) ([]application.Event, error) {
	if r.err != nil {
		return nil, r.err
	}
	ids := make([]string, 0, len(r.events))
	for id := range r.events {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]application.Event, 0, len(ids))
	for _, id := range ids {
		event := r.events[id]
		if filter.StartsOnOrBefore != nil && event.Recurrence == nil && event.Start.After(*filter.StartsOnOrBefore) {
			continue
		}
		if filter.Category != nil && event.Category != *filter.Category {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

func (r *fakeEventRepository) ReplaceHiddenFrom(_ context.Context, eventID string, userIDs []string) error {
	if r.err != nil {
		return r.err
	}
	event, ok := r.events[eventID]
	if !ok {
		return persistence.ErrNotFound
	}
	event.HiddenFrom = append([]string(nil), userIDs...)
	r.events[eventID] = event
	return nil
}

// fakeRSVPRepository keeps attendance answers keyed by event and user.
type fakeRSVPRepository struct {
	rsvps map[string]map[string]application.RSVP
	err   error
}

func newFakeRSVPRepository(rsvps ...application.RSVP) *fakeRSVPRepository {
	repo := &fakeRSVPRepository{rsvps: make(map[string]map[string]application.RSVP)}
	for _, rsvp := range rsvps {
		repo.put(rsvp)
	}
	return repo
}

func (r *fakeRSVPRepository) put(rsvp application.RSVP) {
	byUser, ok := r.rsvps[rsvp.EventID]
	if !ok {
		byUser = make(map[string]application.RSVP)
		r.rsvps[rsvp.EventID] = byUser
	}
	byUser[rsvp.UserID] = rsvp
}

func (r *fakeRSVPRepository) UpsertRSVP(_ context.Context, rsvp application.RSVP) (application.RSVP, error) {
	if r.err != nil {
		return application.RSVP{}, r.err
	}
	if existing, ok := r.rsvps[rsvp.EventID][rsvp.UserID]; ok {
		rsvp.CreatedAt = existing.CreatedAt
	}
	r.put(rsvp)
	return rsvp, nil
}

func (r *fakeRSVPRepository) DeleteRSVP(_ context.Context, eventID, userID string) error {
	if r.err != nil {
		return r.err
	}
	if _, ok := r.rsvps[eventID][userID]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.rsvps[eventID], userID)
	return nil
}

func (r *fakeRSVPRepository) ListRSVPsForEvents(_ context.Context, eventIDs []string) (map[string][]application.RSVP, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make(map[string][]application.RSVP)
	for _, eventID := range eventIDs {
		byUser, ok := r.rsvps[eventID]
		if !ok || len(byUser) == 0 {
			continue
		}
		userIDs := make([]string, 0, len(byUser))
		for userID := range byUser {
			userIDs = append(userIDs, userID)
		}
		sort.Strings(userIDs)
		set := make([]application.RSVP, 0, len(userIDs))
		for _, userID := range userIDs {
			set = append(set, byUser[userID])
		}
		out[eventID] = set
	}
	return out, nil
}

// fakeUserDirectory answers existence checks from a fixed roster.
type fakeUserDirectory struct {
	known map[string]struct{}
}

func newFakeUserDirectory(ids ...string) *fakeUserDirectory {
	dir := &fakeUserDirectory{known: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		dir.known[id] = struct{}{}
	}
	return dir
}

func (d *fakeUserDirectory) MissingUserIDs(_ context.Context, ids []string) ([]string, error) {
	missing := make([]string, 0)
	for _, id := range ids {
		if _, ok := d.known[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// fakeUserRepository keeps accounts and password hashes for user service tests.
type fakeUserRepository struct {
	users  map[string]application.User
	hashes map[string]string
	err    error
}

func newFakeUserRepository(users ...application.User) *fakeUserRepository {
	repo := &fakeUserRepository{
		users:  make(map[string]application.User),
		hashes: make(map[string]string),
	}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *fakeUserRepository) CreateUser(_ context.Context, user application.User, passwordHash string) (application.User, error) {
	if r.err != nil {
		return application.User{}, r.err
	}
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return application.User{}, persistence.ErrDuplicate
		}
	}
	r.users[user.ID] = user
	r.hashes[user.ID] = passwordHash
	return user, nil
}

func (r *fakeUserRepository) GetUser(_ context.Context, id string) (application.User, error) {
	if r.err != nil {
		return application.User{}, r.err
	}
	user, ok := r.users[id]
	if !ok {
		return application.User{}, persistence.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepository) UpdateUser(_ context.Context, user application.User) (application.User, error) {
	if r.err != nil {
		return application.User{}, r.err
	}
	if _, ok := r.users[user.ID]; !ok {
		return application.User{}, persistence.ErrNotFound
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepository) SetPasswordHash(_ context.Context, userID, passwordHash string) error {
	if r.err != nil {
		return r.err
	}
	if _, ok := r.users[userID]; !ok {
		return persistence.ErrNotFound
	}
	r.hashes[userID] = passwordHash
	return nil
}

func (r *fakeUserRepository) DeleteUser(_ context.Context, id string) error {
	if r.err != nil {
		return r.err
	}
	if _, ok := r.users[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.users, id)
	delete(r.hashes, id)
	return nil
}

func (r *fakeUserRepository) ListUsers(_ context.Context) ([]application.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make([]application.User, 0, len(r.users))
	for _, user := range r.users {
		out = append(out, user)
	}
	return out, nil
}

// fakeCredentialStore serves stored credentials for auth service tests.
type fakeCredentialStore struct {
	byEmail map[string]application.UserCredentials
}

func newFakeCredentialStore(creds ...application.UserCredentials) *fakeCredentialStore {
	store := &fakeCredentialStore{byEmail: make(map[string]application.UserCredentials)}
	for _, cred := range creds {
		store.byEmail[cred.User.Email] = cred
	}
	return store
}

func (s *fakeCredentialStore) GetUserCredentialsByEmail(_ context.Context, email string) (application.UserCredentials, error) {
	cred, ok := s.byEmail[email]
	if !ok {
		return application.UserCredentials{}, persistence.ErrNotFound
	}
	return cred, nil
}

func (s *fakeCredentialStore) GetUser(_ context.Context, id string) (application.User, error) {
	for _, cred := range s.byEmail {
		if cred.User.ID == id {
			return cred.User, nil
		}
	}
	return application.User{}, persistence.ErrNotFound
}

// fakeSessionRepository keeps sessions keyed by token.
type fakeSessionRepository struct {
	sessions map[string]application.Session
}

func newFakeSessionRepository() *fakeSessionRepository {
	return &fakeSessionRepository{sessions: make(map[string]application.Session)}
}

func (r *fakeSessionRepository) CreateSession(_ context.Context, session application.Session) (application.Session, error) {
	if _, ok := r.sessions[session.Token]; ok {
		return application.Session{}, persistence.ErrDuplicate
	}
	r.sessions[session.Token] = session
	return session, nil
}

func (r *fakeSessionRepository) GetSession(_ context.Context, token string) (application.Session, error) {
	session, ok := r.sessions[token]
	if !ok {
		return application.Session{}, persistence.ErrNotFound
	}
	return session, nil
}

func (r *fakeSessionRepository) RevokeSession(_ context.Context, token string, revokedAt time.Time) (application.Session, error) {
	session, ok := r.sessions[token]
	if !ok {
		return application.Session{}, persistence.ErrNotFound
	}
	session.RevokedAt = &revokedAt
	session.UpdatedAt = revokedAt
	r.sessions[token] = session
	return session, nil
}

func (r *fakeSessionRepository) DeleteExpiredSessions(_ context.Context, reference time.Time) error {
	for token, session := range r.sessions {
		if !session.ExpiresAt.After(reference) {
			delete(r.sessions, token)
		}
	}
	return nil
}
