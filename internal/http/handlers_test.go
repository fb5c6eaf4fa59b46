package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/family-portal/internal/application"
	"github.com/example/family-portal/internal/testfixtures"
)

type stubEventService struct {
	event       application.Event
	detail      application.EventDetail
	occurrences []application.Occurrence
	err         error

	lastCreate application.CreateEventParams
	lastList   application.ListOccurrencesParams
}

func (s *stubEventService) CreateEvent(_ context.Context, params application.CreateEventParams) (application.Event, error) {
	s.lastCreate = params
	return s.event, s.err
}

func (s *stubEventService) UpdateEvent(_ context.Context, _ application.UpdateEventParams) (application.Event, error) {
	return s.event, s.err
}

func (s *stubEventService) DeleteEvent(_ context.Context, _ application.Principal, _ string) error {
	return s.err
}

func (s *stubEventService) GetEvent(_ context.Context, _ application.Principal, _ string) (application.EventDetail, error) {
	return s.detail, s.err
}

func (s *stubEventService) ListOccurrences(_ context.Context, params application.ListOccurrencesParams) ([]application.Occurrence, error) {
	s.lastList = params
	return s.occurrences, s.err
}

func (s *stubEventService) SetHiddenFrom(_ context.Context, _ application.SetHiddenFromParams) error {
	return s.err
}

func (s *stubEventService) SetImage(_ context.Context, _ application.SetImageParams) (application.Event, error) {
	return s.event, s.err
}

func (s *stubEventService) ListVisibleEvents(_ context.Context, _ application.Principal) ([]application.Event, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []application.Event{s.event}, nil
}

type stubRSVPService struct {
	rsvp application.RSVP
	err  error
}

func (s *stubRSVPService) SetRSVP(_ context.Context, _ application.SetRSVPParams) (application.RSVP, error) {
	return s.rsvp, s.err
}

func (s *stubRSVPService) RemoveRSVP(_ context.Context, _ application.Principal, _ string) error {
	return s.err
}

type stubUserService struct {
	user  application.User
	users []application.User
	err   error
}

func (s *stubUserService) CreateUser(_ context.Context, _ application.CreateUserParams) (application.User, error) {
	return s.user, s.err
}

func (s *stubUserService) UpdateUser(_ context.Context, _ application.UpdateUserParams) (application.User, error) {
	return s.user, s.err
}

func (s *stubUserService) DeleteUser(_ context.Context, _ application.Principal, _ string) error {
	return s.err
}

func (s *stubUserService) ListUsers(_ context.Context, _ application.Principal) ([]application.User, error) {
	return s.users, s.err
}

type stubAuthService struct {
	result       application.AuthenticateResult
	err          error
	revokedToken string
}

func (s *stubAuthService) Authenticate(_ context.Context, _ application.AuthenticateParams) (application.AuthenticateResult, error) {
	return s.result, s.err
}

func (s *stubAuthService) RevokeSession(_ context.Context, token string) error {
	s.revokedToken = token
	return s.err
}

// principalMiddleware injects a fixed principal the way RequireSession would.
func principalMiddleware(principal application.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

func newTestRouter(events *stubEventService, rsvps *stubRSVPService, users *stubUserService, auth *stubAuthService, principal application.Principal) http.Handler {
	return NewRouter(RouterConfig{
		Auth:       NewAuthHandler(auth, nil),
		Users:      NewUserHandler(users, nil),
		Events:     NewEventHandler(events, rsvps, nil),
		Feed:       NewFeedHandler(events, nil),
		Middleware: []func(http.Handler) http.Handler{principalMiddleware(principal)},
	})
}

func doJSON(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func TestCreateEventEndpoint(t *testing.T) {
	principal := testfixtures.MemberPrincipal("alice")

	t.Run("malformed body is a bad request", func(t *testing.T) {
		router := newTestRouter(&stubEventService{}, &stubRSVPService{}, &stubUserService{}, &stubAuthService{}, principal)
		recorder := doJSON(t, router, http.MethodPost, "/events", "{not json")
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", recorder.Code)
		}
	})

	t.Run("a malformed recurrence rule fails validation", func(t *testing.T) {
		router := newTestRouter(&stubEventService{}, &stubRSVPService{}, &stubUserService{}, &stubAuthService{}, principal)
		recorder := doJSON(t, router, http.MethodPost, "/events",
			`{"title":"x","category":"general","start":"2026-01-05T09:00:00Z","recurrence":{"frequency":"SOMETIMES"}}`)
		if recorder.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d: %s", recorder.Code, recorder.Body.String())
		}
		payload := decodeBody(t, recorder)
		fields, _ := payload["errors"].(map[string]any)
		if _, ok := fields["recurrence"]; !ok {
			t.Fatalf("expected a recurrence field error, got %v", payload)
		}
	})

	t.Run("a malformed start timestamp names the bad value", func(t *testing.T) {
		router := newTestRouter(&stubEventService{}, &stubRSVPService{}, &stubUserService{}, &stubAuthService{}, principal)
		recorder := doJSON(t, router, http.MethodPost, "/events",
			`{"title":"x","category":"general","start":"someday"}`)
		if recorder.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d: %s", recorder.Code, recorder.Body.String())
		}
		payload := decodeBody(t, recorder)
		fields, _ := payload["errors"].(map[string]any)
		message, ok := fields["start"].(string)
		if !ok || !strings.Contains(message, "someday") {
			t.Fatalf("expected the start error to name the malformed value, got %v", payload)
		}
	})

	t.Run("forbidden maps to 403 with its code", func(t *testing.T) {
		events := &stubEventService{err: application.ErrForbidden}
		router := newTestRouter(events, &stubRSVPService{}, &stubUserService{}, &stubAuthService{}, testfixtures.ChildPrincipal("carol"))
		recorder := doJSON(t, router, http.MethodPost, "/events",
			`{"title":"x","category":"general","start":"2026-01-05T09:00:00Z"}`)
		if recorder.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", recorder.Code)
		}
		if payload := decodeBody(t, recorder); payload["error_code"] != "AUTH_FORBIDDEN" {
			t.Fatalf("expected AUTH_FORBIDDEN, got %v", payload)
		}
	})

	t.Run("creation returns the stored event", func(t *testing.T) {
		events := &stubEventService{event: testfixtures.Event("evt-1", "alice", func(e *application.Event) {
			e.HiddenFrom = []string{}
		})}
		router := newTestRouter(events, &stubRSVPService{}, &stubUserService{}, &stubAuthService{}, principal)

		recorder := doJSON(t, router, http.MethodPost, "/events",
			`{"title":"Family dinner","category":"general","start":"2026-01-05T09:00:00Z","hidden_from":["bob"]}`)
		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if events.lastCreate.Principal != principal {
			t.Errorf("principal not forwarded: %+v", events.lastCreate.Principal)
		}
		if len(events.lastCreate.Input.HiddenFrom) != 1 || events.lastCreate.Input.HiddenFrom[0] != "bob" {
			t.Errorf("hidden_from not forwarded: %v", events.lastCreate.Input.HiddenFrom)
		}

		payload := decodeBody(t, recorder)
		event, _ := payload["event"].(map[string]any)
		if event["id"] != "evt-1" {
			t.Fatalf("unexpected event payload: %v", payload)
		}
		// The creator sees the hidden set even when it is empty.
		if _, ok := event["hidden_from"]; !ok {
			t.Error("expected hidden_from key for the creator")
		}
	})
}

func TestOccurrencesEndpoint(t *testing.T) {
	ref := testfixtures.ReferenceTime()

	t.Run("query parameters reach the service", func(t *testing.T) {
		events := &stubEventService{}
		router := newTestRouter(events, &stubRSVPService{}, &stubUserService{}, &stubAuthService{}, testfixtures.MemberPrincipal("bob"))

		recorder := doJSON(t, router, http.MethodGet,
			"/occurrences?start=2026-01-05T00:00:00Z&end=2026-01-31T23:59:59Z&category=birthday", "")
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if events.lastList.RangeStart.IsZero() || events.lastList.RangeEnd.IsZero() {
			t.Error("range bounds not forwarded")
		}
		if events.lastList.Category == nil || *events.lastList.Category != application.CategoryBirthday {
			t.Errorf("category not forwarded: %v", events.lastList.Category)
		}
	})

	t.Run("a malformed range bound names the bad value", func(t *testing.T) {
		events := &stubEventService{}
		router := newTestRouter(events, &stubRSVPService{}, &stubUserService{}, &stubAuthService{}, testfixtures.MemberPrincipal("bob"))

		recorder := doJSON(t, router, http.MethodGet,
			"/occurrences?start=next-tuesday&end=2026-01-31T23:59:59Z", "")
		if recorder.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d: %s", recorder.Code, recorder.Body.String())
		}
		payload := decodeBody(t, recorder)
		fields, _ := payload["errors"].(map[string]any)
		message, ok := fields["start"].(string)
		if !ok || !strings.Contains(message, "next-tuesday") {
			t.Fatalf("expected the start error to name the malformed value, got %v", payload)
		}
	})

	t.Run("a validation error maps to 422", func(t *testing.T) {
		vErr := &application.ValidationError{FieldErrors: map[string]string{"range": "range start and end are required"}}
		events := &stubEventService{err: vErr}
		router := newTestRouter(events, &stubRSVPService{}, &stubUserService{}, &stubAuthService{}, testfixtures.MemberPrincipal("bob"))

		recorder := doJSON(t, router, http.MethodGet, "/occurrences", "")
		if recorder.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", recorder.Code)
		}
	})

	t.Run("the hidden set is absent when redacted and present otherwise", func(t *testing.T) {
		events := &stubEventService{occurrences: []application.Occurrence{
			{ID: "evt-open", Start: ref, Category: application.CategoryGeneral},
			{ID: "evt-own", Start: ref, Category: application.CategoryGeneral, HiddenFrom: []string{"bob"}},
		}}
		router := newTestRouter(events, &stubRSVPService{}, &stubUserService{}, &stubAuthService{}, testfixtures.MemberPrincipal("alice"))

		recorder := doJSON(t, router, http.MethodGet,
			"/occurrences?start=2026-01-05T00:00:00Z&end=2026-01-31T23:59:59Z", "")
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}

		payload := decodeBody(t, recorder)
		list, _ := payload["occurrences"].([]any)
		if len(list) != 2 {
			t.Fatalf("expected 2 occurrences, got %v", payload)
		}
		first, _ := list[0].(map[string]any)
		second, _ := list[1].(map[string]any)
		if _, ok := first["hidden_from"]; ok {
			t.Error("redacted occurrence must omit hidden_from entirely")
		}
		if _, ok := second["hidden_from"]; !ok {
			t.Error("expected hidden_from on the viewer's own occurrence")
		}
	})
}

func TestRSVPEndpoints(t *testing.T) {
	principal := testfixtures.MemberPrincipal("bob")

	t.Run("setting an answer returns it", func(t *testing.T) {
		rsvps := &stubRSVPService{rsvp: application.RSVP{
			EventID: "evt-1", UserID: "bob", Status: application.RSVPAttending,
		}}
		router := newTestRouter(&stubEventService{}, rsvps, &stubUserService{}, &stubAuthService{}, principal)

		recorder := doJSON(t, router, http.MethodPut, "/events/evt-1/rsvp", `{"status":"attending"}`)
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
		}
		payload := decodeBody(t, recorder)
		rsvp, _ := payload["rsvp"].(map[string]any)
		if rsvp["status"] != "attending" {
			t.Fatalf("unexpected payload: %v", payload)
		}
	})

	t.Run("removal returns no content", func(t *testing.T) {
		router := newTestRouter(&stubEventService{}, &stubRSVPService{}, &stubUserService{}, &stubAuthService{}, principal)
		recorder := doJSON(t, router, http.MethodDelete, "/events/evt-1/rsvp", "")
		if recorder.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", recorder.Code)
		}
	})

	t.Run("a hidden event reads as missing", func(t *testing.T) {
		rsvps := &stubRSVPService{err: application.ErrNotFound}
		router := newTestRouter(&stubEventService{}, rsvps, &stubUserService{}, &stubAuthService{}, principal)
		recorder := doJSON(t, router, http.MethodPut, "/events/evt-1/rsvp", `{"status":"attending"}`)
		if recorder.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", recorder.Code)
		}
	})
}

func TestSessionEndpoints(t *testing.T) {
	t.Run("bad credentials map to 401 with their code", func(t *testing.T) {
		auth := &stubAuthService{err: application.ErrInvalidCredentials}
		router := newTestRouter(&stubEventService{}, &stubRSVPService{}, &stubUserService{}, auth, application.Principal{})

		recorder := doJSON(t, router, http.MethodPost, "/sessions", `{"email":"a@example.com","password":"nope"}`)
		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", recorder.Code)
		}
		if payload := decodeBody(t, recorder); payload["error_code"] != "AUTH_INVALID_CREDENTIALS" {
			t.Fatalf("unexpected payload: %v", payload)
		}
	})

	t.Run("login returns token, cookie and user", func(t *testing.T) {
		expires := testfixtures.ReferenceTime().Add(time.Hour)
		auth := &stubAuthService{result: application.AuthenticateResult{
			User:    testfixtures.User("user-1", "alice@example.com", application.RoleMember),
			Session: application.Session{ID: "sess-1", UserID: "user-1", Token: "token-1", ExpiresAt: expires},
		}}
		router := newTestRouter(&stubEventService{}, &stubRSVPService{}, &stubUserService{}, auth, application.Principal{})

		recorder := doJSON(t, router, http.MethodPost, "/sessions", `{"email":"alice@example.com","password":"hunter2"}`)
		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if recorder.Header().Get("X-Session-Token") != "token-1" {
			t.Error("expected the token header")
		}
		cookies := recorder.Result().Cookies()
		var found bool
		for _, cookie := range cookies {
			if cookie.Name == "session_token" && cookie.Value == "token-1" {
				found = true
			}
		}
		if !found {
			t.Errorf("session cookie missing: %+v", cookies)
		}
		payload := decodeBody(t, recorder)
		if payload["token"] != "token-1" {
			t.Fatalf("unexpected payload: %v", payload)
		}
	})

	t.Run("logout revokes the presented token", func(t *testing.T) {
		auth := &stubAuthService{}
		router := newTestRouter(&stubEventService{}, &stubRSVPService{}, &stubUserService{}, auth, application.Principal{})

		req := httptest.NewRequest(http.MethodDelete, "/sessions/current", nil)
		req.Header.Set("Authorization", "Bearer token-1")
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", recorder.Code)
		}
		if auth.revokedToken != "token-1" {
			t.Errorf("expected token-1 to be revoked, got %q", auth.revokedToken)
		}
	})

	t.Run("logout without a token is unauthorized", func(t *testing.T) {
		router := newTestRouter(&stubEventService{}, &stubRSVPService{}, &stubUserService{}, &stubAuthService{}, application.Principal{})
		req := httptest.NewRequest(http.MethodDelete, "/sessions/current", nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)
		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", recorder.Code)
		}
	})
}

func TestUserEndpoints(t *testing.T) {
	t.Run("non-admins cannot create accounts", func(t *testing.T) {
		users := &stubUserService{err: application.ErrForbidden}
		router := newTestRouter(&stubEventService{}, &stubRSVPService{}, users, &stubAuthService{}, testfixtures.MemberPrincipal("alice"))

		recorder := doJSON(t, router, http.MethodPost, "/users",
			`{"email":"kid@example.com","display_name":"Kiddo","role":"child","password":"pw"}`)
		if recorder.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", recorder.Code)
		}
	})

	t.Run("listing returns the roster", func(t *testing.T) {
		users := &stubUserService{users: []application.User{
			testfixtures.User("user-1", "adam@example.com", application.RoleAdmin),
		}}
		router := newTestRouter(&stubEventService{}, &stubRSVPService{}, users, &stubAuthService{}, testfixtures.MemberPrincipal("alice"))

		recorder := doJSON(t, router, http.MethodGet, "/users", "")
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		payload := decodeBody(t, recorder)
		list, _ := payload["users"].([]any)
		if len(list) != 1 {
			t.Fatalf("unexpected payload: %v", payload)
		}
	})

	t.Run("a duplicate email conflicts", func(t *testing.T) {
		users := &stubUserService{err: application.ErrAlreadyExists}
		router := newTestRouter(&stubEventService{}, &stubRSVPService{}, users, &stubAuthService{}, testfixtures.AdminPrincipal("root"))

		recorder := doJSON(t, router, http.MethodPost, "/users",
			`{"email":"kid@example.com","display_name":"Kiddo","role":"child","password":"pw"}`)
		if recorder.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", recorder.Code)
		}
	})
}

func TestFeedEndpoint(t *testing.T) {
	events := &stubEventService{event: testfixtures.Event("evt-1", "alice")}
	router := newTestRouter(events, &stubRSVPService{}, &stubUserService{}, &stubAuthService{}, testfixtures.MemberPrincipal("bob"))

	recorder := doJSON(t, router, http.MethodGet, "/calendar.ics", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if got := recorder.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/calendar") {
		t.Errorf("unexpected content type %q", got)
	}
	body := recorder.Body.String()
	if !strings.Contains(body, "BEGIN:VCALENDAR") || !strings.Contains(body, "SUMMARY:Family dinner") {
		t.Errorf("unexpected feed body:\n%s", body)
	}
}

func TestRouterMethodDispatch(t *testing.T) {
	router := newTestRouter(&stubEventService{}, &stubRSVPService{}, &stubUserService{}, &stubAuthService{}, testfixtures.MemberPrincipal("bob"))

	tests := []struct {
		method string
		target string
		want   int
	}{
		{http.MethodGet, "/events", http.StatusMethodNotAllowed},
		{http.MethodPost, "/occurrences", http.StatusMethodNotAllowed},
		{http.MethodPost, "/events/evt-1/image", http.StatusMethodNotAllowed},
		{http.MethodGet, "/events/evt-1/unknown", http.StatusNotFound},
		{http.MethodPatch, "/users/user-1", http.StatusMethodNotAllowed},
	}

	for _, tc := range tests {
		recorder := doJSON(t, router, tc.method, tc.target, "")
		if recorder.Code != tc.want {
			t.Errorf("%s %s: expected %d, got %d", tc.method, tc.target, tc.want, recorder.Code)
		}
	}
}
