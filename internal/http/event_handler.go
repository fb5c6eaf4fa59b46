package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/family-portal/internal/application"
	"github.com/example/family-portal/internal/recurrence"
)

type eventService interface {
	CreateEvent(ctx context.Context, params application.CreateEventParams) (application.Event, error)
	UpdateEvent(ctx context.Context, params application.UpdateEventParams) (application.Event, error)
	DeleteEvent(ctx context.Context, principal application.Principal, eventID string) error
	GetEvent(ctx context.Context, principal application.Principal, eventID string) (application.EventDetail, error)
	ListOccurrences(ctx context.Context, params application.ListOccurrencesParams) ([]application.Occurrence, error)
	SetHiddenFrom(ctx context.Context, params application.SetHiddenFromParams) error
	SetImage(ctx context.Context, params application.SetImageParams) (application.Event, error)
}

type rsvpService interface {
	SetRSVP(ctx context.Context, params application.SetRSVPParams) (application.RSVP, error)
	RemoveRSVP(ctx context.Context, principal application.Principal, eventID string) error
}

type EventHandler struct {
	events    eventService
	rsvps     rsvpService
	responder responder
}

func NewEventHandler(events eventService, rsvps rsvpService, logger *slog.Logger) *EventHandler {
	return &EventHandler{events: events, rsvps: rsvps, responder: newResponder(logger)}
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.events == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input, err := req.toInput()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	event, err := h.events.CreateEvent(r.Context(), application.CreateEventParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, eventResponse{Event: toEventDTO(event, principal)})
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.events == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input, err := req.toInput()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	event, err := h.events.UpdateEvent(r.Context(), application.UpdateEventParams{
		Principal: principal,
		EventID:   eventID,
		Input:     input,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: toEventDTO(event, principal)})
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.events == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.events.DeleteEvent(r.Context(), principal, eventID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.events == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	detail, err := h.events.GetEvent(r.Context(), principal, eventID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dto := toEventDTO(detail.Event, principal)
	dto.CanEdit = detail.CanEdit
	dto.CanRSVP = detail.CanRSVP
	dto.RSVPs = toRSVPDTOs(detail.RSVPs)

	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: dto})
}

// ListOccurrences serves the windowed calendar query. The range bounds are
// inclusive and required.
func (h *EventHandler) ListOccurrences(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.events == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	params, err := buildOccurrenceParams(r.URL.Query(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	occurrences, err := h.events.ListOccurrences(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listOccurrencesResponse{
		Occurrences: toOccurrenceDTOs(occurrences),
	})
}

func (h *EventHandler) SetHiddenFrom(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.events == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	var req hiddenFromRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	if err := h.events.SetHiddenFrom(r.Context(), application.SetHiddenFromParams{
		Principal: principal,
		EventID:   eventID,
		UserIDs:   req.UserIDs,
	}); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *EventHandler) SetImage(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.events == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	var req imageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	event, err := h.events.SetImage(r.Context(), application.SetImageParams{
		Principal: principal,
		EventID:   eventID,
		ImageURL:  req.ImageURL,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: toEventDTO(event, principal)})
}

func (h *EventHandler) SetRSVP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.rsvps == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	var req rsvpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	rsvp, err := h.rsvps.SetRSVP(r.Context(), application.SetRSVPParams{
		Principal: principal,
		EventID:   eventID,
		Status:    application.RSVPStatus(strings.TrimSpace(req.Status)),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, rsvpResponse{RSVP: toRSVPDTO(rsvp)})
}

func (h *EventHandler) RemoveRSVP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.rsvps == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.rsvps.RemoveRSVP(r.Context(), principal, eventID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type eventRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Location    string          `json:"location"`
	Category    string          `json:"category"`
	Color       string          `json:"color"`
	Start       string          `json:"start"`
	End         *string         `json:"end"`
	AllDay      bool            `json:"all_day"`
	Recurrence  json.RawMessage `json:"recurrence"`
	HiddenFrom  []string        `json:"hidden_from"`
}

func (r eventRequest) toInput() (application.EventInput, error) {
	fields := make(map[string]string)

	rule, err := recurrence.ParseRule(r.Recurrence)
	if err != nil {
		fields["recurrence"] = err.Error()
	}

	start, err := parseTimestamp(r.Start)
	if err != nil {
		fields["start"] = err.Error()
	}

	var end *time.Time
	if r.End != nil {
		ts, err := parseTimestamp(*r.End)
		switch {
		case err != nil:
			fields["end"] = err.Error()
		case !ts.IsZero():
			end = &ts
		}
	}

	if len(fields) > 0 {
		return application.EventInput{}, &application.ValidationError{FieldErrors: fields}
	}

	return application.EventInput{
		Title:       strings.TrimSpace(r.Title),
		Description: r.Description,
		Location:    strings.TrimSpace(r.Location),
		Category:    application.Category(strings.TrimSpace(r.Category)),
		Color:       strings.TrimSpace(r.Color),
		Start:       start,
		End:         end,
		AllDay:      r.AllDay,
		Recurrence:  rule,
		HiddenFrom:  append([]string(nil), r.HiddenFrom...),
	}, nil
}

// parseTimestamp accepts RFC 3339 instants and plain dates. The empty string
// maps to the zero time so "absent" validation stays with the services.
func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not an RFC 3339 timestamp or YYYY-MM-DD date", value)
}

type hiddenFromRequest struct {
	UserIDs []string `json:"user_ids"`
}

type imageRequest struct {
	ImageURL string `json:"image_url"`
}

type rsvpRequest struct {
	Status string `json:"status"`
}

type eventResponse struct {
	Event eventDTO `json:"event"`
}

type listOccurrencesResponse struct {
	Occurrences []occurrenceDTO `json:"occurrences"`
}

type rsvpResponse struct {
	RSVP rsvpDTO `json:"rsvp"`
}

// eventDTO renders a stored anchor. HiddenFrom is a pointer so the key is
// absent entirely when the set was redacted for the viewer.
type eventDTO struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Location    string           `json:"location,omitempty"`
	Category    string           `json:"category"`
	Color       string           `json:"color,omitempty"`
	ImageURL    string           `json:"image_url,omitempty"`
	Start       string           `json:"start"`
	End         *string          `json:"end,omitempty"`
	AllDay      bool             `json:"all_day"`
	Recurrence  *recurrence.Rule `json:"recurrence,omitempty"`
	CreatedByID string           `json:"created_by_id"`
	HiddenFrom  *[]string        `json:"hidden_from,omitempty"`
	CreatedAt   string           `json:"created_at"`
	UpdatedAt   string           `json:"updated_at"`
	RSVPs       []rsvpDTO        `json:"rsvps,omitempty"`
	CanEdit     bool             `json:"can_edit"`
	CanRSVP     bool             `json:"can_rsvp"`
}

func toEventDTO(event application.Event, principal application.Principal) eventDTO {
	dto := eventDTO{
		ID:          event.ID,
		Title:       event.Title,
		Description: event.Description,
		Location:    event.Location,
		Category:    string(event.Category),
		Color:       event.Color,
		ImageURL:    event.ImageURL,
		Start:       event.Start.UTC().Format(time.RFC3339Nano),
		AllDay:      event.AllDay,
		Recurrence:  event.Recurrence,
		CreatedByID: event.CreatedByID,
		CreatedAt:   event.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   event.UpdatedAt.UTC().Format(time.RFC3339Nano),
		CanEdit:     application.CanEditEvent(event, principal),
		CanRSVP:     application.CanRSVP(principal),
	}
	if event.End != nil {
		end := event.End.UTC().Format(time.RFC3339Nano)
		dto.End = &end
	}
	if application.CanSeeHiddenFrom(event, principal) {
		hidden := append([]string{}, event.HiddenFrom...)
		dto.HiddenFrom = &hidden
	}
	return dto
}

// occurrenceDTO renders one expanded instance. The same pointer convention
// as eventDTO applies to HiddenFrom.
type occurrenceDTO struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Location     string    `json:"location,omitempty"`
	Category     string    `json:"category"`
	Color        string    `json:"color,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
	Start        string    `json:"start"`
	End          *string   `json:"end,omitempty"`
	AllDay       bool      `json:"all_day"`
	IsRecurring  bool      `json:"is_recurring"`
	OriginalDate string    `json:"original_date"`
	CreatedByID  string    `json:"created_by_id"`
	HiddenFrom   *[]string `json:"hidden_from,omitempty"`
	RSVPs        []rsvpDTO `json:"rsvps,omitempty"`
	CanEdit      bool      `json:"can_edit"`
	CanRSVP      bool      `json:"can_rsvp"`
}

func toOccurrenceDTOs(occurrences []application.Occurrence) []occurrenceDTO {
	if len(occurrences) == 0 {
		return nil
	}

	out := make([]occurrenceDTO, 0, len(occurrences))
	for _, occurrence := range occurrences {
		dto := occurrenceDTO{
			ID:           occurrence.ID,
			Title:        occurrence.Title,
			Description:  occurrence.Description,
			Location:     occurrence.Location,
			Category:     string(occurrence.Category),
			Color:        occurrence.Color,
			ImageURL:     occurrence.ImageURL,
			Start:        occurrence.Start.UTC().Format(time.RFC3339Nano),
			AllDay:       occurrence.AllDay,
			IsRecurring:  occurrence.IsRecurring,
			OriginalDate: occurrence.OriginalDate.UTC().Format(time.RFC3339Nano),
			CreatedByID:  occurrence.CreatedByID,
			RSVPs:        toRSVPDTOs(occurrence.RSVPs),
			CanEdit:      occurrence.CanEdit,
			CanRSVP:      occurrence.CanRSVP,
		}
		if occurrence.End != nil {
			end := occurrence.End.UTC().Format(time.RFC3339Nano)
			dto.End = &end
		}
		if occurrence.HiddenFrom != nil {
			hidden := append([]string{}, occurrence.HiddenFrom...)
			dto.HiddenFrom = &hidden
		}
		out = append(out, dto)
	}
	return out
}

type rsvpDTO struct {
	EventID   string `json:"event_id"`
	UserID    string `json:"user_id"`
	Status    string `json:"status"`
	UpdatedAt string `json:"updated_at"`
}

func toRSVPDTO(rsvp application.RSVP) rsvpDTO {
	return rsvpDTO{
		EventID:   rsvp.EventID,
		UserID:    rsvp.UserID,
		Status:    string(rsvp.Status),
		UpdatedAt: rsvp.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toRSVPDTOs(rsvps []application.RSVP) []rsvpDTO {
	if len(rsvps) == 0 {
		return nil
	}
	out := make([]rsvpDTO, 0, len(rsvps))
	for _, rsvp := range rsvps {
		out = append(out, toRSVPDTO(rsvp))
	}
	return out
}

func buildOccurrenceParams(values url.Values, principal application.Principal) (application.ListOccurrencesParams, error) {
	params := application.ListOccurrencesParams{Principal: principal}
	fields := make(map[string]string)

	if start := strings.TrimSpace(values.Get("start")); start != "" {
		ts, err := parseTimestamp(start)
		if err != nil {
			fields["start"] = err.Error()
		} else {
			params.RangeStart = ts
		}
	}
	if end := strings.TrimSpace(values.Get("end")); end != "" {
		ts, err := parseTimestamp(end)
		if err != nil {
			fields["end"] = err.Error()
		} else {
			params.RangeEnd = ts
		}
	}
	if category := strings.TrimSpace(values.Get("category")); category != "" {
		parsed := application.Category(category)
		params.Category = &parsed
	}

	if len(fields) > 0 {
		return application.ListOccurrencesParams{}, &application.ValidationError{FieldErrors: fields}
	}
	return params, nil
}
