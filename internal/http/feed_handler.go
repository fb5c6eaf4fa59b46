package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/family-portal/internal/application"
	"github.com/example/family-portal/internal/ics"
)

type feedService interface {
	ListVisibleEvents(ctx context.Context, principal application.Principal) ([]application.Event, error)
}

// FeedHandler serves the viewer's calendar as an iCalendar subscription.
type FeedHandler struct {
	service   feedService
	responder responder
}

func NewFeedHandler(service feedService, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{service: service, responder: newResponder(logger)}
}

func (h *FeedHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	events, err := h.service.ListVisibleEvents(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	feed, err := ics.Export(events)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(feed)); err != nil {
		handlerLogger(r.Context(), h.responder.logger, "FeedHandler", "Calendar").
			ErrorContext(r.Context(), "failed to write calendar feed", "error", err)
	}
}
