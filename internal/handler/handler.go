// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatherhub/gatherhub/internal/model"
	"github.com/gatherhub/gatherhub/internal/service"
	"github.com/gatherhub/gatherhub/internal/validation"
)

// EventHandler holds all HTTP handlers for the event API.
type EventHandler struct {
	svc *service.EventService
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc *service.EventService) *EventHandler {
	return &EventHandler{svc: svc}
}

// Routes mounts every event operation on a chi router.
func (h *EventHandler) Routes(r chi.Router) {
	r.Post("/events", h.CreateEvent)
	r.Get("/occurrences/{id}", h.GetOccurrence)
	r.Route("/events/{chainID}", func(r chi.Router) {
		r.Post("/schedule", h.ScheduleEvent)
		r.Post("/transfer", h.TransferEvent)
		r.Get("/occurrences", h.ListOccurrences)
		r.Put("/attendance", h.SetAttendance)
		r.Put("/subscription", h.SetSubscription)
		r.Post("/organizers", h.InviteOrganizer)
		r.Delete("/organizers/{userID}", h.RemoveOrganizer)
		r.Get("/attendees", h.ListAttendees)
		r.Get("/subscribers", h.ListSubscribers)
		r.Get("/organizers", h.ListOrganizers)
	})
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: verr.Message, Reason: verr.Reason})
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, model.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, model.ErrConflict):
		writeError(w, http.StatusConflict, "conflicting concurrent update, retry the operation")
	case errors.Is(err, model.ErrDependencyUnavailable):
		writeError(w, http.StatusServiceUnavailable, "upstream dependency unavailable, retry later")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	p, err := h.svc.CreateEvent(r.Context(), actorID(r), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetOccurrence handles GET /occurrences/{id}
func (h *EventHandler) GetOccurrence(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetOccurrence(r.Context(), actorID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ScheduleEvent handles POST /events/{chainID}/schedule
func (h *EventHandler) ScheduleEvent(w http.ResponseWriter, r *http.Request) {
	var req model.ScheduleEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	p, err := h.svc.ScheduleEvent(r.Context(), actorID(r), chi.URLParam(r, "chainID"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// TransferEvent handles POST /events/{chainID}/transfer
func (h *EventHandler) TransferEvent(w http.ResponseWriter, r *http.Request) {
	var req model.TransferEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	p, err := h.svc.TransferEvent(r.Context(), actorID(r), chi.URLParam(r, "chainID"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type listEventsResponse struct {
	Events        []*model.Projection `json:"events"`
	NextPageToken string              `json:"next_page_token,omitempty"`
}

// ListOccurrences handles GET /events/{chainID}/occurrences
func (h *EventHandler) ListOccurrences(w http.ResponseWriter, r *http.Request) {
	events, next, err := h.svc.ListOccurrences(
		r.Context(), actorID(r), chi.URLParam(r, "chainID"),
		r.URL.Query().Get("page_token"), queryInt(r, "page_size"),
	)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if events == nil {
		events = []*model.Projection{}
	}
	writeJSON(w, http.StatusOK, listEventsResponse{Events: events, NextPageToken: next})
}

// SetAttendance handles PUT /events/{chainID}/attendance
func (h *EventHandler) SetAttendance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AttendanceState string `json:"attendance_state"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	state, ok := model.ParseAttendanceState(req.AttendanceState)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown attendance_state")
		return
	}
	p, err := h.svc.SetAttendance(r.Context(), actorID(r), chi.URLParam(r, "chainID"), state)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// SetSubscription handles PUT /events/{chainID}/subscription
func (h *EventHandler) SetSubscription(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subscribe bool `json:"subscribe"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	p, err := h.svc.SetSubscription(r.Context(), actorID(r), chi.URLParam(r, "chainID"), req.Subscribe)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// InviteOrganizer handles POST /events/{chainID}/organizers
func (h *EventHandler) InviteOrganizer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.svc.InviteOrganizer(r.Context(), actorID(r), chi.URLParam(r, "chainID"), req.UserID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveOrganizer handles DELETE /events/{chainID}/organizers/{userID}
func (h *EventHandler) RemoveOrganizer(w http.ResponseWriter, r *http.Request) {
	err := h.svc.RemoveOrganizer(r.Context(), actorID(r), chi.URLParam(r, "chainID"), chi.URLParam(r, "userID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type attendeeJSON struct {
	UserID string `json:"user_id"`
	State  string `json:"attendance_state"`
}

type listAttendeesResponse struct {
	Attendees     []attendeeJSON `json:"attendees"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

// ListAttendees handles GET /events/{chainID}/attendees
func (h *EventHandler) ListAttendees(w http.ResponseWriter, r *http.Request) {
	records, next, err := h.svc.ListAttendees(
		r.Context(), chi.URLParam(r, "chainID"),
		r.URL.Query().Get("page_token"), queryInt(r, "page_size"),
	)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	attendees := make([]attendeeJSON, 0, len(records))
	for _, rec := range records {
		attendees = append(attendees, attendeeJSON{UserID: rec.UserID, State: rec.State.String()})
	}
	writeJSON(w, http.StatusOK, listAttendeesResponse{Attendees: attendees, NextPageToken: next})
}

type listUsersResponse struct {
	UserIDs       []string `json:"user_ids"`
	NextPageToken string   `json:"next_page_token,omitempty"`
}

// ListSubscribers handles GET /events/{chainID}/subscribers
func (h *EventHandler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	h.listUsers(w, r, h.svc.ListSubscribers)
}

// ListOrganizers handles GET /events/{chainID}/organizers
func (h *EventHandler) ListOrganizers(w http.ResponseWriter, r *http.Request) {
	h.listUsers(w, r, h.svc.ListOrganizers)
}

func (h *EventHandler) listUsers(
	w http.ResponseWriter, r *http.Request,
	list func(ctx context.Context, chainID, pageToken string, pageSize int) ([]string, string, error),
) {
	ids, next, err := list(
		r.Context(), chi.URLParam(r, "chainID"),
		r.URL.Query().Get("page_token"), queryInt(r, "page_size"),
	)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, listUsersResponse{UserIDs: ids, NextPageToken: next})
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
