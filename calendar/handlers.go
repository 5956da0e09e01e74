package calendar

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rcbh/clubsite/applib/httputils"
	"github.com/rcbh/clubsite/audit"
)

const maxBodyBytes = 1 << 20

// MessageResponse is returned by operations that have no resource to return
type MessageResponse struct {
	Message string `json:"message"`
}

// Handler serves the calendar event API.
type Handler struct {
	store  *Store
	audit  *audit.Logger
	logger *slog.Logger
	now    func() time.Time
}

func NewHandler(store *Store, auditLog *audit.Logger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:  store,
		audit:  auditLog,
		logger: logger,
		now:    time.Now,
	}
}

// Register adds the calendar routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/calendar/events", h.handleList)
	mux.HandleFunc("POST /api/calendar/events", h.handleCreate)
	mux.HandleFunc("GET /api/calendar/events.ics", h.handleExport)
	mux.HandleFunc("GET /api/calendar/events/{id}", h.handleGet)
	mux.HandleFunc("PUT /api/calendar/events/{id}", h.handleUpdate)
	mux.HandleFunc("DELETE /api/calendar/events/{id}", h.handleDelete)
	mux.HandleFunc("GET /api/calendar/events/{id}/history", h.handleHistory)
}

// respondError maps store and validation errors to status codes. Storage
// failures share the client-error status of validation failures.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *ValidationError
	var storageErr *StorageError
	switch {
	case errors.Is(err, ErrNotFound):
		httputils.HandleAPIResponse(w, r, nil, errors.New("Event not found"), http.StatusNotFound)
	case errors.As(err, &validationErr):
		httputils.HandleAPIResponse(w, r, nil, err, http.StatusBadRequest)
	case errors.As(err, &storageErr):
		h.logger.ErrorContext(r.Context(), "Calendar store failure",
			"request_id", audit.RequestID(r.Context()),
			"op", storageErr.Op,
			"error", storageErr.Err,
		)
		httputils.HandleAPIResponse(w, r, nil, err, http.StatusBadRequest)
	default:
		httputils.HandleAPIResponse(w, r, nil, err, http.StatusInternalServerError)
	}
}

func notFound(w http.ResponseWriter, r *http.Request) {
	httputils.HandleAPIResponse(w, r, nil, errors.New("Event not found"), http.StatusNotFound)
}

func (h *Handler) monthEvents(r *http.Request) (int, int, []Event, error) {
	query := r.URL.Query()
	year, month, err := ParseYearMonth(query.Get("year"), query.Get("month"))
	if err != nil {
		return 0, 0, nil, err
	}
	events, err := h.store.QueryByYearMonth(r.Context(), year, month)
	return year, month, events, err
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	_, _, events, err := h.monthEvents(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := make([]EventResponse, 0, len(events))
	for i := range events {
		resp = append(resp, events[i].Response())
	}
	httputils.HandleAPIResponse(w, r, resp, nil, http.StatusOK)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, err := DecodeEventRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	fields, err := req.Validate()
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	event, err := h.store.Create(r.Context(), fields)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Created calendar event",
		"request_id", audit.RequestID(r.Context()),
		"id", event.ID,
		"date", event.Date,
	)
	httputils.HandleAPIResponse(w, r, event.Response(), nil, http.StatusCreated)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEventID(r.PathValue("id"))
	if !ok {
		notFound(w, r)
		return
	}
	event, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputils.HandleAPIResponse(w, r, event.Response(), nil, http.StatusOK)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEventID(r.PathValue("id"))
	if !ok {
		notFound(w, r)
		return
	}

	// Unknown ids are reported before the body is looked at
	if _, err := h.store.Get(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}

	req, err := DecodeEventRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	fields, err := req.Validate()
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	event, err := h.store.Update(r.Context(), id, fields)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Updated calendar event",
		"request_id", audit.RequestID(r.Context()),
		"id", event.ID,
	)
	httputils.HandleAPIResponse(w, r, event.Response(), nil, http.StatusOK)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEventID(r.PathValue("id"))
	if !ok {
		notFound(w, r)
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Deleted calendar event",
		"request_id", audit.RequestID(r.Context()),
		"id", id,
	)
	httputils.HandleAPIResponse(w, r, MessageResponse{Message: "Event deleted successfully"}, nil, http.StatusOK)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseEventID(r.PathValue("id"))
	if !ok || h.audit == nil {
		notFound(w, r)
		return
	}

	entries, err := h.audit.History(r.Context(), id)
	if err != nil {
		h.respondError(w, r, &StorageError{Op: "read history of", Err: err})
		return
	}
	if len(entries) == 0 {
		notFound(w, r)
		return
	}
	httputils.HandleAPIResponse(w, r, entries, nil, http.StatusOK)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	year, month, events, err := h.monthEvents(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	name := fmt.Sprintf("RCBH %04d-%02d", year, month)
	var buf bytes.Buffer
	if err := WriteICS(&buf, name, events, h.now()); err != nil {
		httputils.HandleAPIResponse(w, r, nil, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=rcbh-%04d-%02d.ics", year, month))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.ErrorContext(r.Context(), "Error writing calendar export", "error", err)
	}
}
