package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/huavcjj/wavemail/internal/domain/mail"
	"github.com/huavcjj/wavemail/internal/domain/triage"
)

// MaxCount caps the n parameter of every view.
const MaxCount = 50

type Pipeline interface {
	Notifications(ctx context.Context, n int) ([]triage.NotificationItem, error)
	TodoList(ctx context.Context, n int) ([]triage.TodoItem, error)
	SortInbox(ctx context.Context) (triage.SortResult, error)
	Fetch(ctx context.Context, expr string, n int) ([]mail.Email, error)
	FetchLatest(ctx context.Context, n int) ([]mail.Email, error)
	FetchFromSender(ctx context.Context, sender string, n int) ([]mail.Email, error)
}

type Handler struct {
	pipeline     Pipeline
	defaultCount int
}

func NewHandler(pipeline Pipeline, defaultCount int) *Handler {
	if defaultCount <= 0 {
		defaultCount = 10
	}
	return &Handler{
		pipeline:     pipeline,
		defaultCount: min(defaultCount, MaxCount),
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/notifications", h.Notifications)
	r.Get("/todolist", h.TodoList)
	r.Post("/automatedsort", h.AutomatedSort)
	r.Get("/automatedsort", h.AutomatedSort)
	r.Get("/emails", h.Emails)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	n, ok := h.count(w, r)
	if !ok {
		return
	}
	items, err := h.pipeline.Notifications(r.Context(), n)
	if err != nil {
		writeError(w, "notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) TodoList(w http.ResponseWriter, r *http.Request) {
	n, ok := h.count(w, r)
	if !ok {
		return
	}
	items, err := h.pipeline.TodoList(r.Context(), n)
	if err != nil {
		writeError(w, "todo list", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type sortResponse struct {
	Status string `json:"status"`
	triage.SortResult
}

func (h *Handler) AutomatedSort(w http.ResponseWriter, r *http.Request) {
	result, err := h.pipeline.SortInbox(r.Context())
	if err != nil {
		writeError(w, "automated sort", err)
		return
	}
	writeJSON(w, http.StatusOK, sortResponse{Status: "sorted", SortResult: result})
}

func (h *Handler) Emails(w http.ResponseWriter, r *http.Request) {
	n, ok := h.count(w, r)
	if !ok {
		return
	}
	q := r.URL.Query().Get("q")
	sender := r.URL.Query().Get("sender")
	if q != "" && sender != "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "use either q or sender, not both"})
		return
	}

	var (
		emails []mail.Email
		err    error
	)
	switch {
	case q != "":
		emails, err = h.pipeline.Fetch(r.Context(), q, n)
	case sender != "":
		emails, err = h.pipeline.FetchFromSender(r.Context(), sender, n)
	default:
		emails, err = h.pipeline.FetchLatest(r.Context(), n)
	}
	if err != nil {
		writeError(w, "fetch", err)
		return
	}
	if emails == nil {
		emails = []mail.Email{}
	}
	writeJSON(w, http.StatusOK, emails)
}

func (h *Handler) count(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("n")
	if raw == "" {
		return h.defaultCount, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("n must be a positive integer, got %q", raw)})
		return 0, false
	}
	return min(n, MaxCount), true
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, operation string, err error) {
	status := http.StatusInternalServerError
	var fe *triage.FetchError
	if errors.As(err, &fe) {
		status = http.StatusBadGateway
	}
	slog.Error("request failed", "operation", operation, "status", status, "error", err)
	writeJSON(w, status, errorResponse{Error: "unable to complete " + operation})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
