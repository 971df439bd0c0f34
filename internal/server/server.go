// Package server exposes a session.Controller over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/comigor/evo-go/internal/history"
	"github.com/comigor/evo-go/internal/logger"
	"github.com/comigor/evo-go/internal/session"
)

// Handler serves the chat API for one controller.
type Handler struct {
	ctrl *session.Controller
}

// New creates the chat handler.
func New(ctrl *session.Controller) *Handler {
	return &Handler{ctrl: ctrl}
}

// NewRouter wires HTTP routes to the controller.
func NewRouter(ctrl *session.Controller) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	h := New(ctrl)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ws", h.handleEvents)
	r.Route("/api", h.RegisterRoutes)

	return r
}

// RegisterRoutes registers the chat routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/conversation", h.handleConversation)
	r.Delete("/conversation", h.handleDeleteHistory)
	r.Post("/conversation/new", h.handleNewChat)
	r.Post("/messages", h.handleSubmit)
	r.Post("/regenerate", h.handleRegenerate)
	r.Post("/turns/{index}/edit", h.handleEdit)
	r.Post("/turns/{index}/copy", h.handleCopy)
	r.Put("/turns/{index}/rating", h.handleRate)
	r.Get("/share", h.handleShare)
	r.Get("/saved", h.handleListSaved)
	r.Post("/saved", h.handleSave)
	r.Post("/saved/{index}/load", h.handleLoad)
}

type conversationView struct {
	Turns     []history.Turn `json:"turns"`
	State     session.State  `json:"state"`
	LastError string         `json:"lastError,omitempty"`
	Selected  int            `json:"selected"`
}

func (h *Handler) handleConversation(w http.ResponseWriter, r *http.Request) {
	view := conversationView{
		Turns:    h.ctrl.Turns(),
		State:    h.ctrl.State(),
		Selected: h.ctrl.Selected(),
	}
	if err := h.ctrl.LastError(); err != nil {
		view.LastError = h.ctrl.DisplayMessage(err)
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.ctrl.Submit(r.Context(), payload.Text)
	if err != nil {
		h.respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (h *Handler) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	reply, err := h.ctrl.Regenerate(r.Context())
	if err != nil {
		h.respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	i, ok := indexParam(w, r)
	if !ok {
		return
	}
	content, err := h.ctrl.EditUserTurn(r.Context(), i)
	if err != nil {
		h.respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"content": content})
}

func (h *Handler) handleCopy(w http.ResponseWriter, r *http.Request) {
	i, ok := indexParam(w, r)
	if !ok {
		return
	}
	content, err := h.ctrl.Copy(i)
	if err != nil {
		h.respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"content": content})
}

func (h *Handler) handleRate(w http.ResponseWriter, r *http.Request) {
	i, ok := indexParam(w, r)
	if !ok {
		return
	}
	var payload struct {
		Rating string `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rating, err := history.ParseRating(payload.Rating)
	if err != nil {
		h.respondControllerError(w, err)
		return
	}
	if err := h.ctrl.Rate(r.Context(), i, rating); err != nil {
		h.respondControllerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleNewChat(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.NewChat(r.Context()); err != nil {
		h.respondControllerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.DeleteHistory(r.Context()); err != nil {
		h.respondControllerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleShare(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	out, err := h.ctrl.Share(format)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch format {
	case session.FormatJSON:
		w.Header().Set("Content-Type", "application/json")
	case session.FormatYAML:
		w.Header().Set("Content-Type", "application/yaml")
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}

type savedView struct {
	Index     int       `json:"index"`
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	Turns     int       `json:"turns"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

func (h *Handler) handleListSaved(w http.ResponseWriter, r *http.Request) {
	saved := h.ctrl.SavedSessions()
	out := make([]savedView, len(saved))
	for i, ss := range saved {
		out[i] = savedView{Index: i, ID: ss.ID, Name: ss.Name, Turns: len(ss.Turns), CreatedAt: ss.CreatedAt}
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
	}
	// an empty body selects the default name
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	ss, err := h.ctrl.Save(r.Context(), payload.Name)
	if err != nil {
		h.respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, ss)
}

func (h *Handler) handleLoad(w http.ResponseWriter, r *http.Request) {
	i, ok := indexParam(w, r)
	if !ok {
		return
	}
	turns, err := h.ctrl.Load(r.Context(), i)
	if err != nil {
		h.respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"turns": turns})
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "index must be an integer")
		return 0, false
	}
	return i, true
}

// statusFor maps controller and store errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return 499
	case errors.Is(err, session.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, session.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrUpstreamError):
		return http.StatusBadGateway
	case errors.Is(err, history.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, history.ErrInvalidTarget), errors.Is(err, session.ErrNoPriorUserTurn):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNoClipboard):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondControllerError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.L.Error("request failed", "status", status, "error", err)
	}
	respondJSON(w, status, map[string]string{
		"error":   err.Error(),
		"message": h.ctrl.DisplayMessage(err),
	})
}

// respondJSON writes payload as JSON with the given status.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L.Warn("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
