package session

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	sessionService "github.com/lcampbell/healing-chat/internal/service/session"
	"github.com/lcampbell/healing-chat/pkg/utils"
)

// Handler exposes the presentation intents over HTTP: create, switch and
// delete conversations, edit the input buffer, submit a message, and read
// the snapshots needed for rendering.
type Handler struct {
	ctrl *sessionService.Controller
}

// New creates the session handler.
func New(ctrl *sessionService.Controller) *Handler {
	return &Handler{ctrl: ctrl}
}

// RegisterRoutes registers the session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/conversations", h.handleListConversations)
	r.Post("/conversations", h.handleCreateConversation)
	r.Delete("/conversations/{id}", h.handleDeleteConversation)

	r.Get("/session", h.handleGetSession)
	r.Put("/session/active", h.handleSwitchConversation)
	r.Put("/session/input", h.handleUpdateInput)
	r.Post("/session/messages", h.handleSubmit)
}

func (h *Handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.ctrl.Conversations(r.Context()))
}

func (h *Handler) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	conv := h.ctrl.CreateConversation(r.Context())
	utils.RespondJSON(w, http.StatusCreated, conv)
}

func (h *Handler) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	h.ctrl.DeleteConversation(r.Context(), chi.URLParam(r, "id"))
	utils.RespondJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

func (h *Handler) handleSwitchConversation(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ConversationID string `json:"conversationId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.ConversationID == "" {
		utils.RespondError(w, http.StatusBadRequest, "conversationId is required")
		return
	}

	h.ctrl.SwitchConversation(r.Context(), payload.ConversationID)
	utils.RespondJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

func (h *Handler) handleUpdateInput(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.ctrl.UpdateInput(payload.Text)
	utils.RespondJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

// handleSubmit accepts an optional message body as a convenience; when
// provided it replaces the input buffer before submitting, so clients that
// do not mirror keystrokes can send in one call. The request blocks through
// the analysis round trip and answers with the reconciled session.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message"`
	}
	// An absent or empty body falls back to the current input buffer.
	_ = json.NewDecoder(r.Body).Decode(&payload)
	if payload.Message != "" {
		h.ctrl.UpdateInput(payload.Message)
	}

	err := h.ctrl.Submit(r.Context())
	switch {
	case errors.Is(err, sessionService.ErrEmptyInput), errors.Is(err, sessionService.ErrNoActiveConversation):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, sessionService.ErrBusy):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case err != nil:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	default:
		utils.RespondJSON(w, http.StatusOK, h.ctrl.Snapshot())
	}
}
