package events

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/lcampbell/healing-chat/internal/service/conversation"
	sessionService "github.com/lcampbell/healing-chat/internal/service/session"
)

// State is the full snapshot pushed to presentation clients after every
// mutation: the sorted conversation list plus the active session.
type State struct {
	Conversations []conversation.Summary  `json:"conversations"`
	Session       sessionService.Snapshot `json:"session"`
}

// Handler maintains WebSocket subscribers and fans state snapshots out to
// them. It implements the controller's change callback.
type Handler struct {
	ctrl     *sessionService.Controller
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

// New creates the events handler.
func New(ctrl *sessionService.Controller) *Handler {
	return &Handler{
		ctrl: ctrl,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: make(map[*websocket.Conn]bool),
	}
}

// RegisterRoutes registers the events route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/events", h.handleEvents)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[events] websocket upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = true
	// The new subscriber gets the current state right away.
	if err := conn.WriteJSON(h.state(r.Context())); err != nil {
		delete(h.conns, conn)
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.mu.Unlock()

	// Subscribers only listen; the read loop exists to notice the close.
	go h.readUntilClosed(conn)
}

func (h *Handler) readUntilClosed(conn *websocket.Conn) {
	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// NotifyChanged pushes a fresh snapshot to every subscriber. Wired as the
// controller's change callback.
func (h *Handler) NotifyChanged() {
	state := h.state(context.Background())

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		if err := conn.WriteJSON(state); err != nil {
			log.Printf("[events] dropping subscriber: %v", err)
			delete(h.conns, conn)
			conn.Close()
		}
	}
}

func (h *Handler) state(ctx context.Context) State {
	return State{
		Conversations: h.ctrl.Conversations(ctx),
		Session:       h.ctrl.Snapshot(),
	}
}
