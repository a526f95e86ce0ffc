package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lcampbell/healing-chat/internal/handler/events"
	sessionHandler "github.com/lcampbell/healing-chat/internal/handler/session"
	middlewarePkg "github.com/lcampbell/healing-chat/internal/middleware"
	sessionService "github.com/lcampbell/healing-chat/internal/service/session"
)

// NewRouter wires HTTP routes to the session core. The events handler is
// registered as the controller's change callback so every mutation is
// pushed to connected presentation clients.
func NewRouter(ctrl *sessionService.Controller) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	eventsHandler := events.New(ctrl)
	ctrl.SetOnChange(eventsHandler.NotifyChanged)

	r.Route("/api", func(api chi.Router) {
		sessionHandler.New(ctrl).RegisterRoutes(api)
		eventsHandler.RegisterRoutes(api)
	})

	return r
}
