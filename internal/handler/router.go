package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nsxzhou/dualmind/internal/handler/chat"
	"github.com/nsxzhou/dualmind/internal/handler/logs"
	middlewarePkg "github.com/nsxzhou/dualmind/internal/middleware"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(chatHandler *chat.Handler, logsHandler *logs.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		logsHandler.RegisterRoutes(api)
	})

	chatHandler.RegisterRoutes(r)

	return r
}
