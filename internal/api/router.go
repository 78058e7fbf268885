// ABOUTME: HTTP route registration for the compass RPC surface
// ABOUTME: Queries are GETs, mutations are POST/DELETE; identity is optional everywhere

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/careeros/compass/internal/auth"
)

// NewRouter builds the HTTP router. Identity resolution is attached as
// optional middleware; authorization decisions live in the services, so
// every route is mounted the same way.
func NewRouter(h *Handlers, verifier auth.Verifier) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(auth.Middleware(verifier))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Post("/messages", h.SaveMessage)
		r.Get("/messages", h.ListRecentMessages)
		r.Post("/messages/clear", h.ClearHistory)

		r.Post("/memories", h.SaveMemory)
		r.Get("/memories", h.GetUserMemories)
		r.Delete("/memories/{id}", h.DeleteMemory)

		r.Post("/conversations", h.SavePlanningConversation)
		r.Get("/conversations", h.GetPlanningConversationHistory)
		r.Get("/conversations/{conversationID}", h.GetPlanningConversationByID)

		r.Get("/resources", h.GetResources)
		r.Post("/resources", h.CreateResource)
	})

	return r
}
