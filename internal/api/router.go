package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", apiHandler.HealthHandler)

		// Authenticated when a JWT secret is configured
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Get("/sessions", apiHandler.ListSessionsHandler)
			r.Post("/sessions", apiHandler.CreateSessionHandler)
			r.Route("/sessions/{sessionID}", func(r chi.Router) {
				r.Get("/", apiHandler.GetSessionHandler)
				r.Patch("/", apiHandler.RenameSessionHandler)
				r.Delete("/", apiHandler.DeleteSessionHandler)

				r.Get("/papers", apiHandler.ListPapersHandler)
				r.Post("/papers", apiHandler.UploadPaperHandler)
				r.Post("/papers/import", apiHandler.ImportPaperHandler)

				r.Post("/messages", apiHandler.PostMessageHandler)
				r.Post("/messages/stream", apiHandler.StreamMessageHandler)
			})
		})
	})

	return r
}
