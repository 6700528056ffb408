package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pbparthas/enki/internal/api"
	"github.com/pbparthas/enki/internal/api/handlers"
	"github.com/pbparthas/enki/internal/api/middleware"
)

type RouterConfig struct {
	AuthValidator    middleware.AuthValidator
	ItemHandler      *handlers.ItemHandler
	CandidateHandler *handlers.CandidateHandler
	SearchHandler    *handlers.SearchHandler
	ReviewHandler    *handlers.ReviewHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Route("/items", func(r chi.Router) {
			r.Post("/", cfg.ItemHandler.Create)
			r.Get("/", cfg.ItemHandler.List)
			r.Get("/{id}", cfg.ItemHandler.Get)
			r.Put("/{id}", cfg.ItemHandler.Update)
			r.Post("/{id}/refresh", cfg.ItemHandler.Refresh)
		})

		r.Route("/candidates", func(r chi.Router) {
			r.Post("/", cfg.CandidateHandler.Add)
			r.Get("/", cfg.CandidateHandler.List)
			r.Get("/{id}", cfg.CandidateHandler.Get)
		})

		r.Get("/search", cfg.SearchHandler.Search)

		// Promotion, discard, flagging, starring, supersession, the
		// deletion sweep and export all require a reviewer key.
		r.Route("/review", func(r chi.Router) {
			r.Use(middleware.RequireReviewer)

			r.Post("/candidates/{id}/promote", cfg.ReviewHandler.Promote)
			r.Post("/candidates/promote", cfg.ReviewHandler.PromoteBatch)
			r.Delete("/candidates/{id}", cfg.ReviewHandler.Discard)

			r.Post("/items/{id}/flag", cfg.ReviewHandler.Flag)
			r.Delete("/items/{id}/flag", cfg.ReviewHandler.Unflag)
			r.Post("/items/{id}/star", cfg.ReviewHandler.Star)
			r.Post("/items/{id}/supersede", cfg.ReviewHandler.Supersede)

			r.Post("/deletions/process", cfg.ReviewHandler.ProcessDeletions)
			r.Post("/export", cfg.ReviewHandler.Export)
		})
	})

	return r
}
