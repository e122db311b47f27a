package wire

import (
	"stay-escrow/internal/adaptor"
	"stay-escrow/internal/usecase"
	"stay-escrow/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func DisputeWire(r chi.Router, service usecase.DisputeService, adminAPIKey string, log *zap.Logger) {
	handler := adaptor.NewDisputeHandler(service, log)

	r.Route("/disputes", func(r chi.Router) {
		r.Post("/", handler.Open)
		r.Get("/{id}", handler.Get)
		r.Post("/{id}/respond", handler.Respond)
		r.Put("/{id}/cancel", handler.Cancel)

		// Admin decisions require the API key.
		r.With(middleware.APIKey(adminAPIKey)).Post("/{id}/decision", handler.Decide)
	})
}
