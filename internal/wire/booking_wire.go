package wire

import (
	"stay-escrow/internal/adaptor"
	"stay-escrow/internal/usecase"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func BookingWire(r chi.Router, service usecase.BookingService, log *zap.Logger) {
	handler := adaptor.NewBookingHandler(service, log)

	r.Route("/bookings", func(r chi.Router) {
		r.Post("/", handler.Create)
		r.Get("/{id}", handler.Get)
		r.Get("/{id}/events", handler.Events)
		r.Post("/{id}/capture", handler.Capture)
		r.Post("/{id}/check-in", handler.CheckIn)
		r.Post("/{id}/check-out", handler.CheckOut)
		r.Put("/{id}/cancel", handler.Cancel)
	})
}
