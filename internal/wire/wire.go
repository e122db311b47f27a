package wire

import (
	"net/http"

	"stay-escrow/internal/usecase"
	"stay-escrow/pkg/middleware"
	"stay-escrow/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Routes builds the chi mux and mounts every feature router.
func Routes(svc *usecase.Service, cfg *utils.Config, log *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recover(log))
	r.Use(middleware.Logger(log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		utils.ResponseSuccess(w, "ok", nil)
	})

	r.Route("/api", func(api chi.Router) {
		BookingWire(api, svc.Booking, log)
		DisputeWire(api, svc.Dispute, cfg.App.AdminAPIKey, log)
		WalletWire(api, svc.Wallet, log)
	})

	return r
}
