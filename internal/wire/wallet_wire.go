package wire

import (
	"stay-escrow/internal/adaptor"
	"stay-escrow/internal/usecase"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func WalletWire(r chi.Router, service usecase.WalletService, log *zap.Logger) {
	handler := adaptor.NewWalletHandler(service, log)

	r.Route("/wallets", func(r chi.Router) {
		r.Get("/{owner}", handler.Get)
		r.Get("/{owner}/transactions", handler.ListTransactions)
	})
}
