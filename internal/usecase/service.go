package usecase

import (
	"stay-escrow/internal/data/repository"
	"stay-escrow/pkg/gateway"
	"stay-escrow/pkg/notify"
	"stay-escrow/pkg/utils"

	"go.uber.org/zap"
)

// Service bundles the use cases for wiring.
type Service struct {
	Fee     FeeService
	Escrow  EscrowService
	Booking BookingService
	Dispute DisputeService
	Wallet  WalletService
}

func NewService(
	repo *repository.Repository,
	gateways *gateway.Registry,
	notifier notify.Notifier,
	cfg utils.Config,
	log *zap.Logger,
) *Service {
	fees := NewFeeService(log)
	escrow := NewEscrowService(repo, fees, gateways, notifier, cfg.Escrow, log)

	return &Service{
		Fee:     fees,
		Escrow:  escrow,
		Booking: NewBookingService(repo, fees, escrow, gateways, notifier, cfg, log),
		Dispute: NewDisputeService(repo, escrow, notifier, cfg.Escrow, cfg.Scheduler.BatchSize, log),
		Wallet:  NewWalletService(repo, log),
	}
}
