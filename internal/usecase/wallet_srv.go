package usecase

import (
	"context"
	"fmt"

	"stay-escrow/internal/data/entity"
	"stay-escrow/internal/data/repository"
	"stay-escrow/internal/dto/request"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WalletService interface {
	GetByOwner(ctx context.Context, ownerID uuid.UUID, ownerType entity.WalletOwnerType) (*entity.Wallet, error)
	ListTransactions(ctx context.Context, ownerID uuid.UUID, ownerType entity.WalletOwnerType, page request.PaginatedRequest) ([]*entity.WalletTransaction, int64, error)

	// Reconcile recomputes the available balance from the transaction
	// log and reports it alongside the cached value.
	Reconcile(ctx context.Context, ownerID uuid.UUID, ownerType entity.WalletOwnerType) (cached, derived decimal.Decimal, err error)
}

type walletService struct {
	repo *repository.Repository
	log  *zap.Logger
}

func NewWalletService(repo *repository.Repository, log *zap.Logger) WalletService {
	return &walletService{
		repo: repo,
		log:  log.With(zap.String("service", "wallet")),
	}
}

func (s *walletService) GetByOwner(ctx context.Context, ownerID uuid.UUID, ownerType entity.WalletOwnerType) (*entity.Wallet, error) {
	wallet, err := s.repo.Wallet.FindByOwner(ctx, ownerID, ownerType)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, fmt.Errorf("wallet for owner %s: %w", ownerID.String(), ErrNotFound)
	}
	return wallet, nil
}

func (s *walletService) ListTransactions(ctx context.Context, ownerID uuid.UUID, ownerType entity.WalletOwnerType, page request.PaginatedRequest) ([]*entity.WalletTransaction, int64, error) {
	wallet, err := s.GetByOwner(ctx, ownerID, ownerType)
	if err != nil {
		return nil, 0, err
	}

	transactions, err := s.repo.Wallet.ListTransactions(ctx, wallet.ID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}

	total, err := s.repo.Wallet.CountTransactions(ctx, wallet.ID)
	if err != nil {
		return nil, 0, err
	}

	return transactions, total, nil
}

func (s *walletService) Reconcile(ctx context.Context, ownerID uuid.UUID, ownerType entity.WalletOwnerType) (decimal.Decimal, decimal.Decimal, error) {
	wallet, err := s.GetByOwner(ctx, ownerID, ownerType)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	derived, err := s.repo.Wallet.RecomputeAvailable(ctx, wallet.ID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	if !derived.Equal(wallet.BalanceAvailable) {
		s.log.Error("Wallet balance drift detected",
			zap.String("wallet_id", wallet.ID.String()),
			zap.String("cached", wallet.BalanceAvailable.String()),
			zap.String("derived", derived.String()),
		)
	}

	return wallet.BalanceAvailable, derived, nil
}
