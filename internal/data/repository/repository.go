package repository

import (
	"context"
	"fmt"

	"stay-escrow/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	Booking     BookingRepository
	Payment     PaymentRepository
	Dispute     DisputeRepository
	EscrowEvent EscrowEventRepository
	Wallet      WalletRepository
	JobLock     JobLockRepository
	FeeConfig   FeeConfigRepository

	// db is the pool; nil for a transaction-scoped instance.
	db  database.PgxIface
	log *zap.Logger
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	r := build(db, log)
	r.db = db
	return r
}

func build(q database.Querier, log *zap.Logger) *Repository {
	return &Repository{
		Booking:     NewBookingRepository(q, log),
		Payment:     NewPaymentRepository(q, log),
		Dispute:     NewDisputeRepository(q, log),
		EscrowEvent: NewEscrowEventRepository(q, log),
		Wallet:      NewWalletRepository(q, log),
		JobLock:     NewJobLockRepository(q, log),
		FeeConfig:   NewFeeConfigRepository(q, log),
		log:         log,
	}
}

// WithinTx runs fn with a repository bound to a single transaction. All
// financial mutations go through here so partial ledger writes are rolled
// back together. Nested calls reuse the surrounding transaction.
func (r *Repository) WithinTx(ctx context.Context, fn func(txRepo *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(build(tx, r.log)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
