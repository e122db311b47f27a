package repository

import (
	"context"
	"errors"
	"fmt"

	"stay-escrow/internal/data/entity"
	"stay-escrow/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WalletRepository interface {
	FindByOwner(ctx context.Context, ownerID uuid.UUID, ownerType entity.WalletOwnerType) (*entity.Wallet, error)

	// Credit and Debit post one completed transaction and apply it to the
	// materialized balance in a single statement each, so concurrent
	// writers to the same wallet never lose an update. A reference that
	// was already posted is a no-op (replay safety).
	Credit(ctx context.Context, ownerID uuid.UUID, ownerType entity.WalletOwnerType, currency string, amount decimal.Decimal, reference, description string, bookingID *uuid.UUID) error
	Debit(ctx context.Context, ownerID uuid.UUID, ownerType entity.WalletOwnerType, currency string, amount decimal.Decimal, reference, description string, bookingID *uuid.UUID) error

	ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*entity.WalletTransaction, error)
	CountTransactions(ctx context.Context, walletID uuid.UUID) (int64, error)

	// RecomputeAvailable derives the available balance from the
	// transaction log, for reconciliation against the cached value.
	RecomputeAvailable(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error)
}

type walletRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewWalletRepository(db database.Querier, log *zap.Logger) WalletRepository {
	return &walletRepository{
		db:  db,
		log: log.With(zap.String("repository", "wallet")),
	}
}

func (r *walletRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID, ownerType entity.WalletOwnerType) (*entity.Wallet, error) {
	query := `
		SELECT id, owner_id, owner_type, currency, balance_available, balance_pending,
		       created_at, updated_at
		FROM wallets
		WHERE owner_id = $1 AND owner_type = $2
	`

	var w entity.Wallet
	err := r.db.QueryRow(ctx, query, ownerID, ownerType).Scan(
		&w.ID,
		&w.OwnerID,
		&w.OwnerType,
		&w.Currency,
		&w.BalanceAvailable,
		&w.BalancePending,
		&w.CreatedAt,
		&w.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find wallet by owner",
			zap.Error(err),
			zap.String("owner_id", ownerID.String()),
			zap.String("owner_type", string(ownerType)),
		)
		return nil, fmt.Errorf("find wallet for owner %s: %w", ownerID.String(), err)
	}

	return &w, nil
}

func (r *walletRepository) Credit(ctx context.Context, ownerID uuid.UUID, ownerType entity.WalletOwnerType, currency string, amount decimal.Decimal, reference, description string, bookingID *uuid.UUID) error {
	return r.post(ctx, ownerID, ownerType, currency, amount, entity.WalletTxCredit, reference, description, bookingID)
}

func (r *walletRepository) Debit(ctx context.Context, ownerID uuid.UUID, ownerType entity.WalletOwnerType, currency string, amount decimal.Decimal, reference, description string, bookingID *uuid.UUID) error {
	return r.post(ctx, ownerID, ownerType, currency, amount, entity.WalletTxDebit, reference, description, bookingID)
}

func (r *walletRepository) post(ctx context.Context, ownerID uuid.UUID, ownerType entity.WalletOwnerType, currency string, amount decimal.Decimal, txType entity.WalletTxType, reference, description string, bookingID *uuid.UUID) error {
	// Get-or-create the wallet row.
	upsert := `
		INSERT INTO wallets (id, owner_id, owner_type, currency, balance_available,
			balance_pending, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, 0, NOW(), NOW())
		ON CONFLICT (owner_id, owner_type) DO UPDATE SET updated_at = NOW()
		RETURNING id
	`

	var walletID uuid.UUID
	if err := r.db.QueryRow(ctx, upsert, uuid.New(), ownerID, ownerType, currency).Scan(&walletID); err != nil {
		r.log.Error("Failed to upsert wallet",
			zap.Error(err),
			zap.String("owner_id", ownerID.String()),
		)
		return fmt.Errorf("upsert wallet for owner %s: %w", ownerID.String(), err)
	}

	// Append the transaction. A duplicate reference means this movement
	// was already posted; skip the balance update too.
	insertTx := `
		INSERT INTO wallet_transactions (id, wallet_id, type, status, amount,
			currency, description, reference, booking_id, created_at)
		VALUES ($1, $2, $3, 'completed', $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (reference) DO NOTHING
		RETURNING id
	`

	var txID uuid.UUID
	err := r.db.QueryRow(ctx, insertTx, uuid.New(), walletID, txType, amount, currency, description, reference, bookingID).Scan(&txID)
	if errors.Is(err, pgx.ErrNoRows) {
		r.log.Info("Wallet transaction already posted, skipping",
			zap.String("reference", reference),
			zap.String("wallet_id", walletID.String()),
		)
		return nil
	}
	if err != nil {
		r.log.Error("Failed to insert wallet transaction",
			zap.Error(err),
			zap.String("reference", reference),
		)
		return fmt.Errorf("insert wallet transaction %s: %w", reference, err)
	}

	// Single-statement balance apply: no read-then-write window.
	signed := amount
	if txType == entity.WalletTxDebit {
		signed = amount.Neg()
	}

	apply := `UPDATE wallets SET balance_available = balance_available + $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.Exec(ctx, apply, walletID, signed); err != nil {
		r.log.Error("Failed to apply wallet balance",
			zap.Error(err),
			zap.String("wallet_id", walletID.String()),
		)
		return fmt.Errorf("apply balance to wallet %s: %w", walletID.String(), err)
	}

	return nil
}

func (r *walletRepository) ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*entity.WalletTransaction, error) {
	query := `
		SELECT id, wallet_id, type, status, amount, currency, description,
		       reference, booking_id, created_at
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, walletID, limit, offset)
	if err != nil {
		r.log.Error("Failed to list wallet transactions",
			zap.Error(err),
			zap.String("wallet_id", walletID.String()),
		)
		return nil, fmt.Errorf("list transactions for wallet %s: %w", walletID.String(), err)
	}
	defer rows.Close()

	var transactions []*entity.WalletTransaction
	for rows.Next() {
		var t entity.WalletTransaction
		err := rows.Scan(
			&t.ID,
			&t.WalletID,
			&t.Type,
			&t.Status,
			&t.Amount,
			&t.Currency,
			&t.Description,
			&t.Reference,
			&t.BookingID,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan wallet transaction row: %w", err)
		}
		transactions = append(transactions, &t)
	}

	return transactions, rows.Err()
}

func (r *walletRepository) CountTransactions(ctx context.Context, walletID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM wallet_transactions WHERE wallet_id = $1`

	var count int64
	if err := r.db.QueryRow(ctx, query, walletID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count transactions for wallet %s: %w", walletID.String(), err)
	}

	return count, nil
}

func (r *walletRepository) RecomputeAvailable(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN type = 'credit' THEN amount ELSE -amount END), 0)
		FROM wallet_transactions
		WHERE wallet_id = $1 AND status = 'completed'
	`

	var total decimal.Decimal
	if err := r.db.QueryRow(ctx, query, walletID).Scan(&total); err != nil {
		r.log.Error("Failed to recompute wallet balance",
			zap.Error(err),
			zap.String("wallet_id", walletID.String()),
		)
		return decimal.Zero, fmt.Errorf("recompute balance for wallet %s: %w", walletID.String(), err)
	}

	return total, nil
}
