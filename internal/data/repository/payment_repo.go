package repository

import (
	"context"
	"fmt"

	"stay-escrow/internal/data/entity"
	"stay-escrow/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error)
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Payment, error)
	Update(ctx context.Context, payment *entity.Payment) error
	UpdateStatus(ctx context.Context, paymentID uuid.UUID, status entity.PaymentStatus) error
}

type paymentRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewPaymentRepository(db database.Querier, log *zap.Logger) PaymentRepository {
	return &paymentRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment")),
	}
}

const paymentColumns = `
	id, booking_id, captured_amount, currency, provider_txn_id, status,
	room_fee_in_escrow, deposit_in_escrow, room_fee_released_at, deposit_released_at,
	room_fee_refunded, deposit_deduction, release_attempts,
	fee_config_version, base_commission_rate, volume_discount,
	effective_commission_rate, service_fee, processing_fee,
	created_at, updated_at
`

func scanPayment(row pgx.Row) (*entity.Payment, error) {
	var p entity.Payment
	err := row.Scan(
		&p.ID,
		&p.BookingID,
		&p.CapturedAmount,
		&p.Currency,
		&p.ProviderTxnID,
		&p.Status,
		&p.RoomFeeInEscrow,
		&p.DepositInEscrow,
		&p.RoomFeeReleasedAt,
		&p.DepositReleasedAt,
		&p.RoomFeeRefunded,
		&p.DepositDeduction,
		&p.ReleaseAttempts,
		&p.Snapshot.ConfigVersion,
		&p.Snapshot.BaseCommissionRate,
		&p.Snapshot.VolumeDiscount,
		&p.Snapshot.EffectiveCommissionRate,
		&p.Snapshot.ServiceFee,
		&p.Snapshot.ProcessingFee,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	query := `
		INSERT INTO payments (id, booking_id, captured_amount, currency, provider_txn_id,
			status, room_fee_in_escrow, deposit_in_escrow, room_fee_refunded,
			deposit_deduction, release_attempts, fee_config_version,
			base_commission_rate, volume_discount, effective_commission_rate,
			service_fee, processing_fee, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := r.db.Exec(ctx, query,
		payment.ID,
		payment.BookingID,
		payment.CapturedAmount,
		payment.Currency,
		payment.ProviderTxnID,
		payment.Status,
		payment.RoomFeeInEscrow,
		payment.DepositInEscrow,
		payment.RoomFeeRefunded,
		payment.DepositDeduction,
		payment.ReleaseAttempts,
		payment.Snapshot.ConfigVersion,
		payment.Snapshot.BaseCommissionRate,
		payment.Snapshot.VolumeDiscount,
		payment.Snapshot.EffectiveCommissionRate,
		payment.Snapshot.ServiceFee,
		payment.Snapshot.ProcessingFee,
		payment.CreatedAt,
		payment.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create payment",
			zap.Error(err),
			zap.String("booking_id", payment.BookingID.String()),
		)
		return fmt.Errorf("create payment for booking %s: %w", payment.BookingID.String(), translateError(err))
	}

	return nil
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	payment, err := scanPayment(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payment by ID",
			zap.Error(err),
			zap.String("payment_id", id.String()),
		)
		return nil, fmt.Errorf("find payment by ID %s: %w", id.String(), err)
	}

	return payment, nil
}

func (r *paymentRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = $1`

	payment, err := scanPayment(r.db.QueryRow(ctx, query, bookingID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payment by booking ID",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return nil, fmt.Errorf("find payment by booking ID %s: %w", bookingID.String(), err)
	}

	return payment, nil
}

func (r *paymentRepository) Update(ctx context.Context, payment *entity.Payment) error {
	query := `
		UPDATE payments
		SET status = $2, room_fee_in_escrow = $3, deposit_in_escrow = $4,
		    room_fee_released_at = $5, deposit_released_at = $6,
		    room_fee_refunded = $7, deposit_deduction = $8,
		    release_attempts = $9, updated_at = $10
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query,
		payment.ID,
		payment.Status,
		payment.RoomFeeInEscrow,
		payment.DepositInEscrow,
		payment.RoomFeeReleasedAt,
		payment.DepositReleasedAt,
		payment.RoomFeeRefunded,
		payment.DepositDeduction,
		payment.ReleaseAttempts,
		payment.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to update payment",
			zap.Error(err),
			zap.String("payment_id", payment.ID.String()),
		)
		return fmt.Errorf("update payment %s: %w", payment.ID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("payment %s not found", payment.ID.String())
	}

	return nil
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, paymentID uuid.UUID, status entity.PaymentStatus) error {
	query := `UPDATE payments SET status = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Exec(ctx, query, paymentID, status)
	if err != nil {
		r.log.Error("Failed to update payment status",
			zap.Error(err),
			zap.String("payment_id", paymentID.String()),
			zap.String("status", string(status)),
		)
		return fmt.Errorf("update payment %s status to %s: %w", paymentID.String(), string(status), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("payment %s not found", paymentID.String())
	}

	return nil
}
