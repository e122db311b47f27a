package repository

import (
	"context"
	"fmt"
	"time"

	"stay-escrow/internal/data/entity"
	"stay-escrow/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindByReference(ctx context.Context, reference string) (*entity.Booking, error)
	Update(ctx context.Context, booking *entity.Booking) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.BookingStatus) error
	FindByStatus(ctx context.Context, status entity.BookingStatus, limit int) ([]*entity.Booking, error)

	// Sweep scans
	FindDueRoomFeeRelease(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	FindDueDepositRelease(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	FindDueAutoCheckIn(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)

	// Trailing room-fee volume for commission tier lookup
	SumOperatorRoomFeeVolume(ctx context.Context, operatorID uuid.UUID, since time.Time) (decimal.Decimal, error)
}

type bookingRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewBookingRepository(db database.Querier, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

const bookingColumns = `
	id, reference, guest_id, property_id, operator_id, provider, payment_mode,
	currency, check_in_date, check_out_date, room_fee, cleaning_fee, service_fee,
	platform_fee, security_deposit, status, fee_config_version, actual_check_in_at,
	actual_check_out_at, room_fee_release_eligible_at, deposit_refund_eligible_at,
	created_at, updated_at
`

func scanBooking(row pgx.Row) (*entity.Booking, error) {
	var b entity.Booking
	err := row.Scan(
		&b.ID,
		&b.Reference,
		&b.GuestID,
		&b.PropertyID,
		&b.OperatorID,
		&b.Provider,
		&b.PaymentMode,
		&b.Currency,
		&b.CheckInDate,
		&b.CheckOutDate,
		&b.RoomFee,
		&b.CleaningFee,
		&b.ServiceFee,
		&b.PlatformFee,
		&b.SecurityDeposit,
		&b.Status,
		&b.FeeConfigVersion,
		&b.ActualCheckInAt,
		&b.ActualCheckOutAt,
		&b.RoomFeeReleaseEligibleAt,
		&b.DepositRefundEligibleAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	query := `
		INSERT INTO bookings (id, reference, guest_id, property_id, operator_id,
			provider, payment_mode, currency, check_in_date, check_out_date,
			room_fee, cleaning_fee, service_fee, platform_fee, security_deposit,
			status, fee_config_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := r.db.Exec(ctx, query,
		booking.ID,
		booking.Reference,
		booking.GuestID,
		booking.PropertyID,
		booking.OperatorID,
		booking.Provider,
		booking.PaymentMode,
		booking.Currency,
		booking.CheckInDate,
		booking.CheckOutDate,
		booking.RoomFee,
		booking.CleaningFee,
		booking.ServiceFee,
		booking.PlatformFee,
		booking.SecurityDeposit,
		booking.Status,
		booking.FeeConfigVersion,
		booking.CreatedAt,
		booking.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("reference", booking.Reference),
		)
		return fmt.Errorf("create booking %s: %w", booking.Reference, err)
	}

	return nil
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 AND deleted_at IS NULL`

	booking, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by ID",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return nil, fmt.Errorf("find booking by ID %s: %w", id.String(), err)
	}

	return booking, nil
}

func (r *bookingRepository) FindByReference(ctx context.Context, reference string) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE reference = $1 AND deleted_at IS NULL`

	booking, err := scanBooking(r.db.QueryRow(ctx, query, reference))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by reference",
			zap.Error(err),
			zap.String("reference", reference),
		)
		return nil, fmt.Errorf("find booking by reference %s: %w", reference, err)
	}

	return booking, nil
}

func (r *bookingRepository) Update(ctx context.Context, booking *entity.Booking) error {
	query := `
		UPDATE bookings
		SET status = $2, fee_config_version = $3, service_fee = $4, platform_fee = $5,
		    actual_check_in_at = $6, actual_check_out_at = $7,
		    room_fee_release_eligible_at = $8, deposit_refund_eligible_at = $9,
		    updated_at = $10
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query,
		booking.ID,
		booking.Status,
		booking.FeeConfigVersion,
		booking.ServiceFee,
		booking.PlatformFee,
		booking.ActualCheckInAt,
		booking.ActualCheckOutAt,
		booking.RoomFeeReleaseEligibleAt,
		booking.DepositRefundEligibleAt,
		booking.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to update booking",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
		)
		return fmt.Errorf("update booking %s: %w", booking.ID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("booking %s not found", booking.ID.String())
	}

	return nil
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.BookingStatus) error {
	query := `UPDATE bookings SET status = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		r.log.Error("Failed to update booking status",
			zap.Error(err),
			zap.String("booking_id", id.String()),
			zap.String("status", string(status)),
		)
		return fmt.Errorf("update booking %s status to %s: %w", id.String(), string(status), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("booking %s not found", id.String())
	}

	return nil
}

func (r *bookingRepository) FindByStatus(ctx context.Context, status entity.BookingStatus, limit int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = $1 AND deleted_at IS NULL
		ORDER BY created_at
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, status, limit)
	if err != nil {
		r.log.Error("Failed to find bookings by status",
			zap.Error(err),
			zap.String("status", string(status)),
		)
		return nil, fmt.Errorf("find bookings by status %s: %w", string(status), err)
	}
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}

func (r *bookingRepository) FindDueRoomFeeRelease(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	// Dispute blocking is re-checked by the release operation itself; the
	// scan only narrows down candidates.
	query := `
		SELECT b.id
		FROM bookings b
		JOIN payments p ON p.booking_id = b.id
		WHERE b.room_fee_release_eligible_at IS NOT NULL
		  AND b.room_fee_release_eligible_at <= $1
		  AND p.room_fee_in_escrow = TRUE
		  AND p.status = 'held'
		  AND b.status NOT IN ('cancelled')
		ORDER BY b.room_fee_release_eligible_at
		LIMIT $2
	`

	return r.scanIDs(ctx, query, "room fee release", now, limit)
}

func (r *bookingRepository) FindDueDepositRelease(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	// Deposit release is ordered after room-fee settlement, hence the
	// room_fee_released_at guard.
	query := `
		SELECT b.id
		FROM bookings b
		JOIN payments p ON p.booking_id = b.id
		WHERE b.deposit_refund_eligible_at IS NOT NULL
		  AND b.deposit_refund_eligible_at <= $1
		  AND p.deposit_in_escrow = TRUE
		  AND p.room_fee_released_at IS NOT NULL
		  AND p.status = 'partially_released'
		  AND b.status NOT IN ('cancelled')
		ORDER BY b.deposit_refund_eligible_at
		LIMIT $2
	`

	return r.scanIDs(ctx, query, "deposit release", now, limit)
}

func (r *bookingRepository) FindDueAutoCheckIn(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM bookings
		WHERE status = 'paid'
		  AND check_in_date <= $1
		  AND deleted_at IS NULL
		ORDER BY check_in_date
		LIMIT $2
	`

	return r.scanIDs(ctx, query, "auto check-in", cutoff, limit)
}

func (r *bookingRepository) SumOperatorRoomFeeVolume(ctx context.Context, operatorID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(room_fee), 0)
		FROM bookings
		WHERE operator_id = $1
		  AND created_at >= $2
		  AND status NOT IN ('pending', 'cancelled')
	`

	var total decimal.Decimal
	if err := r.db.QueryRow(ctx, query, operatorID, since).Scan(&total); err != nil {
		r.log.Error("Failed to sum operator room fee volume",
			zap.Error(err),
			zap.String("operator_id", operatorID.String()),
		)
		return decimal.Zero, fmt.Errorf("sum room fee volume for operator %s: %w", operatorID.String(), err)
	}

	return total, nil
}

func (r *bookingRepository) scanIDs(ctx context.Context, query, what string, at time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, query, at, limit)
	if err != nil {
		r.log.Error("Failed to scan due bookings",
			zap.Error(err),
			zap.String("sweep", what),
		)
		return nil, fmt.Errorf("scan bookings due for %s: %w", what, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan booking id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
