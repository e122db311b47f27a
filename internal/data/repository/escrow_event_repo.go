package repository

import (
	"context"
	"fmt"

	"stay-escrow/internal/data/entity"
	"stay-escrow/pkg/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type EscrowEventRepository interface {
	Create(ctx context.Context, event *entity.EscrowEvent) error
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.EscrowEvent, error)

	// SumByPaymentAndTypes returns the total amount moved for one
	// component of a payment across the given event types. Used to
	// enforce that released plus refunded money never exceeds the
	// captured amount.
	SumByPaymentAndTypes(ctx context.Context, paymentID uuid.UUID, component entity.EscrowComponent, types []entity.EscrowEventType) (decimal.Decimal, error)
}

type escrowEventRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewEscrowEventRepository(db database.Querier, log *zap.Logger) EscrowEventRepository {
	return &escrowEventRepository{
		db:  db,
		log: log.With(zap.String("repository", "escrow_event")),
	}
}

func (r *escrowEventRepository) Create(ctx context.Context, event *entity.EscrowEvent) error {
	// Append-only: no update or delete exists for escrow events.
	query := `
		INSERT INTO escrow_events (id, booking_id, payment_id, type, component,
			amount, currency, source_party, destination_party, reference,
			executed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Exec(ctx, query,
		event.ID,
		event.BookingID,
		event.PaymentID,
		event.Type,
		event.Component,
		event.Amount,
		event.Currency,
		event.SourceParty,
		event.DestinationParty,
		event.Reference,
		event.ExecutedAt,
		event.CreatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create escrow event",
			zap.Error(err),
			zap.String("booking_id", event.BookingID.String()),
			zap.String("type", string(event.Type)),
		)
		return fmt.Errorf("create escrow event for booking %s: %w", event.BookingID.String(), err)
	}

	return nil
}

func (r *escrowEventRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.EscrowEvent, error) {
	query := `
		SELECT id, booking_id, payment_id, type, component, amount, currency,
		       source_party, destination_party, reference, executed_at, created_at
		FROM escrow_events
		WHERE booking_id = $1
		ORDER BY executed_at, created_at
	`

	rows, err := r.db.Query(ctx, query, bookingID)
	if err != nil {
		r.log.Error("Failed to find escrow events",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return nil, fmt.Errorf("find escrow events for booking %s: %w", bookingID.String(), err)
	}
	defer rows.Close()

	var events []*entity.EscrowEvent
	for rows.Next() {
		var e entity.EscrowEvent
		err := rows.Scan(
			&e.ID,
			&e.BookingID,
			&e.PaymentID,
			&e.Type,
			&e.Component,
			&e.Amount,
			&e.Currency,
			&e.SourceParty,
			&e.DestinationParty,
			&e.Reference,
			&e.ExecutedAt,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan escrow event row: %w", err)
		}
		events = append(events, &e)
	}

	return events, rows.Err()
}

func (r *escrowEventRepository) SumByPaymentAndTypes(ctx context.Context, paymentID uuid.UUID, component entity.EscrowComponent, types []entity.EscrowEventType) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM escrow_events
		WHERE payment_id = $1 AND component = $2 AND type = ANY($3)
	`

	typeStrings := make([]string, len(types))
	for i, t := range types {
		typeStrings[i] = string(t)
	}

	var total decimal.Decimal
	if err := r.db.QueryRow(ctx, query, paymentID, string(component), typeStrings).Scan(&total); err != nil {
		r.log.Error("Failed to sum escrow events",
			zap.Error(err),
			zap.String("payment_id", paymentID.String()),
		)
		return decimal.Zero, fmt.Errorf("sum escrow events for payment %s: %w", paymentID.String(), err)
	}

	return total, nil
}
