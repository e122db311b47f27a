package repository

import (
	"context"
	"fmt"
	"time"

	"stay-escrow/internal/data/entity"
	"stay-escrow/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type DisputeRepository interface {
	Create(ctx context.Context, dispute *entity.Dispute) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error)
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.Dispute, error)
	Update(ctx context.Context, dispute *entity.Dispute) error

	// FindBlocking returns the dispute (if any) that currently blocks
	// releases on the given subject of a booking.
	FindBlocking(ctx context.Context, bookingID uuid.UUID, subject entity.DisputeSubject) (*entity.Dispute, error)

	// FindExpired returns blocking disputes whose response or escalation
	// deadline has passed, for the timeout sweep.
	FindExpired(ctx context.Context, now time.Time, limit int) ([]*entity.Dispute, error)
}

type disputeRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewDisputeRepository(db database.Querier, log *zap.Logger) DisputeRepository {
	return &disputeRepository{
		db:  db,
		log: log.With(zap.String("repository", "dispute")),
	}
}

const disputeColumns = `
	id, booking_id, opened_by, subject, category, max_refund_percent,
	claimed_amount, approved_amount, responder_action, admin_decision,
	final_outcome, status, respond_by, escalate_by, resolved_at,
	created_at, updated_at
`

func scanDispute(row pgx.Row) (*entity.Dispute, error) {
	var d entity.Dispute
	err := row.Scan(
		&d.ID,
		&d.BookingID,
		&d.OpenedBy,
		&d.Subject,
		&d.Category,
		&d.MaxRefundPercent,
		&d.ClaimedAmount,
		&d.ApprovedAmount,
		&d.ResponderAction,
		&d.AdminDecision,
		&d.FinalOutcome,
		&d.Status,
		&d.RespondBy,
		&d.EscalateBy,
		&d.ResolvedAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *disputeRepository) Create(ctx context.Context, dispute *entity.Dispute) error {
	query := `
		INSERT INTO disputes (id, booking_id, opened_by, subject, category,
			max_refund_percent, claimed_amount, status, respond_by,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Exec(ctx, query,
		dispute.ID,
		dispute.BookingID,
		dispute.OpenedBy,
		dispute.Subject,
		dispute.Category,
		dispute.MaxRefundPercent,
		dispute.ClaimedAmount,
		dispute.Status,
		dispute.RespondBy,
		dispute.CreatedAt,
		dispute.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create dispute",
			zap.Error(err),
			zap.String("booking_id", dispute.BookingID.String()),
			zap.String("subject", string(dispute.Subject)),
		)
		return fmt.Errorf("create dispute for booking %s: %w", dispute.BookingID.String(), translateError(err))
	}

	return nil
}

func (r *disputeRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1`

	dispute, err := scanDispute(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find dispute by ID",
			zap.Error(err),
			zap.String("dispute_id", id.String()),
		)
		return nil, fmt.Errorf("find dispute by ID %s: %w", id.String(), err)
	}

	return dispute, nil
}

func (r *disputeRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE booking_id = $1 ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, bookingID)
	if err != nil {
		r.log.Error("Failed to find disputes by booking",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return nil, fmt.Errorf("find disputes for booking %s: %w", bookingID.String(), err)
	}
	defer rows.Close()

	var disputes []*entity.Dispute
	for rows.Next() {
		dispute, err := scanDispute(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dispute row: %w", err)
		}
		disputes = append(disputes, dispute)
	}

	return disputes, rows.Err()
}

func (r *disputeRepository) Update(ctx context.Context, dispute *entity.Dispute) error {
	query := `
		UPDATE disputes
		SET status = $2, approved_amount = $3, responder_action = $4,
		    admin_decision = $5, final_outcome = $6, escalate_by = $7,
		    resolved_at = $8, updated_at = $9
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query,
		dispute.ID,
		dispute.Status,
		dispute.ApprovedAmount,
		dispute.ResponderAction,
		dispute.AdminDecision,
		dispute.FinalOutcome,
		dispute.EscalateBy,
		dispute.ResolvedAt,
		dispute.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to update dispute",
			zap.Error(err),
			zap.String("dispute_id", dispute.ID.String()),
		)
		return fmt.Errorf("update dispute %s: %w", dispute.ID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("dispute %s not found", dispute.ID.String())
	}

	return nil
}

func (r *disputeRepository) FindBlocking(ctx context.Context, bookingID uuid.UUID, subject entity.DisputeSubject) (*entity.Dispute, error) {
	query := `
		SELECT ` + disputeColumns + `
		FROM disputes
		WHERE booking_id = $1 AND subject = $2
		  AND status IN ('open', 'awaiting_response', 'escalated')
		LIMIT 1
	`

	dispute, err := scanDispute(r.db.QueryRow(ctx, query, bookingID, subject))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find blocking dispute",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
			zap.String("subject", string(subject)),
		)
		return nil, fmt.Errorf("find blocking dispute for booking %s: %w", bookingID.String(), err)
	}

	return dispute, nil
}

func (r *disputeRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]*entity.Dispute, error) {
	query := `
		SELECT ` + disputeColumns + `
		FROM disputes
		WHERE (status IN ('open', 'awaiting_response') AND respond_by <= $1)
		   OR (status = 'escalated' AND escalate_by IS NOT NULL AND escalate_by <= $1)
		ORDER BY respond_by
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		r.log.Error("Failed to find expired disputes", zap.Error(err))
		return nil, fmt.Errorf("find expired disputes: %w", err)
	}
	defer rows.Close()

	var disputes []*entity.Dispute
	for rows.Next() {
		dispute, err := scanDispute(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dispute row: %w", err)
		}
		disputes = append(disputes, dispute)
	}

	return disputes, rows.Err()
}
