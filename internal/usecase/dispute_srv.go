package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stay-escrow/internal/data/entity"
	"stay-escrow/internal/data/repository"
	"stay-escrow/internal/dto/request"
	"stay-escrow/pkg/notify"
	"stay-escrow/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DisputeService runs the claim workflow. Disputes never move money
// directly; a resolution only parameterizes the next escrow call.
type DisputeService interface {
	Open(ctx context.Context, req *request.OpenDispute) (*entity.Dispute, error)
	Respond(ctx context.Context, disputeID uuid.UUID, action entity.ResponderAction) (*entity.Dispute, error)
	Decide(ctx context.Context, disputeID uuid.UUID, decision entity.AdminDecision, amount *decimal.Decimal) (*entity.Dispute, error)
	Cancel(ctx context.Context, disputeID uuid.UUID) (*entity.Dispute, error)
	Get(ctx context.Context, disputeID uuid.UUID) (*entity.Dispute, error)

	// ResolveExpired is the timeout sweep: disputes unanswered past
	// their response deadline, and escalated disputes past the maximum
	// escalation age, auto-resolve in the claimant's favor at the
	// category ceiling. Returns how many were resolved.
	ResolveExpired(ctx context.Context) (int, error)
}

type disputeService struct {
	repo     *repository.Repository
	escrow   EscrowService
	notifier notify.Notifier
	cfg      utils.EscrowConfig
	batch    int
	log      *zap.Logger
	now      func() time.Time
}

func NewDisputeService(
	repo *repository.Repository,
	escrow EscrowService,
	notifier notify.Notifier,
	cfg utils.EscrowConfig,
	batchSize int,
	log *zap.Logger,
) DisputeService {
	return &disputeService{
		repo:     repo,
		escrow:   escrow,
		notifier: notifier,
		cfg:      cfg,
		batch:    batchSize,
		log:      log.With(zap.String("service", "dispute")),
		now:      time.Now,
	}
}

func (s *disputeService) Open(ctx context.Context, req *request.OpenDispute) (*entity.Dispute, error) {
	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		return nil, fmt.Errorf("invalid booking id: %w", ErrValidation)
	}

	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", req.BookingID, ErrNotFound)
	}
	payment, err := s.repo.Payment.FindByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, fmt.Errorf("payment for booking %s: %w", req.BookingID, ErrNotFound)
	}

	subject := entity.DisputeSubject(req.Subject)
	openedBy := entity.DisputeParty(req.OpenedBy)

	// Room-fee claims come from the guest, deposit claims from the
	// operator; each party disputes the money flowing away from them.
	switch subject {
	case entity.DisputeSubjectRoomFee:
		if openedBy != entity.DisputePartyGuest {
			return nil, fmt.Errorf("room fee disputes are opened by the guest: %w", ErrValidation)
		}
	case entity.DisputeSubjectDeposit:
		if openedBy != entity.DisputePartyOperator {
			return nil, fmt.Errorf("deposit disputes are opened by the operator: %w", ErrValidation)
		}
	}

	now := s.now()
	if err := s.checkWindow(booking, payment, subject, now); err != nil {
		return nil, err
	}

	existing, err := s.repo.Dispute.FindBlocking(ctx, bookingID, subject)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("dispute %s already open on %s: %w",
			existing.ID.String(), string(subject), ErrConflict)
	}

	category, err := s.repo.FeeConfig.FindDisputeCategory(ctx, req.Category, subject)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, fmt.Errorf("dispute category %q for subject %s: %w",
			req.Category, string(subject), ErrConfiguration)
	}

	subjectAmount := s.subjectAmount(booking, subject)
	if !req.ClaimedAmount.IsPositive() || req.ClaimedAmount.GreaterThan(subjectAmount) {
		return nil, fmt.Errorf("claimed amount %s must be positive and at most %s: %w",
			req.ClaimedAmount.String(), subjectAmount.String(), ErrValidation)
	}

	dispute := &entity.Dispute{
		Base:             entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		BookingID:        bookingID,
		OpenedBy:         openedBy,
		Subject:          subject,
		Category:         category.Name,
		MaxRefundPercent: category.MaxRefundPercent,
		ClaimedAmount:    req.ClaimedAmount,
		Status:           entity.DisputeStatusOpen,
		RespondBy:        now.Add(s.cfg.DisputeResponseWindow),
	}

	err = s.repo.WithinTx(ctx, func(tx *repository.Repository) error {
		if err := tx.Dispute.Create(ctx, dispute); err != nil {
			return err
		}
		if subject == entity.DisputeSubjectRoomFee && booking.Status == entity.BookingStatusCheckedIn {
			return tx.Booking.UpdateStatus(ctx, bookingID, entity.BookingStatusDisputeOpened)
		}
		return nil
	})
	if err != nil {
		// The partial unique index on blocking disputes catches the race
		// two concurrent opens can slip past FindBlocking.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("dispute already open on %s: %w", string(subject), ErrConflict)
		}
		return nil, err
	}

	s.log.Info("Dispute opened",
		zap.String("dispute_id", dispute.ID.String()),
		zap.String("booking_id", bookingID.String()),
		zap.String("subject", string(subject)),
		zap.String("claimed", req.ClaimedAmount.String()),
	)
	s.notifier.Publish(ctx, notify.KeyDisputeOpened, map[string]any{
		"dispute_id": dispute.ID.String(),
		"booking_id": bookingID.String(),
		"subject":    string(subject),
	})

	// The responder is notified as part of opening, so the dispute moves
	// straight to awaiting a response.
	dispute.Status = entity.DisputeStatusAwaitingResponse
	dispute.UpdatedAt = now
	if err := s.repo.Dispute.Update(ctx, dispute); err != nil {
		return nil, err
	}

	return dispute, nil
}

// checkWindow verifies the relevant release is still pending and its
// deadline has not passed; a dispute can only block a pending release,
// never unwind a committed one.
func (s *disputeService) checkWindow(booking *entity.Booking, payment *entity.Payment, subject entity.DisputeSubject, now time.Time) error {
	switch subject {
	case entity.DisputeSubjectRoomFee:
		if booking.Status != entity.BookingStatusCheckedIn {
			return fmt.Errorf("booking %s is %s, room fee disputes open after check-in: %w",
				booking.ID.String(), string(booking.Status), ErrConflict)
		}
		if !payment.RoomFeeInEscrow {
			return fmt.Errorf("room fee already released: %w", ErrConflict)
		}
		if booking.RoomFeeReleaseEligibleAt == nil || !now.Before(*booking.RoomFeeReleaseEligibleAt) {
			return fmt.Errorf("room fee dispute window closed: %w", ErrConflict)
		}
	case entity.DisputeSubjectDeposit:
		if booking.Status != entity.BookingStatusCheckedOut {
			return fmt.Errorf("booking %s is %s, deposit disputes open after check-out: %w",
				booking.ID.String(), string(booking.Status), ErrConflict)
		}
		if !payment.DepositInEscrow {
			return fmt.Errorf("deposit already released: %w", ErrConflict)
		}
		if booking.DepositRefundEligibleAt == nil || !now.Before(*booking.DepositRefundEligibleAt) {
			return fmt.Errorf("deposit dispute window closed: %w", ErrConflict)
		}
	default:
		return fmt.Errorf("unknown dispute subject %q: %w", string(subject), ErrValidation)
	}
	return nil
}

func (s *disputeService) Respond(ctx context.Context, disputeID uuid.UUID, action entity.ResponderAction) (*entity.Dispute, error) {
	dispute, err := s.mustDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	if dispute.Status != entity.DisputeStatusOpen && dispute.Status != entity.DisputeStatusAwaitingResponse {
		return nil, fmt.Errorf("dispute %s is %s, not awaiting a response: %w",
			disputeID.String(), string(dispute.Status), ErrConflict)
	}

	now := s.now()
	if now.After(dispute.RespondBy) {
		return nil, fmt.Errorf("response window for dispute %s closed: %w", disputeID.String(), ErrConflict)
	}

	switch action {
	case entity.ResponderActionAccept:
		award, err := s.cappedAward(ctx, dispute, dispute.ClaimedAmount)
		if err != nil {
			return nil, err
		}
		dispute.ResponderAction = &action
		return s.resolve(ctx, dispute, award, entity.OutcomeRefundIssued)

	case entity.ResponderActionRejectEscalate:
		escalateBy := now.Add(s.cfg.DisputeEscalationWindow)
		dispute.Status = entity.DisputeStatusEscalated
		dispute.ResponderAction = &action
		dispute.EscalateBy = &escalateBy
		dispute.UpdatedAt = now
		if err := s.repo.Dispute.Update(ctx, dispute); err != nil {
			return nil, err
		}
		s.log.Info("Dispute escalated to admin review",
			zap.String("dispute_id", disputeID.String()),
		)
		return dispute, nil

	default:
		return nil, fmt.Errorf("unknown responder action %q: %w", string(action), ErrValidation)
	}
}

func (s *disputeService) Decide(ctx context.Context, disputeID uuid.UUID, decision entity.AdminDecision, amount *decimal.Decimal) (*entity.Dispute, error) {
	dispute, err := s.mustDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	if dispute.Status != entity.DisputeStatusEscalated {
		return nil, fmt.Errorf("dispute %s is %s, only escalated disputes take an admin decision: %w",
			disputeID.String(), string(dispute.Status), ErrConflict)
	}

	dispute.AdminDecision = &decision

	switch decision {
	case entity.AdminDecisionFullRefund:
		award, err := s.cappedAward(ctx, dispute, dispute.ClaimedAmount)
		if err != nil {
			return nil, err
		}
		return s.resolve(ctx, dispute, award, entity.OutcomeRefundIssued)

	case entity.AdminDecisionPartialRefund:
		if amount == nil || !amount.IsPositive() {
			return nil, fmt.Errorf("partial refund needs a positive amount: %w", ErrValidation)
		}
		requested := *amount
		if requested.GreaterThan(dispute.ClaimedAmount) {
			requested = dispute.ClaimedAmount
		}
		award, err := s.cappedAward(ctx, dispute, requested)
		if err != nil {
			return nil, err
		}
		return s.resolve(ctx, dispute, award, entity.OutcomePartialRefund)

	case entity.AdminDecisionNoRefund:
		return s.resolve(ctx, dispute, decimal.Zero, entity.OutcomeRefundDenied)

	default:
		return nil, fmt.Errorf("unknown admin decision %q: %w", string(decision), ErrValidation)
	}
}

func (s *disputeService) Cancel(ctx context.Context, disputeID uuid.UUID) (*entity.Dispute, error) {
	dispute, err := s.mustDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	if !dispute.Blocking() {
		return nil, fmt.Errorf("dispute %s is %s, cannot cancel: %w",
			disputeID.String(), string(dispute.Status), ErrConflict)
	}

	now := s.now()
	err = s.repo.WithinTx(ctx, func(tx *repository.Repository) error {
		dispute.Status = entity.DisputeStatusCancelled
		dispute.ResolvedAt = &now
		dispute.UpdatedAt = now
		if err := tx.Dispute.Update(ctx, dispute); err != nil {
			return err
		}
		return s.restoreBookingStatus(ctx, tx, dispute)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Dispute cancelled", zap.String("dispute_id", disputeID.String()))
	return dispute, nil
}

func (s *disputeService) Get(ctx context.Context, disputeID uuid.UUID) (*entity.Dispute, error) {
	return s.mustDispute(ctx, disputeID)
}

func (s *disputeService) ResolveExpired(ctx context.Context) (int, error) {
	expired, err := s.repo.Dispute.FindExpired(ctx, s.now(), s.batch)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, dispute := range expired {
		// Fallback policy: silence from the responder, or from the
		// admin after escalation, concedes the claim at the ceiling.
		award, err := s.cappedAward(ctx, dispute, dispute.ClaimedAmount)
		if err != nil {
			s.log.Error("Failed to cap expired dispute award",
				zap.Error(err),
				zap.String("dispute_id", dispute.ID.String()),
			)
			continue
		}
		if _, err := s.resolve(ctx, dispute, award, entity.OutcomeAutoAccepted); err != nil {
			s.log.Error("Failed to auto-resolve expired dispute",
				zap.Error(err),
				zap.String("dispute_id", dispute.ID.String()),
			)
			continue
		}
		resolved++
	}

	return resolved, nil
}

// resolve terminates the dispute and records the award on the payment in
// one transaction, then asks the escrow service to execute. A blocked or
// provider-failed execution is left to the sweep; the resolution stands.
func (s *disputeService) resolve(ctx context.Context, dispute *entity.Dispute, award decimal.Decimal, outcome entity.DisputeOutcome) (*entity.Dispute, error) {
	now := s.now()
	err := s.repo.WithinTx(ctx, func(tx *repository.Repository) error {
		dispute.Status = entity.DisputeStatusResolved
		dispute.ApprovedAmount = &award
		dispute.FinalOutcome = &outcome
		dispute.ResolvedAt = &now
		dispute.UpdatedAt = now
		if err := tx.Dispute.Update(ctx, dispute); err != nil {
			return err
		}

		if award.IsPositive() {
			payment, err := tx.Payment.FindByBookingID(ctx, dispute.BookingID)
			if err != nil {
				return err
			}
			if payment == nil {
				return fmt.Errorf("payment for booking %s: %w", dispute.BookingID.String(), ErrNotFound)
			}
			switch dispute.Subject {
			case entity.DisputeSubjectRoomFee:
				if award.GreaterThan(payment.RoomFeeRefunded) {
					payment.RoomFeeRefunded = award
				}
			case entity.DisputeSubjectDeposit:
				if award.GreaterThan(payment.DepositDeduction) {
					payment.DepositDeduction = award
				}
			}
			payment.UpdatedAt = now
			if err := tx.Payment.Update(ctx, payment); err != nil {
				return err
			}
		}

		return s.restoreBookingStatus(ctx, tx, dispute)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Dispute resolved",
		zap.String("dispute_id", dispute.ID.String()),
		zap.String("outcome", string(outcome)),
		zap.String("award", award.String()),
	)
	s.notifier.Publish(ctx, notify.KeyDisputeResolved, map[string]any{
		"dispute_id": dispute.ID.String(),
		"booking_id": dispute.BookingID.String(),
		"outcome":    string(outcome),
		"award":      award.String(),
	})

	// A denied claim moves no money now; the normal sweep releases at
	// the original deadline.
	if award.IsPositive() {
		s.execute(ctx, dispute, award)
	}
	return dispute, nil
}

// execute drives the escrow operation for a resolved dispute. Failures
// here are retried by the sweep and never undo the resolution.
func (s *disputeService) execute(ctx context.Context, dispute *entity.Dispute, award decimal.Decimal) {
	var err error
	switch dispute.Subject {
	case entity.DisputeSubjectRoomFee:
		err = s.escrow.ReleaseWithRefund(ctx, dispute.BookingID, award)
	case entity.DisputeSubjectDeposit:
		err = s.escrow.ExecuteDepositRelease(ctx, dispute.BookingID, award)
	}

	if err != nil && !errors.Is(err, ErrReleaseBlocked) {
		s.log.Error("Escrow execution after dispute resolution failed, sweep will retry",
			zap.Error(err),
			zap.String("dispute_id", dispute.ID.String()),
		)
	}
}

// restoreBookingStatus lifts the dispute marker once nothing blocks the
// room fee anymore.
func (s *disputeService) restoreBookingStatus(ctx context.Context, tx *repository.Repository, dispute *entity.Dispute) error {
	if dispute.Subject != entity.DisputeSubjectRoomFee {
		return nil
	}

	booking, err := tx.Booking.FindByID(ctx, dispute.BookingID)
	if err != nil {
		return err
	}
	if booking == nil || booking.Status != entity.BookingStatusDisputeOpened {
		return nil
	}
	return tx.Booking.UpdateStatus(ctx, dispute.BookingID, entity.BookingStatusCheckedIn)
}

// cappedAward applies the category ceiling: a percentage of the disputed
// subject's amount, snapshotted at open time. An unreadable booking aborts
// the resolution; an award is never returned uncapped.
func (s *disputeService) cappedAward(ctx context.Context, dispute *entity.Dispute, requested decimal.Decimal) (decimal.Decimal, error) {
	booking, err := s.repo.Booking.FindByID(ctx, dispute.BookingID)
	if err != nil {
		return decimal.Zero, err
	}
	if booking == nil {
		return decimal.Zero, fmt.Errorf("booking %s: %w", dispute.BookingID.String(), ErrNotFound)
	}

	ceiling := dispute.Ceiling(s.subjectAmount(booking, dispute.Subject))
	if requested.GreaterThan(ceiling) {
		return ceiling, nil
	}
	return requested, nil
}

func (s *disputeService) subjectAmount(booking *entity.Booking, subject entity.DisputeSubject) decimal.Decimal {
	if subject == entity.DisputeSubjectDeposit {
		return booking.SecurityDeposit
	}
	return booking.RoomFee
}

func (s *disputeService) mustDispute(ctx context.Context, disputeID uuid.UUID) (*entity.Dispute, error) {
	dispute, err := s.repo.Dispute.FindByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if dispute == nil {
		return nil, fmt.Errorf("dispute %s: %w", disputeID.String(), ErrNotFound)
	}
	return dispute, nil
}
