package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stay-escrow/internal/data/entity"
	"stay-escrow/internal/data/repository"
	"stay-escrow/pkg/gateway"
	"stay-escrow/pkg/notify"
	"stay-escrow/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EscrowService owns custody of booking funds from capture to final
// disbursement. All money movement goes through here; disputes and the
// scheduler only parameterize the next call.
type EscrowService interface {
	// HoldFunds is called once after a successful capture. Idempotent on
	// bookingID: a repeat with the same captured amount returns the
	// existing payment unchanged.
	HoldFunds(ctx context.Context, bookingID uuid.UUID, capturedAmount decimal.Decimal, providerTxnID string) (*entity.Payment, error)

	ScheduleRoomFeeRelease(ctx context.Context, bookingID uuid.UUID, checkInAt time.Time) error
	ScheduleDepositRelease(ctx context.Context, bookingID uuid.UUID, checkOutAt time.Time) error

	// ExecuteRoomFeeSplit releases the held room fee, minus any recorded
	// dispute refund, split by the snapshot commission rate. Safe to
	// retry; returns ErrReleaseBlocked while a room-fee dispute is open.
	ExecuteRoomFeeSplit(ctx context.Context, bookingID uuid.UUID) error

	// ReleaseWithRefund records a dispute-awarded room-fee refund and
	// then runs the split on the remainder.
	ReleaseWithRefund(ctx context.Context, bookingID uuid.UUID, refundAmount decimal.Decimal) error

	// ExecuteDepositRelease refunds deposit − deduction to the guest and
	// credits the deduction to the operator. Ordered strictly after
	// room-fee settlement. A zero deduction never clears a previously
	// recorded one.
	ExecuteDepositRelease(ctx context.Context, bookingID uuid.UUID, deduction decimal.Decimal) error

	// CancelWithRefund reverses a held payment in full, including the
	// immediate cleaning/service credits, for a paid cancellation.
	CancelWithRefund(ctx context.Context, bookingID uuid.UUID) error

	Events(ctx context.Context, bookingID uuid.UUID) ([]*entity.EscrowEvent, error)
}

type escrowService struct {
	repo     *repository.Repository
	fees     FeeService
	gateways *gateway.Registry
	notifier notify.Notifier
	cfg      utils.EscrowConfig
	log      *zap.Logger
	now      func() time.Time
}

func NewEscrowService(
	repo *repository.Repository,
	fees FeeService,
	gateways *gateway.Registry,
	notifier notify.Notifier,
	cfg utils.EscrowConfig,
	log *zap.Logger,
) EscrowService {
	return &escrowService{
		repo:     repo,
		fees:     fees,
		gateways: gateways,
		notifier: notifier,
		cfg:      cfg,
		log:      log.With(zap.String("service", "escrow")),
		now:      time.Now,
	}
}

func (s *escrowService) HoldFunds(ctx context.Context, bookingID uuid.UUID, capturedAmount decimal.Decimal, providerTxnID string) (*entity.Payment, error) {
	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID.String(), ErrNotFound)
	}

	// Idempotency: a payment already exists for this booking.
	existing, err := s.repo.Payment.FindByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !existing.CapturedAmount.Equal(capturedAmount) {
			return nil, fmt.Errorf("booking %s already captured %s, got %s: %w",
				bookingID.String(), existing.CapturedAmount.String(), capturedAmount.String(), ErrConflict)
		}
		s.log.Info("Hold funds replayed, returning existing payment",
			zap.String("booking_id", bookingID.String()),
		)
		return existing, nil
	}

	if !booking.Status.CanTransitionTo(entity.BookingStatusPaid) {
		return nil, fmt.Errorf("booking %s is %s, cannot hold funds: %w",
			bookingID.String(), string(booking.Status), ErrConflict)
	}

	if !booking.TotalAmount().Equal(capturedAmount) {
		return nil, fmt.Errorf("fee breakdown sums to %s but captured %s: %w",
			booking.TotalAmount().String(), capturedAmount.String(), ErrValidation)
	}

	snapshot, err := s.snapshotFees(ctx, booking)
	if err != nil {
		return nil, err
	}

	now := s.now()
	payment := &entity.Payment{
		Base:            entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		BookingID:       booking.ID,
		CapturedAmount:  capturedAmount,
		Currency:        booking.Currency,
		ProviderTxnID:   providerTxnID,
		Status:          entity.PaymentStatusHeld,
		RoomFeeInEscrow: true,
		DepositInEscrow: true,
		Snapshot:        *snapshot,
	}

	err = s.repo.WithinTx(ctx, func(tx *repository.Repository) error {
		if err := tx.Payment.Create(ctx, payment); err != nil {
			return err
		}

		// Hold events for the delayed components.
		if err := s.appendEvent(ctx, tx, booking, payment, entity.EscrowEventHold,
			entity.ComponentRoomFee, booking.RoomFee,
			entity.PartyGuest, entity.PartyEscrow, "room-fee-hold", now); err != nil {
			return err
		}
		if err := s.appendEvent(ctx, tx, booking, payment, entity.EscrowEventHold,
			entity.ComponentDeposit, booking.SecurityDeposit,
			entity.PartyGuest, entity.PartyEscrow, "deposit-hold", now); err != nil {
			return err
		}

		// Immediate payouts: cleaning fee to operator, service and
		// platform fees to platform.
		if booking.CleaningFee.IsPositive() {
			if err := s.appendEvent(ctx, tx, booking, payment, entity.EscrowEventReleaseSplit,
				entity.ComponentCleaningFee, booking.CleaningFee,
				entity.PartyEscrow, entity.PartyOperator, "cleaning-fee", now); err != nil {
				return err
			}
			if err := tx.Wallet.Credit(ctx, booking.OperatorID, entity.WalletOwnerOperator,
				booking.Currency, booking.CleaningFee,
				utils.GenerateTransferReference(booking.Reference, "cleaning-fee"),
				"Cleaning fee", &booking.ID); err != nil {
				return err
			}
		}
		if booking.ServiceFee.IsPositive() {
			if err := s.appendEvent(ctx, tx, booking, payment, entity.EscrowEventReleaseSplit,
				entity.ComponentServiceFee, booking.ServiceFee,
				entity.PartyEscrow, entity.PartyPlatform, "service-fee", now); err != nil {
				return err
			}
			if err := tx.Wallet.Credit(ctx, platformWalletOwner, entity.WalletOwnerPlatform,
				booking.Currency, booking.ServiceFee,
				utils.GenerateTransferReference(booking.Reference, "service-fee"),
				"Service fee", &booking.ID); err != nil {
				return err
			}
		}
		if booking.PlatformFee.IsPositive() {
			if err := s.appendEvent(ctx, tx, booking, payment, entity.EscrowEventReleaseSplit,
				entity.ComponentPlatformFee, booking.PlatformFee,
				entity.PartyEscrow, entity.PartyPlatform, "platform-fee", now); err != nil {
				return err
			}
			if err := tx.Wallet.Credit(ctx, platformWalletOwner, entity.WalletOwnerPlatform,
				booking.Currency, booking.PlatformFee,
				utils.GenerateTransferReference(booking.Reference, "platform-fee"),
				"Platform booking fee", &booking.ID); err != nil {
				return err
			}
		}

		return tx.Booking.UpdateStatus(ctx, booking.ID, entity.BookingStatusPaid)
	})
	if err != nil {
		// UNIQUE(booking_id) on payments catches a concurrent hold that
		// slipped past the existence check.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("payment for booking %s already recorded: %w", bookingID.String(), ErrConflict)
		}
		return nil, err
	}

	s.log.Info("Funds held",
		zap.String("booking_id", booking.ID.String()),
		zap.String("captured", capturedAmount.String()),
	)
	s.notifier.Publish(ctx, notify.KeyBookingPaid, map[string]any{
		"booking_id": booking.ID.String(),
		"reference":  booking.Reference,
		"amount":     capturedAmount.String(),
		"currency":   booking.Currency,
	})

	return payment, nil
}

// snapshotFees prices the booking against the config version it was
// created with, so later config changes never reprice it.
func (s *escrowService) snapshotFees(ctx context.Context, booking *entity.Booking) (*entity.FeeSnapshot, error) {
	cfg, err := s.repo.FeeConfig.GetByVersion(ctx, booking.FeeConfigVersion)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("fee config version %d: %w", booking.FeeConfigVersion, ErrConfiguration)
	}

	volume, err := s.repo.Booking.SumOperatorRoomFeeVolume(ctx, booking.OperatorID, s.now().AddDate(0, -1, 0))
	if err != nil {
		return nil, err
	}

	quote, err := s.fees.Quote(QuoteInput{
		RoomFee:               booking.RoomFee,
		CleaningFee:           booking.CleaningFee,
		SecurityDeposit:       booking.SecurityDeposit,
		TrailingMonthlyVolume: volume,
		Mode:                  booking.PaymentMode,
	}, cfg)
	if err != nil {
		return nil, err
	}

	return &entity.FeeSnapshot{
		ConfigVersion:           quote.ConfigVersion,
		BaseCommissionRate:      quote.BaseCommissionRate,
		VolumeDiscount:          quote.VolumeDiscount,
		EffectiveCommissionRate: quote.EffectiveCommissionRate,
		ServiceFee:              quote.ServiceFee,
		ProcessingFee:           quote.ProcessingFee,
	}, nil
}

func (s *escrowService) ScheduleRoomFeeRelease(ctx context.Context, bookingID uuid.UUID, checkInAt time.Time) error {
	booking, err := s.mustBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	eligibleAt := checkInAt.Add(s.cfg.RoomFeeReleaseOffset)
	booking.RoomFeeReleaseEligibleAt = &eligibleAt
	booking.UpdatedAt = s.now()
	return s.repo.Booking.Update(ctx, booking)
}

func (s *escrowService) ScheduleDepositRelease(ctx context.Context, bookingID uuid.UUID, checkOutAt time.Time) error {
	booking, err := s.mustBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	eligibleAt := checkOutAt.Add(s.cfg.DepositReleaseOffset)
	booking.DepositRefundEligibleAt = &eligibleAt
	booking.UpdatedAt = s.now()
	return s.repo.Booking.Update(ctx, booking)
}

func (s *escrowService) ExecuteRoomFeeSplit(ctx context.Context, bookingID uuid.UUID) error {
	booking, payment, err := s.mustBookingPayment(ctx, bookingID)
	if err != nil {
		return err
	}

	if !payment.RoomFeeInEscrow {
		// Already released; replay is a no-op.
		return nil
	}
	if payment.Status != entity.PaymentStatusHeld {
		return fmt.Errorf("payment %s is %s, room fee split needs held: %w",
			payment.ID.String(), string(payment.Status), ErrConflict)
	}

	blocking, err := s.repo.Dispute.FindBlocking(ctx, bookingID, entity.DisputeSubjectRoomFee)
	if err != nil {
		return err
	}
	if blocking != nil {
		s.log.Info("Room fee release blocked by dispute",
			zap.String("booking_id", bookingID.String()),
			zap.String("dispute_id", blocking.ID.String()),
		)
		return fmt.Errorf("room fee dispute %s open: %w", blocking.ID.String(), ErrReleaseBlocked)
	}

	// Any dispute-awarded refund is recorded on the payment before the
	// split runs. Compare against executed refund events so a resumed
	// sweep never refunds twice.
	if payment.RoomFeeRefunded.IsPositive() {
		executed, err := s.repo.EscrowEvent.SumByPaymentAndTypes(ctx, payment.ID,
			entity.ComponentRoomFee, []entity.EscrowEventType{entity.EscrowEventRefund})
		if err != nil {
			return err
		}
		pending := payment.RoomFeeRefunded.Sub(executed)
		if pending.IsPositive() {
			if err := s.refundGuest(ctx, booking, payment, entity.ComponentRoomFee, pending, "room-fee-refund"); err != nil {
				return err
			}
		}
	}

	releasable := booking.RoomFee.Sub(payment.RoomFeeRefunded)
	operatorShare := releasable.Mul(decimalOne.Sub(payment.Snapshot.EffectiveCommissionRate)).RoundBank(2)
	platformShare := releasable.Sub(operatorShare)

	if operatorShare.IsPositive() {
		if err := s.transferToOperator(ctx, booking, payment, operatorShare, "room-fee-payout"); err != nil {
			return err
		}
	}

	now := s.now()
	err = s.repo.WithinTx(ctx, func(tx *repository.Repository) error {
		if operatorShare.IsPositive() {
			if err := s.appendEvent(ctx, tx, booking, payment, entity.EscrowEventReleaseSplit,
				entity.ComponentRoomFee, operatorShare,
				entity.PartyEscrow, entity.PartyOperator, "room-fee-operator", now); err != nil {
				return err
			}
			if err := tx.Wallet.Credit(ctx, booking.OperatorID, entity.WalletOwnerOperator,
				booking.Currency, operatorShare,
				utils.GenerateTransferReference(booking.Reference, "room-fee-operator"),
				"Room fee payout", &booking.ID); err != nil {
				return err
			}
		}
		if platformShare.IsPositive() {
			if err := s.appendEvent(ctx, tx, booking, payment, entity.EscrowEventReleaseSplit,
				entity.ComponentRoomFee, platformShare,
				entity.PartyEscrow, entity.PartyPlatform, "room-fee-platform", now); err != nil {
				return err
			}
			if err := tx.Wallet.Credit(ctx, platformWalletOwner, entity.WalletOwnerPlatform,
				booking.Currency, platformShare,
				utils.GenerateTransferReference(booking.Reference, "room-fee-platform"),
				"Room fee commission", &booking.ID); err != nil {
				return err
			}
		}

		payment.RoomFeeInEscrow = false
		payment.RoomFeeReleasedAt = &now
		payment.Status = entity.PaymentStatusPartiallyReleased
		payment.UpdatedAt = now
		return tx.Payment.Update(ctx, payment)
	})
	if err != nil {
		return err
	}

	s.log.Info("Room fee split executed",
		zap.String("booking_id", booking.ID.String()),
		zap.String("operator_share", operatorShare.String()),
		zap.String("platform_share", platformShare.String()),
	)
	s.notifier.Publish(ctx, notify.KeyPayoutCompleted, map[string]any{
		"booking_id":     booking.ID.String(),
		"component":      string(entity.ComponentRoomFee),
		"operator_share": operatorShare.String(),
		"platform_share": platformShare.String(),
	})

	return nil
}

func (s *escrowService) ReleaseWithRefund(ctx context.Context, bookingID uuid.UUID, refundAmount decimal.Decimal) error {
	booking, payment, err := s.mustBookingPayment(ctx, bookingID)
	if err != nil {
		return err
	}

	if !payment.RoomFeeInEscrow {
		return fmt.Errorf("room fee for booking %s already released: %w", bookingID.String(), ErrConflict)
	}
	if refundAmount.IsNegative() || refundAmount.GreaterThan(booking.RoomFee) {
		return fmt.Errorf("refund %s exceeds held room fee %s: %w",
			refundAmount.String(), booking.RoomFee.String(), ErrValidation)
	}

	if refundAmount.GreaterThan(payment.RoomFeeRefunded) {
		payment.RoomFeeRefunded = refundAmount
		payment.UpdatedAt = s.now()
		if err := s.repo.Payment.Update(ctx, payment); err != nil {
			return err
		}
	}

	return s.ExecuteRoomFeeSplit(ctx, bookingID)
}

func (s *escrowService) ExecuteDepositRelease(ctx context.Context, bookingID uuid.UUID, deduction decimal.Decimal) error {
	booking, payment, err := s.mustBookingPayment(ctx, bookingID)
	if err != nil {
		return err
	}

	if !payment.DepositInEscrow {
		return nil
	}
	if !payment.RoomFeeSettled() {
		return fmt.Errorf("room fee for booking %s not settled: %w", bookingID.String(), ErrReleaseBlocked)
	}

	blocking, err := s.repo.Dispute.FindBlocking(ctx, bookingID, entity.DisputeSubjectDeposit)
	if err != nil {
		return err
	}
	if blocking != nil {
		return fmt.Errorf("deposit dispute %s open: %w", blocking.ID.String(), ErrReleaseBlocked)
	}

	if deduction.IsNegative() || deduction.GreaterThan(booking.SecurityDeposit) {
		return fmt.Errorf("deduction %s exceeds deposit %s: %w",
			deduction.String(), booking.SecurityDeposit.String(), ErrValidation)
	}
	// A sweep retry passes zero; keep the dispute-recorded deduction.
	if payment.DepositDeduction.GreaterThan(deduction) {
		deduction = payment.DepositDeduction
	}

	// Compare against executed refund events so a retry after a crash
	// between the refund and the settle never refunds the guest twice.
	refund := booking.SecurityDeposit.Sub(deduction)
	if refund.IsPositive() {
		executed, err := s.repo.EscrowEvent.SumByPaymentAndTypes(ctx, payment.ID,
			entity.ComponentDeposit, []entity.EscrowEventType{entity.EscrowEventRefund})
		if err != nil {
			return err
		}
		pending := refund.Sub(executed)
		if pending.IsPositive() {
			if err := s.refundGuest(ctx, booking, payment, entity.ComponentDeposit, pending, "deposit-refund"); err != nil {
				return err
			}
		}
	}

	now := s.now()
	err = s.repo.WithinTx(ctx, func(tx *repository.Repository) error {
		if deduction.IsPositive() {
			if err := s.appendEvent(ctx, tx, booking, payment, entity.EscrowEventDeduction,
				entity.ComponentDeposit, deduction,
				entity.PartyEscrow, entity.PartyOperator, "deposit-deduction", now); err != nil {
				return err
			}
			if err := tx.Wallet.Credit(ctx, booking.OperatorID, entity.WalletOwnerOperator,
				booking.Currency, deduction,
				utils.GenerateTransferReference(booking.Reference, "deposit-deduction"),
				"Deposit deduction", &booking.ID); err != nil {
				return err
			}
		}

		payment.DepositInEscrow = false
		payment.DepositReleasedAt = &now
		payment.DepositDeduction = deduction
		payment.Status = entity.PaymentStatusSettled
		payment.UpdatedAt = now
		if err := tx.Payment.Update(ctx, payment); err != nil {
			return err
		}

		if booking.Status == entity.BookingStatusCheckedOut {
			return tx.Booking.UpdateStatus(ctx, booking.ID, entity.BookingStatusCompleted)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("Deposit released",
		zap.String("booking_id", booking.ID.String()),
		zap.String("refund", refund.String()),
		zap.String("deduction", deduction.String()),
	)
	s.notifier.Publish(ctx, notify.KeyDepositRefunded, map[string]any{
		"booking_id": booking.ID.String(),
		"refund":     refund.String(),
		"deduction":  deduction.String(),
	})

	return nil
}

func (s *escrowService) CancelWithRefund(ctx context.Context, bookingID uuid.UUID) error {
	booking, payment, err := s.mustBookingPayment(ctx, bookingID)
	if err != nil {
		return err
	}

	if payment.Status != entity.PaymentStatusHeld || !payment.RoomFeeInEscrow || !payment.DepositInEscrow {
		return fmt.Errorf("payment %s is %s, cannot reverse: %w",
			payment.ID.String(), string(payment.Status), ErrConflict)
	}

	reference := utils.GenerateTransferReference(booking.Reference, "cancellation-refund")
	gw, err := s.gateways.Get(booking.Provider)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrConfiguration)
	}
	dest := gateway.Destination{Kind: "refund", AccountRef: booking.GuestID.String()}
	if _, err := gw.Transfer(ctx, dest, payment.CapturedAmount, booking.Currency, reference); err != nil {
		return s.recordTransferFailure(ctx, booking, payment, entity.ComponentRoomFee,
			payment.CapturedAmount, reference, err)
	}

	now := s.now()
	return s.repo.WithinTx(ctx, func(tx *repository.Repository) error {
		// One refund event per component so replaying the log still
		// reconciles to zero for every party.
		components := []struct {
			component entity.EscrowComponent
			amount    decimal.Decimal
			leg       string
		}{
			{entity.ComponentRoomFee, booking.RoomFee, "room-fee-reversal"},
			{entity.ComponentCleaningFee, booking.CleaningFee, "cleaning-reversal"},
			{entity.ComponentServiceFee, booking.ServiceFee, "service-reversal"},
			{entity.ComponentPlatformFee, booking.PlatformFee, "platform-reversal"},
			{entity.ComponentDeposit, booking.SecurityDeposit, "deposit-reversal"},
		}
		for _, c := range components {
			if !c.amount.IsPositive() {
				continue
			}
			if err := s.appendEvent(ctx, tx, booking, payment, entity.EscrowEventRefund,
				c.component, c.amount, entity.PartyEscrow, entity.PartyGuest, c.leg, now); err != nil {
				return err
			}
		}

		// Reverse the immediate credits from holdFunds.
		if booking.CleaningFee.IsPositive() {
			if err := tx.Wallet.Debit(ctx, booking.OperatorID, entity.WalletOwnerOperator,
				booking.Currency, booking.CleaningFee,
				utils.GenerateTransferReference(booking.Reference, "cleaning-fee-reversal"),
				"Cleaning fee reversal on cancellation", &booking.ID); err != nil {
				return err
			}
		}
		platformReversal := booking.ServiceFee.Add(booking.PlatformFee)
		if platformReversal.IsPositive() {
			if err := tx.Wallet.Debit(ctx, platformWalletOwner, entity.WalletOwnerPlatform,
				booking.Currency, platformReversal,
				utils.GenerateTransferReference(booking.Reference, "platform-fee-reversal"),
				"Fee reversal on cancellation", &booking.ID); err != nil {
				return err
			}
		}

		payment.RoomFeeInEscrow = false
		payment.DepositInEscrow = false
		payment.Status = entity.PaymentStatusRefunded
		payment.UpdatedAt = now
		return tx.Payment.Update(ctx, payment)
	})
}

func (s *escrowService) Events(ctx context.Context, bookingID uuid.UUID) ([]*entity.EscrowEvent, error) {
	if _, err := s.mustBooking(ctx, bookingID); err != nil {
		return nil, err
	}
	return s.repo.EscrowEvent.FindByBookingID(ctx, bookingID)
}

// refundGuest executes a provider transfer back to the guest and records
// the refund event. Transfer failures are counted against the retry
// budget; exhausting it parks the payment in admin review.
func (s *escrowService) refundGuest(ctx context.Context, booking *entity.Booking, payment *entity.Payment, component entity.EscrowComponent, amount decimal.Decimal, leg string) error {
	reference := utils.GenerateTransferReference(booking.Reference, leg)
	gw, err := s.gateways.Get(booking.Provider)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrConfiguration)
	}

	dest := gateway.Destination{Kind: "refund", AccountRef: booking.GuestID.String()}
	if _, err := gw.Transfer(ctx, dest, amount, booking.Currency, reference); err != nil {
		return s.recordTransferFailure(ctx, booking, payment, component, amount, reference, err)
	}

	now := s.now()
	return s.repo.WithinTx(ctx, func(tx *repository.Repository) error {
		return s.appendEvent(ctx, tx, booking, payment, entity.EscrowEventRefund,
			component, amount, entity.PartyEscrow, entity.PartyGuest, leg, now)
	})
}

// transferToOperator moves the operator's share out through the provider.
func (s *escrowService) transferToOperator(ctx context.Context, booking *entity.Booking, payment *entity.Payment, amount decimal.Decimal, leg string) error {
	reference := utils.GenerateTransferReference(booking.Reference, leg)
	gw, err := s.gateways.Get(booking.Provider)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrConfiguration)
	}

	dest := gateway.Destination{Kind: "payout", AccountRef: booking.OperatorID.String()}
	if _, err := gw.Transfer(ctx, dest, amount, booking.Currency, reference); err != nil {
		return s.recordTransferFailure(ctx, booking, payment, entity.ComponentRoomFee, amount, reference, err)
	}
	return nil
}

// recordTransferFailure never silently drops funds: the failure is logged
// as an event, the attempt counted, and the payment escalated to manual
// review once the budget runs out.
func (s *escrowService) recordTransferFailure(ctx context.Context, booking *entity.Booking, payment *entity.Payment, component entity.EscrowComponent, amount decimal.Decimal, reference string, cause error) error {
	now := s.now()
	txErr := s.repo.WithinTx(ctx, func(tx *repository.Repository) error {
		event := &entity.EscrowEvent{
			BaseSimple:       entity.BaseSimple{ID: uuid.New(), CreatedAt: now},
			BookingID:        booking.ID,
			PaymentID:        payment.ID,
			Type:             entity.EscrowEventTransferFailed,
			Component:        component,
			Amount:           amount,
			Currency:         booking.Currency,
			SourceParty:      entity.PartyEscrow,
			DestinationParty: entity.PartyEscrow,
			Reference:        fmt.Sprintf("%s-attempt-%d", reference, payment.ReleaseAttempts+1),
			ExecutedAt:       now,
		}
		if err := tx.EscrowEvent.Create(ctx, event); err != nil {
			return err
		}

		payment.ReleaseAttempts++
		payment.UpdatedAt = now
		if payment.ReleaseAttempts >= s.cfg.MaxReleaseAttempts {
			payment.Status = entity.PaymentStatusAdminReview
		}
		return tx.Payment.Update(ctx, payment)
	})
	if txErr != nil {
		return txErr
	}

	s.log.Error("Provider transfer failed",
		zap.Error(cause),
		zap.String("booking_id", booking.ID.String()),
		zap.String("reference", reference),
		zap.Int("attempts", payment.ReleaseAttempts),
	)
	s.notifier.Publish(ctx, notify.KeyPayoutFailed, map[string]any{
		"booking_id": booking.ID.String(),
		"reference":  reference,
		"attempts":   payment.ReleaseAttempts,
	})

	return fmt.Errorf("transfer %s: %v: %w", reference, cause, ErrProvider)
}

func (s *escrowService) appendEvent(ctx context.Context, tx *repository.Repository, booking *entity.Booking, payment *entity.Payment, eventType entity.EscrowEventType, component entity.EscrowComponent, amount decimal.Decimal, from, to entity.EscrowParty, leg string, at time.Time) error {
	return tx.EscrowEvent.Create(ctx, &entity.EscrowEvent{
		BaseSimple:       entity.BaseSimple{ID: uuid.New(), CreatedAt: at},
		BookingID:        booking.ID,
		PaymentID:        payment.ID,
		Type:             eventType,
		Component:        component,
		Amount:           amount,
		Currency:         booking.Currency,
		SourceParty:      from,
		DestinationParty: to,
		Reference:        utils.GenerateTransferReference(booking.Reference, leg),
		ExecutedAt:       at,
	})
}

func (s *escrowService) mustBooking(ctx context.Context, bookingID uuid.UUID) (*entity.Booking, error) {
	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID.String(), ErrNotFound)
	}
	return booking, nil
}

func (s *escrowService) mustBookingPayment(ctx context.Context, bookingID uuid.UUID) (*entity.Booking, *entity.Payment, error) {
	booking, err := s.mustBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	payment, err := s.repo.Payment.FindByBookingID(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if payment == nil {
		return nil, nil, fmt.Errorf("payment for booking %s: %w", bookingID.String(), ErrNotFound)
	}
	return booking, payment, nil
}

// platformWalletOwner is the fixed owner id of the single platform wallet.
var platformWalletOwner = uuid.MustParse("00000000-0000-0000-0000-000000000001")
