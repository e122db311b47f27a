package usecase

import (
	"context"
	"fmt"
	"time"

	"stay-escrow/internal/data/entity"
	"stay-escrow/internal/data/repository"
	"stay-escrow/internal/dto/request"
	"stay-escrow/pkg/gateway"
	"stay-escrow/pkg/notify"
	"stay-escrow/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BookingService drives the booking lifecycle. It never moves money
// itself; funds custody is delegated to the escrow service.
type BookingService interface {
	Create(ctx context.Context, req *request.CreateBooking) (*entity.Booking, error)
	Capture(ctx context.Context, bookingID uuid.UUID, providerReference string) (*entity.Payment, error)
	CheckIn(ctx context.Context, bookingID uuid.UUID) (*entity.Booking, error)
	CheckOut(ctx context.Context, bookingID uuid.UUID) (*entity.Booking, error)
	Cancel(ctx context.Context, bookingID uuid.UUID) (*entity.Booking, error)
	Get(ctx context.Context, bookingID uuid.UUID) (*entity.Booking, *entity.Payment, error)
	Events(ctx context.Context, bookingID uuid.UUID) ([]*entity.EscrowEvent, error)

	// AutoCheckIn is the sweep fallback for guests who never confirmed.
	AutoCheckIn(ctx context.Context, bookingID uuid.UUID) error
}

type bookingService struct {
	repo     *repository.Repository
	fees     FeeService
	escrow   EscrowService
	gateways *gateway.Registry
	notifier notify.Notifier
	cfg      utils.Config
	log      *zap.Logger
	now      func() time.Time
}

func NewBookingService(
	repo *repository.Repository,
	fees FeeService,
	escrow EscrowService,
	gateways *gateway.Registry,
	notifier notify.Notifier,
	cfg utils.Config,
	log *zap.Logger,
) BookingService {
	return &bookingService{
		repo:     repo,
		fees:     fees,
		escrow:   escrow,
		gateways: gateways,
		notifier: notifier,
		cfg:      cfg,
		log:      log.With(zap.String("service", "booking")),
		now:      time.Now,
	}
}

const dateLayout = "2006-01-02"

func (s *bookingService) Create(ctx context.Context, req *request.CreateBooking) (*entity.Booking, error) {
	checkIn, err := time.Parse(dateLayout, req.CheckInDate)
	if err != nil {
		return nil, fmt.Errorf("invalid check-in date: %w", ErrValidation)
	}
	checkOut, err := time.Parse(dateLayout, req.CheckOutDate)
	if err != nil {
		return nil, fmt.Errorf("invalid check-out date: %w", ErrValidation)
	}
	if !checkOut.After(checkIn) {
		return nil, fmt.Errorf("check-out must be after check-in: %w", ErrValidation)
	}

	guestID, err := uuid.Parse(req.GuestID)
	if err != nil {
		return nil, fmt.Errorf("invalid guest id: %w", ErrValidation)
	}
	propertyID, err := uuid.Parse(req.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("invalid property id: %w", ErrValidation)
	}
	operatorID, err := uuid.Parse(req.OperatorID)
	if err != nil {
		return nil, fmt.Errorf("invalid operator id: %w", ErrValidation)
	}

	provider := req.Provider
	if provider == "" {
		provider = s.cfg.Gateway.DefaultProvider
	}

	cfg, err := s.repo.FeeConfig.GetActive(ctx, req.Currency)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("no active fee config for currency %s: %w", req.Currency, ErrConfiguration)
	}

	volume, err := s.repo.Booking.SumOperatorRoomFeeVolume(ctx, operatorID, s.now().AddDate(0, -1, 0))
	if err != nil {
		return nil, err
	}

	quote, err := s.fees.Quote(QuoteInput{
		RoomFee:               req.RoomFee,
		CleaningFee:           req.CleaningFee,
		SecurityDeposit:       req.SecurityDeposit,
		TrailingMonthlyVolume: volume,
		Mode:                  entity.PaymentMode(req.PaymentMode),
	}, cfg)
	if err != nil {
		return nil, err
	}

	now := s.now()
	booking := &entity.Booking{
		Base:             entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Reference:        utils.GenerateBookingReference(),
		GuestID:          guestID,
		PropertyID:       propertyID,
		OperatorID:       operatorID,
		Provider:         provider,
		PaymentMode:      entity.PaymentMode(req.PaymentMode),
		Currency:         req.Currency,
		CheckInDate:      checkIn,
		CheckOutDate:     checkOut,
		RoomFee:          req.RoomFee,
		CleaningFee:      req.CleaningFee,
		ServiceFee:       quote.ServiceFee,
		PlatformFee:      quote.PlatformFee,
		SecurityDeposit:  req.SecurityDeposit,
		Status:           entity.BookingStatusPending,
		FeeConfigVersion: cfg.Version,
	}

	if err := s.repo.Booking.Create(ctx, booking); err != nil {
		return nil, err
	}

	s.log.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("reference", booking.Reference),
		zap.String("total", booking.TotalAmount().String()),
	)
	s.notifier.Publish(ctx, notify.KeyBookingCreated, map[string]any{
		"booking_id": booking.ID.String(),
		"reference":  booking.Reference,
		"total":      booking.TotalAmount().String(),
	})

	return booking, nil
}

// Capture verifies the provider payment and holds the funds. Verification
// and escrow recording happen back to back; holdFunds is atomic and
// idempotent so a crash between the two is safe to replay.
func (s *bookingService) Capture(ctx context.Context, bookingID uuid.UUID, providerReference string) (*entity.Payment, error) {
	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID.String(), ErrNotFound)
	}

	gw, err := s.gateways.Get(booking.Provider)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrConfiguration)
	}

	verification, err := gw.Verify(ctx, providerReference)
	if err != nil {
		return nil, fmt.Errorf("verify %s: %v: %w", providerReference, err, ErrProvider)
	}
	if !verification.Success {
		return nil, fmt.Errorf("payment %s not successful at provider: %w", providerReference, ErrValidation)
	}
	if verification.Currency != "" && verification.Currency != booking.Currency {
		return nil, fmt.Errorf("payment currency %s does not match booking currency %s: %w",
			verification.Currency, booking.Currency, ErrValidation)
	}
	if !verification.Amount.Equal(booking.TotalAmount()) {
		return nil, fmt.Errorf("captured %s but booking totals %s: %w",
			verification.Amount.String(), booking.TotalAmount().String(), ErrValidation)
	}

	return s.escrow.HoldFunds(ctx, bookingID, verification.Amount, verification.ProviderTxnID)
}

func (s *bookingService) CheckIn(ctx context.Context, bookingID uuid.UUID) (*entity.Booking, error) {
	return s.checkIn(ctx, bookingID, false)
}

func (s *bookingService) AutoCheckIn(ctx context.Context, bookingID uuid.UUID) error {
	_, err := s.checkIn(ctx, bookingID, true)
	return err
}

func (s *bookingService) checkIn(ctx context.Context, bookingID uuid.UUID, auto bool) (*entity.Booking, error) {
	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID.String(), ErrNotFound)
	}

	if !booking.Status.CanTransitionTo(entity.BookingStatusCheckedIn) {
		return nil, fmt.Errorf("booking %s is %s, cannot check in: %w",
			bookingID.String(), string(booking.Status), ErrConflict)
	}

	now := s.now()
	booking.Status = entity.BookingStatusCheckedIn
	booking.ActualCheckInAt = &now
	booking.UpdatedAt = now
	if err := s.repo.Booking.Update(ctx, booking); err != nil {
		return nil, err
	}

	if err := s.escrow.ScheduleRoomFeeRelease(ctx, bookingID, now); err != nil {
		return nil, err
	}

	s.log.Info("Guest checked in",
		zap.String("booking_id", bookingID.String()),
		zap.Bool("auto", auto),
	)
	s.notifier.Publish(ctx, notify.KeyBookingCheckedIn, map[string]any{
		"booking_id": bookingID.String(),
		"auto":       auto,
	})

	return booking, nil
}

func (s *bookingService) CheckOut(ctx context.Context, bookingID uuid.UUID) (*entity.Booking, error) {
	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID.String(), ErrNotFound)
	}

	if !booking.Status.CanTransitionTo(entity.BookingStatusCheckedOut) {
		return nil, fmt.Errorf("booking %s is %s, cannot check out: %w",
			bookingID.String(), string(booking.Status), ErrConflict)
	}

	now := s.now()
	booking.Status = entity.BookingStatusCheckedOut
	booking.ActualCheckOutAt = &now
	booking.UpdatedAt = now
	if err := s.repo.Booking.Update(ctx, booking); err != nil {
		return nil, err
	}

	// The deposit deadline is set here, but the sweep still refuses to
	// release it until the room-fee leg has settled.
	if err := s.escrow.ScheduleDepositRelease(ctx, bookingID, now); err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, notify.KeyBookingCheckedOut, map[string]any{
		"booking_id": bookingID.String(),
	})

	return booking, nil
}

func (s *bookingService) Cancel(ctx context.Context, bookingID uuid.UUID) (*entity.Booking, error) {
	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID.String(), ErrNotFound)
	}

	if !booking.Status.CanTransitionTo(entity.BookingStatusCancelled) {
		return nil, fmt.Errorf("booking %s is %s, cannot cancel: %w",
			bookingID.String(), string(booking.Status), ErrConflict)
	}

	if booking.Status == entity.BookingStatusPaid {
		if err := s.escrow.CancelWithRefund(ctx, bookingID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Booking.UpdateStatus(ctx, bookingID, entity.BookingStatusCancelled); err != nil {
		return nil, err
	}
	booking.Status = entity.BookingStatusCancelled

	s.log.Info("Booking cancelled", zap.String("booking_id", bookingID.String()))
	s.notifier.Publish(ctx, notify.KeyBookingCancelled, map[string]any{
		"booking_id": bookingID.String(),
	})

	return booking, nil
}

func (s *bookingService) Get(ctx context.Context, bookingID uuid.UUID) (*entity.Booking, *entity.Payment, error) {
	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if booking == nil {
		return nil, nil, fmt.Errorf("booking %s: %w", bookingID.String(), ErrNotFound)
	}

	payment, err := s.repo.Payment.FindByBookingID(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}

	return booking, payment, nil
}

func (s *bookingService) Events(ctx context.Context, bookingID uuid.UUID) ([]*entity.EscrowEvent, error) {
	return s.escrow.Events(ctx, bookingID)
}
