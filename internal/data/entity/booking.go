package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending       BookingStatus = "pending"
	BookingStatusPaid          BookingStatus = "paid"
	BookingStatusCheckedIn     BookingStatus = "checked_in"
	BookingStatusDisputeOpened BookingStatus = "dispute_opened"
	BookingStatusCheckedOut    BookingStatus = "checked_out"
	BookingStatusCompleted     BookingStatus = "completed"
	BookingStatusCancelled     BookingStatus = "cancelled"
)

// bookingTransitions captures the allowed lifecycle edges. CANCELLED is
// reachable only before funds start moving on timers.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:       {BookingStatusPaid, BookingStatusCancelled},
	BookingStatusPaid:          {BookingStatusCheckedIn, BookingStatusCancelled},
	BookingStatusCheckedIn:     {BookingStatusDisputeOpened, BookingStatusCheckedOut},
	BookingStatusDisputeOpened: {BookingStatusCheckedIn, BookingStatusCheckedOut},
	BookingStatusCheckedOut:    {BookingStatusCompleted},
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentMode string

const (
	PaymentModeLocal         PaymentMode = "local"
	PaymentModeInternational PaymentMode = "international"
)

type Booking struct {
	Base
	Reference  string    `db:"reference"`
	GuestID    uuid.UUID `db:"guest_id"`
	PropertyID uuid.UUID `db:"property_id"`
	OperatorID uuid.UUID `db:"operator_id"`

	Provider    string      `db:"provider"`
	PaymentMode PaymentMode `db:"payment_mode"`
	Currency    string      `db:"currency"`

	CheckInDate  time.Time `db:"check_in_date"`
	CheckOutDate time.Time `db:"check_out_date"`

	RoomFee         decimal.Decimal `db:"room_fee"`
	CleaningFee     decimal.Decimal `db:"cleaning_fee"`
	ServiceFee      decimal.Decimal `db:"service_fee"`
	PlatformFee     decimal.Decimal `db:"platform_fee"`
	SecurityDeposit decimal.Decimal `db:"security_deposit"`

	Status           BookingStatus `db:"status"`
	FeeConfigVersion int           `db:"fee_config_version"`

	ActualCheckInAt  *time.Time `db:"actual_check_in_at"`
	ActualCheckOutAt *time.Time `db:"actual_check_out_at"`

	RoomFeeReleaseEligibleAt *time.Time `db:"room_fee_release_eligible_at"`
	DepositRefundEligibleAt  *time.Time `db:"deposit_refund_eligible_at"`
}

// TotalAmount is the amount that must be captured from the guest.
// roomFee + cleaningFee + serviceFee + platformFee + securityDeposit.
func (b *Booking) TotalAmount() decimal.Decimal {
	return b.RoomFee.
		Add(b.CleaningFee).
		Add(b.ServiceFee).
		Add(b.PlatformFee).
		Add(b.SecurityDeposit)
}
