package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusInitiated         PaymentStatus = "initiated"
	PaymentStatusHeld              PaymentStatus = "held"
	PaymentStatusPartiallyReleased PaymentStatus = "partially_released"
	PaymentStatusSettled           PaymentStatus = "settled"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusAdminReview       PaymentStatus = "admin_review"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusInitiated: {PaymentStatusHeld, PaymentStatusFailed},
	PaymentStatusHeld: {
		PaymentStatusPartiallyReleased,
		PaymentStatusRefunded,
		PaymentStatusAdminReview,
	},
	PaymentStatusPartiallyReleased: {
		PaymentStatusSettled,
		PaymentStatusAdminReview,
	},
	PaymentStatusAdminReview: {
		PaymentStatusPartiallyReleased,
		PaymentStatusSettled,
		PaymentStatusFailed,
	},
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// FeeSnapshot is the pricing taken at capture time. It is persisted on the
// payment row so later fee-config changes never reprice a held booking.
type FeeSnapshot struct {
	ConfigVersion           int             `db:"fee_config_version"`
	BaseCommissionRate      decimal.Decimal `db:"base_commission_rate"`
	VolumeDiscount          decimal.Decimal `db:"volume_discount"`
	EffectiveCommissionRate decimal.Decimal `db:"effective_commission_rate"`
	ServiceFee              decimal.Decimal `db:"service_fee"`
	ProcessingFee           decimal.Decimal `db:"processing_fee"`
}

type Payment struct {
	Base
	BookingID      uuid.UUID       `db:"booking_id"`
	CapturedAmount decimal.Decimal `db:"captured_amount"`
	Currency       string          `db:"currency"`
	ProviderTxnID  string          `db:"provider_txn_id"`
	Status         PaymentStatus   `db:"status"`

	RoomFeeInEscrow bool `db:"room_fee_in_escrow"`
	DepositInEscrow bool `db:"deposit_in_escrow"`

	RoomFeeReleasedAt *time.Time `db:"room_fee_released_at"`
	DepositReleasedAt *time.Time `db:"deposit_released_at"`

	// Executed dispute adjustments, zero when none.
	RoomFeeRefunded  decimal.Decimal `db:"room_fee_refunded"`
	DepositDeduction decimal.Decimal `db:"deposit_deduction"`

	ReleaseAttempts int `db:"release_attempts"`

	Snapshot FeeSnapshot
}

// RoomFeeSettled reports whether the room-fee leg reached a terminal
// outcome. Deposit release is ordered strictly after this.
func (p *Payment) RoomFeeSettled() bool {
	return !p.RoomFeeInEscrow && p.RoomFeeReleasedAt != nil
}
