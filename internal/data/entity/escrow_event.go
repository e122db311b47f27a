package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EscrowEventType string

const (
	EscrowEventHold           EscrowEventType = "hold"
	EscrowEventReleaseSplit   EscrowEventType = "release_split"
	EscrowEventRefund         EscrowEventType = "refund"
	EscrowEventDeduction      EscrowEventType = "deposit_deduction"
	EscrowEventTransferFailed EscrowEventType = "transfer_failed"
)

type EscrowParty string

const (
	PartyGuest    EscrowParty = "guest"
	PartyOperator EscrowParty = "operator"
	PartyPlatform EscrowParty = "platform"
	PartyEscrow   EscrowParty = "escrow"
)

type EscrowComponent string

const (
	ComponentRoomFee     EscrowComponent = "room_fee"
	ComponentCleaningFee EscrowComponent = "cleaning_fee"
	ComponentServiceFee  EscrowComponent = "service_fee"
	ComponentPlatformFee EscrowComponent = "platform_fee"
	ComponentDeposit     EscrowComponent = "deposit"
)

// EscrowEvent is one immutable money-movement record. Rows are append-only;
// the escrow state of a booking is a fold over its events.
type EscrowEvent struct {
	BaseSimple
	BookingID uuid.UUID `db:"booking_id"`
	PaymentID uuid.UUID `db:"payment_id"`

	Type      EscrowEventType `db:"type"`
	Component EscrowComponent `db:"component"`

	Amount   decimal.Decimal `db:"amount"`
	Currency string          `db:"currency"`

	SourceParty      EscrowParty `db:"source_party"`
	DestinationParty EscrowParty `db:"destination_party"`

	// Idempotency/transaction reference for the movement.
	Reference  string    `db:"reference"`
	ExecutedAt time.Time `db:"executed_at"`
}
