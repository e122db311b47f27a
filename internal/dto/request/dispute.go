package request

import "github.com/shopspring/decimal"

type OpenDispute struct {
	BookingID     string          `json:"booking_id" validate:"required,uuid"`
	OpenedBy      string          `json:"opened_by" validate:"required,oneof=guest operator"`
	Subject       string          `json:"subject" validate:"required,oneof=room_fee deposit"`
	Category      string          `json:"category" validate:"required"`
	ClaimedAmount decimal.Decimal `json:"claimed_amount" validate:"required"`
}

type RespondDispute struct {
	Action string `json:"action" validate:"required,oneof=accept reject_escalate"`
}

type DecideDispute struct {
	Decision string `json:"decision" validate:"required,oneof=full_refund partial_refund no_refund"`

	// Required for partial_refund, ignored otherwise.
	Amount *decimal.Decimal `json:"amount"`
}
