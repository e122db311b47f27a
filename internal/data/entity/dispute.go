package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DisputeSubject string

const (
	DisputeSubjectRoomFee DisputeSubject = "room_fee"
	DisputeSubjectDeposit DisputeSubject = "deposit"
)

type DisputeStatus string

const (
	DisputeStatusOpen             DisputeStatus = "open"
	DisputeStatusAwaitingResponse DisputeStatus = "awaiting_response"
	DisputeStatusEscalated        DisputeStatus = "escalated"
	DisputeStatusResolved         DisputeStatus = "resolved"
	DisputeStatusCancelled        DisputeStatus = "cancelled"
)

var disputeTransitions = map[DisputeStatus][]DisputeStatus{
	DisputeStatusOpen: {
		DisputeStatusAwaitingResponse,
		DisputeStatusEscalated,
		DisputeStatusResolved,
		DisputeStatusCancelled,
	},
	DisputeStatusAwaitingResponse: {
		DisputeStatusEscalated,
		DisputeStatusResolved,
		DisputeStatusCancelled,
	},
	DisputeStatusEscalated: {
		DisputeStatusResolved,
		DisputeStatusCancelled,
	},
}

func (s DisputeStatus) CanTransitionTo(next DisputeStatus) bool {
	for _, allowed := range disputeTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type DisputeParty string

const (
	DisputePartyGuest    DisputeParty = "guest"
	DisputePartyOperator DisputeParty = "operator"
)

type ResponderAction string

const (
	ResponderActionAccept         ResponderAction = "accept"
	ResponderActionRejectEscalate ResponderAction = "reject_escalate"
)

type AdminDecision string

const (
	AdminDecisionFullRefund    AdminDecision = "full_refund"
	AdminDecisionPartialRefund AdminDecision = "partial_refund"
	AdminDecisionNoRefund      AdminDecision = "no_refund"
)

type DisputeOutcome string

const (
	OutcomeRefundIssued  DisputeOutcome = "refund_issued"
	OutcomePartialRefund DisputeOutcome = "partial_refund"
	OutcomeRefundDenied  DisputeOutcome = "refund_denied"
	OutcomeAutoAccepted  DisputeOutcome = "auto_accepted"
)

type Dispute struct {
	Base
	BookingID uuid.UUID      `db:"booking_id"`
	OpenedBy  DisputeParty   `db:"opened_by"`
	Subject   DisputeSubject `db:"subject"`
	Category  string         `db:"category"`

	// Ceiling snapshot from the category config at open time.
	MaxRefundPercent decimal.Decimal `db:"max_refund_percent"`

	ClaimedAmount  decimal.Decimal  `db:"claimed_amount"`
	ApprovedAmount *decimal.Decimal `db:"approved_amount"`

	ResponderAction *ResponderAction `db:"responder_action"`
	AdminDecision   *AdminDecision   `db:"admin_decision"`
	FinalOutcome    *DisputeOutcome  `db:"final_outcome"`

	Status     DisputeStatus `db:"status"`
	RespondBy  time.Time     `db:"respond_by"`
	EscalateBy *time.Time    `db:"escalate_by"`
	ResolvedAt *time.Time    `db:"resolved_at"`
}

// Blocking reports whether this dispute still blocks releases on its
// subject. Resolved and cancelled disputes never block.
func (d *Dispute) Blocking() bool {
	switch d.Status {
	case DisputeStatusOpen, DisputeStatusAwaitingResponse, DisputeStatusEscalated:
		return true
	}
	return false
}

// Ceiling is the maximum amount any outcome may award: the category's
// configured percentage of the claimed subject's amount.
func (d *Dispute) Ceiling(subjectAmount decimal.Decimal) decimal.Decimal {
	return subjectAmount.Mul(d.MaxRefundPercent).RoundBank(2)
}
