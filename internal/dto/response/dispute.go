package response

import (
	"time"

	"stay-escrow/internal/data/entity"

	"github.com/shopspring/decimal"
)

type DisputeResponse struct {
	ID        string `json:"id"`
	BookingID string `json:"booking_id"`
	OpenedBy  string `json:"opened_by"`
	Subject   string `json:"subject"`
	Category  string `json:"category"`

	MaxRefundPercent decimal.Decimal  `json:"max_refund_percent"`
	ClaimedAmount    decimal.Decimal  `json:"claimed_amount"`
	ApprovedAmount   *decimal.Decimal `json:"approved_amount,omitempty"`

	ResponderAction *string `json:"responder_action,omitempty"`
	AdminDecision   *string `json:"admin_decision,omitempty"`
	FinalOutcome    *string `json:"final_outcome,omitempty"`

	Status     string     `json:"status"`
	RespondBy  time.Time  `json:"respond_by"`
	EscalateBy *time.Time `json:"escalate_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func FromDispute(d *entity.Dispute) *DisputeResponse {
	resp := &DisputeResponse{
		ID:               d.ID.String(),
		BookingID:        d.BookingID.String(),
		OpenedBy:         string(d.OpenedBy),
		Subject:          string(d.Subject),
		Category:         d.Category,
		MaxRefundPercent: d.MaxRefundPercent,
		ClaimedAmount:    d.ClaimedAmount,
		ApprovedAmount:   d.ApprovedAmount,
		Status:           string(d.Status),
		RespondBy:        d.RespondBy,
		EscalateBy:       d.EscalateBy,
		ResolvedAt:       d.ResolvedAt,
		CreatedAt:        d.CreatedAt,
	}

	if d.ResponderAction != nil {
		action := string(*d.ResponderAction)
		resp.ResponderAction = &action
	}
	if d.AdminDecision != nil {
		decision := string(*d.AdminDecision)
		resp.AdminDecision = &decision
	}
	if d.FinalOutcome != nil {
		outcome := string(*d.FinalOutcome)
		resp.FinalOutcome = &outcome
	}

	return resp
}
