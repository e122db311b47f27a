package response

import (
	"time"

	"stay-escrow/internal/data/entity"

	"github.com/shopspring/decimal"
)

type EscrowEventResponse struct {
	ID               string          `json:"id"`
	Type             string          `json:"type"`
	Component        string          `json:"component"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	SourceParty      string          `json:"source_party"`
	DestinationParty string          `json:"destination_party"`
	Reference        string          `json:"reference"`
	ExecutedAt       time.Time       `json:"executed_at"`
}

func FromEscrowEvent(e *entity.EscrowEvent) EscrowEventResponse {
	return EscrowEventResponse{
		ID:               e.ID.String(),
		Type:             string(e.Type),
		Component:        string(e.Component),
		Amount:           e.Amount,
		Currency:         e.Currency,
		SourceParty:      string(e.SourceParty),
		DestinationParty: string(e.DestinationParty),
		Reference:        e.Reference,
		ExecutedAt:       e.ExecutedAt,
	}
}
