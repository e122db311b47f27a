package response

import (
	"time"

	"stay-escrow/internal/data/entity"

	"github.com/shopspring/decimal"
)

type WalletResponse struct {
	ID               string          `json:"id"`
	OwnerID          string          `json:"owner_id"`
	OwnerType        string          `json:"owner_type"`
	Currency         string          `json:"currency"`
	BalanceAvailable decimal.Decimal `json:"balance_available"`
	BalancePending   decimal.Decimal `json:"balance_pending"`
}

type WalletTransactionResponse struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
	BookingID   *string         `json:"booking_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func FromWallet(w *entity.Wallet) *WalletResponse {
	return &WalletResponse{
		ID:               w.ID.String(),
		OwnerID:          w.OwnerID.String(),
		OwnerType:        string(w.OwnerType),
		Currency:         w.Currency,
		BalanceAvailable: w.BalanceAvailable,
		BalancePending:   w.BalancePending,
	}
}

func FromWalletTransaction(t *entity.WalletTransaction) WalletTransactionResponse {
	resp := WalletTransactionResponse{
		ID:          t.ID.String(),
		Type:        string(t.Type),
		Status:      string(t.Status),
		Amount:      t.Amount,
		Currency:    t.Currency,
		Description: t.Description,
		Reference:   t.Reference,
		CreatedAt:   t.CreatedAt,
	}
	if t.BookingID != nil {
		id := t.BookingID.String()
		resp.BookingID = &id
	}
	return resp
}
