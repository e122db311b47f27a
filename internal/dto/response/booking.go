package response

import (
	"time"

	"stay-escrow/internal/data/entity"

	"github.com/shopspring/decimal"
)

type BookingResponse struct {
	ID         string `json:"id"`
	Reference  string `json:"reference"`
	GuestID    string `json:"guest_id"`
	PropertyID string `json:"property_id"`
	OperatorID string `json:"operator_id"`

	Provider    string `json:"provider"`
	PaymentMode string `json:"payment_mode"`
	Currency    string `json:"currency"`

	CheckInDate  string `json:"check_in_date"`
	CheckOutDate string `json:"check_out_date"`

	RoomFee         decimal.Decimal `json:"room_fee"`
	CleaningFee     decimal.Decimal `json:"cleaning_fee"`
	ServiceFee      decimal.Decimal `json:"service_fee"`
	PlatformFee     decimal.Decimal `json:"platform_fee"`
	SecurityDeposit decimal.Decimal `json:"security_deposit"`
	Total           decimal.Decimal `json:"total"`

	Status string `json:"status"`

	ActualCheckInAt  *time.Time `json:"actual_check_in_at,omitempty"`
	ActualCheckOutAt *time.Time `json:"actual_check_out_at,omitempty"`

	RoomFeeReleaseEligibleAt *time.Time `json:"room_fee_release_eligible_at,omitempty"`
	DepositRefundEligibleAt  *time.Time `json:"deposit_refund_eligible_at,omitempty"`

	Payment *PaymentResponse `json:"payment,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type PaymentResponse struct {
	ID              string          `json:"id"`
	CapturedAmount  decimal.Decimal `json:"captured_amount"`
	Currency        string          `json:"currency"`
	ProviderTxnID   string          `json:"provider_txn_id"`
	Status          string          `json:"status"`
	RoomFeeInEscrow bool            `json:"room_fee_in_escrow"`
	DepositInEscrow bool            `json:"deposit_in_escrow"`

	RoomFeeReleasedAt *time.Time `json:"room_fee_released_at,omitempty"`
	DepositReleasedAt *time.Time `json:"deposit_released_at,omitempty"`

	RoomFeeRefunded  decimal.Decimal `json:"room_fee_refunded"`
	DepositDeduction decimal.Decimal `json:"deposit_deduction"`

	EffectiveCommissionRate decimal.Decimal `json:"effective_commission_rate"`
}

func FromBooking(b *entity.Booking, p *entity.Payment) *BookingResponse {
	resp := &BookingResponse{
		ID:                       b.ID.String(),
		Reference:                b.Reference,
		GuestID:                  b.GuestID.String(),
		PropertyID:               b.PropertyID.String(),
		OperatorID:               b.OperatorID.String(),
		Provider:                 b.Provider,
		PaymentMode:              string(b.PaymentMode),
		Currency:                 b.Currency,
		CheckInDate:              b.CheckInDate.Format("2006-01-02"),
		CheckOutDate:             b.CheckOutDate.Format("2006-01-02"),
		RoomFee:                  b.RoomFee,
		CleaningFee:              b.CleaningFee,
		ServiceFee:               b.ServiceFee,
		PlatformFee:              b.PlatformFee,
		SecurityDeposit:          b.SecurityDeposit,
		Total:                    b.TotalAmount(),
		Status:                   string(b.Status),
		ActualCheckInAt:          b.ActualCheckInAt,
		ActualCheckOutAt:         b.ActualCheckOutAt,
		RoomFeeReleaseEligibleAt: b.RoomFeeReleaseEligibleAt,
		DepositRefundEligibleAt:  b.DepositRefundEligibleAt,
		CreatedAt:                b.CreatedAt,
	}

	if p != nil {
		resp.Payment = FromPayment(p)
	}

	return resp
}

func FromPayment(p *entity.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:                      p.ID.String(),
		CapturedAmount:          p.CapturedAmount,
		Currency:                p.Currency,
		ProviderTxnID:           p.ProviderTxnID,
		Status:                  string(p.Status),
		RoomFeeInEscrow:         p.RoomFeeInEscrow,
		DepositInEscrow:         p.DepositInEscrow,
		RoomFeeReleasedAt:       p.RoomFeeReleasedAt,
		DepositReleasedAt:       p.DepositReleasedAt,
		RoomFeeRefunded:         p.RoomFeeRefunded,
		DepositDeduction:        p.DepositDeduction,
		EffectiveCommissionRate: p.Snapshot.EffectiveCommissionRate,
	}
}
