package request

import "github.com/shopspring/decimal"

type CreateBooking struct {
	GuestID    string `json:"guest_id" validate:"required,uuid"`
	PropertyID string `json:"property_id" validate:"required,uuid"`
	OperatorID string `json:"operator_id" validate:"required,uuid"`

	Provider    string `json:"provider" validate:"omitempty,oneof=paystack flutterwave"`
	PaymentMode string `json:"payment_mode" validate:"required,oneof=local international"`
	Currency    string `json:"currency" validate:"required,len=3"`

	CheckInDate  string `json:"check_in_date" validate:"required,datetime=2006-01-02"`
	CheckOutDate string `json:"check_out_date" validate:"required,datetime=2006-01-02"`

	RoomFee         decimal.Decimal `json:"room_fee" validate:"required"`
	CleaningFee     decimal.Decimal `json:"cleaning_fee"`
	SecurityDeposit decimal.Decimal `json:"security_deposit"`
}

type CaptureBooking struct {
	// Provider-side payment reference to verify before funds are held.
	ProviderReference string `json:"provider_reference" validate:"required"`
}
