package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionTier maps a trailing monthly room-fee volume floor to a base
// commission rate. The highest matching tier wins.
type CommissionTier struct {
	MinMonthlyVolume decimal.Decimal `db:"min_monthly_volume"`
	Rate             decimal.Decimal `db:"rate"`
}

// FeeConfig is one immutable, versioned pricing configuration. Bookings
// persist the version they were priced with so later config rows never
// retroactively change an already-priced booking.
type FeeConfig struct {
	Version     int       `db:"version"`
	Currency    string    `db:"currency"`
	Active      bool      `db:"active"`
	AppliesFrom time.Time `db:"applies_from"`

	Tiers []CommissionTier

	// Volume discount: one step per discount unit of trailing volume,
	// reduction capped at MaxVolumeDiscount.
	VolumeDiscountUnit decimal.Decimal `db:"volume_discount_unit"`
	VolumeDiscountStep decimal.Decimal `db:"volume_discount_step"`
	MaxVolumeDiscount  decimal.Decimal `db:"max_volume_discount"`

	// Platform service fee: percent of (room + cleaning) plus fixed,
	// capped once the base amount crosses the trigger threshold.
	ServiceFeePercent      decimal.Decimal `db:"service_fee_percent"`
	ServiceFeeFixed        decimal.Decimal `db:"service_fee_fixed"`
	ServiceFeeCap          decimal.Decimal `db:"service_fee_cap"`
	ServiceFeeCapThreshold decimal.Decimal `db:"service_fee_cap_threshold"`

	// Fixed platform fee added to every booking, zero by default.
	PlatformBookingFee decimal.Decimal `db:"platform_booking_fee"`

	// Processing fee: percent plus fixed; the cap applies to local
	// payments only, international is uncapped.
	ProcessingFeePercentLocal decimal.Decimal `db:"processing_fee_percent_local"`
	ProcessingFeePercentIntl  decimal.Decimal `db:"processing_fee_percent_intl"`
	ProcessingFeeFixed        decimal.Decimal `db:"processing_fee_fixed"`
	ProcessingFeeCapLocal     decimal.Decimal `db:"processing_fee_cap_local"`
}

// DisputeCategory maps a claim severity classification to the maximum
// refund percentage any outcome may award. Configured, never computed.
type DisputeCategory struct {
	Name             string          `db:"name"`
	Subject          DisputeSubject  `db:"subject"`
	MaxRefundPercent decimal.Decimal `db:"max_refund_percent"`
	Description      string          `db:"description"`
}
