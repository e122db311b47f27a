package usecase

import (
	"fmt"

	"stay-escrow/internal/data/entity"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// QuoteInput is one booking's pricing request.
type QuoteInput struct {
	RoomFee         decimal.Decimal
	CleaningFee     decimal.Decimal
	SecurityDeposit decimal.Decimal

	// Trailing monthly room-fee volume of the operator, for tier and
	// discount lookup.
	TrailingMonthlyVolume decimal.Decimal

	Mode entity.PaymentMode
}

// FeeQuote is the deterministic breakdown for one booking. Callers persist
// it as the payment's fee snapshot at capture time.
type FeeQuote struct {
	ConfigVersion int

	BaseCommissionRate      decimal.Decimal
	VolumeDiscount          decimal.Decimal
	EffectiveCommissionRate decimal.Decimal

	ServiceFee    decimal.Decimal
	PlatformFee   decimal.Decimal
	ProcessingFee decimal.Decimal

	// TotalCharge is the amount to capture from the guest:
	// room + cleaning + service + platform + deposit.
	TotalCharge decimal.Decimal
}

type FeeService interface {
	Quote(input QuoteInput, cfg *entity.FeeConfig) (*FeeQuote, error)
}

type feeService struct {
	log *zap.Logger
}

func NewFeeService(log *zap.Logger) FeeService {
	return &feeService{
		log: log.With(zap.String("service", "fee")),
	}
}

var decimalOne = decimal.NewFromInt(1)

// Quote is pure: no reads, no writes, no clock.
func (s *feeService) Quote(input QuoteInput, cfg *entity.FeeConfig) (*FeeQuote, error) {
	if cfg == nil {
		return nil, fmt.Errorf("no fee config: %w", ErrConfiguration)
	}
	if !input.RoomFee.IsPositive() {
		return nil, fmt.Errorf("room fee must be positive, got %s: %w", input.RoomFee.String(), ErrValidation)
	}
	if input.CleaningFee.IsNegative() || input.SecurityDeposit.IsNegative() {
		return nil, fmt.Errorf("cleaning fee and deposit must not be negative: %w", ErrValidation)
	}

	baseRate, err := commissionRate(cfg, input.TrailingMonthlyVolume)
	if err != nil {
		return nil, err
	}

	discount := volumeDiscount(cfg, input.TrailingMonthlyVolume)

	effectiveRate := baseRate.Sub(discount)
	if effectiveRate.IsNegative() {
		effectiveRate = decimal.Zero
	}

	serviceBase := input.RoomFee.Add(input.CleaningFee)
	serviceFee := serviceBase.Mul(cfg.ServiceFeePercent).Add(cfg.ServiceFeeFixed).RoundBank(2)
	if cfg.ServiceFeeCapThreshold.IsPositive() &&
		serviceBase.GreaterThanOrEqual(cfg.ServiceFeeCapThreshold) &&
		serviceFee.GreaterThan(cfg.ServiceFeeCap) {
		serviceFee = cfg.ServiceFeeCap
	}

	platformFee := cfg.PlatformBookingFee.RoundBank(2)

	totalCharge := input.RoomFee.
		Add(input.CleaningFee).
		Add(serviceFee).
		Add(platformFee).
		Add(input.SecurityDeposit)

	processingPercent := cfg.ProcessingFeePercentLocal
	if input.Mode == entity.PaymentModeInternational {
		processingPercent = cfg.ProcessingFeePercentIntl
	}
	processingFee := totalCharge.Mul(processingPercent).Add(cfg.ProcessingFeeFixed).RoundBank(2)
	// Cap applies to local payments only; international is uncapped.
	if input.Mode == entity.PaymentModeLocal &&
		cfg.ProcessingFeeCapLocal.IsPositive() &&
		processingFee.GreaterThan(cfg.ProcessingFeeCapLocal) {
		processingFee = cfg.ProcessingFeeCapLocal
	}

	return &FeeQuote{
		ConfigVersion:           cfg.Version,
		BaseCommissionRate:      baseRate,
		VolumeDiscount:          discount,
		EffectiveCommissionRate: effectiveRate,
		ServiceFee:              serviceFee,
		PlatformFee:             platformFee,
		ProcessingFee:           processingFee,
		TotalCharge:             totalCharge,
	}, nil
}

// commissionRate picks the highest tier whose volume floor is met.
func commissionRate(cfg *entity.FeeConfig, volume decimal.Decimal) (decimal.Decimal, error) {
	var (
		rate  decimal.Decimal
		found bool
	)
	// Tiers are loaded ordered by volume floor, so the last match is the
	// highest matching tier.
	for _, tier := range cfg.Tiers {
		if volume.GreaterThanOrEqual(tier.MinMonthlyVolume) {
			rate = tier.Rate
			found = true
		}
	}
	if !found {
		return decimal.Zero, fmt.Errorf("no commission tier matches volume %s for config version %d: %w",
			volume.String(), cfg.Version, ErrConfiguration)
	}
	return rate, nil
}

// volumeDiscount is one step per discount unit of trailing volume, capped.
func volumeDiscount(cfg *entity.FeeConfig, volume decimal.Decimal) decimal.Decimal {
	if !cfg.VolumeDiscountUnit.IsPositive() || !cfg.VolumeDiscountStep.IsPositive() {
		return decimal.Zero
	}

	steps := volume.Div(cfg.VolumeDiscountUnit).Floor()
	discount := steps.Mul(cfg.VolumeDiscountStep)
	if discount.GreaterThan(cfg.MaxVolumeDiscount) {
		discount = cfg.MaxVolumeDiscount
	}
	return discount
}
