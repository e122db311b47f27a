package repository

import (
	"context"
	"fmt"

	"stay-escrow/internal/data/entity"
	"stay-escrow/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type FeeConfigRepository interface {
	GetActive(ctx context.Context, currency string) (*entity.FeeConfig, error)
	GetByVersion(ctx context.Context, version int) (*entity.FeeConfig, error)
	FindDisputeCategory(ctx context.Context, name string, subject entity.DisputeSubject) (*entity.DisputeCategory, error)
}

type feeConfigRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewFeeConfigRepository(db database.Querier, log *zap.Logger) FeeConfigRepository {
	return &feeConfigRepository{
		db:  db,
		log: log.With(zap.String("repository", "fee_config")),
	}
}

const feeConfigColumns = `
	version, currency, active, applies_from,
	volume_discount_unit, volume_discount_step, max_volume_discount,
	service_fee_percent, service_fee_fixed, service_fee_cap, service_fee_cap_threshold,
	platform_booking_fee,
	processing_fee_percent_local, processing_fee_percent_intl,
	processing_fee_fixed, processing_fee_cap_local
`

func scanFeeConfig(row pgx.Row) (*entity.FeeConfig, error) {
	var c entity.FeeConfig
	err := row.Scan(
		&c.Version,
		&c.Currency,
		&c.Active,
		&c.AppliesFrom,
		&c.VolumeDiscountUnit,
		&c.VolumeDiscountStep,
		&c.MaxVolumeDiscount,
		&c.ServiceFeePercent,
		&c.ServiceFeeFixed,
		&c.ServiceFeeCap,
		&c.ServiceFeeCapThreshold,
		&c.PlatformBookingFee,
		&c.ProcessingFeePercentLocal,
		&c.ProcessingFeePercentIntl,
		&c.ProcessingFeeFixed,
		&c.ProcessingFeeCapLocal,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *feeConfigRepository) GetActive(ctx context.Context, currency string) (*entity.FeeConfig, error) {
	query := `
		SELECT ` + feeConfigColumns + `
		FROM fee_configs
		WHERE currency = $1 AND active = TRUE AND applies_from <= NOW()
		ORDER BY version DESC
		LIMIT 1
	`

	config, err := scanFeeConfig(r.db.QueryRow(ctx, query, currency))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to get active fee config",
			zap.Error(err),
			zap.String("currency", currency),
		)
		return nil, fmt.Errorf("get active fee config for %s: %w", currency, err)
	}

	if err := r.loadTiers(ctx, config); err != nil {
		return nil, err
	}

	return config, nil
}

func (r *feeConfigRepository) GetByVersion(ctx context.Context, version int) (*entity.FeeConfig, error) {
	query := `SELECT ` + feeConfigColumns + ` FROM fee_configs WHERE version = $1`

	config, err := scanFeeConfig(r.db.QueryRow(ctx, query, version))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to get fee config by version",
			zap.Error(err),
			zap.Int("version", version),
		)
		return nil, fmt.Errorf("get fee config version %d: %w", version, err)
	}

	if err := r.loadTiers(ctx, config); err != nil {
		return nil, err
	}

	return config, nil
}

func (r *feeConfigRepository) loadTiers(ctx context.Context, config *entity.FeeConfig) error {
	query := `
		SELECT min_monthly_volume, rate
		FROM commission_tiers
		WHERE fee_config_version = $1
		ORDER BY min_monthly_volume
	`

	rows, err := r.db.Query(ctx, query, config.Version)
	if err != nil {
		r.log.Error("Failed to load commission tiers",
			zap.Error(err),
			zap.Int("version", config.Version),
		)
		return fmt.Errorf("load tiers for fee config version %d: %w", config.Version, err)
	}
	defer rows.Close()

	for rows.Next() {
		var tier entity.CommissionTier
		if err := rows.Scan(&tier.MinMonthlyVolume, &tier.Rate); err != nil {
			return fmt.Errorf("scan commission tier row: %w", err)
		}
		config.Tiers = append(config.Tiers, tier)
	}

	return rows.Err()
}

func (r *feeConfigRepository) FindDisputeCategory(ctx context.Context, name string, subject entity.DisputeSubject) (*entity.DisputeCategory, error) {
	query := `
		SELECT name, subject, max_refund_percent, description
		FROM dispute_categories
		WHERE name = $1 AND subject = $2
	`

	var category entity.DisputeCategory
	err := r.db.QueryRow(ctx, query, name, subject).Scan(
		&category.Name,
		&category.Subject,
		&category.MaxRefundPercent,
		&category.Description,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find dispute category",
			zap.Error(err),
			zap.String("name", name),
			zap.String("subject", string(subject)),
		)
		return nil, fmt.Errorf("find dispute category %s: %w", name, err)
	}

	return &category, nil
}
