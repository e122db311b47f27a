package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stay-escrow/internal/data/entity"
	"stay-escrow/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type JobLockRepository interface {
	// Acquire takes the lock for jobName if it is free or expired.
	// Returns false without error when another holder still has it.
	Acquire(ctx context.Context, jobName, holder string, ttl time.Duration) (bool, error)

	// Release frees the lock only if holder still owns it, so a slow
	// worker whose lock expired cannot free a successor's lock.
	Release(ctx context.Context, jobName, holder string) error

	// UpdateProcessing records the batch of IDs the holder is working
	// through, for crash diagnostics.
	UpdateProcessing(ctx context.Context, jobName, holder string, processingIDs []string) error

	Find(ctx context.Context, jobName string) (*entity.JobLock, error)
}

type jobLockRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewJobLockRepository(db database.Querier, log *zap.Logger) JobLockRepository {
	return &jobLockRepository{
		db:  db,
		log: log.With(zap.String("repository", "job_lock")),
	}
}

func (r *jobLockRepository) Acquire(ctx context.Context, jobName, holder string, ttl time.Duration) (bool, error) {
	// Single upsert: insert wins the lock outright, the conditional
	// update steals it only when the previous lease has expired. No row
	// returned means someone else holds a live lease.
	query := `
		INSERT INTO job_locks (job_name, holder, processing_ids, acquired_at, expires_at)
		VALUES ($1, $2, '{}', NOW(), NOW() + $3)
		ON CONFLICT (job_name) DO UPDATE
		SET holder = EXCLUDED.holder,
		    processing_ids = '{}',
		    acquired_at = EXCLUDED.acquired_at,
		    expires_at = EXCLUDED.expires_at
		WHERE job_locks.expires_at < NOW()
		RETURNING job_name
	`

	var name string
	err := r.db.QueryRow(ctx, query, jobName, holder, ttl).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		r.log.Error("Failed to acquire job lock",
			zap.Error(err),
			zap.String("job_name", jobName),
			zap.String("holder", holder),
		)
		return false, fmt.Errorf("acquire lock %s: %w", jobName, err)
	}

	r.log.Debug("Acquired job lock",
		zap.String("job_name", jobName),
		zap.String("holder", holder),
	)
	return true, nil
}

func (r *jobLockRepository) Release(ctx context.Context, jobName, holder string) error {
	query := `DELETE FROM job_locks WHERE job_name = $1 AND holder = $2`

	result, err := r.db.Exec(ctx, query, jobName, holder)
	if err != nil {
		r.log.Error("Failed to release job lock",
			zap.Error(err),
			zap.String("job_name", jobName),
			zap.String("holder", holder),
		)
		return fmt.Errorf("release lock %s: %w", jobName, err)
	}

	if result.RowsAffected() == 0 {
		// Lock expired and was taken over; nothing to release.
		r.log.Warn("Job lock no longer held at release",
			zap.String("job_name", jobName),
			zap.String("holder", holder),
		)
	}

	return nil
}

func (r *jobLockRepository) UpdateProcessing(ctx context.Context, jobName, holder string, processingIDs []string) error {
	query := `UPDATE job_locks SET processing_ids = $3 WHERE job_name = $1 AND holder = $2`

	if _, err := r.db.Exec(ctx, query, jobName, holder, processingIDs); err != nil {
		r.log.Error("Failed to update job lock processing IDs",
			zap.Error(err),
			zap.String("job_name", jobName),
		)
		return fmt.Errorf("update processing IDs for lock %s: %w", jobName, err)
	}

	return nil
}

func (r *jobLockRepository) Find(ctx context.Context, jobName string) (*entity.JobLock, error) {
	query := `
		SELECT job_name, holder, processing_ids, acquired_at, expires_at
		FROM job_locks
		WHERE job_name = $1
	`

	var lock entity.JobLock
	err := r.db.QueryRow(ctx, query, jobName).Scan(
		&lock.JobName,
		&lock.Holder,
		&lock.ProcessingIDs,
		&lock.AcquiredAt,
		&lock.ExpiresAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find job lock",
			zap.Error(err),
			zap.String("job_name", jobName),
		)
		return nil, fmt.Errorf("find lock %s: %w", jobName, err)
	}

	return &lock, nil
}
