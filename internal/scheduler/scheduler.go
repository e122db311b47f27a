package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"stay-escrow/internal/data/entity"
	"stay-escrow/internal/data/repository"
	"stay-escrow/internal/usecase"
	"stay-escrow/pkg/utils"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Scheduler runs the periodic sweeps that drive timed releases. Each
// sweep takes a named job lock first, so multiple workers can run the
// binary while exactly one processes a given job per cycle.
type Scheduler struct {
	sched  gocron.Scheduler
	repo   *repository.Repository
	svc    *usecase.Service
	cfg    utils.Config
	worker string
	log    *zap.Logger
}

func New(repo *repository.Repository, svc *usecase.Service, cfg utils.Config, log *zap.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	worker := cfg.Scheduler.WorkerID
	if worker == "" {
		host, _ := os.Hostname()
		worker = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	}

	return &Scheduler{
		sched:  sched,
		repo:   repo,
		svc:    svc,
		cfg:    cfg,
		worker: worker,
		log:    log.With(zap.String("component", "scheduler"), zap.String("worker", worker)),
	}, nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		name string
		run  func(context.Context) error
	}{
		{entity.JobRoomFeeReleaseSweep, s.sweepRoomFeeReleases},
		{entity.JobDepositReleaseSweep, s.sweepDepositReleases},
		{entity.JobDisputeTimeoutSweep, s.sweepExpiredDisputes},
		{entity.JobAutoCheckInSweep, s.sweepAutoCheckIns},
	}

	for _, job := range jobs {
		name, run := job.name, job.run
		_, err := s.sched.NewJob(
			gocron.DurationJob(s.cfg.Scheduler.SweepInterval),
			gocron.NewTask(func() {
				s.runLocked(ctx, name, run)
			}),
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("register job %s: %w", name, err)
		}
	}

	s.sched.Start()
	s.log.Info("Scheduler started",
		zap.Duration("interval", s.cfg.Scheduler.SweepInterval),
	)
	return nil
}

func (s *Scheduler) Stop() error {
	return s.sched.Shutdown()
}

// runLocked wraps a sweep in the job lock. A held lock means another
// worker owns this cycle; skip and try again next interval.
func (s *Scheduler) runLocked(ctx context.Context, jobName string, run func(context.Context) error) {
	acquired, err := s.repo.JobLock.Acquire(ctx, jobName, s.worker, s.cfg.Scheduler.LockTTL)
	if err != nil {
		s.log.Error("Failed to acquire job lock", zap.Error(err), zap.String("job", jobName))
		return
	}
	if !acquired {
		s.log.Debug("Job lock held elsewhere, skipping cycle", zap.String("job", jobName))
		return
	}
	defer func() {
		if err := s.repo.JobLock.Release(ctx, jobName, s.worker); err != nil {
			s.log.Error("Failed to release job lock", zap.Error(err), zap.String("job", jobName))
		}
	}()

	if err := run(ctx); err != nil {
		s.log.Error("Sweep failed", zap.Error(err), zap.String("job", jobName))
	}
}

func (s *Scheduler) sweepRoomFeeReleases(ctx context.Context) error {
	now := time.Now()
	ids, err := s.repo.Booking.FindDueRoomFeeRelease(ctx, now, s.cfg.Scheduler.BatchSize)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	s.recordProcessing(ctx, entity.JobRoomFeeReleaseSweep, ids)

	for _, id := range ids {
		err := s.svc.Escrow.ExecuteRoomFeeSplit(ctx, id)
		switch {
		case err == nil:
			// released
		case errors.Is(err, usecase.ErrReleaseBlocked):
			s.log.Info("Room fee release deferred", zap.String("booking_id", id.String()))
		default:
			s.log.Error("Room fee release failed",
				zap.Error(err),
				zap.String("booking_id", id.String()),
			)
		}
	}
	return nil
}

func (s *Scheduler) sweepDepositReleases(ctx context.Context) error {
	now := time.Now()
	ids, err := s.repo.Booking.FindDueDepositRelease(ctx, now, s.cfg.Scheduler.BatchSize)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	s.recordProcessing(ctx, entity.JobDepositReleaseSweep, ids)

	for _, id := range ids {
		// A zero deduction keeps any dispute-recorded deduction intact.
		err := s.svc.Escrow.ExecuteDepositRelease(ctx, id, decimal.Zero)
		switch {
		case err == nil:
		case errors.Is(err, usecase.ErrReleaseBlocked):
			s.log.Info("Deposit release deferred", zap.String("booking_id", id.String()))
		default:
			s.log.Error("Deposit release failed",
				zap.Error(err),
				zap.String("booking_id", id.String()),
			)
		}
	}
	return nil
}

func (s *Scheduler) sweepExpiredDisputes(ctx context.Context) error {
	resolved, err := s.svc.Dispute.ResolveExpired(ctx)
	if err != nil {
		return err
	}
	if resolved > 0 {
		s.log.Info("Auto-resolved expired disputes", zap.Int("count", resolved))
	}
	return nil
}

func (s *Scheduler) sweepAutoCheckIns(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.Escrow.CheckInGracePeriod)
	ids, err := s.repo.Booking.FindDueAutoCheckIn(ctx, cutoff, s.cfg.Scheduler.BatchSize)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := s.svc.Booking.AutoCheckIn(ctx, id); err != nil {
			s.log.Error("Auto check-in failed",
				zap.Error(err),
				zap.String("booking_id", id.String()),
			)
		}
	}
	return nil
}

func (s *Scheduler) recordProcessing(ctx context.Context, jobName string, ids []uuid.UUID) {
	processing := make([]string, len(ids))
	for i, id := range ids {
		processing[i] = id.String()
	}
	if err := s.repo.JobLock.UpdateProcessing(ctx, jobName, s.worker, processing); err != nil {
		s.log.Warn("Failed to record processing IDs", zap.Error(err), zap.String("job", jobName))
	}
}
