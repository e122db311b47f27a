package entity

import "time"

// JobLock is the mutual-exclusion row for one sweep job. At most one
// non-expired lock exists per job name; a crashed worker's lock simply
// expires.
type JobLock struct {
	JobName       string    `db:"job_name"`
	Holder        string    `db:"holder"`
	ProcessingIDs []string  `db:"processing_ids"`
	AcquiredAt    time.Time `db:"acquired_at"`
	ExpiresAt     time.Time `db:"expires_at"`
}

const (
	JobRoomFeeReleaseSweep = "room_fee_release_sweep"
	JobDepositReleaseSweep = "deposit_release_sweep"
	JobDisputeTimeoutSweep = "dispute_timeout_sweep"
	JobAutoCheckInSweep    = "auto_check_in_sweep"
)
