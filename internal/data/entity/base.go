package entity

import (
	"time"

	"github.com/google/uuid"
)

// Base is embedded by mutable rows. DeletedAt marks soft deletion; queries
// filter on it rather than removing rows.
type Base struct {
	ID        uuid.UUID  `db:"id"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at"`
}

// BaseSimple is embedded by append-only rows (events, ledger entries)
// that are never updated or deleted.
type BaseSimple struct {
	ID        uuid.UUID `db:"id"`
	CreatedAt time.Time `db:"created_at"`
}
