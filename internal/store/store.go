// Package store persists hall of fame entries. Two drivers implement the
// same interface: postgres (pgx) for the hosted database and sqlite for
// local runs.
package store

import (
	"context"

	"github.com/nolasoft/hoftrack/internal/model"
)

// Stats summarizes extraction coverage across the table.
type Stats struct {
	Total               int `json:"total" yaml:"total"`
	WithNotes           int `json:"with_notes" yaml:"with_notes"`
	WithAge             int `json:"with_age" yaml:"with_age"`
	WithElapsedTime     int `json:"with_elapsed_time" yaml:"with_elapsed_time"`
	WithCompletionCount int `json:"with_completion_count" yaml:"with_completion_count"`
	Migrated            int `json:"migrated" yaml:"migrated"`
}

// Store defines the persistence interface for hall of fame entries.
// Single-row writes are atomic; callers own cross-row pass semantics.
type Store interface {
	// GetEntry returns the entry with the given participant number, or
	// nil when absent.
	GetEntry(ctx context.Context, participantNumber int) (*model.Entry, error)
	InsertEntry(ctx context.Context, e *model.Entry) error
	UpdateEntry(ctx context.Context, e *model.Entry) error
	ListEntries(ctx context.Context) ([]model.Entry, error)

	// Backfill row selection and writes. ListUnmigrated selects rows with
	// a null original_name; ListMigrated the complement.
	ListUnmigrated(ctx context.Context) ([]model.Entry, error)
	ListMigrated(ctx context.Context) ([]model.Entry, error)
	// ApplyBackfill snapshots the current name into original_name and
	// writes the extracted fields. Guarded: it refuses rows whose
	// original_name is already set, so the backup is written exactly once.
	ApplyBackfill(ctx context.Context, id string, cleanName string, s model.Structured) error
	// RevertBackfill restores name from original_name and nulls the
	// structured columns. The backup itself stays populated.
	RevertBackfill(ctx context.Context, id string) error

	MaxParticipantNumber(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*Stats, error)
	ClearEntries(ctx context.Context) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}
