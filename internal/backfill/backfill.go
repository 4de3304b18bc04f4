// Package backfill retrofits pattern extraction onto already-persisted rows.
// Four modes share one runner: preview and verify are read-only reports,
// migrate and rollback mutate rows one at a time.
package backfill

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nolasoft/hoftrack/internal/extract"
	"github.com/nolasoft/hoftrack/internal/model"
	"github.com/nolasoft/hoftrack/internal/store"
)

// Mode selects one of the four backfill passes.
type Mode string

const (
	ModePreview  Mode = "preview"
	ModeMigrate  Mode = "migrate"
	ModeVerify   Mode = "verify"
	ModeRollback Mode = "rollback"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePreview, ModeMigrate, ModeVerify, ModeRollback:
		return Mode(s), nil
	default:
		return "", eris.Errorf("backfill: unknown mode %q (want preview, migrate, verify, or rollback)", s)
	}
}

// Mutates reports whether the mode writes to the store.
func (m Mode) Mutates() bool {
	return m == ModeMigrate || m == ModeRollback
}

// Sample is one before/after example included in preview and verify reports
// for human review.
type Sample struct {
	ParticipantNumber int              `json:"participant_number" yaml:"participant_number"`
	Original          string           `json:"original" yaml:"original"`
	CleanName         string           `json:"clean_name" yaml:"clean_name"`
	Extracted         model.Structured `json:"extracted" yaml:"extracted"`

	// Verify only: the stored values that disagree with the recomputation.
	StoredName      string            `json:"stored_name,omitempty" yaml:"stored_name,omitempty"`
	StoredExtracted *model.Structured `json:"stored_extracted,omitempty" yaml:"stored_extracted,omitempty"`
}

// Failure records one row-level write failure.
type Failure struct {
	ParticipantNumber int    `json:"participant_number" yaml:"participant_number"`
	Error             string `json:"error" yaml:"error"`
}

// Run summarizes one backfill invocation. Ephemeral: it exists only for the
// duration of the pass.
type Run struct {
	Mode       Mode      `json:"mode" yaml:"mode"`
	Scanned    int       `json:"scanned" yaml:"scanned"`
	Changed    int       `json:"changed" yaml:"changed"`
	Skipped    int       `json:"skipped" yaml:"skipped"`
	Mismatched int       `json:"mismatched,omitempty" yaml:"mismatched,omitempty"`
	Failed     int       `json:"failed" yaml:"failed"`
	Failures   []Failure `json:"failures,omitempty" yaml:"failures,omitempty"`
	Samples    []Sample  `json:"samples,omitempty" yaml:"samples,omitempty"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	Duration   string    `json:"duration" yaml:"duration"`
}

// Runner executes backfill passes against a store.
type Runner struct {
	store       store.Store
	sampleLimit int
}

// NewRunner creates a Runner. sampleLimit caps the examples included in
// preview and verify reports.
func NewRunner(st store.Store, sampleLimit int) *Runner {
	if sampleLimit <= 0 {
		sampleLimit = 10
	}
	return &Runner{store: st, sampleLimit: sampleLimit}
}

// Execute runs one mode to completion and returns its summary. Row-level
// failures never abort the pass; the caller inspects Run.Failed.
func (r *Runner) Execute(ctx context.Context, mode Mode) (*Run, error) {
	start := time.Now().UTC()
	run := &Run{Mode: mode, StartedAt: start}

	var err error
	switch mode {
	case ModePreview:
		err = r.preview(ctx, run)
	case ModeMigrate:
		err = r.migrate(ctx, run)
	case ModeVerify:
		err = r.verify(ctx, run)
	case ModeRollback:
		err = r.rollback(ctx, run)
	default:
		return nil, eris.Errorf("backfill: unknown mode %q", mode)
	}
	if err != nil {
		return nil, err
	}

	run.Duration = time.Since(start).Round(time.Millisecond).String()
	zap.L().Info("backfill: pass complete",
		zap.String("mode", string(mode)),
		zap.Int("scanned", run.Scanned),
		zap.Int("changed", run.Changed),
		zap.Int("skipped", run.Skipped),
		zap.Int("mismatched", run.Mismatched),
		zap.Int("failed", run.Failed),
	)
	return run, nil
}

// wouldChange reports whether extraction found structure worth writing: a
// different clean name or any extracted field.
func wouldChange(row model.Entry, f extract.Fields) bool {
	return f.CleanName != row.Name || f.NumericCount() > 0 || f.Notes != nil
}

func (r *Runner) preview(ctx context.Context, run *Run) error {
	rows, err := r.store.ListUnmigrated(ctx)
	if err != nil {
		return eris.Wrap(err, "backfill: preview: list rows")
	}

	for _, row := range rows {
		run.Scanned++
		f := extract.Pattern(row.Name)
		if !wouldChange(row, f) {
			run.Skipped++
			continue
		}
		run.Changed++
		if len(run.Samples) < r.sampleLimit {
			run.Samples = append(run.Samples, Sample{
				ParticipantNumber: row.ParticipantNumber,
				Original:          row.Name,
				CleanName:         f.CleanName,
				Extracted:         f.Structured,
			})
		}
	}
	return nil
}

func (r *Runner) migrate(ctx context.Context, run *Run) error {
	rows, err := r.store.ListUnmigrated(ctx)
	if err != nil {
		return eris.Wrap(err, "backfill: migrate: list rows")
	}
	if len(rows) == 0 {
		// Nothing eligible. Either the table is already migrated or a
		// rollback left the backups populated; re-migration is a no-op.
		zap.L().Info("backfill: migrate found no eligible rows")
		return nil
	}

	for _, row := range rows {
		run.Scanned++
		f := extract.Pattern(row.Name)

		if err := r.store.ApplyBackfill(ctx, row.ID, f.CleanName, f.Structured); err != nil {
			run.fail(row.ParticipantNumber, err)
			continue
		}
		// Every successful row gets its backup stamped; Changed counts the
		// rows where extraction actually produced structure.
		if wouldChange(row, f) {
			run.Changed++
		} else {
			run.Skipped++
		}
	}
	return nil
}

func (r *Runner) verify(ctx context.Context, run *Run) error {
	rows, err := r.store.ListMigrated(ctx)
	if err != nil {
		return eris.Wrap(err, "backfill: verify: list rows")
	}

	for _, row := range rows {
		run.Scanned++
		if row.OriginalName == nil {
			// ListMigrated selects on original_name; a nil here is a bug.
			run.fail(row.ParticipantNumber, eris.New("backfill: migrated row without original_name"))
			continue
		}
		f := extract.Pattern(*row.OriginalName)
		if f.CleanName == row.Name && f.Structured.Equal(row.Structured) {
			run.Skipped++
			continue
		}
		run.Mismatched++
		if len(run.Samples) < r.sampleLimit {
			stored := row.Structured
			run.Samples = append(run.Samples, Sample{
				ParticipantNumber: row.ParticipantNumber,
				Original:          *row.OriginalName,
				CleanName:         f.CleanName,
				Extracted:         f.Structured,
				StoredName:        row.Name,
				StoredExtracted:   &stored,
			})
		}
	}
	return nil
}

func (r *Runner) rollback(ctx context.Context, run *Run) error {
	rows, err := r.store.ListMigrated(ctx)
	if err != nil {
		return eris.Wrap(err, "backfill: rollback: list rows")
	}

	for _, row := range rows {
		run.Scanned++
		if err := r.store.RevertBackfill(ctx, row.ID); err != nil {
			run.fail(row.ParticipantNumber, err)
			continue
		}
		run.Changed++
	}
	return nil
}

func (run *Run) fail(num int, err error) {
	run.Failed++
	run.Failures = append(run.Failures, Failure{ParticipantNumber: num, Error: err.Error()})
	zap.L().Warn("backfill: row failed",
		zap.String("mode", string(run.Mode)),
		zap.Int("participant_number", num),
		zap.Error(err),
	)
}
