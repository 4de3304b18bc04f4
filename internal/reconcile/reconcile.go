// Package reconcile applies one scrape pass of parsed entries to the store,
// deciding insert, update, or no-op per participant number.
package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nolasoft/hoftrack/internal/model"
	"github.com/nolasoft/hoftrack/internal/store"
)

// RowFailure records one row-level storage failure.
type RowFailure struct {
	ParticipantNumber int    `json:"participant_number" yaml:"participant_number"`
	Action            string `json:"action" yaml:"action"`
	Error             string `json:"error" yaml:"error"`
}

// Summary reports the outcome of one reconcile pass.
type Summary struct {
	RunID     string       `json:"run_id" yaml:"run_id"`
	Scanned   int          `json:"scanned" yaml:"scanned"`
	Inserted  int          `json:"inserted" yaml:"inserted"`
	Updated   int          `json:"updated" yaml:"updated"`
	Unchanged int          `json:"unchanged" yaml:"unchanged"`
	Skipped   int          `json:"skipped" yaml:"skipped"`
	Failed    int          `json:"failed" yaml:"failed"`
	Failures  []RowFailure `json:"failures,omitempty" yaml:"failures,omitempty"`
	StartedAt time.Time    `json:"started_at" yaml:"started_at"`
	Duration  string       `json:"duration" yaml:"duration"`
}

// Reconciler writes parsed entries into the store.
type Reconciler struct {
	store store.Store
}

// New creates a Reconciler over the given store.
func New(st store.Store) *Reconciler {
	return &Reconciler{store: st}
}

// Run processes the full parsed set from one scrape pass. Duplicate
// participant numbers keep the first occurrence in scrape order; later ones
// count as skipped. Row-level storage failures are recorded and the pass
// continues. The caller treats Failed > 0 as a non-zero run outcome.
func (r *Reconciler) Run(ctx context.Context, entries []model.ParsedEntry) *Summary {
	start := time.Now().UTC()
	sum := &Summary{
		RunID:     uuid.New().String(),
		StartedAt: start,
	}

	seen := make(map[int]bool, len(entries))
	for _, pe := range entries {
		sum.Scanned++

		if seen[pe.ParticipantNumber] {
			sum.Skipped++
			zap.L().Debug("reconcile: duplicate participant number in pass, keeping first",
				zap.Int("participant_number", pe.ParticipantNumber),
			)
			continue
		}
		seen[pe.ParticipantNumber] = true

		existing, err := r.store.GetEntry(ctx, pe.ParticipantNumber)
		if err != nil {
			sum.fail(pe.ParticipantNumber, "lookup", err)
			continue
		}

		if existing == nil {
			if err := r.store.InsertEntry(ctx, entryFromParsed(pe)); err != nil {
				sum.fail(pe.ParticipantNumber, "insert", err)
				continue
			}
			sum.Inserted++
			continue
		}

		if !differs(existing, pe) {
			sum.Unchanged++
			continue
		}

		updated := *existing
		applyParsed(&updated, pe)
		if err := r.store.UpdateEntry(ctx, &updated); err != nil {
			sum.fail(pe.ParticipantNumber, "update", err)
			continue
		}
		sum.Updated++
	}

	sum.Duration = time.Since(start).Round(time.Millisecond).String()
	zap.L().Info("reconcile: pass complete",
		zap.String("run_id", sum.RunID),
		zap.Int("scanned", sum.Scanned),
		zap.Int("inserted", sum.Inserted),
		zap.Int("updated", sum.Updated),
		zap.Int("unchanged", sum.Unchanged),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
	)
	return sum
}

func (s *Summary) fail(num int, action string, err error) {
	s.Failed++
	s.Failures = append(s.Failures, RowFailure{
		ParticipantNumber: num,
		Action:            action,
		Error:             err.Error(),
	})
	zap.L().Warn("reconcile: row failed",
		zap.Int("participant_number", num),
		zap.String("action", action),
		zap.Error(err),
	)
}

func entryFromParsed(pe model.ParsedEntry) *model.Entry {
	return &model.Entry{
		ParticipantNumber: pe.ParticipantNumber,
		Name:              pe.Name,
		DateStr:           pe.DateStr,
		ParsedDate:        pe.ParsedDate,
		Structured:        pe.Structured,
	}
}

func applyParsed(e *model.Entry, pe model.ParsedEntry) {
	e.Name = pe.Name
	e.DateStr = pe.DateStr
	e.ParsedDate = pe.ParsedDate
	e.Structured = pe.Structured
}

// differs reports whether any reconciled field would change. updated_at must
// not advance for a no-op, so the comparison covers exactly the fields an
// update writes.
func differs(e *model.Entry, pe model.ParsedEntry) bool {
	if e.Name != pe.Name || e.DateStr != pe.DateStr || !e.ParsedDate.Equal(pe.ParsedDate) {
		return true
	}
	return !e.Structured.Equal(pe.Structured)
}
