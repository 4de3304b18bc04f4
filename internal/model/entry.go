// Package model defines the hall of fame entry types shared across the
// scraper, parser, reconciler, and backfill subsystems.
package model

import "time"

// RawEntry is one unparsed row scraped from the leaderboard page.
// Transient: produced by the scraper, consumed by one parse pass.
type RawEntry struct {
	ParticipantNumber int       `json:"participant_number"`
	Name              string    `json:"name"`
	Date              string    `json:"date"`
	ScrapedAt         time.Time `json:"scraped_at"`
}

// Structured holds the optional fields extracted from a raw name. Each field
// is a tagged optional: nil means the pattern did not produce it. At most one
// of AgeDays, ElapsedTimeSecs, and CompletionCount is non-nil.
type Structured struct {
	Notes           *string `json:"notes"`
	AgeDays         *int    `json:"age_days"`
	ElapsedTimeSecs *int    `json:"elapsed_time_seconds"`
	CompletionCount *int    `json:"completion_count"`
}

// NumericCount returns how many of the three numeric optionals are set.
// A valid extraction sets at most one.
func (s Structured) NumericCount() int {
	n := 0
	if s.AgeDays != nil {
		n++
	}
	if s.ElapsedTimeSecs != nil {
		n++
	}
	if s.CompletionCount != nil {
		n++
	}
	return n
}

// Equal compares two Structured values field by field, treating nil and
// set pointers as distinct.
func (s Structured) Equal(o Structured) bool {
	return strPtrEqual(s.Notes, o.Notes) &&
		intPtrEqual(s.AgeDays, o.AgeDays) &&
		intPtrEqual(s.ElapsedTimeSecs, o.ElapsedTimeSecs) &&
		intPtrEqual(s.CompletionCount, o.CompletionCount)
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ParsedEntry is the canonical output of one RawEntry through the parser.
// Immutable once produced.
type ParsedEntry struct {
	ParticipantNumber int       `json:"participant_number"`
	Name              string    `json:"name"`
	DateStr           string    `json:"date_str"`
	ParsedDate        time.Time `json:"parsed_date"`
	Structured

	// Source tags which strategy produced the entry ("llm" or "pattern").
	// Telemetry only; correctness never depends on it.
	Source string `json:"source,omitempty"`
}

// Entry is a persisted hall of fame row. ParticipantNumber is the natural
// unique key. OriginalName is the one-time pre-backfill snapshot of Name:
// set exactly once by the migrate mode and never overwritten.
type Entry struct {
	ID                string    `json:"id"`
	ParticipantNumber int       `json:"participant_number"`
	Name              string    `json:"name"`
	DateStr           string    `json:"date_str"`
	ParsedDate        time.Time `json:"parsed_date"`
	Structured
	OriginalName *string   `json:"original_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Migrated reports whether the row has been through the backfill migrate
// mode. Guarded by OriginalName: the backup column doubles as the
// idempotency marker.
func (e *Entry) Migrated() bool {
	return e.OriginalName != nil
}

// IntPtr returns a pointer to v. Convenience for building tagged optionals.
func IntPtr(v int) *int { return &v }

// StrPtr returns a pointer to s.
func StrPtr(s string) *string { return &s }
