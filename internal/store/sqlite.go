package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/nolasoft/hoftrack/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Used for local
// runs and development; the hosted deployment uses postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS hall_of_fame_entries (
	id                 TEXT PRIMARY KEY,
	participant_number INTEGER UNIQUE NOT NULL,
	name               TEXT NOT NULL,
	date_str           TEXT NOT NULL,
	parsed_date        DATETIME NOT NULL,
	notes              TEXT,
	age                INTEGER,
	elapsed_time       INTEGER,
	completion_count   INTEGER,
	original_name      TEXT,
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_hof_participant_number ON hall_of_fame_entries(participant_number);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanSQLiteEntry(row interface{ Scan(...any) error }) (*model.Entry, error) {
	var e model.Entry
	err := row.Scan(
		&e.ID, &e.ParticipantNumber, &e.Name, &e.DateStr, &e.ParsedDate,
		&e.Notes, &e.AgeDays, &e.ElapsedTimeSecs, &e.CompletionCount,
		&e.OriginalName, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *SQLiteStore) GetEntry(ctx context.Context, participantNumber int) (*model.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM hall_of_fame_entries WHERE participant_number = ?`,
		participantNumber,
	)
	e, err := scanSQLiteEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get entry %d", participantNumber)
	}
	return e, nil
}

func (s *SQLiteStore) InsertEntry(ctx context.Context, e *model.Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hall_of_fame_entries (id, participant_number, name, date_str, parsed_date, notes, age, elapsed_time, completion_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ParticipantNumber, e.Name, e.DateStr, e.ParsedDate,
		e.Notes, e.AgeDays, e.ElapsedTimeSecs, e.CompletionCount,
		e.CreatedAt, e.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert entry %d", e.ParticipantNumber)
}

func (s *SQLiteStore) UpdateEntry(ctx context.Context, e *model.Entry) error {
	e.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE hall_of_fame_entries
		 SET name = ?, date_str = ?, parsed_date = ?, notes = ?, age = ?, elapsed_time = ?, completion_count = ?, updated_at = ?
		 WHERE participant_number = ?`,
		e.Name, e.DateStr, e.ParsedDate,
		e.Notes, e.AgeDays, e.ElapsedTimeSecs, e.CompletionCount,
		e.UpdatedAt, e.ParticipantNumber,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update entry %d", e.ParticipantNumber)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("sqlite: update entry %d: no such row", e.ParticipantNumber)
	}
	return nil
}

func (s *SQLiteStore) listWhere(ctx context.Context, where string) ([]model.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM hall_of_fame_entries `+where+` ORDER BY participant_number`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.Entry
	for rows.Next() {
		e, err := scanSQLiteEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) ListEntries(ctx context.Context) ([]model.Entry, error) {
	entries, err := s.listWhere(ctx, "")
	return entries, eris.Wrap(err, "sqlite: list entries")
}

func (s *SQLiteStore) ListUnmigrated(ctx context.Context) ([]model.Entry, error) {
	entries, err := s.listWhere(ctx, "WHERE original_name IS NULL")
	return entries, eris.Wrap(err, "sqlite: list unmigrated")
}

func (s *SQLiteStore) ListMigrated(ctx context.Context) ([]model.Entry, error) {
	entries, err := s.listWhere(ctx, "WHERE original_name IS NOT NULL")
	return entries, eris.Wrap(err, "sqlite: list migrated")
}

func (s *SQLiteStore) ApplyBackfill(ctx context.Context, id string, cleanName string, str model.Structured) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE hall_of_fame_entries
		 SET original_name = name, name = ?, notes = ?, age = ?, elapsed_time = ?, completion_count = ?, updated_at = ?
		 WHERE id = ? AND original_name IS NULL`,
		cleanName, str.Notes, str.AgeDays, str.ElapsedTimeSecs, str.CompletionCount,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: apply backfill %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("sqlite: apply backfill %s: row already migrated or missing", id)
	}
	return nil
}

func (s *SQLiteStore) RevertBackfill(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE hall_of_fame_entries
		 SET name = original_name, notes = NULL, age = NULL, elapsed_time = NULL, completion_count = NULL, updated_at = ?
		 WHERE id = ? AND original_name IS NOT NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: revert backfill %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("sqlite: revert backfill %s: row not migrated or missing", id)
	}
	return nil
}

func (s *SQLiteStore) MaxParticipantNumber(ctx context.Context) (int, error) {
	var maxNum int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(participant_number), 0) FROM hall_of_fame_entries`,
	).Scan(&maxNum)
	return maxNum, eris.Wrap(err, "sqlite: max participant number")
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(notes), COUNT(age), COUNT(elapsed_time), COUNT(completion_count), COUNT(original_name) FROM hall_of_fame_entries`,
	).Scan(&st.Total, &st.WithNotes, &st.WithAge, &st.WithElapsedTime, &st.WithCompletionCount, &st.Migrated)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats")
	}
	return &st, nil
}

func (s *SQLiteStore) ClearEntries(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM hall_of_fame_entries`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: clear entries")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: clear entries rows affected")
}
