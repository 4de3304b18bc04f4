package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/nolasoft/hoftrack/internal/db"
	"github.com/nolasoft/hoftrack/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 5
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS hall_of_fame_entries (
	id                 TEXT PRIMARY KEY,
	participant_number INTEGER UNIQUE NOT NULL,
	name               TEXT NOT NULL,
	date_str           TEXT NOT NULL,
	parsed_date        TIMESTAMPTZ NOT NULL,
	notes              TEXT,
	age                INTEGER,
	elapsed_time       INTEGER,
	completion_count   INTEGER,
	original_name      TEXT,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_hof_participant_number ON hall_of_fame_entries(participant_number);
CREATE INDEX IF NOT EXISTS idx_hof_unmigrated ON hall_of_fame_entries(participant_number) WHERE original_name IS NULL;
`

const entryColumns = `id, participant_number, name, date_str, parsed_date, notes, age, elapsed_time, completion_count, original_name, created_at, updated_at`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func scanEntry(row pgx.Row) (*model.Entry, error) {
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

func (s *PostgresStore) GetEntry(ctx context.Context, participantNumber int) (*model.Entry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM hall_of_fame_entries WHERE participant_number = $1`,
		participantNumber,
	)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get entry %d", participantNumber)
	}
	return e, nil
}

func (s *PostgresStore) InsertEntry(ctx context.Context, e *model.Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO hall_of_fame_entries (id, participant_number, name, date_str, parsed_date, notes, age, elapsed_time, completion_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.ParticipantNumber, e.Name, e.DateStr, e.ParsedDate,
		e.Notes, e.AgeDays, e.ElapsedTimeSecs, e.CompletionCount,
		e.CreatedAt, e.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert entry %d", e.ParticipantNumber)
}

func (s *PostgresStore) UpdateEntry(ctx context.Context, e *model.Entry) error {
	e.UpdatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx,
		`UPDATE hall_of_fame_entries
		 SET name = $1, date_str = $2, parsed_date = $3, notes = $4, age = $5, elapsed_time = $6, completion_count = $7, updated_at = $8
		 WHERE participant_number = $9`,
		e.Name, e.DateStr, e.ParsedDate,
		e.Notes, e.AgeDays, e.ElapsedTimeSecs, e.CompletionCount,
		e.UpdatedAt, e.ParticipantNumber,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update entry %d", e.ParticipantNumber)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: update entry %d: no such row", e.ParticipantNumber)
	}
	return nil
}

func (s *PostgresStore) listWhere(ctx context.Context, where string) ([]model.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM hall_of_fame_entries `+where+` ORDER BY participant_number`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) ListEntries(ctx context.Context) ([]model.Entry, error) {
	entries, err := s.listWhere(ctx, "")
	return entries, eris.Wrap(err, "postgres: list entries")
}

func (s *PostgresStore) ListUnmigrated(ctx context.Context) ([]model.Entry, error) {
	entries, err := s.listWhere(ctx, "WHERE original_name IS NULL")
	return entries, eris.Wrap(err, "postgres: list unmigrated")
}

func (s *PostgresStore) ListMigrated(ctx context.Context) ([]model.Entry, error) {
	entries, err := s.listWhere(ctx, "WHERE original_name IS NOT NULL")
	return entries, eris.Wrap(err, "postgres: list migrated")
}

func (s *PostgresStore) ApplyBackfill(ctx context.Context, id string, cleanName string, str model.Structured) error {
	// original_name = name snapshots the pre-backfill text in the same
	// statement; the IS NULL guard makes the snapshot one-time.
	tag, err := s.pool.Exec(ctx,
		`UPDATE hall_of_fame_entries
		 SET original_name = name, name = $1, notes = $2, age = $3, elapsed_time = $4, completion_count = $5, updated_at = $6
		 WHERE id = $7 AND original_name IS NULL`,
		cleanName, str.Notes, str.AgeDays, str.ElapsedTimeSecs, str.CompletionCount,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: apply backfill %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: apply backfill %s: row already migrated or missing", id)
	}
	return nil
}

func (s *PostgresStore) RevertBackfill(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE hall_of_fame_entries
		 SET name = original_name, notes = NULL, age = NULL, elapsed_time = NULL, completion_count = NULL, updated_at = $1
		 WHERE id = $2 AND original_name IS NOT NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: revert backfill %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: revert backfill %s: row not migrated or missing", id)
	}
	return nil
}

func (s *PostgresStore) MaxParticipantNumber(ctx context.Context) (int, error) {
	var maxNum int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(participant_number), 0) FROM hall_of_fame_entries`,
	).Scan(&maxNum)
	return maxNum, eris.Wrap(err, "postgres: max participant number")
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(notes), COUNT(age), COUNT(elapsed_time), COUNT(completion_count), COUNT(original_name) FROM hall_of_fame_entries`,
	).Scan(&st.Total, &st.WithNotes, &st.WithAge, &st.WithElapsedTime, &st.WithCompletionCount, &st.Migrated)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}
	return &st, nil
}

func (s *PostgresStore) ClearEntries(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM hall_of_fame_entries`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: clear entries")
	}
	return tag.RowsAffected(), nil
}
