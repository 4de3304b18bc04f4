package backfill

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nolasoft/hoftrack/internal/extract"
	"github.com/nolasoft/hoftrack/internal/model"
	"github.com/nolasoft/hoftrack/internal/store"
)

// fakeStore is a map-backed Store that enforces the original_name guard the
// way the real stores do. Write failures can be injected per row id.
type fakeStore struct {
	entries    map[string]*model.Entry
	failWrites map[string]error
	applies    int
	reverts    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entries:    make(map[string]*model.Entry),
		failWrites: make(map[string]error),
	}
}

func (f *fakeStore) add(num int, name string) string {
	id := uuid.NewString()
	f.entries[id] = &model.Entry{
		ID:                id,
		ParticipantNumber: num,
		Name:              name,
		DateStr:           "5/11/25",
		ParsedDate:        model.ParseLeaderboardDate("5/11/25"),
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
	return id
}

func (f *fakeStore) list(migrated bool) []model.Entry {
	var out []model.Entry
	for _, e := range f.entries {
		if (e.OriginalName != nil) == migrated {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ParticipantNumber > out[j].ParticipantNumber
	})
	return out
}

func (f *fakeStore) ListUnmigrated(context.Context) ([]model.Entry, error) {
	return f.list(false), nil
}

func (f *fakeStore) ListMigrated(context.Context) ([]model.Entry, error) {
	return f.list(true), nil
}

func (f *fakeStore) ApplyBackfill(_ context.Context, id, cleanName string, s model.Structured) error {
	if err := f.failWrites[id]; err != nil {
		return err
	}
	e, ok := f.entries[id]
	if !ok || e.OriginalName != nil {
		return eris.New("store: entry already migrated or missing")
	}
	orig := e.Name
	e.OriginalName = &orig
	e.Name = cleanName
	e.Structured = s
	e.UpdatedAt = time.Now().UTC()
	f.applies++
	return nil
}

func (f *fakeStore) RevertBackfill(_ context.Context, id string) error {
	if err := f.failWrites[id]; err != nil {
		return err
	}
	e, ok := f.entries[id]
	if !ok || e.OriginalName == nil {
		return eris.New("store: entry not migrated or missing")
	}
	// The backup column stays populated; only the working fields revert.
	e.Name = *e.OriginalName
	e.Structured = model.Structured{}
	e.UpdatedAt = time.Now().UTC()
	f.reverts++
	return nil
}

func (f *fakeStore) GetEntry(context.Context, int) (*model.Entry, error) { return nil, nil }
func (f *fakeStore) InsertEntry(context.Context, *model.Entry) error     { return nil }
func (f *fakeStore) UpdateEntry(context.Context, *model.Entry) error     { return nil }
func (f *fakeStore) ListEntries(context.Context) ([]model.Entry, error)  { return nil, nil }
func (f *fakeStore) MaxParticipantNumber(context.Context) (int, error)   { return 0, nil }
func (f *fakeStore) Stats(context.Context) (*store.Stats, error)         { return &store.Stats{}, nil }
func (f *fakeStore) ClearEntries(context.Context) (int64, error)         { return 0, nil }
func (f *fakeStore) Migrate(context.Context) error                       { return nil }
func (f *fakeStore) Close() error                                        { return nil }

func seed(fs *fakeStore) {
	fs.add(1, "PHILLIP YERO, 2ND TIME")
	fs.add(2, "JILL SMITH 11 YRS 5 MONTHS 21 DAYS OLD")
	fs.add(3, "STEVEN HAMMOND 7 MINUTES")
	fs.add(4, "JANE SMITH")
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"preview", "migrate", "verify", "rollback"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, Mode(s), m)
	}
	_, err := ParseMode("dry-run")
	assert.Error(t, err)

	assert.False(t, ModePreview.Mutates())
	assert.False(t, ModeVerify.Mutates())
	assert.True(t, ModeMigrate.Mutates())
	assert.True(t, ModeRollback.Mutates())
}

func TestPreviewCountsWithoutWriting(t *testing.T) {
	fs := newFakeStore()
	seed(fs)

	run, err := NewRunner(fs, 10).Execute(context.Background(), ModePreview)
	require.NoError(t, err)

	assert.Equal(t, 4, run.Scanned)
	assert.Equal(t, 3, run.Changed, "three rows carry extractable text")
	assert.Equal(t, 1, run.Skipped, "plain name has nothing to extract")
	assert.Zero(t, run.Failed)
	assert.Len(t, run.Samples, 3)
	assert.Zero(t, fs.applies, "preview must not write")
	for _, e := range fs.entries {
		assert.Nil(t, e.OriginalName)
	}
}

func TestPreviewSampleLimit(t *testing.T) {
	fs := newFakeStore()
	for i := 1; i <= 8; i++ {
		fs.add(i, "SOMEONE ELSE, 3RD TIME")
	}

	run, err := NewRunner(fs, 2).Execute(context.Background(), ModePreview)
	require.NoError(t, err)
	assert.Equal(t, 8, run.Changed)
	assert.Len(t, run.Samples, 2)
}

func TestMigrateStampsEveryRow(t *testing.T) {
	fs := newFakeStore()
	seed(fs)

	run, err := NewRunner(fs, 10).Execute(context.Background(), ModeMigrate)
	require.NoError(t, err)

	assert.Equal(t, 4, run.Scanned)
	assert.Equal(t, 3, run.Changed)
	assert.Equal(t, 1, run.Skipped)
	assert.Zero(t, run.Failed)
	assert.Equal(t, 4, fs.applies, "unchanged rows still get the backup stamp")

	for _, e := range fs.entries {
		require.NotNil(t, e.OriginalName)
		switch e.ParticipantNumber {
		case 1:
			assert.Equal(t, "PHILLIP YERO", e.Name)
			require.NotNil(t, e.CompletionCount)
			assert.Equal(t, 2, *e.CompletionCount)
		case 3:
			assert.Equal(t, "STEVEN HAMMOND", e.Name)
			require.NotNil(t, e.ElapsedTimeSecs)
			assert.Equal(t, 420, *e.ElapsedTimeSecs)
		case 4:
			assert.Equal(t, "JANE SMITH", e.Name)
			assert.Zero(t, e.Structured.NumericCount())
		}
	}
}

func TestMigrateTwiceIsNoOp(t *testing.T) {
	fs := newFakeStore()
	seed(fs)
	r := NewRunner(fs, 10)
	ctx := context.Background()

	_, err := r.Execute(ctx, ModeMigrate)
	require.NoError(t, err)

	second, err := r.Execute(ctx, ModeMigrate)
	require.NoError(t, err)
	assert.Zero(t, second.Scanned, "already-migrated rows are not eligible")
	assert.Zero(t, second.Failed)
	assert.Equal(t, 4, fs.applies)
}

func TestMigrateRowFailureContinues(t *testing.T) {
	fs := newFakeStore()
	seed(fs)
	var firstID string
	for id, e := range fs.entries {
		if e.ParticipantNumber == 4 {
			firstID = id
		}
	}
	fs.failWrites[firstID] = eris.New("store: connection reset")

	run, err := NewRunner(fs, 10).Execute(context.Background(), ModeMigrate)
	require.NoError(t, err)

	assert.Equal(t, 4, run.Scanned)
	assert.Equal(t, 1, run.Failed)
	require.Len(t, run.Failures, 1)
	assert.Equal(t, 4, run.Failures[0].ParticipantNumber)
	assert.Equal(t, 3, fs.applies, "other rows proceed past the failure")
}

func TestVerifyCleanTable(t *testing.T) {
	fs := newFakeStore()
	seed(fs)
	ctx := context.Background()
	r := NewRunner(fs, 10)

	_, err := r.Execute(ctx, ModeMigrate)
	require.NoError(t, err)

	run, err := r.Execute(ctx, ModeVerify)
	require.NoError(t, err)
	assert.Equal(t, 4, run.Scanned)
	assert.Zero(t, run.Mismatched)
	assert.Equal(t, 4, run.Skipped)
	assert.Empty(t, run.Samples)
}

func TestVerifyFlagsDrift(t *testing.T) {
	fs := newFakeStore()
	seed(fs)
	ctx := context.Background()
	r := NewRunner(fs, 10)

	_, err := r.Execute(ctx, ModeMigrate)
	require.NoError(t, err)

	// Corrupt one migrated row out from under the runner.
	for _, e := range fs.entries {
		if e.ParticipantNumber == 3 {
			e.Name = "SOMEBODY ELSE"
			e.ElapsedTimeSecs = nil
		}
	}

	run, err := r.Execute(ctx, ModeVerify)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Mismatched)
	assert.Equal(t, 3, run.Skipped)
	require.Len(t, run.Samples, 1)
	s := run.Samples[0]
	assert.Equal(t, 3, s.ParticipantNumber)
	assert.Equal(t, "STEVEN HAMMOND 7 MINUTES", s.Original)
	assert.Equal(t, "STEVEN HAMMOND", s.CleanName)
	assert.Equal(t, "SOMEBODY ELSE", s.StoredName)
	require.NotNil(t, s.StoredExtracted)
	assert.Nil(t, s.StoredExtracted.ElapsedTimeSecs)
}

func TestRollbackRestoresOriginals(t *testing.T) {
	fs := newFakeStore()
	seed(fs)
	ctx := context.Background()
	r := NewRunner(fs, 10)

	_, err := r.Execute(ctx, ModeMigrate)
	require.NoError(t, err)

	run, err := r.Execute(ctx, ModeRollback)
	require.NoError(t, err)
	assert.Equal(t, 4, run.Scanned)
	assert.Equal(t, 4, run.Changed)
	assert.Zero(t, run.Failed)

	names := make(map[int]string)
	for _, e := range fs.entries {
		require.NotNil(t, e.OriginalName, "the backup column survives rollback")
		assert.Zero(t, e.Structured.NumericCount())
		names[e.ParticipantNumber] = e.Name
	}
	assert.Equal(t, "PHILLIP YERO, 2ND TIME", names[1])
	assert.Equal(t, "STEVEN HAMMOND 7 MINUTES", names[3])
}

func TestMigrateAfterRollbackIsNoOp(t *testing.T) {
	fs := newFakeStore()
	seed(fs)
	ctx := context.Background()
	r := NewRunner(fs, 10)

	for _, mode := range []Mode{ModeMigrate, ModeRollback} {
		_, err := r.Execute(ctx, mode)
		require.NoError(t, err)
	}

	// original_name is still set, so no rows are eligible again.
	run, err := r.Execute(ctx, ModeMigrate)
	require.NoError(t, err)
	assert.Zero(t, run.Scanned)
	assert.Equal(t, 4, fs.applies)
	for _, e := range fs.entries {
		assert.Equal(t, *e.OriginalName, e.Name, "rolled-back rows keep their raw names")
	}
}

func TestWouldChange(t *testing.T) {
	row := model.Entry{Name: "JANE SMITH"}
	assert.False(t, wouldChange(row, extract.Pattern("JANE SMITH")))
	assert.True(t, wouldChange(row, extract.Pattern("JANE SMITH, 4TH TIME")))
}
