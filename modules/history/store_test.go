package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poster-studio-server/modules/common/model"
)

func sampleRun() *model.GenerationRun {
	run := model.NewGenerationRun("Diwali family poster", "9:16")
	run.EnhancedPrompt = "warm diyas, family portrait"
	run.Outcome = "target_reached"
	run.AppendImages(
		model.NewPosterImage([]byte{1}, "image/png", 9, 16, model.SourceGenerated),
		model.NewPosterImage([]byte{2}, "image/png", 9, 16, model.SourceEdited),
	)
	run.AppendEvaluation(model.EvaluationResult{Iteration: 0, Score: 9.6})
	return run
}

func TestFromRun(t *testing.T) {
	run := sampleRun()
	final := run.Images()[1]
	rec := FromRun(run, &final)

	assert.Equal(t, run.ID, rec.ID)
	assert.Equal(t, "9:16", rec.AspectRatio)
	assert.Len(t, rec.Posters, 2)
	assert.Equal(t, model.SourceEdited, rec.Posters[1].Source)
	require.NotNil(t, rec.Final)
	assert.Equal(t, final.ID, rec.Final.ID)
	require.Len(t, rec.Evaluations, 1)
	assert.InDelta(t, 9.6, rec.Evaluations[0].Score, 1e-9)
}

func TestStoreSnapshotsAreCopies(t *testing.T) {
	store, err := NewStore(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), FromRun(sampleRun(), nil)))

	first, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	first[0].Prompt = "mutated"
	first[0].Posters[0].ID = "mutated"

	second, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Diwali family poster", second[0].Prompt)
	assert.NotEqual(t, "mutated", second[0].Posters[0].ID)
}

func TestStoreConcurrentAppendKeepsEveryRecord(t *testing.T) {
	store, err := NewStore(context.Background(), nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			run := model.NewGenerationRun(fmt.Sprintf("prompt %d", i), "1:1")
			assert.NoError(t, store.Append(context.Background(), FromRun(run, nil)))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, store.Len())
}

type failingSink struct{}

func (failingSink) Append(ctx context.Context, rec Record) error { return errors.New("disk full") }
func (failingSink) LoadAll(ctx context.Context) ([]Record, error) { return nil, nil }

func TestStoreSinkFailureNotRecorded(t *testing.T) {
	store, err := NewStore(context.Background(), failingSink{})
	require.NoError(t, err)
	assert.Error(t, store.Append(context.Background(), FromRun(sampleRun(), nil)))
	assert.Equal(t, 0, store.Len())
}

func TestFileSinkRoundTripAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	ctx := context.Background()

	store, err := NewStore(ctx, NewFileSink(path))
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, FromRun(sampleRun(), nil)))
	require.NoError(t, store.Append(ctx, FromRun(model.NewGenerationRun("second", "1:1"), nil)))

	reopened, err := NewStore(ctx, NewFileSink(path))
	require.NoError(t, err)
	records, err := reopened.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Diwali family poster", records[0].Prompt)
	assert.Equal(t, "second", records[1].Prompt)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestFileSinkRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not a list"), 0o600))

	_, err := NewStore(context.Background(), NewFileSink(path))
	assert.Error(t, err)
}

type memRows struct {
	rows []Record
}

func (m *memRows) InsertRow(ctx context.Context, table string, row any) error {
	m.rows = append(m.rows, row.(Record))
	return nil
}

func (m *memRows) SelectAll(ctx context.Context, table string, out any) error {
	*(out.(*[]Record)) = append([]Record(nil), m.rows...)
	return nil
}

func TestSupabaseSinkOrdersByTimestamp(t *testing.T) {
	rows := &memRows{}
	sink := NewSupabaseSink(rows)
	ctx := context.Background()

	older := FromRun(model.NewGenerationRun("older", "1:1"), nil)
	newer := FromRun(model.NewGenerationRun("newer", "1:1"), nil)
	newer.Timestamp = older.Timestamp.Add(time.Minute)
	require.NoError(t, sink.Append(ctx, newer))
	require.NoError(t, sink.Append(ctx, older))

	records, err := sink.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "older", records[0].Prompt)
	assert.Equal(t, "newer", records[1].Prompt)
}
