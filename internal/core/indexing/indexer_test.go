package indexing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cureat/cureat/internal/core/catalog"
	"github.com/cureat/cureat/internal/core/embedding"
	"github.com/cureat/cureat/internal/core/vectorstore"
)

type stubEmbedder struct {
	vector      []float32
	err         error
	texts       []string
	invalidated []string
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.texts = append(e.texts, text)
	if e.err != nil {
		return nil, e.err
	}
	return e.vector, nil
}

func (e *stubEmbedder) Invalidate(text string) {
	e.invalidated = append(e.invalidated, text)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{AddSource: false}))
}

func seedCatalog(t *testing.T) (*catalog.MemoryRepository, *catalog.Restaurant) {
	t.Helper()
	repo := catalog.NewMemoryRepository()
	rest, err := repo.CreateRestaurant(context.Background(), &catalog.Restaurant{
		Name: "성수 파스타",
		Summary: catalog.RestaurantSummary{
			Description: mo.Some("분위기가 좋은 식당"),
		},
	})
	require.NoError(t, err)
	return repo, rest
}

func TestIndexer_IndexRestaurant(t *testing.T) {
	repo, rest := seedCatalog(t)
	store, err := vectorstore.NewMemoryStore(3)
	require.NoError(t, err)
	embedder := &stubEmbedder{vector: []float32{1, 0, 0}}

	ix := NewIndexer(repo, embedder, store, WithIndexerLogger(testLogger()))
	outcome, err := ix.IndexRestaurant(context.Background(), rest.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIndexed, outcome)
	assert.Equal(t, []string{"성수 파스타 분위기 좋다 식당"}, embedder.texts)

	got, err := store.Get(context.Background(), rest.ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, got)
}

func TestIndexer_UnavailableKeepsPreviousVector(t *testing.T) {
	repo, rest := seedCatalog(t)
	store, err := vectorstore.NewMemoryStore(3)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(context.Background(), rest.ID, []float32{0, 1, 0}))

	embedder := &stubEmbedder{err: fmt.Errorf("%w: down", embedding.ErrUnavailable)}
	ix := NewIndexer(repo, embedder, store, WithIndexerLogger(testLogger()))

	outcome, err := ix.IndexRestaurant(context.Background(), rest.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)

	got, err := store.Get(context.Background(), rest.ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0}, got)
}

func TestIndexer_DimensionMismatchIsReported(t *testing.T) {
	repo, rest := seedCatalog(t)
	store, err := vectorstore.NewMemoryStore(4)
	require.NoError(t, err)

	ix := NewIndexer(repo, &stubEmbedder{vector: []float32{1, 0, 0}}, store, WithIndexerLogger(testLogger()))
	_, err = ix.IndexRestaurant(context.Background(), rest.ID)
	assert.True(t, errors.Is(err, vectorstore.ErrDimensionMismatch))
}

func TestIndexer_RemovedRestaurantDeletesVector(t *testing.T) {
	repo := catalog.NewMemoryRepository()
	store, err := vectorstore.NewMemoryStore(1)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(context.Background(), 42, []float32{1}))

	ix := NewIndexer(repo, &stubEmbedder{vector: []float32{1}}, store, WithIndexerLogger(testLogger()))
	outcome, err := ix.IndexRestaurant(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRemoved, outcome)

	_, err = store.Get(context.Background(), 42)
	assert.ErrorIs(t, err, vectorstore.ErrNotFound)
}

func TestIndexer_EmptySummaryDeletesStaleVector(t *testing.T) {
	repo := catalog.NewMemoryRepository()
	rest, err := repo.CreateRestaurant(context.Background(), &catalog.Restaurant{Name: "A1"})
	require.NoError(t, err)
	store, err := vectorstore.NewMemoryStore(2)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(context.Background(), rest.ID, []float32{1, 1}))

	embedder := &stubEmbedder{vector: []float32{1, 0}}
	ix := NewIndexer(repo, embedder, store, WithIndexerLogger(testLogger()))
	outcome, err := ix.IndexRestaurant(context.Background(), rest.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRemoved, outcome)
	assert.Empty(t, embedder.texts)

	_, err = store.Get(context.Background(), rest.ID)
	assert.ErrorIs(t, err, vectorstore.ErrNotFound)
}

func TestIndexer_ReindexAll(t *testing.T) {
	repo, _ := seedCatalog(t)
	_, err := repo.CreateRestaurant(context.Background(), &catalog.Restaurant{Name: "A"})
	require.NoError(t, err)

	store, err := vectorstore.NewMemoryStore(2)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(context.Background(), 999, []float32{1, 1}))

	ix := NewIndexer(repo, &stubEmbedder{vector: []float32{1, 0}}, store, WithIndexerLogger(testLogger()))
	report, err := ix.ReindexAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Indexed)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 2, report.Removed)
	assert.Equal(t, 0, report.Failed)
}

func TestIndexer_HandleSummaryChangeInvalidatesCache(t *testing.T) {
	repo, rest := seedCatalog(t)
	store, err := vectorstore.NewMemoryStore(3)
	require.NoError(t, err)
	embedder := &stubEmbedder{vector: []float32{0, 0, 1}}

	ix := NewIndexer(repo, embedder, store, WithIndexerLogger(testLogger()))
	require.NoError(t, ix.NotifySummaryChanged(context.Background(), catalog.SummaryChange{
		RestaurantID: rest.ID,
		PreviousText: "성수 파스타\n조용한 카페",
	}))

	assert.Equal(t, []string{"성수 파스타 조용 카페"}, embedder.invalidated)
	got, err := store.Get(context.Background(), rest.ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 1}, got)
}
