package vectorstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filled(dim int, v float32) []float32 {
	out := make([]float32, dim)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestMemoryStore_UpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(1536)
	require.NoError(t, err)

	require.NoError(t, store.Upsert(ctx, 7, filled(1536, 0.1)))
	require.NoError(t, store.Upsert(ctx, 7, filled(1536, 0.2)))

	got, err := store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, filled(1536, 0.2), got)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_UpsertRejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(1536)
	require.NoError(t, err)

	err = store.Upsert(ctx, 1, filled(10, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	var dimErr *DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 1536, dimErr.Expected)
	assert.Equal(t, 10, dimErr.Actual)

	_, err = store.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_WrongDimensionKeepsPriorVector(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(3)
	require.NoError(t, err)

	require.NoError(t, store.Upsert(ctx, 1, []float32{1, 2, 3}))
	require.ErrorIs(t, store.Upsert(ctx, 1, []float32{1, 2}), ErrDimensionMismatch)

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, got)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(2)
	require.NoError(t, err)

	in := []float32{1, 2}
	require.NoError(t, store.Upsert(ctx, 1, in))
	in[0] = 99

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	got[1] = 99

	again, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, again)
}

func TestMemoryStore_AllSortedByID(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(1)
	require.NoError(t, err)

	for _, id := range []int64{5, 1, 3} {
		require.NoError(t, store.Upsert(ctx, id, []float32{float32(id)}))
	}

	entries, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(1), entries[0].ID)
	assert.Equal(t, int64(3), entries[1].ID)
	assert.Equal(t, int64(5), entries[2].ID)
	assert.Equal(t, []float32{5}, entries[2].Vector)
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(1)
	require.NoError(t, err)

	require.NoError(t, store.Upsert(ctx, 1, []float32{1}))
	require.NoError(t, store.Delete(ctx, 1))
	require.NoError(t, store.Delete(ctx, 1))

	_, err = store.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ConcurrentReadersSeeWholeVectors(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(64)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, 1, filled(64, 0)))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = store.Upsert(ctx, 1, filled(64, float32(w*1000+i)))
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				v, err := store.Get(ctx, 1)
				if !assert.NoError(t, err) {
					return
				}
				for _, x := range v {
					if !assert.Equal(t, v[0], x) {
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}

func TestNewMemoryStore_RejectsNonPositiveDimension(t *testing.T) {
	_, err := NewMemoryStore(0)
	assert.Error(t, err)
}
