package ranking

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cureat/cureat/internal/core/vectorstore"
)

func TestRank_SelfSimilarityIsOne(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		v := make([]float32, 16)
		for j := range v {
			v[j] = r.Float32()*2 - 1
		}
		got, err := Rank(v, []vectorstore.Entry{{ID: 9, Vector: v}}, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(9), got[0].ID)
		assert.InDelta(t, 1.0, got[0].Score, 1e-12)
	}
}

func TestRank_OrthogonalIsZero(t *testing.T) {
	got, err := Rank([]float32{1, 0, 0}, []vectorstore.Entry{
		{ID: 1, Vector: []float32{0, 3, 0}},
		{ID: 2, Vector: []float32{0, 0, -2}},
	}, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0.0, got[0].Score)
	assert.Equal(t, 0.0, got[1].Score)
}

func TestRank_TiesOrderedByAscendingID(t *testing.T) {
	v := []float32{0.5, 0.5}
	got, err := Rank(v, []vectorstore.Entry{
		{ID: 30, Vector: v},
		{ID: 10, Vector: v},
		{ID: 20, Vector: v},
	}, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{10, 20, 30}, []int64{got[0].ID, got[1].ID, got[2].ID})
}

func TestRank_TruncatesAndSortsDescending(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	query := []float32{1, 2, 3, 4}
	var candidates []vectorstore.Entry
	for i := 0; i < 40; i++ {
		v := make([]float32, 4)
		for j := range v {
			v[j] = r.Float32()*2 - 1
		}
		candidates = append(candidates, vectorstore.Entry{ID: int64(i), Vector: v})
	}

	got, err := Rank(query, candidates, 7)
	require.NoError(t, err)
	assert.Len(t, got, 7)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func TestRank_SkipsMismatchedDimension(t *testing.T) {
	got, err := Rank([]float32{1, 0}, []vectorstore.Entry{
		{ID: 1, Vector: []float32{1, 0, 0}},
		{ID: 2, Vector: []float32{1, 0}},
		{ID: 3, Vector: nil},
	}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)
}

func TestRank_ZeroNormScoresZero(t *testing.T) {
	got, err := Rank([]float32{0, 0}, []vectorstore.Entry{{ID: 1, Vector: []float32{1, 1}}}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.0, got[0].Score)

	got, err = Rank([]float32{1, 1}, []vectorstore.Entry{{ID: 1, Vector: []float32{0, 0}}}, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got[0].Score)
}

func TestRank_InvalidTopK(t *testing.T) {
	for _, k := range []int{0, -1} {
		_, err := Rank([]float32{1}, nil, k)
		assert.ErrorIs(t, err, ErrInvalidTopK)
	}
}

func TestRank_EmptyCandidates(t *testing.T) {
	got, err := Rank([]float32{1}, nil, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRank_OppositeIsMinusOne(t *testing.T) {
	got, err := Rank([]float32{1, 2}, []vectorstore.Entry{{ID: 1, Vector: []float32{-2, -4}}}, 1)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, got[0].Score, 1e-12)
	assert.GreaterOrEqual(t, got[0].Score, -1.0)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{3, 4}, []float32{6, 8}), 1e-12)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 2}))
}
