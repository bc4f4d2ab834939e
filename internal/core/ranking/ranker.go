// Package ranking はクエリベクトルと候補ベクトルのコサイン類似度で候補を順位付けする。
package ranking

import (
	"errors"
	"math"
	"sort"

	"github.com/cureat/cureat/internal/core/vectorstore"
)

// ErrInvalidTopK は topK が正でない場合のエラー
var ErrInvalidTopK = errors.New("topK must be positive")

// ScoredCandidate は候補IDと類似度スコア
type ScoredCandidate struct {
	ID    int64
	Score float64
}

// Rank は候補をスコア降順・ID昇順に並べ、上位 topK 件を返す。
// クエリと次元の異なる候補は除外する。
func Rank(query []float32, candidates []vectorstore.Entry, topK int) ([]ScoredCandidate, error) {
	if topK <= 0 {
		return nil, ErrInvalidTopK
	}

	queryNorm := squaredNorm(query)
	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Vector) != len(query) {
			continue
		}
		scored = append(scored, ScoredCandidate{
			ID:    c.ID,
			Score: cosine(query, c.Vector, queryNorm),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID < scored[j].ID
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// CosineSimilarity は2ベクトルのコサイン類似度を返す。
// 次元が異なる場合やどちらかがゼロベクトルの場合は 0。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	return cosine(a, b, squaredNorm(a))
}

func cosine(q, v []float32, qNorm float64) float64 {
	var dot, vNorm float64
	for i := range q {
		x, y := float64(q[i]), float64(v[i])
		dot += x * y
		vNorm += y * y
	}
	if qNorm == 0 || vNorm == 0 {
		return 0
	}
	score := dot / math.Sqrt(qNorm*vNorm)
	if math.IsNaN(score) {
		return 0
	}
	return math.Max(-1, math.Min(1, score))
}

func squaredNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return sum
}
