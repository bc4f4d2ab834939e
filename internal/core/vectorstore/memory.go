package vectorstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore はプロセス内のベクトルストア。
// IDごとに不変のスライスを丸ごと差し替えるため、読み取りはロックを取らない。
type MemoryStore struct {
	dimension int
	vectors   sync.Map // int64 -> []float32
}

// NewMemoryStore は指定次元の MemoryStore を作成する
func NewMemoryStore(dimension int) (*MemoryStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive: %d", dimension)
	}
	return &MemoryStore{dimension: dimension}, nil
}

func (s *MemoryStore) Dimension() int {
	return s.dimension
}

func (s *MemoryStore) Upsert(ctx context.Context, id int64, vector []float32) error {
	if err := CheckDimension(s.dimension, vector); err != nil {
		return err
	}
	s.vectors.Store(id, slices.Clone(vector))
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) ([]float32, error) {
	v, ok := s.vectors.Load(id)
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v.([]float32)), nil
}

func (s *MemoryStore) All(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	s.vectors.Range(func(key, value any) bool {
		if err := ctx.Err(); err != nil {
			return false
		}
		entries = append(entries, Entry{ID: key.(int64), Vector: slices.Clone(value.([]float32))})
		return true
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	return entries, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.vectors.Delete(id)
	return nil
}

// Len は保存件数を返す
func (s *MemoryStore) Len() int {
	n := 0
	s.vectors.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

var _ Store = (*MemoryStore)(nil)
