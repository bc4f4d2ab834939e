package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/cureat/cureat/internal/core/vectorstore"
)

// VectorStore は restaurant_embeddings テーブルを vectorstore.Store として扱う
type VectorStore struct {
	q         Querier
	dimension int
}

// NewVectorStore はテーブルの次元を検証して VectorStore を返す
func NewVectorStore(ctx context.Context, q Querier, dimension int) (*VectorStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension: %d", dimension)
	}
	if err := checkEmbeddingDimension(ctx, q, dimension); err != nil {
		return nil, err
	}
	return &VectorStore{q: q, dimension: dimension}, nil
}

func checkEmbeddingDimension(ctx context.Context, q Querier, dimension int) error {
	query := `
		SELECT a.atttypmod
		FROM pg_attribute a
		WHERE a.attrelid = 'restaurant_embeddings'::regclass
		  AND a.attname = 'embedding'
	`
	var actual int32
	if err := q.QueryRow(ctx, query).Scan(&actual); err != nil {
		return fmt.Errorf("failed to read embedding column: %w", err)
	}
	if int(actual) != dimension {
		return fmt.Errorf("restaurant_embeddings: %w",
			&vectorstore.DimensionMismatchError{Expected: dimension, Actual: int(actual)})
	}
	return nil
}

// Dimension はベクトル次元数を返す
func (s *VectorStore) Dimension() int {
	return s.dimension
}

// Upsert はベクトルを挿入または置換する
func (s *VectorStore) Upsert(ctx context.Context, id int64, vector []float32) error {
	if err := vectorstore.CheckDimension(s.dimension, vector); err != nil {
		return err
	}

	query := `
		INSERT INTO restaurant_embeddings (restaurant_id, embedding)
		VALUES ($1, $2)
		ON CONFLICT (restaurant_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.q.Exec(ctx, query, id, pgvector.NewVector(vector)); err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

// Get は保存済みベクトルを返す
func (s *VectorStore) Get(ctx context.Context, id int64) ([]float32, error) {
	var v pgvector.Vector
	err := s.q.QueryRow(ctx, `SELECT embedding FROM restaurant_embeddings WHERE restaurant_id = $1`, id).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vectorstore.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}
	return v.Slice(), nil
}

// All は全ベクトルをID昇順で返す
func (s *VectorStore) All(ctx context.Context) ([]vectorstore.Entry, error) {
	rows, err := s.q.Query(ctx, `SELECT restaurant_id, embedding FROM restaurant_embeddings ORDER BY restaurant_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}
	return scanEntries(rows)
}

// Search は HNSW インデックスでコサイン距離の近い順に候補を返す
func (s *VectorStore) Search(ctx context.Context, query []float32, limit int) ([]vectorstore.Entry, error) {
	if err := vectorstore.CheckDimension(s.dimension, query); err != nil {
		return nil, err
	}
	rows, err := s.q.Query(ctx, `
		SELECT restaurant_id, embedding
		FROM restaurant_embeddings
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgvector.NewVector(query), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search embeddings: %w", err)
	}
	return scanEntries(rows)
}

// Delete はベクトルを削除する
func (s *VectorStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM restaurant_embeddings WHERE restaurant_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete embedding: %w", err)
	}
	return nil
}

func scanEntries(rows pgx.Rows) ([]vectorstore.Entry, error) {
	defer rows.Close()

	var entries []vectorstore.Entry
	for rows.Next() {
		var (
			id int64
			v  pgvector.Vector
		)
		if err := rows.Scan(&id, &v); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		entries = append(entries, vectorstore.Entry{ID: id, Vector: v.Slice()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate embeddings: %w", err)
	}
	return entries, nil
}

var (
	_ vectorstore.Store    = (*VectorStore)(nil)
	_ vectorstore.Searcher = (*VectorStore)(nil)
)
