package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

var migrateLockID = LockID("cureat", "migrate")

// Migrate はスキーマを作成する。何度実行してもよく、複数インスタンスから同時に呼ばれても
// アドバイザリロックで直列化される。
// dimension は restaurant_embeddings.embedding の次元で、既存テーブルと異なる場合はエラーを返す。
func Migrate(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid embedding dimension: %d", dimension)
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := acquireXactLock(ctx, tx, migrateLockID); err != nil {
		return err
	}

	ddl := strings.ReplaceAll(schemaSQL, "{{DIMENSION}}", strconv.Itoa(dimension))
	if _, err := tx.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	if err := checkEmbeddingDimension(ctx, tx, dimension); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}
