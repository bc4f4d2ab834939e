package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransactionProvider はトランザクション内で使うリポジトリをコールバックに渡す
type TransactionProvider struct {
	pool *pgxpool.Pool
	opts pgx.TxOptions
}

// NewTransactionProvider は新しいTransactionProviderを作成します
func NewTransactionProvider(pool *pgxpool.Pool) *TransactionProvider {
	return &TransactionProvider{pool: pool}
}

// Adapter は1つのトランザクションに束ねられたリポジトリ
type Adapter struct {
	Catalog *CatalogRepository
}

// Transact はトランザクションを開始し、fn が成功したらコミットする。
// fn がエラーを返した場合やパニックした場合はロールバックされる。
func Transact[T any](ctx context.Context, p *TransactionProvider, fn func(*Adapter) (T, error)) (T, error) {
	var zero T
	tx, err := p.pool.BeginTx(ctx, p.opts)
	if err != nil {
		return zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	// コミット後の Rollback は ErrTxClosed を返すだけなので無視してよい
	defer func() { _ = tx.Rollback(ctx) }()

	result, err := fn(&Adapter{Catalog: NewCatalogRepository(tx)})
	if err != nil {
		return zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return zero, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}
