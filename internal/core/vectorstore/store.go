// Package vectorstore はレストランIDから埋め込みベクトルへの対応を保持する。
package vectorstore

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound は指定IDのベクトルが存在しない場合のエラー
	ErrNotFound = errors.New("vector not found")

	// ErrDimensionMismatch はベクトル次元がストアの設定と異なる場合のエラー
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// DimensionMismatchError は次元不一致の詳細を保持する
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Is は errors.Is(err, ErrDimensionMismatch) を成立させる
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// Entry はレストランIDとベクトルの組
type Entry struct {
	ID     int64
	Vector []float32
}

// Store はベクトルストアのインターフェース
type Store interface {
	// Dimension はストア作成時に固定された次元を返す
	Dimension() int
	// Upsert はベクトルを挿入または置換する（後勝ち）。次元が異なる場合は書き込まない。
	Upsert(ctx context.Context, id int64, vector []float32) error
	// Get は保存済みベクトルを返す。存在しなければ ErrNotFound。
	Get(ctx context.Context, id int64) ([]float32, error)
	// All は全ベクトルをID昇順で返す
	All(ctx context.Context) ([]Entry, error)
	// Delete はベクトルを削除する。存在しなくてもエラーにしない。
	Delete(ctx context.Context, id int64) error
}

// Searcher は近似最近傍インデックスを持つストアが実装する。
// 結果は候補の絞り込みにのみ使い、スコアは呼び出し側で計算し直す。
type Searcher interface {
	Search(ctx context.Context, query []float32, limit int) ([]Entry, error)
}

// CheckDimension はベクトル長が期待次元と一致するか検証する
func CheckDimension(expected int, vector []float32) error {
	if len(vector) != expected {
		return &DimensionMismatchError{Expected: expected, Actual: len(vector)}
	}
	return nil
}
