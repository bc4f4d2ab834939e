// Package indexing はレストラン要約を埋め込みベクトルに変換してベクトルストアへ書き込む。
package indexing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cureat/cureat/internal/core/catalog"
	"github.com/cureat/cureat/internal/core/embedding"
	"github.com/cureat/cureat/internal/core/normalize"
	"github.com/cureat/cureat/internal/core/vectorstore"
)

// Embedder はテキストをベクトルに変換する
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Invalidate(text string)
}

// RestaurantSource はインデックス対象のレストランを読み出す
type RestaurantSource interface {
	GetRestaurant(ctx context.Context, id int64) (*catalog.Restaurant, error)
	ListRestaurants(ctx context.Context) ([]*catalog.Restaurant, error)
}

// Outcome は1件のインデックス処理の結果
type Outcome string

const (
	OutcomeIndexed Outcome = "indexed"
	OutcomeSkipped Outcome = "skipped"
	OutcomeRemoved Outcome = "removed"
)

// Report は一括再インデックスの集計
type Report struct {
	Indexed int
	Skipped int
	Removed int
	Failed  int
}

// Indexer はレストランの要約テキストをベクトル化して保存する
type Indexer struct {
	source     RestaurantSource
	embedder   Embedder
	store      vectorstore.Store
	normalizer *normalize.Normalizer
	logger     *slog.Logger
}

type IndexerOption func(*Indexer)

// WithIndexerLogger は Indexer にロガーを設定する
func WithIndexerLogger(logger *slog.Logger) IndexerOption {
	return func(ix *Indexer) {
		ix.logger = logger
	}
}

// WithIndexerNormalizer は正規化器を差し替える
func WithIndexerNormalizer(n *normalize.Normalizer) IndexerOption {
	return func(ix *Indexer) {
		ix.normalizer = n
	}
}

// NewIndexer は新しい Indexer を作成する
func NewIndexer(source RestaurantSource, embedder Embedder, store vectorstore.Store, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		source:     source,
		embedder:   embedder,
		store:      store,
		normalizer: normalize.New(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.logger == nil {
		ix.logger = slog.Default()
	}
	return ix
}

// IndexRestaurant は1件のレストランを再ベクトル化する。
// 埋め込みが使えない場合は既存ベクトルを残したまま OutcomeSkipped を返す。
// レストランが消えたか要約に内容語がない場合はベクトルを削除して OutcomeRemoved を返す。
func (ix *Indexer) IndexRestaurant(ctx context.Context, id int64) (Outcome, error) {
	restaurant, err := ix.source.GetRestaurant(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		if err := ix.store.Delete(ctx, id); err != nil {
			return "", fmt.Errorf("failed to delete vector for removed restaurant %d: %w", id, err)
		}
		return OutcomeRemoved, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load restaurant %d: %w", id, err)
	}
	return ix.index(ctx, restaurant)
}

func (ix *Indexer) index(ctx context.Context, restaurant *catalog.Restaurant) (Outcome, error) {
	text := ix.normalizer.Normalize(restaurant.EmbeddingText())
	if text == "" {
		// 古いベクトルが残ると要約と無関係な推薦が出るので削除する
		if err := ix.store.Delete(ctx, restaurant.ID); err != nil {
			return "", fmt.Errorf("failed to delete vector for restaurant %d: %w", restaurant.ID, err)
		}
		ix.logger.Warn("restaurant summary has no indexable tokens, vector removed", "restaurantID", restaurant.ID)
		return OutcomeRemoved, nil
	}

	vector, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, embedding.ErrUnavailable) {
			ix.logger.Warn("embedding unavailable, keeping previous vector",
				"restaurantID", restaurant.ID,
				"error", err,
			)
			return OutcomeSkipped, nil
		}
		return "", fmt.Errorf("failed to embed restaurant %d: %w", restaurant.ID, err)
	}

	if err := ix.store.Upsert(ctx, restaurant.ID, vector); err != nil {
		if errors.Is(err, vectorstore.ErrDimensionMismatch) {
			ix.logger.Error("vector store dimension misconfigured",
				"restaurantID", restaurant.ID,
				"error", err,
			)
		}
		return "", fmt.Errorf("failed to store vector for restaurant %d: %w", restaurant.ID, err)
	}

	ix.logger.Debug("restaurant indexed", "restaurantID", restaurant.ID, "tokens", text)
	return OutcomeIndexed, nil
}

// ReindexAll は全レストランを再ベクトル化する。個別の失敗は集計して処理を続ける。
func (ix *Indexer) ReindexAll(ctx context.Context) (*Report, error) {
	restaurants, err := ix.source.ListRestaurants(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurants: %w", err)
	}

	report := &Report{}
	known := make(map[int64]struct{}, len(restaurants))
	for _, r := range restaurants {
		known[r.ID] = struct{}{}
	}

	// カタログから消えたレストランのベクトルを削除
	entries, err := ix.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored vectors: %w", err)
	}
	for _, e := range entries {
		if _, ok := known[e.ID]; ok {
			continue
		}
		if err := ix.store.Delete(ctx, e.ID); err != nil {
			report.Failed++
			ix.logger.Error("failed to delete orphaned vector", "restaurantID", e.ID, "error", err)
			continue
		}
		report.Removed++
	}

	for _, r := range restaurants {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		outcome, err := ix.index(ctx, r)
		if err != nil {
			report.Failed++
			ix.logger.Error("failed to index restaurant", "restaurantID", r.ID, "error", err)
			continue
		}
		switch outcome {
		case OutcomeIndexed:
			report.Indexed++
		case OutcomeSkipped:
			report.Skipped++
		case OutcomeRemoved:
			report.Removed++
		}
	}

	ix.logger.Info("reindex completed",
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"removed", report.Removed,
		"failed", report.Failed,
	)
	return report, nil
}

// NotifySummaryChanged は要約更新を同一プロセス内で即時に反映する
func (ix *Indexer) NotifySummaryChanged(ctx context.Context, change catalog.SummaryChange) error {
	ix.HandleSummaryChange(ctx, change)
	return nil
}

// HandleSummaryChange は古い要約のキャッシュを破棄して再インデックスする
func (ix *Indexer) HandleSummaryChange(ctx context.Context, change catalog.SummaryChange) {
	if change.PreviousText != "" {
		ix.embedder.Invalidate(ix.normalizer.Normalize(change.PreviousText))
	}
	outcome, err := ix.IndexRestaurant(ctx, change.RestaurantID)
	if err != nil {
		ix.logger.Error("failed to reindex changed restaurant",
			"restaurantID", change.RestaurantID,
			"error", err,
		)
		return
	}
	ix.logger.Info("restaurant reindexed after summary change",
		"restaurantID", change.RestaurantID,
		"outcome", string(outcome),
	)
}

var _ catalog.ChangeNotifier = (*Indexer)(nil)
