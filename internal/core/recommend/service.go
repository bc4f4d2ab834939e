// Package recommend は自由文の要求からレストランを推薦する。
package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/cureat/cureat/internal/core/catalog"
	"github.com/cureat/cureat/internal/core/normalize"
	"github.com/cureat/cureat/internal/core/ranking"
	"github.com/cureat/cureat/internal/core/vectorstore"
)

// ErrInvalidTopK は topK が正でない場合のエラー
var ErrInvalidTopK = ranking.ErrInvalidTopK

// ErrMisconfigured は埋め込み次元とストア次元が一致しない設定ミス
var ErrMisconfigured = errors.New("recommendation pipeline misconfigured")

// DefaultOversample は近似検索で topK の何倍の候補を取るか
const DefaultOversample = 4

// Embedder はテキストをベクトルに変換する。失敗はすべて縮退扱い。
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Catalog はIDからレストランの表示用レコードを引く
type Catalog interface {
	GetRestaurantsByIDs(ctx context.Context, ids []int64) ([]*catalog.Restaurant, error)
}

// SearchRecorder は検索履歴を記録する
type SearchRecorder interface {
	RecordSearch(ctx context.Context, userID int64, query string) (*catalog.SearchLog, error)
}

// UserSource は利用者の関心事を引く
type UserSource interface {
	GetUser(ctx context.Context, id int64) (*catalog.User, error)
}

// LLMClient はLLM通信インターフェース
type LLMClient interface {
	GenerateCompletion(ctx context.Context, prompt string) (string, error)
}

// Recorder は推薦結果とレイテンシを記録する
type Recorder interface {
	ObserveRecommendation(outcome Outcome, latency time.Duration)
}

// RecommendService は Normalizer → Embedder → VectorStore → Ranker を組み合わせて推薦する
type RecommendService struct {
	embedder   Embedder
	store      vectorstore.Store
	catalog    Catalog
	normalizer *normalize.Normalizer
	llm        LLMClient
	searches   SearchRecorder
	users      UserSource
	recorder   Recorder
	oversample int
	logger     *slog.Logger
}

type RecommendServiceOption func(*RecommendService)

// WithRecommendLogger は RecommendService にロガーを設定する
func WithRecommendLogger(logger *slog.Logger) RecommendServiceOption {
	return func(s *RecommendService) {
		s.logger = logger
	}
}

// WithLLMClient は推薦文の生成にLLMを使う
func WithLLMClient(llm LLMClient) RecommendServiceOption {
	return func(s *RecommendService) {
		s.llm = llm
	}
}

// WithSearchRecorder は利用者IDがある場合に検索履歴を記録する
func WithSearchRecorder(recorder SearchRecorder) RecommendServiceOption {
	return func(s *RecommendService) {
		s.searches = recorder
	}
}

// WithUserSource は利用者の関心事による推薦を有効にする
func WithUserSource(users UserSource) RecommendServiceOption {
	return func(s *RecommendService) {
		s.users = users
	}
}

// WithRecommendRecorder はメトリクス記録先を設定する
func WithRecommendRecorder(recorder Recorder) RecommendServiceOption {
	return func(s *RecommendService) {
		s.recorder = recorder
	}
}

// WithNormalizer は正規化器を差し替える
func WithNormalizer(n *normalize.Normalizer) RecommendServiceOption {
	return func(s *RecommendService) {
		s.normalizer = n
	}
}

// WithOversample は近似検索時の候補倍率を設定する
func WithOversample(factor int) RecommendServiceOption {
	return func(s *RecommendService) {
		s.oversample = factor
	}
}

// NewRecommendService は新しい RecommendService を作成する
func NewRecommendService(
	embedder Embedder,
	store vectorstore.Store,
	restaurants Catalog,
	opts ...RecommendServiceOption,
) *RecommendService {
	svc := &RecommendService{
		embedder:   embedder,
		store:      store,
		catalog:    restaurants,
		normalizer: normalize.New(),
		oversample: DefaultOversample,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.oversample < 1 {
		svc.oversample = 1
	}

	return svc
}

// Recommend は要求文に近いレストランを最大 TopK 件返す。
// 埋め込み・ストア・カタログの障害は縮退応答として返し、エラーにはしない。
// エラーになるのは TopK の不正と設定ミスのみ。
func (s *RecommendService) Recommend(ctx context.Context, params RecommendParams) (*RecommendationResult, error) {
	start := time.Now()

	// 1. バリデーション
	if params.TopK <= 0 {
		return nil, ErrInvalidTopK
	}

	requestID := uuid.NewString()
	logger := s.logger.With("requestID", requestID)

	// 2. 検索履歴（失敗しても推薦は続ける）
	s.recordSearch(ctx, logger, params)

	// 3. 正規化と埋め込み
	text := s.normalizer.Normalize(params.Prompt)
	if text == "" {
		logger.Info("prompt has no indexable tokens", "prompt", params.Prompt)
		return s.degraded(requestID, MessageEmptyQuery, OutcomeEmptyQuery, start), nil
	}

	query, err := s.embedder.Embed(ctx, text)
	if err != nil {
		logger.Warn("embedding unavailable, returning degraded result", "error", err)
		return s.degraded(requestID, MessageUnavailable, OutcomeEmbeddingDegraded, start), nil
	}
	if dim := s.store.Dimension(); len(query) != dim {
		err := &vectorstore.DimensionMismatchError{Expected: dim, Actual: len(query)}
		logger.Error("query vector does not match store dimension", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrMisconfigured, err)
	}

	// 4. 候補取得
	candidates, err := s.candidates(ctx, query, params.TopK)
	if err != nil {
		logger.Error("failed to read vector store, returning degraded result", "error", err)
		return s.degraded(requestID, MessageUnavailable, OutcomeStoreDegraded, start), nil
	}

	// 5. 順位付け
	ranked, err := ranking.Rank(query, candidates, params.TopK)
	if err != nil {
		return nil, err
	}

	// 6. 表示用レコードへの変換（カタログにないIDは捨てる）
	restaurants, err := s.hydrate(ctx, ranked)
	if err != nil {
		logger.Error("failed to load restaurants, returning degraded result", "error", err)
		return s.degraded(requestID, MessageUnavailable, OutcomeCatalogDegraded, start), nil
	}

	if len(restaurants) == 0 {
		s.observe(OutcomeNoMatch, start)
		return &RecommendationResult{
			RequestID:   requestID,
			Answer:      MessageNoMatch,
			Restaurants: []ScoredRestaurant{},
		}, nil
	}

	// 7. 回答生成
	answer := s.answer(ctx, logger, params.Prompt, restaurants)

	logger.Info("recommendation completed",
		"candidates", len(candidates),
		"restaurants", len(restaurants),
		"elapsed", time.Since(start).String(),
	)
	s.observe(OutcomeOK, start)

	return &RecommendationResult{
		RequestID:   requestID,
		Answer:      answer,
		Restaurants: restaurants,
	}, nil
}

// RecommendForUser は利用者の登録済み関心事を要求文として推薦する。
// 関心事が未登録なら空の縮退応答を返す。
func (s *RecommendService) RecommendForUser(ctx context.Context, userID int64, topK int) (*RecommendationResult, error) {
	if topK <= 0 {
		return nil, ErrInvalidTopK
	}
	if s.users == nil {
		return nil, fmt.Errorf("%w: user source not configured", ErrMisconfigured)
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	interests, ok := user.Interests.Get()
	if !ok {
		return s.degraded(uuid.NewString(), MessageEmptyQuery, OutcomeEmptyQuery, time.Now()), nil
	}
	return s.Recommend(ctx, RecommendParams{Prompt: interests, TopK: topK})
}

func (s *RecommendService) candidates(ctx context.Context, query []float32, topK int) ([]vectorstore.Entry, error) {
	if searcher, ok := s.store.(vectorstore.Searcher); ok {
		return searcher.Search(ctx, query, searchLimit(topK, s.oversample))
	}
	return s.store.All(ctx)
}

// searchLimit は topK * oversample を返す。桁あふれする場合は math.MaxInt32 に丸める。
func searchLimit(topK, oversample int) int {
	if topK > math.MaxInt32/oversample {
		return math.MaxInt32
	}
	return topK * oversample
}

func (s *RecommendService) hydrate(ctx context.Context, ranked []ranking.ScoredCandidate) ([]ScoredRestaurant, error) {
	if len(ranked) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(ranked))
	for _, c := range ranked {
		ids = append(ids, c.ID)
	}

	records, err := s.catalog.GetRestaurantsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*catalog.Restaurant, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	out := make([]ScoredRestaurant, 0, len(ranked))
	for _, c := range ranked {
		r, ok := byID[c.ID]
		if !ok {
			continue
		}
		out = append(out, ScoredRestaurant{RestaurantID: c.ID, Score: c.Score, Restaurant: r})
	}
	return out, nil
}

func (s *RecommendService) answer(ctx context.Context, logger *slog.Logger, prompt string, restaurants []ScoredRestaurant) string {
	if s.llm == nil {
		return TemplateAnswer(prompt, restaurants)
	}
	answer, err := s.llm.GenerateCompletion(ctx, BuildAnswerPrompt(prompt, restaurants))
	if err != nil || answer == "" {
		logger.Warn("failed to generate answer with LLM, using template", "error", err)
		return TemplateAnswer(prompt, restaurants)
	}
	return answer
}

func (s *RecommendService) recordSearch(ctx context.Context, logger *slog.Logger, params RecommendParams) {
	userID, ok := params.UserID.Get()
	if !ok || s.searches == nil {
		return
	}
	if _, err := s.searches.RecordSearch(ctx, userID, params.Prompt); err != nil {
		logger.Warn("failed to record search log", "userID", userID, "error", err)
	}
}

func (s *RecommendService) degraded(requestID, message string, outcome Outcome, start time.Time) *RecommendationResult {
	s.observe(outcome, start)
	return &RecommendationResult{
		RequestID:   requestID,
		Answer:      message,
		Restaurants: []ScoredRestaurant{},
		Degraded:    true,
	}
}

func (s *RecommendService) observe(outcome Outcome, start time.Time) {
	if s.recorder != nil {
		s.recorder.ObserveRecommendation(outcome, time.Since(start))
	}
}
