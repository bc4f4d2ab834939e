package recommend

import (
	"github.com/samber/mo"

	"github.com/cureat/cureat/internal/core/catalog"
)

// RecommendParams は推薦リクエストのパラメータ
type RecommendParams struct {
	UserID mo.Option[int64]
	Prompt string
	TopK   int
}

// ScoredRestaurant は類似度スコア付きのレストラン
type ScoredRestaurant struct {
	RestaurantID int64
	Score        float64
	Restaurant   *catalog.Restaurant
}

// RecommendationResult は推薦結果。Degraded は縮退応答であることを示す。
type RecommendationResult struct {
	RequestID   string
	Answer      string
	Restaurants []ScoredRestaurant
	Degraded    bool
}

// Outcome は推薦処理の結果区分（メトリクス用）
type Outcome string

const (
	OutcomeOK                Outcome = "ok"
	OutcomeNoMatch           Outcome = "no_match"
	OutcomeEmptyQuery        Outcome = "empty_query"
	OutcomeEmbeddingDegraded Outcome = "embedding_unavailable"
	OutcomeStoreDegraded     Outcome = "store_unavailable"
	OutcomeCatalogDegraded   Outcome = "catalog_unavailable"
)

const (
	// MessageUnavailable は埋め込みやストアが使えない場合の応答
	MessageUnavailable = "현재 추천 기능을 일시적으로 사용할 수 없어 맛집을 추천해 드리지 못했습니다. 잠시 후 다시 시도해 주세요."

	// MessageEmptyQuery は要求から検索語を抽出できなかった場合の応答
	MessageEmptyQuery = "요청에서 추천에 사용할 수 있는 키워드를 찾지 못했습니다. 원하는 음식이나 분위기를 조금 더 구체적으로 알려주세요."

	// MessageNoMatch は候補が見つからなかった場合の応答
	MessageNoMatch = "조건에 맞는 맛집을 찾지 못했습니다. 다른 표현으로 다시 요청해 주세요."
)
