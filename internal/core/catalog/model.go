package catalog

import (
	"strings"
	"time"

	"github.com/samber/mo"
)

// Restaurant はレストランの表示用レコード
type Restaurant struct {
	ID        int64
	Name      string
	Summary   RestaurantSummary
	ImageURL  mo.Option[string]
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RestaurantSummary はレストランの要約情報。未設定の項目は None。
type RestaurantSummary struct {
	Place        mo.Option[string]
	Address      mo.Option[string]
	Category     mo.Option[string]
	Description  mo.Option[string]
	FeatureMenu  mo.Option[string]
	Phone        mo.Option[string]
	Parking      mo.Option[string]
	PriceTier    mo.Option[string]
	OpeningHours mo.Option[string]
}

// IsEmpty は要約項目が一つも設定されていないかを返す
func (s RestaurantSummary) IsEmpty() bool {
	for _, f := range s.fields() {
		if f.IsPresent() {
			return false
		}
	}
	return true
}

func (s RestaurantSummary) fields() []mo.Option[string] {
	return []mo.Option[string]{
		s.Place, s.Address, s.Category, s.Description, s.FeatureMenu,
		s.Phone, s.Parking, s.PriceTier, s.OpeningHours,
	}
}

// EmbeddingText は埋め込み対象のテキストを組み立てる。
// 電話番号は意味を持たないため含めない。
func (r *Restaurant) EmbeddingText() string {
	parts := []string{r.Name}
	for _, f := range []mo.Option[string]{
		r.Summary.Place,
		r.Summary.Address,
		r.Summary.Category,
		r.Summary.Description,
		r.Summary.FeatureMenu,
		r.Summary.Parking,
		r.Summary.PriceTier,
		r.Summary.OpeningHours,
	} {
		if v, ok := f.Get(); ok && strings.TrimSpace(v) != "" {
			parts = append(parts, strings.TrimSpace(v))
		}
	}
	return strings.Join(parts, "\n")
}

// User は利用者
type User struct {
	ID              int64
	Name            string
	Birthdate       time.Time
	Gender          string
	Email           string
	Phone           string
	Address         string
	PasswordHash    string
	Interests       mo.Option[string]
	HasAllergies    bool
	AllergiesDetail mo.Option[string]
	Active          bool
	Verified        bool
	CreatedAt       time.Time
}

// Review はレストランへのレビュー
type Review struct {
	ID           int64
	UserID       int64
	RestaurantID int64
	Content      string
	Rating       int
	IsAd         bool
	CreatedAt    time.Time
}

// SearchLog は利用者の検索履歴
type SearchLog struct {
	ID         int64
	UserID     int64
	Query      string
	SearchedAt time.Time
}
