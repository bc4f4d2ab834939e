package catalog

import (
	"context"
	"errors"

	"github.com/samber/mo"
)

var (
	// ErrNotFound は対象レコードが存在しない場合のエラー
	ErrNotFound = errors.New("not found")

	// ErrEmailTaken はメールアドレスが登録済みの場合のエラー
	ErrEmailTaken = errors.New("email already registered")

	// ErrPhoneTaken は電話番号が登録済みの場合のエラー
	ErrPhoneTaken = errors.New("phone number already registered")

	// ErrInvalidInput は入力値が不正な場合のエラー
	ErrInvalidInput = errors.New("invalid input")
)

// UserRepository は利用者の永続化
type UserRepository interface {
	CreateUser(ctx context.Context, user *User) (*User, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByPhone(ctx context.Context, phone string) (*User, error)
	UpdateUserInterests(ctx context.Context, id int64, interests mo.Option[string]) (*User, error)
}

// RestaurantRepository はレストランの永続化
type RestaurantRepository interface {
	CreateRestaurant(ctx context.Context, restaurant *Restaurant) (*Restaurant, error)
	GetRestaurant(ctx context.Context, id int64) (*Restaurant, error)
	// GetRestaurantsByIDs は存在するIDのレコードのみを返す（順序は不定）
	GetRestaurantsByIDs(ctx context.Context, ids []int64) ([]*Restaurant, error)
	SearchRestaurantsByName(ctx context.Context, name string) ([]*Restaurant, error)
	ListRestaurants(ctx context.Context) ([]*Restaurant, error)
	UpdateRestaurantSummary(ctx context.Context, id int64, summary RestaurantSummary) (*Restaurant, error)
}

// ReviewRepository はレビューの永続化
type ReviewRepository interface {
	CreateReview(ctx context.Context, review *Review) (*Review, error)
	ListReviewsByRestaurant(ctx context.Context, restaurantID int64) ([]*Review, error)
	ListReviewsByUser(ctx context.Context, userID int64, limit int) ([]*Review, error)
}

// SearchLogRepository は検索履歴の永続化
type SearchLogRepository interface {
	CreateSearchLog(ctx context.Context, log *SearchLog) (*SearchLog, error)
	ListSearchLogsByUser(ctx context.Context, userID int64, limit int) ([]*SearchLog, error)
}

// Repository はカタログ全体の永続化
type Repository interface {
	UserRepository
	RestaurantRepository
	ReviewRepository
	SearchLogRepository
}

// SummaryChange はレストラン要約の更新通知
type SummaryChange struct {
	RestaurantID int64  `json:"restaurantId"`
	PreviousText string `json:"previousText"`
}

// ChangeNotifier は要約の更新を再インデックス処理へ伝える
type ChangeNotifier interface {
	NotifySummaryChanged(ctx context.Context, change SummaryChange) error
}

// BulkRestaurantWriter は複数レストランを一括で登録できるリポジトリが実装する。
// 全件成功か全件失敗のどちらかになる。
type BulkRestaurantWriter interface {
	CreateRestaurants(ctx context.Context, restaurants []*Restaurant) ([]*Restaurant, error)
}
