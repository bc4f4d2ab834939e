// Package catalog は利用者・レストラン・レビュー・検索履歴を扱う。
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/mo"
	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength はパスワードの最小長
	MinPasswordLength = 8

	// DefaultHistoryLimit はレビュー・検索履歴一覧のデフォルト件数
	DefaultHistoryLimit = 10
)

// CatalogService はカタログのビジネスロジックを提供する
type CatalogService struct {
	repo     Repository
	notifier ChangeNotifier
	logger   *slog.Logger
	now      func() time.Time
}

type CatalogServiceOption func(*CatalogService)

// WithCatalogLogger は CatalogService にロガーを設定する
func WithCatalogLogger(logger *slog.Logger) CatalogServiceOption {
	return func(s *CatalogService) {
		s.logger = logger
	}
}

// WithChangeNotifier は要約更新の通知先を設定する
func WithChangeNotifier(notifier ChangeNotifier) CatalogServiceOption {
	return func(s *CatalogService) {
		s.notifier = notifier
	}
}

// NewCatalogService は新しい CatalogService を作成する
func NewCatalogService(repo Repository, opts ...CatalogServiceOption) *CatalogService {
	svc := &CatalogService{
		repo:   repo,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// SetChangeNotifier は生成後に通知先を差し替える（コンテナ組み立て時の循環回避用）
func (s *CatalogService) SetChangeNotifier(notifier ChangeNotifier) {
	s.notifier = notifier
}

// RegisterUserParams は利用者登録の入力
type RegisterUserParams struct {
	Name            string
	Birthdate       time.Time
	Gender          string
	Email           string
	Phone           string
	Address         string
	Password        string
	Interests       mo.Option[string]
	HasAllergies    bool
	AllergiesDetail mo.Option[string]
}

// RegisterUser は利用者を登録する。メールアドレスと電話番号は一意。
func (s *CatalogService) RegisterUser(ctx context.Context, params RegisterUserParams) (*User, error) {
	if strings.TrimSpace(params.Name) == "" || strings.TrimSpace(params.Email) == "" || strings.TrimSpace(params.Phone) == "" {
		return nil, fmt.Errorf("%w: name, email and phone are required", ErrInvalidInput)
	}
	if len(params.Password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}

	if _, err := s.repo.GetUserByEmail(ctx, params.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if _, err := s.repo.GetUserByPhone(ctx, params.Phone); err == nil {
		return nil, ErrPhoneTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to check phone: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, &User{
		Name:            params.Name,
		Birthdate:       params.Birthdate,
		Gender:          params.Gender,
		Email:           params.Email,
		Phone:           params.Phone,
		Address:         params.Address,
		PasswordHash:    string(hash),
		Interests:       params.Interests,
		HasAllergies:    params.HasAllergies,
		AllergiesDetail: params.AllergiesDetail,
		Active:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", "userID", user.ID)
	return user, nil
}

// VerifyPassword は平文パスワードが利用者のハッシュと一致するかを返す
func VerifyPassword(user *User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

// GetUser は利用者を取得する
func (s *CatalogService) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

// UpdateUserInterests は利用者の関心事を更新する
func (s *CatalogService) UpdateUserInterests(ctx context.Context, id int64, interests mo.Option[string]) (*User, error) {
	return s.repo.UpdateUserInterests(ctx, id, interests)
}

// CreateRestaurantParams はレストラン登録の入力
type CreateRestaurantParams struct {
	Name     string
	ImageURL mo.Option[string]
	Summary  RestaurantSummary
}

// CreateRestaurant はレストランを登録する。要約があれば再インデックスを通知する。
func (s *CatalogService) CreateRestaurant(ctx context.Context, params CreateRestaurantParams) (*Restaurant, error) {
	if strings.TrimSpace(params.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	restaurant, err := s.repo.CreateRestaurant(ctx, &Restaurant{
		Name:     params.Name,
		ImageURL: params.ImageURL,
		Summary:  params.Summary,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create restaurant: %w", err)
	}

	s.notify(ctx, SummaryChange{RestaurantID: restaurant.ID})
	return restaurant, nil
}

// ImportRestaurants はレストランをまとめて登録する。再インデックスの通知は行わないので、
// 呼び出し側で Indexer.ReindexAll などを実行する。
func (s *CatalogService) ImportRestaurants(ctx context.Context, params []CreateRestaurantParams) ([]*Restaurant, error) {
	restaurants := make([]*Restaurant, 0, len(params))
	for i, p := range params {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("%w: restaurant #%d has no name", ErrInvalidInput, i+1)
		}
		restaurants = append(restaurants, &Restaurant{
			Name:     p.Name,
			ImageURL: p.ImageURL,
			Summary:  p.Summary,
		})
	}

	if bulk, ok := s.repo.(BulkRestaurantWriter); ok {
		created, err := bulk.CreateRestaurants(ctx, restaurants)
		if err != nil {
			return nil, fmt.Errorf("failed to import restaurants: %w", err)
		}
		s.logger.Info("restaurants imported", "count", len(created))
		return created, nil
	}

	created := make([]*Restaurant, 0, len(restaurants))
	for _, r := range restaurants {
		c, err := s.repo.CreateRestaurant(ctx, r)
		if err != nil {
			return created, fmt.Errorf("failed to import restaurant %q: %w", r.Name, err)
		}
		created = append(created, c)
	}
	s.logger.Info("restaurants imported", "count", len(created))
	return created, nil
}

// GetRestaurant はレストランを取得する
func (s *CatalogService) GetRestaurant(ctx context.Context, id int64) (*Restaurant, error) {
	return s.repo.GetRestaurant(ctx, id)
}

// GetRestaurantsByIDs は存在するレストランのみを返す
func (s *CatalogService) GetRestaurantsByIDs(ctx context.Context, ids []int64) ([]*Restaurant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.repo.GetRestaurantsByIDs(ctx, ids)
}

// SearchRestaurants は名前の部分一致でレストランを検索する
func (s *CatalogService) SearchRestaurants(ctx context.Context, name string) ([]*Restaurant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	return s.repo.SearchRestaurantsByName(ctx, name)
}

// ListRestaurants は全レストランを返す
func (s *CatalogService) ListRestaurants(ctx context.Context) ([]*Restaurant, error) {
	return s.repo.ListRestaurants(ctx)
}

// UpdateRestaurantSummary は要約を更新し、再インデックスを通知する
func (s *CatalogService) UpdateRestaurantSummary(ctx context.Context, id int64, summary RestaurantSummary) (*Restaurant, error) {
	before, err := s.repo.GetRestaurant(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateRestaurantSummary(ctx, id, summary)
	if err != nil {
		return nil, fmt.Errorf("failed to update restaurant summary: %w", err)
	}

	if before.EmbeddingText() != updated.EmbeddingText() {
		s.notify(ctx, SummaryChange{RestaurantID: id, PreviousText: before.EmbeddingText()})
	}
	return updated, nil
}

func (s *CatalogService) notify(ctx context.Context, change SummaryChange) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifySummaryChanged(ctx, change); err != nil {
		s.logger.Warn("failed to notify summary change",
			"restaurantID", change.RestaurantID,
			"error", err,
		)
	}
}

// CreateReviewParams はレビュー投稿の入力
type CreateReviewParams struct {
	UserID       int64
	RestaurantID int64
	Content      string
	Rating       int
}

// CreateReview はレビューを投稿する。評価は1〜5。
func (s *CatalogService) CreateReview(ctx context.Context, params CreateReviewParams) (*Review, error) {
	if params.Rating < 1 || params.Rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}
	if strings.TrimSpace(params.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}

	review, err := s.repo.CreateReview(ctx, &Review{
		UserID:       params.UserID,
		RestaurantID: params.RestaurantID,
		Content:      params.Content,
		Rating:       params.Rating,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create review: %w", err)
	}
	return review, nil
}

// ListRestaurantReviews はレストランのレビューを返す
func (s *CatalogService) ListRestaurantReviews(ctx context.Context, restaurantID int64) ([]*Review, error) {
	return s.repo.ListReviewsByRestaurant(ctx, restaurantID)
}

// ListUserReviews は利用者のレビューを新しい順に返す
func (s *CatalogService) ListUserReviews(ctx context.Context, userID int64, limit int) ([]*Review, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.repo.ListReviewsByUser(ctx, userID, limit)
}

// RecordSearch は検索履歴を記録する
func (s *CatalogService) RecordSearch(ctx context.Context, userID int64, query string) (*SearchLog, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	log, err := s.repo.CreateSearchLog(ctx, &SearchLog{
		UserID:     userID,
		Query:      query,
		SearchedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create search log: %w", err)
	}
	return log, nil
}

// ListUserSearchLogs は利用者の検索履歴を新しい順に返す
func (s *CatalogService) ListUserSearchLogs(ctx context.Context, userID int64, limit int) ([]*SearchLog, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.repo.ListSearchLogsByUser(ctx, userID, limit)
}
