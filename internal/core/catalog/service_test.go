package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	changes []SummaryChange
	err     error
}

func (n *recordingNotifier) NotifySummaryChanged(ctx context.Context, change SummaryChange) error {
	n.changes = append(n.changes, change)
	return n.err
}

func newTestService(opts ...CatalogServiceOption) (*CatalogService, *MemoryRepository) {
	repo := NewMemoryRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{AddSource: false}))
	opts = append([]CatalogServiceOption{WithCatalogLogger(logger)}, opts...)
	return NewCatalogService(repo, opts...), repo
}

func validUser() RegisterUserParams {
	return RegisterUserParams{
		Name:      "홍길동",
		Birthdate: time.Date(1995, 10, 24, 0, 0, 0, 0, time.UTC),
		Gender:    "남자",
		Email:     "user@example.com",
		Phone:     "01012345678",
		Address:   "서울시 강남구 테헤란로",
		Password:  "correct-horse",
		Interests: mo.Some("데이트, 회식"),
	}
}

func TestCatalogService_RegisterUser(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.RegisterUser(ctx, validUser())
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.True(t, user.Active)
	assert.False(t, user.Verified)
	assert.NotEqual(t, "correct-horse", user.PasswordHash)
	assert.True(t, VerifyPassword(user, "correct-horse"))
	assert.False(t, VerifyPassword(user, "wrong-password"))
	assert.Equal(t, "데이트, 회식", user.Interests.MustGet())
}

func TestCatalogService_RegisterUserDuplicates(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.RegisterUser(ctx, validUser())
	require.NoError(t, err)

	dupEmail := validUser()
	dupEmail.Phone = "01099999999"
	_, err = svc.RegisterUser(ctx, dupEmail)
	assert.ErrorIs(t, err, ErrEmailTaken)

	dupPhone := validUser()
	dupPhone.Email = "other@example.com"
	_, err = svc.RegisterUser(ctx, dupPhone)
	assert.ErrorIs(t, err, ErrPhoneTaken)
}

func TestCatalogService_RegisterUserValidation(t *testing.T) {
	svc, _ := newTestService()

	short := validUser()
	short.Password = "short"
	_, err := svc.RegisterUser(context.Background(), short)
	assert.ErrorIs(t, err, ErrInvalidInput)

	noEmail := validUser()
	noEmail.Email = " "
	_, err = svc.RegisterUser(context.Background(), noEmail)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCatalogService_UpdateUserInterests(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.RegisterUser(ctx, validUser())
	require.NoError(t, err)

	updated, err := svc.UpdateUserInterests(ctx, user.ID, mo.None[string]())
	require.NoError(t, err)
	assert.True(t, updated.Interests.IsAbsent())

	_, err = svc.UpdateUserInterests(ctx, 999, mo.Some("x"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalogService_CreateRestaurantNotifies(t *testing.T) {
	notifier := &recordingNotifier{}
	svc, _ := newTestService(WithChangeNotifier(notifier))
	ctx := context.Background()

	rest, err := svc.CreateRestaurant(ctx, CreateRestaurantParams{
		Name:    "을지로 골뱅이",
		Summary: RestaurantSummary{Address: mo.Some("서울 중구 을지로")},
	})
	require.NoError(t, err)
	require.Len(t, notifier.changes, 1)
	assert.Equal(t, rest.ID, notifier.changes[0].RestaurantID)

	_, err = svc.CreateRestaurant(ctx, CreateRestaurantParams{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCatalogService_UpdateRestaurantSummary(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("bus down")}
	svc, _ := newTestService(WithChangeNotifier(notifier))
	ctx := context.Background()

	rest, err := svc.CreateRestaurant(ctx, CreateRestaurantParams{Name: "카페 온도"})
	require.NoError(t, err)
	previous := rest.EmbeddingText()

	summary := RestaurantSummary{
		Category:    mo.Some("카페"),
		Description: mo.Some("조용한 분위기의 핸드드립 카페"),
	}
	updated, err := svc.UpdateRestaurantSummary(ctx, rest.ID, summary)
	require.NoError(t, err)
	assert.Equal(t, "카페", updated.Summary.Category.MustGet())

	require.Len(t, notifier.changes, 2)
	assert.Equal(t, previous, notifier.changes[1].PreviousText)

	// 内容が同じなら通知しない
	_, err = svc.UpdateRestaurantSummary(ctx, rest.ID, summary)
	require.NoError(t, err)
	assert.Len(t, notifier.changes, 2)

	_, err = svc.UpdateRestaurantSummary(ctx, 12345, summary)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalogService_SearchRestaurants(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for _, name := range []string{"강남 라멘", "홍대 라멘", "강남 초밥"} {
		_, err := svc.CreateRestaurant(ctx, CreateRestaurantParams{Name: name})
		require.NoError(t, err)
	}

	found, err := svc.SearchRestaurants(ctx, "라멘")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	_, err = svc.SearchRestaurants(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCatalogService_Reviews(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.RegisterUser(ctx, validUser())
	require.NoError(t, err)
	rest, err := svc.CreateRestaurant(ctx, CreateRestaurantParams{Name: "성수 버거"})
	require.NoError(t, err)

	for i := 1; i <= 12; i++ {
		_, err := svc.CreateReview(ctx, CreateReviewParams{
			UserID:       user.ID,
			RestaurantID: rest.ID,
			Content:      "맛있어요",
			Rating:       1 + i%5,
		})
		require.NoError(t, err)
	}

	byUser, err := svc.ListUserReviews(ctx, user.ID, 0)
	require.NoError(t, err)
	assert.Len(t, byUser, DefaultHistoryLimit)
	assert.Greater(t, byUser[0].ID, byUser[1].ID)

	byRestaurant, err := svc.ListRestaurantReviews(ctx, rest.ID)
	require.NoError(t, err)
	assert.Len(t, byRestaurant, 12)

	_, err = svc.CreateReview(ctx, CreateReviewParams{UserID: user.ID, RestaurantID: rest.ID, Content: "x", Rating: 6})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CreateReview(ctx, CreateReviewParams{UserID: user.ID, RestaurantID: 999, Content: "x", Rating: 3})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalogService_SearchLogs(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.RegisterUser(ctx, validUser())
	require.NoError(t, err)

	_, err = svc.RecordSearch(ctx, user.ID, "강남 파스타")
	require.NoError(t, err)
	_, err = svc.RecordSearch(ctx, user.ID, "성수 카페")
	require.NoError(t, err)

	logs, err := svc.ListUserSearchLogs(ctx, user.ID, 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "성수 카페", logs[0].Query)

	_, err = svc.RecordSearch(ctx, user.ID, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRestaurant_EmbeddingText(t *testing.T) {
	r := &Restaurant{
		Name: "을지로 골뱅이",
		Summary: RestaurantSummary{
			Category:    mo.Some("주점"),
			Phone:       mo.Some("02-000-0000"),
			FeatureMenu: mo.Some("  골뱅이무침  "),
			Parking:     mo.Some(""),
		},
	}
	assert.Equal(t, "을지로 골뱅이\n주점\n골뱅이무침", r.EmbeddingText())
	assert.False(t, r.Summary.IsEmpty())
	assert.True(t, RestaurantSummary{}.IsEmpty())
}

type bulkRepository struct {
	*MemoryRepository
	batches int
}

func (r *bulkRepository) CreateRestaurants(ctx context.Context, restaurants []*Restaurant) ([]*Restaurant, error) {
	r.batches++
	out := make([]*Restaurant, 0, len(restaurants))
	for _, rest := range restaurants {
		created, err := r.CreateRestaurant(ctx, rest)
		if err != nil {
			return nil, err
		}
		out = append(out, created)
	}
	return out, nil
}

func TestCatalogService_ImportRestaurants(t *testing.T) {
	notifier := &recordingNotifier{}
	svc, repo := newTestService(WithChangeNotifier(notifier))

	created, err := svc.ImportRestaurants(context.Background(), []CreateRestaurantParams{
		{Name: "성수 파스타"},
		{Name: "제주 흑돼지", Summary: RestaurantSummary{Category: mo.Some("고기")}},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Empty(t, notifier.changes)

	all, err := repo.ListRestaurants(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.ImportRestaurants(context.Background(), []CreateRestaurantParams{{Name: "A"}, {Name: " "}})
	assert.ErrorIs(t, err, ErrInvalidInput)
	all, err = repo.ListRestaurants(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCatalogService_ImportRestaurantsUsesBulkWriter(t *testing.T) {
	repo := &bulkRepository{MemoryRepository: NewMemoryRepository()}
	svc := NewCatalogService(repo, WithCatalogLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	created, err := svc.ImportRestaurants(context.Background(), []CreateRestaurantParams{{Name: "A"}, {Name: "B"}})
	require.NoError(t, err)
	assert.Len(t, created, 2)
	assert.Equal(t, 1, repo.batches)
}
