package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/mo"

	"github.com/cureat/cureat/internal/core/catalog"
	"github.com/cureat/cureat/internal/core/recommend"
)

// Recommender は推薦サービス
type Recommender interface {
	Recommend(ctx context.Context, params recommend.RecommendParams) (*recommend.RecommendationResult, error)
	RecommendForUser(ctx context.Context, userID int64, topK int) (*recommend.RecommendationResult, error)
}

// Catalog はカタログサービス
type Catalog interface {
	RegisterUser(ctx context.Context, params catalog.RegisterUserParams) (*catalog.User, error)
	GetUser(ctx context.Context, id int64) (*catalog.User, error)
	UpdateUserInterests(ctx context.Context, id int64, interests mo.Option[string]) (*catalog.User, error)
	CreateRestaurant(ctx context.Context, params catalog.CreateRestaurantParams) (*catalog.Restaurant, error)
	GetRestaurant(ctx context.Context, id int64) (*catalog.Restaurant, error)
	SearchRestaurants(ctx context.Context, name string) ([]*catalog.Restaurant, error)
	UpdateRestaurantSummary(ctx context.Context, id int64, summary catalog.RestaurantSummary) (*catalog.Restaurant, error)
	CreateReview(ctx context.Context, params catalog.CreateReviewParams) (*catalog.Review, error)
	ListRestaurantReviews(ctx context.Context, restaurantID int64) ([]*catalog.Review, error)
	ListUserReviews(ctx context.Context, userID int64, limit int) ([]*catalog.Review, error)
	RecordSearch(ctx context.Context, userID int64, query string) (*catalog.SearchLog, error)
	ListUserSearchLogs(ctx context.Context, userID int64, limit int) ([]*catalog.SearchLog, error)
}

// Handler はHTTPハンドラ群
type Handler struct {
	catalog     Catalog
	recommender Recommender
	defaultTopK int
}

// NewHandler は Handler を作成する
func NewHandler(c Catalog, r Recommender, defaultTopK int) *Handler {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &Handler{catalog: c, recommender: r, defaultTopK: defaultTopK}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "INVALID_ID", name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Recommend は POST /recommendation
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	topK := req.TopK
	if topK == 0 {
		topK = h.defaultTopK
	}

	res, err := h.recommender.Recommend(r.Context(), recommend.RecommendParams{
		UserID: mo.PointerToOption(req.UserID),
		Prompt: req.Prompt,
		TopK:   topK,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, recommendationFrom(res))
}

// RecommendForUser は GET /restaurants/recommendations/{userID}
func (h *Handler) RecommendForUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	topK, ok := queryInt(r, "top_k", h.defaultTopK)
	if !ok {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "top_k must be an integer")
		return
	}
	if err := getValidator().Struct(recommendForUserQuery{TopK: topK}); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", validationMessage(err))
		return
	}

	res, err := h.recommender.RecommendForUser(r.Context(), userID, topK)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, recommendationFrom(res))
}

// RegisterUser は POST /users
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	var birthdate time.Time
	if req.Birthdate != "" {
		// validate の datetime で形式は確認済み
		birthdate, _ = time.Parse(time.DateOnly, req.Birthdate)
	}

	user, err := h.catalog.RegisterUser(r.Context(), catalog.RegisterUserParams{
		Name:            req.Name,
		Birthdate:       birthdate,
		Gender:          req.Gender,
		Email:           req.Email,
		Phone:           req.Phone,
		Address:         req.Address,
		Password:        req.Password,
		Interests:       mo.PointerToOption(req.Interests),
		HasAllergies:    req.HasAllergies,
		AllergiesDetail: mo.PointerToOption(req.AllergiesDetail),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, userFrom(user))
}

// GetUser は GET /users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	user, err := h.catalog.GetUser(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, userFrom(user))
}

// UpdateUserInterests は PUT /users/{id}/interests
func (h *Handler) UpdateUserInterests(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateInterestsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	user, err := h.catalog.UpdateUserInterests(r.Context(), id, mo.PointerToOption(req.Interests))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, userFrom(user))
}

// CreateRestaurant は POST /restaurants
func (h *Handler) CreateRestaurant(w http.ResponseWriter, r *http.Request) {
	var req createRestaurantRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	restaurant, err := h.catalog.CreateRestaurant(r.Context(), catalog.CreateRestaurantParams{
		Name:     req.Name,
		ImageURL: mo.PointerToOption(req.ImageURL),
		Summary:  req.Summary.toSummary(),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, restaurantFrom(restaurant))
}

// GetRestaurant は GET /restaurants/{id}
func (h *Handler) GetRestaurant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	restaurant, err := h.catalog.GetRestaurant(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, restaurantFrom(restaurant))
}

// SearchRestaurants は GET /restaurants/search?name=
func (h *Handler) SearchRestaurants(w http.ResponseWriter, r *http.Request) {
	restaurants, err := h.catalog.SearchRestaurants(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	out := make([]restaurantResponse, 0, len(restaurants))
	for _, rest := range restaurants {
		out = append(out, restaurantFrom(rest))
	}
	respondJSON(w, http.StatusOK, out)
}

// UpdateRestaurantSummary は PUT /restaurants/{id}/summary
func (h *Handler) UpdateRestaurantSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req summaryBody
	if !decodeAndValidate(w, r, &req) {
		return
	}
	restaurant, err := h.catalog.UpdateRestaurantSummary(r.Context(), id, req.toSummary())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, restaurantFrom(restaurant))
}

// ListRestaurantReviews は GET /restaurants/{id}/reviews
func (h *Handler) ListRestaurantReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	reviews, err := h.catalog.ListRestaurantReviews(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reviewsFrom(reviews))
}

// CreateReview は POST /reviews
func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	var req createReviewRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	review, err := h.catalog.CreateReview(r.Context(), catalog.CreateReviewParams{
		UserID:       req.UserID,
		RestaurantID: req.RestaurantID,
		Content:      req.Content,
		Rating:       req.Rating,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, reviewsFrom([]*catalog.Review{review})[0])
}

// ListUserReviews は GET /users/{id}/reviews
func (h *Handler) ListUserReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	limit, ok := queryInt(r, "limit", catalog.DefaultHistoryLimit)
	if !ok {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be an integer")
		return
	}
	reviews, err := h.catalog.ListUserReviews(r.Context(), id, limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reviewsFrom(reviews))
}

// CreateSearchLog は POST /users/{id}/search_logs
func (h *Handler) CreateSearchLog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req createSearchLogRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	log, err := h.catalog.RecordSearch(r.Context(), id, req.Query)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, searchLogsFrom([]*catalog.SearchLog{log})[0])
}

// ListSearchLogs は GET /users/{id}/search_logs
func (h *Handler) ListSearchLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	limit, ok := queryInt(r, "limit", catalog.DefaultHistoryLimit)
	if !ok {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be an integer")
		return
	}
	logs, err := h.catalog.ListUserSearchLogs(r.Context(), id, limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, searchLogsFrom(logs))
}
