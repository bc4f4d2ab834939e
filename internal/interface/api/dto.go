package api

import (
	"time"

	"github.com/samber/mo"

	"github.com/cureat/cureat/internal/core/catalog"
	"github.com/cureat/cureat/internal/core/recommend"
)

// recommendRequest は POST /recommendation の本文
type recommendRequest struct {
	UserID *int64 `json:"user_id" validate:"omitempty,gt=0"`
	Prompt string `json:"prompt" validate:"required,max=1000"`
	TopK   int    `json:"top_k" validate:"omitempty,gt=0,lte=50"`
}

// recommendForUserQuery は GET /restaurants/recommendations/{userID} のクエリ
type recommendForUserQuery struct {
	TopK int `json:"top_k" validate:"gt=0,lte=50"`
}

type summaryBody struct {
	Place        *string `json:"place"`
	Address      *string `json:"address"`
	Category     *string `json:"category"`
	Description  *string `json:"description"`
	FeatureMenu  *string `json:"feature_menu"`
	Phone        *string `json:"phone"`
	Parking      *string `json:"parking"`
	PriceTier    *string `json:"price_tier"`
	OpeningHours *string `json:"opening_hours"`
}

func (b summaryBody) toSummary() catalog.RestaurantSummary {
	return catalog.RestaurantSummary{
		Place:        mo.PointerToOption(b.Place),
		Address:      mo.PointerToOption(b.Address),
		Category:     mo.PointerToOption(b.Category),
		Description:  mo.PointerToOption(b.Description),
		FeatureMenu:  mo.PointerToOption(b.FeatureMenu),
		Phone:        mo.PointerToOption(b.Phone),
		Parking:      mo.PointerToOption(b.Parking),
		PriceTier:    mo.PointerToOption(b.PriceTier),
		OpeningHours: mo.PointerToOption(b.OpeningHours),
	}
}

func summaryFrom(s catalog.RestaurantSummary) summaryBody {
	return summaryBody{
		Place:        s.Place.ToPointer(),
		Address:      s.Address.ToPointer(),
		Category:     s.Category.ToPointer(),
		Description:  s.Description.ToPointer(),
		FeatureMenu:  s.FeatureMenu.ToPointer(),
		Phone:        s.Phone.ToPointer(),
		Parking:      s.Parking.ToPointer(),
		PriceTier:    s.PriceTier.ToPointer(),
		OpeningHours: s.OpeningHours.ToPointer(),
	}
}

type restaurantResponse struct {
	ID       int64       `json:"id"`
	Name     string      `json:"name"`
	ImageURL *string     `json:"image_url"`
	Summary  summaryBody `json:"summary"`
}

func restaurantFrom(r *catalog.Restaurant) restaurantResponse {
	return restaurantResponse{
		ID:       r.ID,
		Name:     r.Name,
		ImageURL: r.ImageURL.ToPointer(),
		Summary:  summaryFrom(r.Summary),
	}
}

type scoredRestaurantResponse struct {
	restaurantResponse
	Score float64 `json:"score"`
}

// recommendResponse は推薦結果。縮退時も 200 で返す。
type recommendResponse struct {
	RequestID   string                     `json:"request_id"`
	Answer      string                     `json:"answer"`
	Restaurants []scoredRestaurantResponse `json:"restaurants"`
	Degraded    bool                       `json:"degraded"`
}

func recommendationFrom(res *recommend.RecommendationResult) recommendResponse {
	out := recommendResponse{
		RequestID:   res.RequestID,
		Answer:      res.Answer,
		Restaurants: make([]scoredRestaurantResponse, 0, len(res.Restaurants)),
		Degraded:    res.Degraded,
	}
	for _, sr := range res.Restaurants {
		out.Restaurants = append(out.Restaurants, scoredRestaurantResponse{
			restaurantResponse: restaurantFrom(sr.Restaurant),
			Score:              sr.Score,
		})
	}
	return out
}

type createRestaurantRequest struct {
	Name     string      `json:"name" validate:"required,max=200"`
	ImageURL *string     `json:"image_url" validate:"omitempty,url"`
	Summary  summaryBody `json:"summary"`
}

type registerUserRequest struct {
	Name            string  `json:"name" validate:"required,max=100"`
	Birthdate       string  `json:"birthdate" validate:"omitempty,datetime=2006-01-02"`
	Gender          string  `json:"gender" validate:"omitempty,max=20"`
	Email           string  `json:"email" validate:"required,email"`
	Phone           string  `json:"phone" validate:"required,max=30"`
	Address         string  `json:"address" validate:"max=300"`
	Password        string  `json:"password" validate:"required,min=8,max=72"`
	Interests       *string `json:"interests"`
	HasAllergies    bool    `json:"has_allergies"`
	AllergiesDetail *string `json:"allergies_detail"`
}

type userResponse struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Birthdate       string  `json:"birthdate,omitempty"`
	Gender          string  `json:"gender"`
	Email           string  `json:"email"`
	Phone           string  `json:"phone"`
	Address         string  `json:"address"`
	Interests       *string `json:"interests"`
	HasAllergies    bool    `json:"has_allergies"`
	AllergiesDetail *string `json:"allergies_detail"`
	Active          bool    `json:"active"`
	Verified        bool    `json:"verified"`
}

func userFrom(u *catalog.User) userResponse {
	resp := userResponse{
		ID:              u.ID,
		Name:            u.Name,
		Gender:          u.Gender,
		Email:           u.Email,
		Phone:           u.Phone,
		Address:         u.Address,
		Interests:       u.Interests.ToPointer(),
		HasAllergies:    u.HasAllergies,
		AllergiesDetail: u.AllergiesDetail.ToPointer(),
		Active:          u.Active,
		Verified:        u.Verified,
	}
	if !u.Birthdate.IsZero() {
		resp.Birthdate = u.Birthdate.Format(time.DateOnly)
	}
	return resp
}

type updateInterestsRequest struct {
	Interests *string `json:"interests" validate:"omitempty,max=500"`
}

type createReviewRequest struct {
	UserID       int64  `json:"user_id" validate:"required,gt=0"`
	RestaurantID int64  `json:"restaurant_id" validate:"required,gt=0"`
	Content      string `json:"content" validate:"required,max=2000"`
	Rating       int    `json:"rating" validate:"required,min=1,max=5"`
}

type reviewResponse struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	RestaurantID int64     `json:"restaurant_id"`
	Content      string    `json:"content"`
	Rating       int       `json:"rating"`
	IsAd         bool      `json:"is_ad"`
	CreatedAt    time.Time `json:"created_at"`
}

func reviewsFrom(reviews []*catalog.Review) []reviewResponse {
	out := make([]reviewResponse, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, reviewResponse{
			ID:           r.ID,
			UserID:       r.UserID,
			RestaurantID: r.RestaurantID,
			Content:      r.Content,
			Rating:       r.Rating,
			IsAd:         r.IsAd,
			CreatedAt:    r.CreatedAt,
		})
	}
	return out
}

type createSearchLogRequest struct {
	Query string `json:"query" validate:"required,max=1000"`
}

type searchLogResponse struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Query      string    `json:"query"`
	SearchedAt time.Time `json:"searched_at"`
}

func searchLogsFrom(logs []*catalog.SearchLog) []searchLogResponse {
	out := make([]searchLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, searchLogResponse{ID: l.ID, UserID: l.UserID, Query: l.Query, SearchedAt: l.SearchedAt})
	}
	return out
}
