package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samber/mo"

	"github.com/cureat/cureat/internal/core/catalog"
)

const pgErrCodeForeignKeyViolation = "23503"

// CatalogRepository は catalog.Repository を実装する PostgreSQL リポジトリです
type CatalogRepository struct {
	q Querier
}

// NewCatalogRepository は新しい CatalogRepository を作成します
func NewCatalogRepository(q Querier) *CatalogRepository {
	return &CatalogRepository{q: q}
}

// コンパイル時の型チェック
var (
	_ catalog.Repository           = (*CatalogRepository)(nil)
	_ catalog.BulkRestaurantWriter = (*TransactionalCatalog)(nil)
)

// === User ===

const userColumns = `id, name, birthdate, gender, email, phone, address, password_hash,
	interests, has_allergies, allergies_detail, active, verified, created_at`

func scanUser(row pgx.Row) (*catalog.User, error) {
	var (
		u         catalog.User
		birthdate pgtype.Date
		interests pgtype.Text
		allergies pgtype.Text
	)
	err := row.Scan(
		&u.ID,
		&u.Name,
		&birthdate,
		&u.Gender,
		&u.Email,
		&u.Phone,
		&u.Address,
		&u.PasswordHash,
		&interests,
		&u.HasAllergies,
		&allergies,
		&u.Active,
		&u.Verified,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Birthdate = PgdateToTime(birthdate)
	u.Interests = PgtextToOption(interests)
	u.AllergiesDetail = PgtextToOption(allergies)
	return &u, nil
}

func (r *CatalogRepository) CreateUser(ctx context.Context, user *catalog.User) (*catalog.User, error) {
	query := `
		INSERT INTO users (name, birthdate, gender, email, phone, address, password_hash,
			interests, has_allergies, allergies_detail, active, verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + userColumns

	created, err := scanUser(r.q.QueryRow(ctx, query,
		user.Name,
		TimeToPgdate(user.Birthdate),
		user.Gender,
		user.Email,
		user.Phone,
		user.Address,
		user.PasswordHash,
		OptionToPgtext(user.Interests),
		user.HasAllergies,
		OptionToPgtext(user.AllergiesDetail),
		user.Active,
		user.Verified,
	))
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			switch constraint {
			case "users_email_key":
				return nil, catalog.ErrEmailTaken
			case "users_phone_key":
				return nil, catalog.ErrPhoneTaken
			}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

func (r *CatalogRepository) GetUser(ctx context.Context, id int64) (*catalog.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *CatalogRepository) GetUserByEmail(ctx context.Context, email string) (*catalog.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *CatalogRepository) GetUserByPhone(ctx context.Context, phone string) (*catalog.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
}

func (r *CatalogRepository) getUser(ctx context.Context, query string, arg any) (*catalog.User, error) {
	user, err := scanUser(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *CatalogRepository) UpdateUserInterests(ctx context.Context, id int64, interests mo.Option[string]) (*catalog.User, error) {
	query := `UPDATE users SET interests = $2 WHERE id = $1 RETURNING ` + userColumns
	user, err := scanUser(r.q.QueryRow(ctx, query, id, OptionToPgtext(interests)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update interests: %w", err)
	}
	return user, nil
}

// === Restaurant ===

const restaurantColumns = `id, name, image_url, summary_place, summary_address, summary_category,
	summary_description, summary_feature_menu, summary_phone, summary_parking, summary_price_tier,
	summary_opening_hours, created_at, updated_at`

func scanRestaurant(row pgx.Row) (*catalog.Restaurant, error) {
	var (
		rest                                          catalog.Restaurant
		imageURL, place, address, category, desc      pgtype.Text
		menu, phone, parking, priceTier, openingHours pgtype.Text
	)
	err := row.Scan(
		&rest.ID,
		&rest.Name,
		&imageURL,
		&place,
		&address,
		&category,
		&desc,
		&menu,
		&phone,
		&parking,
		&priceTier,
		&openingHours,
		&rest.CreatedAt,
		&rest.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rest.ImageURL = PgtextToOption(imageURL)
	rest.Summary = catalog.RestaurantSummary{
		Place:        PgtextToOption(place),
		Address:      PgtextToOption(address),
		Category:     PgtextToOption(category),
		Description:  PgtextToOption(desc),
		FeatureMenu:  PgtextToOption(menu),
		Phone:        PgtextToOption(phone),
		Parking:      PgtextToOption(parking),
		PriceTier:    PgtextToOption(priceTier),
		OpeningHours: PgtextToOption(openingHours),
	}
	return &rest, nil
}

func summaryArgs(s catalog.RestaurantSummary) []any {
	return []any{
		OptionToPgtext(s.Place),
		OptionToPgtext(s.Address),
		OptionToPgtext(s.Category),
		OptionToPgtext(s.Description),
		OptionToPgtext(s.FeatureMenu),
		OptionToPgtext(s.Phone),
		OptionToPgtext(s.Parking),
		OptionToPgtext(s.PriceTier),
		OptionToPgtext(s.OpeningHours),
	}
}

func scanRestaurants(rows pgx.Rows) ([]*catalog.Restaurant, error) {
	defer rows.Close()

	var out []*catalog.Restaurant
	for rows.Next() {
		rest, err := scanRestaurant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan restaurant: %w", err)
		}
		out = append(out, rest)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate restaurants: %w", err)
	}
	return out, nil
}

// CreateRestaurant はレストランを登録します。ID は常にシーケンスから採番します。
func (r *CatalogRepository) CreateRestaurant(ctx context.Context, restaurant *catalog.Restaurant) (*catalog.Restaurant, error) {
	query := `
		INSERT INTO restaurants (name, image_url, summary_place, summary_address, summary_category,
			summary_description, summary_feature_menu, summary_phone, summary_parking,
			summary_price_tier, summary_opening_hours)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + restaurantColumns

	args := append([]any{restaurant.Name, OptionToPgtext(restaurant.ImageURL)}, summaryArgs(restaurant.Summary)...)
	created, err := scanRestaurant(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to create restaurant: %w", err)
	}
	return created, nil
}

func (r *CatalogRepository) GetRestaurant(ctx context.Context, id int64) (*catalog.Restaurant, error) {
	rest, err := scanRestaurant(r.q.QueryRow(ctx, `SELECT `+restaurantColumns+` FROM restaurants WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get restaurant: %w", err)
	}
	return rest, nil
}

func (r *CatalogRepository) GetRestaurantsByIDs(ctx context.Context, ids []int64) ([]*catalog.Restaurant, error) {
	rows, err := r.q.Query(ctx, `SELECT `+restaurantColumns+` FROM restaurants WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get restaurants: %w", err)
	}
	return scanRestaurants(rows)
}

func (r *CatalogRepository) SearchRestaurantsByName(ctx context.Context, name string) ([]*catalog.Restaurant, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+restaurantColumns+`
		FROM restaurants
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY id
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to search restaurants: %w", err)
	}
	return scanRestaurants(rows)
}

func (r *CatalogRepository) ListRestaurants(ctx context.Context) ([]*catalog.Restaurant, error) {
	rows, err := r.q.Query(ctx, `SELECT `+restaurantColumns+` FROM restaurants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurants: %w", err)
	}
	return scanRestaurants(rows)
}

func (r *CatalogRepository) UpdateRestaurantSummary(ctx context.Context, id int64, summary catalog.RestaurantSummary) (*catalog.Restaurant, error) {
	query := `
		UPDATE restaurants
		SET summary_place = $2, summary_address = $3, summary_category = $4,
			summary_description = $5, summary_feature_menu = $6, summary_phone = $7,
			summary_parking = $8, summary_price_tier = $9, summary_opening_hours = $10,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING ` + restaurantColumns

	args := append([]any{id}, summaryArgs(summary)...)
	rest, err := scanRestaurant(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update restaurant summary: %w", err)
	}
	return rest, nil
}

// === Review ===

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrCodeForeignKeyViolation
}

func scanReviews(rows pgx.Rows) ([]*catalog.Review, error) {
	defer rows.Close()

	var out []*catalog.Review
	for rows.Next() {
		var rv catalog.Review
		var rating int16
		if err := rows.Scan(&rv.ID, &rv.UserID, &rv.RestaurantID, &rv.Content, &rating, &rv.IsAd, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		rv.Rating = int(rating)
		out = append(out, &rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reviews: %w", err)
	}
	return out, nil
}

func (r *CatalogRepository) CreateReview(ctx context.Context, review *catalog.Review) (*catalog.Review, error) {
	query := `
		INSERT INTO reviews (user_id, restaurant_id, content, rating, is_ad)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	created := *review
	err := r.q.QueryRow(ctx, query, review.UserID, review.RestaurantID, review.Content, int16(review.Rating), review.IsAd).
		Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("failed to create review: %w", err)
	}
	return &created, nil
}

func (r *CatalogRepository) ListReviewsByRestaurant(ctx context.Context, restaurantID int64) ([]*catalog.Review, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, user_id, restaurant_id, content, rating, is_ad, created_at
		FROM reviews
		WHERE restaurant_id = $1
		ORDER BY created_at, id
	`, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return scanReviews(rows)
}

func (r *CatalogRepository) ListReviewsByUser(ctx context.Context, userID int64, limit int) ([]*catalog.Review, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, user_id, restaurant_id, content, rating, is_ad, created_at
		FROM reviews
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return scanReviews(rows)
}

// === SearchLog ===

func (r *CatalogRepository) CreateSearchLog(ctx context.Context, log *catalog.SearchLog) (*catalog.SearchLog, error) {
	query := `
		INSERT INTO search_logs (user_id, query, searched_at)
		VALUES ($1, $2, COALESCE($3, CURRENT_TIMESTAMP))
		RETURNING id, searched_at
	`
	var searchedAt pgtype.Timestamptz
	if !log.SearchedAt.IsZero() {
		searchedAt = pgtype.Timestamptz{Time: log.SearchedAt, Valid: true}
	}

	created := *log
	if err := r.q.QueryRow(ctx, query, log.UserID, log.Query, searchedAt).Scan(&created.ID, &created.SearchedAt); err != nil {
		if isForeignKeyViolation(err) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("failed to create search log: %w", err)
	}
	return &created, nil
}

func (r *CatalogRepository) ListSearchLogsByUser(ctx context.Context, userID int64, limit int) ([]*catalog.SearchLog, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, user_id, query, searched_at
		FROM search_logs
		WHERE user_id = $1
		ORDER BY searched_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list search logs: %w", err)
	}
	defer rows.Close()

	var out []*catalog.SearchLog
	for rows.Next() {
		var l catalog.SearchLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Query, &l.SearchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan search log: %w", err)
		}
		out = append(out, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search logs: %w", err)
	}
	return out, nil
}

// TransactionalCatalog はプール上の CatalogRepository に一括登録を加えたもの
type TransactionalCatalog struct {
	*CatalogRepository
	tx *TransactionProvider
}

// NewTransactionalCatalog は TransactionalCatalog を作成します
func NewTransactionalCatalog(db *DB) *TransactionalCatalog {
	return &TransactionalCatalog{
		CatalogRepository: NewCatalogRepository(db.Pool),
		tx:                NewTransactionProvider(db.Pool),
	}
}

// CreateRestaurants は全件を1トランザクションで登録します。1件でも失敗すれば何も登録しません。
func (c *TransactionalCatalog) CreateRestaurants(ctx context.Context, restaurants []*catalog.Restaurant) ([]*catalog.Restaurant, error) {
	return Transact(ctx, c.tx, func(a *Adapter) ([]*catalog.Restaurant, error) {
		created := make([]*catalog.Restaurant, 0, len(restaurants))
		for _, rest := range restaurants {
			c, err := a.Catalog.CreateRestaurant(ctx, rest)
			if err != nil {
				return nil, fmt.Errorf("restaurant %q: %w", rest.Name, err)
			}
			created = append(created, c)
		}
		return created, nil
	})
}
