package catalog

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/mo"
)

// MemoryRepository はプロセス内の Repository 実装。テストとローカル実行に使う。
type MemoryRepository struct {
	mu          sync.RWMutex
	nextID      int64
	users       map[int64]*User
	restaurants map[int64]*Restaurant
	reviews     []*Review
	searchLogs  []*SearchLog
	now         func() time.Time
}

// NewMemoryRepository は空の MemoryRepository を作成する
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:       make(map[int64]*User),
		restaurants: make(map[int64]*Restaurant),
		now:         time.Now,
	}
}

func (r *MemoryRepository) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *MemoryRepository) CreateUser(ctx context.Context, user *User) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, ErrEmailTaken
		}
		if u.Phone == user.Phone {
			return nil, ErrPhoneTaken
		}
	}
	created := *user
	created.ID = r.id()
	created.CreatedAt = r.now()
	r.users[created.ID] = &created
	out := created
	return &out, nil
}

func (r *MemoryRepository) GetUser(ctx context.Context, id int64) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

func (r *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return r.findUser(func(u *User) bool { return u.Email == email })
}

func (r *MemoryRepository) GetUserByPhone(ctx context.Context, phone string) (*User, error) {
	return r.findUser(func(u *User) bool { return u.Phone == phone })
}

func (r *MemoryRepository) findUser(match func(*User) bool) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			out := *u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) UpdateUserInterests(ctx context.Context, id int64, interests mo.Option[string]) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.Interests = interests
	out := *u
	return &out, nil
}

func (r *MemoryRepository) CreateRestaurant(ctx context.Context, restaurant *Restaurant) (*Restaurant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	created := *restaurant
	if created.ID == 0 {
		created.ID = r.id()
	} else if created.ID > r.nextID {
		r.nextID = created.ID
	}
	created.CreatedAt = r.now()
	created.UpdatedAt = created.CreatedAt
	r.restaurants[created.ID] = &created
	out := created
	return &out, nil
}

func (r *MemoryRepository) GetRestaurant(ctx context.Context, id int64) (*Restaurant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rest, ok := r.restaurants[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rest
	return &out, nil
}

func (r *MemoryRepository) GetRestaurantsByIDs(ctx context.Context, ids []int64) ([]*Restaurant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Restaurant
	for _, id := range ids {
		if rest, ok := r.restaurants[id]; ok {
			cp := *rest
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRepository) SearchRestaurantsByName(ctx context.Context, name string) ([]*Restaurant, error) {
	needle := strings.ToLower(name)
	return r.listRestaurants(func(rest *Restaurant) bool {
		return strings.Contains(strings.ToLower(rest.Name), needle)
	}), nil
}

func (r *MemoryRepository) ListRestaurants(ctx context.Context) ([]*Restaurant, error) {
	return r.listRestaurants(func(*Restaurant) bool { return true }), nil
}

func (r *MemoryRepository) listRestaurants(match func(*Restaurant) bool) []*Restaurant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Restaurant
	for _, rest := range r.restaurants {
		if match(rest) {
			cp := *rest
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *Restaurant) int { return compareID(a.ID, b.ID) })
	return out
}

func (r *MemoryRepository) UpdateRestaurantSummary(ctx context.Context, id int64, summary RestaurantSummary) (*Restaurant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rest, ok := r.restaurants[id]
	if !ok {
		return nil, ErrNotFound
	}
	rest.Summary = summary
	rest.UpdatedAt = r.now()
	out := *rest
	return &out, nil
}

func (r *MemoryRepository) CreateReview(ctx context.Context, review *Review) (*Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[review.UserID]; !ok {
		return nil, ErrNotFound
	}
	if _, ok := r.restaurants[review.RestaurantID]; !ok {
		return nil, ErrNotFound
	}
	created := *review
	created.ID = r.id()
	created.CreatedAt = r.now()
	r.reviews = append(r.reviews, &created)
	out := created
	return &out, nil
}

func (r *MemoryRepository) ListReviewsByRestaurant(ctx context.Context, restaurantID int64) ([]*Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Review
	for _, rv := range r.reviews {
		if rv.RestaurantID == restaurantID {
			cp := *rv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListReviewsByUser(ctx context.Context, userID int64, limit int) ([]*Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Review
	for i := len(r.reviews) - 1; i >= 0 && len(out) < limit; i-- {
		if r.reviews[i].UserID == userID {
			cp := *r.reviews[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRepository) CreateSearchLog(ctx context.Context, log *SearchLog) (*SearchLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[log.UserID]; !ok {
		return nil, ErrNotFound
	}
	created := *log
	created.ID = r.id()
	if created.SearchedAt.IsZero() {
		created.SearchedAt = r.now()
	}
	r.searchLogs = append(r.searchLogs, &created)
	out := created
	return &out, nil
}

func (r *MemoryRepository) ListSearchLogsByUser(ctx context.Context, userID int64, limit int) ([]*SearchLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*SearchLog
	for i := len(r.searchLogs) - 1; i >= 0 && len(out) < limit; i-- {
		if r.searchLogs[i].UserID == userID {
			cp := *r.searchLogs[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func compareID(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

var _ Repository = (*MemoryRepository)(nil)
