package memory

import (
	"context"
	"time"

	"github.com/ArowuTest/calmcoins-backend/internal/models"
	"github.com/ArowuTest/calmcoins-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var _ repositories.UserRepository = (*UserRepository)(nil)

// UserRepository is the in-memory user table
type UserRepository struct {
	store *Store
}

// NewUserRepository creates a UserRepository on store
func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if _, ok := r.store.users[user.ID]; ok {
		return repositories.ErrDuplicateKey
	}
	if user.Badges == nil {
		user.Badges = []models.UserBadge{}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.store.users[user.ID] = cloneUser(user)
	id := user.ID
	remember(ctx, func() { delete(r.store.users, id) })
	return nil
}

func (r *UserRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if u, ok := r.store.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, repositories.ErrNotFound
}

func (r *UserRepository) GrantBadge(ctx context.Context, userID primitive.ObjectID, badge models.UserBadge) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	u, ok := r.store.users[userID]
	if !ok {
		return false, nil
	}
	existing, held := u.FindBadge(badge.BadgeID, badge.Name)
	if held {
		return false, nil
	}
	prev := cloneUser(u)
	remember(ctx, func() { *u = *prev })
	if existing != nil {
		*existing = cloneBadge(badge)
	} else {
		u.Badges = append(u.Badges, cloneBadge(badge))
	}
	u.UpdatedAt = time.Now()
	return true, nil
}

func (r *UserRepository) AcknowledgeBadge(ctx context.Context, userID primitive.ObjectID, badgeID string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	u, ok := r.store.users[userID]
	if !ok {
		return false, nil
	}
	for i := range u.Badges {
		if u.Badges[i].BadgeID == badgeID && u.Badges[i].NewlyEarned {
			b := &u.Badges[i]
			remember(ctx, func() { b.NewlyEarned = true })
			b.NewlyEarned = false
			u.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}
