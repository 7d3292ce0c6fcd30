package memory

import (
	"context"
	"sort"
	"time"

	"github.com/ArowuTest/calmcoins-backend/internal/models"
	"github.com/ArowuTest/calmcoins-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var _ repositories.NotificationRepository = (*NotificationRepository)(nil)

// NotificationRepository is the in-memory notifications table
type NotificationRepository struct {
	store *Store
}

// NewNotificationRepository creates a NotificationRepository on store
func NewNotificationRepository(store *Store) *NotificationRepository {
	return &NotificationRepository{store: store}
}

func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if notification.ID.IsZero() {
		notification.ID = primitive.NewObjectID()
	}
	notification.CreatedAt = time.Now()
	notification.UpdatedAt = notification.CreatedAt
	r.store.notifications = append(r.store.notifications, cloneNotification(notification))

	id := notification.ID
	remember(ctx, func() {
		for i, n := range r.store.notifications {
			if n.ID == id {
				r.store.notifications = append(r.store.notifications[:i:i], r.store.notifications[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (r *NotificationRepository) FindByUserID(_ context.Context, userID primitive.ObjectID, page, limit int) ([]*models.Notification, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	all := []*models.Notification{}
	for i := len(r.store.notifications) - 1; i >= 0; i-- {
		if n := r.store.notifications[i]; n.UserID == userID {
			all = append(all, cloneNotification(n))
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if limit <= 0 || start >= len(all) {
		return []*models.Notification{}, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID primitive.ObjectID) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, n := range r.store.notifications {
		if n.ID == id && n.UserID == userID {
			wasRead := n.Read
			remember(ctx, func() { n.Read = wasRead })
			n.Read = true
			n.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (r *NotificationRepository) CountUnread(_ context.Context, userID primitive.ObjectID) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var n int64
	for _, note := range r.store.notifications {
		if note.UserID == userID && !note.Read {
			n++
		}
	}
	return n, nil
}
