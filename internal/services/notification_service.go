package services

import (
	"context"
	"encoding/json"

	"github.com/ArowuTest/calmcoins-backend/internal/apperrors"
	"github.com/ArowuTest/calmcoins-backend/internal/models"
	"github.com/ArowuTest/calmcoins-backend/internal/realtime"
	"github.com/ArowuTest/calmcoins-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/exp/slog"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Compile-time check to ensure Notifier implements NotificationService
var _ NotificationService = (*Notifier)(nil)

// NotificationPage is one page of a user's notifications
type NotificationPage struct {
	Notifications []*models.Notification `json:"notifications"`
	Page          int                    `json:"page"`
	Limit         int                    `json:"limit"`
	Unread        int64                  `json:"unread"`
}

// Notifier stores notifications and pushes them to connected clients
type Notifier struct {
	notificationRepo repositories.NotificationRepository
	publisher        realtime.Publisher
	log              *slog.Logger
}

// NewNotifier creates a new Notifier
func NewNotifier(notificationRepo repositories.NotificationRepository, publisher realtime.Publisher, log *slog.Logger) *Notifier {
	if publisher == nil {
		publisher = realtime.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		notificationRepo: notificationRepo,
		publisher:        publisher,
		log:              log.With("service", "Notifier"),
	}
}

// Notify implements NotificationService. Push failures are only logged.
func (s *Notifier) Notify(ctx context.Context, notification *models.Notification) error {
	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		return apperrors.Persistence("create notification", err)
	}

	var data map[string]interface{}
	raw, err := json.Marshal(notification)
	if err == nil {
		err = json.Unmarshal(raw, &data)
	}
	if err != nil {
		s.log.Warn("Failed to encode notification", "notificationId", notification.ID.Hex(), "error", err)
		return nil
	}

	ev := realtime.Event{UserID: notification.UserID.Hex(), Name: realtime.EventNotification, Data: data}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Warn("Failed to push notification", "notificationId", notification.ID.Hex(), "userId", ev.UserID, "error", err)
	}
	return nil
}

// ListForUser implements NotificationService
func (s *Notifier) ListForUser(ctx context.Context, userID primitive.ObjectID, page, limit int) (*NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	notifications, err := s.notificationRepo.FindByUserID(ctx, userID, page, limit)
	if err != nil {
		return nil, apperrors.Persistence("list notifications", err)
	}
	unread, err := s.notificationRepo.CountUnread(ctx, userID)
	if err != nil {
		return nil, apperrors.Persistence("count unread notifications", err)
	}
	return &NotificationPage{Notifications: notifications, Page: page, Limit: limit, Unread: unread}, nil
}

// MarkRead implements NotificationService
func (s *Notifier) MarkRead(ctx context.Context, id, userID primitive.ObjectID) error {
	ok, err := s.notificationRepo.MarkRead(ctx, id, userID)
	if err != nil {
		return apperrors.Persistence("mark notification read", err)
	}
	if !ok {
		return &apperrors.NotFoundError{Resource: "notification", ID: id.Hex()}
	}
	return nil
}
