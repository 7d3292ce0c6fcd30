package services

import (
	"context"

	"github.com/ArowuTest/calmcoins-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LedgerService defines wallet mutations that keep the balance reconstructible from the transaction log.
//
// Every mutation is written as a pending ledger entry first and then committed
// to the wallet. Each step can be repeated, so a caller that fails halfway
// finishes the mutation by retrying with the same idempotency key.
type LedgerService interface {
	// Credit adds coins. A reused idempotency key returns the current wallet with applied=false.
	Credit(ctx context.Context, req CreditRequest) (wallet *models.Wallet, applied bool, err error)

	// PrepareCredit records a pending credit without moving the balance.
	// A key used before returns the existing entry.
	PrepareCredit(ctx context.Context, req CreditRequest) (*models.Transaction, error)

	// Commit applies a pending entry to the wallet. applied is false when the entry was already applied.
	Commit(ctx context.Context, transaction *models.Transaction) (wallet *models.Wallet, applied bool, err error)

	// Resume commits the entry written under key if an earlier call left it pending.
	// Returns the coins moved by this call, zero when there was nothing to finish.
	Resume(ctx context.Context, userID primitive.ObjectID, key string) (*models.Wallet, int, error)

	// Debit removes coins, failing with InsufficientFundsError when the balance does not cover them.
	// A reused idempotency key does not charge again and returns charged=false.
	Debit(ctx context.Context, req DebitRequest) (wallet *models.Wallet, charged bool, err error)

	// Balance returns the wallet, zeroed when the user has none yet
	Balance(ctx context.Context, userID primitive.ObjectID) (*models.Wallet, error)

	// History returns the newest ledger entries
	History(ctx context.Context, userID primitive.ObjectID, limit int) ([]*models.Transaction, error)

	// Reconcile compares the wallet with the sum of its ledger
	Reconcile(ctx context.Context, userID primitive.ObjectID) (*Reconciliation, error)
}

// CompletionService defines game completion and progress operations
type CompletionService interface {
	// CompleteGame records one attempt and awards coins on the first fully correct completion
	CompleteGame(ctx context.Context, in CompleteGameInput) (*CompleteGameResult, error)

	// Progress returns the progress of a game, zeroed when it was never played
	Progress(ctx context.Context, userID primitive.ObjectID, gameID string) (*ProgressView, error)
}

// ReplayService defines replay purchases
type ReplayService interface {
	UnlockReplay(ctx context.Context, in UnlockReplayInput) (*UnlockReplayResult, error)
}

// BadgeService defines badge roster checks and grants
type BadgeService interface {
	CheckRequiredCompleted(ctx context.Context, userID primitive.ObjectID, badge models.BadgeDefinition) (*models.RosterStatus, error)
	CheckBadgeStatus(ctx context.Context, userID primitive.ObjectID, badgeKey string) (*BadgeStatus, error)
	CollectBadge(ctx context.Context, userID primitive.ObjectID, badgeKey string) (*CollectBadgeResult, error)
	AllStatuses(ctx context.Context, userID primitive.ObjectID) ([]*BadgeStatus, error)
	AcknowledgeBadge(ctx context.Context, userID primitive.ObjectID, badgeKey string) (bool, error)
	EligibleBadges(ctx context.Context, userID primitive.ObjectID, gameID string) ([]models.BadgeDefinition, error)
}

// NotificationService defines user notification operations
type NotificationService interface {
	// Notify persists the notification and pushes it to connected clients
	Notify(ctx context.Context, notification *models.Notification) error
	ListForUser(ctx context.Context, userID primitive.ObjectID, page, limit int) (*NotificationPage, error)
	MarkRead(ctx context.Context, id, userID primitive.ObjectID) error
}

// UserService defines user profile operations
type UserService interface {
	Profile(ctx context.Context, userID primitive.ObjectID) (*UserProfile, error)
}
