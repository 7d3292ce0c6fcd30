package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/ArowuTest/calmcoins-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when a lookup matches no document
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned when an insert violates a unique key
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrInsufficientBalance is returned when a debit would make a balance negative
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// TxManager runs a function as one unit of work. Repository calls made with the
// context handed to fn take part in the same transaction.
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	// GrantBadge appends the badge unless the user already holds it. A legacy
	// entry for the same badge marked earned=false is replaced in place.
	// Reports whether the collection changed.
	GrantBadge(ctx context.Context, userID primitive.ObjectID, badge models.UserBadge) (bool, error)
	// AcknowledgeBadge clears the newlyEarned flag of a held badge
	AcknowledgeBadge(ctx context.Context, userID primitive.ObjectID, badgeID string) (bool, error)
}

// ProgressRepository defines the interface for per-user game progress
type ProgressRepository interface {
	FindByUserAndGame(ctx context.Context, userID primitive.ObjectID, gameID string) (*models.GameProgress, error)
	// FindOrCreate returns the record for seed.UserID/seed.GameID, inserting seed if none exists
	FindOrCreate(ctx context.Context, seed *models.GameProgress) (*models.GameProgress, error)
	// MarkFullyCompleted flips fullyCompleted from false to true and records the award.
	// Reports false when the record was already completed.
	MarkFullyCompleted(ctx context.Context, id primitive.ObjectID, earning models.CoinEarning) (bool, error)
	RecordPlay(ctx context.Context, id primitive.ObjectID, play models.PlayResult) error
	// UnlockReplay sets replayUnlocked on a completed record that is not unlocked yet
	UnlockReplay(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error)
	// ConsumeReplay resets replayUnlocked and replayUnlockedAt
	ConsumeReplay(ctx context.Context, id primitive.ObjectID) (bool, error)
	FindCompleted(ctx context.Context, userID primitive.ObjectID, gameIDs []string, gameType, role string) ([]*models.GameProgress, error)
}

// WalletRepository defines the interface for wallet balance operations.
//
// A balance change is tied to the id of its ledger entry: the id is pushed to
// pendingTransactions in the same update as the balance change, so applying
// the same entry twice is a no-op. ClearPending drops the id once the entry
// is marked applied.
type WalletRepository interface {
	FindByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Wallet, error)
	// ApplyCredit adds amount for txID, creating the wallet on first use.
	// Reports false when txID was applied before.
	ApplyCredit(ctx context.Context, userID, txID primitive.ObjectID, amount int, coinType string) (*models.Wallet, bool, error)
	// ApplyDebit subtracts amount for txID when the balance covers it.
	// Reports false when txID was applied before; returns ErrInsufficientBalance when short.
	ApplyDebit(ctx context.Context, userID, txID primitive.ObjectID, amount int) (*models.Wallet, bool, error)
	ClearPending(ctx context.Context, userID, txID primitive.ObjectID) error
}

// TransactionRepository defines the interface for the append-only ledger.
// Listings and sums only include applied entries.
type TransactionRepository interface {
	// Create appends an entry. Returns ErrDuplicateKey when the idempotency key was used before.
	Create(ctx context.Context, transaction *models.Transaction) error
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error)
	// MarkApplied moves a pending entry to applied
	MarkApplied(ctx context.Context, id primitive.ObjectID) error
	// DeletePending removes an entry that never reached the wallet
	DeletePending(ctx context.Context, id primitive.ObjectID) error
	FindByUserID(ctx context.Context, userID primitive.ObjectID, limit int) ([]*models.Transaction, error)
	// SumByUserID returns credits minus debits for the user
	SumByUserID(ctx context.Context, userID primitive.ObjectID) (int, error)
}

// NotificationRepository defines the interface for notification data operations
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	FindByUserID(ctx context.Context, userID primitive.ObjectID, page, limit int) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id, userID primitive.ObjectID) (bool, error)
	CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error)
}
