// Package memory provides in-process implementations of the repository
// interfaces. It backs tests and single-instance development runs.
package memory

import (
	"context"
	"sync"

	"github.com/ArowuTest/calmcoins-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store holds every table behind one lock
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	users         map[primitive.ObjectID]*models.User
	progress      map[progressKey]*models.GameProgress
	wallets       map[primitive.ObjectID]*models.Wallet
	transactions  []*models.Transaction
	idemKeys      map[string]*models.Transaction
	notifications []*models.Notification
}

type progressKey struct {
	userID primitive.ObjectID
	gameID string
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{
		users:    make(map[primitive.ObjectID]*models.User),
		progress: make(map[progressKey]*models.GameProgress),
		wallets:  make(map[primitive.ObjectID]*models.Wallet),
		idemKeys: make(map[string]*models.Transaction),
	}
}

type undoKey struct{}

// undoLog collects the inverse of every write made inside one unit of work.
// Steps are appended and replayed while holding Store.mu.
type undoLog struct {
	steps []func()
}

func withUndoLog(ctx context.Context) (context.Context, *undoLog) {
	log := &undoLog{}
	return context.WithValue(ctx, undoKey{}, log), log
}

// remember records how to reverse a write made with ctx. Writes outside a
// unit of work are not recorded. Callers hold s.mu.
func remember(ctx context.Context, undo func()) {
	if log, ok := ctx.Value(undoKey{}).(*undoLog); ok {
		log.steps = append(log.steps, undo)
	}
}

// rollback reverses the writes of one unit of work, newest first
func (s *Store) rollback(log *undoLog) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(log.steps) - 1; i >= 0; i-- {
		log.steps[i]()
	}
	log.steps = nil
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Badges = make([]models.UserBadge, len(u.Badges))
	for i, b := range u.Badges {
		c.Badges[i] = cloneBadge(b)
	}
	return &c
}

func cloneBadge(b models.UserBadge) models.UserBadge {
	if b.EarnedAt != nil {
		t := *b.EarnedAt
		b.EarnedAt = &t
	}
	if b.LegacyEarned != nil {
		v := *b.LegacyEarned
		b.LegacyEarned = &v
	}
	return b
}

func cloneProgress(p *models.GameProgress) *models.GameProgress {
	c := *p
	c.CoinsEarnedHistory = append([]models.CoinEarning{}, p.CoinsEarnedHistory...)
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		c.CompletedAt = &t
	}
	if p.ReplayUnlockedAt != nil {
		t := *p.ReplayUnlockedAt
		c.ReplayUnlockedAt = &t
	}
	return &c
}

func cloneNotification(n *models.Notification) *models.Notification {
	c := *n
	if n.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(n.Metadata))
		for k, v := range n.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
