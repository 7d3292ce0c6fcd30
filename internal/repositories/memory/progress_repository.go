package memory

import (
	"context"
	"time"

	"github.com/ArowuTest/calmcoins-backend/internal/models"
	"github.com/ArowuTest/calmcoins-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var _ repositories.ProgressRepository = (*ProgressRepository)(nil)

// ProgressRepository is the in-memory game_progress table
type ProgressRepository struct {
	store *Store
}

// NewProgressRepository creates a ProgressRepository on store
func NewProgressRepository(store *Store) *ProgressRepository {
	return &ProgressRepository{store: store}
}

// snapshotFor records the current state of p so a rollback can restore it. Callers hold the store lock.
func snapshotFor(ctx context.Context, p *models.GameProgress) {
	prev := cloneProgress(p)
	remember(ctx, func() { *p = *prev })
}

func (r *ProgressRepository) byID(id primitive.ObjectID) *models.GameProgress {
	for _, p := range r.store.progress {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *ProgressRepository) FindByUserAndGame(_ context.Context, userID primitive.ObjectID, gameID string) (*models.GameProgress, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if p, ok := r.store.progress[progressKey{userID, gameID}]; ok {
		return cloneProgress(p), nil
	}
	return nil, repositories.ErrNotFound
}

func (r *ProgressRepository) FindOrCreate(ctx context.Context, seed *models.GameProgress) (*models.GameProgress, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := progressKey{seed.UserID, seed.GameID}
	if p, ok := r.store.progress[key]; ok {
		return cloneProgress(p), nil
	}
	now := time.Now()
	p := &models.GameProgress{
		ID:                 primitive.NewObjectID(),
		UserID:             seed.UserID,
		GameID:             seed.GameID,
		GameType:           seed.GameType,
		Role:               seed.Role,
		GameIndex:          seed.GameIndex,
		TotalLevels:        seed.TotalLevels,
		CoinsEarnedHistory: []models.CoinEarning{},
		LastPlayedAt:       now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	r.store.progress[key] = p
	remember(ctx, func() { delete(r.store.progress, key) })
	return cloneProgress(p), nil
}

func (r *ProgressRepository) MarkFullyCompleted(ctx context.Context, id primitive.ObjectID, earning models.CoinEarning) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p := r.byID(id)
	if p == nil || p.FullyCompleted {
		return false, nil
	}
	snapshotFor(ctx, p)
	at := earning.EarnedAt
	p.FullyCompleted = true
	p.CompletedAt = &at
	if earning.Amount > 0 {
		p.CoinsEarnedHistory = append(p.CoinsEarnedHistory, earning)
		p.TotalCoinsEarned += earning.Amount
	}
	p.UpdatedAt = time.Now()
	return true, nil
}

func (r *ProgressRepository) RecordPlay(ctx context.Context, id primitive.ObjectID, play models.PlayResult) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p := r.byID(id)
	if p == nil {
		return repositories.ErrNotFound
	}
	snapshotFor(ctx, p)
	if play.LevelsCompleted > p.LevelsCompleted {
		p.LevelsCompleted = play.LevelsCompleted
	}
	if play.Score > p.HighestScore {
		p.HighestScore = play.Score
	}
	p.PlayCount++
	p.LastPlayedAt = play.PlayedAt
	p.UpdatedAt = time.Now()
	return nil
}

func (r *ProgressRepository) UnlockReplay(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p := r.byID(id)
	if p == nil || !p.FullyCompleted || p.ReplayUnlocked {
		return false, nil
	}
	snapshotFor(ctx, p)
	p.ReplayUnlocked = true
	p.ReplayUnlockedAt = &at
	p.ReplayPurchases++
	p.UpdatedAt = time.Now()
	return true, nil
}

func (r *ProgressRepository) ConsumeReplay(ctx context.Context, id primitive.ObjectID) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p := r.byID(id)
	if p == nil || !p.ReplayUnlocked {
		return false, nil
	}
	snapshotFor(ctx, p)
	p.ReplayUnlocked = false
	p.ReplayUnlockedAt = nil
	p.UpdatedAt = time.Now()
	return true, nil
}

func (r *ProgressRepository) FindCompleted(_ context.Context, userID primitive.ObjectID, gameIDs []string, gameType, role string) ([]*models.GameProgress, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := []*models.GameProgress{}
	for _, id := range gameIDs {
		p, ok := r.store.progress[progressKey{userID, id}]
		if !ok || !p.FullyCompleted || p.GameType != gameType || p.Role != role {
			continue
		}
		out = append(out, cloneProgress(p))
	}
	return out, nil
}
