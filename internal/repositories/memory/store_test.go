package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ArowuTest/calmcoins-backend/internal/models"
	"github.com/ArowuTest/calmcoins-backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestTxManagerRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	wallets := NewWalletRepository(store)
	txs := NewTransactionRepository(store)
	userID := primitive.NewObjectID()

	_, _, err := wallets.ApplyCredit(ctx, userID, primitive.NewObjectID(), 10, models.CoinTypeCalm)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = NewTxManager(store).WithinTransaction(ctx, func(ctx context.Context) error {
		entry := &models.Transaction{UserID: userID, Type: models.TransactionCredit, Amount: 5, IdempotencyKey: "k1", State: models.TransactionPending}
		require.NoError(t, txs.Create(ctx, entry))
		_, _, err := wallets.ApplyCredit(ctx, userID, entry.ID, 5, models.CoinTypeCalm)
		require.NoError(t, err)
		require.NoError(t, txs.MarkApplied(ctx, entry.ID))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	w, err := wallets.FindByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 10, w.Balance)
	assert.Empty(t, w.PendingTransactions)

	history, err := txs.FindByUserID(ctx, userID, 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	// the key was rolled back too
	assert.NoError(t, txs.Create(ctx, &models.Transaction{UserID: userID, Type: models.TransactionCredit, Amount: 5, IdempotencyKey: "k1"}))
}

func TestRollbackKeepsWritesFromOutsideTheTransaction(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	wallets := NewWalletRepository(store)
	notes := NewNotificationRepository(store)
	userID := primitive.NewObjectID()
	otherID := primitive.NewObjectID()

	boom := errors.New("boom")
	err := NewTxManager(store).WithinTransaction(ctx, func(txCtx context.Context) error {
		_, _, err := wallets.ApplyCredit(txCtx, userID, primitive.NewObjectID(), 5, models.CoinTypeCalm)
		require.NoError(t, err)

		// Another request lands while the unit of work is open
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, notes.Create(context.Background(), &models.Notification{UserID: otherID, Title: "hello"}))
			_, _, err := wallets.ApplyCredit(context.Background(), userID, primitive.NewObjectID(), 3, models.CoinTypeCalm)
			assert.NoError(t, err)
		}()
		wg.Wait()
		return boom
	})
	assert.ErrorIs(t, err, boom)

	count, err := notes.CountUnread(ctx, otherID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	w, err := wallets.FindByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, w.Balance)
	assert.Len(t, w.PendingTransactions, 1)
}

func TestTransactionIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	txs := NewTransactionRepository(NewStore())
	userID := primitive.NewObjectID()

	require.NoError(t, txs.Create(ctx, &models.Transaction{UserID: userID, Type: models.TransactionCredit, Amount: 5, IdempotencyKey: "award"}))
	err := txs.Create(ctx, &models.Transaction{UserID: userID, Type: models.TransactionCredit, Amount: 5, IdempotencyKey: "award"})
	assert.ErrorIs(t, err, repositories.ErrDuplicateKey)

	require.NoError(t, txs.Create(ctx, &models.Transaction{UserID: userID, Type: models.TransactionDebit, Amount: 2}))
	sum, err := txs.SumByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, sum)
}

func TestWalletAppliesEachTransactionOnce(t *testing.T) {
	ctx := context.Background()
	wallets := NewWalletRepository(NewStore())
	userID := primitive.NewObjectID()

	_, _, err := wallets.ApplyDebit(ctx, userID, primitive.NewObjectID(), 1)
	assert.ErrorIs(t, err, repositories.ErrInsufficientBalance)

	credit := primitive.NewObjectID()
	w, applied, err := wallets.ApplyCredit(ctx, userID, credit, 3, models.CoinTypeCalm)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 3, w.Balance)

	w, applied, err = wallets.ApplyCredit(ctx, userID, credit, 3, models.CoinTypeCalm)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 3, w.Balance)

	_, _, err = wallets.ApplyDebit(ctx, userID, primitive.NewObjectID(), 4)
	assert.ErrorIs(t, err, repositories.ErrInsufficientBalance)

	debit := primitive.NewObjectID()
	w, applied, err = wallets.ApplyDebit(ctx, userID, debit, 3)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 0, w.Balance)

	// the repeat is recognised before the balance check
	w, applied, err = wallets.ApplyDebit(ctx, userID, debit, 3)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 0, w.Balance)

	require.NoError(t, wallets.ClearPending(ctx, userID, credit))
	require.NoError(t, wallets.ClearPending(ctx, userID, debit))
	w, err = wallets.FindByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, w.PendingTransactions)
}

func TestPendingTransactionsStayOffTheLedger(t *testing.T) {
	ctx := context.Background()
	txs := NewTransactionRepository(NewStore())
	userID := primitive.NewObjectID()

	entry := &models.Transaction{UserID: userID, Type: models.TransactionCredit, Amount: 5, IdempotencyKey: "award", State: models.TransactionPending}
	require.NoError(t, txs.Create(ctx, entry))

	sum, err := txs.SumByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, sum)
	history, err := txs.FindByUserID(ctx, userID, 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	require.NoError(t, txs.MarkApplied(ctx, entry.ID))
	// applied entries are not deleted
	require.NoError(t, txs.DeletePending(ctx, entry.ID))
	sum, err = txs.SumByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 5, sum)

	rejected := &models.Transaction{UserID: userID, Type: models.TransactionDebit, Amount: 9, IdempotencyKey: "unlock", State: models.TransactionPending}
	require.NoError(t, txs.Create(ctx, rejected))
	require.NoError(t, txs.DeletePending(ctx, rejected.ID))
	_, err = txs.FindByIdempotencyKey(ctx, "unlock")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestProgressCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	progress := NewProgressRepository(NewStore())
	userID := primitive.NewObjectID()

	p, err := progress.FindOrCreate(ctx, &models.GameProgress{UserID: userID, GameID: "emotions-1", GameType: "student-emotions", Role: "student", TotalLevels: 5})
	require.NoError(t, err)

	again, err := progress.FindOrCreate(ctx, &models.GameProgress{UserID: userID, GameID: "emotions-1"})
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)

	ok, err := progress.UnlockReplay(ctx, p.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "replay needs a completed record")

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := progress.MarkFullyCompleted(ctx, p.ID, models.CoinEarning{Amount: 5, Reason: "test", EarnedAt: time.Now()})
			assert.NoError(t, err)
			if won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	got, err := progress.FindByUserAndGame(ctx, userID, "emotions-1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.TotalCoinsEarned)
	assert.Len(t, got.CoinsEarnedHistory, 1)

	require.NoError(t, progress.RecordPlay(ctx, p.ID, models.PlayResult{LevelsCompleted: 5, Score: 5, PlayedAt: time.Now()}))
	require.NoError(t, progress.RecordPlay(ctx, p.ID, models.PlayResult{LevelsCompleted: 2, Score: 2, PlayedAt: time.Now()}))
	got, err = progress.FindByUserAndGame(ctx, userID, "emotions-1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.HighestScore)
	assert.Equal(t, 5, got.LevelsCompleted)
	assert.Equal(t, 2, got.PlayCount)

	ok, err = progress.UnlockReplay(ctx, p.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = progress.UnlockReplay(ctx, p.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = progress.ConsumeReplay(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	got, err = progress.FindByUserAndGame(ctx, userID, "emotions-1")
	require.NoError(t, err)
	assert.False(t, got.ReplayUnlocked)
	assert.Nil(t, got.ReplayUnlockedAt)
	assert.Equal(t, 1, got.ReplayPurchases)
}

func TestGrantBadgeUpgradesLegacyPlaceholder(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(NewStore())
	notEarned := false
	user := &models.User{Name: "Ada", Role: "student", Badges: []models.UserBadge{
		{BadgeID: "emotion-explorer", Name: "Emotion Explorer", LegacyEarned: &notEarned},
	}}
	require.NoError(t, users.Create(ctx, user))

	now := time.Now()
	changed, err := users.GrantBadge(ctx, user.ID, models.UserBadge{BadgeID: "emotion-explorer", Name: "Emotion Explorer", EarnedAt: &now, NewlyEarned: true})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = users.GrantBadge(ctx, user.ID, models.UserBadge{BadgeID: "emotion-explorer", Name: "Emotion Explorer", EarnedAt: &now, NewlyEarned: true})
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, got.Badges, 1)
	_, held := got.FindBadge("emotion-explorer", "")
	assert.True(t, held)
	assert.True(t, got.Badges[0].NewlyEarned)

	ok, err := users.AcknowledgeBadge(ctx, user.ID, "emotion-explorer")
	require.NoError(t, err)
	assert.True(t, ok)
	got, err = users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, got.Badges[0].NewlyEarned)
}

func TestGrantBadgeMatchesLegacyEntryByName(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(NewStore())
	notEarned := false
	earlier := time.Now().Add(-time.Hour)
	user := &models.User{Name: "Bo", Role: "student", Badges: []models.UserBadge{
		{Name: "Emotion Explorer", LegacyEarned: &notEarned},
		{BadgeID: "old-story-id", Name: "Story Seeker", EarnedAt: &earlier},
	}}
	require.NoError(t, users.Create(ctx, user))

	now := time.Now()
	changed, err := users.GrantBadge(ctx, user.ID, models.UserBadge{BadgeID: "emotion-explorer", Name: "Emotion Explorer", EarnedAt: &now})
	require.NoError(t, err)
	assert.True(t, changed)

	// held under another id
	changed, err = users.GrantBadge(ctx, user.ID, models.UserBadge{BadgeID: "story-seeker", Name: "Story Seeker", EarnedAt: &now})
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, got.Badges, 2)
	assert.Equal(t, "emotion-explorer", got.Badges[0].BadgeID)
	assert.True(t, got.Badges[0].IsEarned())
}

func TestNotificationPaging(t *testing.T) {
	ctx := context.Background()
	notes := NewNotificationRepository(NewStore())
	userID := primitive.NewObjectID()

	for i := 0; i < 3; i++ {
		require.NoError(t, notes.Create(ctx, &models.Notification{UserID: userID, Title: "n"}))
	}
	require.NoError(t, notes.Create(ctx, &models.Notification{UserID: primitive.NewObjectID(), Title: "other"}))

	page, err := notes.FindByUserID(ctx, userID, 1, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	page, err = notes.FindByUserID(ctx, userID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	ok, err := notes.MarkRead(ctx, page[0].ID, userID)
	require.NoError(t, err)
	assert.True(t, ok)
	unread, err := notes.CountUnread(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	ok, err = notes.MarkRead(ctx, page[0].ID, primitive.NewObjectID())
	require.NoError(t, err)
	assert.False(t, ok)
}
