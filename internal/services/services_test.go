package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ArowuTest/calmcoins-backend/internal/apperrors"
	"github.com/ArowuTest/calmcoins-backend/internal/catalog"
	"github.com/ArowuTest/calmcoins-backend/internal/keylock"
	"github.com/ArowuTest/calmcoins-backend/internal/models"
	"github.com/ArowuTest/calmcoins-backend/internal/realtime"
	"github.com/ArowuTest/calmcoins-backend/internal/repositories"
	"github.com/ArowuTest/calmcoins-backend/internal/repositories/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) named(name string) []realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []realtime.Event
	for _, ev := range p.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

type testEnv struct {
	store         *memory.Store
	users         *memory.UserRepository
	progress      *memory.ProgressRepository
	wallets       repositories.WalletRepository
	transactions  *memory.TransactionRepository
	notifications *memory.NotificationRepository
	publisher     *recordingPublisher

	ledger     *Ledger
	notifier   *Notifier
	badges     *BadgeEngine
	completion *CompletionRecorder
	replay     *ReplayUnlocker
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWith(t, envOptions{})
}

// envOptions lets a test swap pieces of the storage stack
type envOptions struct {
	wallets   func(repositories.WalletRepository) repositories.WalletRepository
	progress  func(repositories.ProgressRepository) repositories.ProgressRepository
	txManager repositories.TxManager
}

func newTestEnvWith(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	store := memory.NewStore()
	env := &testEnv{
		store:         store,
		users:         memory.NewUserRepository(store),
		progress:      memory.NewProgressRepository(store),
		wallets:       memory.NewWalletRepository(store),
		transactions:  memory.NewTransactionRepository(store),
		notifications: memory.NewNotificationRepository(store),
		publisher:     &recordingPublisher{},
	}
	if opts.wallets != nil {
		env.wallets = opts.wallets(env.wallets)
	}
	var progress repositories.ProgressRepository = env.progress
	if opts.progress != nil {
		progress = opts.progress(progress)
	}
	tx := opts.txManager
	if tx == nil {
		tx = memory.NewTxManager(store)
	}
	cat := catalog.Default()
	locker := keylock.NewMemory()

	env.ledger = NewLedger(env.wallets, env.transactions, nil)
	env.notifier = NewNotifier(env.notifications, env.publisher, nil)
	env.badges = NewBadgeEngine(cat, env.users, env.progress, env.notifier, locker, nil)
	env.completion = NewCompletionRecorder(cat, progress, env.ledger, tx, locker, env.publisher, env.badges, nil)
	env.replay = NewReplayUnlocker(progress, env.ledger, tx, locker, env.publisher, nil)
	return env
}

func (e *testEnv) newUser(t *testing.T, role string) primitive.ObjectID {
	t.Helper()
	u := &models.User{Name: "Test " + role, Email: role + "@example.com", Role: role}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u.ID
}

func emotionsGame(userID primitive.ObjectID, gameID string, index, score int) CompleteGameInput {
	return CompleteGameInput{
		UserID:      userID,
		Role:        catalog.RoleStudent,
		GameID:      gameID,
		GameType:    "student-emotions",
		GameIndex:   index,
		Score:       score,
		TotalLevels: catalog.QuestionsPerGame,
	}
}

func TestCompleteGameAwardsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.newUser(t, catalog.RoleStudent)

	res, err := env.completion.CompleteGame(ctx, emotionsGame(userID, "emotions-1", 1, 5))
	require.NoError(t, err)
	assert.Equal(t, 5, res.CalmCoinsEarned)
	assert.Equal(t, 5, res.NewBalance)
	assert.True(t, res.FullyCompleted)
	assert.True(t, res.AllAnswersCorrect)
	assert.False(t, res.IsReplay)

	res, err = env.completion.CompleteGame(ctx, emotionsGame(userID, "emotions-1", 1, 5))
	require.NoError(t, err)
	assert.Equal(t, 0, res.CalmCoinsEarned)
	assert.Equal(t, 5, res.NewBalance)
	assert.True(t, res.FullyCompleted)

	history, err := env.ledger.History(ctx, userID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.TransactionCredit, history[0].Type)
	assert.Equal(t, "emotions-1", history[0].Reference)

	events := env.publisher.named(realtime.EventCoinsUpdated)
	require.Len(t, events, 1)
	assert.Equal(t, userID.Hex(), events[0].UserID)
	assert.Equal(t, 5, events[0].Data["earned"])
	assert.Equal(t, 5, events[0].Data["balance"])

	progress, err := env.completion.Progress(ctx, userID, "emotions-1")
	require.NoError(t, err)
	assert.Equal(t, 5, progress.TotalCoinsEarned)
	assert.Equal(t, 2, progress.PlayCount)
	assert.Equal(t, 5, progress.HighestScore)
}

func TestCompleteGameTierRewards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.newUser(t, catalog.RoleStudent)

	cases := []struct {
		gameID string
		index  int
		want   int
	}{
		{"g-25", 25, 5},
		{"g-26", 26, 10},
		{"g-60", 60, 15},
		{"g-100", 100, 20},
		{"g-0", 0, 5},
	}
	total := 0
	for _, c := range cases {
		res, err := env.completion.CompleteGame(ctx, emotionsGame(userID, c.gameID, c.index, 5))
		require.NoError(t, err)
		assert.Equal(t, c.want, res.CalmCoinsEarned, c.gameID)
		total += c.want
		assert.Equal(t, total, res.NewBalance)
	}
}

func TestCompleteGamePartialScoreEarnsNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.newUser(t, catalog.RoleStudent)

	res, err := env.completion.CompleteGame(ctx, emotionsGame(userID, "emotions-2", 2, 4))
	require.NoError(t, err)
	assert.Equal(t, 0, res.CalmCoinsEarned)
	assert.False(t, res.FullyCompleted)
	assert.False(t, res.AllAnswersCorrect)
	assert.Equal(t, 0, res.NewBalance)
	assert.Empty(t, env.publisher.named(realtime.EventCoinsUpdated))

	progress, err := env.completion.Progress(ctx, userID, "emotions-2")
	require.NoError(t, err)
	assert.Equal(t, 4, progress.HighestScore)
	assert.Equal(t, catalog.QuestionsPerGame, progress.LevelsCompleted)
	assert.False(t, progress.FullyCompleted)

	// a later perfect run still earns the award
	res, err = env.completion.CompleteGame(ctx, emotionsGame(userID, "emotions-2", 2, 5))
	require.NoError(t, err)
	assert.Equal(t, 5, res.CalmCoinsEarned)
}

func TestCompleteGameCoinOverride(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.newUser(t, catalog.RoleStudent)

	coins := 12
	in := emotionsGame(userID, "emotions-3", 3, 5)
	in.CoinOverride = &coins
	res, err := env.completion.CompleteGame(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 12, res.CalmCoinsEarned)

	zero := 0
	in = emotionsGame(userID, "emotions-4", 4, 5)
	in.CoinOverride = &zero
	res, err = env.completion.CompleteGame(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 0, res.CalmCoinsEarned)
	assert.True(t, res.FullyCompleted)
	assert.Equal(t, 12, res.NewBalance)
}

func TestCompleteGameValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := primitive.NewObjectID()
	negative := -1

	cases := map[string]struct {
		mutate func(*CompleteGameInput)
		field  string
	}{
		"unknown game type": {func(in *CompleteGameInput) { in.GameType = "nope" }, "gameType"},
		"missing game id":   {func(in *CompleteGameInput) { in.GameID = "" }, "gameId"},
		"wrong level count": {func(in *CompleteGameInput) { in.TotalLevels = 4 }, "totalLevels"},
		"score too high":    {func(in *CompleteGameInput) { in.Score = 6 }, "score"},
		"negative score":    {func(in *CompleteGameInput) { in.Score = -1 }, "score"},
		"negative override": {func(in *CompleteGameInput) { in.CoinOverride = &negative }, "coins"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			in := emotionsGame(userID, "emotions-1", 1, 5)
			c.mutate(&in)
			_, err := env.completion.CompleteGame(ctx, in)
			var vErr *apperrors.ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.Equal(t, c.field, vErr.Field)
		})
	}

	in := emotionsGame(userID, "emotions-1", 1, 5)
	in.TotalLevels = 4
	_, err := env.completion.CompleteGame(ctx, in)
	var vErr *apperrors.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, 5, vErr.Expected)
	assert.Equal(t, 4, vErr.Received)
}

func TestCompleteGameConcurrentCallsCreditOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.newUser(t, catalog.RoleStudent)

	var wg sync.WaitGroup
	var mu sync.Mutex
	earned := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := env.completion.CompleteGame(ctx, emotionsGame(userID, "emotions-1", 1, 5))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			earned += res.CalmCoinsEarned
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, earned)
	wallet, err := env.ledger.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 5, wallet.Balance)

	history, err := env.ledger.History(ctx, userID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

// failOnce reports true the first time it is called
type failOnce struct {
	mu   sync.Mutex
	done bool
}

func (f *failOnce) fail() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return false
	}
	f.done = true
	return true
}

type failingWallets struct {
	repositories.WalletRepository
	once *failOnce
}

func (w failingWallets) ApplyCredit(ctx context.Context, userID, txID primitive.ObjectID, amount int, coinType string) (*models.Wallet, bool, error) {
	if w.once.fail() {
		return nil, false, errors.New("disk on fire")
	}
	return w.WalletRepository.ApplyCredit(ctx, userID, txID, amount, coinType)
}

type failingUnlocks struct {
	repositories.ProgressRepository
	once *failOnce
}

func (p failingUnlocks) UnlockReplay(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	if p.once.fail() {
		return false, errors.New("disk on fire")
	}
	return p.ProgressRepository.UnlockReplay(ctx, id, at)
}

// noTransactions runs units of work directly, like a deployment without transactions
type noTransactions struct{}

func (noTransactions) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func TestCompleteGameRollsBackOnStorageFailure(t *testing.T) {
	env := newTestEnvWith(t, envOptions{
		wallets: func(r repositories.WalletRepository) repositories.WalletRepository {
			return failingWallets{r, &failOnce{}}
		},
	})
	ctx := context.Background()
	userID := env.newUser(t, catalog.RoleStudent)

	_, err := env.completion.CompleteGame(ctx, emotionsGame(userID, "emotions-1", 1, 5))
	var pErr *apperrors.PersistenceError
	require.True(t, errors.As(err, &pErr), "got %v", err)
	assert.Equal(t, "apply transaction to wallet", pErr.Op)

	_, err = env.progress.FindByUserAndGame(ctx, userID, "emotions-1")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = env.transactions.FindByIdempotencyKey(ctx, gameAwardKey(userID, "emotions-1"))
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	res, err := env.completion.CompleteGame(ctx, emotionsGame(userID, "emotions-1", 1, 5))
	require.NoError(t, err)
	assert.Equal(t, 5, res.CalmCoinsEarned)
	assert.Equal(t, 5, res.NewBalance)
}

func TestCompleteGameRetryFinishesAwardWithoutTransactions(t *testing.T) {
	env := newTestEnvWith(t, envOptions{
		wallets: func(r repositories.WalletRepository) repositories.WalletRepository {
			return failingWallets{r, &failOnce{}}
		},
		txManager: noTransactions{},
	})
	ctx := context.Background()
	userID := env.newUser(t, catalog.RoleStudent)

	_, err := env.completion.CompleteGame(ctx, emotionsGame(userID, "emotions-1", 1, 5))
	require.Error(t, err)

	// the record flipped but the coins did not move yet
	progress, err := env.progress.FindByUserAndGame(ctx, userID, "emotions-1")
	require.NoError(t, err)
	assert.True(t, progress.FullyCompleted)
	wallet, err := env.ledger.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, wallet.Balance)

	res, err := env.completion.CompleteGame(ctx, emotionsGame(userID, "emotions-1", 1, 5))
	require.NoError(t, err)
	assert.Equal(t, 5, res.CalmCoinsEarned)
	assert.Equal(t, 5, res.NewBalance)

	res, err = env.completion.CompleteGame(ctx, emotionsGame(userID, "emotions-1", 1, 5))
	require.NoError(t, err)
	assert.Equal(t, 0, res.CalmCoinsEarned)
	assert.Equal(t, 5, res.NewBalance)

	rec, err := env.ledger.Reconcile(ctx, userID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.Equal(t, 5, rec.LedgerBalance)
}

func TestReplayUnlockRetryChargesOnce(t *testing.T) {
	env := newTestEnvWith(t, envOptions{
		progress: func(r repositories.ProgressRepository) repositories.ProgressRepository {
			return failingUnlocks{r, &failOnce{}}
		},
		txManager: noTransactions{},
	})
	ctx := context.Background()
	userID := env.newUser(t, catalog.RoleStudent)

	_, err := env.completion.CompleteGame(ctx, emotionsGame(userID, "emotions-1", 1, 5))
	require.NoError(t, err)

	_, err = env.replay.UnlockReplay(ctx, UnlockReplayInput{UserID: userID, GameID: "emotions-1"})
	require.Error(t, err)
	wallet, err := env.ledger.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, wallet.Balance, "charged before the unlock failed")

	unlock, err := env.replay.UnlockReplay(ctx, UnlockReplayInput{UserID: userID, GameID: "emotions-1"})
	require.NoError(t, err)
	assert.True(t, unlock.ReplayUnlocked)
	assert.Equal(t, 3, unlock.NewBalance)

	rec, err := env.ledger.Reconcile(ctx, userID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.Equal(t, 3, rec.LedgerBalance)

	// the next purchase is a new charge
	_, err = env.completion.CompleteGame(ctx, emotionsGame(userID, "emotions-1", 1, 5))
	require.NoError(t, err)
	unlock, err = env.replay.UnlockReplay(ctx, UnlockReplayInput{UserID: userID, GameID: "emotions-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, unlock.NewBalance)
}

func TestReplayScenarioForHigherTier(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.newUser(t, catalog.RoleStudent)

	res, err := env.completion.CompleteGame(ctx, emotionsGame(userID, "emotions-30", 30, 5))
	require.NoError(t, err)
	assert.Equal(t, 10, res.CalmCoinsEarned)
	assert.Equal(t, 10, res.NewBalance)
	assert.True(t, res.FullyCompleted)

	unlock, err := env.replay.UnlockReplay(ctx, UnlockReplayInput{UserID: userID, GameID: "emotions-30", GameIndex: 30})
	require.NoError(t, err)
	assert.Equal(t, 4, unlock.ReplayCost)
	assert.Equal(t, 6, unlock.NewBalance)

	res, err = env.completion.CompleteGame(ctx, emotionsGame(userID, "emotions-30", 30, 3))
	require.NoError(t, err)
	assert.True(t, res.IsReplay)
	assert.False(t, res.AllAnswersCorrect)
	assert.Equal(t, 0, res.CalmCoinsEarned)
	assert.False(t, res.ReplayUnlocked)
	assert.Equal(t, 6, res.NewBalance)

	progress, err := env.completion.Progress(ctx, userID, "emotions-30")
	require.NoError(t, err)
	assert.False(t, progress.ReplayUnlocked)
	assert.True(t, progress.FullyCompleted)
	assert.Equal(t, 5, progress.HighestScore)
	assert.Equal(t, 10, progress.TotalCoinsEarned)
	assert.Equal(t, 4, progress.ReplayCost)
}

func TestExplicitReplayOnUncompletedGameEarnsNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.newUser(t, catalog.RoleStudent)

	in := emotionsGame(userID, "emotions-2", 2, 5)
	in.IsReplay = true
	res, err := env.completion.CompleteGame(ctx, in)
	require.NoError(t, err)
	assert.True(t, res.IsReplay)
	assert.True(t, res.AllAnswersCorrect)
	assert.Equal(t, 0, res.CalmCoinsEarned)
	assert.False(t, res.FullyCompleted)
	assert.Equal(t, 0, res.NewBalance)

	progress, err := env.completion.Progress(ctx, userID, "emotions-2")
	require.NoError(t, err)
	assert.False(t, progress.FullyCompleted)
	assert.Equal(t, 5, progress.HighestScore)

	// a normal perfect attempt still earns the award afterwards
	res, err = env.completion.CompleteGame(ctx, emotionsGame(userID, "emotions-2", 2, 5))
	require.NoError(t, err)
	assert.Equal(t, 5, res.CalmCoinsEarned)
}

func TestReplayLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.newUser(t, catalog.RoleStudent)

	_, err := env.replay.UnlockReplay(ctx, UnlockReplayInput{UserID: userID, GameID: "emotions-1", GameIndex: 1})
	var ncErr *apperrors.NotCompletedError
	require.True(t, errors.As(err, &ncErr), "got %v", err)

	_, err = env.completion.CompleteGame(ctx, emotionsGame(userID, "emotions-1", 1, 3))
	require.NoError(t, err)
	_, err = env.replay.UnlockReplay(ctx, UnlockReplayInput{UserID: userID, GameID: "emotions-1", GameIndex: 1})
	var neErr *apperrors.NotEligibleError
	require.True(t, errors.As(err, &neErr), "got %v", err)

	_, err = env.completion.CompleteGame(ctx, emotionsGame(userID, "emotions-1", 1, 5))
	require.NoError(t, err)

	unlock, err := env.replay.UnlockReplay(ctx, UnlockReplayInput{UserID: userID, GameID: "emotions-1", GameIndex: 1})
	require.NoError(t, err)
	assert.True(t, unlock.ReplayUnlocked)
	assert.False(t, unlock.AlreadyUnlocked)
	assert.Equal(t, 2, unlock.ReplayCost)
	assert.Equal(t, 3, unlock.NewBalance)

	again, err := env.replay.UnlockReplay(ctx, UnlockReplayInput{UserID: userID, GameID: "emotions-1", GameIndex: 1})
	require.NoError(t, err)
	assert.True(t, again.AlreadyUnlocked)
	assert.Equal(t, 3, again.NewBalance)

	spent := env.publisher.named(realtime.EventCoinsUpdated)
	require.Len(t, spent, 2)
	assert.Equal(t, 2, spent[1].Data["spent"])

	// the replay attempt consumes the unlock and earns nothing
	res, err := env.completion.CompleteGame(ctx, emotionsGame(userID, "emotions-1", 1, 5))
	require.NoError(t, err)
	assert.True(t, res.IsReplay)
	assert.Equal(t, 0, res.CalmCoinsEarned)
	assert.False(t, res.ReplayUnlocked)
	assert.Equal(t, 3, res.NewBalance)

	progress, err := env.completion.Progress(ctx, userID, "emotions-1")
	require.NoError(t, err)
	assert.False(t, progress.ReplayUnlocked)

	rec, err := env.ledger.Reconcile(ctx, userID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.Equal(t, 3, rec.LedgerBalance)
}

func TestReplayUsesStoredIndexAndChecksFunds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.newUser(t, catalog.RoleStudent)

	coins := 1
	in := emotionsGame(userID, "emotions-40", 40, 5)
	in.CoinOverride = &coins
	_, err := env.completion.CompleteGame(ctx, in)
	require.NoError(t, err)

	_, err = env.replay.UnlockReplay(ctx, UnlockReplayInput{UserID: userID, GameID: "emotions-40"})
	var fundsErr *apperrors.InsufficientFundsError
	require.True(t, errors.As(err, &fundsErr), "got %v", err)
	assert.Equal(t, 4, fundsErr.Required)
	assert.Equal(t, 1, fundsErr.Available)
	assert.Equal(t, 3, fundsErr.Details()["shortfall"])

	progress, err := env.completion.Progress(ctx, userID, "emotions-40")
	require.NoError(t, err)
	assert.False(t, progress.ReplayUnlocked)

	wallet, err := env.ledger.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, wallet.Balance)
}

func TestBadgeScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.newUser(t, catalog.RoleStudent)

	_, err := env.badges.CollectBadge(ctx, userID, "emotionExplorer")
	var neErr *apperrors.NotEligibleError
	require.True(t, errors.As(err, &neErr), "got %v", err)
	assert.Len(t, neErr.Missing, 5)

	for i, id := range []string{"emotions-1", "emotions-2", "emotions-3", "emotions-4"} {
		_, err := env.completion.CompleteGame(ctx, emotionsGame(userID, id, i+1, 5))
		require.NoError(t, err)
	}
	status, err := env.badges.CheckBadgeStatus(ctx, userID, "emotionExplorer")
	require.NoError(t, err)
	assert.False(t, status.HasBadge)
	assert.False(t, status.AllCompleted)
	assert.Equal(t, 4, status.CompletedCount)
	assert.Equal(t, []string{"emotions-5"}, status.MissingGameIDs)

	_, err = env.badges.CollectBadge(ctx, userID, "emotionExplorer")
	require.True(t, errors.As(err, &neErr))
	assert.Equal(t, []string{"emotions-5"}, neErr.Missing)
	assert.Empty(t, env.publisher.named(realtime.EventBadgeEligible))

	_, err = env.completion.CompleteGame(ctx, emotionsGame(userID, "emotions-5", 5, 5))
	require.NoError(t, err)
	eligible := env.publisher.named(realtime.EventBadgeEligible)
	require.Len(t, eligible, 1)
	assert.Equal(t, "emotionExplorer", eligible[0].Data["badgeKey"])

	res, err := env.badges.CollectBadge(ctx, userID, "emotionExplorer")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.BadgeEarned)
	assert.False(t, res.AlreadyEarned)
	assert.Equal(t, "emotion-explorer", res.Badge.BadgeID)
	assert.True(t, res.GamesStatus.AllCompleted)

	again, err := env.badges.CollectBadge(ctx, userID, "emotionExplorer")
	require.NoError(t, err)
	assert.True(t, again.AlreadyEarned)

	user, err := env.users.FindByID(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, user.Badges, 1)

	page, err := env.notifier.ListForUser(ctx, userID, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Notifications, 1)
	note := page.Notifications[0]
	assert.Equal(t, models.NotificationBadgeEarned, note.Type)
	assert.Equal(t, "emotion-explorer", note.Metadata["badgeId"])
	assert.Equal(t, 5, note.Metadata["gamesCompleted"])
	assert.Equal(t, int64(1), page.Unread)
	assert.Len(t, env.publisher.named(realtime.EventNotification), 1)

	status, err = env.badges.CheckBadgeStatus(ctx, userID, "emotionExplorer")
	require.NoError(t, err)
	assert.True(t, status.HasBadge)
	assert.True(t, status.NewlyEarned)

	ok, err := env.badges.AcknowledgeBadge(ctx, userID, "emotionExplorer")
	require.NoError(t, err)
	assert.True(t, ok)
	status, err = env.badges.CheckBadgeStatus(ctx, userID, "emotionExplorer")
	require.NoError(t, err)
	assert.True(t, status.HasBadge)
	assert.False(t, status.NewlyEarned)

	require.NoError(t, env.notifier.MarkRead(ctx, note.ID, userID))
	err = env.notifier.MarkRead(ctx, primitive.NewObjectID(), userID)
	var nfErr *apperrors.NotFoundError
	assert.True(t, errors.As(err, &nfErr))
}

func TestCollectBadgeConcurrentGrantsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.newUser(t, catalog.RoleStudent)
	for i := 1; i <= 5; i++ {
		_, err := env.completion.CompleteGame(ctx, CompleteGameInput{
			UserID: userID, Role: catalog.RoleStudent, GameID: "story-" + string(rune('0'+i)),
			GameType: "student-stories", GameIndex: i, Score: 5, TotalLevels: 5,
		})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	fresh := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := env.badges.CollectBadge(ctx, userID, "storyKeeper")
			if !assert.NoError(t, err) {
				return
			}
			if !res.AlreadyEarned {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fresh)
	page, err := env.notifier.ListForUser(ctx, userID, 1, 10)
	require.NoError(t, err)
	assert.Len(t, page.Notifications, 1)
}

func TestBadgeStatusEdgeCases(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// unknown user reads as not held
	status, err := env.badges.CheckBadgeStatus(ctx, primitive.NewObjectID(), "calmClassroom")
	require.NoError(t, err)
	assert.False(t, status.HasBadge)
	assert.Equal(t, 5, status.TotalRequired)

	_, err = env.badges.CheckBadgeStatus(ctx, primitive.NewObjectID(), "noSuchBadge")
	var nfErr *apperrors.NotFoundError
	assert.True(t, errors.As(err, &nfErr))

	_, err = env.badges.CollectBadge(ctx, primitive.NewObjectID(), "calmClassroom")
	assert.True(t, errors.As(err, &nfErr))

	statuses, err := env.badges.AllStatuses(ctx, env.newUser(t, catalog.RoleTeacher))
	require.NoError(t, err)
	require.Len(t, statuses, len(catalog.Default().Badges()))
	for _, st := range statuses {
		assert.NotNil(t, st)
		assert.False(t, st.HasBadge)
	}
}

func TestLegacyBadgeShapes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	earned := true
	notEarned := false
	legacyHeld := &models.User{Name: "held", Role: catalog.RoleParent, Badges: []models.UserBadge{
		{BadgeID: "other-id", Name: "Family Connector", LegacyEarned: &earned},
	}}
	require.NoError(t, env.users.Create(ctx, legacyHeld))
	res, err := env.badges.CollectBadge(ctx, legacyHeld.ID, "familyConnector")
	require.NoError(t, err)
	assert.True(t, res.AlreadyEarned, "matched by display name")

	placeholder := &models.User{Name: "placeholder", Role: catalog.RoleParent, Badges: []models.UserBadge{
		{BadgeID: "family-connector", Name: "Family Connector", LegacyEarned: &notEarned},
	}}
	require.NoError(t, env.users.Create(ctx, placeholder))
	status, err := env.badges.CheckBadgeStatus(ctx, placeholder.ID, "familyConnector")
	require.NoError(t, err)
	assert.False(t, status.HasBadge)
}

func TestLedgerCreditIdempotencyAndDebit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := primitive.NewObjectID()

	w, applied, err := env.ledger.Credit(ctx, CreditRequest{UserID: userID, Amount: 7, IdempotencyKey: "k"})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 7, w.Balance)

	w, applied, err = env.ledger.Credit(ctx, CreditRequest{UserID: userID, Amount: 7, IdempotencyKey: "k"})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 7, w.Balance)

	_, _, err = env.ledger.Debit(ctx, DebitRequest{UserID: userID, Amount: 8, IdempotencyKey: "d1"})
	var fundsErr *apperrors.InsufficientFundsError
	require.True(t, errors.As(err, &fundsErr))
	_, err = env.transactions.FindByIdempotencyKey(ctx, "d1")
	assert.ErrorIs(t, err, repositories.ErrNotFound, "a rejected debit leaves no entry")

	w, charged, err := env.ledger.Debit(ctx, DebitRequest{UserID: userID, Amount: 7, IdempotencyKey: "d2"})
	require.NoError(t, err)
	assert.True(t, charged)
	assert.Equal(t, 0, w.Balance)

	// a repeated key is not charged again, even with no funds left
	w, charged, err = env.ledger.Debit(ctx, DebitRequest{UserID: userID, Amount: 7, IdempotencyKey: "d2"})
	require.NoError(t, err)
	assert.False(t, charged)
	assert.Equal(t, 0, w.Balance)

	_, _, err = env.ledger.Credit(ctx, CreditRequest{UserID: userID, Amount: 0})
	var vErr *apperrors.ValidationError
	assert.True(t, errors.As(err, &vErr))

	rec, err := env.ledger.Reconcile(ctx, userID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.Equal(t, 0, rec.WalletBalance)
}

func TestProfileHidesUnearnedLegacyBadges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	users := NewUserDirectory(env.users, env.ledger)

	notEarned := false
	u := &models.User{Name: "profile", Role: catalog.RoleStudent, Badges: []models.UserBadge{
		{BadgeID: "emotion-explorer", Name: "Emotion Explorer", LegacyEarned: &notEarned},
		{BadgeID: "story-keeper", Name: "Story Keeper"},
	}}
	require.NoError(t, env.users.Create(ctx, u))
	_, _, err := env.ledger.Credit(ctx, CreditRequest{UserID: u.ID, Amount: 4, IdempotencyKey: "profile"})
	require.NoError(t, err)

	profile, err := users.Profile(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, profile.Badges, 1)
	assert.Equal(t, "story-keeper", profile.Badges[0].BadgeID)
	assert.Equal(t, 4, profile.Balance)

	_, err = users.Profile(ctx, primitive.NewObjectID())
	var nf *apperrors.NotFoundError
	assert.True(t, errors.As(err, &nf))
}
