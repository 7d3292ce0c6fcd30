package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ArowuTest/calmcoins-backend/internal/apperrors"
	"github.com/ArowuTest/calmcoins-backend/internal/keylock"
	"github.com/ArowuTest/calmcoins-backend/internal/realtime"
	"github.com/ArowuTest/calmcoins-backend/internal/repositories"
	"github.com/ArowuTest/calmcoins-backend/internal/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/exp/slog"
)

// Compile-time check to ensure ReplayUnlocker implements ReplayService
var _ ReplayService = (*ReplayUnlocker)(nil)

// UnlockReplayInput identifies the game to unlock. A zero GameIndex uses the stored index.
type UnlockReplayInput struct {
	UserID    primitive.ObjectID
	GameID    string
	GameIndex int
}

// UnlockReplayResult is returned to the client after an unlock
type UnlockReplayResult struct {
	ReplayUnlocked  bool `json:"replayUnlocked"`
	NewBalance      int  `json:"newBalance"`
	ReplayCost      int  `json:"replayCost"`
	AlreadyUnlocked bool `json:"alreadyUnlocked"`
}

// ReplayUnlocker sells single-use replays of completed games
type ReplayUnlocker struct {
	progressRepo repositories.ProgressRepository
	ledger       LedgerService
	txManager    repositories.TxManager
	locker       keylock.Locker
	publisher    realtime.Publisher
	log          *slog.Logger
	now          func() time.Time
}

// NewReplayUnlocker creates a new ReplayUnlocker
func NewReplayUnlocker(
	progressRepo repositories.ProgressRepository,
	ledger LedgerService,
	txManager repositories.TxManager,
	locker keylock.Locker,
	publisher realtime.Publisher,
	log *slog.Logger,
) *ReplayUnlocker {
	if publisher == nil {
		publisher = realtime.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &ReplayUnlocker{
		progressRepo: progressRepo,
		ledger:       ledger,
		txManager:    txManager,
		locker:       locker,
		publisher:    publisher,
		log:          log.With("service", "ReplayUnlocker"),
		now:          time.Now,
	}
}

// UnlockReplay implements ReplayService
func (s *ReplayUnlocker) UnlockReplay(ctx context.Context, in UnlockReplayInput) (*UnlockReplayResult, error) {
	if in.GameID == "" {
		return nil, apperrors.NewValidation("gameId", "gameId is required", nil, nil)
	}
	if in.GameIndex < 0 {
		return nil, apperrors.NewValidation("gameIndex", "gameIndex must not be negative", ">= 0", in.GameIndex)
	}

	release, err := s.locker.Acquire(ctx, gameLockKey(in.UserID, in.GameID))
	if err != nil {
		return nil, apperrors.Persistence("acquire game lock", err)
	}
	defer release()

	result := &UnlockReplayResult{}
	err = s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		*result = UnlockReplayResult{}

		progress, err := s.progressRepo.FindByUserAndGame(ctx, in.UserID, in.GameID)
		if errors.Is(err, repositories.ErrNotFound) {
			return &apperrors.NotCompletedError{GameID: in.GameID}
		}
		if err != nil {
			return apperrors.Persistence("find progress", err)
		}
		if !progress.FullyCompleted {
			return &apperrors.NotEligibleError{
				Reason: "complete the game with every answer correct before unlocking a replay",
				Extra:  map[string]interface{}{"gameId": in.GameID},
			}
		}

		gameIndex := in.GameIndex
		if gameIndex == 0 {
			gameIndex = progress.GameIndex
		}
		result.ReplayCost = utils.CalculateReplayCost(gameIndex)

		if progress.ReplayUnlocked {
			wallet, err := s.ledger.Balance(ctx, in.UserID)
			if err != nil {
				return err
			}
			result.ReplayUnlocked = true
			result.AlreadyUnlocked = true
			result.NewBalance = wallet.Balance
			return nil
		}

		// Keyed on the purchase number, which moves only once the unlock lands,
		// so a retry after a failed unlock reuses the charge instead of paying twice
		wallet, _, err := s.ledger.Debit(ctx, DebitRequest{
			UserID:         in.UserID,
			Amount:         result.ReplayCost,
			Description:    fmt.Sprintf("Replay unlock for game %s", in.GameID),
			Reference:      in.GameID,
			IdempotencyKey: replayUnlockKey(in.UserID, in.GameID, progress.ReplayPurchases+1),
		})
		if err != nil {
			return err
		}

		unlocked, err := s.progressRepo.UnlockReplay(ctx, progress.ID, s.now())
		if err != nil {
			return apperrors.Persistence("unlock replay", err)
		}
		if !unlocked {
			return apperrors.Persistence("unlock replay", errors.New("progress changed while unlocking"))
		}
		result.ReplayUnlocked = true
		result.NewBalance = wallet.Balance
		return nil
	})
	if err != nil {
		var pe *apperrors.PersistenceError
		if errors.As(err, &pe) {
			s.log.Error("UnlockReplay failed", "userId", in.UserID.Hex(), "gameId", in.GameID, "op", pe.Op, "error", pe.Err)
		}
		return nil, err
	}

	if !result.AlreadyUnlocked {
		s.log.Info("Replay unlocked", "userId", in.UserID.Hex(), "gameId", in.GameID, "cost", result.ReplayCost)
		ev := realtime.Event{
			UserID: in.UserID.Hex(),
			Name:   realtime.EventCoinsUpdated,
			Data: map[string]interface{}{
				"balance": result.NewBalance,
				"spent":   result.ReplayCost,
				"gameId":  in.GameID,
			},
		}
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.log.Warn("Failed to push realtime event", "event", ev.Name, "userId", ev.UserID, "error", err)
		}
	}
	return result, nil
}
