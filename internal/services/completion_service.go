package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ArowuTest/calmcoins-backend/internal/apperrors"
	"github.com/ArowuTest/calmcoins-backend/internal/catalog"
	"github.com/ArowuTest/calmcoins-backend/internal/keylock"
	"github.com/ArowuTest/calmcoins-backend/internal/models"
	"github.com/ArowuTest/calmcoins-backend/internal/realtime"
	"github.com/ArowuTest/calmcoins-backend/internal/repositories"
	"github.com/ArowuTest/calmcoins-backend/internal/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/exp/slog"
)

// Compile-time check to ensure CompletionRecorder implements CompletionService
var _ CompletionService = (*CompletionRecorder)(nil)

// CompleteGameInput is one finished attempt of a game
type CompleteGameInput struct {
	UserID      primitive.ObjectID
	Role        string
	GameID      string
	GameType    string
	GameIndex   int
	Score       int
	TotalLevels int
	// CoinOverride replaces the tier reward when set
	CoinOverride *int
	IsReplay     bool
}

// CompleteGameResult is returned to the client after an attempt
type CompleteGameResult struct {
	CalmCoinsEarned   int  `json:"calmCoinsEarned"`
	NewBalance        int  `json:"newBalance"`
	FullyCompleted    bool `json:"fullyCompleted"`
	AllAnswersCorrect bool `json:"allAnswersCorrect"`
	ReplayUnlocked    bool `json:"replayUnlocked"`
	Score             int  `json:"score"`
	TotalLevels       int  `json:"totalLevels"`
	IsReplay          bool `json:"isReplay"`
}

// ProgressView is the client view of a progress record
type ProgressView struct {
	GameID           string `json:"gameId"`
	LevelsCompleted  int    `json:"levelsCompleted"`
	TotalCoinsEarned int    `json:"totalCoinsEarned"`
	FullyCompleted   bool   `json:"fullyCompleted"`
	ReplayUnlocked   bool   `json:"replayUnlocked"`
	HighestScore     int    `json:"highestScore"`
	PlayCount        int    `json:"playCount"`
	ReplayCost       int    `json:"replayCost"`
}

// CompletionRecorder turns finished games into one-time coin awards
type CompletionRecorder struct {
	catalog      *catalog.Catalog
	progressRepo repositories.ProgressRepository
	ledger       LedgerService
	txManager    repositories.TxManager
	locker       keylock.Locker
	publisher    realtime.Publisher
	badges       BadgeService
	log          *slog.Logger
	now          func() time.Time
}

// NewCompletionRecorder creates a new CompletionRecorder. badges may be nil.
func NewCompletionRecorder(
	cat *catalog.Catalog,
	progressRepo repositories.ProgressRepository,
	ledger LedgerService,
	txManager repositories.TxManager,
	locker keylock.Locker,
	publisher realtime.Publisher,
	badges BadgeService,
	log *slog.Logger,
) *CompletionRecorder {
	if publisher == nil {
		publisher = realtime.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &CompletionRecorder{
		catalog:      cat,
		progressRepo: progressRepo,
		ledger:       ledger,
		txManager:    txManager,
		locker:       locker,
		publisher:    publisher,
		badges:       badges,
		log:          log.With("service", "CompletionRecorder"),
		now:          time.Now,
	}
}

func (s *CompletionRecorder) validate(in CompleteGameInput) (models.GameFamily, error) {
	family, ok := s.catalog.Family(in.GameType)
	if !ok {
		return family, apperrors.NewValidation("gameType", "unknown game type", nil, in.GameType)
	}
	if in.GameID == "" {
		return family, apperrors.NewValidation("gameId", "gameId is required", nil, nil)
	}
	if in.TotalLevels != family.TotalLevels {
		return family, apperrors.NewValidation("totalLevels",
			fmt.Sprintf("totalLevels must be %d", family.TotalLevels), family.TotalLevels, in.TotalLevels)
	}
	if in.Score < 0 || in.Score > in.TotalLevels {
		return family, apperrors.NewValidation("score",
			fmt.Sprintf("score must be between 0 and %d", in.TotalLevels), fmt.Sprintf("0..%d", in.TotalLevels), in.Score)
	}
	if in.CoinOverride != nil && *in.CoinOverride < 0 {
		return family, apperrors.NewValidation("coins", "coins must not be negative", ">= 0", *in.CoinOverride)
	}
	return family, nil
}

// CompleteGame implements CompletionService
func (s *CompletionRecorder) CompleteGame(ctx context.Context, in CompleteGameInput) (*CompleteGameResult, error) {
	family, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, gameLockKey(in.UserID, in.GameID))
	if err != nil {
		return nil, apperrors.Persistence("acquire game lock", err)
	}
	defer release()

	result := &CompleteGameResult{}
	err = s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		// The driver may retry this function; start from a clean result each time
		*result = CompleteGameResult{
			Score:             in.Score,
			TotalLevels:       in.TotalLevels,
			AllAnswersCorrect: in.Score == in.TotalLevels,
		}

		progress, err := s.progressRepo.FindOrCreate(ctx, &models.GameProgress{
			UserID:      in.UserID,
			GameID:      in.GameID,
			GameType:    in.GameType,
			Role:        family.Role,
			GameIndex:   in.GameIndex,
			TotalLevels: family.TotalLevels,
		})
		if err != nil {
			return apperrors.Persistence("load progress", err)
		}

		// Classified before any mutation; this is the only gate on awarding coins
		isReplay := in.IsReplay || (progress.FullyCompleted && progress.ReplayUnlocked)
		result.IsReplay = isReplay
		result.FullyCompleted = progress.FullyCompleted
		result.ReplayUnlocked = progress.ReplayUnlocked

		var wallet *models.Wallet
		switch {
		case !isReplay && !progress.FullyCompleted && result.AllAnswersCorrect:
			amount := utils.CalculateReward(in.GameIndex)
			if in.CoinOverride != nil {
				amount = *in.CoinOverride
			}
			// The award is written pending before the record flips, so a failure
			// past this point leaves something for the next attempt to finish
			var award *models.Transaction
			if amount > 0 {
				if award, err = s.ledger.PrepareCredit(ctx, CreditRequest{
					UserID:         in.UserID,
					Amount:         amount,
					Description:    fmt.Sprintf("Completed game %s", in.GameID),
					Reference:      in.GameID,
					IdempotencyKey: gameAwardKey(in.UserID, in.GameID),
				}); err != nil {
					return err
				}
			}
			won, err := s.progressRepo.MarkFullyCompleted(ctx, progress.ID, models.CoinEarning{
				Amount:   amount,
				Reason:   fmt.Sprintf("Completed %s", in.GameID),
				EarnedAt: s.now(),
			})
			if err != nil {
				return apperrors.Persistence("mark game completed", err)
			}
			result.FullyCompleted = true
			// A lost race leaves the entry to whoever won it
			if won && award != nil {
				w, applied, err := s.ledger.Commit(ctx, award)
				if err != nil {
					return err
				}
				wallet = w
				if applied {
					result.CalmCoinsEarned = amount
				}
			}
		case progress.FullyCompleted:
			// An earlier attempt may have completed the game and failed before the wallet moved
			w, finished, err := s.ledger.Resume(ctx, in.UserID, gameAwardKey(in.UserID, in.GameID))
			if err != nil {
				return err
			}
			wallet = w
			result.CalmCoinsEarned = finished
			if isReplay {
				if _, err := s.progressRepo.ConsumeReplay(ctx, progress.ID); err != nil {
					return apperrors.Persistence("consume replay", err)
				}
				result.ReplayUnlocked = false
			}
		case isReplay:
			if _, err := s.progressRepo.ConsumeReplay(ctx, progress.ID); err != nil {
				return apperrors.Persistence("consume replay", err)
			}
			result.ReplayUnlocked = false
		}

		if err := s.progressRepo.RecordPlay(ctx, progress.ID, models.PlayResult{
			LevelsCompleted: in.TotalLevels,
			Score:           in.Score,
			PlayedAt:        s.now(),
		}); err != nil {
			return apperrors.Persistence("record play", err)
		}

		if wallet == nil {
			if wallet, err = s.ledger.Balance(ctx, in.UserID); err != nil {
				return err
			}
		}
		result.NewBalance = wallet.Balance
		return nil
	})
	if err != nil {
		s.logFailure("CompleteGame failed", err, "userId", in.UserID.Hex(), "gameId", in.GameID)
		return nil, err
	}

	s.log.Info("Game attempt recorded",
		"userId", in.UserID.Hex(), "gameId", in.GameID, "score", in.Score,
		"replay", result.IsReplay, "earned", result.CalmCoinsEarned)

	if result.CalmCoinsEarned > 0 {
		s.publish(ctx, realtime.Event{
			UserID: in.UserID.Hex(),
			Name:   realtime.EventCoinsUpdated,
			Data: map[string]interface{}{
				"balance": result.NewBalance,
				"earned":  result.CalmCoinsEarned,
				"gameId":  in.GameID,
			},
		})
		s.announceEligibleBadges(ctx, in.UserID, in.GameID)
	}
	return result, nil
}

// announceEligibleBadges pushes a badgeEligible event for every badge the award completed
func (s *CompletionRecorder) announceEligibleBadges(ctx context.Context, userID primitive.ObjectID, gameID string) {
	if s.badges == nil {
		return
	}
	eligible, err := s.badges.EligibleBadges(ctx, userID, gameID)
	if err != nil {
		s.log.Warn("Failed to check badge eligibility", "userId", userID.Hex(), "gameId", gameID, "error", err)
		return
	}
	for _, badge := range eligible {
		s.publish(ctx, realtime.Event{
			UserID: userID.Hex(),
			Name:   realtime.EventBadgeEligible,
			Data: map[string]interface{}{
				"badgeKey": badge.Key,
				"badgeId":  badge.ID,
				"name":     badge.Name,
			},
		})
	}
}

// Progress implements CompletionService
func (s *CompletionRecorder) Progress(ctx context.Context, userID primitive.ObjectID, gameID string) (*ProgressView, error) {
	if gameID == "" {
		return nil, apperrors.NewValidation("gameId", "gameId is required", nil, nil)
	}
	progress, err := s.progressRepo.FindByUserAndGame(ctx, userID, gameID)
	if errors.Is(err, repositories.ErrNotFound) {
		return &ProgressView{GameID: gameID}, nil
	}
	if err != nil {
		return nil, apperrors.Persistence("find progress", err)
	}
	return &ProgressView{
		GameID:           gameID,
		LevelsCompleted:  progress.LevelsCompleted,
		TotalCoinsEarned: progress.TotalCoinsEarned,
		FullyCompleted:   progress.FullyCompleted,
		ReplayUnlocked:   progress.ReplayUnlocked,
		HighestScore:     progress.HighestScore,
		PlayCount:        progress.PlayCount,
		ReplayCost:       utils.CalculateReplayCost(progress.GameIndex),
	}, nil
}

func (s *CompletionRecorder) publish(ctx context.Context, ev realtime.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Warn("Failed to push realtime event", "event", ev.Name, "userId", ev.UserID, "error", err)
	}
}

func (s *CompletionRecorder) logFailure(msg string, err error, args ...interface{}) {
	var pe *apperrors.PersistenceError
	if errors.As(err, &pe) {
		s.log.Error(msg, append(args, "op", pe.Op, "error", pe.Err)...)
		return
	}
	s.log.Debug(msg, append(args, "error", err)...)
}

func gameLockKey(userID primitive.ObjectID, gameID string) string {
	return "game:" + userID.Hex() + ":" + gameID
}
