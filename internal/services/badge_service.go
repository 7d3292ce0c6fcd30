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
	"github.com/ArowuTest/calmcoins-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
)

// Compile-time check to ensure BadgeEngine implements BadgeService
var _ BadgeService = (*BadgeEngine)(nil)

// BadgeStatus is the state of one badge for one user
type BadgeStatus struct {
	Key         string            `json:"key"`
	BadgeID     string            `json:"badgeId"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Icon        string            `json:"icon"`
	Category    string            `json:"category"`
	HasBadge    bool              `json:"hasBadge"`
	NewlyEarned bool              `json:"newlyEarned"`
	Badge       *models.UserBadge `json:"badge,omitempty"`
	models.RosterStatus
}

// CollectBadgeResult is returned after a collect call. BadgeEarned reports
// that the user holds the badge; AlreadyEarned that it was held before the call.
type CollectBadgeResult struct {
	Success       bool                `json:"success"`
	BadgeEarned   bool                `json:"badgeEarned"`
	AlreadyEarned bool                `json:"alreadyEarned"`
	Badge         *models.UserBadge   `json:"badge"`
	GamesStatus   models.RosterStatus `json:"gamesStatus"`
}

// BadgeEngine grants roster badges
type BadgeEngine struct {
	catalog      *catalog.Catalog
	userRepo     repositories.UserRepository
	progressRepo repositories.ProgressRepository
	notifier     NotificationService
	locker       keylock.Locker
	log          *slog.Logger
	now          func() time.Time
}

// NewBadgeEngine creates a new BadgeEngine
func NewBadgeEngine(
	cat *catalog.Catalog,
	userRepo repositories.UserRepository,
	progressRepo repositories.ProgressRepository,
	notifier NotificationService,
	locker keylock.Locker,
	log *slog.Logger,
) *BadgeEngine {
	if log == nil {
		log = slog.Default()
	}
	return &BadgeEngine{
		catalog:      cat,
		userRepo:     userRepo,
		progressRepo: progressRepo,
		notifier:     notifier,
		locker:       locker,
		log:          log.With("service", "BadgeEngine"),
		now:          time.Now,
	}
}

// CheckRequiredCompleted implements BadgeService
func (s *BadgeEngine) CheckRequiredCompleted(ctx context.Context, userID primitive.ObjectID, badge models.BadgeDefinition) (*models.RosterStatus, error) {
	records, err := s.progressRepo.FindCompleted(ctx, userID, badge.RequiredGameIDs, badge.GameType, badge.Role)
	if err != nil {
		return nil, apperrors.Persistence("find completed games", err)
	}

	done := make(map[string]bool, len(records))
	for _, r := range records {
		done[r.GameID] = true
	}

	status := &models.RosterStatus{
		TotalRequired:    len(badge.RequiredGameIDs),
		CompletedGameIDs: []string{},
		MissingGameIDs:   []string{},
	}
	for _, id := range badge.RequiredGameIDs {
		if done[id] {
			status.CompletedGameIDs = append(status.CompletedGameIDs, id)
		} else {
			status.MissingGameIDs = append(status.MissingGameIDs, id)
		}
	}
	status.CompletedCount = len(status.CompletedGameIDs)
	status.AllCompleted = len(status.MissingGameIDs) == 0
	return status, nil
}

func (s *BadgeEngine) definition(key string) (models.BadgeDefinition, error) {
	def, ok := s.catalog.Badge(key)
	if !ok {
		return def, &apperrors.NotFoundError{Resource: "badge", ID: key}
	}
	return def, nil
}

// loadUser returns nil without error when the user does not exist
func (s *BadgeEngine) loadUser(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Persistence("find user", err)
	}
	return user, nil
}

func (s *BadgeEngine) status(ctx context.Context, user *models.User, userID primitive.ObjectID, def models.BadgeDefinition) (*BadgeStatus, error) {
	roster, err := s.CheckRequiredCompleted(ctx, userID, def)
	if err != nil {
		return nil, err
	}
	st := &BadgeStatus{
		Key:          def.Key,
		BadgeID:      def.ID,
		Name:         def.Name,
		Description:  def.Description,
		Icon:         def.Icon,
		Category:     def.Category,
		RosterStatus: *roster,
	}
	if entry, held := user.FindBadge(def.ID, def.Name); held {
		st.HasBadge = true
		st.NewlyEarned = entry.NewlyEarned
		st.Badge = entry
	}
	return st, nil
}

// CheckBadgeStatus implements BadgeService. A missing user reads as not holding the badge.
func (s *BadgeEngine) CheckBadgeStatus(ctx context.Context, userID primitive.ObjectID, badgeKey string) (*BadgeStatus, error) {
	def, err := s.definition(badgeKey)
	if err != nil {
		return nil, err
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.status(ctx, user, userID, def)
}

// AllStatuses implements BadgeService
func (s *BadgeEngine) AllStatuses(ctx context.Context, userID primitive.ObjectID) ([]*BadgeStatus, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	defs := s.catalog.Badges()
	statuses := make([]*BadgeStatus, len(defs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, def := range defs {
		i, def := i, def
		g.Go(func() error {
			st, err := s.status(gctx, user, userID, def)
			if err != nil {
				return err
			}
			statuses[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return statuses, nil
}

// CollectBadge implements BadgeService. Safe to call any number of times.
func (s *BadgeEngine) CollectBadge(ctx context.Context, userID primitive.ObjectID, badgeKey string) (*CollectBadgeResult, error) {
	def, err := s.definition(badgeKey)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, "badge:"+userID.Hex()+":"+def.ID)
	if err != nil {
		return nil, apperrors.Persistence("acquire badge lock", err)
	}
	defer release()

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, &apperrors.NotFoundError{Resource: "user", ID: userID.Hex()}
	}

	roster, err := s.CheckRequiredCompleted(ctx, userID, def)
	if err != nil {
		return nil, err
	}

	if entry, held := user.FindBadge(def.ID, def.Name); held {
		return &CollectBadgeResult{Success: true, BadgeEarned: true, AlreadyEarned: true, Badge: entry, GamesStatus: *roster}, nil
	}

	if !roster.AllCompleted {
		return nil, &apperrors.NotEligibleError{
			Reason:  fmt.Sprintf("complete %d more games to earn %s", len(roster.MissingGameIDs), def.Name),
			Missing: roster.MissingGameIDs,
			Extra:   map[string]interface{}{"badgeKey": def.Key, "gamesStatus": roster},
		}
	}

	earnedAt := s.now()
	badge := models.UserBadge{
		BadgeID:     def.ID,
		Name:        def.Name,
		Description: def.Description,
		Icon:        def.Icon,
		Category:    def.Category,
		EarnedAt:    &earnedAt,
		NewlyEarned: true,
	}
	granted, err := s.userRepo.GrantBadge(ctx, userID, badge)
	if err != nil {
		s.log.Error("Failed to grant badge", "userId", userID.Hex(), "badgeId", def.ID, "error", err)
		return nil, apperrors.Persistence("grant badge", err)
	}
	if !granted {
		// Another instance granted it between our read and write
		current, err := s.loadUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		entry, _ := current.FindBadge(def.ID, def.Name)
		return &CollectBadgeResult{Success: true, BadgeEarned: true, AlreadyEarned: true, Badge: entry, GamesStatus: *roster}, nil
	}
	s.log.Info("Badge granted", "userId", userID.Hex(), "badgeId", def.ID)

	err = s.notifier.Notify(ctx, &models.Notification{
		UserID:  userID,
		Type:    models.NotificationBadgeEarned,
		Title:   def.NotificationTitle,
		Message: def.NotificationMessage,
		Metadata: map[string]interface{}{
			"badgeId":        def.ID,
			"badgeKey":       def.Key,
			"gamesCompleted": roster.CompletedCount,
		},
	})
	if err != nil {
		s.log.Error("Failed to create badge notification", "userId", userID.Hex(), "badgeId", def.ID, "error", err)
	}

	return &CollectBadgeResult{Success: true, BadgeEarned: true, Badge: &badge, GamesStatus: *roster}, nil
}

// AcknowledgeBadge implements BadgeService
func (s *BadgeEngine) AcknowledgeBadge(ctx context.Context, userID primitive.ObjectID, badgeKey string) (bool, error) {
	def, err := s.definition(badgeKey)
	if err != nil {
		return false, err
	}
	ok, err := s.userRepo.AcknowledgeBadge(ctx, userID, def.ID)
	if err != nil {
		return false, apperrors.Persistence("acknowledge badge", err)
	}
	return ok, nil
}

// EligibleBadges implements BadgeService. It returns badges that require
// gameID, have a complete roster and are not held yet.
func (s *BadgeEngine) EligibleBadges(ctx context.Context, userID primitive.ObjectID, gameID string) ([]models.BadgeDefinition, error) {
	defs := s.catalog.BadgesRequiring(gameID)
	if len(defs) == 0 {
		return nil, nil
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var eligible []models.BadgeDefinition
	for _, def := range defs {
		if _, held := user.FindBadge(def.ID, def.Name); held {
			continue
		}
		roster, err := s.CheckRequiredCompleted(ctx, userID, def)
		if err != nil {
			return nil, err
		}
		if roster.AllCompleted {
			eligible = append(eligible, def)
		}
	}
	return eligible, nil
}
