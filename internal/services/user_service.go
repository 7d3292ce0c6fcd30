package services

import (
	"context"
	"errors"

	"github.com/ArowuTest/calmcoins-backend/internal/apperrors"
	"github.com/ArowuTest/calmcoins-backend/internal/models"
	"github.com/ArowuTest/calmcoins-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Compile-time check to ensure UserDirectory implements UserService
var _ UserService = (*UserDirectory)(nil)

// UserProfile is the caller's account with its badge collection and balance
type UserProfile struct {
	*models.User
	Balance  int    `json:"balance"`
	CoinType string `json:"coinType"`
}

// UserDirectory handles user-related business logic
type UserDirectory struct {
	userRepo repositories.UserRepository
	ledger   LedgerService
}

// NewUserDirectory creates a new UserDirectory
func NewUserDirectory(userRepo repositories.UserRepository, ledger LedgerService) *UserDirectory {
	return &UserDirectory{
		userRepo: userRepo,
		ledger:   ledger,
	}
}

// Profile implements UserService. Legacy badge entries that were never earned are left out.
func (s *UserDirectory) Profile(ctx context.Context, userID primitive.ObjectID) (*UserProfile, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, &apperrors.NotFoundError{Resource: "user", ID: userID.Hex()}
	}
	if err != nil {
		return nil, apperrors.Persistence("find user", err)
	}

	held := make([]models.UserBadge, 0, len(user.Badges))
	for _, b := range user.Badges {
		if b.IsEarned() {
			held = append(held, b)
		}
	}
	user.Badges = held

	wallet, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &UserProfile{User: user, Balance: wallet.Balance, CoinType: wallet.CoinType}, nil
}
