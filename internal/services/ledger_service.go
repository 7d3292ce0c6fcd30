package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ArowuTest/calmcoins-backend/internal/apperrors"
	"github.com/ArowuTest/calmcoins-backend/internal/models"
	"github.com/ArowuTest/calmcoins-backend/internal/repositories"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/exp/slog"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Compile-time check to ensure Ledger implements LedgerService
var _ LedgerService = (*Ledger)(nil)

// CreditRequest describes coins to add
type CreditRequest struct {
	UserID         primitive.ObjectID
	Amount         int
	Description    string
	Reference      string
	IdempotencyKey string
}

// DebitRequest describes coins to remove
type DebitRequest struct {
	UserID         primitive.ObjectID
	Amount         int
	Description    string
	Reference      string
	IdempotencyKey string
}

// Reconciliation compares a wallet with its ledger
type Reconciliation struct {
	WalletBalance int  `json:"walletBalance"`
	LedgerBalance int  `json:"ledgerBalance"`
	Drift         int  `json:"drift"`
	Consistent    bool `json:"consistent"`
}

// Ledger routes every wallet mutation through the transaction log
type Ledger struct {
	walletRepo      repositories.WalletRepository
	transactionRepo repositories.TransactionRepository
	log             *slog.Logger
}

// NewLedger creates a new Ledger
func NewLedger(walletRepo repositories.WalletRepository, transactionRepo repositories.TransactionRepository, log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		log:             log.With("service", "Ledger"),
	}
}

// Credit implements LedgerService
func (l *Ledger) Credit(ctx context.Context, req CreditRequest) (*models.Wallet, bool, error) {
	transaction, err := l.PrepareCredit(ctx, req)
	if err != nil {
		return nil, false, err
	}
	wallet, applied, err := l.Commit(ctx, transaction)
	if err == nil && !applied {
		l.log.Warn("Credit already applied", "userId", req.UserID.Hex(), "key", req.IdempotencyKey)
	}
	return wallet, applied, err
}

// PrepareCredit implements LedgerService
func (l *Ledger) PrepareCredit(ctx context.Context, req CreditRequest) (*models.Transaction, error) {
	if req.Amount <= 0 {
		return nil, apperrors.NewValidation("amount", "credit amount must be positive", "> 0", req.Amount)
	}
	return l.prepare(ctx, &models.Transaction{
		UserID:         req.UserID,
		Type:           models.TransactionCredit,
		Amount:         req.Amount,
		Description:    req.Description,
		CoinType:       models.CoinTypeCalm,
		Reference:      req.Reference,
		IdempotencyKey: req.IdempotencyKey,
	})
}

// Debit implements LedgerService
func (l *Ledger) Debit(ctx context.Context, req DebitRequest) (*models.Wallet, bool, error) {
	if req.Amount <= 0 {
		return nil, false, apperrors.NewValidation("amount", "debit amount must be positive", "> 0", req.Amount)
	}
	transaction, err := l.prepare(ctx, &models.Transaction{
		UserID:         req.UserID,
		Type:           models.TransactionDebit,
		Amount:         req.Amount,
		Description:    req.Description,
		CoinType:       models.CoinTypeCalm,
		Reference:      req.Reference,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, false, err
	}
	return l.Commit(ctx, transaction)
}

// prepare writes transaction as a pending entry, or returns the entry already written under its key
func (l *Ledger) prepare(ctx context.Context, transaction *models.Transaction) (*models.Transaction, error) {
	if transaction.IdempotencyKey == "" {
		transaction.IdempotencyKey = uuid.NewString()
	} else {
		existing, err := l.transactionRepo.FindByIdempotencyKey(ctx, transaction.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.Persistence("find transaction", err)
		}
	}

	transaction.State = models.TransactionPending
	transaction.CreatedAt = time.Now()
	err := l.transactionRepo.Create(ctx, transaction)
	if errors.Is(err, repositories.ErrDuplicateKey) {
		existing, findErr := l.transactionRepo.FindByIdempotencyKey(ctx, transaction.IdempotencyKey)
		if findErr != nil {
			return nil, apperrors.Persistence("find transaction", findErr)
		}
		return existing, nil
	}
	if err != nil {
		return nil, apperrors.Persistence("append transaction", err)
	}
	return transaction, nil
}

// Commit implements LedgerService
func (l *Ledger) Commit(ctx context.Context, transaction *models.Transaction) (*models.Wallet, bool, error) {
	if transaction.IsApplied() {
		wallet, err := l.Balance(ctx, transaction.UserID)
		return wallet, false, err
	}

	var (
		wallet *models.Wallet
		err    error
	)
	switch transaction.Type {
	case models.TransactionDebit:
		wallet, _, err = l.walletRepo.ApplyDebit(ctx, transaction.UserID, transaction.ID, transaction.Amount)
		if errors.Is(err, repositories.ErrInsufficientBalance) {
			if delErr := l.transactionRepo.DeletePending(ctx, transaction.ID); delErr != nil {
				l.log.Warn("Failed to drop rejected debit", "transactionId", transaction.ID.Hex(), "error", delErr)
			}
			current, balErr := l.Balance(ctx, transaction.UserID)
			if balErr != nil {
				return nil, false, balErr
			}
			return nil, false, &apperrors.InsufficientFundsError{Required: transaction.Amount, Available: current.Balance}
		}
	default:
		wallet, _, err = l.walletRepo.ApplyCredit(ctx, transaction.UserID, transaction.ID, transaction.Amount, transaction.CoinType)
	}
	if err != nil {
		return nil, false, apperrors.Persistence("apply transaction to wallet", err)
	}

	if err := l.transactionRepo.MarkApplied(ctx, transaction.ID); err != nil {
		return nil, false, apperrors.Persistence("mark transaction applied", err)
	}
	transaction.State = models.TransactionApplied

	// The id only guards against applying the entry twice; a leftover is harmless
	if err := l.walletRepo.ClearPending(ctx, transaction.UserID, transaction.ID); err != nil {
		l.log.Warn("Failed to clear pending transaction", "transactionId", transaction.ID.Hex(), "error", err)
	}

	l.log.Info("Wallet updated",
		"userId", transaction.UserID.Hex(), "type", transaction.Type, "amount", transaction.Amount,
		"balance", wallet.Balance, "reference", transaction.Reference)
	return wallet, true, nil
}

// Resume implements LedgerService
func (l *Ledger) Resume(ctx context.Context, userID primitive.ObjectID, key string) (*models.Wallet, int, error) {
	transaction, err := l.transactionRepo.FindByIdempotencyKey(ctx, key)
	if errors.Is(err, repositories.ErrNotFound) {
		wallet, err := l.Balance(ctx, userID)
		return wallet, 0, err
	}
	if err != nil {
		return nil, 0, apperrors.Persistence("find transaction", err)
	}

	wallet, applied, err := l.Commit(ctx, transaction)
	if err != nil || !applied {
		return wallet, 0, err
	}
	l.log.Warn("Finished interrupted ledger entry", "userId", userID.Hex(), "key", key, "amount", transaction.Amount)
	return wallet, transaction.Signed(), nil
}

// Balance implements LedgerService
func (l *Ledger) Balance(ctx context.Context, userID primitive.ObjectID) (*models.Wallet, error) {
	wallet, err := l.walletRepo.FindByUserID(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return &models.Wallet{UserID: userID, CoinType: models.CoinTypeCalm}, nil
	}
	if err != nil {
		return nil, apperrors.Persistence("find wallet", err)
	}
	return wallet, nil
}

// History implements LedgerService
func (l *Ledger) History(ctx context.Context, userID primitive.ObjectID, limit int) ([]*models.Transaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	transactions, err := l.transactionRepo.FindByUserID(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.Persistence("list transactions", err)
	}
	return transactions, nil
}

// Reconcile implements LedgerService
func (l *Ledger) Reconcile(ctx context.Context, userID primitive.ObjectID) (*Reconciliation, error) {
	wallet, err := l.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	sum, err := l.transactionRepo.SumByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Persistence("sum transactions", err)
	}
	rec := &Reconciliation{
		WalletBalance: wallet.Balance,
		LedgerBalance: sum,
		Drift:         wallet.Balance - sum,
	}
	rec.Consistent = rec.Drift == 0
	if !rec.Consistent {
		l.log.Error("Wallet drifted from ledger", "userId", userID.Hex(), "wallet", wallet.Balance, "ledger", sum)
	}
	return rec, nil
}

func gameAwardKey(userID primitive.ObjectID, gameID string) string {
	return fmt.Sprintf("game-award:%s:%s", userID.Hex(), gameID)
}

// replayUnlockKey names the n-th replay purchase of a game
func replayUnlockKey(userID primitive.ObjectID, gameID string, n int) string {
	return fmt.Sprintf("replay-unlock:%s:%s:%d", userID.Hex(), gameID, n)
}
