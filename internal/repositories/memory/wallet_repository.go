package memory

import (
	"context"
	"errors"
	"time"

	"github.com/ArowuTest/calmcoins-backend/internal/models"
	"github.com/ArowuTest/calmcoins-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var _ repositories.WalletRepository = (*WalletRepository)(nil)

// WalletRepository is the in-memory wallets table
type WalletRepository struct {
	store *Store
}

// NewWalletRepository creates a WalletRepository on store
func NewWalletRepository(store *Store) *WalletRepository {
	return &WalletRepository{store: store}
}

func (r *WalletRepository) FindByUserID(_ context.Context, userID primitive.ObjectID) (*models.Wallet, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if w, ok := r.store.wallets[userID]; ok {
		return cloneWallet(w), nil
	}
	return nil, repositories.ErrNotFound
}

func (r *WalletRepository) ApplyCredit(ctx context.Context, userID, txID primitive.ObjectID, amount int, coinType string) (*models.Wallet, bool, error) {
	if amount <= 0 {
		return nil, false, errors.New("credit amount must be positive")
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	w, ok := r.store.wallets[userID]
	if ok && w.HasPending(txID) {
		return cloneWallet(w), false, nil
	}
	if !ok {
		w = &models.Wallet{ID: primitive.NewObjectID(), UserID: userID, CoinType: coinType}
		r.store.wallets[userID] = w
	}
	r.change(ctx, userID, txID, amount, !ok)
	return cloneWallet(w), true, nil
}

func (r *WalletRepository) ApplyDebit(ctx context.Context, userID, txID primitive.ObjectID, amount int) (*models.Wallet, bool, error) {
	if amount <= 0 {
		return nil, false, errors.New("debit amount must be positive")
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	w, ok := r.store.wallets[userID]
	if ok && w.HasPending(txID) {
		return cloneWallet(w), false, nil
	}
	if !ok || w.Balance < amount {
		return nil, false, repositories.ErrInsufficientBalance
	}
	r.change(ctx, userID, txID, -amount, false)
	return cloneWallet(w), true, nil
}

func (r *WalletRepository) ClearPending(_ context.Context, userID, txID primitive.ObjectID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if w, ok := r.store.wallets[userID]; ok {
		w.PendingTransactions = withoutID(w.PendingTransactions, txID)
	}
	return nil
}

// change moves the balance by delta for txID. The undo step applies the
// inverse delta so concurrent changes by other callers survive a rollback.
func (r *WalletRepository) change(ctx context.Context, userID, txID primitive.ObjectID, delta int, created bool) {
	w := r.store.wallets[userID]
	w.Balance += delta
	w.PendingTransactions = append(w.PendingTransactions, txID)
	w.LastUpdated = time.Now()

	remember(ctx, func() {
		w, ok := r.store.wallets[userID]
		if !ok {
			return
		}
		w.Balance -= delta
		w.PendingTransactions = withoutID(w.PendingTransactions, txID)
		if created && w.Balance == 0 && len(w.PendingTransactions) == 0 {
			delete(r.store.wallets, userID)
		}
	})
}

func cloneWallet(w *models.Wallet) *models.Wallet {
	c := *w
	c.PendingTransactions = append([]primitive.ObjectID(nil), w.PendingTransactions...)
	return &c
}

func withoutID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
