package memory

import (
	"context"
	"sort"
	"time"

	"github.com/ArowuTest/calmcoins-backend/internal/models"
	"github.com/ArowuTest/calmcoins-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var _ repositories.TransactionRepository = (*TransactionRepository)(nil)

// TransactionRepository is the in-memory ledger
type TransactionRepository struct {
	store *Store
}

// NewTransactionRepository creates a TransactionRepository on store
func NewTransactionRepository(store *Store) *TransactionRepository {
	return &TransactionRepository{store: store}
}

func (r *TransactionRepository) Create(ctx context.Context, transaction *models.Transaction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := transaction.IdempotencyKey
	if key != "" {
		if _, ok := r.store.idemKeys[key]; ok {
			return repositories.ErrDuplicateKey
		}
	}
	transaction.ID = primitive.NewObjectID()
	if transaction.CreatedAt.IsZero() {
		transaction.CreatedAt = time.Now()
	}
	t := *transaction
	r.store.transactions = append(r.store.transactions, &t)
	if key != "" {
		r.store.idemKeys[key] = &t
	}

	remember(ctx, func() { r.remove(t.ID) })
	return nil
}

// remove deletes an entry and frees its key. Callers hold the store lock.
func (r *TransactionRepository) remove(id primitive.ObjectID) {
	for i, t := range r.store.transactions {
		if t.ID != id {
			continue
		}
		if t.IdempotencyKey != "" {
			delete(r.store.idemKeys, t.IdempotencyKey)
		}
		r.store.transactions = append(r.store.transactions[:i:i], r.store.transactions[i+1:]...)
		return
	}
}

func (r *TransactionRepository) byID(id primitive.ObjectID) *models.Transaction {
	for _, t := range r.store.transactions {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (r *TransactionRepository) FindByIdempotencyKey(_ context.Context, key string) (*models.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if t, ok := r.store.idemKeys[key]; ok {
		c := *t
		return &c, nil
	}
	return nil, repositories.ErrNotFound
}

func (r *TransactionRepository) MarkApplied(ctx context.Context, id primitive.ObjectID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	t := r.byID(id)
	if t == nil || t.State != models.TransactionPending {
		return nil
	}
	t.State = models.TransactionApplied
	remember(ctx, func() { t.State = models.TransactionPending })
	return nil
}

func (r *TransactionRepository) DeletePending(ctx context.Context, id primitive.ObjectID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	t := r.byID(id)
	if t == nil || t.State != models.TransactionPending {
		return nil
	}
	removed := *t
	r.remove(id)
	remember(ctx, func() {
		restored := removed
		r.store.transactions = append(r.store.transactions, &restored)
		if restored.IdempotencyKey != "" {
			r.store.idemKeys[restored.IdempotencyKey] = &restored
		}
	})
	return nil
}

func (r *TransactionRepository) FindByUserID(_ context.Context, userID primitive.ObjectID, limit int) ([]*models.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := []*models.Transaction{}
	for i := len(r.store.transactions) - 1; i >= 0; i-- {
		if t := r.store.transactions[i]; t.UserID == userID && t.IsApplied() {
			c := *t
			out = append(out, &c)
		}
	}
	// Newest first; later appends win ties
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *TransactionRepository) SumByUserID(_ context.Context, userID primitive.ObjectID) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	total := 0
	for _, t := range r.store.transactions {
		if t.UserID == userID && t.IsApplied() {
			total += t.Signed()
		}
	}
	return total, nil
}
