package memory

import (
	"context"

	"github.com/ArowuTest/calmcoins-backend/internal/repositories"
)

var _ repositories.TxManager = (*TxManager)(nil)

// TxManager serializes units of work on a Store. When the function fails only
// the writes made with its context are reversed; writes made outside it stay.
type TxManager struct {
	store *Store
}

// NewTxManager creates a TxManager for store
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// WithinTransaction runs fn as one unit of work
func (m *TxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.store.txMu.Lock()
	defer m.store.txMu.Unlock()

	txCtx, log := withUndoLog(ctx)
	if err := fn(txCtx); err != nil {
		m.store.rollback(log)
		return err
	}
	return nil
}
