package mongodb

import (
	"context"

	"github.com/ArowuTest/calmcoins-backend/internal/repositories"
	mongoclient "github.com/ArowuTest/calmcoins-backend/pkg/mongodb"
)

// Compile-time check to ensure TxManager implements the interface
var _ repositories.TxManager = (*TxManager)(nil)

// TxManager runs units of work as MongoDB transactions. Transactions need a
// replica set; with enabled=false the function runs directly and callers rely
// on key locks, conditional updates and idempotency keys instead.
type TxManager struct {
	client  *mongoclient.Client
	enabled bool
}

// NewTxManager creates a new TxManager
func NewTxManager(client *mongoclient.Client, enabled bool) *TxManager {
	return &TxManager{client: client, enabled: enabled}
}

// WithinTransaction runs fn as one unit of work
func (m *TxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !m.enabled {
		return fn(ctx)
	}
	return m.client.WithTransaction(ctx, fn)
}
