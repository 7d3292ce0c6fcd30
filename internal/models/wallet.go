package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CoinTypeCalm identifies the calm coin currency family in wallets and transactions
const CoinTypeCalm = "calm_coins"

// Wallet holds a user's calm coin balance
type Wallet struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID      primitive.ObjectID `bson:"userId" json:"userId"`
	Balance     int                `bson:"balance" json:"balance"`
	CoinType    string             `bson:"coinType" json:"coinType"`
	LastUpdated time.Time          `bson:"lastUpdated" json:"lastUpdated"`
	// PendingTransactions lists ledger entries applied to the balance but not yet marked applied
	PendingTransactions []primitive.ObjectID `bson:"pendingTransactions,omitempty" json:"-"`
}

// HasPending reports whether txID was applied to the balance
func (w *Wallet) HasPending(txID primitive.ObjectID) bool {
	for _, id := range w.PendingTransactions {
		if id == txID {
			return true
		}
	}
	return false
}
