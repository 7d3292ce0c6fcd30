package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TransactionType is the direction of a wallet mutation
type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// TransactionState tracks a ledger entry through the two steps of a wallet change
type TransactionState string

const (
	// TransactionPending entries are recorded but may not have reached the wallet yet
	TransactionPending TransactionState = "pending"
	// TransactionApplied entries are reflected in the wallet balance
	TransactionApplied TransactionState = "applied"
)

// Transaction is an append-only ledger entry. Every wallet balance change has exactly one.
// Entries written before states existed carry no state and count as applied.
type Transaction struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID         primitive.ObjectID `bson:"userId" json:"userId"`
	Type           TransactionType    `bson:"type" json:"type"`
	Amount         int                `bson:"amount" json:"amount"`
	Description    string             `bson:"description" json:"description"`
	CoinType       string             `bson:"coinType" json:"coinType"`
	Reference      string             `bson:"reference,omitempty" json:"reference,omitempty"`
	IdempotencyKey string             `bson:"idempotencyKey,omitempty" json:"-"`
	State          TransactionState   `bson:"state,omitempty" json:"-"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
}

// Signed returns the amount with the sign of its direction
func (t *Transaction) Signed() int {
	if t.Type == TransactionDebit {
		return -t.Amount
	}
	return t.Amount
}

// IsApplied reports whether the entry is reflected in the wallet
func (t *Transaction) IsApplied() bool {
	return t.State != TransactionPending
}
