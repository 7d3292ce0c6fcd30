package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/ArowuTest/calmcoins-backend/internal/models"
	"github.com/ArowuTest/calmcoins-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Compile-time check to ensure WalletRepository implements the interface
var _ repositories.WalletRepository = (*WalletRepository)(nil)

// WalletRepository handles MongoDB operations for Wallet
type WalletRepository struct {
	collection *mongo.Collection
}

// NewWalletRepository creates a new WalletRepository
func NewWalletRepository(db *mongo.Database) *WalletRepository {
	return &WalletRepository{
		collection: db.Collection(WalletsCollection),
	}
}

// FindByUserID finds the wallet of a user
func (r *WalletRepository) FindByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.collection.FindOne(ctx, bson.M{"userId": userID}).Decode(&wallet)
	if err != nil {
		return nil, translateError(err)
	}
	return &wallet, nil
}

// ApplyCredit atomically adds to the balance once per txID, creating the wallet if needed
func (r *WalletRepository) ApplyCredit(ctx context.Context, userID, txID primitive.ObjectID, amount int, coinType string) (*models.Wallet, bool, error) {
	if amount <= 0 {
		return nil, false, errors.New("credit amount must be positive")
	}
	filter := bson.M{"userId": userID, "pendingTransactions": bson.M{"$ne": txID}}
	update := bson.M{
		"$inc":         bson.M{"balance": amount},
		"$push":        bson.M{"pendingTransactions": txID},
		"$set":         bson.M{"lastUpdated": time.Now()},
		"$setOnInsert": bson.M{"coinType": coinType},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	for attempt := 0; attempt < 2; attempt++ {
		var wallet models.Wallet
		err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&wallet)
		if err == nil {
			return &wallet, true, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, false, translateError(err)
		}
		// The upsert collided with an existing wallet: either txID is already
		// applied or a concurrent first credit created the wallet
		existing, findErr := r.FindByUserID(ctx, userID)
		if findErr != nil {
			return nil, false, findErr
		}
		if existing.HasPending(txID) {
			return existing, false, nil
		}
	}
	return nil, false, errors.New("wallet changed concurrently")
}

// ApplyDebit atomically subtracts from the balance once per txID when it covers amount
func (r *WalletRepository) ApplyDebit(ctx context.Context, userID, txID primitive.ObjectID, amount int) (*models.Wallet, bool, error) {
	if amount <= 0 {
		return nil, false, errors.New("debit amount must be positive")
	}
	filter := bson.M{
		"userId":              userID,
		"balance":             bson.M{"$gte": amount},
		"pendingTransactions": bson.M{"$ne": txID},
	}
	update := bson.M{
		"$inc":  bson.M{"balance": -amount},
		"$push": bson.M{"pendingTransactions": txID},
		"$set":  bson.M{"lastUpdated": time.Now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var wallet models.Wallet
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&wallet)
	if err == nil {
		return &wallet, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, translateError(err)
	}

	existing, err := r.FindByUserID(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, false, repositories.ErrInsufficientBalance
	}
	if err != nil {
		return nil, false, err
	}
	if existing.HasPending(txID) {
		return existing, false, nil
	}
	return nil, false, repositories.ErrInsufficientBalance
}

// ClearPending removes txID from the wallet's pending list
func (r *WalletRepository) ClearPending(ctx context.Context, userID, txID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{"$pull": bson.M{"pendingTransactions": txID}},
	)
	return translateError(err)
}
