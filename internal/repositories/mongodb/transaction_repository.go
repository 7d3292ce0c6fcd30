package mongodb

import (
	"context"
	"time"

	"github.com/ArowuTest/calmcoins-backend/internal/models"
	"github.com/ArowuTest/calmcoins-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Compile-time check to ensure TransactionRepository implements the interface
var _ repositories.TransactionRepository = (*TransactionRepository)(nil)

// TransactionRepository handles MongoDB operations for the coin ledger
type TransactionRepository struct {
	collection *mongo.Collection
}

// NewTransactionRepository creates a new TransactionRepository
func NewTransactionRepository(db *mongo.Database) *TransactionRepository {
	return &TransactionRepository{
		collection: db.Collection(TransactionsCollection),
	}
}

// Create appends a ledger entry
func (r *TransactionRepository) Create(ctx context.Context, transaction *models.Transaction) error {
	transaction.ID = primitive.NewObjectID()
	if transaction.CreatedAt.IsZero() {
		transaction.CreatedAt = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, transaction)
	return translateError(err)
}

// appliedOnly matches entries that reached the wallet, including entries without a state
var appliedOnly = bson.M{"$ne": models.TransactionPending}

// FindByIdempotencyKey finds the entry written under key
func (r *TransactionRepository) FindByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error) {
	var transaction models.Transaction
	err := r.collection.FindOne(ctx, bson.M{"idempotencyKey": key}).Decode(&transaction)
	if err != nil {
		return nil, translateError(err)
	}
	return &transaction, nil
}

// MarkApplied moves a pending entry to applied. Already applied entries are left alone.
func (r *TransactionRepository) MarkApplied(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "state": models.TransactionPending},
		bson.M{"$set": bson.M{"state": models.TransactionApplied}},
	)
	return translateError(err)
}

// DeletePending removes a pending entry
func (r *TransactionRepository) DeletePending(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "state": models.TransactionPending})
	return translateError(err)
}

// FindByUserID returns the newest ledger entries of a user
func (r *TransactionRepository) FindByUserID(ctx context.Context, userID primitive.ObjectID, limit int) ([]*models.Transaction, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID, "state": appliedOnly}, findOptions)
	if err != nil {
		return nil, translateError(err)
	}
	defer cursor.Close(ctx)

	var transactions []*models.Transaction
	if err = cursor.All(ctx, &transactions); err != nil {
		return nil, err
	}
	if transactions == nil {
		transactions = []*models.Transaction{}
	}
	return transactions, nil
}

// SumByUserID folds the ledger of a user into a balance
func (r *TransactionRepository) SumByUserID(ctx context.Context, userID primitive.ObjectID) (int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"userId": userID, "state": appliedOnly}}},
		{{Key: "$group", Value: bson.M{
			"_id": nil,
			"total": bson.M{"$sum": bson.M{
				"$cond": bson.A{
					bson.M{"$eq": bson.A{"$type", string(models.TransactionDebit)}},
					bson.M{"$multiply": bson.A{"$amount", -1}},
					"$amount",
				},
			}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, translateError(err)
	}
	defer cursor.Close(ctx)

	var result []struct {
		Total int `bson:"total"`
	}
	if err = cursor.All(ctx, &result); err != nil {
		return 0, err
	}
	if len(result) == 0 {
		return 0, nil
	}
	return result[0].Total, nil
}
