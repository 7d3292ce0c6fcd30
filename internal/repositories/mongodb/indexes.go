package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names
const (
	UsersCollection         = "users"
	ProgressCollection      = "game_progress"
	WalletsCollection       = "wallets"
	TransactionsCollection  = "transactions"
	NotificationsCollection = "notifications"
)

// EnsureIndexes creates the indexes the repositories rely on for uniqueness and lookups
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		ProgressCollection: {
			{
				Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "gameId", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("user_game_unique"),
			},
			{
				Keys: bson.D{{Key: "userId", Value: 1}, {Key: "gameType", Value: 1}, {Key: "fullyCompleted", Value: 1}},
			},
		},
		WalletsCollection: {
			{
				Keys:    bson.D{{Key: "userId", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("user_unique"),
			},
		},
		TransactionsCollection: {
			{
				Keys:    bson.D{{Key: "idempotencyKey", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true).SetName("idempotency_unique"),
			},
			{
				Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			},
		},
		NotificationsCollection: {
			{
				Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			},
		},
		UsersCollection: {
			{
				Keys: bson.D{{Key: "badges.badgeId", Value: 1}},
			},
		},
	}

	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
