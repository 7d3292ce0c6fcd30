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

// Compile-time check to ensure ProgressRepository implements the interface
var _ repositories.ProgressRepository = (*ProgressRepository)(nil)

// ProgressRepository handles MongoDB operations for GameProgress
type ProgressRepository struct {
	collection *mongo.Collection
}

// NewProgressRepository creates a new ProgressRepository
func NewProgressRepository(db *mongo.Database) *ProgressRepository {
	return &ProgressRepository{
		collection: db.Collection(ProgressCollection),
	}
}

// FindByUserAndGame finds the progress record of a user for one game
func (r *ProgressRepository) FindByUserAndGame(ctx context.Context, userID primitive.ObjectID, gameID string) (*models.GameProgress, error) {
	var progress models.GameProgress
	err := r.collection.FindOne(ctx, bson.M{"userId": userID, "gameId": gameID}).Decode(&progress)
	if err != nil {
		return nil, translateError(err)
	}
	return &progress, nil
}

// FindOrCreate lazily creates the progress record with an upsert
func (r *ProgressRepository) FindOrCreate(ctx context.Context, seed *models.GameProgress) (*models.GameProgress, error) {
	now := time.Now()
	filter := bson.M{"userId": seed.UserID, "gameId": seed.GameID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"gameType":           seed.GameType,
			"role":               seed.Role,
			"gameIndex":          seed.GameIndex,
			"levelsCompleted":    0,
			"totalLevels":        seed.TotalLevels,
			"fullyCompleted":     false,
			"highestScore":       0,
			"totalCoinsEarned":   0,
			"coinsEarnedHistory": []models.CoinEarning{},
			"replayUnlocked":     false,
			"replayUnlockedAt":   nil,
			"replayPurchases":    0,
			"playCount":          0,
			"lastPlayedAt":       now,
			"createdAt":          now,
			"updatedAt":          now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var progress models.GameProgress
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&progress)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		// A concurrent upsert won the insert; the record exists now
		err = r.collection.FindOne(ctx, filter).Decode(&progress)
	}
	if err != nil {
		return nil, translateError(err)
	}
	return &progress, nil
}

// MarkFullyCompleted performs the one-time fullyCompleted transition
func (r *ProgressRepository) MarkFullyCompleted(ctx context.Context, id primitive.ObjectID, earning models.CoinEarning) (bool, error) {
	update := bson.M{
		"$set": bson.M{
			"fullyCompleted": true,
			"completedAt":    earning.EarnedAt,
			"updatedAt":      time.Now(),
		},
	}
	if earning.Amount > 0 {
		update["$push"] = bson.M{"coinsEarnedHistory": earning}
		update["$inc"] = bson.M{"totalCoinsEarned": earning.Amount}
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "fullyCompleted": false}, update)
	if err != nil {
		return false, translateError(err)
	}
	return res.ModifiedCount == 1, nil
}

// RecordPlay folds an attempt into the record
func (r *ProgressRepository) RecordPlay(ctx context.Context, id primitive.ObjectID, play models.PlayResult) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$max": bson.M{
			"levelsCompleted": play.LevelsCompleted,
			"highestScore":    play.Score,
		},
		"$set": bson.M{
			"lastPlayedAt": play.PlayedAt,
			"updatedAt":    time.Now(),
		},
		"$inc": bson.M{"playCount": 1},
	})
	if err != nil {
		return translateError(err)
	}
	if res.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// UnlockReplay marks a purchased replay on a completed record
func (r *ProgressRepository) UnlockReplay(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "fullyCompleted": true, "replayUnlocked": false},
		bson.M{
			"$set": bson.M{"replayUnlocked": true, "replayUnlockedAt": at, "updatedAt": time.Now()},
			"$inc": bson.M{"replayPurchases": 1},
		},
	)
	if err != nil {
		return false, translateError(err)
	}
	return res.ModifiedCount == 1, nil
}

// ConsumeReplay resets a purchased replay
func (r *ProgressRepository) ConsumeReplay(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "replayUnlocked": true},
		bson.M{"$set": bson.M{"replayUnlocked": false, "replayUnlockedAt": nil, "updatedAt": time.Now()}},
	)
	if err != nil {
		return false, translateError(err)
	}
	return res.ModifiedCount == 1, nil
}

// FindCompleted returns the fully completed records among gameIDs for a user
func (r *ProgressRepository) FindCompleted(ctx context.Context, userID primitive.ObjectID, gameIDs []string, gameType, role string) ([]*models.GameProgress, error) {
	if len(gameIDs) == 0 {
		return []*models.GameProgress{}, nil
	}
	filter := bson.M{
		"userId":         userID,
		"gameId":         bson.M{"$in": gameIDs},
		"gameType":       gameType,
		"role":           role,
		"fullyCompleted": true,
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, translateError(err)
	}
	defer cursor.Close(ctx)

	var records []*models.GameProgress
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []*models.GameProgress{}
	}
	return records, nil
}
