package mongodb

import (
	"context"
	"time"

	"github.com/ArowuTest/calmcoins-backend/internal/models"
	"github.com/ArowuTest/calmcoins-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Compile-time check to ensure UserRepository implements the interface
var _ repositories.UserRepository = (*UserRepository)(nil)

// UserRepository handles MongoDB operations for User
type UserRepository struct {
	collection *mongo.Collection
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		collection: db.Collection(UsersCollection),
	}
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Badges == nil {
		user.Badges = []models.UserBadge{}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	_, err := r.collection.InsertOne(ctx, user)
	return translateError(err)
}

// FindByID finds a user by ID
func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

// GrantBadge adds a badge entry exactly once
func (r *UserRepository) GrantBadge(ctx context.Context, userID primitive.ObjectID, badge models.UserBadge) (bool, error) {
	now := time.Now()
	sameBadge := badgeMatch(badge)
	notHeld := bson.M{"badges": bson.M{"$not": bson.M{"$elemMatch": bson.M{
		"$or":    sameBadge,
		"earned": bson.M{"$ne": false},
	}}}}

	// Upgrade a legacy placeholder (earned=false) in place
	upgrade, err := r.collection.UpdateOne(ctx,
		bson.M{
			"_id": userID,
			"$and": bson.A{
				notHeld,
				bson.M{"badges": bson.M{"$elemMatch": bson.M{"$or": sameBadge, "earned": false}}},
			},
		},
		bson.M{"$set": bson.M{"badges.$": badge, "updatedAt": now}},
	)
	if err != nil {
		return false, translateError(err)
	}
	if upgrade.ModifiedCount > 0 {
		return true, nil
	}

	res, err := r.collection.UpdateOne(ctx,
		bson.M{
			"_id":    userID,
			"badges": bson.M{"$not": bson.M{"$elemMatch": bson.M{"$or": sameBadge}}},
		},
		bson.M{
			"$push": bson.M{"badges": badge},
			"$set":  bson.M{"updatedAt": now},
		},
	)
	if err != nil {
		return false, translateError(err)
	}
	return res.ModifiedCount == 1, nil
}

// badgeMatch matches a badge entry by id or by display name, like User.FindBadge
func badgeMatch(badge models.UserBadge) bson.A {
	or := bson.A{bson.M{"badgeId": badge.BadgeID}}
	if badge.Name != "" {
		or = append(or, bson.M{"name": badge.Name})
	}
	return or
}

// AcknowledgeBadge clears newlyEarned on a held badge
func (r *UserRepository) AcknowledgeBadge(ctx context.Context, userID primitive.ObjectID, badgeID string) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{
			"_id":    userID,
			"badges": bson.M{"$elemMatch": bson.M{"badgeId": badgeID, "newlyEarned": true}},
		},
		bson.M{"$set": bson.M{"badges.$.newlyEarned": false, "updatedAt": time.Now()}},
	)
	if err != nil {
		return false, translateError(err)
	}
	return res.ModifiedCount == 1, nil
}
