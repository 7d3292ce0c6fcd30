package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GameProgress tracks one user's progress on one game (activity)
type GameProgress struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID             primitive.ObjectID `bson:"userId" json:"userId"`
	GameID             string             `bson:"gameId" json:"gameId"`
	GameType           string             `bson:"gameType" json:"gameType"`
	Role               string             `bson:"role" json:"role"`
	GameIndex          int                `bson:"gameIndex" json:"gameIndex"`
	LevelsCompleted    int                `bson:"levelsCompleted" json:"levelsCompleted"`
	TotalLevels        int                `bson:"totalLevels" json:"totalLevels"`
	FullyCompleted     bool               `bson:"fullyCompleted" json:"fullyCompleted"`
	CompletedAt        *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	HighestScore       int                `bson:"highestScore" json:"highestScore"`
	TotalCoinsEarned   int                `bson:"totalCoinsEarned" json:"totalCoinsEarned"`
	CoinsEarnedHistory []CoinEarning      `bson:"coinsEarnedHistory" json:"coinsEarnedHistory"`
	ReplayUnlocked     bool               `bson:"replayUnlocked" json:"replayUnlocked"`
	ReplayUnlockedAt   *time.Time         `bson:"replayUnlockedAt" json:"replayUnlockedAt"`
	ReplayPurchases    int                `bson:"replayPurchases" json:"replayPurchases"`
	PlayCount          int                `bson:"playCount" json:"playCount"`
	LastPlayedAt       time.Time          `bson:"lastPlayedAt" json:"lastPlayedAt"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// CoinEarning is one entry of a progress record's award history
type CoinEarning struct {
	Amount   int       `bson:"amount" json:"amount"`
	Reason   string    `bson:"reason" json:"reason"`
	EarnedAt time.Time `bson:"earnedAt" json:"earnedAt"`
}

// PlayResult holds the per-attempt values folded into a progress record
type PlayResult struct {
	LevelsCompleted int
	Score           int
	PlayedAt        time.Time
}
