package utils

// Tier is the reward and replay price for a band of game indexes
type Tier struct {
	Reward     int `json:"reward"`
	ReplayCost int `json:"replayCost"`
}

// tierBandSize is the number of consecutive game indexes sharing a tier
const tierBandSize = 25

var tiers = []Tier{
	{Reward: 5, ReplayCost: 2},
	{Reward: 10, ReplayCost: 4},
	{Reward: 15, ReplayCost: 6},
	{Reward: 20, ReplayCost: 8},
}

// TierForIndex maps a 1-based game index to its tier.
// Missing or non-positive indexes fall back to the lowest band and
// indexes past the last band stay in the top band.
func TierForIndex(gameIndex int) Tier {
	if gameIndex <= 0 {
		return tiers[0]
	}
	band := (gameIndex - 1) / tierBandSize
	if band >= len(tiers) {
		band = len(tiers) - 1
	}
	return tiers[band]
}

// CalculateReward returns the coins earned for fully completing the game at gameIndex
func CalculateReward(gameIndex int) int {
	return TierForIndex(gameIndex).Reward
}

// CalculateReplayCost returns the coins needed to unlock a replay of the game at gameIndex
func CalculateReplayCost(gameIndex int) int {
	return TierForIndex(gameIndex).ReplayCost
}
