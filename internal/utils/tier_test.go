package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierForIndex(t *testing.T) {
	cases := []struct {
		index  int
		reward int
		replay int
	}{
		{-3, 5, 2},
		{0, 5, 2},
		{1, 5, 2},
		{25, 5, 2},
		{26, 10, 4},
		{30, 10, 4},
		{50, 10, 4},
		{51, 15, 6},
		{75, 15, 6},
		{76, 20, 8},
		{100, 20, 8},
		{140, 20, 8},
	}
	for _, tc := range cases {
		tier := TierForIndex(tc.index)
		assert.Equal(t, tc.reward, tier.Reward, "reward for index %d", tc.index)
		assert.Equal(t, tc.replay, tier.ReplayCost, "replay cost for index %d", tc.index)
		assert.Equal(t, tc.reward, CalculateReward(tc.index))
		assert.Equal(t, tc.replay, CalculateReplayCost(tc.index))
	}
}
