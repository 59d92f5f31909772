package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reelmates/match-server-go/internal/model"
)

func TestStrategySatisfied(t *testing.T) {
	tests := []struct {
		name        string
		strategy    model.MatchStrategy
		likerCount  int
		memberCount int
		want        bool
	}{
		{"atLeastTwo: zero likers", model.StrategyAtLeastTwo, 0, 4, false},
		{"atLeastTwo: one liker", model.StrategyAtLeastTwo, 1, 4, false},
		{"atLeastTwo: two likers", model.StrategyAtLeastTwo, 2, 4, true},
		{"atLeastTwo: everyone", model.StrategyAtLeastTwo, 4, 4, true},
		{"allMembers: partial", model.StrategyAllMembers, 2, 3, false},
		{"allMembers: everyone", model.StrategyAllMembers, 3, 3, true},
		{"allMembers: solo member", model.StrategyAllMembers, 1, 1, true},
		{"allMembers: empty session", model.StrategyAllMembers, 0, 0, false},
		{"allMembers: grew past likers", model.StrategyAllMembers, 3, 4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strategySatisfied(tt.strategy, tt.likerCount, tt.memberCount)
			assert.Equal(t, tt.want, got)
		})
	}
}
