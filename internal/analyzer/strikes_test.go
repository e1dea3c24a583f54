package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"meeting-moderator-be/internal/entity"
)

var testPolicy = StrikePolicy{
	Window:    20 * time.Second,
	Threshold: 2,
	Cooldown:  45 * time.Second,
}

func strikeAt(ts float64) *entity.Strike {
	return &entity.Strike{Timestamp: ts, Confidence: 0.9}
}

func TestEvaluateStrikesFiresAtThreshold(t *testing.T) {
	state := entity.TangentState{}

	state, fired := EvaluateStrikes(state, strikeAt(100), 100, testPolicy)
	assert.False(t, fired)
	assert.Len(t, state.Strikes, 1)

	state, fired = EvaluateStrikes(state, strikeAt(105), 105, testPolicy)
	assert.True(t, fired)
	assert.Empty(t, state.Strikes)
	assert.Equal(t, float64(105), state.LastInterventionAt)
}

func TestEvaluateStrikesWindowPruning(t *testing.T) {
	state := entity.TangentState{}

	state, fired := EvaluateStrikes(state, strikeAt(100), 100, testPolicy)
	assert.False(t, fired)

	// 25s later the first strike has aged out, so this is strike one again.
	state, fired = EvaluateStrikes(state, strikeAt(125), 125, testPolicy)
	assert.False(t, fired)
	assert.Len(t, state.Strikes, 1)
}

func TestEvaluateStrikesCooldownSuppressesFiring(t *testing.T) {
	state := entity.TangentState{LastInterventionAt: 100}

	state, fired := EvaluateStrikes(state, strikeAt(110), 110, testPolicy)
	assert.False(t, fired)

	state, fired = EvaluateStrikes(state, strikeAt(115), 115, testPolicy)
	assert.False(t, fired, "threshold reached but cooldown active")
	assert.Len(t, state.Strikes, 2)

	// By the time the cooldown elapses, the suppressed strikes have aged
	// out of the window, so this is strike one again.
	state, fired = EvaluateStrikes(state, strikeAt(146), 146, testPolicy)
	assert.False(t, fired)
	assert.Len(t, state.Strikes, 1)

	state, fired = EvaluateStrikes(state, strikeAt(150), 150, testPolicy)
	assert.True(t, fired)
	assert.Equal(t, float64(150), state.LastInterventionAt)
}

func TestEvaluateStrikesOnTopicDoesNotClear(t *testing.T) {
	state := entity.TangentState{}

	state, _ = EvaluateStrikes(state, strikeAt(100), 100, testPolicy)

	// An on-topic tick passes no strike; the existing one survives pruning.
	state, fired := EvaluateStrikes(state, nil, 105, testPolicy)
	assert.False(t, fired)
	assert.Len(t, state.Strikes, 1)

	state, fired = EvaluateStrikes(state, strikeAt(110), 110, testPolicy)
	assert.True(t, fired)
}

func TestEvaluateStrikesNoStrikeBelowThreshold(t *testing.T) {
	state, fired := EvaluateStrikes(entity.TangentState{}, nil, 100, testPolicy)
	assert.False(t, fired)
	assert.Empty(t, state.Strikes)
	assert.Zero(t, state.LastInterventionAt)
}
