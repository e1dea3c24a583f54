package analyzer

import (
	"time"

	"meeting-moderator-be/internal/entity"
)

// StrikePolicy bundles the tunables of the strike/cooldown state machine.
type StrikePolicy struct {
	Window    time.Duration
	Threshold int
	Cooldown  time.Duration
}

// EvaluateStrikes applies one classification outcome to the detector state.
// It is a pure function of (state, new strike, now): strikes are pruned to
// the sliding window, the new strike (if any) is appended, and an
// intervention fires exactly when the pruned count reaches the threshold and
// the cooldown has elapsed. Firing clears the strikes and stamps the
// intervention time.
//
// An on-topic reading does not clear existing strikes; only window pruning
// removes them. A stale strike can therefore combine with a much later one
// across a partially on-topic interval. That matches observed production
// behavior and is kept deliberately.
func EvaluateStrikes(state entity.TangentState, strike *entity.Strike, now float64, p StrikePolicy) (entity.TangentState, bool) {
	window := p.Window.Seconds()

	pruned := make([]entity.Strike, 0, len(state.Strikes)+1)
	for _, s := range state.Strikes {
		if now-s.Timestamp <= window {
			pruned = append(pruned, s)
		}
	}
	if strike != nil {
		pruned = append(pruned, *strike)
	}
	state.Strikes = pruned

	if len(state.Strikes) < p.Threshold {
		return state, false
	}

	coolingDown := state.LastInterventionAt > 0 && now-state.LastInterventionAt < p.Cooldown.Seconds()
	if coolingDown {
		return state, false
	}

	state.Strikes = nil
	state.LastInterventionAt = now
	return state, true
}
