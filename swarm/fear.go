package swarm

import (
	"math"

	"github.com/milk9111/swarm/common"
)

const fearCeilingFactor = 1.2

func fearCeiling(c FearConfig) float64 {
	return math.Max(0, c.Max*fearCeilingFactor)
}

func clampFear(fear float64, c FearConfig) float64 {
	return common.Clamp(fear, 0, fearCeiling(c))
}

func decayFear(fear, dt float64, c FearConfig) float64 {
	return clampFear(fear-c.ReductionRate*dt, c)
}

// proximityFear raises fear the closer the player is, relative to radius.
func proximityFear(fear, distance, radius, dt float64, c FearConfig) float64 {
	norm := 1.0
	if radius > 0 {
		norm = common.Clamp01(distance / radius)
	}
	return clampFear(fear+c.DistanceWeight*(1-norm)*dt, c)
}

func damageFear(fear, amount float64, c FearConfig) float64 {
	return clampFear(fear+c.DamageWeight*amount, c)
}

// checkFearThreshold returns Hiding when fear has reached the maximum and the
// agent is neither hiding already nor dead.
func checkFearThreshold(state StateID, fear float64, c FearConfig) (StateID, bool) {
	if state == Hiding || state == Dead {
		return state, false
	}
	if c.Max > 0 && fear >= c.Max {
		return Hiding, true
	}
	return state, false
}
