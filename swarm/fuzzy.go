package swarm

import "github.com/milk9111/swarm/common"

// ShootingScore combines distance and facing into a single aggressiveness
// value. Both inputs are normalized so that 1 means point blank and dead
// ahead, then shaped by the configured curves and weighted.
func ShootingScore(c CombatConfig, distance, angleDeg float64) float64 {
	wSum := c.DistanceWeight + c.AngleWeight
	if wSum <= 0 {
		return 0
	}

	closeness := 0.0
	if c.ShootingRange > 0 {
		closeness = 1 - common.Clamp01(distance/c.ShootingRange)
	}
	alignment := 1 - common.Clamp01(angleDeg/180)

	return (c.DistanceCurve.Evaluate(closeness)*c.DistanceWeight +
		c.AngleCurve.Evaluate(alignment)*c.AngleWeight) / wSum
}

func ShouldShoot(c CombatConfig, distance, angleDeg float64) bool {
	return ShootingScore(c, distance, angleDeg) >= c.ShootingThreshold
}
