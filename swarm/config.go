package swarm

import "github.com/milk9111/swarm/physics"

type MovementConfig struct {
	Speed            float64
	StoppingDistance float64
	// RotationSpeed is the slerp factor applied per second toward the desired
	// heading.
	RotationSpeed float64
}

type PatrolConfig struct {
	Radius               float64
	RandomnessFactor     float64
	WaitTime             float64
	AvoidRecentlyVisited bool
	RecencyWeight        float64
	ThreatResponseWeight float64
	ThreatCloseRange     float64
}

type DetectionConfig struct {
	Radius       float64
	FieldOfView  float64
	ObstacleMask uint
}

type CombatConfig struct {
	ShootingRange     float64
	ShootingThreshold float64
	DistanceWeight    float64
	AngleWeight       float64
	DistanceCurve     Curve
	AngleCurve        Curve
	ShootDuration     float64
}

type FearConfig struct {
	Max            float64
	ReductionRate  float64
	DamageWeight   float64
	DistanceWeight float64
}

// Config is the full tuning of one role.
type Config struct {
	Role      Role
	Movement  MovementConfig
	Patrol    PatrolConfig
	Detection DetectionConfig
	Combat    CombatConfig
	Fear      FearConfig
}

const defaultShootDuration = 2.0

// DefaultConfig returns the stock tuning for role.
func DefaultConfig(role Role) Config {
	cfg := Config{
		Role: role,
		Movement: MovementConfig{
			Speed:            3.5,
			StoppingDistance: 0.5,
			RotationSpeed:    5,
		},
		Patrol: PatrolConfig{
			Radius:               10,
			RandomnessFactor:     0.2,
			WaitTime:             1,
			AvoidRecentlyVisited: true,
			RecencyWeight:        0.7,
			ThreatResponseWeight: 0.5,
			ThreatCloseRange:     10,
		},
		Detection: DetectionConfig{
			Radius:       15,
			FieldOfView:  90,
			ObstacleMask: physics.LayerObstacle,
		},
		Combat: CombatConfig{
			ShootingRange:     8,
			ShootingThreshold: 0.5,
			DistanceWeight:    1,
			AngleWeight:       1,
			DistanceCurve:     LinearCurve(),
			AngleCurve:        LinearCurve(),
			ShootDuration:     defaultShootDuration,
		},
		Fear: FearConfig{
			Max:            100,
			ReductionRate:  5,
			DamageWeight:   1,
			DistanceWeight: 10,
		},
	}

	switch role {
	case Worker:
		cfg.Patrol.Radius = 15
	case Scout:
		cfg.Movement.Speed = 5
		cfg.Patrol.Radius = 30
		cfg.Patrol.RandomnessFactor = 0.3
	case Defender:
		cfg.Movement.Speed = 4
		cfg.Patrol.Radius = 8
		cfg.Patrol.AvoidRecentlyVisited = false
	}
	return cfg
}

// DefaultConfigs returns the stock tuning of every role.
func DefaultConfigs() []Config {
	out := make([]Config, 0, roleCount)
	for _, r := range Roles() {
		out = append(out, DefaultConfig(r))
	}
	return out
}
