package swarm

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

type Formation int

const (
	FormationCircle Formation = iota
	FormationGrid
	FormationLine
	FormationRandom
)

func (f Formation) String() string {
	switch f {
	case FormationGrid:
		return "grid"
	case FormationLine:
		return "line"
	case FormationRandom:
		return "random"
	default:
		return "circle"
	}
}

func ParseFormation(s string) (Formation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "circle":
		return FormationCircle, nil
	case "grid":
		return FormationGrid, nil
	case "line":
		return FormationLine, nil
	case "random":
		return FormationRandom, nil
	}
	return FormationCircle, fmt.Errorf("swarm: unknown formation %q", s)
}

// SpawnConfig controls how agents are laid out around each spawn anchor.
type SpawnConfig struct {
	AgentsPerSpawnPoint int
	Radius              float64
	Formation           Formation
	GridSpacing         float64
	LineDirection       mgl64.Vec3
}

func DefaultSpawnConfig() SpawnConfig {
	return SpawnConfig{
		AgentsPerSpawnPoint: 3,
		Radius:              2,
		Formation:           FormationCircle,
		GridSpacing:         2,
		LineDirection:       mgl64.Vec3{0, 0, 1},
	}
}

// formationOffset places agent index of total relative to its anchor.
func formationOffset(cfg SpawnConfig, index, total int, rng *rand.Rand) mgl64.Vec3 {
	switch cfg.Formation {
	case FormationGrid:
		perRow := int(math.Ceil(math.Sqrt(float64(total))))
		if perRow < 1 {
			perRow = 1
		}
		row := index / perRow
		col := index % perRow
		half := float64(perRow) / 2
		return mgl64.Vec3{
			(float64(col) - half) * cfg.GridSpacing,
			0,
			(float64(row) - half) * cfg.GridSpacing,
		}
	case FormationLine:
		dir := cfg.LineDirection
		if dir.Len() == 0 {
			dir = mgl64.Vec3{0, 0, 1}
		}
		return dir.Normalize().Mul(float64(index) * cfg.GridSpacing)
	case FormationRandom:
		angle := rng.Float64() * 2 * math.Pi
		r := cfg.Radius * math.Sqrt(rng.Float64())
		return mgl64.Vec3{math.Cos(angle) * r, 0, math.Sin(angle) * r}
	default:
		if total <= 0 {
			total = 1
		}
		angle := float64(index) * 2 * math.Pi / float64(total)
		return mgl64.Vec3{math.Cos(angle) * cfg.Radius, 0, math.Sin(angle) * cfg.Radius}
	}
}
