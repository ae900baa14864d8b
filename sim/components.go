package sim

import (
	"image/color"

	"github.com/milk9111/swarm/ecs"
	"github.com/milk9111/swarm/nav"
	"github.com/milk9111/swarm/swarm"
)

// Body is anything moved over the nav surface.
type Body struct {
	Mover *nav.Mover
}

// PatrolMarker ties a registered patrol point to its entity.
type PatrolMarker struct {
	Point *swarm.PatrolPoint
}

type Appearance struct {
	Color color.Color
	Label string
}

var (
	BodyComponent       = ecs.NewComponentKind[Body]()
	AgentComponent      = ecs.NewComponentKind[swarm.Agent]()
	HealthComponent     = ecs.NewComponentKind[Health]()
	GunComponent        = ecs.NewComponentKind[Gun]()
	PlayerComponent     = ecs.NewComponentKind[Player]()
	PatrolComponent     = ecs.NewComponentKind[PatrolMarker]()
	AppearanceComponent = ecs.NewComponentKind[Appearance]()
)

const (
	EventAgentDied  = "agent_died"
	EventPlayerDied = "player_died"
)
