package sim

import (
	"github.com/google/uuid"

	"github.com/milk9111/swarm/ecs"
	"github.com/milk9111/swarm/swarm"
)

// CoordinatorSystem advances the swarm clock and threat before agents act, so
// agents read the threat derived from the previous tick.
type CoordinatorSystem struct {
	coord *swarm.Coordinator
}

func NewCoordinatorSystem(coord *swarm.Coordinator) *CoordinatorSystem {
	return &CoordinatorSystem{coord: coord}
}

func (s *CoordinatorSystem) Update(w *ecs.World, dt float64) {
	s.coord.Update(dt)
}

type AgentSystem struct{}

func NewAgentSystem() *AgentSystem { return &AgentSystem{} }

func (s *AgentSystem) Update(w *ecs.World, dt float64) {
	ecs.ForEach(w, AgentComponent, func(e ecs.Entity, a *swarm.Agent) {
		a.Tick(dt)
	})
}

// NavSystem moves every body along its path.
type NavSystem struct{}

func NewNavSystem() *NavSystem { return &NavSystem{} }

func (s *NavSystem) Update(w *ecs.World, dt float64) {
	ecs.ForEach(w, BodyComponent, func(e ecs.Entity, b *Body) {
		if b.Mover != nil {
			b.Mover.Advance(dt)
		}
	})
}

// CleanupSystem drains world events and removes the entities of dead agents.
type CleanupSystem struct {
	world *World
}

func NewCleanupSystem(world *World) *CleanupSystem {
	return &CleanupSystem{world: world}
}

func (s *CleanupSystem) Update(w *ecs.World, dt float64) {
	for _, ev := range w.Events().Drain() {
		switch ev.Type {
		case EventAgentDied:
			s.world.deaths++
			if id, ok := ev.Data.(uuid.UUID); ok {
				delete(s.world.agents, id)
			}
			ecs.DestroyEntity(w, ev.Entity)
		case EventPlayerDied:
			s.world.logger.Warn("player down", "tick", s.world.tick)
		}
	}
}
