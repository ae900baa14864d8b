package sim

import (
	"image/color"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/milk9111/swarm/ecs"
	"github.com/milk9111/swarm/swarm"
)

type AgentView struct {
	ID          uuid.UUID
	Role        swarm.Role
	State       swarm.StateID
	Position    mgl64.Vec3
	Forward     mgl64.Vec3
	Fear        float64
	FearMax     float64
	Health      float64
	HealthMax   float64
	Destination mgl64.Vec3
	HasDest     bool
	LineOfSight bool
	Path        []mgl64.Vec3
	Color       color.Color
}

type PointView struct {
	Name      string
	Position  mgl64.Vec3
	Assigned  bool
	Visited   bool
	LastVisit float64
}

type PlayerView struct {
	Position  mgl64.Vec3
	Health    float64
	HealthMax float64
	Alive     bool
	Color     color.Color
}

// Snapshot is a read-only copy of the world for viewers.
type Snapshot struct {
	Tick         int
	Time         float64
	Agents       []AgentView
	Points       []PointView
	Player       *PlayerView
	ThreatActive bool
	Threat       mgl64.Vec3
	Deaths       int
	Walkable     orb.Polygon
	Obstacles    []orb.Polygon
}

// Counts tallies agents per state.
func (s Snapshot) Counts() map[swarm.StateID]int {
	out := make(map[swarm.StateID]int)
	for _, a := range s.Agents {
		out[a.State]++
	}
	return out
}

func (w *World) Snapshot() Snapshot {
	snap := Snapshot{
		Tick:      w.tick,
		Time:      w.coord.Now(),
		Deaths:    w.deaths,
		Walkable:  w.level.Walkable,
		Obstacles: w.level.Obstacles,
	}
	snap.Threat, snap.ThreatActive = w.coord.ThreatActive()

	type entry struct {
		e    ecs.Entity
		view AgentView
	}
	var entries []entry
	ecs.ForEach3(w.ecs, AgentComponent, BodyComponent, HealthComponent, func(e ecs.Entity, a *swarm.Agent, b *Body, h *Health) {
		v := AgentView{
			ID:          a.ID(),
			Role:        a.Role(),
			State:       a.State(),
			Position:    a.Position(),
			Forward:     a.Forward(),
			Fear:        a.Fear(),
			FearMax:     a.Config().Fear.Max,
			Health:      h.Current,
			HealthMax:   h.Max,
			LineOfSight: a.LineOfSight(),
			Path:        append([]mgl64.Vec3(nil), b.Mover.Path()...),
		}
		if d, ok := a.Destination(); ok {
			v.Destination, v.HasDest = d.Position, true
		}
		if app, ok := ecs.Get(w.ecs, e, AppearanceComponent); ok {
			v.Color = app.Color
		}
		entries = append(entries, entry{e: e, view: v})
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].e.ID < entries[j].e.ID })
	for _, en := range entries {
		snap.Agents = append(snap.Agents, en.view)
	}

	for _, p := range w.coord.PatrolPoints() {
		snap.Points = append(snap.Points, PointView{
			Name:      p.Name,
			Position:  p.Position(),
			Assigned:  w.coord.AssignedTo(p) != nil,
			Visited:   p.Visited(),
			LastVisit: p.LastVisit(),
		})
	}

	if p := w.player; p != nil {
		pv := &PlayerView{Position: p.mover.Position(), Alive: p.alive}
		if h, ok := ecs.Get(w.ecs, p.entity, HealthComponent); ok {
			pv.Health, pv.HealthMax = h.Current, h.Max
		}
		if app, ok := ecs.Get(w.ecs, p.entity, AppearanceComponent); ok {
			pv.Color = app.Color
		}
		snap.Player = pv
	}
	return snap
}
