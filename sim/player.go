package sim

import (
	"github.com/charmbracelet/log"
	"github.com/d5/tengo/v2"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/milk9111/swarm/common"
	"github.com/milk9111/swarm/ecs"
	"github.com/milk9111/swarm/nav"
)

const (
	playerRepath   = 0.25
	shootPickRange = 1.5
)

// Player is the scripted target the swarm hunts. It implements
// swarm.PlayerLocator; a dead player has no position.
type Player struct {
	entity ecs.Entity
	mover  *nav.Mover
	gun    *Gun
	route  []mgl64.Vec3
	script *scriptRuntime
	logger *log.Logger
	alive  bool
	damage float64

	onDeath func()
}

func (p *Player) PlayerPosition() (mgl64.Vec3, bool) {
	if p == nil || !p.alive {
		return mgl64.Vec3{}, false
	}
	return p.mover.Position(), true
}

func (p *Player) Entity() ecs.Entity { return p.entity }
func (p *Player) Alive() bool        { return p.alive }

// DamageTaken is the total damage received so far.
func (p *Player) DamageTaken() float64 { return p.damage }

func (p *Player) ReceiveDamage(amount float64) {
	p.damage += amount
}

func (p *Player) Die() {
	if !p.alive {
		return
	}
	p.alive = false
	p.mover.SetStopped(true)
	p.mover.ResetPath()
	p.logger.Info("player died", "damage", p.damage)
	if p.onDeath != nil {
		p.onDeath()
	}
}

// PlayerSystem runs the player's script once per tick.
type PlayerSystem struct {
	world *World
}

func NewPlayerSystem(world *World) *PlayerSystem {
	return &PlayerSystem{world: world}
}

func (s *PlayerSystem) Update(w *ecs.World, dt float64) {
	p := s.world.player
	if p == nil || !p.alive || p.script == nil {
		return
	}
	if err := p.script.run(s.engine(w, p)); err != nil {
		p.logger.Error("player script failed", "script", p.script.path, "err", err)
		p.script = nil
	}
}

func (s *PlayerSystem) engine(w *ecs.World, p *Player) *tengo.ImmutableMap {
	values := map[string]tengo.Object{}

	values["get_position"] = &tengo.UserFunction{Name: "get_position", Value: func(args ...tengo.Object) (tengo.Object, error) {
		pos := p.mover.Position()
		return vecObject(pos.X(), pos.Z()), nil
	}}

	values["time"] = &tengo.UserFunction{Name: "time", Value: func(args ...tengo.Object) (tengo.Object, error) {
		return &tengo.Float{Value: s.world.coord.Now()}, nil
	}}

	values["waypoints"] = &tengo.UserFunction{Name: "waypoints", Value: func(args ...tengo.Object) (tengo.Object, error) {
		out := make([]tengo.Object, 0, len(p.route))
		for _, wp := range p.route {
			out = append(out, vecObject(wp.X(), wp.Z()))
		}
		return &tengo.Array{Value: out}, nil
	}}

	values["move_towards"] = &tengo.UserFunction{Name: "move_towards", Value: func(args ...tengo.Object) (tengo.Object, error) {
		xz, ok := floatArgs(args, 2)
		if !ok {
			return tengo.FalseValue, nil
		}
		dest := mgl64.Vec3{xz[0], p.mover.Position().Y(), xz[1]}
		if p.mover.HasPath() || p.mover.PathPending() {
			if common.Distance(p.mover.Destination(), dest) < playerRepath {
				return tengo.TrueValue, nil
			}
		}
		p.mover.SetStopped(false)
		if !p.mover.SetDestination(dest) {
			return tengo.FalseValue, nil
		}
		return tengo.TrueValue, nil
	}}

	values["stop"] = &tengo.UserFunction{Name: "stop", Value: func(args ...tengo.Object) (tengo.Object, error) {
		p.mover.SetStopped(true)
		p.mover.ResetPath()
		return tengo.TrueValue, nil
	}}

	values["nearest_agent"] = &tengo.UserFunction{Name: "nearest_agent", Value: func(args ...tengo.Object) (tengo.Object, error) {
		_, pos, ok := s.world.visibleAgentNear(p.mover.Position(), p.gun.Range, p.gun.Mask)
		if !ok {
			return tengo.UndefinedValue, nil
		}
		return vecObject(pos.X(), pos.Z()), nil
	}}

	values["shoot"] = &tengo.UserFunction{Name: "shoot", Value: func(args ...tengo.Object) (tengo.Object, error) {
		xz, ok := floatArgs(args, 2)
		if !ok {
			return tengo.FalseValue, nil
		}
		target, ok := s.world.agentAt(mgl64.Vec3{xz[0], 0, xz[1]}, shootPickRange)
		if !ok {
			return tengo.FalseValue, nil
		}
		p.gun.FireAt(target)
		return tengo.TrueValue, nil
	}}

	values["log"] = &tengo.UserFunction{Name: "log", Value: func(args ...tengo.Object) (tengo.Object, error) {
		parts := make([]any, 0, len(args))
		for _, a := range args {
			parts = append(parts, objectAsString(a))
		}
		p.logger.Info("player script", "msg", parts)
		return tengo.UndefinedValue, nil
	}}

	return &tengo.ImmutableMap{Value: values}
}
