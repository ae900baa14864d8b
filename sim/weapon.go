package sim

import (
	"github.com/milk9111/swarm/common"
	"github.com/milk9111/swarm/ecs"
	"github.com/milk9111/swarm/swarm"
)

// Gun is a hitscan weapon. Pulling the trigger only marks intent; the weapon
// system fires at most once per Interval when the target is in range and
// visible.
type Gun struct {
	Damage   float64
	Range    float64
	Interval float64
	Mask     uint
	Target   ecs.Entity
	Shots    int

	cooldown float64
	pulled   bool
}

// Fire pulls the trigger at the current target.
func (g *Gun) Fire() {
	g.pulled = true
}

func (g *Gun) FireAt(target ecs.Entity) {
	g.Target = target
	g.pulled = true
}

func (g *Gun) Ready() bool {
	return g.cooldown <= 0
}

type WeaponSystem struct {
	sight swarm.LineOfSight
}

func NewWeaponSystem(sight swarm.LineOfSight) *WeaponSystem {
	return &WeaponSystem{sight: sight}
}

func (s *WeaponSystem) Update(w *ecs.World, dt float64) {
	ecs.ForEach2(w, GunComponent, BodyComponent, func(e ecs.Entity, gun *Gun, body *Body) {
		if gun.cooldown > 0 {
			gun.cooldown -= dt
		}
		if !gun.pulled {
			return
		}
		gun.pulled = false
		if !gun.Ready() {
			return
		}
		if own, ok := ecs.Get(w, e, HealthComponent); ok && own.Dead() {
			return
		}
		if !ecs.IsAlive(w, gun.Target) {
			return
		}
		health, ok := ecs.Get(w, gun.Target, HealthComponent)
		if !ok || health.Dead() {
			return
		}
		target, ok := ecs.Get(w, gun.Target, BodyComponent)
		if !ok {
			return
		}

		from := body.Mover.Position()
		to := target.Mover.Position()
		if common.Distance(from, to) > gun.Range {
			return
		}
		if s.sight != nil && s.sight.Blocked(from, to, gun.Mask) {
			return
		}
		gun.cooldown = gun.Interval
		gun.Shots++
		health.ChangeHealth(-gun.Damage)
	})
}
