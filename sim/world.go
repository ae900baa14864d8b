package sim

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/milk9111/swarm/common"
	"github.com/milk9111/swarm/ecs"
	"github.com/milk9111/swarm/levels"
	"github.com/milk9111/swarm/nav"
	"github.com/milk9111/swarm/physics"
	"github.com/milk9111/swarm/prefabs"
	"github.com/milk9111/swarm/swarm"
)

const playerStoppingDistance = 0.1

var (
	ErrDuplicateCoordinator = errors.New("sim: coordinator already installed")
	ErrNilLevel             = errors.New("sim: nil level")
)

type Options struct {
	Logger *log.Logger
	// Seed overrides the configured seed when non-zero.
	Seed int64
}

// World is one running simulation: a level, its static geometry, the swarm
// and the player, stepped at a fixed rate.
type World struct {
	logger   *log.Logger
	ecs      *ecs.World
	sched    *ecs.Scheduler
	physics  *physics.World
	surface  *nav.Surface
	coord    *swarm.Coordinator
	fsm      *swarm.FSMDef
	level    *levels.Level
	loadouts map[swarm.Role]RoleLoadout
	player   *Player
	agents   map[uuid.UUID]ecs.Entity
	points   map[string]ecs.Entity

	seed   int64
	dt     float64
	tick   int
	deaths int
}

func New(level *levels.Level, spec *prefabs.SwarmSpec, opts Options) (*World, error) {
	if level == nil {
		return nil, ErrNilLevel
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	rate, err := tickRate(spec)
	if err != nil {
		return nil, err
	}
	configs, loadouts, err := RoleConfigs(spec)
	if err != nil {
		return nil, fmt.Errorf("sim: roles: %w", err)
	}
	spawnCfg, err := SpawnConfig(spec)
	if err != nil {
		return nil, fmt.Errorf("sim: spawn: %w", err)
	}
	fsm, err := AgentFSM(spec)
	if err != nil {
		logger.Error("agent fsm failed to compile", "err", err)
		return nil, err
	}
	surface, err := nav.NewSurface(level.Walkable, level.Obstacles, nav.DefaultCellSize)
	if err != nil {
		return nil, fmt.Errorf("sim: nav surface: %w", err)
	}
	phys := physics.NewWorld()
	for _, o := range level.Obstacles {
		phys.AddPolygon(o, physics.LayerObstacle)
	}

	seed := opts.Seed
	if seed == 0 && spec != nil {
		seed = spec.Seed
	}
	if seed == 0 {
		seed = 1
	}

	w := &World{
		logger:   logger,
		ecs:      ecs.NewWorld(),
		physics:  phys,
		surface:  surface,
		fsm:      fsm,
		level:    level,
		loadouts: loadouts,
		agents:   make(map[uuid.UUID]ecs.Entity),
		points:   make(map[string]ecs.Entity),
		seed:     seed,
		dt:       1 / float64(rate),
	}

	if level.HasPlayer {
		w.spawnPlayer(resolvePlayer(spec))
	}

	coordOpts := swarm.Options{
		Logger:  logger,
		Rand:    rand.New(rand.NewSource(seed)),
		Roles:   configs,
		Spawn:   spawnCfg,
		Sight:   phys,
		Sampler: surface,
	}
	if w.player != nil {
		coordOpts.Player = w.player
	}
	if err := w.InstallCoordinator(swarm.NewCoordinator(coordOpts)); err != nil {
		return nil, err
	}

	for _, m := range level.PatrolPoints {
		if _, ok := w.AddPatrolPoint(m.Name, m.Position); !ok {
			logger.Warn("duplicate patrol point skipped", "point", m.Name)
		}
	}
	if len(level.Spawns) == 0 {
		logger.Warn("level has no spawn anchors", "level", level.Name)
	}
	w.coord.Spawn(level.Spawns, w.newAgent)

	w.sched = ecs.NewScheduler(
		NewCoordinatorSystem(w.coord),
		NewPlayerSystem(w),
		NewAgentSystem(),
		NewNavSystem(),
		NewWeaponSystem(phys),
		NewCleanupSystem(w),
	)

	logger.Info("simulation ready",
		"level", level.Name,
		"agents", len(w.coord.Agents()),
		"points", len(w.points),
		"seed", seed,
		"tick_rate", rate,
	)
	return w, nil
}

// InstallCoordinator binds the single coordinator of this world. Installing a
// different one later is rejected.
func (w *World) InstallCoordinator(c *swarm.Coordinator) error {
	if c == nil {
		return errors.New("sim: nil coordinator")
	}
	if w.coord != nil {
		if w.coord == c {
			return nil
		}
		w.logger.Warn("second coordinator rejected")
		return ErrDuplicateCoordinator
	}
	w.coord = c
	return nil
}

func (w *World) spawnPlayer(ps playerSettings) {
	e := ecs.CreateEntity(w.ecs)
	mover := nav.NewMover(w.surface, w.level.PlayerStart, ps.speed, playerStoppingDistance)
	p := &Player{
		entity: e,
		mover:  mover,
		gun: &Gun{
			Damage:   ps.damage,
			Range:    ps.rangeLimit,
			Interval: ps.fireInterval,
			Mask:     physics.LayerObstacle,
		},
		route:  w.level.PlayerRoute,
		logger: w.logger,
		alive:  true,
		onDeath: func() {
			w.ecs.Events().Push(ecs.Event{Type: EventPlayerDied, Entity: e})
		},
	}
	if ps.script != "" {
		rt, err := loadScript(ps.script)
		if err != nil {
			w.logger.Error("player script unavailable", "script", ps.script, "err", err)
		} else {
			p.script = rt
		}
	}

	_ = ecs.Add(w.ecs, e, BodyComponent, &Body{Mover: mover})
	_ = ecs.Add(w.ecs, e, HealthComponent, NewHealth(ps.health, p))
	_ = ecs.Add(w.ecs, e, GunComponent, p.gun)
	_ = ecs.Add(w.ecs, e, PlayerComponent, p)
	_ = ecs.Add(w.ecs, e, AppearanceComponent, &Appearance{Color: ps.color, Label: "player"})
	w.player = p
}

// newAgent is the coordinator's spawn factory.
func (w *World) newAgent(c *swarm.Coordinator, cfg swarm.Config, anchor, pos mgl64.Vec3) (*swarm.Agent, error) {
	lo, ok := w.loadouts[cfg.Role]
	if !ok {
		lo = defaultLoadout(cfg.Role)
	}
	e := ecs.CreateEntity(w.ecs)
	mover := nav.NewMover(w.surface, pos, cfg.Movement.Speed, cfg.Movement.StoppingDistance)
	gun := &Gun{
		Damage:   lo.Damage,
		Range:    cfg.Detection.Radius,
		Interval: lo.FireInterval,
		Mask:     cfg.Detection.ObstacleMask,
	}
	if w.player != nil {
		gun.Target = w.player.entity
	}
	facing := mgl64.QuatIdent()
	if dir, ok := common.Direction(anchor, pos); ok {
		facing = common.YawQuat(dir)
	}

	a, err := swarm.NewAgent(c, swarm.AgentOptions{
		Config:    cfg,
		Spawn:     anchor,
		Facing:    facing,
		Navigator: mover,
		Weapon:    gun,
		FSM:       w.fsm,
		Logger:    w.logger,
		OnDeath: func(dead *swarm.Agent) {
			w.ecs.Events().Push(ecs.Event{Type: EventAgentDied, Entity: e, Data: dead.ID()})
		},
	})
	if err != nil {
		ecs.DestroyEntity(w.ecs, e)
		return nil, err
	}

	_ = ecs.Add(w.ecs, e, BodyComponent, &Body{Mover: mover})
	_ = ecs.Add(w.ecs, e, AgentComponent, a)
	_ = ecs.Add(w.ecs, e, HealthComponent, NewHealth(lo.Health, a))
	_ = ecs.Add(w.ecs, e, GunComponent, gun)
	_ = ecs.Add(w.ecs, e, AppearanceComponent, &Appearance{Color: lo.Color, Label: cfg.Role.String()})
	w.agents[a.ID()] = e
	return a, nil
}

// Step advances the simulation by one fixed tick.
func (w *World) Step() {
	w.sched.Update(w.ecs, w.dt)
	w.tick++
}

func (w *World) Run(ticks int) {
	for i := 0; i < ticks; i++ {
		w.Step()
	}
}

func (w *World) Coordinator() *swarm.Coordinator { return w.coord }
func (w *World) Player() *Player                 { return w.player }
func (w *World) Surface() *nav.Surface           { return w.surface }
func (w *World) Physics() *physics.World         { return w.physics }
func (w *World) Level() *levels.Level            { return w.level }
func (w *World) ECS() *ecs.World                 { return w.ecs }
func (w *World) DT() float64                     { return w.dt }
func (w *World) Tick() int                       { return w.tick }
func (w *World) Seed() int64                     { return w.seed }

// Agent looks up a live agent by id.
func (w *World) Agent(id uuid.UUID) (*swarm.Agent, bool) {
	e, ok := w.agents[id]
	if !ok {
		return nil, false
	}
	return ecs.Get(w.ecs, e, AgentComponent)
}

// DamageAgent applies damage through the agent's health. It reports whether
// the agent exists.
func (w *World) DamageAgent(id uuid.UUID, amount float64) bool {
	h, ok := w.agentHealth(id)
	if !ok {
		return false
	}
	h.ChangeHealth(-amount)
	return true
}

func (w *World) KillAgent(id uuid.UUID) bool {
	h, ok := w.agentHealth(id)
	if !ok {
		return false
	}
	h.Die()
	return true
}

func (w *World) agentHealth(id uuid.UUID) (*Health, bool) {
	e, ok := w.agents[id]
	if !ok {
		return nil, false
	}
	return ecs.Get(w.ecs, e, HealthComponent)
}

// AddPatrolPoint registers a new named point at runtime.
func (w *World) AddPatrolPoint(name string, pos mgl64.Vec3) (*swarm.PatrolPoint, bool) {
	if _, exists := w.points[name]; exists {
		return nil, false
	}
	p := swarm.NewPatrolPoint(name, pos)
	if !w.coord.AddPatrolPoint(p) {
		return nil, false
	}
	e := ecs.CreateEntity(w.ecs)
	_ = ecs.Add(w.ecs, e, PatrolComponent, &PatrolMarker{Point: p})
	w.points[name] = e
	return p, true
}

// RemovePatrolPoint deregisters a point and drops its reservation.
func (w *World) RemovePatrolPoint(name string) bool {
	e, ok := w.points[name]
	if !ok {
		return false
	}
	if m, ok := ecs.Get(w.ecs, e, PatrolComponent); ok {
		w.coord.RemovePatrolPoint(m.Point)
	}
	ecs.DestroyEntity(w.ecs, e)
	delete(w.points, name)
	return true
}

// ReloadConfig re-resolves role tuning and loadouts and applies them to the
// live agents.
func (w *World) ReloadConfig(spec *prefabs.SwarmSpec) error {
	configs, loadouts, err := RoleConfigs(spec)
	if err != nil {
		return fmt.Errorf("sim: reload: %w", err)
	}
	w.coord.ApplyRoleConfigs(configs)
	w.loadouts = loadouts

	ecs.ForEach3(w.ecs, AgentComponent, GunComponent, HealthComponent, func(e ecs.Entity, a *swarm.Agent, gun *Gun, h *Health) {
		lo := loadouts[a.Role()]
		gun.Damage = lo.Damage
		gun.Interval = lo.FireInterval
		gun.Range = a.Config().Detection.Radius
		gun.Mask = a.Config().Detection.ObstacleMask
		h.Max = lo.Health
		h.Current = math.Min(h.Current, h.Max)
		if app, ok := ecs.Get(w.ecs, e, AppearanceComponent); ok {
			app.Color = lo.Color
		}
	})
	return nil
}

// agentAt returns the live agent nearest to p within radius on the ground
// plane.
func (w *World) agentAt(p mgl64.Vec3, radius float64) (ecs.Entity, bool) {
	var (
		best  ecs.Entity
		found bool
	)
	bestDist := math.Inf(1)
	ecs.ForEach2(w.ecs, AgentComponent, BodyComponent, func(e ecs.Entity, a *swarm.Agent, b *Body) {
		if !a.Updatable() {
			return
		}
		d := common.Distance(common.Flatten(p), common.Flatten(b.Mover.Position()))
		if d <= radius && d < bestDist {
			best, bestDist, found = e, d, true
		}
	})
	return best, found
}

// visibleAgentNear returns the nearest live agent within rangeLimit that is
// not hidden behind geometry in mask.
func (w *World) visibleAgentNear(from mgl64.Vec3, rangeLimit float64, mask uint) (ecs.Entity, mgl64.Vec3, bool) {
	var (
		best    ecs.Entity
		bestPos mgl64.Vec3
		found   bool
	)
	bestDist := math.Inf(1)
	ecs.ForEach2(w.ecs, AgentComponent, BodyComponent, func(e ecs.Entity, a *swarm.Agent, b *Body) {
		if !a.Updatable() {
			return
		}
		pos := b.Mover.Position()
		d := common.Distance(from, pos)
		if d > rangeLimit || d >= bestDist {
			return
		}
		if w.physics.Blocked(from, pos, mask) {
			return
		}
		best, bestPos, bestDist, found = e, pos, d, true
	})
	return best, bestPos, found
}
