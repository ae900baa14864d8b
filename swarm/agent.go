package swarm

import (
	"errors"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/milk9111/swarm/common"
)

const (
	lostPlayerFactor  = 1.5
	repathThreshold   = 0.5
	minFacingVelocity = 0.1
)

var ErrNoNavigator = errors.New("swarm: agent requires a navigator")

// Navigator moves an agent over the walkable surface.
type Navigator interface {
	SetDestination(p mgl64.Vec3) bool
	ResetPath()
	PathPending() bool
	RemainingDistance() float64
	Velocity() mgl64.Vec3
	Position() mgl64.Vec3
	SetStopped(stopped bool)
	IsStopped() bool
}

// tunable navigators pick up speed changes on config reload.
type tunable interface {
	SetSpeed(speed float64)
	SetStoppingDistance(d float64)
}

type Weapon interface {
	Fire()
}

type PlayerLocator interface {
	PlayerPosition() (mgl64.Vec3, bool)
}

// LineOfSight reports whether an obstacle in mask lies between two points.
type LineOfSight interface {
	Blocked(from, to mgl64.Vec3, mask uint) bool
}

// Destination is where an agent is heading. Point is nil for one-off
// destinations such as a threat position.
type Destination struct {
	Point     *PatrolPoint
	Position  mgl64.Vec3
	Synthetic bool
}

type AgentOptions struct {
	Config    Config
	Spawn     mgl64.Vec3
	Facing    mgl64.Quat
	Navigator Navigator
	Weapon    Weapon
	Player    PlayerLocator
	Sight     LineOfSight
	FSM       *FSMDef
	Logger    *log.Logger
	OnDeath   func(a *Agent)
}

type Agent struct {
	id     uuid.UUID
	role   Role
	cfg    Config
	spawn  mgl64.Vec3
	coord  *Coordinator
	logger *log.Logger

	nav    Navigator
	weapon Weapon
	player PlayerLocator
	sight  LineOfSight
	fsm    *FSMDef

	state     StateID
	started   bool
	updatable bool
	fear      float64
	facing    mgl64.Quat
	los       bool
	// target is the player reference held since the last sighting. Chasing
	// follows its live position until it disappears or runs out of range.
	target      PlayerLocator
	chaseTarget mgl64.Vec3
	timer       float64
	waiting     bool
	waitTimer   float64
	destination Destination
	hasDest     bool
	events      []EventID
	onDeath     func(a *Agent)
}

// NewAgent builds an agent bound to coord. The coordinator may be nil, in which
// case the agent never receives destinations.
func NewAgent(coord *Coordinator, opts AgentOptions) (*Agent, error) {
	if opts.Navigator == nil {
		return nil, ErrNoNavigator
	}
	fsm := opts.FSM
	if fsm == nil {
		fsm = DefaultAgentFSM()
	}
	logger := opts.Logger
	if logger == nil && coord != nil {
		logger = coord.logger
	}
	if logger == nil {
		logger = log.Default()
	}
	facing := opts.Facing
	if facing.Len() == 0 {
		facing = mgl64.QuatIdent()
	}
	sight := opts.Sight
	if sight == nil && coord != nil {
		sight = coord.sight
	}
	player := opts.Player
	if player == nil && coord != nil {
		player = coord.player
	}

	a := &Agent{
		id:        uuid.New(),
		role:      opts.Config.Role,
		spawn:     opts.Spawn,
		coord:     coord,
		logger:    logger,
		nav:       opts.Navigator,
		weapon:    opts.Weapon,
		player:    player,
		sight:     sight,
		fsm:       fsm,
		state:     fsm.Initial,
		updatable: true,
		facing:    facing,
		onDeath:   opts.OnDeath,
	}
	a.applyConfig(opts.Config)
	return a, nil
}

func (a *Agent) applyConfig(cfg Config) {
	a.cfg = cfg
	a.role = cfg.Role
	a.fear = clampFear(a.fear, cfg.Fear)
	if t, ok := a.nav.(tunable); ok {
		t.SetSpeed(cfg.Movement.Speed)
		t.SetStoppingDistance(cfg.Movement.StoppingDistance)
	}
}

func (a *Agent) ID() uuid.UUID        { return a.id }
func (a *Agent) Role() Role           { return a.role }
func (a *Agent) Config() Config       { return a.cfg }
func (a *Agent) State() StateID       { return a.state }
func (a *Agent) Fear() float64        { return a.fear }
func (a *Agent) Facing() mgl64.Quat   { return a.facing }
func (a *Agent) LineOfSight() bool    { return a.los }
func (a *Agent) Spawn() mgl64.Vec3    { return a.spawn }
func (a *Agent) Updatable() bool      { return a.updatable }
func (a *Agent) Waiting() bool        { return a.waiting }
func (a *Agent) Navigator() Navigator { return a.nav }
func (a *Agent) Position() mgl64.Vec3 { return a.nav.Position() }
func (a *Agent) Forward() mgl64.Vec3  { return common.ForwardOf(a.facing) }
func (a *Agent) Destination() (Destination, bool) {
	return a.destination, a.hasDest
}

// LastKnownPlayer resolves the held player reference, if any.
func (a *Agent) LastKnownPlayer() (mgl64.Vec3, bool) {
	if a.target == nil {
		return mgl64.Vec3{}, false
	}
	return a.target.PlayerPosition()
}

func (a *Agent) newContext(dt float64) *ActionContext {
	return &ActionContext{
		Agent: a,
		DT:    dt,
		Enqueue: func(ev EventID) {
			if ev != "" {
				a.events = append(a.events, ev)
			}
		},
	}
}

func (a *Agent) ensureStarted(ctx *ActionContext) {
	if a.started {
		return
	}
	a.started = true
	a.state = a.fsm.Initial
	applyActions(a.fsm.States[a.state].OnEnter, ctx)
}

// Tick runs one fixed step: detection, rotation, fear, then the current
// state's behaviour and any transitions it produced.
func (a *Agent) Tick(dt float64) {
	if !a.updatable || a.state == Dead {
		return
	}
	ctx := a.newContext(dt)
	a.ensureStarted(ctx)

	a.detect()
	a.rotate(dt)
	a.updateFear(dt)

	// A forced flight is this tick's only transition.
	if next, ok := checkFearThreshold(a.state, a.fear, a.cfg.Fear); ok {
		a.transition(next, ctx)
		a.events = nil
		return
	}
	if a.los && !(a.state == Hiding && a.fear >= a.cfg.Fear.Max) {
		ctx.Enqueue(EventSeesPlayer)
	}

	applyActions(a.fsm.States[a.state].While, ctx)

	for _, ch := range a.fsm.Checkers {
		if ch.From == a.state && ch.Check != nil && ch.Check(ctx) {
			ctx.Enqueue(ch.Event)
		}
	}

	a.processEvents(ctx)
}

// processEvents applies the first event with a transition out of the current
// state and drops the rest.
func (a *Agent) processEvents(ctx *ActionContext) {
	events := a.events
	a.events = nil
	transitions := a.fsm.Transitions[a.state]
	for _, ev := range events {
		next, ok := transitions[ev]
		if !ok || next == a.state {
			continue
		}
		a.transition(next, ctx)
		return
	}
}

func (a *Agent) transition(next StateID, ctx *ActionContext) {
	if next == Dead {
		a.Die()
		return
	}
	applyActions(a.fsm.States[a.state].OnExit, ctx)
	a.logger.Debug("agent transition", "agent", a.id, "from", a.state, "to", next)
	a.state = next
	a.waiting = false
	applyActions(a.fsm.States[a.state].OnEnter, ctx)
}

func (a *Agent) detect() {
	a.los = false
	if a.player == nil {
		return
	}
	target, ok := a.player.PlayerPosition()
	if !ok {
		return
	}
	pos := a.nav.Position()
	toPlayer := target.Sub(pos)
	if toPlayer.Len() > a.cfg.Detection.Radius {
		return
	}
	if a.sight != nil && a.sight.Blocked(pos, target, a.cfg.Detection.ObstacleMask) {
		return
	}
	if common.AngleBetween(a.Forward(), toPlayer) > a.cfg.Detection.FieldOfView/2 {
		return
	}
	a.los = true
	a.target = a.player
}

func (a *Agent) rotate(dt float64) {
	var desired mgl64.Vec3
	if p, ok := a.LastKnownPlayer(); ok && a.los {
		desired = p.Sub(a.nav.Position())
	} else {
		v := common.Flatten(a.nav.Velocity())
		if v.Len() < minFacingVelocity {
			return
		}
		desired = v
	}
	if common.Flatten(desired).Len() < 1e-6 {
		return
	}
	a.facing = common.Slerp(a.facing, common.YawQuat(desired), a.cfg.Movement.RotationSpeed*dt)
}

func (a *Agent) updateFear(dt float64) {
	a.fear = decayFear(a.fear, dt, a.cfg.Fear)
	switch a.state {
	case Chasing, Shooting, Hiding:
	default:
		return
	}
	if a.player == nil {
		return
	}
	p, ok := a.player.PlayerPosition()
	if !ok {
		return
	}
	dist := common.Distance(a.nav.Position(), p)
	a.fear = proximityFear(a.fear, dist, a.cfg.Detection.Radius, dt, a.cfg.Fear)
}

// ReceiveDamage raises fear by the damage weight and re-checks the threshold
// immediately.
func (a *Agent) ReceiveDamage(amount float64) {
	if a.state == Dead || !a.updatable || amount <= 0 {
		return
	}
	ctx := a.newContext(0)
	a.ensureStarted(ctx)
	a.fear = damageFear(a.fear, amount, a.cfg.Fear)
	if next, ok := checkFearThreshold(a.state, a.fear, a.cfg.Fear); ok {
		a.transition(next, ctx)
	}
}

// Die is idempotent. It halts the agent, stops further updates and removes it
// from the coordinator along with its point assignments.
func (a *Agent) Die() {
	if a.state == Dead {
		return
	}
	ctx := a.newContext(0)
	if a.started {
		applyActions(a.fsm.States[a.state].OnExit, ctx)
	}
	a.started = true
	a.state = Dead
	applyActions(a.fsm.States[Dead].OnEnter, ctx)
	a.halt()
	a.updatable = false
	a.los = false
	a.target = nil
	a.waiting = false
	a.events = nil
	a.destination = Destination{}
	a.hasDest = false
	if a.coord != nil {
		a.coord.UnregisterAgent(a)
	}
	a.logger.Info("agent died", "agent", a.id, "role", a.role)
	if a.onDeath != nil {
		a.onDeath(a)
	}
}

func (a *Agent) halt() {
	a.nav.SetStopped(true)
	a.nav.ResetPath()
}

func (a *Agent) arrived() bool {
	return !a.nav.PathPending() && a.nav.RemainingDistance() <= a.cfg.Movement.StoppingDistance
}

func (a *Agent) requestDestination() {
	a.waiting = false
	var (
		dest Destination
		ok   bool
	)
	if a.coord != nil {
		dest, ok = a.coord.GetDestinationForAgent(a)
	}
	if !ok {
		a.destination = Destination{}
		a.hasDest = false
		a.nav.ResetPath()
		return
	}
	a.destination = dest
	a.hasDest = true
	a.nav.SetStopped(false)
	if !a.nav.SetDestination(dest.Position) {
		a.logger.Debug("destination unreachable", "agent", a.id, "pos", dest.Position)
	}
}

func (a *Agent) patrol(dt float64) {
	if a.waiting {
		a.waitTimer -= dt
		if a.waitTimer <= 0 {
			a.requestDestination()
		}
		return
	}
	if !a.arrived() {
		return
	}
	if !a.hasDest {
		a.requestDestination()
		return
	}

	if p := a.destination.Point; p != nil && a.coord != nil {
		p.Visit(a.coord.Now())
		if a.cfg.Patrol.AvoidRecentlyVisited && a.coord.AssignedTo(p) == a {
			a.coord.ReleasePoint(p)
		}
	}
	a.hasDest = false
	if a.cfg.Patrol.WaitTime > 0 {
		a.waiting = true
		a.waitTimer = a.cfg.Patrol.WaitTime
		return
	}
	a.requestDestination()
}

func (a *Agent) retargetPlayer() {
	p, ok := a.LastKnownPlayer()
	if !ok {
		return
	}
	a.chaseTarget = p
	a.nav.SetDestination(p)
}

func (a *Agent) chase(ctx *ActionContext) {
	p, ok := a.LastKnownPlayer()
	if !ok {
		ctx.Enqueue(EventLostPlayer)
		return
	}
	pos := a.nav.Position()
	dist := common.Distance(pos, p)
	if dist > a.cfg.Detection.Radius*lostPlayerFactor {
		a.target = nil
		ctx.Enqueue(EventLostPlayer)
		return
	}
	if dist > a.cfg.Combat.ShootingRange {
		a.nav.SetStopped(false)
		if common.Distance(a.chaseTarget, p) > repathThreshold || (!a.nav.PathPending() && a.nav.RemainingDistance() == 0) {
			a.chaseTarget = p
			a.nav.SetDestination(p)
		}
		return
	}

	a.halt()
	angle := common.AngleBetween(a.Forward(), p.Sub(pos))
	if ShouldShoot(a.cfg.Combat, dist, angle) {
		ctx.Enqueue(EventOpenFire)
	}
}

func (a *Agent) shoot(ctx *ActionContext) {
	a.halt()
	if a.weapon != nil {
		a.weapon.Fire()
	}
	a.timer -= ctx.DT
	if a.timer > 0 {
		return
	}
	if a.fear >= a.cfg.Fear.Max {
		ctx.Enqueue(EventVolleyDoneAfraid)
		return
	}
	ctx.Enqueue(EventVolleyDone)
}

func (a *Agent) takeCover() {
	var (
		spot Destination
		ok   bool
	)
	if a.coord != nil {
		spot, ok = a.coord.HidingSpot(a)
	}
	if !ok {
		a.destination = Destination{}
		a.hasDest = false
		a.nav.ResetPath()
		return
	}
	a.destination = spot
	a.hasDest = true
	a.nav.SetStopped(false)
	a.nav.SetDestination(spot.Position)
}

func (a *Agent) hide(ctx *ActionContext) {
	if !a.arrived() {
		return
	}
	a.fear = 0
	ctx.Enqueue(EventReachedCover)
}
