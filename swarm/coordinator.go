package swarm

import (
	"math"
	"math/rand"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/milk9111/swarm/common"
)

const (
	threatAlignmentWeight = 0.7
	threatProximityWeight = 0.3
	coverProximityWeight  = 0.7
	coverAlignmentWeight  = 0.3
)

// Sampler projects a point onto the walkable surface.
type Sampler interface {
	Sample(p mgl64.Vec3, maxDistance float64) (mgl64.Vec3, bool)
}

// AgentFactory builds one agent for Spawn. position is the projected spawn
// position, anchor the spawn point it belongs to.
type AgentFactory func(c *Coordinator, cfg Config, anchor, position mgl64.Vec3) (*Agent, error)

type Options struct {
	Logger  *log.Logger
	Rand    *rand.Rand
	Roles   []Config
	Spawn   SpawnConfig
	Player  PlayerLocator
	Sight   LineOfSight
	Sampler Sampler
}

type strategy func(c *Coordinator, a *Agent, cfg Config) *PatrolPoint

// Coordinator owns the patrol registry and assignment table, tracks the active
// agents and derives the swarm-wide threat every update.
type Coordinator struct {
	logger      *log.Logger
	rng         *rand.Rand
	registry    *Registry
	assignments *AssignmentTable
	agents      []*Agent
	configs     map[Role]Config
	spawn       SpawnConfig
	player      PlayerLocator
	sight       LineOfSight
	sampler     Sampler
	strategies  map[Role]strategy

	clock        float64
	threatActive bool
	threatPos    mgl64.Vec3
	hasThreatPos bool
}

func NewCoordinator(opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	roles := opts.Roles
	if len(roles) == 0 {
		roles = DefaultConfigs()
	}
	spawn := opts.Spawn
	if spawn.AgentsPerSpawnPoint == 0 && spawn.Radius == 0 {
		spawn = DefaultSpawnConfig()
	}

	c := &Coordinator{
		logger:      logger,
		rng:         rng,
		registry:    NewRegistry(),
		assignments: NewAssignmentTable(),
		configs:     make(map[Role]Config, len(roles)),
		spawn:       spawn,
		player:      opts.Player,
		sight:       opts.Sight,
		sampler:     opts.Sampler,
		strategies: map[Role]strategy{
			Worker:   (*Coordinator).workerDestination,
			Scout:    (*Coordinator).scoutDestination,
			Defender: (*Coordinator).defenderDestination,
		},
	}
	for _, cfg := range roles {
		c.configs[cfg.Role] = cfg
	}
	return c
}

func (c *Coordinator) Logger() *log.Logger {
	return c.logger
}

func (c *Coordinator) Rand() *rand.Rand {
	return c.rng
}

// Now is the elapsed simulation time in seconds.
func (c *Coordinator) Now() float64 {
	return c.clock
}

func (c *Coordinator) SetPlayer(p PlayerLocator) {
	c.player = p
}

func (c *Coordinator) Player() PlayerLocator {
	return c.player
}

// Update advances the clock and recomputes the threat from the agents' states
// as they stood at the end of the previous tick.
func (c *Coordinator) Update(dt float64) {
	c.clock += dt
	c.aggregateThreat()
}

func (c *Coordinator) aggregateThreat() {
	c.threatActive = false
	for _, a := range c.agents {
		if a.state != Chasing && a.state != Shooting {
			continue
		}
		c.threatActive = true
		if c.player != nil {
			if p, ok := c.player.PlayerPosition(); ok {
				c.threatPos = p
				c.hasThreatPos = true
				return
			}
		}
		c.threatPos = a.Position()
		c.hasThreatPos = true
		return
	}
}

// ThreatActive returns the current threat position when any agent is engaged.
func (c *Coordinator) ThreatActive() (mgl64.Vec3, bool) {
	return c.threatPos, c.threatActive
}

// LastThreatPosition survives the threat going inactive.
func (c *Coordinator) LastThreatPosition() (mgl64.Vec3, bool) {
	return c.threatPos, c.hasThreatPos
}

func (c *Coordinator) RegisterAgent(a *Agent) {
	if a == nil {
		return
	}
	for _, existing := range c.agents {
		if existing == a {
			return
		}
	}
	c.agents = append(c.agents, a)
}

// UnregisterAgent drops a from the active list and releases its assignments.
func (c *Coordinator) UnregisterAgent(a *Agent) {
	for i, existing := range c.agents {
		if existing == a {
			c.agents = append(c.agents[:i], c.agents[i+1:]...)
			break
		}
	}
	c.assignments.ReleaseAgent(a)
}

func (c *Coordinator) Agents() []*Agent {
	return append([]*Agent(nil), c.agents...)
}

func (c *Coordinator) Registry() *Registry {
	return c.registry
}

func (c *Coordinator) PatrolPoints() []*PatrolPoint {
	return c.registry.Points()
}

func (c *Coordinator) AddPatrolPoint(p *PatrolPoint) bool {
	return c.registry.Add(p)
}

// RemovePatrolPoint deregisters p and drops any assignment to it.
func (c *Coordinator) RemovePatrolPoint(p *PatrolPoint) bool {
	if !c.registry.Remove(p) {
		return false
	}
	c.assignments.Release(p)
	return true
}

// AssignPoint reserves p for a. An agent holds at most one point so its
// previous reservation is released first.
func (c *Coordinator) AssignPoint(p *PatrolPoint, a *Agent) {
	if p == nil || a == nil {
		return
	}
	c.assignments.ReleaseAgent(a)
	if prev := c.assignments.Assign(p, a); prev != nil {
		c.logger.Debug("point reassigned", "point", p.Name, "from", prev.id, "to", a.id)
	}
}

func (c *Coordinator) ReleasePoint(p *PatrolPoint) {
	c.assignments.Release(p)
}

// AssignedTo returns the agent holding p, or nil.
func (c *Coordinator) AssignedTo(p *PatrolPoint) *Agent {
	a, _ := c.assignments.Holder(p)
	return a
}

func (c *Coordinator) Assignments() map[*PatrolPoint]*Agent {
	return c.assignments.Snapshot()
}

func (c *Coordinator) RandomPatrolPoint() (*PatrolPoint, bool) {
	n := c.registry.Len()
	if n == 0 {
		return nil, false
	}
	return c.registry.At(c.rng.Intn(n)), true
}

func (c *Coordinator) ConfigForRole(r Role) (Config, bool) {
	cfg, ok := c.configs[r]
	return cfg, ok
}

// ApplyRoleConfigs replaces the tuning of the given roles and pushes it to the
// live agents holding those roles.
func (c *Coordinator) ApplyRoleConfigs(cfgs []Config) {
	changed := make(map[Role]Config, len(cfgs))
	for _, cfg := range cfgs {
		c.configs[cfg.Role] = cfg
		changed[cfg.Role] = cfg
	}
	for _, a := range c.agents {
		if cfg, ok := changed[a.role]; ok {
			a.applyConfig(cfg)
		}
	}
	c.logger.Info("role configs applied", "roles", len(changed), "agents", len(c.agents))
}

// GetDestinationForAgent picks where a should patrol next. It returns false
// when no patrol points exist.
func (c *Coordinator) GetDestinationForAgent(a *Agent) (Destination, bool) {
	if c.registry.Len() == 0 {
		return Destination{}, false
	}
	cfg := a.cfg
	pos := a.Position()

	if c.threatActive && a.state == Patrolling {
		near := common.Distance(pos, c.threatPos) <= cfg.Patrol.ThreatCloseRange
		if near || c.rng.Float64() < cfg.Patrol.ThreatResponseWeight {
			return c.threatDestination(a, cfg), true
		}
	}

	var point *PatrolPoint
	if c.rng.Float64() < cfg.Patrol.RandomnessFactor {
		point, _ = c.RandomPatrolPoint()
	} else if pick, ok := c.strategies[a.role]; ok {
		point = pick(c, a, cfg)
	}
	if point == nil {
		point, _ = c.RandomPatrolPoint()
	}

	if cfg.Patrol.AvoidRecentlyVisited {
		c.AssignPoint(point, a)
	}
	return Destination{Point: point, Position: point.Position()}, true
}

func (c *Coordinator) threatDestination(a *Agent, cfg Config) Destination {
	if common.Distance(a.spawn, c.threatPos) <= cfg.Patrol.Radius {
		return Destination{Position: c.threatPos, Synthetic: true}
	}

	pos := a.Position()
	toThreat, hasDir := common.Direction(pos, c.threatPos)
	var best *PatrolPoint
	bestScore := math.Inf(-1)
	for _, p := range c.registry.points {
		alignment := 0.0
		if toPoint, ok := common.Direction(pos, p.position); ok && hasDir {
			alignment = toThreat.Dot(toPoint)
		}
		proximity := 1 / (1 + common.Distance(p.position, c.threatPos))
		score := threatAlignmentWeight*alignment + threatProximityWeight*proximity
		if score > bestScore {
			bestScore = score
			best = p
		}
	}
	return Destination{Point: best, Position: best.position}
}

func (c *Coordinator) workerDestination(a *Agent, cfg Config) *PatrolPoint {
	pos := a.Position()
	w := cfg.Patrol.RecencyWeight

	var best *PatrolPoint
	bestScore := math.Inf(-1)
	bestProximity := math.Inf(-1)
	for _, p := range c.registry.points {
		if cfg.Patrol.AvoidRecentlyVisited {
			if holder, ok := c.assignments.Holder(p); ok && holder != a {
				continue
			}
		}
		if common.Distance(p.position, a.spawn) > cfg.Patrol.Radius {
			continue
		}
		proximity := 1 / (1 + common.Distance(pos, p.position))
		recency := 0.0
		if w != 0 {
			recency = (c.clock - p.lastVisit) * w
		}
		score := recency + proximity*(1-w)
		if score > bestScore || (score == bestScore && proximity > bestProximity) {
			best = p
			bestScore = score
			bestProximity = proximity
		}
	}
	return best
}

func (c *Coordinator) scoutDestination(a *Agent, cfg Config) *PatrolPoint {
	valid := c.registry.Within(a.spawn, cfg.Patrol.Radius)
	if len(valid) == 0 {
		return nil
	}
	pos := a.Position()
	var farthest *PatrolPoint
	maxDist := 0.0
	for _, p := range valid {
		if d := common.Distance(pos, p.position); d > maxDist {
			maxDist = d
			farthest = p
		}
	}
	if farthest == nil {
		farthest = valid[c.rng.Intn(len(valid))]
	}
	return farthest
}

func (c *Coordinator) defenderDestination(a *Agent, cfg Config) *PatrolPoint {
	valid := c.registry.Within(a.spawn, cfg.Patrol.Radius)
	if len(valid) == 0 {
		return nil
	}
	var current *PatrolPoint
	if len(valid) > 1 {
		current = a.destination.Point
	}
	pos := a.Position()
	var nearest *PatrolPoint
	minDist := math.Inf(1)
	for _, p := range valid {
		if p == current {
			continue
		}
		if d := common.Distance(pos, p.position); d < minDist {
			minDist = d
			nearest = p
		}
	}
	return nearest
}

// HidingSpot picks the patrol point offering the best cover from the threat.
func (c *Coordinator) HidingSpot(a *Agent) (Destination, bool) {
	if c.registry.Len() == 0 {
		return Destination{}, false
	}

	threat, ok := c.ThreatActive()
	if !ok {
		threat, ok = a.LastKnownPlayer()
	}
	if !ok {
		p, _ := c.RandomPatrolPoint()
		return Destination{Point: p, Position: p.position}, true
	}

	pos := a.Position()
	away, hasAway := common.Direction(threat, pos)
	mask := a.cfg.Detection.ObstacleMask

	var best *PatrolPoint
	bestScore := math.Inf(-1)
	for _, p := range c.registry.points {
		if c.sight == nil || !c.sight.Blocked(p.position, threat, mask) {
			continue
		}
		proximity := 1 / (1 + common.Distance(pos, p.position))
		alignment := 0.0
		if toPoint, ok := common.Direction(pos, p.position); ok && hasAway {
			alignment = away.Dot(toPoint)
		}
		score := coverProximityWeight*proximity + coverAlignmentWeight*alignment
		if score > bestScore {
			bestScore = score
			best = p
		}
	}
	if best == nil {
		best, _ = c.RandomPatrolPoint()
	}
	return Destination{Point: best, Position: best.position}, true
}

// Spawn lays out agents around every anchor using the configured formation and
// registers them. Roles cycle per anchor. Agents whose role has no config or
// whose factory fails are logged and skipped.
func (c *Coordinator) Spawn(anchors []mgl64.Vec3, factory AgentFactory) []*Agent {
	if factory == nil {
		c.logger.Error("spawn skipped: no agent factory")
		return nil
	}
	c.validateAnchors(anchors)

	var out []*Agent
	n := c.spawn.AgentsPerSpawnPoint
	for _, anchor := range anchors {
		for i := 0; i < n; i++ {
			role := Role(i % roleCount)
			cfg, ok := c.ConfigForRole(role)
			if !ok {
				c.logger.Error("spawn skipped: no config for role", "role", role, "anchor", anchor)
				continue
			}
			pos := anchor.Add(formationOffset(c.spawn, i, n, c.rng))
			if c.sampler != nil {
				if projected, ok := c.sampler.Sample(pos, c.spawn.Radius*2); ok {
					pos = projected
				}
			}
			a, err := factory(c, cfg, anchor, pos)
			if err != nil {
				c.logger.Error("spawn skipped", "role", role, "anchor", anchor, "err", err)
				continue
			}
			c.RegisterAgent(a)
			out = append(out, a)
		}
	}
	return out
}

func (c *Coordinator) validateAnchors(anchors []mgl64.Vec3) {
	for _, anchor := range anchors {
		for _, p := range c.registry.points {
			if common.Distance(anchor, p.position) <= pointTolerance {
				c.logger.Warn("spawn anchor is also a patrol point", "anchor", anchor, "point", p.Name)
			}
		}
	}
}
