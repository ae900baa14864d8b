package sim

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/image/colornames"

	"github.com/milk9111/swarm/prefabs"
	"github.com/milk9111/swarm/swarm"
)

const (
	defaultTickRate     = 60
	defaultAgentHealth  = 100
	defaultAgentDamage  = 5
	defaultFireInterval = 0.5

	defaultPlayerSpeed  = 4
	defaultPlayerHealth = 200
	defaultPlayerDamage = 8
	defaultPlayerRange  = 10
)

// RoleLoadout is the per-role equipment that lives outside the swarm tuning.
type RoleLoadout struct {
	Health       float64
	Damage       float64
	FireInterval float64
	Color        color.Color
}

func defaultLoadout(r swarm.Role) RoleLoadout {
	l := RoleLoadout{
		Health:       defaultAgentHealth,
		Damage:       defaultAgentDamage,
		FireInterval: defaultFireInterval,
	}
	switch r {
	case swarm.Scout:
		l.Color = colornames.Deepskyblue
	case swarm.Defender:
		l.Color = colornames.Tomato
	default:
		l.Color = colornames.Limegreen
	}
	return l
}

// RoleConfigs resolves the configured roles on top of the built-in defaults.
// Roles the config does not list keep their defaults.
func RoleConfigs(spec *prefabs.SwarmSpec) ([]swarm.Config, map[swarm.Role]RoleLoadout, error) {
	configs := map[swarm.Role]swarm.Config{}
	loadouts := map[swarm.Role]RoleLoadout{}
	for _, r := range swarm.Roles() {
		configs[r] = swarm.DefaultConfig(r)
		loadouts[r] = defaultLoadout(r)
	}
	if spec != nil {
		for _, rs := range spec.Roles {
			role, err := swarm.ParseRole(rs.Role)
			if err != nil {
				return nil, nil, err
			}
			cfg, lo := applyRoleSpec(configs[role], loadouts[role], rs)
			configs[role] = cfg
			loadouts[role] = lo
		}
	}

	out := make([]swarm.Config, 0, len(configs))
	for _, r := range swarm.Roles() {
		out = append(out, configs[r])
	}
	return out, loadouts, nil
}

func override[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func applyRoleSpec(cfg swarm.Config, lo RoleLoadout, rs prefabs.RoleSpec) (swarm.Config, RoleLoadout) {
	override(&cfg.Movement.Speed, rs.Speed)
	override(&cfg.Movement.StoppingDistance, rs.StoppingDistance)
	override(&cfg.Movement.RotationSpeed, rs.RotationSpeed)

	override(&cfg.Patrol.Radius, rs.PatrolRadius)
	override(&cfg.Patrol.RandomnessFactor, rs.RandomnessFactor)
	override(&cfg.Patrol.WaitTime, rs.WaitTimeAtPoint)
	override(&cfg.Patrol.AvoidRecentlyVisited, rs.AvoidRecentlyVisited)
	override(&cfg.Patrol.RecencyWeight, rs.VisitRecencyWeight)
	override(&cfg.Patrol.ThreatResponseWeight, rs.ThreatResponseWeight)
	override(&cfg.Patrol.ThreatCloseRange, rs.ThreatCloseRange)

	override(&cfg.Detection.Radius, rs.DetectionRadius)
	override(&cfg.Detection.FieldOfView, rs.FieldOfView)
	override(&cfg.Detection.ObstacleMask, rs.ObstacleMask)

	override(&cfg.Combat.ShootingRange, rs.ShootingRange)
	override(&cfg.Combat.ShootingThreshold, rs.ShootingThreshold)
	override(&cfg.Combat.DistanceWeight, rs.DistanceWeight)
	override(&cfg.Combat.AngleWeight, rs.AngleWeight)
	override(&cfg.Combat.ShootDuration, rs.ShootDuration)
	if rs.DistanceCurve != nil {
		cfg.Combat.DistanceCurve = toCurve(*rs.DistanceCurve)
	}
	if rs.AngleCurve != nil {
		cfg.Combat.AngleCurve = toCurve(*rs.AngleCurve)
	}

	override(&cfg.Fear.Max, rs.MaxFear)
	override(&cfg.Fear.ReductionRate, rs.FearReductionRate)
	override(&cfg.Fear.DamageWeight, rs.FearDamageWeight)
	override(&cfg.Fear.DistanceWeight, rs.FearDistanceWeight)

	override(&lo.Health, rs.Health)
	override(&lo.Damage, rs.Damage)
	override(&lo.FireInterval, rs.FireInterval)
	if rs.DebugColor != nil && rs.DebugColor.Color != nil {
		lo.Color = rs.DebugColor.Color
	}
	return cfg, lo
}

func toCurve(spec prefabs.CurveSpec) swarm.Curve {
	keys := make([]swarm.Keyframe, 0, len(spec))
	for _, k := range spec {
		keys = append(keys, swarm.Keyframe{Time: k[0], Value: k[1]})
	}
	return swarm.NewCurve(keys...)
}

// SpawnConfig fills unset spawn settings from the defaults.
func SpawnConfig(spec *prefabs.SwarmSpec) (swarm.SpawnConfig, error) {
	cfg := swarm.DefaultSpawnConfig()
	if spec == nil {
		return cfg, nil
	}
	s := spec.Spawn
	if s.AgentsPerSpawnPoint > 0 {
		cfg.AgentsPerSpawnPoint = s.AgentsPerSpawnPoint
	}
	if s.Radius > 0 {
		cfg.Radius = s.Radius
	}
	if s.GridSpacing > 0 {
		cfg.GridSpacing = s.GridSpacing
	}
	if len(s.LineDirection) == 3 {
		cfg.LineDirection = mgl64.Vec3{s.LineDirection[0], s.LineDirection[1], s.LineDirection[2]}
	}
	f, err := swarm.ParseFormation(s.Formation)
	if err != nil {
		return cfg, err
	}
	cfg.Formation = f
	return cfg, nil
}

// AgentFSM compiles the configured machine. An inline fsm block wins over
// fsm_file; with neither the built-in machine is used.
func AgentFSM(spec *prefabs.SwarmSpec) (*swarm.FSMDef, error) {
	switch {
	case spec == nil:
		return swarm.DefaultAgentFSM(), nil
	case spec.FSM != nil:
		return swarm.CompileFSMSpec(*spec.FSM)
	case strings.TrimSpace(spec.FSMFile) != "":
		return swarm.LoadFSM(spec.FSMFile)
	}
	return swarm.DefaultAgentFSM(), nil
}

type playerSettings struct {
	script       string
	speed        float64
	health       float64
	damage       float64
	rangeLimit   float64
	fireInterval float64
	color        color.Color
}

func resolvePlayer(spec *prefabs.SwarmSpec) playerSettings {
	ps := playerSettings{
		speed:        defaultPlayerSpeed,
		health:       defaultPlayerHealth,
		damage:       defaultPlayerDamage,
		rangeLimit:   defaultPlayerRange,
		fireInterval: defaultFireInterval,
		color:        colornames.Gold,
	}
	if spec == nil {
		return ps
	}
	p := spec.Player
	ps.script = p.Script
	if p.Speed > 0 {
		ps.speed = p.Speed
	}
	if p.Health > 0 {
		ps.health = p.Health
	}
	if p.Damage > 0 {
		ps.damage = p.Damage
	}
	if p.Range > 0 {
		ps.rangeLimit = p.Range
	}
	if p.FireInterval > 0 {
		ps.fireInterval = p.FireInterval
	}
	if p.DebugColor != nil && p.DebugColor.Color != nil {
		ps.color = p.DebugColor.Color
	}
	return ps
}

func tickRate(spec *prefabs.SwarmSpec) (int, error) {
	if spec == nil || spec.TickRate == 0 {
		return defaultTickRate, nil
	}
	if spec.TickRate < 0 {
		return 0, fmt.Errorf("sim: invalid tick rate %d", spec.TickRate)
	}
	return spec.TickRate, nil
}
