package prefabs

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultSwarmSpec = "swarm.yaml"

func LoadSpec[T any](filename string) (T, error) {
	var zero T
	data, err := Load(filename)
	if err != nil {
		return zero, fmt.Errorf("prefabs: load %s: %w", filename, err)
	}

	var spec T
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return zero, fmt.Errorf("prefabs: unmarshal %s: %w", filename, err)
	}

	return spec, nil
}

// SwarmSpec is the top-level simulation configuration.
type SwarmSpec struct {
	Name     string     `yaml:"name"`
	Seed     int64      `yaml:"seed"`
	TickRate int        `yaml:"tick_rate"`
	Level    string     `yaml:"level"`
	Spawn    SpawnSpec  `yaml:",inline"`
	Player   PlayerSpec `yaml:"player"`
	Roles    []RoleSpec `yaml:"roles"`
	// FSMFile names an FSM prefab; FSM inlines one. FSM wins when both are set.
	FSMFile string   `yaml:"fsm_file"`
	FSM     *FSMSpec `yaml:"fsm"`
}

type SpawnSpec struct {
	AgentsPerSpawnPoint int       `yaml:"agents_per_spawn_point"`
	Radius              float64   `yaml:"spawn_radius"`
	Formation           string    `yaml:"formation"`
	GridSpacing         float64   `yaml:"grid_spacing"`
	LineDirection       []float64 `yaml:"line_direction"`
}

type PlayerSpec struct {
	Script       string     `yaml:"script"`
	Speed        float64    `yaml:"speed"`
	Health       float64    `yaml:"health"`
	Damage       float64    `yaml:"damage"`
	Range        float64    `yaml:"range"`
	FireInterval float64    `yaml:"fire_interval"`
	DebugColor   *YAMLColor `yaml:"debug_color"`
}

// RoleSpec overrides the built-in tuning of one role. Nil fields keep the
// role default.
type RoleSpec struct {
	Role       string     `yaml:"role"`
	DebugColor *YAMLColor `yaml:"debug_color"`
	Health     *float64   `yaml:"health"`

	Speed            *float64 `yaml:"speed"`
	StoppingDistance *float64 `yaml:"stopping_distance"`
	RotationSpeed    *float64 `yaml:"rotation_speed"`

	PatrolRadius         *float64 `yaml:"patrol_radius"`
	RandomnessFactor     *float64 `yaml:"randomness_factor"`
	WaitTimeAtPoint      *float64 `yaml:"wait_time_at_point"`
	AvoidRecentlyVisited *bool    `yaml:"avoid_recently_visited"`
	VisitRecencyWeight   *float64 `yaml:"visit_recency_weight"`
	ThreatResponseWeight *float64 `yaml:"threat_response_weight"`
	ThreatCloseRange     *float64 `yaml:"threat_close_range"`

	DetectionRadius *float64 `yaml:"detection_radius"`
	FieldOfView     *float64 `yaml:"field_of_view"`
	ObstacleMask    *uint    `yaml:"obstacle_mask"`

	ShootingRange     *float64   `yaml:"shooting_range"`
	ShootingThreshold *float64   `yaml:"shooting_threshold"`
	DistanceWeight    *float64   `yaml:"distance_weight"`
	AngleWeight       *float64   `yaml:"angle_weight"`
	DistanceCurve     *CurveSpec `yaml:"distance_curve"`
	AngleCurve        *CurveSpec `yaml:"angle_curve"`
	ShootDuration     *float64   `yaml:"shoot_duration"`
	FireInterval      *float64   `yaml:"fire_interval"`
	Damage            *float64   `yaml:"damage"`

	MaxFear            *float64 `yaml:"max_fear"`
	FearReductionRate  *float64 `yaml:"fear_reduction_rate"`
	FearDamageWeight   *float64 `yaml:"fear_damage_weight"`
	FearDistanceWeight *float64 `yaml:"fear_distance_weight"`
}

// CurveSpec is a keyframe list written as [time, value] pairs.
type CurveSpec [][2]float64

type FSMSpec struct {
	Initial     string                         `yaml:"initial"`
	States      map[string]FSMStateSpec        `yaml:"states"`
	Transitions map[string][]map[string]string `yaml:"transitions"`
}

type FSMStateSpec struct {
	OnEnter []map[string]any `yaml:"on_enter"`
	While   []map[string]any `yaml:"while"`
	OnExit  []map[string]any `yaml:"on_exit"`
}

func LoadSwarmSpec(filename string) (*SwarmSpec, error) {
	if filename == "" {
		filename = DefaultSwarmSpec
	}
	spec, err := LoadSpec[SwarmSpec](filename)
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("prefabs: %s: %w", filename, err)
	}
	return &spec, nil
}

// Validate rejects values that cannot be meaningful for any role. Role and
// formation names are resolved by the consumer.
func (s *SwarmSpec) Validate() error {
	if s.Spawn.AgentsPerSpawnPoint < 0 {
		return fmt.Errorf("agents_per_spawn_point must not be negative")
	}
	if s.Spawn.Radius < 0 {
		return fmt.Errorf("spawn_radius must not be negative")
	}
	if s.TickRate < 0 {
		return fmt.Errorf("tick_rate must not be negative")
	}
	if n := len(s.Spawn.LineDirection); n != 0 && n != 3 {
		return fmt.Errorf("line_direction needs 3 components, got %d", n)
	}
	seen := make(map[string]bool, len(s.Roles))
	for i, r := range s.Roles {
		name := strings.ToLower(strings.TrimSpace(r.Role))
		if name == "" {
			return fmt.Errorf("roles[%d]: missing role", i)
		}
		if seen[name] {
			return fmt.Errorf("roles[%d]: duplicate role %q", i, r.Role)
		}
		seen[name] = true
		for _, c := range []*CurveSpec{r.DistanceCurve, r.AngleCurve} {
			if c != nil && len(*c) == 0 {
				return fmt.Errorf("roles[%d]: empty curve", i)
			}
		}
	}
	return nil
}

type YAMLColor struct {
	color.Color
}

func (c *YAMLColor) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("color must be a string")
	}

	s := strings.TrimPrefix(value.Value, "#")

	if len(s) != 6 && len(s) != 8 {
		return fmt.Errorf("invalid color format: %s", value.Value)
	}

	parse := func(start int) (uint8, error) {
		v, err := strconv.ParseUint(s[start:start+2], 16, 8)
		return uint8(v), err
	}

	r, err := parse(0)
	if err != nil {
		return err
	}
	g, err := parse(2)
	if err != nil {
		return err
	}
	b, err := parse(4)
	if err != nil {
		return err
	}

	a := uint8(255)
	if len(s) == 8 {
		a, err = parse(6)
		if err != nil {
			return err
		}
	}

	c.Color = color.NRGBA{R: r, G: g, B: b, A: a}
	return nil
}
