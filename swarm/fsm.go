package swarm

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/milk9111/swarm/prefabs"
)

type StateID string
type EventID string

const (
	Patrolling StateID = "patrolling"
	Chasing    StateID = "chasing"
	Shooting   StateID = "shooting"
	Hiding     StateID = "hiding"
	Dead       StateID = "dead"
)

const (
	EventSeesPlayer       EventID = "sees_player"
	EventLostPlayer       EventID = "lost_player"
	EventOpenFire         EventID = "open_fire"
	EventVolleyDone       EventID = "volley_done"
	EventVolleyDoneAfraid EventID = "volley_done_afraid"
	EventReachedCover     EventID = "reached_cover"
)

type Action func(ctx *ActionContext)

// ActionContext is handed to every action and checker during an agent tick.
type ActionContext struct {
	Agent   *Agent
	DT      float64
	Enqueue func(ev EventID)
}

type StateDef struct {
	OnEnter []Action
	While   []Action
	OnExit  []Action
}

type FSMDef struct {
	Initial     StateID
	States      map[StateID]StateDef
	Transitions map[StateID]map[EventID]StateID
	Checkers    []TransitionCheckerDef
}

type TransitionChecker func(ctx *ActionContext) bool

type TransitionCheckerDef struct {
	From  StateID
	Event EventID
	Check TransitionChecker
}

type RawFSM struct {
	Initial string              `yaml:"initial"`
	States  map[string]RawState `yaml:"states"`
	// Transitions maps a state to either event -> state pairs or a list of
	// single-key entries where the key may name a registered checker.
	Transitions map[string]any `yaml:"transitions"`
}

type RawState struct {
	OnEnter []map[string]any `yaml:"on_enter"`
	While   []map[string]any `yaml:"while"`
	OnExit  []map[string]any `yaml:"on_exit"`
}

var actionRegistry = map[string]func(any) Action{
	"log": func(arg any) Action {
		msg := fmt.Sprint(arg)
		return func(ctx *ActionContext) {
			ctx.Agent.logger.Debug(msg, "agent", ctx.Agent.id, "state", ctx.Agent.state)
		}
	},
	"emit_event": func(arg any) Action {
		name := EventID(fmt.Sprint(arg))
		return func(ctx *ActionContext) {
			ctx.Enqueue(name)
		}
	},
	"resume": func(_ any) Action {
		return func(ctx *ActionContext) {
			ctx.Agent.nav.SetStopped(false)
		}
	},
	"halt": func(_ any) Action {
		return func(ctx *ActionContext) {
			ctx.Agent.halt()
		}
	},
	"request_destination": func(_ any) Action {
		return func(ctx *ActionContext) {
			ctx.Agent.requestDestination()
		}
	},
	"patrol": func(_ any) Action {
		return func(ctx *ActionContext) {
			ctx.Agent.patrol(ctx.DT)
		}
	},
	"retarget_player": func(_ any) Action {
		return func(ctx *ActionContext) {
			ctx.Agent.retargetPlayer()
		}
	},
	"chase": func(_ any) Action {
		return func(ctx *ActionContext) {
			ctx.Agent.chase(ctx)
		}
	},
	"start_timer": func(arg any) Action {
		seconds, set := asFloat(arg)
		return func(ctx *ActionContext) {
			if set {
				ctx.Agent.timer = seconds
				return
			}
			ctx.Agent.timer = ctx.Agent.cfg.Combat.ShootDuration
		}
	},
	"shoot": func(_ any) Action {
		return func(ctx *ActionContext) {
			ctx.Agent.shoot(ctx)
		}
	},
	"take_cover": func(_ any) Action {
		return func(ctx *ActionContext) {
			ctx.Agent.takeCover()
		}
	},
	"hide": func(_ any) Action {
		return func(ctx *ActionContext) {
			ctx.Agent.hide(ctx)
		}
	},
}

var transitionRegistry = map[string]func(any) TransitionChecker{
	"always": func(_ any) TransitionChecker {
		return func(ctx *ActionContext) bool { return true }
	},
	"has_line_of_sight": func(_ any) TransitionChecker {
		return func(ctx *ActionContext) bool { return ctx.Agent.los }
	},
	"timer_expired": func(_ any) TransitionChecker {
		return func(ctx *ActionContext) bool { return ctx.Agent.timer <= 0 }
	},
	// afraid fires once fear reaches arg times the maximum (default 1).
	"afraid": func(arg any) TransitionChecker {
		frac, set := asFloat(arg)
		if !set {
			frac = 1
		}
		return func(ctx *ActionContext) bool {
			return ctx.Agent.fear >= ctx.Agent.cfg.Fear.Max*frac
		}
	},
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case float32:
		return float64(t), true
	default:
		return 0, false
	}
}

func applyActions(actions []Action, ctx *ActionContext) {
	for _, a := range actions {
		if a != nil {
			a(ctx)
		}
	}
}

func CompileFSM(raw RawFSM) (*FSMDef, error) {
	if raw.Initial == "" {
		return nil, fmt.Errorf("fsm: missing initial state")
	}
	if _, ok := raw.States[raw.Initial]; !ok {
		return nil, fmt.Errorf("fsm: initial state %q not defined", raw.Initial)
	}

	build := func(list []map[string]any) ([]Action, error) {
		if len(list) == 0 {
			return nil, nil
		}
		out := make([]Action, 0, len(list))
		for _, e := range list {
			for k, v := range e {
				makeAction, ok := actionRegistry[k]
				if !ok {
					return nil, fmt.Errorf("fsm: unknown action %q", k)
				}
				out = append(out, makeAction(v))
			}
		}
		return out, nil
	}

	states := map[StateID]StateDef{}
	for name, s := range raw.States {
		onEnter, err := build(s.OnEnter)
		if err != nil {
			return nil, err
		}
		while, err := build(s.While)
		if err != nil {
			return nil, err
		}
		onExit, err := build(s.OnExit)
		if err != nil {
			return nil, err
		}
		states[StateID(name)] = StateDef{OnEnter: onEnter, While: while, OnExit: onExit}
	}

	transitions := map[StateID]map[EventID]StateID{}
	var checkers []TransitionCheckerDef

	addTransition := func(from StateID, key string, val any, idx int) error {
		if maker, ok := transitionRegistry[key]; ok {
			toState, arg := checkerTarget(val)
			if toState == "" {
				return fmt.Errorf("fsm: missing to state for transition %s.%s", from, key)
			}
			eid := EventID(fmt.Sprintf("__cond_%s_%s_%d", from, key, idx))
			transitions[from][eid] = StateID(toState)
			checkers = append(checkers, TransitionCheckerDef{From: from, Event: eid, Check: maker(arg)})
			return nil
		}
		toState, ok := val.(string)
		if !ok {
			return fmt.Errorf("fsm: invalid transition value for %s.%s", from, key)
		}
		transitions[from][EventID(key)] = StateID(toState)
		return nil
	}

	for from, rawVal := range raw.Transitions {
		fromID := StateID(from)
		transitions[fromID] = map[EventID]StateID{}

		switch v := rawVal.(type) {
		case map[string]any:
			for key, val := range v {
				if err := addTransition(fromID, key, val, 0); err != nil {
					return nil, err
				}
			}
		case []any:
			for i, item := range v {
				m, ok := item.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("fsm: invalid transition entry %v", item)
				}
				for key, val := range m {
					if err := addTransition(fromID, key, val, i); err != nil {
						return nil, err
					}
				}
			}
		default:
			return nil, fmt.Errorf("fsm: invalid transitions type for state %s", from)
		}
	}

	for from, evs := range transitions {
		for ev, to := range evs {
			if _, ok := states[to]; !ok && to != Dead {
				return nil, fmt.Errorf("fsm: transition %s.%s targets undefined state %q", from, ev, to)
			}
		}
	}

	return &FSMDef{
		Initial:     StateID(raw.Initial),
		States:      states,
		Transitions: transitions,
		Checkers:    checkers,
	}, nil
}

func checkerTarget(val any) (string, any) {
	switch v := val.(type) {
	case string:
		return v, nil
	case map[string]any:
		to, _ := v["to"].(string)
		return to, v["arg"]
	}
	return "", nil
}

func CompileFSMSpec(spec prefabs.FSMSpec) (*FSMDef, error) {
	raw := RawFSM{
		Initial:     spec.Initial,
		States:      map[string]RawState{},
		Transitions: map[string]any{},
	}
	for from, entries := range spec.Transitions {
		list := make([]any, 0, len(entries))
		for _, entry := range entries {
			m := map[string]any{}
			for ev, to := range entry {
				m[ev] = to
			}
			list = append(list, m)
		}
		raw.Transitions[from] = list
	}
	for name, s := range spec.States {
		raw.States[name] = RawState{
			OnEnter: s.OnEnter,
			While:   s.While,
			OnExit:  s.OnExit,
		}
	}
	return CompileFSM(raw)
}

// LoadFSM compiles an FSM prefab file.
func LoadFSM(path string) (*FSMDef, error) {
	data, err := prefabs.Load(path)
	if err != nil {
		return nil, fmt.Errorf("fsm: load %s: %w", path, err)
	}
	var raw RawFSM
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("fsm: unmarshal %s: %w", path, err)
	}
	return CompileFSM(raw)
}

// DefaultAgentFSM is the built-in patrol/chase/shoot/hide machine. Dead is not
// reachable through events; only Agent.Die enters it.
func DefaultAgentFSM() *FSMDef {
	return &FSMDef{
		Initial: Patrolling,
		States: map[StateID]StateDef{
			Patrolling: {
				OnEnter: []Action{
					actionRegistry["resume"](nil),
					actionRegistry["request_destination"](nil),
				},
				While: []Action{actionRegistry["patrol"](nil)},
			},
			Chasing: {
				OnEnter: []Action{
					actionRegistry["resume"](nil),
					actionRegistry["retarget_player"](nil),
				},
				While: []Action{actionRegistry["chase"](nil)},
			},
			Shooting: {
				OnEnter: []Action{
					actionRegistry["halt"](nil),
					actionRegistry["start_timer"](nil),
				},
				While: []Action{actionRegistry["shoot"](nil)},
			},
			Hiding: {
				OnEnter: []Action{
					actionRegistry["resume"](nil),
					actionRegistry["take_cover"](nil),
				},
				While: []Action{actionRegistry["hide"](nil)},
			},
			Dead: {
				OnEnter: []Action{actionRegistry["halt"](nil)},
			},
		},
		Transitions: map[StateID]map[EventID]StateID{
			Patrolling: {
				EventSeesPlayer: Chasing,
			},
			Chasing: {
				EventLostPlayer: Patrolling,
				EventOpenFire:   Shooting,
			},
			Shooting: {
				EventVolleyDone:       Chasing,
				EventVolleyDoneAfraid: Hiding,
			},
			Hiding: {
				EventSeesPlayer:   Chasing,
				EventReachedCover: Patrolling,
			},
		},
	}
}
