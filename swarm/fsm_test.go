package swarm

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/milk9111/swarm/prefabs"
)

const sentryFSM = `
initial: watch
states:
  watch:
    on_enter:
      - halt: true
  engage:
    on_enter:
      - resume: true
      - start_timer: 0.3
    while:
      - shoot: true
transitions:
  watch:
    - has_line_of_sight: engage
  engage:
    volley_done: watch
    volley_done_afraid: watch
`

func TestCompileFSMFromYAML(t *testing.T) {
	var raw RawFSM
	require.NoError(t, yaml.Unmarshal([]byte(sentryFSM), &raw))

	fsm, err := CompileFSM(raw)
	require.NoError(t, err)
	assert.Equal(t, StateID("watch"), fsm.Initial)
	require.Len(t, fsm.Checkers, 1)
	assert.Equal(t, StateID("watch"), fsm.Checkers[0].From)

	weapon := &fakeWeapon{}
	cfg := DefaultConfig(Defender)
	cfg.Detection = DetectionConfig{Radius: 10, FieldOfView: 360}
	a, err := NewAgent(nil, AgentOptions{
		Config:    cfg,
		Navigator: &fakeNav{},
		Weapon:    weapon,
		Player:    &fakePlayer{pos: mgl64.Vec3{0, 0, 4}, present: true},
		FSM:       fsm,
		Logger:    quietLogger(),
	})
	require.NoError(t, err)

	a.Tick(0.1)
	assert.Equal(t, StateID("engage"), a.State())

	for i := 0; i < 3; i++ {
		a.Tick(0.1)
	}
	assert.Equal(t, StateID("watch"), a.State())
	assert.Equal(t, 3, weapon.shots)
}

func TestCompileFSMErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  RawFSM
		msg  string
	}{
		{"missing_initial", RawFSM{}, "missing initial"},
		{"undefined_initial", RawFSM{Initial: "x"}, "not defined"},
		{
			"unknown_action",
			RawFSM{Initial: "a", States: map[string]RawState{"a": {While: []map[string]any{{"dance": nil}}}}},
			`unknown action "dance"`,
		},
		{
			"undefined_target",
			RawFSM{Initial: "a", States: map[string]RawState{"a": {}}, Transitions: map[string]any{"a": map[string]any{"go": "b"}}},
			"undefined state",
		},
		{
			"checker_without_target",
			RawFSM{Initial: "a", States: map[string]RawState{"a": {}}, Transitions: map[string]any{"a": map[string]any{"afraid": map[string]any{"arg": 0.5}}}},
			"missing to state",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CompileFSM(tc.raw)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestCompileFSMSpec(t *testing.T) {
	spec := prefabs.FSMSpec{
		Initial: "patrolling",
		States: map[string]prefabs.FSMStateSpec{
			"patrolling": {OnEnter: []map[string]any{{"request_destination": nil}}, While: []map[string]any{{"patrol": nil}}},
			"chasing":    {While: []map[string]any{{"chase": nil}}},
		},
		Transitions: map[string][]map[string]string{
			"patrolling": {{"sees_player": "chasing"}},
			"chasing":    {{"lost_player": "patrolling"}},
		},
	}
	fsm, err := CompileFSMSpec(spec)
	require.NoError(t, err)
	assert.Equal(t, Patrolling, fsm.Initial)
	assert.Empty(t, fsm.Checkers)
	assert.Equal(t, Chasing, fsm.Transitions[Patrolling][EventSeesPlayer])
	assert.Equal(t, Patrolling, fsm.Transitions[Chasing][EventLostPlayer])
}

func TestDefaultFSMNeverReachesDeadByEvent(t *testing.T) {
	fsm := DefaultAgentFSM()
	for from, evs := range fsm.Transitions {
		for ev, to := range evs {
			assert.NotEqual(t, Dead, to, "%s.%s", from, ev)
		}
	}
}

func TestLoadFSMMatchesBuiltIn(t *testing.T) {
	loaded, err := LoadFSM("agent_fsm.yaml")
	require.NoError(t, err)

	builtIn := DefaultAgentFSM()
	assert.Equal(t, builtIn.Initial, loaded.Initial)
	assert.Equal(t, builtIn.Transitions, loaded.Transitions)
	assert.Empty(t, loaded.Checkers)
	for id, st := range builtIn.States {
		got, ok := loaded.States[id]
		require.True(t, ok, id)
		assert.Len(t, got.OnEnter, len(st.OnEnter), id)
		assert.Len(t, got.While, len(st.While), id)
	}

	_, err = LoadFSM("missing.yaml")
	assert.Error(t, err)
}
