package sim

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/d5/tengo/v2"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milk9111/swarm/ecs"
	"github.com/milk9111/swarm/levels"
	"github.com/milk9111/swarm/nav"
	"github.com/milk9111/swarm/prefabs"
	"github.com/milk9111/swarm/swarm"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func newArena(t *testing.T) *World {
	t.Helper()
	lvl, err := levels.Load(levels.DefaultLevel)
	require.NoError(t, err)
	spec, err := prefabs.LoadSwarmSpec(prefabs.DefaultSwarmSpec)
	require.NoError(t, err)
	w, err := New(lvl, spec, Options{Logger: quietLogger()})
	require.NoError(t, err)
	return w
}

func floatPtr(v float64) *float64 { return &v }

type recorder struct {
	damage float64
	deaths int
}

func (r *recorder) ReceiveDamage(amount float64) { r.damage += amount }
func (r *recorder) Die()                         { r.deaths++ }

func TestHealthChanges(t *testing.T) {
	tests := []struct {
		name       string
		changes    []float64
		wantHealth float64
		wantDamage float64
		wantDeaths int
	}{
		{"heal_clamps_to_max", []float64{25}, 100, 0, 0},
		{"damage_forwarded", []float64{-30, 10}, 80, 30, 0},
		{"dies_once", []float64{-60, -60, -10}, 0, 120, 1},
		{"no_heal_after_death", []float64{-100, 50}, 0, 100, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := &recorder{}
			h := NewHealth(100, r)
			for _, c := range tc.changes {
				h.ChangeHealth(c)
			}
			assert.Equal(t, tc.wantHealth, h.Current)
			assert.Equal(t, tc.wantDamage, r.damage)
			assert.Equal(t, tc.wantDeaths, r.deaths)
			assert.Equal(t, tc.wantDeaths > 0, h.Dead())
		})
	}
}

func TestRoleConfigs(t *testing.T) {
	avoid := true
	spec := &prefabs.SwarmSpec{Roles: []prefabs.RoleSpec{{
		Role:                 "Defender",
		Speed:                floatPtr(6),
		AvoidRecentlyVisited: &avoid,
		AngleCurve:           &prefabs.CurveSpec{{1, 1}, {0, 0.5}},
		Health:               floatPtr(300),
	}}}

	cfgs, loadouts, err := RoleConfigs(spec)
	require.NoError(t, err)
	require.Len(t, cfgs, 3)

	byRole := map[swarm.Role]swarm.Config{}
	for _, c := range cfgs {
		byRole[c.Role] = c
	}
	def := byRole[swarm.Defender]
	assert.Equal(t, 6.0, def.Movement.Speed)
	assert.True(t, def.Patrol.AvoidRecentlyVisited)
	assert.Equal(t, swarm.DefaultConfig(swarm.Defender).Patrol.Radius, def.Patrol.Radius)
	assert.InDelta(t, 0.75, def.Combat.AngleCurve.Evaluate(0.5), 1e-9)
	assert.Equal(t, swarm.DefaultConfig(swarm.Scout), byRole[swarm.Scout])
	assert.Equal(t, 300.0, loadouts[swarm.Defender].Health)
	assert.Equal(t, float64(defaultAgentHealth), loadouts[swarm.Worker].Health)

	_, _, err = RoleConfigs(&prefabs.SwarmSpec{Roles: []prefabs.RoleSpec{{Role: "medic"}}})
	assert.ErrorIs(t, err, swarm.ErrUnknownRole)
}

func TestSpawnConfig(t *testing.T) {
	cfg, err := SpawnConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, swarm.DefaultSpawnConfig(), cfg)

	cfg, err = SpawnConfig(&prefabs.SwarmSpec{Spawn: prefabs.SpawnSpec{
		AgentsPerSpawnPoint: 5,
		Formation:           "line",
		LineDirection:       []float64{1, 0, 0},
	}})
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.AgentsPerSpawnPoint)
	assert.Equal(t, swarm.FormationLine, cfg.Formation)
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, cfg.LineDirection)
	assert.Equal(t, swarm.DefaultSpawnConfig().Radius, cfg.Radius)

	_, err = SpawnConfig(&prefabs.SwarmSpec{Spawn: prefabs.SpawnSpec{Formation: "wedge"}})
	assert.Error(t, err)
}

func TestAgentFSMSelection(t *testing.T) {
	fsm, err := AgentFSM(nil)
	require.NoError(t, err)
	assert.Equal(t, swarm.Patrolling, fsm.Initial)

	fsm, err = AgentFSM(&prefabs.SwarmSpec{
		FSMFile: "agent_fsm.yaml",
		FSM: &prefabs.FSMSpec{
			Initial: "idle",
			States:  map[string]prefabs.FSMStateSpec{"idle": {}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, swarm.StateID("idle"), fsm.Initial, "inline machine wins")

	_, err = AgentFSM(&prefabs.SwarmSpec{FSMFile: "nowhere.yaml"})
	assert.Error(t, err)
}

func TestNewWorldBuildsArena(t *testing.T) {
	w := newArena(t)

	assert.Len(t, w.Coordinator().Agents(), 6)
	assert.Len(t, w.Coordinator().PatrolPoints(), 12)
	require.NotNil(t, w.Player())
	assert.True(t, w.Player().Alive())
	assert.InDelta(t, 1.0/60, w.DT(), 1e-12)
	assert.Equal(t, int64(42), w.Seed())

	snap := w.Snapshot()
	require.Len(t, snap.Agents, 6)
	roles := map[swarm.Role]int{}
	for _, a := range snap.Agents {
		roles[a.Role]++
		assert.Equal(t, swarm.Patrolling, a.State)
		assert.NotNil(t, a.Color)
	}
	assert.Equal(t, map[swarm.Role]int{swarm.Scout: 2, swarm.Defender: 2, swarm.Worker: 2}, roles)
	require.NotNil(t, snap.Player)
	assert.Equal(t, mgl64.Vec3{0, 0, -5}, snap.Player.Position)
}

func TestInstallCoordinatorOnce(t *testing.T) {
	w := newArena(t)

	assert.NoError(t, w.InstallCoordinator(w.Coordinator()))
	other := swarm.NewCoordinator(swarm.Options{Logger: quietLogger()})
	assert.ErrorIs(t, w.InstallCoordinator(other), ErrDuplicateCoordinator)
	assert.Error(t, w.InstallCoordinator(nil))
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(nil, nil, Options{Logger: quietLogger()})
	assert.ErrorIs(t, err, ErrNilLevel)

	lvl, err := levels.Load("")
	require.NoError(t, err)
	bad := &prefabs.SwarmSpec{FSM: &prefabs.FSMSpec{Initial: "missing"}}
	_, err = New(lvl, bad, Options{Logger: quietLogger()})
	assert.Error(t, err)
}

func TestStepAdvancesSimulation(t *testing.T) {
	w := newArena(t)
	start := w.Player().mover.Position()

	w.Run(120)

	assert.Equal(t, 120, w.Tick())
	snap := w.Snapshot()
	assert.InDelta(t, 2.0, snap.Time, 1e-9)
	assert.NotEqual(t, start, snap.Player.Position, "scripted player walks its route")

	moving := 0
	for _, a := range snap.Agents {
		if a.HasDest {
			moving++
		}
	}
	assert.Positive(t, moving)
}

func TestDamageAndKillAgent(t *testing.T) {
	w := newArena(t)
	id := w.Snapshot().Agents[0].ID

	require.True(t, w.DamageAgent(id, 10))
	a, ok := w.Agent(id)
	require.True(t, ok)
	assert.InDelta(t, 10, a.Fear(), 1e-9)
	view := w.Snapshot().Agents[0]
	assert.Equal(t, view.HealthMax-10, view.Health)

	require.True(t, w.KillAgent(id))
	assert.Equal(t, swarm.Dead, a.State())
	assert.Len(t, w.Coordinator().Agents(), 5)

	w.Step()
	_, ok = w.Agent(id)
	assert.False(t, ok)
	snap := w.Snapshot()
	assert.Len(t, snap.Agents, 5)
	assert.Equal(t, 1, snap.Deaths)

	assert.False(t, w.DamageAgent(id, 1))
	assert.False(t, w.KillAgent(uuid.New()))
}

func TestRuntimePatrolPoints(t *testing.T) {
	w := newArena(t)

	p, ok := w.AddPatrolPoint("extra", mgl64.Vec3{12, 0, 12})
	require.True(t, ok)
	assert.Equal(t, "extra", p.Name)
	_, ok = w.AddPatrolPoint("extra", mgl64.Vec3{1, 0, 1})
	assert.False(t, ok)
	assert.Len(t, w.Snapshot().Points, 13)

	worker := w.Snapshot().Agents[2]
	a, ok := w.Agent(worker.ID)
	require.True(t, ok)
	w.Coordinator().AssignPoint(p, a)

	assert.True(t, w.RemovePatrolPoint("extra"))
	assert.False(t, w.RemovePatrolPoint("extra"))
	assert.Nil(t, w.Coordinator().AssignedTo(p))
	assert.Len(t, w.Snapshot().Points, 12)
}

func TestReloadConfig(t *testing.T) {
	w := newArena(t)
	spec, err := prefabs.LoadSwarmSpec("")
	require.NoError(t, err)

	spec.Roles = append(spec.Roles[:0:0], prefabs.RoleSpec{Role: "scout", Speed: floatPtr(9), Damage: floatPtr(20)})
	require.NoError(t, w.ReloadConfig(spec))

	ecs.ForEach2(w.ECS(), AgentComponent, GunComponent, func(e ecs.Entity, a *swarm.Agent, g *Gun) {
		if a.Role() != swarm.Scout {
			return
		}
		assert.Equal(t, 9.0, a.Config().Movement.Speed)
		assert.Equal(t, 20.0, g.Damage)
	})

	spec.Roles = []prefabs.RoleSpec{{Role: "sniper"}}
	assert.Error(t, w.ReloadConfig(spec))
}

func TestWorldWithoutPlayer(t *testing.T) {
	lvl, err := levels.Parse([]byte(`{"type": "FeatureCollection", "features": [
		{"type": "Feature", "properties": {"kind": "walkable"}, "geometry": {"type": "Polygon", "coordinates": [[[-10,-10],[10,-10],[10,10],[-10,10],[-10,-10]]]}},
		{"type": "Feature", "properties": {"kind": "patrol_point", "name": "a"}, "geometry": {"type": "Point", "coordinates": [5,5]}},
		{"type": "Feature", "properties": {"kind": "patrol_point", "name": "b"}, "geometry": {"type": "Point", "coordinates": [-5,-5]}},
		{"type": "Feature", "properties": {"kind": "spawn"}, "geometry": {"type": "Point", "coordinates": [0,0]}}
	]}`))
	require.NoError(t, err)

	w, err := New(lvl, nil, Options{Logger: quietLogger(), Seed: 3})
	require.NoError(t, err)
	assert.Nil(t, w.Player())
	assert.Len(t, w.Coordinator().Agents(), 3)

	w.Run(60)
	snap := w.Snapshot()
	assert.Nil(t, snap.Player)
	assert.False(t, snap.ThreatActive)
	for _, a := range snap.Agents {
		assert.NotEqual(t, swarm.Chasing, a.State)
	}
}

type blockAll bool

func (b blockAll) Blocked(_, _ mgl64.Vec3, _ uint) bool { return bool(b) }

func TestWeaponSystem(t *testing.T) {
	setup := func(targetAt mgl64.Vec3) (*ecs.World, *Gun, *Health) {
		w := ecs.NewWorld()
		shooter := ecs.CreateEntity(w)
		target := ecs.CreateEntity(w)
		gun := &Gun{Damage: 10, Range: 5, Interval: 1, Target: target}
		health := NewHealth(50, nil)
		require.NoError(t, ecs.Add(w, shooter, BodyComponent, &Body{Mover: nav.NewMover(nil, mgl64.Vec3{}, 1, 0)}))
		require.NoError(t, ecs.Add(w, shooter, GunComponent, gun))
		require.NoError(t, ecs.Add(w, target, BodyComponent, &Body{Mover: nav.NewMover(nil, targetAt, 1, 0)}))
		require.NoError(t, ecs.Add(w, target, HealthComponent, health))
		return w, gun, health
	}

	t.Run("cooldown", func(t *testing.T) {
		w, gun, health := setup(mgl64.Vec3{3, 0, 0})
		sys := NewWeaponSystem(blockAll(false))

		gun.Fire()
		sys.Update(w, 0.1)
		assert.Equal(t, 40.0, health.Current)

		gun.Fire()
		sys.Update(w, 0.1)
		assert.Equal(t, 40.0, health.Current, "still cooling down")

		for i := 0; i < 10; i++ {
			sys.Update(w, 0.1)
		}
		gun.Fire()
		sys.Update(w, 0.1)
		assert.Equal(t, 30.0, health.Current)
		assert.Equal(t, 2, gun.Shots)
	})

	tests := []struct {
		name  string
		at    mgl64.Vec3
		sight blockAll
	}{
		{"out_of_range", mgl64.Vec3{10, 0, 0}, false},
		{"behind_cover", mgl64.Vec3{3, 0, 0}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, gun, health := setup(tc.at)
			gun.Fire()
			NewWeaponSystem(tc.sight).Update(w, 0.1)
			assert.Equal(t, 50.0, health.Current)
			assert.Zero(t, gun.Shots)
		})
	}
}

func TestPlayerScriptEngine(t *testing.T) {
	w := newArena(t)
	rt, err := compileScript("probe", []byte(`
update := func(engine, state) {
	state.pos = engine.get_position()
	state.route = len(engine.waypoints())
	state.now = engine.time()
	state.moved = engine.move_towards(5, -5)
	state.bad = engine.move_towards("x")
}
`))
	require.NoError(t, err)
	w.player.script = rt

	w.Step()
	assert.Equal(t, []any{0.0, -5.0}, rt.state("pos"))
	assert.Equal(t, 6, rt.state("route"))
	assert.InDelta(t, 1.0/60, rt.state("now"), 1e-12)
	assert.Equal(t, true, rt.state("moved"))
	assert.Equal(t, false, rt.state("bad"))
	assert.Equal(t, mgl64.Vec3{5, 0, -5}, w.player.mover.Destination())
}

func TestScriptPanicReturnsError(t *testing.T) {
	rt, err := compileScript("div", []byte(`
update := func(engine, state) {
	zero := 0
	state.n = 7 / zero
}
`))
	require.NoError(t, err)

	err = rt.run(&tengo.ImmutableMap{Value: map[string]tengo.Object{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "div")
}

func TestPlayerScriptFailureDisablesScript(t *testing.T) {
	w := newArena(t)
	rt, err := compileScript("boom", []byte(`
update := func(engine, state) {
	x := 0
	y := 1 / x
}
`))
	require.NoError(t, err)
	w.player.script = rt

	w.Step()
	assert.Nil(t, w.player.script)

	_, err = compileScript("broken", []byte(`update := func(`))
	assert.Error(t, err)
	_, err = loadScript("missing.tengo")
	assert.Error(t, err)
}
