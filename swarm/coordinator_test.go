package swarm

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milk9111/swarm/common"
)

func addPoints(c *Coordinator, positions ...mgl64.Vec3) []*PatrolPoint {
	out := make([]*PatrolPoint, 0, len(positions))
	for i, p := range positions {
		pt := NewPatrolPoint(string(rune('a'+i)), p)
		c.AddPatrolPoint(pt)
		out = append(out, pt)
	}
	return out
}

func testFactory(c *Coordinator, cfg Config, anchor, position mgl64.Vec3) (*Agent, error) {
	return NewAgent(c, AgentOptions{
		Config:    cfg,
		Spawn:     anchor,
		Navigator: &fakeNav{pos: position},
		Logger:    quietLogger(),
	})
}

func TestGetDestinationWithoutPoints(t *testing.T) {
	c := newTestCoordinator(Options{})
	for _, role := range Roles() {
		t.Run(role.String(), func(t *testing.T) {
			a, _ := newTestAgent(c, DefaultConfig(role), mgl64.Vec3{})
			_, ok := c.GetDestinationForAgent(a)
			assert.False(t, ok)
		})
	}
}

func TestWorkerSkipsAssignedPoints(t *testing.T) {
	c := newTestCoordinator(Options{})
	pts := addPoints(c, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{5, 0, 0})
	cfg := deterministic(DefaultConfig(Worker))

	a1, _ := newTestAgent(c, cfg, mgl64.Vec3{})
	a2, _ := newTestAgent(c, cfg, mgl64.Vec3{})
	a3, _ := newTestAgent(c, cfg, mgl64.Vec3{})

	d1, ok := c.GetDestinationForAgent(a1)
	require.True(t, ok)
	assert.Same(t, pts[0], d1.Point)
	assert.Same(t, a1, c.AssignedTo(pts[0]))

	d2, ok := c.GetDestinationForAgent(a2)
	require.True(t, ok)
	assert.Same(t, pts[1], d2.Point, "nearest point is held by another agent")
	assert.Same(t, a2, c.AssignedTo(pts[1]))

	// Every point is held; the fallback still produces a destination.
	d3, ok := c.GetDestinationForAgent(a3)
	require.True(t, ok)
	require.NotNil(t, d3.Point)
	assert.Same(t, a3, c.AssignedTo(d3.Point))
}

func TestWorkerKeepsItsOwnPoint(t *testing.T) {
	c := newTestCoordinator(Options{})
	pts := addPoints(c, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{5, 0, 0})
	cfg := deterministic(DefaultConfig(Worker))

	other, _ := newTestAgent(c, cfg, mgl64.Vec3{})
	a, _ := newTestAgent(c, cfg, mgl64.Vec3{})
	c.AssignPoint(pts[0], other)
	c.AssignPoint(pts[1], a)

	for i := 0; i < 100; i++ {
		d, ok := c.GetDestinationForAgent(a)
		require.True(t, ok)
		require.Same(t, pts[1], d.Point)
		require.Same(t, other, c.AssignedTo(pts[0]))
	}
}

func TestWorkerPrefersStalePoints(t *testing.T) {
	c := newTestCoordinator(Options{})
	pts := addPoints(c, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{4, 0, 0}, mgl64.Vec3{100, 0, 0})
	cfg := deterministic(DefaultConfig(Worker))
	cfg.Patrol.AvoidRecentlyVisited = false
	a, _ := newTestAgent(c, cfg, mgl64.Vec3{})

	pts[0].Visit(0)
	d, ok := c.GetDestinationForAgent(a)
	require.True(t, ok)
	assert.Same(t, pts[1], d.Point, "never visited beats recently visited")

	pts[1].Visit(5)
	c.Update(10)
	d, ok = c.GetDestinationForAgent(a)
	require.True(t, ok)
	assert.Same(t, pts[0], d.Point, "older visit wins")
	assert.Empty(t, c.Assignments())
}

func TestScoutPicksFarthestInRadius(t *testing.T) {
	c := newTestCoordinator(Options{})
	pts := addPoints(c, mgl64.Vec3{5, 0, 0}, mgl64.Vec3{0, 0, 20}, mgl64.Vec3{40, 0, 0})
	a, _ := newTestAgent(c, deterministic(DefaultConfig(Scout)), mgl64.Vec3{})

	d, ok := c.GetDestinationForAgent(a)
	require.True(t, ok)
	assert.Same(t, pts[1], d.Point)
	assert.Equal(t, pts[1].Position(), d.Position)
	assert.False(t, d.Synthetic)
}

func TestDefenderPicksNearestAndMovesOn(t *testing.T) {
	c := newTestCoordinator(Options{})
	pts := addPoints(c, mgl64.Vec3{2, 0, 0}, mgl64.Vec3{0, 0, 5}, mgl64.Vec3{20, 0, 0})
	a, _ := newTestAgent(c, deterministic(DefaultConfig(Defender)), mgl64.Vec3{})

	d, ok := c.GetDestinationForAgent(a)
	require.True(t, ok)
	assert.Same(t, pts[0], d.Point)

	a.destination, a.hasDest = d, true
	d, ok = c.GetDestinationForAgent(a)
	require.True(t, ok)
	assert.Same(t, pts[1], d.Point, "current destination is skipped")
	assert.Empty(t, c.Assignments(), "defenders do not reserve points")
}

func TestDefenderSinglePointInRadius(t *testing.T) {
	c := newTestCoordinator(Options{})
	pts := addPoints(c, mgl64.Vec3{2, 0, 0}, mgl64.Vec3{20, 0, 0})
	a, _ := newTestAgent(c, deterministic(DefaultConfig(Defender)), mgl64.Vec3{})
	a.destination, a.hasDest = Destination{Point: pts[0], Position: pts[0].Position()}, true

	d, ok := c.GetDestinationForAgent(a)
	require.True(t, ok)
	assert.Same(t, pts[0], d.Point)
}

func TestThreatAggregation(t *testing.T) {
	player := &fakePlayer{pos: mgl64.Vec3{3, 0, 3}, present: true}
	c := newTestCoordinator(Options{Player: player})
	cfg := DefaultConfig(Worker)
	idle, _ := newTestAgent(c, cfg, mgl64.Vec3{})
	hunter, _ := newTestAgent(c, cfg, mgl64.Vec3{1, 0, 1})

	c.Update(0.1)
	_, active := c.ThreatActive()
	assert.False(t, active)
	_, known := c.LastThreatPosition()
	assert.False(t, known)

	hunter.state = Chasing
	c.Update(0.1)
	pos, active := c.ThreatActive()
	assert.True(t, active)
	assert.Equal(t, player.pos, pos)

	player.present = false
	c.Update(0.1)
	pos, active = c.ThreatActive()
	assert.True(t, active)
	assert.Equal(t, hunter.Position(), pos, "falls back to the engaged agent")

	hunter.state = Patrolling
	c.Update(0.1)
	_, active = c.ThreatActive()
	assert.False(t, active)
	last, known := c.LastThreatPosition()
	assert.True(t, known)
	assert.Equal(t, hunter.Position(), last)

	assert.Equal(t, Patrolling, idle.State())
	assert.InDelta(t, 0.4, c.Now(), 1e-9)
}

func TestThreatRedirect(t *testing.T) {
	tests := []struct {
		name      string
		threat    mgl64.Vec3
		synthetic bool
		want      int
	}{
		{"inside_patrol_radius", mgl64.Vec3{5, 0, 0}, true, -1},
		{"outside_patrol_radius", mgl64.Vec3{50, 0, 0}, false, 0},
		{"behind", mgl64.Vec3{-50, 0, 0}, false, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			player := &fakePlayer{pos: tc.threat, present: true}
			c := newTestCoordinator(Options{Player: player})
			pts := addPoints(c, mgl64.Vec3{10, 0, 0}, mgl64.Vec3{-10, 0, 0})

			cfg := deterministic(DefaultConfig(Worker))
			cfg.Patrol.ThreatCloseRange = 1000
			a, _ := newTestAgent(c, cfg, mgl64.Vec3{})
			engaged, _ := newTestAgent(c, cfg, tc.threat)
			engaged.state = Shooting
			c.Update(0.1)

			d, ok := c.GetDestinationForAgent(a)
			require.True(t, ok)
			assert.Equal(t, tc.synthetic, d.Synthetic)
			if tc.synthetic {
				assert.Nil(t, d.Point)
				assert.Equal(t, tc.threat, d.Position)
				return
			}
			assert.Same(t, pts[tc.want], d.Point)
		})
	}
}

func TestThreatIgnoredWhenResponseDisabled(t *testing.T) {
	player := &fakePlayer{pos: mgl64.Vec3{50, 0, 0}, present: true}
	c := newTestCoordinator(Options{Player: player})
	pts := addPoints(c, mgl64.Vec3{-1, 0, 0}, mgl64.Vec3{10, 0, 0})
	cfg := deterministic(DefaultConfig(Defender))
	a, _ := newTestAgent(c, cfg, mgl64.Vec3{})
	engaged, _ := newTestAgent(c, cfg, mgl64.Vec3{40, 0, 0})
	engaged.state = Chasing
	c.Update(0.1)

	d, ok := c.GetDestinationForAgent(a)
	require.True(t, ok)
	assert.Same(t, pts[0], d.Point)
}

func TestUnregisterAndRemoveReleaseAssignments(t *testing.T) {
	c := newTestCoordinator(Options{})
	pts := addPoints(c, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{2, 0, 0})
	cfg := deterministic(DefaultConfig(Worker))
	a1, _ := newTestAgent(c, cfg, mgl64.Vec3{})
	a2, _ := newTestAgent(c, cfg, mgl64.Vec3{})

	c.AssignPoint(pts[0], a1)
	c.AssignPoint(pts[1], a2)
	require.Len(t, c.Assignments(), 2)

	c.UnregisterAgent(a1)
	assert.Nil(t, c.AssignedTo(pts[0]))
	assert.NotContains(t, c.Agents(), a1)
	assert.Len(t, c.Agents(), 1)

	assert.True(t, c.RemovePatrolPoint(pts[1]))
	assert.Empty(t, c.Assignments())
	assert.False(t, c.Registry().Has(pts[1]))
	assert.False(t, c.RemovePatrolPoint(pts[1]))
}

func TestAssignPoint(t *testing.T) {
	c := newTestCoordinator(Options{})
	pts := addPoints(c, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{2, 0, 0})
	cfg := DefaultConfig(Worker)
	a1, _ := newTestAgent(c, cfg, mgl64.Vec3{})
	a2, _ := newTestAgent(c, cfg, mgl64.Vec3{})

	c.AssignPoint(pts[0], a1)
	c.AssignPoint(pts[0], a2)
	assert.Same(t, a2, c.AssignedTo(pts[0]), "last writer wins")

	c.AssignPoint(pts[1], a2)
	assert.Nil(t, c.AssignedTo(pts[0]), "previous reservation released")
	assert.Same(t, a2, c.AssignedTo(pts[1]))

	c.AssignPoint(nil, a1)
	c.AssignPoint(pts[0], nil)
	assert.Len(t, c.Assignments(), 1)

	c.ReleasePoint(pts[1])
	assert.Empty(t, c.Assignments())
}

func TestHidingSpot(t *testing.T) {
	threat := mgl64.Vec3{0, 0, 10}
	behindWall := fakeSight(func(from, _ mgl64.Vec3, _ uint) bool { return from.Z() < 0 })

	c := newTestCoordinator(Options{Player: &fakePlayer{pos: threat, present: true}, Sight: behindWall})
	pts := addPoints(c,
		mgl64.Vec3{3, 0, 0},
		mgl64.Vec3{0, 0, -20},
		mgl64.Vec3{0, 0, -5},
	)
	cfg := DefaultConfig(Worker)
	a, _ := newTestAgent(c, cfg, mgl64.Vec3{})
	engaged, _ := newTestAgent(c, cfg, mgl64.Vec3{0, 0, 8})
	engaged.state = Chasing
	c.Update(0.1)

	d, ok := c.HidingSpot(a)
	require.True(t, ok)
	assert.Same(t, pts[2], d.Point)
}

func TestHidingSpotFallsBackToRandomPoint(t *testing.T) {
	exposed := fakeSight(func(_, _ mgl64.Vec3, _ uint) bool { return false })
	tests := []struct {
		name   string
		player *fakePlayer
		sight  LineOfSight
	}{
		{"no_cover", &fakePlayer{pos: mgl64.Vec3{0, 0, 10}, present: true}, exposed},
		{"no_sight", &fakePlayer{pos: mgl64.Vec3{0, 0, 10}, present: true}, nil},
		{"no_threat", &fakePlayer{}, exposed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestCoordinator(Options{Player: tc.player, Sight: tc.sight})
			pts := addPoints(c, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{2, 0, 0})
			a, _ := newTestAgent(c, DefaultConfig(Worker), mgl64.Vec3{})
			if tc.player.present {
				engaged, _ := newTestAgent(c, DefaultConfig(Worker), mgl64.Vec3{0, 0, 5})
				engaged.state = Chasing
				c.Update(0.1)
			}

			d, ok := c.HidingSpot(a)
			require.True(t, ok)
			assert.Contains(t, pts, d.Point)
		})
	}

	c := newTestCoordinator(Options{})
	a, _ := newTestAgent(c, DefaultConfig(Worker), mgl64.Vec3{})
	_, ok := c.HidingSpot(a)
	assert.False(t, ok, "no points at all")
}

func TestSpawnCyclesRoles(t *testing.T) {
	c := newTestCoordinator(Options{})
	anchors := []mgl64.Vec3{{0, 0, 0}, {20, 0, 0}}

	agents := c.Spawn(anchors, testFactory)
	require.Len(t, agents, 6)
	assert.Len(t, c.Agents(), 6)

	want := []Role{Scout, Defender, Worker}
	for i, a := range agents {
		assert.Equal(t, want[i%3], a.Role())
		anchor := anchors[i/3]
		assert.Equal(t, anchor, a.Spawn())
		assert.InDelta(t, 2, common.Distance(anchor, a.Position()), 1e-9)
	}
}

func TestSpawnSkipsFailures(t *testing.T) {
	onlyTwo := []Config{DefaultConfig(Worker), DefaultConfig(Scout)}
	c := newTestCoordinator(Options{Roles: onlyTwo})
	agents := c.Spawn([]mgl64.Vec3{{}}, testFactory)
	require.Len(t, agents, 2)
	assert.Equal(t, Scout, agents[0].Role())
	assert.Equal(t, Worker, agents[1].Role())

	c = newTestCoordinator(Options{})
	calls := 0
	flaky := func(c *Coordinator, cfg Config, anchor, pos mgl64.Vec3) (*Agent, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("no room")
		}
		return testFactory(c, cfg, anchor, pos)
	}
	agents = c.Spawn([]mgl64.Vec3{{}}, flaky)
	assert.Len(t, agents, 2)
	assert.Equal(t, 3, calls)

	assert.Nil(t, c.Spawn([]mgl64.Vec3{{}}, nil))
}

type snapSampler struct {
	ok bool
}

func (s snapSampler) Sample(p mgl64.Vec3, _ float64) (mgl64.Vec3, bool) {
	return mgl64.Vec3{math.Round(p.X()), 0, math.Round(p.Z())}, s.ok
}

func TestSpawnProjectsOntoSurface(t *testing.T) {
	anchor := mgl64.Vec3{0, 3, 0}

	c := newTestCoordinator(Options{Sampler: snapSampler{ok: true}})
	for _, a := range c.Spawn([]mgl64.Vec3{anchor}, testFactory) {
		p := a.Position()
		assert.Zero(t, p.Y())
		assert.Equal(t, math.Round(p.X()), p.X())
	}

	c = newTestCoordinator(Options{Sampler: snapSampler{ok: false}})
	for _, a := range c.Spawn([]mgl64.Vec3{anchor}, testFactory) {
		assert.Equal(t, 3.0, a.Position().Y(), "raw position kept when projection fails")
	}
}

func TestFormationOffsets(t *testing.T) {
	base := DefaultSpawnConfig()

	grid := base
	grid.Formation = FormationGrid
	var got []mgl64.Vec3
	for i := 0; i < 4; i++ {
		got = append(got, formationOffset(grid, i, 4, nil))
	}
	assert.Equal(t, []mgl64.Vec3{{-2, 0, -2}, {0, 0, -2}, {-2, 0, 0}, {0, 0, 0}}, got)

	line := base
	line.Formation = FormationLine
	line.LineDirection = mgl64.Vec3{2, 0, 0}
	assert.Equal(t, mgl64.Vec3{6, 0, 0}, formationOffset(line, 3, 4, nil))

	random := base
	random.Formation = FormationRandom
	rng := newTestCoordinator(Options{}).Rand()
	for i := 0; i < 50; i++ {
		off := formationOffset(random, i, 50, rng)
		assert.Zero(t, off.Y())
		assert.LessOrEqual(t, off.Len(), random.Radius+1e-9)
	}
}

func TestParseFormation(t *testing.T) {
	for in, want := range map[string]Formation{"": FormationCircle, "Grid": FormationGrid, " line ": FormationLine, "random": FormationRandom} {
		got, err := ParseFormation(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		if in != "" {
			assert.Equal(t, want.String(), got.String())
		}
	}
	_, err := ParseFormation("wedge")
	assert.Error(t, err)
}

func TestApplyRoleConfigs(t *testing.T) {
	c := newTestCoordinator(Options{})
	scout, _ := newTestAgent(c, DefaultConfig(Scout), mgl64.Vec3{})
	worker, _ := newTestAgent(c, DefaultConfig(Worker), mgl64.Vec3{})

	tuned := DefaultConfig(Scout)
	tuned.Movement.Speed = 9
	tuned.Patrol.Radius = 50
	c.ApplyRoleConfigs([]Config{tuned})

	assert.Equal(t, 9.0, scout.Config().Movement.Speed)
	assert.Equal(t, 50.0, scout.Config().Patrol.Radius)
	assert.Equal(t, DefaultConfig(Worker), worker.Config())
	got, ok := c.ConfigForRole(Scout)
	require.True(t, ok)
	assert.Equal(t, tuned, got)
}
