package swarm

import (
	"io"
	"math/rand"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/milk9111/swarm/common"
)

type fakeNav struct {
	pos     mgl64.Vec3
	dest    mgl64.Vec3
	vel     mgl64.Vec3
	hasPath bool
	pending bool
	stopped bool
	sets    int
}

func (n *fakeNav) SetDestination(p mgl64.Vec3) bool {
	n.dest = p
	n.hasPath = true
	n.sets++
	return true
}

func (n *fakeNav) ResetPath() {
	n.hasPath = false
}

func (n *fakeNav) PathPending() bool { return n.pending }

func (n *fakeNav) RemainingDistance() float64 {
	if !n.hasPath {
		return 0
	}
	return common.Distance(n.pos, n.dest)
}

func (n *fakeNav) Velocity() mgl64.Vec3    { return n.vel }
func (n *fakeNav) Position() mgl64.Vec3    { return n.pos }
func (n *fakeNav) SetStopped(stopped bool) { n.stopped = stopped }
func (n *fakeNav) IsStopped() bool         { return n.stopped }

func (n *fakeNav) arrive() {
	n.pos = n.dest
}

type fakeWeapon struct {
	shots int
}

func (w *fakeWeapon) Fire() { w.shots++ }

type fakePlayer struct {
	pos     mgl64.Vec3
	present bool
}

func (p *fakePlayer) PlayerPosition() (mgl64.Vec3, bool) {
	return p.pos, p.present
}

type fakeSight func(from, to mgl64.Vec3, mask uint) bool

func (f fakeSight) Blocked(from, to mgl64.Vec3, mask uint) bool {
	return f(from, to, mask)
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func newTestCoordinator(opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(7))
	}
	return NewCoordinator(opts)
}

// deterministic strips randomness from a role config.
func deterministic(cfg Config) Config {
	cfg.Patrol.RandomnessFactor = 0
	cfg.Patrol.ThreatResponseWeight = 0
	cfg.Patrol.ThreatCloseRange = 0
	cfg.Patrol.WaitTime = 0
	return cfg
}

func newTestAgent(c *Coordinator, cfg Config, pos mgl64.Vec3) (*Agent, *fakeNav) {
	nav := &fakeNav{pos: pos}
	a, err := NewAgent(c, AgentOptions{
		Config:    cfg,
		Spawn:     pos,
		Navigator: nav,
		Logger:    quietLogger(),
	})
	if err != nil {
		panic(err)
	}
	if c != nil {
		c.RegisterAgent(a)
	}
	return a, nav
}
