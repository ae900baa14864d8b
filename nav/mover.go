package nav

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Mover follows paths over a Surface. Paths are resolved by the next Advance
// after SetDestination, so PathPending stays true until the nav pass runs.
type Mover struct {
	surface  *Surface
	position mgl64.Vec3
	velocity mgl64.Vec3
	speed    float64
	stopping float64

	destination mgl64.Vec3
	pending     bool
	path        []mgl64.Vec3
	stopped     bool
}

func NewMover(surface *Surface, position mgl64.Vec3, speed, stoppingDistance float64) *Mover {
	return &Mover{
		surface:  surface,
		position: position,
		speed:    speed,
		stopping: stoppingDistance,
	}
}

// SetDestination requests a path to dest. It fails when dest lies off the
// walkable surface.
func (m *Mover) SetDestination(dest mgl64.Vec3) bool {
	if m.surface != nil && !m.surface.Walkable(dest) {
		return false
	}
	m.destination = dest
	m.pending = true
	m.path = nil
	return true
}

func (m *Mover) ResetPath() {
	m.pending = false
	m.path = nil
	m.velocity = mgl64.Vec3{}
}

func (m *Mover) PathPending() bool {
	return m.pending
}

func (m *Mover) HasPath() bool {
	return len(m.path) > 0
}

// RemainingDistance is the length of the rest of the path. It is +Inf while a
// path is pending and 0 when there is none.
func (m *Mover) RemainingDistance() float64 {
	if m.pending {
		return math.Inf(1)
	}
	total := 0.0
	prev := m.position
	for _, p := range m.path {
		total += p.Sub(prev).Len()
		prev = p
	}
	return total
}

func (m *Mover) Velocity() mgl64.Vec3 {
	return m.velocity
}

func (m *Mover) Position() mgl64.Vec3 {
	return m.position
}

// Warp teleports the mover and drops its path.
func (m *Mover) Warp(p mgl64.Vec3) {
	m.position = p
	m.ResetPath()
}

func (m *Mover) Destination() mgl64.Vec3 {
	return m.destination
}

func (m *Mover) Path() []mgl64.Vec3 {
	return m.path
}

func (m *Mover) SetStopped(stopped bool) {
	m.stopped = stopped
	if stopped {
		m.velocity = mgl64.Vec3{}
	}
}

func (m *Mover) IsStopped() bool {
	return m.stopped
}

func (m *Mover) SetSpeed(speed float64) {
	m.speed = speed
}

func (m *Mover) SetStoppingDistance(d float64) {
	m.stopping = d
}

func (m *Mover) resolve() {
	m.pending = false
	if m.surface == nil {
		m.path = []mgl64.Vec3{m.destination}
		return
	}
	path, ok := m.surface.FindPath(m.position, m.destination)
	if !ok {
		m.path = nil
		return
	}
	m.path = path
}

// Advance resolves a pending path then moves up to speed*dt along it, halting
// at the stopping distance.
func (m *Mover) Advance(dt float64) {
	if m.pending {
		m.resolve()
	}
	if m.stopped || len(m.path) == 0 || dt <= 0 {
		m.velocity = mgl64.Vec3{}
		return
	}

	budget := math.Min(m.speed*dt, m.RemainingDistance()-m.stopping)
	if budget <= 0 {
		m.velocity = mgl64.Vec3{}
		return
	}

	start := m.position
	for budget > 0 && len(m.path) > 0 {
		next := m.path[0]
		leg := next.Sub(m.position)
		d := leg.Len()
		if d <= budget {
			m.position = next
			m.path = m.path[1:]
			budget -= d
			continue
		}
		m.position = m.position.Add(leg.Mul(budget / d))
		budget = 0
	}
	m.velocity = m.position.Sub(start).Mul(1 / dt)
}
