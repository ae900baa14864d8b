package swarm

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/milk9111/swarm/common"
)

const pointTolerance = 0.01

// PatrolPoint is a fixed, revisitable location. It starts as never visited.
type PatrolPoint struct {
	Name      string
	position  mgl64.Vec3
	lastVisit float64
}

func NewPatrolPoint(name string, position mgl64.Vec3) *PatrolPoint {
	return &PatrolPoint{Name: name, position: position, lastVisit: math.Inf(-1)}
}

func (p *PatrolPoint) Position() mgl64.Vec3 {
	return p.position
}

// LastVisit is the simulation time of the latest visit, -Inf if never.
func (p *PatrolPoint) LastVisit() float64 {
	return p.lastVisit
}

func (p *PatrolPoint) Visited() bool {
	return !math.IsInf(p.lastVisit, -1)
}

func (p *PatrolPoint) Visit(now float64) {
	p.lastVisit = now
}

func (p *PatrolPoint) Bounds() rtreego.Rect {
	return rtreego.Point{p.position[0], p.position[2]}.ToRect(pointTolerance)
}

// Registry holds the patrol points in registration order and indexes them on
// the horizontal plane for radius queries.
type Registry struct {
	points []*PatrolPoint
	seq    map[*PatrolPoint]int
	next   int
	tree   *rtreego.Rtree
}

func NewRegistry() *Registry {
	return &Registry{
		seq:  make(map[*PatrolPoint]int),
		tree: rtreego.NewTree(2, 4, 16),
	}
}

// Add registers p. Nil and already registered points are ignored.
func (r *Registry) Add(p *PatrolPoint) bool {
	if p == nil {
		return false
	}
	if _, ok := r.seq[p]; ok {
		return false
	}
	r.next++
	r.seq[p] = r.next
	r.points = append(r.points, p)
	r.tree.Insert(p)
	return true
}

func (r *Registry) Remove(p *PatrolPoint) bool {
	if _, ok := r.seq[p]; !ok {
		return false
	}
	delete(r.seq, p)
	for i, q := range r.points {
		if q == p {
			r.points = append(r.points[:i], r.points[i+1:]...)
			break
		}
	}
	r.tree.Delete(p)
	return true
}

func (r *Registry) Has(p *PatrolPoint) bool {
	_, ok := r.seq[p]
	return ok
}

func (r *Registry) Len() int {
	return len(r.points)
}

func (r *Registry) Points() []*PatrolPoint {
	return append([]*PatrolPoint(nil), r.points...)
}

func (r *Registry) At(i int) *PatrolPoint {
	return r.points[i]
}

// Within returns the points no farther than radius from center, in
// registration order.
func (r *Registry) Within(center mgl64.Vec3, radius float64) []*PatrolPoint {
	if radius < 0 || len(r.points) == 0 {
		return nil
	}
	side := 2*radius + 2*pointTolerance
	bb, err := rtreego.NewRect(
		rtreego.Point{center[0] - radius - pointTolerance, center[2] - radius - pointTolerance},
		[]float64{side, side},
	)
	if err != nil {
		return nil
	}

	var out []*PatrolPoint
	for _, obj := range r.tree.SearchIntersect(bb) {
		p := obj.(*PatrolPoint)
		if common.Distance(p.position, center) <= radius {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.seq[out[i]] < r.seq[out[j]] })
	return out
}
