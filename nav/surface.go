package nav

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const DefaultCellSize = 1.0

var ErrEmptySurface = errors.New("nav: walkable area has no cells")

// Surface is a walkable area rasterized into square cells. A cell is open when
// its center lies in the walkable polygon and outside every obstacle.
type Surface struct {
	cell    float64
	origin  orb.Point
	gridW   int
	gridH   int
	blocked []bool
}

type gridPos struct {
	x int
	y int
}

func NewSurface(walkable orb.Polygon, obstacles []orb.Polygon, cellSize float64) (*Surface, error) {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	if len(walkable) == 0 || len(walkable[0]) < 3 {
		return nil, ErrEmptySurface
	}
	bound := walkable.Bound()
	gridW := int(math.Ceil((bound.Max[0] - bound.Min[0]) / cellSize))
	gridH := int(math.Ceil((bound.Max[1] - bound.Min[1]) / cellSize))
	if gridW <= 0 || gridH <= 0 {
		return nil, ErrEmptySurface
	}

	s := &Surface{
		cell:    cellSize,
		origin:  bound.Min,
		gridW:   gridW,
		gridH:   gridH,
		blocked: make([]bool, gridW*gridH),
	}

	open := 0
	for y := 0; y < gridH; y++ {
		for x := 0; x < gridW; x++ {
			c := s.center(gridPos{x: x, y: y})
			pt := orb.Point{c[0], c[2]}
			idx := y*gridW + x
			if !planar.PolygonContains(walkable, pt) {
				s.blocked[idx] = true
				continue
			}
			for _, obstacle := range obstacles {
				if obstacle.Bound().Contains(pt) && planar.PolygonContains(obstacle, pt) {
					s.blocked[idx] = true
					break
				}
			}
			if !s.blocked[idx] {
				open++
			}
		}
	}
	if open == 0 {
		return nil, fmt.Errorf("%w: %dx%d grid fully blocked", ErrEmptySurface, gridW, gridH)
	}
	return s, nil
}

func (s *Surface) CellSize() float64 {
	return s.cell
}

// Bounds returns the min and max corners of the rasterized area.
func (s *Surface) Bounds() (mgl64.Vec3, mgl64.Vec3) {
	min := mgl64.Vec3{s.origin[0], 0, s.origin[1]}
	max := mgl64.Vec3{s.origin[0] + float64(s.gridW)*s.cell, 0, s.origin[1] + float64(s.gridH)*s.cell}
	return min, max
}

func (s *Surface) coord(p mgl64.Vec3) (gridPos, bool) {
	gx := int(math.Floor((p[0] - s.origin[0]) / s.cell))
	gy := int(math.Floor((p[2] - s.origin[1]) / s.cell))
	if gx < 0 || gy < 0 || gx >= s.gridW || gy >= s.gridH {
		return gridPos{}, false
	}
	return gridPos{x: gx, y: gy}, true
}

func (s *Surface) center(g gridPos) mgl64.Vec3 {
	half := s.cell * 0.5
	return mgl64.Vec3{
		s.origin[0] + float64(g.x)*s.cell + half,
		0,
		s.origin[1] + float64(g.y)*s.cell + half,
	}
}

func (s *Surface) open(g gridPos) bool {
	return !s.blocked[g.y*s.gridW+g.x]
}

// Walkable reports whether p falls in an open cell.
func (s *Surface) Walkable(p mgl64.Vec3) bool {
	g, ok := s.coord(p)
	return ok && s.open(g)
}

// Sample projects p onto the nearest walkable position within maxDistance.
func (s *Surface) Sample(p mgl64.Vec3, maxDistance float64) (mgl64.Vec3, bool) {
	flat := mgl64.Vec3{p[0], 0, p[2]}
	if s.Walkable(flat) {
		return flat, true
	}
	best, ok := s.nearestOpen(flat, maxDistance)
	if !ok {
		return mgl64.Vec3{}, false
	}
	return s.center(best), true
}

func (s *Surface) nearestOpen(p mgl64.Vec3, maxDistance float64) (gridPos, bool) {
	if maxDistance <= 0 {
		return gridPos{}, false
	}
	cx := int(math.Floor((p[0] - s.origin[0]) / s.cell))
	cy := int(math.Floor((p[2] - s.origin[1]) / s.cell))
	reach := int(math.Ceil(maxDistance/s.cell)) + 1

	var best gridPos
	bestDist := math.Inf(1)
	for y := cy - reach; y <= cy+reach; y++ {
		if y < 0 || y >= s.gridH {
			continue
		}
		for x := cx - reach; x <= cx+reach; x++ {
			if x < 0 || x >= s.gridW {
				continue
			}
			g := gridPos{x: x, y: y}
			if !s.open(g) {
				continue
			}
			d := s.center(g).Sub(p).Len()
			if d <= maxDistance && d < bestDist {
				best = g
				bestDist = d
			}
		}
	}
	return best, !math.IsInf(bestDist, 1)
}

// clearLine walks from a to b in half-cell steps and reports whether every
// sample is walkable.
func (s *Surface) clearLine(a, b mgl64.Vec3) bool {
	d := b.Sub(a)
	length := d.Len()
	steps := int(math.Ceil(length / (s.cell * 0.5)))
	for i := 0; i <= steps; i++ {
		t := 1.0
		if steps > 0 {
			t = float64(i) / float64(steps)
		}
		if !s.Walkable(a.Add(d.Mul(t))) {
			return false
		}
	}
	return true
}
