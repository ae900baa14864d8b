package physics

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/jakecoffman/cp"
	"github.com/paulmach/orb"
)

// Layer bits used as shape categories. Sight queries pass a mask of the layers
// that block vision.
const (
	LayerDefault  uint = 1 << 0
	LayerObstacle uint = 1 << 1
	LayerCover    uint = 1 << 2
)

const defaultWallRadius = 0.05

// World is the static collision geometry of a level. The simulation plane is
// XZ; cp's Y axis carries world Z.
type World struct {
	space  *cp.Space
	shapes []*cp.Shape
}

func NewWorld() *World {
	space := cp.NewSpace()
	space.SetGravity(cp.Vector{})
	return &World{space: space}
}

func toCP(v mgl64.Vec3) cp.Vector {
	return cp.Vector{X: v[0], Y: v[2]}
}

func fromCP(v cp.Vector) mgl64.Vec3 {
	return mgl64.Vec3{v.X, 0, v.Y}
}

func (w *World) add(shape *cp.Shape, layer uint) *cp.Shape {
	if layer == 0 {
		layer = LayerDefault
	}
	shape.SetFilter(cp.NewShapeFilter(cp.NO_GROUP, layer, cp.ALL_CATEGORIES))
	shape.SetFriction(0.8)
	w.space.AddShape(shape)
	w.shapes = append(w.shapes, shape)
	return shape
}

// AddBox adds an axis-aligned block spanning min..max on the XZ plane.
func (w *World) AddBox(min, max mgl64.Vec3, layer uint) *cp.Shape {
	bb := cp.BB{L: min[0], B: min[2], R: max[0], T: max[2]}
	if bb.L > bb.R {
		bb.L, bb.R = bb.R, bb.L
	}
	if bb.B > bb.T {
		bb.B, bb.T = bb.T, bb.B
	}
	return w.add(cp.NewBox2(w.space.StaticBody, bb, 0), layer)
}

// AddWall adds a thick segment from a to b.
func (w *World) AddWall(a, b mgl64.Vec3, thickness float64, layer uint) *cp.Shape {
	if thickness <= 0 {
		thickness = defaultWallRadius
	}
	return w.add(cp.NewSegment(w.space.StaticBody, toCP(a), toCP(b), thickness), layer)
}

// AddPolygon outlines every ring of poly with wall segments.
func (w *World) AddPolygon(poly orb.Polygon, layer uint) []*cp.Shape {
	var out []*cp.Shape
	for _, ring := range poly {
		for i := 0; i+1 < len(ring); i++ {
			a := mgl64.Vec3{ring[i][0], 0, ring[i][1]}
			b := mgl64.Vec3{ring[i+1][0], 0, ring[i+1][1]}
			if a == b {
				continue
			}
			out = append(out, w.AddWall(a, b, defaultWallRadius, layer))
		}
	}
	return out
}

// Raycast returns the first point between from and to touching a shape whose
// layer intersects mask.
func (w *World) Raycast(from, to mgl64.Vec3, mask uint) (mgl64.Vec3, bool) {
	if mask == 0 {
		return mgl64.Vec3{}, false
	}
	filter := cp.NewShapeFilter(cp.NO_GROUP, cp.ALL_CATEGORIES, mask)
	info := w.space.SegmentQueryFirst(toCP(from), toCP(to), 0, filter)
	if info.Shape == nil {
		return mgl64.Vec3{}, false
	}
	return fromCP(info.Point), true
}

// Blocked reports whether any masked obstacle lies between from and to.
func (w *World) Blocked(from, to mgl64.Vec3, mask uint) bool {
	_, hit := w.Raycast(from, to, mask)
	return hit
}

func (w *World) Space() *cp.Space {
	return w.space
}

func (w *World) ShapeCount() int {
	return len(w.shapes)
}
