package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/paulmach/orb"
)

// Camera maps the XZ simulation plane onto screen pixels, north up.
type Camera struct {
	MinX, MaxZ float64
	Zoom       float64
	OffX, OffY float64
}

// FitCamera frames bound inside a width x height viewport with margin pixels
// on every side.
func FitCamera(bound orb.Bound, width, height, margin float64) Camera {
	w := bound.Max.X() - bound.Min.X()
	h := bound.Max.Y() - bound.Min.Y()
	if w <= 0 || h <= 0 {
		return Camera{Zoom: 1}
	}
	zoom := math.Min((width-2*margin)/w, (height-2*margin)/h)
	if zoom <= 0 {
		zoom = 1
	}
	return Camera{
		MinX: bound.Min.X(),
		MaxZ: bound.Max.Y(),
		Zoom: zoom,
		OffX: (width - w*zoom) / 2,
		OffY: (height - h*zoom) / 2,
	}
}

func (c Camera) point(x, z float64) (float64, float64) {
	return c.OffX + (x-c.MinX)*c.Zoom, c.OffY + (c.MaxZ-z)*c.Zoom
}

// ToScreen projects a world position.
func (c Camera) ToScreen(v mgl64.Vec3) (float32, float32) {
	x, y := c.point(v.X(), v.Z())
	return float32(x), float32(y)
}

// Scale converts a world length to pixels.
func (c Camera) Scale(d float64) float32 {
	return float32(d * c.Zoom)
}
