package common

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Up is the world up axis. Agents rotate and detect on the plane it defines.
var Up = mgl64.Vec3{0, 1, 0}

// Forward is the facing of an unrotated entity.
var Forward = mgl64.Vec3{0, 0, 1}

const epsilon = 1e-6

func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Flatten drops the vertical component of v.
func Flatten(v mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v[0], 0, v[2]}
}

// Distance returns the euclidean distance between a and b.
func Distance(a, b mgl64.Vec3) float64 {
	return b.Sub(a).Len()
}

// Direction returns the normalized vector from -> to. ok is false when the two
// points coincide.
func Direction(from, to mgl64.Vec3) (dir mgl64.Vec3, ok bool) {
	d := to.Sub(from)
	l := d.Len()
	if l < epsilon {
		return mgl64.Vec3{}, false
	}
	return d.Mul(1 / l), true
}

// AngleBetween returns the angle in degrees between a and b measured on the
// horizontal plane. Degenerate inputs yield 0.
func AngleBetween(a, b mgl64.Vec3) float64 {
	fa := Flatten(a)
	fb := Flatten(b)
	la := fa.Len()
	lb := fb.Len()
	if la < epsilon || lb < epsilon {
		return 0
	}
	cos := Clamp(fa.Dot(fb)/(la*lb), -1, 1)
	return mgl64.RadToDeg(math.Acos(cos))
}

// YawQuat builds a rotation about Up that turns Forward into dir projected on
// the horizontal plane.
func YawQuat(dir mgl64.Vec3) mgl64.Quat {
	flat := Flatten(dir)
	if flat.Len() < epsilon {
		return mgl64.QuatIdent()
	}
	yaw := math.Atan2(flat[0], flat[2])
	return mgl64.QuatRotate(yaw, Up)
}

// ForwardOf returns the facing direction encoded by q.
func ForwardOf(q mgl64.Quat) mgl64.Vec3 {
	return q.Rotate(Forward)
}

// Slerp interpolates along the shortest arc from -> to.
func Slerp(from, to mgl64.Quat, t float64) mgl64.Quat {
	t = Clamp01(t)
	if t == 0 {
		return from
	}
	if from.Dot(to) < 0 {
		to = to.Scale(-1)
	}
	return mgl64.QuatSlerp(from, to, t).Normalize()
}
