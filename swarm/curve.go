package swarm

import "sort"

type Keyframe struct {
	Time  float64
	Value float64
}

// Curve is a piecewise-linear response curve. Inputs outside the keyframe range
// hold the nearest end value. An empty curve is the identity.
type Curve struct {
	Keys []Keyframe
}

func NewCurve(keys ...Keyframe) Curve {
	sorted := append([]Keyframe(nil), keys...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	return Curve{Keys: sorted}
}

// LinearCurve maps [0,1] onto itself.
func LinearCurve() Curve {
	return NewCurve(Keyframe{0, 0}, Keyframe{1, 1})
}

func (c Curve) Evaluate(t float64) float64 {
	if len(c.Keys) == 0 {
		return t
	}
	first := c.Keys[0]
	if t <= first.Time {
		return first.Value
	}
	last := c.Keys[len(c.Keys)-1]
	if t >= last.Time {
		return last.Value
	}
	i := sort.Search(len(c.Keys), func(i int) bool { return c.Keys[i].Time >= t })
	a := c.Keys[i-1]
	b := c.Keys[i]
	span := b.Time - a.Time
	if span <= 0 {
		return b.Value
	}
	return a.Value + (t-a.Time)/span*(b.Value-a.Value)
}
