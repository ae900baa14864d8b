package render

import (
	"image"
	"image/color"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/paulmach/orb"
	"golang.org/x/image/colornames"

	"github.com/milk9111/swarm/sim"
	"github.com/milk9111/swarm/swarm"
)

const (
	agentRadius  = 0.5
	playerRadius = 0.6
	pointSize    = 6
)

var (
	floorColor    = color.RGBA{R: 0x1e, G: 0x22, B: 0x2a, A: 0xff}
	obstacleColor = color.RGBA{R: 0x55, G: 0x5b, B: 0x66, A: 0xff}
	pathColor     = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0x40}
)

// StateColor is the ring drawn around an agent in the given state.
func StateColor(s swarm.StateID) color.Color {
	switch s {
	case swarm.Chasing:
		return colornames.Yellow
	case swarm.Shooting:
		return colornames.Red
	case swarm.Hiding:
		return colornames.Cornflowerblue
	case swarm.Dead:
		return colornames.Dimgray
	}
	return colornames.Whitesmoke
}

// Options toggles overlay layers.
type Options struct {
	Paths bool
	Sight bool
}

// DrawSnapshot renders snap top-down.
func DrawSnapshot(screen *ebiten.Image, cam Camera, snap sim.Snapshot, opts Options) {
	fillPolygon(screen, cam, snap.Walkable, floorColor)
	for _, ob := range snap.Obstacles {
		fillPolygon(screen, cam, ob, obstacleColor)
	}

	for _, p := range snap.Points {
		x, y := cam.ToScreen(p.Position)
		c := color.Color(colornames.Lightgray)
		switch {
		case p.Assigned:
			c = colornames.Gold
		case p.Visited:
			c = colornames.Gray
		}
		vector.StrokeRect(screen, x-pointSize/2, y-pointSize/2, pointSize, pointSize, 1, c, false)
	}

	for _, a := range snap.Agents {
		if opts.Paths && len(a.Path) > 0 {
			drawPolyline(screen, cam, append([]mgl64.Vec3{a.Position}, a.Path...), pathColor)
		}
		if opts.Sight && a.LineOfSight && snap.Player != nil {
			strokeLine(screen, cam, a.Position, snap.Player.Position, colornames.Orangered)
		}
		drawAgent(screen, cam, a)
	}

	if snap.ThreatActive {
		x, y := cam.ToScreen(snap.Threat)
		r := cam.Scale(1)
		vector.StrokeLine(screen, x-r, y-r, x+r, y+r, 2, colornames.Orange, true)
		vector.StrokeLine(screen, x-r, y+r, x+r, y-r, 2, colornames.Orange, true)
	}

	if pl := snap.Player; pl != nil {
		x, y := cam.ToScreen(pl.Position)
		c := pl.Color
		if c == nil || !pl.Alive {
			c = colornames.Dimgray
		}
		vector.DrawFilledCircle(screen, x, y, cam.Scale(playerRadius), c, true)
		drawBar(screen, x, y-cam.Scale(playerRadius)-6, cam.Scale(1.4), ratio(pl.Health, pl.HealthMax), colornames.Limegreen)
	}
}

func drawAgent(screen *ebiten.Image, cam Camera, a sim.AgentView) {
	x, y := cam.ToScreen(a.Position)
	r := cam.Scale(agentRadius)
	c := a.Color
	if c == nil {
		c = colornames.White
	}
	vector.DrawFilledCircle(screen, x, y, r, c, true)
	vector.StrokeCircle(screen, x, y, r+1, 2, StateColor(a.State), true)
	tip := a.Position.Add(a.Forward.Mul(agentRadius * 2))
	tx, ty := cam.ToScreen(tip)
	vector.StrokeLine(screen, x, y, tx, ty, 2, colornames.White, true)
	drawBar(screen, x, y-r-6, r*2, ratio(a.Health, a.HealthMax), colornames.Limegreen)
	drawBar(screen, x, y-r-10, r*2, ratio(a.Fear, a.FearMax), colornames.Mediumpurple)
}

func drawBar(screen *ebiten.Image, cx, y, width float32, fill float64, c color.Color) {
	left := cx - width/2
	vector.FillRect(screen, left, y, width, 2, color.RGBA{A: 0xa0}, false)
	vector.FillRect(screen, left, y, width*float32(fill), 2, c, false)
}

func ratio(v, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	r := v / limit
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

func strokeLine(screen *ebiten.Image, cam Camera, a, b mgl64.Vec3, c color.Color) {
	x1, y1 := cam.ToScreen(a)
	x2, y2 := cam.ToScreen(b)
	vector.StrokeLine(screen, x1, y1, x2, y2, 1, c, true)
}

func drawPolyline(screen *ebiten.Image, cam Camera, pts []mgl64.Vec3, c color.Color) {
	for i := 1; i < len(pts); i++ {
		strokeLine(screen, cam, pts[i-1], pts[i], c)
	}
}

func fillPolygon(screen *ebiten.Image, cam Camera, poly orb.Polygon, c color.Color) {
	if len(poly) == 0 || len(poly[0]) < 3 {
		return
	}
	var path vector.Path
	for i, pt := range poly[0] {
		x, y := cam.point(pt.X(), pt.Y())
		if i == 0 {
			path.MoveTo(float32(x), float32(y))
			continue
		}
		path.LineTo(float32(x), float32(y))
	}
	path.Close()
	vs, is := path.AppendVerticesAndIndicesForFilling(nil, nil)
	r, g, b, a := c.RGBA()
	for i := range vs {
		vs[i].SrcX, vs[i].SrcY = 1, 1
		vs[i].ColorR = float32(r) / 0xffff
		vs[i].ColorG = float32(g) / 0xffff
		vs[i].ColorB = float32(b) / 0xffff
		vs[i].ColorA = float32(a) / 0xffff
	}
	op := &ebiten.DrawTrianglesOptions{AntiAlias: true}
	screen.DrawTriangles(vs, is, solidImage(), op)
}

var solid *ebiten.Image

func solidImage() *ebiten.Image {
	if solid == nil {
		img := ebiten.NewImage(3, 3)
		img.Fill(color.White)
		solid = img.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)
	}
	return solid
}
