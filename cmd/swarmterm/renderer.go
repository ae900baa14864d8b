package main

import (
	"fmt"
	"math"
	"sort"

	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/mattn/go-runewidth"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/milk9111/swarm/sim"
	"github.com/milk9111/swarm/swarm"
)

// hudRows is reserved at the bottom of the screen.
const hudRows = 2

// Terminal cells are about twice as tall as they are wide.
const cellAspect = 2.0

type grid struct {
	minX, maxZ float64
	scale      float64
	cols, rows int
}

func newGrid(bound orb.Bound, cols, rows int) grid {
	g := grid{minX: bound.Min.X(), maxZ: bound.Max.Y(), cols: cols, rows: rows}
	w := bound.Max.X() - bound.Min.X()
	h := bound.Max.Y() - bound.Min.Y()
	if w <= 0 || h <= 0 || cols <= 0 || rows <= 0 {
		g.scale = 1
		return g
	}
	g.scale = math.Min(float64(cols)/(w*cellAspect), float64(rows)/h)
	return g
}

func (g grid) cell(p mgl64.Vec3) (int, int, bool) {
	x := int(math.Floor((p.X() - g.minX) * g.scale * cellAspect))
	y := int(math.Floor((g.maxZ - p.Z()) * g.scale))
	return x, y, x >= 0 && y >= 0 && x < g.cols && y < g.rows
}

func (g grid) center(x, y int) orb.Point {
	return orb.Point{
		g.minX + (float64(x)+0.5)/(g.scale*cellAspect),
		g.maxZ - (float64(y)+0.5)/g.scale,
	}
}

var (
	floorStyle    = tcell.StyleDefault.Foreground(tcell.ColorDarkSlateGray)
	obstacleStyle = tcell.StyleDefault.Foreground(tcell.ColorGray)
	pointStyle    = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	claimedStyle  = tcell.StyleDefault.Foreground(tcell.ColorGold)
	threatStyle   = tcell.StyleDefault.Foreground(tcell.ColorOrange).Bold(true)
	playerStyle   = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	hudStyle      = tcell.StyleDefault.Foreground(tcell.ColorWhite)
)

func roleGlyph(r swarm.Role) rune {
	switch r {
	case swarm.Scout:
		return 'S'
	case swarm.Defender:
		return 'D'
	}
	return 'W'
}

func stateStyle(s swarm.StateID) tcell.Style {
	st := tcell.StyleDefault.Bold(true)
	switch s {
	case swarm.Chasing:
		return st.Foreground(tcell.ColorYellow)
	case swarm.Shooting:
		return st.Foreground(tcell.ColorRed)
	case swarm.Hiding:
		return st.Foreground(tcell.ColorCornflowerBlue)
	case swarm.Dead:
		return st.Foreground(tcell.ColorDimGray)
	}
	return st.Foreground(tcell.ColorGreen)
}

// drawFrame renders snap onto screen. paused is shown in the HUD.
func drawFrame(screen tcell.Screen, snap sim.Snapshot, paused bool) {
	screen.Clear()
	w, h := screen.Size()
	g := newGrid(snap.Walkable.Bound(), w, h-hudRows)

	for y := 0; y < g.rows; y++ {
		for x := 0; x < g.cols; x++ {
			pt := g.center(x, y)
			if !planar.PolygonContains(snap.Walkable, pt) {
				continue
			}
			r, st := '·', floorStyle
			for _, ob := range snap.Obstacles {
				if planar.PolygonContains(ob, pt) {
					r, st = '#', obstacleStyle
					break
				}
			}
			screen.SetContent(x, y, r, nil, st)
		}
	}

	for _, p := range snap.Points {
		if x, y, ok := g.cell(p.Position); ok {
			st := pointStyle
			if p.Assigned {
				st = claimedStyle
			}
			screen.SetContent(x, y, '+', nil, st)
		}
	}
	if snap.ThreatActive {
		if x, y, ok := g.cell(snap.Threat); ok {
			screen.SetContent(x, y, 'X', nil, threatStyle)
		}
	}
	for _, a := range snap.Agents {
		if x, y, ok := g.cell(a.Position); ok {
			screen.SetContent(x, y, roleGlyph(a.Role), nil, stateStyle(a.State))
		}
	}
	if pl := snap.Player; pl != nil {
		if x, y, ok := g.cell(pl.Position); ok {
			st := playerStyle
			if !pl.Alive {
				st = st.Foreground(tcell.ColorDimGray)
			}
			screen.SetContent(x, y, '@', nil, st)
		}
	}

	status := fmt.Sprintf("tick %d  %.1fs  agents %d  deaths %d", snap.Tick, snap.Time, len(snap.Agents), snap.Deaths)
	if pl := snap.Player; pl != nil {
		status += fmt.Sprintf("  player %.0f/%.0f", pl.Health, pl.HealthMax)
	}
	if paused {
		status += "  [paused]"
	}
	putText(screen, 0, h-2, status, hudStyle)
	putText(screen, 0, h-1, countsLine(snap), hudStyle)
}

func countsLine(snap sim.Snapshot) string {
	counts := snap.Counts()
	states := make([]string, 0, len(counts))
	for s := range counts {
		states = append(states, string(s))
	}
	sort.Strings(states)
	line := ""
	for _, s := range states {
		line += fmt.Sprintf("%s:%d ", s, counts[swarm.StateID(s)])
	}
	return line
}

// putText writes s from (x, y), clipping at the right edge.
func putText(screen tcell.Screen, x, y int, s string, st tcell.Style) {
	sw, _ := screen.Size()
	for _, r := range s {
		rw := runewidth.RuneWidth(r)
		if x+rw > sw {
			break
		}
		screen.SetContent(x, y, r, nil, st)
		x += rw
	}
}
