package main

import (
	"fmt"
	"image/color"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/milk9111/swarm/levels"
	"github.com/milk9111/swarm/prefabs"
	"github.com/milk9111/swarm/render"
	"github.com/milk9111/swarm/sim"
)

const (
	baseWidth  = 1280
	baseHeight = 720
	viewMargin = 40
)

type Game struct {
	frames int

	world  *sim.World
	cam    render.Camera
	debug  bool
	paused bool
	opts   render.Options
}

func NewGame(levelName, configName string, seed int64, debug bool, logger *log.Logger) (*Game, error) {
	spec, err := prefabs.LoadSwarmSpec(configName)
	if err != nil {
		return nil, err
	}
	if levelName == "" {
		levelName = spec.Level
	}
	lvl, err := levels.Load(levelName)
	if err != nil {
		return nil, err
	}
	world, err := sim.New(lvl, spec, sim.Options{Logger: logger, Seed: seed})
	if err != nil {
		return nil, err
	}
	return &Game{
		world: world,
		cam:   render.FitCamera(lvl.Bounds(), baseWidth, baseHeight, viewMargin),
		debug: debug,
		opts:  render.Options{Paths: debug, Sight: true},
	}, nil
}

// TPS is the tick rate the world was built for.
func (g *Game) TPS() int {
	return int(math.Round(1 / g.world.DT()))
}

func (g *Game) Update() error {
	g.frames++

	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.paused = !g.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		g.opts.Paths = !g.opts.Paths
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF1) {
		g.debug = !g.debug
	}
	if g.paused && !inpututil.IsKeyJustPressed(ebiten.KeyPeriod) {
		return nil
	}
	g.world.Step()
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(color.Black)

	snap := g.world.Snapshot()
	render.DrawSnapshot(screen, g.cam, snap, g.opts)
	if g.debug {
		render.DrawPhysicsDebug(g.world.Physics().Space(), g.cam, screen)
	}

	ebitenutil.DebugPrint(screen, g.status(snap))
}

func (g *Game) status(snap sim.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tick: %d  Time: %.1fs  FPS: %.2f", snap.Tick, snap.Time, ebiten.ActualFPS())
	if g.paused {
		b.WriteString("  [paused]")
	}
	fmt.Fprintf(&b, "\nAgents: %d  Deaths: %d", len(snap.Agents), snap.Deaths)
	counts := snap.Counts()
	states := make([]string, 0, len(counts))
	for s, n := range counts {
		states = append(states, fmt.Sprintf("%s=%d", s, n))
	}
	sort.Strings(states)
	if len(states) > 0 {
		fmt.Fprintf(&b, "\n%s", strings.Join(states, " "))
	}
	if pl := snap.Player; pl != nil {
		fmt.Fprintf(&b, "\nPlayer: %.0f/%.0f", pl.Health, pl.HealthMax)
	}
	return b.String()
}

func (g *Game) LayoutF(outsideWidth, outsideHeight float64) (float64, float64) {
	return baseWidth, baseHeight
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	panic("shouldn't use Layout")
}
