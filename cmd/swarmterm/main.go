package main

import (
	"flag"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gdamore/tcell/v2"

	"github.com/milk9111/swarm/levels"
	"github.com/milk9111/swarm/prefabs"
	"github.com/milk9111/swarm/sim"
)

func main() {
	levelName := flag.String("level", "", "level name in levels/ (defaults to the config's level)")
	configName := flag.String("config", prefabs.DefaultSwarmSpec, "swarm config in prefabs/")
	seed := flag.Int64("seed", 0, "random seed (0 uses the config's seed)")
	speed := flag.Float64("speed", 1, "simulation speed multiplier")
	flag.Parse()

	// The screen owns stdout; keep logs out of the way.
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "swarmterm", Level: log.WarnLevel})

	spec, err := prefabs.LoadSwarmSpec(*configName)
	if err != nil {
		logger.Fatal(err)
	}
	name := *levelName
	if name == "" {
		name = spec.Level
	}
	lvl, err := levels.Load(name)
	if err != nil {
		logger.Fatal(err)
	}
	world, err := sim.New(lvl, spec, sim.Options{Logger: logger, Seed: *seed})
	if err != nil {
		logger.Fatal(err)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		logger.Fatal(err)
	}
	if err := screen.Init(); err != nil {
		logger.Fatal(err)
	}
	defer screen.Fini()

	if err := loop(screen, world, *speed); err != nil {
		screen.Fini()
		logger.Fatal(err)
	}
}

func loop(screen tcell.Screen, world *sim.World, speed float64) error {
	if speed <= 0 {
		speed = 1
	}
	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(time.Duration(world.DT() / speed * float64(time.Second)))
	defer ticker.Stop()

	paused := false
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case *tcell.EventKey:
				switch {
				case ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q':
					return nil
				case ev.Rune() == ' ':
					paused = !paused
				case ev.Rune() == '.' && paused:
					world.Step()
				}
			case *tcell.EventResize:
				screen.Sync()
			}
		case <-ticker.C:
			if !paused {
				world.Step()
			}
			drawFrame(screen, world.Snapshot(), paused)
			screen.Show()
		}
	}
}
