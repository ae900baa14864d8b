package main

import (
	"flag"
	"os"

	"github.com/charmbracelet/log"
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/milk9111/swarm/prefabs"
)

func main() {
	debug := flag.Bool("debug", false, "draw physics shapes and agent paths")
	levelName := flag.String("level", "", "level name in levels/ (defaults to the config's level)")
	configName := flag.String("config", prefabs.DefaultSwarmSpec, "swarm config in prefabs/")
	seed := flag.Int64("seed", 0, "random seed (0 uses the config's seed)")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "swarm"})
	if *debug {
		logger.SetLevel(log.DebugLevel)
	}

	game, err := NewGame(*levelName, *configName, *seed, *debug, logger)
	if err != nil {
		logger.Fatal("failed to build world", "err", err)
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(baseWidth, baseHeight)
	ebiten.SetWindowTitle("swarm")
	ebiten.SetTPS(game.TPS())

	if err := ebiten.RunGame(game); err != nil {
		logger.Fatal(err)
	}
}
