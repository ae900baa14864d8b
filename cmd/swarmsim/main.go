package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/milk9111/swarm/levels"
	"github.com/milk9111/swarm/prefabs"
	"github.com/milk9111/swarm/sim"
)

type options struct {
	level    string
	config   string
	ticks    int
	seed     int64
	report   int
	realtime bool
	watch    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.level, "level", "", "level name in levels/ (defaults to the config's level)")
	flag.StringVar(&opts.config, "config", prefabs.DefaultSwarmSpec, "swarm config in prefabs/")
	flag.IntVar(&opts.ticks, "ticks", 3600, "ticks to simulate (0 runs until interrupted)")
	flag.Int64Var(&opts.seed, "seed", 0, "random seed (0 uses the config's seed)")
	flag.IntVar(&opts.report, "report", 60, "ticks between state reports")
	flag.BoolVar(&opts.realtime, "realtime", false, "pace ticks at the configured tick rate")
	flag.BoolVar(&opts.watch, "watch", false, "reload role tuning when prefabs/ changes")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "swarmsim"})
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	snap, err := run(ctx, opts, logger)
	if err != nil {
		logger.Fatal(err)
	}
	logger.Info("done", "tick", snap.Tick, "agents", len(snap.Agents), "deaths", snap.Deaths, "states", formatCounts(snap))
}

func build(opts options, logger *log.Logger) (*sim.World, error) {
	spec, err := prefabs.LoadSwarmSpec(opts.config)
	if err != nil {
		return nil, err
	}
	name := opts.level
	if name == "" {
		name = spec.Level
	}
	lvl, err := levels.Load(name)
	if err != nil {
		return nil, err
	}
	return sim.New(lvl, spec, sim.Options{Logger: logger, Seed: opts.seed})
}

func run(ctx context.Context, opts options, logger *log.Logger) (sim.Snapshot, error) {
	world, err := build(opts, logger)
	if err != nil {
		return sim.Snapshot{}, err
	}

	var events <-chan string
	var errs <-chan error
	if opts.watch {
		w, err := prefabs.NewWatcher("prefabs")
		if err != nil {
			return sim.Snapshot{}, fmt.Errorf("watch prefabs: %w", err)
		}
		defer w.Close()
		events, errs = w.Events, w.Errors
	}

	var pace <-chan time.Time
	if opts.realtime {
		t := time.NewTicker(time.Duration(world.DT() * float64(time.Second)))
		defer t.Stop()
		pace = t.C
	}

	for opts.ticks <= 0 || world.Tick() < opts.ticks {
		select {
		case <-ctx.Done():
			return world.Snapshot(), nil
		case path := <-events:
			reload(world, opts.config, path, logger)
		case err := <-errs:
			logger.Warn("watcher error", "err", err)
		default:
		}
		if pace != nil {
			select {
			case <-ctx.Done():
				return world.Snapshot(), nil
			case <-pace:
			}
		}

		world.Step()
		if opts.report > 0 && world.Tick()%opts.report == 0 {
			snap := world.Snapshot()
			logger.Info("tick", "tick", snap.Tick, "time", fmt.Sprintf("%.1fs", snap.Time), "states", formatCounts(snap), "deaths", snap.Deaths)
		}
	}
	return world.Snapshot(), nil
}

func reload(world *sim.World, config, path string, logger *log.Logger) {
	if strings.ToLower(filepath.Ext(path)) == ".tengo" {
		logger.Info("script changed; restart to pick it up", "path", path)
		return
	}
	spec, err := prefabs.LoadSwarmSpec(config)
	if err != nil {
		logger.Error("reload failed", "path", path, "err", err)
		return
	}
	if err := world.ReloadConfig(spec); err != nil {
		logger.Error("reload failed", "path", path, "err", err)
		return
	}
	logger.Info("reloaded role config", "path", path)
}

func formatCounts(snap sim.Snapshot) string {
	counts := snap.Counts()
	parts := make([]string, 0, len(counts))
	for s, n := range counts {
		parts = append(parts, fmt.Sprintf("%s=%d", s, n))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}
