// Command slidersim runs the drag controller against a simulated slider
// puzzle and reports each attempt.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"slider-solver/internal/config"
	"slider-solver/internal/cvaccel"
	"slider-solver/internal/drag"
	"slider-solver/internal/raster"
	"slider-solver/internal/report"
	"slider-solver/internal/sim"
	"slider-solver/internal/solver"
	"slider-solver/internal/version"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "", "TOML configuration file")
	slotX := flag.Int("slot-x", 220, "Slot center X")
	pieceX := flag.Int("piece-x", 30, "Piece center X")
	radius := flag.Int("radius", 20, "Piece radius")
	tolerance := flag.Float64("tolerance", 3, "Accepted distance from the slot in pixels")
	rejects := flag.Int("rejects", 0, "Reject this many correct releases first")
	saveDir := flag.String("save", "", "Save the rendered background and piece to this directory")
	reportPath := flag.String("report", "", "Write a JSON run report to this file")
	writeConfig := flag.Bool("write-config", false, "Print the effective configuration as TOML and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get("slidersim"))
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Resolve(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *writeConfig {
		if err := config.Write(os.Stdout, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write configuration: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logger := cfg.Log.Logger(os.Stderr)
	raster.Workers = cfg.Workers

	scene := sim.DefaultScene()
	scene.Slot.X = *slotX
	scene.Piece.X = *pieceX
	scene.Radius = *radius

	if *saveDir != "" {
		bg, piece := scene.Render()
		for name, img := range map[string]*raster.Image{"background.png": bg, "piece.png": piece} {
			if err := img.Save(filepath.Join(*saveDir, name)); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to save %s: %v\n", name, err)
				os.Exit(1)
			}
		}
	}

	dragParams, err := cfg.DragParams()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build drag parameters: %v\n", err)
		os.Exit(1)
	}
	page := sim.NewPage(scene,
		sim.WithTolerance(*tolerance),
		sim.WithRejects(*rejects),
		sim.WithSelectors(dragParams.HandleSelector, dragParams.SuccessSelector))

	solverParams, err := cfg.SolverParams()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build solver parameters: %v\n", err)
		os.Exit(1)
	}
	opts := append([]solver.Option{solver.WithLogger(logger)}, cvaccel.SolverOptions(solverParams.Selection)...)
	s, err := solver.New(solverParams, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create solver: %v\n", err)
		os.Exit(1)
	}

	rep := report.New("slidersim", dragParams, cfg.RetryPolicy())

	c, err := drag.NewController(page, drag.Interpolate(page, cfg.Drag.StepDelay.Duration), page, s,
		drag.WithParams(dragParams),
		drag.WithRetryPolicy(cfg.RetryPolicy()),
		drag.WithLogger(logger),
		drag.OnTransition(func(attempt int, from, to drag.State) {
			rep.Observe(attempt, from, to)
			if to == drag.StateFailed || to == drag.StateVerified {
				fmt.Printf("Attempt %d: %s -> %s\n", attempt, from, to)
			}
		}))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create controller: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Scene: %dx%d, slot at %d, piece at %d (distance %d)\n",
		scene.Width, scene.Height, scene.Slot.X, scene.Piece.X, scene.Distance())
	out, err := c.Run(ctx)
	rep.Finish(out, err)
	if *reportPath != "" {
		if err := rep.Save(*reportPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save report: %v\n", err)
		}
	}
	last := out.Last
	fmt.Printf("\nAttempts:     %d\n", out.Attempts)
	fmt.Printf("Displacement: %d (%s, score %.3f)\n", last.Plan.Displacement, last.Plan.Strategy, last.Plan.Score)
	if last.Corrected {
		fmt.Printf("Correction:   %+d\n", last.Correction)
	}
	fmt.Printf("Final offset: %.1f (%d pointer events)\n", page.Offset(), len(page.Events()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to solve slider: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Verified")
}
