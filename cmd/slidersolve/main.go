// Command slidersolve computes the slider displacement for a background and
// piece image and prints the plan.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"slider-solver/internal/acquire"
	"slider-solver/internal/config"
	"slider-solver/internal/cvaccel"
	"slider-solver/internal/raster"
	"slider-solver/internal/solver"
	"slider-solver/internal/version"

	"github.com/joho/godotenv"
)

func main() {
	bgPath := flag.String("bg", "", "Background image with the slot (file or http(s) URL)")
	piecePath := flag.String("piece", "", "Piece overlay image (file or http(s) URL)")
	configPath := flag.String("config", "", "TOML configuration file")
	strategy := flag.String("strategy", "", "correlation, centroid or both (default from config)")
	debugDir := flag.String("debug-dir", "", "Write intermediate masks to this directory")
	baseURL := flag.String("base", "", "Base URL that relative -bg and -piece references resolve against")
	css := flag.Bool("css", false, "-bg and -piece are CSS background-image values, e.g. url(\"https://host/bg.png\")")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get("slidersolve"))
		return
	}
	if *bgPath == "" || *piecePath == "" {
		fmt.Println("Usage: slidersolve -bg <image> -piece <image> [-base url] [-css] [-strategy correlation|centroid|both] [-config file.toml]")
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg, err := config.Resolve(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := cfg.Log.Logger(os.Stderr)
	raster.Workers = cfg.Workers

	params, err := cfg.SolverParams()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build solver parameters: %v\n", err)
		os.Exit(1)
	}
	if *debugDir != "" {
		params.DebugDir = *debugDir
	}

	strategies := []solver.Strategy{params.Strategy}
	switch *strategy {
	case "":
	case "both":
		strategies = []solver.Strategy{solver.StrategyCorrelation, solver.StrategyCentroid}
	default:
		s, err := solver.ParseStrategy(*strategy)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to parse strategy: %v\n", err)
			os.Exit(1)
		}
		strategies = []solver.Strategy{s}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bg, piece, err := load(ctx, *bgPath, *piecePath, *baseURL, *css)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load images: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Background: %dx%d  Piece: %dx%d\n", bg.Width(), bg.Height(), piece.Width(), piece.Height())

	opts := append([]solver.Option{solver.WithLogger(logger)}, cvaccel.SolverOptions(params.Selection)...)
	s, err := solver.New(params, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create solver: %v\n", err)
		os.Exit(1)
	}
	if cvaccel.Enabled {
		fmt.Println("Backend: OpenCV")
	}

	fmt.Printf("\n%-12s %8s %8s %12s %8s\n", "Strategy", "TargetX", "PieceX", "Displacement", "Score")
	failed := false
	for _, st := range strategies {
		plan, err := s.SolveWith(st, bg, piece)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to solve with %s: %v\n", st, err)
			failed = true
			continue
		}
		fmt.Printf("%-12s %8d %8d %12d %8.3f\n", st, plan.TargetX, plan.PieceX, plan.Displacement, plan.Score)
	}
	if failed {
		os.Exit(1)
	}
}

// load reads both images from disk, or fetches them over HTTP when either
// reference is remote.
func load(ctx context.Context, bgRef, pieceRef, base string, css bool) (bg, piece *raster.Image, err error) {
	if base == "" && !css && !isURL(bgRef) && !isURL(pieceRef) {
		if bg, err = raster.Load(bgRef); err != nil {
			return nil, nil, fmt.Errorf("background: %w", err)
		}
		if piece, err = raster.Load(pieceRef); err != nil {
			return nil, nil, fmt.Errorf("piece: %w", err)
		}
		return bg, piece, nil
	}
	src, err := acquire.NewSource(base, bgRef, pieceRef, css, nil)
	if err != nil {
		return nil, nil, err
	}
	return src.Acquire(ctx)
}

func isURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
