package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/imprevi/clipgen/cmd"
	"github.com/imprevi/clipgen/config"
	"github.com/imprevi/clipgen/logging"
	"github.com/imprevi/clipgen/media"
	"github.com/imprevi/clipgen/services"
	"github.com/imprevi/clipgen/types"
)

func main() {
	var (
		server      bool
		port        int
		input       string
		sensitivity float64
		duration    float64
		maxClips    int
		verbose     bool
	)

	defaults := types.DefaultParameters()
	flag.BoolVar(&server, "server", false, "Start in web server mode")
	flag.IntVar(&port, "port", 0, "Port for web server mode (overrides config)")
	flag.StringVar(&input, "input", "", "Local video file to process")
	flag.Float64Var(&sensitivity, "sensitivity", defaults.Sensitivity, "Peak detection sensitivity in (0, 1]")
	flag.Float64Var(&duration, "duration", defaults.TargetClipDuration, "Target clip duration in seconds")
	flag.IntVar(&maxClips, "max-clips", defaults.MaxClips, "Maximum number of clips to generate")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.Parse()

	logging.Init(verbose)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if port != 0 {
		cfg.Port = port
	}
	if verbose {
		cfg.Verbose = true
	}

	// Server mode takes precedence.
	if server {
		if err := cmd.StartWebServer(cfg); err != nil {
			log.Fatal().Err(err).Msg("server exited")
		}
		return
	}

	if input == "" {
		flag.Usage()
		return
	}

	params := types.Parameters{
		Sensitivity:        sensitivity,
		TargetClipDuration: duration,
		MaxClips:           maxClips,
	}
	if err := runLocal(cfg, input, params); err != nil {
		log.Fatal().Err(err).Msg("processing failed")
	}
}

// runLocal processes one file through the same pipeline the server uses,
// reporting progress on the terminal instead of over WebSocket.
func runLocal(cfg *config.Config, input string, params types.Parameters) error {
	path, err := filepath.Abs(input)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("input file not found: %s", input)
	}

	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	engine, err := media.NewExecutor(logging.WithComponent("ffmpeg"))
	if err != nil {
		return err
	}

	// One worker, no persistence, no hub: a single synchronous run.
	cfg.Workers = 1
	registry := services.NewRegistry("", nil)
	manager := services.NewManager(cfg, registry, engine, nil)
	manager.Start()
	defer manager.Stop()

	job, err := manager.Submit(types.JobSource{Type: types.SourceUpload, Path: path}, params)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("processing"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	for {
		time.Sleep(200 * time.Millisecond)
		current, ok := manager.Get(job.ID)
		if !ok {
			return fmt.Errorf("job disappeared from the registry")
		}

		bar.Describe(current.Phase)
		bar.Set(current.Progress)

		if !current.Status.Terminal() {
			continue
		}
		bar.Finish()

		if current.Status == types.JobStatusFailed {
			return fmt.Errorf("%s", current.Error.Message)
		}

		printResults(current)
		return nil
	}
}

func printResults(job *types.Job) {
	r := job.Results
	if s := r.Summary; s != nil {
		fmt.Printf("Source: %.1fs", s.Duration)
		if s.Title != "" {
			fmt.Printf(" (%s)", s.Title)
		}
		fmt.Printf(", %d peaks found\n", s.PeaksFound)
		if s.RenderFailures > 0 {
			fmt.Printf("Warning: %d clips failed to render\n", s.RenderFailures)
		}
	}

	if len(r.ClipFiles) == 0 {
		fmt.Println("No clips generated.")
		return
	}
	fmt.Printf("Generated %d clips:\n", len(r.ClipFiles))
	for i, name := range r.ClipFiles {
		fmt.Printf("  %s (peak at %.0fs)\n", name, r.ClipTimestamps[i])
	}
}
