// Command stabilizer drives the stabilization engine from the command line:
// it runs synthetic shake sequences through the full pipeline, manages named
// parameter presets, maintains the motion log schema, and renders session
// reports.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/steadyshot/stabilizer/internal/config"
	"github.com/steadyshot/stabilizer/internal/hostframe"
	"github.com/steadyshot/stabilizer/internal/monitoring"
	"github.com/steadyshot/stabilizer/internal/motionlog"
	"github.com/steadyshot/stabilizer/internal/preset"
	"github.com/steadyshot/stabilizer/internal/report"
	"github.com/steadyshot/stabilizer/internal/stabilize"
)

const defaultDBFile = "motion_log.db"

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runCommand(os.Args[2:])
	case "preset":
		presetCommand(os.Args[2:])
	case "migrate":
		migrateCommand(os.Args[2:])
	case "report":
		reportCommand(os.Args[2:])
	case "help", "-h", "--help":
		printHelp()
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("Video Stabilization Engine")
	fmt.Println()
	fmt.Println("Usage: stabilizer <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run       Run a synthetic shake sequence through the pipeline")
	fmt.Println("  preset    Manage named parameter presets (save/load/list/delete)")
	fmt.Println("  migrate   Manage the motion log schema (up/down/version)")
	fmt.Println("  report    Render an HTML report of a logged session")
	fmt.Println("  help      Show this help message")
	fmt.Println()
	fmt.Println("Run 'stabilizer <command> -h' for command options.")
}

// runCommand processes a synthetic shaky sequence through the stabilizer,
// optionally recording each frame to the motion log.
func runCommand(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	width := fs.Int("width", 640, "Frame width")
	height := fs.Int("height", 480, "Frame height")
	frames := fs.Int("frames", 120, "Number of frames to process")
	shake := fs.Float64("shake", 4.0, "Shake amplitude in pixels")
	paramsFile := fs.String("params", "", "JSON parameter file (optional)")
	presetName := fs.String("preset", "", "Load parameters from a saved preset")
	presetDir := fs.String("preset-dir", "presets", "Preset store directory")
	dbPath := fs.String("db", "", "Record the session to this motion log database")
	note := fs.String("note", "", "Session note stored in the motion log")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)

	monitoring.SetVerbose(*verbose)

	params := config.DefaultParams()
	if *paramsFile != "" {
		pf, err := config.LoadParamsFile(*paramsFile)
		if err != nil {
			log.Fatalf("Failed to load parameter file: %v", err)
		}
		params = pf.Params()
	}
	if *presetName != "" {
		store, err := preset.NewStore(*presetDir)
		if err != nil {
			log.Fatalf("Failed to open preset store: %v", err)
		}
		p, ok := store.Load(*presetName)
		if !ok {
			log.Fatalf("Preset %q not found in %s", *presetName, *presetDir)
		}
		params = p.Params
		log.Printf("Loaded preset %q", *presetName)
	}

	s := stabilize.New()
	if !s.Initialize(*width, *height, params) {
		log.Fatalf("Failed to initialize stabilizer for %dx%d", *width, *height)
	}

	var db *motionlog.DB
	if *dbPath != "" {
		var err error
		db, err = motionlog.OpenDB(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open motion log: %v", err)
		}
		defer db.Close()
		if err := db.MigrateUp(); err != nil {
			log.Fatalf("Failed to migrate motion log: %v", err)
		}
		rec, err := db.NewSession(*width, *height, *note)
		if err != nil {
			log.Fatalf("Failed to create session: %v", err)
		}
		s.SetRecorder(rec)
		log.Printf("Recording session %s", rec.SessionID())
	}

	gen := newShakeSequence(*width, *height, *shake, 7)
	processed := 0
	for i := 0; i < *frames; i++ {
		in := gen.next()
		out := s.ProcessFrame(in)
		if out == nil {
			log.Printf("Frame %d rejected", i)
			continue
		}
		processed++
		hostframe.Release(out)
	}

	log.Printf("Processed %d/%d frames; final motion type: %s", processed, *frames, s.MotionType())
	m := s.Metrics()
	log.Printf("Metrics: mean=%.2fpx var=%.2f hf=%.2f consistency=%.2f over %d transforms",
		m.MeanMagnitude, m.VarianceMagnitude, m.HighFrequencyRatio, m.ConsistencyScore, m.TransformCount)
}

// presetCommand dispatches the preset store operations.
func presetCommand(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: stabilizer preset <save|load|list|delete> [options]")
		os.Exit(1)
	}

	action := args[0]
	fs := flag.NewFlagSet("preset "+action, flag.ExitOnError)
	dir := fs.String("dir", "presets", "Preset store directory")
	name := fs.String("name", "", "Preset name")
	desc := fs.String("desc", "", "Preset description (save only)")
	paramsFile := fs.String("params", "", "JSON parameter file (save only; defaults used when empty)")
	fs.Parse(args[1:])

	store, err := preset.NewStore(*dir)
	if err != nil {
		log.Fatalf("Failed to open preset store: %v", err)
	}

	switch action {
	case "save":
		params := config.DefaultParams()
		if *paramsFile != "" {
			pf, err := config.LoadParamsFile(*paramsFile)
			if err != nil {
				log.Fatalf("Failed to load parameter file: %v", err)
			}
			params = pf.Params()
		}
		if !store.Save(*name, *desc, params) {
			log.Fatalf("Failed to save preset %q", *name)
		}
		log.Printf("Saved preset %q", *name)

	case "load":
		p, ok := store.Load(*name)
		if !ok {
			log.Fatalf("Preset %q not found", *name)
		}
		fmt.Printf("Name:        %s\n", p.Name)
		if p.Description != "" {
			fmt.Printf("Description: %s\n", p.Description)
		}
		fmt.Printf("Smoothing:   %d\n", p.Params.SmoothingRadius)
		fmt.Printf("Correction:  %.1f\n", p.Params.MaxCorrection)
		fmt.Printf("Features:    %d\n", p.Params.FeatureCount)
		fmt.Printf("Edge mode:   %s\n", p.Params.EdgeMode)

	case "list":
		names := store.List()
		if len(names) == 0 {
			fmt.Println("No presets saved.")
			return
		}
		for _, n := range names {
			fmt.Println(n)
		}

	case "delete":
		if !store.Delete(*name) {
			log.Fatalf("Preset %q not found", *name)
		}
		log.Printf("Deleted preset %q", *name)

	default:
		fmt.Printf("Unknown preset action: %s\n", action)
		os.Exit(1)
	}
}

// migrateCommand manages the motion log schema.
func migrateCommand(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: stabilizer migrate <up|down|version> [-db <path>]")
		os.Exit(1)
	}

	action := args[0]
	fs := flag.NewFlagSet("migrate "+action, flag.ExitOnError)
	dbPath := fs.String("db", defaultDBFile, "Path to the motion log database")
	fs.Parse(args[1:])

	db, err := motionlog.OpenDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open motion log: %v", err)
	}
	defer db.Close()

	switch action {
	case "up":
		if err := db.MigrateUp(); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
		log.Println("All migrations applied")
	case "down":
		if err := db.MigrateDown(); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		log.Println("Rolled back one migration")
	case "version":
		version, dirty, err := db.MigrateVersion()
		if err != nil {
			log.Fatalf("Failed to read migration version: %v", err)
		}
		fmt.Printf("Current version: %d (dirty: %v)\n", version, dirty)
	default:
		fmt.Printf("Unknown migrate action: %s\n", action)
		os.Exit(1)
	}
}

// reportCommand renders an HTML report for a logged session.
func reportCommand(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBFile, "Path to the motion log database")
	sessionID := fs.String("session", "", "Session UUID (defaults to the most recent)")
	out := fs.String("out", "session_report.html", "Output HTML file")
	radius := fs.Int("smoothing", config.DefaultSmoothingRadius, "Smoothing radius for the trajectory overlay")
	fs.Parse(args)

	db, err := motionlog.OpenDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open motion log: %v", err)
	}
	defer db.Close()

	id := *sessionID
	if id == "" {
		sessions, err := db.Sessions()
		if err != nil {
			log.Fatalf("Failed to list sessions: %v", err)
		}
		if len(sessions) == 0 {
			log.Fatal("No sessions in the motion log")
		}
		id = sessions[0].ID
		log.Printf("Using most recent session %s", id)
	}

	records, err := db.SessionFrames(id)
	if err != nil {
		log.Fatalf("Failed to load session frames: %v", err)
	}
	if err := report.WriteFile(*out, records, report.Options{
		Title:           fmt.Sprintf("Session %s", id),
		SmoothingRadius: *radius,
	}); err != nil {
		log.Fatalf("Failed to render report: %v", err)
	}
	log.Printf("Wrote %s (%d frames)", *out, len(records))
}
