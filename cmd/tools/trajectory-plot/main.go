// Command trajectory-plot renders the raw vs smoothed camera trajectory of a
// logged stabilization session as a PNG, for offline tuning of the smoothing
// radius.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/steadyshot/stabilizer/internal/config"
	"github.com/steadyshot/stabilizer/internal/motion"
	"github.com/steadyshot/stabilizer/internal/motionlog"
)

func main() {
	dbPath := flag.String("db", "motion_log.db", "Path to the motion log database")
	sessionID := flag.String("session", "", "Session UUID (defaults to the most recent)")
	out := flag.String("out", "trajectory.png", "Output PNG file")
	radius := flag.Int("smoothing", config.DefaultSmoothingRadius, "Smoothing radius for the overlay")
	axis := flag.String("axis", "x", "Trajectory axis to plot: x or y")
	flag.Parse()

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
	if len(records) == 0 {
		log.Fatalf("Session %s has no frames", id)
	}

	raw := motionlog.Trajectory(records)
	smooth := motionlog.Smoothed(raw, *radius)

	component := func(t motion.Transform) float64 { return t.DX }
	if *axis == "y" {
		component = func(t motion.Transform) float64 { return t.DY }
	}

	rawPts := make(plotter.XYs, len(raw))
	smoothPts := make(plotter.XYs, len(smooth))
	for i := range raw {
		x := float64(records[i].FrameIndex)
		rawPts[i] = plotter.XY{X: x, Y: component(raw[i])}
		smoothPts[i] = plotter.XY{X: x, Y: component(smooth[i])}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Camera Trajectory (%s axis, radius %d)", *axis, *radius)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Position (px)"

	rawLine, err := plotter.NewLine(rawPts)
	if err != nil {
		log.Fatalf("Failed to build raw line: %v", err)
	}
	rawLine.Color = color.RGBA{R: 200, G: 60, B: 60, A: 255}
	rawLine.Width = vg.Points(1)
	p.Add(rawLine)
	p.Legend.Add("raw", rawLine)

	smoothLine, err := plotter.NewLine(smoothPts)
	if err != nil {
		log.Fatalf("Failed to build smoothed line: %v", err)
	}
	smoothLine.Color = color.RGBA{R: 60, G: 60, B: 200, A: 255}
	smoothLine.Width = vg.Points(2)
	p.Add(smoothLine)
	p.Legend.Add("smoothed", smoothLine)

	if err := p.Save(10*vg.Inch, 5*vg.Inch, *out); err != nil {
		log.Fatalf("Failed to save plot: %v", err)
	}
	log.Printf("Wrote %s (%d frames)", *out, len(records))
}
