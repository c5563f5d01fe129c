// Package report renders a logged stabilization session as a self-contained
// HTML page of ECharts visualisations: per-frame motion magnitude, the
// classified motion regime over time, and the raw vs smoothed camera
// trajectory.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/steadyshot/stabilizer/internal/motionlog"
)

// Options controls report rendering.
type Options struct {
	Title           string
	SmoothingRadius int // radius used for the smoothed-trajectory overlay
}

// Render writes the session report for the given frame records to w.
// Returns an error when there is nothing to plot.
func Render(w io.Writer, records []motionlog.FrameRecord, o Options) error {
	if len(records) == 0 {
		return fmt.Errorf("no frame records to report")
	}
	if o.Title == "" {
		o.Title = "Stabilization Session"
	}
	if o.SmoothingRadius <= 0 {
		o.SmoothingRadius = 30
	}

	page := components.NewPage()
	page.PageTitle = o.Title
	page.AddCharts(
		magnitudeChart(records, o),
		motionTypeChart(records, o),
		trajectoryChart(records, o),
	)
	return page.Render(w)
}

// WriteFile renders the report to path.
func WriteFile(path string, records []motionlog.FrameRecord, o Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()
	return Render(f, records, o)
}

func frameAxis(records []motionlog.FrameRecord) []string {
	x := make([]string, len(records))
	for i, rec := range records {
		x[i] = fmt.Sprintf("%d", rec.FrameIndex)
	}
	return x
}

// magnitudeChart plots the estimated and corrective translation magnitudes
// per frame.
func magnitudeChart(records []motionlog.FrameRecord, o Options) components.Charter {
	est := make([]opts.LineData, len(records))
	corr := make([]opts.LineData, len(records))
	for i, rec := range records {
		est[i] = opts.LineData{Value: rec.Estimated.Magnitude()}
		corr[i] = opts.LineData{Value: rec.Corrective.Magnitude()}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Motion Magnitude", Subtitle: fmt.Sprintf("%s — %d frames", o.Title, len(records))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "pixels"}),
	)
	line.SetXAxis(frameAxis(records)).
		AddSeries("estimated", est).
		AddSeries("corrective", corr)
	return line
}

// motionTypeChart plots the classified regime as a step line over the frame
// index, with the regime labels on the value axis.
func motionTypeChart(records []motionlog.FrameRecord, o Options) components.Charter {
	labels := []string{"Static", "Slow Motion", "Fast Motion", "Camera Shake", "Pan/Zoom"}
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}

	data := make([]opts.LineData, len(records))
	for i, rec := range records {
		data[i] = opts.LineData{Value: index[rec.MotionType]}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "300px"}),
		charts.WithTitleOpts(opts.Title{Title: "Motion Regime"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{
			Min:  0,
			Max:  len(labels) - 1,
			Name: "regime",
			AxisLabel: &opts.AxisLabel{
				Show:      opts.Bool(true),
				Formatter: opts.FuncOpts("function (v) { return ['Static','Slow Motion','Fast Motion','Camera Shake','Pan/Zoom'][v] || v; }"),
			},
		}),
	)
	line.SetXAxis(frameAxis(records)).
		AddSeries("regime", data, charts.WithLineChartOpts(opts.LineChart{Step: "end"}))
	return line
}

// trajectoryChart plots the raw cumulative camera path against the smoothed
// path the corrective transform steers toward.
func trajectoryChart(records []motionlog.FrameRecord, o Options) components.Charter {
	raw := motionlog.Trajectory(records)
	smooth := motionlog.Smoothed(raw, o.SmoothingRadius)

	rawX := make([]opts.LineData, len(raw))
	rawY := make([]opts.LineData, len(raw))
	smX := make([]opts.LineData, len(smooth))
	smY := make([]opts.LineData, len(smooth))
	for i := range raw {
		rawX[i] = opts.LineData{Value: raw[i].DX}
		rawY[i] = opts.LineData{Value: raw[i].DY}
		smX[i] = opts.LineData{Value: smooth[i].DX}
		smY[i] = opts.LineData{Value: smooth[i].DY}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Camera Trajectory", Subtitle: fmt.Sprintf("smoothing radius %d", o.SmoothingRadius)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "pixels"}),
	)
	line.SetXAxis(frameAxis(records)).
		AddSeries("raw x", rawX).
		AddSeries("raw y", rawY).
		AddSeries("smoothed x", smX).
		AddSeries("smoothed y", smY)
	return line
}
