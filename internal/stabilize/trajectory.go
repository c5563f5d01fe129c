package stabilize

import (
	"github.com/steadyshot/stabilizer/internal/config"
	"github.com/steadyshot/stabilizer/internal/motion"
)

// Corrective-transform caps on the non-translational components. Translation
// is capped by the configured MaxCorrection; rotation and scale corrections
// beyond these bounds would visibly distort the frame, so they are clamped
// at fixed limits.
const (
	maxCorrectionAngle    = 0.35 // radians
	maxCorrectionLogScale = 0.25
)

// trajectory accumulates the camera path as the running sum of per-frame
// transforms and derives the corrective transform as the difference between
// the low-pass-filtered path and the raw path at the current step.
type trajectory struct {
	positions []motion.Transform // cumulative camera positions, oldest first
	current   motion.Transform   // running sum
	bound     int                // retained history length
}

func newTrajectory() *trajectory {
	bound := 2*config.MaxSmoothingRadius + 1
	return &trajectory{
		positions: make([]motion.Transform, 0, bound),
		bound:     bound,
	}
}

// advance appends the next per-frame transform to the accumulated path.
func (tr *trajectory) advance(step motion.Transform) {
	tr.current = tr.current.Add(step)
	tr.positions = append(tr.positions, tr.current)
	if len(tr.positions) > tr.bound {
		tr.positions = tr.positions[len(tr.positions)-tr.bound:]
	}
}

// reset clears the accumulated path.
func (tr *trajectory) reset() {
	tr.positions = tr.positions[:0]
	tr.current = motion.Identity()
}

// len returns the number of accumulated positions.
func (tr *trajectory) len() int {
	return len(tr.positions)
}

// smoothed returns the boxcar mean of the most recent window of positions.
// The window is 2·radius+1 entries, truncated to the available history —
// a causal low pass: only past positions exist in a real-time stream.
func (tr *trajectory) smoothed(radius int) motion.Transform {
	if len(tr.positions) == 0 {
		return motion.Identity()
	}
	span := 2*radius + 1
	if span > len(tr.positions) {
		span = len(tr.positions)
	}
	var sum motion.Transform
	for _, p := range tr.positions[len(tr.positions)-span:] {
		sum = sum.Add(p)
	}
	return sum.Scale(1 / float64(span))
}

// corrective returns the capped corrective transform for the current step:
// the deviation of the smoothed path from the raw path, with translation
// magnitude limited to maxCorrection and rotation/scale clamped.
func (tr *trajectory) corrective(radius int, maxCorrection float64) motion.Transform {
	if len(tr.positions) == 0 {
		return motion.Identity()
	}
	c := tr.smoothed(radius).Sub(tr.current)

	if mag := c.Magnitude(); mag > maxCorrection {
		scale := maxCorrection / mag
		c.DX *= scale
		c.DY *= scale
	}
	c.Angle = clamp(c.Angle, -maxCorrectionAngle, maxCorrectionAngle)
	c.LogScale = clamp(c.LogScale, -maxCorrectionLogScale, maxCorrectionLogScale)
	return c
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// adaptiveRadius adjusts the configured smoothing radius to the classified
// motion regime: shake wants a wider low pass, deliberate fast motion and
// pan/zoom want a narrower one so intended motion is preserved.
func adaptiveRadius(base int, t motion.Type) int {
	switch t {
	case motion.CameraShake:
		r := base * 2
		if r > config.MaxSmoothingRadius {
			r = config.MaxSmoothingRadius
		}
		return r
	case motion.FastMotion, motion.PanZoom:
		r := base / 2
		if r < 1 {
			r = 1
		}
		return r
	default:
		return base
	}
}
