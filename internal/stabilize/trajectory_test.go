package stabilize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/steadyshot/stabilizer/internal/config"
	"github.com/steadyshot/stabilizer/internal/motion"
)

func TestTrajectoryAccumulates(t *testing.T) {
	tr := newTrajectory()
	tr.advance(motion.Transform{DX: 1})
	tr.advance(motion.Transform{DX: 2})
	tr.advance(motion.Transform{DX: 3})

	assert.Equal(t, 3, tr.len())
	assert.InDelta(t, 6.0, tr.current.DX, 1e-12)
}

func TestSmoothedIsWindowMean(t *testing.T) {
	tr := newTrajectory()
	// Positions: 1, 3, 6.
	tr.advance(motion.Transform{DX: 1})
	tr.advance(motion.Transform{DX: 2})
	tr.advance(motion.Transform{DX: 3})

	// radius 1 → window 3 → mean of positions.
	sm := tr.smoothed(1)
	assert.InDelta(t, (1.0+3.0+6.0)/3.0, sm.DX, 1e-12)

	// radius 0 → window 1 → latest position only.
	sm = tr.smoothed(0)
	assert.InDelta(t, 6.0, sm.DX, 1e-12)
}

func TestCorrectiveOpposesDeviation(t *testing.T) {
	tr := newTrajectory()
	// Steady drift then a sudden jump: correction should pull back.
	for i := 0; i < 10; i++ {
		tr.advance(motion.Transform{DX: 1})
	}
	tr.advance(motion.Transform{DX: 20})

	c := tr.corrective(5, config.DefaultMaxCorrection)
	assert.Negative(t, c.DX, "correction should oppose the jump")
}

func TestCorrectiveCappedAtMaxCorrection(t *testing.T) {
	tr := newTrajectory()
	tr.advance(motion.Transform{DX: 1})
	tr.advance(motion.Transform{DX: 500, DY: 500})

	c := tr.corrective(10, 25)
	assert.LessOrEqual(t, c.Magnitude(), 25.0+1e-9)
}

func TestCorrectiveClampsAngleAndScale(t *testing.T) {
	tr := newTrajectory()
	tr.advance(motion.Transform{Angle: 0.1})
	tr.advance(motion.Transform{Angle: 2.0, LogScale: 1.0})

	c := tr.corrective(10, config.DefaultMaxCorrection)
	assert.LessOrEqual(t, c.Angle, maxCorrectionAngle)
	assert.GreaterOrEqual(t, c.Angle, -maxCorrectionAngle)
	assert.LessOrEqual(t, c.LogScale, maxCorrectionLogScale)
	assert.GreaterOrEqual(t, c.LogScale, -maxCorrectionLogScale)
}

func TestEmptyTrajectoryIsIdentity(t *testing.T) {
	tr := newTrajectory()
	assert.True(t, tr.smoothed(5).IsIdentity())
	assert.True(t, tr.corrective(5, 50).IsIdentity())

	tr.advance(motion.Transform{DX: 4})
	tr.reset()
	assert.Zero(t, tr.len())
	assert.True(t, tr.current.IsIdentity())
}

func TestTrajectoryBounded(t *testing.T) {
	tr := newTrajectory()
	for i := 0; i < 3*config.MaxSmoothingRadius; i++ {
		tr.advance(motion.Transform{DX: 1})
	}
	assert.LessOrEqual(t, tr.len(), 2*config.MaxSmoothingRadius+1)
}

func TestAdaptiveRadius(t *testing.T) {
	assert.Equal(t, 30, adaptiveRadius(30, motion.Static))
	assert.Equal(t, 30, adaptiveRadius(30, motion.SlowMotion))
	assert.Equal(t, 60, adaptiveRadius(30, motion.CameraShake))
	assert.Equal(t, 15, adaptiveRadius(30, motion.FastMotion))
	assert.Equal(t, 15, adaptiveRadius(30, motion.PanZoom))
	assert.Equal(t, 1, adaptiveRadius(1, motion.FastMotion), "floor at 1")
	assert.Equal(t, config.MaxSmoothingRadius, adaptiveRadius(config.MaxSmoothingRadius, motion.CameraShake), "capped")
}
