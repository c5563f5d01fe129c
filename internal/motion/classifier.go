package motion

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// Type classifies the dominant motion regime over a window of transforms.
type Type int

const (
	Static Type = iota
	SlowMotion
	FastMotion
	CameraShake
	PanZoom
)

// String returns the display label for the motion type. The mapping is fixed
// and relied upon by hosts rendering the current regime in their UI.
func (t Type) String() string {
	switch t {
	case Static:
		return "Static"
	case SlowMotion:
		return "Slow Motion"
	case FastMotion:
		return "Fast Motion"
	case CameraShake:
		return "Camera Shake"
	case PanZoom:
		return "Pan/Zoom"
	default:
		return "Static"
	}
}

// Metrics is a derived snapshot of motion statistics over a trajectory
// window. Recomputed on demand, never persisted.
type Metrics struct {
	MeanMagnitude      float64 `json:"mean_magnitude"`      // mean per-frame translation (pixels)
	VarianceMagnitude  float64 `json:"variance_magnitude"`  // variance of per-frame translation
	DirectionalVariance float64 `json:"directional_variance"` // circular variance of motion direction [0,1]
	HighFrequencyRatio float64 `json:"high_frequency_ratio"` // fraction of direction reversals [0,1]
	ConsistencyScore   float64 `json:"consistency_score"`   // directional stability [0,1]
	TransformCount     int     `json:"transform_count"`     // entries actually considered
}

// DefaultWindowSize is the default bound on how many recent transforms the
// classifier inspects.
const DefaultWindowSize = 30

// Classification thresholds at sensitivity 1.0. The sensitivity multiplier
// scales the magnitude thresholds directly; the ratio thresholds are scale
// free and stay fixed. Exact values are tunable — the contract is the
// regime ordering, not the numbers.
const (
	fastMagnitudeThreshold  = 8.0  // pixels/frame: above this motion is "large"
	shakeMagnitudeThreshold = 2.0  // pixels/frame: above this shake is considered
	slowMagnitudeThreshold  = 0.5  // pixels/frame: above this motion is deliberate
	lowFrequencyCeiling     = 0.3  // below: smooth, intended motion
	highFrequencyFloor      = 0.4  // above: oscillatory motion
	lowConsistencyCeiling   = 0.5  // below: directionally unstable
	panZoomAngleEps         = 3e-3 // radians/frame of rotation implying pan/zoom intent
	panZoomScaleEps         = 3e-3 // log-scale/frame implying zoom intent
	movingEps               = 1e-6 // below this a vector has no usable direction
)

// Classifier derives a motion regime from a window of recent transforms.
// Its mutable state — current type, sensitivity multiplier and the last
// computed metrics — is only ever modified through Classify and
// CalculateMetrics; history is passed in explicitly by the caller.
type Classifier struct {
	mu          sync.RWMutex
	current     Type
	sensitivity float64
	lastMetrics Metrics
	windowSize  int
}

// NewClassifier creates a classifier inspecting at most windowSize recent
// transforms (DefaultWindowSize if non-positive). The initial type is Static
// and the initial sensitivity is 1.0.
func NewClassifier(windowSize int) *Classifier {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Classifier{
		current:     Static,
		sensitivity: 1.0,
		windowSize:  windowSize,
	}
}

// SetSensitivity sets the multiplicative scale applied to the magnitude
// thresholds. The value is stored as given, unclamped.
func (c *Classifier) SetSensitivity(s float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sensitivity = s
}

// GetSensitivity returns the current sensitivity multiplier.
func (c *Classifier) GetSensitivity() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sensitivity
}

// Current returns the most recently classified motion type.
func (c *Classifier) Current() Type {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// LastMetrics returns the metrics computed by the most recent Classify or
// CalculateMetrics call.
func (c *Classifier) LastMetrics() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastMetrics
}

// WindowSize returns the configured window bound.
func (c *Classifier) WindowSize() int {
	return c.windowSize
}

// CalculateMetrics computes motion statistics over the most recent
// windowSize entries of the given history and stores them as the last
// metrics. An empty or all-identity window yields zero magnitudes.
func (c *Classifier) CalculateMetrics(window []Transform) Metrics {
	m := computeMetrics(truncate(window, c.windowSize))
	c.mu.Lock()
	c.lastMetrics = m
	c.mu.Unlock()
	return m
}

// Classify derives the motion regime from the window and updates the stored
// current type and metrics. Rules are applied in priority order: large
// smooth motion first (fast motion or pan/zoom), then oscillatory shake,
// then moderate deliberate motion, then static.
func (c *Classifier) Classify(window []Transform) Type {
	recent := truncate(window, c.windowSize)
	m := computeMetrics(recent)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastMetrics = m
	c.current = c.classifyLocked(recent, m)
	return c.current
}

func (c *Classifier) classifyLocked(recent []Transform, m Metrics) Type {
	// Fewer than two samples, or no measurable motion, is static by
	// definition — no spectrum to classify.
	if len(recent) < 2 || m.MeanMagnitude < movingEps {
		return Static
	}

	s := c.sensitivity
	fastTh := fastMagnitudeThreshold * s
	shakeTh := shakeMagnitudeThreshold * s
	slowTh := slowMagnitudeThreshold * s

	scaled := hasScaleOrRotation(recent)

	switch {
	case m.MeanMagnitude > fastTh && m.HighFrequencyRatio < lowFrequencyCeiling:
		if scaled {
			return PanZoom
		}
		return FastMotion
	case m.MeanMagnitude > shakeTh && m.HighFrequencyRatio > highFrequencyFloor && m.ConsistencyScore < lowConsistencyCeiling:
		return CameraShake
	case m.MeanMagnitude > slowTh:
		if scaled {
			return PanZoom
		}
		return SlowMotion
	default:
		return Static
	}
}

// truncate returns the most recent n entries of window.
func truncate(window []Transform, n int) []Transform {
	if len(window) > n {
		return window[len(window)-n:]
	}
	return window
}

// hasScaleOrRotation reports whether the window carries a deliberate scale
// or rotation component, distinguishing pan/zoom from pure translation.
func hasScaleOrRotation(window []Transform) bool {
	var sumAngle, sumScale float64
	for _, t := range window {
		sumAngle += math.Abs(t.Angle)
		sumScale += math.Abs(t.LogScale)
	}
	n := float64(len(window))
	return sumAngle/n > panZoomAngleEps || sumScale/n > panZoomScaleEps
}

func computeMetrics(window []Transform) Metrics {
	m := Metrics{TransformCount: len(window)}
	if len(window) == 0 {
		return m
	}

	mags := make([]float64, len(window))
	for i, t := range window {
		mags[i] = t.Magnitude()
	}

	if len(mags) == 1 {
		m.MeanMagnitude = mags[0]
	} else {
		m.MeanMagnitude, m.VarianceMagnitude = stat.MeanVariance(mags, nil)
	}

	// Direction statistics over vectors with measurable motion. The mean
	// resultant length of the unit direction vectors is the consistency
	// score: 1 for constant direction, near 0 for random-signed motion.
	var sumCos, sumSin float64
	var moving int
	for _, t := range window {
		mag := t.Magnitude()
		if mag < movingEps {
			continue
		}
		sumCos += t.DX / mag
		sumSin += t.DY / mag
		moving++
	}
	if moving > 0 {
		resultant := math.Hypot(sumCos, sumSin) / float64(moving)
		m.ConsistencyScore = resultant
		m.DirectionalVariance = 1 - resultant
	} else {
		// Stillness is perfectly consistent.
		m.ConsistencyScore = 1
	}

	// High-frequency ratio: fraction of consecutive motion vectors that
	// reverse direction (negative dot product). Smooth pans score near 0,
	// hand shake scores near or above one half.
	var reversals, pairs int
	for i := 1; i < len(window); i++ {
		a, b := window[i-1], window[i]
		if a.Magnitude() < movingEps || b.Magnitude() < movingEps {
			continue
		}
		pairs++
		if a.DX*b.DX+a.DY*b.DY < 0 {
			reversals++
		}
	}
	if pairs > 0 {
		m.HighFrequencyRatio = float64(reversals) / float64(pairs)
	}

	return m
}
