// Package motion holds the inter-frame motion model: the similarity
// transform estimated between consecutive frames, the bounded window of
// recent transforms, and the classifier that maps window statistics to a
// motion regime.
package motion

import "math"

// identityEps is the magnitude below which a transform counts as identity.
const identityEps = 1e-9

// Transform is a 2D similarity transform between two consecutive frames,
// parameterised as x/y translation, rotation and log-scale. The additive
// parameterisation is what makes trajectories well-defined: summing
// transforms composes the motion to first order, and the smoother operates
// on the summed sequence.
type Transform struct {
	DX       float64 `json:"dx"`        // translation x (pixels)
	DY       float64 `json:"dy"`        // translation y (pixels)
	Angle    float64 `json:"angle"`     // rotation (radians)
	LogScale float64 `json:"log_scale"` // log of isotropic scale
}

// Identity returns the zero transform.
func Identity() Transform {
	return Transform{}
}

// Magnitude returns the translation magnitude in pixels.
func (t Transform) Magnitude() float64 {
	return math.Hypot(t.DX, t.DY)
}

// IsIdentity reports whether the transform is numerically the identity.
func (t Transform) IsIdentity() bool {
	return math.Abs(t.DX) < identityEps &&
		math.Abs(t.DY) < identityEps &&
		math.Abs(t.Angle) < identityEps &&
		math.Abs(t.LogScale) < identityEps
}

// Add returns the component-wise sum of two transforms.
func (t Transform) Add(o Transform) Transform {
	return Transform{
		DX:       t.DX + o.DX,
		DY:       t.DY + o.DY,
		Angle:    t.Angle + o.Angle,
		LogScale: t.LogScale + o.LogScale,
	}
}

// Sub returns the component-wise difference t - o.
func (t Transform) Sub(o Transform) Transform {
	return Transform{
		DX:       t.DX - o.DX,
		DY:       t.DY - o.DY,
		Angle:    t.Angle - o.Angle,
		LogScale: t.LogScale - o.LogScale,
	}
}

// Scale returns the transform with every component multiplied by f.
func (t Transform) Scale(f float64) Transform {
	return Transform{
		DX:       t.DX * f,
		DY:       t.DY * f,
		Angle:    t.Angle * f,
		LogScale: t.LogScale * f,
	}
}

// Affine returns the 2x3 affine matrix [a -b tx; b a ty] equivalent to the
// similarity transform, row-major.
func (t Transform) Affine() [6]float64 {
	s := math.Exp(t.LogScale)
	cos := s * math.Cos(t.Angle)
	sin := s * math.Sin(t.Angle)
	return [6]float64{cos, -sin, t.DX, sin, cos, t.DY}
}

// Window is a size-bounded FIFO of recent transforms. Pushing beyond the
// bound drops the oldest entry. The zero value is unusable; use NewWindow.
type Window struct {
	bound   int
	entries []Transform
}

// NewWindow creates a window holding at most bound entries. A non-positive
// bound falls back to 1.
func NewWindow(bound int) *Window {
	if bound <= 0 {
		bound = 1
	}
	return &Window{bound: bound, entries: make([]Transform, 0, bound)}
}

// Push appends a transform, evicting the oldest entry once full.
func (w *Window) Push(t Transform) {
	w.entries = append(w.entries, t)
	if len(w.entries) > w.bound {
		w.entries = w.entries[len(w.entries)-w.bound:]
	}
}

// Len returns the number of stored transforms.
func (w *Window) Len() int {
	return len(w.entries)
}

// Entries returns a copy of the stored transforms, oldest first.
func (w *Window) Entries() []Transform {
	out := make([]Transform, len(w.entries))
	copy(out, w.entries)
	return out
}

// Clear empties the window.
func (w *Window) Clear() {
	w.entries = w.entries[:0]
}
