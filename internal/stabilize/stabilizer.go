// Package stabilize orchestrates the per-session stabilization pipeline:
// motion estimation between consecutive frames, trajectory accumulation and
// smoothing, and application of the capped corrective transform with edge
// handling. One Stabilizer instance serves one video source; callers
// serialize access.
package stabilize

import (
	"math/rand"
	"sync"

	"github.com/steadyshot/stabilizer/internal/config"
	"github.com/steadyshot/stabilizer/internal/estimate"
	"github.com/steadyshot/stabilizer/internal/hostframe"
	"github.com/steadyshot/stabilizer/internal/monitoring"
	"github.com/steadyshot/stabilizer/internal/motion"
)

// MinDimension is the practical minimum frame edge a session will accept at
// Initialize: below this there is nothing to track.
const MinDimension = 32

// MaxSessionDimension is the practical per-session cap on either frame edge.
// It sits well below hostframe.MaxDim: frames beyond this cannot meet the
// soft real-time deadline, so the session refuses them outright.
const MaxSessionDimension = 4096

// FrameRecorder receives one record per processed frame. Implementations
// must be cheap or buffered; the recorder is called on the frame path.
type FrameRecorder interface {
	RecordFrame(frameIndex int64, estimated, corrective motion.Transform, motionType motion.Type, metrics motion.Metrics) error
}

// Stabilizer is the per-session core. The zero value is uninitialized; a
// successful Initialize moves it to the ready state, and ProcessFrame keeps
// it there regardless of per-frame input problems.
type Stabilizer struct {
	mu sync.Mutex

	ready  bool
	width  int
	height int
	params config.StabilizerParams

	prevGray   hostframe.Image
	window     *motion.Window
	classifier *motion.Classifier
	traj       *trajectory
	rng        *rand.Rand
	frameIndex int64

	recorder FrameRecorder
}

// New returns an uninitialized stabilizer.
func New() *Stabilizer {
	return &Stabilizer{}
}

// SetRecorder attaches an optional per-frame recorder. Pass nil to detach.
func (s *Stabilizer) SetRecorder(r FrameRecorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder = r
}

// Initialize validates the session geometry, sanitizes the parameters, and
// moves the stabilizer to the ready state. Returns false for geometry
// outside [MinDimension, MaxSessionDimension] on either edge; parameters are
// never a cause of failure — they are clamped, not rejected.
func (s *Stabilizer) Initialize(width, height int, p config.StabilizerParams) bool {
	if width < MinDimension || height < MinDimension {
		return false
	}
	if width > MaxSessionDimension || height > MaxSessionDimension {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.width = width
	s.height = height
	s.params = config.Sanitize(p)
	s.window = motion.NewWindow(motion.DefaultWindowSize)
	s.classifier = motion.NewClassifier(motion.DefaultWindowSize)
	s.traj = newTrajectory()
	s.rng = rand.New(rand.NewSource(1))
	s.prevGray = hostframe.Image{}
	s.frameIndex = 0
	s.ready = true
	return true
}

// Ready reports whether the stabilizer has been initialized.
func (s *Stabilizer) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Params returns the session's sanitized parameters.
func (s *Stabilizer) Params() config.StabilizerParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// UpdateParameters re-validates and applies new parameters in place without
// clearing trajectory history. Returns false only when the stabilizer has
// not been initialized.
func (s *Stabilizer) UpdateParameters(p config.StabilizerParams) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return false
	}
	s.params = config.Sanitize(p)
	return true
}

// Reset returns the session to a fresh ready state: trajectory, motion
// window and previous-frame state are cleared, parameters and geometry are
// retained. The classifier's sensitivity survives the reset; its current
// type returns to static.
func (s *Stabilizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return
	}
	sensitivity := s.classifier.GetSensitivity()
	s.window.Clear()
	s.traj.reset()
	s.prevGray = hostframe.Image{}
	s.frameIndex = 0
	s.classifier = motion.NewClassifier(motion.DefaultWindowSize)
	s.classifier.SetSensitivity(sensitivity)
}

// SetSensitivity adjusts the motion classifier's threshold scale.
func (s *Stabilizer) SetSensitivity(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.classifier != nil {
		s.classifier.SetSensitivity(v)
	}
}

// MotionType returns the most recently classified motion regime.
func (s *Stabilizer) MotionType() motion.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.classifier == nil {
		return motion.Static
	}
	return s.classifier.Current()
}

// Metrics returns the most recently computed motion metrics.
func (s *Stabilizer) Metrics() motion.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.classifier == nil {
		return motion.Metrics{}
	}
	return s.classifier.LastMetrics()
}

// ValidateFrame checks a frame against the session's initialized geometry:
// the general boundary rules, exact width/height match, and the practical
// session cap. Never panics.
func (s *Stabilizer) ValidateFrame(f *hostframe.HostFrame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateFrameLocked(f)
}

func (s *Stabilizer) validateFrameLocked(f *hostframe.HostFrame) bool {
	if !s.ready || !hostframe.Validate(f) {
		return false
	}
	if f.Width > MaxSessionDimension || f.Height > MaxSessionDimension {
		return false
	}
	return f.Width == s.width && f.Height == s.height
}

// ProcessFrame runs one frame through the pipeline and returns the
// stabilized frame, freshly allocated with ownership passing to the caller.
// A nil, malformed or geometry-mismatched frame yields nil without changing
// the session state; an estimation failure yields the frame warped under the
// accumulated correction with an identity step, so the stream never stops.
func (s *Stabilizer) ProcessFrame(f *hostframe.HostFrame) *hostframe.HostFrame {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validateFrameLocked(f) {
		return nil
	}

	img := hostframe.ToInternal(f)
	if img.Empty() {
		return nil
	}
	gray := hostframe.Grayscale(img)

	// First frame of the session: nothing to estimate against.
	if s.prevGray.Empty() {
		s.prevGray = gray
		s.traj.advance(motion.Identity())
		s.frameIndex++
		return hostframe.FromInternal(img, f)
	}

	res := estimate.Estimate(s.prevGray, gray, s.params, s.rng)
	step := res.Transform
	if !res.OK {
		monitoring.Debugf("stabilize: frame %d passes through unstabilized", s.frameIndex)
	}

	s.window.Push(step)
	motionType := s.classifier.Classify(s.window.Entries())

	radius := adaptiveRadius(s.params.SmoothingRadius, motionType)
	s.traj.advance(step)
	corrective := s.traj.corrective(radius, s.params.MaxCorrection)

	out := applyCorrection(img, corrective, edgePolicyFor(s.params.EdgeMode))
	if out.Empty() {
		out = img
	}

	if s.recorder != nil {
		if err := s.recorder.RecordFrame(s.frameIndex, step, corrective, motionType, s.classifier.LastMetrics()); err != nil {
			monitoring.Logf("stabilize: frame record failed: %v", err)
		}
	}

	s.prevGray = gray
	s.frameIndex++
	return hostframe.FromInternal(out, f)
}

// FrameCount returns the number of frames processed since Initialize or the
// last Reset.
func (s *Stabilizer) FrameCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameIndex
}

func edgePolicyFor(mode config.EdgeMode) edgePolicy {
	switch mode {
	case config.EdgeCrop:
		return edgeCrop
	case config.EdgeScale:
		return edgeScale
	default:
		return edgePadding
	}
}
