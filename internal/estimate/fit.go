package estimate

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/steadyshot/stabilizer/internal/config"
	"github.com/steadyshot/stabilizer/internal/hostframe"
	"github.com/steadyshot/stabilizer/internal/monitoring"
	"github.com/steadyshot/stabilizer/internal/motion"
)

// minViableMatches is the smallest correspondence set a fit will be
// attempted on. Below this the frame passes through uncorrected.
const minViableMatches = 4

// ransacIterations bounds the random-sampling loop. Two-point similarity
// hypotheses converge quickly, so a moderate budget suffices.
const ransacIterations = 64

// Result carries either a fitted transform or the explicit no-correction
// marker. OK is false when the frame could not be fitted — too few
// correspondences, a degenerate sample set, or a fit outside the sanity
// bounds — in which case Transform is the identity.
type Result struct {
	Transform motion.Transform
	OK        bool
}

// NoCorrection is the fallback result: identity transform, OK false.
func NoCorrection() Result {
	return Result{Transform: motion.Identity()}
}

// EstimateTransform robustly fits a similarity transform to the matched
// correspondences using MSAC sampling followed by least-squares refinement
// on the inlier set. The inlier threshold adapts between the configured
// RANSAC bounds based on how many correspondences survived tracking: sparse
// sets get a looser threshold, dense sets a tighter one.
func EstimateTransform(matches []Match, p config.StabilizerParams, rng *rand.Rand) Result {
	if len(matches) < minViableMatches {
		return NoCorrection()
	}
	if pointSpread(matches) < p.MinPointSpread {
		// Clustered points produce ill-conditioned fits; skip the frame.
		return NoCorrection()
	}

	threshold := adaptiveThreshold(len(matches), p)
	threshSq := threshold * threshold

	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	// MSAC: score each two-point hypothesis by summed truncated squared
	// residuals, preferring tight fits over fits that merely capture many
	// loose points.
	bestScore := math.Inf(1)
	var bestT motion.Transform
	for iter := 0; iter < ransacIterations; iter++ {
		i := rng.Intn(len(matches))
		j := rng.Intn(len(matches))
		if i == j {
			continue
		}
		t, ok := similarityFromPair(matches[i], matches[j])
		if !ok {
			continue
		}
		var score float64
		for _, m := range matches {
			rSq := residualSq(t, m)
			if rSq < threshSq {
				score += rSq
			} else {
				score += threshSq
			}
		}
		if score < bestScore {
			bestScore = score
			bestT = t
		}
	}
	if math.IsInf(bestScore, 1) {
		return NoCorrection()
	}

	// Refine on the inlier set.
	inliers := make([]Match, 0, len(matches))
	for _, m := range matches {
		if residualSq(bestT, m) < threshSq {
			inliers = append(inliers, m)
		}
	}
	if len(inliers) < minViableMatches {
		return NoCorrection()
	}

	refined, ok := leastSquaresSimilarity(inliers)
	if !ok {
		refined = bestT
	}

	if !saneTransform(refined, p) {
		monitoring.Debugf("estimate: discarding implausible fit dx=%.1f dy=%.1f", refined.DX, refined.DY)
		return NoCorrection()
	}
	return Result{Transform: refined, OK: true}
}

// adaptiveThreshold interpolates the inlier threshold between the configured
// bounds: at minViableMatches correspondences it sits at the loose end, and
// tightens linearly to the strict end by fiftyish correspondences.
func adaptiveThreshold(n int, p config.StabilizerParams) float64 {
	const denseCount = 50
	frac := float64(n-minViableMatches) / float64(denseCount-minViableMatches)
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	return p.RansacThresholdMax - frac*(p.RansacThresholdMax-p.RansacThresholdMin)
}

// pointSpread returns the RMS distance of the reference points from their
// centroid — a scalar measure of how spread out the correspondence set is.
func pointSpread(matches []Match) float64 {
	var cx, cy float64
	for _, m := range matches {
		cx += m.From.X
		cy += m.From.Y
	}
	n := float64(len(matches))
	cx /= n
	cy /= n

	var sumSq float64
	for _, m := range matches {
		dx := m.From.X - cx
		dy := m.From.Y - cy
		sumSq += dx*dx + dy*dy
	}
	return math.Sqrt(sumSq / n)
}

// similarityFromPair solves the similarity transform exactly from two
// correspondences. Returns false when the reference points are too close to
// constrain rotation and scale.
func similarityFromPair(m1, m2 Match) (motion.Transform, bool) {
	// Source and destination segment vectors.
	sx := m2.From.X - m1.From.X
	sy := m2.From.Y - m1.From.Y
	dx := m2.To.X - m1.To.X
	dy := m2.To.Y - m1.To.Y

	srcLenSq := sx*sx + sy*sy
	if srcLenSq < 1 {
		return motion.Transform{}, false
	}

	// Complex division dst/src yields (a, b) with a = s·cosθ, b = s·sinθ.
	a := (dx*sx + dy*sy) / srcLenSq
	b := (dy*sx - dx*sy) / srcLenSq

	scale := math.Hypot(a, b)
	if scale < 1e-6 {
		return motion.Transform{}, false
	}

	tx := m1.To.X - (a*m1.From.X - b*m1.From.Y)
	ty := m1.To.Y - (b*m1.From.X + a*m1.From.Y)

	return motion.Transform{
		DX:       tx,
		DY:       ty,
		Angle:    math.Atan2(b, a),
		LogScale: math.Log(scale),
	}, true
}

// leastSquaresSimilarity solves the overdetermined system
//
//	x' = a·x - b·y + tx
//	y' = b·x + a·y + ty
//
// for (a, b, tx, ty) over all correspondences via QR.
func leastSquaresSimilarity(matches []Match) (motion.Transform, bool) {
	n := len(matches)
	A := mat.NewDense(2*n, 4, nil)
	rhs := mat.NewVecDense(2*n, nil)
	for i, m := range matches {
		A.Set(2*i, 0, m.From.X)
		A.Set(2*i, 1, -m.From.Y)
		A.Set(2*i, 2, 1)
		A.Set(2*i, 3, 0)
		rhs.SetVec(2*i, m.To.X)

		A.Set(2*i+1, 0, m.From.Y)
		A.Set(2*i+1, 1, m.From.X)
		A.Set(2*i+1, 2, 0)
		A.Set(2*i+1, 3, 1)
		rhs.SetVec(2*i+1, m.To.Y)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(A, rhs); err != nil {
		return motion.Transform{}, false
	}

	a, b := sol.AtVec(0), sol.AtVec(1)
	scale := math.Hypot(a, b)
	if scale < 1e-6 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return motion.Transform{}, false
	}
	return motion.Transform{
		DX:       sol.AtVec(2),
		DY:       sol.AtVec(3),
		Angle:    math.Atan2(b, a),
		LogScale: math.Log(scale),
	}, true
}

// residualSq is the squared reprojection error of a match under t.
func residualSq(t motion.Transform, m Match) float64 {
	a := t.Affine()
	px := a[0]*m.From.X + a[1]*m.From.Y + a[2]
	py := a[3]*m.From.X + a[4]*m.From.Y + a[5]
	dx := px - m.To.X
	dy := py - m.To.Y
	return dx*dx + dy*dy
}

// saneTransform applies the configured physical plausibility bounds: the
// translation must not exceed MaxDisplacement, every coordinate term must
// stay under MaxCoordinate, and all components must be finite.
func saneTransform(t motion.Transform, p config.StabilizerParams) bool {
	for _, v := range []float64{t.DX, t.DY, t.Angle, t.LogScale} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if math.Abs(t.DX) > p.MaxDisplacement || math.Abs(t.DY) > p.MaxDisplacement {
		return false
	}
	a := t.Affine()
	for _, v := range a {
		if math.Abs(v) > p.MaxCoordinate {
			return false
		}
	}
	return true
}

// Estimate runs the full per-frame estimation: detect features in the
// reference frame, track them into the current frame, and fit the dominant
// transform. Both images must be single-channel grayscale of identical
// geometry; any precondition failure yields the no-correction result.
func Estimate(prev, curr hostframe.Image, p config.StabilizerParams, rng *rand.Rand) Result {
	points := DetectFeatures(prev, p)
	if len(points) < minViableMatches {
		return NoCorrection()
	}
	matches := TrackFeatures(prev, curr, points, p)
	return EstimateTransform(matches, p, rng)
}
