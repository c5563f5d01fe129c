package estimate

import (
	"math"

	"github.com/steadyshot/stabilizer/internal/config"
	"github.com/steadyshot/stabilizer/internal/hostframe"
)

// patchHalf is the half-width of the matching window around each feature.
const patchHalf = 5

// maxSearchRadius bounds the integer displacement search per feature; the
// configured MaxDisplacement can only tighten it, not widen it, keeping the
// per-frame cost structurally bounded.
const maxSearchRadius = 16

// Match is a correspondence between a feature in the reference frame and its
// tracked location in the current frame.
type Match struct {
	From Point
	To   Point
	// Err is the mean absolute residual of the matched patch; large values
	// indicate the point was lost or sits on a moving object.
	Err float64
}

// TrackFeatures follows each reference point into the current frame using an
// integer block search followed by a sub-pixel refinement step, and discards
// correspondences whose residual exceeds p.TrackingErrorThreshold. Both
// images must be single-channel and of identical geometry.
func TrackFeatures(prev, curr hostframe.Image, points []Point, p config.StabilizerParams) []Match {
	if prev.Empty() || curr.Empty() || prev.Channels != 1 || curr.Channels != 1 {
		return nil
	}
	if prev.Width != curr.Width || prev.Height != curr.Height {
		return nil
	}

	radius := maxSearchRadius
	if int(p.MaxDisplacement) < radius {
		radius = int(p.MaxDisplacement)
	}
	if radius < 1 {
		radius = 1
	}

	matches := make([]Match, 0, len(points))
	for _, pt := range points {
		m, ok := trackOne(prev, curr, pt, radius)
		if !ok || m.Err > p.TrackingErrorThreshold {
			continue
		}
		matches = append(matches, m)
	}
	return matches
}

// trackOne finds the displacement minimising the sum of absolute differences
// over the search radius, then refines it to sub-pixel precision by fitting
// a parabola to the error surface around the minimum.
func trackOne(prev, curr hostframe.Image, pt Point, radius int) (Match, bool) {
	px, py := int(math.Round(pt.X)), int(math.Round(pt.Y))
	w, h := prev.Width, prev.Height

	if px-patchHalf < 0 || py-patchHalf < 0 || px+patchHalf >= w || py+patchHalf >= h {
		return Match{}, false
	}

	bestDx, bestDy := 0, 0
	bestCost := math.Inf(1)
	// Error surface values around the best integer displacement, used for
	// the parabolic refinement below.
	costAt := make(map[[2]int]float64, (2*radius+1)*(2*radius+1))

	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			cx, cy := px+dx, py+dy
			if cx-patchHalf < 0 || cy-patchHalf < 0 || cx+patchHalf >= w || cy+patchHalf >= h {
				continue
			}
			cost := patchSAD(prev, curr, px, py, cx, cy)
			costAt[[2]int{dx, dy}] = cost
			if cost < bestCost {
				bestCost = cost
				bestDx, bestDy = dx, dy
			}
		}
	}
	if math.IsInf(bestCost, 1) {
		return Match{}, false
	}

	subDx := parabolicOffset(
		costAt[[2]int{bestDx - 1, bestDy}],
		bestCost,
		costAt[[2]int{bestDx + 1, bestDy}],
	)
	subDy := parabolicOffset(
		costAt[[2]int{bestDx, bestDy - 1}],
		bestCost,
		costAt[[2]int{bestDx, bestDy + 1}],
	)

	patchArea := float64((2*patchHalf + 1) * (2*patchHalf + 1))
	return Match{
		From: pt,
		To:   Point{X: pt.X + float64(bestDx) + subDx, Y: pt.Y + float64(bestDy) + subDy},
		Err:  bestCost / patchArea,
	}, true
}

// patchSAD computes the sum of absolute differences between the patch at
// (px,py) in prev and the patch at (cx,cy) in curr.
func patchSAD(prev, curr hostframe.Image, px, py, cx, cy int) float64 {
	w := prev.Width
	var sum float64
	for oy := -patchHalf; oy <= patchHalf; oy++ {
		prow := (py + oy) * w
		crow := (cy + oy) * w
		for ox := -patchHalf; ox <= patchHalf; ox++ {
			d := int(prev.Pix[prow+px+ox]) - int(curr.Pix[crow+cx+ox])
			if d < 0 {
				d = -d
			}
			sum += float64(d)
		}
	}
	return sum
}

// parabolicOffset fits a parabola through three equally spaced samples and
// returns the offset of its vertex from the centre sample, clamped to
// [-0.5, 0.5]. Missing neighbours (zero map lookups collapse to a flat
// surface) yield no offset.
func parabolicOffset(left, centre, right float64) float64 {
	denom := left - 2*centre + right
	if denom <= 0 {
		return 0
	}
	off := 0.5 * (left - right) / denom
	if off > 0.5 {
		off = 0.5
	} else if off < -0.5 {
		off = -0.5
	}
	return off
}
