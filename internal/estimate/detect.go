// Package estimate finds trackable feature points in a frame, follows them
// into the next frame, and robustly fits the dominant inter-frame similarity
// transform. Estimation failures are never errors: a frame that cannot be
// fitted yields an explicit no-correction Result and the stream continues.
package estimate

import (
	"math"
	"sort"

	"github.com/steadyshot/stabilizer/internal/config"
	"github.com/steadyshot/stabilizer/internal/hostframe"
)

// Point is an image location in pixel coordinates.
type Point struct {
	X float64
	Y float64
}

// corner couples a candidate point with its detector response for ranking.
type corner struct {
	x, y     int
	response float64
}

// DetectFeatures finds up to p.FeatureCount salient, well-spaced points in a
// single-channel image. Corner response is either the Harris score or the
// minimum eigenvalue of the structure tensor, aggregated over p.BlockSize
// windows; candidates below p.QualityLevel of the strongest response are
// dropped, and accepted corners keep at least p.MinDistance spacing.
// A multi-channel or empty image yields no features.
func DetectFeatures(img hostframe.Image, p config.StabilizerParams) []Point {
	if img.Empty() || img.Channels != 1 {
		return nil
	}
	w, h := img.Width, img.Height
	half := p.BlockSize / 2
	border := half + 1
	if w <= 2*border || h <= 2*border {
		return nil
	}

	// Gradient products via central differences, accumulated into
	// summed-area tables so the block aggregation is O(1) per pixel.
	ixx := newIntegral(w, h)
	iyy := newIntegral(w, h)
	ixy := newIntegral(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var gx, gy float64
			if x > 0 && x < w-1 {
				gx = (float64(img.Pix[y*w+x+1]) - float64(img.Pix[y*w+x-1])) / 2
			}
			if y > 0 && y < h-1 {
				gy = (float64(img.Pix[(y+1)*w+x]) - float64(img.Pix[(y-1)*w+x])) / 2
			}
			ixx.set(x, y, gx*gx)
			iyy.set(x, y, gy*gy)
			ixy.set(x, y, gx*gy)
		}
	}
	ixx.accumulate()
	iyy.accumulate()
	ixy.accumulate()

	// Per-pixel corner response.
	response := make([]float64, w*h)
	var maxResponse float64
	for y := border; y < h-border; y++ {
		for x := border; x < w-border; x++ {
			sxx := ixx.sum(x-half, y-half, x+half, y+half)
			syy := iyy.sum(x-half, y-half, x+half, y+half)
			sxy := ixy.sum(x-half, y-half, x+half, y+half)

			var r float64
			if p.UseHarris {
				det := sxx*syy - sxy*sxy
				trace := sxx + syy
				r = det - p.K*trace*trace
			} else {
				// Smaller eigenvalue of the 2x2 structure tensor.
				d := sxx - syy
				r = (sxx + syy - math.Sqrt(d*d+4*sxy*sxy)) / 2
			}
			response[y*w+x] = r
			if r > maxResponse {
				maxResponse = r
			}
		}
	}
	if maxResponse <= 0 {
		return nil
	}

	// Local maxima above the relative quality threshold.
	threshold := p.QualityLevel * maxResponse
	var candidates []corner
	for y := border; y < h-border; y++ {
		for x := border; x < w-border; x++ {
			r := response[y*w+x]
			if r < threshold {
				continue
			}
			if r < response[y*w+x-1] || r < response[y*w+x+1] ||
				r < response[(y-1)*w+x] || r < response[(y+1)*w+x] {
				continue
			}
			candidates = append(candidates, corner{x: x, y: y, response: r})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].response > candidates[j].response
	})

	// Greedy min-distance selection, strongest first.
	minDistSq := p.MinDistance * p.MinDistance
	points := make([]Point, 0, p.FeatureCount)
	for _, c := range candidates {
		if len(points) >= p.FeatureCount {
			break
		}
		ok := true
		for _, q := range points {
			dx := float64(c.x) - q.X
			dy := float64(c.y) - q.Y
			if dx*dx+dy*dy < minDistSq {
				ok = false
				break
			}
		}
		if ok {
			points = append(points, Point{X: float64(c.x), Y: float64(c.y)})
		}
	}
	return points
}

// integral is a summed-area table over a w×h grid of float64 values.
type integral struct {
	w, h int
	data []float64 // (w+1)×(h+1), row-major, first row/col zero
}

func newIntegral(w, h int) *integral {
	return &integral{w: w, h: h, data: make([]float64, (w+1)*(h+1))}
}

func (s *integral) set(x, y int, v float64) {
	s.data[(y+1)*(s.w+1)+x+1] = v
}

// accumulate converts stored raw values into cumulative sums in place.
func (s *integral) accumulate() {
	stride := s.w + 1
	for y := 1; y <= s.h; y++ {
		for x := 1; x <= s.w; x++ {
			s.data[y*stride+x] += s.data[y*stride+x-1] +
				s.data[(y-1)*stride+x] - s.data[(y-1)*stride+x-1]
		}
	}
}

// sum returns the inclusive rectangle sum [x0,x1]×[y0,y1].
func (s *integral) sum(x0, y0, x1, y1 int) float64 {
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 >= s.w {
		x1 = s.w - 1
	}
	if y1 >= s.h {
		y1 = s.h - 1
	}
	stride := s.w + 1
	return s.data[(y1+1)*stride+x1+1] - s.data[(y0)*stride+x1+1] -
		s.data[(y1+1)*stride+x0] + s.data[y0*stride+x0]
}
