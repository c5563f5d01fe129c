package stabilize

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/steadyshot/stabilizer/internal/hostframe"
	"github.com/steadyshot/stabilizer/internal/motion"
)

// affineMul composes two 2x3 affine matrices: out = a ∘ b (b applied first).
func affineMul(a, b [6]float64) [6]float64 {
	return [6]float64{
		a[0]*b[0] + a[1]*b[3],
		a[0]*b[1] + a[1]*b[4],
		a[0]*b[2] + a[1]*b[5] + a[2],
		a[3]*b[0] + a[4]*b[3],
		a[3]*b[1] + a[4]*b[4],
		a[3]*b[2] + a[4]*b[5] + a[5],
	}
}

// affineInvert inverts a 2x3 affine matrix. Returns false when the linear
// part is singular.
func affineInvert(m [6]float64) ([6]float64, bool) {
	det := m[0]*m[4] - m[1]*m[3]
	if math.Abs(det) < 1e-12 {
		return [6]float64{}, false
	}
	ia := m[4] / det
	ib := -m[1] / det
	ic := -m[3] / det
	id := m[0] / det
	return [6]float64{
		ia, ib, -(ia*m[2] + ib*m[5]),
		ic, id, -(ic*m[2] + id*m[5]),
	}, true
}

// scaleAboutCenter builds the affine that scales by z around (cx, cy).
func scaleAboutCenter(z, cx, cy float64) [6]float64 {
	return [6]float64{z, 0, cx * (1 - z), 0, z, cy * (1 - z)}
}

// warpAffine re-renders img under the given forward affine using inverse
// mapping with bilinear sampling. Source coordinates outside the image are
// clamped, which replicates border pixels into revealed regions. Returns the
// empty image when the transform is not invertible.
func warpAffine(img hostframe.Image, m [6]float64) hostframe.Image {
	inv, ok := affineInvert(m)
	if !ok {
		return hostframe.Image{}
	}

	w, h, c := img.Width, img.Height, img.Channels
	out := hostframe.Image{Width: w, Height: h, Channels: c, Pix: make([]byte, len(img.Pix))}

	maxX := float64(w - 1)
	maxY := float64(h - 1)
	for y := 0; y < h; y++ {
		fy := float64(y)
		for x := 0; x < w; x++ {
			fx := float64(x)
			sx := inv[0]*fx + inv[1]*fy + inv[2]
			sy := inv[3]*fx + inv[4]*fy + inv[5]

			if sx < 0 {
				sx = 0
			} else if sx > maxX {
				sx = maxX
			}
			if sy < 0 {
				sy = 0
			} else if sy > maxY {
				sy = maxY
			}

			x0 := int(sx)
			y0 := int(sy)
			x1 := x0 + 1
			y1 := y0 + 1
			if x1 > w-1 {
				x1 = w - 1
			}
			if y1 > h-1 {
				y1 = h - 1
			}
			ax := sx - float64(x0)
			ay := sy - float64(y0)

			for ch := 0; ch < c; ch++ {
				p00 := float64(img.Pix[(y0*w+x0)*c+ch])
				p10 := float64(img.Pix[(y0*w+x1)*c+ch])
				p01 := float64(img.Pix[(y1*w+x0)*c+ch])
				p11 := float64(img.Pix[(y1*w+x1)*c+ch])
				top := p00 + (p10-p00)*ax
				bot := p01 + (p11-p01)*ax
				out.Pix[(y*w+x)*c+ch] = byte(top + (bot-top)*ay + 0.5)
			}
		}
	}
	return out
}

// validRect computes the axis-aligned rectangle of output pixels fully
// covered by warped source content, by pushing the source corners through
// the forward transform and intersecting the resulting quad conservatively.
func validRect(w, h int, m [6]float64) (x0, y0, x1, y1 int) {
	fw, fh := float64(w-1), float64(h-1)
	px := func(x, y float64) float64 { return m[0]*x + m[1]*y + m[2] }
	py := func(x, y float64) float64 { return m[3]*x + m[4]*y + m[5] }

	left := math.Max(px(0, 0), px(0, fh))
	right := math.Min(px(fw, 0), px(fw, fh))
	top := math.Max(py(0, 0), py(fw, 0))
	bottom := math.Min(py(0, fh), py(fw, fh))

	x0 = int(math.Ceil(math.Max(left, 0)))
	y0 = int(math.Ceil(math.Max(top, 0)))
	x1 = int(math.Floor(math.Min(right, fw)))
	y1 = int(math.Floor(math.Min(bottom, fh)))
	return x0, y0, x1, y1
}

// resize scales img to the target dimensions with bilinear resampling.
func resize(img hostframe.Image, targetW, targetH int) hostframe.Image {
	if img.Empty() || targetW <= 0 || targetH <= 0 {
		return hostframe.Image{}
	}
	src := toNRGBA(img)
	dst := image.NewNRGBA(image.Rect(0, 0, targetW, targetH))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return fromNRGBA(dst, img.Channels)
}

// crop extracts the inclusive pixel rectangle [x0,x1]×[y0,y1].
func crop(img hostframe.Image, x0, y0, x1, y1 int) hostframe.Image {
	if img.Empty() || x1 < x0 || y1 < y0 {
		return hostframe.Image{}
	}
	cw := x1 - x0 + 1
	ch := y1 - y0 + 1
	c := img.Channels
	out := hostframe.Image{Width: cw, Height: ch, Channels: c, Pix: make([]byte, cw*ch*c)}
	for y := 0; y < ch; y++ {
		srcOff := ((y0+y)*img.Width + x0) * c
		copy(out.Pix[y*cw*c:(y+1)*cw*c], img.Pix[srcOff:srcOff+cw*c])
	}
	return out
}

// toNRGBA expands a 1/3/4-channel packed image into an NRGBA image so the
// x/image scalers can operate on it.
func toNRGBA(img hostframe.Image) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	c := img.Channels
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			si := (y*img.Width + x) * c
			di := y*out.Stride + x*4
			switch c {
			case 1:
				v := img.Pix[si]
				out.Pix[di+0] = v
				out.Pix[di+1] = v
				out.Pix[di+2] = v
				out.Pix[di+3] = 0xFF
			case 3:
				out.Pix[di+0] = img.Pix[si+0]
				out.Pix[di+1] = img.Pix[si+1]
				out.Pix[di+2] = img.Pix[si+2]
				out.Pix[di+3] = 0xFF
			default:
				copy(out.Pix[di:di+4], img.Pix[si:si+4])
			}
		}
	}
	return out
}

// fromNRGBA packs an NRGBA image back into the requested channel count.
func fromNRGBA(src *image.NRGBA, channels int) hostframe.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := hostframe.Image{Width: w, Height: h, Channels: channels, Pix: make([]byte, w*h*channels)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			si := y*src.Stride + x*4
			di := (y*w + x) * channels
			switch channels {
			case 1:
				// The scaler preserved gray content across r/g/b; take r.
				out.Pix[di] = src.Pix[si]
			case 3:
				out.Pix[di+0] = src.Pix[si+0]
				out.Pix[di+1] = src.Pix[si+1]
				out.Pix[di+2] = src.Pix[si+2]
			default:
				copy(out.Pix[di:di+4], src.Pix[si:si+4])
			}
		}
	}
	return out
}

// applyCorrection warps the frame under the corrective transform and
// resolves the borders revealed by the warp according to the edge mode.
func applyCorrection(img hostframe.Image, corrective motion.Transform, mode edgePolicy) hostframe.Image {
	m := corrective.Affine()

	switch mode {
	case edgeCrop:
		warped := warpAffine(img, m)
		if warped.Empty() {
			return warped
		}
		x0, y0, x1, y1 := validRect(img.Width, img.Height, m)
		if x1-x0 < minCropSpan || y1-y0 < minCropSpan {
			// Correction too extreme to leave a usable interior; fall back
			// to the padded result rather than emitting a sliver.
			return warped
		}
		return resize(crop(warped, x0, y0, x1, y1), img.Width, img.Height)

	case edgeScale:
		x0, y0, x1, y1 := validRect(img.Width, img.Height, m)
		if x1 <= x0 || y1 <= y0 {
			return warpAffine(img, m)
		}
		zx := float64(img.Width) / float64(x1-x0+1)
		zy := float64(img.Height) / float64(y1-y0+1)
		z := math.Max(zx, zy)
		if z > maxEdgeZoom {
			z = maxEdgeZoom
		}
		cx := float64(img.Width) / 2
		cy := float64(img.Height) / 2
		return warpAffine(img, affineMul(scaleAboutCenter(z, cx, cy), m))

	default: // padding
		return warpAffine(img, m)
	}
}

type edgePolicy int

const (
	edgePadding edgePolicy = iota
	edgeCrop
	edgeScale
)

// minCropSpan is the smallest interior span Crop mode will rescale from.
const minCropSpan = 16

// maxEdgeZoom caps Scale mode's upsizing so a pathological correction
// cannot zoom into a handful of pixels.
const maxEdgeZoom = 1.5
