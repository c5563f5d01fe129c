package stabilize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steadyshot/stabilizer/internal/hostframe"
	"github.com/steadyshot/stabilizer/internal/motion"
)

func gradientImage(w, h, c int) hostframe.Image {
	img := hostframe.Image{Width: w, Height: h, Channels: c, Pix: make([]byte, w*h*c)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for ch := 0; ch < c; ch++ {
				img.Pix[(y*w+x)*c+ch] = byte((x*3 + y*5 + ch*17) % 256)
			}
		}
	}
	return img
}

func TestWarpIdentityPreservesContent(t *testing.T) {
	img := gradientImage(32, 24, 3)
	out := warpAffine(img, motion.Identity().Affine())
	require.False(t, out.Empty())
	assert.Equal(t, img.Pix, out.Pix)
}

func TestWarpTranslationShiftsContent(t *testing.T) {
	img := gradientImage(32, 24, 1)
	// Forward transform moves content +5 in x: out(x) = in(x-5).
	out := warpAffine(img, motion.Transform{DX: 5}.Affine())
	require.False(t, out.Empty())

	for y := 2; y < 22; y++ {
		for x := 6; x < 30; x++ {
			assert.Equal(t, img.Pix[y*32+x-5], out.Pix[y*32+x], "pixel (%d,%d)", x, y)
		}
	}
	// Revealed left border replicates the edge column.
	assert.Equal(t, img.Pix[10*32], out.Pix[10*32+2])
}

func TestValidRectShrinksWithTranslation(t *testing.T) {
	x0, y0, x1, y1 := validRect(100, 80, motion.Transform{DX: 10, DY: -6}.Affine())
	assert.Equal(t, 10, x0)
	assert.Equal(t, 0, y0)
	assert.Equal(t, 99, x1)
	assert.Equal(t, 73, y1)
}

func TestCropExtractsRegion(t *testing.T) {
	img := gradientImage(16, 16, 4)
	out := crop(img, 2, 3, 9, 10)
	require.False(t, out.Empty())
	assert.Equal(t, 8, out.Width)
	assert.Equal(t, 8, out.Height)
	assert.Equal(t, img.Pix[(3*16+2)*4], out.Pix[0])
}

func TestResizePreservesChannels(t *testing.T) {
	for _, c := range []int{1, 3, 4} {
		img := gradientImage(20, 20, c)
		out := resize(img, 40, 40)
		require.False(t, out.Empty(), "channels=%d", c)
		assert.Equal(t, 40, out.Width)
		assert.Equal(t, 40, out.Height)
		assert.Equal(t, c, out.Channels)
	}
}

func TestApplyCorrectionModes(t *testing.T) {
	img := gradientImage(64, 48, 4)
	corr := motion.Transform{DX: 4, DY: -3}

	for _, mode := range []edgePolicy{edgePadding, edgeCrop, edgeScale} {
		out := applyCorrection(img, corr, mode)
		require.False(t, out.Empty(), "mode=%d", mode)
		assert.Equal(t, 64, out.Width)
		assert.Equal(t, 48, out.Height)
		assert.Equal(t, 4, out.Channels)
	}
}

func TestAffineAlgebra(t *testing.T) {
	a := motion.Transform{DX: 3, DY: -2, Angle: 0.1, LogScale: 0.05}.Affine()
	inv, ok := affineInvert(a)
	require.True(t, ok)

	id := affineMul(a, inv)
	assert.InDelta(t, 1.0, id[0], 1e-9)
	assert.InDelta(t, 0.0, id[1], 1e-9)
	assert.InDelta(t, 0.0, id[2], 1e-9)
	assert.InDelta(t, 1.0, id[4], 1e-9)
	assert.InDelta(t, 0.0, id[5], 1e-9)

	_, ok = affineInvert([6]float64{0, 0, 1, 0, 0, 1})
	assert.False(t, ok, "singular matrix must not invert")
}
