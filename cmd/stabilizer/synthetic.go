package main

import (
	"math"
	"math/rand"

	"github.com/steadyshot/stabilizer/internal/hostframe"
)

// shakeSequence generates a deterministic synthetic video: a fixed textured
// scene viewed through a jittering window. The jitter is a bounded random
// walk, which is a reasonable stand-in for handheld shake.
type shakeSequence struct {
	width, height int
	amplitude     float64
	rng           *rand.Rand

	scene   []byte // luma plane, larger than the frame to allow panning
	sceneW  int
	sceneH  int
	offX    float64
	offY    float64
	frameNo int
}

func newShakeSequence(width, height int, amplitude float64, seed int64) *shakeSequence {
	rng := rand.New(rand.NewSource(seed))
	margin := int(math.Ceil(amplitude*4)) + 16
	sw := width + 2*margin
	sh := height + 2*margin

	// Smooth random texture: noise with a small box blur so the tracker has
	// gradients to latch onto.
	raw := make([]byte, sw*sh)
	for i := range raw {
		raw[i] = byte(rng.Intn(256))
	}
	scene := make([]byte, sw*sh)
	for y := 0; y < sh; y++ {
		for x := 0; x < sw; x++ {
			var sum, count int
			for oy := -1; oy <= 1; oy++ {
				for ox := -1; ox <= 1; ox++ {
					nx, ny := x+ox, y+oy
					if nx < 0 || ny < 0 || nx >= sw || ny >= sh {
						continue
					}
					sum += int(raw[ny*sw+nx])
					count++
				}
			}
			scene[y*sw+x] = byte(sum / count)
		}
	}

	return &shakeSequence{
		width:     width,
		height:    height,
		amplitude: amplitude,
		rng:       rng,
		scene:     scene,
		sceneW:    sw,
		sceneH:    sh,
		offX:      float64(margin),
		offY:      float64(margin),
	}
}

// next returns the next jittered frame. The returned frame is freshly
// allocated each call.
func (g *shakeSequence) next() *hostframe.HostFrame {
	if g.frameNo > 0 {
		// Mean-reverting random walk keeps the window inside the scene.
		g.offX += g.rng.NormFloat64() * g.amplitude * 0.5
		g.offY += g.rng.NormFloat64() * g.amplitude * 0.5
		center := float64((g.sceneW - g.width) / 2)
		g.offX += (center - g.offX) * 0.1
		centerY := float64((g.sceneH - g.height) / 2)
		g.offY += (centerY - g.offY) * 0.1
	}
	g.frameNo++

	ox := int(math.Round(g.offX))
	oy := int(math.Round(g.offY))
	if ox < 0 {
		ox = 0
	} else if ox > g.sceneW-g.width {
		ox = g.sceneW - g.width
	}
	if oy < 0 {
		oy = 0
	} else if oy > g.sceneH-g.height {
		oy = g.sceneH - g.height
	}

	f := &hostframe.HostFrame{
		Width:          g.width,
		Height:         g.height,
		Format:         hostframe.FormatRGBA,
		Data:           make([]byte, g.width*g.height*4),
		StrideBytes:    g.width * 4,
		TimestampNanos: int64(g.frameNo) * 33_000_000, // ~30fps
	}
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			v := g.scene[(oy+y)*g.sceneW+(ox+x)]
			i := (y*g.width + x) * 4
			f.Data[i+0] = v
			f.Data[i+1] = v
			f.Data[i+2] = v
			f.Data[i+3] = 0xFF
		}
	}
	return f
}
