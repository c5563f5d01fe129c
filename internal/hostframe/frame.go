// Package hostframe adapts between the host application's frame
// representation and the stabilizer's internal image buffers.
//
// Frames arrive from an external, not-fully-trusted source, so every
// conversion validates dimensions and channel layout and guards the
// byte-size arithmetic against overflow before allocating. Ingress data is
// copied into an internally owned buffer immediately; the host's buffer is
// never aliased beyond the call. Egress frames are freshly allocated and
// ownership passes to the caller, paired with an explicit Release.
package hostframe

// MaxDim is the absolute bound on frame width and height. It is chosen so
// that width·height·channels stays far from integer overflow on every
// supported platform (16384² × 4 bytes ≈ 1 GiB).
const MaxDim = 16384

// maxPixelBytes is the largest buffer ToInternal or FromInternal will
// allocate: a MaxDim×MaxDim 4-channel frame.
const maxPixelBytes = int64(MaxDim) * int64(MaxDim) * 4

// PixelFormat identifies the channel layout of a host frame.
type PixelFormat string

const (
	FormatGray PixelFormat = "gray" // 1 channel, 8-bit
	FormatRGB  PixelFormat = "rgb"  // 3 channels, packed 8-bit
	FormatRGBA PixelFormat = "rgba" // 4 channels, packed 8-bit with alpha
	FormatBGRA PixelFormat = "bgra" // 4 channels, packed 8-bit with alpha
)

// Channels returns the number of interleaved channels for the format, or 0
// for an unrecognised format.
func (f PixelFormat) Channels() int {
	switch f {
	case FormatGray:
		return 1
	case FormatRGB:
		return 3
	case FormatRGBA, FormatBGRA:
		return 4
	default:
		return 0
	}
}

// HostFrame is the host-side frame representation at the processing boundary.
// Data holds packed interleaved pixels; StrideBytes is the byte distance
// between the starts of consecutive rows (0 means tightly packed).
type HostFrame struct {
	Width          int
	Height         int
	Format         PixelFormat
	Data           []byte
	StrideBytes    int
	TimestampNanos int64
}

// Image is the internally owned image matrix: packed interleaved bytes with
// no row padding. The zero value is the empty image.
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

// Empty reports whether the image carries no pixel data.
func (img Image) Empty() bool {
	return img.Width == 0 || img.Height == 0 || img.Channels == 0 || len(img.Pix) == 0
}

// byteSize computes width·height·channels with overflow and bounds guards.
// This is the gate every allocation in this package goes through: frames
// originate outside the process, so the dimensions cannot be trusted.
func byteSize(width, height, channels int) (int, bool) {
	if width <= 0 || height <= 0 || channels <= 0 {
		return 0, false
	}
	if width > MaxDim || height > MaxDim || channels > 4 {
		return 0, false
	}
	total := int64(width) * int64(height) * int64(channels)
	if total <= 0 || total > maxPixelBytes {
		return 0, false
	}
	return int(total), true
}

// Validate reports whether a host frame is safe to convert: non-nil, both
// dimensions in (0, MaxDim], and a channel count of 1, 3 or 4. It never
// panics regardless of input.
func Validate(f *HostFrame) bool {
	if f == nil {
		return false
	}
	if f.Width <= 0 || f.Height <= 0 {
		return false
	}
	if f.Width > MaxDim || f.Height > MaxDim {
		return false
	}
	switch f.Format.Channels() {
	case 1, 3, 4:
		return true
	default:
		return false
	}
}

// ToInternal copies the host frame's pixel data into an internally owned
// Image, honouring the host stride. An invalid frame, or one whose buffer is
// shorter than its declared geometry, yields the empty Image with no other
// side effects.
func ToInternal(f *HostFrame) Image {
	if !Validate(f) {
		return Image{}
	}

	channels := f.Format.Channels()
	size, ok := byteSize(f.Width, f.Height, channels)
	if !ok {
		return Image{}
	}

	rowBytes := f.Width * channels
	stride := f.StrideBytes
	if stride == 0 {
		stride = rowBytes
	}
	if stride < rowBytes {
		return Image{}
	}
	// The last row need not be padded out to the full stride.
	if int64(len(f.Data)) < int64(stride)*int64(f.Height-1)+int64(rowBytes) {
		return Image{}
	}

	img := Image{
		Width:    f.Width,
		Height:   f.Height,
		Channels: channels,
		Pix:      make([]byte, size),
	}
	for y := 0; y < f.Height; y++ {
		src := f.Data[y*stride : y*stride+rowBytes]
		dst := img.Pix[y*rowBytes : (y+1)*rowBytes]
		copy(dst, src)
	}
	return img
}

// FromInternal allocates a new host frame sized to img, copies the pixel
// data, and carries the timestamp and pixel format over from the reference
// frame. Returns nil if the reference is nil or the image is empty. The
// returned frame is owned by the caller and must be released exactly once
// with Release.
func FromInternal(img Image, ref *HostFrame) *HostFrame {
	if ref == nil || img.Empty() {
		return nil
	}
	size, ok := byteSize(img.Width, img.Height, img.Channels)
	if !ok || size != len(img.Pix) {
		return nil
	}

	format := ref.Format
	if format.Channels() != img.Channels {
		// Geometry changed under conversion (e.g. grayscale output from a
		// colour reference); fall back to a format matching the data.
		switch img.Channels {
		case 1:
			format = FormatGray
		case 3:
			format = FormatRGB
		default:
			format = FormatRGBA
		}
	}

	out := &HostFrame{
		Width:          img.Width,
		Height:         img.Height,
		Format:         format,
		Data:           make([]byte, size),
		StrideBytes:    img.Width * img.Channels,
		TimestampNanos: ref.TimestampNanos,
	}
	copy(out.Data, img.Pix)
	return out
}

// Release frees a frame previously allocated by FromInternal. Go's collector
// owns the memory, but dropping the buffer reference here keeps the
// allocate/release contract symmetric with the host boundary. Call at most
// once per allocation; a nil frame is a no-op.
func Release(f *HostFrame) {
	if f == nil {
		return
	}
	f.Data = nil
	f.StrideBytes = 0
}

// Grayscale reduces a multi-channel image to a single channel using BT.601
// luma weights. A single-channel input is copied through; an empty input
// yields an empty output.
func Grayscale(img Image) Image {
	if img.Empty() {
		return Image{}
	}
	if img.Channels == 1 {
		out := Image{Width: img.Width, Height: img.Height, Channels: 1, Pix: make([]byte, len(img.Pix))}
		copy(out.Pix, img.Pix)
		return out
	}

	size, ok := byteSize(img.Width, img.Height, 1)
	if !ok {
		return Image{}
	}
	out := Image{Width: img.Width, Height: img.Height, Channels: 1, Pix: make([]byte, size)}

	c := img.Channels
	for i, j := 0, 0; j < size; i, j = i+c, j+1 {
		r := uint32(img.Pix[i])
		g := uint32(img.Pix[i+1])
		b := uint32(img.Pix[i+2])
		// Integer BT.601: y = 0.299r + 0.587g + 0.114b
		out.Pix[j] = byte((299*r + 587*g + 114*b + 500) / 1000)
	}
	return out
}
