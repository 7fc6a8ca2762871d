package surfacecamera

import "fmt"

// PixelFormat identifies the layout of preview frames or pictures
type PixelFormat int

const (
	// FormatUnknown is the zero value
	FormatUnknown PixelFormat = iota
	// FormatNV21 is YUV 4:2:0 semi-planar with interleaved VU (12 bpp)
	FormatNV21
	// FormatYUYV is packed YUV 4:2:2 (16 bpp)
	FormatYUYV
	// FormatRGB is packed 8-bit RGB (24 bpp)
	FormatRGB
	// FormatJPEG is a JPEG still picture
	FormatJPEG
	// FormatMJPEG is a stream of JPEG frames
	FormatMJPEG
)

// BitsPerPixel returns the storage cost of one pixel. Compressed and unknown
// formats return 0.
func (f PixelFormat) BitsPerPixel() int {
	switch f {
	case FormatNV21:
		return 12
	case FormatYUYV:
		return 16
	case FormatRGB:
		return 24
	default:
		return 0
	}
}

// Compressed reports whether frames have a variable encoded length
func (f PixelFormat) Compressed() bool {
	return f == FormatJPEG || f == FormatMJPEG
}

// String returns a human-readable name for the format
func (f PixelFormat) String() string {
	switch f {
	case FormatNV21:
		return "nv21"
	case FormatYUYV:
		return "yuyv"
	case FormatRGB:
		return "rgb"
	case FormatJPEG:
		return "jpeg"
	case FormatMJPEG:
		return "mjpeg"
	default:
		return "unknown"
	}
}

// PreviewBufferSize returns the length of a buffer large enough to hold one
// preview frame of size d in format f: w*h*bpp/8.
func PreviewBufferSize(d Dimension, f PixelFormat) (int, error) {
	bpp := f.BitsPerPixel()
	if bpp == 0 {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
	if d.Width <= 0 || d.Height <= 0 {
		return 0, fmt.Errorf("surface-camera: invalid preview size %s", d)
	}
	return d.Width * d.Height * bpp / 8, nil
}
