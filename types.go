package surfacecamera

import (
	"fmt"
	"time"
)

// Dimension is a width x height pair describing one capture resolution
type Dimension struct {
	// Width in pixels
	Width int
	// Height in pixels
	Height int
}

// String returns the resolution as "WxH" (e.g., "640x480")
func (d Dimension) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Pixels returns Width*Height
func (d Dimension) Pixels() int {
	return d.Width * d.Height
}

// Flash modes understood by Parameters.FlashMode
const (
	FlashModeOff  = "off"
	FlashModeOn   = "on"
	FlashModeAuto = "auto"
)

// Parameters is the configurable state of a camera device.
//
// A Device hands out a copy with Parameters() and applies a modified copy
// with SetParameters(). Supported* fields are read-only capabilities.
type Parameters struct {
	PreviewSize   Dimension
	PictureSize   Dimension
	PreviewFormat PixelFormat
	PictureFormat PixelFormat
	FlashMode     string

	SupportedPreviewSizes []Dimension
	SupportedPictureSizes []Dimension
	SupportedFlashModes   []string
}

// SupportsFlashMode reports whether mode is listed in SupportedFlashModes
func (p Parameters) SupportsFlashMode(mode string) bool {
	for _, m := range p.SupportedFlashModes {
		if m == mode {
			return true
		}
	}
	return false
}

// Picture is a captured still image after it was handed to the PictureSink
type Picture struct {
	// ID is the library identifier (empty when no sink stored it)
	ID string
	// Path is where the sink stored the picture, if it is file-backed
	Path string
	// Size is the configured picture size at capture time
	Size Dimension
	// Rotated is true if the picture was rotated 90 degrees before storing
	Rotated bool
	// Bytes is the length of the encoded JPEG returned by the device
	Bytes int
	// TakenAt is when the device returned the picture
	TakenAt time.Time
}

// PreviewStats contains current preview statistics
type PreviewStats struct {
	// Running indicates the preview is currently started
	Running bool
	// FrameCount is the total number of preview frames processed
	FrameCount uint64
	// BytesRead is the total preview bytes delivered by the device
	BytesRead uint64
	// PicturesTaken is the number of successful captures
	PicturesTaken uint64
	// FPSReal is the measured preview FPS since the last start
	FPSReal float64
	// PreviewSize is the negotiated preview size
	PreviewSize Dimension
	// PictureSize is the negotiated picture size
	PictureSize Dimension
	// BufferSize is the length of the preview callback buffer
	BufferSize int
	// DisplayOrientation is the last orientation applied, in degrees
	DisplayOrientation int
}
