package surfacecamera

import "context"

// FrameFunc receives one preview frame. data aliases the preview buffer
// handed to StartPreview and is only valid until FrameFunc returns; the
// buffer is re-queued for the next frame afterwards.
type FrameFunc func(data []byte)

// Device defines the contract for a camera handle.
//
// A Device is owned by the caller and passed explicitly to Preview and
// Release; nothing in this package keeps a global camera. Implementations
// must guarantee:
//   - StartPreview() returns immediately; frames arrive on another goroutine
//   - StopPreview() is idempotent and safe when no preview is running
//   - Frames are never delivered to fn after StopPreview() returns
//   - TakePicture() can be called while the preview is running; backends
//     that cannot share the sensor pause the preview until it returns
type Device interface {
	// Info returns facing and sensor orientation, or ErrInfoUnavailable if
	// the backend cannot tell.
	Info() (CameraInfo, error)

	// Parameters returns a copy of the current parameters, including the
	// supported sizes reported by the hardware.
	Parameters() (Parameters, error)

	// SetParameters applies p. Unsupported values are rejected with an error
	// and leave the previous parameters in place.
	SetParameters(p Parameters) error

	// SetPreviewDisplay sets the surface frames are rendered onto.
	SetPreviewDisplay(s Surface) error

	// SetDisplayOrientation sets the clockwise rotation of the displayed
	// preview, in degrees (0, 90, 180, 270). Frames passed to StartPreview
	// callbacks are not rotated.
	SetDisplayOrientation(degrees int) error

	// StartPreview starts delivering frames into buf.
	//
	// Each frame is written into buf (truncated to the frame length) and
	// passed to fn. Frames that arrive while fn is running are dropped.
	// The preview stops when ctx is cancelled or StopPreview is called.
	StartPreview(ctx context.Context, buf []byte, fn FrameFunc) error

	// StopPreview stops the preview.
	StopPreview() error

	// AutoFocus triggers a single focus run. Backends without focus
	// control return nil.
	AutoFocus() error

	// TakePicture captures one still picture at Parameters().PictureSize
	// and returns it JPEG-encoded.
	TakePicture(ctx context.Context) ([]byte, error)

	// Close releases the camera. The Device must not be used afterwards.
	Close() error
}

// Opener enumerates and opens cameras
type Opener interface {
	NumberOfCameras() int
	Info(id int) (CameraInfo, error)
	Open(id int) (Device, error)
}

// Surface is the display target preview frames are rendered onto
type Surface interface {
	// Valid reports whether the surface can currently receive frames
	Valid() bool
}

// HeadlessSurface is a Surface that is always valid and displays nothing
type HeadlessSurface struct{}

// Valid always returns true
func (HeadlessSurface) Valid() bool { return true }

// Display reports the current rotation of the screen
type Display interface {
	Rotation() Rotation
}

// FixedDisplay is a Display with a constant rotation
type FixedDisplay Rotation

// Rotation returns the fixed rotation
func (d FixedDisplay) Rotation() Rotation { return Rotation(d) }

// FrameProcessor receives preview frames after the device fills the buffer.
// Implementations must not retain frame beyond the call.
type FrameProcessor interface {
	ProcessFrame(frame []byte, size Dimension, format PixelFormat)
}

// NopProcessor discards frames
type NopProcessor struct{}

// ProcessFrame does nothing
func (NopProcessor) ProcessFrame([]byte, Dimension, PixelFormat) {}

// PictureSink stores captured pictures
type PictureSink interface {
	// Store persists jpeg, rotating it 90 degrees clockwise first if rotate
	// is set, and returns the identifier and location it was stored under.
	Store(ctx context.Context, jpeg []byte, rotate bool) (id, path string, err error)
}

// DiscardSink is a PictureSink that stores nothing
type DiscardSink struct{}

// Store returns empty identifiers
func (DiscardSink) Store(context.Context, []byte, bool) (string, string, error) {
	return "", "", nil
}
