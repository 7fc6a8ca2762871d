package surfacecamera

import "errors"

var (
	// ErrInvalidInput is returned by SelectBestSize for an empty candidate
	// list or a non-positive aspect ratio term
	ErrInvalidInput = errors.New("surface-camera: invalid input")

	// ErrCameraUnavailable is returned by Acquire when no camera could be opened
	ErrCameraUnavailable = errors.New("surface-camera: camera unavailable")

	// ErrInfoUnavailable is returned by Device.Info when the backend cannot
	// report facing and sensor orientation
	ErrInfoUnavailable = errors.New("surface-camera: camera info unavailable")

	// ErrNotStarted is returned by operations that need a configured preview
	ErrNotStarted = errors.New("surface-camera: preview not set up")

	// ErrUnsupportedFormat is returned when a size cannot be derived for a
	// compressed or unknown pixel format
	ErrUnsupportedFormat = errors.New("surface-camera: unsupported pixel format")
)
