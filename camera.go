package surfacecamera

import (
	"fmt"
	"log/slog"
)

// Acquire opens a camera from op.
//
// With preferredID < 0 the first back-facing camera that opens is used.
// With preferredID >= 0 that camera is opened directly. If neither yields
// a device, camera 0 is tried as a last resort. The returned id is the id of
// the opened camera.
func Acquire(op Opener, preferredID int) (Device, int, error) {
	if op == nil {
		return nil, -1, fmt.Errorf("%w: no opener", ErrCameraUnavailable)
	}

	if preferredID < 0 {
		for i := 0; i < op.NumberOfCameras(); i++ {
			info, err := op.Info(i)
			if err != nil || info.Facing != FacingBack {
				continue
			}
			dev, err := op.Open(i)
			if err != nil {
				slog.Warn("surface-camera: failed to open back camera", "id", i, "error", err)
				continue
			}
			slog.Info("surface-camera: camera opened", "id", i, "facing", info.Facing.String())
			return dev, i, nil
		}
	} else {
		dev, err := op.Open(preferredID)
		if err == nil {
			slog.Info("surface-camera: camera opened", "id", preferredID)
			return dev, preferredID, nil
		}
		slog.Warn("surface-camera: failed to open camera", "id", preferredID, "error", err)
	}

	dev, err := op.Open(0)
	if err != nil {
		// The camera is most likely held by another process
		return nil, -1, fmt.Errorf("%w: %w", ErrCameraUnavailable, err)
	}
	slog.Info("surface-camera: camera opened", "id", 0, "note", "default camera fallback")
	return dev, 0, nil
}

// Release stops any running preview and closes dev. Stop errors are
// ignored; a nil dev is a no-op.
func Release(dev Device) error {
	if dev == nil {
		return nil
	}
	if err := dev.StopPreview(); err != nil {
		slog.Debug("surface-camera: stop preview on release", "error", err)
	}
	if err := dev.Close(); err != nil {
		return fmt.Errorf("surface-camera: close camera: %w", err)
	}
	return nil
}
