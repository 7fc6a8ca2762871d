package surfacecamera

// Rotation is the rotation of the display from its natural orientation
type Rotation int

const (
	Rotation0 Rotation = iota
	Rotation90
	Rotation180
	Rotation270
)

// Degrees returns the rotation in degrees. Unknown values map to 0.
func (r Rotation) Degrees() int {
	switch r {
	case Rotation90:
		return 90
	case Rotation180:
		return 180
	case Rotation270:
		return 270
	default:
		return 0
	}
}

// RotationFromDegrees maps 0/90/180/270 back to a Rotation.
// Any other value reports ok=false.
func RotationFromDegrees(deg int) (r Rotation, ok bool) {
	switch deg {
	case 0:
		return Rotation0, true
	case 90:
		return Rotation90, true
	case 180:
		return Rotation180, true
	case 270:
		return Rotation270, true
	}
	return Rotation0, false
}

// Facing is the direction a camera points relative to the display
type Facing int

const (
	FacingBack Facing = iota
	FacingFront
)

// String returns "back" or "front"
func (f Facing) String() string {
	if f == FacingFront {
		return "front"
	}
	return "back"
}

// CameraInfo describes the fixed properties of one camera
type CameraInfo struct {
	Facing Facing
	// Orientation is the clockwise angle the sensor image must be rotated
	// to be upright in the display's natural orientation (0, 90, 180, 270)
	Orientation int
}

// DisplayOrientation returns the clockwise rotation in degrees to apply to
// preview frames so they appear upright for the given display rotation.
// Front cameras are mirrored, so the result is compensated for the mirror.
func DisplayOrientation(info CameraInfo, r Rotation) int {
	deg := r.Degrees()
	if info.Facing == FacingFront {
		result := (info.Orientation + deg) % 360
		return (360 - result) % 360
	}
	return (info.Orientation - deg + 360) % 360
}

// LegacyDisplayOrientation is used when the device cannot report CameraInfo.
// It is correct for most back-facing sensors mounted at 90 degrees.
func LegacyDisplayOrientation(r Rotation) int {
	d := r.Degrees() - 90
	if d < 0 {
		return -d
	}
	return d
}

// NeedsPictureRotation reports whether a captured picture must be rotated
// by 90 degrees before it is stored, which is the case when the display is
// in its natural (or upside-down) orientation.
func NeedsPictureRotation(r Rotation) bool {
	return r == Rotation0 || r == Rotation180
}
