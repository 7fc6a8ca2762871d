package gstcam

import (
	"fmt"

	surfacecamera "github.com/siddh1004/Surface-Camera-Xamarin-Android"
)

// Opener exposes a fixed list of configured cameras. Camera id is the
// index into that list.
type Opener struct {
	cameras []Config
}

var _ surfacecamera.Opener = (*Opener)(nil)

// NewOpener returns an Opener for the given cameras
func NewOpener(cameras ...Config) (*Opener, error) {
	if len(cameras) == 0 {
		return nil, fmt.Errorf("gstcam: at least one camera is required")
	}
	return &Opener{cameras: cameras}, nil
}

// NumberOfCameras returns the number of configured cameras
func (o *Opener) NumberOfCameras() int {
	return len(o.cameras)
}

// Info returns the configured info of camera id without opening it
func (o *Opener) Info(id int) (surfacecamera.CameraInfo, error) {
	if id < 0 || id >= len(o.cameras) {
		return surfacecamera.CameraInfo{}, fmt.Errorf("gstcam: no camera %d", id)
	}
	if o.cameras[id].Info == nil {
		return surfacecamera.CameraInfo{}, surfacecamera.ErrInfoUnavailable
	}
	return *o.cameras[id].Info, nil
}

// Open opens camera id
func (o *Opener) Open(id int) (surfacecamera.Device, error) {
	if id < 0 || id >= len(o.cameras) {
		return nil, fmt.Errorf("gstcam: no camera %d", id)
	}
	dev, err := Open(o.cameras[id])
	if err != nil {
		return nil, err
	}
	return dev, nil
}
