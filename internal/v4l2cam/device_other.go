//go:build !linux

package v4l2cam

import (
	"fmt"
	"runtime"

	surfacecamera "github.com/siddh1004/Surface-Camera-Xamarin-Android"
)

// Open always fails: V4L2 is Linux-only
func Open(cfg Config) (surfacecamera.Device, error) {
	return nil, fmt.Errorf("v4l2cam: V4L2 is not available on %s", runtime.GOOS)
}
