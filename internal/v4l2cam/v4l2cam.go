// Package v4l2cam implements surfacecamera.Device directly on Video4Linux2
// through github.com/blackjack/webcam.
//
// YUYV streams are converted to NV21 preview frames and encoded to JPEG for
// pictures; MJPEG streams are decoded for preview and passed through for
// pictures.
package v4l2cam

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	surfacecamera "github.com/siddh1004/Surface-Camera-Xamarin-Android"
)

// Config describes one V4L2 camera
type Config struct {
	Device string // e.g. /dev/video0

	// Info is reported by Device.Info; nil means unknown
	Info *surfacecamera.CameraInfo

	// FallbackSizes are offered for drivers reporting stepwise size ranges
	FallbackSizes []surfacecamera.Dimension

	FrameTimeout      time.Duration // picture frame wait (default: 5s)
	PictureSkipFrames int           // frames discarded before a picture (exposure settle)
	JPEGQuality       int           // YUYV picture encoding quality (default: 90)
	BufferCount       uint32        // mmap buffers (default: 4)
}

func (c Config) withDefaults() Config {
	if c.Device == "" {
		c.Device = "/dev/video0"
	}
	if c.FrameTimeout <= 0 {
		c.FrameTimeout = 5 * time.Second
	}
	if c.JPEGQuality <= 0 {
		c.JPEGQuality = 90
	}
	if c.BufferCount == 0 {
		c.BufferCount = 4
	}
	return c
}

// Stats is a snapshot of device counters
type Stats struct {
	FrameCount    uint64
	BytesRead     uint64
	FramesDropped uint64
	ReadErrors    uint64
}

// Discover returns the /dev/video* device nodes in name order
func Discover() ([]string, error) {
	paths, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, fmt.Errorf("v4l2cam: list devices: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Opener exposes a fixed list of configured cameras. Camera id is the
// index into that list.
type Opener struct {
	cameras []Config
}

var _ surfacecamera.Opener = (*Opener)(nil)

// NewOpener returns an Opener for the given cameras
func NewOpener(cameras ...Config) (*Opener, error) {
	if len(cameras) == 0 {
		return nil, fmt.Errorf("v4l2cam: at least one camera is required")
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
		return surfacecamera.CameraInfo{}, fmt.Errorf("v4l2cam: no camera %d", id)
	}
	if o.cameras[id].Info == nil {
		return surfacecamera.CameraInfo{}, surfacecamera.ErrInfoUnavailable
	}
	return *o.cameras[id].Info, nil
}

// Open opens camera id
func (o *Opener) Open(id int) (surfacecamera.Device, error) {
	if id < 0 || id >= len(o.cameras) {
		return nil, fmt.Errorf("v4l2cam: no camera %d", id)
	}
	dev, err := Open(o.cameras[id])
	if err != nil {
		return nil, err
	}
	return dev, nil
}

// SortSizes removes duplicates and orders sizes by area, largest first
func SortSizes(sizes []surfacecamera.Dimension) []surfacecamera.Dimension {
	seen := make(map[surfacecamera.Dimension]bool, len(sizes))
	out := make([]surfacecamera.Dimension, 0, len(sizes))
	for _, s := range sizes {
		if s.Width <= 0 || s.Height <= 0 || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Pixels() > out[j].Pixels()
	})
	return out
}
