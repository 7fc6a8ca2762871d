package surfacecamera_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	surfacecamera "github.com/siddh1004/Surface-Camera-Xamarin-Android"
)

// fakeDevice is an in-memory Device. Frames are pushed with emit().
type fakeDevice struct {
	mu sync.Mutex

	info    surfacecamera.CameraInfo
	infoErr error
	params  surfacecamera.Parameters

	surface     surfacecamera.Surface
	orientation int
	running     bool
	buf         []byte
	fn          surfacecamera.FrameFunc

	starts, stops, focuses int
	picture                []byte
	pictureErr             error
	setParamsErr           error
	startErr               error
	displayErr             error
	closed                 bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		info: surfacecamera.CameraInfo{Facing: surfacecamera.FacingBack, Orientation: 90},
		params: surfacecamera.Parameters{
			SupportedPreviewSizes: []surfacecamera.Dimension{
				{Width: 176, Height: 144}, {Width: 320, Height: 240}, {Width: 640, Height: 480},
			},
			SupportedPictureSizes: []surfacecamera.Dimension{
				{Width: 320, Height: 240},
				{Width: 640, Height: 480},
				{Width: 1280, Height: 720},
				{Width: 1280, Height: 960},
				{Width: 2592, Height: 1944},
			},
			SupportedFlashModes: []string{surfacecamera.FlashModeOff, surfacecamera.FlashModeAuto},
		},
		picture: []byte{0xff, 0xd8, 0xff, 0xd9},
	}
}

func (d *fakeDevice) Info() (surfacecamera.CameraInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.info, d.infoErr
}

func (d *fakeDevice) Parameters() (surfacecamera.Parameters, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.params, nil
}

func (d *fakeDevice) SetParameters(p surfacecamera.Parameters) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.setParamsErr != nil {
		return d.setParamsErr
	}
	d.params = p
	return nil
}

func (d *fakeDevice) SetPreviewDisplay(s surfacecamera.Surface) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.displayErr != nil {
		return d.displayErr
	}
	d.surface = s
	return nil
}

func (d *fakeDevice) SetDisplayOrientation(degrees int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.orientation = degrees
	return nil
}

func (d *fakeDevice) StartPreview(_ context.Context, buf []byte, fn surfacecamera.FrameFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startErr != nil {
		return d.startErr
	}
	if d.running {
		return errors.New("preview already running")
	}
	d.running = true
	d.buf = buf
	d.fn = fn
	d.starts++
	return nil
}

func (d *fakeDevice) StopPreview() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return errors.New("preview not running")
	}
	d.running = false
	d.fn = nil
	d.stops++
	return nil
}

func (d *fakeDevice) AutoFocus() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.focuses++
	return nil
}

func (d *fakeDevice) TakePicture(context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.picture, d.pictureErr
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// emit delivers n frames filling the whole buffer. It returns false if the
// preview is not running.
func (d *fakeDevice) emit(n int) bool {
	d.mu.Lock()
	fn, buf, running := d.fn, d.buf, d.running
	d.mu.Unlock()
	if !running {
		return false
	}
	for i := 0; i < n; i++ {
		for j := range buf {
			buf[j] = byte(i)
		}
		fn(buf)
	}
	return true
}

func (d *fakeDevice) isRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// fakeOpener opens fakeDevices; ids listed in fail refuse to open.
type fakeOpener struct {
	infos  []surfacecamera.CameraInfo
	fail   map[int]bool
	opened []int
}

func (o *fakeOpener) NumberOfCameras() int { return len(o.infos) }

func (o *fakeOpener) Info(id int) (surfacecamera.CameraInfo, error) {
	if id < 0 || id >= len(o.infos) {
		return surfacecamera.CameraInfo{}, fmt.Errorf("no camera %d", id)
	}
	return o.infos[id], nil
}

func (o *fakeOpener) Open(id int) (surfacecamera.Device, error) {
	if id < 0 || id >= len(o.infos) || o.fail[id] {
		return nil, fmt.Errorf("camera %d busy", id)
	}
	o.opened = append(o.opened, id)
	d := newFakeDevice()
	d.info = o.infos[id]
	return d, nil
}

// recordingSink keeps every stored picture in memory
type recordingSink struct {
	mu      sync.Mutex
	stored  [][]byte
	rotated []bool
	err     error
}

func (s *recordingSink) Store(_ context.Context, jpeg []byte, rotate bool) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", "", s.err
	}
	s.stored = append(s.stored, jpeg)
	s.rotated = append(s.rotated, rotate)
	id := fmt.Sprintf("pic-%d", len(s.stored))
	return id, "/tmp/" + id + ".jpg", nil
}

// countingProcessor records what the preview hands to the processor
type countingProcessor struct {
	mu     sync.Mutex
	frames int
	last   surfacecamera.Dimension
	format surfacecamera.PixelFormat
	length int
}

func (c *countingProcessor) ProcessFrame(frame []byte, size surfacecamera.Dimension, format surfacecamera.PixelFormat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames++
	c.last = size
	c.format = format
	c.length = len(frame)
}
