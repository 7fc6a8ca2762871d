//go:build linux

package v4l2cam

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blackjack/webcam"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	surfacecamera "github.com/siddh1004/Surface-Camera-Xamarin-Android"
)

// fakeCam serves synthetic YUYV (or MJPEG) frames at the configured size
type fakeCam struct {
	mu        sync.Mutex
	formats   map[webcam.PixelFormat]string
	sizes     map[webcam.PixelFormat][]webcam.FrameSize
	controls  map[webcam.ControlID]webcam.Control
	format    webcam.PixelFormat
	w, h      uint32
	streaming bool
	starts    int
	closed    bool
	setCtrl   []webcam.ControlID
	jpeg      []byte
}

func newFakeCam() *fakeCam {
	return &fakeCam{
		formats: map[webcam.PixelFormat]string{
			webcam.PixelFormat(PixFmtYUYV): "YUYV 4:2:2",
		},
		sizes: map[webcam.PixelFormat][]webcam.FrameSize{
			webcam.PixelFormat(PixFmtYUYV): {
				{MinWidth: 320, MaxWidth: 320, MinHeight: 240, MaxHeight: 240},
				{MinWidth: 640, MaxWidth: 640, MinHeight: 480, MaxHeight: 480},
				{MinWidth: 1280, MaxWidth: 1280, MinHeight: 960, MaxHeight: 960},
			},
		},
		controls: map[webcam.ControlID]webcam.Control{},
	}
}

func (f *fakeCam) GetSupportedFormats() map[webcam.PixelFormat]string { return f.formats }

func (f *fakeCam) GetSupportedFrameSizes(p webcam.PixelFormat) []webcam.FrameSize {
	return f.sizes[p]
}

func (f *fakeCam) SetImageFormat(p webcam.PixelFormat, w, h uint32) (webcam.PixelFormat, uint32, uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.streaming {
		return 0, 0, 0, errors.New("device busy")
	}
	f.format, f.w, f.h = p, w, h
	return p, w, h, nil
}

func (f *fakeCam) SetBufferCount(uint32) error { return nil }

func (f *fakeCam) StartStreaming() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streaming = true
	f.starts++
	return nil
}

func (f *fakeCam) WaitForFrame(uint32) error {
	time.Sleep(time.Millisecond)
	return nil
}

func (f *fakeCam) ReadFrame() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if uint32(f.format) != PixFmtYUYV {
		return f.jpeg, nil
	}
	frame := make([]byte, int(f.w*f.h*2))
	for i := range frame {
		frame[i] = 128
	}
	return frame, nil
}

func (f *fakeCam) StopStreaming() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streaming = false
	return nil
}

func (f *fakeCam) GetControls() map[webcam.ControlID]webcam.Control { return f.controls }

func (f *fakeCam) SetControl(id webcam.ControlID, _ int32) error {
	f.setCtrl = append(f.setCtrl, id)
	return nil
}

func (f *fakeCam) Close() error {
	f.closed = true
	return nil
}

func testConfig() Config {
	back := surfacecamera.CameraInfo{Facing: surfacecamera.FacingBack, Orientation: 90}
	return Config{Device: "/dev/video9", Info: &back, FrameTimeout: time.Second}.withDefaults()
}

func TestNewDevice_YUYV(t *testing.T) {
	d, err := newDevice(newFakeCam(), testConfig())
	require.NoError(t, err)

	p, err := d.Parameters()
	require.NoError(t, err)
	assert.Equal(t, []surfacecamera.Dimension{
		{Width: 1280, Height: 960},
		{Width: 640, Height: 480},
		{Width: 320, Height: 240},
	}, p.SupportedPreviewSizes)
	assert.Equal(t, p.SupportedPreviewSizes, p.SupportedPictureSizes)
	assert.Equal(t, PixFmtYUYV, d.captureFmt)
	assert.Equal(t, PixFmtYUYV, d.pictureFmt)

	info, err := d.Info()
	require.NoError(t, err)
	assert.Equal(t, 90, info.Orientation)
}

func TestNewDevice_NoUsableFormat(t *testing.T) {
	cam := newFakeCam()
	cam.formats = map[webcam.PixelFormat]string{webcam.PixelFormat(0x34363248): "H264"}
	_, err := newDevice(cam, testConfig())
	assert.ErrorContains(t, err, "H264")
}

func TestFrameSizes_Stepwise(t *testing.T) {
	sizes := frameSizes([]webcam.FrameSize{
		{MinWidth: 160, MaxWidth: 1280, StepWidth: 16, MinHeight: 120, MaxHeight: 960, StepHeight: 8},
	}, []surfacecamera.Dimension{
		{Width: 640, Height: 480},
		{Width: 1920, Height: 1080}, // too large
		{Width: 650, Height: 480},   // off-step
	})
	assert.Equal(t, []surfacecamera.Dimension{{Width: 1280, Height: 960}, {Width: 640, Height: 480}}, sizes)
}

func TestDevice_PreviewDeliversNV21(t *testing.T) {
	cam := newFakeCam()
	d, err := newDevice(cam, testConfig())
	require.NoError(t, err)

	p, _ := d.Parameters()
	p.PreviewSize = surfacecamera.Dimension{Width: 320, Height: 240}
	require.NoError(t, d.SetParameters(p))

	size := NV21Size(320, 240)
	got := make(chan int, 1)
	require.NoError(t, d.StartPreview(context.Background(), make([]byte, size), func(data []byte) {
		select {
		case got <- len(data):
		default:
		}
	}))
	assert.Error(t, d.StartPreview(context.Background(), nil, nil), "second start")

	select {
	case n := <-got:
		assert.Equal(t, size, n)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
	}

	require.NoError(t, d.StopPreview())
	require.NoError(t, d.StopPreview())
	assert.False(t, cam.streaming)

	after := d.Stats().FrameCount
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, d.Stats().FrameCount, "frames after StopPreview")
}

func TestDevice_TakePictureEncodesYUYV(t *testing.T) {
	cam := newFakeCam()
	d, err := newDevice(cam, testConfig())
	require.NoError(t, err)

	p, _ := d.Parameters()
	p.PreviewSize = surfacecamera.Dimension{Width: 320, Height: 240}
	p.PictureSize = surfacecamera.Dimension{Width: 640, Height: 480}
	require.NoError(t, d.SetParameters(p))

	require.NoError(t, d.StartPreview(context.Background(), make([]byte, NV21Size(320, 240)), nil))

	data, err := d.TakePicture(context.Background())
	require.NoError(t, err)

	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 480, img.Bounds().Dy())

	// preview resumed at its own size
	assert.Equal(t, 3, cam.starts)
	assert.Equal(t, uint32(320), cam.w)

	require.NoError(t, d.Close())
	assert.True(t, cam.closed)
	_, err = d.TakePicture(context.Background())
	assert.Error(t, err)
}

func TestDevice_TakePictureMJPEGPassthrough(t *testing.T) {
	cam := newFakeCam()
	cam.formats[webcam.PixelFormat(PixFmtMJPEG)] = "Motion-JPEG"
	cam.sizes[webcam.PixelFormat(PixFmtMJPEG)] = []webcam.FrameSize{
		{MinWidth: 1280, MaxWidth: 1280, MinHeight: 960, MaxHeight: 960},
	}
	cam.jpeg = []byte{0xFF, 0xD8, 0xFF, 0xD9}

	d, err := newDevice(cam, testConfig())
	require.NoError(t, err)
	assert.Equal(t, PixFmtMJPEG, d.pictureFmt)

	data, err := d.TakePicture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cam.jpeg, data)
}

func TestDevice_SetParametersRejects(t *testing.T) {
	d, err := newDevice(newFakeCam(), testConfig())
	require.NoError(t, err)
	p, _ := d.Parameters()

	bad := p
	bad.PreviewFormat = surfacecamera.FormatRGB
	assert.ErrorIs(t, d.SetParameters(bad), surfacecamera.ErrUnsupportedFormat)

	bad = p
	bad.PreviewSize = surfacecamera.Dimension{Width: 800, Height: 600}
	assert.Error(t, d.SetParameters(bad))

	bad = p
	bad.FlashMode = surfacecamera.FlashModeOn
	assert.Error(t, d.SetParameters(bad))

	assert.Error(t, d.SetDisplayOrientation(45))
	assert.NoError(t, d.SetDisplayOrientation(270))
}

func TestDevice_AutoFocus(t *testing.T) {
	cam := newFakeCam()
	d, err := newDevice(cam, testConfig())
	require.NoError(t, err)

	require.NoError(t, d.AutoFocus())
	assert.Empty(t, cam.setCtrl, "no focus controls")

	cam.controls[cidFocusAuto] = webcam.Control{}
	require.NoError(t, d.AutoFocus())
	cam.controls[cidAutoFocusStart] = webcam.Control{}
	require.NoError(t, d.AutoFocus())
	assert.Equal(t, []webcam.ControlID{cidFocusAuto, cidAutoFocusStart}, cam.setCtrl)
}

func TestConvertFrame_Unsupported(t *testing.T) {
	_, err := convertFrame(make([]byte, 16), make([]byte, 16), surfacecamera.Dimension{Width: 2, Height: 2}, PixFmtMJPEG, surfacecamera.FormatYUYV)
	assert.ErrorIs(t, err, surfacecamera.ErrUnsupportedFormat)
}
