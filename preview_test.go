package surfacecamera_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	surfacecamera "github.com/siddh1004/Surface-Camera-Xamarin-Android"
)

type invalidSurface struct{}

func (invalidSurface) Valid() bool { return false }

func newTestPreview(t *testing.T, dev *fakeDevice, rotation surfacecamera.Rotation, opts ...surfacecamera.Option) *surfacecamera.Preview {
	t.Helper()
	p, err := surfacecamera.NewPreview(dev, surfacecamera.FixedDisplay(rotation), surfacecamera.DefaultPreviewConfig(), opts...)
	require.NoError(t, err)
	return p
}

func TestNewPreview_FailFast(t *testing.T) {
	dev := newFakeDevice()

	tests := []struct {
		name   string
		dev    surfacecamera.Device
		modify func(*surfacecamera.PreviewConfig)
	}{
		{"nil device", nil, func(*surfacecamera.PreviewConfig) {}},
		{"zero aspect", dev, func(c *surfacecamera.PreviewConfig) { c.AspectH = 0 }},
		{"zero preview width", dev, func(c *surfacecamera.PreviewConfig) { c.PreviewMaxWidth = 0 }},
		{"negative picture width", dev, func(c *surfacecamera.PreviewConfig) { c.PictureMaxWidth = -1 }},
		{"compressed preview format", dev, func(c *surfacecamera.PreviewConfig) { c.PreviewFormat = surfacecamera.FormatMJPEG }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := surfacecamera.DefaultPreviewConfig()
			tt.modify(&cfg)
			_, err := surfacecamera.NewPreview(tt.dev, nil, cfg)
			assert.Error(t, err)
		})
	}
}

func TestPreview_SurfaceCreated(t *testing.T) {
	dev := newFakeDevice()
	proc := &countingProcessor{}
	p := newTestPreview(t, dev, surfacecamera.Rotation0, surfacecamera.WithProcessor(proc))

	require.NoError(t, p.SurfaceCreated(context.Background(), surfacecamera.HeadlessSurface{}))

	params, err := p.Parameters()
	require.NoError(t, err)

	// preview and picture sizes are selected independently
	assert.Equal(t, surfacecamera.Dimension{Width: 640, Height: 480}, params.PreviewSize)
	assert.Equal(t, surfacecamera.Dimension{Width: 1280, Height: 960}, params.PictureSize)
	assert.Equal(t, surfacecamera.FormatNV21, params.PreviewFormat)
	assert.Equal(t, surfacecamera.FormatJPEG, params.PictureFormat)
	assert.Equal(t, surfacecamera.FlashModeOff, params.FlashMode)

	assert.True(t, dev.isRunning())
	assert.Equal(t, 1, dev.focuses)

	stats := p.Stats()
	assert.True(t, stats.Running)
	assert.Equal(t, 640*480*12/8, stats.BufferSize)

	require.True(t, dev.emit(3))
	stats = p.Stats()
	assert.Equal(t, uint64(3), stats.FrameCount)
	assert.Equal(t, uint64(3*640*480*12/8), stats.BytesRead)

	assert.Equal(t, 3, proc.frames)
	assert.Equal(t, params.PreviewSize, proc.last)
	assert.Equal(t, surfacecamera.FormatNV21, proc.format)
	assert.Equal(t, stats.BufferSize, proc.length)
}

func TestPreview_SelectsFromPreviewSizesWhenConfigured(t *testing.T) {
	dev := newFakeDevice()
	dev.params.SupportedPreviewSizes = []surfacecamera.Dimension{{Width: 176, Height: 144}, {Width: 320, Height: 240}}

	cfg := surfacecamera.DefaultPreviewConfig()
	cfg.SelectPreviewFromPictureSizes = false
	p, err := surfacecamera.NewPreview(dev, nil, cfg)
	require.NoError(t, err)

	require.NoError(t, p.SurfaceCreated(context.Background(), surfacecamera.HeadlessSurface{}))
	params, err := p.Parameters()
	require.NoError(t, err)
	assert.Equal(t, surfacecamera.Dimension{Width: 320, Height: 240}, params.PreviewSize)
}

func TestPreview_UnsupportedFlashIsSkipped(t *testing.T) {
	dev := newFakeDevice()
	dev.params.SupportedFlashModes = nil
	p := newTestPreview(t, dev, surfacecamera.Rotation0)

	require.NoError(t, p.SurfaceCreated(context.Background(), surfacecamera.HeadlessSurface{}))
	params, err := p.Parameters()
	require.NoError(t, err)
	assert.Empty(t, params.FlashMode)
}

func TestPreview_SetupErrors(t *testing.T) {
	t.Run("no supported sizes", func(t *testing.T) {
		dev := newFakeDevice()
		dev.params.SupportedPictureSizes = nil
		dev.params.SupportedPreviewSizes = nil
		p := newTestPreview(t, dev, surfacecamera.Rotation0)

		err := p.SurfaceCreated(context.Background(), surfacecamera.HeadlessSurface{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, surfacecamera.ErrInvalidInput))
		assert.False(t, dev.isRunning())
	})

	t.Run("parameters rejected", func(t *testing.T) {
		dev := newFakeDevice()
		dev.setParamsErr = errors.New("size not supported")
		p := newTestPreview(t, dev, surfacecamera.Rotation0)

		err := p.SurfaceCreated(context.Background(), surfacecamera.HeadlessSurface{})
		require.Error(t, err)
		assert.False(t, dev.isRunning())

		_, err = p.Parameters()
		assert.True(t, errors.Is(err, surfacecamera.ErrNotStarted))
	})
}

func TestPreview_SurfaceChanged(t *testing.T) {
	dev := newFakeDevice()
	p := newTestPreview(t, dev, surfacecamera.Rotation90)
	ctx := context.Background()

	require.NoError(t, p.SurfaceCreated(ctx, surfacecamera.HeadlessSurface{}))
	require.NoError(t, p.SurfaceChanged(ctx, surfacecamera.HeadlessSurface{}, 800, 600))

	// back camera at 90 degrees on a display rotated 90 degrees
	assert.Equal(t, 0, dev.orientation)
	assert.Equal(t, 0, p.Stats().DisplayOrientation)
	assert.Equal(t, 2, dev.starts)
	assert.Equal(t, 1, dev.stops)
	assert.True(t, dev.isRunning())
}

func TestPreview_SurfaceChanged_LegacyOrientation(t *testing.T) {
	dev := newFakeDevice()
	dev.infoErr = surfacecamera.ErrInfoUnavailable
	p := newTestPreview(t, dev, surfacecamera.Rotation270)

	require.NoError(t, p.SurfaceChanged(context.Background(), surfacecamera.HeadlessSurface{}, 640, 480))

	assert.Equal(t, 180, dev.orientation)
	// setup ran lazily
	assert.True(t, dev.isRunning())
}

func TestPreview_SurfaceChanged_InvalidSurfaceIgnored(t *testing.T) {
	dev := newFakeDevice()
	p := newTestPreview(t, dev, surfacecamera.Rotation0)
	ctx := context.Background()

	require.NoError(t, p.SurfaceCreated(ctx, surfacecamera.HeadlessSurface{}))
	require.NoError(t, p.SurfaceChanged(ctx, invalidSurface{}, 640, 480))
	require.NoError(t, p.SurfaceChanged(ctx, nil, 640, 480))

	assert.Equal(t, 1, dev.starts)
	assert.Equal(t, 0, dev.stops)
}

func TestPreview_StartFailureIsNotFatal(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeDevice, error)
		clear func(*fakeDevice)
	}{
		{
			name:  "start preview",
			setup: func(d *fakeDevice, err error) { d.startErr = err },
			clear: func(d *fakeDevice) { d.startErr = nil },
		},
		{
			name:  "set preview display",
			setup: func(d *fakeDevice, err error) { d.displayErr = err },
			clear: func(d *fakeDevice) { d.displayErr = nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newFakeDevice()
			tt.setup(dev, errors.New("camera busy"))
			p := newTestPreview(t, dev, surfacecamera.Rotation0)
			ctx := context.Background()

			require.NoError(t, p.SurfaceCreated(ctx, surfacecamera.HeadlessSurface{}))
			assert.False(t, p.Stats().Running)
			assert.False(t, dev.isRunning())

			// configured anyway; the next surface change starts the preview
			_, err := p.Parameters()
			require.NoError(t, err)

			dev.mu.Lock()
			tt.clear(dev)
			dev.mu.Unlock()

			require.NoError(t, p.SurfaceChanged(ctx, surfacecamera.HeadlessSurface{}, 640, 480))
			assert.True(t, p.Stats().Running)
			assert.True(t, dev.isRunning())
			assert.Equal(t, 1, dev.starts)
			assert.True(t, dev.emit(1))
		})
	}
}

func TestPreview_SurfaceDestroyed(t *testing.T) {
	dev := newFakeDevice()
	p := newTestPreview(t, dev, surfacecamera.Rotation0)

	require.NoError(t, p.SurfaceCreated(context.Background(), surfacecamera.HeadlessSurface{}))
	p.SurfaceDestroyed()

	assert.False(t, dev.isRunning())
	assert.False(t, p.Stats().Running)
	assert.False(t, dev.emit(1))

	// idempotent
	p.SurfaceDestroyed()
	assert.Equal(t, 1, dev.stops)
}

func TestPreview_Capture(t *testing.T) {
	tests := []struct {
		name       string
		rotation   surfacecamera.Rotation
		wantRotate bool
	}{
		{"portrait rotates", surfacecamera.Rotation0, true},
		{"landscape keeps", surfacecamera.Rotation90, false},
		{"upside down rotates", surfacecamera.Rotation180, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newFakeDevice()
			sink := &recordingSink{}
			p := newTestPreview(t, dev, tt.rotation, surfacecamera.WithPictureSink(sink))

			require.NoError(t, p.SurfaceCreated(context.Background(), surfacecamera.HeadlessSurface{}))

			pic, err := p.Capture(context.Background())
			require.NoError(t, err)

			assert.Equal(t, "pic-1", pic.ID)
			assert.Equal(t, "/tmp/pic-1.jpg", pic.Path)
			assert.Equal(t, surfacecamera.Dimension{Width: 1280, Height: 960}, pic.Size)
			assert.Equal(t, tt.wantRotate, pic.Rotated)
			assert.Equal(t, len(dev.picture), pic.Bytes)
			assert.False(t, pic.TakenAt.IsZero())

			require.Len(t, sink.stored, 1)
			assert.Equal(t, tt.wantRotate, sink.rotated[0])

			// preview restarted after the picture was stored
			assert.True(t, dev.isRunning())
			assert.Equal(t, 2, dev.starts)
			assert.Equal(t, uint64(1), p.Stats().PicturesTaken)
		})
	}
}

func TestPreview_CaptureErrors(t *testing.T) {
	t.Run("not set up", func(t *testing.T) {
		p := newTestPreview(t, newFakeDevice(), surfacecamera.Rotation0)
		_, err := p.Capture(context.Background())
		assert.True(t, errors.Is(err, surfacecamera.ErrNotStarted))
	})

	t.Run("device fails", func(t *testing.T) {
		dev := newFakeDevice()
		dev.pictureErr = errors.New("shutter jammed")
		p := newTestPreview(t, dev, surfacecamera.Rotation0)
		require.NoError(t, p.SurfaceCreated(context.Background(), surfacecamera.HeadlessSurface{}))

		_, err := p.Capture(context.Background())
		require.Error(t, err)
		// preview untouched
		assert.True(t, dev.isRunning())
		assert.Equal(t, 0, dev.stops)
	})

	t.Run("sink fails", func(t *testing.T) {
		dev := newFakeDevice()
		sink := &recordingSink{err: errors.New("disk full")}
		p := newTestPreview(t, dev, surfacecamera.Rotation0, surfacecamera.WithPictureSink(sink))
		require.NoError(t, p.SurfaceCreated(context.Background(), surfacecamera.HeadlessSurface{}))

		_, err := p.Capture(context.Background())
		require.Error(t, err)
		// preview restarted anyway
		assert.True(t, dev.isRunning())
		assert.Equal(t, uint64(0), p.Stats().PicturesTaken)
	})

	t.Run("surface gone", func(t *testing.T) {
		dev := newFakeDevice()
		p := newTestPreview(t, dev, surfacecamera.Rotation0)
		require.NoError(t, p.SurfaceCreated(context.Background(), surfacecamera.HeadlessSurface{}))
		p.SurfaceDestroyed()

		_, err := p.Capture(context.Background())
		require.NoError(t, err)
		assert.False(t, dev.isRunning())
	})
}
