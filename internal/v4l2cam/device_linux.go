//go:build linux

package v4l2cam

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blackjack/webcam"
	"github.com/disintegration/imaging"

	surfacecamera "github.com/siddh1004/Surface-Camera-Xamarin-Android"
)

// V4L2 control ids for focus
const (
	cidFocusAuto      webcam.ControlID = 0x009a090c // V4L2_CID_FOCUS_AUTO
	cidAutoFocusStart webcam.ControlID = 0x009a091c // V4L2_CID_AUTO_FOCUS_START
)

// capturer is the subset of *webcam.Webcam used by Device
type capturer interface {
	GetSupportedFormats() map[webcam.PixelFormat]string
	GetSupportedFrameSizes(f webcam.PixelFormat) []webcam.FrameSize
	SetImageFormat(f webcam.PixelFormat, width, height uint32) (webcam.PixelFormat, uint32, uint32, error)
	SetBufferCount(count uint32) error
	StartStreaming() error
	WaitForFrame(timeout uint32) error
	ReadFrame() ([]byte, error)
	StopStreaming() error
	GetControls() map[webcam.ControlID]webcam.Control
	SetControl(id webcam.ControlID, value int32) error
	Close() error
}

// Device is a V4L2 camera driven through ioctl streaming
type Device struct {
	cfg Config
	cam capturer

	captureFmt uint32 // preview stream fourcc (YUYV or MJPEG)
	pictureFmt uint32 // still fourcc (MJPEG/JPEG when available)

	mu          sync.Mutex
	params      surfacecamera.Parameters
	formats     []surfacecamera.PixelFormat
	surface     surfacecamera.Surface
	orientation int
	closed      bool

	// preview state
	cancel context.CancelFunc
	done   chan struct{}
	parent context.Context
	buf    []byte
	fn     surfacecamera.FrameFunc
	active atomic.Bool

	// Statistics (atomic for thread-safety)
	frameCount    uint64
	bytesRead     uint64
	framesDropped uint64
	readErrors    uint64
}

var _ surfacecamera.Device = (*Device)(nil)

// Open opens the V4L2 device at cfg.Device
func Open(cfg Config) (*Device, error) {
	cfg = cfg.withDefaults()
	cam, err := webcam.Open(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("v4l2cam: open %s: %w", cfg.Device, err)
	}
	d, err := newDevice(cam, cfg)
	if err != nil {
		cam.Close()
		return nil, err
	}
	return d, nil
}

func newDevice(cam capturer, cfg Config) (*Device, error) {
	formats := cam.GetSupportedFormats()
	has := func(code uint32) bool {
		_, ok := formats[webcam.PixelFormat(code)]
		return ok
	}

	d := &Device{cfg: cfg, cam: cam}

	switch {
	case has(PixFmtYUYV):
		d.captureFmt = PixFmtYUYV
		d.formats = []surfacecamera.PixelFormat{surfacecamera.FormatNV21, surfacecamera.FormatYUYV}
	case has(PixFmtMJPEG):
		d.captureFmt = PixFmtMJPEG
		d.formats = []surfacecamera.PixelFormat{surfacecamera.FormatNV21}
	default:
		names := make([]string, 0, len(formats))
		for code := range formats {
			names = append(names, FourCC(uint32(code)))
		}
		slices.Sort(names)
		return nil, fmt.Errorf("v4l2cam: %s offers no usable pixel format (have %v)", cfg.Device, names)
	}

	switch {
	case has(PixFmtMJPEG):
		d.pictureFmt = PixFmtMJPEG
	case has(PixFmtJPEG):
		d.pictureFmt = PixFmtJPEG
	default:
		d.pictureFmt = d.captureFmt
	}

	previewSizes := frameSizes(cam.GetSupportedFrameSizes(webcam.PixelFormat(d.captureFmt)), cfg.FallbackSizes)
	pictureSizes := frameSizes(cam.GetSupportedFrameSizes(webcam.PixelFormat(d.pictureFmt)), cfg.FallbackSizes)
	if len(previewSizes) == 0 || len(pictureSizes) == 0 {
		return nil, fmt.Errorf("v4l2cam: %s reported no frame sizes", cfg.Device)
	}

	d.params = surfacecamera.Parameters{
		PreviewSize:           previewSizes[0],
		PictureSize:           pictureSizes[0],
		PreviewFormat:         surfacecamera.FormatNV21,
		PictureFormat:         surfacecamera.FormatJPEG,
		SupportedPreviewSizes: previewSizes,
		SupportedPictureSizes: pictureSizes,
	}

	slog.Info("v4l2cam: camera opened",
		"device", cfg.Device,
		"capture_format", FourCC(d.captureFmt),
		"picture_format", FourCC(d.pictureFmt),
		"preview_sizes", len(previewSizes),
		"picture_sizes", len(pictureSizes),
	)
	return d, nil
}

// Info returns the configured camera info
func (d *Device) Info() (surfacecamera.CameraInfo, error) {
	if d.cfg.Info == nil {
		return surfacecamera.CameraInfo{}, surfacecamera.ErrInfoUnavailable
	}
	return *d.cfg.Info, nil
}

// Parameters returns a copy of the current parameters
func (d *Device) Parameters() (surfacecamera.Parameters, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.params
	p.SupportedPreviewSizes = slices.Clone(p.SupportedPreviewSizes)
	p.SupportedPictureSizes = slices.Clone(p.SupportedPictureSizes)
	p.SupportedFlashModes = slices.Clone(p.SupportedFlashModes)
	return p, nil
}

// SetParameters applies the sizes, formats and flash mode of p
func (d *Device) SetParameters(p surfacecamera.Parameters) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !slices.Contains(d.params.SupportedPreviewSizes, p.PreviewSize) {
		return fmt.Errorf("v4l2cam: unsupported preview size %s", p.PreviewSize)
	}
	if !slices.Contains(d.params.SupportedPictureSizes, p.PictureSize) {
		return fmt.Errorf("v4l2cam: unsupported picture size %s", p.PictureSize)
	}
	if !slices.Contains(d.formats, p.PreviewFormat) {
		return fmt.Errorf("%w: preview format %s", surfacecamera.ErrUnsupportedFormat, p.PreviewFormat)
	}
	if p.PictureFormat != surfacecamera.FormatJPEG {
		return fmt.Errorf("%w: picture format %s", surfacecamera.ErrUnsupportedFormat, p.PictureFormat)
	}
	if p.FlashMode != "" && !d.params.SupportsFlashMode(p.FlashMode) {
		return fmt.Errorf("v4l2cam: unsupported flash mode %q", p.FlashMode)
	}

	d.params.PreviewSize = p.PreviewSize
	d.params.PictureSize = p.PictureSize
	d.params.PreviewFormat = p.PreviewFormat
	d.params.PictureFormat = p.PictureFormat
	d.params.FlashMode = p.FlashMode
	return nil
}

// SetPreviewDisplay records the surface; V4L2 has no display of its own
func (d *Device) SetPreviewDisplay(s surfacecamera.Surface) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.surface = s
	return nil
}

// SetDisplayOrientation records the display rotation
func (d *Device) SetDisplayOrientation(degrees int) error {
	if _, ok := surfacecamera.RotationFromDegrees(degrees); !ok {
		return fmt.Errorf("v4l2cam: invalid rotation %d (must be 0, 90, 180 or 270)", degrees)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.orientation = degrees
	return nil
}

// StartPreview configures the stream and starts the read loop
func (d *Device) StartPreview(ctx context.Context, buf []byte, fn surfacecamera.FrameFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("v4l2cam: device closed")
	}
	if d.cancel != nil {
		return fmt.Errorf("v4l2cam: preview already started")
	}
	return d.startLocked(ctx, buf, fn)
}

func (d *Device) startLocked(ctx context.Context, buf []byte, fn surfacecamera.FrameFunc) error {
	size := d.params.PreviewSize
	if err := d.configureStream(d.captureFmt, size); err != nil {
		return err
	}
	if err := d.cam.StartStreaming(); err != nil {
		return fmt.Errorf("v4l2cam: start streaming: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.parent = ctx
	d.buf = buf
	d.fn = fn
	d.active.Store(true)

	go d.readLoop(runCtx, buf, fn, size, d.params.PreviewFormat, d.done)

	slog.Info("v4l2cam: preview started",
		"device", d.cfg.Device,
		"size", size.String(),
		"capture_format", FourCC(d.captureFmt),
		"preview_format", d.params.PreviewFormat.String(),
	)
	return nil
}

func (d *Device) configureStream(code uint32, size surfacecamera.Dimension) error {
	if err := d.cam.SetBufferCount(d.cfg.BufferCount); err != nil {
		return fmt.Errorf("v4l2cam: set buffer count: %w", err)
	}
	got, w, h, err := d.cam.SetImageFormat(webcam.PixelFormat(code), uint32(size.Width), uint32(size.Height))
	if err != nil {
		return fmt.Errorf("v4l2cam: set format %s %s: %w", FourCC(code), size, err)
	}
	if uint32(got) != code || int(w) != size.Width || int(h) != size.Height {
		return fmt.Errorf("v4l2cam: driver chose %s %dx%d instead of %s %s",
			FourCC(uint32(got)), w, h, FourCC(code), size)
	}
	return nil
}

// readLoop delivers frames until ctx is cancelled or the device fails
func (d *Device) readLoop(ctx context.Context, buf []byte, fn surfacecamera.FrameFunc, size surfacecamera.Dimension, format surfacecamera.PixelFormat, done chan struct{}) {
	defer close(done)
	defer func() {
		if err := d.cam.StopStreaming(); err != nil {
			slog.Debug("v4l2cam: stop streaming", "error", err)
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		// Short wait keeps StopPreview responsive
		err := d.cam.WaitForFrame(1)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			continue
		default:
			atomic.AddUint64(&d.readErrors, 1)
			slog.Error("v4l2cam: wait for frame failed, preview stopped", "device", d.cfg.Device, "error", err)
			return
		}

		frame, err := d.cam.ReadFrame()
		if err != nil {
			atomic.AddUint64(&d.readErrors, 1)
			slog.Warn("v4l2cam: read frame failed, skipping", "error", err)
			continue
		}
		if len(frame) == 0 || !d.active.Load() {
			continue
		}
		atomic.AddUint64(&d.bytesRead, uint64(len(frame)))

		n, err := convertFrame(buf, frame, size, d.captureFmt, format)
		if err != nil {
			atomic.AddUint64(&d.framesDropped, 1)
			slog.Debug("v4l2cam: dropping frame", "error", err)
			continue
		}
		atomic.AddUint64(&d.frameCount, 1)

		if fn != nil {
			fn(buf[:n])
		}
	}
}

// convertFrame writes a captured frame into dst in the preview format
func convertFrame(dst, frame []byte, size surfacecamera.Dimension, captureFmt uint32, format surfacecamera.PixelFormat) (int, error) {
	switch {
	case captureFmt == PixFmtYUYV && format == surfacecamera.FormatNV21:
		return YUYVToNV21(dst, frame, size.Width, size.Height)

	case captureFmt == PixFmtYUYV && format == surfacecamera.FormatYUYV:
		if len(frame) > len(dst) {
			return 0, fmt.Errorf("v4l2cam: preview buffer too small: %d bytes, frame %d", len(dst), len(frame))
		}
		return copy(dst, frame), nil

	case captureFmt == PixFmtMJPEG && format == surfacecamera.FormatNV21:
		img, err := imaging.Decode(bytes.NewReader(frame))
		if err != nil {
			return 0, fmt.Errorf("v4l2cam: decode MJPEG frame: %w", err)
		}
		ycc, ok := img.(*image.YCbCr)
		if !ok {
			return 0, fmt.Errorf("v4l2cam: MJPEG frame decoded to %T, want YCbCr", img)
		}
		return YCbCrToNV21(dst, ycc)

	default:
		return 0, fmt.Errorf("%w: %s from %s", surfacecamera.ErrUnsupportedFormat, format, FourCC(captureFmt))
	}
}

// StopPreview stops the read loop. Safe to call when not started.
func (d *Device) StopPreview() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

func (d *Device) stopLocked() error {
	if d.cancel == nil {
		return nil
	}

	d.active.Store(false)
	d.cancel()

	select {
	case <-d.done:
	case <-time.After(3 * time.Second):
		slog.Warn("v4l2cam: stop timeout exceeded, read loop may still be running")
	}

	d.cancel = nil
	d.done = nil

	slog.Info("v4l2cam: preview stopped",
		"device", d.cfg.Device,
		"frames", atomic.LoadUint64(&d.frameCount),
		"dropped", atomic.LoadUint64(&d.framesDropped),
	)
	return nil
}

// AutoFocus triggers a one-shot focus when the driver has one, or enables
// continuous autofocus. Cameras without focus controls return nil.
func (d *Device) AutoFocus() error {
	controls := d.cam.GetControls()
	if _, ok := controls[cidAutoFocusStart]; ok {
		return d.cam.SetControl(cidAutoFocusStart, 1)
	}
	if _, ok := controls[cidFocusAuto]; ok {
		return d.cam.SetControl(cidFocusAuto, 1)
	}
	return nil
}

// TakePicture captures one JPEG at the picture size. A running preview is
// paused while the stream is reconfigured.
func (d *Device) TakePicture(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, fmt.Errorf("v4l2cam: device closed")
	}

	wasRunning := d.cancel != nil
	parent, buf, fn := d.parent, d.buf, d.fn
	if wasRunning {
		d.stopLocked()
	}

	jpeg, err := d.capturePicture(ctx)

	if wasRunning && parent.Err() == nil {
		if rerr := d.startLocked(parent, buf, fn); rerr != nil {
			slog.Error("v4l2cam: failed to resume preview after picture", "error", rerr)
		}
	}
	return jpeg, err
}

func (d *Device) capturePicture(ctx context.Context) ([]byte, error) {
	size := d.params.PictureSize
	if err := d.configureStream(d.pictureFmt, size); err != nil {
		return nil, err
	}
	if err := d.cam.StartStreaming(); err != nil {
		return nil, fmt.Errorf("v4l2cam: start streaming: %w", err)
	}
	defer d.cam.StopStreaming()

	timeout := uint32(d.cfg.FrameTimeout / time.Second)
	if timeout == 0 {
		timeout = 1
	}

	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		err := d.cam.WaitForFrame(timeout)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			return nil, fmt.Errorf("v4l2cam: no picture within %s", d.cfg.FrameTimeout)
		default:
			return nil, fmt.Errorf("v4l2cam: wait for picture: %w", err)
		}

		frame, err := d.cam.ReadFrame()
		if err != nil {
			return nil, fmt.Errorf("v4l2cam: read picture: %w", err)
		}
		if i < d.cfg.PictureSkipFrames || len(frame) == 0 {
			continue
		}

		jpeg, err := encodePicture(frame, size, d.pictureFmt, d.cfg.JPEGQuality)
		if err != nil {
			return nil, err
		}
		slog.Debug("v4l2cam: picture captured",
			"size", size.String(),
			"format", FourCC(d.pictureFmt),
			"bytes", len(jpeg),
			"skipped", i,
		)
		return jpeg, nil
	}
}

// encodePicture returns frame as JPEG, encoding raw YUYV when needed
func encodePicture(frame []byte, size surfacecamera.Dimension, code uint32, quality int) ([]byte, error) {
	switch code {
	case PixFmtMJPEG, PixFmtJPEG:
		return bytes.Clone(frame), nil
	case PixFmtYUYV:
		img, err := YUYVToImage(frame, size.Width, size.Height)
		if err != nil {
			return nil, err
		}
		var out bytes.Buffer
		if err := imaging.Encode(&out, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, fmt.Errorf("v4l2cam: encode picture: %w", err)
		}
		return out.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: picture from %s", surfacecamera.ErrUnsupportedFormat, FourCC(code))
	}
}

// Close stops the preview and closes the device
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.stopLocked()
	d.closed = true
	if err := d.cam.Close(); err != nil {
		return fmt.Errorf("v4l2cam: close %s: %w", d.cfg.Device, err)
	}
	return nil
}

// Stats returns a snapshot of the device counters
func (d *Device) Stats() Stats {
	return Stats{
		FrameCount:    atomic.LoadUint64(&d.frameCount),
		BytesRead:     atomic.LoadUint64(&d.bytesRead),
		FramesDropped: atomic.LoadUint64(&d.framesDropped),
		ReadErrors:    atomic.LoadUint64(&d.readErrors),
	}
}

// frameSizes lists the sizes of a format, largest first. Discrete sizes are
// taken as-is; stepwise ranges contribute their maximum and every fallback
// size that fits the range.
func frameSizes(sizes []webcam.FrameSize, fallback []surfacecamera.Dimension) []surfacecamera.Dimension {
	var out []surfacecamera.Dimension
	for _, fs := range sizes {
		if fs.MinWidth == fs.MaxWidth && fs.MinHeight == fs.MaxHeight {
			out = append(out, surfacecamera.Dimension{Width: int(fs.MaxWidth), Height: int(fs.MaxHeight)})
			continue
		}
		out = append(out, surfacecamera.Dimension{Width: int(fs.MaxWidth), Height: int(fs.MaxHeight)})
		for _, f := range fallback {
			if fits(fs, f) {
				out = append(out, f)
			}
		}
	}
	return SortSizes(out)
}

func fits(fs webcam.FrameSize, d surfacecamera.Dimension) bool {
	w, h := uint32(d.Width), uint32(d.Height)
	if w < fs.MinWidth || w > fs.MaxWidth || h < fs.MinHeight || h > fs.MaxHeight {
		return false
	}
	if fs.StepWidth > 0 && (w-fs.MinWidth)%fs.StepWidth != 0 {
		return false
	}
	if fs.StepHeight > 0 && (h-fs.MinHeight)%fs.StepHeight != 0 {
		return false
	}
	return true
}
