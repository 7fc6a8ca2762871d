package surfacecamera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Default preview settings
const (
	// DefaultAspectW and DefaultAspectH define the 4:3 aspect ratio used to
	// select both preview and picture sizes
	DefaultAspectW = 4
	DefaultAspectH = 3

	// DefaultPreviewMaxWidth is the upper bound for preview frames. The device
	// may not support it exactly; a smaller size with the same aspect ratio
	// is chosen in that case.
	DefaultPreviewMaxWidth = 640

	// DefaultPictureMaxWidth is the upper bound for captured pictures
	DefaultPictureMaxWidth = 1280
)

// PreviewConfig contains the size and format policy applied on setup
type PreviewConfig struct {
	AspectW         int
	AspectH         int
	PreviewMaxWidth int
	PictureMaxWidth int
	// PreviewFormat must be a raw format (NV21 is the most widely supported)
	PreviewFormat PixelFormat
	// FlashMode is applied only when the device lists it as supported
	FlashMode string
	// SelectPreviewFromPictureSizes picks the preview size from the
	// supported picture sizes instead of the supported preview sizes
	SelectPreviewFromPictureSizes bool
}

// DefaultPreviewConfig returns 4:3, 640/1280 max widths, NV21 preview, flash off
func DefaultPreviewConfig() PreviewConfig {
	return PreviewConfig{
		AspectW:                       DefaultAspectW,
		AspectH:                       DefaultAspectH,
		PreviewMaxWidth:               DefaultPreviewMaxWidth,
		PictureMaxWidth:               DefaultPictureMaxWidth,
		PreviewFormat:                 FormatNV21,
		FlashMode:                     FlashModeOff,
		SelectPreviewFromPictureSizes: true,
	}
}

// Option configures a Preview
type Option func(*Preview)

// WithProcessor sets the FrameProcessor that receives preview frames
func WithProcessor(fp FrameProcessor) Option {
	return func(p *Preview) {
		if fp != nil {
			p.processor = fp
		}
	}
}

// WithPictureSink sets where captured pictures are stored
func WithPictureSink(s PictureSink) Option {
	return func(p *Preview) {
		if s != nil {
			p.sink = s
		}
	}
}

// Preview drives a Device through the surface lifecycle.
//
// The host calls SurfaceCreated, SurfaceChanged and SurfaceDestroyed as
// its display surface comes and goes; Preview configures the device, keeps
// the preview callback buffer and restarts the preview around captures.
// All methods are safe for concurrent use.
type Preview struct {
	dev       Device
	display   Display
	cfg       PreviewConfig
	processor FrameProcessor
	sink      PictureSink

	mu          sync.Mutex
	surface     Surface
	previewCtx  context.Context
	params      Parameters
	buffer      []byte
	orientation int
	configured  bool
	running     bool
	started     time.Time
	startFrames uint64

	frameCount atomic.Uint64
	bytesRead  atomic.Uint64
	pictures   atomic.Uint64
}

// NewPreview creates a Preview for dev with fail-fast validation of cfg.
// display may be nil, in which case the display is assumed unrotated.
func NewPreview(dev Device, display Display, cfg PreviewConfig, opts ...Option) (*Preview, error) {
	if dev == nil {
		return nil, fmt.Errorf("surface-camera: device is required")
	}
	if cfg.AspectW <= 0 || cfg.AspectH <= 0 {
		return nil, fmt.Errorf("surface-camera: invalid aspect ratio %d:%d", cfg.AspectW, cfg.AspectH)
	}
	if cfg.PreviewMaxWidth <= 0 || cfg.PictureMaxWidth <= 0 {
		return nil, fmt.Errorf(
			"surface-camera: invalid max widths (preview=%d, picture=%d)",
			cfg.PreviewMaxWidth, cfg.PictureMaxWidth,
		)
	}
	if cfg.PreviewFormat.BitsPerPixel() == 0 {
		return nil, fmt.Errorf("surface-camera: preview format %s: %w", cfg.PreviewFormat, ErrUnsupportedFormat)
	}
	if display == nil {
		display = FixedDisplay(Rotation0)
	}

	p := &Preview{
		dev:       dev,
		display:   display,
		cfg:       cfg,
		processor: NopProcessor{},
		sink:      DiscardSink{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// SurfaceCreated configures the device and starts the preview on s.
// Setup errors are returned; a preview that fails to start is logged.
func (p *Preview) SurfaceCreated(ctx context.Context, s Surface) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.surface = s
	p.previewCtx = ctx

	if err := p.setupLocked(); err != nil {
		return err
	}
	p.startLocked()
	return nil
}

// SurfaceChanged restarts the preview with the current display orientation.
// Invalid surfaces are ignored.
func (p *Preview) SurfaceChanged(ctx context.Context, s Surface, width, height int) error {
	if s == nil || !s.Valid() {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	slog.Debug("surface-camera: surface changed", "width", width, "height", height)

	p.surface = s
	p.previewCtx = ctx

	// stop preview before making changes
	p.stopLocked()

	if !p.configured {
		if err := p.setupLocked(); err != nil {
			return err
		}
	}
	p.updateOrientationLocked()
	p.startLocked()
	return nil
}

// SurfaceDestroyed stops the preview. The device stays configured so a new
// surface can be attached without another setup.
func (p *Preview) SurfaceDestroyed() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.surface = nil
}

// Capture takes a picture, hands it to the PictureSink and restarts the
// preview.
//
// Pictures are rotated by 90 degrees when the display is at 0 or 180
// degrees so they are stored upright.
func (p *Preview) Capture(ctx context.Context) (Picture, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.configured {
		return Picture{}, ErrNotStarted
	}

	data, err := p.dev.TakePicture(ctx)
	if err != nil {
		return Picture{}, fmt.Errorf("surface-camera: take picture: %w", err)
	}
	takenAt := time.Now()

	// no preview needed while the picture is stored
	p.stopLocked()
	defer func() {
		if p.surface != nil && p.surface.Valid() {
			p.startLocked()
		}
	}()

	rotate := NeedsPictureRotation(p.display.Rotation())
	id, path, err := p.sink.Store(ctx, data, rotate)
	if err != nil {
		return Picture{}, fmt.Errorf("surface-camera: store picture: %w", err)
	}
	p.pictures.Add(1)

	pic := Picture{
		ID:      id,
		Path:    path,
		Size:    p.params.PictureSize,
		Rotated: rotate,
		Bytes:   len(data),
		TakenAt: takenAt,
	}
	slog.Info("surface-camera: picture saved",
		"id", pic.ID,
		"path", pic.Path,
		"size", pic.Size.String(),
		"bytes", pic.Bytes,
		"rotated", pic.Rotated,
	)
	return pic, nil
}

// Parameters returns the parameters applied during the last setup
func (p *Preview) Parameters() (Parameters, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.configured {
		return Parameters{}, ErrNotStarted
	}
	return p.params, nil
}

// Stats returns current preview statistics
//
// Thread-safe - counters are atomic.
func (p *Preview) Stats() PreviewStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	frameCount := p.frameCount.Load()

	var fpsReal float64
	if p.running && !p.started.IsZero() {
		if uptime := time.Since(p.started).Seconds(); uptime > 0 {
			fpsReal = float64(frameCount-p.startFrames) / uptime
		}
	}

	return PreviewStats{
		Running:            p.running,
		FrameCount:         frameCount,
		BytesRead:          p.bytesRead.Load(),
		PicturesTaken:      p.pictures.Load(),
		FPSReal:            fpsReal,
		PreviewSize:        p.params.PreviewSize,
		PictureSize:        p.params.PictureSize,
		BufferSize:         len(p.buffer),
		DisplayOrientation: p.orientation,
	}
}

func (p *Preview) setupLocked() error {
	p.stopLocked()

	params, err := p.dev.Parameters()
	if err != nil {
		return fmt.Errorf("surface-camera: read parameters: %w", err)
	}

	previewCandidates := params.SupportedPreviewSizes
	if p.cfg.SelectPreviewFromPictureSizes || len(previewCandidates) == 0 {
		previewCandidates = params.SupportedPictureSizes
	}

	bestPreview, err := SelectBestSize(previewCandidates, p.cfg.AspectW, p.cfg.AspectH, p.cfg.PreviewMaxWidth)
	if err != nil {
		return fmt.Errorf("surface-camera: select preview size: %w", err)
	}
	bestPicture, err := SelectBestSize(params.SupportedPictureSizes, p.cfg.AspectW, p.cfg.AspectH, p.cfg.PictureMaxWidth)
	if err != nil {
		return fmt.Errorf("surface-camera: select picture size: %w", err)
	}

	params.PreviewSize = bestPreview
	params.PictureSize = bestPicture
	params.PreviewFormat = p.cfg.PreviewFormat
	params.PictureFormat = FormatJPEG

	if p.cfg.FlashMode != "" {
		if params.SupportsFlashMode(p.cfg.FlashMode) {
			params.FlashMode = p.cfg.FlashMode
		} else {
			// not all devices support a given feature
			slog.Warn("surface-camera: flash mode not supported, ignoring",
				"flash_mode", p.cfg.FlashMode,
				"supported", params.SupportedFlashModes,
			)
		}
	}

	if err := p.dev.SetParameters(params); err != nil {
		return fmt.Errorf("surface-camera: apply parameters: %w", err)
	}

	applied, err := p.dev.Parameters()
	if err != nil {
		return fmt.Errorf("surface-camera: read back parameters: %w", err)
	}

	size, err := PreviewBufferSize(applied.PreviewSize, applied.PreviewFormat)
	if err != nil {
		return fmt.Errorf("surface-camera: preview buffer: %w", err)
	}

	p.params = applied
	p.buffer = make([]byte, size)
	p.configured = true

	slog.Info("surface-camera: camera configured",
		"preview_size", applied.PreviewSize.String(),
		"picture_size", applied.PictureSize.String(),
		"preview_format", applied.PreviewFormat.String(),
		"picture_format", applied.PictureFormat.String(),
		"flash_mode", applied.FlashMode,
		"buffer_bytes", size,
	)
	return nil
}

func (p *Preview) startLocked() {
	if p.running || !p.configured {
		return
	}

	ctx := p.previewCtx
	if ctx == nil {
		ctx = context.Background()
	}

	if err := p.dev.SetPreviewDisplay(p.surface); err != nil {
		slog.Error("surface-camera: error setting preview display", "error", err)
		return
	}

	p.started = time.Now()
	p.startFrames = p.frameCount.Load()

	size, format := p.params.PreviewSize, p.params.PreviewFormat
	err := p.dev.StartPreview(ctx, p.buffer, func(data []byte) {
		p.processor.ProcessFrame(data, size, format)
		p.frameCount.Add(1)
		p.bytesRead.Add(uint64(len(data)))
	})
	if err != nil {
		slog.Error("surface-camera: error starting camera preview", "error", err)
		return
	}

	if err := p.dev.AutoFocus(); err != nil {
		slog.Debug("surface-camera: autofocus failed", "error", err)
	}

	p.running = true
	slog.Debug("surface-camera: preview started", "size", size.String(), "format", format.String())
}

func (p *Preview) stopLocked() {
	if !p.running {
		return
	}
	if err := p.dev.StopPreview(); err != nil {
		slog.Debug("surface-camera: tried to stop a non-running preview", "error", err)
	}
	p.running = false
	slog.Debug("surface-camera: preview stopped")
}

func (p *Preview) updateOrientationLocked() {
	rotation := p.display.Rotation()

	var result int
	info, err := p.dev.Info()
	switch {
	case err == nil:
		result = DisplayOrientation(info, rotation)
	case errors.Is(err, ErrInfoUnavailable):
		result = LegacyDisplayOrientation(rotation)
	default:
		slog.Warn("surface-camera: cannot read camera info, orientation unchanged", "error", err)
		return
	}

	if err := p.dev.SetDisplayOrientation(result); err != nil {
		slog.Warn("surface-camera: set display orientation failed", "degrees", result, "error", err)
		return
	}
	p.orientation = result
}
