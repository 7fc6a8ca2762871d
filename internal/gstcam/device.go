// Package gstcam implements surfacecamera.Device on top of GStreamer.
//
// The preview runs a v4l2src (or any other source element) pipeline into an
// appsink; still pictures run a short-lived pipeline ending in jpegenc.
// Only one pipeline holds the device at a time, so TakePicture pauses a
// running preview and resumes it afterwards.
package gstcam

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	surfacecamera "github.com/siddh1004/Surface-Camera-Xamarin-Android"
)

// Config describes one GStreamer camera
type Config struct {
	Source string // source element, default v4l2src
	Device string // e.g. /dev/video0

	// Info is reported by Device.Info; nil means unknown
	Info *surfacecamera.CameraInfo

	// FallbackSizes are offered when the source reports no fixed sizes
	FallbackSizes []surfacecamera.Dimension

	FrameTimeout      time.Duration // picture frame wait (default: 5s)
	PictureSkipFrames int           // frames discarded before a picture (exposure settle)
	JPEGQuality       int           // jpegenc quality (default: 90)
	Restart           RestartConfig
}

// WindowSurface renders the preview in a desktop window, rotated by the
// display orientation
type WindowSurface struct{}

// Valid always returns true
func (WindowSurface) Valid() bool { return true }

// Stats is a snapshot of device counters
type Stats struct {
	FrameCount    uint64
	BytesRead     uint64
	FramesDropped uint64
	Restarts      uint32
	Errors        ErrorCounters
	Session       string // id of the current or last preview session
}

// Device is a GStreamer-backed camera
type Device struct {
	cfg Config

	mu          sync.Mutex
	params      surfacecamera.Parameters
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
	// session holds the id of the current or last preview session
	session atomic.Value

	elemMu   sync.Mutex
	elements *PipelineElements

	// Statistics (atomic for thread-safety)
	frameCount    uint64
	bytesRead     uint64
	framesDropped uint64
	errors        ErrorCounters
	restartState  RestartState
}

var _ surfacecamera.Device = (*Device)(nil)

// Open validates GStreamer, probes the supported sizes and returns a Device.
// No pipeline runs until StartPreview or TakePicture.
func Open(cfg Config) (*Device, error) {
	if cfg.Source == "" {
		cfg.Source = SourceV4L2
	}
	if cfg.FrameTimeout <= 0 {
		cfg.FrameTimeout = 5 * time.Second
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 90
	}
	if cfg.Restart.MaxRetries == 0 && cfg.Restart.RetryDelay == 0 {
		cfg.Restart = DefaultRestartConfig()
	}

	if err := checkGStreamerAvailable(cfg.Source); err != nil {
		return nil, fmt.Errorf("gstcam: GStreamer not available: %w", err)
	}

	sizes, err := ProbeSizes(cfg.Source, cfg.Device)
	if err != nil {
		slog.Warn("gstcam: size probe failed, using fallback sizes",
			"source", cfg.Source,
			"device", cfg.Device,
			"error", err,
		)
	}
	if len(sizes) == 0 {
		sizes = slices.Clone(cfg.FallbackSizes)
	}
	if len(sizes) == 0 {
		return nil, fmt.Errorf("gstcam: %s reported no frame sizes and no fallback sizes are configured", cfg.Source)
	}

	d := &Device{
		cfg: cfg,
		params: surfacecamera.Parameters{
			PreviewSize:           sizes[0],
			PictureSize:           sizes[0],
			PreviewFormat:         surfacecamera.FormatNV21,
			PictureFormat:         surfacecamera.FormatJPEG,
			SupportedPreviewSizes: sizes,
			SupportedPictureSizes: sizes,
		},
	}

	slog.Info("gstcam: camera opened",
		"source", cfg.Source,
		"device", cfg.Device,
		"sizes", len(sizes),
		"largest", sizes[0].String(),
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
	return cloneParams(d.params), nil
}

// SetParameters applies the sizes, formats and flash mode of p. Supported
// lists in p are ignored.
func (d *Device) SetParameters(p surfacecamera.Parameters) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !slices.Contains(d.params.SupportedPreviewSizes, p.PreviewSize) {
		return fmt.Errorf("gstcam: unsupported preview size %s", p.PreviewSize)
	}
	if !slices.Contains(d.params.SupportedPictureSizes, p.PictureSize) {
		return fmt.Errorf("gstcam: unsupported picture size %s", p.PictureSize)
	}
	if _, err := rawFormat(p.PreviewFormat); err != nil {
		return err
	}
	if p.PictureFormat != surfacecamera.FormatJPEG {
		return fmt.Errorf("%w: picture format %s", surfacecamera.ErrUnsupportedFormat, p.PictureFormat)
	}
	if p.FlashMode != "" && !d.params.SupportsFlashMode(p.FlashMode) {
		return fmt.Errorf("gstcam: unsupported flash mode %q", p.FlashMode)
	}

	d.params.PreviewSize = p.PreviewSize
	d.params.PictureSize = p.PictureSize
	d.params.PreviewFormat = p.PreviewFormat
	d.params.PictureFormat = p.PictureFormat
	d.params.FlashMode = p.FlashMode
	return nil
}

// SetPreviewDisplay sets the surface used by the next StartPreview.
// A WindowSurface adds an on-screen branch; anything else is headless.
func (d *Device) SetPreviewDisplay(s surfacecamera.Surface) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.surface = s
	return nil
}

// SetDisplayOrientation rotates the on-screen preview. Frames handed to the
// FrameFunc are not rotated.
func (d *Device) SetDisplayOrientation(degrees int) error {
	if _, err := videoDirection(degrees); err != nil {
		return err
	}

	d.mu.Lock()
	d.orientation = degrees
	d.mu.Unlock()

	d.elemMu.Lock()
	defer d.elemMu.Unlock()
	if d.elements != nil {
		return UpdateOrientation(d.elements.Flip, degrees)
	}
	return nil
}

// StartPreview builds and starts the preview pipeline. Pipeline failures
// after startup are retried with exponential backoff.
func (d *Device) StartPreview(ctx context.Context, buf []byte, fn surfacecamera.FrameFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("gstcam: device closed")
	}
	if d.cancel != nil {
		return fmt.Errorf("gstcam: preview already started")
	}
	return d.startLocked(ctx, buf, fn)
}

func (d *Device) startLocked(ctx context.Context, buf []byte, fn surfacecamera.FrameFunc) error {
	callbackCtx := d.newCallbackContext(buf, fn)

	// First pipeline is created synchronously so setup errors reach the caller
	first, err := d.newPreviewPipeline(callbackCtx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.parent = ctx
	d.buf = buf
	d.fn = fn
	d.active.Store(true)

	go d.runPreview(runCtx, first, callbackCtx, d.done)

	slog.Info("gstcam: preview started",
		"device", d.cfg.Device,
		"session", callbackCtx.Session,
		"size", d.params.PreviewSize.String(),
		"format", d.params.PreviewFormat.String(),
	)
	return nil
}

// newCallbackContext starts a new preview session over the device counters
func (d *Device) newCallbackContext(buf []byte, fn surfacecamera.FrameFunc) *CallbackContext {
	session := uuid.NewString()
	d.session.Store(session)
	return &CallbackContext{
		Buffer:        buf,
		Fn:            fn,
		FrameCounter:  &d.frameCount,
		BytesRead:     &d.bytesRead,
		FramesDropped: &d.framesDropped,
		Session:       session,
		Active:        &d.active,
	}
}

// newPreviewPipeline creates a preview pipeline and sets it to PLAYING
func (d *Device) newPreviewPipeline(callbackCtx *CallbackContext) (*PipelineElements, error) {
	format, err := rawFormat(d.params.PreviewFormat)
	if err != nil {
		return nil, err
	}
	_, window := d.surface.(WindowSurface)

	elements, err := CreatePreviewPipeline(PipelineConfig{
		Source:   d.cfg.Source,
		Device:   d.cfg.Device,
		Width:    d.params.PreviewSize.Width,
		Height:   d.params.PreviewSize.Height,
		Format:   format,
		Display:  window,
		Rotation: d.orientation,
	})
	if err != nil {
		return nil, err
	}

	elements.AppSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			return OnNewSample(sink, callbackCtx)
		},
	})

	if err := elements.Pipeline.SetState(gst.StatePlaying); err != nil {
		DestroyPipeline(elements)
		return nil, fmt.Errorf("gstcam: failed to start pipeline: %w", err)
	}
	return elements, nil
}

// runPreview monitors the pipeline and rebuilds it when it fails
func (d *Device) runPreview(ctx context.Context, first *PipelineElements, callbackCtx *CallbackContext, done chan struct{}) {
	defer close(done)

	started := time.Now()
	d.mu.Lock()
	resolution := d.params.PreviewSize.String()
	d.mu.Unlock()

	runFn := func(ctx context.Context) error {
		elements := first
		first = nil
		if elements == nil {
			d.mu.Lock()
			var err error
			elements, err = d.newPreviewPipeline(callbackCtx)
			d.mu.Unlock()
			if err != nil {
				return err
			}
		}

		d.setElements(elements)
		defer func() {
			d.setElements(nil)
			if err := DestroyPipeline(elements); err != nil {
				slog.Warn("gstcam: error destroying pipeline", "error", err)
			}
		}()

		return MonitorPipelineBus(ctx, elements.Pipeline, &d.errors, &d.restartState, &MonitorMetrics{
			Device:     d.cfg.Device,
			Resolution: resolution,
			FrameCount: &d.frameCount,
			StartedAt:  started,
		})
	}

	err := RunWithRestart(ctx, runFn, d.cfg.Restart, &d.restartState)
	if err != nil && ctx.Err() == nil {
		slog.Error("gstcam: preview stopped after restart failure",
			"error", err,
			"device", d.cfg.Device,
			"resolution", resolution,
			"uptime", time.Since(started),
			"frames", atomic.LoadUint64(&d.frameCount),
			"restarts", d.restartState.Restarts.Load(),
		)
	}
}

func (d *Device) setElements(elements *PipelineElements) {
	d.elemMu.Lock()
	d.elements = elements
	d.elemMu.Unlock()
}

// StopPreview stops the preview pipeline. Safe to call when not started.
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

	// runPreview needs d.mu to rebuild a pipeline; release it while waiting
	done := d.done
	d.mu.Unlock()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		slog.Warn("gstcam: stop timeout exceeded, pipeline may still be running")
	}
	d.mu.Lock()

	d.cancel = nil
	d.done = nil

	slog.Info("gstcam: preview stopped",
		"device", d.cfg.Device,
		"session", d.sessionID(),
		"frames", atomic.LoadUint64(&d.frameCount),
		"dropped", atomic.LoadUint64(&d.framesDropped),
	)
	return nil
}

// AutoFocus is a no-op; GStreamer sources expose no focus trigger
func (d *Device) AutoFocus() error {
	return nil
}

// TakePicture captures one JPEG at the configured picture size. A running
// preview is paused while the picture pipeline holds the device.
func (d *Device) TakePicture(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, fmt.Errorf("gstcam: device closed")
	}

	wasRunning := d.cancel != nil
	parent, buf, fn := d.parent, d.buf, d.fn
	if wasRunning {
		d.stopLocked()
	}

	jpeg, err := d.capturePicture(ctx)

	if wasRunning && parent.Err() == nil {
		if rerr := d.startLocked(parent, buf, fn); rerr != nil {
			slog.Error("gstcam: failed to resume preview after picture", "error", rerr)
		}
	}
	return jpeg, err
}

func (d *Device) capturePicture(ctx context.Context) ([]byte, error) {
	elements, err := CreatePicturePipeline(PictureConfig{
		Source:  d.cfg.Source,
		Device:  d.cfg.Device,
		Width:   d.params.PictureSize.Width,
		Height:  d.params.PictureSize.Height,
		Quality: d.cfg.JPEGQuality,
	})
	if err != nil {
		return nil, err
	}
	defer DestroyPipeline(elements)

	if err := elements.Pipeline.SetState(gst.StatePlaying); err != nil {
		return nil, fmt.Errorf("gstcam: failed to start picture pipeline: %w", err)
	}

	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sample := elements.AppSink.TryPullSample(d.cfg.FrameTimeout)
		if sample == nil {
			if perr := pipelineError(elements.Pipeline); perr != nil {
				return nil, perr
			}
			return nil, fmt.Errorf("gstcam: no picture within %s", d.cfg.FrameTimeout)
		}
		if i < d.cfg.PictureSkipFrames {
			continue
		}

		buffer := sample.GetBuffer()
		if buffer == nil {
			return nil, fmt.Errorf("gstcam: picture sample has no buffer")
		}
		mapInfo := buffer.Map(gst.MapRead)
		jpeg := append([]byte(nil), mapInfo.Bytes()...)
		buffer.Unmap()

		slog.Debug("gstcam: picture captured",
			"size", d.params.PictureSize.String(),
			"bytes", len(jpeg),
			"skipped", i,
		)
		return jpeg, nil
	}
}

// pipelineError drains the bus and returns the first error message
func pipelineError(pipeline *gst.Pipeline) error {
	bus := pipeline.GetPipelineBus()
	for msg := bus.TimedPop(0); msg != nil; msg = bus.TimedPop(0) {
		if msg.Type() != gst.MessageError {
			continue
		}
		gerr := msg.ParseError()
		category := ClassifyGStreamerError(gerr)
		return fmt.Errorf("gstcam: picture pipeline error [%s]: %s", category.String(), gerr.Error())
	}
	return nil
}

// Close stops the preview and marks the device unusable
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	err := d.stopLocked()
	d.closed = true
	slog.Debug("gstcam: camera closed", "device", d.cfg.Device)
	return err
}

// Stats returns a snapshot of the device counters
func (d *Device) Stats() Stats {
	return Stats{
		Session:       d.sessionID(),
		FrameCount:    atomic.LoadUint64(&d.frameCount),
		BytesRead:     atomic.LoadUint64(&d.bytesRead),
		FramesDropped: atomic.LoadUint64(&d.framesDropped),
		Restarts:      d.restartState.Restarts.Load(),
		Errors: ErrorCounters{
			Device:      atomic.LoadUint64(&d.errors.Device),
			Negotiation: atomic.LoadUint64(&d.errors.Negotiation),
			Stream:      atomic.LoadUint64(&d.errors.Stream),
			Unknown:     atomic.LoadUint64(&d.errors.Unknown),
		},
	}
}

func (d *Device) sessionID() string {
	id, _ := d.session.Load().(string)
	return id
}

// rawFormat maps a preview format to its GStreamer raw video format name
func rawFormat(f surfacecamera.PixelFormat) (string, error) {
	switch f {
	case surfacecamera.FormatNV21:
		return "NV21", nil
	case surfacecamera.FormatYUYV:
		return "YUY2", nil
	case surfacecamera.FormatRGB:
		return "RGB", nil
	default:
		return "", fmt.Errorf("%w: preview format %s", surfacecamera.ErrUnsupportedFormat, f)
	}
}

func cloneParams(p surfacecamera.Parameters) surfacecamera.Parameters {
	p.SupportedPreviewSizes = slices.Clone(p.SupportedPreviewSizes)
	p.SupportedPictureSizes = slices.Clone(p.SupportedPictureSizes)
	p.SupportedFlashModes = slices.Clone(p.SupportedFlashModes)
	return p
}

// checkGStreamerAvailable checks that GStreamer and the source element exist
//
// This is a fail-fast validation that runs at open time.
func checkGStreamerAvailable(source string) error {
	gst.Init(nil)

	elem, err := gst.NewElement(source)
	if err != nil {
		return fmt.Errorf("element %s not available: %w", source, err)
	}
	elem.SetState(gst.StateNull)
	return nil
}
