package gstcam

import (
	"fmt"
	"log/slog"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Source elements with special handling
const (
	SourceV4L2 = "v4l2src"
	SourceTest = "videotestsrc"
)

const defaultDisplay = "autovideosink"

// PipelineConfig contains configuration for preview pipeline creation
type PipelineConfig struct {
	Source string // GStreamer source element
	Device string // device path, only used by v4l2src
	Width  int
	Height int
	Format string // raw video format, e.g. NV21

	// Display adds a window branch rendering the preview rotated by Rotation
	Display  bool
	Rotation int // clockwise degrees
}

// PictureConfig contains configuration for still picture pipeline creation
type PictureConfig struct {
	Source  string
	Device  string
	Width   int
	Height  int
	Quality int // JPEG quality 1-100
}

// PipelineElements holds references to GStreamer pipeline elements
// These references are needed for orientation updates and cleanup
type PipelineElements struct {
	Pipeline   *gst.Pipeline
	AppSink    *app.Sink
	CapsFilter *gst.Element
	Flip       *gst.Element // nil without a display branch
}

// CreatePreviewPipeline creates a pipeline delivering raw frames to an appsink
//
// Pipeline structure:
//
//	src → videoconvert → videoscale → capsfilter → appsink
//
// With Display set the capsfilter output is split:
//
//	capsfilter → tee → queue → appsink
//	                 → queue → videoconvert → videoflip → autovideosink
//
// Frames reaching the appsink are never rotated; orientation only applies
// to the display branch.
//
// The pipeline is configured but NOT started (state remains NULL).
func CreatePreviewPipeline(cfg PipelineConfig) (*PipelineElements, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("gstcam: invalid preview size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Format == "" {
		return nil, fmt.Errorf("gstcam: preview format is required")
	}

	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("gstcam: failed to create pipeline: %w", err)
	}

	src, err := newSource(cfg.Source, cfg.Device)
	if err != nil {
		return nil, err
	}
	converter, scaler, err := newConvertScale()
	if err != nil {
		return nil, err
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("gstcam: failed to create capsfilter: %w", err)
	}
	capsStr := buildRawCaps(cfg.Format, cfg.Width, cfg.Height)
	capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))

	appsink, err := newAppSink()
	if err != nil {
		return nil, err
	}

	elements := &PipelineElements{
		Pipeline:   pipeline,
		AppSink:    appsink,
		CapsFilter: capsfilter,
	}

	if !cfg.Display {
		pipeline.AddMany(src, converter, scaler, capsfilter, appsink.Element)
		if err := gst.ElementLinkMany(src, converter, scaler, capsfilter, appsink.Element); err != nil {
			return nil, fmt.Errorf("gstcam: failed to link preview pipeline: %w", err)
		}
		slog.Debug("gstcam: preview pipeline created", "source", cfg.Source, "caps", capsStr)
		return elements, nil
	}

	direction, err := videoDirection(cfg.Rotation)
	if err != nil {
		return nil, err
	}

	tee, err := gst.NewElement("tee")
	if err != nil {
		return nil, fmt.Errorf("gstcam: failed to create tee: %w", err)
	}
	frameQueue, err := newQueue()
	if err != nil {
		return nil, err
	}
	displayQueue, err := newQueue()
	if err != nil {
		return nil, err
	}
	displayConvert, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("gstcam: failed to create videoconvert: %w", err)
	}
	flip, err := gst.NewElement("videoflip")
	if err != nil {
		return nil, fmt.Errorf("gstcam: failed to create videoflip: %w", err)
	}
	flip.SetProperty("video-direction", direction)

	display, err := gst.NewElement(defaultDisplay)
	if err != nil {
		return nil, fmt.Errorf("gstcam: failed to create %s: %w", defaultDisplay, err)
	}
	display.SetProperty("sync", false)

	pipeline.AddMany(
		src, converter, scaler, capsfilter, tee,
		frameQueue, appsink.Element,
		displayQueue, displayConvert, flip, display,
	)

	if err := gst.ElementLinkMany(src, converter, scaler, capsfilter, tee); err != nil {
		return nil, fmt.Errorf("gstcam: failed to link preview pipeline: %w", err)
	}
	if err := gst.ElementLinkMany(tee, frameQueue, appsink.Element); err != nil {
		return nil, fmt.Errorf("gstcam: failed to link frame branch: %w", err)
	}
	if err := gst.ElementLinkMany(tee, displayQueue, displayConvert, flip, display); err != nil {
		return nil, fmt.Errorf("gstcam: failed to link display branch: %w", err)
	}

	elements.Flip = flip
	slog.Debug("gstcam: preview pipeline created",
		"source", cfg.Source,
		"caps", capsStr,
		"display", defaultDisplay,
		"rotation", cfg.Rotation,
	)
	return elements, nil
}

// CreatePicturePipeline creates a pipeline producing JPEG pictures
//
// Pipeline structure:
//
//	src → videoconvert → videoscale → capsfilter → jpegenc → appsink
func CreatePicturePipeline(cfg PictureConfig) (*PipelineElements, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("gstcam: invalid picture size %dx%d", cfg.Width, cfg.Height)
	}

	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("gstcam: failed to create pipeline: %w", err)
	}

	src, err := newSource(cfg.Source, cfg.Device)
	if err != nil {
		return nil, err
	}
	converter, scaler, err := newConvertScale()
	if err != nil {
		return nil, err
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("gstcam: failed to create capsfilter: %w", err)
	}
	capsStr := buildRawCaps("I420", cfg.Width, cfg.Height)
	capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))

	encoder, err := gst.NewElement("jpegenc")
	if err != nil {
		return nil, fmt.Errorf("gstcam: failed to create jpegenc: %w", err)
	}
	if cfg.Quality > 0 {
		encoder.SetProperty("quality", cfg.Quality)
	}

	appsink, err := newAppSink()
	if err != nil {
		return nil, err
	}

	pipeline.AddMany(src, converter, scaler, capsfilter, encoder, appsink.Element)
	if err := gst.ElementLinkMany(src, converter, scaler, capsfilter, encoder, appsink.Element); err != nil {
		return nil, fmt.Errorf("gstcam: failed to link picture pipeline: %w", err)
	}

	slog.Debug("gstcam: picture pipeline created", "source", cfg.Source, "caps", capsStr)
	return &PipelineElements{
		Pipeline:   pipeline,
		AppSink:    appsink,
		CapsFilter: capsfilter,
	}, nil
}

// UpdateOrientation changes the display rotation of a running pipeline
func UpdateOrientation(flip *gst.Element, degrees int) error {
	if flip == nil {
		return nil
	}
	direction, err := videoDirection(degrees)
	if err != nil {
		return err
	}
	return flip.SetProperty("video-direction", direction)
}

// DestroyPipeline cleans up GStreamer pipeline resources
//
// Sets pipeline state to NULL, which also joins the streaming threads, so
// no appsink callback runs after it returns.
// Safe to call even if pipeline is already destroyed.
func DestroyPipeline(elements *PipelineElements) error {
	if elements == nil || elements.Pipeline == nil {
		return nil
	}
	if err := elements.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("gstcam: failed to set pipeline to NULL: %w", err)
	}
	return nil
}

func newSource(source, device string) (*gst.Element, error) {
	if source == "" {
		source = SourceV4L2
	}
	src, err := gst.NewElement(source)
	if err != nil {
		return nil, fmt.Errorf("gstcam: failed to create %s: %w", source, err)
	}
	switch source {
	case SourceV4L2:
		if device != "" {
			src.SetProperty("device", device)
		}
	case SourceTest:
		src.SetProperty("is-live", true)
	}
	return src, nil
}

func newConvertScale() (*gst.Element, *gst.Element, error) {
	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, nil, fmt.Errorf("gstcam: failed to create videoconvert: %w", err)
	}
	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, nil, fmt.Errorf("gstcam: failed to create videoscale: %w", err)
	}
	return converter, scaler, nil
}

func newQueue() (*gst.Element, error) {
	queue, err := gst.NewElement("queue")
	if err != nil {
		return nil, fmt.Errorf("gstcam: failed to create queue: %w", err)
	}
	queue.SetProperty("leaky", 2) // downstream: drop old buffers
	queue.SetProperty("max-size-buffers", uint(2))
	return queue, nil
}

func newAppSink() (*app.Sink, error) {
	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("gstcam: failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)    // No sync with clock (real-time)
	appsink.SetProperty("max-buffers", 1) // Keep only latest frame
	appsink.SetProperty("drop", true)     // Drop old frames
	return appsink, nil
}

// buildRawCaps builds a raw video caps string
//
// Format: "video/x-raw,format=F,width=W,height=H"
func buildRawCaps(format string, width, height int) string {
	return fmt.Sprintf("video/x-raw,format=%s,width=%d,height=%d", format, width, height)
}

// videoDirection maps clockwise degrees to GstVideoOrientationMethod
// (identity, 90r, 180, 90l).
func videoDirection(degrees int) (int, error) {
	switch degrees {
	case 0:
		return 0, nil
	case 90:
		return 1, nil
	case 180:
		return 2, nil
	case 270:
		return 3, nil
	default:
		return 0, fmt.Errorf("gstcam: invalid rotation %d (must be 0, 90, 180 or 270)", degrees)
	}
}
