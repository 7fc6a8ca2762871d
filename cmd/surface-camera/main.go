package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	surfacecamera "github.com/siddh1004/Surface-Camera-Xamarin-Android"
	"github.com/siddh1004/Surface-Camera-Xamarin-Android/internal/config"
	"github.com/siddh1004/Surface-Camera-Xamarin-Android/internal/events"
	"github.com/siddh1004/Surface-Camera-Xamarin-Android/internal/gstcam"
	"github.com/siddh1004/Surface-Camera-Xamarin-Android/internal/library"
	"github.com/siddh1004/Surface-Camera-Xamarin-Android/internal/logging"
	"github.com/siddh1004/Surface-Camera-Xamarin-Android/internal/v4l2cam"
)

// Version information
const version = "v0.1.0"

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "YAML config file (optional)")
	backend := flag.String("backend", "", "Camera backend: gstreamer, v4l2 (overrides config)")
	device := flag.String("device", "", "Camera device path, e.g. /dev/video0 (overrides config)")
	source := flag.String("source", "", "GStreamer source element, e.g. videotestsrc (overrides config)")
	list := flag.Bool("list", false, "List devices and sizes, then exit")
	captures := flag.Int("captures", 1, "Pictures to take before exiting (0 = until interrupted)")
	interval := flag.Duration("interval", 3*time.Second, "Time between pictures")
	rotation := flag.Int("rotation", -1, "Display rotation in degrees: 0, 90, 180, 270 (overrides config)")
	outputDir := flag.String("output", "", "Picture directory (overrides config)")
	window := flag.Bool("window", false, "Show the preview in a window (gstreamer backend)")
	statsInterval := flag.Int("stats-interval", 10, "Seconds between stats reports")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("surface-camera %s\n", version)
		os.Exit(0)
	}

	// Load configuration, then apply flag overrides
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *backend != "" {
		cfg.Camera.Backend = *backend
	}
	if *device != "" {
		cfg.Camera.Device = *device
	}
	if *source != "" {
		cfg.Camera.Source = *source
	}
	if *rotation >= 0 {
		cfg.Camera.Rotation = *rotation
	}
	if *outputDir != "" {
		cfg.Library.Dir = *outputDir
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	_, closeLog, err := logging.Setup(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()

	opener, err := newOpener(cfg)
	if err != nil {
		log.Fatalf("Failed to create camera backend: %v", err)
	}

	if *list {
		if err := listCameras(cfg, opener); err != nil {
			log.Fatalf("List failed: %v", err)
		}
		return
	}

	if err := run(cfg, opener, runOptions{
		captures:      *captures,
		interval:      *interval,
		window:        *window,
		statsInterval: time.Duration(*statsInterval) * time.Second,
	}); err != nil {
		slog.Error("surface-camera: exiting", "error", err)
		closeLog()
		os.Exit(1)
	}
}

type runOptions struct {
	captures      int
	interval      time.Duration
	window        bool
	statsInterval time.Duration
}

func run(cfg *config.Config, opener surfacecamera.Opener, opts runOptions) error {
	lib, err := library.New(cfg.Library.Dir, cfg.Library.JPEGQuality)
	if err != nil {
		return err
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dev, id, err := surfacecamera.Acquire(opener, cfg.Camera.ID)
	if err != nil {
		return err
	}
	defer surfacecamera.Release(dev)

	var sink surfacecamera.PictureSink = lib
	if cfg.Events.Enabled() {
		emitter, err := events.NewMQTTEmitter(events.Config{
			Broker:   cfg.Events.Broker,
			ClientID: cfg.Events.ClientID,
			Topic:    cfg.Events.Topic,
			QoS:      byte(cfg.Events.QoS),
		})
		if err != nil {
			return err
		}
		if err := emitter.Connect(ctx); err != nil {
			return err
		}
		defer emitter.Disconnect()

		notifying, err := events.NewNotifyingSink(lib, emitter, fmt.Sprintf("%s:%d", cfg.Camera.Device, id))
		if err != nil {
			return err
		}
		sink = notifying
	}

	meter := &lumaMeter{}
	preview, err := surfacecamera.NewPreview(dev,
		surfacecamera.FixedDisplay(cfg.DisplayRotation()),
		cfg.PreviewSettings(),
		surfacecamera.WithPictureSink(sink),
		surfacecamera.WithProcessor(meter),
	)
	if err != nil {
		return err
	}

	// Handle graceful shutdown; SIGUSR1 takes a picture
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)
	defer signal.Stop(sigChan)

	var surface surfacecamera.Surface = surfacecamera.HeadlessSurface{}
	if opts.window {
		surface = gstcam.WindowSurface{}
	}
	if err := attachSurface(ctx, preview, surface); err != nil {
		return err
	}
	defer preview.SurfaceDestroyed()

	params, _ := preview.Parameters()
	fmt.Printf("\n")
	fmt.Printf("Camera %d (%s %s)\n", id, cfg.Camera.Backend, cfg.Camera.Device)
	fmt.Printf("  Preview:   %s %s\n", params.PreviewSize, params.PreviewFormat)
	fmt.Printf("  Picture:   %s\n", params.PictureSize)
	fmt.Printf("  Rotation:  %d\n", cfg.Camera.Rotation)
	fmt.Printf("  Library:   %s\n", lib.Dir())
	if opts.captures > 0 {
		fmt.Printf("  Captures:  %d every %s\n", opts.captures, opts.interval)
	} else {
		fmt.Printf("  Captures:  every %s until interrupted\n", opts.interval)
	}
	fmt.Printf("Press Ctrl+C to stop, send SIGUSR1 for an extra picture\n\n")

	captureTicker := time.NewTicker(opts.interval)
	defer captureTicker.Stop()
	statsTicker := time.NewTicker(opts.statsInterval)
	defer statsTicker.Stop()

	taken := 0
	capture := func() {
		pic, err := preview.Capture(ctx)
		if err != nil {
			slog.Error("surface-camera: capture failed", "error", err)
			return
		}
		taken++
		fmt.Printf("[%s] Picture #%-4d | %s | %6.1f KB | rotated=%v | %s\n",
			pic.TakenAt.Format("15:04:05"),
			taken,
			pic.Size,
			float64(pic.Bytes)/1024,
			pic.Rotated,
			pic.Path,
		)
	}

	for {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGUSR1 {
				capture()
				continue
			}
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			printStats(preview.Stats(), meter)
			return nil

		case <-captureTicker.C:
			capture()
			if opts.captures > 0 && taken >= opts.captures {
				printStats(preview.Stats(), meter)
				return nil
			}

		case <-statsTicker.C:
			printStats(preview.Stats(), meter)
		}
	}
}

// attachSurface drives a surface through created and changed, so the
// display orientation reaches the device before frames are shown.
func attachSurface(ctx context.Context, preview *surfacecamera.Preview, surface surfacecamera.Surface) error {
	if err := preview.SurfaceCreated(ctx, surface); err != nil {
		return err
	}
	params, err := preview.Parameters()
	if err != nil {
		return err
	}
	return preview.SurfaceChanged(ctx, surface, params.PreviewSize.Width, params.PreviewSize.Height)
}

func printStats(stats surfacecamera.PreviewStats, meter *lumaMeter) {
	fmt.Printf("\n")
	fmt.Printf("Preview statistics\n")
	fmt.Printf("  Running:        %v\n", stats.Running)
	fmt.Printf("  Frames:         %d\n", stats.FrameCount)
	fmt.Printf("  Real FPS:       %.2f\n", stats.FPSReal)
	fmt.Printf("  Bytes Read:     %.2f MB\n", float64(stats.BytesRead)/1024/1024)
	fmt.Printf("  Buffer:         %d bytes\n", stats.BufferSize)
	fmt.Printf("  Orientation:    %d\n", stats.DisplayOrientation)
	fmt.Printf("  Mean Luma:      %d\n", meter.mean.Load())
	fmt.Printf("  Pictures:       %d\n", stats.PicturesTaken)
	fmt.Printf("\n")
}

func listCameras(cfg *config.Config, opener surfacecamera.Opener) error {
	if cfg.Camera.Backend == config.BackendV4L2 {
		paths, err := v4l2cam.Discover()
		if err != nil {
			return err
		}
		fmt.Printf("V4L2 devices:\n")
		for _, p := range paths {
			fmt.Printf("  %s\n", p)
		}
		fmt.Printf("\n")
	}

	dev, id, err := surfacecamera.Acquire(opener, cfg.Camera.ID)
	if err != nil {
		return err
	}
	defer surfacecamera.Release(dev)

	params, err := dev.Parameters()
	if err != nil {
		return err
	}

	fmt.Printf("Camera %d (%s %s)\n", id, cfg.Camera.Backend, cfg.Camera.Device)
	if info, err := dev.Info(); err == nil {
		fmt.Printf("  Facing:        %s, sensor orientation %d\n", info.Facing, info.Orientation)
	} else {
		fmt.Printf("  Facing:        unknown\n")
	}
	printSizes("Preview sizes", params.SupportedPreviewSizes)
	printSizes("Picture sizes", params.SupportedPictureSizes)

	pc := cfg.PreviewSettings()
	candidates := params.SupportedPreviewSizes
	if pc.SelectPreviewFromPictureSizes {
		candidates = params.SupportedPictureSizes
	}
	previewSize, err := surfacecamera.SelectBestSize(candidates, pc.AspectW, pc.AspectH, pc.PreviewMaxWidth)
	if err != nil {
		return err
	}
	pictureSize, err := surfacecamera.SelectBestSize(params.SupportedPictureSizes, pc.AspectW, pc.AspectH, pc.PictureMaxWidth)
	if err != nil {
		return err
	}
	fmt.Printf("  Selected:      preview %s, picture %s (%d:%d)\n", previewSize, pictureSize, pc.AspectW, pc.AspectH)
	return nil
}

func printSizes(label string, sizes []surfacecamera.Dimension) {
	fmt.Printf("  %-14s", label+":")
	for i, s := range sizes {
		if i > 0 {
			fmt.Printf(", ")
		}
		fmt.Printf("%s", s)
	}
	fmt.Printf("\n")
}

// newOpener builds the configured backend with a single camera
func newOpener(cfg *config.Config) (surfacecamera.Opener, error) {
	sizes, err := cfg.FallbackSizes()
	if err != nil {
		return nil, err
	}
	info := cfg.CameraInfo()
	timeout := time.Duration(cfg.Preview.FrameTimeoutMS) * time.Millisecond

	switch cfg.Camera.Backend {
	case config.BackendGStreamer:
		restart := gstcam.DefaultRestartConfig()
		restart.MaxRetries = cfg.Preview.MaxRestartAttempts
		op, err := gstcam.NewOpener(gstcam.Config{
			Source:        cfg.Camera.Source,
			Device:        cfg.Camera.Device,
			Info:          &info,
			FallbackSizes: sizes,
			FrameTimeout:  timeout,
			JPEGQuality:   cfg.Library.JPEGQuality,
			Restart:       restart,
		})
		if err != nil {
			return nil, err
		}
		return op, nil

	case config.BackendV4L2:
		op, err := v4l2cam.NewOpener(v4l2cam.Config{
			Device:        cfg.Camera.Device,
			Info:          &info,
			FallbackSizes: sizes,
			FrameTimeout:  timeout,
			JPEGQuality:   cfg.Library.JPEGQuality,
		})
		if err != nil {
			return nil, err
		}
		return op, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Camera.Backend)
	}
}

// lumaMeter tracks the mean brightness of preview frames
type lumaMeter struct {
	mean atomic.Uint64
}

// ProcessFrame samples the Y plane of NV21 and YUYV frames
func (m *lumaMeter) ProcessFrame(frame []byte, size surfacecamera.Dimension, format surfacecamera.PixelFormat) {
	step := 1
	switch format {
	case surfacecamera.FormatNV21:
	case surfacecamera.FormatYUYV:
		step = 2
	default:
		return
	}

	n := size.Width * size.Height * step
	if n > len(frame) {
		n = len(frame)
	}
	const stride = 64
	var sum, count uint64
	for i := 0; i < n; i += stride * step {
		sum += uint64(frame[i])
		count++
	}
	if count > 0 {
		m.mean.Store(sum / count)
	}
}
