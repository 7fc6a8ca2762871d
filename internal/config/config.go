// Package config loads the surface-camera YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	surfacecamera "github.com/siddh1004/Surface-Camera-Xamarin-Android"
)

// Backends understood by Camera.Backend
const (
	BackendGStreamer = "gstreamer"
	BackendV4L2      = "v4l2"
)

// Config represents the complete surface-camera configuration
type Config struct {
	Camera  CameraConfig  `yaml:"camera"`
	Preview PreviewConfig `yaml:"preview"`
	Library LibraryConfig `yaml:"library"`
	Events  EventsConfig  `yaml:"events"`
	Log     LogConfig     `yaml:"log"`
}

// CameraConfig selects and describes the camera device
type CameraConfig struct {
	Backend string `yaml:"backend"` // gstreamer, v4l2
	Device  string `yaml:"device"`  // e.g. /dev/video0
	ID      int    `yaml:"id"`      // -1 = first back-facing camera
	// Source is the GStreamer source element (v4l2src, videotestsrc, ...)
	Source string `yaml:"source"`
	// FallbackSizes are used when the device does not report its sizes ("640x480")
	FallbackSizes []string `yaml:"fallback_sizes"`
	// Rotation is the display rotation in degrees (0, 90, 180, 270)
	Rotation int `yaml:"rotation"`
	// Facing and Orientation describe the sensor when the backend cannot
	Facing      string `yaml:"facing"`      // back, front
	Orientation int    `yaml:"orientation"` // 0, 90, 180, 270
}

// PreviewConfig contains the size selection policy
type PreviewConfig struct {
	AspectW                int    `yaml:"aspect_w"`
	AspectH                int    `yaml:"aspect_h"`
	PreviewMaxWidth        int    `yaml:"preview_max_width"`
	PictureMaxWidth        int    `yaml:"picture_max_width"`
	FlashMode              string `yaml:"flash_mode"`
	SelectFromPictureSizes *bool  `yaml:"select_from_picture_sizes"`
	FrameTimeoutMS         int    `yaml:"frame_timeout_ms"`
	MaxRestartAttempts     int    `yaml:"max_restart_attempts"`
}

// LibraryConfig contains picture library settings
type LibraryConfig struct {
	Dir         string `yaml:"dir"`
	JPEGQuality int    `yaml:"jpeg_quality"`
}

// EventsConfig contains MQTT picture event settings
type EventsConfig struct {
	Broker   string `yaml:"broker"` // host:port, empty = disabled
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      int    `yaml:"qos"`
}

// Enabled reports whether picture events should be published
func (e EventsConfig) Enabled() bool {
	return e.Broker != ""
}

// LogConfig contains logging settings
type LogConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // text, json
	File       string `yaml:"file"`   // empty = stdout only
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the built-in configuration
func Default() *Config {
	selectFromPictures := true
	return &Config{
		Camera: CameraConfig{
			Backend:       BackendGStreamer,
			Device:        "/dev/video0",
			ID:            -1,
			Source:        "v4l2src",
			FallbackSizes: []string{"320x240", "640x480", "1280x720", "1280x960"},
			Facing:        "back",
			Orientation:   0,
		},
		Preview: PreviewConfig{
			AspectW:                surfacecamera.DefaultAspectW,
			AspectH:                surfacecamera.DefaultAspectH,
			PreviewMaxWidth:        surfacecamera.DefaultPreviewMaxWidth,
			PictureMaxWidth:        surfacecamera.DefaultPictureMaxWidth,
			FlashMode:              surfacecamera.FlashModeOff,
			SelectFromPictureSizes: &selectFromPictures,
			FrameTimeoutMS:         5000,
			MaxRestartAttempts:     5,
		},
		Library: LibraryConfig{
			Dir:         "pictures",
			JPEGQuality: 90,
		},
		Events: EventsConfig{
			ClientID: "surface-camera",
			Topic:    "surface-camera",
			QoS:      1,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 2,
			MaxAgeDays: 28,
		},
	}
}

// Load reads the YAML file at path on top of Default() and validates the
// result. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration (fail-fast)
func (c *Config) Validate() error {
	switch c.Camera.Backend {
	case BackendGStreamer, BackendV4L2:
	default:
		return fmt.Errorf("config: camera.backend must be %s or %s, got %q", BackendGStreamer, BackendV4L2, c.Camera.Backend)
	}
	if c.Camera.Backend == BackendV4L2 && c.Camera.Device == "" {
		return fmt.Errorf("config: camera.device is required for the v4l2 backend")
	}
	if c.Camera.Backend == BackendGStreamer && c.Camera.Source == "" {
		return fmt.Errorf("config: camera.source is required for the gstreamer backend")
	}
	if _, err := c.FallbackSizes(); err != nil {
		return err
	}
	if _, ok := surfacecamera.RotationFromDegrees(c.Camera.Rotation); !ok {
		return fmt.Errorf("config: camera.rotation must be 0, 90, 180 or 270, got %d", c.Camera.Rotation)
	}
	if _, ok := surfacecamera.RotationFromDegrees(c.Camera.Orientation); !ok {
		return fmt.Errorf("config: camera.orientation must be 0, 90, 180 or 270, got %d", c.Camera.Orientation)
	}
	if c.Camera.Facing != "back" && c.Camera.Facing != "front" {
		return fmt.Errorf("config: camera.facing must be back or front, got %q", c.Camera.Facing)
	}

	if c.Preview.AspectW <= 0 || c.Preview.AspectH <= 0 {
		return fmt.Errorf("config: invalid preview aspect %d:%d", c.Preview.AspectW, c.Preview.AspectH)
	}
	if c.Preview.PreviewMaxWidth <= 0 || c.Preview.PictureMaxWidth <= 0 {
		return fmt.Errorf("config: preview_max_width and picture_max_width must be positive")
	}
	if c.Preview.FrameTimeoutMS <= 0 {
		return fmt.Errorf("config: preview.frame_timeout_ms must be positive")
	}
	if c.Preview.MaxRestartAttempts < 0 {
		return fmt.Errorf("config: preview.max_restart_attempts must not be negative")
	}

	if c.Library.Dir == "" {
		return fmt.Errorf("config: library.dir is required")
	}
	if c.Library.JPEGQuality < 1 || c.Library.JPEGQuality > 100 {
		return fmt.Errorf("config: library.jpeg_quality must be 1-100, got %d", c.Library.JPEGQuality)
	}

	if c.Events.Enabled() {
		if c.Events.Topic == "" {
			return fmt.Errorf("config: events.topic is required when events.broker is set")
		}
		if c.Events.QoS < 0 || c.Events.QoS > 2 {
			return fmt.Errorf("config: events.qos must be 0-2, got %d", c.Events.QoS)
		}
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// PreviewSettings converts the preview section for surfacecamera.NewPreview
func (c *Config) PreviewSettings() surfacecamera.PreviewConfig {
	pc := surfacecamera.DefaultPreviewConfig()
	pc.AspectW = c.Preview.AspectW
	pc.AspectH = c.Preview.AspectH
	pc.PreviewMaxWidth = c.Preview.PreviewMaxWidth
	pc.PictureMaxWidth = c.Preview.PictureMaxWidth
	pc.FlashMode = c.Preview.FlashMode
	if c.Preview.SelectFromPictureSizes != nil {
		pc.SelectPreviewFromPictureSizes = *c.Preview.SelectFromPictureSizes
	}
	return pc
}

// DisplayRotation returns camera.rotation as a Rotation
func (c *Config) DisplayRotation() surfacecamera.Rotation {
	r, _ := surfacecamera.RotationFromDegrees(c.Camera.Rotation)
	return r
}

// CameraInfo returns the configured facing and sensor orientation
func (c *Config) CameraInfo() surfacecamera.CameraInfo {
	info := surfacecamera.CameraInfo{Facing: surfacecamera.FacingBack, Orientation: c.Camera.Orientation}
	if c.Camera.Facing == "front" {
		info.Facing = surfacecamera.FacingFront
	}
	return info
}

// FallbackSizes parses camera.fallback_sizes
func (c *Config) FallbackSizes() ([]surfacecamera.Dimension, error) {
	sizes := make([]surfacecamera.Dimension, 0, len(c.Camera.FallbackSizes))
	for _, s := range c.Camera.FallbackSizes {
		d, err := ParseDimension(s)
		if err != nil {
			return nil, fmt.Errorf("config: camera.fallback_sizes: %w", err)
		}
		sizes = append(sizes, d)
	}
	return sizes, nil
}

// ParseDimension parses "WxH" (e.g. "640x480")
func ParseDimension(s string) (surfacecamera.Dimension, error) {
	var d surfacecamera.Dimension
	var rest string
	n, _ := fmt.Sscanf(strings.ToLower(strings.TrimSpace(s)), "%dx%d%s", &d.Width, &d.Height, &rest)
	if n != 2 || d.Width <= 0 || d.Height <= 0 {
		return surfacecamera.Dimension{}, fmt.Errorf("invalid size %q (want WxH)", s)
	}
	return d, nil
}
