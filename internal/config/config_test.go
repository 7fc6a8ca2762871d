package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	surfacecamera "github.com/siddh1004/Surface-Camera-Xamarin-Android"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "surface-camera.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, BackendGStreamer, cfg.Camera.Backend)
	assert.Equal(t, -1, cfg.Camera.ID)
	assert.Equal(t, "pictures", cfg.Library.Dir)
	assert.False(t, cfg.Events.Enabled())

	pc := cfg.PreviewSettings()
	assert.Equal(t, surfacecamera.DefaultPreviewConfig(), pc)
	assert.Equal(t, surfacecamera.Rotation0, cfg.DisplayRotation())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
camera:
  backend: v4l2
  device: /dev/video2
  id: 1
  rotation: 90
  facing: front
  orientation: 270
  fallback_sizes: ["176x144", "352x288"]
preview:
  preview_max_width: 320
  select_from_picture_sizes: false
library:
  dir: /var/lib/pictures
  jpeg_quality: 75
events:
  broker: mqtt.local:1883
  qos: 0
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendV4L2, cfg.Camera.Backend)
	assert.Equal(t, "/dev/video2", cfg.Camera.Device)
	assert.Equal(t, 1, cfg.Camera.ID)
	assert.Equal(t, surfacecamera.Rotation90, cfg.DisplayRotation())
	assert.Equal(t, surfacecamera.CameraInfo{Facing: surfacecamera.FacingFront, Orientation: 270}, cfg.CameraInfo())

	sizes, err := cfg.FallbackSizes()
	require.NoError(t, err)
	assert.Equal(t, []surfacecamera.Dimension{{Width: 176, Height: 144}, {Width: 352, Height: 288}}, sizes)

	pc := cfg.PreviewSettings()
	assert.Equal(t, 320, pc.PreviewMaxWidth)
	// untouched keys keep their defaults
	assert.Equal(t, surfacecamera.DefaultPictureMaxWidth, pc.PictureMaxWidth)
	assert.False(t, pc.SelectPreviewFromPictureSizes)

	assert.Equal(t, 75, cfg.Library.JPEGQuality)
	assert.True(t, cfg.Events.Enabled())
	assert.Equal(t, "surface-camera", cfg.Events.Topic)
	assert.Equal(t, 0, cfg.Events.QoS)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "camera: [not, a, map]"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"unknown backend", func(c *Config) { c.Camera.Backend = "android" }, "camera.backend"},
		{"v4l2 without device", func(c *Config) { c.Camera.Backend = BackendV4L2; c.Camera.Device = "" }, "camera.device"},
		{"gstreamer without source", func(c *Config) { c.Camera.Source = "" }, "camera.source"},
		{"bad fallback size", func(c *Config) { c.Camera.FallbackSizes = []string{"640by480"} }, "fallback_sizes"},
		{"bad rotation", func(c *Config) { c.Camera.Rotation = 45 }, "camera.rotation"},
		{"bad orientation", func(c *Config) { c.Camera.Orientation = 30 }, "camera.orientation"},
		{"bad facing", func(c *Config) { c.Camera.Facing = "up" }, "camera.facing"},
		{"zero aspect", func(c *Config) { c.Preview.AspectW = 0 }, "aspect"},
		{"zero max width", func(c *Config) { c.Preview.PictureMaxWidth = 0 }, "picture_max_width"},
		{"zero frame timeout", func(c *Config) { c.Preview.FrameTimeoutMS = 0 }, "frame_timeout_ms"},
		{"negative restarts", func(c *Config) { c.Preview.MaxRestartAttempts = -1 }, "max_restart_attempts"},
		{"empty library", func(c *Config) { c.Library.Dir = "" }, "library.dir"},
		{"quality too high", func(c *Config) { c.Library.JPEGQuality = 101 }, "jpeg_quality"},
		{"events without topic", func(c *Config) { c.Events.Broker = "localhost:1883"; c.Events.Topic = "" }, "events.topic"},
		{"events bad qos", func(c *Config) { c.Events.Broker = "localhost:1883"; c.Events.QoS = 3 }, "events.qos"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParseDimension(t *testing.T) {
	tests := []struct {
		in      string
		want    surfacecamera.Dimension
		wantErr bool
	}{
		{in: "640x480", want: surfacecamera.Dimension{Width: 640, Height: 480}},
		{in: " 1280X960 ", want: surfacecamera.Dimension{Width: 1280, Height: 960}},
		{in: "640", wantErr: true},
		{in: "0x480", wantErr: true},
		{in: "640x480x3", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDimension(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
