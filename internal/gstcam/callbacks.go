package gstcam

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	surfacecamera "github.com/siddh1004/Surface-Camera-Xamarin-Android"
)

// CallbackContext holds state needed by GStreamer callbacks
type CallbackContext struct {
	Buffer        []byte                  // caller-owned preview buffer
	Fn            surfacecamera.FrameFunc // frame consumer
	FrameCounter  *uint64                 // Atomic counter for delivered frames
	BytesRead     *uint64                 // Atomic counter for bytes read
	FramesDropped *uint64                 // Atomic counter for dropped frames (consumer busy)
	Session       string                  // preview session id, set per StartPreview

	// Active gates delivery; cleared by StopPreview before the pipeline is torn down
	Active *atomic.Bool
	busy   atomic.Bool
}

// OnNewSample is called by GStreamer when a new frame is available
//
// This callback:
//  1. Pulls the sample from the appsink
//  2. Maps the buffer to read pixel data
//  3. Copies data into the caller's preview buffer (GStreamer will reuse its buffer)
//  4. Hands the buffer to the frame consumer, dropping the frame if it is busy
//
// Always returns gst.FlowOK; a single bad frame should not stop the preview.
func OnNewSample(sink *app.Sink, ctx *CallbackContext) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("gstcam: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("gstcam: failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		slog.Warn("gstcam: empty buffer received")
		return gst.FlowOK
	}
	defer buffer.Unmap()

	return deliver(ctx, data)
}

// deliver copies data into the preview buffer and calls the consumer
func deliver(ctx *CallbackContext, data []byte) gst.FlowReturn {
	if ctx.Active != nil && !ctx.Active.Load() {
		return gst.FlowOK
	}

	atomic.AddUint64(ctx.BytesRead, uint64(len(data)))

	if len(data) > len(ctx.Buffer) {
		atomic.AddUint64(ctx.FramesDropped, 1)
		slog.Debug("gstcam: dropping frame, preview buffer too small",
			"frame_bytes", len(data),
			"buffer_bytes", len(ctx.Buffer),
		)
		return gst.FlowOK
	}

	if !ctx.busy.CompareAndSwap(false, true) {
		atomic.AddUint64(ctx.FramesDropped, 1)
		slog.Debug("gstcam: dropping frame, consumer busy")
		return gst.FlowOK
	}
	defer ctx.busy.Store(false)

	n := copy(ctx.Buffer, data)
	seq := atomic.AddUint64(ctx.FrameCounter, 1)

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug("gstcam: frame delivered",
			"session", ctx.Session,
			"seq", seq,
			"size_bytes", n,
		)
	}

	if ctx.Fn != nil {
		ctx.Fn(ctx.Buffer[:n])
	}
	return gst.FlowOK
}
