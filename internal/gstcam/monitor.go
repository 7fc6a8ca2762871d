package gstcam

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorCounters holds atomic counters for different error categories
type ErrorCounters struct {
	Device      uint64
	Negotiation uint64
	Stream      uint64
	Unknown     uint64
}

func (c *ErrorCounters) add(category ErrorCategory) {
	switch category {
	case ErrCategoryDevice:
		atomic.AddUint64(&c.Device, 1)
	case ErrCategoryNegotiation:
		atomic.AddUint64(&c.Negotiation, 1)
	case ErrCategoryStream:
		atomic.AddUint64(&c.Stream, 1)
	default:
		atomic.AddUint64(&c.Unknown, 1)
	}
}

// MonitorMetrics holds preview metrics for log context
type MonitorMetrics struct {
	Device     string
	Resolution string
	FrameCount *uint64
	StartedAt  time.Time
}

// MonitorPipelineBus monitors the GStreamer pipeline bus for messages
//
// This function:
//  1. Polls pipeline bus for messages (EOS, Error, StateChanged)
//  2. Classifies errors and updates error counters
//  3. Resets restart state on PLAYING transition
//
// Returns an error if the pipeline fails (triggers a restart; negotiation
// failures are wrapped in *ErrNotRetryable).
// Returns nil if ctx is cancelled (graceful shutdown).
func MonitorPipelineBus(
	ctx context.Context,
	pipeline *gst.Pipeline,
	counters *ErrorCounters,
	state *RestartState,
	metrics *MonitorMetrics,
) error {
	if pipeline == nil {
		return fmt.Errorf("gstcam: pipeline not initialized")
	}

	bus := pipeline.GetPipelineBus()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("gstcam: context cancelled, stopping pipeline monitor")
			return nil

		default:
			// Short timeout for responsive shutdown
			msg := bus.TimedPop(50 * time.Millisecond)
			if msg == nil {
				continue
			}

			switch msg.Type() {
			case gst.MessageEOS:
				slog.Info("gstcam: end of stream received",
					"device", metrics.Device,
					"uptime", time.Since(metrics.StartedAt),
					"frames", atomic.LoadUint64(metrics.FrameCount),
				)
				return fmt.Errorf("gstcam: end of stream")

			case gst.MessageError:
				gerr := msg.ParseError()
				category := ClassifyGStreamerError(gerr)
				counters.add(category)

				slog.Error("gstcam: pipeline error",
					"error", gerr.Error(),
					"debug", gerr.DebugString(),
					"category", category.String(),
					"device", metrics.Device,
					"resolution", metrics.Resolution,
					"uptime", time.Since(metrics.StartedAt),
					"frames", atomic.LoadUint64(metrics.FrameCount),
					"restarts", state.Restarts.Load(),
				)

				err := fmt.Errorf("gstcam: pipeline error [%s]: %s", category.String(), gerr.Error())
				if !category.Retryable() {
					return &ErrNotRetryable{Err: err}
				}
				return err

			case gst.MessageStateChanged:
				if msg.Source() == pipeline.GetName() {
					old, new := msg.ParseStateChanged()
					slog.Debug("gstcam: pipeline state changed", "from", old, "to", new)

					if new == gst.StatePlaying {
						ResetRestartState(state)
					}
				}
			}
		}
	}
}
