package gstcam

import (
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorCategory represents the classification of GStreamer errors for telemetry
type ErrorCategory int

const (
	// ErrCategoryDevice indicates the camera could not be opened or vanished
	// (busy, permissions, unplugged)
	ErrCategoryDevice ErrorCategory = iota
	// ErrCategoryNegotiation indicates the requested size or format was
	// refused by the source
	ErrCategoryNegotiation
	// ErrCategoryStream indicates a data-flow failure after startup
	ErrCategoryStream
	// ErrCategoryUnknown indicates unclassified errors
	ErrCategoryUnknown
)

// String returns a human-readable string representation of the error category
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryDevice:
		return "device"
	case ErrCategoryNegotiation:
		return "negotiation"
	case ErrCategoryStream:
		return "stream"
	default:
		return "unknown"
	}
}

// Retryable reports whether restarting the pipeline may help. A refused
// format will be refused again.
func (e ErrorCategory) Retryable() bool {
	return e != ErrCategoryNegotiation
}

// ClassifyGStreamerError categorizes a GStreamer error.
// go-gst's GError does not expose the error domain, so classification is
// based on message keywords.
func ClassifyGStreamerError(gerr *gst.GError) ErrorCategory {
	if gerr == nil {
		return ErrCategoryUnknown
	}
	return ClassifyMessage(gerr.Error(), gerr.DebugString())
}

// ClassifyMessage categorizes an error from its message and debug strings
func ClassifyMessage(msg, debug string) ErrorCategory {
	combined := strings.ToLower(msg + " " + debug)

	// Negotiation first: "could not negotiate format" must not be read as a
	// device error
	if containsAny(combined, negotiationKeywords) {
		return ErrCategoryNegotiation
	}
	if containsAny(combined, deviceKeywords) {
		return ErrCategoryDevice
	}
	if containsAny(combined, streamKeywords) {
		return ErrCategoryStream
	}
	return ErrCategoryUnknown
}

var (
	negotiationKeywords = []string{
		"not-negotiated",
		"not negotiated",
		"negotiate",
		"caps",
		"format",
		"resolution",
		"no supported",
	}

	deviceKeywords = []string{
		"permission denied",
		"device or resource busy",
		"busy",
		"no such device",
		"no such file",
		"cannot identify device",
		"could not open",
		"failed to open",
		"not a capture device",
		"/dev/video",
	}

	streamKeywords = []string{
		"internal data stream error",
		"internal data flow error",
		"timeout",
		"failed to allocate",
		"buffer pool",
		"dequeue",
	}
)

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
