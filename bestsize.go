package surfacecamera

import (
	"fmt"
	"log/slog"
)

// SelectionCriteria is the aspect ratio and width bound used to pick a size
type SelectionCriteria struct {
	RatioW   int
	RatioH   int
	MaxWidth int
}

// Select is SelectBestSize(candidates, c.RatioW, c.RatioH, c.MaxWidth)
func (c SelectionCriteria) Select(candidates []Dimension) (Dimension, error) {
	return SelectBestSize(candidates, c.RatioW, c.RatioH, c.MaxWidth)
}

// SelectBestSize picks the widest candidate whose aspect ratio is exactly
// ratioW:ratioH and whose width does not exceed maxWidth.
//
// The ratio test uses integer division: w/ratioW == h/ratioH. Ties on width
// keep the first candidate in iteration order.
//
// If no candidate satisfies both constraints the first candidate is
// returned, so any non-empty list yields a size once the ratio is valid.
//
// Preconditions: candidates is non-empty and ratioW, ratioH are positive.
// Violating either returns ErrInvalidInput instead of a size.
func SelectBestSize(candidates []Dimension, ratioW, ratioH, maxWidth int) (Dimension, error) {
	if len(candidates) == 0 {
		return Dimension{}, fmt.Errorf("%w: no candidate sizes", ErrInvalidInput)
	}
	if ratioW <= 0 || ratioH <= 0 {
		return Dimension{}, fmt.Errorf("%w: aspect ratio %d:%d", ErrInvalidInput, ratioW, ratioH)
	}

	best := -1
	for i, c := range candidates {
		if c.Width/ratioW != c.Height/ratioH || c.Width > maxWidth {
			continue
		}
		if best < 0 || c.Width > candidates[best].Width {
			best = i
		}
	}

	if best < 0 {
		slog.Warn("surface-camera: no size matches, using the first candidate",
			"ratio", fmt.Sprintf("%d:%d", ratioW, ratioH),
			"max_width", maxWidth,
			"fallback", candidates[0].String(),
		)
		return candidates[0], nil
	}
	return candidates[best], nil
}
