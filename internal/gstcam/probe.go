package gstcam

import (
	"fmt"
	"sort"

	"github.com/tinyzimmer/go-gst/gst"

	surfacecamera "github.com/siddh1004/Surface-Camera-Xamarin-Android"
)

// ProbeSizes opens the source in READY state and returns the fixed frame
// sizes its src pad reports, largest first. Sources that only advertise
// ranges (videotestsrc) return an empty list.
func ProbeSizes(source, device string) ([]surfacecamera.Dimension, error) {
	gst.Init(nil)

	src, err := newSource(source, device)
	if err != nil {
		return nil, err
	}
	if err := src.SetState(gst.StateReady); err != nil {
		return nil, fmt.Errorf("gstcam: open %s: %w", source, err)
	}
	defer src.SetState(gst.StateNull)

	pad := src.GetStaticPad("src")
	if pad == nil {
		return nil, fmt.Errorf("gstcam: %s has no src pad", source)
	}
	caps := pad.QueryCaps(nil)
	if caps == nil {
		return nil, nil
	}

	var sizes []surfacecamera.Dimension
	for i := 0; i < caps.GetSize(); i++ {
		st := caps.GetStructureAt(i)
		if st == nil {
			continue
		}
		w, errW := st.GetValue("width")
		h, errH := st.GetValue("height")
		if errW != nil || errH != nil {
			continue
		}
		width, okW := w.(int)
		height, okH := h.(int)
		if !okW || !okH {
			// int ranges and lists
			continue
		}
		sizes = append(sizes, surfacecamera.Dimension{Width: width, Height: height})
	}
	return sortSizes(sizes), nil
}

// sortSizes removes duplicates and orders sizes by area, largest first
func sortSizes(sizes []surfacecamera.Dimension) []surfacecamera.Dimension {
	seen := make(map[surfacecamera.Dimension]bool, len(sizes))
	out := sizes[:0]
	for _, s := range sizes {
		if s.Width <= 0 || s.Height <= 0 || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Pixels() > out[j].Pixels()
	})
	return out
}
