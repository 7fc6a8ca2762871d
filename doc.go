// Package surfacecamera drives a camera preview onto a display surface and
// captures still pictures.
//
// The core is SelectBestSize, which picks the widest supported size that
// matches a target aspect ratio under a width cap. Preview wires it into the
// lifecycle of a display surface: size selection on setup, display
// orientation on every surface change, and picture capture with upright
// rotation.
//
// # Quick Start
//
// op is any Opener and sink any PictureSink supplied by the caller.
//
//	dev, _, err := surfacecamera.Acquire(op, -1)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer surfacecamera.Release(dev)
//
//	preview, err := surfacecamera.NewPreview(dev,
//	    surfacecamera.FixedDisplay(surfacecamera.Rotation0),
//	    surfacecamera.DefaultPreviewConfig(),
//	    surfacecamera.WithPictureSink(sink),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx := context.Background()
//	surface := surfacecamera.HeadlessSurface{}
//	preview.SurfaceCreated(ctx, surface)
//	preview.SurfaceChanged(ctx, surface, 640, 480) // applies display orientation
//	defer preview.SurfaceDestroyed()
//
//	pic, err := preview.Capture(ctx)
//
// # Size Selection
//
// A candidate matches when width/ratioW == height/ratioH using integer
// division, so near-ratio sizes can match (101x75 matches 4:3). Ties keep
// the first candidate. When nothing matches the first candidate is returned
// and a warning is logged.
//
// # Backends
//
// Devices are injected through the Device and Opener interfaces. Within this
// module the internal gstcam (GStreamer) and v4l2cam (Video4Linux2) packages
// provide implementations for the surface-camera command; tests use
// in-memory fakes.
package surfacecamera
