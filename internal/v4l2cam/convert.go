package v4l2cam

import (
	"fmt"
	"image"
)

// V4L2 fourcc codes used by this package
const (
	PixFmtYUYV  uint32 = 0x56595559 // 'YUYV'
	PixFmtMJPEG uint32 = 0x47504A4D // 'MJPG'
	PixFmtJPEG  uint32 = 0x4745504A // 'JPEG'
	PixFmtNV21  uint32 = 0x3132564E // 'NV21'
)

// FourCC renders a V4L2 pixel format code as its four characters
func FourCC(code uint32) string {
	b := []byte{byte(code), byte(code >> 8), byte(code >> 16), byte(code >> 24)}
	return string(b)
}

// NV21Size returns the byte length of a w x h NV21 frame
func NV21Size(w, h int) int {
	return w*h + 2*((w+1)/2)*((h+1)/2)
}

// YUYVToNV21 converts a packed YUYV 4:2:2 frame into NV21 (Y plane followed
// by interleaved V/U at half vertical and horizontal resolution). Chroma of
// each row pair is averaged. Returns the number of bytes written to dst.
func YUYVToNV21(dst, src []byte, w, h int) (int, error) {
	if w <= 0 || h <= 0 || w%2 != 0 || h%2 != 0 {
		return 0, fmt.Errorf("v4l2cam: NV21 needs even dimensions, got %dx%d", w, h)
	}
	if len(src) < w*h*2 {
		return 0, fmt.Errorf("v4l2cam: short YUYV frame: %d bytes, want %d", len(src), w*h*2)
	}
	n := NV21Size(w, h)
	if len(dst) < n {
		return 0, fmt.Errorf("v4l2cam: NV21 buffer too small: %d bytes, want %d", len(dst), n)
	}

	stride := w * 2
	for y := 0; y < h; y++ {
		row := src[y*stride : (y+1)*stride]
		out := dst[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			out[x] = row[x*2]
		}
	}

	vu := dst[w*h:n]
	for y := 0; y < h; y += 2 {
		top := src[y*stride : (y+1)*stride]
		bottom := src[(y+1)*stride : (y+2)*stride]
		out := vu[(y/2)*w : (y/2+1)*w]
		for x := 0; x < w; x += 2 {
			// YUYV macropixel: Y0 U Y1 V
			u := (int(top[x*2+1]) + int(bottom[x*2+1]) + 1) / 2
			v := (int(top[x*2+3]) + int(bottom[x*2+3]) + 1) / 2
			out[x] = byte(v)
			out[x+1] = byte(u)
		}
	}
	return n, nil
}

// YCbCrToNV21 converts a decoded image into NV21. Any chroma subsampling
// is accepted; chroma is sampled at the top-left pixel of each 2x2 block.
func YCbCrToNV21(dst []byte, img *image.YCbCr) (int, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 || w%2 != 0 || h%2 != 0 {
		return 0, fmt.Errorf("v4l2cam: NV21 needs even dimensions, got %dx%d", w, h)
	}
	n := NV21Size(w, h)
	if len(dst) < n {
		return 0, fmt.Errorf("v4l2cam: NV21 buffer too small: %d bytes, want %d", len(dst), n)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst[y*w+x] = img.Y[img.YOffset(b.Min.X+x, b.Min.Y+y)]
		}
	}

	vu := dst[w*h : n]
	for y := 0; y < h; y += 2 {
		out := vu[(y/2)*w : (y/2+1)*w]
		for x := 0; x < w; x += 2 {
			off := img.COffset(b.Min.X+x, b.Min.Y+y)
			out[x] = img.Cr[off]
			out[x+1] = img.Cb[off]
		}
	}
	return n, nil
}

// YUYVToImage wraps a YUYV frame as a 4:2:2 image.YCbCr for encoding
func YUYVToImage(src []byte, w, h int) (*image.YCbCr, error) {
	if w <= 0 || h <= 0 || w%2 != 0 {
		return nil, fmt.Errorf("v4l2cam: invalid YUYV size %dx%d", w, h)
	}
	if len(src) < w*h*2 {
		return nil, fmt.Errorf("v4l2cam: short YUYV frame: %d bytes, want %d", len(src), w*h*2)
	}

	img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio422)
	for y := 0; y < h; y++ {
		row := src[y*w*2 : (y+1)*w*2]
		for x := 0; x < w; x += 2 {
			img.Y[y*img.YStride+x] = row[x*2]
			img.Y[y*img.YStride+x+1] = row[x*2+2]
			c := y*img.CStride + x/2
			img.Cb[c] = row[x*2+1]
			img.Cr[c] = row[x*2+3]
		}
	}
	return img, nil
}
