package arucogo

import (
	"image"

	"github.com/pkg/errors"
)

// ImageLuminanceSource is a LuminanceSource backed by a packed 8-bit buffer.
type ImageLuminanceSource struct {
	luminances []byte
	width      int
	height     int
}

// NewLuminanceSource wraps a row-major mono8 buffer, as delivered by cameras
// publishing mono8 frames. The buffer is not copied.
func NewLuminanceSource(width, height int, pix []byte) (*ImageLuminanceSource, error) {
	if width < 1 || height < 1 {
		return nil, errors.Wrapf(ErrInvalidParameter, "image dimensions %dx%d", width, height)
	}
	if len(pix) < width*height {
		return nil, errors.Wrapf(ErrInvalidParameter, "buffer holds %d bytes, want %d", len(pix), width*height)
	}
	return &ImageLuminanceSource{luminances: pix[:width*height], width: width, height: height}, nil
}

// NewImageLuminanceSource creates a LuminanceSource from a Go image.Image.
// The image is converted to greyscale luminance values upon construction using
// (306*R + 601*G + 117*B + 0x200) >> 10 on 8-bit components. Fully transparent
// pixels are treated as white.
func NewImageLuminanceSource(img image.Image) *ImageLuminanceSource {
	if gray, ok := img.(*image.Gray); ok {
		return newGraySource(gray)
	}
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	luminances := make([]byte, w*h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			if a == 0 {
				luminances[y*w+x] = 0xFF
				continue
			}
			r8 := r >> 8
			g8 := g >> 8
			b8 := b >> 8
			luminances[y*w+x] = byte((306*r8 + 601*g8 + 117*b8 + 0x200) >> 10)
		}
	}

	return &ImageLuminanceSource{
		luminances: luminances,
		width:      w,
		height:     h,
	}
}

func newGraySource(img *image.Gray) *ImageLuminanceSource {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	luminances := make([]byte, w*h)
	for y := 0; y < h; y++ {
		srcOff := img.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		copy(luminances[y*w:], img.Pix[srcOff:srcOff+w])
	}
	return &ImageLuminanceSource{
		luminances: luminances,
		width:      w,
		height:     h,
	}
}

// Row returns a row of luminance data.
func (s *ImageLuminanceSource) Row(y int, row []byte) []byte {
	if y < 0 || y >= s.height {
		return nil
	}
	if row == nil || len(row) < s.width {
		row = make([]byte, s.width)
	}
	offset := y * s.width
	copy(row, s.luminances[offset:offset+s.width])
	return row
}

// Luminance returns the value at (x, y).
func (s *ImageLuminanceSource) Luminance(x, y int) byte {
	return s.luminances[y*s.width+x]
}

// Width returns the width of the image.
func (s *ImageLuminanceSource) Width() int {
	return s.width
}

// Height returns the height of the image.
func (s *ImageLuminanceSource) Height() int {
	return s.height
}

// Image returns a copy of the source as an *image.Gray.
func (s *ImageLuminanceSource) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, s.width, s.height))
	copy(img.Pix, s.luminances)
	return img
}
