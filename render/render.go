// Package render draws markers as greyscale images.
package render

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	arucogo "github.com/ericlevine/arucogo"
	"github.com/ericlevine/arucogo/bitutil"
	"github.com/ericlevine/arucogo/dictionary"
)

// MarkerMatrix lays out the full (n+2) x (n+2) cell grid of a codeword,
// with set bits for black cells: the outer ring and every 0 bit.
func MarkerMatrix(code dictionary.Codeword) *bitutil.BitMatrix {
	n := code.Size()
	m := bitutil.NewBitMatrix(n + 2)
	m.SetRegion(0, 0, n+2, n+2)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			if code.Get(x, y) {
				m.Unset(x+1, y+1)
			}
		}
	}
	return m
}

// Matrix scales a bit matrix to a width x height image, black where bits are
// set and white elsewhere.
func Matrix(matrix *bitutil.BitMatrix, width, height int) (*image.Gray, error) {
	if width < matrix.Width() || height < matrix.Height() {
		return nil, errors.Wrapf(arucogo.ErrInvalidParameter,
			"%dx%d pixels cannot hold %dx%d cells", width, height, matrix.Width(), matrix.Height())
	}
	img := image.NewGray(image.Rect(0, 0, width, height))
	Draw(img, img.Bounds(), matrix)
	return img, nil
}

// Draw paints matrix scaled into the rectangle r of dst, black where bits are
// set and white elsewhere. Pixels of r outside dst are skipped.
func Draw(dst *image.Gray, r image.Rectangle, matrix *bitutil.BitMatrix) {
	w, h := r.Dx(), r.Dy()
	clip := r.Intersect(dst.Bounds())
	for y := clip.Min.Y; y < clip.Max.Y; y++ {
		cy := (y - r.Min.Y) * matrix.Height() / h
		for x := clip.Min.X; x < clip.Max.X; x++ {
			if matrix.Get((x-r.Min.X)*matrix.Width()/w, cy) {
				dst.SetGray(x, y, color.Gray{Y: 0})
			} else {
				dst.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
}

// Marker draws a codeword as a side x side image, black border included.
func Marker(code dictionary.Codeword, side int) (*image.Gray, error) {
	return Matrix(MarkerMatrix(code), side, side)
}

// WithQuietZone pads img with a white margin of the given width on every side.
func WithQuietZone(img image.Image, margin int) *image.NRGBA {
	b := img.Bounds()
	canvas := imaging.New(b.Dx()+2*margin, b.Dy()+2*margin, color.White)
	return imaging.Paste(canvas, img, image.Pt(margin, margin))
}
