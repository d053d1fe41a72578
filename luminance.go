package arucogo

import "math"

// LuminanceSource provides access to greyscale luminance values for an image.
type LuminanceSource interface {
	// Row returns a row of luminance data. If row is non-nil and large enough,
	// it should be reused.
	Row(y int, row []byte) []byte

	// Luminance returns the value of the pixel at (x, y). Callers keep x and y
	// within the image.
	Luminance(x, y int) byte

	// Width returns the width of the image.
	Width() int

	// Height returns the height of the image.
	Height() int
}

// Bilinear samples src at a sub-pixel position, where integer coordinates
// address pixel centres offset by one half (the pixel (0, 0) covers [0,1)x[0,1)).
// It reports false when the position falls outside the image.
func Bilinear(src LuminanceSource, x, y float64) (float64, bool) {
	w, h := src.Width(), src.Height()
	if x < 0 || y < 0 || x > float64(w) || y > float64(h) {
		return 0, false
	}
	fx := x - 0.5
	fy := y - 0.5
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	dx := fx - float64(x0)
	dy := fy - float64(y0)

	at := func(px, py int) float64 {
		if px < 0 {
			px = 0
		} else if px >= w {
			px = w - 1
		}
		if py < 0 {
			py = 0
		} else if py >= h {
			py = h - 1
		}
		return float64(src.Luminance(px, py))
	}

	top := at(x0, y0)*(1-dx) + at(x0+1, y0)*dx
	bottom := at(x0, y0+1)*(1-dx) + at(x0+1, y0+1)*dx
	return top*(1-dy) + bottom*dy, true
}

// InvertedLuminanceSource wraps a LuminanceSource and inverts every value, so
// light-on-dark markers read like ordinary ones.
type InvertedLuminanceSource struct {
	delegate LuminanceSource
}

// NewInvertedLuminanceSource returns an inverted view of src.
func NewInvertedLuminanceSource(src LuminanceSource) *InvertedLuminanceSource {
	return &InvertedLuminanceSource{delegate: src}
}

// Row returns the inverted row y.
func (s *InvertedLuminanceSource) Row(y int, row []byte) []byte {
	row = s.delegate.Row(y, row)
	if row == nil {
		return nil
	}
	for i := range row[:s.delegate.Width()] {
		row[i] = 255 - row[i]
	}
	return row
}

// Luminance returns the inverted value at (x, y).
func (s *InvertedLuminanceSource) Luminance(x, y int) byte {
	return 255 - s.delegate.Luminance(x, y)
}

// Width returns the width of the image.
func (s *InvertedLuminanceSource) Width() int { return s.delegate.Width() }

// Height returns the height of the image.
func (s *InvertedLuminanceSource) Height() int { return s.delegate.Height() }
