// Package transform maps points between the unit square and image
// quadrilaterals with a planar perspective transform, and samples cell grids
// through it.
package transform

import (
	"github.com/golang/geo/r2"

	arucogo "github.com/ericlevine/arucogo"
)

// Perspective is a 3x3 planar homography. Field aij multiplies input
// coordinate i into output coordinate j.
type Perspective struct {
	a11, a12, a13 float64
	a21, a22, a23 float64
	a31, a32, a33 float64
}

// Identity returns the transform that leaves every point unchanged.
func Identity() *Perspective {
	return &Perspective{a11: 1, a22: 1, a33: 1}
}

// SquareToQuad maps the unit square onto q: (0,0) to q[0], (1,0) to q[1],
// (1,1) to q[2] and (0,1) to q[3].
func SquareToQuad(q arucogo.Quad) *Perspective {
	x0, y0 := q[0].X, q[0].Y
	x1, y1 := q[1].X, q[1].Y
	x2, y2 := q[2].X, q[2].Y
	x3, y3 := q[3].X, q[3].Y

	dx3 := x0 - x1 + x2 - x3
	dy3 := y0 - y1 + y2 - y3
	if dx3 == 0 && dy3 == 0 {
		// Parallelogram.
		return &Perspective{
			a11: x1 - x0, a21: x2 - x1, a31: x0,
			a12: y1 - y0, a22: y2 - y1, a32: y0,
			a33: 1,
		}
	}
	dx1 := x1 - x2
	dx2 := x3 - x2
	dy1 := y1 - y2
	dy2 := y3 - y2
	den := dx1*dy2 - dx2*dy1
	a13 := (dx3*dy2 - dx2*dy3) / den
	a23 := (dx1*dy3 - dx3*dy1) / den
	return &Perspective{
		a11: x1 - x0 + a13*x1, a21: x3 - x0 + a23*x3, a31: x0,
		a12: y1 - y0 + a13*y1, a22: y3 - y0 + a23*y3, a32: y0,
		a13: a13, a23: a23, a33: 1,
	}
}

// QuadToSquare is the inverse of SquareToQuad, up to scale.
func QuadToSquare(q arucogo.Quad) *Perspective {
	return SquareToQuad(q).Adjoint()
}

// QuadToQuad maps from onto to corner by corner.
func QuadToQuad(from, to arucogo.Quad) *Perspective {
	return SquareToQuad(to).Times(QuadToSquare(from))
}

// Apply maps a single point.
func (p *Perspective) Apply(pt r2.Point) r2.Point {
	den := p.a13*pt.X + p.a23*pt.Y + p.a33
	return r2.Point{
		X: (p.a11*pt.X + p.a21*pt.Y + p.a31) / den,
		Y: (p.a12*pt.X + p.a22*pt.Y + p.a32) / den,
	}
}

// ApplyAll maps pts in place.
func (p *Perspective) ApplyAll(pts []r2.Point) {
	for i, pt := range pts {
		pts[i] = p.Apply(pt)
	}
}

// Adjoint returns the transpose of the cofactor matrix, which inverts the
// transform up to a scale factor that cancels in Apply.
func (p *Perspective) Adjoint() *Perspective {
	return &Perspective{
		a11: p.a22*p.a33 - p.a23*p.a32,
		a21: p.a23*p.a31 - p.a21*p.a33,
		a31: p.a21*p.a32 - p.a22*p.a31,
		a12: p.a13*p.a32 - p.a12*p.a33,
		a22: p.a11*p.a33 - p.a13*p.a31,
		a32: p.a12*p.a31 - p.a11*p.a32,
		a13: p.a12*p.a23 - p.a13*p.a22,
		a23: p.a13*p.a21 - p.a11*p.a23,
		a33: p.a11*p.a22 - p.a12*p.a21,
	}
}

// Times composes two transforms: the result applies other first, then p.
func (p *Perspective) Times(other *Perspective) *Perspective {
	return &Perspective{
		a11: p.a11*other.a11 + p.a21*other.a12 + p.a31*other.a13,
		a21: p.a11*other.a21 + p.a21*other.a22 + p.a31*other.a23,
		a31: p.a11*other.a31 + p.a21*other.a32 + p.a31*other.a33,
		a12: p.a12*other.a11 + p.a22*other.a12 + p.a32*other.a13,
		a22: p.a12*other.a21 + p.a22*other.a22 + p.a32*other.a23,
		a32: p.a12*other.a31 + p.a22*other.a32 + p.a32*other.a33,
		a13: p.a13*other.a11 + p.a23*other.a12 + p.a33*other.a13,
		a23: p.a13*other.a21 + p.a23*other.a22 + p.a33*other.a23,
		a33: p.a13*other.a31 + p.a23*other.a32 + p.a33*other.a33,
	}
}
