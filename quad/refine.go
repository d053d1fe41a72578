package quad

import (
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"

	arucogo "github.com/ericlevine/arucogo"
)

const (
	edgeSamples  = 12
	minEdgeRise  = 16.0
	searchStep   = 0.5
	minEdgePoint = 4
)

// line is a point on the line and a unit direction.
type line struct {
	origin, dir r2.Point
}

// refine fits a line to each edge of q and replaces the corners with the
// intersections of adjacent lines. The original quad is returned when any edge
// cannot be fitted or a corner would move further than the search window.
func refine(src arucogo.LuminanceSource, q arucogo.Quad, subpixel bool) arucogo.Quad {
	var edges [4]line
	for i := range q {
		l, ok := fitEdge(src, q[i], q[(i+1)%4], subpixel)
		if !ok {
			return q
		}
		edges[i] = l
	}
	var out arucogo.Quad
	for i := range out {
		p, ok := intersect(edges[(i+3)%4], edges[i])
		if !ok || p.Sub(q[i]).Norm() > 2*searchRadius(q[i], q[(i+1)%4]) {
			return q
		}
		out[i] = p
	}
	return out
}

func searchRadius(a, b r2.Point) float64 {
	return math.Max(1.5, math.Min(4, 0.08*b.Sub(a).Norm()))
}

// fitEdge locates the dark-to-light transition along the outward normal of
// the edge a->b at several points and fits a line through them.
func fitEdge(src arucogo.LuminanceSource, a, b r2.Point, subpixel bool) (line, bool) {
	along := b.Sub(a)
	length := along.Norm()
	if length == 0 {
		return line{}, false
	}
	dir := along.Mul(1 / length)
	// Clockwise corners in image coordinates put the outside on this side.
	normal := r2.Point{X: dir.Y, Y: -dir.X}
	radius := searchRadius(a, b)

	points := make([]r2.Point, 0, edgeSamples)
	for i := 0; i < edgeSamples; i++ {
		t := 0.2 + 0.6*float64(i)/float64(edgeSamples-1)
		base := a.Add(along.Mul(t))
		if s, ok := edgeOffset(src, base, normal, radius, subpixel); ok {
			points = append(points, base.Add(normal.Mul(s)))
		}
	}
	if len(points) < minEdgePoint {
		return line{}, false
	}
	return fitLine(points)
}

// edgeOffset returns the offset along normal where the intensity rises
// fastest.
func edgeOffset(src arucogo.LuminanceSource, base, normal r2.Point, radius float64, subpixel bool) (float64, bool) {
	sample := func(s float64) (float64, bool) {
		p := base.Add(normal.Mul(s))
		return arucogo.Bilinear(src, p.X, p.Y)
	}
	rise := func(s float64) (float64, bool) {
		lo, ok1 := sample(s - searchStep)
		hi, ok2 := sample(s + searchStep)
		return hi - lo, ok1 && ok2
	}

	best, bestRise := 0.0, math.Inf(-1)
	for s := -radius; s <= radius; s += searchStep {
		r, ok := rise(s)
		if !ok {
			return 0, false
		}
		if r > bestRise {
			best, bestRise = s, r
		}
	}
	if bestRise < minEdgeRise {
		return 0, false
	}
	if !subpixel {
		return best, true
	}
	before, ok1 := rise(best - searchStep)
	after, ok2 := rise(best + searchStep)
	if !ok1 || !ok2 {
		return best, true
	}
	// Vertex of the parabola through the three rises.
	den := before - 2*bestRise + after
	if den >= 0 {
		return best, true
	}
	return best + 0.5*searchStep*(before-after)/den, true
}

// fitLine fits a line minimizing the perpendicular distances to points: it
// passes through their mean along the principal axis of their covariance.
func fitLine(points []r2.Point) (line, bool) {
	var mean r2.Point
	for _, p := range points {
		mean = mean.Add(p)
	}
	mean = mean.Mul(1 / float64(len(points)))
	var sxx, sxy, syy float64
	for _, p := range points {
		d := p.Sub(mean)
		sxx += d.X * d.X
		sxy += d.X * d.Y
		syy += d.Y * d.Y
	}
	var eig mat.EigenSym
	if !eig.Factorize(mat.NewSymDense(2, []float64{sxx, sxy, sxy, syy}), true) {
		return line{}, false
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	// Eigenvalues come in ascending order.
	dir := r2.Point{X: vecs.At(0, 1), Y: vecs.At(1, 1)}
	if dir.Norm() == 0 {
		return line{}, false
	}
	return line{origin: mean, dir: dir.Normalize()}, true
}

func intersect(l1, l2 line) (r2.Point, bool) {
	cross := l1.dir.Cross(l2.dir)
	if math.Abs(cross) < 1e-9 {
		return r2.Point{}, false
	}
	t := l2.origin.Sub(l1.origin).Cross(l2.dir) / cross
	return l1.origin.Add(l1.dir.Mul(t)), true
}
