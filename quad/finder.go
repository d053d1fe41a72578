// Package quad finds dark quadrilaterals that may be markers.
package quad

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	arucogo "github.com/ericlevine/arucogo"
	"github.com/ericlevine/arucogo/binarizer"
	"github.com/ericlevine/arucogo/bitutil"
)

// Finder extracts candidate quadrilaterals from an image. Each quad is
// clockwise in image coordinates; which corner comes first is up to the
// finder.
type Finder interface {
	Find(src arucogo.LuminanceSource) ([]arucogo.Quad, error)
}

// Options configure a ContourFinder.
type Options struct {
	// MinSide is the smallest accepted side of a component's bounding box, in
	// pixels.
	MinSide int
	// Local selects the block-local Hybrid binarizer instead of one global
	// threshold.
	Local bool
	// Policy picks the global threshold when Local is false.
	Policy binarizer.Policy
	// Refinement moves corners onto the fitted marker edges.
	Refinement arucogo.CornerRefinement
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{MinSide: 12, Local: true, Policy: binarizer.Otsu}
}

// ContourFinder binarizes an image, labels the connected dark components and
// fits a quadrilateral to the outline of each one.
type ContourFinder struct {
	opts Options
}

// NewContourFinder returns a ContourFinder for opts.
func NewContourFinder(opts Options) *ContourFinder {
	if opts.MinSide < 4 {
		opts.MinSide = 4
	}
	return &ContourFinder{opts: opts}
}

func (f *ContourFinder) blackMatrix(src arucogo.LuminanceSource) (*bitutil.BitMatrix, error) {
	if f.opts.Local {
		return binarizer.NewHybrid(src).BlackMatrix()
	}
	g := binarizer.NewGlobalHistogram(src)
	g.Policy = f.opts.Policy
	return g.BlackMatrix()
}

// Find returns the candidate quads, largest first. An image without contrast
// yields no quads and no error.
func (f *ContourFinder) Find(src arucogo.LuminanceSource) ([]arucogo.Quad, error) {
	black, err := f.blackMatrix(src)
	if errors.Is(err, arucogo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var quads []arucogo.Quad
	forEachComponent(black, func(pixels []point, touchesEdge bool) {
		if touchesEdge {
			return
		}
		q, ok := fitQuad(pixels, f.opts.MinSide)
		if !ok {
			return
		}
		if f.opts.Refinement != arucogo.CornerRefineNone {
			q = refine(src, q, f.opts.Refinement != arucogo.CornerRefineContour)
		}
		quads = append(quads, q)
	})
	return dropNested(quads), nil
}

type point struct{ x, y int }

// forEachComponent flood fills every 4-connected region of set bits, calling
// fn with its pixels. black is consumed.
func forEachComponent(black *bitutil.BitMatrix, fn func(pixels []point, touchesEdge bool)) {
	w, h := black.Width(), black.Height()
	var pixels, stack []point
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !black.Get(x, y) {
				continue
			}
			pixels = pixels[:0]
			stack = append(stack[:0], point{x, y})
			black.Unset(x, y)
			touchesEdge := false
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				pixels = append(pixels, p)
				if p.x == 0 || p.y == 0 || p.x == w-1 || p.y == h-1 {
					touchesEdge = true
				}
				for _, n := range [4]point{{p.x - 1, p.y}, {p.x + 1, p.y}, {p.x, p.y - 1}, {p.x, p.y + 1}} {
					if n.x >= 0 && n.y >= 0 && n.x < w && n.y < h && black.Get(n.x, n.y) {
						black.Unset(n.x, n.y)
						stack = append(stack, n)
					}
				}
			}
			fn(pixels, touchesEdge)
		}
	}
}

// fitQuad picks four outline pixels of a component: the pixel farthest from
// the centroid, the pixel farthest from that one, and the pixels farthest on
// either side of the diagonal they span.
func fitQuad(pixels []point, minSide int) (arucogo.Quad, bool) {
	minX, minY := math.MaxInt, math.MaxInt
	maxX, maxY := -1, -1
	var sumX, sumY float64
	for _, p := range pixels {
		minX, maxX = min(minX, p.x), max(maxX, p.x)
		minY, maxY = min(minY, p.y), max(maxY, p.y)
		sumX += float64(p.x)
		sumY += float64(p.y)
	}
	if maxX-minX+1 < minSide || maxY-minY+1 < minSide {
		return arucogo.Quad{}, false
	}
	n := float64(len(pixels))
	centroid := r2.Point{X: sumX/n + 0.5, Y: sumY/n + 0.5}

	center := func(p point) r2.Point { return r2.Point{X: float64(p.x) + 0.5, Y: float64(p.y) + 0.5} }
	farthest := func(from r2.Point) r2.Point {
		best, bestDist := from, -1.0
		for _, p := range pixels {
			if v := center(p).Sub(from); v.Dot(v) > bestDist {
				best, bestDist = center(p), v.Dot(v)
			}
		}
		return best
	}
	c0 := farthest(centroid)
	c2 := farthest(c0)
	diagonal := c2.Sub(c0)
	length := diagonal.Norm()
	if length == 0 {
		return arucogo.Quad{}, false
	}

	var c1, c3 r2.Point
	left, right := 0.0, 0.0
	for _, p := range pixels {
		pc := center(p)
		d := arucogo.CrossProductZ(c0, c2, pc) / length
		if d > right {
			c1, right = pc, d
		}
		if -d > left {
			c3, left = pc, -d
		}
	}
	// A square has both off-diagonal corners half a diagonal away.
	if right < 0.3*length || left < 0.3*length {
		return arucogo.Quad{}, false
	}

	q := arucogo.Quad{c0, c1, c2, c3}
	if q.Area() < 0 {
		q[1], q[3] = q[3], q[1]
	}
	for i := range q {
		q[i] = pushOut(q[i], centroid)
	}
	if !convex(q) || !balanced(q) {
		return arucogo.Quad{}, false
	}
	return startTopLeft(q), true
}

// pushOut moves a pixel centre to the outer edge of its pixel, away from c.
func pushOut(p, c r2.Point) r2.Point {
	d := p.Sub(c)
	norm := d.Norm()
	if norm == 0 {
		return p
	}
	clamp := func(v float64) float64 { return math.Max(-1, math.Min(1, v)) }
	return r2.Point{
		X: p.X + 0.5*clamp(d.X/norm*math.Sqrt2),
		Y: p.Y + 0.5*clamp(d.Y/norm*math.Sqrt2),
	}
}

func convex(q arucogo.Quad) bool {
	for i := range q {
		if arucogo.CrossProductZ(q[i], q[(i+1)%4], q[(i+2)%4]) <= 0 {
			return false
		}
	}
	return true
}

// balanced rejects slivers whose shortest side is under a fifth of the
// longest.
func balanced(q arucogo.Quad) bool {
	shortest, longest := math.Inf(1), 0.0
	for i := range q {
		side := q[(i+1)%4].Sub(q[i]).Norm()
		shortest = math.Min(shortest, side)
		longest = math.Max(longest, side)
	}
	return shortest >= 0.2*longest
}

// startTopLeft rotates the corner order so the corner nearest the image
// origin along x+y comes first.
func startTopLeft(q arucogo.Quad) arucogo.Quad {
	first := 0
	for i := range q {
		if q[i].X+q[i].Y < q[first].X+q[first].Y {
			first = i
		}
	}
	var out arucogo.Quad
	for i := range out {
		out[i] = q[(first+i)%4]
	}
	return out
}

// dropNested sorts quads by decreasing area and drops any whose centre lies
// inside a larger one kept before it.
func dropNested(quads []arucogo.Quad) []arucogo.Quad {
	sort.SliceStable(quads, func(i, j int) bool { return quads[i].Area() > quads[j].Area() })
	kept := quads[:0]
	for _, q := range quads {
		inside := false
		for _, k := range kept {
			if contains(k, q.Center()) {
				inside = true
				break
			}
		}
		if !inside {
			kept = append(kept, q)
		}
	}
	return kept
}

func contains(q arucogo.Quad, p r2.Point) bool {
	for i := range q {
		if arucogo.CrossProductZ(q[i], q[(i+1)%4], p) < 0 {
			return false
		}
	}
	return true
}

// PureFinder treats the whole image as a single marker on a light
// background, as produced by the marker generator.
type PureFinder struct {
	Policy binarizer.Policy
}

// Find returns the bounding box of all dark pixels.
func (f PureFinder) Find(src arucogo.LuminanceSource) ([]arucogo.Quad, error) {
	g := binarizer.NewGlobalHistogram(src)
	g.Policy = f.Policy
	black, err := g.BlackMatrix()
	if errors.Is(err, arucogo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rect := black.EnclosingRectangle()
	if rect == nil {
		return nil, nil
	}
	left, top := float64(rect[0]), float64(rect[1])
	right, bottom := left+float64(rect[2]), top+float64(rect[3])
	return []arucogo.Quad{{
		{X: left, Y: top}, {X: right, Y: top}, {X: right, Y: bottom}, {X: left, Y: bottom},
	}}, nil
}
