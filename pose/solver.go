package pose

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	arucogo "github.com/ericlevine/arucogo"
)

// Solution is the rigid transform taking object coordinates into the camera
// optical frame: RVec is an axis-angle rotation and TVec a translation.
type Solution struct {
	RVec r3.Vector
	TVec r3.Vector
}

// Rotation returns the rotation matrix of the solution.
func (s Solution) Rotation() Rotation {
	return FromRotationVector(s.RVec)
}

// Transform maps an object point into the camera frame.
func (s Solution) Transform(p r3.Vector) r3.Vector {
	return s.Rotation().Apply(p).Add(s.TVec)
}

// Solver recovers a camera-relative pose from 2D-3D correspondences, in the
// manner of a perspective-n-point solver.
type Solver interface {
	Solve(object []r3.Vector, image []r2.Point, cam Intrinsics) (Solution, error)
}

// HomographySolver solves planar targets: it estimates the plane-to-image
// homography from the undistorted normalized image points, decomposes it into
// rotation and translation and polishes the result with Gauss-Newton steps on
// the reprojection error.
type HomographySolver struct {
	// Iterations of reprojection refinement; zero disables it.
	Iterations int
}

// NewHomographySolver returns a solver with refinement enabled.
func NewHomographySolver() *HomographySolver {
	return &HomographySolver{Iterations: 10}
}

// Solve implements Solver. All object points must have z = 0.
func (h *HomographySolver) Solve(object []r3.Vector, image []r2.Point, cam Intrinsics) (Solution, error) {
	if len(object) != len(image) {
		return Solution{}, errors.Wrapf(arucogo.ErrPoseSolve, "%d object points but %d image points", len(object), len(image))
	}
	if len(object) < 4 {
		return Solution{}, errors.Wrapf(arucogo.ErrPoseSolve, "%d correspondences, need at least 4", len(object))
	}
	if err := cam.Validate(); err != nil {
		return Solution{}, errors.Wrap(arucogo.ErrPoseSolve, err.Error())
	}
	scale := 0.0
	for _, p := range object {
		scale = math.Max(scale, math.Max(math.Abs(p.X), math.Abs(p.Y)))
	}
	plane := make([]r2.Point, len(object))
	for i, p := range object {
		if math.Abs(p.Z) > 1e-9*math.Max(scale, 1) {
			return Solution{}, errors.Wrap(arucogo.ErrPoseSolve, "object points are not planar")
		}
		plane[i] = r2.Point{X: p.X, Y: p.Y}
	}
	normalized := make([]r2.Point, len(image))
	for i, p := range image {
		normalized[i] = cam.Normalize(p)
	}
	if collinear(plane) {
		return Solution{}, errors.Wrap(arucogo.ErrPoseSolve, "object points are collinear")
	}
	if collinear(image) {
		return Solution{}, errors.Wrap(arucogo.ErrPoseSolve, "image points are collinear")
	}

	hom, err := homography(plane, normalized)
	if err != nil {
		return Solution{}, err
	}
	sol, err := decompose(hom)
	if err != nil {
		return Solution{}, err
	}
	for i := 0; i < h.Iterations; i++ {
		next, ok := gaussNewtonStep(sol, object, normalized)
		if !ok {
			break
		}
		sol = next
	}
	if sol.TVec.Z <= 0 {
		return Solution{}, errors.Wrap(arucogo.ErrPoseSolve, "target behind the camera")
	}
	return sol, nil
}

// collinear reports whether every triangle of points has negligible area
// relative to the spread of the points.
func collinear(pts []r2.Point) bool {
	spread := 0.0
	for _, p := range pts {
		for _, q := range pts {
			spread = math.Max(spread, q.Sub(p).Norm())
		}
	}
	if spread == 0 {
		return true
	}
	for i := range pts {
		for j := i + 1; j < len(pts); j++ {
			for k := j + 1; k < len(pts); k++ {
				area := math.Abs(pts[j].Sub(pts[i]).Cross(pts[k].Sub(pts[i])))
				if area > 1e-6*spread*spread {
					return false
				}
			}
		}
	}
	return true
}

// similarity returns the transform centring pts on the origin with mean
// distance sqrt(2), as a 3x3 matrix.
func similarity(pts []r2.Point) *mat.Dense {
	var mean r2.Point
	for _, p := range pts {
		mean = mean.Add(p)
	}
	mean = mean.Mul(1 / float64(len(pts)))
	dist := 0.0
	for _, p := range pts {
		dist += p.Sub(mean).Norm()
	}
	dist /= float64(len(pts))
	s := math.Sqrt2 / dist
	return mat.NewDense(3, 3, []float64{
		s, 0, -s * mean.X,
		0, s, -s * mean.Y,
		0, 0, 1,
	})
}

func applyH(m mat.Matrix, p r2.Point) r2.Point {
	x := m.At(0, 0)*p.X + m.At(0, 1)*p.Y + m.At(0, 2)
	y := m.At(1, 0)*p.X + m.At(1, 1)*p.Y + m.At(1, 2)
	w := m.At(2, 0)*p.X + m.At(2, 1)*p.Y + m.At(2, 2)
	return r2.Point{X: x / w, Y: y / w}
}

// homography estimates H with dst ~ H src by the normalized direct linear
// transform.
func homography(src, dst []r2.Point) (*mat.Dense, error) {
	ts, td := similarity(src), similarity(dst)
	n := len(src)
	a := mat.NewDense(2*n, 9, nil)
	for i := range src {
		s := applyH(ts, src[i])
		d := applyH(td, dst[i])
		a.SetRow(2*i, []float64{s.X, s.Y, 1, 0, 0, 0, -d.X * s.X, -d.X * s.Y, -d.X})
		a.SetRow(2*i+1, []float64{0, 0, 0, s.X, s.Y, 1, -d.Y * s.X, -d.Y * s.Y, -d.Y})
	}
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return nil, errors.Wrap(arucogo.ErrPoseSolve, "homography factorization failed")
	}
	var v mat.Dense
	svd.VTo(&v)
	hn := mat.NewDense(3, 3, mat.Col(nil, 8, &v))

	// H = td^-1 * hn * ts
	var tdInv mat.Dense
	if err := tdInv.Inverse(td); err != nil {
		return nil, errors.Wrap(arucogo.ErrPoseSolve, err.Error())
	}
	var hom mat.Dense
	hom.Product(&tdInv, hn, ts)
	return &hom, nil
}

// decompose splits a homography from the z = 0 plane to normalized image
// coordinates into rotation and translation, choosing the sign that puts the
// plane in front of the camera.
func decompose(hom *mat.Dense) (Solution, error) {
	h1 := r3.Vector{X: hom.At(0, 0), Y: hom.At(1, 0), Z: hom.At(2, 0)}
	h2 := r3.Vector{X: hom.At(0, 1), Y: hom.At(1, 1), Z: hom.At(2, 1)}
	h3 := r3.Vector{X: hom.At(0, 2), Y: hom.At(1, 2), Z: hom.At(2, 2)}
	norm := (h1.Norm() + h2.Norm()) / 2
	if norm < 1e-12 {
		return Solution{}, errors.Wrap(arucogo.ErrPoseSolve, "degenerate homography")
	}
	lambda := 1 / norm
	if h3.Z < 0 {
		lambda = -lambda
	}
	c1 := h1.Mul(lambda)
	c2 := h2.Mul(lambda)
	c3 := c1.Cross(c2)
	t := h3.Mul(lambda)

	m := mat.NewDense(3, 3, []float64{
		c1.X, c2.X, c3.X,
		c1.Y, c2.Y, c3.Y,
		c1.Z, c2.Z, c3.Z,
	})
	rot, ok := nearestRotation(m)
	if !ok {
		return Solution{}, errors.Wrap(arucogo.ErrPoseSolve, "rotation factorization failed")
	}
	return Solution{RVec: rot.RotationVector(), TVec: t}, nil
}

// residuals returns the normalized reprojection errors of sol, x then y for
// each point.
func residuals(sol Solution, object []r3.Vector, image []r2.Point) []float64 {
	rot := sol.Rotation()
	out := make([]float64, 0, 2*len(object))
	for i, p := range object {
		c := rot.Apply(p).Add(sol.TVec)
		out = append(out, c.X/c.Z-image[i].X, c.Y/c.Z-image[i].Y)
	}
	return out
}

func sumSquares(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x * x
	}
	return s
}

// gaussNewtonStep takes one step on the six pose parameters with a forward
// difference Jacobian. It reports false when the step does not reduce the
// error.
func gaussNewtonStep(sol Solution, object []r3.Vector, image []r2.Point) (Solution, bool) {
	params := func(s Solution) []float64 {
		return []float64{s.RVec.X, s.RVec.Y, s.RVec.Z, s.TVec.X, s.TVec.Y, s.TVec.Z}
	}
	fromParams := func(p []float64) Solution {
		return Solution{RVec: r3.Vector{X: p[0], Y: p[1], Z: p[2]}, TVec: r3.Vector{X: p[3], Y: p[4], Z: p[5]}}
	}
	base := residuals(sol, object, image)
	cost := sumSquares(base)
	if cost < 1e-24 {
		return sol, false
	}
	p := params(sol)
	jac := mat.NewDense(len(base), 6, nil)
	for j := 0; j < 6; j++ {
		const eps = 1e-7
		q := append([]float64(nil), p...)
		q[j] += eps
		shifted := residuals(fromParams(q), object, image)
		for i := range base {
			jac.Set(i, j, (shifted[i]-base[i])/eps)
		}
	}
	var step mat.VecDense
	if err := step.SolveVec(jac, mat.NewVecDense(len(base), base)); err != nil {
		return sol, false
	}
	for j := range p {
		p[j] -= step.AtVec(j)
	}
	next := fromParams(p)
	if next.TVec.Z <= 0 || sumSquares(residuals(next, object, image)) >= cost {
		return sol, false
	}
	return next, true
}
