// Package pose estimates the 6-DoF pose of decoded markers from their image
// corners and the camera calibration.
package pose

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	arucogo "github.com/ericlevine/arucogo"
)

// Distortion holds lens distortion coefficients in OpenCV order. Plumb-bob
// sets K1 to K3 and the tangential P1, P2. The rational polynomial model adds
// the denominator terms K4 to K6 and optionally the thin prism terms S1 to S4.
type Distortion struct {
	K1 float64
	K2 float64
	P1 float64
	P2 float64
	K3 float64
	K4 float64
	K5 float64
	K6 float64
	S1 float64
	S2 float64
	S3 float64
	S4 float64
}

// IsZero reports whether the lens is modelled as distortion free.
func (d Distortion) IsZero() bool {
	return d == Distortion{}
}

// Apply maps undistorted normalized coordinates to distorted ones.
func (d Distortion) Apply(p r2.Point) r2.Point {
	out, _ := d.distort(p.X, p.Y)
	return out
}

// distort returns the distorted point and the row-major Jacobian of the
// mapping at (x, y).
func (d Distortion) distort(x, y float64) (r2.Point, [4]float64) {
	rr := x*x + y*y
	r4 := rr * rr
	num := 1 + d.K1*rr + d.K2*r4 + d.K3*r4*rr
	den := 1 + d.K4*rr + d.K5*r4 + d.K6*r4*rr
	radial := num / den
	prismX := d.S1*rr + d.S2*r4
	prismY := d.S3*rr + d.S4*r4
	out := r2Point(
		x*radial+2*d.P1*x*y+d.P2*(rr+2*x*x)+prismX,
		y*radial+2*d.P2*x*y+d.P1*(rr+2*y*y)+prismY,
	)

	// Derivatives with respect to rr, doubled for the chain rule through
	// d(rr)/dx = 2x.
	dNum := d.K1 + 2*d.K2*rr + 3*d.K3*r4
	dDen := d.K4 + 2*d.K5*rr + 3*d.K6*r4
	dRadial := 2 * (dNum*den - num*dDen) / (den * den)
	dPrismX := 2 * (d.S1 + 2*d.S2*rr)
	dPrismY := 2 * (d.S3 + 2*d.S4*rr)
	return out, [4]float64{
		radial + x*x*dRadial + 2*d.P1*y + 6*d.P2*x + x*dPrismX,
		x*y*dRadial + 2*d.P1*x + 2*d.P2*y + y*dPrismX,
		x*y*dRadial + 2*d.P2*y + 2*d.P1*x + x*dPrismY,
		radial + y*y*dRadial + 2*d.P2*x + 6*d.P1*y + y*dPrismY,
	}
}

// Remove inverts Apply by Newton iteration, starting from the distorted point.
func (d Distortion) Remove(p r2.Point) r2.Point {
	if d.IsZero() {
		return p
	}
	const (
		maxIterations = 20
		tolerance     = 1e-12
	)
	xu, yu := p.X, p.Y
	for i := 0; i < maxIterations; i++ {
		got, j := d.distort(xu, yu)
		errX, errY := got.X-p.X, got.Y-p.Y
		if errX*errX+errY*errY < tolerance*tolerance {
			break
		}
		det := j[0]*j[3] - j[1]*j[2]
		if det == 0 {
			break
		}
		xu -= (j[3]*errX - j[1]*errY) / det
		yu -= (-j[2]*errX + j[0]*errY) / det
	}
	return r2Point(xu, yu)
}

func r2Point(x, y float64) r2.Point { return r2.Point{X: x, Y: y} }

// Intrinsics is a pinhole camera model with lens distortion.
type Intrinsics struct {
	Fx, Fy     float64
	Cx, Cy     float64
	Distortion Distortion
}

// Validate reports intrinsics that cannot project points.
func (in Intrinsics) Validate() error {
	if in.Fx <= 0 || in.Fy <= 0 {
		return errors.Wrapf(arucogo.ErrInvalidParameter, "focal lengths %v, %v", in.Fx, in.Fy)
	}
	return nil
}

// Normalize maps a pixel to undistorted normalized image coordinates.
func (in Intrinsics) Normalize(p r2.Point) r2.Point {
	return in.Distortion.Remove(r2Point((p.X-in.Cx)/in.Fx, (p.Y-in.Cy)/in.Fy))
}

// Project maps normalized undistorted coordinates to a pixel.
func (in Intrinsics) Project(p r2.Point) r2.Point {
	d := in.Distortion.Apply(p)
	return r2Point(in.Fx*d.X+in.Cx, in.Fy*d.Y+in.Cy)
}

// CameraInfo is the calibration message published alongside the image stream.
// K is the row-major 3x3 camera matrix and D the distortion coefficients in
// OpenCV order (k1, k2, p1, p2[, k3[, k4, k5, k6[, s1, s2, s3, s4[, tx, ty]]]]).
type CameraInfo struct {
	FrameID         string    `json:"frame_id" mapstructure:"frame_id"`
	Width           int       `json:"width" mapstructure:"width"`
	Height          int       `json:"height" mapstructure:"height"`
	DistortionModel string    `json:"distortion_model" mapstructure:"distortion_model"`
	K               []float64 `json:"k" mapstructure:"k"`
	D               []float64 `json:"d" mapstructure:"d"`
}

// Intrinsics extracts the camera model from the message.
func (c CameraInfo) Intrinsics() (Intrinsics, error) {
	if len(c.K) != 9 {
		return Intrinsics{}, errors.Wrapf(arucogo.ErrInvalidParameter, "camera matrix has %d entries, want 9", len(c.K))
	}
	switch c.DistortionModel {
	case "", "plumb_bob", "rational_polynomial":
	default:
		return Intrinsics{}, errors.Wrapf(arucogo.ErrInvalidParameter, "unsupported distortion model %q", c.DistortionModel)
	}
	switch n := len(c.D); {
	case n <= 5, n == 8, n == 12:
	case n == 14:
		if c.D[12] != 0 || c.D[13] != 0 {
			return Intrinsics{}, errors.Wrap(arucogo.ErrInvalidParameter, "tilted sensor distortion is not supported")
		}
	default:
		return Intrinsics{}, errors.Wrapf(arucogo.ErrInvalidParameter,
			"%d distortion coefficients, want at most 5, or 8, 12 or 14", n)
	}
	var d [12]float64
	copy(d[:], c.D)
	in := Intrinsics{
		Fx: c.K[0], Fy: c.K[4],
		Cx: c.K[2], Cy: c.K[5],
		Distortion: Distortion{
			K1: d[0], K2: d[1], P1: d[2], P2: d[3], K3: d[4],
			K4: d[5], K5: d[6], K6: d[7],
			S1: d[8], S2: d[9], S3: d[10], S4: d[11],
		},
	}
	return in, in.Validate()
}
