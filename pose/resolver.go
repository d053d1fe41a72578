package pose

import (
	"strings"
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	arucogo "github.com/ericlevine/arucogo"
)

// Convention selects the axes poses are published in.
type Convention int

const (
	// Optical frames have x right, y down and z forward.
	Optical Convention = iota
	// Body frames have x forward, y left and z up.
	Body
)

func (c Convention) String() string {
	if c == Body {
		return "body"
	}
	return "optical"
}

// ParseConvention resolves "optical" or "body"; the empty string selects
// Optical.
func ParseConvention(s string) (Convention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "optical":
		return Optical, nil
	case "body":
		return Body, nil
	}
	return Optical, errors.Wrapf(arucogo.ErrInvalidParameter, "unknown frame convention %q", s)
}

// bodyFromOptical re-expresses optical frame vectors in body axes.
var bodyFromOptical = Rotation{
	{0, 0, 1},
	{-1, 0, 0},
	{0, -1, 0},
}

// MarkerCorners returns the marker's corners in its own frame, in canonical
// order: top-left, top-right, bottom-right, bottom-left seen from the front,
// with x right, y up and z towards the viewer.
func MarkerCorners(size float64) []r3.Vector {
	h := size / 2
	return []r3.Vector{
		{X: -h, Y: h},
		{X: h, Y: h},
		{X: h, Y: -h},
		{X: -h, Y: -h},
	}
}

// Options configure a Resolver.
type Options struct {
	Convention Convention
	// FrameID overrides the frame id taken from the camera info.
	FrameID string
}

// Resolver turns decoded markers into poses.
type Resolver struct {
	solver     Solver
	markerSize float64
	opts       Options
}

// NewResolver returns a Resolver for markers with the given side length, in
// meters.
func NewResolver(solver Solver, markerSize float64, opts Options) (*Resolver, error) {
	if solver == nil {
		return nil, errors.Wrap(arucogo.ErrInvalidParameter, "nil solver")
	}
	if markerSize <= 0 {
		return nil, errors.Wrapf(arucogo.ErrInvalidParameter, "marker size %v", markerSize)
	}
	return &Resolver{solver: solver, markerSize: markerSize, opts: opts}, nil
}

// MarkerSize returns the configured marker side length.
func (r *Resolver) MarkerSize() float64 { return r.markerSize }

// FrameID returns the frame poses are published in for cam.
func (r *Resolver) FrameID(cam CameraInfo) string {
	if r.opts.FrameID != "" {
		return r.opts.FrameID
	}
	return cam.FrameID
}

// Resolve estimates the pose of m. Failures wrap ErrPoseSolve, or
// ErrInvalidParameter for unusable calibration.
func (r *Resolver) Resolve(m arucogo.DecodedMarker, cam CameraInfo, stamp time.Time) (arucogo.MarkerPose, error) {
	position, orientation, err := r.Fit(MarkerCorners(r.markerSize), m.Corners[:], cam)
	if err != nil {
		return arucogo.MarkerPose{}, errors.Wrapf(err, "marker %d", m.ID)
	}
	return arucogo.MarkerPose{
		ID:          m.ID,
		Position:    position,
		Orientation: orientation,
		FrameID:     r.FrameID(cam),
		Stamp:       stamp,
	}, nil
}

// Fit solves for the pose of an arbitrary planar target and expresses it in
// the configured convention.
func (r *Resolver) Fit(object []r3.Vector, image []r2.Point, cam CameraInfo) (r3.Vector, quat.Number, error) {
	in, err := cam.Intrinsics()
	if err != nil {
		return r3.Vector{}, quat.Number{}, err
	}
	sol, err := r.solver.Solve(object, image, in)
	if err != nil {
		if !errors.Is(err, arucogo.ErrPoseSolve) {
			err = errors.Wrap(arucogo.ErrPoseSolve, err.Error())
		}
		return r3.Vector{}, quat.Number{}, err
	}
	rot := sol.Rotation()
	position := sol.TVec
	if r.opts.Convention == Body {
		rot = bodyFromOptical.Mul(rot)
		position = bodyFromOptical.Apply(position)
	}
	return position, rot.Quaternion(), nil
}
