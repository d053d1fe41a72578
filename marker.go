// Package arucogo is a pure Go ArUco fiducial marker library: dictionary
// construction, marker decoding and single-marker pose estimation.
package arucogo

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
)

// Quad holds the four corners of a candidate region in image coordinates,
// clockwise in the image (y pointing down), starting at the top-left corner.
type Quad [4]r2.Point

// Center returns the mean of the four corners.
func (q Quad) Center() r2.Point {
	var c r2.Point
	for _, p := range q {
		c = c.Add(p)
	}
	return c.Mul(0.25)
}

// Area returns the signed area of the quadrilateral (shoelace formula). It is
// positive for clockwise corners in image coordinates.
func (q Quad) Area() float64 {
	sum := 0.0
	for i := range q {
		j := (i + 1) % 4
		sum += q[i].X*q[j].Y - q[j].X*q[i].Y
	}
	return sum / 2
}

// Perimeter returns the length of the quadrilateral's outline.
func (q Quad) Perimeter() float64 {
	sum := 0.0
	for i := range q {
		sum += q[(i+1)%4].Sub(q[i]).Norm()
	}
	return sum
}

// CrossProductZ computes the z component of the cross product between vectors
// (b-a) and (c-a).
func CrossProductZ(a, b, c r2.Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// CornerRefinement selects how a quad finder refines corners before sampling.
type CornerRefinement int

const (
	CornerRefineNone CornerRefinement = iota
	CornerRefineSubpix
	CornerRefineContour
	CornerRefineAprilTag
)

var cornerRefinementNames = [...]string{
	"CORNER_REFINE_NONE",
	"CORNER_REFINE_SUBPIX",
	"CORNER_REFINE_CONTOUR",
	"CORNER_REFINE_APRILTAG",
}

// String returns the parameter name of the refinement method.
func (c CornerRefinement) String() string {
	if c < 0 || int(c) >= len(cornerRefinementNames) {
		return "UNKNOWN"
	}
	return cornerRefinementNames[c]
}

// ParseCornerRefinement accepts both the full parameter names
// ("CORNER_REFINE_SUBPIX") and the short forms ("SUBPIX").
func ParseCornerRefinement(s string) (CornerRefinement, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "" {
		return CornerRefineNone, nil
	}
	if !strings.HasPrefix(name, "CORNER_REFINE_") {
		name = "CORNER_REFINE_" + name
	}
	for i, n := range cornerRefinementNames {
		if n == name {
			return CornerRefinement(i), nil
		}
	}
	return CornerRefineNone, errors.Wrapf(ErrInvalidParameter, "corner refinement method %q", s)
}

// DecodedMarker is a quad that matched a dictionary codeword.
type DecodedMarker struct {
	// ID is the index of the matched codeword in the dictionary.
	ID int
	// Corners are reordered so Corners[0] is the marker's own top-left corner.
	Corners Quad
	// Rotation is the number of clockwise quarter turns between the codeword
	// and the pattern as it appeared in the image.
	Rotation int
	// Distance is the number of bits that differed from the codeword.
	Distance int
}

func (m DecodedMarker) String() string {
	return fmt.Sprintf("marker %d (rotation %d, %d bit errors)", m.ID, m.Rotation, m.Distance)
}

// MarkerPose is the pose of one marker in the camera's publishing frame.
type MarkerPose struct {
	ID          int
	Position    r3.Vector
	Orientation quat.Number
	FrameID     string
	Stamp       time.Time
}

// ChildFrameID names the transform child frame for the marker.
func (p MarkerPose) ChildFrameID() string {
	return fmt.Sprintf("marker_%d", p.ID)
}

// Distance returns the range from the camera to the marker centre.
func (p MarkerPose) Distance() float64 {
	return p.Position.Norm()
}

// Transform is a stamped rigid transform from a parent frame to a child frame.
type Transform struct {
	FrameID      string
	ChildFrameID string
	Stamp        time.Time
	Translation  r3.Vector
	Rotation     quat.Number
}

// TransformFromPose converts a marker pose into a parent->marker transform.
func TransformFromPose(p MarkerPose) Transform {
	return Transform{
		FrameID:      p.FrameID,
		ChildFrameID: p.ChildFrameID(),
		Stamp:        p.Stamp,
		Translation:  p.Position,
		Rotation:     p.Orientation,
	}
}

// QuaternionAngle returns the rotation angle encoded by a unit quaternion.
func QuaternionAngle(q quat.Number) float64 {
	w := math.Abs(q.Real)
	if w > 1 {
		w = 1
	}
	return 2 * math.Acos(w)
}
