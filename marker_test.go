package arucogo

import (
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
)

func TestQuadGeometry(t *testing.T) {
	q := Quad{{X: 10, Y: 10}, {X: 30, Y: 10}, {X: 30, Y: 20}, {X: 10, Y: 20}}
	if got, want := q.Center(), (r2.Point{X: 20, Y: 15}); got != want {
		t.Errorf("Center() = %v, want %v", got, want)
	}
	if got := q.Area(); got != 200 {
		t.Errorf("Area() = %v, want 200", got)
	}
	if got := q.Perimeter(); got != 60 {
		t.Errorf("Perimeter() = %v, want 60", got)
	}
	reversed := Quad{q[0], q[3], q[2], q[1]}
	if got := reversed.Area(); got != -200 {
		t.Errorf("counter-clockwise Area() = %v, want -200", got)
	}
	if z := CrossProductZ(q[0], q[1], q[2]); z <= 0 {
		t.Errorf("CrossProductZ of a clockwise turn = %v, want positive", z)
	}
}

func TestParseCornerRefinement(t *testing.T) {
	tests := []struct {
		in   string
		want CornerRefinement
	}{
		{"", CornerRefineNone},
		{"CORNER_REFINE_NONE", CornerRefineNone},
		{"CORNER_REFINE_SUBPIX", CornerRefineSubpix},
		{"subpix", CornerRefineSubpix},
		{" contour ", CornerRefineContour},
		{"CORNER_REFINE_APRILTAG", CornerRefineAprilTag},
	}
	for _, tt := range tests {
		got, err := ParseCornerRefinement(tt.in)
		if err != nil {
			t.Errorf("ParseCornerRefinement(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCornerRefinement(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if back, _ := ParseCornerRefinement(got.String()); back != got {
			t.Errorf("%v does not parse back", got)
		}
	}
	if _, err := ParseCornerRefinement("CORNER_REFINE_MAGIC"); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("unknown method: err = %v", err)
	}
	if s := CornerRefinement(9).String(); s != "UNKNOWN" {
		t.Errorf("String() of an unknown method = %q", s)
	}
}

func TestTransformFromPose(t *testing.T) {
	stamp := time.Unix(1700000000, 0)
	p := MarkerPose{
		ID:          12,
		Position:    r3.Vector{X: 0.3, Y: 0, Z: 0.4},
		Orientation: quat.Number{Imag: 1},
		FrameID:     "camera",
		Stamp:       stamp,
	}
	want := Transform{
		FrameID:      "camera",
		ChildFrameID: "marker_12",
		Stamp:        stamp,
		Translation:  p.Position,
		Rotation:     p.Orientation,
	}
	if diff := cmp.Diff(want, TransformFromPose(p)); diff != "" {
		t.Errorf("TransformFromPose mismatch (-want +got):\n%s", diff)
	}
	if d := p.Distance(); math.Abs(d-0.5) > 1e-12 {
		t.Errorf("Distance() = %v, want 0.5", d)
	}
}

func TestQuaternionAngle(t *testing.T) {
	tests := []struct {
		q    quat.Number
		want float64
	}{
		{quat.Number{Real: 1}, 0},
		{quat.Number{Imag: 1}, math.Pi},
		{quat.Number{Real: math.Cos(0.25), Kmag: math.Sin(0.25)}, 0.5},
		// q and -q are the same rotation.
		{quat.Number{Real: -math.Cos(0.25), Kmag: -math.Sin(0.25)}, 0.5},
	}
	for _, tt := range tests {
		if got := QuaternionAngle(tt.q); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("QuaternionAngle(%v) = %v, want %v", tt.q, got, tt.want)
		}
	}
}
