package board

import (
	"image"
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	arucogo "github.com/ericlevine/arucogo"
	"github.com/ericlevine/arucogo/decoder"
	"github.com/ericlevine/arucogo/dictionary"
	"github.com/ericlevine/arucogo/pose"
	"github.com/ericlevine/arucogo/sampler"
)

func testBoard(t *testing.T) *Board {
	t.Helper()
	dict, err := dictionary.Predefined(dictionary.Dict4x4_50)
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(7, 5, 0.1, 0.075, dict)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestLayout(t *testing.T) {
	b := testBoard(t)
	if got := b.NumMarkers(); got != 17 {
		t.Errorf("NumMarkers = %d, want 17", got)
	}
	tests := []struct {
		id   int
		want image.Point
	}{
		{0, image.Pt(1, 0)},
		{2, image.Pt(5, 0)},
		{3, image.Pt(0, 1)},
		{16, image.Pt(5, 4)},
	}
	for _, tt := range tests {
		got, ok := b.Square(tt.id)
		if !ok || got != tt.want {
			t.Errorf("Square(%d) = %v, %v, want %v", tt.id, got, ok, tt.want)
		}
	}
	if _, ok := b.Square(17); ok {
		t.Error("Square(17) reported a square")
	}

	corners, ok := b.MarkerCorners(0)
	if !ok {
		t.Fatal("MarkerCorners(0) failed")
	}
	want := []r3.Vector{
		{X: 0.1125, Y: 0.4875},
		{X: 0.1875, Y: 0.4875},
		{X: 0.1875, Y: 0.4125},
		{X: 0.1125, Y: 0.4125},
	}
	approx := cmp.Comparer(func(a, b float64) bool { return math.Abs(a-b) < 1e-12 })
	if diff := cmp.Diff(want, corners, approx); diff != "" {
		t.Errorf("MarkerCorners(0) mismatch (-want +got):\n%s", diff)
	}
}

func TestNewRejectsBadLayouts(t *testing.T) {
	small, err := dictionary.Build(4, 5, 0)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name           string
		x, y           int
		square, marker float64
	}{
		{"one column", 1, 5, 0.1, 0.08},
		{"marker as large as square", 7, 5, 0.1, 0.1},
		{"zero marker", 7, 5, 0.1, 0},
		{"too many markers", 7, 5, 0.1, 0.08},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.x, tt.y, tt.square, tt.marker, small); !errors.Is(err, arucogo.ErrInvalidParameter) {
				t.Errorf("err = %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestRender(t *testing.T) {
	b := testBoard(t)
	img, err := b.Render(560, 400)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := img.GrayAt(40, 40).Y; got != 0 {
		t.Errorf("square (0, 0) = %d, want black", got)
	}
	if got := img.GrayAt(85, 15).Y; got != 255 {
		t.Errorf("margin around marker 0 = %d, want white", got)
	}

	s, err := sampler.New(sampler.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	dec := decoder.New(b.Dictionary())
	for _, id := range []int{0, 7, 16} {
		sq, _ := b.Square(id)
		// 80 px squares with 60 px markers inset by 10 px.
		at := image.Pt(sq.X*80+10, sq.Y*80+10)
		patch := img.SubImage(image.Rectangle{Min: at, Max: at.Add(image.Pt(60, 60))})
		c, err := s.SampleRectified(arucogo.NewImageLuminanceSource(patch), 4)
		if err != nil {
			t.Fatalf("marker %d: %v", id, err)
		}
		m, ok := dec.Decode(c.Bits)
		if !ok || m.ID != id || m.Rotation != 0 {
			t.Errorf("marker %d decoded as %+v, %v", id, m, ok)
		}
	}

	if _, err := b.Render(20, 20); !errors.Is(err, arucogo.ErrInvalidParameter) {
		t.Errorf("tiny render: err = %v, want ErrInvalidParameter", err)
	}
}

func TestEstimatePose(t *testing.T) {
	b := testBoard(t)
	cam := pose.CameraInfo{FrameID: "cam", K: []float64{600, 0, 320, 0, 600, 240, 0, 0, 1}}
	in, err := cam.Intrinsics()
	if err != nil {
		t.Fatal(err)
	}
	// Board facing the camera, tilted slightly.
	rot := pose.FromRotationVector(r3.Vector{X: math.Pi - 0.15, Y: 0.1})
	trans := r3.Vector{X: -0.3, Y: 0.2, Z: 1.4}

	var markers []arucogo.DecodedMarker
	for _, id := range []int{0, 5, 9, 16} {
		corners, _ := b.MarkerCorners(id)
		m := arucogo.DecodedMarker{ID: id}
		for i, p := range corners {
			c := rot.Apply(p).Add(trans)
			m.Corners[i] = in.Project(r2.Point{X: c.X / c.Z, Y: c.Y / c.Z})
		}
		markers = append(markers, m)
	}
	// Not on the board.
	markers = append(markers, arucogo.DecodedMarker{ID: 40, Corners: arucogo.Quad{{X: 1, Y: 1}, {X: 9, Y: 1}, {X: 9, Y: 9}, {X: 1, Y: 9}}})

	resolver, err := pose.NewResolver(pose.NewHomographySolver(), b.MarkerLength(), pose.Options{})
	if err != nil {
		t.Fatal(err)
	}
	stamp := time.Unix(10, 0)
	got, err := b.EstimatePose(markers, resolver, cam, stamp)
	if err != nil {
		t.Fatalf("EstimatePose: %v", err)
	}
	if got.Position.Sub(trans).Norm() > 1e-6 {
		t.Errorf("Position = %v, want %v", got.Position, trans)
	}
	wantQ := rot.Quaternion()
	approx := cmp.Comparer(func(a, b float64) bool { return math.Abs(a-b) < 1e-6 })
	if diff := cmp.Diff(wantQ, got.Orientation, approx); diff != "" {
		t.Errorf("Orientation mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 5, 9, 16}, got.MarkerIDs); diff != "" {
		t.Errorf("MarkerIDs mismatch (-want +got):\n%s", diff)
	}
	tf := got.Transform()
	if tf.ChildFrameID != "charuco_board" || tf.FrameID != "cam" || !tf.Stamp.Equal(stamp) {
		t.Errorf("Transform = %+v", tf)
	}

	if _, err := b.EstimatePose(markers[4:], resolver, cam, stamp); !errors.Is(err, arucogo.ErrNotFound) {
		t.Errorf("no board markers: err = %v, want ErrNotFound", err)
	}
}
