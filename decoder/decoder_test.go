package decoder

import (
	"math/rand/v2"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/google/go-cmp/cmp"

	arucogo "github.com/ericlevine/arucogo"
	"github.com/ericlevine/arucogo/dictionary"
)

func buildDictionary(t *testing.T) *dictionary.Dictionary {
	t.Helper()
	d, err := dictionary.Build(6, 100, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return d
}

func TestDecodeRotationInvariance(t *testing.T) {
	dict := buildDictionary(t)
	dec := New(dict)
	for id, c := range dict.Codewords() {
		for k := 0; k < 4; k++ {
			m, ok := dec.Decode(c.Rotate(k))
			if !ok {
				t.Fatalf("codeword %d rotated %d: no match", id, k)
			}
			if m.ID != id || m.Rotation != k || m.Distance != 0 {
				t.Fatalf("codeword %d rotated %d: got %+v", id, k, m)
			}
		}
	}
}

func TestDecodeEntrySevenRotatedTwice(t *testing.T) {
	dict := buildDictionary(t)
	dec := New(dict)
	c, err := dict.Codeword(7)
	if err != nil {
		t.Fatal(err)
	}
	m, ok := dec.Decode(c.Rotate(2))
	if !ok {
		t.Fatal("no match")
	}
	if diff := cmp.Diff(Match{ID: 7, Rotation: 2}, m); diff != "" {
		t.Errorf("Decode mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeErrorTolerance(t *testing.T) {
	dict := buildDictionary(t)
	dec := New(dict)
	radius := dec.ErrorRadius()
	if radius != 4 {
		t.Fatalf("radius = %d, want 4", radius)
	}
	rng := rand.New(rand.NewPCG(1, 2))
	for id, c := range dict.Codewords() {
		for flips := 1; flips <= radius; flips++ {
			positions := rng.Perm(36)[:flips]
			k := rng.IntN(4)
			noisy := c.FlipBits(positions...).Rotate(k)
			m, ok := dec.Decode(noisy)
			if !ok {
				t.Fatalf("codeword %d with %d flipped bits, rotation %d: no match", id, flips, k)
			}
			if m.ID != id || m.Rotation != k || m.Distance != flips {
				t.Fatalf("codeword %d with %d flipped bits, rotation %d: got %+v", id, flips, k, m)
			}
		}
	}
}

// bruteForce returns the unique nearest (id, rotation) or ok=false on a tie.
func bruteForce(dict *dictionary.Dictionary, c dictionary.Codeword) (Match, bool) {
	best := Match{Distance: 1 << 30}
	tied := false
	for id, cw := range dict.Codewords() {
		for r := 0; r < 4; r++ {
			d, _ := c.Distance(cw.Rotate(r))
			if d < best.Distance {
				best = Match{ID: id, Rotation: r, Distance: d}
				tied = false
			} else if d == best.Distance {
				tied = true
			}
		}
	}
	return best, !tied
}

func TestDecodeNeverGuessesBeyondRadius(t *testing.T) {
	dict := buildDictionary(t)
	dec := New(dict)
	radius := dec.ErrorRadius()
	codewords := dict.Codewords()
	for id := 0; id < 20; id++ {
		src := codewords[id]
		// Walk towards the nearest other codeword rotation, one differing bit
		// at a time, past the midpoint.
		var target dictionary.Codeword
		nearest := 1 << 30
		for other, cw := range codewords {
			if other == id {
				continue
			}
			for r := 0; r < 4; r++ {
				if d, _ := src.Distance(cw.Rotate(r)); d < nearest {
					nearest = d
					target = cw.Rotate(r)
				}
			}
		}
		var diff []int
		for i := 0; i < 36; i++ {
			if src.Pack()>>uint(i)&1 != target.Pack()>>uint(i)&1 {
				diff = append(diff, i)
			}
		}
		for steps := 0; steps <= 2*radius+1 && steps <= len(diff); steps++ {
			candidate := src.FlipBits(diff[:steps]...)
			m, ok := dec.Decode(candidate)
			if !ok {
				continue
			}
			want, unique := bruteForce(dict, candidate)
			if !unique || m != want || m.Distance > radius {
				t.Fatalf("codeword %d, %d steps: decoded %+v, brute force %+v (unique=%v)", id, steps, m, want, unique)
			}
		}
	}
}

func TestDecodeUniformCandidates(t *testing.T) {
	dict := buildDictionary(t)
	dec := New(dict)
	black, _ := dictionary.NewCodeword(6, 0)
	white, _ := dictionary.NewCodeword(6, ^uint64(0))
	if m, ok := dec.Decode(black); ok {
		t.Errorf("all-black candidate decoded as %+v", m)
	}
	if m, ok := dec.Decode(white); ok {
		t.Errorf("all-white candidate decoded as %+v", m)
	}
}

func TestDecodeShapeMismatch(t *testing.T) {
	dec := New(buildDictionary(t))
	c, _ := dictionary.NewCodeword(5, 0x1234567)
	if _, ok := dec.Decode(c); ok {
		t.Error("5x5 candidate should not decode against a 6x6 dictionary")
	}
}

func TestDecodeRejectsTies(t *testing.T) {
	// Two codewords two bits either side of a pattern that is far from its
	// own rotations: the pattern is equally near both and must be rejected.
	center, err := buildDictionary(t).Codeword(0)
	if err != nil {
		t.Fatal(err)
	}
	a := center.FlipBits(0, 1)
	b := center.FlipBits(2, 3)
	dict, err := dictionary.New("pair", 6, 1, []dictionary.Codeword{a, b})
	if err != nil {
		t.Fatal(err)
	}
	dec := New(dict)
	dec.radius = 3

	if m, ok := dec.Decode(center); ok {
		t.Errorf("equidistant candidate decoded as %+v", m)
	}
	if _, unique := bruteForce(dict, center); unique {
		t.Error("brute force should also see a tie")
	}
	m, ok := dec.Decode(center.FlipBits(0))
	if !ok || m.ID != 0 || m.Distance != 1 {
		t.Errorf("candidate one bit from a: got %+v, %v", m, ok)
	}
}

func TestCanonicalize(t *testing.T) {
	q := arucogo.Quad{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	tests := []struct {
		rotation int
		first    r2.Point
	}{
		{0, r2.Point{X: 0, Y: 0}},
		{1, r2.Point{X: 1, Y: 0}},
		{2, r2.Point{X: 1, Y: 1}},
		{3, r2.Point{X: 0, Y: 1}},
		{-1, r2.Point{X: 0, Y: 1}},
	}
	for _, tt := range tests {
		got := Canonicalize(q, tt.rotation)
		if got[0] != tt.first {
			t.Errorf("Canonicalize(r=%d)[0] = %v, want %v", tt.rotation, got[0], tt.first)
		}
		if got[1] != q[(((tt.rotation%4)+4)%4+1)%4] {
			t.Errorf("Canonicalize(r=%d) broke the clockwise order: %v", tt.rotation, got)
		}
	}
}

func TestDecodeCandidate(t *testing.T) {
	dict := buildDictionary(t)
	dec := New(dict)
	c, _ := dict.Codeword(3)
	q := arucogo.Quad{{X: 10, Y: 10}, {X: 20, Y: 10}, {X: 20, Y: 20}, {X: 10, Y: 20}}
	m, ok := dec.DecodeCandidate(c.Rotate(1), q)
	if !ok {
		t.Fatal("no match")
	}
	want := arucogo.DecodedMarker{
		ID:       3,
		Rotation: 1,
		Corners:  arucogo.Quad{q[1], q[2], q[3], q[0]},
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("DecodeCandidate mismatch (-want +got):\n%s", diff)
	}
}
