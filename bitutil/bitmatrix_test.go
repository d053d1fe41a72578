package bitutil

import "testing"

func TestBitMatrixGetSet(t *testing.T) {
	bm := NewBitMatrixWithSize(10, 10)
	bm.Set(3, 5)
	if !bm.Get(3, 5) {
		t.Error("bit (3,5) should be set")
	}
	if bm.Get(5, 3) {
		t.Error("bit (5,3) should not be set")
	}
	bm.SetTo(3, 5, false)
	if bm.Get(3, 5) {
		t.Error("bit (3,5) should be cleared by SetTo")
	}
}

func TestBitMatrixFlip(t *testing.T) {
	bm := NewBitMatrixWithSize(4, 4)
	bm.Flip(1, 2)
	if !bm.Get(1, 2) {
		t.Error("bit should be set after flip")
	}
	bm.Flip(1, 2)
	if bm.Get(1, 2) {
		t.Error("bit should be unset after double flip")
	}
}

func TestBitMatrixFlipAllKeepsPaddingClear(t *testing.T) {
	bm := NewBitMatrixWithSize(5, 3)
	bm.FlipAll()
	if got := bm.CountSet(); got != 15 {
		t.Errorf("CountSet after FlipAll = %d, want 15", got)
	}
	if !bm.Equals(func() *BitMatrix {
		m := NewBitMatrixWithSize(5, 3)
		m.SetRegion(0, 0, 5, 3)
		return m
	}()) {
		t.Error("flipped empty matrix should equal a fully set one")
	}
}

func TestBitMatrixSetRegion(t *testing.T) {
	bm := NewBitMatrixWithSize(8, 8)
	bm.SetRegion(2, 2, 4, 4)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			expected := x >= 2 && x < 6 && y >= 2 && y < 6
			if bm.Get(x, y) != expected {
				t.Errorf("(%d,%d) = %v, want %v", x, y, bm.Get(x, y), expected)
			}
		}
	}
}

func TestBitMatrixCountBorder(t *testing.T) {
	bm := NewBitMatrix(6)
	set, total := bm.CountBorder()
	if set != 0 || total != 20 {
		t.Errorf("CountBorder = (%d, %d), want (0, 20)", set, total)
	}
	bm.Set(0, 0)
	bm.Set(5, 3)
	bm.Set(2, 2) // interior
	set, _ = bm.CountBorder()
	if set != 2 {
		t.Errorf("border set = %d, want 2", set)
	}
}

func TestBitMatrixRotatedClockwise(t *testing.T) {
	bm := NewBitMatrixWithSize(4, 3)
	bm.Set(0, 0) // top-left
	r := bm.RotatedClockwise()
	if r.Width() != 3 || r.Height() != 4 {
		t.Fatalf("dimensions after rotation: %dx%d, want 3x4", r.Width(), r.Height())
	}
	if !r.Get(2, 0) {
		t.Error("top-left should move to top-right")
	}
	if !bm.Get(0, 0) || bm.Get(2, 0) {
		t.Error("original must be unchanged")
	}
	full := r.RotatedClockwise().RotatedClockwise().RotatedClockwise()
	if !full.Equals(bm) {
		t.Error("four clockwise rotations should be the identity")
	}
}

func TestBitMatrixEnclosingRectangle(t *testing.T) {
	bm := NewBitMatrixWithSize(40, 10)
	bm.Set(3, 2)
	bm.Set(37, 8)
	rect := bm.EnclosingRectangle()
	if rect == nil {
		t.Fatal("rect should not be nil")
	}
	if rect[0] != 3 || rect[1] != 2 || rect[2] != 35 || rect[3] != 7 {
		t.Errorf("rect = %v, want [3 2 35 7]", rect)
	}
	if NewBitMatrix(4).EnclosingRectangle() != nil {
		t.Error("empty matrix should have no enclosing rectangle")
	}
}

func TestBitMatrixClone(t *testing.T) {
	bm := NewBitMatrixWithSize(8, 8)
	bm.Set(1, 1)
	clone := bm.Clone()
	clone.Set(2, 2)
	if bm.Get(2, 2) {
		t.Error("modifying clone should not affect original")
	}
}

func TestBitMatrixEquals(t *testing.T) {
	a := NewBitMatrixWithSize(4, 4)
	b := NewBitMatrixWithSize(4, 4)
	a.Set(1, 2)
	b.Set(1, 2)
	if !a.Equals(b) {
		t.Error("equal matrices should be equal")
	}
	b.Set(3, 3)
	if a.Equals(b) {
		t.Error("different matrices should not be equal")
	}
}

func TestParseStringMatrix(t *testing.T) {
	bm, err := ParseStringMatrix("X . X\n. X .\n", "X ", ". ")
	if err == nil {
		t.Fatalf("expected error for trailing cell without separator, got\n%s", bm)
	}
	bm, err = ParseStringMatrix("X.X\n.X.\n", "X", ".")
	if err != nil {
		t.Fatalf("ParseStringMatrix: %v", err)
	}
	if bm.Width() != 3 || bm.Height() != 2 {
		t.Fatalf("size = %dx%d, want 3x2", bm.Width(), bm.Height())
	}
	if got := bm.StringWithChars("X", "."); got != "X.X\n.X.\n" {
		t.Errorf("round trip = %q", got)
	}
	if _, err := ParseStringMatrix("XX\nX\n", "X", "."); err == nil {
		t.Error("expected error for ragged rows")
	}
}
