package dictionary

import (
	"testing"

	"github.com/pkg/errors"

	arucogo "github.com/ericlevine/arucogo"
)

func mustParse(t *testing.T, repr string) Codeword {
	t.Helper()
	c, err := ParseCodeword(repr)
	if err != nil {
		t.Fatalf("ParseCodeword: %v", err)
	}
	return c
}

func TestCodewordRotateClockwise(t *testing.T) {
	c := mustParse(t, `
1100
0000
0000
0001`)
	want := mustParse(t, `
0001
0001
0000
1000`)
	if got := c.Rotate(1); got != want {
		t.Errorf("Rotate(1) =\n%swant\n%s", got, want)
	}
	if !c.Rotate(1).Get(3, 0) {
		t.Error("top-left cell should move to the top-right corner")
	}
}

func TestCodewordRotateIdentities(t *testing.T) {
	c := mustParse(t, `
10110
01100
00111
11000
01011`)
	if c.Rotate(4) != c || c.Rotate(0) != c {
		t.Error("rotating by 0 or 4 should be the identity")
	}
	if c.Rotate(1).Rotate(3) != c {
		t.Error("Rotate(1).Rotate(3) should equal the original")
	}
	if c.Rotate(-1) != c.Rotate(3) {
		t.Error("Rotate(-1) should equal Rotate(3)")
	}
	if c.Rotate(2).Rotate(2) != c {
		t.Error("two half turns should be the identity")
	}
	// Rotate must not change the receiver.
	before := c.Pack()
	_ = c.Rotate(1)
	if c.Pack() != before {
		t.Error("Rotate mutated its receiver")
	}
}

func TestCodewordDistance(t *testing.T) {
	a := mustParse(t, "111\n000\n101")
	b := mustParse(t, "011\n000\n100")
	d, err := a.Distance(b)
	if err != nil {
		t.Fatalf("Distance: %v", err)
	}
	if d != 2 {
		t.Errorf("Distance = %d, want 2", d)
	}
	if d, _ := a.Distance(a); d != 0 {
		t.Errorf("self distance = %d, want 0", d)
	}

	big := mustParse(t, "1111\n0000\n1010\n0101")
	if _, err := a.Distance(big); !errors.Is(err, arucogo.ErrShapeMismatch) {
		t.Errorf("Distance across sizes: err = %v, want ErrShapeMismatch", err)
	}
}

func TestCodewordPackRowMajor(t *testing.T) {
	c := mustParse(t, "100\n000\n001")
	if got, want := c.Pack(), uint64(1|1<<8); got != want {
		t.Errorf("Pack = %#x, want %#x", got, want)
	}
	same, err := NewCodeword(3, c.Pack())
	if err != nil {
		t.Fatal(err)
	}
	if same != c {
		t.Error("NewCodeword(Pack) should reproduce the codeword")
	}
	if _, err := NewCodeword(9, 0); !errors.Is(err, arucogo.ErrInvalidParameter) {
		t.Errorf("NewCodeword(9) err = %v, want ErrInvalidParameter", err)
	}
}

func TestCodewordFlipBits(t *testing.T) {
	c := mustParse(t, "000\n000\n000")
	f := c.FlipBits(0, 4, 8)
	if f.Ones() != 3 || !f.Get(1, 1) {
		t.Errorf("FlipBits produced\n%s", f)
	}
	if c.Ones() != 0 {
		t.Error("FlipBits mutated its receiver")
	}
}

func TestCodewordMatrixRoundTrip(t *testing.T) {
	c := mustParse(t, "1011\n0110\n0001\n1000")
	back, err := CodewordFromMatrix(c.Matrix())
	if err != nil {
		t.Fatal(err)
	}
	if back != c {
		t.Errorf("matrix round trip =\n%swant\n%s", back, c)
	}
	rotated, err := CodewordFromMatrix(c.Matrix().RotatedClockwise())
	if err != nil {
		t.Fatal(err)
	}
	if rotated != c.Rotate(1) {
		t.Error("BitMatrix and Codeword rotations disagree")
	}
}
