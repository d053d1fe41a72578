package render

import (
	"testing"

	"github.com/pkg/errors"

	arucogo "github.com/ericlevine/arucogo"
	"github.com/ericlevine/arucogo/dictionary"
)

func TestMarkerMatrix(t *testing.T) {
	code, err := dictionary.ParseCodeword("100\n010\n001")
	if err != nil {
		t.Fatal(err)
	}
	got := MarkerMatrix(code).StringWithChars("X", ".")
	want := "XXXXX\n" +
		"X.XXX\n" +
		"XX.XX\n" +
		"XXX.X\n" +
		"XXXXX\n"
	if got != want {
		t.Errorf("MarkerMatrix =\n%swant\n%s", got, want)
	}
}

func TestMarker(t *testing.T) {
	code, err := dictionary.ParseCodeword("1000\n0000\n0000\n0001")
	if err != nil {
		t.Fatal(err)
	}
	img, err := Marker(code, 60)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 60 || b.Dy() != 60 {
		t.Fatalf("bounds = %v", b)
	}
	tests := []struct {
		x, y int
		want uint8
	}{
		{0, 0, 0},
		{59, 59, 0},
		{15, 15, 255},
		{45, 45, 255},
		{25, 15, 0},
		{10, 10, 255},
		{9, 10, 0},
	}
	for _, tt := range tests {
		if got := img.GrayAt(tt.x, tt.y).Y; got != tt.want {
			t.Errorf("pixel (%d, %d) = %d, want %d", tt.x, tt.y, got, tt.want)
		}
	}
	if _, err := Marker(code, 5); !errors.Is(err, arucogo.ErrInvalidParameter) {
		t.Errorf("5 pixels: err = %v, want ErrInvalidParameter", err)
	}
}

func TestWithQuietZone(t *testing.T) {
	code, _ := dictionary.ParseCodeword("101\n010\n101")
	img, err := Marker(code, 50)
	if err != nil {
		t.Fatal(err)
	}
	padded := WithQuietZone(img, 7)
	if b := padded.Bounds(); b.Dx() != 64 || b.Dy() != 64 {
		t.Fatalf("bounds = %v, want 64x64", b)
	}
	if r, g, b, _ := padded.At(3, 3).RGBA(); r != 0xffff || g != 0xffff || b != 0xffff {
		t.Error("quiet zone should be white")
	}
	if r, _, _, _ := padded.At(7, 7).RGBA(); r != 0 {
		t.Error("marker border should start at the margin")
	}
}
