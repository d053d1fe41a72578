package arucogo_test

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	arucogo "github.com/ericlevine/arucogo"
	"github.com/ericlevine/arucogo/decoder"
	"github.com/ericlevine/arucogo/detector"
	"github.com/ericlevine/arucogo/dictionary"
	"github.com/ericlevine/arucogo/quad"
	"github.com/ericlevine/arucogo/render"
)

func renderAndDetect(t *testing.T, id dictionary.ID, marker int, opts *detector.Options, quiet bool) []arucogo.DecodedMarker {
	t.Helper()

	dict, err := dictionary.Predefined(id)
	if err != nil {
		t.Fatalf("Predefined(%s) failed: %v", id, err)
	}
	code, err := dict.Codeword(marker)
	if err != nil {
		t.Fatalf("Codeword(%d) failed: %v", marker, err)
	}

	// Render
	var img image.Image
	img, err = render.Marker(code, 20*(dict.Bits()+2))
	if err != nil {
		t.Fatalf("Marker(%d) failed: %v", marker, err)
	}
	if quiet {
		img = render.WithQuietZone(img, 30)
	}

	// Detect
	det, err := detector.New(decoder.New(dict), opts)
	if err != nil {
		t.Fatal(err)
	}
	markers, err := det.DetectImage(img)
	if err != nil {
		t.Fatalf("DetectImage(%s, %d) failed: %v", id, marker, err)
	}
	return markers
}

func TestRoundTripEveryFamily(t *testing.T) {
	for _, id := range []dictionary.ID{
		dictionary.Dict4x4_1000,
		dictionary.Dict5x5_1000,
		dictionary.Dict6x6_1000,
		dictionary.Dict7x7_1000,
	} {
		for _, marker := range []int{0, 499, 999} {
			markers := renderAndDetect(t, id, marker, nil, true)
			if len(markers) != 1 || markers[0].ID != marker || markers[0].Distance != 0 {
				t.Errorf("%s round-trip of %d: got %v", id, marker, markers)
			}
		}
	}
}

func TestRoundTripPureMarker(t *testing.T) {
	// No quiet zone: the contour finder skips shapes touching the border.
	markers := renderAndDetect(t, dictionary.Dict5x5_250, 17, &detector.Options{Finder: quad.PureFinder{}}, false)
	if len(markers) != 1 || markers[0].ID != 17 {
		t.Fatalf("pure round-trip: got %v", markers)
	}
	want := arucogo.Quad{{X: 0, Y: 0}, {X: 140, Y: 0}, {X: 140, Y: 140}, {X: 0, Y: 140}}
	if markers[0].Corners != want {
		t.Errorf("corners = %v, want %v", markers[0].Corners, want)
	}
}

func TestRoundTripCustomDictionary(t *testing.T) {
	dict, err := dictionary.Build(6, 40, 7)
	if err != nil {
		t.Fatal(err)
	}
	det, err := detector.New(decoder.New(dict), nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []int{0, 13, 39} {
		code, err := dict.Codeword(id)
		if err != nil {
			t.Fatal(err)
		}
		marker, err := render.Marker(code, 160)
		if err != nil {
			t.Fatal(err)
		}
		img := imaging.Rotate180(render.WithQuietZone(marker, 40))
		markers, err := det.DetectImage(img)
		if err != nil {
			t.Fatal(err)
		}
		if len(markers) != 1 || markers[0].ID != id || markers[0].Rotation != 2 {
			t.Errorf("custom round-trip of %d: got %v", id, markers)
		}
	}
}

func TestRoundTripCorrectsBitErrors(t *testing.T) {
	dict, err := dictionary.Predefined(dictionary.Dict6x6_50)
	if err != nil {
		t.Fatal(err)
	}
	code, err := dict.Codeword(21)
	if err != nil {
		t.Fatal(err)
	}
	// Flip as many cells as the dictionary can correct.
	flips := make([]int, dict.ErrorRadius())
	for i := range flips {
		flips[i] = 5 * i
	}
	damaged := code.FlipBits(flips...)
	marker, err := render.Marker(damaged, 160)
	if err != nil {
		t.Fatal(err)
	}
	det, err := detector.New(decoder.New(dict), nil)
	if err != nil {
		t.Fatal(err)
	}
	markers, err := det.DetectImage(render.WithQuietZone(marker, 40))
	if err != nil {
		t.Fatal(err)
	}
	if len(markers) != 1 || markers[0].ID != 21 || markers[0].Distance != len(flips) {
		t.Errorf("damaged marker: got %v, want id 21 with %d bit errors", markers, len(flips))
	}
}

// openCVPrint draws a marker the way OpenCV prints it: a one cell black
// border around row-major cells, '1' white, inside a white margin.
func openCVPrint(cells string, bits, cell int) *image.Gray {
	side := (bits + 4) * cell
	img := image.NewGray(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			cx, cy := x/cell-1, y/cell-1
			v := uint8(255)
			switch {
			case cx < 0 || cy < 0 || cx > bits+1 || cy > bits+1:
			case cx == 0 || cy == 0 || cx == bits+1 || cy == bits+1:
				v = 0
			case cells[(cy-1)*bits+cx-1] == '0':
				v = 0
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func TestDecodeOpenCVExport(t *testing.T) {
	// Marker 0 of OpenCV's DICT_4X4_50 as written by writeDictionary.
	const cells = "1011010100110010"
	dict, err := dictionary.ReadOpenCV(strings.NewReader(
		`{"nmarkers": 1, "markersize": 4, "maxCorrectionBits": 1, "marker_0": "`+cells+`"}`), "DICT_4X4_50")
	if err != nil {
		t.Fatal(err)
	}
	det, err := detector.New(decoder.New(dict), nil)
	if err != nil {
		t.Fatal(err)
	}
	printed := openCVPrint(cells, 4, 25)
	for _, tt := range []struct {
		img      image.Image
		rotation int
	}{
		{printed, 0},
		{imaging.Rotate90(printed), 3},
	} {
		markers, err := det.DetectImage(tt.img)
		if err != nil {
			t.Fatal(err)
		}
		if len(markers) != 1 || markers[0].ID != 0 || markers[0].Distance != 0 || markers[0].Rotation != tt.rotation {
			t.Errorf("got %v, want marker 0 at rotation %d", markers, tt.rotation)
		}
	}
}
