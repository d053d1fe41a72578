package arucogo_test

import (
	"fmt"
	"image"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/ericlevine/arucogo/decoder"
	"github.com/ericlevine/arucogo/detector"
	"github.com/ericlevine/arucogo/dictionary"
	"github.com/ericlevine/arucogo/render"
)

// blackboxTestRotation defines expected pass/fail thresholds for one rotation angle.
type blackboxTestRotation struct {
	rotation           float64
	mustPassCount      int
	blurredCount       int
	maxMisreads        int
	maxBlurredMisreads int
}

// blackboxTestCase renders a sample of markers from one dictionary and
// detects them at every listed rotation, once sharp and once blurred.
type blackboxTestCase struct {
	dict    dictionary.ID
	samples int
	side    int // marker side in pixels, quiet zone excluded
	blur    float64
	tests   []blackboxTestRotation
}

func rot(rotation float64, mustPass, blurred int) blackboxTestRotation {
	return blackboxTestRotation{rotation: rotation, mustPassCount: mustPass, blurredCount: blurred}
}

// rotateImage rotates an image counter-clockwise by the given degrees.
func rotateImage(img image.Image, degrees float64) image.Image {
	switch int(degrees) % 360 {
	case 0:
		return img
	case 90:
		return imaging.Rotate90(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate270(img)
	default:
		panic(fmt.Sprintf("unsupported rotation: %v degrees", degrees))
	}
}

// sampleIDs spreads n ids evenly over a dictionary of size total.
func sampleIDs(total, n int) []int {
	if n > total {
		n = total
	}
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i * total / n
	}
	return ids
}

type detectOutcome int

const (
	resultNotFound detectOutcome = iota
	resultPassed
	resultMisread
)

// classifyResult reports whether exactly the expected marker was found.
func classifyResult(det *detector.Detector, img image.Image, want int) (detectOutcome, []int, error) {
	markers, err := det.DetectImage(img)
	if err != nil {
		return resultNotFound, nil, err
	}
	var ids []int
	outcome := resultNotFound
	for _, m := range markers {
		ids = append(ids, m.ID)
		if m.ID != want {
			return resultMisread, ids, nil
		}
		outcome = resultPassed
	}
	return outcome, ids, nil
}

// runBlackBoxTest runs a complete blackbox test for a given test case.
func runBlackBoxTest(t *testing.T, tc blackboxTestCase) {
	t.Helper()

	dict, err := dictionary.Predefined(tc.dict)
	if err != nil {
		t.Fatalf("building %s: %v", tc.dict, err)
	}
	det, err := detector.New(decoder.New(dict), nil)
	if err != nil {
		t.Fatal(err)
	}
	ids := sampleIDs(dict.Len(), tc.samples)

	testCount := len(tc.tests)
	passedCounts := make([]int, testCount)
	misreadCounts := make([]int, testCount)
	blurredCounts := make([]int, testCount)
	blurredMisreadCounts := make([]int, testCount)

	for _, id := range ids {
		code, err := dict.Codeword(id)
		if err != nil {
			t.Fatal(err)
		}
		marker, err := render.Marker(code, tc.side)
		if err != nil {
			t.Fatal(err)
		}
		img := render.WithQuietZone(marker, tc.side/3)

		for i, r := range tc.tests {
			rotated := rotateImage(img, r.rotation)

			outcome, got, err := classifyResult(det, rotated, id)
			if err != nil {
				t.Fatalf("marker %d: %v", id, err)
			}
			switch outcome {
			case resultPassed:
				passedCounts[i]++
			case resultMisread:
				misreadCounts[i]++
				t.Logf("  MISREAD rot=%.0f id=%d got=%v", r.rotation, id, got)
			case resultNotFound:
				t.Logf("  NOTFOUND rot=%.0f id=%d", r.rotation, id)
			}

			outcome, got, err = classifyResult(det, imaging.Blur(rotated, tc.blur), id)
			if err != nil {
				t.Fatalf("marker %d: %v", id, err)
			}
			switch outcome {
			case resultPassed:
				blurredCounts[i]++
			case resultMisread:
				blurredMisreadCounts[i]++
				t.Logf("  MISREAD(blur) rot=%.0f id=%d got=%v", r.rotation, id, got)
			case resultNotFound:
				t.Logf("  NOTFOUND(blur) rot=%.0f id=%d", r.rotation, id)
			}
		}
	}

	for i, r := range tc.tests {
		t.Logf("Rotation %3.0f°: %d/%d passed (need %d), %d misread (max %d) | Blurred: %d/%d passed (need %d), %d misread (max %d)",
			r.rotation,
			passedCounts[i], len(ids), r.mustPassCount, misreadCounts[i], r.maxMisreads,
			blurredCounts[i], len(ids), r.blurredCount, blurredMisreadCounts[i], r.maxBlurredMisreads)
	}

	for i, r := range tc.tests {
		if passedCounts[i] < r.mustPassCount {
			t.Errorf("Rotation %.0f°: Too many markers failed: got %d, need %d",
				r.rotation, passedCounts[i], r.mustPassCount)
		}
		if blurredCounts[i] < r.blurredCount {
			t.Errorf("Rotation %.0f° (blurred): Too many markers failed: got %d, need %d",
				r.rotation, blurredCounts[i], r.blurredCount)
		}
		if misreadCounts[i] > r.maxMisreads {
			t.Errorf("Rotation %.0f°: Too many misreads: got %d, max %d",
				r.rotation, misreadCounts[i], r.maxMisreads)
		}
		if blurredMisreadCounts[i] > r.maxBlurredMisreads {
			t.Errorf("Rotation %.0f° (blurred): Too many misreads: got %d, max %d",
				r.rotation, blurredMisreadCounts[i], r.maxBlurredMisreads)
		}
	}
}
