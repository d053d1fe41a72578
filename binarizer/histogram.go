package binarizer

import (
	arucogo "github.com/ericlevine/arucogo"
	"github.com/ericlevine/arucogo/bitutil"
)

const (
	luminanceBits    = 5
	luminanceShift   = 8 - luminanceBits
	luminanceBuckets = 1 << luminanceBits
)

// GlobalHistogram binarizes a whole image against one threshold computed by
// Policy over a sample of its rows. It suits evenly lit scenes; Hybrid copes
// better with shadows and gradients.
type GlobalHistogram struct {
	source arucogo.LuminanceSource
	Policy Policy
	row    []byte
}

// NewGlobalHistogram creates a GlobalHistogram binarizer using Valley.
func NewGlobalHistogram(source arucogo.LuminanceSource) *GlobalHistogram {
	return &GlobalHistogram{source: source, Policy: Valley}
}

// LuminanceSource returns the underlying source.
func (g *GlobalHistogram) LuminanceSource() arucogo.LuminanceSource {
	return g.source
}

// Width returns the image width.
func (g *GlobalHistogram) Width() int { return g.source.Width() }

// Height returns the image height.
func (g *GlobalHistogram) Height() int { return g.source.Height() }

// BlackMatrix returns the binarized image, with set bits for dark pixels.
func (g *GlobalHistogram) BlackMatrix() (*bitutil.BitMatrix, error) {
	width := g.source.Width()
	height := g.source.Height()

	// Every fourth row is enough to place the threshold.
	values := make([]float64, 0, width*(height/4+1))
	for y := 0; y < height; y += 4 {
		g.row = g.source.Row(y, g.row)
		for _, v := range g.row[:width] {
			values = append(values, float64(v))
		}
	}
	threshold, err := g.Policy.Threshold(values)
	if err != nil {
		return nil, err
	}

	matrix := bitutil.NewBitMatrixWithSize(width, height)
	for y := 0; y < height; y++ {
		g.row = g.source.Row(y, g.row)
		for x, v := range g.row[:width] {
			if float64(v) <= threshold {
				matrix.Set(x, y)
			}
		}
	}
	return matrix, nil
}

// estimateBlackPoint finds the valley between the two dominant peaks of a
// bucketed histogram and returns it as a luminance level.
func estimateBlackPoint(buckets []int) (int, error) {
	numBuckets := len(buckets)
	maxBucketCount := 0
	firstPeak := 0
	firstPeakSize := 0
	for x := 0; x < numBuckets; x++ {
		if buckets[x] > firstPeakSize {
			firstPeak = x
			firstPeakSize = buckets[x]
		}
		if buckets[x] > maxBucketCount {
			maxBucketCount = buckets[x]
		}
	}

	// The second peak scores by height weighted with squared distance from
	// the first, so a nearby shoulder of the first peak does not win.
	secondPeak := 0
	secondPeakScore := 0
	for x := 0; x < numBuckets; x++ {
		dist := x - firstPeak
		score := buckets[x] * dist * dist
		if score > secondPeakScore {
			secondPeak = x
			secondPeakScore = score
		}
	}

	if firstPeak > secondPeak {
		firstPeak, secondPeak = secondPeak, firstPeak
	}

	if secondPeak-firstPeak <= numBuckets/16 {
		return 0, arucogo.ErrNotFound
	}

	bestValley := secondPeak - 1
	bestValleyScore := -1
	for x := secondPeak - 1; x > firstPeak; x-- {
		fromFirst := x - firstPeak
		score := fromFirst * fromFirst * (secondPeak - x) * (maxBucketCount - buckets[x])
		if score > bestValleyScore {
			bestValley = x
			bestValleyScore = score
		}
	}

	return bestValley << luminanceShift, nil
}
