// Package binarizer chooses thresholds separating dark from light luminance
// and turns luminance sources into black/white bit matrices.
package binarizer

import (
	"math"
	"strings"

	"github.com/pkg/errors"

	arucogo "github.com/ericlevine/arucogo"
)

// Policy selects how a threshold is derived from a set of luminance values.
type Policy int

const (
	// Otsu maximizes the between-class variance of the values.
	Otsu Policy = iota
	// Midpoint takes the mean of the darkest and lightest value.
	Midpoint
	// Valley finds the deepest valley between the two main histogram peaks.
	Valley
)

var policyNames = [...]string{Otsu: "otsu", Midpoint: "midpoint", Valley: "valley"}

func (p Policy) String() string {
	if p < 0 || int(p) >= len(policyNames) {
		return "unknown"
	}
	return policyNames[p]
}

// ParsePolicy resolves a policy name, ignoring case. The empty string selects
// Otsu.
func ParsePolicy(s string) (Policy, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return Otsu, nil
	}
	for i, n := range policyNames {
		if n == name {
			return Policy(i), nil
		}
	}
	return 0, errors.Wrapf(arucogo.ErrInvalidParameter, "unknown threshold policy %q", s)
}

// Threshold returns the level separating values into dark and light: a value
// is light when it is strictly greater than the threshold. It fails with
// ErrNotFound when the values carry no usable contrast.
func (p Policy) Threshold(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, arucogo.ErrNotFound
	}
	switch p {
	case Midpoint:
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range values {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		return (lo + hi) / 2, nil
	case Valley:
		var buckets [luminanceBuckets]int
		for _, v := range values {
			buckets[clampByte(v)>>luminanceShift]++
		}
		black, err := estimateBlackPoint(buckets[:])
		if err != nil {
			return 0, err
		}
		return float64(black), nil
	case Otsu:
		var hist [256]int
		for _, v := range values {
			hist[clampByte(v)]++
		}
		return float64(otsu(hist[:], len(values))), nil
	}
	return 0, errors.Wrapf(arucogo.ErrInvalidParameter, "threshold policy %d", int(p))
}

// otsu returns the histogram level t maximizing the between-class variance of
// {v <= t} and {v > t}. Levels with no values between the classes give the same
// variance; the middle of that run is returned.
func otsu(hist []int, total int) int {
	sum := 0.0
	for i, n := range hist {
		sum += float64(i * n)
	}
	best, bestEnd, bestVariance := 0, 0, -1.0
	sumDark := 0.0
	dark := 0
	for t, n := range hist {
		dark += n
		if dark == 0 {
			continue
		}
		light := total - dark
		if light == 0 {
			break
		}
		sumDark += float64(t * n)
		meanDark := sumDark / float64(dark)
		meanLight := (sum - sumDark) / float64(light)
		d := meanDark - meanLight
		variance := float64(dark) * float64(light) * d * d
		switch {
		case variance > bestVariance:
			best, bestEnd, bestVariance = t, t, variance
		case variance == bestVariance:
			bestEnd = t
		}
	}
	return (best + bestEnd) / 2
}

func clampByte(v float64) int {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return int(v)
}
