package dictionary

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"

	arucogo "github.com/ericlevine/arucogo"
)

// maxDrawsPerMarker bounds the random search: a build that needs more than
// maxDrawsPerMarker*numMarkers draws is reported as exhausted.
const maxDrawsPerMarker = 10000

// pcgStream is the fixed PCG stream selector; the seed picks the state.
const pcgStream = 0x61727563 // "aruc"

// MinDistanceForBits is the separation policy for custom dictionaries:
// max(1, n*n/4) with integer division. It fixes both which codewords a build
// admits and how many bit errors decoding corrects.
//
//	n:         3  4  5  6  7   8
//	distance:  2  4  6  9  12  16
//	radius:    0  1  2  4  5   7
func MinDistanceForBits(bits int) int {
	d := bits * bits / 4
	if d < 1 {
		d = 1
	}
	return d
}

// ErrorRadius is the number of bit errors that can be corrected in a
// dictionary with the given minimum distance: floor((d-1)/2).
func ErrorRadius(minDistance int) int {
	if minDistance < 1 {
		return 0
	}
	return (minDistance - 1) / 2
}

// Build deterministically constructs a custom dictionary of numMarkers
// codewords of bits x bits cells from seed. The same arguments always produce
// the same codewords in the same order.
func Build(bits, numMarkers int, seed int64) (*Dictionary, error) {
	name := fmt.Sprintf("CUSTOM_%dX%d_%d_SEED%d", bits, bits, numMarkers, seed)
	return build(name, bits, numMarkers, MinDistanceForBits(bits), seed)
}

func build(name string, bits, numMarkers, minDistance int, seed int64) (*Dictionary, error) {
	if bits < MinBits || bits > MaxBits {
		return nil, errors.Wrapf(arucogo.ErrInvalidParameter, "dictionary bits %d outside [%d, %d]", bits, MinBits, MaxBits)
	}
	if numMarkers < 1 {
		return nil, errors.Wrapf(arucogo.ErrInvalidParameter, "dictionary size %d", numMarkers)
	}
	if bound := CapacityBound(bits, minDistance); float64(numMarkers) > bound {
		return nil, errors.Wrapf(arucogo.ErrDictionaryExhausted,
			"%d markers of %dx%d bits at distance %d exceeds the packing bound of %.0f",
			numMarkers, bits, bits, minDistance, math.Floor(bound))
	}

	b := newBuilder(bits, numMarkers, minDistance)
	rng := rand.New(rand.NewPCG(uint64(seed), pcgStream))
	space := uint64(0)
	if bits*bits < 64 {
		space = 1 << uint(bits*bits)
	}
	maxDraws := maxDrawsPerMarker * numMarkers
	if maxDraws/maxDrawsPerMarker != numMarkers {
		maxDraws = math.MaxInt
	}
	for draws := 0; len(b.accepted) < numMarkers; draws++ {
		if draws >= maxDraws || (space != 0 && uint64(len(b.seen)) == space) {
			return nil, errors.Wrapf(arucogo.ErrDictionaryExhausted,
				"found %d of %d markers of %dx%d bits at distance %d after %d draws",
				len(b.accepted), numMarkers, bits, bits, minDistance, draws)
		}
		b.offer(Codeword{size: bits, bits: rng.Uint64() & b.mask})
	}
	return &Dictionary{
		name:        name,
		bits:        bits,
		minDistance: minDistance,
		codewords:   b.accepted,
	}, nil
}

type builder struct {
	bits        int
	mask        uint64
	minDistance int
	radius      int
	accepted    []Codeword
	// rotations of every accepted codeword, four per entry
	rotations []Codeword
	// packed values already evaluated; a rejected candidate can never become
	// admissible later because the accepted set only grows
	seen map[uint64]struct{}
}

func newBuilder(bits, numMarkers, minDistance int) *builder {
	capacity := numMarkers
	if capacity > 4096 {
		capacity = 4096
	}
	return &builder{
		bits:        bits,
		mask:        mask(bits),
		minDistance: minDistance,
		radius:      ErrorRadius(minDistance),
		accepted:    make([]Codeword, 0, capacity),
		rotations:   make([]Codeword, 0, 4*capacity),
		seen:        make(map[uint64]struct{}),
	}
}

func (b *builder) offer(c Codeword) {
	if _, ok := b.seen[c.Pack()]; ok {
		return
	}
	b.seen[c.Pack()] = struct{}{}
	if !b.admissible(c) {
		return
	}
	b.accepted = append(b.accepted, c)
	for r := 0; r < 4; r++ {
		b.rotations = append(b.rotations, c.Rotate(r))
	}
}

// admissible applies the three acceptance rules: far from uniform patches, far
// from its own rotations, and far from every rotation of every accepted
// codeword.
func (b *builder) admissible(c Codeword) bool {
	ones := c.Ones()
	if ones <= b.radius || b.bits*b.bits-ones <= b.radius {
		return false
	}
	for r := 1; r < 4; r++ {
		if c.distance(c.Rotate(r)) < b.minDistance {
			return false
		}
	}
	for _, other := range b.rotations {
		if c.distance(other) < b.minDistance {
			return false
		}
	}
	return true
}

// CapacityBound is the sphere-packing upper bound on the number of codewords
// of bits x bits cells at the given minimum distance. Every rotation of every
// codeword is at least minDistance from every other, so 4N disjoint balls of
// the error radius must fit in the 2^(n*n) patterns.
func CapacityBound(bits, minDistance int) float64 {
	n := bits * bits
	radius := ErrorRadius(minDistance)
	volume := 0.0
	binom := 1.0
	for i := 0; i <= radius && i <= n; i++ {
		volume += binom
		binom = binom * float64(n-i) / float64(i+1)
	}
	return math.Ldexp(1, n) / (4 * volume)
}
