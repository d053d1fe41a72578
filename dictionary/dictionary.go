// Package dictionary builds and holds marker codebooks: ordered sets of square
// binary codewords with a guaranteed minimum separation under rotation.
package dictionary

import (
	"github.com/pkg/errors"

	arucogo "github.com/ericlevine/arucogo"
)

// Dictionary is an ordered, read-only set of codewords. The index of a
// codeword is its marker id. A Dictionary is safe for concurrent use.
type Dictionary struct {
	name        string
	bits        int
	minDistance int
	codewords   []Codeword
}

// New wraps an explicit codeword list, verifying that every codeword has the
// given size and that the set honours minDistance under rotation.
func New(name string, bits, minDistance int, codewords []Codeword) (*Dictionary, error) {
	if bits < MinBits || bits > MaxBits {
		return nil, errors.Wrapf(arucogo.ErrInvalidParameter, "dictionary bits %d outside [%d, %d]", bits, MinBits, MaxBits)
	}
	if minDistance < 1 {
		return nil, errors.Wrapf(arucogo.ErrInvalidParameter, "minimum distance %d", minDistance)
	}
	if len(codewords) == 0 {
		return nil, errors.Wrap(arucogo.ErrInvalidParameter, "dictionary has no codewords")
	}
	for i, c := range codewords {
		if c.Size() != bits {
			return nil, errors.Wrapf(arucogo.ErrShapeMismatch, "codeword %d is %dx%d, want %dx%d", i, c.Size(), c.Size(), bits, bits)
		}
	}
	d := &Dictionary{
		name:        name,
		bits:        bits,
		minDistance: minDistance,
		codewords:   append([]Codeword(nil), codewords...),
	}
	if err := d.Verify(); err != nil {
		return nil, err
	}
	return d, nil
}

// Name returns the symbolic name of the dictionary.
func (d *Dictionary) Name() string { return d.name }

// Bits returns the codeword side length.
func (d *Dictionary) Bits() int { return d.bits }

// Len returns the number of markers.
func (d *Dictionary) Len() int { return len(d.codewords) }

// MinDistance returns the separation every pair of codewords honours under
// all four rotations.
func (d *Dictionary) MinDistance() int { return d.minDistance }

// ErrorRadius returns the number of bit errors a decoder may correct.
func (d *Dictionary) ErrorRadius() int { return ErrorRadius(d.minDistance) }

// Codeword returns the codeword for a marker id.
func (d *Dictionary) Codeword(id int) (Codeword, error) {
	if id < 0 || id >= len(d.codewords) {
		return Codeword{}, errors.Wrapf(arucogo.ErrInvalidParameter, "marker id %d outside [0, %d)", id, len(d.codewords))
	}
	return d.codewords[id], nil
}

// Codewords returns a copy of the codewords in id order.
func (d *Dictionary) Codewords() []Codeword {
	return append([]Codeword(nil), d.codewords...)
}

// Verify checks the separation invariant by brute force: every codeword is at
// least MinDistance from every rotation of every other codeword and from its
// own non-trivial rotations.
func (d *Dictionary) Verify() error {
	for i, a := range d.codewords {
		for r := 1; r < 4; r++ {
			if dist := a.distance(a.Rotate(r)); dist < d.minDistance {
				return errors.Errorf("codeword %d is %d bits from its own rotation %d, want >= %d", i, dist, r, d.minDistance)
			}
		}
		for j := i + 1; j < len(d.codewords); j++ {
			b := d.codewords[j]
			for r := 0; r < 4; r++ {
				if dist := a.distance(b.Rotate(r)); dist < d.minDistance {
					return errors.Errorf("codewords %d and %d (rotation %d) are %d bits apart, want >= %d",
						i, j, r, dist, d.minDistance)
				}
			}
		}
	}
	return nil
}

// Equal reports whether two dictionaries hold the same codewords in the same
// order with the same separation.
func (d *Dictionary) Equal(other *Dictionary) bool {
	if d.bits != other.bits || d.minDistance != other.minDistance || len(d.codewords) != len(other.codewords) {
		return false
	}
	for i := range d.codewords {
		if d.codewords[i] != other.codewords[i] {
			return false
		}
	}
	return true
}

// Bytes serializes the codewords in id order, each as the big-endian bytes
// of its packed value, ceil(n*n/8) bytes per codeword.
func (d *Dictionary) Bytes() []byte {
	per := (d.bits*d.bits + 7) / 8
	out := make([]byte, 0, per*len(d.codewords))
	for _, c := range d.codewords {
		v := c.Pack()
		for i := per - 1; i >= 0; i-- {
			out = append(out, byte(v>>(8*uint(i))))
		}
	}
	return out
}
