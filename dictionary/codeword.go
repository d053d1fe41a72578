package dictionary

import (
	"math/bits"
	"strings"

	"github.com/pkg/errors"

	arucogo "github.com/ericlevine/arucogo"
	"github.com/ericlevine/arucogo/bitutil"
)

const (
	// MinBits is the smallest inner grid that can carry a usable code.
	MinBits = 3
	// MaxBits is the largest inner grid; n*n bits must fit in a uint64.
	MaxBits = 8
)

// Codeword is an immutable n x n binary pattern. Bit (x, y) is stored at index
// y*n + x of the packed value; a set bit is a white cell.
type Codeword struct {
	size int
	bits uint64
}

// NewCodeword creates a codeword of the given side length from its packed
// row-major value. Bits beyond size*size are ignored.
func NewCodeword(size int, packed uint64) (Codeword, error) {
	if size < MinBits || size > MaxBits {
		return Codeword{}, errors.Wrapf(arucogo.ErrInvalidParameter, "codeword size %d outside [%d, %d]", size, MinBits, MaxBits)
	}
	return Codeword{size: size, bits: packed & mask(size)}, nil
}

// CodewordFromMatrix reads a square BitMatrix, set bits being white cells.
func CodewordFromMatrix(m *bitutil.BitMatrix) (Codeword, error) {
	if m.Width() != m.Height() {
		return Codeword{}, errors.Wrapf(arucogo.ErrShapeMismatch, "matrix is %dx%d", m.Width(), m.Height())
	}
	n := m.Width()
	var packed uint64
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			if m.Get(x, y) {
				packed |= 1 << uint(y*n+x)
			}
		}
	}
	return NewCodeword(n, packed)
}

// ParseCodeword reads rows of '1' (white) and '0' (black) cells, one row per
// line.
func ParseCodeword(repr string) (Codeword, error) {
	m, err := bitutil.ParseStringMatrix(strings.TrimSpace(repr), "1", "0")
	if err != nil {
		return Codeword{}, err
	}
	return CodewordFromMatrix(m)
}

func mask(size int) uint64 {
	n := uint(size * size)
	if n >= 64 {
		return ^uint64(0)
	}
	return 1<<n - 1
}

// Size returns the side length n.
func (c Codeword) Size() int { return c.size }

// Get reports whether cell (x, y) is white.
func (c Codeword) Get(x, y int) bool {
	return c.bits>>uint(y*c.size+x)&1 != 0
}

// Pack returns the row-major packed value. Two codewords of the same size are
// equal exactly when their packed values are.
func (c Codeword) Pack() uint64 { return c.bits }

// Ones returns the number of white cells.
func (c Codeword) Ones() int { return bits.OnesCount64(c.bits) }

// Rotate returns the codeword turned 90*k degrees clockwise. Any integer k is
// accepted; it is taken modulo 4.
func (c Codeword) Rotate(k int) Codeword {
	k = ((k % 4) + 4) % 4
	out := c
	for ; k > 0; k-- {
		out = out.rotate90()
	}
	return out
}

func (c Codeword) rotate90() Codeword {
	n := c.size
	var packed uint64
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			if c.Get(x, y) {
				// clockwise: (x, y) -> (n-1-y, x)
				packed |= 1 << uint(x*n+(n-1-y))
			}
		}
	}
	return Codeword{size: n, bits: packed}
}

// Distance returns the Hamming distance between two codewords of equal size.
func (c Codeword) Distance(other Codeword) (int, error) {
	if c.size != other.size {
		return 0, errors.Wrapf(arucogo.ErrShapeMismatch, "%dx%d vs %dx%d", c.size, c.size, other.size, other.size)
	}
	return bits.OnesCount64(c.bits ^ other.bits), nil
}

// distance is Distance without the shape check, for callers that already
// guarantee equal sizes.
func (c Codeword) distance(other Codeword) int {
	return bits.OnesCount64(c.bits ^ other.bits)
}

// FlipBits returns a copy with the given cell indexes (y*n + x) inverted.
func (c Codeword) FlipBits(indexes ...int) Codeword {
	out := c
	for _, i := range indexes {
		out.bits ^= 1 << uint(i)
	}
	out.bits &= mask(c.size)
	return out
}

// Matrix returns a new n x n BitMatrix with white cells set.
func (c Codeword) Matrix() *bitutil.BitMatrix {
	m := bitutil.NewBitMatrix(c.size)
	for y := 0; y < c.size; y++ {
		for x := 0; x < c.size; x++ {
			if c.Get(x, y) {
				m.Set(x, y)
			}
		}
	}
	return m
}

// String renders the codeword as rows of '1' and '0'.
func (c Codeword) String() string {
	if c.size == 0 {
		return ""
	}
	return c.Matrix().StringWithChars("1", "0")
}
