// Package sampler reads the cell grid of a candidate quadrilateral and turns it
// into a codeword.
package sampler

import (
	"github.com/pkg/errors"

	arucogo "github.com/ericlevine/arucogo"
	"github.com/ericlevine/arucogo/binarizer"
	"github.com/ericlevine/arucogo/bitutil"
	"github.com/ericlevine/arucogo/dictionary"
	"github.com/ericlevine/arucogo/transform"
)

// Candidate is a sampled codeword together with the image corners it was read
// from, in the order the quad finder produced them.
type Candidate struct {
	Bits    dictionary.Codeword
	Corners arucogo.Quad
}

// Options tune how cells are read.
type Options struct {
	// CellMargin is the fraction of each cell edge left out of the mean.
	CellMargin float64
	// SamplesPerCell is the side of the sub-grid of samples in each cell.
	SamplesPerCell int
	// Policy picks the threshold from the samples of a candidate.
	Policy binarizer.Policy
	// MinContrast is the smallest spread of cell means treated as a real
	// pattern. Flatter candidates are classified against mid-grey.
	MinContrast float64
	// MaxBorderErrorRate is the fraction of border cells that may read white
	// before the candidate is rejected.
	MaxBorderErrorRate float64
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		CellMargin:         0.13,
		SamplesPerCell:     4,
		Policy:             binarizer.Otsu,
		MinContrast:        20,
		MaxBorderErrorRate: 0.35,
	}
}

// Validate reports options that cannot produce a codeword.
func (o Options) Validate() error {
	switch {
	case o.CellMargin < 0 || o.CellMargin >= 0.5:
		return errors.Wrapf(arucogo.ErrInvalidParameter, "cell margin %v outside [0, 0.5)", o.CellMargin)
	case o.SamplesPerCell < 1:
		return errors.Wrapf(arucogo.ErrInvalidParameter, "%d samples per cell", o.SamplesPerCell)
	case o.MaxBorderErrorRate < 0 || o.MaxBorderErrorRate >= 1:
		return errors.Wrapf(arucogo.ErrInvalidParameter, "border error rate %v outside [0, 1)", o.MaxBorderErrorRate)
	case o.MinContrast < 0:
		return errors.Wrapf(arucogo.ErrInvalidParameter, "negative contrast %v", o.MinContrast)
	}
	return nil
}

// Sampler reads candidates. It holds no per-call state and may be shared.
type Sampler struct {
	opts Options
}

// New returns a Sampler for opts.
func New(opts Options) (*Sampler, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Sampler{opts: opts}, nil
}

// Options returns the options the sampler was built with.
func (s *Sampler) Options() Options { return s.opts }

// Sample reads a bits x bits codeword from the region of src bounded by quad.
// The region is divided into (bits+2) x (bits+2) cells whose outer ring must
// be black. It fails with ErrNotFound when the region leaves the image or the
// border ring is not black enough.
func (s *Sampler) Sample(src arucogo.LuminanceSource, quad arucogo.Quad, bits int) (Candidate, error) {
	if bits < dictionary.MinBits || bits > dictionary.MaxBits {
		return Candidate{}, errors.Wrapf(arucogo.ErrInvalidParameter, "bit size %d", bits)
	}
	grid, err := transform.GridSampler{
		Cells:   bits + 2,
		PerCell: s.opts.SamplesPerCell,
		Margin:  s.opts.CellMargin,
	}.Sample(src, transform.SquareToQuad(quad))
	if err != nil {
		return Candidate{}, err
	}

	white := s.classify(grid)
	set, total := white.CountBorder()
	if float64(set) > s.opts.MaxBorderErrorRate*float64(total) {
		return Candidate{}, arucogo.ErrNotFound
	}

	inner := bitutil.NewBitMatrix(bits)
	for y := 0; y < bits; y++ {
		for x := 0; x < bits; x++ {
			inner.SetTo(x, y, white.Get(x+1, y+1))
		}
	}
	code, err := dictionary.CodewordFromMatrix(inner)
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{Bits: code, Corners: quad}, nil
}

// SampleRectified reads a codeword from a patch that already holds exactly the
// marker, border included, axis aligned.
func (s *Sampler) SampleRectified(patch arucogo.LuminanceSource, bits int) (Candidate, error) {
	w, h := float64(patch.Width()), float64(patch.Height())
	quad := arucogo.Quad{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}}
	return s.Sample(patch, quad, bits)
}

// classify returns the cell grid with set bits for white cells.
func (s *Sampler) classify(grid *transform.Grid) *bitutil.BitMatrix {
	lo, hi := grid.Means[0], grid.Means[0]
	for _, m := range grid.Means {
		lo = min(lo, m)
		hi = max(hi, m)
	}

	threshold := 127.0
	if hi-lo >= s.opts.MinContrast {
		values := grid.Samples
		if s.opts.Policy == binarizer.Midpoint {
			values = grid.Means
		}
		if t, err := s.opts.Policy.Threshold(values); err == nil {
			threshold = t
		} else {
			threshold = (lo + hi) / 2
		}
	}

	white := bitutil.NewBitMatrix(grid.Cells)
	for y := 0; y < grid.Cells; y++ {
		for x := 0; x < grid.Cells; x++ {
			if grid.Mean(x, y) > threshold {
				white.Set(x, y)
			}
		}
	}
	return white
}
