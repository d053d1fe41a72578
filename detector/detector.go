// Package detector runs the per-frame marker pipeline: quad finding, cell
// sampling and dictionary decoding.
package detector

import (
	"image"
	"slices"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	arucogo "github.com/ericlevine/arucogo"
	"github.com/ericlevine/arucogo/decoder"
	"github.com/ericlevine/arucogo/quad"
	"github.com/ericlevine/arucogo/sampler"
)

// Options configure a Detector. The zero value selects the defaults of each
// stage.
type Options struct {
	// Finder extracts candidate quads. Nil selects a ContourFinder with
	// quad.DefaultOptions.
	Finder quad.Finder

	// Sampler tunes cell reading. The zero value selects
	// sampler.DefaultOptions.
	Sampler sampler.Options

	// AlsoInverted additionally looks for light-on-dark markers.
	AlsoInverted bool

	// KeepDuplicates reports every marker of an id instead of only the best
	// one. Detections of one id at the same place are still merged.
	KeepDuplicates bool

	// Logger receives per-candidate diagnostics at debug level.
	Logger *zap.Logger
}

// Detector finds and decodes every marker of one dictionary in an image. It
// holds no per-frame state; concurrent use is safe when the Finder is.
type Detector struct {
	decoder        *decoder.Decoder
	finder         quad.Finder
	sampler        *sampler.Sampler
	alsoInverted   bool
	keepDuplicates bool
	logger         *zap.Logger
}

// New returns a Detector matching against dec.
func New(dec *decoder.Decoder, opts *Options) (*Detector, error) {
	if dec == nil {
		return nil, errors.Wrap(arucogo.ErrInvalidParameter, "nil decoder")
	}
	if opts == nil {
		opts = &Options{}
	}
	finder := opts.Finder
	if finder == nil {
		finder = quad.NewContourFinder(quad.DefaultOptions())
	}
	sopts := opts.Sampler
	if sopts == (sampler.Options{}) {
		sopts = sampler.DefaultOptions()
	}
	s, err := sampler.New(sopts)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		decoder:        dec,
		finder:         finder,
		sampler:        s,
		alsoInverted:   opts.AlsoInverted,
		keepDuplicates: opts.KeepDuplicates,
		logger:         logger,
	}, nil
}

// Decoder returns the decoder markers are matched with.
func (d *Detector) Decoder() *decoder.Decoder { return d.decoder }

// DetectImage converts img to luminance and runs Detect.
func (d *Detector) DetectImage(img image.Image) ([]arucogo.DecodedMarker, error) {
	return d.Detect(arucogo.NewImageLuminanceSource(img))
}

// Detect returns the markers found in src, ordered by id. Candidates that do
// not decode are dropped silently. When one id is decoded more than once the
// detection with fewer bit errors, then the larger one, is kept, unless the
// detector keeps duplicates.
func (d *Detector) Detect(src arucogo.LuminanceSource) ([]arucogo.DecodedMarker, error) {
	markers, err := d.detect(src)
	if err != nil {
		return nil, err
	}
	if d.alsoInverted {
		inverted, err := d.detect(arucogo.NewInvertedLuminanceSource(src))
		if err != nil {
			return nil, err
		}
		markers = append(markers, inverted...)
	}
	markers = dedupe(markers, d.keepDuplicates)
	d.logger.Debug("frame decoded",
		zap.Int("markers", len(markers)),
		zap.Ints("ids", lo.Map(markers, func(m arucogo.DecodedMarker, _ int) int { return m.ID })))
	return markers, nil
}

func (d *Detector) detect(src arucogo.LuminanceSource) ([]arucogo.DecodedMarker, error) {
	quads, err := d.finder.Find(src)
	if err != nil {
		return nil, errors.Wrap(err, "finding quads")
	}
	bits := d.decoder.Dictionary().Bits()
	var markers []arucogo.DecodedMarker
	for i, q := range quads {
		c, err := d.sampler.Sample(src, q, bits)
		if err != nil {
			d.logger.Debug("candidate rejected by sampler", zap.Int("quad", i), zap.Error(err))
			continue
		}
		m, ok := d.decoder.DecodeCandidate(c.Bits, c.Corners)
		if !ok {
			d.logger.Debug("candidate did not decode", zap.Int("quad", i), zap.Stringer("bits", c.Bits))
			continue
		}
		markers = append(markers, m)
	}
	d.logger.Debug("candidates sampled", zap.Int("quads", len(quads)), zap.Int("decoded", len(markers)))
	return markers, nil
}

func dedupe(markers []arucogo.DecodedMarker, keepDuplicates bool) []arucogo.DecodedMarker {
	slices.SortStableFunc(markers, func(a, b arucogo.DecodedMarker) int {
		switch {
		case a.ID != b.ID:
			return a.ID - b.ID
		case a.Distance != b.Distance:
			return a.Distance - b.Distance
		case a.Corners.Area() > b.Corners.Area():
			return -1
		case a.Corners.Area() < b.Corners.Area():
			return 1
		}
		return 0
	})
	if !keepDuplicates {
		return lo.UniqBy(markers, func(m arucogo.DecodedMarker) int { return m.ID })
	}
	var kept []arucogo.DecodedMarker
	for _, m := range markers {
		if !slices.ContainsFunc(kept, func(k arucogo.DecodedMarker) bool {
			return k.ID == m.ID && sameSpot(k.Corners, m.Corners)
		}) {
			kept = append(kept, m)
		}
	}
	return kept
}

// sameSpot reports whether b is centred within half a side of a.
func sameSpot(a, b arucogo.Quad) bool {
	return a.Center().Sub(b.Center()).Norm() < a.Perimeter()/8
}
