// Package decoder matches sampled codewords against a dictionary, tolerating
// rotation and a bounded number of bit errors.
package decoder

import (
	arucogo "github.com/ericlevine/arucogo"
	"github.com/ericlevine/arucogo/dictionary"
)

// Match is a successful decode.
type Match struct {
	// ID is the marker id.
	ID int
	// Rotation r means the candidate equals the codeword turned r quarter
	// turns clockwise.
	Rotation int
	// Distance is the Hamming distance between candidate and codeword.
	Distance int
}

type entry struct {
	id       int
	rotation int
}

// Decoder holds a dictionary together with its rotated codewords and an
// exact-match index. It never changes after New and is safe for concurrent
// use.
type Decoder struct {
	dict      *dictionary.Dictionary
	radius    int
	rotations []dictionary.Codeword
	exact     map[uint64][]entry
}

// New prepares a decoder for dict.
func New(dict *dictionary.Dictionary) *Decoder {
	d := &Decoder{
		dict:      dict,
		radius:    dict.ErrorRadius(),
		rotations: make([]dictionary.Codeword, 0, 4*dict.Len()),
		exact:     make(map[uint64][]entry, 4*dict.Len()),
	}
	for id, c := range dict.Codewords() {
		for r := 0; r < 4; r++ {
			rc := c.Rotate(r)
			d.rotations = append(d.rotations, rc)
			d.exact[rc.Pack()] = append(d.exact[rc.Pack()], entry{id: id, rotation: r})
		}
	}
	return d
}

// Dictionary returns the dictionary the decoder matches against.
func (d *Decoder) Dictionary() *dictionary.Dictionary { return d.dict }

// ErrorRadius returns the largest distance the decoder accepts.
func (d *Decoder) ErrorRadius() int { return d.radius }

// Decode finds the codeword and rotation nearest to candidate. It reports no
// match when the nearest distance exceeds the error radius, when the candidate
// has a different size than the dictionary, or when two different
// (id, rotation) pairs are equally near.
func (d *Decoder) Decode(candidate dictionary.Codeword) (Match, bool) {
	if candidate.Size() != d.dict.Bits() {
		return Match{}, false
	}

	if hits := d.exact[candidate.Pack()]; len(hits) > 0 {
		if len(hits) > 1 {
			return Match{}, false
		}
		return Match{ID: hits[0].id, Rotation: hits[0].rotation}, true
	}

	best := -1
	bestDistance := candidate.Size()*candidate.Size() + 1
	tied := false
	for i, rc := range d.rotations {
		dist, _ := candidate.Distance(rc)
		switch {
		case dist < bestDistance:
			best = i
			bestDistance = dist
			tied = false
		case dist == bestDistance:
			tied = true
		}
	}
	if best < 0 || tied || bestDistance > d.radius {
		return Match{}, false
	}
	return Match{ID: best / 4, Rotation: best % 4, Distance: bestDistance}, true
}

// Canonicalize reorders a candidate's corners for a match with the given
// rotation, so that element 0 is the marker's own top-left corner.
func Canonicalize(corners arucogo.Quad, rotation int) arucogo.Quad {
	r := ((rotation % 4) + 4) % 4
	var out arucogo.Quad
	for i := range out {
		out[i] = corners[(i+r)%4]
	}
	return out
}

// DecodeCandidate decodes a sampled candidate and, on success, returns the
// marker with its corners in canonical order.
func (d *Decoder) DecodeCandidate(bits dictionary.Codeword, corners arucogo.Quad) (arucogo.DecodedMarker, bool) {
	m, ok := d.Decode(bits)
	if !ok {
		return arucogo.DecodedMarker{}, false
	}
	return arucogo.DecodedMarker{
		ID:       m.ID,
		Corners:  Canonicalize(corners, m.Rotation),
		Rotation: m.Rotation,
		Distance: m.Distance,
	}, true
}
