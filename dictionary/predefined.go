package dictionary

import (
	"strings"

	"github.com/pkg/errors"

	arucogo "github.com/ericlevine/arucogo"
)

// ID names a standard dictionary, or Custom for one built from explicit
// parameters. The standard dictionaries are generated by Build's search and
// are named ARUCOGO_<n>X<n>_<size>. They are not OpenCV's DICT_* tables:
// markers printed by OpenCV decode only through a dictionary exported from
// OpenCV and read with LoadFile.
type ID int

const (
	Dict4x4_50 ID = iota
	Dict4x4_100
	Dict4x4_250
	Dict4x4_1000
	Dict5x5_50
	Dict5x5_100
	Dict5x5_250
	Dict5x5_1000
	Dict6x6_50
	Dict6x6_100
	Dict6x6_250
	Dict6x6_1000
	Dict7x7_50
	Dict7x7_100
	Dict7x7_250
	Dict7x7_1000
	Custom
)

// DefaultID is the dictionary used when none is configured.
const DefaultID = Dict5x5_250

// standard describes how a standard dictionary is generated. The tuple is part
// of the marker format: changing any field changes the printed markers.
type standard struct {
	name        string
	bits        int
	size        int
	minDistance int
	seed        int64
}

// Separations decrease with dictionary size so every entry stays well inside
// what a random greedy search reaches. ARUCOGO_4X4_1000 only guarantees distinct
// codewords and corrects nothing.
var standards = [...]standard{
	Dict4x4_50:   {"ARUCOGO_4X4_50", 4, 50, 3, 4050},
	Dict4x4_100:  {"ARUCOGO_4X4_100", 4, 100, 3, 4100},
	Dict4x4_250:  {"ARUCOGO_4X4_250", 4, 250, 2, 4250},
	Dict4x4_1000: {"ARUCOGO_4X4_1000", 4, 1000, 1, 41000},
	Dict5x5_50:   {"ARUCOGO_5X5_50", 5, 50, 7, 5050},
	Dict5x5_100:  {"ARUCOGO_5X5_100", 5, 100, 6, 5100},
	Dict5x5_250:  {"ARUCOGO_5X5_250", 5, 250, 5, 5250},
	Dict5x5_1000: {"ARUCOGO_5X5_1000", 5, 1000, 4, 51000},
	Dict6x6_50:   {"ARUCOGO_6X6_50", 6, 50, 11, 6050},
	Dict6x6_100:  {"ARUCOGO_6X6_100", 6, 100, 10, 6100},
	Dict6x6_250:  {"ARUCOGO_6X6_250", 6, 250, 9, 6250},
	Dict6x6_1000: {"ARUCOGO_6X6_1000", 6, 1000, 8, 61000},
	Dict7x7_50:   {"ARUCOGO_7X7_50", 7, 50, 15, 7050},
	Dict7x7_100:  {"ARUCOGO_7X7_100", 7, 100, 14, 7100},
	Dict7x7_250:  {"ARUCOGO_7X7_250", 7, 250, 13, 7250},
	Dict7x7_1000: {"ARUCOGO_7X7_1000", 7, 1000, 12, 71000},
}

const (
	customName     = "CUSTOM"
	standardPrefix = "ARUCOGO_"
	openCVPrefix   = "DICT_"
)

// String returns the parameter name of the id, e.g. "ARUCOGO_5X5_250".
func (id ID) String() string {
	if id == Custom {
		return customName
	}
	if id < 0 || int(id) >= len(standards) {
		return "UNKNOWN"
	}
	return standards[id].name
}

// Bits returns the codeword size of a standard id, or 0 for Custom.
func (id ID) Bits() int {
	if id < 0 || int(id) >= len(standards) {
		return 0
	}
	return standards[id].bits
}

// Size returns the number of markers of a standard id, or 0 for Custom.
func (id ID) Size() int {
	if id < 0 || int(id) >= len(standards) {
		return 0
	}
	return standards[id].size
}

// ParseID resolves a dictionary parameter name. Matching ignores case and
// accepts the names with or without the "ARUCOGO_" prefix. OpenCV's DICT_*
// names are rejected: their tables are not bundled and the generated
// dictionaries hold different markers.
func ParseID(s string) (ID, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == customName {
		return Custom, nil
	}
	if strings.HasPrefix(name, openCVPrefix) {
		return 0, errors.Wrapf(arucogo.ErrInvalidParameter,
			"%q is an OpenCV dictionary; export it with writeDictionary and set dictionary_file", s)
	}
	if !strings.HasPrefix(name, standardPrefix) {
		name = standardPrefix + name
	}
	for i, st := range standards {
		if st.name == name {
			return ID(i), nil
		}
	}
	return 0, errors.Wrapf(arucogo.ErrInvalidParameter, "unknown dictionary id %q", s)
}

// IDs returns every standard id in declaration order.
func IDs() []ID {
	ids := make([]ID, len(standards))
	for i := range standards {
		ids[i] = ID(i)
	}
	return ids
}

// Predefined builds the standard dictionary for id. Each call builds a new,
// independent value; callers share the result themselves.
func Predefined(id ID) (*Dictionary, error) {
	if id < 0 || int(id) >= len(standards) {
		return nil, errors.Wrapf(arucogo.ErrInvalidParameter, "%s is not a standard dictionary", id)
	}
	st := standards[id]
	return build(st.name, st.bits, st.size, st.minDistance, st.seed)
}

// Spec selects a dictionary: a standard id, Custom with explicit build
// parameters, or an OpenCV dictionary file.
type Spec struct {
	ID   ID
	Bits int
	Size int
	Seed int64
	// File, when set, takes precedence over ID.
	File string
}

// FromSpec builds or loads the dictionary described by s.
func FromSpec(s Spec) (*Dictionary, error) {
	if s.File != "" {
		return LoadFile(s.File)
	}
	if s.ID == Custom {
		return Build(s.Bits, s.Size, s.Seed)
	}
	return Predefined(s.ID)
}
