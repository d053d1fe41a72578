package dictionary

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	arucogo "github.com/ericlevine/arucogo"
)

// openCVHeader holds the scalar fields of a dictionary written by OpenCV's
// cv::aruco::Dictionary::writeDictionary. Each marker follows as a
// "marker_<id>" string of '0' and '1' cells in row-major order, '1' white.
type openCVHeader struct {
	NMarkers          int `mapstructure:"nmarkers"`
	MarkerSize        int `mapstructure:"markersize"`
	MaxCorrectionBits int `mapstructure:"maxCorrectionBits"`
}

// ReadOpenCV parses a dictionary exported from OpenCV, in either the JSON or
// the YAML form of its FileStorage. The separation is taken from
// maxCorrectionBits, so markers printed by OpenCV decode with the same error
// tolerance.
func ReadOpenCV(r io.Reader, name string) (*Dictionary, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading dictionary")
	}
	fields, err := openCVFields(data)
	if err != nil {
		return nil, err
	}
	var h openCVHeader
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &h,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(fields); err != nil {
		return nil, errors.Wrap(arucogo.ErrInvalidParameter, err.Error())
	}
	if h.NMarkers < 1 {
		return nil, errors.Wrapf(arucogo.ErrInvalidParameter, "nmarkers %d", h.NMarkers)
	}
	if h.MaxCorrectionBits < 0 {
		return nil, errors.Wrapf(arucogo.ErrInvalidParameter, "maxCorrectionBits %d", h.MaxCorrectionBits)
	}
	codewords := make([]Codeword, h.NMarkers)
	for i := range codewords {
		key := fmt.Sprintf("marker_%d", i)
		cells, ok := fields[key].(string)
		if !ok {
			return nil, errors.Wrapf(arucogo.ErrInvalidParameter, "missing %s", key)
		}
		if codewords[i], err = codewordFromCells(h.MarkerSize, cells); err != nil {
			return nil, errors.Wrap(err, key)
		}
	}
	return New(name, h.MarkerSize, 2*h.MaxCorrectionBits+1, codewords)
}

// LoadFile reads an OpenCV dictionary file, naming the dictionary after the
// file.
func LoadFile(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening dictionary")
	}
	defer f.Close()
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	d, err := ReadOpenCV(f, name)
	return d, errors.Wrapf(err, "loading %s", path)
}

func openCVFields(data []byte) (map[string]any, error) {
	data = bytes.TrimSpace(data)
	if bytes.HasPrefix(data, []byte("{")) {
		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, errors.Wrap(arucogo.ErrInvalidParameter, err.Error())
		}
		return fields, nil
	}
	// FileStorage YAML for a dictionary is flat "key: value" lines.
	fields := map[string]any{}
	s := bufio.NewScanner(bytes.NewReader(data))
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || line == "---" || strings.HasPrefix(line, "%") || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, errors.Wrapf(arucogo.ErrInvalidParameter, "malformed line %q", line)
		}
		fields[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	return fields, errors.Wrap(s.Err(), "scanning dictionary")
}

func codewordFromCells(size int, cells string) (Codeword, error) {
	if len(cells) != size*size {
		return Codeword{}, errors.Wrapf(arucogo.ErrShapeMismatch, "%d cells for a %dx%d marker", len(cells), size, size)
	}
	var packed uint64
	for i, c := range cells {
		switch c {
		case '1':
			packed |= 1 << uint(i)
		case '0':
		default:
			return Codeword{}, errors.Wrapf(arucogo.ErrInvalidParameter, "cell %d is %q", i, c)
		}
	}
	return NewCodeword(size, packed)
}
