// Package config holds the detector node parameters. Field names follow the
// node's parameter names so parameter files and maps decode directly.
package config

import (
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	arucogo "github.com/ericlevine/arucogo"
	"github.com/ericlevine/arucogo/binarizer"
	"github.com/ericlevine/arucogo/dictionary"
	"github.com/ericlevine/arucogo/pose"
	"github.com/ericlevine/arucogo/quad"
	"github.com/ericlevine/arucogo/sampler"
)

// Config is the full parameter set of the detector node.
type Config struct {
	// MarkerSize is the side of a marker in meters.
	MarkerSize float64 `json:"marker_size"`

	// DictionaryID is a standard dictionary name or "CUSTOM".
	DictionaryID   string `json:"aruco_dictionary_id"`
	// DictionaryFile is an OpenCV dictionary export. It overrides
	// DictionaryID and is the way to decode OpenCV's DICT_* markers.
	DictionaryFile string `json:"dictionary_file"`

	// DictionaryBits, DictionarySize and DictionarySeed parameterize a
	// CUSTOM dictionary.
	DictionaryBits int   `json:"dictionary_bits"`
	DictionarySize int   `json:"dictionary_size"`
	DictionarySeed int64 `json:"dictionary_seed"`

	ImageTopic      string `json:"image_topic"`
	CameraInfoTopic string `json:"camera_info_topic"`
	// CameraFrame overrides the frame id of the camera info when set.
	CameraFrame     string `json:"camera_frame"`
	FrameConvention string `json:"frame_convention"`

	// CornerRefinementMethod only applies when DoCornerRefinement is set.
	DoCornerRefinement     bool   `json:"do_corner_refinement"`
	CornerRefinementMethod string `json:"corner_refinement_method"`

	PublishTF bool `json:"publish_tf"`

	PublishCharucoPose  bool    `json:"publish_charuco_pose"`
	CharucoSquareX      int     `json:"charuco_square_x"`
	CharucoSquareY      int     `json:"charuco_square_y"`
	CharucoSquareLength float64 `json:"charuco_square_length"`

	ThresholdPolicy    string  `json:"threshold_policy"`
	MaxBorderErrorRate float64 `json:"max_border_error_rate"`

	// AlsoInverted additionally looks for white-on-black markers.
	AlsoInverted     bool `json:"also_inverted"`
	// KeepDuplicateIDs publishes every marker of an id seen in a frame
	// instead of only the best one.
	KeepDuplicateIDs bool `json:"keep_duplicate_ids"`
}

// Default returns the parameter defaults.
func Default() Config {
	return Config{
		MarkerSize:             0.0625,
		DictionaryID:           dictionary.DefaultID.String(),
		DictionaryBits:         -1,
		DictionarySize:         -1,
		ImageTopic:             "/camera/image_raw",
		CameraInfoTopic:        "/camera/camera_info",
		FrameConvention:        pose.Optical.String(),
		CornerRefinementMethod: arucogo.CornerRefineNone.String(),
		CharucoSquareX:         7,
		CharucoSquareY:         5,
		CharucoSquareLength:    0.1,
		ThresholdPolicy:        binarizer.Otsu.String(),
		MaxBorderErrorRate:     sampler.DefaultOptions().MaxBorderErrorRate,
	}
}

// FromParams overlays a parameter map onto the defaults. Values are weakly
// typed, so "0.05" or 1 decode into float fields and "true" into booleans.
// Keys that name no parameter are returned sorted, for the caller to report.
func FromParams(params map[string]any) (Config, []string, error) {
	cfg := Default()
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &cfg,
		Metadata:         &md,
	})
	if err != nil {
		return Config{}, nil, err
	}
	if err := decoder.Decode(params); err != nil {
		return Config{}, nil, errors.Wrap(arucogo.ErrInvalidParameter, err.Error())
	}
	sort.Strings(md.Unused)
	return cfg, md.Unused, nil
}

// Validate reports every invalid parameter at once.
func (c Config) Validate() error {
	var errs error
	invalid := func(format string, args ...any) {
		errs = multierr.Append(errs, errors.Wrapf(arucogo.ErrInvalidParameter, format, args...))
	}
	if c.MarkerSize <= 0 {
		invalid("marker_size %v must be positive", c.MarkerSize)
	}
	if _, err := c.DictionarySpec(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := c.CornerRefinement(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := pose.ParseConvention(c.FrameConvention); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := binarizer.ParsePolicy(c.ThresholdPolicy); err != nil {
		errs = multierr.Append(errs, err)
	}
	if c.MaxBorderErrorRate < 0 || c.MaxBorderErrorRate >= 1 {
		invalid("max_border_error_rate %v outside [0, 1)", c.MaxBorderErrorRate)
	}
	if c.PublishCharucoPose {
		if c.CharucoSquareX < 2 || c.CharucoSquareY < 2 {
			invalid("charuco board of %dx%d squares", c.CharucoSquareX, c.CharucoSquareY)
		}
		if c.CharucoSquareLength <= c.MarkerSize {
			invalid("charuco_square_length %v must exceed marker_size %v", c.CharucoSquareLength, c.MarkerSize)
		}
	}
	return errs
}

// DictionarySpec resolves the dictionary parameters.
func (c Config) DictionarySpec() (dictionary.Spec, error) {
	if c.DictionaryFile != "" {
		return dictionary.Spec{File: c.DictionaryFile}, nil
	}
	id, err := dictionary.ParseID(c.DictionaryID)
	if err != nil {
		return dictionary.Spec{}, err
	}
	if id != dictionary.Custom {
		return dictionary.Spec{ID: id}, nil
	}
	if c.DictionaryBits < dictionary.MinBits || c.DictionaryBits > dictionary.MaxBits {
		return dictionary.Spec{}, errors.Wrapf(arucogo.ErrInvalidParameter,
			"dictionary_bits %d outside [%d, %d]", c.DictionaryBits, dictionary.MinBits, dictionary.MaxBits)
	}
	if c.DictionarySize < 1 {
		return dictionary.Spec{}, errors.Wrapf(arucogo.ErrInvalidParameter, "dictionary_size %d", c.DictionarySize)
	}
	return dictionary.Spec{ID: id, Bits: c.DictionaryBits, Size: c.DictionarySize, Seed: c.DictionarySeed}, nil
}

// CornerRefinement returns the refinement method in effect.
func (c Config) CornerRefinement() (arucogo.CornerRefinement, error) {
	method, err := arucogo.ParseCornerRefinement(c.CornerRefinementMethod)
	if err != nil {
		return arucogo.CornerRefineNone, err
	}
	if !c.DoCornerRefinement {
		return arucogo.CornerRefineNone, nil
	}
	return method, nil
}

// FinderOptions returns the quad finder options.
func (c Config) FinderOptions() (quad.Options, error) {
	opts := quad.DefaultOptions()
	var err error
	if opts.Policy, err = binarizer.ParsePolicy(c.ThresholdPolicy); err != nil {
		return quad.Options{}, err
	}
	if opts.Refinement, err = c.CornerRefinement(); err != nil {
		return quad.Options{}, err
	}
	return opts, nil
}

// SamplerOptions returns the cell sampling options.
func (c Config) SamplerOptions() (sampler.Options, error) {
	opts := sampler.DefaultOptions()
	var err error
	if opts.Policy, err = binarizer.ParsePolicy(c.ThresholdPolicy); err != nil {
		return sampler.Options{}, err
	}
	opts.MaxBorderErrorRate = c.MaxBorderErrorRate
	return opts, opts.Validate()
}

// ResolverOptions returns the pose output options.
func (c Config) ResolverOptions() (pose.Options, error) {
	convention, err := pose.ParseConvention(c.FrameConvention)
	if err != nil {
		return pose.Options{}, err
	}
	return pose.Options{Convention: convention, FrameID: c.CameraFrame}, nil
}
