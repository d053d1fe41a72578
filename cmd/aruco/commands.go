package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	// Input formats beyond the ones imaging registers.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	arucogo "github.com/ericlevine/arucogo"
	"github.com/ericlevine/arucogo/board"
	"github.com/ericlevine/arucogo/config"
	"github.com/ericlevine/arucogo/dictionary"
	"github.com/ericlevine/arucogo/node"
	"github.com/ericlevine/arucogo/pose"
	"github.com/ericlevine/arucogo/render"
)

func jobs(c *cli.Context) int {
	if n := c.Int(flagJobs); n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}

// GenerateAction writes every marker of a custom dictionary to its own file.
func GenerateAction(c *cli.Context) error {
	dict, err := dictionary.Build(c.Int(flagBits), c.Int(flagNum), c.Int64(flagSeed))
	if err != nil {
		return err
	}
	loggerFrom(c).Debug("dictionary built",
		zap.String("name", dict.Name()), zap.Int("min_distance", dict.MinDistance()))

	out := c.Path(flagOut)
	if err := os.MkdirAll(out, 0o755); err != nil {
		return errors.Wrap(err, "creating output directory")
	}
	size := c.Int(flagSize)
	g, ctx := errgroup.WithContext(c.Context)
	g.SetLimit(jobs(c))
	for id, code := range dict.Codewords() {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			img, err := render.Marker(code, size)
			if err != nil {
				return err
			}
			path := filepath.Join(out, fmt.Sprintf("marker_%04d.png", id))
			return errors.Wrapf(imaging.Save(img, path), "writing %s", path)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %d markers of %s to %s\n", dict.Len(), dict.Name(), out)
	return nil
}

// dictionaryFrom resolves the dictionary flags of a command.
func dictionaryFrom(c *cli.Context) (*dictionary.Dictionary, error) {
	if path := c.Path(flagDictFile); path != "" {
		return dictionary.LoadFile(path)
	}
	id, err := dictionary.ParseID(c.String(flagDictionary))
	if err != nil {
		return nil, err
	}
	return dictionary.FromSpec(dictionary.Spec{
		ID:   id,
		Bits: c.Int(flagBits),
		Size: c.Int(flagNum),
		Seed: c.Int64(flagSeed),
	})
}

// MarkerAction writes one marker image.
func MarkerAction(c *cli.Context) error {
	dict, err := dictionaryFrom(c)
	if err != nil {
		return err
	}
	code, err := dict.Codeword(c.Int(flagID))
	if err != nil {
		return err
	}
	img, err := render.Marker(code, c.Int(flagSize))
	if err != nil {
		return err
	}
	path := c.Path(flagOut)
	if err := imaging.Save(img, path); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	fmt.Fprintf(c.App.Writer, "wrote marker %d of %s to %s\n", c.Int(flagID), dict.Name(), path)
	return nil
}

// BoardAction writes a ChArUco board image.
func BoardAction(c *cli.Context) error {
	dict, err := dictionaryFrom(c)
	if err != nil {
		return err
	}
	squaresX, squaresY := c.Int(flagSquareX), c.Int(flagSquareY)
	b, err := board.New(squaresX, squaresY, c.Float64(flagSquareLength), c.Float64(flagMarkerLength), dict)
	if err != nil {
		return err
	}
	outX, outY := c.Int(flagOutX), c.Int(flagOutY)
	if outX == 0 {
		outX = 300 * squaresX
	}
	if outY == 0 {
		outY = 300 * squaresY
	}
	img, err := b.Render(outX, outY)
	if err != nil {
		return err
	}
	path, err := filepath.Abs(c.Path(flagPath))
	if err != nil {
		return err
	}
	if err := imaging.Save(img, path); err != nil {
		return errors.Wrapf(err, "writing checkerboard to %s", path)
	}
	fmt.Fprintf(c.App.Writer, "wrote checkerboard to %s\n", path)
	return nil
}

// DictionariesAction lists the generated standard dictionaries.
func DictionariesAction(c *cli.Context) error {
	for _, line := range lo.Map(dictionary.IDs(), func(id dictionary.ID, _ int) string {
		return fmt.Sprintf("%-22s %dx%d bits, %d markers", id, id.Bits(), id.Bits(), id.Size())
	}) {
		fmt.Fprintln(c.App.Writer, line)
	}
	return nil
}

// ScanAction detects markers in every image argument and prints one JSON
// record per image, in argument order.
func ScanAction(c *cli.Context) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return errors.New("no images given")
	}
	logger := loggerFrom(c)

	cfg, err := loadParams(c.Path(flagParams), logger)
	if err != nil {
		return err
	}
	if c.Bool(flagInverted) {
		cfg.AlsoInverted = true
	}
	out := node.NewJSONPublisher(c.App.Writer)
	n, err := node.New(cfg, out, logger)
	if err != nil {
		return err
	}
	withPose := c.Path(flagCameraInfo) != ""
	if withPose {
		info, err := loadCameraInfo(c.Path(flagCameraInfo))
		if err != nil {
			return err
		}
		if err := n.HandleCameraInfo(info); err != nil {
			return err
		}
	}

	records := make([]node.Record, len(paths))
	g, ctx := errgroup.WithContext(c.Context)
	g.SetLimit(jobs(c))
	for i, path := range paths {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			img, err := imaging.Open(path)
			if err != nil {
				return errors.Wrapf(err, "opening %s", path)
			}
			frame := node.Frame{Image: arucogo.NewImageLuminanceSource(img), Stamp: modTime(path)}
			var result node.FrameResult
			if withPose {
				result, err = n.ProcessFrame(frame)
			} else {
				result, err = n.DetectMarkers(frame)
			}
			if err != nil {
				return errors.Wrapf(err, "scanning %s", path)
			}
			records[i] = node.NewRecord(result)
			records[i].Source = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, rec := range records {
		if err := out.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func loadParams(path string, logger *zap.Logger) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return config.Config{}, errors.Wrap(err, "reading parameters")
	}
	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		return config.Config{}, errors.Wrapf(err, "parsing %s", path)
	}
	cfg, unused, err := config.FromParams(params)
	if err != nil {
		return config.Config{}, err
	}
	if len(unused) > 0 {
		logger.Warn("ignoring unknown parameters", zap.Strings("keys", unused))
	}
	return cfg, nil
}

func loadCameraInfo(path string) (pose.CameraInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pose.CameraInfo{}, errors.Wrap(err, "reading camera info")
	}
	var info pose.CameraInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return pose.CameraInfo{}, errors.Wrapf(err, "parsing %s", path)
	}
	return info, nil
}

// modTime stamps an image with its file modification time.
func modTime(path string) time.Time {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return fi.ModTime().UTC()
}
