// Command aruco generates marker and board images and scans images for markers.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const (
	flagDebug        = "debug"
	flagSize         = "size"
	flagNum          = "num"
	flagBits         = "bits"
	flagSeed         = "seed"
	flagOut          = "out"
	flagID           = "id"
	flagDictionary   = "dictionary"
	flagDictFile     = "dictionary-file"
	flagSquareX      = "square-x"
	flagSquareY      = "square-y"
	flagSquareLength = "square-length"
	flagMarkerLength = "marker-length"
	flagPath         = "path"
	flagOutX         = "out-x"
	flagOutY         = "out-y"
	flagParams       = "params"
	flagCameraInfo   = "camera-info"
	flagInverted     = "inverted"
	flagJobs         = "jobs"

	loggerKey = "logger"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "aruco",
		Usage: "generate and detect ArUco fiducial markers",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "log detector internals to stderr",
			},
		},
		Before: func(c *cli.Context) error {
			logger := zap.NewNop()
			if c.Bool(flagDebug) {
				var err error
				if logger, err = zap.NewDevelopment(); err != nil {
					return err
				}
			}
			if c.App.Metadata == nil {
				c.App.Metadata = map[string]interface{}{}
			}
			c.App.Metadata[loggerKey] = logger
			return nil
		},
		After: func(c *cli.Context) error {
			if logger, ok := c.App.Metadata[loggerKey].(*zap.Logger); ok {
				//nolint:errcheck
				logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "write every marker of a custom dictionary as marker_NNNN.png",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: flagSize, Value: 200, Usage: "side length in pixels"},
					&cli.IntFlag{Name: flagNum, Value: 100, Usage: "number of markers to generate"},
					&cli.IntFlag{Name: flagBits, Value: 6, Usage: "marker side in bits"},
					&cli.Int64Flag{Name: flagSeed, Usage: "dictionary seed"},
					&cli.PathFlag{Name: flagOut, Value: ".", Usage: "output directory"},
					&cli.IntFlag{Name: flagJobs, Usage: "images written at once (default: number of CPUs)"},
				},
				Action: GenerateAction,
			},
			{
				Name:  "marker",
				Usage: "write a single marker image",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagDictionary, Value: "ARUCOGO_5X5_250", Usage: "dictionary name, or CUSTOM"},
					&cli.PathFlag{Name: flagDictFile, Usage: "OpenCV dictionary export; overrides --dictionary"},
					&cli.IntFlag{Name: flagBits, Value: 6, Usage: "marker side in bits for a CUSTOM dictionary"},
					&cli.IntFlag{Name: flagNum, Value: 100, Usage: "number of markers in a CUSTOM dictionary"},
					&cli.Int64Flag{Name: flagSeed, Usage: "seed of a CUSTOM dictionary"},
					&cli.IntFlag{Name: flagID, Required: true, Usage: "marker id"},
					&cli.IntFlag{Name: flagSize, Value: 200, Usage: "side length in pixels"},
					&cli.PathFlag{Name: flagOut, Required: true, Usage: "output image path"},
				},
				Action: MarkerAction,
			},
			{
				Name:  "board",
				Usage: "write a ChArUco board image",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: flagSquareX, Value: 7, Usage: "chessboard squares in X direction"},
					&cli.IntFlag{Name: flagSquareY, Value: 5, Usage: "chessboard squares in Y direction"},
					&cli.Float64Flag{Name: flagSquareLength, Value: 0.1, Usage: "square side length, normally in meters"},
					&cli.Float64Flag{Name: flagMarkerLength, Value: 0.08, Usage: "marker side length, same unit as the squares"},
					&cli.StringFlag{Name: flagDictionary, Value: "ARUCOGO_5X5_250", Usage: "dictionary name"},
					&cli.PathFlag{Name: flagDictFile, Usage: "OpenCV dictionary export; overrides --dictionary"},
					&cli.PathFlag{Name: flagPath, Value: "./checkerboard.tiff", Usage: "output image path"},
					&cli.IntFlag{Name: flagOutX, Usage: "output width in pixels (default: 300 * square-x)"},
					&cli.IntFlag{Name: flagOutY, Usage: "output height in pixels (default: 300 * square-y)"},
				},
				Action: BoardAction,
			},
			{
				Name:      "scan",
				Usage:     "detect markers in images and print one JSON record per image",
				ArgsUsage: "IMAGE...",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: flagParams, Usage: "JSON file of detector parameters"},
					&cli.PathFlag{Name: flagCameraInfo, Usage: "JSON camera info; enables pose estimation"},
					&cli.BoolFlag{Name: flagInverted, Usage: "also look for white-on-black markers"},
					&cli.IntFlag{Name: flagJobs, Usage: "images scanned at once (default: number of CPUs)"},
				},
				Action: ScanAction,
			},
			{
				Name:   "dictionaries",
				Usage:  "list the generated standard dictionaries",
				Action: DictionariesAction,
			},
		},
	}
}

func loggerFrom(c *cli.Context) *zap.Logger {
	if logger, ok := c.App.Metadata[loggerKey].(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}
