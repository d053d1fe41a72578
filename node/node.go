// Package node turns a stream of camera frames into marker detections and
// poses, the way the detector runs next to a live camera.
package node

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	arucogo "github.com/ericlevine/arucogo"
	"github.com/ericlevine/arucogo/board"
	"github.com/ericlevine/arucogo/config"
	"github.com/ericlevine/arucogo/decoder"
	"github.com/ericlevine/arucogo/detector"
	"github.com/ericlevine/arucogo/dictionary"
	"github.com/ericlevine/arucogo/pose"
	"github.com/ericlevine/arucogo/quad"
)

// ErrNoCameraInfo is returned for frames that arrive before any calibration.
var ErrNoCameraInfo = errors.New("no camera info has been received")

// Frame is one greyscale camera image.
type Frame struct {
	Image arucogo.LuminanceSource
	Stamp time.Time
}

// FrameResult is everything published for one frame.
type FrameResult struct {
	Stamp   time.Time
	FrameID string
	// Markers holds every decoded marker, corners in canonical order.
	Markers []arucogo.DecodedMarker
	// Poses holds the markers whose pose could be solved.
	Poses []arucogo.MarkerPose
	// Transforms is filled when publish_tf is set.
	Transforms []arucogo.Transform
	// Board is set when publish_charuco_pose is on and board markers were
	// seen.
	Board *board.Pose
}

// Stats counts frames seen by Run.
type Stats struct {
	// Processed counts frames run through detection.
	Processed int64
	// Dropped counts frames skipped for a newer one.
	Dropped int64
	// NoCameraInfo counts frames discarded before calibration arrived.
	NoCameraInfo int64
	// PublishFailed counts results the publisher did not accept.
	PublishFailed int64
}

// Node owns the dictionary, the detector and the pose resolver for one camera.
type Node struct {
	cfg       config.Config
	detector  *detector.Detector
	resolver  *pose.Resolver
	board     *board.Board
	publisher Publisher
	logger    *zap.Logger

	mu   sync.Mutex
	info *pose.CameraInfo

	processed     atomic.Int64
	dropped       atomic.Int64
	noCameraInfo  atomic.Int64
	publishFailed atomic.Int64
}

// New validates cfg and builds the dictionary. A dictionary that cannot be
// built is fatal; everything after start-up only ever skips frames.
func New(cfg config.Config, publisher Publisher, logger *zap.Logger) (*Node, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		return nil, errors.Wrap(arucogo.ErrInvalidParameter, "nil publisher")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	spec, err := cfg.DictionarySpec()
	if err != nil {
		return nil, err
	}
	dict, err := dictionary.FromSpec(spec)
	if err != nil {
		return nil, errors.Wrapf(err, "building dictionary %s", cfg.DictionaryID)
	}
	finderOpts, err := cfg.FinderOptions()
	if err != nil {
		return nil, err
	}
	samplerOpts, err := cfg.SamplerOptions()
	if err != nil {
		return nil, err
	}
	det, err := detector.New(decoder.New(dict), &detector.Options{
		Finder:         quad.NewContourFinder(finderOpts),
		Sampler:        samplerOpts,
		AlsoInverted:   cfg.AlsoInverted,
		KeepDuplicates: cfg.KeepDuplicateIDs,
		Logger:         logger.Named("detector"),
	})
	if err != nil {
		return nil, err
	}
	resolverOpts, err := cfg.ResolverOptions()
	if err != nil {
		return nil, err
	}
	resolver, err := pose.NewResolver(pose.NewHomographySolver(), cfg.MarkerSize, resolverOpts)
	if err != nil {
		return nil, err
	}
	n := &Node{
		cfg:       cfg,
		detector:  det,
		resolver:  resolver,
		publisher: publisher,
		logger:    logger,
	}
	if cfg.PublishCharucoPose {
		n.board, err = board.New(cfg.CharucoSquareX, cfg.CharucoSquareY, cfg.CharucoSquareLength, cfg.MarkerSize, dict)
		if err != nil {
			return nil, err
		}
	}
	logger.Info("detector ready",
		zap.String("dictionary", dict.Name()),
		zap.Int("markers", dict.Len()),
		zap.Int("error_radius", dict.ErrorRadius()),
		zap.String("image_topic", cfg.ImageTopic),
		zap.String("camera_info_topic", cfg.CameraInfoTopic))
	return n, nil
}

// HandleCameraInfo latches the calibration. The first valid message is kept
// and later ones are ignored, since the intrinsics of a running camera do not
// change.
func (n *Node) HandleCameraInfo(info pose.CameraInfo) error {
	if _, err := info.Intrinsics(); err != nil {
		return errors.Wrap(err, "camera info")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.info != nil {
		return nil
	}
	n.info = &info
	n.logger.Info("camera info received", zap.String("frame_id", info.FrameID),
		zap.Int("width", info.Width), zap.Int("height", info.Height))
	return nil
}

func (n *Node) cameraInfo() (pose.CameraInfo, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.info == nil {
		return pose.CameraInfo{}, false
	}
	return *n.info, true
}

// DetectMarkers detects markers in f without resolving poses, so it works
// before any camera info has arrived.
func (n *Node) DetectMarkers(f Frame) (FrameResult, error) {
	markers, err := n.detector.Detect(f.Image)
	if err != nil {
		return FrameResult{}, err
	}
	return FrameResult{Stamp: f.Stamp, FrameID: n.cfg.CameraFrame, Markers: markers}, nil
}

// ProcessFrame detects markers in f and resolves their poses. Pose failures
// are logged at debug level and leave the marker without a pose.
func (n *Node) ProcessFrame(f Frame) (FrameResult, error) {
	info, ok := n.cameraInfo()
	if !ok {
		return FrameResult{}, ErrNoCameraInfo
	}
	markers, err := n.detector.Detect(f.Image)
	if err != nil {
		return FrameResult{}, err
	}
	result := FrameResult{
		Stamp:   f.Stamp,
		FrameID: n.resolver.FrameID(info),
		Markers: markers,
	}
	var poseErrs error
	for _, m := range markers {
		p, err := n.resolver.Resolve(m, info, f.Stamp)
		if err != nil {
			poseErrs = multierr.Append(poseErrs, err)
			continue
		}
		result.Poses = append(result.Poses, p)
		if n.cfg.PublishTF {
			result.Transforms = append(result.Transforms, arucogo.TransformFromPose(p))
		}
	}
	if n.board != nil && len(markers) > 0 {
		bp, err := n.board.EstimatePose(markers, n.resolver, info, f.Stamp)
		switch {
		case err == nil:
			result.Board = &bp
			if n.cfg.PublishTF {
				result.Transforms = append(result.Transforms, bp.Transform())
			}
		case !errors.Is(err, arucogo.ErrNotFound):
			poseErrs = multierr.Append(poseErrs, err)
		}
	}
	if poseErrs != nil {
		n.logger.Debug("pose failures", zap.Errors("errors", multierr.Errors(poseErrs)))
	}
	return result, nil
}

// Run processes frames until ctx is done or frames is closed. Frames that
// queue up while one is processed are skipped in favour of the newest one.
// Results with no markers are not published. Failures of a single frame,
// publishing included, are logged and never end the loop.
func (n *Node) Run(ctx context.Context, frames <-chan Frame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			f = n.newest(f, frames)
			result, err := n.ProcessFrame(f)
			if errors.Is(err, ErrNoCameraInfo) {
				n.noCameraInfo.Inc()
				n.logger.Warn("dropping frame", zap.Error(err))
				continue
			}
			n.processed.Inc()
			if err != nil {
				n.logger.Error("frame failed", zap.Error(err))
				continue
			}
			if len(result.Markers) == 0 {
				continue
			}
			if err := n.publisher.Publish(ctx, result); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				n.publishFailed.Inc()
				n.logger.Error("publish failed", zap.Error(err), zap.Int("markers", len(result.Markers)))
			}
		}
	}
}

// newest drains frames without blocking and returns the last one received.
func (n *Node) newest(f Frame, frames <-chan Frame) Frame {
	for {
		select {
		case next, ok := <-frames:
			if !ok {
				return f
			}
			n.dropped.Inc()
			f = next
		default:
			return f
		}
	}
}

// Stats returns the frame counters of Run.
func (n *Node) Stats() Stats {
	return Stats{
		Processed:     n.processed.Load(),
		Dropped:       n.dropped.Load(),
		NoCameraInfo:  n.noCameraInfo.Load(),
		PublishFailed: n.publishFailed.Load(),
	}
}
