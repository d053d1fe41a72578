package node

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/num/quat"

	arucogo "github.com/ericlevine/arucogo"
)

// Publisher delivers frame results to their consumers.
type Publisher interface {
	Publish(ctx context.Context, r FrameResult) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, r FrameResult) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, r FrameResult) error { return f(ctx, r) }

// LogPublisher writes a one-line summary of every result to a logger.
type LogPublisher struct {
	Logger *zap.Logger
}

// Publish implements Publisher.
func (p LogPublisher) Publish(_ context.Context, r FrameResult) error {
	p.Logger.Info("markers",
		zap.Time("stamp", r.Stamp),
		zap.String("frame_id", r.FrameID),
		zap.Ints("ids", lo.Map(r.Markers, func(m arucogo.DecodedMarker, _ int) int { return m.ID })),
		zap.Int("poses", len(r.Poses)),
		zap.Bool("board", r.Board != nil))
	return nil
}

// Vector is a position in a JSON record.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is an orientation in a JSON record, in x, y, z, w order.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// PoseRecord is one pose in a JSON record.
type PoseRecord struct {
	Position    Vector     `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// MarkerRecord is one detection in a JSON record.
type MarkerRecord struct {
	ID       int           `json:"id"`
	Corners  [4][2]float64 `json:"corners"`
	Rotation int           `json:"rotation"`
	Distance int           `json:"distance"`
	Pose     *PoseRecord   `json:"pose,omitempty"`
}

// TransformRecord is one transform in a JSON record.
type TransformRecord struct {
	FrameID      string     `json:"frame_id"`
	ChildFrameID string     `json:"child_frame_id"`
	Pose         PoseRecord `json:"transform"`
}

// Record is the JSON form of a FrameResult.
type Record struct {
	Source     string            `json:"source,omitempty"`
	Stamp      time.Time         `json:"stamp"`
	FrameID    string            `json:"frame_id,omitempty"`
	Markers    []MarkerRecord    `json:"markers"`
	Transforms []TransformRecord `json:"transforms,omitempty"`
	Board      *PoseRecord       `json:"charuco_board,omitempty"`
}

func poseRecord(position r3.Vector, q quat.Number) PoseRecord {
	return PoseRecord{
		Position:    Vector{X: position.X, Y: position.Y, Z: position.Z},
		Orientation: Quaternion{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real},
	}
}

// NewRecord converts r for encoding. Poses are attached to the marker with
// the same id.
func NewRecord(r FrameResult) Record {
	poses := lo.KeyBy(r.Poses, func(p arucogo.MarkerPose) int { return p.ID })
	rec := Record{
		Stamp:   r.Stamp,
		FrameID: r.FrameID,
		Markers: make([]MarkerRecord, 0, len(r.Markers)),
	}
	for _, m := range r.Markers {
		mr := MarkerRecord{ID: m.ID, Rotation: m.Rotation, Distance: m.Distance}
		for i, c := range m.Corners {
			mr.Corners[i] = [2]float64{c.X, c.Y}
		}
		if p, ok := poses[m.ID]; ok {
			pr := poseRecord(p.Position, p.Orientation)
			mr.Pose = &pr
		}
		rec.Markers = append(rec.Markers, mr)
	}
	for _, t := range r.Transforms {
		rec.Transforms = append(rec.Transforms, TransformRecord{
			FrameID:      t.FrameID,
			ChildFrameID: t.ChildFrameID,
			Pose:         poseRecord(t.Translation, t.Rotation),
		})
	}
	if r.Board != nil {
		br := poseRecord(r.Board.Position, r.Board.Orientation)
		rec.Board = &br
	}
	return rec
}

// JSONPublisher writes each result as one line of JSON.
type JSONPublisher struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONPublisher returns a publisher writing to w.
func NewJSONPublisher(w io.Writer) *JSONPublisher {
	return &JSONPublisher{enc: json.NewEncoder(w)}
}

// Publish implements Publisher.
func (p *JSONPublisher) Publish(_ context.Context, r FrameResult) error {
	return p.Write(NewRecord(r))
}

// Write encodes one record.
func (p *JSONPublisher) Write(rec Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Wrap(p.enc.Encode(rec), "encoding record")
}
