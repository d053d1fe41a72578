// Package board describes ChArUco calibration boards: a chessboard whose
// white squares each hold one marker.
//
// Squares are indexed by column i (left to right) and row j (top to bottom).
// Square (0, 0) is black and colours alternate, so markers occupy the squares
// where i+j is odd and take ids 0, 1, 2, ... in row-major order from the top
// left. The board frame has its origin at the bottom-left corner of the board,
// x to the right, y up and z out of the printed face.
package board

import (
	"image"
	"image/color"
	"math"
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	arucogo "github.com/ericlevine/arucogo"
	"github.com/ericlevine/arucogo/dictionary"
	"github.com/ericlevine/arucogo/pose"
	"github.com/ericlevine/arucogo/render"
)

// ChildFrameID names the transform child frame of a board pose.
const ChildFrameID = "charuco_board"

// Board is an immutable ChArUco board layout.
type Board struct {
	squaresX     int
	squaresY     int
	squareLength float64
	markerLength float64
	dict         *dictionary.Dictionary
	squares      []image.Point
}

// New returns a board of squaresX x squaresY squares. Lengths share one unit,
// normally meters.
func New(squaresX, squaresY int, squareLength, markerLength float64, dict *dictionary.Dictionary) (*Board, error) {
	switch {
	case squaresX < 2 || squaresY < 2:
		return nil, errors.Wrapf(arucogo.ErrInvalidParameter, "board of %dx%d squares", squaresX, squaresY)
	case markerLength <= 0 || squareLength <= markerLength:
		return nil, errors.Wrapf(arucogo.ErrInvalidParameter,
			"marker length %v must be positive and below square length %v", markerLength, squareLength)
	case dict == nil:
		return nil, errors.Wrap(arucogo.ErrInvalidParameter, "nil dictionary")
	}
	b := &Board{
		squaresX:     squaresX,
		squaresY:     squaresY,
		squareLength: squareLength,
		markerLength: markerLength,
		dict:         dict,
	}
	for j := 0; j < squaresY; j++ {
		for i := 0; i < squaresX; i++ {
			if (i+j)%2 == 1 {
				b.squares = append(b.squares, image.Pt(i, j))
			}
		}
	}
	if len(b.squares) > dict.Len() {
		return nil, errors.Wrapf(arucogo.ErrInvalidParameter,
			"board needs %d markers, %s has %d", len(b.squares), dict.Name(), dict.Len())
	}
	return b, nil
}

// Size returns the number of squares along x and y.
func (b *Board) Size() (int, int) { return b.squaresX, b.squaresY }

// SquareLength returns the side of one chessboard square.
func (b *Board) SquareLength() float64 { return b.squareLength }

// MarkerLength returns the side of one marker.
func (b *Board) MarkerLength() float64 { return b.markerLength }

// Dictionary returns the dictionary markers are drawn from.
func (b *Board) Dictionary() *dictionary.Dictionary { return b.dict }

// NumMarkers returns the number of markers on the board.
func (b *Board) NumMarkers() int { return len(b.squares) }

// Square returns the column and row of the square holding marker id.
func (b *Board) Square(id int) (image.Point, bool) {
	if id < 0 || id >= len(b.squares) {
		return image.Point{}, false
	}
	return b.squares[id], true
}

// MarkerCorners returns the corners of marker id in the board frame, in the
// canonical marker order: top-left, top-right, bottom-right, bottom-left.
func (b *Board) MarkerCorners(id int) ([]r3.Vector, bool) {
	sq, ok := b.Square(id)
	if !ok {
		return nil, false
	}
	center := r3.Vector{
		X: (float64(sq.X) + 0.5) * b.squareLength,
		Y: (float64(b.squaresY-sq.Y) - 0.5) * b.squareLength,
	}
	corners := pose.MarkerCorners(b.markerLength)
	for i := range corners {
		corners[i] = corners[i].Add(center)
	}
	return corners, true
}

// Render draws the board into a width x height image. The board keeps its
// aspect ratio and is centred, with white padding filling the rest.
func (b *Board) Render(width, height int) (*image.Gray, error) {
	side := min(width/b.squaresX, height/b.squaresY)
	markerSide := int(math.Round(float64(side) * b.markerLength / b.squareLength))
	if markerSide < b.dict.Bits()+2 {
		return nil, errors.Wrapf(arucogo.ErrInvalidParameter,
			"%dx%d pixels are too small for a %dx%d board", width, height, b.squaresX, b.squaresY)
	}
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	origin := image.Pt((width-side*b.squaresX)/2, (height-side*b.squaresY)/2)
	black := color.Gray{Y: 0}
	for j := 0; j < b.squaresY; j++ {
		for i := 0; i < b.squaresX; i++ {
			if (i+j)%2 == 1 {
				continue
			}
			at := origin.Add(image.Pt(i*side, j*side))
			for y := at.Y; y < at.Y+side; y++ {
				for x := at.X; x < at.X+side; x++ {
					img.SetGray(x, y, black)
				}
			}
		}
	}
	inset := (side - markerSide) / 2
	for id, sq := range b.squares {
		code, err := b.dict.Codeword(id)
		if err != nil {
			return nil, err
		}
		at := origin.Add(image.Pt(sq.X*side+inset, sq.Y*side+inset))
		render.Draw(img, image.Rectangle{Min: at, Max: at.Add(image.Pt(markerSide, markerSide))}, render.MarkerMatrix(code))
	}
	return img, nil
}

// Pose is the pose of the whole board in the camera's publishing frame.
type Pose struct {
	Position    r3.Vector
	Orientation quat.Number
	FrameID     string
	Stamp       time.Time
	// MarkerIDs lists the detected markers the pose was fitted to.
	MarkerIDs []int
}

// Transform converts the pose into a parent->board transform.
func (p Pose) Transform() arucogo.Transform {
	return arucogo.Transform{
		FrameID:      p.FrameID,
		ChildFrameID: ChildFrameID,
		Stamp:        p.Stamp,
		Translation:  p.Position,
		Rotation:     p.Orientation,
	}
}

// EstimatePose fits the board pose to every detected marker that belongs to
// the board, using all of their corners at once. Markers with ids outside the
// board are ignored; ErrNotFound is returned when none remain.
func (b *Board) EstimatePose(markers []arucogo.DecodedMarker, resolver *pose.Resolver,
	cam pose.CameraInfo, stamp time.Time) (Pose, error) {
	var (
		object []r3.Vector
		img    []r2.Point
		ids    []int
	)
	for _, m := range markers {
		corners, ok := b.MarkerCorners(m.ID)
		if !ok {
			continue
		}
		object = append(object, corners...)
		img = append(img, m.Corners[:]...)
		ids = append(ids, m.ID)
	}
	if len(ids) == 0 {
		return Pose{}, errors.Wrap(arucogo.ErrNotFound, "no board markers detected")
	}
	position, orientation, err := resolver.Fit(object, img, cam)
	if err != nil {
		return Pose{}, errors.Wrap(err, "board pose")
	}
	return Pose{
		Position:    position,
		Orientation: orientation,
		FrameID:     resolver.FrameID(cam),
		Stamp:       stamp,
		MarkerIDs:   ids,
	}, nil
}
