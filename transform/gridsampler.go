package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	arucogo "github.com/ericlevine/arucogo"
)

// GridSampler lays a Cells x Cells grid over the unit square, maps it into the
// image through a perspective transform and averages a PerCell x PerCell set
// of bilinear samples inside each cell.
type GridSampler struct {
	Cells   int
	PerCell int
	// Margin is the fraction of the cell width left unsampled on each side.
	Margin float64
}

// Grid holds the result of GridSampler.Sample.
type Grid struct {
	Cells int
	// Means is row-major, one mean intensity per cell.
	Means []float64
	// Samples holds every individual sample, cell by cell.
	Samples []float64
}

// Mean returns the mean intensity of cell (x, y).
func (g *Grid) Mean(x, y int) float64 {
	return g.Means[y*g.Cells+x]
}

// Sample maps the grid through t and samples src.
func (s GridSampler) Sample(src arucogo.LuminanceSource, t *Perspective) (*Grid, error) {
	if s.Cells <= 0 || s.PerCell <= 0 {
		return nil, errors.Wrapf(arucogo.ErrInvalidParameter, "grid of %d cells, %d samples per cell", s.Cells, s.PerCell)
	}
	if s.Margin < 0 || s.Margin >= 0.5 {
		return nil, errors.Wrapf(arucogo.ErrInvalidParameter, "cell margin %v", s.Margin)
	}
	perCell := s.PerCell * s.PerCell
	g := &Grid{
		Cells:   s.Cells,
		Means:   make([]float64, s.Cells*s.Cells),
		Samples: make([]float64, 0, s.Cells*s.Cells*perCell),
	}
	cell := 1 / float64(s.Cells)
	inner := 1 - 2*s.Margin
	points := make([]r2.Point, perCell)
	for cy := 0; cy < s.Cells; cy++ {
		for cx := 0; cx < s.Cells; cx++ {
			for j := 0; j < s.PerCell; j++ {
				v := (float64(cy) + s.Margin + inner*(float64(j)+0.5)/float64(s.PerCell)) * cell
				for i := 0; i < s.PerCell; i++ {
					u := (float64(cx) + s.Margin + inner*(float64(i)+0.5)/float64(s.PerCell)) * cell
					points[j*s.PerCell+i] = r2.Point{X: u, Y: v}
				}
			}
			t.ApplyAll(points)
			if err := checkAndNudgePoints(src, points); err != nil {
				return nil, err
			}
			sum := 0.0
			for _, p := range points {
				value, ok := arucogo.Bilinear(src, p.X, p.Y)
				if !ok {
					return nil, arucogo.ErrNotFound
				}
				sum += value
				g.Samples = append(g.Samples, value)
			}
			g.Means[cy*s.Cells+cx] = sum / float64(perCell)
		}
	}
	return g, nil
}

// checkAndNudgePoints pulls points lying within one pixel outside the image
// back onto its edge and fails for anything further out.
func checkAndNudgePoints(src arucogo.LuminanceSource, points []r2.Point) error {
	width := float64(src.Width())
	height := float64(src.Height())
	for i, p := range points {
		if p.X < -1 || p.X > width+1 || p.Y < -1 || p.Y > height+1 || math.IsNaN(p.X) || math.IsNaN(p.Y) {
			return arucogo.ErrNotFound
		}
		if p.X < 0 {
			points[i].X = 0
		} else if p.X > width {
			points[i].X = width
		}
		if p.Y < 0 {
			points[i].Y = 0
		} else if p.Y > height {
			points[i].Y = height
		}
	}
	return nil
}
