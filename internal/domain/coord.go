package domain

import (
	"fmt"
	"math"
)

// Coord is a coordinate attached to a cube. Numeric coordinates carry Points,
// label coordinates (e.g. region) carry Labels. Points of 2-D coordinates are
// stored row-major with Shape giving their extent.
type Coord struct {
	Name    string // Standard name, e.g. "latitude".
	VarName string // Variable name in the source file.
	Units   string

	Points []float64
	Labels []string
	Bounds [][2]float64 // Optional cell bounds, 1-D coordinates only.
	Shape  []int
}

// NewDimCoord creates a 1-D numeric coordinate.
func NewDimCoord(name, units string, points []float64, bounds [][2]float64) *Coord {
	return &Coord{
		Name:   name,
		Units:  units,
		Points: points,
		Bounds: bounds,
		Shape:  []int{len(points)},
	}
}

// NewLabelCoord creates a 1-D string coordinate.
func NewLabelCoord(name string, labels []string) *Coord {
	return &Coord{
		Name:   name,
		Units:  "1",
		Labels: labels,
		Shape:  []int{len(labels)},
	}
}

// NewCoord2D creates a 2-D numeric coordinate (curvilinear grids).
func NewCoord2D(name, units string, points []float64, ny, nx int) *Coord {
	return &Coord{
		Name:   name,
		Units:  units,
		Points: points,
		Shape:  []int{ny, nx},
	}
}

// NDim returns the number of dimensions the coordinate spans.
func (c *Coord) NDim() int {
	return len(c.Shape)
}

// Len returns the total number of points.
func (c *Coord) Len() int {
	if c.IsLabel() {
		return len(c.Labels)
	}
	return len(c.Points)
}

// IsLabel reports whether the coordinate holds string labels.
func (c *Coord) IsLabel() bool {
	return c.Labels != nil
}

// HasBounds reports whether cell bounds are present.
func (c *Coord) HasBounds() bool {
	return len(c.Bounds) > 0 && len(c.Bounds) == len(c.Points)
}

// GuessBounds derives contiguous bounds from point spacing. Inner bounds are
// midpoints between neighbours, outer bounds extrapolate half a step.
func (c *Coord) GuessBounds() error {
	if c.NDim() != 1 || c.IsLabel() {
		return fmt.Errorf("cannot guess bounds for %d-D coordinate %q", c.NDim(), c.Name)
	}
	n := len(c.Points)
	if n < 2 {
		return fmt.Errorf("cannot guess bounds for coordinate %q with %d point(s)", c.Name, n)
	}
	edges := make([]float64, n+1)
	for i := 1; i < n; i++ {
		edges[i] = (c.Points[i-1] + c.Points[i]) / 2
	}
	edges[0] = c.Points[0] - (edges[1] - c.Points[0])
	edges[n] = c.Points[n-1] + (c.Points[n-1] - edges[n-1])

	bounds := make([][2]float64, n)
	for i := range bounds {
		bounds[i] = [2]float64{edges[i], edges[i+1]}
	}
	c.Bounds = bounds
	return nil
}

// Copy returns a deep copy of the coordinate.
func (c *Coord) Copy() *Coord {
	out := &Coord{
		Name:    c.Name,
		VarName: c.VarName,
		Units:   c.Units,
	}
	if c.Points != nil {
		out.Points = append([]float64(nil), c.Points...)
	}
	if c.Labels != nil {
		out.Labels = append([]string(nil), c.Labels...)
	}
	if c.Bounds != nil {
		out.Bounds = append([][2]float64(nil), c.Bounds...)
	}
	out.Shape = append([]int(nil), c.Shape...)
	return out
}

// take returns a 1-D coordinate holding only the given indices.
func (c *Coord) take(idx []int) *Coord {
	out := &Coord{
		Name:    c.Name,
		VarName: c.VarName,
		Units:   c.Units,
		Shape:   []int{len(idx)},
	}
	if c.IsLabel() {
		out.Labels = make([]string, len(idx))
		for i, j := range idx {
			out.Labels[i] = c.Labels[j]
		}
		return out
	}
	out.Points = make([]float64, len(idx))
	for i, j := range idx {
		out.Points[i] = c.Points[j]
	}
	if c.HasBounds() {
		out.Bounds = make([][2]float64, len(idx))
		for i, j := range idx {
			out.Bounds[i] = c.Bounds[j]
		}
	}
	return out
}

// collapsedScalar returns the scalar coordinate left after collapsing c.
// The point is the midpoint of the covered range.
func (c *Coord) collapsedScalar() *Coord {
	out := &Coord{Name: c.Name, VarName: c.VarName, Units: c.Units, Shape: []int{1}}
	if c.IsLabel() {
		label := ""
		if len(c.Labels) > 0 {
			label = c.Labels[0]
			for _, l := range c.Labels[1:] {
				label += "|" + l
			}
		}
		out.Labels = []string{label}
		return out
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	if c.HasBounds() {
		for _, b := range c.Bounds {
			lo = math.Min(lo, math.Min(b[0], b[1]))
			hi = math.Max(hi, math.Max(b[0], b[1]))
		}
	} else {
		for _, p := range c.Points {
			lo = math.Min(lo, p)
			hi = math.Max(hi, p)
		}
	}
	out.Points = []float64{(lo + hi) / 2}
	out.Bounds = [][2]float64{{lo, hi}}
	return out
}
