package domain

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/sparse"
)

// longitudeModulus is the period of circular longitude coordinates.
const longitudeModulus = 360.0

// ExtractIndices returns the sub-cube holding, along dim, the cells at idx in
// the given order. A lazy cube stays lazy.
func (c *Cube) ExtractIndices(dim int, idx []int) (*Cube, error) {
	if dim < 0 || dim >= len(c.shape) {
		return nil, fmt.Errorf("dimension %d out of range for %d-D cube", dim, len(c.shape))
	}
	for _, i := range idx {
		if i < 0 || i >= c.shape[dim] {
			return nil, fmt.Errorf("index %d out of range for dimension %d of length %d", i, dim, c.shape[dim])
		}
	}
	inShape := c.Shape()
	out := c.Copy()
	out.shape[dim] = len(idx)
	if coord := out.DimCoords[dim]; coord != nil {
		out.DimCoords[dim] = coord.take(idx)
	}
	for i, aux := range out.AuxCoords {
		for p, d := range aux.Dims {
			if d != dim {
				continue
			}
			if aux.Coord.NDim() == 1 {
				out.AuxCoords[i].Coord = aux.Coord.take(idx)
			} else {
				out.AuxCoords[i].Coord = aux.Coord.takeAxis(p, idx)
			}
		}
	}

	if out.data != nil {
		out.data, out.mask = gatherAlong(out.data, out.mask, inShape, dim, idx)
	} else if parent := c.loader; parent != nil {
		out.loader = func() (*sparse.DenseArray, []bool, error) {
			data, mask, err := parent()
			if err != nil {
				return nil, nil, err
			}
			data, mask = gatherAlong(data, mask, inShape, dim, idx)
			return data, mask, nil
		}
	}
	return out, nil
}

// Intersection selects the cells of the named 1-D coordinate that lie in
// [minVal, maxVal]. A bounded coordinate keeps every cell whose bounds
// overlap the range; cells that only touch it at an edge are dropped unless
// the range is a single value. An unbounded coordinate keeps the cells whose
// points fall inside the range.
//
// Longitude is treated as circular: each cell is shifted by a multiple of
// 360 so that it falls in the range, preferring a point in
// [minVal, minVal+360), and the result is ordered by the shifted points with
// bounds moved alongside.
func (c *Cube) Intersection(name string, minVal, maxVal float64) (*Cube, error) {
	coord, dims, err := c.Coord(name)
	if err != nil {
		return nil, err
	}
	if coord.NDim() != 1 || len(dims) != 1 || coord.IsLabel() {
		return nil, fmt.Errorf("intersection requires a 1-D numeric coordinate, %q is %d-D", name, coord.NDim())
	}
	if minVal > maxVal {
		return nil, &InvalidRangeError{Coord: name, Min: minVal, Max: maxVal}
	}
	dim := dims[0]
	bounded := coord.HasBounds()
	inside := func(i int, shift float64) bool {
		if bounded {
			b := coord.Bounds[i]
			return overlaps(b[0]+shift, b[1]+shift, minVal, maxVal)
		}
		p := coord.Points[i] + shift
		return p >= minVal && p <= maxVal
	}
	empty := &EmptySelectionError{Coord: name, Range: &[2]float64{minVal, maxVal}}

	if coord.Name != "longitude" {
		var idx []int
		for i := range coord.Points {
			if inside(i, 0) {
				idx = append(idx, i)
			}
		}
		if len(idx) == 0 {
			return nil, empty
		}
		return c.ExtractIndices(dim, idx)
	}

	type wrapped struct {
		index int
		shift float64
		value float64
	}
	var cells []wrapped
	for i, p := range coord.Points {
		w := minVal + wrapMod(p-minVal, longitudeModulus)
		for _, shift := range []float64{w - p, w - p - longitudeModulus} {
			if inside(i, shift) {
				cells = append(cells, wrapped{index: i, shift: shift, value: p + shift})
				break
			}
		}
	}
	if len(cells) == 0 {
		return nil, empty
	}
	sort.SliceStable(cells, func(i, j int) bool { return cells[i].value < cells[j].value })

	idx := make([]int, len(cells))
	for i, cell := range cells {
		idx[i] = cell.index
	}
	out, err := c.ExtractIndices(dim, idx)
	if err != nil {
		return nil, err
	}
	lon, _, err := out.Coord(name)
	if err != nil {
		return nil, err
	}
	for i, cell := range cells {
		lon.Points[i] += cell.shift
		if lon.HasBounds() {
			lon.Bounds[i][0] += cell.shift
			lon.Bounds[i][1] += cell.shift
		}
	}
	return out, nil
}

// overlaps reports whether the cell [lo, hi] shares more than an edge with
// [minVal, maxVal], or contains it when the range is a single value.
func overlaps(lo, hi, minVal, maxVal float64) bool {
	if lo > hi {
		lo, hi = hi, lo
	}
	if minVal == maxVal {
		return lo <= minVal && minVal <= hi
	}
	return lo < maxVal && hi > minVal
}

// wrapMod returns x modulo m in [0, m).
func wrapMod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	return r
}

// NormalizeLon360 maps a longitude into [0, 360).
func NormalizeLon360(lon float64) float64 {
	return wrapMod(lon, longitudeModulus)
}

// gatherAlong selects idx along dim of a row-major array of shape.
func gatherAlong(data *sparse.DenseArray, mask []bool, shape []int, dim int, idx []int) (*sparse.DenseArray, []bool) {
	outShape := append([]int(nil), shape...)
	outShape[dim] = len(idx)
	out := NewArray(outShape...)
	var outMask []bool
	if mask != nil {
		outMask = make([]bool, len(out.Elements))
	}
	inStrides := strides(shape)
	pos := make([]int, len(outShape))
	for o := range out.Elements {
		unravel(o, outShape, pos)
		in := 0
		for d, p := range pos {
			if d == dim {
				p = idx[p]
			}
			in += p * inStrides[d]
		}
		out.Elements[o] = data.Elements[in]
		if mask != nil {
			outMask[o] = mask[in]
		}
	}
	return out, outMask
}

// takeAxis selects idx along axis of a multi-dimensional coordinate.
func (c *Coord) takeAxis(axis int, idx []int) *Coord {
	out := &Coord{Name: c.Name, VarName: c.VarName, Units: c.Units}
	points := NewArray(c.Shape...)
	points.Elements = c.Points
	gathered, _ := gatherAlong(points, nil, c.Shape, axis, idx)
	out.Points = gathered.Elements
	out.Shape = append([]int(nil), c.Shape...)
	out.Shape[axis] = len(idx)
	return out
}
