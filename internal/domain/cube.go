package domain

import (
	"fmt"

	"github.com/ctessum/sparse"
)

// LoadFunc materializes a deferred cube payload. The returned mask is nil
// when no cell is masked.
type LoadFunc func() (*sparse.DenseArray, []bool, error)

// AuxCoord is an auxiliary coordinate together with the cube dimensions it
// spans, in order.
type AuxCoord struct {
	Coord *Coord
	Dims  []int
}

// Cube is an N-dimensional labelled array: a data payload plus the
// coordinates describing each dimension.
type Cube struct {
	Name       string // Standard or long name, e.g. "air_temperature".
	VarName    string
	Units      string
	Attributes map[string]string

	DimCoords    []*Coord // One entry per dimension, nil when the dimension has none.
	AuxCoords    []AuxCoord
	ScalarCoords []*Coord
	CellMethods  []string

	shape  []int
	data   *sparse.DenseArray
	mask   []bool
	loader LoadFunc
}

// NewCube creates a realized cube around data.
func NewCube(name, units string, data *sparse.DenseArray) *Cube {
	shape := append([]int(nil), data.Shape...)
	return &Cube{
		Name:       name,
		Units:      units,
		Attributes: map[string]string{},
		DimCoords:  make([]*Coord, len(shape)),
		shape:      shape,
		data:       data,
	}
}

// NewLazyCube creates a cube whose payload is read on first access.
func NewLazyCube(name, units string, shape []int, load LoadFunc) *Cube {
	shape = append([]int(nil), shape...)
	return &Cube{
		Name:       name,
		Units:      units,
		Attributes: map[string]string{},
		DimCoords:  make([]*Coord, len(shape)),
		shape:      shape,
		loader:     load,
	}
}

// NewArray allocates a zero-filled payload of the given shape.
func NewArray(shape ...int) *sparse.DenseArray {
	return sparse.ZerosDense(append([]int(nil), shape...)...)
}

// Shape returns a copy of the cube shape.
func (c *Cube) Shape() []int {
	return append([]int(nil), c.shape...)
}

// NDim returns the number of dimensions.
func (c *Cube) NDim() int {
	return len(c.shape)
}

// Size returns the number of cells.
func (c *Cube) Size() int {
	return product(c.shape)
}

// IsLazy reports whether the payload has not been materialized yet.
func (c *Cube) IsLazy() bool {
	return c.data == nil && c.loader != nil
}

// Realize forces the deferred payload into memory.
func (c *Cube) Realize() error {
	if c.data != nil {
		return nil
	}
	if c.loader == nil {
		return fmt.Errorf("cube %q has no data", c.Name)
	}
	data, mask, err := c.loader()
	if err != nil {
		return fmt.Errorf("failed to realize cube %q: %w", c.Name, err)
	}
	if !shapesEqual(data.Shape, c.shape) {
		return &ShapeMismatchError{What: "loaded data", WeightShape: data.Shape, CubeShape: c.shape}
	}
	c.data = data
	c.mask = mask
	c.loader = nil
	return nil
}

// Data realizes and returns the payload.
func (c *Cube) Data() (*sparse.DenseArray, error) {
	if err := c.Realize(); err != nil {
		return nil, err
	}
	return c.data, nil
}

// Mask returns the cell mask of a realized cube, nil when nothing is masked.
func (c *Cube) Mask() []bool {
	return c.mask
}

// IsMasked reports whether the cell at flat index i is masked.
func (c *Cube) IsMasked(i int) bool {
	return c.mask != nil && c.mask[i]
}

// SetData replaces the payload. mask may be nil.
func (c *Cube) SetData(data *sparse.DenseArray, mask []bool) error {
	if !shapesEqual(data.Shape, c.shape) {
		return &ShapeMismatchError{What: "data", WeightShape: data.Shape, CubeShape: c.shape}
	}
	if mask != nil && len(mask) != len(data.Elements) {
		return fmt.Errorf("mask length %d does not match data size %d", len(mask), len(data.Elements))
	}
	c.data = data
	c.mask = mask
	c.loader = nil
	return nil
}

// AddDimCoord attaches coord to dimension dim.
func (c *Cube) AddDimCoord(coord *Coord, dim int) error {
	if dim < 0 || dim >= len(c.shape) {
		return fmt.Errorf("dimension %d out of range for %d-D cube", dim, len(c.shape))
	}
	if coord.NDim() != 1 || coord.Len() != c.shape[dim] {
		return fmt.Errorf("coordinate %q of shape %v does not fit dimension %d of length %d",
			coord.Name, coord.Shape, dim, c.shape[dim])
	}
	c.DimCoords[dim] = coord
	return nil
}

// AddAuxCoord attaches coord spanning dims.
func (c *Cube) AddAuxCoord(coord *Coord, dims ...int) error {
	if len(dims) != coord.NDim() {
		return fmt.Errorf("coordinate %q is %d-D but %d dimension(s) given", coord.Name, coord.NDim(), len(dims))
	}
	for i, d := range dims {
		if d < 0 || d >= len(c.shape) || coord.Shape[i] != c.shape[d] {
			return fmt.Errorf("coordinate %q of shape %v does not fit dimensions %v of cube shape %v",
				coord.Name, coord.Shape, dims, c.shape)
		}
	}
	c.AuxCoords = append(c.AuxCoords, AuxCoord{Coord: coord, Dims: append([]int(nil), dims...)})
	return nil
}

// AddScalarCoord attaches a single-valued coordinate.
func (c *Cube) AddScalarCoord(coord *Coord) {
	c.ScalarCoords = append(c.ScalarCoords, coord)
}

// Coord looks up a coordinate by standard name or variable name and returns
// it with the dimensions it spans (empty for scalar coordinates).
func (c *Cube) Coord(name string) (*Coord, []int, error) {
	for d, coord := range c.DimCoords {
		if coord != nil && coord.matches(name) {
			return coord, []int{d}, nil
		}
	}
	for _, aux := range c.AuxCoords {
		if aux.Coord.matches(name) {
			return aux.Coord, aux.Dims, nil
		}
	}
	for _, coord := range c.ScalarCoords {
		if coord.matches(name) {
			return coord, nil, nil
		}
	}
	return nil, nil, &CoordNotFoundError{Name: name, Cube: c.Name}
}

// HasCoord reports whether a coordinate with that name exists.
func (c *Cube) HasCoord(name string) bool {
	_, _, err := c.Coord(name)
	return err == nil
}

func (coord *Coord) matches(name string) bool {
	return coord.Name == name || (coord.VarName != "" && coord.VarName == name)
}

// Copy returns a deep copy. A lazy cube stays lazy and shares its loader.
func (c *Cube) Copy() *Cube {
	out := &Cube{
		Name:        c.Name,
		VarName:     c.VarName,
		Units:       c.Units,
		Attributes:  make(map[string]string, len(c.Attributes)),
		DimCoords:   make([]*Coord, len(c.DimCoords)),
		CellMethods: append([]string(nil), c.CellMethods...),
		shape:       c.Shape(),
		loader:      c.loader,
	}
	for k, v := range c.Attributes {
		out.Attributes[k] = v
	}
	for i, coord := range c.DimCoords {
		if coord != nil {
			out.DimCoords[i] = coord.Copy()
		}
	}
	for _, aux := range c.AuxCoords {
		out.AuxCoords = append(out.AuxCoords, AuxCoord{Coord: aux.Coord.Copy(), Dims: append([]int(nil), aux.Dims...)})
	}
	for _, coord := range c.ScalarCoords {
		out.ScalarCoords = append(out.ScalarCoords, coord.Copy())
	}
	if c.data != nil {
		out.data = c.data.Copy()
		out.data.Shape = out.Shape()
	}
	if c.mask != nil {
		out.mask = append([]bool(nil), c.mask...)
	}
	return out
}

// Squeeze removes a length-one dimension, turning its coordinates into
// scalar coordinates.
func (c *Cube) Squeeze(dim int) (*Cube, error) {
	if dim < 0 || dim >= len(c.shape) || c.shape[dim] != 1 {
		return nil, fmt.Errorf("cannot squeeze dimension %d of cube shape %v", dim, c.shape)
	}
	out := c.Copy()
	out.shape = append(append([]int(nil), c.shape[:dim]...), c.shape[dim+1:]...)
	if coord := out.DimCoords[dim]; coord != nil {
		coord.Shape = []int{1}
		out.ScalarCoords = append(out.ScalarCoords, coord)
	}
	out.DimCoords = append(out.DimCoords[:dim:dim], out.DimCoords[dim+1:]...)

	aux := out.AuxCoords[:0]
	for _, a := range out.AuxCoords {
		if len(a.Dims) == 1 && a.Dims[0] == dim {
			a.Coord.Shape = []int{1}
			out.ScalarCoords = append(out.ScalarCoords, a.Coord)
			continue
		}
		for p, d := range a.Dims {
			if d == dim {
				a.Coord.Shape = append(a.Coord.Shape[:p:p], a.Coord.Shape[p+1:]...)
				break
			}
		}
		a.Dims = dropDim(a.Dims, dim)
		aux = append(aux, a)
	}
	out.AuxCoords = aux

	reshape := func(data *sparse.DenseArray) *sparse.DenseArray {
		reshaped := NewArray(out.shape...)
		reshaped.Elements = data.Elements
		return reshaped
	}
	if out.data != nil {
		out.data = reshape(out.data)
	} else if parent := c.loader; parent != nil {
		out.loader = func() (*sparse.DenseArray, []bool, error) {
			data, mask, err := parent()
			if err != nil {
				return nil, nil, err
			}
			return reshape(data), mask, nil
		}
	}
	return out, nil
}

// dropDim removes dim from dims and shifts higher dimensions down.
func dropDim(dims []int, dim int) []int {
	out := make([]int, 0, len(dims))
	for _, d := range dims {
		switch {
		case d < dim:
			out = append(out, d)
		case d > dim:
			out = append(out, d-1)
		}
	}
	return out
}

func shapesEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ShapesEqual reports whether two shapes are identical.
func ShapesEqual(a, b []int) bool {
	return shapesEqual(a, b)
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// strides returns row-major strides for shape.
func strides(shape []int) []int {
	out := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		out[i] = acc
		acc *= shape[i]
	}
	return out
}

// Unravel converts a flat row-major index into idx, which must have
// len(shape) entries.
func Unravel(flat int, shape []int, idx []int) {
	unravel(flat, shape, idx)
}

// unravel converts a flat row-major index into idx (len(shape) entries).
func unravel(flat int, shape []int, idx []int) {
	for i := len(shape) - 1; i >= 0; i-- {
		if shape[i] == 0 {
			idx[i] = 0
			continue
		}
		idx[i] = flat % shape[i]
		flat /= shape[i]
	}
}
