package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ctessum/sparse"
)

// Collapsed aggregates the cube over every dimension spanned by the named
// coordinates. weights, when non-nil, must have exactly the cube's shape and
// is only used by aggregators that support weighting. Masked cells are
// skipped; groups with no unmasked cell produce a masked result.
func (c *Cube) Collapsed(names []string, agg Aggregator, weights *sparse.DenseArray) (*Cube, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no coordinates given to collapse")
	}
	collapse := make(map[int]bool)
	for _, name := range names {
		_, dims, err := c.Coord(name)
		if err != nil {
			return nil, err
		}
		if len(dims) == 0 {
			return nil, fmt.Errorf("cannot collapse scalar coordinate %q", name)
		}
		for _, d := range dims {
			collapse[d] = true
		}
	}
	useWeights := weights != nil && agg.Weighted()
	if useWeights && !shapesEqual(weights.Shape, c.shape) {
		return nil, &ShapeMismatchError{What: "weights", WeightShape: weights.Shape, CubeShape: c.Shape()}
	}
	data, err := c.Data()
	if err != nil {
		return nil, err
	}

	// keep maps output dimension -> input dimension.
	var keep []int
	for d := range c.shape {
		if !collapse[d] {
			keep = append(keep, d)
		}
	}
	outShape := make([]int, len(keep))
	for i, d := range keep {
		outShape[i] = c.shape[d]
	}
	outStrides := strides(outShape)
	nOut := product(outShape)

	values := make([][]float64, nOut)
	var groupWeights [][]float64
	if useWeights {
		groupWeights = make([][]float64, nOut)
	}
	idx := make([]int, len(c.shape))
	for i, v := range data.Elements {
		if c.IsMasked(i) {
			continue
		}
		unravel(i, c.shape, idx)
		o := 0
		for k, d := range keep {
			o += idx[d] * outStrides[k]
		}
		values[o] = append(values[o], v)
		if useWeights {
			groupWeights[o] = append(groupWeights[o], weights.Elements[i])
		}
	}

	outData := NewArray(outShape...)
	var outMask []bool
	for o := range values {
		if len(values[o]) == 0 {
			if outMask == nil {
				outMask = make([]bool, nOut)
			}
			outMask[o] = true
			continue
		}
		var w []float64
		if useWeights {
			w = groupWeights[o]
		}
		outData.Elements[o] = agg.Aggregate(values[o], w)
	}

	out := &Cube{
		Name:        c.Name,
		VarName:     c.VarName,
		Units:       c.Units,
		Attributes:  make(map[string]string, len(c.Attributes)),
		DimCoords:   make([]*Coord, len(keep)),
		CellMethods: append(append([]string(nil), c.CellMethods...), cellMethod(agg, names)),
		shape:       outShape,
		data:        outData,
		mask:        outMask,
	}
	for k, v := range c.Attributes {
		out.Attributes[k] = v
	}
	for _, coord := range c.ScalarCoords {
		out.ScalarCoords = append(out.ScalarCoords, coord.Copy())
	}
	newDim := make(map[int]int, len(keep))
	for i, d := range keep {
		newDim[d] = i
		if coord := c.DimCoords[d]; coord != nil {
			out.DimCoords[i] = coord.Copy()
		}
	}
	for d := range collapse {
		if coord := c.DimCoords[d]; coord != nil {
			out.ScalarCoords = append(out.ScalarCoords, coord.collapsedScalar())
		}
	}
	for _, aux := range c.AuxCoords {
		touched, all := 0, true
		for _, d := range aux.Dims {
			if collapse[d] {
				touched++
			} else {
				all = false
			}
		}
		switch {
		case touched == 0:
			dims := make([]int, len(aux.Dims))
			for i, d := range aux.Dims {
				dims[i] = newDim[d]
			}
			out.AuxCoords = append(out.AuxCoords, AuxCoord{Coord: aux.Coord.Copy(), Dims: dims})
		case all:
			out.ScalarCoords = append(out.ScalarCoords, aux.Coord.collapsedScalar())
		}
	}
	sort.SliceStable(out.ScalarCoords, func(i, j int) bool {
		return out.ScalarCoords[i].Name < out.ScalarCoords[j].Name
	})
	return out, nil
}

func cellMethod(agg Aggregator, names []string) string {
	return fmt.Sprintf("%s: %s", strings.Join(names, ": "), agg.Name())
}
