package derive

import (
	"fmt"

	"go.ngs.io/climate-preproc/internal/domain"
)

// totalFlux sums intpp times cell area over all unmasked cells of each time
// step. Masked cells of either field do not contribute.
func totalFlux(in Inputs) (*domain.Cube, error) {
	intpp := in.Cubes["intpp"]
	area := in.Fx["areacello"]

	shape := intpp.Shape()
	areaShape := area.Shape()
	if len(shape) != 3 || len(areaShape) != 2 || shape[1] != areaShape[0] || shape[2] != areaShape[1] {
		return nil, &domain.ShapeMismatchError{What: "cell area", WeightShape: areaShape, CubeShape: shape}
	}
	if _, dims, err := intpp.Coord("time"); err != nil || len(dims) != 1 || dims[0] != 0 {
		return nil, fmt.Errorf("intpp must have time as its first dimension")
	}

	values, err := intpp.Data()
	if err != nil {
		return nil, err
	}
	areas, err := area.Data()
	if err != nil {
		return nil, err
	}

	cells := shape[1] * shape[2]
	totals := domain.NewArray(shape[0])
	for t := range totals.Elements {
		sum := 0.0
		for c := 0; c < cells; c++ {
			i := t*cells + c
			if intpp.IsMasked(i) || area.IsMasked(c) {
				continue
			}
			sum += values.Elements[i] * areas.Elements[c]
		}
		totals.Elements[t] = sum
	}

	result, err := intpp.Collapsed([]string{"latitude", "longitude"}, domain.MeanAggregator, nil)
	if err != nil {
		return nil, err
	}
	if err := result.SetData(totals, nil); err != nil {
		return nil, err
	}
	result.Units = intpp.Units + " " + area.Units
	return result, nil
}

// levelSum sums the input over the coordinate on its second dimension.
func levelSum(input string) func(Inputs) (*domain.Cube, error) {
	return func(in Inputs) (*domain.Cube, error) {
		cube := in.Cubes[input]
		if cube.NDim() < 2 || cube.DimCoords[1] == nil {
			return nil, fmt.Errorf("%s has no coordinate on dimension 1", input)
		}
		return cube.Collapsed([]string{cube.DimCoords[1].Name}, domain.SumAggregator, nil)
	}
}
