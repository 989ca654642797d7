package preprocessor

import (
	"fmt"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"

	"go.ngs.io/climate-preproc/internal/domain"
)

// TileGridAreas loads the selected fx field and tiles it to the cube shape.
// It returns domain.NoWeights when fx is empty or has no usable entry.
func (p *Preprocessor) TileGridAreas(cube *domain.Cube, fx FxFiles) (domain.Weights, error) {
	field, ok := fx.Selected()
	if !ok {
		return domain.NoWeights, nil
	}
	p.log.WithFields(logrus.Fields{
		"field": field.Name,
		"file":  field.Path,
	}).Info("Attempting to load fx field")

	fxCube, err := p.loader.LoadCube(field.Path)
	if err != nil {
		return domain.NoWeights, fmt.Errorf("failed to load %s from %s: %w", field.Name, field.Path, err)
	}
	areas, err := fxCube.Data()
	if err != nil {
		return domain.NoWeights, fmt.Errorf("failed to read %s from %s: %w", field.Name, field.Path, err)
	}
	if mask := fxCube.Mask(); mask != nil {
		// Masked cells (e.g. land in ocean fields) carry no area.
		areas = areas.Copy()
		for i, masked := range mask {
			if masked {
				areas.Elements[i] = 0
			}
		}
	}
	tiled, err := TileWeights(areas, cube.Shape())
	if err != nil {
		return domain.NoWeights, err
	}
	return domain.NewWeights(tiled), nil
}

// TileWeights replicates a 2-D (or 3-D) weight array along leading axes so
// that it matches a 3-D or 4-D cube shape. The weight's trailing two
// dimensions must equal the cube's.
func TileWeights(weights *sparse.DenseArray, cubeShape []int) (*sparse.DenseArray, error) {
	cubeRank, weightRank := len(cubeShape), len(weights.Shape)
	if cubeRank < 2 || weightRank < 2 {
		return nil, &domain.UnsupportedDimensionalityError{CubeRank: cubeRank, WeightRank: weightRank}
	}
	if !domain.ShapesEqual(weights.Shape[weightRank-2:], cubeShape[cubeRank-2:]) {
		return nil, &domain.ShapeMismatchError{
			What:        "fx area",
			WeightShape: append([]int(nil), weights.Shape...),
			CubeShape:   append([]int(nil), cubeShape...),
		}
	}

	switch {
	case cubeRank == weightRank:
		return weights, nil
	case cubeRank == 4 && weightRank == 2:
		return stack(stack(weights, cubeShape[1]), cubeShape[0]), nil
	case cubeRank == 4 && weightRank == 3:
		return stack(weights, cubeShape[0]), nil
	case cubeRank == 3 && weightRank == 2:
		return stack(weights, cubeShape[0]), nil
	default:
		return nil, &domain.UnsupportedDimensionalityError{CubeRank: cubeRank, WeightRank: weightRank}
	}
}

// stack returns n copies of a stacked along a new leading axis.
func stack(a *sparse.DenseArray, n int) *sparse.DenseArray {
	shape := append([]int{n}, a.Shape...)
	out := domain.NewArray(shape...)
	size := len(a.Elements)
	for i := 0; i < n; i++ {
		copy(out.Elements[i*size:(i+1)*size], a.Elements)
	}
	return out
}
