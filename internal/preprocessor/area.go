package preprocessor

import (
	"github.com/sirupsen/logrus"

	"go.ngs.io/climate-preproc/internal/domain"
)

var horizontalCoords = []string{"longitude", "latitude"}

// Preprocessor runs the statistics preprocessors. It holds no state between
// calls and is safe for concurrent use.
type Preprocessor struct {
	loader CubeLoader
	log    logrus.FieldLogger
}

// New creates a Preprocessor reading fx fields through loader.
func New(loader CubeLoader, log logrus.FieldLogger) *Preprocessor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Preprocessor{loader: loader, log: log}
}

// ZonalStatistics applies operator along the longitude dimension. The result
// typically has dimensions (time, z, latitude).
//
//	mean      area weighted mean when an fx field is given
//	median    median (not area weighted)
//	std_dev   standard deviation (not area weighted)
//	variance  variance (not area weighted)
//	min, max  extrema
func (p *Preprocessor) ZonalStatistics(cube *domain.Cube, operator string, fx FxFiles) (*domain.Cube, error) {
	return p.zonalMeridionalStatistics(cube, operator, "longitude", fx)
}

// MeridionalStatistics applies operator along the latitude dimension. The
// operators are the same as for ZonalStatistics.
func (p *Preprocessor) MeridionalStatistics(cube *domain.Cube, operator string, fx FxFiles) (*domain.Cube, error) {
	return p.zonalMeridionalStatistics(cube, operator, "latitude", fx)
}

func (p *Preprocessor) zonalMeridionalStatistics(cube *domain.Cube, operator, coord string, fx FxFiles) (*domain.Cube, error) {
	lat, _, err := cube.Coord("latitude")
	if err != nil {
		return nil, err
	}
	if lat.NDim() == 2 {
		return nil, &domain.IrregularGridError{
			Operation: "zonal & meridional statistics",
			Coord:     "latitude",
			NDim:      lat.NDim(),
		}
	}
	op, err := domain.ParseOperator(operator)
	if err != nil {
		return nil, err
	}

	weights, err := p.TileGridAreas(cube, fx)
	if err != nil {
		return nil, err
	}
	if weights.Defined() && op.Weighted() {
		return cube.Collapsed([]string{coord}, op.Aggregator(), weights.Array())
	}
	return cube.Collapsed([]string{coord}, op.Aggregator(), nil)
}

// AreaStatistics applies operator over longitude and latitude together. Only
// the mean is area weighted; weights come from the fx field when given and
// are otherwise computed from the cell bounds (guessed when missing).
// Irregular grids require an fx cell area field.
func (p *Preprocessor) AreaStatistics(cube *domain.Cube, operator string, fx FxFiles) (*domain.Cube, error) {
	op, err := domain.ParseOperator(operator)
	if err != nil {
		return nil, err
	}
	weights, err := p.TileGridAreas(cube, fx)
	if err != nil {
		return nil, err
	}

	lat, _, err := cube.Coord("latitude")
	if err != nil {
		return nil, err
	}
	if !weights.Defined() && lat.NDim() == 2 {
		return nil, &domain.MissingWeightsError{Coord: "latitude"}
	}

	if !weights.Defined() || weights.AllZero() {
		cube = cube.Copy()
		if err := cube.GuessBounds(horizontalCoords...); err != nil {
			return nil, err
		}
		areas, err := domain.AreaWeights(cube)
		if err != nil {
			return nil, err
		}
		weights = domain.NewWeights(areas)
		p.log.WithField("shape", weights.Shape()).Info("Calculated grid area shape")
	}

	if !domain.ShapesEqual(cube.Shape(), weights.Shape()) {
		return nil, &domain.ShapeMismatchError{
			What:        "grid area",
			WeightShape: weights.Shape(),
			CubeShape:   cube.Shape(),
		}
	}

	// TODO: weighted median, std_dev and variance once a weighted quantile
	// and weighted sample variance are agreed on for masked data.
	if op.Weighted() {
		return cube.Collapsed(horizontalCoords, op.Aggregator(), weights.Array())
	}
	return cube.Collapsed(horizontalCoords, op.Aggregator(), nil)
}
