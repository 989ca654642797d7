package fixes

import (
	"fmt"
	"math"

	"go.ngs.io/climate-preproc/internal/domain"
)

// Standard name of the hybrid sigma-pressure vertical coordinate.
const hybridSigmaPressure = "atmosphere_hybrid_sigma_pressure_coordinate"

// cloudVariables share the vertical coordinate fixes of cl.
var cloudVariables = []string{"cl", "cli", "clw"}

func registerCMIP6(r *Registry) {
	for _, v := range cloudVariables {
		r.Register(Key{Project: "CMIP6", Dataset: "CESM2", Variable: v}, cesm2HybridFormula)
		r.Register(Key{Project: "CMIP6", Dataset: "CESM2-WACCM", Variable: v}, cesm2HybridFormula, waccmBoundsOrder)
		for _, dataset := range []string{"CNRM-CM6-1", "CNRM-CM6-1-HR"} {
			r.Register(Key{Project: "CMIP6", Dataset: dataset, Variable: v}, cnrmHybridCoordinate)
		}
	}
	r.Register(Key{Project: "CMIP6", Dataset: "CESM2", Variable: "tas"}, cesm2Tas)
	r.Register(Key{Project: "CMIP6", Dataset: "CESM2-WACCM", Variable: "tas"}, cesm2Tas)
}

// cesm2HybridFormula adds the formula_terms attribute the CESM2 files lack
// on the hybrid pressure coordinate, so that pressure can be reconstructed.
var cesm2HybridFormula = Fix{
	Name: "cesm2_hybrid_formula",
	File: func(path, outputDir string) (string, error) {
		return rewriteInto(path, outputDir, fileEdits{
			attrs: map[string]map[string]string{
				"lev": {
					"formula_terms": "p0: p0 a: a b: b ps: ps",
					"standard_name": hybridSigmaPressure,
				},
			},
		})
	},
}

// waccmBoundsOrder reverses a_bnds and b_bnds, which CESM2-WACCM stores in
// the opposite vertical order of a and b.
var waccmBoundsOrder = Fix{
	Name: "cesm2_waccm_bounds_order",
	File: func(path, outputDir string) (string, error) {
		return rewriteInto(path, outputDir, fileEdits{
			data: map[string]func([]float64, []int){
				"a_bnds": reverseRows,
				"b_bnds": reverseRows,
			},
		})
	},
}

// cesm2Tas adds the 2 m height coordinate and rounds the horizontal bounds,
// which differ between files in the last digits.
var cesm2Tas = Fix{
	Name: "cesm2_tas",
	Metadata: func(cubes []*domain.Cube) ([]*domain.Cube, error) {
		for _, cube := range cubes {
			if !cube.HasCoord("height") {
				height := domain.NewDimCoord("height", "m", []float64{2}, nil)
				height.VarName = "height"
				cube.AddScalarCoord(height)
			}
			for _, name := range []string{"latitude", "longitude"} {
				coord, _, err := cube.Coord(name)
				if err != nil {
					continue
				}
				for i := range coord.Bounds {
					coord.Bounds[i][0] = round(coord.Bounds[i][0], 4)
					coord.Bounds[i][1] = round(coord.Bounds[i][1], 4)
				}
			}
		}
		return cubes, nil
	},
}

// cnrmHybridCoordinate names the vertical coordinate of the CNRM cloud
// variables, fixes the units of its formula terms and adds the missing
// horizontal bounds.
var cnrmHybridCoordinate = Fix{
	Name: "cnrm_hybrid_coordinate",
	Metadata: func(cubes []*domain.Cube) ([]*domain.Cube, error) {
		for _, cube := range cubes {
			if cube.NDim() < 2 || cube.DimCoords[1] == nil {
				return nil, fmt.Errorf("cube %s has no vertical coordinate on dimension 1", cube.Name)
			}
			z := cube.DimCoords[1]
			z.VarName = "lev"
			z.Name = hybridSigmaPressure
			z.Units = "1"

			if ap, _, err := cube.Coord("ap"); err == nil {
				ap.Units = "Pa"
			}
			if b, _, err := cube.Coord("b"); err == nil {
				b.Units = "1"
			}
			for _, name := range []string{"latitude", "longitude"} {
				coord, _, err := cube.Coord(name)
				if err != nil || coord.HasBounds() || coord.NDim() != 1 {
					continue
				}
				if err := coord.GuessBounds(); err != nil {
					return nil, err
				}
			}
		}
		return cubes, nil
	},
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
