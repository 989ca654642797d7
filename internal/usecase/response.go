package usecase

import (
	"math"

	"go.ngs.io/climate-preproc/internal/domain"
	"go.ngs.io/climate-preproc/internal/preprocessor/derive"
)

// CubeResponse is the JSON form of a result cube.
type CubeResponse struct {
	Name        string          `json:"name"`
	VarName     string          `json:"var_name,omitempty"`
	Units       string          `json:"units"`
	Shape       []int           `json:"shape"`
	Coords      []CoordResponse `json:"coords"`
	CellMethods []string        `json:"cell_methods,omitempty"`
	// Data is row-major; masked cells are null.
	Data []*float64 `json:"data"`
}

// CoordResponse describes one coordinate. Dims is empty for scalar
// coordinates.
type CoordResponse struct {
	Name   string       `json:"name"`
	Units  string       `json:"units,omitempty"`
	Dims   []int        `json:"dims"`
	Points []float64    `json:"points,omitempty"`
	Labels []string     `json:"labels,omitempty"`
	Bounds [][2]float64 `json:"bounds,omitempty"`
}

// NewCubeResponse realizes cube and converts it for the API.
func NewCubeResponse(cube *domain.Cube) (*CubeResponse, error) {
	data, err := cube.Data()
	if err != nil {
		return nil, err
	}
	resp := &CubeResponse{
		Name:        cube.Name,
		VarName:     cube.VarName,
		Units:       cube.Units,
		Shape:       cube.Shape(),
		Coords:      make([]CoordResponse, 0, len(cube.DimCoords)+len(cube.AuxCoords)+len(cube.ScalarCoords)),
		CellMethods: cube.CellMethods,
		Data:        make([]*float64, len(data.Elements)),
	}
	for dim, c := range cube.DimCoords {
		if c != nil {
			resp.Coords = append(resp.Coords, coordResponse(c, []int{dim}))
		}
	}
	for _, aux := range cube.AuxCoords {
		resp.Coords = append(resp.Coords, coordResponse(aux.Coord, aux.Dims))
	}
	for _, c := range cube.ScalarCoords {
		resp.Coords = append(resp.Coords, coordResponse(c, []int{}))
	}
	for i, v := range data.Elements {
		if cube.IsMasked(i) || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		v := v
		resp.Data[i] = &v
	}
	return resp, nil
}

func coordResponse(c *domain.Coord, dims []int) CoordResponse {
	return CoordResponse{
		Name:   c.Name,
		Units:  c.Units,
		Dims:   dims,
		Points: c.Points,
		Labels: c.Labels,
		Bounds: c.Bounds,
	}
}

// OperatorInfo describes one statistics operator.
type OperatorInfo struct {
	Name       string `json:"name"`
	Aggregator string `json:"aggregator"`
	Weighted   bool   `json:"weighted"`
}

// Operators lists the supported statistics operators.
func Operators() []OperatorInfo {
	ops := domain.Operators()
	out := make([]OperatorInfo, len(ops))
	for i, op := range ops {
		out[i] = OperatorInfo{
			Name:       string(op),
			Aggregator: op.Aggregator().Name(),
			Weighted:   op.Weighted(),
		}
	}
	return out
}

// DerivedVariableInfo describes one derivable variable.
type DerivedVariableInfo struct {
	ShortName   string   `json:"short_name"`
	Description string   `json:"description"`
	Variables   []string `json:"variables"`
	FxFields    []string `json:"fx_fields"`
}

// DerivedVariables lists the derivable variables.
func DerivedVariables() []DerivedVariableInfo {
	vars := derive.Variables()
	out := make([]DerivedVariableInfo, len(vars))
	for i, v := range vars {
		info := DerivedVariableInfo{
			ShortName:   v.ShortName,
			Description: v.Description,
			Variables:   []string{},
			FxFields:    []string{},
		}
		for _, r := range v.Required {
			info.Variables = append(info.Variables, r.ShortName)
			info.FxFields = append(info.FxFields, r.FxFields...)
		}
		out[i] = info
	}
	return out
}
