package dataset

import (
	"fmt"
	"math"
	"strings"

	"github.com/fhs/go-netcdf/netcdf"
	"github.com/sirupsen/logrus"

	"go.ngs.io/climate-preproc/internal/domain"
)

// FillValue marks masked cells in written files.
const FillValue = 1e20

// SaveCube writes cube to a new NetCDF-4 file at path, replacing any
// existing file. Masked cells are written as FillValue.
//
//nolint:gocyclo // Writes dimension, auxiliary and scalar coordinates in one define phase.
func (s *Store) SaveCube(path string, cube *domain.Cube) (err error) {
	data, err := cube.Data()
	if err != nil {
		return fmt.Errorf("failed to realize cube %s: %w", cube.Name, err)
	}

	nc, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return fmt.Errorf("failed to create NetCDF file %s: %w", path, err)
	}
	defer func() {
		if cerr := nc.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	shape := cube.Shape()
	dimNames := make([]string, len(shape))
	dims := make([]netcdf.Dim, len(shape))
	for d, n := range shape {
		dimNames[d] = fmt.Sprintf("dim%d", d)
		if coord := cube.DimCoords[d]; coord != nil {
			dimNames[d] = fileName(coord)
			if coord.IsLabel() {
				dimNames[d] = "n" + dimNames[d]
			}
		}
		//nolint:gosec // G115: Cube dimensions are non-negative.
		dims[d], err = nc.AddDim(dimNames[d], uint64(n))
		if err != nil {
			return fmt.Errorf("failed to add dimension %s: %w", dimNames[d], err)
		}
	}

	type pending struct {
		v      netcdf.Var
		values []float64
		text   []byte
	}
	var writes []pending
	var bndsDim *netcdf.Dim
	var coordNames []string

	boundsDim := func() (netcdf.Dim, error) {
		if bndsDim == nil {
			d, err := nc.AddDim("bnds", 2)
			if err != nil {
				return netcdf.Dim{}, fmt.Errorf("failed to add bounds dimension: %w", err)
			}
			bndsDim = &d
		}
		return *bndsDim, nil
	}

	addNumeric := func(coord *domain.Coord, name string, coordDims []netcdf.Dim) error {
		v, err := nc.AddVar(name, netcdf.DOUBLE, coordDims)
		if err != nil {
			return fmt.Errorf("failed to add coordinate %s: %w", name, err)
		}
		if err := writeTextAttrs(v, map[string]string{
			"standard_name": coord.Name,
			"units":         coord.Units,
		}); err != nil {
			return err
		}
		writes = append(writes, pending{v: v, values: coord.Points})
		if !coord.HasBounds() || len(coordDims) != 1 {
			return nil
		}
		bd, err := boundsDim()
		if err != nil {
			return err
		}
		bName := name + "_bnds"
		bv, err := nc.AddVar(bName, netcdf.DOUBLE, []netcdf.Dim{coordDims[0], bd})
		if err != nil {
			return fmt.Errorf("failed to add bounds %s: %w", bName, err)
		}
		if err := writeTextAttrs(v, map[string]string{"bounds": bName}); err != nil {
			return err
		}
		flat := make([]float64, 0, 2*len(coord.Bounds))
		for _, b := range coord.Bounds {
			flat = append(flat, b[0], b[1])
		}
		writes = append(writes, pending{v: bv, values: flat})
		return nil
	}

	addLabels := func(coord *domain.Coord, name string, coordDims []netcdf.Dim) error {
		width := 1
		for _, l := range coord.Labels {
			if len(l) > width {
				width = len(l)
			}
		}
		//nolint:gosec // G115: Label widths are small and positive.
		sd, err := nc.AddDim(name+"_strlen", uint64(width))
		if err != nil {
			return fmt.Errorf("failed to add string dimension for %s: %w", name, err)
		}
		v, err := nc.AddVar(name, netcdf.CHAR, append(coordDims, sd))
		if err != nil {
			return fmt.Errorf("failed to add coordinate %s: %w", name, err)
		}
		if err := writeTextAttrs(v, map[string]string{"standard_name": coord.Name}); err != nil {
			return err
		}
		buf := make([]byte, len(coord.Labels)*width)
		for i, l := range coord.Labels {
			copy(buf[i*width:], l)
		}
		writes = append(writes, pending{v: v, text: buf})
		return nil
	}

	// Dimension coordinates.
	for d, coord := range cube.DimCoords {
		if coord == nil {
			continue
		}
		if coord.IsLabel() {
			// Label coordinates are written as character auxiliary variables.
			name := fileName(coord)
			if err := addLabels(coord, name, []netcdf.Dim{dims[d]}); err != nil {
				return err
			}
			coordNames = append(coordNames, name)
			continue
		}
		if err := addNumeric(coord, dimNames[d], []netcdf.Dim{dims[d]}); err != nil {
			return err
		}
	}

	// Auxiliary coordinates.
	for _, aux := range cube.AuxCoords {
		name := fileName(aux.Coord)
		auxDims := make([]netcdf.Dim, len(aux.Dims))
		for i, d := range aux.Dims {
			auxDims[i] = dims[d]
		}
		if aux.Coord.IsLabel() {
			err = addLabels(aux.Coord, name, auxDims)
		} else {
			err = addNumeric(aux.Coord, name, auxDims)
		}
		if err != nil {
			return err
		}
		coordNames = append(coordNames, name)
	}

	// Scalar coordinates.
	for _, coord := range cube.ScalarCoords {
		name := fileName(coord)
		if coord.IsLabel() {
			err = addLabels(coord, name, nil)
		} else {
			err = addNumeric(coord, name, nil)
		}
		if err != nil {
			return err
		}
		coordNames = append(coordNames, name)
	}

	// Data variable.
	varName := cube.VarName
	if varName == "" {
		varName = strings.ReplaceAll(cube.Name, " ", "_")
	}
	v, err := nc.AddVar(varName, netcdf.DOUBLE, dims)
	if err != nil {
		return fmt.Errorf("failed to add variable %s: %w", varName, err)
	}
	if err := v.Attr("_FillValue").WriteFloat64s([]float64{FillValue}); err != nil {
		return fmt.Errorf("failed to write _FillValue: %w", err)
	}
	attrs := map[string]string{
		"standard_name": cube.Name,
		"units":         cube.Units,
		"coordinates":   strings.Join(coordNames, " "),
		"cell_methods":  strings.Join(cube.CellMethods, " "),
	}
	for k, val := range cube.Attributes {
		if _, ok := attrs[k]; !ok {
			attrs[k] = val
		}
	}
	if err := writeTextAttrs(v, attrs); err != nil {
		return err
	}

	if err := nc.EndDef(); err != nil {
		return fmt.Errorf("failed to end define mode: %w", err)
	}

	for _, w := range writes {
		if w.text != nil {
			err = w.v.WriteBytes(w.text)
		} else {
			err = w.v.WriteFloat64s(w.values)
		}
		if err != nil {
			return fmt.Errorf("failed to write coordinate values: %w", err)
		}
	}

	values := make([]float64, len(data.Elements))
	for i, val := range data.Elements {
		if cube.IsMasked(i) || math.IsNaN(val) {
			val = FillValue
		}
		values[i] = val
	}
	if len(values) > 0 {
		if err := v.WriteFloat64s(values); err != nil {
			return fmt.Errorf("failed to write %s: %w", varName, err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"file":     path,
		"variable": varName,
		"shape":    shape,
	}).Debug("Saved cube")
	return nil
}

// writeTextAttrs writes the non-empty values of attrs as character attributes.
func writeTextAttrs(v netcdf.Var, attrs map[string]string) error {
	for name, val := range attrs {
		if val == "" {
			continue
		}
		if err := v.Attr(name).WriteBytes([]byte(val)); err != nil {
			return fmt.Errorf("failed to write attribute %s: %w", name, err)
		}
	}
	return nil
}

func fileName(coord *domain.Coord) string {
	if coord.VarName != "" {
		return coord.VarName
	}
	return strings.ReplaceAll(coord.Name, " ", "_")
}
