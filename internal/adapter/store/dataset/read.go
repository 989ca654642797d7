// Package dataset loads and saves CMOR-style NetCDF datasets as cubes.
package dataset

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/ctessum/sparse"
	"github.com/fhs/go-netcdf/netcdf"
	"github.com/sirupsen/logrus"

	"go.ngs.io/climate-preproc/internal/domain"
)

// coordAliases maps common coordinate variable names to standard names.
var coordAliases = map[string]string{
	"lat":       "latitude",
	"latitude":  "latitude",
	"nav_lat":   "latitude",
	"y":         "latitude",
	"lon":       "longitude",
	"longitude": "longitude",
	"nav_lon":   "longitude",
	"x":         "longitude",
	"time":      "time",
	"region":    "region",
	"basin":     "region",
}

// Store reads and writes NetCDF files.
type Store struct {
	log logrus.FieldLogger
}

// NewStore creates a new NetCDF dataset store.
func NewStore(log logrus.FieldLogger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{log: log}
}

// VariableNotFoundError is returned when a file has no data variable of the
// requested name.
type VariableNotFoundError struct {
	Variable  string
	Path      string
	Available []string
}

func (e *VariableNotFoundError) Error() string {
	return fmt.Sprintf("variable %q not found in %s (data variables: %v)", e.Variable, e.Path, e.Available)
}

// LoadCube loads the single data variable in the file at path. It fails when
// the file holds zero or several data variables.
func (s *Store) LoadCube(path string) (*domain.Cube, error) {
	return s.LoadVariable(path, "")
}

// LoadVariable loads the named data variable. An empty varName selects the
// only data variable of the file.
func (s *Store) LoadVariable(path, varName string) (*domain.Cube, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open NetCDF file %s: %w", path, err)
	}
	defer func() { _ = nc.Close() }()

	layout, err := scanFile(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", path, err)
	}

	if varName == "" {
		switch len(layout.dataVars) {
		case 0:
			return nil, fmt.Errorf("no data variable found in %s", path)
		case 1:
			varName = layout.dataVars[0]
		default:
			return nil, fmt.Errorf("expected exactly one data variable in %s, found %v", path, layout.dataVars)
		}
	}

	if !slices.Contains(layout.dataVars, varName) {
		return nil, &VariableNotFoundError{Variable: varName, Path: path, Available: layout.dataVars}
	}

	cube, err := buildCube(nc, layout, path, varName)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s from %s: %w", varName, path, err)
	}
	s.log.WithFields(logrus.Fields{
		"file":     path,
		"variable": varName,
		"shape":    cube.Shape(),
	}).Debug("Loaded cube")
	return cube, nil
}

// LoadCubes loads every data variable in the file.
func (s *Store) LoadCubes(path string) ([]*domain.Cube, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open NetCDF file %s: %w", path, err)
	}
	defer func() { _ = nc.Close() }()

	layout, err := scanFile(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", path, err)
	}
	cubes := make([]*domain.Cube, 0, len(layout.dataVars))
	for _, name := range layout.dataVars {
		cube, err := buildCube(nc, layout, path, name)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s from %s: %w", name, path, err)
		}
		cubes = append(cubes, cube)
	}
	return cubes, nil
}

// fileLayout classifies the variables of a file.
type fileLayout struct {
	vars     map[string]netcdf.Var
	dataVars []string
}

func scanFile(nc netcdf.Dataset) (*fileLayout, error) {
	n, err := nc.NVars()
	if err != nil {
		return nil, fmt.Errorf("failed to count variables: %w", err)
	}
	layout := &fileLayout{vars: make(map[string]netcdf.Var, n)}
	var names []string
	referenced := make(map[string]bool)
	for i := 0; i < n; i++ {
		v := nc.VarN(i)
		name, err := v.Name()
		if err != nil {
			return nil, fmt.Errorf("failed to read variable name: %w", err)
		}
		layout.vars[name] = v
		names = append(names, name)

		if b, ok := readTextAttr(v, "bounds"); ok {
			referenced[b] = true
		}
		if coords, ok := readTextAttr(v, "coordinates"); ok {
			for _, c := range strings.Fields(coords) {
				referenced[c] = true
			}
		}
		if terms, ok := readTextAttr(v, "formula_terms"); ok {
			for _, t := range strings.Fields(terms) {
				if !strings.HasSuffix(t, ":") {
					referenced[t] = true
				}
			}
		}
	}

	for _, name := range names {
		if referenced[name] || strings.HasSuffix(name, "_bnds") || strings.HasSuffix(name, "_bounds") {
			continue
		}
		dims, err := varDimNames(layout.vars[name])
		if err != nil {
			return nil, err
		}
		if len(dims) == 0 {
			continue
		}
		if len(dims) == 1 && dims[0] == name {
			// Coordinate variable.
			continue
		}
		layout.dataVars = append(layout.dataVars, name)
	}
	sort.Strings(layout.dataVars)
	return layout, nil
}

//nolint:gocyclo // Coordinate discovery covers dimension, auxiliary and scalar coordinates.
func buildCube(nc netcdf.Dataset, layout *fileLayout, path, varName string) (*domain.Cube, error) {
	v, ok := layout.vars[varName]
	if !ok {
		return nil, fmt.Errorf("variable %q not found", varName)
	}
	dimNames, err := varDimNames(v)
	if err != nil {
		return nil, err
	}
	shape, err := varShape(v)
	if err != nil {
		return nil, err
	}

	name := varName
	if sn, ok := readTextAttr(v, "standard_name"); ok {
		name = sn
	} else if ln, ok := readTextAttr(v, "long_name"); ok {
		name = ln
	}
	units, _ := readTextAttr(v, "units")

	load := func() (*sparse.DenseArray, []bool, error) {
		return readData(path, varName, shape)
	}
	cube := domain.NewLazyCube(name, units, shape, load)
	cube.VarName = varName
	for _, attr := range []string{"long_name", "cell_methods", "comment"} {
		if val, ok := readTextAttr(v, attr); ok {
			cube.Attributes[attr] = val
		}
	}

	// Dimension coordinates.
	dimIndex := make(map[string]int, len(dimNames))
	for d, dimName := range dimNames {
		dimIndex[dimName] = d
		cv, ok := layout.vars[dimName]
		if !ok {
			continue
		}
		coord, err := readCoord(cv, layout, dimName)
		if err != nil {
			return nil, fmt.Errorf("failed to read coordinate %s: %w", dimName, err)
		}
		if coord.IsLabel() || coord.NDim() != 1 {
			continue
		}
		if err := cube.AddDimCoord(coord, d); err != nil {
			return nil, err
		}
	}

	// Auxiliary and scalar coordinates.
	coords, _ := readTextAttr(v, "coordinates")
	for _, auxName := range strings.Fields(coords) {
		av, ok := layout.vars[auxName]
		if !ok {
			continue
		}
		auxDims, err := varDimNames(av)
		if err != nil {
			return nil, err
		}
		coord, err := readCoord(av, layout, auxName)
		if err != nil {
			return nil, fmt.Errorf("failed to read coordinate %s: %w", auxName, err)
		}
		var spans []int
		for _, dn := range auxDims {
			if d, ok := dimIndex[dn]; ok {
				spans = append(spans, d)
			}
		}
		if len(spans) == 0 {
			coord.Shape = []int{1}
			cube.AddScalarCoord(coord)
			continue
		}
		if err := cube.AddAuxCoord(coord, spans...); err != nil {
			return nil, err
		}
	}
	return cube, nil
}

// readCoord reads a numeric or character coordinate variable, with bounds.
func readCoord(v netcdf.Var, layout *fileLayout, varName string) (*domain.Coord, error) {
	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("failed to get var type: %w", err)
	}
	name := varName
	if sn, ok := readTextAttr(v, "standard_name"); ok {
		name = sn
	} else if alias, ok := coordAliases[strings.ToLower(varName)]; ok {
		name = alias
	}
	units, _ := readTextAttr(v, "units")

	if t == netcdf.CHAR {
		labels, err := readLabels(v)
		if err != nil {
			return nil, err
		}
		coord := domain.NewLabelCoord(name, labels)
		coord.VarName = varName
		return coord, nil
	}

	shape, err := varShape(v)
	if err != nil {
		return nil, err
	}
	values, err := readFloat64s(v, product(shape))
	if err != nil {
		return nil, err
	}
	coord := &domain.Coord{Name: name, VarName: varName, Units: units, Points: values, Shape: shape}
	if len(shape) == 0 {
		coord.Shape = []int{1}
	}

	if bName, ok := readTextAttr(v, "bounds"); ok && len(shape) == 1 {
		if bv, ok := layout.vars[bName]; ok {
			flat, err := readFloat64s(bv, shape[0]*2)
			if err != nil {
				return nil, fmt.Errorf("failed to read bounds %s: %w", bName, err)
			}
			coord.Bounds = make([][2]float64, shape[0])
			for i := range coord.Bounds {
				coord.Bounds[i] = [2]float64{flat[2*i], flat[2*i+1]}
			}
		}
	}
	return coord, nil
}

// readLabels reads a character variable of shape (n, strlen) as n strings.
func readLabels(v netcdf.Var) ([]string, error) {
	shape, err := varShape(v)
	if err != nil {
		return nil, err
	}
	var n, width int
	switch len(shape) {
	case 1:
		n, width = 1, shape[0]
	case 2:
		n, width = shape[0], shape[1]
	default:
		return nil, fmt.Errorf("expected 1D or 2D character variable, got %dD", len(shape))
	}
	buf := make([]byte, n*width)
	if err := v.ReadBytes(buf); err != nil {
		return nil, fmt.Errorf("failed to read characters: %w", err)
	}
	labels := make([]string, n)
	for i := range labels {
		labels[i] = strings.TrimSpace(strings.TrimRight(string(buf[i*width:(i+1)*width]), "\x00"))
	}
	return labels, nil
}

// readData opens the file again and reads the whole variable. Fill values
// and NaNs are masked; scale_factor and add_offset are applied.
func readData(path, varName string, shape []int) (*sparse.DenseArray, []bool, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open NetCDF file: %w", err)
	}
	defer func() { _ = nc.Close() }()

	v, err := nc.Var(varName)
	if err != nil {
		return nil, nil, fmt.Errorf("variable %q not found: %w", varName, err)
	}
	values, err := readFloat64s(v, product(shape))
	if err != nil {
		return nil, nil, err
	}

	var mask []bool
	fill, hasFill := getFillValue(v)
	for i, val := range values {
		if math.IsNaN(val) || (hasFill && val == fill) {
			if mask == nil {
				mask = make([]bool, len(values))
			}
			mask[i] = true
		}
	}

	scale, hasScale := readNumericAttr(v, "scale_factor")
	offset, hasOffset := readNumericAttr(v, "add_offset")
	if hasScale || hasOffset {
		if !hasScale || scale == 0 {
			scale = 1
		}
		for i := range values {
			values[i] = values[i]*scale + offset
		}
	}

	data := domain.NewArray(shape...)
	data.Elements = values
	return data, mask, nil
}

// readFloat64s reads total values of a numeric variable as float64.
func readFloat64s(v netcdf.Var, total int) ([]float64, error) {
	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("failed to get var type: %w", err)
	}
	switch t {
	case netcdf.DOUBLE:
		data := make([]float64, total)
		if err := v.ReadFloat64s(data); err != nil {
			return nil, fmt.Errorf("failed to read float64: %w", err)
		}
		return data, nil
	case netcdf.FLOAT:
		tmp := make([]float32, total)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, fmt.Errorf("failed to read float32: %w", err)
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.INT:
		tmp := make([]int32, total)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, fmt.Errorf("failed to read int32: %w", err)
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.SHORT:
		tmp := make([]int16, total)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, fmt.Errorf("failed to read int16: %w", err)
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.INT64:
		tmp := make([]int64, total)
		if err := v.ReadInt64s(tmp); err != nil {
			return nil, fmt.Errorf("failed to read int64: %w", err)
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.BYTE, netcdf.CHAR, netcdf.UBYTE, netcdf.USHORT, netcdf.UINT, netcdf.UINT64, netcdf.STRING:
		return nil, fmt.Errorf("unsupported var type: %v", t)
	default:
		return nil, fmt.Errorf("unsupported var type: %v", t)
	}
}

// getFillValue returns the _FillValue or missing_value attribute if present.
func getFillValue(v netcdf.Var) (float64, bool) {
	for _, name := range []string{"_FillValue", "missing_value"} {
		if val, ok := readNumericAttr(v, name); ok {
			return val, true
		}
	}
	return 0, false
}

// readNumericAttr reads the first value of a numeric attribute as float64.
func readNumericAttr(v netcdf.Var, name string) (float64, bool) {
	a := v.Attr(name)
	n, err := a.Len()
	if err != nil || n == 0 {
		return 0, false
	}
	t, err := a.Type()
	if err != nil {
		return 0, false
	}
	switch t {
	case netcdf.DOUBLE:
		buf := make([]float64, n)
		if err := a.ReadFloat64s(buf); err == nil {
			return buf[0], true
		}
	case netcdf.FLOAT:
		buf := make([]float32, n)
		if err := a.ReadFloat32s(buf); err == nil {
			return float64(buf[0]), true
		}
	case netcdf.INT:
		buf := make([]int32, n)
		if err := a.ReadInt32s(buf); err == nil {
			return float64(buf[0]), true
		}
	case netcdf.SHORT:
		buf := make([]int16, n)
		if err := a.ReadInt16s(buf); err == nil {
			return float64(buf[0]), true
		}
	}
	return 0, false
}

// readTextAttr reads a character attribute.
func readTextAttr(v netcdf.Var, name string) (string, bool) {
	a := v.Attr(name)
	n, err := a.Len()
	if err != nil || n == 0 {
		return "", false
	}
	if t, err := a.Type(); err != nil || t != netcdf.CHAR {
		return "", false
	}
	buf := make([]byte, n)
	if err := a.ReadBytes(buf); err != nil {
		return "", false
	}
	return strings.TrimRight(string(buf), "\x00"), true
}

func varDimNames(v netcdf.Var) ([]string, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("failed to get dimensions: %w", err)
	}
	names := make([]string, len(dims))
	for i, d := range dims {
		names[i], err = d.Name()
		if err != nil {
			return nil, fmt.Errorf("failed to get dimension name: %w", err)
		}
	}
	return names, nil
}

func varShape(v netcdf.Var) ([]int, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("failed to get dimensions: %w", err)
	}
	shape := make([]int, len(dims))
	for i, d := range dims {
		n, err := d.Len()
		if err != nil {
			return nil, fmt.Errorf("failed to get dim%d length: %w", i, err)
		}
		//nolint:gosec // G115: NetCDF dimension lengths fit in int.
		shape[i] = int(n)
	}
	return shape, nil
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}
