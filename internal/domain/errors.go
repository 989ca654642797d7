package domain

import (
	"fmt"
	"strings"
)

// ErrorKind classifies preprocessing failures.
type ErrorKind string

// Error kinds raised by the preprocessors.
const (
	KindStructuralIncompatibility ErrorKind = "structural_incompatibility"
	KindShapeMismatch             ErrorKind = "shape_mismatch"
	KindUnsupportedDimensionality ErrorKind = "unsupported_dimensionality"
	KindInvalidOperator           ErrorKind = "invalid_operator"
	KindInvalidRegionSelector     ErrorKind = "invalid_region_selector"
	KindUnknownRegion             ErrorKind = "unknown_region"
	KindInvalidRange              ErrorKind = "invalid_range"
	KindEmptySelection            ErrorKind = "empty_selection"
)

// KindError is implemented by all typed preprocessing errors.
type KindError interface {
	error
	Kind() ErrorKind
}

// IrregularGridError is returned when an operation needs a regular (1-D)
// latitude/longitude grid and the cube carries 2-D coordinates.
type IrregularGridError struct {
	Operation string
	Coord     string
	NDim      int
}

func (e *IrregularGridError) Error() string {
	return fmt.Sprintf("%s only works with regular grids: coordinate %q is %d-D; "+
		"consider regridding the data to a regular grid first", e.Operation, e.Coord, e.NDim)
}

// Kind implements KindError.
func (e *IrregularGridError) Kind() ErrorKind { return KindStructuralIncompatibility }

// MissingWeightsError is returned when areal statistics are requested on an
// irregular grid without an explicit cell area field.
type MissingWeightsError struct {
	Coord string
}

func (e *MissingWeightsError) Error() string {
	return fmt.Sprintf("an fx cell area file is needed to calculate grid cell areas for irregular grids "+
		"(coordinate %q is multi-dimensional)", e.Coord)
}

// Kind implements KindError.
func (e *MissingWeightsError) Kind() ErrorKind { return KindStructuralIncompatibility }

// ShapeMismatchError is returned when a weight array does not line up with
// the cube it is applied to.
type ShapeMismatchError struct {
	What        string
	WeightShape []int
	CubeShape   []int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s shape %v does not match cube shape %v", e.What, e.WeightShape, e.CubeShape)
}

// Kind implements KindError.
func (e *ShapeMismatchError) Kind() ErrorKind { return KindShapeMismatch }

// UnsupportedDimensionalityError is returned for cube/weight rank pairs the
// tiling rule does not cover.
type UnsupportedDimensionalityError struct {
	CubeRank   int
	WeightRank int
}

func (e *UnsupportedDimensionalityError) Error() string {
	return fmt.Sprintf("grid and dataset number of dimensions not recognised: %d and %d",
		e.CubeRank, e.WeightRank)
}

// Kind implements KindError.
func (e *UnsupportedDimensionalityError) Kind() ErrorKind { return KindUnsupportedDimensionality }

// InvalidOperatorError is returned for operator tokens outside the supported set.
type InvalidOperatorError struct {
	Token string
}

func (e *InvalidOperatorError) Error() string {
	names := make([]string, 0, len(operatorTable))
	for _, op := range Operators() {
		names = append(names, string(op))
	}
	return fmt.Sprintf("operator %q not recognised; accepted values are: %s",
		e.Token, strings.Join(names, ", "))
}

// Kind implements KindError.
func (e *InvalidOperatorError) Kind() ErrorKind { return KindInvalidOperator }

// InvalidRegionSelectorError is returned when a region selector is neither a
// string nor a collection of strings.
type InvalidRegionSelectorError struct {
	Value any
}

func (e *InvalidRegionSelectorError) Error() string {
	return fmt.Sprintf("regions %v (%T) is not an acceptable format", e.Value, e.Value)
}

// Kind implements KindError.
func (e *InvalidRegionSelectorError) Kind() ErrorKind { return KindInvalidRegionSelector }

// UnknownRegionError is returned when requested region labels are absent
// from the cube.
type UnknownRegionError struct {
	Missing   []string
	Available []string
}

func (e *UnknownRegionError) Error() string {
	return fmt.Sprintf("region(s) {%s} not in cube region(s): {%s}",
		strings.Join(e.Missing, ", "), strings.Join(e.Available, ", "))
}

// Kind implements KindError.
func (e *UnknownRegionError) Kind() ErrorKind { return KindUnknownRegion }

// InvalidRangeError is returned when a coordinate range has its minimum
// above its maximum.
type InvalidRangeError struct {
	Coord string
	Min   float64
	Max   float64
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range for %q: minimum %g is greater than maximum %g", e.Coord, e.Min, e.Max)
}

// Kind implements KindError.
func (e *InvalidRangeError) Kind() ErrorKind { return KindInvalidRange }

// EmptySelectionError is returned when a selection matches no cells. Range
// is nil for label selections.
type EmptySelectionError struct {
	Coord string
	Range *[2]float64
}

func (e *EmptySelectionError) Error() string {
	if e.Range == nil {
		return fmt.Sprintf("no %s selected", e.Coord)
	}
	return fmt.Sprintf("no %s cells within [%g, %g]", e.Coord, e.Range[0], e.Range[1])
}

// Kind implements KindError.
func (e *EmptySelectionError) Kind() ErrorKind { return KindEmptySelection }

// CoordNotFoundError is returned by coordinate lookups.
type CoordNotFoundError struct {
	Name string
	Cube string
}

func (e *CoordNotFoundError) Error() string {
	return fmt.Sprintf("coordinate %q not found on cube %q", e.Name, e.Cube)
}
