package domain

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/ctessum/sparse"
)

// testCube builds a (time=2, latitude=3, longitude=4) cube with values
// equal to their flat index.
func testCube(t *testing.T) *Cube {
	t.Helper()
	data := NewArray(2, 3, 4)
	for i := range data.Elements {
		data.Elements[i] = float64(i)
	}
	c := NewCube("air_temperature", "K", data)
	c.VarName = "tas"
	mustAdd(t, c.AddDimCoord(NewDimCoord("time", "days", []float64{0, 1}, nil), 0))
	mustAdd(t, c.AddDimCoord(NewDimCoord("latitude", "degrees_north", []float64{-30, 0, 30}, nil), 1))
	mustAdd(t, c.AddDimCoord(NewDimCoord("longitude", "degrees_east", []float64{0, 90, 180, 270}, nil), 2))
	return c
}

func mustAdd(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("add coord: %v", err)
	}
}

func TestCoordLookup(t *testing.T) {
	c := testCube(t)
	lat, dims, err := c.Coord("latitude")
	if err != nil {
		t.Fatalf("Coord failed: %v", err)
	}
	if lat.Len() != 3 || !reflect.DeepEqual(dims, []int{1}) {
		t.Errorf("latitude len=%d dims=%v", lat.Len(), dims)
	}

	lat.VarName = "lat"
	if !c.HasCoord("lat") {
		t.Error("lookup by variable name failed")
	}

	_, _, err = c.Coord("depth")
	var notFound *CoordNotFoundError
	if !errors.As(err, &notFound) || notFound.Name != "depth" {
		t.Errorf("expected CoordNotFoundError, got %v", err)
	}
}

func TestAddCoordValidation(t *testing.T) {
	c := testCube(t)
	if err := c.AddDimCoord(NewDimCoord("latitude", "", []float64{1, 2}, nil), 1); err == nil {
		t.Error("expected error for wrong length")
	}
	if err := c.AddDimCoord(NewDimCoord("x", "", []float64{1}, nil), 5); err == nil {
		t.Error("expected error for out-of-range dimension")
	}
	if err := c.AddAuxCoord(NewCoord2D("lat2d", "", make([]float64, 12), 3, 4), 1); err == nil {
		t.Error("expected error for rank mismatch")
	}
	if err := c.AddAuxCoord(NewCoord2D("lat2d", "", make([]float64, 12), 3, 4), 1, 2); err != nil {
		t.Errorf("AddAuxCoord failed: %v", err)
	}
}

func TestLazyCube(t *testing.T) {
	loads := 0
	c := NewLazyCube("tas", "K", []int{2, 2}, func() (*sparse.DenseArray, []bool, error) {
		loads++
		data := NewArray(2, 2)
		copy(data.Elements, []float64{1, 2, 3, 4})
		return data, []bool{false, true, false, false}, nil
	})
	if !c.IsLazy() || c.Size() != 4 || c.NDim() != 2 {
		t.Fatalf("unexpected lazy cube state: lazy=%v size=%d", c.IsLazy(), c.Size())
	}
	cp := c.Copy()
	if !cp.IsLazy() {
		t.Error("copy of a lazy cube should stay lazy")
	}

	data, err := c.Data()
	if err != nil {
		t.Fatalf("Data failed: %v", err)
	}
	if data.Elements[3] != 4 || !c.IsMasked(1) || c.IsLazy() {
		t.Errorf("unexpected realized state")
	}
	if _, err := c.Data(); err != nil || loads != 1 {
		t.Errorf("payload loaded %d times, want 1", loads)
	}

	bad := NewLazyCube("tas", "K", []int{3}, func() (*sparse.DenseArray, []bool, error) {
		return NewArray(2), nil, nil
	})
	var mismatch *ShapeMismatchError
	if err := bad.Realize(); !errors.As(err, &mismatch) {
		t.Errorf("expected ShapeMismatchError, got %v", err)
	}
	failing := NewLazyCube("tas", "K", []int{1}, func() (*sparse.DenseArray, []bool, error) {
		return nil, nil, errors.New("disk gone")
	})
	if err := failing.Realize(); err == nil {
		t.Error("expected loader error")
	}
}

func TestSetData(t *testing.T) {
	c := testCube(t)
	if err := c.SetData(NewArray(2, 3), nil); err == nil {
		t.Error("expected shape error")
	}
	if err := c.SetData(NewArray(2, 3, 4), make([]bool, 5)); err == nil {
		t.Error("expected mask length error")
	}
}

func TestCopyIsDeep(t *testing.T) {
	c := testCube(t)
	cp := c.Copy()
	data, _ := cp.Data()
	data.Elements[0] = 99
	cp.DimCoords[1].Points[0] = 99
	cp.Attributes["x"] = "y"

	orig, _ := c.Data()
	if orig.Elements[0] != 0 || c.DimCoords[1].Points[0] != -30 || c.Attributes["x"] != "" {
		t.Error("Copy shares state with the original")
	}
}

func TestCollapsed(t *testing.T) {
	c := testCube(t)

	t.Run("one dimension", func(t *testing.T) {
		out, err := c.Collapsed([]string{"longitude"}, MeanAggregator, nil)
		if err != nil {
			t.Fatalf("Collapsed failed: %v", err)
		}
		if !reflect.DeepEqual(out.Shape(), []int{2, 3}) {
			t.Fatalf("shape = %v", out.Shape())
		}
		data, _ := out.Data()
		// Row i holds 4i..4i+3, mean 4i+1.5.
		for i, v := range data.Elements {
			if want := 4*float64(i) + 1.5; v != want {
				t.Errorf("value[%d] = %v, want %v", i, v, want)
			}
		}
		if out.DimCoords[1].Name != "latitude" {
			t.Error("latitude should stay a dimension coordinate")
		}
		lon, dims, err := out.Coord("longitude")
		if err != nil || len(dims) != 0 || lon.Points[0] != 135 {
			t.Errorf("scalar longitude = %v dims %v err %v", lon, dims, err)
		}
		if !reflect.DeepEqual(out.CellMethods, []string{"longitude: mean"}) {
			t.Errorf("cell methods = %v", out.CellMethods)
		}
	})

	t.Run("all dimensions", func(t *testing.T) {
		out, err := c.Collapsed([]string{"time", "latitude", "longitude"}, MaxAggregator, nil)
		if err != nil {
			t.Fatalf("Collapsed failed: %v", err)
		}
		if len(out.Shape()) != 0 || out.Size() != 1 {
			t.Fatalf("shape = %v size = %d", out.Shape(), out.Size())
		}
		data, _ := out.Data()
		if data.Elements[0] != 23 {
			t.Errorf("max = %v, want 23", data.Elements[0])
		}
		if len(out.ScalarCoords) != 3 || out.ScalarCoords[0].Name != "latitude" {
			t.Errorf("scalar coords not sorted: %v", out.ScalarCoords)
		}
	})

	t.Run("weights", func(t *testing.T) {
		w := NewArray(2, 3, 4)
		for i := range w.Elements {
			if i%4 == 3 {
				w.Elements[i] = 1
			}
		}
		out, err := c.Collapsed([]string{"longitude"}, MeanAggregator, w)
		if err != nil {
			t.Fatalf("Collapsed failed: %v", err)
		}
		data, _ := out.Data()
		if data.Elements[0] != 3 {
			t.Errorf("weighted mean = %v, want 3", data.Elements[0])
		}

		if _, err := c.Collapsed([]string{"longitude"}, MeanAggregator, NewArray(3, 4)); err == nil {
			t.Error("expected shape mismatch for weights")
		}
		// Unweighted aggregators ignore the weight shape.
		if _, err := c.Collapsed([]string{"longitude"}, MinAggregator, NewArray(3, 4)); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("errors", func(t *testing.T) {
		if _, err := c.Collapsed(nil, MeanAggregator, nil); err == nil {
			t.Error("expected error for no coordinates")
		}
		if _, err := c.Collapsed([]string{"depth"}, MeanAggregator, nil); err == nil {
			t.Error("expected error for unknown coordinate")
		}
	})
}

func TestCollapsed_AuxCoords(t *testing.T) {
	c := testCube(t)
	mustAdd(t, c.AddAuxCoord(NewCoord2D("cell_id", "1", make([]float64, 12), 3, 4), 1, 2))
	mustAdd(t, c.AddAuxCoord(NewDimCoord("year", "1", []float64{2000, 2001}, nil), 0))

	out, err := c.Collapsed([]string{"latitude", "longitude"}, MeanAggregator, nil)
	if err != nil {
		t.Fatalf("Collapsed failed: %v", err)
	}
	if _, dims, err := out.Coord("year"); err != nil || !reflect.DeepEqual(dims, []int{0}) {
		t.Errorf("year should survive on dim 0, got %v %v", dims, err)
	}
	if _, dims, err := out.Coord("cell_id"); err != nil || len(dims) != 0 {
		t.Errorf("cell_id should become scalar, got %v %v", dims, err)
	}
}

func TestSqueeze(t *testing.T) {
	c := testCube(t)
	one, err := c.ExtractIndices(0, []int{1})
	if err != nil {
		t.Fatalf("ExtractIndices failed: %v", err)
	}
	mustAdd(t, one.AddAuxCoord(NewCoord2D("area", "m2", make([]float64, 3), 1, 3), 0, 1))

	sq, err := one.Squeeze(0)
	if err != nil {
		t.Fatalf("Squeeze failed: %v", err)
	}
	if !reflect.DeepEqual(sq.Shape(), []int{3, 4}) {
		t.Fatalf("shape = %v", sq.Shape())
	}
	data, _ := sq.Data()
	if data.Elements[0] != 12 {
		t.Errorf("first value = %v, want 12", data.Elements[0])
	}
	tc, dims, err := sq.Coord("time")
	if err != nil || len(dims) != 0 || tc.Points[0] != 1 {
		t.Errorf("time should be a scalar 1, got %v %v %v", tc, dims, err)
	}
	area, dims, err := sq.Coord("area")
	if err != nil || !reflect.DeepEqual(dims, []int{0}) || !reflect.DeepEqual(area.Shape, []int{3}) {
		t.Errorf("area aux coord = %v on %v (%v)", area, dims, err)
	}

	if _, err := c.Squeeze(1); err == nil {
		t.Error("expected error squeezing a dimension of length 3")
	}
}

func TestExtractIndices(t *testing.T) {
	c := testCube(t)
	mask := make([]bool, 24)
	mask[5] = true
	data, _ := c.Data()
	if err := c.SetData(data, mask); err != nil {
		t.Fatal(err)
	}
	mustAdd(t, c.AddAuxCoord(NewCoord2D("lat2d", "", []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, 3, 4), 1, 2))

	out, err := c.ExtractIndices(2, []int{3, 1})
	if err != nil {
		t.Fatalf("ExtractIndices failed: %v", err)
	}
	got, _ := out.Data()
	want := []float64{3, 1, 7, 5, 11, 9, 15, 13, 19, 17, 23, 21}
	if !reflect.DeepEqual(got.Elements, want) {
		t.Errorf("data = %v, want %v", got.Elements, want)
	}
	if !out.IsMasked(3) || out.IsMasked(2) {
		t.Errorf("mask not carried: %v", out.Mask())
	}
	lon, _, _ := out.Coord("longitude")
	if !reflect.DeepEqual(lon.Points, []float64{270, 90}) {
		t.Errorf("longitude = %v", lon.Points)
	}
	aux, _, _ := out.Coord("lat2d")
	if !reflect.DeepEqual(aux.Points, []float64{3, 1, 7, 5, 11, 9}) || !reflect.DeepEqual(aux.Shape, []int{3, 2}) {
		t.Errorf("lat2d = %v %v", aux.Points, aux.Shape)
	}

	if _, err := c.ExtractIndices(2, []int{4}); err == nil {
		t.Error("expected out-of-range error")
	}
}

func TestIntersection(t *testing.T) {
	c := testCube(t)

	lat, err := c.Intersection("latitude", -10, 40)
	if err != nil {
		t.Fatalf("Intersection failed: %v", err)
	}
	if !reflect.DeepEqual(lat.Shape(), []int{2, 2, 4}) {
		t.Errorf("shape = %v", lat.Shape())
	}

	// Wrapping: [-100, 100] picks 270 (as -90), 0 and 90 in that order.
	lon, err := c.Intersection("longitude", -100, 100)
	if err != nil {
		t.Fatalf("Intersection failed: %v", err)
	}
	coord, _, _ := lon.Coord("longitude")
	if !reflect.DeepEqual(coord.Points, []float64{-90, 0, 90}) {
		t.Errorf("longitude = %v, want [-90 0 90]", coord.Points)
	}
	data, _ := lon.Data()
	if !reflect.DeepEqual(data.Elements[:3], []float64{3, 0, 1}) {
		t.Errorf("first row = %v, want [3 0 1]", data.Elements[:3])
	}
	if orig, _, _ := c.Coord("longitude"); orig.Points[3] != 270 {
		t.Error("input longitude modified")
	}

	var empty *EmptySelectionError
	if _, err := c.Intersection("latitude", 50, 60); !errors.As(err, &empty) {
		t.Errorf("expected EmptySelectionError, got %v", err)
	}
	var inverted *InvalidRangeError
	if _, err := c.Intersection("latitude", 10, -10); !errors.As(err, &inverted) {
		t.Errorf("expected InvalidRangeError, got %v", err)
	}
}

func TestIntersection_Bounds(t *testing.T) {
	c := testCube(t)
	lat, _, _ := c.Coord("latitude")
	lat.Bounds = [][2]float64{{-45, -15}, {-15, 15}, {15, 45}}
	lon, _, _ := c.Coord("longitude")
	lon.Bounds = [][2]float64{{-45, 45}, {45, 135}, {135, 225}, {225, 315}}

	// No point lies in [20, 25], but the cell [15, 45] covers it.
	out, err := c.Intersection("latitude", 20, 25)
	if err != nil {
		t.Fatalf("Intersection failed: %v", err)
	}
	got, _, _ := out.Coord("latitude")
	if !reflect.DeepEqual(got.Points, []float64{30}) {
		t.Errorf("latitude = %v, want [30]", got.Points)
	}

	// [350, 370] overlaps the cell around 0 only once it is shifted by 360.
	out, err = c.Intersection("longitude", 350, 370)
	if err != nil {
		t.Fatalf("Intersection failed: %v", err)
	}
	got, _, _ = out.Coord("longitude")
	if !reflect.DeepEqual(got.Points, []float64{360}) || got.Bounds[0] != [2]float64{315, 405} {
		t.Errorf("longitude = %v %v, want [360] [315 405]", got.Points, got.Bounds)
	}

	// A cell below the range is kept with its point before the minimum.
	out, err = c.Intersection("longitude", 40, 50)
	if err != nil {
		t.Fatalf("Intersection failed: %v", err)
	}
	got, _, _ = out.Coord("longitude")
	if !reflect.DeepEqual(got.Points, []float64{0, 90}) {
		t.Errorf("longitude = %v, want [0 90]", got.Points)
	}
}

func TestGuessBounds(t *testing.T) {
	coord := NewDimCoord("latitude", "degrees_north", []float64{-60, 0, 60}, nil)
	if err := coord.GuessBounds(); err != nil {
		t.Fatalf("GuessBounds failed: %v", err)
	}
	want := [][2]float64{{-90, -30}, {-30, 30}, {30, 90}}
	if !reflect.DeepEqual(coord.Bounds, want) {
		t.Errorf("bounds = %v, want %v", coord.Bounds, want)
	}

	if err := NewDimCoord("x", "", []float64{1}, nil).GuessBounds(); err == nil {
		t.Error("expected error for a single point")
	}
	if err := NewCoord2D("lat", "", make([]float64, 4), 2, 2).GuessBounds(); err == nil {
		t.Error("expected error for a 2-D coordinate")
	}
}

func TestAreaWeights(t *testing.T) {
	data := NewArray(2, 2)
	c := NewCube("tas", "K", data)
	mustAdd(t, c.AddDimCoord(NewDimCoord("latitude", "degrees_north", []float64{-45, 45},
		[][2]float64{{-90, 0}, {0, 90}}), 0))
	mustAdd(t, c.AddDimCoord(NewDimCoord("longitude", "degrees_east", []float64{90, 270},
		[][2]float64{{0, 180}, {180, 360}}), 1))

	w, err := AreaWeights(c)
	if err != nil {
		t.Fatalf("AreaWeights failed: %v", err)
	}
	sphere := 4 * math.Pi * EarthRadius * EarthRadius
	total := 0.0
	for _, v := range w.Elements {
		total += v
		if math.Abs(v-sphere/4) > 1e-3*sphere {
			t.Errorf("cell area %v, want a quarter sphere", v)
		}
	}
	if math.Abs(total-sphere)/sphere > 1e-12 {
		t.Errorf("total area %v, want %v", total, sphere)
	}

	c.DimCoords[0].Bounds = nil
	if _, err := AreaWeights(c); err == nil {
		t.Error("expected error without bounds")
	}
	if err := c.GuessBounds("latitude", "longitude"); err != nil {
		t.Fatalf("GuessBounds failed: %v", err)
	}
	// Guessed bounds reproduce the original cells.
	w, err = AreaWeights(c)
	if err != nil {
		t.Fatalf("AreaWeights failed: %v", err)
	}
	if math.Abs(w.Elements[0]-sphere/4)/sphere > 1e-12 {
		t.Errorf("guessed cell area %v, want %v", w.Elements[0], sphere/4)
	}
}

func TestNormalizeLon360(t *testing.T) {
	tests := map[float64]float64{-180: 180, -0.5: 359.5, 0: 0, 360: 0, 725: 5}
	for in, want := range tests {
		if got := NormalizeLon360(in); got != want {
			t.Errorf("NormalizeLon360(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestKindErrors(t *testing.T) {
	tests := []struct {
		err  KindError
		kind ErrorKind
	}{
		{&IrregularGridError{Operation: "zonal", Coord: "latitude", NDim: 2}, KindStructuralIncompatibility},
		{&MissingWeightsError{Coord: "latitude"}, KindStructuralIncompatibility},
		{&ShapeMismatchError{What: "fx", WeightShape: []int{1}, CubeShape: []int{2}}, KindShapeMismatch},
		{&UnsupportedDimensionalityError{CubeRank: 5, WeightRank: 2}, KindUnsupportedDimensionality},
		{&InvalidOperatorError{Token: "x"}, KindInvalidOperator},
		{&InvalidRegionSelectorError{Value: 1}, KindInvalidRegionSelector},
		{&UnknownRegionError{Missing: []string{"a"}}, KindUnknownRegion},
	}
	for _, tt := range tests {
		if tt.err.Kind() != tt.kind {
			t.Errorf("%T kind = %v, want %v", tt.err, tt.err.Kind(), tt.kind)
		}
		if tt.err.Error() == "" {
			t.Errorf("%T has an empty message", tt.err)
		}
	}
}
