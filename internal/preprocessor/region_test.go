package preprocessor

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/ctessum/sparse"

	"go.ngs.io/climate-preproc/internal/domain"
)

// irregularCube is a (y=3, x=3) cube with 2-D latitude and longitude.
func irregularCube(t *testing.T) *domain.Cube {
	t.Helper()
	data := domain.NewArray(3, 3)
	for i := range data.Elements {
		data.Elements[i] = float64(i)
	}
	cube := domain.NewCube("sea_surface_temperature", "degC", data)
	lat := domain.NewCoord2D("latitude", "degrees_north", []float64{
		-10, -10, -10,
		0, 0, 0,
		10, 10, 10,
	}, 3, 3)
	lon := domain.NewCoord2D("longitude", "degrees_east", []float64{
		100, 110, 120,
		100, 110, 120,
		100, 110, 120,
	}, 3, 3)
	if err := cube.AddAuxCoord(lat, 0, 1); err != nil {
		t.Fatalf("add latitude: %v", err)
	}
	if err := cube.AddAuxCoord(lon, 0, 1); err != nil {
		t.Fatalf("add longitude: %v", err)
	}
	return cube
}

// negativeAndShiftedGrids returns a 6x6 grid with longitudes centred on
// -2.5..2.5 and the same grid with longitudes moved into [0, 360). Values
// depend only on the wrapped longitude and the latitude.
func negativeAndShiftedGrids(t *testing.T) (*domain.Cube, *domain.Cube) {
	t.Helper()
	lats, latB := unitBounds(6, -3)
	value := func(lat, lon float64) float64 {
		return lat*100 + domain.NormalizeLon360(lon)
	}

	lons, lonB := unitBounds(6, -3)
	negative := gridCube(t, lats, lons, latB, lonB, value)

	shiftedLons := []float64{0.5, 1.5, 2.5, 357.5, 358.5, 359.5}
	shiftedB := make([][2]float64, len(shiftedLons))
	for i, p := range shiftedLons {
		shiftedB[i] = [2]float64{p - 0.5, p + 0.5}
	}
	shifted := gridCube(t, append([]float64(nil), lats...), shiftedLons,
		append([][2]float64(nil), latB...), shiftedB, value)
	return negative, shifted
}

func TestExtractRegion_UnitGrid(t *testing.T) {
	result, err := ExtractRegion(unitGrid(t), 1.5, 2.5, 1.5, 2.5)
	if err != nil {
		t.Fatalf("ExtractRegion failed: %v", err)
	}
	if !domain.ShapesEqual(result.Shape(), []int{2, 2}) {
		t.Fatalf("shape = %v, want [2 2]", result.Shape())
	}
	assertAllClose(t, realized(t, result), 1, 4)

	lon, _, err := result.Coord("longitude")
	if err != nil {
		t.Fatalf("longitude: %v", err)
	}
	if !reflect.DeepEqual(lon.Points, []float64{1.5, 2.5}) {
		t.Errorf("longitude points = %v", lon.Points)
	}
	if lon.Bounds[0] != [2]float64{1, 2} {
		t.Errorf("longitude bounds = %v", lon.Bounds)
	}
}

func TestExtractRegion_StaysLazy(t *testing.T) {
	grid := unitGrid(t)
	data, _ := grid.Data()
	shape := grid.Shape()
	lazy := domain.NewLazyCube(grid.Name, grid.Units, shape, func() (*sparse.DenseArray, []bool, error) {
		return data.Copy(), nil, nil
	})
	lazy.DimCoords = grid.DimCoords

	result, err := ExtractRegion(lazy, 0, 3, 0, 3)
	if err != nil {
		t.Fatalf("ExtractRegion failed: %v", err)
	}
	if !result.IsLazy() {
		t.Error("regular grid extraction should not load the payload")
	}
	if !domain.ShapesEqual(result.Shape(), []int{3, 3}) {
		t.Errorf("shape = %v, want [3 3]", result.Shape())
	}
	assertAllClose(t, realized(t, result), 1, 9)
}

func TestExtractRegion_NegativeLongitudes(t *testing.T) {
	negative, shifted := negativeAndShiftedGrids(t)

	a, err := ExtractRegion(negative, -2, 2, -2, 2)
	if err != nil {
		t.Fatalf("negative grid: %v", err)
	}
	b, err := ExtractRegion(shifted, -2, 2, -2, 2)
	if err != nil {
		t.Fatalf("shifted grid: %v", err)
	}

	if !domain.ShapesEqual(a.Shape(), []int{4, 4}) || !domain.ShapesEqual(b.Shape(), a.Shape()) {
		t.Fatalf("shapes %v and %v, want [4 4]", a.Shape(), b.Shape())
	}
	lonA, _, _ := a.Coord("longitude")
	lonB, _, _ := b.Coord("longitude")
	want := []float64{0.5, 1.5, 358.5, 359.5}
	if !reflect.DeepEqual(lonA.Points, want) || !reflect.DeepEqual(lonB.Points, want) {
		t.Errorf("longitudes %v and %v, want %v", lonA.Points, lonB.Points, want)
	}
	for i, p := range lonA.Points {
		if p < 0 || p >= 360 {
			t.Errorf("longitude %v outside [0, 360)", p)
		}
		if lonA.Bounds[i][0] != p-0.5 || lonA.Bounds[i][1] != p+0.5 {
			t.Errorf("bounds %v do not follow point %v", lonA.Bounds[i], p)
		}
	}
	if !reflect.DeepEqual(realized(t, a), realized(t, b)) {
		t.Errorf("data differs:\n%v\n%v", realized(t, a), realized(t, b))
	}
}

func TestExtractRegion_Irregular(t *testing.T) {
	cube := irregularCube(t)
	result, err := ExtractRegion(cube, 105, 125, -5, 15)
	if err != nil {
		t.Fatalf("ExtractRegion failed: %v", err)
	}
	if !domain.ShapesEqual(result.Shape(), []int{3, 3}) {
		t.Fatalf("shape = %v, irregular extraction must keep the shape", result.Shape())
	}
	wantMask := []bool{
		true, true, true,
		true, false, false,
		true, false, false,
	}
	for i, w := range wantMask {
		if result.IsMasked(i) != w {
			t.Errorf("cell %d masked = %v, want %v", i, result.IsMasked(i), w)
		}
	}
	if realized(t, result)[4] != 4 {
		t.Error("data values must be kept")
	}
	if cube.Mask() != nil {
		t.Error("input cube must not be masked")
	}
}

func TestExtractRegion_IrregularKeepsExistingMask(t *testing.T) {
	cube := irregularCube(t)
	data, _ := cube.Data()
	mask := make([]bool, 9)
	mask[4] = true
	if err := cube.SetData(data, mask); err != nil {
		t.Fatal(err)
	}
	result, err := ExtractRegion(cube, 0, 360, -90, 90)
	if err != nil {
		t.Fatalf("ExtractRegion failed: %v", err)
	}
	for i := 0; i < 9; i++ {
		if result.IsMasked(i) != (i == 4) {
			t.Errorf("cell %d masked = %v", i, result.IsMasked(i))
		}
	}
}

func TestExtractRegion_BoxInsideCell(t *testing.T) {
	result, err := ExtractRegion(unitGrid(t), 1.1, 1.4, 1.1, 1.4)
	if err != nil {
		t.Fatalf("ExtractRegion failed: %v", err)
	}
	if !domain.ShapesEqual(result.Shape(), []int{1, 1}) {
		t.Fatalf("shape = %v, want [1 1]", result.Shape())
	}
	for _, name := range []string{"latitude", "longitude"} {
		coord, _, err := result.Coord(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if coord.Points[0] != 1.5 || coord.Bounds[0] != [2]float64{1, 2} {
			t.Errorf("%s = %v %v, want cell [1, 2]", name, coord.Points, coord.Bounds)
		}
	}
}

func TestExtractRegion_EdgeOnlyCellsDropped(t *testing.T) {
	// [2, 3] touches cells [1, 2] and [3, 4] only at their edges.
	result, err := ExtractRegion(unitGrid(t), 2, 3, 2, 3)
	if err != nil {
		t.Fatalf("ExtractRegion failed: %v", err)
	}
	if !domain.ShapesEqual(result.Shape(), []int{1, 1}) {
		t.Errorf("shape = %v, want [1 1]", result.Shape())
	}
}

func TestExtractRegion_NoPoints(t *testing.T) {
	_, err := ExtractRegion(unitGrid(t), 10, 20, 0, 5)
	var empty *domain.EmptySelectionError
	if !errors.As(err, &empty) {
		t.Fatalf("expected EmptySelectionError, got %v", err)
	}
	if empty.Coord != "longitude" {
		t.Errorf("coord = %q", empty.Coord)
	}
}

func TestExtractRegion_InvertedRange(t *testing.T) {
	_, err := ExtractRegion(unitGrid(t), 340, 20, -10, 10)
	var invalid *domain.InvalidRangeError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidRangeError, got %v", err)
	}
	if invalid.Kind() != domain.KindInvalidRange {
		t.Errorf("kind = %v", invalid.Kind())
	}
}

// regionCube has shape (region=3, time=2).
func regionCube(t *testing.T) *domain.Cube {
	t.Helper()
	data := domain.NewArray(3, 2)
	copy(data.Elements, []float64{1, 2, 3, 4, 5, 6})
	cube := domain.NewCube("ocean_heat_content", "J", data)
	if err := cube.AddDimCoord(domain.NewLabelCoord("region", []string{"region1", "region2", "region3"}), 0); err != nil {
		t.Fatalf("add region: %v", err)
	}
	if err := cube.AddDimCoord(domain.NewDimCoord("time", "days since 2000-01-01", []float64{15, 45}, nil), 1); err != nil {
		t.Fatalf("add time: %v", err)
	}
	return cube
}

func TestExtractNamedRegions(t *testing.T) {
	tests := []struct {
		name      string
		regions   any
		wantShape []int
		wantData  []float64
		wantLabel []string
	}{
		{"single string", "region1", []int{2}, []float64{1, 2}, []string{"region1"}},
		{"slice", []string{"region1", "region2"}, []int{2, 2}, []float64{1, 2, 3, 4}, []string{"region1", "region2"}},
		{"reverse order keeps cube order", []string{"region3", "region1"}, []int{2, 2}, []float64{1, 2, 5, 6}, []string{"region1", "region3"}},
		{"any slice", []any{"region2"}, []int{2}, []float64{3, 4}, []string{"region2"}},
		{"set", map[string]struct{}{"region2": {}, "region3": {}}, []int{2, 2}, []float64{3, 4, 5, 6}, []string{"region2", "region3"}},
		{"bool set", map[string]bool{"region3": true}, []int{2}, []float64{5, 6}, []string{"region3"}},
		{"json object", map[string]any{"region3": true, "region1": nil}, []int{2, 2}, []float64{1, 2, 5, 6}, []string{"region1", "region3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ExtractNamedRegions(regionCube(t), tt.regions)
			if err != nil {
				t.Fatalf("ExtractNamedRegions failed: %v", err)
			}
			if !domain.ShapesEqual(result.Shape(), tt.wantShape) {
				t.Fatalf("shape = %v, want %v", result.Shape(), tt.wantShape)
			}
			if !reflect.DeepEqual(realized(t, result), tt.wantData) {
				t.Errorf("data = %v, want %v", realized(t, result), tt.wantData)
			}
			region, _, err := result.Coord("region")
			if err != nil {
				t.Fatalf("region: %v", err)
			}
			if !reflect.DeepEqual(region.Labels, tt.wantLabel) {
				t.Errorf("labels = %v, want %v", region.Labels, tt.wantLabel)
			}
		})
	}
}

func TestExtractNamedRegions_Unknown(t *testing.T) {
	_, err := ExtractNamedRegions(regionCube(t), []string{"reg_A", "region1"})
	var unknown *domain.UnknownRegionError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownRegionError, got %v", err)
	}
	if !reflect.DeepEqual(unknown.Missing, []string{"reg_A"}) {
		t.Errorf("missing = %v", unknown.Missing)
	}
	if !reflect.DeepEqual(unknown.Available, []string{"region1", "region2", "region3"}) {
		t.Errorf("available = %v", unknown.Available)
	}
	want := "region(s) {reg_A} not in cube region(s): {region1, region2, region3}"
	if err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}

func TestExtractNamedRegions_InvalidSelector(t *testing.T) {
	for _, regions := range []any{42, []any{"region1", 3}, nil, math.Pi} {
		_, err := ExtractNamedRegions(regionCube(t), regions)
		var invalid *domain.InvalidRegionSelectorError
		if !errors.As(err, &invalid) {
			t.Errorf("%v: expected InvalidRegionSelectorError, got %v", regions, err)
		}
	}
}

func TestExtractNamedRegions_Empty(t *testing.T) {
	_, err := ExtractNamedRegions(regionCube(t), []string{})
	var empty *domain.EmptySelectionError
	if !errors.As(err, &empty) {
		t.Fatalf("expected EmptySelectionError, got %v", err)
	}
	if empty.Error() != "no region selected" {
		t.Errorf("message = %q", empty.Error())
	}
}
