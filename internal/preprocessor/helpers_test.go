package preprocessor

import (
	"errors"
	"math"
	"testing"

	"go.ngs.io/climate-preproc/internal/domain"
)

// fakeLoader serves in-memory cubes keyed by path.
type fakeLoader struct {
	cubes map[string]*domain.Cube
	calls []string
}

func (f *fakeLoader) LoadCube(path string) (*domain.Cube, error) {
	f.calls = append(f.calls, path)
	cube, ok := f.cubes[path]
	if !ok {
		return nil, errors.New("no such file: " + path)
	}
	return cube.Copy(), nil
}

// unitBounds returns n cells with points i+0.5+offset and bounds [i, i+1]+offset.
func unitBounds(n int, offset float64) ([]float64, [][2]float64) {
	points := make([]float64, n)
	bounds := make([][2]float64, n)
	for i := range points {
		lo := float64(i) + offset
		points[i] = lo + 0.5
		bounds[i] = [2]float64{lo, lo + 1}
	}
	return points, bounds
}

// gridCube builds a (latitude, longitude) cube filled by value.
func gridCube(t *testing.T, lats, lons []float64, latB, lonB [][2]float64, value func(lat, lon float64) float64) *domain.Cube {
	t.Helper()
	data := domain.NewArray(len(lats), len(lons))
	for i, la := range lats {
		for j, lo := range lons {
			data.Elements[i*len(lons)+j] = value(la, lo)
		}
	}
	cube := domain.NewCube("air_temperature", "K", data)
	if err := cube.AddDimCoord(domain.NewDimCoord("latitude", "degrees_north", lats, latB), 0); err != nil {
		t.Fatalf("add latitude: %v", err)
	}
	if err := cube.AddDimCoord(domain.NewDimCoord("longitude", "degrees_east", lons, lonB), 1); err != nil {
		t.Fatalf("add longitude: %v", err)
	}
	return cube
}

// unitGrid is a 5x5 grid of ones with cell bounds [i, i+1].
func unitGrid(t *testing.T) *domain.Cube {
	t.Helper()
	points, bounds := unitBounds(5, 0)
	return gridCube(t, points, append([]float64(nil), points...), bounds, append([][2]float64(nil), bounds...),
		func(_, _ float64) float64 { return 1 })
}

// constantCube returns a cube of the given shape filled with v.
func constantCube(shape []int, v float64) *domain.Cube {
	data := domain.NewArray(shape...)
	for i := range data.Elements {
		data.Elements[i] = v
	}
	return domain.NewCube("cell_area", "m2", data)
}

func realized(t *testing.T, cube *domain.Cube) []float64 {
	t.Helper()
	data, err := cube.Data()
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	return data.Elements
}

func assertAllClose(t *testing.T, got []float64, want float64, n int) {
	t.Helper()
	if len(got) != n {
		t.Fatalf("got %d values %v, want %d", len(got), got, n)
	}
	for i, v := range got {
		if math.Abs(v-want) > 1e-9 {
			t.Errorf("value[%d] = %v, want %v", i, v, want)
		}
	}
}
