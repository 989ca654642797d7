package derive

import (
	"errors"
	"reflect"
	"testing"

	"go.ngs.io/climate-preproc/internal/domain"
)

func intppCube(t *testing.T) *domain.Cube {
	t.Helper()
	data := domain.NewArray(2, 2, 2)
	copy(data.Elements, []float64{
		1, 2,
		3, 4,
		10, 20,
		30, 40,
	})
	cube := domain.NewCube("net_primary_mole_productivity_of_biomass_expressed_as_carbon_by_phytoplankton", "mol m-2 s-1", data)
	mask := make([]bool, 8)
	mask[7] = true
	if err := cube.SetData(data, mask); err != nil {
		t.Fatal(err)
	}
	add := func(coord *domain.Coord, dim int) {
		if err := cube.AddDimCoord(coord, dim); err != nil {
			t.Fatal(err)
		}
	}
	add(domain.NewDimCoord("time", "days since 2000-01-01", []float64{15, 45}, nil), 0)
	add(domain.NewDimCoord("latitude", "degrees_north", []float64{-45, 45}, [][2]float64{{-90, 0}, {0, 90}}), 1)
	add(domain.NewDimCoord("longitude", "degrees_east", []float64{90, 270}, [][2]float64{{0, 180}, {180, 360}}), 2)
	return cube
}

func areaCube() *domain.Cube {
	data := domain.NewArray(2, 2)
	copy(data.Elements, []float64{1, 10, 100, 1000})
	return domain.NewCube("cell_area", "m2", data)
}

func TestDeriveGtintpp(t *testing.T) {
	result, err := Derive("gtintpp", Inputs{
		Cubes: map[string]*domain.Cube{"intpp": intppCube(t)},
		Fx:    map[string]*domain.Cube{"areacello": areaCube()},
	})
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	if !reflect.DeepEqual(result.Shape(), []int{2}) {
		t.Fatalf("shape = %v, want [2]", result.Shape())
	}
	data, _ := result.Data()
	// t0: 1 + 20 + 300 + 4000; t1: 10 + 200 + 3000 (cell 3 masked).
	want := []float64{4321, 3210}
	if !reflect.DeepEqual(data.Elements, want) {
		t.Errorf("totals = %v, want %v", data.Elements, want)
	}
	if result.Units != "mol m-2 s-1 m2" {
		t.Errorf("units = %q", result.Units)
	}
	if result.VarName != "gtintpp" {
		t.Errorf("var name = %q", result.VarName)
	}
	if result.Mask() != nil {
		t.Error("totals should not be masked")
	}
}

func TestDeriveGtintpp_ShapeMismatch(t *testing.T) {
	_, err := Derive("gtintpp", Inputs{
		Cubes: map[string]*domain.Cube{"intpp": intppCube(t)},
		Fx:    map[string]*domain.Cube{"areacello": domain.NewCube("cell_area", "m2", domain.NewArray(3, 2))},
	})
	var mismatch *domain.ShapeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected ShapeMismatchError, got %v", err)
	}
}

func TestDeriveShipNOs(t *testing.T) {
	data := domain.NewArray(2, 3)
	copy(data.Elements, []float64{1, 2, 3, 4, 5, 6})
	cube := domain.NewCube("SHIP_NO", "kg m-2 s-1", data)
	if err := cube.AddDimCoord(domain.NewDimCoord("time", "days", []float64{0, 1}, nil), 0); err != nil {
		t.Fatal(err)
	}
	if err := cube.AddDimCoord(domain.NewDimCoord("lev", "1", []float64{1, 2, 3}, nil), 1); err != nil {
		t.Fatal(err)
	}

	result, err := Derive("SHIP_NO_s", Inputs{Cubes: map[string]*domain.Cube{"SHIP_NO": cube}})
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	got, _ := result.Data()
	if !reflect.DeepEqual(got.Elements, []float64{6, 15}) {
		t.Errorf("sums = %v, want [6 15]", got.Elements)
	}
	if !reflect.DeepEqual(result.CellMethods, []string{"lev: sum"}) {
		t.Errorf("cell methods = %v", result.CellMethods)
	}

	flat := domain.NewCube("SHIP_NO", "1", domain.NewArray(3))
	if _, err := Derive("SHIP_NO_s", Inputs{Cubes: map[string]*domain.Cube{"SHIP_NO": flat}}); err == nil {
		t.Error("expected error for a cube without a level dimension")
	}
}

func TestDeriveErrors(t *testing.T) {
	_, err := Derive("lwcre", Inputs{})
	var unknown *UnknownVariableError
	if !errors.As(err, &unknown) || unknown.Name != "lwcre" {
		t.Errorf("expected UnknownVariableError, got %v", err)
	}

	_, err = Derive("gtintpp", Inputs{Cubes: map[string]*domain.Cube{"intpp": intppCube(t)}})
	var missing *MissingInputError
	if !errors.As(err, &missing) || missing.Input != "fx field areacello" {
		t.Errorf("expected missing areacello, got %v", err)
	}
	_, err = Derive("SHIP_NO_s", Inputs{})
	if !errors.As(err, &missing) || missing.Input != "variable SHIP_NO" {
		t.Errorf("expected missing SHIP_NO, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	if !reflect.DeepEqual(Names(), []string{"SHIP_NO_s", "gtintpp"}) {
		t.Errorf("Names = %v", Names())
	}
	v, err := Lookup("gtintpp")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if v.Required[0].ShortName != "intpp" || v.Required[0].FxFields[0] != "areacello" {
		t.Errorf("gtintpp requirements = %+v", v.Required)
	}
	if len(Variables()) != 2 {
		t.Errorf("Variables = %d entries", len(Variables()))
	}
}
