// Command grid-generator writes synthetic CMOR-style NetCDF files for
// development: a monthly near-surface temperature field, an ocean field
// masked over a land proxy, their cell area fx files, a region-labelled ocean
// heat content series and an fx catalog pointing at the fx files.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"go.ngs.io/climate-preproc/internal/adapter/store/dataset"
	"go.ngs.io/climate-preproc/internal/domain"
)

// RegionalGrid defines the geographic bounds and resolution.
type RegionalGrid struct {
	LatMin     float64
	LatMax     float64
	LonMin     float64
	LonMax     float64
	Resolution float64 // degrees
}

func (g RegionalGrid) axes() (lat, lon *domain.Coord) {
	nLat := int(math.Round((g.LatMax - g.LatMin) / g.Resolution))
	nLon := int(math.Round((g.LonMax - g.LonMin) / g.Resolution))
	lat = axis("latitude", "lat", "degrees_north", g.LatMin, g.Resolution, nLat)
	lon = axis("longitude", "lon", "degrees_east", g.LonMin, g.Resolution, nLon)
	return lat, lon
}

// axis builds a cell-centred coordinate with contiguous bounds.
func axis(name, varName, units string, start, step float64, n int) *domain.Coord {
	points := make([]float64, n)
	bounds := make([][2]float64, n)
	for i := range points {
		lo := start + float64(i)*step
		bounds[i] = [2]float64{lo, lo + step}
		points[i] = lo + step/2
	}
	c := domain.NewDimCoord(name, units, points, bounds)
	c.VarName = varName
	return c
}

type catalogFile struct {
	Datasets []catalogEntry `toml:"dataset"`
}

type catalogEntry struct {
	Name string      `toml:"name"`
	Fx   []fxCatalog `toml:"fx"`
}

type fxCatalog struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
}

func main() {
	// Command line flags
	outDir := flag.String("out", "./data", "Output directory for NetCDF files")
	datasetName := flag.String("dataset", "SYNTH-1", "Dataset name used in file names and the fx catalog")
	region := flag.String("region", "global", "Region: global or custom")
	latMin := flag.Float64("lat-min", -30.0, "Minimum latitude (custom region)")
	latMax := flag.Float64("lat-max", 30.0, "Maximum latitude (custom region)")
	lonMin := flag.Float64("lon-min", 0.0, "Minimum longitude (custom region)")
	lonMax := flag.Float64("lon-max", 90.0, "Maximum longitude (custom region)")
	resolution := flag.Float64("resolution", 2.5, "Grid resolution in degrees")
	months := flag.Int("months", 12, "Number of monthly time steps")
	flag.Parse()

	log := logrus.New()

	var grid RegionalGrid
	switch *region {
	case "global":
		grid = RegionalGrid{LatMin: -90, LatMax: 90, LonMin: 0, LonMax: 360, Resolution: *resolution}
	case "custom":
		grid = RegionalGrid{LatMin: *latMin, LatMax: *latMax, LonMin: *lonMin, LonMax: *lonMax, Resolution: *resolution}
	default:
		log.Fatalf("Unknown region: %s (use global or custom)", *region)
	}
	if grid.Resolution <= 0 || grid.LatMin >= grid.LatMax || grid.LonMin >= grid.LonMax {
		log.Fatalf("Invalid grid: %+v", grid)
	}
	if *months < 1 {
		log.Fatalf("months must be at least 1")
	}

	//nolint:gosec // G301: Generated data is shared with the server.
	if err := os.MkdirAll(filepath.Join(*outDir, "fx"), 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	store := dataset.NewStore(log)
	files, err := generate(store, grid, *months, *datasetName, *outDir)
	if err != nil {
		log.Fatalf("Generation failed: %v", err)
	}
	for _, f := range files {
		log.Infof("Generated %s", f)
	}

	catalogPath := filepath.Join(*outDir, "fx_catalog.toml")
	if err := writeCatalog(catalogPath, *datasetName); err != nil {
		log.Fatalf("Failed to write fx catalog: %v", err)
	}
	log.Infof("Generated %s", catalogPath)

	lat, lon := grid.axes()
	log.Infof("Grid size: %d x %d points, %d months", lat.Len(), lon.Len(), *months)
}

// generate writes all files and returns their paths.
func generate(store *dataset.Store, grid RegionalGrid, months int, name, outDir string) ([]string, error) {
	lat, lon := grid.axes()
	nLat, nLon := lat.Len(), lon.Len()

	time := make([]float64, months)
	timeBounds := make([][2]float64, months)
	for i := range time {
		timeBounds[i] = [2]float64{float64(i) * 30, float64(i+1) * 30}
		time[i] = float64(i)*30 + 15
	}
	timeCoord := func() *domain.Coord {
		c := domain.NewDimCoord("time", "days since 2000-01-01", time, timeBounds)
		c.VarName = "time"
		return c
	}

	// Near-surface air temperature with a seasonal cycle.
	tas := domain.NewCube("air_temperature", "K", domain.NewArray(months, nLat, nLon))
	tas.VarName = "tas"
	tasData, _ := tas.Data()
	for t := 0; t < months; t++ {
		season := math.Cos(2 * math.Pi * float64(t) / 12)
		for i, phi := range lat.Points {
			for j, lambda := range lon.Points {
				idx := (t*nLat+i)*nLon + j
				tasData.Elements[idx] = 288 -
					40*math.Pow(math.Sin(phi*math.Pi/180), 2) +
					10*season*math.Sin(phi*math.Pi/180) +
					2*math.Cos(lambda*math.Pi/90)
			}
		}
	}
	if err := addGrid(tas, timeCoord(), lat, lon); err != nil {
		return nil, err
	}
	tas.CellMethods = []string{"area: time: mean"}
	height := domain.NewDimCoord("height", "m", []float64{2}, nil)
	height.VarName = "height"
	tas.AddScalarCoord(height)

	// Sea surface temperature, masked over a land proxy.
	tos := domain.NewCube("sea_surface_temperature", "degC", domain.NewArray(months, nLat, nLon))
	tos.VarName = "tos"
	tosData, _ := tos.Data()
	mask := make([]bool, len(tosData.Elements))
	for t := 0; t < months; t++ {
		for i, phi := range lat.Points {
			for j, lambda := range lon.Points {
				idx := (t*nLat+i)*nLon + j
				mask[idx] = isLand(phi, lambda)
				tosData.Elements[idx] = 28 * math.Cos(phi*math.Pi/180)
			}
		}
	}
	if err := tos.SetData(tosData, mask); err != nil {
		return nil, err
	}
	if err := addGrid(tos, timeCoord(), lat, lon); err != nil {
		return nil, err
	}

	// Cell areas.
	areacella := domain.NewCube("cell_area", "m2", domain.NewArray(nLat, nLon))
	areacella.VarName = "areacella"
	if err := areacella.AddDimCoord(lat.Copy(), 0); err != nil {
		return nil, err
	}
	if err := areacella.AddDimCoord(lon.Copy(), 1); err != nil {
		return nil, err
	}
	areas, err := domain.AreaWeights(areacella)
	if err != nil {
		return nil, err
	}
	if err := areacella.SetData(areas, nil); err != nil {
		return nil, err
	}
	areacello := areacella.Copy()
	areacello.VarName = "areacello"
	oceanAreas, _ := areacello.Data()
	oceanMask := make([]bool, len(oceanAreas.Elements))
	for i, phi := range lat.Points {
		for j, lambda := range lon.Points {
			oceanMask[i*nLon+j] = isLand(phi, lambda)
		}
	}
	if err := areacello.SetData(oceanAreas, oceanMask); err != nil {
		return nil, err
	}

	// Ocean heat content per basin.
	basins := []string{"atlantic_arctic_ocean", "indian_pacific_ocean", "global_ocean"}
	ohc := domain.NewCube("ocean_heat_content", "J", domain.NewArray(months, len(basins)))
	ohc.VarName = "ohc"
	ohcData, _ := ohc.Data()
	for t := 0; t < months; t++ {
		for b := range basins {
			ohcData.Elements[t*len(basins)+b] = 1e22 * float64(b+1) * (1 + 0.01*float64(t))
		}
	}
	if err := ohc.AddDimCoord(timeCoord(), 0); err != nil {
		return nil, err
	}
	if err := ohc.AddDimCoord(domain.NewLabelCoord("region", basins), 1); err != nil {
		return nil, err
	}

	outputs := []struct {
		path string
		cube *domain.Cube
	}{
		{fmt.Sprintf("tas_Amon_%s.nc", name), tas},
		{fmt.Sprintf("tos_Omon_%s.nc", name), tos},
		{fmt.Sprintf("ohc_Omon_%s.nc", name), ohc},
		{fmt.Sprintf("fx/areacella_fx_%s.nc", name), areacella},
		{fmt.Sprintf("fx/areacello_Ofx_%s.nc", name), areacello},
	}
	files := make([]string, 0, len(outputs))
	for _, o := range outputs {
		path := filepath.Join(outDir, o.path)
		if err := store.SaveCube(path, o.cube); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", o.path, err)
		}
		files = append(files, path)
	}
	return files, nil
}

func addGrid(cube *domain.Cube, time, lat, lon *domain.Coord) error {
	for dim, c := range []*domain.Coord{time, lat.Copy(), lon.Copy()} {
		if err := cube.AddDimCoord(c, dim); err != nil {
			return err
		}
	}
	return nil
}

// isLand is a crude continent proxy: two longitude bands outside the polar
// caps.
func isLand(lat, lon float64) bool {
	if lat > 70 || lat < -60 {
		return false
	}
	return (lon > 240 && lon < 300 && lat > -50) || (lon > 0 && lon < 40 && lat > -35)
}

func writeCatalog(path, name string) error {
	cat := catalogFile{Datasets: []catalogEntry{{
		Name: name,
		Fx: []fxCatalog{
			{Name: "areacella", Path: fmt.Sprintf("fx/areacella_fx_%s.nc", name)},
		},
	}, {
		Name: name + "-ocean",
		Fx: []fxCatalog{
			{Name: "areacello", Path: fmt.Sprintf("fx/areacello_Ofx_%s.nc", name)},
		},
	}}}
	//nolint:gosec // G304: Output path comes from the command line.
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(cat); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
