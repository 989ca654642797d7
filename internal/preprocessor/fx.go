// Package preprocessor implements the horizontal preprocessors: zonal,
// meridional and area statistics with optional cell area weighting, and
// geographic region extraction.
package preprocessor

import (
	"sort"

	"go.ngs.io/climate-preproc/internal/domain"
)

// CubeLoader reads one cube from a file. It is implemented by the NetCDF store.
type CubeLoader interface {
	// LoadCube loads the single data variable of the file at path.
	LoadCube(path string) (*domain.Cube, error)
}

// FxFile names one auxiliary field (e.g. areacello, volcello) and the file
// holding it. An empty Path means the field was not found.
type FxFile struct {
	Name string `json:"name" toml:"name"`
	Path string `json:"path" toml:"path"`
}

// FxFiles is an ordered set of fx fields.
type FxFiles []FxFile

// FxFilesFromMap builds FxFiles ordered by field name.
func FxFilesFromMap(m map[string]string) FxFiles {
	if len(m) == 0 {
		return nil
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make(FxFiles, 0, len(names))
	for _, name := range names {
		out = append(out, FxFile{Name: name, Path: m[name]})
	}
	return out
}

// Selected returns the field that will be loaded: the last entry with a
// non-empty path. Fields are never merged.
func (f FxFiles) Selected() (FxFile, bool) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i].Path != "" {
			return f[i], true
		}
	}
	return FxFile{}, false
}
