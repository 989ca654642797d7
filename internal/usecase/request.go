package usecase

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"go.ngs.io/climate-preproc/internal/preprocessor"
)

// ErrInvalidRequest marks request validation failures.
var ErrInvalidRequest = errors.New("invalid request")

// NotFoundError is returned when a requested file or named entry does not
// exist.
type NotFoundError struct {
	What string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.What, e.Name)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// StatisticKind selects one of the horizontal statistics preprocessors.
type StatisticKind string

// Supported statistics.
const (
	AreaStatistics       StatisticKind = "area"
	ZonalStatistics      StatisticKind = "zonal"
	MeridionalStatistics StatisticKind = "meridional"
)

// StatisticsRequest asks for one statistic over a variable of a file.
type StatisticsRequest struct {
	File     string
	Variable string
	Operator string

	// Project and Dataset select CMOR metadata fixes and, when FxFiles is
	// empty, the fx catalog entry.
	Project string
	Dataset string

	FxFiles preprocessor.FxFiles
}

// Validate checks if the request is valid.
func (r *StatisticsRequest) Validate() error {
	if r.File == "" {
		return invalid("file is required")
	}
	if r.Operator == "" {
		return invalid("operator is required")
	}
	for _, fx := range r.FxFiles {
		if fx.Name == "" {
			return invalid("fx field without name")
		}
	}
	return nil
}

// RegionRequest asks for a rectangular region of a variable.
type RegionRequest struct {
	File     string
	Variable string

	StartLongitude float64
	EndLongitude   float64
	StartLatitude  float64
	EndLatitude    float64
}

// Validate checks if the request is valid.
func (r *RegionRequest) Validate() error {
	if r.File == "" {
		return invalid("file is required")
	}
	for _, v := range []float64{r.StartLongitude, r.EndLongitude, r.StartLatitude, r.EndLatitude} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalid("region bounds must be finite")
		}
	}
	return nil
}

// NamedRegionsRequest asks for the cells of a set of labelled regions.
type NamedRegionsRequest struct {
	File     string
	Variable string
	// Regions is a single label or a collection of labels.
	Regions any
}

// Validate checks if the request is valid.
func (r *NamedRegionsRequest) Validate() error {
	if r.File == "" {
		return invalid("file is required")
	}
	if r.Regions == nil {
		return invalid("regions is required")
	}
	return nil
}

// DeriveRequest asks for a derived variable.
type DeriveRequest struct {
	// Files maps each required short name to its file.
	Files   map[string]string
	Dataset string
	FxFiles preprocessor.FxFiles
}

// FixRequest asks for the file fixes of one dataset variable.
type FixRequest struct {
	Project   string
	Dataset   string
	Variable  string
	File      string
	OutputDir string
}

// Validate checks if the request is valid.
func (r *FixRequest) Validate() error {
	switch {
	case r.Project == "":
		return invalid("project is required")
	case r.Dataset == "":
		return invalid("dataset is required")
	case r.Variable == "":
		return invalid("variable is required")
	case r.File == "":
		return invalid("file is required")
	case r.OutputDir == "":
		return invalid("output_dir is required")
	}
	return nil
}

// Paths resolves request paths below a root directory.
type Paths struct {
	root string
}

// NewPaths creates a resolver rooted at dir.
func NewPaths(dir string) (*Paths, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory %s: %w", dir, err)
	}
	return &Paths{root: abs}, nil
}

// Root returns the absolute data directory.
func (p *Paths) Root() string {
	return p.root
}

// Resolve maps a request path to a path inside the data directory.
func (p *Paths) Resolve(name string) (string, error) {
	if name == "" {
		return "", invalid("empty path")
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) {
		rel, err := filepath.Rel(p.root, clean)
		if err != nil {
			return "", invalid("path %s is outside the data directory", name)
		}
		clean = rel
	}
	full := filepath.Join(p.root, clean)
	rel, err := filepath.Rel(p.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", invalid("path %s is outside the data directory", name)
	}
	return full, nil
}

// ResolveFile is Resolve for paths that must name an existing file.
func (p *Paths) ResolveFile(name string) (string, error) {
	full, err := p.Resolve(name)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &NotFoundError{What: "file", Name: name}
		}
		return "", fmt.Errorf("failed to stat %s: %w", name, err)
	}
	if info.IsDir() {
		return "", invalid("%s is a directory", name)
	}
	return full, nil
}

// resolveFx resolves the fx paths. Empty paths stay empty since they mark
// fields that were not found.
func (p *Paths) resolveFx(fx preprocessor.FxFiles) (preprocessor.FxFiles, error) {
	out := make(preprocessor.FxFiles, len(fx))
	for i, f := range fx {
		out[i] = f
		if f.Path == "" {
			continue
		}
		full, err := p.ResolveFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("fx field %s: %w", f.Name, err)
		}
		out[i].Path = full
	}
	return out, nil
}
