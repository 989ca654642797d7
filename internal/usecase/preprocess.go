// Package usecase orchestrates preprocessing requests: it validates them,
// resolves files below the data directory, loads cubes, applies CMOR fixes
// and runs the preprocessors.
package usecase

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"go.ngs.io/climate-preproc/internal/adapter/store/dataset"
	"go.ngs.io/climate-preproc/internal/cmor/fixes"
	"go.ngs.io/climate-preproc/internal/domain"
	"go.ngs.io/climate-preproc/internal/preprocessor"
	"go.ngs.io/climate-preproc/internal/preprocessor/derive"
)

// DefaultProject is assumed when a request names a dataset but no project.
const DefaultProject = "CMIP6"

// PreprocessUseCase orchestrates the preprocessors.
type PreprocessUseCase struct {
	paths    *Paths
	store    *dataset.Store
	fxLoader preprocessor.CubeLoader
	pre      *preprocessor.Preprocessor
	fixes    *fixes.Registry
	catalog  *FxCatalog
	log      logrus.FieldLogger
}

// NewPreprocessUseCase creates a new preprocess use case. Fx fields are read
// through fxLoader, which is usually a dataset.CachedLoader over store.
func NewPreprocessUseCase(
	paths *Paths,
	store *dataset.Store,
	fxLoader preprocessor.CubeLoader,
	registry *fixes.Registry,
	catalog *FxCatalog,
	log logrus.FieldLogger,
) *PreprocessUseCase {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if fxLoader == nil {
		fxLoader = store
	}
	return &PreprocessUseCase{
		paths:    paths,
		store:    store,
		fxLoader: fxLoader,
		pre:      preprocessor.New(fxLoader, log),
		fixes:    registry,
		catalog:  catalog,
		log:      log,
	}
}

// Statistics runs one of the horizontal statistics on the requested variable.
func (uc *PreprocessUseCase) Statistics(kind StatisticKind, req StatisticsRequest) (*domain.Cube, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	cube, err := uc.loadVariable(req.File, req.Variable, req.Project, req.Dataset)
	if err != nil {
		return nil, err
	}
	fx, err := uc.fxFiles(req.Dataset, req.FxFiles)
	if err != nil {
		return nil, err
	}

	uc.log.WithFields(logrus.Fields{
		"statistic": kind,
		"operator":  req.Operator,
		"cube":      cube.Name,
		"fx_fields": len(fx),
	}).Debug("Running statistics")

	switch kind {
	case AreaStatistics:
		return uc.pre.AreaStatistics(cube, req.Operator, fx)
	case ZonalStatistics:
		return uc.pre.ZonalStatistics(cube, req.Operator, fx)
	case MeridionalStatistics:
		return uc.pre.MeridionalStatistics(cube, req.Operator, fx)
	default:
		return nil, invalid("unknown statistic %q", kind)
	}
}

// ExtractRegion cuts a longitude/latitude box out of the requested variable.
func (uc *PreprocessUseCase) ExtractRegion(req RegionRequest) (*domain.Cube, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	cube, err := uc.loadVariable(req.File, req.Variable, "", "")
	if err != nil {
		return nil, err
	}
	return preprocessor.ExtractRegion(cube, req.StartLongitude, req.EndLongitude, req.StartLatitude, req.EndLatitude)
}

// ExtractNamedRegions keeps the requested labelled regions.
func (uc *PreprocessUseCase) ExtractNamedRegions(req NamedRegionsRequest) (*domain.Cube, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	cube, err := uc.loadVariable(req.File, req.Variable, "", "")
	if err != nil {
		return nil, err
	}
	return preprocessor.ExtractNamedRegions(cube, req.Regions)
}

// Derive computes a derived variable from the requested input files.
func (uc *PreprocessUseCase) Derive(name string, req DeriveRequest) (*domain.Cube, error) {
	v, err := derive.Lookup(name)
	if err != nil {
		return nil, err
	}
	fx, err := uc.fxFiles(req.Dataset, req.FxFiles)
	if err != nil {
		return nil, err
	}

	in := derive.Inputs{
		Cubes: make(map[string]*domain.Cube),
		Fx:    make(map[string]*domain.Cube),
	}
	for _, r := range v.Required {
		if file, ok := req.Files[r.ShortName]; ok {
			cube, err := uc.loadVariable(file, r.ShortName, "", "")
			if err != nil {
				return nil, fmt.Errorf("input %s: %w", r.ShortName, err)
			}
			in.Cubes[r.ShortName] = cube
		}
		for _, field := range r.FxFields {
			for _, f := range fx {
				if f.Name != field || f.Path == "" {
					continue
				}
				uc.log.WithFields(logrus.Fields{
					"field": f.Name,
					"path":  f.Path,
				}).Info("Attempting to load fx field")
				cube, err := uc.fxLoader.LoadCube(f.Path)
				if err != nil {
					return nil, fmt.Errorf("fx field %s: %w", field, err)
				}
				in.Fx[field] = cube
			}
		}
	}
	return derive.Derive(name, in)
}

// FixResult reports the outcome of applying file fixes.
type FixResult struct {
	// File is the fixed file relative to the data directory. It equals the
	// input when no file fix applies.
	File    string   `json:"file"`
	Applied []string `json:"applied"`
}

// ApplyFixes runs the registered file fixes and writes the result below
// OutputDir.
func (uc *PreprocessUseCase) ApplyFixes(req FixRequest) (*FixResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if uc.fixes == nil {
		return nil, fmt.Errorf("no fix registry configured")
	}
	src, err := uc.paths.ResolveFile(req.File)
	if err != nil {
		return nil, err
	}
	outDir, err := uc.paths.Resolve(req.OutputDir)
	if err != nil {
		return nil, err
	}

	key := fixes.Key{Project: req.Project, Dataset: req.Dataset, Variable: req.Variable}
	applied := make([]string, 0)
	for _, fix := range uc.fixes.Lookup(key) {
		if fix.File != nil {
			applied = append(applied, fix.Name)
		}
	}
	fixed, err := uc.fixes.FixFile(key, src, outDir)
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(uc.paths.Root(), fixed)
	if err != nil {
		return nil, fmt.Errorf("failed to relativize %s: %w", fixed, err)
	}
	return &FixResult{File: filepath.ToSlash(rel), Applied: applied}, nil
}

// FixKeys lists the registered fix keys.
func (uc *PreprocessUseCase) FixKeys() []fixes.Key {
	if uc.fixes == nil {
		return nil
	}
	return uc.fixes.Keys()
}

// Save writes cube as NetCDF to a path below the data directory.
func (uc *PreprocessUseCase) Save(name string, cube *domain.Cube) (string, error) {
	path, err := uc.paths.Resolve(name)
	if err != nil {
		return "", err
	}
	if err := uc.store.SaveCube(path, cube); err != nil {
		return "", err
	}
	return path, nil
}

func (uc *PreprocessUseCase) loadVariable(file, variable, project, datasetName string) (*domain.Cube, error) {
	path, err := uc.paths.ResolveFile(file)
	if err != nil {
		return nil, err
	}
	var cube *domain.Cube
	if variable == "" {
		cube, err = uc.store.LoadCube(path)
	} else {
		cube, err = uc.store.LoadVariable(path, variable)
	}
	var missing *dataset.VariableNotFoundError
	if errors.As(err, &missing) {
		return nil, &NotFoundError{What: "variable", Name: variable}
	}
	if err != nil {
		return nil, err
	}
	if datasetName == "" || uc.fixes == nil {
		return cube, nil
	}
	if project == "" {
		project = DefaultProject
	}
	key := fixes.Key{Project: project, Dataset: datasetName, Variable: cube.VarName}
	cubes, err := uc.fixes.FixMetadata(key, []*domain.Cube{cube})
	if err != nil {
		return nil, err
	}
	return cubes[0], nil
}

// fxFiles resolves the request fx fields, falling back to the catalog entry
// of the dataset.
func (uc *PreprocessUseCase) fxFiles(datasetName string, fx preprocessor.FxFiles) (preprocessor.FxFiles, error) {
	if len(fx) == 0 && datasetName != "" && uc.catalog != nil {
		entry, ok, err := uc.catalog.Lookup(datasetName)
		if err != nil {
			return nil, err
		}
		if ok {
			fx = entry
		}
	}
	if len(fx) == 0 {
		return nil, nil
	}
	return uc.paths.resolveFx(fx)
}
