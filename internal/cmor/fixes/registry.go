// Package fixes corrects known CMOR metadata problems in model output
// before it enters the preprocessors.
//
// Fixes are plain functions registered under a (project, dataset, variable)
// key. Several datasets share fixes by registering the same functions, so
// no fix needs to know about any other.
package fixes

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"go.ngs.io/climate-preproc/internal/domain"
)

// Key selects the fixes for one variable of one dataset.
type Key struct {
	Project  string `json:"project"`
	Dataset  string `json:"dataset"`
	Variable string `json:"variable"`
}

func (k Key) normalized() Key {
	return Key{
		Project:  strings.ToUpper(k.Project),
		Dataset:  strings.ToUpper(k.Dataset),
		Variable: k.Variable,
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Project, k.Dataset, k.Variable)
}

// FileFix rewrites the file at path into outputDir and returns the path of
// the fixed file. The source file is never modified.
type FileFix func(path, outputDir string) (string, error)

// MetadataFix corrects the cubes loaded from a (fixed) file.
type MetadataFix func(cubes []*domain.Cube) ([]*domain.Cube, error)

// Fix is one named correction. Either stage may be nil.
type Fix struct {
	Name     string
	File     FileFix
	Metadata MetadataFix
}

// Registry maps keys to ordered fix lists.
type Registry struct {
	mu    sync.RWMutex
	fixes map[Key][]Fix
	log   logrus.FieldLogger
}

// NewRegistry returns a registry holding the built-in fixes.
func NewRegistry(log logrus.FieldLogger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Registry{fixes: make(map[Key][]Fix), log: log}
	registerCMIP6(r)
	return r
}

// Register appends fixes for key. Project and dataset match
// case-insensitively.
func (r *Registry) Register(key Key, fixes ...Fix) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key.normalized()
	r.fixes[k] = append(r.fixes[k], fixes...)
}

// Lookup returns the fixes registered for key, nil when there are none.
func (r *Registry) Lookup(key Key) []Fix {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Fix(nil), r.fixes[key.normalized()]...)
}

// Keys returns all keys with at least one fix, sorted.
func (r *Registry) Keys() []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]Key, 0, len(r.fixes))
	for k := range r.fixes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// FixFile runs the file fixes for key in order, each on the output of the
// previous one. It returns path unchanged when no file fix applies.
func (r *Registry) FixFile(key Key, path, outputDir string) (string, error) {
	current := path
	for _, fix := range r.Lookup(key) {
		if fix.File == nil {
			continue
		}
		if current == path && sameDir(path, outputDir) {
			return "", fmt.Errorf("output directory %s holds the input file %s", outputDir, path)
		}
		r.log.WithFields(logrus.Fields{
			"fix":  fix.Name,
			"key":  key.String(),
			"file": current,
		}).Debug("Applying file fix")
		next, err := fix.File(current, outputDir)
		if err != nil {
			return "", fmt.Errorf("file fix %s for %s: %w", fix.Name, key, err)
		}
		current = next
	}
	return current, nil
}

// FixMetadata runs the metadata fixes for key in order.
func (r *Registry) FixMetadata(key Key, cubes []*domain.Cube) ([]*domain.Cube, error) {
	for _, fix := range r.Lookup(key) {
		if fix.Metadata == nil {
			continue
		}
		r.log.WithFields(logrus.Fields{
			"fix": fix.Name,
			"key": key.String(),
		}).Debug("Applying metadata fix")
		var err error
		cubes, err = fix.Metadata(cubes)
		if err != nil {
			return nil, fmt.Errorf("metadata fix %s for %s: %w", fix.Name, key, err)
		}
	}
	return cubes, nil
}
