package usecase

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"go.ngs.io/climate-preproc/internal/preprocessor"
)

// --- Fx catalog (per dataset fx fields) ---

type fxCatalogFile struct {
	Datasets []fxCatalogEntry `toml:"dataset"`
}

type fxCatalogEntry struct {
	Name string                `toml:"name"`
	Fx   []preprocessor.FxFile `toml:"fx"`
}

// FxCatalog maps dataset names to their ordered fx fields. The file is read
// on first use; a missing file yields an empty catalog.
//
//	[[dataset]]
//	name = "CESM2"
//	  [[dataset.fx]]
//	  name = "areacella"
//	  path = "fx/areacella_fx_CESM2.nc"
type FxCatalog struct {
	path string
	log  logrus.FieldLogger

	once    sync.Once
	entries map[string]preprocessor.FxFiles
	err     error
}

// NewFxCatalog creates a catalog backed by the TOML file at path.
func NewFxCatalog(path string, log logrus.FieldLogger) *FxCatalog {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FxCatalog{path: path, log: log}
}

func (c *FxCatalog) load() {
	c.entries = make(map[string]preprocessor.FxFiles)
	if c.path == "" {
		return
	}
	//nolint:gosec // G304: Catalog path comes from configuration.
	b, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.log.WithField("path", c.path).Warn("Fx catalog not found, continuing without it")
			return
		}
		c.err = fmt.Errorf("failed to read fx catalog: %w", err)
		return
	}
	var file fxCatalogFile
	if _, err := toml.Decode(string(b), &file); err != nil {
		c.err = fmt.Errorf("failed to parse fx catalog %s: %w", c.path, err)
		return
	}
	for _, entry := range file.Datasets {
		if entry.Name == "" {
			c.err = fmt.Errorf("fx catalog %s: dataset entry without name", c.path)
			return
		}
		c.entries[strings.ToUpper(entry.Name)] = entry.Fx
	}
	c.log.WithFields(logrus.Fields{
		"path":     c.path,
		"datasets": len(c.entries),
	}).Info("Loaded fx catalog")
}

// Lookup returns the fx fields of dataset. Names match case-insensitively.
func (c *FxCatalog) Lookup(dataset string) (preprocessor.FxFiles, bool, error) {
	c.once.Do(c.load)
	if c.err != nil {
		return nil, false, c.err
	}
	fx, ok := c.entries[strings.ToUpper(dataset)]
	if !ok {
		return nil, false, nil
	}
	return append(preprocessor.FxFiles(nil), fx...), true, nil
}

// Datasets returns the number of catalogued datasets.
func (c *FxCatalog) Datasets() (int, error) {
	c.once.Do(c.load)
	return len(c.entries), c.err
}
