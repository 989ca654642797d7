// Package csv provides CSV export of result cubes.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"go.ngs.io/climate-preproc/internal/domain"
)

// WriteCube writes cube as a long table: one row per cell with a column per
// dimension holding the coordinate point (or label) and a final value
// column. Masked cells have an empty value.
func WriteCube(w io.Writer, cube *domain.Cube) error {
	data, err := cube.Data()
	if err != nil {
		return fmt.Errorf("failed to realize cube %s: %w", cube.Name, err)
	}

	shape := cube.Shape()
	coords := make([]*domain.Coord, len(shape))
	header := make([]string, 0, len(shape)+1)
	for d := range shape {
		coords[d] = dimCoord(cube, d)
		if coords[d] != nil {
			header = append(header, coords[d].Name)
		} else {
			header = append(header, fmt.Sprintf("dim%d", d))
		}
	}
	valueCol := cube.VarName
	if valueCol == "" {
		valueCol = cube.Name
	}
	header = append(header, valueCol)

	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	idx := make([]int, len(shape))
	record := make([]string, len(header))
	for i, v := range data.Elements {
		domain.Unravel(i, shape, idx)
		for d, k := range idx {
			record[d] = cellLabel(coords[d], k)
		}
		if cube.IsMasked(i) {
			record[len(shape)] = ""
		} else {
			record[len(shape)] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// dimCoord returns the coordinate describing dimension d: the dimension
// coordinate, else a 1-D auxiliary coordinate on d.
func dimCoord(cube *domain.Cube, d int) *domain.Coord {
	if c := cube.DimCoords[d]; c != nil {
		return c
	}
	for _, aux := range cube.AuxCoords {
		if len(aux.Dims) == 1 && aux.Dims[0] == d {
			return aux.Coord
		}
	}
	return nil
}

func cellLabel(c *domain.Coord, k int) string {
	switch {
	case c == nil:
		return strconv.Itoa(k)
	case c.IsLabel():
		return c.Labels[k]
	default:
		return strconv.FormatFloat(c.Points[k], 'g', -1, 64)
	}
}
