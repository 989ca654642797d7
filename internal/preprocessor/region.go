package preprocessor

import (
	"fmt"
	"sort"

	"go.ngs.io/climate-preproc/internal/domain"
)

// ExtractRegion subsets a cube on the box [startLon, endLon] x
// [startLat, endLat].
//
// Regular grids are cut by coordinate intersection and the longitudes of
// the result are normalized into [0, 360), so negative longitude inputs work.
// The result may stay lazy. Irregular grids (2-D coordinates) are not cut:
// the data is materialized and every cell outside the box is masked in a
// copy of equal shape.
func ExtractRegion(cube *domain.Cube, startLon, endLon, startLat, endLat float64) (*domain.Cube, error) {
	lat, latDims, err := cube.Coord("latitude")
	if err != nil {
		return nil, err
	}

	if lat.NDim() == 1 {
		subset, err := cube.Intersection("longitude", startLon, endLon)
		if err != nil {
			return nil, err
		}
		subset, err = subset.Intersection("latitude", startLat, endLat)
		if err != nil {
			return nil, err
		}
		return subset.Intersection("longitude", 0, 360)
	}

	lon, lonDims, err := cube.Coord("longitude")
	if err != nil {
		return nil, err
	}
	if lon.NDim() != 2 || !sameDims(latDims, lonDims) {
		return nil, fmt.Errorf("irregular grid needs 2-D latitude and longitude on the same dimensions, got %v and %v",
			latDims, lonDims)
	}

	out := cube.Copy()
	data, err := out.Data()
	if err != nil {
		return nil, err
	}
	mask := make([]bool, len(data.Elements))
	copy(mask, out.Mask())

	shape := out.Shape()
	idx := make([]int, len(shape))
	nx := lat.Shape[1]
	for i := range data.Elements {
		domain.Unravel(i, shape, idx)
		c := idx[latDims[0]]*nx + idx[latDims[1]]
		la, lo := lat.Points[c], lon.Points[c]
		if la < startLat || la > endLat || lo < startLon || lo > endLon {
			mask[i] = true
		}
	}
	if err := out.SetData(data, mask); err != nil {
		return nil, err
	}
	return out, nil
}

// ExtractNamedRegions keeps the cells whose "region" coordinate label is in
// regions. regions may be a string or a collection of strings ([]string,
// []any holding strings, or a map keyed by region such as a decoded JSON
// object). Map values are ignored. Cells keep
// their relative order; selecting a single region removes the region
// dimension.
func ExtractNamedRegions(cube *domain.Cube, regions any) (*domain.Cube, error) {
	requested, err := regionLabels(regions)
	if err != nil {
		return nil, err
	}
	if len(requested) == 0 {
		return nil, &domain.EmptySelectionError{Coord: "region"}
	}

	coord, dims, err := cube.Coord("region")
	if err != nil {
		return nil, err
	}
	if !coord.IsLabel() || coord.NDim() != 1 || len(dims) != 1 {
		return nil, fmt.Errorf("region coordinate must be a 1-D label coordinate spanning one dimension")
	}

	available := make(map[string]struct{}, len(coord.Labels))
	for _, label := range coord.Labels {
		available[label] = struct{}{}
	}
	want := make(map[string]struct{}, len(requested))
	missing := make(map[string]struct{})
	for _, label := range requested {
		want[label] = struct{}{}
		if _, ok := available[label]; !ok {
			missing[label] = struct{}{}
		}
	}
	if len(missing) > 0 {
		return nil, &domain.UnknownRegionError{Missing: keys(missing), Available: keys(available)}
	}

	var idx []int
	for i, label := range coord.Labels {
		if _, ok := want[label]; ok {
			idx = append(idx, i)
		}
	}
	subset, err := cube.ExtractIndices(dims[0], idx)
	if err != nil {
		return nil, err
	}
	if len(idx) == 1 {
		return subset.Squeeze(dims[0])
	}
	return subset, nil
}

func regionLabels(regions any) ([]string, error) {
	switch v := regions.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, &domain.InvalidRegionSelectorError{Value: regions}
			}
			out[i] = s
		}
		return out, nil
	case map[string]bool:
		set := make(map[string]struct{}, len(v))
		for k := range v {
			set[k] = struct{}{}
		}
		return keys(set), nil
	case map[string]struct{}:
		return keys(v), nil
	case map[string]any:
		set := make(map[string]struct{}, len(v))
		for k := range v {
			set[k] = struct{}{}
		}
		return keys(set), nil
	default:
		return nil, &domain.InvalidRegionSelectorError{Value: regions}
	}
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sameDims(a, b []int) bool {
	return domain.ShapesEqual(a, b)
}
