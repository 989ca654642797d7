package domain

import (
	"fmt"
	"math"

	"github.com/ctessum/sparse"
)

// EarthRadius is the spherical Earth radius in metres used for cell areas.
const EarthRadius = 6371229.0

// GuessBounds adds bounds to each named coordinate that lacks them.
func (c *Cube) GuessBounds(names ...string) error {
	for _, name := range names {
		coord, _, err := c.Coord(name)
		if err != nil {
			return err
		}
		if coord.HasBounds() {
			continue
		}
		if err := coord.GuessBounds(); err != nil {
			return err
		}
	}
	return nil
}

// AreaWeights returns the spherical area of every cell, broadcast to the
// cube shape:
//
//	A = R² (sin φ₂ − sin φ₁)(λ₂ − λ₁)
//
// Latitude and longitude must be bounded 1-D coordinates.
func AreaWeights(c *Cube) (*sparse.DenseArray, error) {
	lat, latDims, err := c.Coord("latitude")
	if err != nil {
		return nil, err
	}
	lon, lonDims, err := c.Coord("longitude")
	if err != nil {
		return nil, err
	}
	if lat.NDim() != 1 || lon.NDim() != 1 || len(latDims) != 1 || len(lonDims) != 1 {
		return nil, fmt.Errorf("area weights need 1-D latitude and longitude coordinates")
	}
	if !lat.HasBounds() || !lon.HasBounds() {
		return nil, fmt.Errorf("area weights need bounded latitude and longitude coordinates")
	}

	latExtent := make([]float64, len(lat.Bounds))
	for i, b := range lat.Bounds {
		lo := clampLat(b[0])
		hi := clampLat(b[1])
		latExtent[i] = math.Abs(math.Sin(deg2rad(hi)) - math.Sin(deg2rad(lo)))
	}
	lonExtent := make([]float64, len(lon.Bounds))
	for i, b := range lon.Bounds {
		lonExtent[i] = math.Abs(deg2rad(b[1] - b[0]))
	}

	weights := NewArray(c.shape...)
	idx := make([]int, len(c.shape))
	r2 := EarthRadius * EarthRadius
	for i := range weights.Elements {
		unravel(i, c.shape, idx)
		weights.Elements[i] = r2 * latExtent[idx[latDims[0]]] * lonExtent[idx[lonDims[0]]]
	}
	return weights, nil
}

func clampLat(v float64) float64 {
	return math.Max(-90, math.Min(90, v))
}

func deg2rad(v float64) float64 {
	return v * math.Pi / 180
}
