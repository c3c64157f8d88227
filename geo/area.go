package geo

import (
	"fmt"
	"math"
	"sort"

	"github.com/boyangli/landfillmap-producer/models"
)

// MetersPerDegree is the length of one degree of latitude, and of longitude
// at the equator
const MetersPerDegree = 111_320.0

// ZoomStep applies Factor to every zoom level >= MinZoom
type ZoomStep struct {
	MinZoom int     `yaml:"min_zoom" json:"min_zoom"`
	Factor  float64 `yaml:"factor" json:"factor"`
}

// ZoomCorrection is a step function from image zoom level to an area
// calibration factor. Zoom levels below every step get Floor; an absent
// zoom level gets 1.
type ZoomCorrection struct {
	Steps []ZoomStep `yaml:"steps" json:"steps"`
	Floor float64    `yaml:"floor" json:"floor"`
}

// DefaultZoomCorrection returns the calibration used for the production
// satellite exports
func DefaultZoomCorrection() ZoomCorrection {
	return ZoomCorrection{
		Steps: []ZoomStep{
			{MinZoom: 1200, Factor: 1.1},
			{MinZoom: 1000, Factor: 1.05},
			{MinZoom: 800, Factor: 1.0},
			{MinZoom: 600, Factor: 0.95},
		},
		Floor: 0.9,
	}
}

// Validate checks that every factor is positive
func (z ZoomCorrection) Validate() error {
	if z.Floor <= 0 {
		return fmt.Errorf("zoom floor factor must be positive, got %v", z.Floor)
	}
	for _, s := range z.Steps {
		if s.Factor <= 0 {
			return fmt.Errorf("zoom factor for level %d must be positive, got %v", s.MinZoom, s.Factor)
		}
	}
	return nil
}

// Factor returns the calibration factor for a zoom level
func (z ZoomCorrection) Factor(zoom *int) float64 {
	if zoom == nil {
		return 1.0
	}
	steps := make([]ZoomStep, len(z.Steps))
	copy(steps, z.Steps)
	sort.Slice(steps, func(i, j int) bool { return steps[i].MinZoom > steps[j].MinZoom })

	for _, s := range steps {
		if *zoom >= s.MinZoom {
			return s.Factor
		}
	}
	return z.Floor
}

// PlanarAreaM2 approximates the ground area of the lat/lon rectangle spanned
// by nw and se. Longitude degrees are shortened by cos(mean latitude); the
// approximation holds for landfill-sized boxes away from the poles.
func PlanarAreaM2(nw, se models.LatLon) float64 {
	meanLat := (nw.Lat + se.Lat) / 2.0
	latMeters := math.Abs((nw.Lat - se.Lat) * MetersPerDegree)
	lonMeters := math.Abs((se.Lon - nw.Lon) * MetersPerDegree * math.Cos(meanLat*math.Pi/180))
	return latMeters * lonMeters
}

// EstimateAreaM2 returns the zoom-corrected planar area of the bounding box.
// The result is never negative or non-finite.
func EstimateAreaM2(nw, se models.LatLon, zoom *int, zc ZoomCorrection) float64 {
	area := PlanarAreaM2(nw, se) * zc.Factor(zoom)
	if !isFinite(area) || area < 0 {
		return 0
	}
	return area
}
