package models

import (
	"encoding/json"
)

// DetectionEstimate is the output unit of the pipeline: one classified
// landfill image, geo-referenced and carrying its emission estimate
type DetectionEstimate struct {
	// Source identity
	ImageID          string           `json:"image_id"`
	Category         string           `json:"category"`
	LandfillCategory LandfillCategory `json:"landfill_category"`
	Confidence       float64          `json:"confidence"`

	// Metadata
	KnownSiteName string  `json:"known_site_name,omitempty"`
	RegionTag     string  `json:"region_tag,omitempty"`
	ParsedRegion  *Region `json:"parsed_region,omitempty"`
	ZoomLevel     *int    `json:"zoom_level,omitempty"`

	// Geometry
	HasSegmentation bool    `json:"has_segmentation"`
	PolygonPixels   string  `json:"polygon_px"`
	BoundsNW        LatLon  `json:"bounds_nw"`
	BoundsSE        LatLon  `json:"bounds_se"`
	CenterLat       float64 `json:"center_lat"`
	CenterLon       float64 `json:"center_lon"`
	SurfaceAreaM2   float64 `json:"surface_area_m2"`

	// Emissions
	EstimatedDepthM         float64 `json:"estimated_depth_m"`
	EstimatedDensityTPerM3  float64 `json:"estimated_density_t_per_m3"`
	EstimatedVolumeM3       float64 `json:"estimated_volume_m3"`
	TotalWasteMassTonnes    float64 `json:"total_waste_mass_tonnes"`
	MethaneCorrectionFactor float64 `json:"mcf"`
	DecayRate               float64 `json:"decay_rate"`
	CH4TonnesPerYear        float64 `json:"ch4_tonnes_per_year"`
	CO2eqTonnesPerYear      float64 `json:"co2eq_tonnes_per_year"`
}

// ToJSON serializes the DetectionEstimate to JSON
func (d *DetectionEstimate) ToJSON() ([]byte, error) {
	return json.Marshal(d)
}

// FromJSON deserializes JSON to DetectionEstimate
func FromJSON(data []byte) (*DetectionEstimate, error) {
	var d DetectionEstimate
	err := json.Unmarshal(data, &d)
	return &d, err
}
