package producer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/boyangli/landfillmap-producer/geo"
	"github.com/boyangli/landfillmap-producer/models"
)

// GeoJSONWriter writes each batch as a FeatureCollection of site bounding
// boxes, one file per run
type GeoJSONWriter struct {
	path   string
	logger *zap.Logger
}

// NewGeoJSONWriter creates a writer that replaces path on every Write
func NewGeoJSONWriter(path string, logger *zap.Logger) *GeoJSONWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeoJSONWriter{path: path, logger: logger}
}

// Write renders the estimates and atomically replaces the output file
func (w *GeoJSONWriter) Write(ctx context.Context, runID string, estimates []models.DetectionEstimate) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	fc := geojson.NewFeatureCollection()
	for i := range estimates {
		fc.Append(EstimateFeature(runID, &estimates[i]))
	}

	payload, err := fc.MarshalJSON()
	if err != nil {
		return 0, fmt.Errorf("failed to encode feature collection: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(w.path), ".geojson-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write feature collection: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return 0, fmt.Errorf("failed to replace %s: %w", w.path, err)
	}

	w.logger.Info("wrote geojson",
		zap.String("path", w.path),
		zap.Int("features", len(estimates)),
	)
	return len(estimates), nil
}

// EstimateFeature converts an estimate into a polygon feature covering its
// projected bounding box
func EstimateFeature(runID string, e *models.DetectionEstimate) *geojson.Feature {
	bound := geo.Projection{BoundsNW: e.BoundsNW, BoundsSE: e.BoundsSE}.Bound()
	f := geojson.NewFeature(bound.ToPolygon())
	f.ID = e.ImageID

	f.Properties["run_id"] = runID
	f.Properties["image_id"] = e.ImageID
	f.Properties["category"] = e.Category
	f.Properties["landfill_category"] = string(e.LandfillCategory)
	f.Properties["confidence"] = e.Confidence
	f.Properties["has_segmentation"] = e.HasSegmentation
	f.Properties["center_lat"] = e.CenterLat
	f.Properties["center_lon"] = e.CenterLon
	f.Properties["surface_area_m2"] = e.SurfaceAreaM2
	f.Properties["total_waste_mass_tonnes"] = e.TotalWasteMassTonnes
	f.Properties["ch4_tonnes_per_year"] = e.CH4TonnesPerYear
	f.Properties["co2eq_tonnes_per_year"] = e.CO2eqTonnesPerYear
	if e.KnownSiteName != "" {
		f.Properties["known_site_name"] = e.KnownSiteName
	}
	if e.ParsedRegion != nil {
		f.Properties["region"] = string(*e.ParsedRegion)
	}
	return f
}
