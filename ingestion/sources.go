package ingestion

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/boyangli/landfillmap-producer/geo"
	"github.com/boyangli/landfillmap-producer/models"
)

// Field names shared by the source schemas
const (
	FieldImageID    = "image_id"
	FieldLabel      = "predicted_label"
	FieldConfidence = "confidence"
	FieldPolygon    = "polygon_px"
	FieldSiteName   = "site_name"
	FieldNWLat      = "nw_lat"
	FieldNWLon      = "nw_lon"
	FieldSELat      = "se_lat"
	FieldSELon      = "se_lon"
	FieldRegion     = "region"
	FieldZoom       = "zoom"
)

var imageAliases = []string{"image_name", "image", "filename", "file_name", "naziv_slike", "slika"}

// ClassificationSchema is the header layout of the classifier output
var ClassificationSchema = Schema{
	Name: "classification",
	Fields: []Field{
		{Name: FieldImageID, Aliases: imageAliases, Required: true, Position: 0},
		{Name: FieldLabel, Aliases: []string{"label", "predicted_category", "class", "type"}, Required: true, Position: 1},
		{Name: FieldConfidence, Aliases: []string{"score", "probability"}, Position: NoPosition},
	},
}

// SegmentationSchema is the header layout of the segmentation output
var SegmentationSchema = Schema{
	Name: "segmentation",
	Fields: []Field{
		{Name: FieldImageID, Aliases: imageAliases, Required: true, Position: 0},
		{Name: FieldConfidence, Aliases: []string{"score", "probability"}, Position: NoPosition},
		{Name: FieldPolygon, Aliases: []string{"polygon", "polygon_pixels", "mask_polygon"}, Required: true, Position: 2},
	},
}

// MetadataSchema is the header layout of the site spreadsheet. The export
// has a fixed column order, so every field falls back to its position.
var MetadataSchema = Schema{
	Name: "metadata",
	Fields: []Field{
		{Name: FieldImageID, Aliases: imageAliases, Required: true, Position: 1},
		{Name: FieldSiteName, Aliases: []string{"landfill_name", "known_site_name", "name", "naziv", "naziv_deponije"}, Position: 2},
		{Name: FieldNWLat, Aliases: []string{"north_west_lat", "northwest_lat", "nw_latitude", "sz_lat"}, Required: true, Position: 4},
		{Name: FieldNWLon, Aliases: []string{"north_west_lon", "northwest_lon", "nw_longitude", "sz_lon"}, Required: true, Position: 5},
		{Name: FieldSELat, Aliases: []string{"south_east_lat", "southeast_lat", "se_latitude", "ji_lat"}, Required: true, Position: 6},
		{Name: FieldSELon, Aliases: []string{"south_east_lon", "southeast_lon", "se_longitude", "ji_lon"}, Required: true, Position: 7},
		{Name: FieldRegion, Aliases: []string{"region_tag", "okrug", "regija", "region_name"}, Position: 8},
		{Name: FieldZoom, Aliases: []string{"zoom_level", "zoom_m", "altitude", "visina"}, Position: 9},
	},
}

// ReadClassifications loads the classifier output
func (r *Reader) ReadClassifications(path string) ([]models.ClassificationRecord, error) {
	table, err := r.ReadTable(path, ClassificationSchema)
	if err != nil {
		return nil, err
	}

	records := make([]models.ClassificationRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		id := row.Get(FieldImageID)
		if id == "" {
			r.skipRow(ClassificationSchema, row)
			continue
		}
		records = append(records, models.ClassificationRecord{
			ImageID:           id,
			PredictedCategory: row.Get(FieldLabel),
			Confidence:        r.parseConfidence(ClassificationSchema, row),
		})
	}

	r.logger.Info("loaded classifications", zap.Int("count", len(records)))
	return records, nil
}

// ReadSegmentations loads the segmentation output. Polygon cells are cleaned
// but not decoded.
func (r *Reader) ReadSegmentations(path string) ([]models.SegmentationRecord, error) {
	table, err := r.ReadTable(path, SegmentationSchema)
	if err != nil {
		return nil, err
	}

	records := make([]models.SegmentationRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		id := row.Get(FieldImageID)
		if id == "" {
			r.skipRow(SegmentationSchema, row)
			continue
		}
		records = append(records, models.SegmentationRecord{
			ImageID:       id,
			PolygonPixels: geo.CleanPolygon(row.Get(FieldPolygon)),
			Confidence:    r.parseConfidence(SegmentationSchema, row),
		})
	}

	r.logger.Info("loaded segmentations", zap.Int("count", len(records)))
	return records, nil
}

// ReadMetadata loads the site spreadsheet
func (r *Reader) ReadMetadata(path string) ([]models.MetadataRecord, error) {
	table, err := r.ReadTable(path, MetadataSchema)
	if err != nil {
		return nil, err
	}

	records := make([]models.MetadataRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		id := row.Get(FieldImageID)
		if id == "" {
			r.skipRow(MetadataSchema, row)
			continue
		}
		records = append(records, models.MetadataRecord{
			ImageID:       id,
			KnownSiteName: cleanSiteName(row.Get(FieldSiteName)),
			RegionTag:     row.Get(FieldRegion),
			ZoomLevel:     geo.ParseZoomLevel(row.Get(FieldZoom)),
			ImageBoundsNW: models.LatLon{
				Lat: geo.ParseCoordinate(row.Get(FieldNWLat)),
				Lon: geo.ParseCoordinate(row.Get(FieldNWLon)),
			},
			ImageBoundsSE: models.LatLon{
				Lat: geo.ParseCoordinate(row.Get(FieldSELat)),
				Lon: geo.ParseCoordinate(row.Get(FieldSELon)),
			},
		})
	}

	r.logger.Info("loaded metadata", zap.Int("count", len(records)))
	return records, nil
}

func (r *Reader) skipRow(schema Schema, row Row) {
	r.logger.Warn("skipping row without image id",
		zap.String("source", schema.Name),
		zap.Int("line", row.Line),
	)
}

// parseConfidence accepts a decimal comma; anything unparsable becomes 0
func (r *Reader) parseConfidence(schema Schema, row Row) float64 {
	raw := row.Get(FieldConfidence)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil {
		r.logger.Warn("invalid confidence, using 0",
			zap.String("source", schema.Name),
			zap.String("image_id", row.Get(FieldImageID)),
			zap.String("value", raw),
		)
		return 0
	}
	return v
}

func cleanSiteName(raw string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"'“”„‘’`))
}
