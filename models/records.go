package models

// LatLon is a geographic position in signed decimal degrees
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PixelPoint is a polygon vertex in image pixel space
type PixelPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ClassificationRecord is one row of the image classifier output
type ClassificationRecord struct {
	ImageID           string  `json:"image_id"`
	PredictedCategory string  `json:"predicted_category"`
	Confidence        float64 `json:"confidence"`
}

// SegmentationRecord is one row of the segmentation model output.
// PolygonPixels keeps the cleaned raw string; decoding into points happens
// in the geometry step so a malformed polygon only degrades its own record.
type SegmentationRecord struct {
	ImageID       string  `json:"image_id"`
	PolygonPixels string  `json:"polygon_px"`
	Confidence    float64 `json:"confidence"`
}

// MetadataRecord is one row of the site metadata spreadsheet
type MetadataRecord struct {
	ImageID       string `json:"image_id"`
	KnownSiteName string `json:"known_site_name,omitempty"`
	RegionTag     string `json:"region_tag,omitempty"`
	ZoomLevel     *int   `json:"zoom_level,omitempty"`
	ImageBoundsNW LatLon `json:"image_bounds_nw"`
	ImageBoundsSE LatLon `json:"image_bounds_se"`
}

// RunSummary aggregates the counters of one pipeline run
type RunSummary struct {
	ProcessedCount        int `json:"processed"`
	PersistedCount        int `json:"persisted"`
	WithSegmentationCount int `json:"with_segmentation"`
	WithMetadataCount     int `json:"with_metadata"`
}
