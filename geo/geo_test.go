package geo

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/boyangli/landfillmap-producer/models"
)

const tolerance = 1e-9

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestParseCoordinateDecimal(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"45.2671", 45.2671},
		{"45,2671", 45.2671},
		{" 19.8335 ", 19.8335},
		{"45.2671N", 45.2671},
		{"45.2671 S", -45.2671},
		{"19.8335E", 19.8335},
		{"19.8335w", -19.8335},
		{"-19.5", -19.5},
		{"N45.5", 45.5},
		{"-19.5W", -19.5},
		{"S-45.5", -45.5},
	}

	for _, tt := range tests {
		got := ParseCoordinate(tt.input)
		if !almostEqual(got, tt.expected, tolerance) {
			t.Errorf("ParseCoordinate(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}

func TestParseCoordinateDMS(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{`45°16'1.5"N`, 45 + 16.0/60 + 1.5/3600},
		{`45°16'1,5"N`, 45 + 16.0/60 + 1.5/3600},
		{`19°50'3"E`, 19 + 50.0/60 + 3.0/3600},
		{`44°48′30″S`, -(44 + 48.0/60 + 30.0/3600)},
		{`20º27’44”W`, -(20 + 27.0/60 + 44.0/3600)},
		{`45 30 N`, 45.5},
		{`45° 30'`, 45.5},
		{`45°30'15''`, 45 + 30.0/60 + 15.0/3600},
		{`-45°30'`, -45.5},
		{`-45°30'S`, -45.5},
	}

	for _, tt := range tests {
		got := ParseCoordinate(tt.input)
		if !almostEqual(got, tt.expected, tolerance) {
			t.Errorf("ParseCoordinate(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}

func TestParseCoordinateRoundTrip(t *testing.T) {
	for _, cardinal := range []string{"N", "S", "E", "W"} {
		for deg := 0; deg < 90; deg += 17 {
			for min := 0; min < 60; min += 13 {
				sec := 12.25
				raw := fmt.Sprintf(`%d°%d'%.2f"%s`, deg, min, sec, cardinal)
				expected := float64(deg) + float64(min)/60 + sec/3600
				if cardinal == "S" || cardinal == "W" {
					expected = -expected
				}

				got := ParseCoordinate(raw)
				if !almostEqual(got, expected, tolerance) {
					t.Errorf("ParseCoordinate(%q) = %v, expected %v", raw, got, expected)
				}
				decimal := ParseCoordinate(fmt.Sprintf("%.12f", expected))
				if !almostEqual(got, decimal, 1e-9) {
					t.Errorf("DMS %q and decimal %v disagree: %v vs %v", raw, expected, got, decimal)
				}
			}
		}
	}
}

func TestParseCoordinateInvalid(t *testing.T) {
	for _, input := range []string{"", "   ", "abc", "N", "1 2 3 4", "NaN", "Inf", "12°x'"} {
		if got := ParseCoordinate(input); got != 0 {
			t.Errorf("ParseCoordinate(%q) = %v, expected 0", input, got)
		}
	}
}

func TestParseZoomLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected *int
	}{
		{"1300", intPtr(1300)},
		{" 800m", intPtr(800)},
		{"1200 m", intPtr(1200)},
		{"", nil},
		{"m1200", nil},
		{"n/a", nil},
	}

	for _, tt := range tests {
		got := ParseZoomLevel(tt.input)
		switch {
		case tt.expected == nil && got != nil:
			t.Errorf("ParseZoomLevel(%q) = %d, expected nil", tt.input, *got)
		case tt.expected != nil && (got == nil || *got != *tt.expected):
			t.Errorf("ParseZoomLevel(%q) = %v, expected %d", tt.input, got, *tt.expected)
		}
	}
}

func TestParsePolygon(t *testing.T) {
	points, err := ParsePolygon(`"100.5, 100; 540,100 ;540,540;100,540"`)
	if err != nil {
		t.Fatalf("ParsePolygon failed: %v", err)
	}
	if len(points) != 4 {
		t.Fatalf("Expected 4 points, got %d", len(points))
	}
	if points[0].X != 100.5 || points[0].Y != 100 {
		t.Errorf("Expected first point (100.5,100), got %+v", points[0])
	}
}

func TestParsePolygonSkipsBadPairs(t *testing.T) {
	points, err := ParsePolygon("10,20;abc,5;7;;30,40,99")
	if err != nil {
		t.Fatalf("ParsePolygon failed: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("Expected 2 valid points, got %d: %+v", len(points), points)
	}
	if points[1].X != 30 || points[1].Y != 40 {
		t.Errorf("Expected second point (30,40), got %+v", points[1])
	}
}

func TestParsePolygonEmpty(t *testing.T) {
	for _, input := range []string{"", `""`, "polygon_px", "a,b;c,d"} {
		if _, err := ParsePolygon(input); !errors.Is(err, ErrEmptyPolygon) {
			t.Errorf("ParsePolygon(%q) error = %v, expected ErrEmptyPolygon", input, err)
		}
	}
}

func TestDefaultPolygon(t *testing.T) {
	got := FormatPolygon(DefaultPolygon(DefaultRaster()))
	if got != "100,100;540,100;540,540;100,540" {
		t.Errorf("Unexpected default polygon %q", got)
	}

	scaled := DefaultPolygon(Raster{WidthPx: 1280, HeightPx: 1280})
	if scaled[2].X != 1080 || scaled[2].Y != 1080 {
		t.Errorf("Expected scaled corner (1080,1080), got %+v", scaled[2])
	}
}

func TestProjectPolygon(t *testing.T) {
	projector, err := NewProjector(DefaultRaster())
	if err != nil {
		t.Fatalf("NewProjector failed: %v", err)
	}

	nw := models.LatLon{Lat: 45.0, Lon: 19.0}
	se := models.LatLon{Lat: 44.9, Lon: 19.2}
	points := []models.PixelPoint{{X: 160, Y: 320}, {X: 480, Y: 320}, {X: 480, Y: 480}}

	proj, err := projector.ProjectPolygon(points, nw, se)
	if err != nil {
		t.Fatalf("ProjectPolygon failed: %v", err)
	}

	if !almostEqual(proj.BoundsNW.Lat, 44.95, 1e-12) {
		t.Errorf("Expected NW lat 44.95, got %v", proj.BoundsNW.Lat)
	}
	if !almostEqual(proj.BoundsNW.Lon, 19.05, 1e-12) {
		t.Errorf("Expected NW lon 19.05, got %v", proj.BoundsNW.Lon)
	}
	if !almostEqual(proj.BoundsSE.Lat, 44.925, 1e-12) {
		t.Errorf("Expected SE lat 44.925, got %v", proj.BoundsSE.Lat)
	}
	if !almostEqual(proj.BoundsSE.Lon, 19.15, 1e-12) {
		t.Errorf("Expected SE lon 19.15, got %v", proj.BoundsSE.Lon)
	}
	if !almostEqual(proj.CenterLat, 44.9375, 1e-12) || !almostEqual(proj.CenterLon, 19.1, 1e-12) {
		t.Errorf("Unexpected center (%v, %v)", proj.CenterLat, proj.CenterLon)
	}

	b := proj.Bound()
	if b.Top() != proj.BoundsNW.Lat || b.Right() != proj.BoundsSE.Lon {
		t.Errorf("Bound() does not match projection: %+v", b)
	}
}

func TestProjectPolygonEmpty(t *testing.T) {
	projector, _ := NewProjector(DefaultRaster())
	if _, err := projector.ProjectPolygon(nil, models.LatLon{}, models.LatLon{}); !errors.Is(err, ErrEmptyPolygon) {
		t.Errorf("Expected ErrEmptyPolygon, got %v", err)
	}
}

func TestNewProjectorInvalidRaster(t *testing.T) {
	if _, err := NewProjector(Raster{WidthPx: 0, HeightPx: 640}); err == nil {
		t.Error("Expected error for zero-width raster")
	}
}

func TestFullExtentAreaMatchesImageBox(t *testing.T) {
	projector, _ := NewProjector(DefaultRaster())
	nw := models.LatLon{Lat: 45.0, Lon: 19.0}
	se := models.LatLon{Lat: 44.9, Lon: 19.2}
	full := []models.PixelPoint{{X: 0, Y: 0}, {X: 640, Y: 0}, {X: 640, Y: 640}, {X: 0, Y: 640}}

	proj, err := projector.ProjectPolygon(full, nw, se)
	if err != nil {
		t.Fatalf("ProjectPolygon failed: %v", err)
	}

	got := EstimateAreaM2(proj.BoundsNW, proj.BoundsSE, nil, DefaultZoomCorrection())
	expected := PlanarAreaM2(nw, se)
	if !almostEqual(got, expected, expected*1e-9) {
		t.Errorf("Full extent area %v, expected %v", got, expected)
	}

	// 0.1 deg lat x 0.2 deg lon at 44.95 deg
	manual := 0.1 * MetersPerDegree * 0.2 * MetersPerDegree * math.Cos(44.95*math.Pi/180)
	if !almostEqual(expected, manual, manual*1e-9) {
		t.Errorf("PlanarAreaM2 = %v, expected %v", expected, manual)
	}
}

func TestZoomFactorRatio(t *testing.T) {
	zc := DefaultZoomCorrection()
	nw := models.LatLon{Lat: 45.0, Lon: 19.0}
	se := models.LatLon{Lat: 44.99, Lon: 19.01}

	high := EstimateAreaM2(nw, se, intPtr(1300), zc)
	low := EstimateAreaM2(nw, se, intPtr(500), zc)

	if !almostEqual(high/low, 1.1/0.9, 1e-12) {
		t.Errorf("Expected area ratio %v, got %v", 1.1/0.9, high/low)
	}
}

func TestZoomFactorSteps(t *testing.T) {
	zc := DefaultZoomCorrection()
	tests := []struct {
		zoom     *int
		expected float64
	}{
		{nil, 1.0},
		{intPtr(1500), 1.1},
		{intPtr(1200), 1.1},
		{intPtr(1100), 1.05},
		{intPtr(800), 1.0},
		{intPtr(700), 0.95},
		{intPtr(599), 0.9},
		{intPtr(0), 0.9},
	}
	for _, tt := range tests {
		if got := zc.Factor(tt.zoom); got != tt.expected {
			t.Errorf("Factor(%v) = %v, expected %v", tt.zoom, got, tt.expected)
		}
	}
}

func TestEstimateAreaNeverNegative(t *testing.T) {
	nw := models.LatLon{Lat: 44.9, Lon: 19.2}
	se := models.LatLon{Lat: 45.0, Lon: 19.0}
	if got := EstimateAreaM2(nw, se, nil, DefaultZoomCorrection()); got < 0 {
		t.Errorf("Expected non-negative area for swapped corners, got %v", got)
	}
	nan := models.LatLon{Lat: math.NaN(), Lon: 0}
	if got := EstimateAreaM2(nan, se, nil, DefaultZoomCorrection()); got != 0 {
		t.Errorf("Expected 0 for NaN input, got %v", got)
	}
}

func intPtr(v int) *int {
	return &v
}
