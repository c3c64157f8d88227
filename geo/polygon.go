package geo

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/boyangli/landfillmap-producer/models"
)

// ErrEmptyPolygon is returned when a polygon string holds no valid x,y pair
var ErrEmptyPolygon = errors.New("polygon has no valid points")

// Corners of the fallback polygon on the 640x640 reference raster
const (
	defaultPolygonMin = 100.0
	defaultPolygonMax = 540.0
)

// CleanPolygon strips quotes, a stray "polygon_px" header token and all
// whitespace from a raw polygon cell
func CleanPolygon(raw string) string {
	s := strings.ReplaceAll(raw, "polygon_px", "")
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '"' || r == '\'' {
			return -1
		}
		return r
	}, s)
}

// ParsePolygon decodes "x1,y1;x2,y2;..." into pixel points. Pairs that are
// incomplete or non-numeric are skipped; ErrEmptyPolygon is returned when
// nothing valid remains.
func ParsePolygon(raw string) ([]models.PixelPoint, error) {
	clean := CleanPolygon(raw)

	var points []models.PixelPoint
	for _, pair := range strings.Split(clean, ";") {
		if pair == "" {
			continue
		}
		xy := strings.Split(pair, ",")
		if len(xy) < 2 {
			continue
		}
		x, err := strconv.ParseFloat(xy[0], 64)
		if err != nil || !isFinite(x) {
			continue
		}
		y, err := strconv.ParseFloat(xy[1], 64)
		if err != nil || !isFinite(y) {
			continue
		}
		points = append(points, models.PixelPoint{X: x, Y: y})
	}

	if len(points) == 0 {
		return nil, ErrEmptyPolygon
	}
	return points, nil
}

// DefaultPolygon returns the square used when segmentation is missing or
// unusable: (100,100)-(540,540) on a 640x640 raster, scaled to r.
func DefaultPolygon(r Raster) []models.PixelPoint {
	sx := r.WidthPx / DefaultRasterSize
	sy := r.HeightPx / DefaultRasterSize
	lo, hi := defaultPolygonMin, defaultPolygonMax
	return []models.PixelPoint{
		{X: lo * sx, Y: lo * sy},
		{X: hi * sx, Y: lo * sy},
		{X: hi * sx, Y: hi * sy},
		{X: lo * sx, Y: hi * sy},
	}
}

// FormatPolygon renders points back into the "x,y;x,y" cell format
func FormatPolygon(points []models.PixelPoint) string {
	pairs := make([]string, 0, len(points))
	for _, p := range points {
		pairs = append(pairs,
			strconv.FormatFloat(p.X, 'f', -1, 64)+","+strconv.FormatFloat(p.Y, 'f', -1, 64))
	}
	return strings.Join(pairs, ";")
}
