package geo

import (
	"fmt"

	"github.com/boyangli/landfillmap-producer/models"
	"github.com/paulmach/orb"
)

// DefaultRasterSize is the side of the square image export the segmentation
// model runs on
const DefaultRasterSize = 640.0

// Raster is the pixel size of the images the polygons were drawn on
type Raster struct {
	WidthPx  float64 `yaml:"width_px" json:"width_px"`
	HeightPx float64 `yaml:"height_px" json:"height_px"`
}

// DefaultRaster returns the 640x640 reference raster
func DefaultRaster() Raster {
	return Raster{WidthPx: DefaultRasterSize, HeightPx: DefaultRasterSize}
}

// Validate checks that both raster dimensions are positive
func (r Raster) Validate() error {
	if r.WidthPx <= 0 || r.HeightPx <= 0 {
		return fmt.Errorf("raster size must be positive, got %vx%v", r.WidthPx, r.HeightPx)
	}
	return nil
}

// Projection is the geographic bounding box of a projected polygon
type Projection struct {
	BoundsNW  models.LatLon
	BoundsSE  models.LatLon
	CenterLat float64
	CenterLon float64
}

// Bound returns the projection as an orb.Bound (X = lon, Y = lat)
func (p Projection) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{p.BoundsNW.Lon, p.BoundsSE.Lat},
		Max: orb.Point{p.BoundsSE.Lon, p.BoundsNW.Lat},
	}
}

// Projector maps pixel polygons onto the geographic extent of their image
type Projector struct {
	raster Raster
}

// NewProjector creates a projector for images of the given raster size
func NewProjector(r Raster) (*Projector, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &Projector{raster: r}, nil
}

// Raster returns the raster size the projector was built for
func (p *Projector) Raster() Raster {
	return p.raster
}

// ProjectPolygon linearly interpolates every vertex between the image's
// north-west and south-east corners and returns the bounding box of the
// result.
func (p *Projector) ProjectPolygon(points []models.PixelPoint, imageNW, imageSE models.LatLon) (Projection, error) {
	if len(points) == 0 {
		return Projection{}, ErrEmptyPolygon
	}

	var bound orb.Bound
	for i, pt := range points {
		xRatio := pt.X / p.raster.WidthPx
		yRatio := pt.Y / p.raster.HeightPx

		lat := imageNW.Lat - yRatio*(imageNW.Lat-imageSE.Lat)
		lon := imageNW.Lon + xRatio*(imageSE.Lon-imageNW.Lon)

		geoPoint := orb.Point{lon, lat}
		if i == 0 {
			bound = geoPoint.Bound()
			continue
		}
		bound = bound.Extend(geoPoint)
	}

	center := bound.Center()
	return Projection{
		BoundsNW:  models.LatLon{Lat: bound.Top(), Lon: bound.Left()},
		BoundsSE:  models.LatLon{Lat: bound.Bottom(), Lon: bound.Right()},
		CenterLat: center.Lat(),
		CenterLon: center.Lon(),
	}, nil
}
