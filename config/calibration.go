package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/boyangli/landfillmap-producer/emissions"
	"github.com/boyangli/landfillmap-producer/geo"
)

// Calibration groups every constant of the geometry and emissions steps.
// It is built once per process and passed by value, never mutated.
type Calibration struct {
	Raster         geo.Raster         `yaml:"raster"`
	ZoomCorrection geo.ZoomCorrection `yaml:"zoom_correction"`
	Emissions      emissions.Model    `yaml:"emissions"`
}

// DefaultCalibration returns the production constants
func DefaultCalibration() Calibration {
	return Calibration{
		Raster:         geo.DefaultRaster(),
		ZoomCorrection: geo.DefaultZoomCorrection(),
		Emissions:      emissions.DefaultModel(),
	}
}

// LoadCalibration reads a YAML model file over the defaults. Keys missing from
// the file keep their default value; a table given in the file replaces the
// default table for that category.
func LoadCalibration(path string) (Calibration, error) {
	cal := DefaultCalibration()
	data, err := os.ReadFile(path)
	if err != nil {
		return Calibration{}, fmt.Errorf("failed to read model file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cal); err != nil {
		return Calibration{}, fmt.Errorf("failed to parse model file %s: %w", path, err)
	}
	if err := cal.Validate(); err != nil {
		return Calibration{}, fmt.Errorf("invalid model file %s: %w", path, err)
	}
	return cal, nil
}

// Validate checks every section
func (c Calibration) Validate() error {
	if err := c.Raster.Validate(); err != nil {
		return err
	}
	if err := c.ZoomCorrection.Validate(); err != nil {
		return err
	}
	return c.Emissions.Validate()
}
