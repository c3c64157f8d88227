package config

import (
	"fmt"
)

// PipelineConfig holds the batch job settings
type PipelineConfig struct {
	Workers         int
	LogLevel        string
	LogFormat       string
	ModelFile       string
	MetricsTextfile string
	Calibration     Calibration
}

// NewPipelineConfig creates the pipeline configuration from environment
// variables. Constants come from the defaults, then EMISSIONS_MODEL_FILE,
// then the IMAGE_WIDTH_PX / IMAGE_HEIGHT_PX overrides.
func NewPipelineConfig() (*PipelineConfig, error) {
	cfg := &PipelineConfig{
		Workers:         getEnvInt("WORKERS", 4),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		ModelFile:       getEnv("EMISSIONS_MODEL_FILE", ""),
		MetricsTextfile: getEnv("METRICS_TEXTFILE", ""),
		Calibration:     DefaultCalibration(),
	}

	if err := cfg.LoadModelFile(cfg.ModelFile); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadModelFile replaces the calibration with the one read from path, keeps
// the raster environment overrides on top and validates the result. An
// empty path only re-applies the overrides.
func (c *PipelineConfig) LoadModelFile(path string) error {
	if path != "" {
		cal, err := LoadCalibration(path)
		if err != nil {
			return err
		}
		c.ModelFile = path
		c.Calibration = cal
	}

	c.Calibration.Raster.WidthPx = getEnvFloat("IMAGE_WIDTH_PX", c.Calibration.Raster.WidthPx)
	c.Calibration.Raster.HeightPx = getEnvFloat("IMAGE_HEIGHT_PX", c.Calibration.Raster.HeightPx)

	return c.Validate()
}

// Validate checks the settings the pipeline cannot run without
func (c *PipelineConfig) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be at least 1, got %d", c.Workers)
	}
	return c.Calibration.Validate()
}
