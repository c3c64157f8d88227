// Package pipeline fuses classification, segmentation and site metadata into
// geo-referenced landfill estimates in a single batch pass.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boyangli/landfillmap-producer/config"
	"github.com/boyangli/landfillmap-producer/emissions"
	"github.com/boyangli/landfillmap-producer/geo"
	"github.com/boyangli/landfillmap-producer/ingestion"
	"github.com/boyangli/landfillmap-producer/metrics"
	"github.com/boyangli/landfillmap-producer/models"
	"github.com/boyangli/landfillmap-producer/producer"
)

// Sources are the three input files of a run
type Sources struct {
	Classification string
	Segmentation   string
	Metadata       string
}

// Check fails with ingestion.ErrSourceNotFound if any path is missing
func (s Sources) Check() error {
	for _, src := range []struct{ name, path string }{
		{"classification", s.Classification},
		{"segmentation", s.Segmentation},
		{"metadata", s.Metadata},
	} {
		if _, err := os.Stat(src.path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%s %q: %w", src.name, src.path, ingestion.ErrSourceNotFound)
			}
			return fmt.Errorf("failed to stat %s file: %w", src.name, err)
		}
	}
	return nil
}

// RunResult is the output of one run. RunID tags the run in logs and sinks
// and is never part of the estimates.
type RunResult struct {
	RunID     string
	Summary   models.RunSummary
	Estimates []models.DetectionEstimate
}

// Pipeline runs the read, correlate, project and estimate steps
type Pipeline struct {
	reader     *ingestion.Reader
	correlator *Correlator
	projector  *geo.Projector
	estimator  *emissions.Estimator
	zoom       geo.ZoomCorrection
	workers    int

	logger  *zap.Logger
	sink    producer.Sink
	metrics *metrics.Collector
}

// Option configures optional collaborators of a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithSink hands every run's estimates to s
func WithSink(s producer.Sink) Option {
	return func(p *Pipeline) { p.sink = s }
}

// WithMetrics records run counters on m
func WithMetrics(m *metrics.Collector) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a pipeline from the configuration
func New(cfg *config.PipelineConfig, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	projector, err := geo.NewProjector(cfg.Calibration.Raster)
	if err != nil {
		return nil, fmt.Errorf("failed to create projector: %w", err)
	}
	estimator, err := emissions.NewEstimator(cfg.Calibration.Emissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create estimator: %w", err)
	}

	p := &Pipeline{
		projector: projector,
		estimator: estimator,
		zoom:      cfg.Calibration.ZoomCorrection,
		workers:   cfg.Workers,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.reader = ingestion.NewReader(p.logger)
	p.correlator = NewCorrelator(p.logger, p.metrics)
	return p, nil
}

// NewRunID returns a fresh run identifier
func NewRunID() string {
	return uuid.New().String()
}

// Run reads the three sources, estimates every joined record and hands the
// batch to the sink. If the sink fails, the result is still returned along
// with the error so the caller can retry persistence.
func (p *Pipeline) Run(ctx context.Context, src Sources) (*RunResult, error) {
	start := time.Now()
	runID := NewRunID()
	log := p.logger.With(zap.String("run_id", runID))

	p.metrics.RunStarted()
	defer func() { p.metrics.RunFinished(time.Since(start)) }()

	if err := src.Check(); err != nil {
		return nil, err
	}

	classifications, err := p.reader.ReadClassifications(src.Classification)
	if err != nil {
		return nil, err
	}
	segmentations, err := p.reader.ReadSegmentations(src.Segmentation)
	if err != nil {
		return nil, err
	}
	metadata, err := p.reader.ReadMetadata(src.Metadata)
	if err != nil {
		return nil, err
	}
	p.metrics.ClassificationsRead(len(classifications))

	joined := p.correlator.Correlate(classifications, segmentations, metadata)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	estimates := make([]models.DetectionEstimate, len(joined))
	var g errgroup.Group
	g.SetLimit(p.workers)
	for i := range joined {
		i := i
		g.Go(func() error {
			estimates[i] = p.estimateRecord(log, joined[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to estimate records: %w", err)
	}

	result := &RunResult{
		RunID:     runID,
		Estimates: estimates,
		Summary: models.RunSummary{
			ProcessedCount:    len(estimates),
			PersistedCount:    len(estimates),
			WithMetadataCount: len(joined),
		},
	}
	for _, e := range estimates {
		if e.HasSegmentation {
			result.Summary.WithSegmentationCount++
		}
		p.metrics.Estimated(e.SurfaceAreaM2, e.CH4TonnesPerYear)
	}

	if p.sink != nil {
		n, err := p.sink.Write(ctx, runID, estimates)
		result.Summary.PersistedCount = n
		p.metrics.Persisted(n)
		if err != nil {
			log.Error("sink write failed", zap.Int("accepted", n), zap.Error(err))
			return result, fmt.Errorf("failed to persist estimates: %w", err)
		}
	}

	log.Info("run complete",
		zap.Int("classifications", len(classifications)),
		zap.Int("processed", result.Summary.ProcessedCount),
		zap.Int("persisted", result.Summary.PersistedCount),
		zap.Int("with_segmentation", result.Summary.WithSegmentationCount),
		zap.Int("with_metadata", result.Summary.WithMetadataCount),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// estimateRecord is the pure per-record step. It never fails: degraded
// inputs are logged and replaced by defaults.
func (p *Pipeline) estimateRecord(log *zap.Logger, in JoinedInput) models.DetectionEstimate {
	cl := in.Classification
	log = log.With(zap.String("image_id", cl.ImageID))

	category, mapped := models.MapCategory(cl.PredictedCategory)
	if !mapped {
		log.Warn("unmapped classifier label, applying fallback category",
			zap.String("label", cl.PredictedCategory),
			zap.String("fallback", string(models.FallbackCategory)),
		)
		p.metrics.FallbackCategory()
	}

	points, segmented := p.polygon(log, in)
	proj, area := p.measure(log, points, in.Metadata)
	res := p.estimator.Estimate(area, category, in.Region)

	return models.DetectionEstimate{
		ImageID:          cl.ImageID,
		Category:         cl.PredictedCategory,
		LandfillCategory: category,
		Confidence:       cl.Confidence,

		KnownSiteName: in.Metadata.KnownSiteName,
		RegionTag:     in.Metadata.RegionTag,
		ParsedRegion:  in.Region,
		ZoomLevel:     in.Metadata.ZoomLevel,

		HasSegmentation: segmented,
		PolygonPixels:   geo.FormatPolygon(points),
		BoundsNW:        proj.BoundsNW,
		BoundsSE:        proj.BoundsSE,
		CenterLat:       proj.CenterLat,
		CenterLon:       proj.CenterLon,
		SurfaceAreaM2:   area,

		EstimatedDepthM:         res.DepthM,
		EstimatedDensityTPerM3:  res.DensityTPerM3,
		EstimatedVolumeM3:       res.VolumeM3,
		TotalWasteMassTonnes:    res.MassTonnes,
		MethaneCorrectionFactor: res.MCF,
		DecayRate:               res.DecayRate,
		CH4TonnesPerYear:        res.CH4TonnesPerYear,
		CO2eqTonnesPerYear:      res.CO2eqTonnesPerYear,
	}
}

// polygon returns the segmentation polygon, or the default square when it
// is absent or has no valid points. The bool reports a real polygon.
func (p *Pipeline) polygon(log *zap.Logger, in JoinedInput) ([]models.PixelPoint, bool) {
	if in.Segmentation != nil {
		points, err := geo.ParsePolygon(in.Segmentation.PolygonPixels)
		if err == nil {
			return points, true
		}
		log.Warn("unusable segmentation polygon, using default",
			zap.String("polygon_px", in.Segmentation.PolygonPixels),
			zap.Error(err),
		)
	} else {
		log.Warn("no segmentation, using default polygon")
	}
	p.metrics.DefaultPolygon()
	return geo.DefaultPolygon(p.projector.Raster()), false
}

// measure projects the polygon and estimates its area. A panic in the
// geometry step leaves the record with a zero area.
func (p *Pipeline) measure(log *zap.Logger, points []models.PixelPoint, meta models.MetadataRecord) (proj geo.Projection, area float64) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("geometry step failed, area set to 0", zap.Any("panic", r))
			proj, area = geo.Projection{}, 0
		}
	}()

	proj, err := p.projector.ProjectPolygon(points, meta.ImageBoundsNW, meta.ImageBoundsSE)
	if err != nil {
		log.Warn("projection failed, area set to 0", zap.Error(err))
		return geo.Projection{}, 0
	}

	area = geo.EstimateAreaM2(proj.BoundsNW, proj.BoundsSE, meta.ZoomLevel, p.zoom)
	if area == 0 {
		log.Warn("zero surface area, check image bounds",
			zap.Float64("nw_lat", meta.ImageBoundsNW.Lat),
			zap.Float64("nw_lon", meta.ImageBoundsNW.Lon),
			zap.Float64("se_lat", meta.ImageBoundsSE.Lat),
			zap.Float64("se_lon", meta.ImageBoundsSE.Lon),
		)
	}
	return proj, area
}
