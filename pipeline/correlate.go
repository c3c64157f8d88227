package pipeline

import (
	"go.uber.org/zap"

	"github.com/boyangli/landfillmap-producer/metrics"
	"github.com/boyangli/landfillmap-producer/models"
)

// JoinedInput is one landfill classification with its segmentation (if any)
// and its metadata
type JoinedInput struct {
	Classification  models.ClassificationRecord
	Segmentation    *models.SegmentationRecord
	Metadata        models.MetadataRecord
	Region          *models.Region
	HasSegmentation bool
}

// Correlator joins the three sources on image id
type Correlator struct {
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewCorrelator creates a correlator. Both arguments may be nil.
func NewCorrelator(logger *zap.Logger, m *metrics.Collector) *Correlator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Correlator{logger: logger, metrics: m}
}

// Correlate joins with a correlator that neither logs nor counts
func Correlate(classifications []models.ClassificationRecord, segmentations []models.SegmentationRecord, metadata []models.MetadataRecord) []JoinedInput {
	return NewCorrelator(nil, nil).Correlate(classifications, segmentations, metadata)
}

// Correlate keeps the landfill classifications, attaches the first
// segmentation and first metadata row per image id and drops records
// without metadata. Output order follows the classifications.
func (c *Correlator) Correlate(classifications []models.ClassificationRecord, segmentations []models.SegmentationRecord, metadata []models.MetadataRecord) []JoinedInput {
	segByID := make(map[string]*models.SegmentationRecord, len(segmentations))
	for i := range segmentations {
		if _, ok := segByID[segmentations[i].ImageID]; !ok {
			segByID[segmentations[i].ImageID] = &segmentations[i]
		}
	}

	metaByID := make(map[string]*models.MetadataRecord, len(metadata))
	for i := range metadata {
		if _, ok := metaByID[metadata[i].ImageID]; !ok {
			metaByID[metadata[i].ImageID] = &metadata[i]
		}
	}

	joined := make([]JoinedInput, 0, len(classifications))
	for _, cl := range classifications {
		if !models.IsLandfillLabel(cl.PredictedCategory) {
			c.metrics.Dropped(metrics.ReasonNotLandfill)
			continue
		}

		meta, ok := metaByID[cl.ImageID]
		if !ok {
			c.logger.Warn("dropping classification without metadata",
				zap.String("image_id", cl.ImageID),
				zap.String("category", cl.PredictedCategory),
			)
			c.metrics.Dropped(metrics.ReasonNoMetadata)
			continue
		}

		in := JoinedInput{
			Classification: cl,
			Metadata:       *meta,
			Region:         models.ParseRegion(meta.RegionTag),
		}
		if seg, ok := segByID[cl.ImageID]; ok {
			s := *seg
			in.Segmentation = &s
			in.HasSegmentation = true
		}
		if in.Region == nil && meta.RegionTag != "" {
			c.logger.Debug("unrecognized region, using default decay rate",
				zap.String("image_id", cl.ImageID),
				zap.String("region_tag", meta.RegionTag),
			)
		}
		joined = append(joined, in)
	}
	return joined
}
