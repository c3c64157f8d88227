package producer

import (
	"context"
	"fmt"

	"github.com/boyangli/landfillmap-producer/models"
)

// Sink is the persistence boundary of a pipeline run. Write returns how many
// estimates it accepted.
type Sink interface {
	Write(ctx context.Context, runID string, estimates []models.DetectionEstimate) (int, error)
}

// MultiSink fans a batch out to several sinks. The accepted count is the
// minimum across sinks, so an estimate counts as persisted only when every
// sink took it.
type MultiSink []Sink

// Write writes to every sink, even after one fails
func (m MultiSink) Write(ctx context.Context, runID string, estimates []models.DetectionEstimate) (int, error) {
	if len(m) == 0 {
		return 0, nil
	}

	accepted := len(estimates)
	var errs []error
	for _, s := range m {
		n, err := s.Write(ctx, runID, estimates)
		if err != nil {
			errs = append(errs, err)
		}
		if n < accepted {
			accepted = n
		}
	}

	if len(errs) > 0 {
		return accepted, fmt.Errorf("%d of %d sinks failed (first error: %w)", len(errs), len(m), errs[0])
	}
	return accepted, nil
}
