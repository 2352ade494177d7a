package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/equitydesk/captable-backend/internal/validate"
	"github.com/equitydesk/captable-backend/internal/waterfall"
)

// WaterfallService distributes exit scenarios over cap table snapshots.
type WaterfallService struct {
	capTable *CapTableService
}

// NewWaterfallService creates a new WaterfallService
func NewWaterfallService(capTable *CapTableService) *WaterfallService {
	return &WaterfallService{
		capTable: capTable,
	}
}

// Distribute runs the waterfall for one scenario against the cap table as of
// the given date.
func (s *WaterfallService) Distribute(asOf time.Time, sc waterfall.Scenario) (*waterfall.DistributionResult, error) {
	snap, err := s.capTable.SnapshotAt(asOf)
	if err != nil {
		return nil, err
	}
	return waterfall.Distribute(snap, sc)
}

// DistributeScenarios runs the waterfall for several scenarios concurrently
// against the same snapshot. Results keep the input order. The first failing
// scenario cancels the rest; scenario comparison is all-or-nothing, the same
// way replay is.
func (s *WaterfallService) DistributeScenarios(ctx context.Context, asOf time.Time, scenarios []waterfall.Scenario) ([]*waterfall.DistributionResult, error) {
	snap, err := s.capTable.SnapshotAt(asOf)
	if err != nil {
		return nil, err
	}

	results := make([]*waterfall.DistributionResult, len(scenarios))
	g, _ := errgroup.WithContext(ctx)
	for i, sc := range scenarios {
		i, sc := i, sc
		g.Go(func() error {
			result, err := waterfall.Distribute(snap, sc)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ValidateDistribution runs the conservation checks over a computed result.
func (s *WaterfallService) ValidateDistribution(result *waterfall.DistributionResult, sc waterfall.Scenario) validate.Report {
	return validate.CheckDistribution(result, sc)
}
