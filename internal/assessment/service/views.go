package service

import (
	"context"
	"sort"

	"github.com/generyand/sinag-sub000/internal/assessment/domain"
	"github.com/generyand/sinag-sub000/internal/storage"
)

// ReworkAreas lists the governance areas with reopened responses. Raw
// counts every requires_rework flag as stored; Filtered applies
// ghost-rework suppression, hiding areas whose flags are stale
// leftovers from an earlier phase.
type ReworkAreas struct {
	Raw      []int
	Filtered []int
}

// AreasInRework reports which governance areas currently hold responses
// flagged for rework, in both raw and ghost-filtered form.
func (s *Service) AreasInRework(ctx context.Context, assessmentID string) (ReworkAreas, error) {
	var out ReworkAreas
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		a, err := s.loadAssessment(ctx, tx, assessmentID)
		if err != nil {
			return err
		}
		responses, err := tx.ListResponses(ctx, assessmentID)
		if err != nil {
			return err
		}

		raw := make(map[int]bool)
		filtered := make(map[int]bool)
		for _, r := range responses {
			if r.RequiresRework {
				raw[r.AreaID] = true
			}
			if domain.EffectiveRequiresRework(r, a) {
				filtered[r.AreaID] = true
			}
		}
		out = ReworkAreas{Raw: sortedKeys(raw), Filtered: sortedKeys(filtered)}
		return nil
	})
	return out, err
}

func sortedKeys(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
