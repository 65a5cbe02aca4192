// Package snapshot freezes resolved indicator definitions when an
// assessment is first submitted. Historical reads go through snapshots,
// never the live mutable catalog.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/generyand/sinag-sub000/internal/errors"
	"github.com/generyand/sinag-sub000/internal/schema"
	"github.com/generyand/sinag-sub000/internal/storage"
)

// Service freezes and resolves indicator definitions.
type Service struct {
	catalog *schema.Catalog
	clock   func() time.Time
	newID   func() string
}

// New creates a snapshot service over the live catalog.
func New(catalog *schema.Catalog) *Service {
	return &Service{
		catalog: catalog,
		clock:   time.Now,
		newID:   uuid.NewString,
	}
}

// NewWithClock creates a service with an injected clock and id generator.
func NewWithClock(catalog *schema.Catalog, clock func() time.Time, newID func() string) *Service {
	s := New(catalog)
	if clock != nil {
		s.clock = clock
	}
	if newID != nil {
		s.newID = newID
	}
	return s
}

// Freeze serializes the named indicators into immutable snapshots for
// the assessment. Re-freezing an already-frozen indicator is a no-op, so
// Freeze is safe to call again on resubmission.
func (s *Service) Freeze(ctx context.Context, store storage.SnapshotStore, assessmentID string, indicatorIDs []string, year int) ([]string, error) {
	frozenAt := s.clock().UTC()
	ids := make([]string, 0, len(indicatorIDs))
	for _, indicatorID := range indicatorIDs {
		ind, ok := s.catalog.Indicator(indicatorID)
		if !ok {
			return nil, apperrors.WithMetadata(apperrors.CodeCatalogInvalid,
				fmt.Sprintf("indicator %s not in catalog", indicatorID),
				map[string]string{"indicator_id": indicatorID})
		}
		definition, err := json.Marshal(ind)
		if err != nil {
			return nil, fmt.Errorf("serialize indicator %s: %w", indicatorID, err)
		}
		snap := storage.IndicatorSnapshot{
			ID:           s.newID(),
			AssessmentID: assessmentID,
			IndicatorID:  indicatorID,
			Year:         year,
			Definition:   definition,
			FrozenAt:     frozenAt,
		}
		if err := store.PutSnapshot(ctx, snap); err != nil {
			return nil, fmt.Errorf("freeze indicator %s: %w", indicatorID, err)
		}
		ids = append(ids, snap.ID)
	}
	return ids, nil
}

// Indicator resolves one indicator definition for an assessment: the
// frozen snapshot when one exists, the live catalog before the first
// submission froze anything.
func (s *Service) Indicator(ctx context.Context, store storage.SnapshotStore, assessmentID, indicatorID string) (schema.Indicator, error) {
	snap, err := store.GetSnapshot(ctx, assessmentID, indicatorID)
	if errors.Is(err, storage.ErrNotFound) {
		ind, ok := s.catalog.Indicator(indicatorID)
		if !ok {
			return schema.Indicator{}, apperrors.WithMetadata(apperrors.CodeNotFound,
				fmt.Sprintf("indicator %s not found", indicatorID),
				map[string]string{"indicator_id": indicatorID})
		}
		return ind, nil
	}
	if err != nil {
		return schema.Indicator{}, fmt.Errorf("read snapshot: %w", err)
	}

	var ind schema.Indicator
	if err := json.Unmarshal(snap.Definition, &ind); err != nil {
		return schema.Indicator{}, fmt.Errorf("decode snapshot %s: %w", snap.ID, err)
	}
	return ind, nil
}
