package evidence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence surface the repository writes through. It is
// satisfied by the storage package's EvidenceStore, including its
// transactional views.
type Store interface {
	PutEvidence(ctx context.Context, d Descriptor, contents []byte) error
	GetEvidence(ctx context.Context, id string) (Descriptor, error)
	DeleteEvidence(ctx context.Context, id string) error
	ListEvidence(ctx context.Context, responseID string) ([]Descriptor, error)
}

// StoreRepository implements Repository over a Store. Bind it to a
// transactional store view so evidence writes commit with the workflow
// mutation that triggered them.
type StoreRepository struct {
	store Store
	clock func() time.Time
	newID func() string
}

var _ Repository = (*StoreRepository)(nil)

// NewStoreRepository creates a repository with default dependencies.
func NewStoreRepository(store Store) *StoreRepository {
	return &StoreRepository{
		store: store,
		clock: time.Now,
		newID: uuid.NewString,
	}
}

// NewStoreRepositoryWithClock creates a repository with an injected
// clock and id generator for tests.
func NewStoreRepositoryWithClock(store Store, clock func() time.Time, newID func() string) *StoreRepository {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &StoreRepository{store: store, clock: clock, newID: newID}
}

func (r *StoreRepository) AddEvidence(ctx context.Context, responseID, section string, contents []byte) (Descriptor, error) {
	if responseID == "" {
		return Descriptor{}, fmt.Errorf("response id is required")
	}
	if section == "" {
		return Descriptor{}, fmt.Errorf("evidence section is required")
	}
	d := Descriptor{
		ID:         r.newID(),
		ResponseID: responseID,
		Section:    section,
		UploadedAt: r.clock().UTC(),
	}
	if err := r.store.PutEvidence(ctx, d, contents); err != nil {
		return Descriptor{}, fmt.Errorf("store evidence: %w", err)
	}
	return d, nil
}

func (r *StoreRepository) RemoveEvidence(ctx context.Context, id string) error {
	return r.store.DeleteEvidence(ctx, id)
}

func (r *StoreRepository) ListByResponse(ctx context.Context, responseID string) ([]Descriptor, error) {
	return r.store.ListEvidence(ctx, responseID)
}
