package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/generyand/sinag-sub000/internal/storage"
	"github.com/generyand/sinag-sub000/internal/storage/memory"
)

func TestSweepDispatchesPerLockedAssessment(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	var lockedAt time.Time
	lock := func(_ context.Context, now time.Time) ([]string, error) {
		lockedAt = now
		return []string{"a-1", "a-2"}, nil
	}
	s := NewSweeper("* * * * *", lock, NewOutboxDispatcher(store))
	s.Sweep(ctx)

	if lockedAt.IsZero() {
		t.Fatal("lock func not called")
	}
	counts, err := store.CountJobs(ctx)
	if err != nil || counts[storage.JobPending] != 2 {
		t.Fatalf("counts = %v, err %v", counts, err)
	}

	// A second sweep over the same assessments re-enqueues nothing.
	s.Sweep(ctx)
	counts, _ = store.CountJobs(ctx)
	if counts[storage.JobPending] != 2 {
		t.Fatalf("counts after re-sweep = %v", counts)
	}
}

func TestSweepSwallowsLockError(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	lock := func(_ context.Context, _ time.Time) ([]string, error) {
		return nil, errors.New("db locked")
	}
	s := NewSweeper("* * * * *", lock, NewOutboxDispatcher(store))
	s.Sweep(ctx)

	counts, _ := store.CountJobs(ctx)
	if len(counts) != 0 {
		t.Fatalf("counts = %v, want empty", counts)
	}
}

func TestSweeperInvalidSchedule(t *testing.T) {
	s := NewSweeper("not a schedule", func(_ context.Context, _ time.Time) ([]string, error) {
		return nil, nil
	}, NewOutboxDispatcher(memory.New()))
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("invalid schedule accepted")
	}
}
