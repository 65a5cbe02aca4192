// Package memory provides an in-memory Store used by tests. All access
// is serialized through a single mutex, so InTx gives the same
// read-your-writes and commit atomicity the sqlite store does.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/generyand/sinag-sub000/internal/assessment/domain"
	"github.com/generyand/sinag-sub000/internal/evidence"
	"github.com/generyand/sinag-sub000/internal/storage"
)

type state struct {
	assessments map[string]domain.Assessment
	responses   map[string]domain.Response
	evidence    map[string]evidence.Descriptor
	contents    map[string][]byte
	snapshots   map[string]storage.IndicatorSnapshot
	jobs        map[string]storage.JobRecord
}

func newState() *state {
	return &state{
		assessments: make(map[string]domain.Assessment),
		responses:   make(map[string]domain.Response),
		evidence:    make(map[string]evidence.Descriptor),
		contents:    make(map[string][]byte),
		snapshots:   make(map[string]storage.IndicatorSnapshot),
		jobs:        make(map[string]storage.JobRecord),
	}
}

func (s *state) clone() *state {
	out := newState()
	for k, v := range s.assessments {
		out.assessments[k] = v.Clone()
	}
	for k, v := range s.responses {
		out.responses[k] = v.Clone()
	}
	for k, v := range s.evidence {
		out.evidence[k] = v
	}
	for k, v := range s.contents {
		out.contents[k] = append([]byte(nil), v...)
	}
	for k, v := range s.snapshots {
		v.Definition = append([]byte(nil), v.Definition...)
		out.snapshots[k] = v
	}
	for k, v := range s.jobs {
		v.Payload = append([]byte(nil), v.Payload...)
		out.jobs[k] = v
	}
	return out
}

// Store keeps every record in process memory.
type Store struct {
	mu sync.Mutex
	st *state

	// set on transactional views; nil on the root store
	inTx bool
}

var _ storage.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{st: newState()}
}

// InTx applies fn to a copy of the state and commits the copy only when
// fn succeeds, mirroring transactional rollback semantics. Nested calls
// join the enclosing transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx storage.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.inTx {
		return fn(ctx, s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, &Store{st: work, inTx: true}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) run(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.st)
}

func (s *Store) PutAssessment(ctx context.Context, a domain.Assessment) error {
	return s.run(ctx, func(st *state) error {
		if err := a.CheckInvariants(); err != nil {
			return err
		}
		st.assessments[a.ID] = a.Clone()
		return nil
	})
}

func (s *Store) GetAssessment(ctx context.Context, id string) (domain.Assessment, error) {
	var out domain.Assessment
	err := s.run(ctx, func(st *state) error {
		a, ok := st.assessments[id]
		if !ok {
			return storage.ErrNotFound
		}
		out = a.Clone()
		return nil
	})
	return out, err
}

func (s *Store) GetAssessmentForYear(ctx context.Context, barangayID string, year int) (domain.Assessment, error) {
	var out domain.Assessment
	err := s.run(ctx, func(st *state) error {
		for _, a := range st.assessments {
			if a.BarangayID == barangayID && a.Year == year {
				out = a.Clone()
				return nil
			}
		}
		return storage.ErrNotFound
	})
	return out, err
}

func (s *Store) ListAssessmentsPastDeadline(ctx context.Context, now time.Time) ([]domain.Assessment, error) {
	var out []domain.Assessment
	err := s.run(ctx, func(st *state) error {
		for _, a := range st.assessments {
			if a.IsLockedForDeadline || a.GracePeriodExpiresAt == nil {
				continue
			}
			if a.GracePeriodExpiresAt.Before(now) {
				out = append(out, a.Clone())
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

func (s *Store) PutResponse(ctx context.Context, r domain.Response) error {
	return s.run(ctx, func(st *state) error {
		st.responses[r.ID] = r.Clone()
		return nil
	})
}

func (s *Store) GetResponse(ctx context.Context, id string) (domain.Response, error) {
	var out domain.Response
	err := s.run(ctx, func(st *state) error {
		r, ok := st.responses[id]
		if !ok {
			return storage.ErrNotFound
		}
		out = r.Clone()
		return nil
	})
	return out, err
}

func (s *Store) GetResponseByIndicator(ctx context.Context, assessmentID, indicatorID string) (domain.Response, error) {
	var out domain.Response
	err := s.run(ctx, func(st *state) error {
		for _, r := range st.responses {
			if r.AssessmentID == assessmentID && r.IndicatorID == indicatorID {
				out = r.Clone()
				return nil
			}
		}
		return storage.ErrNotFound
	})
	return out, err
}

func (s *Store) ListResponses(ctx context.Context, assessmentID string) ([]domain.Response, error) {
	var out []domain.Response
	err := s.run(ctx, func(st *state) error {
		for _, r := range st.responses {
			if r.AssessmentID == assessmentID {
				out = append(out, r.Clone())
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].IndicatorID < out[j].IndicatorID })
		return nil
	})
	return out, err
}

func (s *Store) ListAreaResponses(ctx context.Context, assessmentID string, areaID int) ([]domain.Response, error) {
	var out []domain.Response
	err := s.run(ctx, func(st *state) error {
		for _, r := range st.responses {
			if r.AssessmentID == assessmentID && r.AreaID == areaID {
				out = append(out, r.Clone())
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].IndicatorID < out[j].IndicatorID })
		return nil
	})
	return out, err
}

func (s *Store) PutEvidence(ctx context.Context, d evidence.Descriptor, contents []byte) error {
	return s.run(ctx, func(st *state) error {
		st.evidence[d.ID] = d
		st.contents[d.ID] = append([]byte(nil), contents...)
		return nil
	})
}

func (s *Store) GetEvidence(ctx context.Context, id string) (evidence.Descriptor, error) {
	var out evidence.Descriptor
	err := s.run(ctx, func(st *state) error {
		d, ok := st.evidence[id]
		if !ok {
			return storage.ErrNotFound
		}
		out = d
		return nil
	})
	return out, err
}

func (s *Store) DeleteEvidence(ctx context.Context, id string) error {
	return s.run(ctx, func(st *state) error {
		if _, ok := st.evidence[id]; !ok {
			return storage.ErrNotFound
		}
		delete(st.evidence, id)
		delete(st.contents, id)
		return nil
	})
}

func (s *Store) ListEvidence(ctx context.Context, responseID string) ([]evidence.Descriptor, error) {
	var out []evidence.Descriptor
	err := s.run(ctx, func(st *state) error {
		for _, d := range st.evidence {
			if d.ResponseID == responseID {
				out = append(out, d)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
				return out[i].UploadedAt.Before(out[j].UploadedAt)
			}
			return out[i].ID < out[j].ID
		})
		return nil
	})
	return out, err
}

func snapshotKey(assessmentID, indicatorID string) string {
	return assessmentID + "/" + indicatorID
}

func (s *Store) PutSnapshot(ctx context.Context, snap storage.IndicatorSnapshot) error {
	return s.run(ctx, func(st *state) error {
		key := snapshotKey(snap.AssessmentID, snap.IndicatorID)
		if _, ok := st.snapshots[key]; ok {
			// snapshots are immutable; re-freezing is a no-op
			return nil
		}
		snap.Definition = append([]byte(nil), snap.Definition...)
		st.snapshots[key] = snap
		return nil
	})
}

func (s *Store) GetSnapshot(ctx context.Context, assessmentID, indicatorID string) (storage.IndicatorSnapshot, error) {
	var out storage.IndicatorSnapshot
	err := s.run(ctx, func(st *state) error {
		snap, ok := st.snapshots[snapshotKey(assessmentID, indicatorID)]
		if !ok {
			return storage.ErrNotFound
		}
		snap.Definition = append([]byte(nil), snap.Definition...)
		out = snap
		return nil
	})
	return out, err
}

func (s *Store) ListSnapshots(ctx context.Context, assessmentID string) ([]storage.IndicatorSnapshot, error) {
	var out []storage.IndicatorSnapshot
	err := s.run(ctx, func(st *state) error {
		for _, snap := range st.snapshots {
			if snap.AssessmentID == assessmentID {
				snap.Definition = append([]byte(nil), snap.Definition...)
				out = append(out, snap)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].IndicatorID < out[j].IndicatorID })
		return nil
	})
	return out, err
}

func (s *Store) EnqueueJob(ctx context.Context, job storage.JobRecord) error {
	return s.run(ctx, func(st *state) error {
		if strings.TrimSpace(job.Key) == "" {
			return fmt.Errorf("job key is required")
		}
		if _, ok := st.jobs[job.Key]; ok {
			return nil
		}
		if job.CreatedAt.IsZero() {
			job.CreatedAt = time.Now().UTC()
		}
		if job.NextAttemptAt.IsZero() {
			job.NextAttemptAt = job.CreatedAt
		}
		job.Status = storage.JobPending
		job.UpdatedAt = job.CreatedAt
		job.Payload = append([]byte(nil), job.Payload...)
		st.jobs[job.Key] = job
		return nil
	})
}

func (s *Store) ClaimDueJobs(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]storage.JobRecord, error) {
	var out []storage.JobRecord
	err := s.run(ctx, func(st *state) error {
		var due []storage.JobRecord
		for _, j := range st.jobs {
			switch j.Status {
			case storage.JobPending, storage.JobFailed, storage.JobProcessing:
			default:
				continue
			}
			if j.NextAttemptAt.After(now) {
				continue
			}
			due = append(due, j)
		}
		sort.Slice(due, func(i, j int) bool {
			if !due[i].NextAttemptAt.Equal(due[j].NextAttemptAt) {
				return due[i].NextAttemptAt.Before(due[j].NextAttemptAt)
			}
			return due[i].Key < due[j].Key
		})
		if limit > 0 && len(due) > limit {
			due = due[:limit]
		}
		for _, j := range due {
			j.Status = storage.JobProcessing
			j.NextAttemptAt = now.Add(lease)
			j.UpdatedAt = now
			st.jobs[j.Key] = j
			j.Payload = append([]byte(nil), j.Payload...)
			out = append(out, j)
		}
		return nil
	})
	return out, err
}

func (s *Store) CompleteJob(ctx context.Context, key string) error {
	return s.run(ctx, func(st *state) error {
		j, ok := st.jobs[key]
		if !ok {
			return storage.ErrNotFound
		}
		j.Status = storage.JobSucceeded
		j.LastError = ""
		j.UpdatedAt = time.Now().UTC()
		st.jobs[key] = j
		return nil
	})
}

func (s *Store) FailJob(ctx context.Context, key string, attemptCount int, lastError string, nextAttemptAt time.Time, retry bool) error {
	return s.run(ctx, func(st *state) error {
		j, ok := st.jobs[key]
		if !ok {
			return storage.ErrNotFound
		}
		j.Status = storage.JobFailed
		if !retry {
			j.Status = storage.JobDead
		}
		j.AttemptCount = attemptCount
		j.LastError = lastError
		j.NextAttemptAt = nextAttemptAt
		j.UpdatedAt = time.Now().UTC()
		st.jobs[key] = j
		return nil
	})
}

func (s *Store) CountJobs(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int)
	err := s.run(ctx, func(st *state) error {
		for _, j := range st.jobs {
			out[j.Status]++
		}
		return nil
	})
	return out, err
}
