// Package evidence defines the evidence repository consumed by the core.
//
// File contents live outside the core; the workflow only reads the
// section tag and upload time of each descriptor.
package evidence

import (
	"context"
	"time"
)

// Descriptor identifies one uploaded proof file backing a response.
type Descriptor struct {
	ID         string
	ResponseID string
	Section    string
	UploadedAt time.Time
}

// Repository stores evidence files and their descriptors.
type Repository interface {
	// AddEvidence stores the file bytes and returns the descriptor.
	AddEvidence(ctx context.Context, responseID, section string, contents []byte) (Descriptor, error)
	// RemoveEvidence deletes one evidence file by id.
	RemoveEvidence(ctx context.Context, id string) error
	// ListByResponse returns every descriptor attached to a response.
	ListByResponse(ctx context.Context, responseID string) ([]Descriptor, error)
}

// UploadedSince filters descriptors to those uploaded at or after cutoff.
// A zero cutoff keeps everything: the first cycle has no prior rework to
// invalidate evidence.
func UploadedSince(descriptors []Descriptor, cutoff time.Time) []Descriptor {
	if cutoff.IsZero() {
		return descriptors
	}
	out := make([]Descriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if !d.UploadedAt.Before(cutoff) {
			out = append(out, d)
		}
	}
	return out
}
