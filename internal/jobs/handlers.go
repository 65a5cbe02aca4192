package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/generyand/sinag-sub000/internal/storage"
)

// SummaryGenerator produces AI-assisted summary and insight text. Text
// generation lives outside the core; the worker only triggers it.
type SummaryGenerator interface {
	GenerateReworkSummary(ctx context.Context, assessmentID string) error
	GenerateCalibrationSummary(ctx context.Context, assessmentID string, areaID int) error
	GenerateInsights(ctx context.Context, assessmentID string) error
}

// Notifier delivers workflow event notifications.
type Notifier interface {
	Notify(ctx context.Context, event, assessmentID string, areaID int, payload map[string]any) error
}

// Handlers builds the handler table for every job name the workflow
// dispatches.
func Handlers(gen SummaryGenerator, notifier Notifier) map[string]Handler {
	handlers := map[string]Handler{
		JobGenerateReworkSummary: func(ctx context.Context, job storage.JobRecord) error {
			return gen.GenerateReworkSummary(ctx, job.AssessmentID)
		},
		JobGenerateCalibrationSummary: func(ctx context.Context, job storage.JobRecord) error {
			if job.AreaID <= 0 {
				return Permanent(fmt.Errorf("calibration summary job %s has no area", job.Key))
			}
			return gen.GenerateCalibrationSummary(ctx, job.AssessmentID, job.AreaID)
		},
		JobGenerateInsights: func(ctx context.Context, job storage.JobRecord) error {
			return gen.GenerateInsights(ctx, job.AssessmentID)
		},
	}

	notifications := []string{
		JobNotifySubmission, JobNotifyRework, JobNotifyCalibration,
		JobNotifyValidation, JobNotifyApproval, JobNotifyRecalibration,
		JobNotifyDeadline,
	}
	for _, name := range notifications {
		event := notificationEvent(name)
		handlers[name] = func(ctx context.Context, job storage.JobRecord) error {
			payload, err := decodePayload(job.Payload)
			if err != nil {
				return Permanent(err)
			}
			return notifier.Notify(ctx, event, job.AssessmentID, job.AreaID, payload)
		}
	}
	return handlers
}

func notificationEvent(jobName string) string {
	event := strings.TrimPrefix(jobName, "send_")
	return strings.TrimSuffix(event, "_notification")
}

func decodePayload(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode job payload: %w", err)
	}
	return payload, nil
}

// LogNotifier logs notifications instead of delivering them. Used until
// a real delivery channel is wired in.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, event, assessmentID string, areaID int, _ map[string]any) error {
	if areaID > 0 {
		log.Printf("notify %s assessment=%s area=%d", event, assessmentID, areaID)
	} else {
		log.Printf("notify %s assessment=%s", event, assessmentID)
	}
	return nil
}

// LogSummaryGenerator logs generation requests instead of producing
// text.
type LogSummaryGenerator struct{}

func (LogSummaryGenerator) GenerateReworkSummary(_ context.Context, assessmentID string) error {
	log.Printf("rework summary requested assessment=%s", assessmentID)
	return nil
}

func (LogSummaryGenerator) GenerateCalibrationSummary(_ context.Context, assessmentID string, areaID int) error {
	log.Printf("calibration summary requested assessment=%s area=%d", assessmentID, areaID)
	return nil
}

func (LogSummaryGenerator) GenerateInsights(_ context.Context, assessmentID string) error {
	log.Printf("insights requested assessment=%s", assessmentID)
	return nil
}
