// Package jobs defines background tasks and the Asynq worker harness.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/chartkeep/chartkeep/internal/reports"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportWarmup pre-computes point-in-time status snapshots.
	TaskReportWarmup = "reports:warmup"
)

// ReportWarmupPayload describes which dates to warm, counted back from today.
type ReportWarmupPayload struct {
	Days int `json:"days"`
}

// NewReportWarmupTask constructs an Asynq task.
func NewReportWarmupTask(payload ReportWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportWarmup, data), nil
}

// ReportWarmupHandler returns the handler for TaskReportWarmup.
func ReportWarmupHandler(svc *reports.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ReportWarmupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.Days < 1 {
			payload.Days = 1
		}
		today := time.Now().UTC()
		for i := 0; i < payload.Days; i++ {
			day := today.AddDate(0, 0, -i)
			if err := svc.Warm(ctx, day); err != nil {
				logger.Error("warm report snapshots", slog.String("day", day.Format("2006-01-02")), slog.Any("error", err))
				return err
			}
		}
		logger.Info("report snapshots warmed", slog.Int("days", payload.Days))
		return nil
	}
}
