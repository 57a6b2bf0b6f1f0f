package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"agromonitor/internal/logger"
	"agromonitor/internal/metrics"
	"agromonitor/internal/models"
	"agromonitor/internal/services"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// TypeDailyReport is the task type of the scheduled summary
const TypeDailyReport = "report:daily"

// ReportPayload for report tasks
type ReportPayload struct {
	DeviceID string        `json:"device_id"`
	Window   time.Duration `json:"window"`
}

func NewReportTask(p ReportPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDailyReport, payload), nil
}

// ReportBuilder summarizes a window of readings
type ReportBuilder interface {
	Build(ctx context.Context, deviceID string, window time.Duration) (services.Summary, error)
}

// Notifier records and emits a notification
type Notifier interface {
	Notify(ctx context.Context, kind models.NotificationKind, title, text string) models.NotificationEntry
}

// ReportHandler builds the summary and posts it as an info notification
type ReportHandler struct {
	builder  ReportBuilder
	notifier Notifier
	log      zerolog.Logger
}

func NewReportHandler(builder ReportBuilder, notifier Notifier) *ReportHandler {
	return &ReportHandler{
		builder:  builder,
		notifier: notifier,
		log:      logger.WithComponent("taskqueue"),
	}
}

func (h *ReportHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ReportPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		metrics.ReportsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if p.Window <= 0 {
		p.Window = 24 * time.Hour
	}

	summary, err := h.builder.Build(ctx, p.DeviceID, p.Window)
	if err != nil {
		metrics.ReportsTotal.WithLabelValues("failed").Inc()
		h.log.Error().Err(err).Str("device_id", p.DeviceID).Msg("failed to build report")
		return err
	}

	entry := h.notifier.Notify(ctx, models.KindInfo, services.ReportTitle, summary.Text())
	metrics.ReportsTotal.WithLabelValues("ok").Inc()
	h.log.Info().
		Str("device_id", summary.DeviceID).
		Int("readings", summary.Readings).
		Str("notification_id", entry.ID).
		Msg("report posted")
	return nil
}
