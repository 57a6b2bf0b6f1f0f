package taskqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"agromonitor/internal/models"
	"agromonitor/internal/services"

	"github.com/hibiken/asynq"
)

type fakeBuilder struct {
	deviceID string
	window   time.Duration
	err      error
}

func (f *fakeBuilder) Build(_ context.Context, deviceID string, window time.Duration) (services.Summary, error) {
	f.deviceID, f.window = deviceID, window
	if f.err != nil {
		return services.Summary{}, f.err
	}
	return services.Summary{DeviceID: "esp-1", Readings: 0, To: time.Now(), From: time.Now().Add(-window)}, nil
}

type fakeNotifier struct {
	kind  models.NotificationKind
	title string
	text  string
	calls int
}

func (f *fakeNotifier) Notify(_ context.Context, kind models.NotificationKind, title, text string) models.NotificationEntry {
	f.kind, f.title, f.text = kind, title, text
	f.calls++
	return models.NotificationEntry{ID: "n1", Kind: kind, Text: text}
}

func TestReportHandlerPostsSummary(t *testing.T) {
	b := &fakeBuilder{}
	n := &fakeNotifier{}
	task, err := NewReportTask(ReportPayload{DeviceID: "esp-1", Window: 12 * time.Hour})
	if err != nil {
		t.Fatalf("task: %v", err)
	}
	if task.Type() != TypeDailyReport {
		t.Fatalf("unexpected type %q", task.Type())
	}

	if err := NewReportHandler(b, n).ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process: %v", err)
	}
	if b.deviceID != "esp-1" || b.window != 12*time.Hour {
		t.Fatalf("unexpected build args %q %v", b.deviceID, b.window)
	}
	if n.calls != 1 || n.kind != models.KindInfo || n.title != services.ReportTitle || n.text == "" {
		t.Fatalf("unexpected notification %+v", n)
	}
}

func TestReportHandlerDefaultsWindow(t *testing.T) {
	b := &fakeBuilder{}
	task, _ := NewReportTask(ReportPayload{})
	if err := NewReportHandler(b, &fakeNotifier{}).ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process: %v", err)
	}
	if b.window != 24*time.Hour {
		t.Fatalf("expected 24h default, got %v", b.window)
	}
}

func TestReportHandlerErrors(t *testing.T) {
	bad := asynq.NewTask(TypeDailyReport, []byte("{"))
	err := NewReportHandler(&fakeBuilder{}, &fakeNotifier{}).ProcessTask(context.Background(), bad)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("malformed payload must skip retries, got %v", err)
	}

	boom := errors.New("db down")
	n := &fakeNotifier{}
	task, _ := NewReportTask(ReportPayload{DeviceID: "esp-1"})
	err = NewReportHandler(&fakeBuilder{err: boom}, n).ProcessTask(context.Background(), task)
	if !errors.Is(err, boom) {
		t.Fatalf("expected build error to be retried, got %v", err)
	}
	if n.calls != 0 {
		t.Fatal("failed report must not notify")
	}
}
