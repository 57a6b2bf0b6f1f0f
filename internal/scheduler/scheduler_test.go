package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestAddOrUpdateSchedule(t *testing.T) {
	s := NewScheduler()

	if err := s.AddOrUpdateSchedule("report", "0 7 * * *", func() {}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddOrUpdateSchedule("report", "30 6 * * *", func() {}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := s.GetScheduledJobCount(); got != 1 {
		t.Fatalf("expected update to replace the job, got %d jobs", got)
	}

	if err := s.AddOrUpdateSchedule("broken", "every morning", func() {}); err == nil {
		t.Fatal("expected error for an invalid cron expression")
	}
	if got := s.GetScheduledJobCount(); got != 1 {
		t.Fatalf("an invalid cron expression must not be registered, got %d jobs", got)
	}

	s.RemoveSchedule("report")
	s.RemoveSchedule("unknown")
	if got := s.GetScheduledJobCount(); got != 0 {
		t.Fatalf("expected no jobs, got %d", got)
	}
}

func TestScheduleRunsAndRecovers(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32

	if err := s.AddOrUpdateSchedule("tick", "@every 1s", func() {
		if runs.Add(1) == 1 {
			panic("first run fails")
		}
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	s.Start()
	defer s.Stop()

	deadline := time.After(5 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected job to keep running after a panic, got %d runs", runs.Load())
		case <-time.After(50 * time.Millisecond):
		}
	}
}
