package scheduler

import (
	"fmt"
	"sync"

	"agromonitor/internal/logger"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler manages time-based triggers
type Scheduler struct {
	cron      *cron.Cron
	jobMap    map[string]cron.EntryID // Maps schedule ID to cron entry ID
	jobMapMux sync.RWMutex            // Protects jobMap
	log       zerolog.Logger
}

// NewScheduler creates a scheduler. Panicking jobs are recovered and logged.
func NewScheduler() *Scheduler {
	log := logger.WithComponent("scheduler")
	cl := cronLogger{log: log}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		jobMap: make(map[string]cron.EntryID),
		log:    log,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("cron scheduler started")
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("cron scheduler stopped")
}

// AddJob adds a cron job and returns the entry ID
func (s *Scheduler) AddJob(spec string, fn func()) (cron.EntryID, error) {
	return s.cron.AddFunc(spec, fn)
}

// AddOrUpdateSchedule replaces the job registered under scheduleID
func (s *Scheduler) AddOrUpdateSchedule(scheduleID, spec string, fn func()) error {
	s.RemoveSchedule(scheduleID)

	entryID, err := s.AddJob(spec, func() {
		s.log.Debug().Str("schedule", scheduleID).Msg("cron job triggered")
		fn()
	})
	if err != nil {
		return fmt.Errorf("schedule %s with cron %q: %w", scheduleID, spec, err)
	}

	s.jobMapMux.Lock()
	s.jobMap[scheduleID] = entryID
	s.jobMapMux.Unlock()

	s.log.Info().
		Str("schedule", scheduleID).
		Str("cron", spec).
		Int("entry_id", int(entryID)).
		Msg("schedule added")
	return nil
}

// RemoveSchedule removes a specific schedule by its ID
func (s *Scheduler) RemoveSchedule(scheduleID string) {
	s.jobMapMux.Lock()
	defer s.jobMapMux.Unlock()

	if entryID, exists := s.jobMap[scheduleID]; exists {
		s.cron.Remove(entryID)
		delete(s.jobMap, scheduleID)
		s.log.Info().Str("schedule", scheduleID).Msg("schedule removed")
	}
}

// GetScheduledJobCount returns the number of currently scheduled jobs
func (s *Scheduler) GetScheduledJobCount() int {
	s.jobMapMux.RLock()
	defer s.jobMapMux.RUnlock()
	return len(s.jobMap)
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
