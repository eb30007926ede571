// Package scheduler runs named jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"commodity-forecast/internal/logger"
)

// ErrJobRunning is returned by RunNow when the job is already in progress.
var ErrJobRunning = errors.New("job already running")

// Job is a unit of scheduled work.
type Job func(ctx context.Context) error

// JobStatus describes a registered job.
type JobStatus struct {
	Name     string    `json:"name"`
	Spec     string    `json:"spec"`
	Next     time.Time `json:"next"`
	LastRun  time.Time `json:"last_run,omitempty"`
	LastErr  string    `json:"last_error,omitempty"`
	Running  bool      `json:"running"`
	Runs     int       `json:"runs"`
	Failures int       `json:"failures"`
}

type entry struct {
	id   cron.EntryID
	spec string
	job  Job

	mu     sync.Mutex // held while the job runs
	status JobStatus
}

// Scheduler manages all cron tasks. Specs include a seconds field.
// A job still running when its next tick fires is skipped.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	log  *logger.Logger

	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates a new Scheduler. Jobs receive ctx.
func New(ctx context.Context, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	cl := cronLogger{log: log.Component("cron")}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cl)), cron.WithLogger(cl)),
		ctx:     ctx,
		log:     log,
		entries: make(map[string]*entry),
	}
}

// Register adds a named job.
func (s *Scheduler) Register(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.entries[name]; dup {
		return fmt.Errorf("job %q already registered", name)
	}

	e := &entry{spec: spec, job: job, status: JobStatus{Name: name, Spec: spec}}
	id, err := s.cron.AddFunc(spec, func() { s.run(name, e) })
	if err != nil {
		return fmt.Errorf("register %s job: %w", name, err)
	}
	e.id = id
	s.entries[name] = e
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", logger.Int("jobs", len(s.entries)))
}

// Stop stops the scheduler and waits for running jobs up to ctx's deadline.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out with jobs still running")
	}
}

// RunNow executes a job immediately in the calling goroutine.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.run(name, e)
}

func (s *Scheduler) run(name string, e *entry) error {
	if !e.mu.TryLock() {
		s.log.Warn("job still running, skipping", logger.String("job", name))
		return ErrJobRunning
	}
	defer e.mu.Unlock()

	s.setRunning(e, true)
	start := time.Now()
	s.log.Info("job started", logger.String("job", name))

	err := e.job(s.ctx)

	s.mu.Lock()
	e.status.Running = false
	e.status.LastRun = start.UTC()
	e.status.Runs++
	e.status.LastErr = ""
	if err != nil {
		e.status.Failures++
		e.status.LastErr = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("job failed", logger.String("job", name), logger.Duration("duration", time.Since(start)), logger.Error(err))
		return err
	}
	s.log.Info("job finished", logger.String("job", name), logger.Duration("duration", time.Since(start)))
	return nil
}

func (s *Scheduler) setRunning(e *entry, running bool) {
	s.mu.Lock()
	e.status.Running = running
	s.mu.Unlock()
}

// Status returns registered jobs sorted by name.
func (s *Scheduler) Status() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobStatus, 0, len(s.entries))
	for _, e := range s.entries {
		st := e.status
		st.Next = s.cron.Entry(e.id).Next
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
