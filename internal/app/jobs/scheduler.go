// Package jobs runs the periodic wallet maintenance tasks on cron schedules.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/novastack/service_layer/internal/app/metrics"
	"github.com/novastack/service_layer/internal/app/system"
	"github.com/novastack/service_layer/pkg/logger"
)

var _ system.Service = (*Scheduler)(nil)

// DefaultTimeout bounds a single job run.
const DefaultTimeout = 5 * time.Minute

// Job is a named task run on a cron schedule. Schedule accepts five-field
// cron expressions and descriptors such as "@every 2m".
type Job struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs registered jobs. Overlapping runs of the same job are
// skipped. Failures are logged and counted, never fatal.
type Scheduler struct {
	log  *logger.Logger
	cron *cron.Cron

	mu      sync.Mutex
	jobs    map[string]Job
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// NewScheduler creates an idle scheduler.
func NewScheduler(log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("jobs")
	}
	ctx, cancel := context.WithCancel(context.Background())
	clog := cronLogger{log: log}
	return &Scheduler{
		log:    log,
		cron:   cron.New(cron.WithLogger(clog), cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog))),
		jobs:   make(map[string]Job),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a job. It must be called before Start.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("job requires a name and a run function")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("register %s: scheduler already running", job.Name)
	}
	if _, dup := s.jobs[job.Name]; dup {
		return fmt.Errorf("job %s already registered", job.Name)
	}
	if job.Timeout <= 0 {
		job.Timeout = DefaultTimeout
	}
	if _, err := s.cron.AddFunc(job.Schedule, func() { s.execute(s.ctx, job) }); err != nil {
		return fmt.Errorf("job %s: invalid schedule %q: %w", job.Name, job.Schedule, err)
	}
	s.jobs[job.Name] = job
	return nil
}

func (s *Scheduler) Name() string { return "jobs-scheduler" }

func (s *Scheduler) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.cron.Start()
	s.running = true
	s.log.WithField("jobs", len(s.jobs)).Info("job scheduler started")
	return nil
}

// Stop halts scheduling, cancels running jobs and waits for them to return
// or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("job scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow executes a registered job synchronously.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not registered", name)
	}
	return s.execute(ctx, job)
}

func (s *Scheduler) execute(ctx context.Context, job Job) error {
	runCtx, cancel := context.WithTimeout(ctx, job.Timeout)
	defer cancel()
	runCtx = logger.WithTraceID(runCtx, logger.NewTraceID())

	start := time.Now()
	err := job.Run(runCtx)
	duration := time.Since(start)
	metrics.RecordJobRun(job.Name, duration, err == nil)

	entry := s.log.WithContext(runCtx).WithField("job", job.Name).WithField("duration", duration.String())
	if err != nil {
		entry.WithError(err).Error("job run failed")
		return err
	}
	entry.Debug("job run finished")
	return nil
}

// cronLogger routes cron's own messages through logrus.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(kv []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return out
}
