package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/TEENet-io/mintburn-bridge/state"
	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
)

const (
	DefaultTick       = 5 * time.Second
	DefaultMaxRetries = 5
	DefaultMaxBackoff = time.Hour
)

var (
	ErrAlreadyStarted = errors.New("scheduler already started")
	ErrUnknownKind    = errors.New("unknown task kind")
)

type TaskID string

type StepResult int

const (
	// Reschedule runs the task again after its interval.
	Reschedule StepResult = iota
	// Done finishes the task.
	Done
)

// Task is one resumable unit of work. Execute advances it until it has to
// wait for its next run.
type Task interface {
	Kind() string
	// Key identifies the flow the task drives, eg. a recipient
	Key() string
	Execute(ctx context.Context) (StepResult, error)
	// Payload is what Restore hands back to the factory
	Payload() []byte
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable. Any other error fails the task.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

type TaskState string

const (
	TaskScheduled TaskState = "scheduled"
	TaskRunning   TaskState = "running"
	TaskDone      TaskState = "done"
	TaskFailed    TaskState = "failed"
)

type TaskStatus struct {
	ID        TaskID
	Kind      string
	Key       string
	State     TaskState
	Attempts  int
	LastError string
	NextRun   time.Time
}

type Options struct {
	Policy IntervalPolicy
	// 0 takes the scheduler default
	MaxRetries int
}

type Config struct {
	Tick       time.Duration
	MaxRetries int
	MaxBackoff time.Duration
}

type entry struct {
	task   Task
	opts   Options
	status TaskStatus
}

// Scheduler is the single actor executing every task step. RunDue passes
// never overlap.
type Scheduler struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	entries map[TaskID]*entry
	order   []TaskID

	runMu     sync.Mutex
	afterPass func(ctx context.Context, ran int)

	cron *gocron.Scheduler
}

func New(cfg Config) *Scheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	return &Scheduler{
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[TaskID]*entry),
	}
}

// SetClock replaces the time source.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AfterPass registers fn to run after every RunDue pass.
func (s *Scheduler) AfterPass(fn func(ctx context.Context, ran int)) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.afterPass = fn
}

// Append queues task to run on the next pass.
func (s *Scheduler) Append(task Task, opts Options) TaskID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := TaskID(uuid.NewString())
	s.add(id, task, opts, TaskStatus{State: TaskScheduled, NextRun: s.now()})

	logger.WithFields(logger.Fields{
		"id":     id,
		"kind":   task.Kind(),
		"key":    task.Key(),
		"policy": opts.Policy.String(),
	}).Debug("task appended")
	return id
}

func (s *Scheduler) add(id TaskID, task Task, opts Options, status TaskStatus) {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = s.cfg.MaxRetries
	}
	status.ID = id
	status.Kind = task.Kind()
	status.Key = task.Key()
	s.entries[id] = &entry{task: task, opts: opts, status: status}
	s.order = append(s.order, id)
}

func (s *Scheduler) Status(id TaskID) (TaskStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return TaskStatus{}, false
	}
	return e.status, true
}

// Active returns the pending task of kind driving key.
func (s *Scheduler) Active(kind, key string) (TaskID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		e := s.entries[id]
		if e.status.Kind != kind || e.status.Key != key {
			continue
		}
		if e.status.State == TaskScheduled || e.status.State == TaskRunning {
			return id, true
		}
	}
	return "", false
}

func (s *Scheduler) Statuses() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskStatus, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id].status)
	}
	return out
}

func (s *Scheduler) due() []TaskID {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	ids := []TaskID{}
	for _, id := range s.order {
		e := s.entries[id]
		if e.status.State == TaskScheduled && !e.status.NextRun.After(now) {
			e.status.State = TaskRunning
			ids = append(ids, id)
		}
	}
	return ids
}

// RunDue executes one step of every due task, in append order. It returns
// the number of steps executed.
func (s *Scheduler) RunDue(ctx context.Context) int {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	ran := 0
	for _, id := range s.due() {
		if ctx.Err() != nil {
			s.requeue(id)
			continue
		}

		s.mu.Lock()
		task := s.entries[id].task
		s.mu.Unlock()

		res, err := task.Execute(ctx)
		s.settle(id, res, err)
		ran++
	}

	if s.afterPass != nil {
		s.afterPass(ctx, ran)
	}
	return ran
}

func (s *Scheduler) requeue(id TaskID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id].status.State = TaskScheduled
}

func (s *Scheduler) settle(id TaskID, res StepResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries[id]
	now := s.now()
	fields := logger.Fields{"id": id, "kind": e.status.Kind, "key": e.status.Key}

	switch {
	case err == nil && res == Done:
		e.status.State = TaskDone
		e.status.Attempts = 0
		e.status.LastError = ""
		logger.WithFields(fields).Debug("task done")

	case err == nil:
		e.status.State = TaskScheduled
		e.status.Attempts = 0
		e.status.LastError = ""
		e.status.NextRun = e.opts.Policy.Next(now)

	case IsTransient(err):
		e.status.Attempts++
		e.status.LastError = err.Error()
		if e.status.Attempts > e.opts.MaxRetries {
			e.status.State = TaskFailed
			logger.WithFields(fields).Errorf("task failed after %d attempts: %v", e.status.Attempts, err)
			return
		}
		e.status.State = TaskScheduled
		e.status.NextRun = now.Add(backoff(e.opts.Policy.Interval(), e.status.Attempts, s.cfg.MaxBackoff))
		logger.WithFields(fields).Warnf("task step failed, attempt %d: %v", e.status.Attempts, err)

	default:
		e.status.State = TaskFailed
		e.status.LastError = err.Error()
		logger.WithFields(fields).Errorf("task failed: %v", err)
	}
}

// Start drives RunDue every tick until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return ErrAlreadyStarted
	}

	cron := gocron.NewScheduler(time.UTC)
	cron.SingletonModeAll()
	if _, err := cron.Every(s.cfg.Tick).Do(func() { s.RunDue(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule task runner: %w", err)
	}
	cron.StartAsync()
	s.cron = cron

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	logger.WithField("tick", s.cfg.Tick).Info("scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	cron := s.cron
	s.cron = nil
	s.mu.Unlock()

	if cron != nil {
		cron.Stop()
		logger.Info("scheduler stopped")
	}
}

// Snapshot returns every task that is not done.
func (s *Scheduler) Snapshot() []*state.TaskRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []*state.TaskRecord{}
	for _, id := range s.order {
		e := s.entries[id]
		if e.status.State == TaskDone {
			continue
		}
		st := e.status.State
		if st == TaskRunning {
			st = TaskScheduled
		}
		out = append(out, &state.TaskRecord{
			ID:        string(id),
			Kind:      e.status.Kind,
			Key:       e.status.Key,
			Payload:   e.task.Payload(),
			Policy:    e.opts.Policy.Seconds(),
			NextRun:   e.status.NextRun.Unix(),
			Attempts:  e.status.Attempts,
			State:     string(st),
			LastError: e.status.LastError,
		})
	}
	return out
}

// Factory rebuilds a task from its record.
type Factory func(rec *state.TaskRecord) (Task, error)

// Restore queues the tasks of a snapshot under their original ids.
func (s *Scheduler) Restore(records []*state.TaskRecord, factory Factory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		task, err := factory(rec)
		if err != nil {
			return fmt.Errorf("task %s: %w", rec.ID, err)
		}
		s.add(TaskID(rec.ID), task, Options{Policy: Period(rec.Policy)}, TaskStatus{
			State:     TaskState(rec.State),
			Attempts:  rec.Attempts,
			LastError: rec.LastError,
			NextRun:   time.Unix(rec.NextRun, 0),
		})
	}

	logger.WithField("tasks", len(records)).Debug("scheduler restored")
	return nil
}
