// Package scheduler runs periodic background jobs in daemon mode, such
// as the country list refresh.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"varg.is/gatewall/internal/logging"
)

// TaskFunc performs one run of a scheduled job. The context is
// cancelled when the scheduler stops.
type TaskFunc func(ctx context.Context) error

// Schedule decides when a task runs next.
type Schedule interface {
	Next(after time.Time) time.Time
}

// IntervalSchedule runs a task at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// Every returns a fixed-interval schedule.
func Every(d time.Duration) IntervalSchedule {
	return IntervalSchedule{Interval: d}
}

func (s IntervalSchedule) Next(after time.Time) time.Time {
	return after.Add(s.Interval)
}

// Task is one recurring job.
type Task struct {
	ID         string
	Name       string
	Schedule   Schedule
	Func       TaskFunc
	RunOnStart bool
	Timeout    time.Duration
}

// TaskStatus is the observable state of a task.
type TaskStatus struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	LastRun      time.Time     `json:"last_run,omitempty"`
	LastDuration time.Duration `json:"last_duration,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
	NextRun      time.Time     `json:"next_run,omitempty"`
	RunCount     int64         `json:"run_count"`
	ErrorCount   int64         `json:"error_count"`
}

type taskEntry struct {
	task    *Task
	status  TaskStatus
	nextRun time.Time
}

// Scheduler drives registered tasks from a single ticker loop.
type Scheduler struct {
	tasks   map[string]*taskEntry
	mu      sync.RWMutex
	logger  *logging.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup

	// tick granularity, shortened in tests
	resolution time.Duration
}

// New creates an empty scheduler.
func New(logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default().WithComponent("scheduler")
	}
	return &Scheduler{
		tasks:      make(map[string]*taskEntry),
		logger:     logger,
		resolution: time.Second,
	}
}

// AddTask registers a task. Tasks cannot be added twice.
func (s *Scheduler) AddTask(task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.ID == "" {
		return fmt.Errorf("task ID is required")
	}
	if task.Schedule == nil {
		return fmt.Errorf("task schedule is required")
	}
	if task.Func == nil {
		return fmt.Errorf("task function is required")
	}
	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("task %s already exists", task.ID)
	}

	entry := &taskEntry{
		task:    task,
		status:  TaskStatus{ID: task.ID, Name: task.Name},
		nextRun: task.Schedule.Next(time.Now()),
	}
	entry.status.NextRun = entry.nextRun

	s.tasks[task.ID] = entry
	s.logger.Info("task added", "id", task.ID, "name", task.Name)
	return nil
}

// RunNow triggers a task outside its schedule.
func (s *Scheduler) RunNow(id string) error {
	s.mu.RLock()
	entry, exists := s.tasks[id]
	ctx := s.ctx
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("task %s not found", id)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(ctx, entry)
	}()
	return nil
}

// Status returns all task statuses sorted by name.
func (s *Scheduler) Status() []TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]TaskStatus, 0, len(s.tasks))
	for _, entry := range s.tasks {
		statuses = append(statuses, entry.status)
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Name < statuses[j].Name
	})
	return statuses
}

// Start begins the ticker loop. Idempotent.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running = true
	ctx := s.ctx
	s.mu.Unlock()

	s.logger.Info("scheduler started")

	s.mu.RLock()
	for _, entry := range s.tasks {
		if entry.task.RunOnStart {
			e := entry
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.execute(ctx, e)
			}()
		}
	}
	s.mu.RUnlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
}

// Stop cancels the loop and waits for in-flight tasks.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.runDue(ctx, now)
		}
	}
}

func (s *Scheduler) runDue(ctx context.Context, now time.Time) {
	s.mu.Lock()
	var due []*taskEntry
	for _, entry := range s.tasks {
		if !entry.nextRun.After(now) {
			// Claim the slot before the goroutine starts so a slow task
			// is not started twice.
			entry.nextRun = entry.task.Schedule.Next(now)
			entry.status.NextRun = entry.nextRun
			due = append(due, entry)
		}
	}
	s.mu.Unlock()

	for _, entry := range due {
		e := entry
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.execute(ctx, e)
		}()
	}
}

func (s *Scheduler) execute(ctx context.Context, entry *taskEntry) {
	task := entry.task

	var cancel context.CancelFunc
	if task.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := task.Func(ctx)
	duration := time.Since(start)

	s.mu.Lock()
	entry.status.LastRun = start
	entry.status.LastDuration = duration
	entry.status.RunCount++
	if err != nil {
		entry.status.LastError = err.Error()
		entry.status.ErrorCount++
	} else {
		entry.status.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("task failed", "id", task.ID, "error", err, "duration", duration)
	} else {
		s.logger.Debug("task completed", "id", task.ID, "duration", duration)
	}
}
