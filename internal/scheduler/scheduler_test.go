package scheduler

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"varg.is/gatewall/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: logging.LevelError, Output: &bytes.Buffer{}})
}

func TestEverySchedule(t *testing.T) {
	s := Every(12 * time.Hour)
	now := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(12*time.Hour), s.Next(now))
}

func TestAddTaskValidation(t *testing.T) {
	s := New(testLogger())
	fn := func(ctx context.Context) error { return nil }

	assert.Error(t, s.AddTask(&Task{Name: "no id", Schedule: Every(time.Hour), Func: fn}))
	assert.Error(t, s.AddTask(&Task{ID: "t", Func: fn}))
	assert.Error(t, s.AddTask(&Task{ID: "t", Schedule: Every(time.Hour)}))

	require.NoError(t, s.AddTask(&Task{ID: "t", Schedule: Every(time.Hour), Func: fn}))
	err := s.AddTask(&Task{ID: "t", Schedule: Every(time.Hour), Func: fn})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestRunOnStart(t *testing.T) {
	var runs atomic.Int32

	s := New(testLogger())
	require.NoError(t, s.AddTask(&Task{
		ID:         "refresh",
		Name:       "refresh",
		Schedule:   Every(time.Hour),
		RunOnStart: true,
		Func: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}))

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return runs.Load() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestPeriodicExecution(t *testing.T) {
	var runs atomic.Int32

	s := New(testLogger())
	s.resolution = 5 * time.Millisecond
	require.NoError(t, s.AddTask(&Task{
		ID:       "tick",
		Name:     "tick",
		Schedule: Every(20 * time.Millisecond),
		Func: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}))

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return runs.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunNowAndStatus(t *testing.T) {
	s := New(testLogger())
	require.NoError(t, s.AddTask(&Task{
		ID:       "job",
		Name:     "job",
		Schedule: Every(time.Hour),
		Func: func(ctx context.Context) error {
			return errors.New("boom")
		},
	}))

	require.Error(t, s.RunNow("missing"))
	require.NoError(t, s.RunNow("job"))

	require.Eventually(t, func() bool {
		statuses := s.Status()
		return len(statuses) == 1 && statuses[0].RunCount == 1
	}, time.Second, 10*time.Millisecond)

	st := s.Status()[0]
	assert.Equal(t, int64(1), st.ErrorCount)
	assert.Equal(t, "boom", st.LastError)
	assert.False(t, st.NextRun.IsZero())
}

func TestStopIsIdempotentAndWaits(t *testing.T) {
	s := New(testLogger())
	s.Stop() // not started

	s.Start()
	s.Start() // second start is a no-op
	assert.True(t, s.IsRunning())

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()
}
