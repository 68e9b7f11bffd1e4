package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/livekit/janus-client/pkg/dispatch"
)

func newTestScheduler(t *testing.T) *Scheduler {
	s := NewScheduler(SchedulerParams{Workers: 2})
	t.Cleanup(s.Stop)
	return s
}

func TestOneShot(t *testing.T) {
	s := newTestScheduler(t)

	var fired atomic.Int32
	id := s.Schedule(func() { fired.Inc() }, 10*time.Millisecond, false)
	require.True(t, s.IsScheduled(id))

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.False(t, s.IsScheduled(id))

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), fired.Load())
}

func TestCancelBeforeFire(t *testing.T) {
	s := newTestScheduler(t)

	var fired atomic.Bool
	id := s.Schedule(func() { fired.Store(true) }, 20*time.Millisecond, false)
	require.True(t, s.Cancel(id))
	require.False(t, s.Cancel(id))

	time.Sleep(60 * time.Millisecond)
	require.False(t, fired.Load())
}

func TestRepeatingUntilCancelled(t *testing.T) {
	s := newTestScheduler(t)

	var fired atomic.Int32
	id := s.Schedule(func() { fired.Inc() }, 10*time.Millisecond, true)

	require.Eventually(t, func() bool { return fired.Load() >= 3 }, time.Second, 5*time.Millisecond)
	require.True(t, s.IsScheduled(id))

	s.Cancel(id)
	// allow an in-flight invocation to finish
	time.Sleep(20 * time.Millisecond)
	count := fired.Load()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, count, fired.Load())
}

func TestCancelAll(t *testing.T) {
	s := newTestScheduler(t)

	var fired atomic.Int32
	ids := []TaskID{
		s.Schedule(func() { fired.Inc() }, 20*time.Millisecond, false),
		s.Schedule(func() { fired.Inc() }, 20*time.Millisecond, true),
	}
	s.CancelAll()
	for _, id := range ids {
		require.False(t, s.IsScheduled(id))
	}

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, int32(0), fired.Load())
}

func TestScheduleOnLoop(t *testing.T) {
	s := newTestScheduler(t)
	l := dispatch.NewLoop("scheduler-test", nil)
	l.Start()
	defer func() {
		_ = l.Stop(context.Background(), nil)
	}()

	var onLoop atomic.Bool
	s.ScheduleOn(l, func(ctx context.Context) {
		onLoop.Store(l.IsCurrent(ctx))
	}, 5*time.Millisecond, false)

	require.Eventually(t, onLoop.Load, time.Second, 5*time.Millisecond)
}

func TestRepeatingCancelledWhileQueuedOnLoop(t *testing.T) {
	s := newTestScheduler(t)
	l := dispatch.NewLoop("scheduler-cancel", nil)
	l.Start()
	defer func() {
		_ = l.Stop(context.Background(), nil)
	}()

	gate := make(chan struct{})
	l.Post(func(ctx context.Context) { <-gate })

	var fired atomic.Int32
	id := s.ScheduleOn(l, func(ctx context.Context) { fired.Inc() }, time.Millisecond, true)

	// let at least one tick queue up behind the gate
	time.Sleep(20 * time.Millisecond)
	s.Cancel(id)
	close(gate)

	require.NoError(t, l.Call(context.Background(), func(ctx context.Context) {}))
	require.Equal(t, int32(0), fired.Load())
}

func TestScheduleAfterStop(t *testing.T) {
	s := NewScheduler(SchedulerParams{})
	id := s.Schedule(func() {}, time.Hour, false)
	require.NotEqual(t, TaskID(0), id)
	require.True(t, s.IsScheduled(id))

	s.Stop()
	s.Stop()
	require.False(t, s.IsScheduled(id))
	require.Equal(t, TaskID(0), s.Schedule(func() {}, time.Millisecond, false))
}
