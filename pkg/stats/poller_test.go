package stats

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/livekit/janus-client/pkg/handle"
	"github.com/livekit/janus-client/pkg/scheduler"
)

type fakeSource struct {
	id   uint64
	done chan struct{}

	lock  sync.Mutex
	stats handle.Stats
	err   error
	calls int
}

func newFakeSource(id uint64) *fakeSource {
	return &fakeSource{id: id, done: make(chan struct{})}
}

func (f *fakeSource) ID() uint64 {
	return f.id
}

func (f *fakeSource) GetStats(context.Context) (handle.Stats, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls++
	f.stats.BytesSent += 1000
	f.stats.PacketsSent += 10
	return f.stats, f.err
}

func (f *fakeSource) Done() <-chan struct{} {
	return f.done
}

func (f *fakeSource) Calls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.calls
}

func newTestPoller(t *testing.T, onStats func(uint64, handle.Stats, Rates)) *Poller {
	s := scheduler.NewScheduler(scheduler.SchedulerParams{})
	t.Cleanup(s.Stop)
	p := NewPoller(PollerParams{
		Scheduler: s,
		Interval:  20 * time.Millisecond,
		OnStats:   onStats,
	})
	t.Cleanup(p.Stop)
	return p
}

func TestPollerPublishesStats(t *testing.T) {
	results := make(chan Rates, 10)
	p := newTestPoller(t, func(id uint64, stats handle.Stats, rates Rates) {
		require.Equal(t, uint64(42), id)
		select {
		case results <- rates:
		default:
		}
	})

	src := newFakeSource(42)
	p.Track(src)
	p.Track(src)
	require.Equal(t, 1, p.Tracked())

	// first poll has no baseline
	require.Zero(t, (<-results).BytesSent)
	require.Greater(t, (<-results).BytesSent, float64(0))
}

func TestPollerStopsWhenSourceDone(t *testing.T) {
	p := newTestPoller(t, nil)

	src := newFakeSource(1)
	p.Track(src)
	require.Eventually(t, func() bool { return src.Calls() > 0 }, time.Second, 5*time.Millisecond)

	close(src.done)
	require.Eventually(t, func() bool { return p.Tracked() == 0 }, time.Second, 5*time.Millisecond)

	calls := src.Calls()
	time.Sleep(60 * time.Millisecond)
	require.LessOrEqual(t, src.Calls(), calls+1)
}

func TestPollerSkipsUnnegotiated(t *testing.T) {
	called := make(chan struct{}, 1)
	p := newTestPoller(t, func(uint64, handle.Stats, Rates) {
		called <- struct{}{}
	})

	src := newFakeSource(2)
	src.err = handle.ErrNoPeerConnection
	p.Track(src)
	require.Eventually(t, func() bool { return src.Calls() > 1 }, time.Second, 5*time.Millisecond)
	require.Empty(t, called)
}

func TestComputeRates(t *testing.T) {
	prev := handle.Stats{BytesSent: 1000, BytesReceived: 500, PacketsSent: 10}
	cur := handle.Stats{BytesSent: 3000, BytesReceived: 100, PacketsSent: 30}

	rates := computeRates(prev, cur, 2*time.Second)
	require.Equal(t, float64(1000), rates.BytesSent)
	require.Equal(t, float64(10), rates.PacketsSent)
	// counter reset
	require.Equal(t, float64(50), rates.BytesReceived)

	require.Equal(t, Rates{}, computeRates(prev, cur, 0))
}
