// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stats

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/janus-client/pkg/handle"
	"github.com/livekit/janus-client/pkg/scheduler"
	"github.com/livekit/janus-client/pkg/telemetry/prometheus"
)

const DefaultInterval = 5 * time.Second

// Source is what the poller reads counters from, normally a *handle.Handle.
type Source interface {
	ID() uint64
	GetStats(ctx context.Context) (handle.Stats, error)
	Done() <-chan struct{}
}

type PollerParams struct {
	Scheduler *scheduler.Scheduler
	Interval  time.Duration
	// OnStats is called after every successful poll, with the rates since
	// the previous one.
	OnStats func(id uint64, stats handle.Stats, rates Rates)
	Logger  logger.Logger
}

// Rates are per second deltas between two polls.
type Rates struct {
	BytesSent       float64
	BytesReceived   float64
	PacketsSent     float64
	PacketsReceived float64
}

type tracked struct {
	source Source
	task   scheduler.TaskID
	last   handle.Stats
	lastAt time.Time
}

// Poller periodically reads peer connection counters of tracked handles
// and publishes them as metrics.
type Poller struct {
	params PollerParams

	lock    sync.Mutex
	sources map[uint64]*tracked
}

func NewPoller(params PollerParams) *Poller {
	if params.Interval <= 0 {
		params.Interval = DefaultInterval
	}
	if params.Logger == nil {
		params.Logger = logger.GetLogger()
	}
	return &Poller{
		params:  params,
		sources: make(map[uint64]*tracked),
	}
}

// Track starts polling s until Untrack is called or s is done.
func (p *Poller) Track(s Source) {
	id := s.ID()

	p.lock.Lock()
	if _, ok := p.sources[id]; ok {
		p.lock.Unlock()
		return
	}
	t := &tracked{source: s}
	p.sources[id] = t
	t.task = p.params.Scheduler.Schedule(func() { p.poll(t) }, p.params.Interval, true)
	p.lock.Unlock()

	go func() {
		<-s.Done()
		p.Untrack(id)
	}()
}

func (p *Poller) Untrack(id uint64) {
	p.lock.Lock()
	t, ok := p.sources[id]
	delete(p.sources, id)
	p.lock.Unlock()
	if !ok {
		return
	}

	p.params.Scheduler.Cancel(t.task)
	prometheus.RemoveHandleTraffic(handleLabel(id))
}

func (p *Poller) Tracked() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.sources)
}

// Stop untracks every source.
func (p *Poller) Stop() {
	p.lock.Lock()
	ids := make([]uint64, 0, len(p.sources))
	for id := range p.sources {
		ids = append(ids, id)
	}
	p.lock.Unlock()

	for _, id := range ids {
		p.Untrack(id)
	}
}

func (p *Poller) poll(t *tracked) {
	id := t.source.ID()
	ctx, cancel := context.WithTimeout(context.Background(), p.params.Interval)
	defer cancel()

	stats, err := t.source.GetStats(ctx)
	if err != nil {
		// nothing negotiated yet
		if !errors.Is(err, handle.ErrNoPeerConnection) {
			p.params.Logger.Debugw("could not get stats", "handleID", id, "error", err)
		}
		return
	}

	now := time.Now()
	p.lock.Lock()
	if p.sources[id] != t {
		p.lock.Unlock()
		return
	}
	rates := computeRates(t.last, stats, now.Sub(t.lastAt))
	if t.lastAt.IsZero() {
		rates = Rates{}
	}
	t.last = stats
	t.lastAt = now
	p.lock.Unlock()

	label := handleLabel(id)
	prometheus.SetHandleTraffic(label, prometheus.Outgoing, stats.PacketsSent, stats.BytesSent, 0)
	prometheus.SetHandleTraffic(label, prometheus.Incoming, stats.PacketsReceived, stats.BytesReceived, stats.PacketsLost)
	if stats.RoundTripTime > 0 {
		prometheus.SetHandleRTT(label, float64(stats.RoundTripTime.Milliseconds()))
	}

	p.params.Logger.Debugw("handle stats",
		"handleID", id,
		"sent", humanize.Bytes(stats.BytesSent),
		"received", humanize.Bytes(stats.BytesReceived),
		"sendRate", humanize.Bytes(uint64(rates.BytesSent))+"/s",
		"recvRate", humanize.Bytes(uint64(rates.BytesReceived))+"/s",
		"lost", stats.PacketsLost,
		"rtt", stats.RoundTripTime,
	)
	if p.params.OnStats != nil {
		p.params.OnStats(id, stats, rates)
	}
}

func computeRates(prev handle.Stats, cur handle.Stats, elapsed time.Duration) Rates {
	seconds := elapsed.Seconds()
	if seconds <= 0 {
		return Rates{}
	}
	delta := func(a, b uint64) float64 {
		// counters reset with a new peer connection
		if b < a {
			return float64(b) / seconds
		}
		return float64(b-a) / seconds
	}
	return Rates{
		BytesSent:       delta(prev.BytesSent, cur.BytesSent),
		BytesReceived:   delta(prev.BytesReceived, cur.BytesReceived),
		PacketsSent:     delta(prev.PacketsSent, cur.PacketsSent),
		PacketsReceived: delta(prev.PacketsReceived, cur.PacketsReceived),
	}
}

func handleLabel(id uint64) string {
	return strconv.FormatUint(id, 10)
}
