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

package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/frostbyte73/core"
	"github.com/gammazero/workerpool"
	"go.uber.org/atomic"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/janus-client/pkg/dispatch"
)

const defaultWorkers = 4

type TaskID uint64

type SchedulerParams struct {
	Workers int
	Logger  logger.Logger
}

type task struct {
	id     TaskID
	delay  time.Duration
	repeat bool
	loop   *dispatch.Loop
	fn     dispatch.Op
	timer  *time.Timer
}

// Scheduler runs delayed and periodic closures, either on a shared worker
// pool or on an owner loop. Cancellation only clears the task id: an
// invocation that has already started is not interrupted.
type Scheduler struct {
	params SchedulerParams
	pool   *workerpool.WorkerPool

	poolLock sync.RWMutex
	lock     sync.Mutex
	tasks    map[TaskID]*task
	nextID   atomic.Uint64

	stopped core.Fuse
}

func NewScheduler(params SchedulerParams) *Scheduler {
	if params.Workers <= 0 {
		params.Workers = defaultWorkers
	}
	if params.Logger == nil {
		params.Logger = logger.GetLogger()
	}
	return &Scheduler{
		params:  params,
		pool:    workerpool.New(params.Workers),
		tasks:   make(map[TaskID]*task),
		stopped: core.NewFuse(),
	}
}

// Schedule runs fn on the worker pool after delay, and every delay after
// that when repeat is set.
func (s *Scheduler) Schedule(fn func(), delay time.Duration, repeat bool) TaskID {
	return s.add(nil, func(context.Context) { fn() }, delay, repeat)
}

// ScheduleOn is like Schedule but fn runs on loop.
func (s *Scheduler) ScheduleOn(loop *dispatch.Loop, fn dispatch.Op, delay time.Duration, repeat bool) TaskID {
	return s.add(loop, fn, delay, repeat)
}

func (s *Scheduler) add(loop *dispatch.Loop, fn dispatch.Op, delay time.Duration, repeat bool) TaskID {
	if s.stopped.IsBroken() {
		return 0
	}
	if delay < 0 {
		delay = 0
	}

	t := &task{
		id:     TaskID(s.nextID.Inc()),
		delay:  delay,
		repeat: repeat,
		loop:   loop,
		fn:     fn,
	}

	s.lock.Lock()
	s.tasks[t.id] = t
	t.timer = time.AfterFunc(delay, func() { s.fire(t) })
	s.lock.Unlock()

	return t.id
}

func (s *Scheduler) IsScheduled(id TaskID) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	_, ok := s.tasks[id]
	return ok
}

func (s *Scheduler) Cancel(id TaskID) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(s.tasks, id)
	return true
}

func (s *Scheduler) CancelAll() {
	s.lock.Lock()
	defer s.lock.Unlock()

	for id, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, id)
	}
}

func (s *Scheduler) Stop() {
	if s.stopped.IsBroken() {
		return
	}
	s.CancelAll()

	s.poolLock.Lock()
	s.stopped.Break()
	s.poolLock.Unlock()
	s.pool.StopWait()
}

func (s *Scheduler) fire(t *task) {
	s.lock.Lock()
	if _, ok := s.tasks[t.id]; !ok {
		s.lock.Unlock()
		return
	}
	if t.repeat {
		t.timer.Reset(t.delay)
	} else {
		delete(s.tasks, t.id)
	}
	s.lock.Unlock()

	if t.loop != nil {
		if !t.loop.Post(func(ctx context.Context) {
			// may have been cancelled while queued
			if t.repeat && !s.IsScheduled(t.id) {
				return
			}
			t.fn(ctx)
		}) {
			s.params.Logger.Debugw("dropping task for stopped loop", "taskID", t.id, "loop", t.loop.Name())
			s.Cancel(t.id)
		}
		return
	}

	s.poolLock.RLock()
	defer s.poolLock.RUnlock()
	if s.stopped.IsBroken() {
		return
	}
	s.pool.Submit(func() {
		if t.repeat && !s.IsScheduled(t.id) {
			return
		}
		t.fn(context.Background())
	})
}
