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

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/frostbyte73/core"
	"github.com/gammazero/deque"

	"github.com/livekit/protocol/logger"
)

var (
	ErrLoopStopped = errors.New("loop stopped")
)

// Op is a unit of work executed on a Loop. The context passed to an op
// identifies the loop it runs on, so calls made from inside an op back into
// the same loop execute inline instead of deadlocking.
type Op func(ctx context.Context)

type loopKey struct{}

// Loop serialises all operations on an owned object onto a single
// goroutine, the owner of that object.
type Loop struct {
	name   string
	logger logger.Logger
	ctx    context.Context

	lock     sync.Mutex
	cond     *sync.Cond
	ops      deque.Deque[Op]
	started  bool
	stopping bool

	exited core.Fuse
}

func NewLoop(name string, l logger.Logger) *Loop {
	if l == nil {
		l = logger.GetLogger()
	}
	lp := &Loop{
		name:   name,
		logger: l.WithValues("loop", name),
		exited: core.NewFuse(),
	}
	lp.ctx = context.WithValue(context.Background(), loopKey{}, lp)
	lp.cond = sync.NewCond(&lp.lock)
	return lp
}

func (l *Loop) Name() string {
	return l.name
}

func (l *Loop) Start() {
	l.lock.Lock()
	if l.started {
		l.lock.Unlock()
		return
	}
	l.started = true
	l.lock.Unlock()

	go l.process()
}

// IsCurrent reports whether ctx belongs to an op running on this loop.
func (l *Loop) IsCurrent(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	current, _ := ctx.Value(loopKey{}).(*Loop)
	return current == l
}

// Context returns a context bound to this loop. Only ops running on the
// loop should use it.
func (l *Loop) Context() context.Context {
	return l.ctx
}

// Post enqueues op without waiting for it. Returns false if the loop is
// stopping.
func (l *Loop) Post(op Op) bool {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.stopping {
		return false
	}
	l.ops.PushBack(op)
	l.cond.Signal()
	return true
}

// Call runs op on the loop and waits for it to finish. When ctx already
// belongs to the loop, op runs inline.
func (l *Loop) Call(ctx context.Context, op Op) error {
	if l.IsCurrent(ctx) {
		op(ctx)
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	done := make(chan struct{})
	if !l.Post(func(lctx context.Context) {
		defer close(done)
		op(lctx)
	}) {
		return ErrLoopStopped
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.exited.Watch():
		select {
		case <-done:
			return nil
		default:
			return ErrLoopStopped
		}
	}
}

// Invoke runs fn on the loop and relays its return value.
func Invoke[T any](ctx context.Context, l *Loop, fn func(ctx context.Context) T) (T, error) {
	var res T
	err := l.Call(ctx, func(lctx context.Context) {
		res = fn(lctx)
	})
	return res, err
}

// Stop runs teardown on the loop, after every op queued before it, then
// stops the loop. Further posts are rejected. When called from the loop
// itself teardown runs inline and the loop exits after the current op.
func (l *Loop) Stop(ctx context.Context, teardown Op) error {
	if l.IsCurrent(ctx) {
		if teardown != nil {
			teardown(ctx)
		}
		l.lock.Lock()
		l.stopping = true
		l.cond.Signal()
		l.lock.Unlock()
		return nil
	}

	l.lock.Lock()
	if l.stopping {
		l.lock.Unlock()
		return ErrLoopStopped
	}
	done := make(chan struct{})
	l.ops.PushBack(func(lctx context.Context) {
		defer close(done)
		if teardown != nil {
			teardown(lctx)
		}
	})
	l.stopping = true
	started := l.started
	l.cond.Signal()
	l.lock.Unlock()

	if !started {
		// never started, drain on the caller
		l.process()
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the loop has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.exited.Watch()
}

func (l *Loop) process() {
	defer l.exited.Break()

	for {
		l.lock.Lock()
		for l.ops.Len() == 0 && !l.stopping {
			l.cond.Wait()
		}
		if l.ops.Len() == 0 {
			l.lock.Unlock()
			return
		}
		op := l.ops.PopFront()
		l.lock.Unlock()

		l.run(op)
	}
}

func (l *Loop) run(op Op) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Errorw("recovered from panic in loop op", fmt.Errorf("%v", r), "stack", string(debug.Stack()))
		}
	}()
	op(l.ctx)
}
