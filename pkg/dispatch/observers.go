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
	"sync"
)

type observerEntry[T any] struct {
	id       ID
	observer T
	loop     *Loop
}

// ObserverList broadcasts to observers on the loop each one registered
// with. Removed observers are pruned lazily on the next broadcast, and a
// delivery already queued for a removed observer is dropped.
type ObserverList[T any] struct {
	live Registry[struct{}]

	lock    sync.Mutex
	entries []observerEntry[T]
}

// Add registers observer. A nil loop means deliveries run on the
// broadcasting goroutine.
func (o *ObserverList[T]) Add(observer T, loop *Loop) ID {
	id := o.live.Insert(struct{}{})

	o.lock.Lock()
	o.entries = append(o.entries, observerEntry[T]{
		id:       id,
		observer: observer,
		loop:     loop,
	})
	o.lock.Unlock()
	return id
}

func (o *ObserverList[T]) Remove(id ID) {
	o.live.Release(id)
}

func (o *ObserverList[T]) Len() int {
	return o.live.Len()
}

func (o *ObserverList[T]) Clear() {
	o.lock.Lock()
	entries := o.entries
	o.entries = nil
	o.lock.Unlock()

	for _, e := range entries {
		o.live.Release(e.id)
	}
}

// Broadcast calls fn for every live observer.
func (o *ObserverList[T]) Broadcast(ctx context.Context, fn func(ctx context.Context, observer T)) {
	for _, e := range o.snapshot() {
		if e.loop == nil || e.loop.IsCurrent(ctx) {
			if !o.live.IsLive(e.id) {
				continue
			}
			fn(ctx, e.observer)
			continue
		}

		e := e
		e.loop.Post(func(lctx context.Context) {
			if !o.live.IsLive(e.id) {
				return
			}
			fn(lctx, e.observer)
		})
	}
}

func (o *ObserverList[T]) snapshot() []observerEntry[T] {
	o.lock.Lock()
	defer o.lock.Unlock()

	live := o.entries[:0]
	for _, e := range o.entries {
		if o.live.IsLive(e.id) {
			live = append(live, e)
		}
	}
	// clear pruned tail so observers can be collected
	for i := len(live); i < len(o.entries); i++ {
		o.entries[i] = observerEntry[T]{}
	}
	o.entries = live

	return append([]observerEntry[T](nil), live...)
}
