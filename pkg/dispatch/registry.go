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
	"fmt"
	"sync"
)

// ID is a generational index into a Registry. An ID stays invalid after its
// slot is released, even when the slot is reused.
type ID struct {
	index      uint32
	generation uint32
}

func (id ID) IsValid() bool {
	return id.generation != 0
}

func (id ID) String() string {
	return fmt.Sprintf("%d/%d", id.index, id.generation)
}

type slot[T any] struct {
	value      T
	generation uint32
	live       bool
}

// Registry is an arena of values addressed by generational ids. Cross
// goroutine references hold an ID rather than the value.
type Registry[T any] struct {
	lock  sync.RWMutex
	slots []slot[T]
	free  []uint32
	count int
}

func (r *Registry[T]) Insert(v T) ID {
	r.lock.Lock()
	defer r.lock.Unlock()

	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		idx = uint32(len(r.slots))
		r.slots = append(r.slots, slot[T]{})
	}

	s := &r.slots[idx]
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	s.value = v
	s.live = true
	r.count++
	return ID{index: idx, generation: s.generation}
}

func (r *Registry[T]) Get(id ID) (T, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	var zero T
	s, ok := r.lookup(id)
	if !ok {
		return zero, false
	}
	return s.value, true
}

func (r *Registry[T]) IsLive(id ID) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()

	_, ok := r.lookup(id)
	return ok
}

// Release invalidates id and returns the value it referenced.
func (r *Registry[T]) Release(id ID) (T, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	var zero T
	s, ok := r.lookup(id)
	if !ok {
		return zero, false
	}
	v := s.value
	s.value = zero
	s.live = false
	r.free = append(r.free, id.index)
	r.count--
	return v, true
}

func (r *Registry[T]) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return r.count
}

// Values returns a copy of the live values.
func (r *Registry[T]) Values() []T {
	r.lock.RLock()
	defer r.lock.RUnlock()

	values := make([]T, 0, r.count)
	for _, s := range r.slots {
		if s.live {
			values = append(values, s.value)
		}
	}
	return values
}

func (r *Registry[T]) lookup(id ID) (*slot[T], bool) {
	if !id.IsValid() || int(id.index) >= len(r.slots) {
		return nil, false
	}
	s := &r.slots[id.index]
	if !s.live || s.generation != id.generation {
		return nil, false
	}
	return s, true
}
