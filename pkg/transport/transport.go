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

package transport

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotConnected     = errors.New("transport not connected")
	ErrAlreadyConnected = errors.New("transport already connected")
)

// Event is one of Opened, Failed, Closed or MessageReceived.
type Event interface {
	isTransportEvent()
}

type Opened struct{}

type Failed struct {
	Code   int
	Reason string
}

type Closed struct {
	Code   int
	Reason string
}

type MessageReceived struct {
	Data   []byte
	Binary bool
}

func (Opened) isTransportEvent()          {}
func (Failed) isTransportEvent()          {}
func (Closed) isTransportEvent()          {}
func (MessageReceived) isTransportEvent() {}

func (e Failed) String() string {
	return fmt.Sprintf("failed(%d): %s", e.Code, e.Reason)
}

func (e Closed) String() string {
	return fmt.Sprintf("closed(%d): %s", e.Code, e.Reason)
}

// Listener receives transport events in arrival order, on a single
// goroutine.
type Listener interface {
	HandleTransportEvent(ev Event)
}

type ListenerFunc func(ev Event)

func (f ListenerFunc) HandleTransportEvent(ev Event) {
	f(ev)
}

type Transport interface {
	SetListener(l Listener)
	// Connect starts connecting. The outcome is reported through Opened or
	// Failed.
	Connect(ctx context.Context, url string) error
	Send(data []byte, binary bool) error
	Disconnect()
	IsConnected() bool
}
