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

package transportfakes

import (
	"context"
	"sync"

	"github.com/livekit/janus-client/pkg/transport"
)

type Frame struct {
	Data   []byte
	Binary bool
}

// FakeTransport records sent frames and lets tests inject events.
type FakeTransport struct {
	lock       sync.Mutex
	listener   transport.Listener
	connected  bool
	url        string
	sent       []Frame
	connectErr error
	sendErr    error
	autoOpen   bool
	onSend     func(data []byte)

	connectCalls    int
	disconnectCalls int
}

// NewFakeTransport returns a transport that reports Opened as soon as
// Connect is called.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{autoOpen: true}
}

func (f *FakeTransport) SetListener(l transport.Listener) {
	f.lock.Lock()
	f.listener = l
	f.lock.Unlock()
}

func (f *FakeTransport) Connect(_ context.Context, url string) error {
	f.lock.Lock()
	f.connectCalls++
	f.url = url
	if f.connectErr != nil {
		err := f.connectErr
		f.lock.Unlock()
		f.Emit(transport.Failed{Code: 0, Reason: err.Error()})
		return err
	}
	autoOpen := f.autoOpen
	f.lock.Unlock()

	if autoOpen {
		f.Open()
	}
	return nil
}

func (f *FakeTransport) Send(data []byte, binary bool) error {
	f.lock.Lock()
	if !f.connected {
		f.lock.Unlock()
		return transport.ErrNotConnected
	}
	if f.sendErr != nil {
		err := f.sendErr
		f.lock.Unlock()
		return err
	}
	f.sent = append(f.sent, Frame{Data: append([]byte(nil), data...), Binary: binary})
	onSend := f.onSend
	f.lock.Unlock()

	if onSend != nil {
		onSend(data)
	}
	return nil
}

func (f *FakeTransport) Disconnect() {
	f.lock.Lock()
	f.disconnectCalls++
	wasConnected := f.connected
	f.connected = false
	f.lock.Unlock()

	if wasConnected {
		f.Emit(transport.Closed{Code: 1000, Reason: "disconnected"})
	}
}

func (f *FakeTransport) IsConnected() bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.connected
}

// Open marks the transport connected and reports Opened.
func (f *FakeTransport) Open() {
	f.lock.Lock()
	f.connected = true
	f.lock.Unlock()
	f.Emit(transport.Opened{})
}

// Drop simulates a connection loss reported as Failed.
func (f *FakeTransport) Drop(code int, reason string) {
	f.lock.Lock()
	f.connected = false
	f.lock.Unlock()
	f.Emit(transport.Failed{Code: code, Reason: reason})
}

// Receive injects an inbound text frame.
func (f *FakeTransport) Receive(data []byte) {
	f.Emit(transport.MessageReceived{Data: data})
}

func (f *FakeTransport) Emit(ev transport.Event) {
	f.lock.Lock()
	l := f.listener
	f.lock.Unlock()
	if l != nil {
		l.HandleTransportEvent(ev)
	}
}

func (f *FakeTransport) SetAutoOpen(autoOpen bool) {
	f.lock.Lock()
	f.autoOpen = autoOpen
	f.lock.Unlock()
}

func (f *FakeTransport) SetConnectError(err error) {
	f.lock.Lock()
	f.connectErr = err
	f.lock.Unlock()
}

func (f *FakeTransport) SetSendError(err error) {
	f.lock.Lock()
	f.sendErr = err
	f.lock.Unlock()
}

// OnSend registers a hook invoked after every successful Send, outside the
// fake's lock.
func (f *FakeTransport) OnSend(fn func(data []byte)) {
	f.lock.Lock()
	f.onSend = fn
	f.lock.Unlock()
}

func (f *FakeTransport) Sent() []Frame {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]Frame(nil), f.sent...)
}

func (f *FakeTransport) ClearSent() {
	f.lock.Lock()
	f.sent = nil
	f.lock.Unlock()
}

func (f *FakeTransport) URL() string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.url
}

func (f *FakeTransport) ConnectCallCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.connectCalls
}

func (f *FakeTransport) DisconnectCallCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.disconnectCalls
}

var _ transport.Transport = (*FakeTransport)(nil)
