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

package session

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotConnected     = errors.New("session not connected")
	ErrAlreadyConnected = errors.New("session already connected")
	ErrNoSession        = errors.New("no session to reconnect")
	ErrSessionTimeout   = errors.New("session timed out on gateway")
	ErrMissingHandleID  = errors.New("attach reply without handle id")
	ErrManagerClosed    = errors.New("session manager closed")
)

type Status int32

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "DISCONNECTED"
	case StatusConnecting:
		return "CONNECTING"
	case StatusConnected:
		return "CONNECTED"
	default:
		return fmt.Sprintf("%d", int(s))
	}
}

// ConnectionError reports a transport level failure.
type ConnectionError struct {
	Code   int
	Reason string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection lost (%d): %s", e.Code, e.Reason)
}

// Event is what session observers receive.
type Event interface {
	isSessionEvent()
}

type StatusChanged struct {
	Status    Status
	SessionID uint64
	Err       error
}

type Destroyed struct {
	SessionID uint64
}

type SessionError struct {
	Err error
}

func (StatusChanged) isSessionEvent() {}
func (Destroyed) isSessionEvent()     {}
func (SessionError) isSessionEvent()  {}

type Observer interface {
	HandleSessionEvent(ctx context.Context, ev Event)
}

type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) HandleSessionEvent(ctx context.Context, ev Event) {
	f(ctx, ev)
}

type Callback func(ctx context.Context, err error)
