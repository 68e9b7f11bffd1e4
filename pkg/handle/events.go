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

package handle

import (
	"context"
	"encoding/json"

	"github.com/livekit/janus-client/pkg/janus"
)

// ServerEvent is an input routed to a handle by its session: the outcome of
// the attach request or an unsolicited gateway message.
type ServerEvent interface {
	isServerEvent()
}

type AttachResult struct {
	ID  uint64
	Err error
}

type WebrtcUp struct{}

type Hangup struct {
	Reason string
}

type Detached struct{}

type Media struct {
	Type      string
	Receiving bool
	Mid       string
}

type SlowLink struct {
	Uplink bool
	Lost   int
	Mid    string
}

type Trickle struct {
	Candidate janus.Candidate
}

type Message struct {
	Plugin string
	Data   json.RawMessage
	JSEP   *janus.JSEP
}

type Timeout struct{}

type ServerError struct {
	Err error
}

func (AttachResult) isServerEvent() {}
func (WebrtcUp) isServerEvent()     {}
func (Hangup) isServerEvent()       {}
func (Detached) isServerEvent()     {}
func (Media) isServerEvent()        {}
func (SlowLink) isServerEvent()     {}
func (Trickle) isServerEvent()      {}
func (Message) isServerEvent()      {}
func (Timeout) isServerEvent()      {}
func (ServerError) isServerEvent()  {}

// Event is what observers of a handle receive.
type Event interface {
	isHandleEvent()
}

type Attached struct {
	ID uint64
}

type AttachFailed struct {
	Err error
}

type WebrtcState struct {
	Up     bool
	Reason string
}

type HangupReceived struct {
	Reason string
}

type DetachedEvent struct{}

type MediaState struct {
	Type      string
	Receiving bool
	Mid       string
}

type SlowLinkEvent struct {
	Uplink bool
	Lost   int
	Mid    string
}

type PluginMessage struct {
	Plugin string
	Data   json.RawMessage
	JSEP   *janus.JSEP
}

type IceState struct {
	State string
}

type RemoteTrack struct {
	Kind     MediaKind
	TrackID  string
	StreamID string
	Mid      string
	Removed  bool
}

type DataOpen struct {
	Label string
}

type DataReceived struct {
	Label string
	Data  []byte
}

type TimeoutEvent struct{}

type ErrorEvent struct {
	Err error
}

// Cleanup is sent once the peer connection has been torn down.
type Cleanup struct{}

func (Attached) isHandleEvent()       {}
func (AttachFailed) isHandleEvent()   {}
func (WebrtcState) isHandleEvent()    {}
func (HangupReceived) isHandleEvent() {}
func (DetachedEvent) isHandleEvent()  {}
func (MediaState) isHandleEvent()     {}
func (SlowLinkEvent) isHandleEvent()  {}
func (PluginMessage) isHandleEvent()  {}
func (IceState) isHandleEvent()       {}
func (RemoteTrack) isHandleEvent()    {}
func (DataOpen) isHandleEvent()       {}
func (DataReceived) isHandleEvent()   {}
func (TimeoutEvent) isHandleEvent()   {}
func (ErrorEvent) isHandleEvent()     {}
func (Cleanup) isHandleEvent()        {}

type Observer interface {
	HandleHandleEvent(ctx context.Context, h *Handle, ev Event)
}

type ObserverFunc func(ctx context.Context, h *Handle, ev Event)

func (f ObserverFunc) HandleHandleEvent(ctx context.Context, h *Handle, ev Event) {
	f(ctx, h, ev)
}

// ServerEventFromMessage converts an unsolicited gateway message addressed
// to a handle. ok is false for kinds a handle does not consume.
func ServerEventFromMessage(msg *janus.Message) (ServerEvent, bool) {
	switch msg.Janus {
	case janus.KindWebrtcUp:
		return WebrtcUp{}, true
	case janus.KindHangup:
		return Hangup{Reason: msg.Reason}, true
	case janus.KindDetached:
		return Detached{}, true
	case janus.KindMedia:
		return Media{Type: msg.Type, Receiving: msg.Receiving, Mid: msg.Mid}, true
	case janus.KindSlowLink:
		return SlowLink{Uplink: msg.Uplink, Lost: msg.Lost, Mid: msg.Mid}, true
	case janus.KindTrickle:
		if msg.Candidate == nil {
			return Trickle{Candidate: janus.EndOfCandidates()}, true
		}
		return Trickle{Candidate: *msg.Candidate}, true
	case janus.KindEvent:
		ev := Message{JSEP: msg.JSEP}
		if msg.PluginData != nil {
			ev.Plugin = msg.PluginData.Plugin
			ev.Data = msg.PluginData.Data
		}
		return ev, true
	case janus.KindTimeout:
		return Timeout{}, true
	case janus.KindError:
		return ServerError{Err: msg.Err()}, true
	default:
		return nil, false
	}
}
