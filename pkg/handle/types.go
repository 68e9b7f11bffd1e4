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
	"errors"
	"fmt"
	"time"

	"github.com/livekit/janus-client/pkg/janus"
)

var (
	ErrNotAttached         = errors.New("handle is not attached")
	ErrHandleClosed        = errors.New("handle closed")
	ErrNoPeerConnection    = errors.New("no peer connection")
	ErrOfferWithJSEP       = errors.New("offer cannot be created with a remote jsep")
	ErrAnswerWithoutOffer  = errors.New("answer requires a remote offer")
	ErrNoLocalDescription  = errors.New("no local description")
	ErrEmptyTones          = errors.New("no DTMF tones provided")
	ErrInvalidDataChannel  = errors.New("invalid data channel label")
	ErrNegotiationReplaced = errors.New("negotiation superseded by a new round")
)

type State int32

const (
	StateDetached State = iota
	StateAttaching
	StateAttached
	StateNegotiating
	StateActive
	StateHungup
)

func (s State) String() string {
	switch s {
	case StateDetached:
		return "DETACHED"
	case StateAttaching:
		return "ATTACHING"
	case StateAttached:
		return "ATTACHED"
	case StateNegotiating:
		return "NEGOTIATING"
	case StateActive:
		return "ACTIVE"
	case StateHungup:
		return "HUNGUP"
	default:
		return fmt.Sprintf("%d", int(s))
	}
}

// CanNegotiate reports whether offers and answers may be produced in this
// state.
func (s State) CanNegotiate() bool {
	switch s {
	case StateAttached, StateNegotiating, StateActive, StateHungup:
		return true
	default:
		return false
	}
}

type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// Callbacks run on the handle's loop. ctx identifies that loop, so calls
// back into the handle made with it run inline.
type (
	Callback        func(ctx context.Context, err error)
	JSEPCallback    func(ctx context.Context, jsep *janus.JSEP, err error)
	MessageCallback func(ctx context.Context, msg *janus.Message, err error)
)

type OfferParams struct {
	Media MediaConfig
	// defaults to true
	Trickle         *bool
	Simulcast       bool
	SimulcastLayers int
	IceRestart      bool
}

type AnswerParams struct {
	JSEP    *janus.JSEP
	Media   MediaConfig
	Trickle *bool
}

type DtmfParams struct {
	Tones    string
	Duration time.Duration
	Gap      time.Duration
}

// Stats is a summary of the peer connection's transport counters.
type Stats struct {
	BytesSent       uint64
	BytesReceived   uint64
	PacketsSent     uint64
	PacketsReceived uint64
	PacketsLost     int64
	RoundTripTime   time.Duration
}
