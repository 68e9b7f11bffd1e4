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
	"time"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/janus-client/pkg/janus"
	"github.com/livekit/janus-client/pkg/simulcast"
)

// MediaEngine creates peer connections. Implementations are called from a
// single handle loop at a time.
type MediaEngine interface {
	NewPeerConnection(params PeerConnectionParams) (PeerConnection, error)
}

type PeerConnectionParams struct {
	// OnEvent may be called from any goroutine.
	OnEvent func(ev PeerEvent)
	Logger  logger.Logger
}

// PeerConnection is the media side of a handle. Every method is invoked on
// the owning handle's loop.
type PeerConnection interface {
	AddTrack(kind MediaKind, encodings []simulcast.Encoding) error
	ReplaceTrack(kind MediaKind) error
	RemoveTrack(kind MediaKind) error
	// AddReceiver makes sure kind is received even when it is not sent.
	AddReceiver(kind MediaKind) error

	CreateDataChannel(label string) error
	SendData(label string, data []byte) error
	InsertDTMF(tones string, duration time.Duration, gap time.Duration) error

	CreateOffer(iceRestart bool) (string, error)
	CreateAnswer() (string, error)
	SetLocalDescription(jsep janus.JSEP) error
	SetRemoteDescription(jsep janus.JSEP) error
	// LocalDescription includes the candidates gathered so far.
	LocalDescription() *janus.JSEP
	// AddICECandidate accepts the end-of-candidates sentinel.
	AddICECandidate(candidate janus.Candidate) error

	GetStats() (Stats, error)
	Close() error
}

// PeerEvent is one of LocalCandidate, ICEStateChanged, TrackReceived,
// DataChannelOpened, DataChannelMessage or NegotiationNeeded.
type PeerEvent interface {
	isPeerEvent()
}

// LocalCandidate carries a gathered candidate. A nil Candidate means
// gathering completed.
type LocalCandidate struct {
	Candidate *janus.Candidate
}

type ICEStateChanged struct {
	State string
}

type TrackReceived struct {
	Kind     MediaKind
	TrackID  string
	StreamID string
	Mid      string
	Removed  bool
}

type DataChannelOpened struct {
	Label string
}

type DataChannelMessage struct {
	Label string
	Data  []byte
}

type NegotiationNeeded struct{}

func (LocalCandidate) isPeerEvent()     {}
func (ICEStateChanged) isPeerEvent()    {}
func (TrackReceived) isPeerEvent()      {}
func (DataChannelOpened) isPeerEvent()  {}
func (DataChannelMessage) isPeerEvent() {}
func (NegotiationNeeded) isPeerEvent()  {}
