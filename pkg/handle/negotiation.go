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
	"github.com/elliotchance/orderedmap/v2"
	"github.com/gammazero/deque"

	"github.com/livekit/janus-client/pkg/janus"
)

type dataChannel struct {
	label   string
	open    bool
	pending [][]byte
}

// NegotiationState is owned by the handle loop. Remote candidates are only
// queued while RemoteSDP is unset, and the queue is drained when it is set.
type NegotiationState struct {
	LocalSDP  *janus.JSEP
	RemoteSDP *janus.JSEP
	IceDone   bool
	Trickle   bool
	Media     MediaConfig

	pendingCandidates deque.Deque[janus.Candidate]
	dataChannels      *orderedmap.OrderedMap[string, *dataChannel]
}

func newNegotiationState() NegotiationState {
	return NegotiationState{
		Trickle:      true,
		dataChannels: orderedmap.NewOrderedMap[string, *dataChannel](),
	}
}

func (n *NegotiationState) PendingCandidates() int {
	return n.pendingCandidates.Len()
}

func (n *NegotiationState) queueCandidate(c janus.Candidate) {
	n.pendingCandidates.PushBack(c)
}

// takeCandidates empties the queue and returns its content in arrival
// order.
func (n *NegotiationState) takeCandidates() []janus.Candidate {
	candidates := make([]janus.Candidate, 0, n.pendingCandidates.Len())
	for n.pendingCandidates.Len() > 0 {
		candidates = append(candidates, n.pendingCandidates.PopFront())
	}
	return candidates
}

func (n *NegotiationState) DataChannelLabels() []string {
	return n.dataChannels.Keys()
}

func (n *NegotiationState) reset() {
	n.LocalSDP = nil
	n.RemoteSDP = nil
	n.IceDone = false
	n.Trickle = true
	n.Media = MediaConfig{}
	n.pendingCandidates.Clear()
	n.dataChannels = orderedmap.NewOrderedMap[string, *dataChannel]()
}
