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

package media

import (
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/livekit/janus-client/pkg/handle"
)

func statsFromReport(report webrtc.StatsReport) handle.Stats {
	var stats handle.Stats
	for _, s := range report {
		switch s := s.(type) {
		case webrtc.OutboundRTPStreamStats:
			stats.BytesSent += s.BytesSent
			stats.PacketsSent += uint64(s.PacketsSent)
		case webrtc.InboundRTPStreamStats:
			stats.BytesReceived += s.BytesReceived
			stats.PacketsReceived += uint64(s.PacketsReceived)
			stats.PacketsLost += int64(s.PacketsLost)
		case webrtc.ICECandidatePairStats:
			if s.Nominated && s.CurrentRoundTripTime > 0 {
				stats.RoundTripTime = time.Duration(s.CurrentRoundTripTime * float64(time.Second))
			}
		}
	}
	return stats
}
