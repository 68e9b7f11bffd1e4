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

package simulcast

// Encoding describes one simulcast RTP stream.
type Encoding struct {
	Rid                   string
	MaxBitrate            uint64
	ScaleResolutionDownBy float64
}

// DefaultRids matches what deployed gateways expect. The medium and low
// layers share the "m" rid.
var DefaultRids = []string{"h", "m", "m"}

var layerDefaults = []Encoding{
	{MaxBitrate: 900_000, ScaleResolutionDownBy: 1},
	{MaxBitrate: 300_000, ScaleResolutionDownBy: 2},
	{MaxBitrate: 100_000, ScaleResolutionDownBy: 4},
}

// Encodings returns the high, medium and low encodings labelled with rids.
// Missing rids fall back to DefaultRids. MaxBitrate and
// ScaleResolutionDownBy describe the intended layout only: the pion engine
// sends pre-encoded samples and cannot apply them, so each layer carries
// whatever the caller writes to it.
func Encodings(rids []string) []Encoding {
	encodings := make([]Encoding, len(layerDefaults))
	for i, enc := range layerDefaults {
		enc.Rid = DefaultRids[i]
		if i < len(rids) && rids[i] != "" {
			enc.Rid = rids[i]
		}
		encodings[i] = enc
	}
	return encodings
}

// HasDuplicateRids reports whether two encodings share a rid, which some
// gateways reject.
func HasDuplicateRids(encodings []Encoding) bool {
	seen := make(map[string]struct{}, len(encodings))
	for _, enc := range encodings {
		if _, ok := seen[enc.Rid]; ok {
			return true
		}
		seen[enc.Rid] = struct{}{}
	}
	return false
}
