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

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
	"github.com/pkg/errors"
)

const (
	DefaultLayers = 2
	MaxLayers     = 2
)

var (
	ErrInvalidLayers = errors.New("simulcast layers must be 1 or 2")

	ssrcLine    = regexp.MustCompile(`^a=ssrc:(\d+) `)
	fidGroup    = regexp.MustCompile(`^a=ssrc-group:FID (\d+) (\d+)`)
	mediaLine   = regexp.MustCompile(`^m=(\w+) `)
	ssrcAttrKey = []string{"cname", "msid", "mslabel", "label"}
)

// Inject rewrites the first video section of sdp so that it announces
// layers additional SSRCs grouped with the primary one in an
// a=ssrc-group:SIM line. The input is returned unchanged when it already
// carries a SIM group, uses rid based simulcast, or has no video SSRC.
func Inject(description string, layers int) (string, error) {
	if layers < 1 || layers > MaxLayers {
		return "", ErrInvalidLayers
	}

	parsed := sdp.SessionDescription{}
	if err := parsed.Unmarshal([]byte(description)); err != nil {
		return "", errors.Wrap(err, "could not parse sdp")
	}
	if !hasVideo(&parsed) {
		return description, nil
	}
	if strings.Contains(description, "a=ssrc-group:SIM") || strings.Contains(description, "a=simulcast:") {
		return description, nil
	}

	lines := splitLines(description)

	// find the section and its SSRCs before touching anything, the FID
	// group may come after the ssrc lines it names
	start, end := videoSection(lines)
	if start < 0 {
		return description, nil
	}
	var primary, fid string
	for _, line := range lines[start:end] {
		if m := fidGroup.FindStringSubmatch(line); m != nil {
			primary, fid = m[1], m[2]
			break
		}
	}
	if primary == "" {
		for _, line := range lines[start:end] {
			if m := ssrcLine.FindStringSubmatch(line); m != nil {
				primary = m[1]
				break
			}
		}
	}
	if primary == "" {
		return description, nil
	}

	attrs := make(map[string]string)
	kept := make([]string, 0, len(lines))
	kept = append(kept, lines[:start]...)
	for _, line := range lines[start:end] {
		switch {
		case fid != "" && strings.HasPrefix(line, "a=ssrc-group:FID "+primary+" "+fid):
		case strings.HasPrefix(line, "a=ssrc:"+primary+" "):
			collectAttr(line, primary, attrs)
		case fid != "" && strings.HasPrefix(line, "a=ssrc:"+fid+" "):
		default:
			kept = append(kept, line)
		}
	}
	insertAt := len(kept)
	kept = append(kept, lines[end:]...)

	ssrcs := []string{primary}
	fids := []string{fid}
	for i := 0; i < layers; i++ {
		ssrcs = append(ssrcs, newSSRC(description))
		if fid != "" {
			fids = append(fids, newSSRC(description))
		}
	}

	block := []string{"a=ssrc-group:SIM " + strings.Join(ssrcs, " ")}
	if fid != "" {
		for i := range ssrcs {
			block = append(block, fmt.Sprintf("a=ssrc-group:FID %s %s", ssrcs[i], fids[i]))
		}
	}
	for i := range ssrcs {
		block = append(block, ssrcAttrs(ssrcs[i], attrs)...)
		if fid != "" {
			block = append(block, ssrcAttrs(fids[i], attrs)...)
		}
	}

	out := make([]string, 0, len(kept)+len(block))
	out = append(out, kept[:insertAt]...)
	out = append(out, block...)
	out = append(out, kept[insertAt:]...)
	return strings.Join(out, "\r\n") + "\r\n", nil
}

// videoSection returns the line range of the first video m-section, or -1.
func videoSection(lines []string) (int, int) {
	start := -1
	for i, line := range lines {
		m := mediaLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if start >= 0 {
			return start, i
		}
		if m[1] == "video" {
			start = i
		}
	}
	if start < 0 {
		return -1, -1
	}
	return start, len(lines)
}

func hasVideo(parsed *sdp.SessionDescription) bool {
	for _, md := range parsed.MediaDescriptions {
		if md.MediaName.Media == "video" {
			return true
		}
	}
	return false
}

func splitLines(description string) []string {
	raw := strings.Split(strings.ReplaceAll(description, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func collectAttr(line string, ssrc string, attrs map[string]string) {
	value := strings.TrimPrefix(line, "a=ssrc:"+ssrc+" ")
	for _, key := range ssrcAttrKey {
		if strings.HasPrefix(value, key+":") {
			attrs[key] = strings.TrimPrefix(value, key+":")
		}
	}
}

func ssrcAttrs(ssrc string, attrs map[string]string) []string {
	var out []string
	for _, key := range ssrcAttrKey {
		if v, ok := attrs[key]; ok {
			out = append(out, fmt.Sprintf("a=ssrc:%s %s:%s", ssrc, key, v))
		}
	}
	return out
}

func newSSRC(description string) string {
	for {
		ssrc := strconv.FormatUint(uint64(rand.Uint32()), 10)
		if ssrc != "0" && !strings.Contains(description, "a=ssrc:"+ssrc+" ") {
			return ssrc
		}
	}
}
