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
	"errors"
	"fmt"
)

var ErrAlreadyPresent = errors.New("already one present")

// MediaConfig is what the caller asks for in one negotiation round.
// Send and receive default to the medium's enable flag when unset. A track
// already being sent is only dropped by RemoveAudio/RemoveVideo or by
// setting AudioSend/VideoSend to false.
type MediaConfig struct {
	Audio     bool
	Video     bool
	AudioSend *bool
	AudioRecv *bool
	VideoSend *bool
	VideoRecv *bool
	Data      bool

	// explicit track changes for renegotiation
	AddAudio     bool
	AddVideo     bool
	RemoveAudio  bool
	RemoveVideo  bool
	ReplaceAudio bool
	ReplaceVideo bool

	// fail the round when the medium cannot be sent
	RequireAudio bool
	RequireVideo bool
}

func (m MediaConfig) SendAudio() bool {
	return optional(m.AudioSend, m.Audio)
}

func (m MediaConfig) RecvAudio() bool {
	return optional(m.AudioRecv, m.Audio)
}

func (m MediaConfig) SendVideo() bool {
	return optional(m.VideoSend, m.Video)
}

func (m MediaConfig) RecvVideo() bool {
	return optional(m.VideoRecv, m.Video)
}

func (m MediaConfig) Send(kind MediaKind) bool {
	if kind == MediaAudio {
		return m.SendAudio()
	}
	return m.SendVideo()
}

func (m MediaConfig) Recv(kind MediaKind) bool {
	if kind == MediaAudio {
		return m.RecvAudio()
	}
	return m.RecvVideo()
}

func (m MediaConfig) requests(kind MediaKind) (add, remove, replace, require bool) {
	if kind == MediaAudio {
		return m.AddAudio, m.RemoveAudio, m.ReplaceAudio, m.RequireAudio
	}
	return m.AddVideo, m.RemoveVideo, m.ReplaceVideo, m.RequireVideo
}

// sendOff reports whether sending kind was explicitly disabled.
func (m MediaConfig) sendOff(kind MediaKind) bool {
	send := m.VideoSend
	if kind == MediaAudio {
		send = m.AudioSend
	}
	return send != nil && !*send
}

func optional(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// TrackDiff is the action decided for one medium.
type TrackDiff struct {
	Add     bool
	Remove  bool
	Replace bool
	Keep    bool
}

func (d TrackDiff) String() string {
	switch {
	case d.Add:
		return "add"
	case d.Remove:
		return "remove"
	case d.Replace:
		return "replace"
	default:
		return "keep"
	}
}

// MediaDiff is recomputed for every negotiation round and never stored.
type MediaDiff struct {
	Audio TrackDiff
	Video TrackDiff
}

func (d MediaDiff) For(kind MediaKind) TrackDiff {
	if kind == MediaAudio {
		return d.Audio
	}
	return d.Video
}

// KeepAll reports that the current tracks already satisfy the request.
func (d MediaDiff) KeepAll() bool {
	return d.Audio.Keep && d.Video.Keep
}

// LocalTracks is the set of media currently being sent.
type LocalTracks map[MediaKind]bool

// ComputeMediaDiff compares the request with the tracks already sent.
// Explicit remove wins over replace, which wins over add. Asking to add a
// medium that is already sent, without replace, is rejected.
func ComputeMediaDiff(media MediaConfig, current LocalTracks) (MediaDiff, error) {
	audio, err := diffTrack(MediaAudio, media, current[MediaAudio])
	if err != nil {
		return MediaDiff{}, err
	}
	video, err := diffTrack(MediaVideo, media, current[MediaVideo])
	if err != nil {
		return MediaDiff{}, err
	}
	return MediaDiff{Audio: audio, Video: video}, nil
}

func diffTrack(kind MediaKind, media MediaConfig, has bool) (TrackDiff, error) {
	add, remove, replace, _ := media.requests(kind)
	switch {
	case remove:
		if has {
			return TrackDiff{Remove: true}, nil
		}
		return TrackDiff{Keep: true}, nil
	case replace:
		if has {
			return TrackDiff{Replace: true}, nil
		}
		return TrackDiff{Add: true}, nil
	case add:
		if has {
			return TrackDiff{}, fmt.Errorf("cannot add %s: %w", kind, ErrAlreadyPresent)
		}
		return TrackDiff{Add: true}, nil
	}

	switch {
	case media.Send(kind) && !has:
		return TrackDiff{Add: true}, nil
	case has && media.sendOff(kind):
		return TrackDiff{Remove: true}, nil
	default:
		// a medium left out of the request keeps its track
		return TrackDiff{Keep: true}, nil
	}
}
