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

package videoroom

import (
	"encoding/json"
	"strconv"

	"github.com/thoas/go-funk"

	"github.com/livekit/janus-client/pkg/janus"
)

// Response kinds, as reported by Kind.
const (
	KindJoined       = "joined"
	KindAttached     = "attached"
	KindCreated      = "created"
	KindEdited       = "edited"
	KindDestroyed    = "destroyed"
	KindSuccess      = "success"
	KindParticipants = "participants"
	KindConfigured   = "configured"
	KindUnpublished  = "unpublished"
	KindLeft         = "left"
	KindStarted      = "started"
	KindPaused       = "paused"
	KindSwitched     = "switched"
	KindEvent        = "event"
)

type Stream struct {
	Type   string `json:"type"`
	Mindex int    `json:"mindex"`
	Mid    string `json:"mid"`
	Codec  string `json:"codec,omitempty"`
}

type PublisherInfo struct {
	ID         uint64   `json:"id"`
	Display    string   `json:"display,omitempty"`
	AudioCodec string   `json:"audio_codec,omitempty"`
	VideoCodec string   `json:"video_codec,omitempty"`
	Talking    bool     `json:"talking,omitempty"`
	Streams    []Stream `json:"streams,omitempty"`
}

type Participant struct {
	ID        uint64 `json:"id"`
	Display   string `json:"display,omitempty"`
	Publisher bool   `json:"publisher"`
	Talking   bool   `json:"talking,omitempty"`
}

type RoomInfo struct {
	Room            uint64 `json:"room"`
	Description     string `json:"description"`
	PinRequired     bool   `json:"pin_required"`
	MaxPublishers   int    `json:"max_publishers"`
	Bitrate         uint64 `json:"bitrate"`
	NumParticipants int    `json:"num_participants"`
	AudioCodec      string `json:"audiocodec,omitempty"`
	VideoCodec      string `json:"videocodec,omitempty"`
	Record          bool   `json:"record,omitempty"`
}

// Response is the plugin data of any video room reply or event.
type Response struct {
	Videoroom    string          `json:"videoroom"`
	Room         uint64          `json:"room,omitempty"`
	ID           uint64          `json:"id,omitempty"`
	PrivateID    uint64          `json:"private_id,omitempty"`
	Description  string          `json:"description,omitempty"`
	Display      string          `json:"display,omitempty"`
	Exists       *bool           `json:"exists,omitempty"`
	Permanent    bool            `json:"permanent,omitempty"`
	Publishers   []PublisherInfo `json:"publishers,omitempty"`
	Attendees    []Participant   `json:"attendees,omitempty"`
	Participants []Participant   `json:"participants,omitempty"`
	List         []RoomInfo      `json:"list,omitempty"`
	Configured   string          `json:"configured,omitempty"`
	Started      string          `json:"started,omitempty"`
	Paused       string          `json:"paused,omitempty"`
	Switched     string          `json:"switched,omitempty"`
	Unpublished  json.RawMessage `json:"unpublished,omitempty"`
	Leaving      json.RawMessage `json:"leaving,omitempty"`
	Kicked       uint64          `json:"kicked,omitempty"`
	Substream    *int            `json:"substream,omitempty"`
	Temporal     *int            `json:"temporal,omitempty"`
	ErrorCode    int             `json:"error_code,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// ParseResponse decodes video room plugin data. A plugin level error is
// returned as *janus.Error.
func ParseResponse(data json.RawMessage) (*Response, error) {
	resp := &Response{}
	if err := json.Unmarshal(data, resp); err != nil {
		return nil, &janus.ParseError{Payload: string(data), Err: err}
	}
	if err := resp.Err(); err != nil {
		return resp, err
	}
	return resp, nil
}

// ParseMessage decodes the plugin data carried by a gateway message.
func ParseMessage(msg *janus.Message) (*Response, error) {
	if msg == nil || msg.PluginData == nil {
		return nil, &janus.ParseError{Err: errNoPluginData}
	}
	return ParseResponse(msg.PluginData.Data)
}

func (r *Response) Err() error {
	if r.ErrorCode == 0 && r.Videoroom != "error" {
		return nil
	}
	code := r.ErrorCode
	if code == 0 {
		code = janus.JANUS_VIDEOROOM_ERROR_UNKNOWN_ERROR
	}
	return &janus.Error{Code: code, Reason: r.Error}
}

// Kind names what the response reports. Events are narrowed by their
// payload, so a configure result reports KindConfigured.
func (r *Response) Kind() string {
	if r.Videoroom != KindEvent {
		return r.Videoroom
	}
	switch {
	case r.Configured != "":
		return KindConfigured
	case r.Started != "":
		return KindStarted
	case r.Paused != "":
		return KindPaused
	case r.Switched != "":
		return KindSwitched
	case isOK(r.Unpublished):
		return KindUnpublished
	case isOK(r.Leaving):
		return KindLeft
	default:
		return KindEvent
	}
}

// UnpublishedID returns the feed that stopped publishing, when another
// participant unpublished.
func (r *Response) UnpublishedID() (uint64, bool) {
	return feedID(r.Unpublished)
}

// LeavingID returns the participant that left the room.
func (r *Response) LeavingID() (uint64, bool) {
	return feedID(r.Leaving)
}

// ActivePublishers filters participants down to those publishing.
func (r *Response) ActivePublishers() []Participant {
	return funk.Filter(r.Participants, func(p Participant) bool {
		return p.Publisher
	}).([]Participant)
}

// PublisherIDs returns the feed ids announced in the response.
func (r *Response) PublisherIDs() []uint64 {
	return funk.Map(r.Publishers, func(p PublisherInfo) uint64 {
		return p.ID
	}).([]uint64)
}

func isOK(raw json.RawMessage) bool {
	return string(raw) == `"ok"`
}

func feedID(raw json.RawMessage) (uint64, bool) {
	if len(raw) == 0 || isOK(raw) {
		return 0, false
	}
	var id uint64
	if err := json.Unmarshal(raw, &id); err == nil {
		return id, true
	}
	// string ids are allowed by the plugin
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	id, err := strconv.ParseUint(s, 10, 64)
	return id, err == nil
}
