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

// Plugin is the package name of the video room plugin.
const Plugin = "janus.plugin.videoroom"

const (
	PtypePublisher  = "publisher"
	PtypeSubscriber = "subscriber"
)

type CreateRequest struct {
	Request     string `json:"request"`
	Room        uint64 `json:"room,omitempty"`
	Permanent   bool   `json:"permanent,omitempty"`
	Description string `json:"description,omitempty"`
	Secret      string `json:"secret,omitempty"`
	Pin         string `json:"pin,omitempty"`
	IsPrivate   bool   `json:"is_private,omitempty"`
	Publishers  int    `json:"publishers,omitempty"`
	Bitrate     uint64 `json:"bitrate,omitempty"`
	AudioCodec  string `json:"audiocodec,omitempty"`
	VideoCodec  string `json:"videocodec,omitempty"`
	Record      bool   `json:"record,omitempty"`
}

func NewCreateRequest(room uint64, description string, publishers int) *CreateRequest {
	return &CreateRequest{Request: "create", Room: room, Description: description, Publishers: publishers}
}

type EditRequest struct {
	Request        string `json:"request"`
	Room           uint64 `json:"room"`
	Secret         string `json:"secret,omitempty"`
	NewDescription string `json:"new_description,omitempty"`
	NewSecret      string `json:"new_secret,omitempty"`
	NewPin         string `json:"new_pin,omitempty"`
	NewIsPrivate   *bool  `json:"new_is_private,omitempty"`
	NewPublishers  int    `json:"new_publishers,omitempty"`
	NewBitrate     uint64 `json:"new_bitrate,omitempty"`
	Permanent      bool   `json:"permanent,omitempty"`
}

func NewEditRequest(room uint64) *EditRequest {
	return &EditRequest{Request: "edit", Room: room}
}

type DestroyRequest struct {
	Request   string `json:"request"`
	Room      uint64 `json:"room"`
	Secret    string `json:"secret,omitempty"`
	Permanent bool   `json:"permanent,omitempty"`
}

func NewDestroyRequest(room uint64, secret string) *DestroyRequest {
	return &DestroyRequest{Request: "destroy", Room: room, Secret: secret}
}

// RoomRequest covers requests that only name a room: exists and
// listparticipants.
type RoomRequest struct {
	Request string `json:"request"`
	Room    uint64 `json:"room"`
}

func NewExistsRequest(room uint64) *RoomRequest {
	return &RoomRequest{Request: "exists", Room: room}
}

func NewListParticipantsRequest(room uint64) *RoomRequest {
	return &RoomRequest{Request: "listparticipants", Room: room}
}

type ListRequest struct {
	Request string `json:"request"`
}

func NewListRequest() *ListRequest {
	return &ListRequest{Request: "list"}
}

type AllowedRequest struct {
	Request string   `json:"request"`
	Room    uint64   `json:"room"`
	Secret  string   `json:"secret,omitempty"`
	Action  string   `json:"action"`
	Allowed []string `json:"allowed,omitempty"`
}

// NewAllowedRequest manages the token list of a room. action is one of
// enable, disable, add or remove.
func NewAllowedRequest(room uint64, action string, tokens ...string) *AllowedRequest {
	return &AllowedRequest{Request: "allowed", Room: room, Action: action, Allowed: tokens}
}

type KickRequest struct {
	Request string `json:"request"`
	Room    uint64 `json:"room"`
	Secret  string `json:"secret,omitempty"`
	ID      uint64 `json:"id"`
}

func NewKickRequest(room uint64, id uint64) *KickRequest {
	return &KickRequest{Request: "kick", Room: room, ID: id}
}

type JoinPublisherRequest struct {
	Request string `json:"request"`
	Ptype   string `json:"ptype"`
	Room    uint64 `json:"room"`
	ID      uint64 `json:"id,omitempty"`
	Display string `json:"display,omitempty"`
	Token   string `json:"token,omitempty"`
	Pin     string `json:"pin,omitempty"`
}

func NewJoinPublisherRequest(room uint64, display string) *JoinPublisherRequest {
	return &JoinPublisherRequest{Request: "join", Ptype: PtypePublisher, Room: room, Display: display}
}

type JoinSubscriberRequest struct {
	Request   string `json:"request"`
	Ptype     string `json:"ptype"`
	Room      uint64 `json:"room"`
	Feed      uint64 `json:"feed"`
	PrivateID uint64 `json:"private_id,omitempty"`
	Pin       string `json:"pin,omitempty"`
	Audio     *bool  `json:"offer_audio,omitempty"`
	Video     *bool  `json:"offer_video,omitempty"`
	Data      *bool  `json:"offer_data,omitempty"`
	Substream *int   `json:"substream,omitempty"`
	Temporal  *int   `json:"temporal,omitempty"`
}

func NewJoinSubscriberRequest(room uint64, feed uint64, privateID uint64) *JoinSubscriberRequest {
	return &JoinSubscriberRequest{Request: "join", Ptype: PtypeSubscriber, Room: room, Feed: feed, PrivateID: privateID}
}

type PublishRequest struct {
	Request    string `json:"request"`
	Audio      *bool  `json:"audio,omitempty"`
	Video      *bool  `json:"video,omitempty"`
	Data       *bool  `json:"data,omitempty"`
	AudioCodec string `json:"audiocodec,omitempty"`
	VideoCodec string `json:"videocodec,omitempty"`
	Bitrate    uint64 `json:"bitrate,omitempty"`
	Record     bool   `json:"record,omitempty"`
	Filename   string `json:"filename,omitempty"`
	Display    string `json:"display,omitempty"`
}

func NewPublishRequest(audio bool, video bool, data bool) *PublishRequest {
	return &PublishRequest{Request: "publish", Audio: &audio, Video: &video, Data: &data}
}

// ConfigureRequest updates a publisher or a subscriber. Fields left nil are
// unchanged.
type ConfigureRequest struct {
	Request   string `json:"request"`
	Audio     *bool  `json:"audio,omitempty"`
	Video     *bool  `json:"video,omitempty"`
	Data      *bool  `json:"data,omitempty"`
	Bitrate   uint64 `json:"bitrate,omitempty"`
	Keyframe  bool   `json:"keyframe,omitempty"`
	Record    *bool  `json:"record,omitempty"`
	Filename  string `json:"filename,omitempty"`
	Display   string `json:"display,omitempty"`
	Substream *int   `json:"substream,omitempty"`
	Temporal  *int   `json:"temporal,omitempty"`
}

func NewConfigureRequest() *ConfigureRequest {
	return &ConfigureRequest{Request: "configure"}
}

type SwitchRequest struct {
	Request string `json:"request"`
	Feed    uint64 `json:"feed"`
	Audio   *bool  `json:"audio,omitempty"`
	Video   *bool  `json:"video,omitempty"`
	Data    *bool  `json:"data,omitempty"`
}

func NewSwitchRequest(feed uint64) *SwitchRequest {
	return &SwitchRequest{Request: "switch", Feed: feed}
}

// SimpleRequest is a request without parameters: unpublish, start, pause
// and leave.
type SimpleRequest struct {
	Request string `json:"request"`
}

func NewUnpublishRequest() *SimpleRequest {
	return &SimpleRequest{Request: "unpublish"}
}

func NewStartRequest() *SimpleRequest {
	return &SimpleRequest{Request: "start"}
}

func NewPauseRequest() *SimpleRequest {
	return &SimpleRequest{Request: "pause"}
}

func NewLeaveRequest() *SimpleRequest {
	return &SimpleRequest{Request: "leave"}
}
