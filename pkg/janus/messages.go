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

package janus

import (
	"encoding/json"
	"fmt"
)

type Kind string

const (
	// requests
	KindCreate    Kind = "create"
	KindClaim     Kind = "claim"
	KindAttach    Kind = "attach"
	KindDetach    Kind = "detach"
	KindMessage   Kind = "message"
	KindTrickle   Kind = "trickle"
	KindHangup    Kind = "hangup"
	KindDestroy   Kind = "destroy"
	KindKeepalive Kind = "keepalive"
	KindInfo      Kind = "info"

	// replies, consumed by the transaction layer
	KindAck        Kind = "ack"
	KindSuccess    Kind = "success"
	KindError      Kind = "error"
	KindServerInfo Kind = "server_info"

	// unsolicited, routed by sender
	KindEvent    Kind = "event"
	KindWebrtcUp Kind = "webrtcup"
	KindDetached Kind = "detached"
	KindMedia    Kind = "media"
	KindSlowLink Kind = "slowlink"
	KindTimeout  Kind = "timeout"
)

func (k Kind) IsReply() bool {
	switch k {
	case KindAck, KindSuccess, KindError, KindServerInfo:
		return true
	default:
		return false
	}
}

// Request is the envelope of every message sent to the gateway.
type Request struct {
	Janus       Kind        `json:"janus"`
	Transaction string      `json:"transaction"`
	Token       string      `json:"token,omitempty"`
	APISecret   string      `json:"apisecret,omitempty"`
	SessionID   uint64      `json:"session_id,omitempty"`
	HandleID    uint64      `json:"handle_id,omitempty"`
	Plugin      string      `json:"plugin,omitempty"`
	OpaqueID    string      `json:"opaque_id,omitempty"`
	Body        any         `json:"body,omitempty"`
	JSEP        *JSEP       `json:"jsep,omitempty"`
	Candidate   *Candidate  `json:"candidate,omitempty"`
	Candidates  []Candidate `json:"candidates,omitempty"`
}

func NewRequest(kind Kind) *Request {
	return &Request{Janus: kind}
}

// JSEP is the session description exchanged with the gateway.
type JSEP struct {
	Type    string `json:"type"`
	SDP     string `json:"sdp"`
	Trickle *bool  `json:"trickle,omitempty"`
}

func (j *JSEP) IsOffer() bool {
	return j != nil && j.Type == "offer"
}

func (j *JSEP) IsAnswer() bool {
	return j != nil && j.Type == "answer"
}

// Candidate is a trickled ICE candidate. A candidate with Completed set, or
// without a candidate line, marks the end of candidates.
type Candidate struct {
	Candidate     string  `json:"candidate,omitempty"`
	SdpMid        string  `json:"sdpMid,omitempty"`
	SdpMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
	Completed     bool    `json:"completed,omitempty"`
}

func EndOfCandidates() Candidate {
	return Candidate{Completed: true}
}

func (c Candidate) IsEndOfCandidates() bool {
	return c.Completed || c.Candidate == ""
}

func (c Candidate) String() string {
	if c.IsEndOfCandidates() {
		return "end-of-candidates"
	}
	return c.Candidate
}

type ReplyData struct {
	ID uint64 `json:"id"`
}

type PluginData struct {
	Plugin string          `json:"plugin"`
	Data   json.RawMessage `json:"data"`
}

type ErrorData struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// Message is a decoded inbound frame. Only the fields relevant to Janus are
// filled, Raw keeps the original payload.
type Message struct {
	Janus       Kind        `json:"janus"`
	Transaction string      `json:"transaction,omitempty"`
	SessionID   uint64      `json:"session_id,omitempty"`
	Sender      uint64      `json:"sender,omitempty"`
	Data        *ReplyData  `json:"data,omitempty"`
	PluginData  *PluginData `json:"plugindata,omitempty"`
	JSEP        *JSEP       `json:"jsep,omitempty"`
	Candidate   *Candidate  `json:"candidate,omitempty"`
	Error       *ErrorData  `json:"error,omitempty"`
	Reason      string      `json:"reason,omitempty"`

	// media
	Type      string `json:"type,omitempty"`
	Receiving bool   `json:"receiving,omitempty"`
	Mid       string `json:"mid,omitempty"`

	// slowlink
	Uplink bool `json:"uplink,omitempty"`
	Lost   int  `json:"lost,omitempty"`

	Raw json.RawMessage `json:"-"`
}

func (m *Message) IsReply() bool {
	return m.Janus.IsReply()
}

// Err returns the protocol error carried by an error reply, nil otherwise.
func (m *Message) Err() error {
	if m.Janus != KindError {
		return nil
	}
	if m.Error == nil {
		return &Error{Code: JANUS_ERROR_UNKNOWN, Reason: "unknown error"}
	}
	return &Error{Code: m.Error.Code, Reason: m.Error.Reason}
}

func (m *Message) String() string {
	return fmt.Sprintf("janus:%s transaction:%s sender:%d", m.Janus, m.Transaction, m.Sender)
}
