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
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"

	"github.com/jxskiss/base62"
)

const (
	transactionIDLength = 12

	maxLoggedPayload = 256
)

var ErrMissingKind = errors.New("missing janus field")

// Decode parses a single inbound frame.
func Decode(data []byte) (*Message, error) {
	msg := &Message{}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, &ParseError{Payload: truncate(data), Err: err}
	}
	if msg.Janus == "" {
		return nil, &ParseError{Payload: truncate(data), Err: ErrMissingKind}
	}
	msg.Raw = append(json.RawMessage(nil), data...)
	return msg, nil
}

func Encode(req *Request) ([]byte, error) {
	return json.Marshal(req)
}

// DecodePluginData unmarshals the plugin payload of an event into v.
func DecodePluginData(msg *Message, v any) error {
	if msg == nil || msg.PluginData == nil || len(msg.PluginData.Data) == 0 {
		return &ParseError{Err: errors.New("no plugin data")}
	}
	if err := json.Unmarshal(msg.PluginData.Data, v); err != nil {
		return &ParseError{Payload: truncate(msg.PluginData.Data), Err: err}
	}
	return nil
}

// NewTransactionID returns a random 12 character base62 string.
func NewTransactionID() string {
	buf := make([]byte, 16)
	_, err := io.ReadFull(rand.Reader, buf)
	// cannot error
	if err != nil {
		panic("could not read random")
	}
	id := base62.EncodeToString(buf)
	for len(id) < transactionIDLength {
		id += "0"
	}
	return id[:transactionIDLength]
}

func truncate(data []byte) string {
	if len(data) > maxLoggedPayload {
		return string(data[:maxLoggedPayload]) + "..."
	}
	return string(data)
}
