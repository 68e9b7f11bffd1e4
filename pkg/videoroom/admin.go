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
	"context"

	"github.com/livekit/janus-client/pkg/handle"
	"github.com/livekit/janus-client/pkg/janus"
)

// Admin sends room management requests, which the plugin answers
// synchronously.
type Admin struct {
	h *handle.Handle
}

func NewAdmin(h *handle.Handle) *Admin {
	return &Admin{h: h}
}

func (a *Admin) Request(ctx context.Context, body any, cb func(ctx context.Context, resp *Response, err error)) {
	a.h.Send(ctx, body, nil, func(ctx context.Context, msg *janus.Message, err error) {
		if err != nil {
			cb(ctx, nil, err)
			return
		}
		resp, err := ParseMessage(msg)
		cb(ctx, resp, err)
	})
}

func (a *Admin) Create(ctx context.Context, req *CreateRequest, cb func(ctx context.Context, room uint64, err error)) {
	a.Request(ctx, req, func(ctx context.Context, resp *Response, err error) {
		if err != nil {
			cb(ctx, 0, err)
			return
		}
		cb(ctx, resp.Room, nil)
	})
}

func (a *Admin) Destroy(ctx context.Context, req *DestroyRequest, cb handle.Callback) {
	a.Request(ctx, req, func(ctx context.Context, _ *Response, err error) {
		resolve(ctx, cb, err)
	})
}

func (a *Admin) Exists(ctx context.Context, room uint64, cb func(ctx context.Context, exists bool, err error)) {
	a.Request(ctx, NewExistsRequest(room), func(ctx context.Context, resp *Response, err error) {
		if err != nil {
			cb(ctx, false, err)
			return
		}
		cb(ctx, resp.Exists != nil && *resp.Exists, nil)
	})
}

func (a *Admin) List(ctx context.Context, cb func(ctx context.Context, rooms []RoomInfo, err error)) {
	a.Request(ctx, NewListRequest(), func(ctx context.Context, resp *Response, err error) {
		if err != nil {
			cb(ctx, nil, err)
			return
		}
		cb(ctx, resp.List, nil)
	})
}

func (a *Admin) ListParticipants(ctx context.Context, room uint64, cb func(ctx context.Context, participants []Participant, err error)) {
	a.Request(ctx, NewListParticipantsRequest(room), func(ctx context.Context, resp *Response, err error) {
		if err != nil {
			cb(ctx, nil, err)
			return
		}
		cb(ctx, resp.Participants, nil)
	})
}
