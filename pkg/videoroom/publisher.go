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

	"go.uber.org/atomic"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/janus-client/pkg/handle"
	"github.com/livekit/janus-client/pkg/janus"
)

type PublisherParams struct {
	Room    uint64
	ID      uint64
	Display string
	Token   string
	Pin     string

	Media     handle.MediaConfig
	Trickle   *bool
	Simulcast bool
	// SimulcastLayers is used when the engine cannot add encodings itself.
	SimulcastLayers int
	Bitrate         uint64

	// OnPublishers is called with feeds announced by the room, including
	// those present when joining.
	OnPublishers func(ctx context.Context, publishers []PublisherInfo)
	// OnPublisherGone is called when a feed unpublished or left.
	OnPublisherGone func(ctx context.Context, id uint64)
	Logger          logger.Logger
}

// Publisher joins a room as a publisher on an attached handle.
type Publisher struct {
	participant
	params PublisherParams

	id        atomic.Uint64
	privateID atomic.Uint64
}

func NewPublisher(h *handle.Handle, params PublisherParams) *Publisher {
	p := &Publisher{params: params}
	p.participant.init(h, params.Logger)
	p.onEvent = p.onRoomEvent
	return p
}

// ID is the participant id assigned by the room, zero before joining.
func (p *Publisher) ID() uint64 {
	return p.id.Load()
}

// PrivateID is what subscribers pass to associate with this publisher.
func (p *Publisher) PrivateID() uint64 {
	return p.privateID.Load()
}

func (p *Publisher) Join(ctx context.Context, cb func(ctx context.Context, resp *Response, err error)) {
	req := NewJoinPublisherRequest(p.params.Room, p.params.Display)
	req.ID = p.params.ID
	req.Token = p.params.Token
	req.Pin = p.params.Pin

	p.request(ctx, req, nil, KindJoined, func(ctx context.Context, resp *Response, _ *janus.JSEP, err error) {
		if err == nil {
			p.id.Store(resp.ID)
			p.privateID.Store(resp.PrivateID)
			p.logger.Infow("joined room", "room", resp.Room, "id", resp.ID, "publishers", len(resp.Publishers))
			p.announce(ctx, resp)
		}
		if cb != nil {
			cb(ctx, resp, err)
		}
	})
}

// Publish negotiates the configured media with the room.
func (p *Publisher) Publish(ctx context.Context, cb handle.Callback) {
	media := p.params.Media
	p.h.CreateOffer(ctx, handle.OfferParams{Media: media, Trickle: p.params.Trickle, Simulcast: p.params.Simulcast, SimulcastLayers: p.params.SimulcastLayers}, func(ctx context.Context, offer *janus.JSEP, err error) {
		if err != nil {
			resolve(ctx, cb, err)
			return
		}

		req := NewPublishRequest(media.SendAudio(), media.SendVideo(), media.Data)
		req.Bitrate = p.params.Bitrate
		req.Display = p.params.Display
		p.request(ctx, req, offer, KindConfigured, p.onRemoteAnswer(cb))
	})
}

// Configure updates a running publication. With media changes set in
// renegotiate, a new offer is sent along.
func (p *Publisher) Configure(ctx context.Context, req *ConfigureRequest, renegotiate *handle.MediaConfig, cb handle.Callback) {
	if renegotiate == nil {
		p.request(ctx, req, nil, KindConfigured, func(ctx context.Context, _ *Response, _ *janus.JSEP, err error) {
			resolve(ctx, cb, err)
		})
		return
	}

	p.h.CreateOffer(ctx, handle.OfferParams{Media: *renegotiate, Trickle: p.params.Trickle, Simulcast: p.params.Simulcast, SimulcastLayers: p.params.SimulcastLayers}, func(ctx context.Context, offer *janus.JSEP, err error) {
		if err != nil {
			resolve(ctx, cb, err)
			return
		}
		p.request(ctx, req, offer, KindConfigured, p.onRemoteAnswer(cb))
	})
}

func (p *Publisher) Unpublish(ctx context.Context, cb handle.Callback) {
	p.request(ctx, NewUnpublishRequest(), nil, KindUnpublished, func(ctx context.Context, _ *Response, _ *janus.JSEP, err error) {
		resolve(ctx, cb, err)
	})
}

func (p *Publisher) Leave(ctx context.Context, cb handle.Callback) {
	p.request(ctx, NewLeaveRequest(), nil, KindLeft, func(ctx context.Context, _ *Response, _ *janus.JSEP, err error) {
		if err == nil {
			p.id.Store(0)
			p.privateID.Store(0)
		}
		resolve(ctx, cb, err)
	})
}

func (p *Publisher) onRemoteAnswer(cb handle.Callback) responseCallback {
	return func(ctx context.Context, _ *Response, answer *janus.JSEP, err error) {
		if err != nil {
			resolve(ctx, cb, err)
			return
		}
		if !answer.IsAnswer() {
			resolve(ctx, cb, ErrNoAnswer)
			return
		}
		p.h.HandleRemoteJsep(ctx, answer, cb)
	}
}

func (p *Publisher) onRoomEvent(ctx context.Context, resp *Response, _ *janus.JSEP) {
	p.announce(ctx, resp)

	gone := func(id uint64) {
		p.logger.Debugw("publisher gone", "id", id)
		if p.params.OnPublisherGone != nil {
			p.params.OnPublisherGone(ctx, id)
		}
	}
	if id, ok := resp.UnpublishedID(); ok {
		gone(id)
	}
	if id, ok := resp.LeavingID(); ok {
		gone(id)
	}
}

func (p *Publisher) announce(ctx context.Context, resp *Response) {
	if len(resp.Publishers) == 0 || p.params.OnPublishers == nil {
		return
	}
	p.params.OnPublishers(ctx, resp.Publishers)
}
