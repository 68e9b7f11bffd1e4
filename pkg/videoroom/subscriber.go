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

	"github.com/livekit/protocol/logger"

	"github.com/livekit/janus-client/pkg/handle"
	"github.com/livekit/janus-client/pkg/janus"
)

type SubscriberParams struct {
	Room      uint64
	Feed      uint64
	PrivateID uint64
	Pin       string
	// Media defaults to receiving audio and video without sending.
	Media   *handle.MediaConfig
	Trickle *bool
	Logger  logger.Logger
}

// Subscriber receives one feed of a room on an attached handle.
type Subscriber struct {
	participant
	params SubscriberParams
}

func NewSubscriber(h *handle.Handle, params SubscriberParams) *Subscriber {
	if params.Media == nil {
		noSend := false
		params.Media = &handle.MediaConfig{
			Audio:     true,
			Video:     true,
			AudioSend: &noSend,
			VideoSend: &noSend,
			Data:      true,
		}
	}
	s := &Subscriber{params: params}
	s.participant.init(h, params.Logger)
	return s
}

// Subscribe joins as a subscriber, answers the room's offer and starts the
// media flowing.
func (s *Subscriber) Subscribe(ctx context.Context, cb handle.Callback) {
	req := NewJoinSubscriberRequest(s.params.Room, s.params.Feed, s.params.PrivateID)
	req.Pin = s.params.Pin

	s.request(ctx, req, nil, KindAttached, func(ctx context.Context, resp *Response, offer *janus.JSEP, err error) {
		if err != nil {
			resolve(ctx, cb, err)
			return
		}
		s.logger.Infow("subscribed", "room", resp.Room, "feed", resp.ID)
		s.answer(ctx, offer, cb)
	})
}

// Start resumes a paused subscription.
func (s *Subscriber) Start(ctx context.Context, cb handle.Callback) {
	s.request(ctx, NewStartRequest(), nil, KindStarted, s.done(cb))
}

func (s *Subscriber) Pause(ctx context.Context, cb handle.Callback) {
	s.request(ctx, NewPauseRequest(), nil, KindPaused, s.done(cb))
}

// Switch moves the subscription to another feed without renegotiating.
func (s *Subscriber) Switch(ctx context.Context, feed uint64, cb handle.Callback) {
	s.request(ctx, NewSwitchRequest(feed), nil, KindSwitched, func(ctx context.Context, _ *Response, _ *janus.JSEP, err error) {
		if err == nil {
			s.params.Feed = feed
		}
		resolve(ctx, cb, err)
	})
}

// Configure selects a simulcast layer or toggles media.
func (s *Subscriber) Configure(ctx context.Context, req *ConfigureRequest, cb handle.Callback) {
	s.request(ctx, req, nil, KindConfigured, s.done(cb))
}

func (s *Subscriber) Leave(ctx context.Context, cb handle.Callback) {
	s.request(ctx, NewLeaveRequest(), nil, KindLeft, s.done(cb))
}

func (s *Subscriber) answer(ctx context.Context, offer *janus.JSEP, cb handle.Callback) {
	if !offer.IsOffer() {
		resolve(ctx, cb, ErrNoOffer)
		return
	}
	s.h.CreateAnswer(ctx, handle.AnswerParams{JSEP: offer, Media: *s.params.Media, Trickle: s.params.Trickle}, func(ctx context.Context, answer *janus.JSEP, err error) {
		if err != nil {
			resolve(ctx, cb, err)
			return
		}
		s.request(ctx, NewStartRequest(), answer, KindStarted, s.done(cb))
	})
}

func (s *Subscriber) done(cb handle.Callback) responseCallback {
	return func(ctx context.Context, _ *Response, _ *janus.JSEP, err error) {
		resolve(ctx, cb, err)
	}
}
