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
	"errors"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/janus-client/pkg/dispatch"
	"github.com/livekit/janus-client/pkg/handle"
	"github.com/livekit/janus-client/pkg/janus"
)

var (
	ErrNoOffer  = errors.New("video room did not send an offer")
	ErrNoAnswer = errors.New("video room did not send an answer")

	errNoPluginData = errors.New("no plugin data")
)

type responseCallback func(ctx context.Context, resp *Response, jsep *janus.JSEP, err error)

type waiter struct {
	kind string
	cb   responseCallback
}

// participant matches asynchronous video room events to the request that
// caused them. Requests are acknowledged first and answered later by an
// event on the handle, so each request leaves a waiter for the kind of
// event that completes it. Waiters are owned by the handle loop.
type participant struct {
	h      *handle.Handle
	logger logger.Logger

	observerID dispatch.ID
	waiters    []*waiter
	onEvent    func(ctx context.Context, resp *Response, jsep *janus.JSEP)
}

func (p *participant) init(h *handle.Handle, l logger.Logger) {
	if l == nil {
		l = logger.GetLogger()
	}
	p.h = h
	p.logger = l.WithValues("plugin", Plugin, "handleID", h.ID())
	p.observerID = h.AddObserver(handle.ObserverFunc(p.handleEvent), nil)
}

// Close stops listening to the handle. The handle itself is left attached.
func (p *participant) Close() {
	p.h.RemoveObserver(p.observerID)
}

func (p *participant) Handle() *handle.Handle {
	return p.h
}

func (p *participant) request(ctx context.Context, body any, jsep *janus.JSEP, kind string, cb responseCallback) {
	op := func(ctx context.Context) {
		w := &waiter{kind: kind, cb: cb}
		p.waiters = append(p.waiters, w)

		p.h.Send(ctx, body, jsep, func(ctx context.Context, msg *janus.Message, err error) {
			if err != nil {
				if p.removeWaiter(w) {
					cb(ctx, nil, nil, err)
				}
				return
			}
			// synchronous requests answer in the reply itself
			if msg.Janus == janus.KindSuccess && msg.PluginData != nil {
				resp, err := ParseMessage(msg)
				p.dispatch(ctx, resp, msg.JSEP, err)
			}
		})
	}

	if p.h.Loop().IsCurrent(ctx) {
		op(ctx)
		return
	}
	if !p.h.Loop().Post(op) {
		cb(ctx, nil, nil, handle.ErrHandleClosed)
	}
}

func (p *participant) handleEvent(ctx context.Context, _ *handle.Handle, ev handle.Event) {
	switch ev := ev.(type) {
	case handle.PluginMessage:
		if ev.Plugin != "" && ev.Plugin != Plugin {
			return
		}
		resp, err := ParseResponse(ev.Data)
		if resp == nil {
			p.logger.Warnw("could not parse video room event", err)
			return
		}
		p.dispatch(ctx, resp, ev.JSEP, err)

	case handle.DetachedEvent:
		waiters := p.waiters
		p.waiters = nil
		for _, w := range waiters {
			w.cb(ctx, nil, nil, handle.ErrHandleClosed)
		}
	}
}

func (p *participant) dispatch(ctx context.Context, resp *Response, jsep *janus.JSEP, err error) {
	if err != nil {
		// plugin errors carry no hint of the request, fail the oldest
		if len(p.waiters) == 0 {
			p.logger.Warnw("unsolicited video room error", err)
			return
		}
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		w.cb(ctx, resp, jsep, err)
		return
	}

	kind := resp.Kind()
	for i, w := range p.waiters {
		if w.kind == kind {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			w.cb(ctx, resp, jsep, nil)
			return
		}
	}

	if p.onEvent != nil {
		p.onEvent(ctx, resp, jsep)
	} else {
		p.logger.Debugw("unhandled video room event", "kind", kind)
	}
}

func (p *participant) removeWaiter(w *waiter) bool {
	for i, other := range p.waiters {
		if other == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return true
		}
	}
	return false
}

func resolve(ctx context.Context, cb handle.Callback, err error) {
	if cb != nil {
		cb(ctx, err)
	}
}
