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
	"context"
	"errors"
	"time"

	"go.uber.org/atomic"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/janus-client/pkg/dispatch"
	"github.com/livekit/janus-client/pkg/janus"
	"github.com/livekit/janus-client/pkg/scheduler"
)

const (
	DefaultDataChannelLabel = "JanusDataChannel"

	defaultDtmfDuration = 500 * time.Millisecond
	defaultDtmfGap      = 50 * time.Millisecond
)

var ErrHungUp = errors.New("handle hung up")

// Signaller sends requests on behalf of a handle. The session stamps its
// id on every request.
type Signaller interface {
	SendHandleRequest(req *janus.Request, cb func(msg *janus.Message)) error
	// ReleaseHandle is called once the handle reached its final state.
	ReleaseHandle(h *Handle)
}

type HandleParams struct {
	Plugin           string
	OpaqueID         string
	Signaller        Signaller
	Engine           MediaEngine
	Scheduler        *scheduler.Scheduler
	SimulcastRids    []string
	ICEGatherTimeout time.Duration
	Logger           logger.Logger
}

type pendingDelivery struct {
	cb   JSEPCallback
	task scheduler.TaskID
}

// Handle is one plugin context within a session. Its state is owned by its
// loop: public methods may be called from any goroutine and are marshalled
// onto the loop, callbacks and observer events run there.
type Handle struct {
	params HandleParams
	loop   *dispatch.Loop
	logger logger.Logger

	id    atomic.Uint64
	state atomic.Int32

	observers dispatch.ObserverList[Observer]

	// owned by loop
	negotiation NegotiationState
	pc          PeerConnection
	localTracks LocalTracks
	receivers   map[MediaKind]bool
	pending     *pendingDelivery
	released    bool
}

func NewHandle(params HandleParams) *Handle {
	if params.Logger == nil {
		params.Logger = logger.GetLogger()
	}
	l := params.Logger.WithValues("plugin", params.Plugin)
	h := &Handle{
		params:      params,
		loop:        dispatch.NewLoop("handle-"+params.Plugin, l),
		logger:      l,
		negotiation: newNegotiationState(),
		localTracks: make(LocalTracks),
		receivers:   make(map[MediaKind]bool),
	}
	h.state.Store(int32(StateDetached))
	return h
}

// Start runs the handle loop and moves it to Attaching. The session reports
// the outcome through an AttachResult.
func (h *Handle) Start() {
	h.setState(StateAttaching)
	h.loop.Start()
}

func (h *Handle) ID() uint64 {
	return h.id.Load()
}

func (h *Handle) Plugin() string {
	return h.params.Plugin
}

func (h *Handle) OpaqueID() string {
	return h.params.OpaqueID
}

func (h *Handle) State() State {
	return State(h.state.Load())
}

func (h *Handle) Loop() *dispatch.Loop {
	return h.loop
}

// Done is closed once the handle has detached and its loop exited.
func (h *Handle) Done() <-chan struct{} {
	return h.loop.Done()
}

// AddObserver registers o for handle events. Events are delivered on loop,
// or on the handle loop when loop is nil.
func (h *Handle) AddObserver(o Observer, loop *dispatch.Loop) dispatch.ID {
	if loop == nil {
		loop = h.loop
	}
	return h.observers.Add(o, loop)
}

func (h *Handle) RemoveObserver(id dispatch.ID) {
	h.observers.Remove(id)
}

func (h *Handle) HandleServerEvent(ctx context.Context, ev ServerEvent) {
	if !h.enqueue(ctx, func(ctx context.Context) {
		h.handleServerEvent(ctx, ev)
	}) {
		h.params.Logger.Debugw("dropping event for closed handle", "handleID", h.ID(), "event", ev)
	}
}

func (h *Handle) CreateOffer(ctx context.Context, params OfferParams, cb JSEPCallback) {
	if !h.enqueue(ctx, func(ctx context.Context) {
		h.prepareNegotiation(ctx, true, negotiationRequest{
			media:      params.Media,
			trickle:    optional(params.Trickle, true),
			simulcast:  params.Simulcast,
			layers:     params.SimulcastLayers,
			iceRestart: params.IceRestart,
		}, cb)
	}) {
		failJSEP(ctx, cb, ErrHandleClosed)
	}
}

func (h *Handle) CreateAnswer(ctx context.Context, params AnswerParams, cb JSEPCallback) {
	if !h.enqueue(ctx, func(ctx context.Context) {
		h.prepareNegotiation(ctx, false, negotiationRequest{
			jsep:    params.JSEP,
			media:   params.Media,
			trickle: optional(params.Trickle, true),
		}, cb)
	}) {
		failJSEP(ctx, cb, ErrHandleClosed)
	}
}

// HandleRemoteJsep applies the gateway's answer to an offer created by
// CreateOffer.
func (h *Handle) HandleRemoteJsep(ctx context.Context, jsep *janus.JSEP, cb Callback) {
	if !h.enqueue(ctx, func(ctx context.Context) {
		var err error
		switch {
		case jsep == nil:
			err = ErrAnswerWithoutOffer
		case h.pc == nil:
			err = ErrNoPeerConnection
		default:
			err = h.setRemoteDescription(*jsep)
		}
		if err != nil {
			h.logger.Warnw("could not handle remote jsep", err)
		}
		resolve(ctx, cb, err)
	}) {
		resolve(ctx, cb, ErrHandleClosed)
	}
}

// Send sends a plugin message, optionally with a jsep.
func (h *Handle) Send(ctx context.Context, body any, jsep *janus.JSEP, cb MessageCallback) {
	if !h.enqueue(ctx, func(ctx context.Context) {
		if !h.isAttached() {
			resolveMessage(ctx, cb, nil, ErrNotAttached)
			return
		}
		req := h.newRequest(janus.KindMessage)
		req.Body = body
		req.JSEP = jsep

		var onReply func(*janus.Message)
		if cb != nil {
			onReply = func(msg *janus.Message) {
				h.loop.Post(func(ctx context.Context) {
					cb(ctx, msg, msg.Err())
				})
			}
		}
		if err := h.params.Signaller.SendHandleRequest(req, onReply); err != nil {
			h.logger.Warnw("could not send message", err)
			resolveMessage(ctx, cb, nil, err)
		}
	}) {
		resolveMessage(ctx, cb, nil, ErrHandleClosed)
	}
}

// SendData sends on the data channel with label, creating the channel when
// needed. Data sent before the channel opens is queued.
func (h *Handle) SendData(ctx context.Context, label string, data []byte, cb Callback) {
	if !h.enqueue(ctx, func(ctx context.Context) {
		resolve(ctx, cb, h.sendData(label, data))
	}) {
		resolve(ctx, cb, ErrHandleClosed)
	}
}

func (h *Handle) SendDtmf(ctx context.Context, params DtmfParams, cb Callback) {
	if !h.enqueue(ctx, func(ctx context.Context) {
		if params.Tones == "" {
			resolve(ctx, cb, ErrEmptyTones)
			return
		}
		if h.pc == nil {
			resolve(ctx, cb, ErrNoPeerConnection)
			return
		}
		if params.Duration <= 0 {
			params.Duration = defaultDtmfDuration
		}
		if params.Gap <= 0 {
			params.Gap = defaultDtmfGap
		}
		err := h.pc.InsertDTMF(params.Tones, params.Duration, params.Gap)
		if err != nil {
			h.logger.Warnw("could not send DTMF", err, "tones", params.Tones)
		}
		resolve(ctx, cb, err)
	}) {
		resolve(ctx, cb, ErrHandleClosed)
	}
}

// Hangup tears down the peer connection. The handle stays attached.
func (h *Handle) Hangup(ctx context.Context, sendRequest bool) {
	h.enqueue(ctx, func(ctx context.Context) {
		if sendRequest && h.isAttached() {
			if err := h.params.Signaller.SendHandleRequest(h.newRequest(janus.KindHangup), nil); err != nil {
				h.logger.Warnw("could not send hangup", err)
			}
		}
		h.cleanupWebrtc(ctx)
	})
}

// Detach tears down local state. With noRequest the handle is released
// right away; otherwise a detach request is sent and the handle stays
// registered until the gateway confirms with a detached event.
func (h *Handle) Detach(ctx context.Context, noRequest bool, cb Callback) {
	if !h.enqueue(ctx, func(ctx context.Context) {
		h.cleanupWebrtc(ctx)

		if noRequest || !h.isAttached() {
			h.finishDetach(ctx)
			resolve(ctx, cb, nil)
			return
		}

		var onReply func(*janus.Message)
		if cb != nil {
			onReply = func(msg *janus.Message) {
				if !h.loop.Post(func(ctx context.Context) {
					cb(ctx, msg.Err())
				}) {
					// already released by the detached event
					cb(context.Background(), msg.Err())
				}
			}
		}
		if err := h.params.Signaller.SendHandleRequest(h.newRequest(janus.KindDetach), onReply); err != nil {
			h.logger.Warnw("could not send detach", err)
			resolve(ctx, cb, err)
		}
	}) {
		// already released
		resolve(ctx, cb, nil)
	}
}

func (h *Handle) GetStats(ctx context.Context) (Stats, error) {
	var (
		stats    Stats
		statsErr error
	)
	err := h.loop.Call(ctx, func(ctx context.Context) {
		if h.pc == nil {
			statsErr = ErrNoPeerConnection
			return
		}
		stats, statsErr = h.pc.GetStats()
	})
	if err != nil {
		return Stats{}, err
	}
	return stats, statsErr
}

func (h *Handle) enqueue(ctx context.Context, op dispatch.Op) bool {
	if h.loop.IsCurrent(ctx) {
		op(ctx)
		return true
	}
	return h.loop.Post(op)
}

func (h *Handle) setState(state State) {
	old := State(h.state.Swap(int32(state)))
	if old != state {
		h.params.Logger.Debugw("handle state changed", "handleID", h.ID(), "old", old, "new", state)
	}
}

func (h *Handle) isAttached() bool {
	switch h.State() {
	case StateAttached, StateNegotiating, StateActive, StateHungup:
		return true
	default:
		return false
	}
}

func (h *Handle) newRequest(kind janus.Kind) *janus.Request {
	req := janus.NewRequest(kind)
	req.HandleID = h.ID()
	return req
}

func (h *Handle) broadcast(ctx context.Context, ev Event) {
	h.observers.Broadcast(ctx, func(ctx context.Context, o Observer) {
		o.HandleHandleEvent(ctx, h, ev)
	})
}

func (h *Handle) handleServerEvent(ctx context.Context, ev ServerEvent) {
	switch ev := ev.(type) {
	case AttachResult:
		if ev.Err != nil {
			h.logger.Warnw("could not attach", ev.Err)
			h.broadcast(ctx, AttachFailed{Err: ev.Err})
			h.finishDetach(ctx)
			return
		}
		h.id.Store(ev.ID)
		h.logger = h.logger.WithValues("handleID", ev.ID)
		h.setState(StateAttached)
		h.logger.Infow("attached")
		h.broadcast(ctx, Attached{ID: ev.ID})

	case WebrtcUp:
		h.setState(StateActive)
		h.broadcast(ctx, WebrtcState{Up: true})

	case Hangup:
		h.logger.Infow("gateway hung up", "reason", ev.Reason)
		h.broadcast(ctx, WebrtcState{Up: false, Reason: ev.Reason})
		h.broadcast(ctx, HangupReceived{Reason: ev.Reason})
		h.cleanupWebrtc(ctx)

	case Detached:
		h.cleanupWebrtc(ctx)
		h.finishDetach(ctx)

	case Media:
		h.broadcast(ctx, MediaState{Type: ev.Type, Receiving: ev.Receiving, Mid: ev.Mid})

	case SlowLink:
		h.logger.Debugw("slow link", "uplink", ev.Uplink, "lost", ev.Lost, "mid", ev.Mid)
		h.broadcast(ctx, SlowLinkEvent{Uplink: ev.Uplink, Lost: ev.Lost, Mid: ev.Mid})

	case Trickle:
		h.onTrickle(ev.Candidate)

	case Message:
		h.broadcast(ctx, PluginMessage{Plugin: ev.Plugin, Data: ev.Data, JSEP: ev.JSEP})

	case Timeout:
		h.broadcast(ctx, TimeoutEvent{})

	case ServerError:
		h.logger.Warnw("gateway reported an error", ev.Err)
		h.broadcast(ctx, ErrorEvent{Err: ev.Err})

	default:
		h.logger.Warnw("unknown server event", nil, "event", ev)
	}
}

func (h *Handle) handlePeerEvent(ctx context.Context, ev PeerEvent) {
	switch ev := ev.(type) {
	case LocalCandidate:
		h.onLocalCandidate(ctx, ev.Candidate)

	case ICEStateChanged:
		h.logger.Debugw("ice state changed", "state", ev.State)
		h.broadcast(ctx, IceState{State: ev.State})

	case TrackReceived:
		h.broadcast(ctx, RemoteTrack{
			Kind:     ev.Kind,
			TrackID:  ev.TrackID,
			StreamID: ev.StreamID,
			Mid:      ev.Mid,
			Removed:  ev.Removed,
		})

	case DataChannelOpened:
		h.onDataChannelOpen(ctx, ev.Label)

	case DataChannelMessage:
		h.broadcast(ctx, DataReceived{Label: ev.Label, Data: ev.Data})

	case NegotiationNeeded:
		h.logger.Debugw("negotiation needed")

	default:
		h.logger.Warnw("unknown peer event", nil, "event", ev)
	}
}

// cleanupWebrtc closes the peer connection and forgets everything
// negotiated on it.
func (h *Handle) cleanupWebrtc(ctx context.Context) {
	h.cancelPending(ctx, ErrHungUp)

	hadPC := h.pc != nil
	if hadPC {
		if err := h.pc.Close(); err != nil {
			h.logger.Debugw("error closing peer connection", "error", err)
		}
		h.pc = nil
	}
	h.localTracks = make(LocalTracks)
	h.receivers = make(map[MediaKind]bool)
	h.negotiation.reset()

	switch h.State() {
	case StateNegotiating, StateActive:
		h.setState(StateHungup)
	}
	if hadPC {
		h.broadcast(ctx, Cleanup{})
	}
}

func (h *Handle) finishDetach(ctx context.Context) {
	if h.released {
		return
	}
	h.released = true
	h.setState(StateDetached)
	h.logger.Infow("detached")

	h.params.Signaller.ReleaseHandle(h)
	h.broadcast(ctx, DetachedEvent{})
	_ = h.loop.Stop(ctx, nil)
}

func resolve(ctx context.Context, cb Callback, err error) {
	if cb != nil {
		cb(ctx, err)
	}
}

func resolveMessage(ctx context.Context, cb MessageCallback, msg *janus.Message, err error) {
	if cb != nil {
		cb(ctx, msg, err)
	}
}

func failJSEP(ctx context.Context, cb JSEPCallback, err error) {
	if cb != nil {
		cb(ctx, nil, err)
	}
}
