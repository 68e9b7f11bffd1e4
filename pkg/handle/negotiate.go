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

	"github.com/pkg/errors"

	"github.com/livekit/janus-client/pkg/janus"
	"github.com/livekit/janus-client/pkg/simulcast"
	"github.com/livekit/janus-client/pkg/telemetry/prometheus"
)

type negotiationRequest struct {
	jsep       *janus.JSEP
	media      MediaConfig
	trickle    bool
	simulcast  bool
	layers     int
	iceRestart bool
}

// prepareNegotiation produces a local offer, or an answer to req.jsep, and
// hands it to cb. Tracks are only touched when the request differs from
// what is already being sent.
func (h *Handle) prepareNegotiation(ctx context.Context, isOffer bool, req negotiationRequest, cb JSEPCallback) {
	sdpType := "answer"
	if isOffer {
		sdpType = "offer"
	}
	fail := func(err error) {
		h.logger.Warnw("negotiation failed", err, "type", sdpType)
		prometheus.RecordNegotiation(sdpType, false)
		failJSEP(ctx, cb, err)
	}

	if !h.State().CanNegotiate() {
		fail(ErrNotAttached)
		return
	}
	if isOffer && req.jsep != nil {
		fail(ErrOfferWithJSEP)
		return
	}
	if !isOffer && !req.jsep.IsOffer() {
		fail(ErrAnswerWithoutOffer)
		return
	}

	diff, err := ComputeMediaDiff(req.media, h.localTracks)
	if err != nil {
		fail(err)
		return
	}
	h.logger.Debugw("media diff", "audio", diff.Audio, "video", diff.Video)

	// a new round supersedes one still waiting for gathering
	h.cancelPending(ctx, ErrNegotiationReplaced)

	existed := h.pc != nil
	pc, err := h.ensurePeerConnection()
	if err != nil {
		fail(err)
		return
	}

	if !existed || !diff.KeepAll() {
		if err = h.applyMediaDiff(pc, diff, req); err != nil {
			fail(err)
			return
		}
	}

	// data channels are never removed implicitly
	req.media.Data = req.media.Data || h.negotiation.Media.Data
	if req.media.Data {
		if err = h.ensureDataChannel(DefaultDataChannelLabel); err != nil {
			fail(err)
			return
		}
	}
	h.negotiation.Media = req.media
	h.negotiation.Trickle = req.trickle
	if req.iceRestart {
		h.negotiation.IceDone = false
	}

	var description string
	if isOffer {
		description, err = pc.CreateOffer(req.iceRestart)
	} else {
		if err = h.setRemoteDescription(*req.jsep); err != nil {
			fail(err)
			return
		}
		description, err = pc.CreateAnswer()
	}
	if err != nil {
		fail(errors.Wrapf(err, "could not create %s", sdpType))
		return
	}

	if req.simulcast && h.localTracks[MediaVideo] {
		layers := req.layers
		if layers == 0 {
			layers = simulcast.DefaultLayers
		}
		if description, err = simulcast.Inject(description, layers); err != nil {
			fail(err)
			return
		}
	}

	local := janus.JSEP{Type: sdpType, SDP: description}
	if err = pc.SetLocalDescription(local); err != nil {
		fail(errors.Wrap(err, "could not set local description"))
		return
	}
	h.negotiation.LocalSDP = &local
	if h.State() != StateActive {
		h.setState(StateNegotiating)
	}

	if !h.negotiation.IceDone && !h.negotiation.Trickle {
		h.logger.Debugw("waiting for ice gathering before sending sdp", "type", sdpType)
		h.pending = &pendingDelivery{cb: cb}
		if h.params.Scheduler != nil && h.params.ICEGatherTimeout > 0 {
			h.pending.task = h.params.Scheduler.ScheduleOn(h.loop, h.onGatherTimeout, h.params.ICEGatherTimeout, false)
		}
		return
	}
	h.deliverLocalDescription(ctx, cb)
}

func (h *Handle) ensurePeerConnection() (PeerConnection, error) {
	if h.pc != nil {
		return h.pc, nil
	}

	var pc PeerConnection
	pc, err := h.params.Engine.NewPeerConnection(PeerConnectionParams{
		OnEvent: func(ev PeerEvent) {
			h.loop.Post(func(ctx context.Context) {
				// events from a closed peer connection are stale
				if h.pc != pc {
					return
				}
				h.handlePeerEvent(ctx, ev)
			})
		},
		Logger: h.logger,
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not create peer connection")
	}
	h.pc = pc
	return pc, nil
}

func (h *Handle) applyMediaDiff(pc PeerConnection, diff MediaDiff, req negotiationRequest) error {
	for _, kind := range []MediaKind{MediaAudio, MediaVideo} {
		d := diff.For(kind)
		_, _, _, required := req.media.requests(kind)

		switch {
		case d.Remove:
			if err := pc.RemoveTrack(kind); err != nil {
				return errors.Wrapf(err, "could not remove %s track", kind)
			}
			delete(h.localTracks, kind)

		case d.Replace:
			if err := pc.ReplaceTrack(kind); err != nil {
				return errors.Wrapf(err, "could not replace %s track", kind)
			}

		case d.Add:
			var encodings []simulcast.Encoding
			if kind == MediaVideo && req.simulcast {
				encodings = simulcast.Encodings(h.params.SimulcastRids)
			}
			if err := pc.AddTrack(kind, encodings); err != nil {
				if required {
					return errors.Wrapf(err, "could not add required %s track", kind)
				}
				h.logger.Warnw("continuing without track", err, "kind", kind)
				break
			}
			h.localTracks[kind] = true
		}

		if req.media.Recv(kind) && !h.localTracks[kind] && !h.receivers[kind] {
			if err := pc.AddReceiver(kind); err != nil {
				return errors.Wrapf(err, "could not receive %s", kind)
			}
			h.receivers[kind] = true
		}
	}
	return nil
}

// setRemoteDescription applies jsep and then every candidate queued while
// it was missing, in arrival order.
func (h *Handle) setRemoteDescription(jsep janus.JSEP) error {
	if err := h.pc.SetRemoteDescription(jsep); err != nil {
		return errors.Wrap(err, "could not set remote description")
	}
	h.negotiation.RemoteSDP = &jsep

	candidates := h.negotiation.takeCandidates()
	if len(candidates) > 0 {
		h.logger.Debugw("flushing pending candidates", "count", len(candidates))
	}
	for _, c := range candidates {
		h.addRemoteCandidate(c)
	}
	return nil
}

func (h *Handle) onTrickle(c janus.Candidate) {
	if h.negotiation.RemoteSDP == nil || h.pc == nil {
		h.logger.Debugw("queueing remote candidate", "candidate", c)
		h.negotiation.queueCandidate(c)
		return
	}
	h.addRemoteCandidate(c)
}

func (h *Handle) addRemoteCandidate(c janus.Candidate) {
	if err := h.pc.AddICECandidate(c); err != nil {
		h.logger.Warnw("could not add remote candidate", err, "candidate", c)
	}
}

func (h *Handle) onLocalCandidate(ctx context.Context, c *janus.Candidate) {
	if c == nil {
		h.logger.Debugw("ice gathering completed")
		h.negotiation.IceDone = true
		if h.negotiation.Trickle {
			h.sendTrickle(janus.EndOfCandidates())
		}
		if p := h.takePending(); p != nil {
			h.deliverLocalDescription(ctx, p.cb)
		}
		return
	}

	if h.negotiation.Trickle {
		h.sendTrickle(*c)
	}
}

func (h *Handle) sendTrickle(c janus.Candidate) {
	if !h.isAttached() {
		return
	}
	req := h.newRequest(janus.KindTrickle)
	req.Candidate = &c
	if err := h.params.Signaller.SendHandleRequest(req, nil); err != nil {
		h.logger.Warnw("could not send candidate", err, "candidate", c)
	}
}

func (h *Handle) onGatherTimeout(ctx context.Context) {
	p := h.takePending()
	if p == nil {
		return
	}
	h.logger.Warnw("ice gathering timed out, sending sdp with gathered candidates", nil)
	h.deliverLocalDescription(ctx, p.cb)
}

func (h *Handle) deliverLocalDescription(ctx context.Context, cb JSEPCallback) {
	jsep := h.negotiation.LocalSDP
	if !h.negotiation.Trickle && h.pc != nil {
		// pick up the candidates gathered since the description was set
		if current := h.pc.LocalDescription(); current != nil {
			jsep = current
		}
		if jsep != nil {
			trickle := false
			jsep.Trickle = &trickle
			h.negotiation.LocalSDP = jsep
		}
	}
	if jsep == nil {
		prometheus.RecordNegotiation("unknown", false)
		failJSEP(ctx, cb, ErrNoLocalDescription)
		return
	}

	prometheus.RecordNegotiation(jsep.Type, true)
	if cb != nil {
		out := *jsep
		cb(ctx, &out, nil)
	}
}

func (h *Handle) takePending() *pendingDelivery {
	p := h.pending
	h.pending = nil
	if p != nil && p.task != 0 && h.params.Scheduler != nil {
		h.params.Scheduler.Cancel(p.task)
	}
	return p
}

func (h *Handle) cancelPending(ctx context.Context, err error) {
	if p := h.takePending(); p != nil {
		failJSEP(ctx, p.cb, err)
	}
}

func (h *Handle) ensureDataChannel(label string) error {
	if _, ok := h.negotiation.dataChannels.Get(label); ok {
		return nil
	}
	if err := h.pc.CreateDataChannel(label); err != nil {
		return errors.Wrapf(err, "could not create data channel %s", label)
	}
	h.negotiation.dataChannels.Set(label, &dataChannel{label: label})
	return nil
}

func (h *Handle) sendData(label string, data []byte) error {
	if !h.isAttached() {
		return ErrNotAttached
	}
	if h.pc == nil {
		return ErrNoPeerConnection
	}
	if label == "" {
		label = DefaultDataChannelLabel
	}
	if err := h.ensureDataChannel(label); err != nil {
		return err
	}

	dc, _ := h.negotiation.dataChannels.Get(label)
	if !dc.open {
		dc.pending = append(dc.pending, data)
		return nil
	}
	return h.pc.SendData(label, data)
}

func (h *Handle) onDataChannelOpen(ctx context.Context, label string) {
	dc, ok := h.negotiation.dataChannels.Get(label)
	if !ok {
		// opened by the gateway
		dc = &dataChannel{label: label}
		h.negotiation.dataChannels.Set(label, dc)
	}
	dc.open = true

	pending := dc.pending
	dc.pending = nil
	for _, data := range pending {
		if err := h.pc.SendData(label, data); err != nil {
			h.logger.Warnw("could not send queued data", err, "label", label)
		}
	}
	h.broadcast(ctx, DataOpen{Label: label})
}
