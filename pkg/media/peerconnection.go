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

package media

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/pion/webrtc/v3"
	"go.uber.org/atomic"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/janus-client/pkg/handle"
	"github.com/livekit/janus-client/pkg/janus"
	"github.com/livekit/janus-client/pkg/simulcast"
)

var (
	ErrDTMFUnsupported    = errors.New("dtmf is not supported by this engine")
	ErrNoTrack            = errors.New("no local track of that kind")
	ErrUnknownDataChannel = errors.New("unknown data channel")
)

type localTrack struct {
	tracks []*webrtc.TrackLocalStaticSample
	sender *webrtc.RTPSender
}

// PeerConnection adapts a pion peer connection to what a handle needs.
type PeerConnection struct {
	pc      *webrtc.PeerConnection
	params  EngineParams
	onEvent func(ev handle.PeerEvent)
	logger  logger.Logger

	debouncedNegotiate func(func())
	closed             atomic.Bool

	lock         sync.Mutex
	tracks       map[handle.MediaKind]*localTrack
	dataChannels map[string]*webrtc.DataChannel
}

func newPeerConnection(pc *webrtc.PeerConnection, params EngineParams, onEvent func(ev handle.PeerEvent), l logger.Logger) *PeerConnection {
	p := &PeerConnection{
		pc:                 pc,
		params:             params,
		onEvent:            onEvent,
		logger:             l,
		debouncedNegotiate: debounce.New(negotiationFrequency),
		tracks:             make(map[handle.MediaKind]*localTrack),
		dataChannels:       make(map[string]*webrtc.DataChannel),
	}

	pc.OnICECandidate(p.onICECandidate)
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		p.logger.Debugw("ice connection state changed", "state", state)
		p.emit(handle.ICEStateChanged{State: state.String()})
	})
	pc.OnTrack(p.onTrack)
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		p.lock.Lock()
		p.dataChannels[dc.Label()] = dc
		p.lock.Unlock()
		p.bindDataChannel(dc)
	})
	pc.OnNegotiationNeeded(func() {
		p.debouncedNegotiate(func() {
			p.emit(handle.NegotiationNeeded{})
		})
	})
	return p
}

// Track returns the first local track of kind, for writing samples.
func (p *PeerConnection) Track(kind handle.MediaKind) *webrtc.TrackLocalStaticSample {
	p.lock.Lock()
	defer p.lock.Unlock()
	if lt := p.tracks[kind]; lt != nil && len(lt.tracks) > 0 {
		return lt.tracks[0]
	}
	return nil
}

func (p *PeerConnection) AddTrack(kind handle.MediaKind, encodings []simulcast.Encoding) error {
	tracks, err := p.newTracks(kind, encodings)
	if err != nil {
		return err
	}

	sender, err := p.pc.AddTrack(tracks[0])
	if err != nil {
		return err
	}
	for _, track := range tracks[1:] {
		if err := sender.AddEncoding(track); err != nil {
			return err
		}
	}
	go drainRTCP(sender)

	p.lock.Lock()
	p.tracks[kind] = &localTrack{tracks: tracks, sender: sender}
	p.lock.Unlock()

	for _, track := range tracks {
		p.notifyLocalTrack(kind, track)
	}
	return nil
}

func (p *PeerConnection) ReplaceTrack(kind handle.MediaKind) error {
	p.lock.Lock()
	lt := p.tracks[kind]
	p.lock.Unlock()
	if lt == nil {
		return ErrNoTrack
	}

	track, err := webrtc.NewTrackLocalStaticSample(p.codec(kind), trackID(kind), "janus")
	if err != nil {
		return err
	}
	if err := lt.sender.ReplaceTrack(track); err != nil {
		return err
	}

	p.lock.Lock()
	lt.tracks = []*webrtc.TrackLocalStaticSample{track}
	p.lock.Unlock()
	p.notifyLocalTrack(kind, track)
	return nil
}

func (p *PeerConnection) RemoveTrack(kind handle.MediaKind) error {
	p.lock.Lock()
	lt := p.tracks[kind]
	delete(p.tracks, kind)
	p.lock.Unlock()
	if lt == nil {
		return ErrNoTrack
	}
	return p.pc.RemoveTrack(lt.sender)
}

func (p *PeerConnection) AddReceiver(kind handle.MediaKind) error {
	_, err := p.pc.AddTransceiverFromKind(rtpCodecType(kind), webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
	return err
}

func (p *PeerConnection) CreateDataChannel(label string) error {
	ordered := true
	dc, err := p.pc.CreateDataChannel(label, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return err
	}

	p.lock.Lock()
	p.dataChannels[label] = dc
	p.lock.Unlock()
	p.bindDataChannel(dc)
	return nil
}

func (p *PeerConnection) SendData(label string, data []byte) error {
	p.lock.Lock()
	dc := p.dataChannels[label]
	p.lock.Unlock()
	if dc == nil {
		return ErrUnknownDataChannel
	}
	return dc.Send(data)
}

func (p *PeerConnection) InsertDTMF(string, time.Duration, time.Duration) error {
	return ErrDTMFUnsupported
}

func (p *PeerConnection) CreateOffer(iceRestart bool) (string, error) {
	offer, err := p.pc.CreateOffer(&webrtc.OfferOptions{ICERestart: iceRestart})
	if err != nil {
		return "", err
	}
	return offer.SDP, nil
}

func (p *PeerConnection) CreateAnswer() (string, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	return answer.SDP, nil
}

func (p *PeerConnection) SetLocalDescription(jsep janus.JSEP) error {
	return p.pc.SetLocalDescription(toSessionDescription(jsep))
}

func (p *PeerConnection) SetRemoteDescription(jsep janus.JSEP) error {
	return p.pc.SetRemoteDescription(toSessionDescription(jsep))
}

func (p *PeerConnection) LocalDescription() *janus.JSEP {
	sd := p.pc.LocalDescription()
	if sd == nil {
		return nil
	}
	return &janus.JSEP{Type: sd.Type.String(), SDP: sd.SDP}
}

func (p *PeerConnection) AddICECandidate(c janus.Candidate) error {
	if c.IsEndOfCandidates() {
		// pion has no explicit end-of-candidates
		return nil
	}
	init := webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMLineIndex: c.SdpMLineIndex,
	}
	if c.SdpMid != "" {
		mid := c.SdpMid
		init.SDPMid = &mid
	}
	return p.pc.AddICECandidate(init)
}

func (p *PeerConnection) GetStats() (handle.Stats, error) {
	return statsFromReport(p.pc.GetStats()), nil
}

func (p *PeerConnection) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.pc.Close()
}

func (p *PeerConnection) emit(ev handle.PeerEvent) {
	if p.closed.Load() || p.onEvent == nil {
		return
	}
	p.onEvent(ev)
}

func (p *PeerConnection) onICECandidate(c *webrtc.ICECandidate) {
	if c == nil {
		p.emit(handle.LocalCandidate{})
		return
	}

	init := c.ToJSON()
	candidate := &janus.Candidate{
		Candidate:     init.Candidate,
		SdpMLineIndex: init.SDPMLineIndex,
	}
	if init.SDPMid != nil {
		candidate.SdpMid = *init.SDPMid
	}
	p.emit(handle.LocalCandidate{Candidate: candidate})
}

func (p *PeerConnection) onTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	mid := ""
	for _, tr := range p.pc.GetTransceivers() {
		if tr.Receiver() == receiver {
			mid = tr.Mid()
			break
		}
	}
	p.logger.Debugw("remote track", "kind", track.Kind(), "trackID", track.ID(), "mid", mid)
	p.emit(handle.TrackReceived{
		Kind:     handle.MediaKind(track.Kind().String()),
		TrackID:  track.ID(),
		StreamID: track.StreamID(),
		Mid:      mid,
	})

	// keep the interceptors fed
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := track.Read(buf); err != nil {
				return
			}
		}
	}()
}

func (p *PeerConnection) bindDataChannel(dc *webrtc.DataChannel) {
	label := dc.Label()
	dc.OnOpen(func() {
		p.emit(handle.DataChannelOpened{Label: label})
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		p.emit(handle.DataChannelMessage{Label: label, Data: msg.Data})
	})
}

func (p *PeerConnection) newTracks(kind handle.MediaKind, encodings []simulcast.Encoding) ([]*webrtc.TrackLocalStaticSample, error) {
	codec := p.codec(kind)
	if len(encodings) == 0 {
		track, err := webrtc.NewTrackLocalStaticSample(codec, trackID(kind), "janus")
		if err != nil {
			return nil, err
		}
		return []*webrtc.TrackLocalStaticSample{track}, nil
	}

	// a sender cannot carry two encodings with the same rid
	if simulcast.HasDuplicateRids(encodings) {
		p.logger.Warnw("duplicate simulcast rids, sending one layer per rid", nil, "rids", rids(encodings))
	}
	seen := make(map[string]bool, len(encodings))
	var tracks []*webrtc.TrackLocalStaticSample
	for _, enc := range encodings {
		if seen[enc.Rid] {
			continue
		}
		seen[enc.Rid] = true

		track, err := webrtc.NewTrackLocalStaticSample(codec, trackID(kind), "janus", webrtc.WithRTPStreamID(enc.Rid))
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

func rids(encodings []simulcast.Encoding) []string {
	out := make([]string, 0, len(encodings))
	for _, enc := range encodings {
		out = append(out, enc.Rid)
	}
	return out
}

func (p *PeerConnection) codec(kind handle.MediaKind) webrtc.RTPCodecCapability {
	if kind == handle.MediaAudio {
		return p.params.AudioCodec
	}
	return p.params.VideoCodec
}

func (p *PeerConnection) notifyLocalTrack(kind handle.MediaKind, track *webrtc.TrackLocalStaticSample) {
	if p.params.OnLocalTrack != nil {
		p.params.OnLocalTrack(kind, track)
	}
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func rtpCodecType(kind handle.MediaKind) webrtc.RTPCodecType {
	if kind == handle.MediaAudio {
		return webrtc.RTPCodecTypeAudio
	}
	return webrtc.RTPCodecTypeVideo
}

func trackID(kind handle.MediaKind) string {
	return fmt.Sprintf("janus-%s", kind)
}

func toSessionDescription(jsep janus.JSEP) webrtc.SessionDescription {
	return webrtc.SessionDescription{
		Type: webrtc.NewSDPType(jsep.Type),
		SDP:  jsep.SDP,
	}
}

var _ handle.PeerConnection = (*PeerConnection)(nil)
