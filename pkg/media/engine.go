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
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/janus-client/pkg/handle"
	clientlogger "github.com/livekit/janus-client/pkg/logger"
)

const negotiationFrequency = 150 * time.Millisecond

var (
	OpusCodec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	VP8Codec  = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
)

type EngineParams struct {
	ICEServers    []webrtc.ICEServer
	AudioCodec    webrtc.RTPCodecCapability
	VideoCodec    webrtc.RTPCodecCapability
	LoggerFactory logging.LoggerFactory
	// OnLocalTrack is called for every local track created, so callers can
	// feed it samples.
	OnLocalTrack func(kind handle.MediaKind, track *webrtc.TrackLocalStaticSample)
	Logger       logger.Logger
}

// Engine creates pion peer connections sharing one API instance.
type Engine struct {
	params EngineParams
	api    *webrtc.API
}

func NewEngine(params EngineParams) (*Engine, error) {
	if params.Logger == nil {
		params.Logger = logger.GetLogger()
	}
	if params.LoggerFactory == nil {
		params.LoggerFactory = clientlogger.LoggerFactory()
	}
	if params.AudioCodec.MimeType == "" {
		params.AudioCodec = OpusCodec
	}
	if params.VideoCodec.MimeType == "" {
		params.VideoCodec = VP8Codec
	}

	me := &webrtc.MediaEngine{}
	if err := me.RegisterDefaultCodecs(); err != nil {
		return nil, errors.Wrap(err, "could not register codecs")
	}

	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(me, ir); err != nil {
		return nil, errors.Wrap(err, "could not register interceptors")
	}

	se := webrtc.SettingEngine{
		LoggerFactory: params.LoggerFactory,
	}

	return &Engine{
		params: params,
		api: webrtc.NewAPI(
			webrtc.WithMediaEngine(me),
			webrtc.WithSettingEngine(se),
			webrtc.WithInterceptorRegistry(ir),
		),
	}, nil
}

func (e *Engine) NewPeerConnection(params handle.PeerConnectionParams) (handle.PeerConnection, error) {
	l := params.Logger
	if l == nil {
		l = e.params.Logger
	}

	pc, err := e.api.NewPeerConnection(webrtc.Configuration{
		ICEServers:   e.params.ICEServers,
		SDPSemantics: webrtc.SDPSemanticsUnifiedPlan,
	})
	if err != nil {
		return nil, err
	}
	return newPeerConnection(pc, e.params, params.OnEvent, l), nil
}

var _ handle.MediaEngine = (*Engine)(nil)
