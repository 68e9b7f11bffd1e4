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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"
	"github.com/thoas/go-funk"
	"github.com/urfave/cli/v2"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/janus-client/pkg/handle"
	"github.com/livekit/janus-client/pkg/janus"
	"github.com/livekit/janus-client/pkg/media"
	"github.com/livekit/janus-client/pkg/videoroom"
)

const (
	echoPlugin          = "janus.plugin.echotest"
	defaultEchoDuration = 10 * time.Second
	minGatewayVersion   = "0.10.0"
)

func printInfo(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}
	client, err := newGatewayClient(conf, nil)
	if err != nil {
		return err
	}
	if err = client.connect(); err != nil {
		return err
	}
	defer client.close()

	type result struct {
		info *janus.ServerInfo
		err  error
	}
	results := make(chan result, 1)
	client.manager.Info(context.Background(), func(_ context.Context, info *janus.ServerInfo, err error) {
		results <- result{info, err}
	})
	r := <-results
	if r.err != nil {
		return r.err
	}

	supported, err := r.info.AtLeast(minGatewayVersion)
	if err != nil {
		return err
	}
	plugins := funk.Keys(r.info.Plugins).([]string)
	sort.Strings(plugins)

	fmt.Printf("%s %s\n", r.info.Name, r.info.VersionString)
	fmt.Printf("supported: %t (minimum %s)\n", supported, minGatewayVersion)
	fmt.Printf("plugins: %s\n", strings.Join(plugins, ", "))
	return nil
}

// trackWriters starts a writer for every local track the engine creates.
type trackWriters struct {
	ctx   context.Context
	files map[handle.MediaKind]string

	lock    sync.Mutex
	writers []*media.TrackWriter
}

func (w *trackWriters) onLocalTrack(kind handle.MediaKind, track *webrtc.TrackLocalStaticSample) {
	writer := media.NewTrackWriter(w.ctx, track, w.files[kind], logger.GetLogger())
	if err := writer.Start(); err != nil {
		logger.Warnw("could not start track writer", err, "kind", kind)
		return
	}
	w.lock.Lock()
	w.writers = append(w.writers, writer)
	w.lock.Unlock()
}

func (w *trackWriters) stop() {
	w.lock.Lock()
	defer w.lock.Unlock()
	for _, writer := range w.writers {
		writer.Stop()
	}
	w.writers = nil
}

func publish(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	writers := &trackWriters{
		ctx: ctx,
		files: map[handle.MediaKind]string{
			handle.MediaAudio: c.String("audio"),
			handle.MediaVideo: c.String("video"),
		},
	}
	defer writers.stop()

	client, err := newGatewayClient(conf, writers.onLocalTrack)
	if err != nil {
		return err
	}
	if err = client.connect(); err != nil {
		return err
	}
	defer client.close()

	h, err := client.attach(videoroom.Plugin, nil)
	if err != nil {
		return err
	}

	trickle := conf.RTC.IsTrickle()
	pub := videoroom.NewPublisher(h, videoroom.PublisherParams{
		Room:    c.Uint64("room"),
		Display: c.String("display"),
		Media: handle.MediaConfig{
			Audio: true,
			Video: c.String("video") != "",
		},
		Trickle:         &trickle,
		Simulcast:       c.Bool("simulcast"),
		SimulcastLayers: conf.Simulcast.Layers,
		OnPublishers: func(_ context.Context, publishers []videoroom.PublisherInfo) {
			for _, p := range publishers {
				fmt.Printf("publisher %d (%s) is in the room\n", p.ID, p.Display)
			}
		},
		OnPublisherGone: func(_ context.Context, id uint64) {
			fmt.Printf("publisher %d is gone\n", id)
		},
	})
	defer pub.Close()

	joined := make(chan error, 1)
	pub.Join(context.Background(), func(_ context.Context, resp *videoroom.Response, err error) {
		if err == nil {
			fmt.Printf("joined room %d as %d\n", resp.Room, resp.ID)
		}
		joined <- err
	})
	if err = await(joined, requestTimeout); err != nil {
		return err
	}

	published := make(chan error, 1)
	pub.Publish(context.Background(), callback(published))
	if err = await(published, requestTimeout+conf.RTC.ICEGatherTimeout); err != nil {
		return errors.Wrap(err, "could not publish")
	}
	fmt.Println("publishing, press ctrl-c to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logger.Infow("exit requested, leaving room", "signal", sig)
	case <-h.Done():
		return errors.New("handle detached by the gateway")
	}

	left := make(chan error, 1)
	pub.Leave(context.Background(), callback(left))
	return await(left, requestTimeout)
}

// echoObserver forwards the echo test's answer and reports media state.
type echoObserver struct {
	answers chan *janus.JSEP
	up      chan struct{}
	once    sync.Once
}

func (o *echoObserver) HandleHandleEvent(_ context.Context, _ *handle.Handle, ev handle.Event) {
	switch ev := ev.(type) {
	case handle.PluginMessage:
		if ev.JSEP.IsAnswer() {
			o.answers <- ev.JSEP
		}
		var result struct {
			Result string `json:"result"`
		}
		if err := json.Unmarshal(ev.Data, &result); err == nil && result.Result != "" {
			logger.Debugw("echo test result", "result", result.Result)
		}
	case handle.WebrtcState:
		if ev.Up {
			o.once.Do(func() { close(o.up) })
		}
	case handle.MediaState:
		if ev.Receiving {
			fmt.Printf("gateway is receiving %s\n", ev.Type)
		} else {
			fmt.Printf("gateway stopped receiving %s\n", ev.Type)
		}
	}
}

func echo(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	writers := &trackWriters{ctx: ctx}
	defer writers.stop()

	client, err := newGatewayClient(conf, writers.onLocalTrack)
	if err != nil {
		return err
	}
	if err = client.connect(); err != nil {
		return err
	}
	defer client.close()

	observer := &echoObserver{
		answers: make(chan *janus.JSEP, 1),
		up:      make(chan struct{}),
	}
	h, err := client.attach(echoPlugin, observer)
	if err != nil {
		return err
	}

	trickle := conf.RTC.IsTrickle()
	offers := make(chan *janus.JSEP, 1)
	offerErrs := make(chan error, 1)
	h.CreateOffer(context.Background(), handle.OfferParams{
		Media:   handle.MediaConfig{Audio: true, Video: true, Data: true},
		Trickle: &trickle,
	}, func(_ context.Context, jsep *janus.JSEP, err error) {
		offerErrs <- err
		offers <- jsep
	})
	if err = await(offerErrs, requestTimeout+conf.RTC.ICEGatherTimeout); err != nil {
		return errors.Wrap(err, "could not create offer")
	}

	sent := make(chan error, 1)
	h.Send(context.Background(), map[string]any{"audio": true, "video": true}, <-offers, func(_ context.Context, _ *janus.Message, err error) {
		sent <- err
	})
	if err = await(sent, requestTimeout); err != nil {
		return err
	}

	select {
	case answer := <-observer.answers:
		applied := make(chan error, 1)
		h.HandleRemoteJsep(context.Background(), answer, callback(applied))
		if err = await(applied, requestTimeout); err != nil {
			return err
		}
	case <-time.After(requestTimeout):
		return errors.New("echo test did not answer")
	}

	select {
	case <-observer.up:
		fmt.Println("media is flowing")
	case <-time.After(requestTimeout):
		return errors.New("peer connection did not come up")
	}

	dataErrs := make(chan error, 1)
	h.SendData(context.Background(), "", []byte("hello from janus-cli"), callback(dataErrs))
	if err = await(dataErrs, requestTimeout); err != nil {
		logger.Warnw("could not send data", err)
	}

	time.Sleep(c.Duration("duration"))

	stats, err := h.GetStats(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("sent %s in %s packets, received %s in %s packets, lost %d, rtt %s\n",
		humanize.Bytes(stats.BytesSent), humanize.Comma(int64(stats.PacketsSent)),
		humanize.Bytes(stats.BytesReceived), humanize.Comma(int64(stats.PacketsReceived)),
		stats.PacketsLost, stats.RoundTripTime,
	)

	hungup := make(chan error, 1)
	h.Detach(context.Background(), false, callback(hungup))
	return await(hungup, requestTimeout)
}
