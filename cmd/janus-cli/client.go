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
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/janus-client/pkg/config"
	"github.com/livekit/janus-client/pkg/handle"
	"github.com/livekit/janus-client/pkg/media"
	"github.com/livekit/janus-client/pkg/scheduler"
	"github.com/livekit/janus-client/pkg/session"
	"github.com/livekit/janus-client/pkg/stats"
	"github.com/livekit/janus-client/pkg/telemetry/prometheus"
	"github.com/livekit/janus-client/pkg/transport"
)

const requestTimeout = 10 * time.Second

// gatewayClient bundles a session with what its handles need. Commands are
// one-shot, so every call blocks until the gateway answered.
type gatewayClient struct {
	conf      *config.Config
	scheduler *scheduler.Scheduler
	engine    *media.Engine
	manager   *session.Manager
	poller    *stats.Poller
}

func newGatewayClient(conf *config.Config, onLocalTrack func(kind handle.MediaKind, track *webrtc.TrackLocalStaticSample)) (*gatewayClient, error) {
	if conf.PrometheusPort > 0 {
		prometheus.Init(fmt.Sprintf("janus-cli-%d", os.Getpid()))
		go func() {
			addr := fmt.Sprintf(":%d", conf.PrometheusPort)
			if err := http.ListenAndServe(addr, promhttp.Handler()); err != nil {
				logger.Warnw("metrics server stopped", err, "addr", addr)
			}
		}()
	}

	engine, err := media.NewEngine(media.EngineParams{
		ICEServers:   conf.RTC.WebRTCICEServers(),
		OnLocalTrack: onLocalTrack,
	})
	if err != nil {
		return nil, err
	}

	sched := scheduler.NewScheduler(scheduler.SchedulerParams{})
	ws := transport.NewWebSocket(transport.WebSocketParams{
		PingInterval: conf.Gateway.PingInterval,
	})
	c := &gatewayClient{
		conf:      conf,
		scheduler: sched,
		engine:    engine,
		manager: session.NewManager(session.ManagerParams{
			Transport:         ws,
			Engine:            engine,
			Scheduler:         sched,
			Token:             conf.Gateway.Token,
			APISecret:         conf.Gateway.APISecret,
			KeepaliveInterval: conf.Gateway.KeepaliveInterval,
			ConnectTimeout:    conf.Gateway.ConnectTimeout,
			SimulcastRids:     conf.Simulcast.Rids,
			ICEGatherTimeout:  conf.RTC.ICEGatherTimeout,
			DisableClaim:      !conf.Gateway.Claim,
		}),
	}
	if conf.Stats.Enabled {
		c.poller = stats.NewPoller(stats.PollerParams{
			Scheduler: sched,
			Interval:  conf.Stats.Interval,
		})
	}
	return c, nil
}

func (c *gatewayClient) connect() error {
	errs := make(chan error, 1)
	c.manager.Connect(context.Background(), c.conf.Gateway.URL, func(_ context.Context, err error) {
		errs <- err
	})
	return await(errs, c.conf.Gateway.ConnectTimeout+requestTimeout)
}

func (c *gatewayClient) attach(plugin string, observer handle.Observer) (*handle.Handle, error) {
	type result struct {
		h   *handle.Handle
		err error
	}
	results := make(chan result, 1)
	c.manager.Attach(context.Background(), session.AttachParams{
		Plugin:   plugin,
		Observer: observer,
	}, func(_ context.Context, h *handle.Handle, err error) {
		results <- result{h: h, err: err}
	})

	select {
	case r := <-results:
		if r.err != nil {
			return nil, errors.Wrapf(r.err, "could not attach to %s", plugin)
		}
		if c.poller != nil {
			c.poller.Track(r.h)
		}
		return r.h, nil
	case <-time.After(requestTimeout):
		return nil, errors.Errorf("attaching to %s timed out", plugin)
	}
}

// close destroys the session, detaching every handle on the way.
func (c *gatewayClient) close() {
	errs := make(chan error, 1)
	c.manager.Destroy(context.Background(), false, true, func(_ context.Context, err error) {
		errs <- err
	})
	if err := await(errs, requestTimeout); err != nil {
		logger.Warnw("could not destroy session", err)
	}
	if c.poller != nil {
		c.poller.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	_ = c.manager.Close(ctx)
	c.scheduler.Stop()
}

func await(errs <-chan error, timeout time.Duration) error {
	select {
	case err := <-errs:
		return err
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}

// callback returns a handle.Callback feeding errs.
func callback(errs chan<- error) handle.Callback {
	return func(_ context.Context, err error) {
		errs <- err
	}
}
