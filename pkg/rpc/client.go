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

package rpc

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/janus-client/pkg/janus"
	"github.com/livekit/janus-client/pkg/telemetry/prometheus"
	"github.com/livekit/janus-client/pkg/transport"
)

// ReplyHandler receives the reply correlated with a request. It is invoked
// at most once, outside the client's lock, so it may issue new requests.
type ReplyHandler func(msg *janus.Message)

// EventHandler receives every inbound message that is not a reply to a
// pending request.
type EventHandler func(msg *janus.Message)

type ClientParams struct {
	Transport transport.Transport
	Token     string
	APISecret string
	OnEvent   EventHandler
	Logger    logger.Logger
}

type pendingRequest struct {
	kind     janus.Kind
	handler  ReplyHandler
	issuedAt time.Time
}

// Client correlates requests and replies by transaction id.
type Client struct {
	params ClientParams

	lock    sync.Mutex
	pending map[string]pendingRequest
}

func NewClient(params ClientParams) *Client {
	if params.Logger == nil {
		params.Logger = logger.GetLogger()
	}
	return &Client{
		params:  params,
		pending: make(map[string]pendingRequest),
	}
}

// SetCredentials updates the token and api secret stamped on requests.
func (c *Client) SetCredentials(token string, apiSecret string) {
	c.lock.Lock()
	c.params.Token = token
	c.params.APISecret = apiSecret
	c.lock.Unlock()
}

// Request assigns a fresh transaction id to req and sends it. When cb is
// not nil it is registered before sending, so a reply arriving before Send
// returns is still matched.
func (c *Client) Request(req *janus.Request, cb ReplyHandler) error {
	c.lock.Lock()
	id := janus.NewTransactionID()
	for {
		if _, ok := c.pending[id]; !ok {
			break
		}
		id = janus.NewTransactionID()
	}
	req.Transaction = id
	if req.Token == "" {
		req.Token = c.params.Token
	}
	if req.APISecret == "" {
		req.APISecret = c.params.APISecret
	}
	if cb != nil {
		c.pending[id] = pendingRequest{
			kind:     req.Janus,
			handler:  cb,
			issuedAt: time.Now(),
		}
	}
	c.lock.Unlock()
	if cb != nil {
		prometheus.AddPendingTransaction()
	}

	data, err := janus.Encode(req)
	if err != nil {
		c.forget(id, cb != nil)
		return errors.Wrap(err, "could not encode request")
	}

	if err = c.params.Transport.Send(data, false); err != nil {
		c.forget(id, cb != nil)
		return err
	}
	prometheus.IncrementMessage(string(req.Janus), prometheus.Outgoing)
	c.params.Logger.Debugw("sent request", "janus", req.Janus, "transaction", id)
	return nil
}

// HandleMessage consumes one inbound frame.
func (c *Client) HandleMessage(data []byte) {
	msg, err := janus.Decode(data)
	if err != nil {
		c.params.Logger.Warnw("could not decode gateway message", err)
		return
	}
	prometheus.IncrementMessage(string(msg.Janus), prometheus.Incoming)

	if msg.IsReply() && msg.Transaction != "" {
		c.lock.Lock()
		req, ok := c.pending[msg.Transaction]
		if ok {
			delete(c.pending, msg.Transaction)
		}
		c.lock.Unlock()

		if ok {
			prometheus.RecordTransaction(string(req.kind), string(msg.Janus), time.Since(req.issuedAt))
			req.handler(msg)
			return
		}
	}

	if c.params.OnEvent != nil {
		c.params.OnEvent(msg)
	}
}

// Abandon drops every pending callback without invoking it. Used when the
// connection is lost before replies could arrive.
func (c *Client) Abandon() int {
	c.lock.Lock()
	count := len(c.pending)
	c.pending = make(map[string]pendingRequest)
	c.lock.Unlock()

	if count > 0 {
		c.params.Logger.Warnw("abandoning pending transactions", nil, "count", count)
		prometheus.RecordAbandonedTransactions(count)
	}
	return count
}

func (c *Client) PendingCount() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.pending)
}

func (c *Client) forget(id string, registered bool) {
	if !registered {
		return
	}
	c.lock.Lock()
	delete(c.pending, id)
	c.lock.Unlock()
	prometheus.RecordAbandonedTransactions(1)
}
