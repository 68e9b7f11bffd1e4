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

package session

import (
	"context"
	"time"

	"go.uber.org/atomic"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/janus-client/pkg/dispatch"
	"github.com/livekit/janus-client/pkg/handle"
	"github.com/livekit/janus-client/pkg/janus"
	"github.com/livekit/janus-client/pkg/rpc"
	"github.com/livekit/janus-client/pkg/scheduler"
	"github.com/livekit/janus-client/pkg/telemetry/prometheus"
	"github.com/livekit/janus-client/pkg/transport"
)

const (
	DefaultKeepaliveInterval = 5 * time.Second
	defaultConnectTimeout    = 10 * time.Second
)

type ManagerParams struct {
	Transport         transport.Transport
	Engine            handle.MediaEngine
	Scheduler         *scheduler.Scheduler
	Token             string
	APISecret         string
	KeepaliveInterval time.Duration
	ConnectTimeout    time.Duration
	SimulcastRids     []string
	ICEGatherTimeout  time.Duration
	// DisableClaim makes Reconnect drop the previous session and its
	// handles, and create a new one.
	DisableClaim bool
	Logger       logger.Logger
}

type AttachParams struct {
	Plugin   string
	OpaqueID string
	// Observer is registered before the attach request is sent, so it sees
	// the Attached or AttachFailed event. Events are delivered on
	// ObserverLoop, or on the handle loop when nil.
	Observer     handle.Observer
	ObserverLoop *dispatch.Loop
}

type AttachCallback func(ctx context.Context, h *handle.Handle, err error)

type InfoCallback func(ctx context.Context, info *janus.ServerInfo, err error)

// Manager owns one gateway session over a transport. It creates (or
// claims) the session when the transport opens, keeps it alive while
// connected, and routes unsolicited gateway messages to handles by sender.
// All state lives on the manager loop.
type Manager struct {
	params ManagerParams
	loop   *dispatch.Loop
	client *rpc.Client
	logger logger.Logger

	status    atomic.Int32
	sessionID atomic.Uint64

	observers dispatch.ObserverList[Observer]

	ownsScheduler bool

	// owned by loop
	url          string
	reconnecting bool
	connectCb    Callback
	heartbeat    scheduler.TaskID
	handles      map[uint64]*handle.Handle
}

func NewManager(params ManagerParams) *Manager {
	if params.Logger == nil {
		params.Logger = logger.GetLogger()
	}
	if params.KeepaliveInterval <= 0 {
		params.KeepaliveInterval = DefaultKeepaliveInterval
	}
	if params.ConnectTimeout <= 0 {
		params.ConnectTimeout = defaultConnectTimeout
	}
	ownsScheduler := params.Scheduler == nil
	if ownsScheduler {
		params.Scheduler = scheduler.NewScheduler(scheduler.SchedulerParams{Logger: params.Logger})
	}

	m := &Manager{
		params:        params,
		loop:          dispatch.NewLoop("session", params.Logger),
		logger:        params.Logger,
		ownsScheduler: ownsScheduler,
		handles:       make(map[uint64]*handle.Handle),
	}
	m.client = rpc.NewClient(rpc.ClientParams{
		Transport: params.Transport,
		Token:     params.Token,
		APISecret: params.APISecret,
		OnEvent:   m.onUnsolicited,
		Logger:    params.Logger,
	})
	params.Transport.SetListener(m)
	m.loop.Start()
	return m
}

func (m *Manager) Status() Status {
	return Status(m.status.Load())
}

func (m *Manager) SessionID() uint64 {
	return m.sessionID.Load()
}

func (m *Manager) Loop() *dispatch.Loop {
	return m.loop
}

func (m *Manager) AddObserver(o Observer, loop *dispatch.Loop) dispatch.ID {
	if loop == nil {
		loop = m.loop
	}
	return m.observers.Add(o, loop)
}

func (m *Manager) RemoveObserver(id dispatch.ID) {
	m.observers.Remove(id)
}

// Handle returns the attached handle with the given server id.
func (m *Manager) Handle(ctx context.Context, id uint64) (*handle.Handle, bool) {
	h, err := dispatch.Invoke(ctx, m.loop, func(ctx context.Context) *handle.Handle {
		return m.handles[id]
	})
	return h, err == nil && h != nil
}

func (m *Manager) Handles(ctx context.Context) []*handle.Handle {
	handles, _ := dispatch.Invoke(ctx, m.loop, func(ctx context.Context) []*handle.Handle {
		out := make([]*handle.Handle, 0, len(m.handles))
		for _, h := range m.handles {
			out = append(out, h)
		}
		return out
	})
	return handles
}

// Connect opens the transport to url and creates a session. cb resolves
// once the session is created or the attempt failed.
func (m *Manager) Connect(ctx context.Context, url string, cb Callback) {
	m.run(ctx, cb, func(ctx context.Context) {
		if m.Status() != StatusDisconnected {
			resolve(ctx, cb, ErrAlreadyConnected)
			return
		}
		m.url = url
		m.reconnecting = false
		m.sessionID.Store(0)
		m.dial(ctx, cb)
	})
}

// Reconnect reopens the transport and claims the previous session, so
// handles attached to it keep working.
func (m *Manager) Reconnect(ctx context.Context, cb Callback) {
	m.run(ctx, cb, func(ctx context.Context) {
		switch {
		case m.Status() != StatusDisconnected:
			resolve(ctx, cb, ErrAlreadyConnected)
		case m.url == "":
			resolve(ctx, cb, ErrNoSession)
		case m.params.DisableClaim:
			m.detachAll(ctx)
			m.sessionID.Store(0)
			m.reconnecting = false
			m.dial(ctx, cb)
		default:
			m.reconnecting = m.SessionID() != 0
			m.dial(ctx, cb)
		}
	})
}

// Disconnect closes the transport. The session is left to expire on the
// gateway and may be claimed by Reconnect.
func (m *Manager) Disconnect(ctx context.Context) {
	m.run(ctx, nil, func(ctx context.Context) {
		m.stopHeartbeat()
		go m.params.Transport.Disconnect()
	})
}

// Attach creates a handle for plugin. cb runs on the handle loop once the
// handle is bound to its server id, or with the attach error.
func (m *Manager) Attach(ctx context.Context, params AttachParams, cb AttachCallback) {
	if !m.enqueue(ctx, func(ctx context.Context) {
		m.attach(ctx, params, cb)
	}) && cb != nil {
		cb(ctx, nil, ErrManagerClosed)
	}
}

// Destroy destroys the session. With cleanupHandles every handle is first
// detached locally. When there is no session, or the transport is down, no
// request is sent and cb succeeds right away.
func (m *Manager) Destroy(ctx context.Context, notifyDestroyed bool, cleanupHandles bool, cb Callback) {
	m.run(ctx, cb, func(ctx context.Context) {
		if cleanupHandles {
			m.detachAll(ctx)
		}

		sessionID := m.SessionID()
		if sessionID == 0 || !m.params.Transport.IsConnected() {
			m.logger.Debugw("no session to destroy", "sessionID", sessionID)
			m.onDestroyed(ctx, notifyDestroyed)
			resolve(ctx, cb, nil)
			return
		}

		req := janus.NewRequest(janus.KindDestroy)
		req.SessionID = sessionID
		err := m.client.Request(req, func(msg *janus.Message) {
			m.loop.Post(func(ctx context.Context) {
				if err := msg.Err(); err != nil {
					m.logger.Warnw("could not destroy session", err, "sessionID", sessionID)
					resolve(ctx, cb, err)
					return
				}
				m.onDestroyed(ctx, notifyDestroyed)
				go m.params.Transport.Disconnect()
				resolve(ctx, cb, nil)
			})
		})
		if err != nil {
			m.logger.Warnw("could not send destroy", err, "sessionID", sessionID)
			resolve(ctx, cb, err)
		}
	})
}

// Info asks the gateway for its server_info.
func (m *Manager) Info(ctx context.Context, cb InfoCallback) {
	if !m.enqueue(ctx, func(ctx context.Context) {
		err := m.client.Request(janus.NewRequest(janus.KindInfo), func(msg *janus.Message) {
			m.loop.Post(func(ctx context.Context) {
				if err := msg.Err(); err != nil {
					cb(ctx, nil, err)
					return
				}
				info, err := janus.DecodeServerInfo(msg)
				cb(ctx, info, err)
			})
		})
		if err != nil {
			cb(ctx, nil, err)
		}
	}) {
		cb(ctx, nil, ErrManagerClosed)
	}
}

// Close tears down the manager without talking to the gateway.
func (m *Manager) Close(ctx context.Context) error {
	return m.loop.Stop(ctx, func(ctx context.Context) {
		m.stopHeartbeat()
		m.detachAll(ctx)
		m.client.Abandon()
		m.params.Transport.SetListener(nil)
		if m.params.Transport.IsConnected() {
			go m.params.Transport.Disconnect()
		}
		m.observers.Clear()
		if m.ownsScheduler {
			go m.params.Scheduler.Stop()
		}
	})
}

// SendHandleRequest implements handle.Signaller.
func (m *Manager) SendHandleRequest(req *janus.Request, cb func(msg *janus.Message)) error {
	sessionID := m.SessionID()
	if sessionID == 0 || m.Status() != StatusConnected {
		return ErrNotConnected
	}
	req.SessionID = sessionID

	var onReply rpc.ReplyHandler
	if cb != nil {
		// through the manager loop, to stay ordered with routed events
		onReply = func(msg *janus.Message) {
			if !m.loop.Post(func(context.Context) { cb(msg) }) {
				cb(msg)
			}
		}
	}
	return m.client.Request(req, onReply)
}

// ReleaseHandle implements handle.Signaller.
func (m *Manager) ReleaseHandle(h *handle.Handle) {
	m.loop.Post(func(ctx context.Context) {
		m.removeHandle(h)
	})
}

// HandleTransportEvent implements transport.Listener. Frames are decoded on
// the transport goroutine and everything else is handled on the loop, in
// arrival order.
func (m *Manager) HandleTransportEvent(ev transport.Event) {
	if msg, ok := ev.(transport.MessageReceived); ok {
		if msg.Binary {
			m.logger.Warnw("ignoring binary frame", nil, "size", len(msg.Data))
			return
		}
		m.client.HandleMessage(msg.Data)
		return
	}

	m.loop.Post(func(ctx context.Context) {
		switch ev := ev.(type) {
		case transport.Opened:
			m.onTransportOpened(ctx)
		case transport.Failed:
			m.onTransportDown(ctx, &ConnectionError{Code: ev.Code, Reason: ev.Reason})
		case transport.Closed:
			m.onTransportDown(ctx, nil)
		}
	})
}

func (m *Manager) run(ctx context.Context, cb Callback, op dispatch.Op) {
	if !m.enqueue(ctx, op) {
		resolve(ctx, cb, ErrManagerClosed)
	}
}

func (m *Manager) enqueue(ctx context.Context, op dispatch.Op) bool {
	if m.loop.IsCurrent(ctx) {
		op(ctx)
		return true
	}
	return m.loop.Post(op)
}

func (m *Manager) setStatus(ctx context.Context, status Status, err error) {
	old := Status(m.status.Swap(int32(status)))
	if old == status {
		return
	}
	m.logger.Infow("session status changed", "old", old, "new", status, "sessionID", m.SessionID())
	m.broadcast(ctx, StatusChanged{Status: status, SessionID: m.SessionID(), Err: err})
}

func (m *Manager) broadcast(ctx context.Context, ev Event) {
	m.observers.Broadcast(ctx, func(ctx context.Context, o Observer) {
		o.HandleSessionEvent(ctx, ev)
	})
}

func (m *Manager) dial(ctx context.Context, cb Callback) {
	m.connectCb = cb
	m.setStatus(ctx, StatusConnecting, nil)

	url := m.url
	go func() {
		dialCtx, cancel := context.WithTimeout(context.Background(), m.params.ConnectTimeout)
		defer cancel()
		// failures are reported by the transport as Failed
		if err := m.params.Transport.Connect(dialCtx, url); err != nil {
			m.logger.Debugw("connect failed", "url", url, "error", err)
		}
	}()
}

func (m *Manager) onTransportOpened(ctx context.Context) {
	if m.Status() != StatusConnecting {
		m.logger.Debugw("ignoring transport open", "status", m.Status())
		return
	}

	kind := janus.KindCreate
	req := janus.NewRequest(kind)
	if m.reconnecting {
		kind = janus.KindClaim
		req = janus.NewRequest(kind)
		req.SessionID = m.SessionID()
	}
	err := m.client.Request(req, func(msg *janus.Message) {
		m.loop.Post(func(ctx context.Context) {
			m.onSessionReply(ctx, kind, msg)
		})
	})
	if err != nil {
		m.failConnect(ctx, err)
	}
}

func (m *Manager) onSessionReply(ctx context.Context, kind janus.Kind, msg *janus.Message) {
	if m.Status() != StatusConnecting {
		return
	}

	if err := msg.Err(); err != nil {
		if kind == janus.KindClaim {
			// the old session is gone, start over with a new one
			m.logger.Warnw("could not claim session, creating a new one", err, "sessionID", m.SessionID())
			m.detachAll(ctx)
			m.broadcast(ctx, SessionError{Err: err})
			m.reconnecting = false
			m.sessionID.Store(0)
			m.onTransportOpened(ctx)
			return
		}
		m.failConnect(ctx, err)
		go m.params.Transport.Disconnect()
		return
	}

	if kind == janus.KindCreate {
		if msg.Data == nil || msg.Data.ID == 0 {
			m.failConnect(ctx, ErrNoSession)
			go m.params.Transport.Disconnect()
			return
		}
		m.sessionID.Store(msg.Data.ID)
	}
	m.reconnecting = false
	m.logger = m.params.Logger.WithValues("sessionID", m.SessionID())
	prometheus.SessionStarted()

	m.setStatus(ctx, StatusConnected, nil)
	m.startHeartbeat()

	cb := m.connectCb
	m.connectCb = nil
	resolve(ctx, cb, nil)
}

func (m *Manager) failConnect(ctx context.Context, err error) {
	m.logger.Warnw("could not establish session", err)
	m.setStatus(ctx, StatusDisconnected, err)
	cb := m.connectCb
	m.connectCb = nil
	resolve(ctx, cb, err)
}

func (m *Manager) onTransportDown(ctx context.Context, err error) {
	m.stopHeartbeat()
	if abandoned := m.client.Abandon(); abandoned > 0 {
		m.logger.Infow("transport down with pending transactions", "count", abandoned)
	}

	if m.Status() == StatusConnected {
		prometheus.SessionEnded()
	}
	if err != nil {
		m.logger.Warnw("transport failed", err)
	} else {
		m.logger.Infow("transport closed")
	}
	if err == nil && m.connectCb != nil {
		err = &ConnectionError{Reason: "closed before session was established"}
	}
	m.setStatus(ctx, StatusDisconnected, err)

	if cb := m.connectCb; cb != nil {
		m.connectCb = nil
		resolve(ctx, cb, err)
	}
}

func (m *Manager) startHeartbeat() {
	m.stopHeartbeat()
	m.heartbeat = m.params.Scheduler.ScheduleOn(m.loop, m.sendKeepalive, m.params.KeepaliveInterval, true)
}

func (m *Manager) stopHeartbeat() {
	if m.heartbeat != 0 {
		m.params.Scheduler.Cancel(m.heartbeat)
		m.heartbeat = 0
	}
}

func (m *Manager) sendKeepalive(ctx context.Context) {
	if m.Status() != StatusConnected {
		return
	}
	req := janus.NewRequest(janus.KindKeepalive)
	req.SessionID = m.SessionID()
	// failures surface through the transport
	if err := m.client.Request(req, nil); err != nil {
		m.logger.Debugw("could not send keepalive", "error", err)
	}
}

func (m *Manager) onUnsolicited(msg *janus.Message) {
	m.loop.Post(func(ctx context.Context) {
		m.route(ctx, msg)
	})
}

// route forwards an unsolicited message to the handle named by its sender.
func (m *Manager) route(ctx context.Context, msg *janus.Message) {
	if msg.IsReply() {
		m.logger.Debugw("ignoring uncorrelated reply", "janus", msg.Janus, "transaction", msg.Transaction)
		return
	}

	if msg.Sender == 0 {
		switch msg.Janus {
		case janus.KindTimeout:
			m.logger.Warnw("session timed out", nil)
			m.broadcast(ctx, SessionError{Err: ErrSessionTimeout})
		case janus.KindError:
			m.broadcast(ctx, SessionError{Err: msg.Err()})
		default:
			m.logger.Warnw("dropping message without sender", nil, "janus", msg.Janus)
		}
		return
	}

	h, ok := m.handles[msg.Sender]
	if !ok {
		m.logger.Warnw("dropping message for unknown handle", nil, "sender", msg.Sender, "janus", msg.Janus)
		return
	}
	ev, ok := handle.ServerEventFromMessage(msg)
	if !ok {
		m.logger.Warnw("dropping unsupported message", nil, "sender", msg.Sender, "janus", msg.Janus)
		return
	}
	prometheus.RecordServerEvent(string(msg.Janus))
	h.HandleServerEvent(ctx, ev)

	if msg.Janus == janus.KindDetached {
		m.removeHandle(h)
	}
}

func (m *Manager) attach(ctx context.Context, params AttachParams, cb AttachCallback) {
	if m.Status() != StatusConnected {
		if cb != nil {
			cb(ctx, nil, ErrNotConnected)
		}
		return
	}

	h := handle.NewHandle(handle.HandleParams{
		Plugin:           params.Plugin,
		OpaqueID:         params.OpaqueID,
		Signaller:        m,
		Engine:           m.params.Engine,
		Scheduler:        m.params.Scheduler,
		SimulcastRids:    m.params.SimulcastRids,
		ICEGatherTimeout: m.params.ICEGatherTimeout,
		Logger:           m.logger,
	})
	if params.Observer != nil {
		h.AddObserver(params.Observer, params.ObserverLoop)
	}
	h.Start()

	req := janus.NewRequest(janus.KindAttach)
	req.SessionID = m.SessionID()
	req.Plugin = params.Plugin
	req.OpaqueID = params.OpaqueID
	err := m.client.Request(req, func(msg *janus.Message) {
		m.loop.Post(func(ctx context.Context) {
			m.onAttachReply(ctx, h, msg, cb)
		})
	})
	if err != nil {
		m.logger.Warnw("could not send attach", err, "plugin", params.Plugin)
		h.HandleServerEvent(ctx, handle.AttachResult{Err: err})
		if cb != nil {
			cb(ctx, nil, err)
		}
	}
}

func (m *Manager) onAttachReply(ctx context.Context, h *handle.Handle, msg *janus.Message, cb AttachCallback) {
	err := msg.Err()
	if err == nil && (msg.Data == nil || msg.Data.ID == 0) {
		err = ErrMissingHandleID
	}
	prometheus.RecordAttach(h.Plugin(), err == nil)

	if err != nil {
		m.logger.Warnw("could not attach", err, "plugin", h.Plugin())
		h.HandleServerEvent(ctx, handle.AttachResult{Err: err})
		if cb != nil {
			cb(ctx, nil, err)
		}
		return
	}

	id := msg.Data.ID
	m.handles[id] = h
	prometheus.AddHandle(h.Plugin())
	h.HandleServerEvent(ctx, handle.AttachResult{ID: id})

	if cb == nil {
		return
	}
	// queued behind the bind so the handle reports its id
	if !h.Loop().Post(func(hctx context.Context) { cb(hctx, h, nil) }) {
		cb(ctx, nil, handle.ErrHandleClosed)
	}
}

func (m *Manager) removeHandle(h *handle.Handle) {
	id := h.ID()
	if current, ok := m.handles[id]; ok && current == h {
		delete(m.handles, id)
		prometheus.SubHandle(h.Plugin())
	}
}

func (m *Manager) detachAll(ctx context.Context) {
	for id, h := range m.handles {
		h.Detach(ctx, true, nil)
		delete(m.handles, id)
		prometheus.SubHandle(h.Plugin())
	}
}

func (m *Manager) onDestroyed(ctx context.Context, notify bool) {
	sessionID := m.SessionID()
	m.stopHeartbeat()
	if m.Status() == StatusConnected {
		prometheus.SessionEnded()
	}
	m.sessionID.Store(0)
	m.setStatus(ctx, StatusDisconnected, nil)
	m.logger.Infow("session destroyed", "sessionID", sessionID)
	if notify {
		m.broadcast(ctx, Destroyed{SessionID: sessionID})
	}
}

func resolve(ctx context.Context, cb Callback, err error) {
	if cb != nil {
		cb(ctx, err)
	}
}
