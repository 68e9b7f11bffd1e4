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

package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/frostbyte73/core"
	"github.com/gorilla/websocket"
	"go.uber.org/atomic"

	"github.com/livekit/protocol/logger"
)

const (
	Subprotocol = "janus-protocol"

	defaultPingInterval = 30 * time.Second
	writeWait           = 10 * time.Second
)

type WebSocketParams struct {
	Header       http.Header
	PingInterval time.Duration
	Dialer       *websocket.Dialer
	Logger       logger.Logger
}

// WebSocket is a Transport over a single websocket connection. Frames are
// read on one goroutine and handed to the listener in arrival order.
type WebSocket struct {
	params WebSocketParams

	listenerLock sync.RWMutex
	listener     Listener

	// guards conn and writes on it
	writeMu sync.Mutex
	conn    *websocket.Conn
	closed  core.Fuse
	dialing bool

	connected atomic.Bool
	localStop atomic.Bool
}

func NewWebSocket(params WebSocketParams) *WebSocket {
	if params.PingInterval <= 0 {
		params.PingInterval = defaultPingInterval
	}
	if params.Dialer == nil {
		params.Dialer = &websocket.Dialer{
			Subprotocols:     []string{Subprotocol},
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
			WriteBufferPool:  &sync.Pool{},
		}
	}
	if params.Logger == nil {
		params.Logger = logger.GetLogger()
	}
	return &WebSocket{
		params: params,
	}
}

func (w *WebSocket) SetListener(l Listener) {
	w.listenerLock.Lock()
	w.listener = l
	w.listenerLock.Unlock()
}

func (w *WebSocket) IsConnected() bool {
	return w.connected.Load()
}

func (w *WebSocket) Connect(ctx context.Context, url string) error {
	w.writeMu.Lock()
	if w.conn != nil || w.dialing {
		w.writeMu.Unlock()
		return ErrAlreadyConnected
	}
	w.dialing = true
	w.writeMu.Unlock()

	conn, resp, err := w.params.Dialer.DialContext(ctx, url, w.params.Header)
	if err != nil {
		w.writeMu.Lock()
		w.dialing = false
		w.writeMu.Unlock()

		code := 0
		if resp != nil {
			code = resp.StatusCode
		}
		w.params.Logger.Warnw("could not connect to gateway", err, "url", url, "status", code)
		w.emit(Failed{Code: code, Reason: err.Error()})
		return err
	}

	closed := core.NewFuse()
	w.writeMu.Lock()
	w.conn = conn
	w.closed = closed
	w.dialing = false
	w.writeMu.Unlock()
	w.localStop.Store(false)
	w.connected.Store(true)

	w.params.Logger.Infow("connected to gateway", "url", url, "subprotocol", conn.Subprotocol())
	go w.readLoop(conn, closed)
	go w.pingLoop(conn, closed)
	return nil
}

func (w *WebSocket) Send(data []byte, binary bool) error {
	messageType := websocket.TextMessage
	if binary {
		messageType = websocket.BinaryMessage
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.conn == nil {
		return ErrNotConnected
	}
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(messageType, data)
}

func (w *WebSocket) Disconnect() {
	w.writeMu.Lock()
	conn := w.conn
	if conn == nil {
		w.writeMu.Unlock()
		return
	}
	w.localStop.Store(true)
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	w.writeMu.Unlock()

	// reader reports Closed once the connection is torn down
	_ = conn.Close()
}

func (w *WebSocket) readLoop(conn *websocket.Conn, closed core.Fuse) {
	w.emit(Opened{})

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			w.teardown(conn, closed)
			w.emit(w.closeEvent(err))
			return
		}

		switch messageType {
		case websocket.TextMessage:
			w.emit(MessageReceived{Data: payload})
		case websocket.BinaryMessage:
			w.emit(MessageReceived{Data: payload, Binary: true})
		}
	}
}

func (w *WebSocket) pingLoop(conn *websocket.Conn, closed core.Fuse) {
	ticker := time.NewTicker(w.params.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.writeMu.Lock()
			if w.conn != conn {
				w.writeMu.Unlock()
				return
			}
			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait))
			w.writeMu.Unlock()
			if err != nil {
				w.params.Logger.Debugw("error sending ping to gateway", "error", err)
			}
		case <-closed.Watch():
			return
		}
	}
}

func (w *WebSocket) teardown(conn *websocket.Conn, closed core.Fuse) {
	w.writeMu.Lock()
	if w.conn == conn {
		w.conn = nil
	}
	w.writeMu.Unlock()

	closed.Break()
	w.connected.Store(false)
	_ = conn.Close()
}

func (w *WebSocket) closeEvent(err error) Event {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway {
			return Closed{Code: closeErr.Code, Reason: closeErr.Text}
		}
		return Failed{Code: closeErr.Code, Reason: closeErr.Text}
	}
	if w.localStop.Load() {
		return Closed{Code: websocket.CloseNormalClosure, Reason: "disconnected"}
	}
	return Failed{Code: websocket.CloseAbnormalClosure, Reason: err.Error()}
}

func (w *WebSocket) emit(ev Event) {
	w.listenerLock.RLock()
	l := w.listener
	w.listenerLock.RUnlock()

	if l != nil {
		l.HandleTransportEvent(ev)
	}
}
