package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	lock   sync.Mutex
	events []Event
}

func (r *recordingListener) HandleTransportEvent(ev Event) {
	r.lock.Lock()
	r.events = append(r.events, ev)
	r.lock.Unlock()
}

func (r *recordingListener) Events() []Event {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]Event(nil), r.events...)
}

// echo server that also reports the negotiated subprotocol
func newEchoServer(t *testing.T) (*httptest.Server, chan string) {
	protocols := make(chan string, 1)
	upgrader := websocket.Upgrader{Subprotocols: []string{Subprotocol}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		protocols <- conn.Subprotocol()
		defer conn.Close()
		for {
			mt, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(payload) == "bye" {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
				return
			}
			if err := conn.WriteMessage(mt, payload); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, protocols
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketRoundTrip(t *testing.T) {
	srv, protocols := newEchoServer(t)

	listener := &recordingListener{}
	ws := NewWebSocket(WebSocketParams{})
	ws.SetListener(listener)

	require.NoError(t, ws.Connect(context.Background(), wsURL(srv)))
	require.True(t, ws.IsConnected())
	require.Equal(t, Subprotocol, <-protocols)

	require.NoError(t, ws.Send([]byte(`{"janus":"keepalive"}`), false))
	require.NoError(t, ws.Send([]byte{1, 2, 3}, true))

	require.Eventually(t, func() bool { return len(listener.Events()) == 3 }, time.Second, 10*time.Millisecond)
	events := listener.Events()
	require.Equal(t, Opened{}, events[0])
	require.Equal(t, MessageReceived{Data: []byte(`{"janus":"keepalive"}`)}, events[1])
	require.Equal(t, MessageReceived{Data: []byte{1, 2, 3}, Binary: true}, events[2])

	ws.Disconnect()
	require.Eventually(t, func() bool { return len(listener.Events()) == 4 }, time.Second, 10*time.Millisecond)
	_, ok := listener.Events()[3].(Closed)
	require.True(t, ok)
	require.False(t, ws.IsConnected())
	require.ErrorIs(t, ws.Send([]byte("x"), false), ErrNotConnected)
}

func TestWebSocketRemoteClose(t *testing.T) {
	srv, _ := newEchoServer(t)

	listener := &recordingListener{}
	ws := NewWebSocket(WebSocketParams{})
	ws.SetListener(listener)
	require.NoError(t, ws.Connect(context.Background(), wsURL(srv)))

	require.NoError(t, ws.Send([]byte("bye"), false))
	require.Eventually(t, func() bool {
		events := listener.Events()
		if len(events) == 0 {
			return false
		}
		closed, ok := events[len(events)-1].(Closed)
		return ok && closed.Code == websocket.CloseNormalClosure
	}, time.Second, 10*time.Millisecond)
}

func TestWebSocketConnectFailure(t *testing.T) {
	listener := &recordingListener{}
	ws := NewWebSocket(WebSocketParams{})
	ws.SetListener(listener)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.Error(t, ws.Connect(ctx, "ws://127.0.0.1:1/janus"))

	events := listener.Events()
	require.Len(t, events, 1)
	_, ok := events[0].(Failed)
	require.True(t, ok)
}

func TestWebSocketConcurrentConnect(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	upgrader := websocket.Upgrader{Subprotocols: []string{Subprotocol}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-release
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	ws := NewWebSocket(WebSocketParams{})
	ws.SetListener(&recordingListener{})

	first := make(chan error, 1)
	go func() {
		first <- ws.Connect(context.Background(), wsURL(srv))
	}()
	<-entered

	// the first dial is still in flight
	require.ErrorIs(t, ws.Connect(context.Background(), wsURL(srv)), ErrAlreadyConnected)

	close(release)
	require.NoError(t, <-first)
	require.True(t, ws.IsConnected())
	require.ErrorIs(t, ws.Connect(context.Background(), wsURL(srv)), ErrAlreadyConnected)
	ws.Disconnect()
}
