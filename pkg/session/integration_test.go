package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/livekit/janus-client/pkg/handle"
	"github.com/livekit/janus-client/pkg/janus"
	"github.com/livekit/janus-client/pkg/media"
	"github.com/livekit/janus-client/pkg/session"
	"github.com/livekit/janus-client/pkg/testutils"
	"github.com/livekit/janus-client/pkg/transport"
)

const (
	echoPlugin      = "janus.plugin.echotest"
	gatewaySession  = 1001
	gatewayHandleID = 2002
)

// echoGateway speaks enough of the gateway protocol over a websocket to run
// the echo test plugin, answering offers with a pion peer connection.
type echoGateway struct {
	t          *testing.T
	keepalives atomic.Int32
	trickles   atomic.Int32
}

func (g *echoGateway) serve(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{Subprotocols: []string{transport.Subprotocol}}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var writeLock sync.Mutex
	write := func(v map[string]any) {
		writeLock.Lock()
		defer writeLock.Unlock()
		_ = conn.WriteJSON(v)
	}

	var pc *webrtc.PeerConnection
	defer func() {
		if pc != nil {
			_ = pc.Close()
		}
	}()

	for {
		var req janus.Request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		reply := map[string]any{"janus": "success", "transaction": req.Transaction}

		switch req.Janus {
		case janus.KindCreate:
			reply["data"] = map[string]any{"id": gatewaySession}
		case janus.KindAttach:
			reply["session_id"] = gatewaySession
			reply["data"] = map[string]any{"id": gatewayHandleID}
		case janus.KindKeepalive:
			g.keepalives.Inc()
			reply["janus"] = "ack"
		case janus.KindTrickle:
			g.trickles.Inc()
			reply["janus"] = "ack"
		case janus.KindMessage:
			reply["janus"] = "ack"
			write(reply)

			event := map[string]any{
				"janus":       "event",
				"session_id":  gatewaySession,
				"sender":      gatewayHandleID,
				"transaction": req.Transaction,
				"plugindata": map[string]any{
					"plugin": echoPlugin,
					"data":   map[string]any{"echotest": "event", "result": "ok"},
				},
			}
			if req.JSEP != nil && req.JSEP.IsOffer() {
				if pc == nil {
					pc, err = webrtc.NewPeerConnection(webrtc.Configuration{})
					require.NoError(g.t, err)
				}
				require.NoError(g.t, pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: req.JSEP.SDP}))
				answer, err := pc.CreateAnswer(nil)
				require.NoError(g.t, err)
				require.NoError(g.t, pc.SetLocalDescription(answer))
				event["jsep"] = map[string]any{"type": "answer", "sdp": answer.SDP}
			}
			write(event)
			continue
		case janus.KindDetach:
			write(reply)
			write(map[string]any{"janus": "detached", "session_id": gatewaySession, "sender": gatewayHandleID})
			continue
		case janus.KindDestroy:
			reply["session_id"] = gatewaySession
		default:
			reply["janus"] = "error"
			reply["error"] = map[string]any{"code": janus.JANUS_ERROR_UNKNOWN_REQUEST, "reason": "unknown request"}
		}
		write(reply)
	}
}

func TestEchoRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping loopback media in short mode")
	}

	gw := &echoGateway{t: t}
	srv := httptest.NewServer(http.HandlerFunc(gw.serve))
	t.Cleanup(srv.Close)

	engine, err := media.NewEngine(media.EngineParams{})
	require.NoError(t, err)

	m := session.NewManager(session.ManagerParams{
		Transport:         transport.NewWebSocket(transport.WebSocketParams{}),
		Engine:            engine,
		KeepaliveInterval: 50 * time.Millisecond,
	})
	t.Cleanup(func() {
		_ = m.Close(context.Background())
	})

	errs := make(chan error, 1)
	m.Connect(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), func(_ context.Context, err error) {
		errs <- err
	})
	require.NoError(t, testutils.Receive(t, errs))
	require.Equal(t, uint64(gatewaySession), m.SessionID())

	answers := make(chan *janus.JSEP, 1)
	attached := make(chan *handle.Handle, 1)
	m.Attach(context.Background(), session.AttachParams{
		Plugin: echoPlugin,
		Observer: handle.ObserverFunc(func(_ context.Context, _ *handle.Handle, ev handle.Event) {
			if msg, ok := ev.(handle.PluginMessage); ok && msg.JSEP.IsAnswer() {
				answers <- msg.JSEP
			}
		}),
	}, func(_ context.Context, h *handle.Handle, err error) {
		require.NoError(t, err)
		attached <- h
	})
	h := testutils.Receive(t, attached)
	require.Equal(t, uint64(gatewayHandleID), h.ID())

	offers := make(chan *janus.JSEP, 1)
	h.CreateOffer(context.Background(), handle.OfferParams{
		Media: handle.MediaConfig{Audio: true, Video: true},
	}, func(_ context.Context, jsep *janus.JSEP, err error) {
		require.NoError(t, err)
		offers <- jsep
	})
	offer := testutils.Receive(t, offers)
	require.True(t, offer.IsOffer())

	replies := make(chan error, 1)
	h.Send(context.Background(), map[string]any{"audio": true, "video": true}, offer, func(_ context.Context, msg *janus.Message, err error) {
		replies <- err
	})
	require.NoError(t, testutils.Receive(t, replies))

	answer := testutils.Receive(t, answers)
	applied := make(chan error, 1)
	h.HandleRemoteJsep(context.Background(), answer, func(_ context.Context, err error) {
		applied <- err
	})
	require.NoError(t, testutils.Receive(t, applied))
	require.Equal(t, handle.StateNegotiating, h.State())

	testutils.WithTimeout(t, func() string {
		if gw.keepalives.Load() == 0 {
			return "no keepalive sent"
		}
		if gw.trickles.Load() == 0 {
			return "no candidate trickled"
		}
		return ""
	})

	detached := make(chan error, 1)
	h.Detach(context.Background(), false, func(_ context.Context, err error) {
		detached <- err
	})
	require.NoError(t, testutils.Receive(t, detached))
	testutils.Receive(t, h.Done())

	destroyed := make(chan error, 1)
	m.Destroy(context.Background(), true, true, func(_ context.Context, err error) {
		destroyed <- err
	})
	require.NoError(t, testutils.Receive(t, destroyed))
	testutils.WithTimeout(t, func() string {
		if m.Status() != session.StatusDisconnected {
			return "transport still connected"
		}
		return ""
	})
}
