package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/livekit/janus-client/pkg/handle"
	"github.com/livekit/janus-client/pkg/janus"
	"github.com/livekit/janus-client/pkg/transport/transportfakes"
)

const (
	testSessionID = 1234
	testHandleID  = 42
)

// fakeGateway answers requests sent over a FakeTransport the way a Janus
// instance would.
type fakeGateway struct {
	ft *transportfakes.FakeTransport

	lock       sync.Mutex
	requests   []janus.Request
	nextHandle uint64
	failClaim  bool
	failCreate bool
	silent     map[janus.Kind]bool
}

func newFakeGateway() *fakeGateway {
	g := &fakeGateway{
		ft:         transportfakes.NewFakeTransport(),
		nextHandle: testHandleID,
		silent:     make(map[janus.Kind]bool),
	}
	g.ft.OnSend(g.onSend)
	return g
}

func (g *fakeGateway) onSend(data []byte) {
	var req janus.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}

	g.lock.Lock()
	g.requests = append(g.requests, req)
	silent := g.silent[req.Janus]
	failClaim := g.failClaim
	failCreate := g.failCreate
	g.lock.Unlock()
	if silent {
		return
	}

	switch req.Janus {
	case janus.KindCreate:
		if failCreate {
			g.replyError(req, janus.JANUS_ERROR_UNAUTHORIZED, "unauthorized")
			return
		}
		g.reply(req, fmt.Sprintf(`{"janus":"success","transaction":%q,"data":{"id":%d}}`, req.Transaction, testSessionID))
	case janus.KindClaim:
		if failClaim {
			g.replyError(req, janus.JANUS_ERROR_SESSION_NOT_FOUND, "no such session")
			return
		}
		g.reply(req, fmt.Sprintf(`{"janus":"success","transaction":%q,"session_id":%d}`, req.Transaction, req.SessionID))
	case janus.KindAttach:
		g.lock.Lock()
		id := g.nextHandle
		g.nextHandle++
		g.lock.Unlock()
		g.reply(req, fmt.Sprintf(`{"janus":"success","transaction":%q,"session_id":%d,"data":{"id":%d}}`, req.Transaction, req.SessionID, id))
	case janus.KindKeepalive, janus.KindTrickle:
		g.reply(req, fmt.Sprintf(`{"janus":"ack","transaction":%q,"session_id":%d}`, req.Transaction, req.SessionID))
	case janus.KindDestroy:
		g.reply(req, fmt.Sprintf(`{"janus":"success","transaction":%q,"session_id":%d}`, req.Transaction, req.SessionID))
	case janus.KindInfo:
		g.reply(req, fmt.Sprintf(`{"janus":"server_info","transaction":%q,"name":"Janus WebRTC Server","version":1400,"version_string":"1.4.0","plugins":{"janus.plugin.videoroom":{"name":"JANUS VideoRoom plugin","version":12}}}`, req.Transaction))
	case janus.KindDetach:
		g.reply(req, fmt.Sprintf(`{"janus":"success","transaction":%q,"session_id":%d}`, req.Transaction, req.SessionID))
		g.ft.Receive([]byte(fmt.Sprintf(`{"janus":"detached","session_id":%d,"sender":%d}`, req.SessionID, req.HandleID)))
	case janus.KindMessage:
		g.reply(req, fmt.Sprintf(`{"janus":"ack","transaction":%q,"session_id":%d}`, req.Transaction, req.SessionID))
	}
}

func (g *fakeGateway) reply(_ janus.Request, payload string) {
	g.ft.Receive([]byte(payload))
}

func (g *fakeGateway) replyError(req janus.Request, code int, reason string) {
	g.ft.Receive([]byte(fmt.Sprintf(`{"janus":"error","transaction":%q,"error":{"code":%d,"reason":%q}}`, req.Transaction, code, reason)))
}

// push delivers an unsolicited event from sender.
func (g *fakeGateway) push(sender uint64, payload string) {
	var fields map[string]any
	_ = json.Unmarshal([]byte(payload), &fields)
	fields["session_id"] = testSessionID
	if sender != 0 {
		fields["sender"] = sender
	}
	data, _ := json.Marshal(fields)
	g.ft.Receive(data)
}

func (g *fakeGateway) Requests(kind janus.Kind) []janus.Request {
	g.lock.Lock()
	defer g.lock.Unlock()
	var out []janus.Request
	for _, r := range g.requests {
		if r.Janus == kind {
			out = append(out, r)
		}
	}
	return out
}

func (g *fakeGateway) SetSilent(kind janus.Kind, silent bool) {
	g.lock.Lock()
	g.silent[kind] = silent
	g.lock.Unlock()
}

func (g *fakeGateway) SetFailClaim(fail bool) {
	g.lock.Lock()
	g.failClaim = fail
	g.lock.Unlock()
}

func (g *fakeGateway) SetFailCreate(fail bool) {
	g.lock.Lock()
	g.failCreate = fail
	g.lock.Unlock()
}

type sessionRecorder struct {
	lock   sync.Mutex
	events []Event
}

func (r *sessionRecorder) HandleSessionEvent(_ context.Context, ev Event) {
	r.lock.Lock()
	r.events = append(r.events, ev)
	r.lock.Unlock()
}

func (r *sessionRecorder) Events() []Event {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *sessionRecorder) Has(match func(ev Event) bool) bool {
	for _, ev := range r.Events() {
		if match(ev) {
			return true
		}
	}
	return false
}

type handleRecorder struct {
	lock   sync.Mutex
	events []handle.Event
}

func (r *handleRecorder) HandleHandleEvent(_ context.Context, _ *handle.Handle, ev handle.Event) {
	r.lock.Lock()
	r.events = append(r.events, ev)
	r.lock.Unlock()
}

func (r *handleRecorder) Events() []handle.Event {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]handle.Event(nil), r.events...)
}
