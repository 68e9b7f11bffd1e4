package handle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/livekit/janus-client/pkg/janus"
	"github.com/livekit/janus-client/pkg/simulcast"
)

var errFake = errors.New("fake failure")

type fakeEngine struct {
	lock     sync.Mutex
	pcs      []*fakePeerConnection
	err      error
	offerSDP string
}

func (e *fakeEngine) NewPeerConnection(params PeerConnectionParams) (PeerConnection, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	pc := &fakePeerConnection{onEvent: params.OnEvent, offerSDP: e.offerSDP}
	e.pcs = append(e.pcs, pc)
	return pc, nil
}

func (e *fakeEngine) last() *fakePeerConnection {
	e.lock.Lock()
	defer e.lock.Unlock()
	if len(e.pcs) == 0 {
		return nil
	}
	return e.pcs[len(e.pcs)-1]
}

func (e *fakeEngine) count() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return len(e.pcs)
}

type fakePeerConnection struct {
	onEvent  func(ev PeerEvent)
	offerSDP string

	lock       sync.Mutex
	mutations  []string
	encodings  []simulcast.Encoding
	candidates []janus.Candidate
	sentData   map[string][][]byte
	local      *janus.JSEP
	remote     *janus.JSEP
	gathered   []string
	offers     int
	closed     bool
	addErr     map[MediaKind]error
}

func (p *fakePeerConnection) record(op string) {
	p.lock.Lock()
	p.mutations = append(p.mutations, op)
	p.lock.Unlock()
}

func (p *fakePeerConnection) AddTrack(kind MediaKind, encodings []simulcast.Encoding) error {
	p.lock.Lock()
	err := p.addErr[kind]
	p.lock.Unlock()
	if err != nil {
		return err
	}
	p.record("add-" + string(kind))
	if kind == MediaVideo {
		p.lock.Lock()
		p.encodings = encodings
		p.lock.Unlock()
	}
	return nil
}

func (p *fakePeerConnection) ReplaceTrack(kind MediaKind) error {
	p.record("replace-" + string(kind))
	return nil
}

func (p *fakePeerConnection) RemoveTrack(kind MediaKind) error {
	p.record("remove-" + string(kind))
	return nil
}

func (p *fakePeerConnection) AddReceiver(kind MediaKind) error {
	p.record("recv-" + string(kind))
	return nil
}

func (p *fakePeerConnection) CreateDataChannel(label string) error {
	p.record("datachannel-" + label)
	return nil
}

func (p *fakePeerConnection) SendData(label string, data []byte) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.sentData == nil {
		p.sentData = make(map[string][][]byte)
	}
	p.sentData[label] = append(p.sentData[label], data)
	return nil
}

func (p *fakePeerConnection) InsertDTMF(tones string, duration time.Duration, gap time.Duration) error {
	p.record(fmt.Sprintf("dtmf-%s-%d-%d", tones, duration.Milliseconds(), gap.Milliseconds()))
	return nil
}

func (p *fakePeerConnection) CreateOffer(iceRestart bool) (string, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.offers++
	if p.offerSDP != "" {
		return p.offerSDP, nil
	}
	return fmt.Sprintf("offer-%d", p.offers), nil
}

func (p *fakePeerConnection) CreateAnswer() (string, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.remote == nil {
		return "", errors.New("no remote offer")
	}
	return "answer", nil
}

func (p *fakePeerConnection) SetLocalDescription(jsep janus.JSEP) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.local = &jsep
	return nil
}

func (p *fakePeerConnection) SetRemoteDescription(jsep janus.JSEP) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.remote = &jsep
	return nil
}

func (p *fakePeerConnection) LocalDescription() *janus.JSEP {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.local == nil {
		return nil
	}
	desc := *p.local
	for _, c := range p.gathered {
		desc.SDP += "\na=" + c
	}
	return &desc
}

func (p *fakePeerConnection) AddICECandidate(candidate janus.Candidate) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.remote == nil {
		return errors.New("remote description not set")
	}
	p.candidates = append(p.candidates, candidate)
	return nil
}

func (p *fakePeerConnection) GetStats() (Stats, error) {
	return Stats{BytesSent: 100, PacketsSent: 10}, nil
}

func (p *fakePeerConnection) Close() error {
	p.lock.Lock()
	p.closed = true
	p.lock.Unlock()
	return nil
}

// gather simulates a local candidate, or the end of gathering when
// candidate is empty.
func (p *fakePeerConnection) gather(candidate string) {
	if candidate == "" {
		p.onEvent(LocalCandidate{})
		return
	}
	p.lock.Lock()
	p.gathered = append(p.gathered, candidate)
	p.lock.Unlock()
	idx := uint16(0)
	p.onEvent(LocalCandidate{Candidate: &janus.Candidate{Candidate: candidate, SdpMid: "0", SdpMLineIndex: &idx}})
}

func (p *fakePeerConnection) Mutations() []string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]string(nil), p.mutations...)
}

func (p *fakePeerConnection) Candidates() []janus.Candidate {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]janus.Candidate(nil), p.candidates...)
}

func (p *fakePeerConnection) IsClosed() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.closed
}

type fakeSignaller struct {
	lock     sync.Mutex
	requests []*janus.Request
	released []*Handle
	reply    func(req *janus.Request) *janus.Message
	sendErr  error
}

func (s *fakeSignaller) SendHandleRequest(req *janus.Request, cb func(msg *janus.Message)) error {
	s.lock.Lock()
	if s.sendErr != nil {
		s.lock.Unlock()
		return s.sendErr
	}
	s.requests = append(s.requests, req)
	reply := s.reply
	s.lock.Unlock()

	if reply != nil && cb != nil {
		if msg := reply(req); msg != nil {
			cb(msg)
		}
	}
	return nil
}

func (s *fakeSignaller) ReleaseHandle(h *Handle) {
	s.lock.Lock()
	s.released = append(s.released, h)
	s.lock.Unlock()
}

func (s *fakeSignaller) Requests(kind janus.Kind) []*janus.Request {
	s.lock.Lock()
	defer s.lock.Unlock()
	var out []*janus.Request
	for _, req := range s.requests {
		if req.Janus == kind {
			out = append(out, req)
		}
	}
	return out
}

func (s *fakeSignaller) Released() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.released)
}

func (s *fakeSignaller) SetReply(fn func(req *janus.Request) *janus.Message) {
	s.lock.Lock()
	s.reply = fn
	s.lock.Unlock()
}

type eventRecorder struct {
	lock   sync.Mutex
	events []Event
}

func (r *eventRecorder) HandleHandleEvent(_ context.Context, _ *Handle, ev Event) {
	r.lock.Lock()
	r.events = append(r.events, ev)
	r.lock.Unlock()
}

func (r *eventRecorder) Events() []Event {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *eventRecorder) Has(match func(ev Event) bool) bool {
	for _, ev := range r.Events() {
		if match(ev) {
			return true
		}
	}
	return false
}
