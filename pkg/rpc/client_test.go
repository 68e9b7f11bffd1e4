package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/livekit/janus-client/pkg/janus"
	"github.com/livekit/janus-client/pkg/transport/transportfakes"
)

func newTestClient(t *testing.T) (*Client, *transportfakes.FakeTransport, *[]*janus.Message) {
	ft := transportfakes.NewFakeTransport()
	require.NoError(t, ft.Connect(context.Background(), "ws://gateway"))

	var lock sync.Mutex
	events := &[]*janus.Message{}
	c := NewClient(ClientParams{
		Transport: ft,
		Token:     "token",
		APISecret: "secret",
		OnEvent: func(msg *janus.Message) {
			lock.Lock()
			*events = append(*events, msg)
			lock.Unlock()
		},
	})
	return c, ft, events
}

func lastRequest(t *testing.T, ft *transportfakes.FakeTransport) janus.Request {
	sent := ft.Sent()
	require.NotEmpty(t, sent)
	var req janus.Request
	require.NoError(t, json.Unmarshal(sent[len(sent)-1].Data, &req))
	return req
}

func TestRequestStampsEnvelope(t *testing.T) {
	c, ft, _ := newTestClient(t)

	req := janus.NewRequest(janus.KindAttach)
	req.SessionID = 7
	req.Plugin = "janus.plugin.echotest"
	require.NoError(t, c.Request(req, func(*janus.Message) {}))

	sent := lastRequest(t, ft)
	require.Equal(t, janus.KindAttach, sent.Janus)
	require.Len(t, sent.Transaction, 12)
	require.Equal(t, "token", sent.Token)
	require.Equal(t, "secret", sent.APISecret)
	require.Equal(t, uint64(7), sent.SessionID)
	require.Equal(t, 1, c.PendingCount())
}

func TestReplyInvokesCallbackOnce(t *testing.T) {
	c, ft, events := newTestClient(t)

	var calls atomic.Int32
	var reply *janus.Message
	require.NoError(t, c.Request(janus.NewRequest(janus.KindCreate), func(msg *janus.Message) {
		calls.Inc()
		reply = msg
	}))
	txn := lastRequest(t, ft).Transaction

	payload := []byte(fmt.Sprintf(`{"janus":"success","transaction":"%s","data":{"id":42}}`, txn))
	c.HandleMessage(payload)
	c.HandleMessage(payload)

	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, uint64(42), reply.Data.ID)
	require.Equal(t, 0, c.PendingCount())
	// the duplicate is no longer correlated and goes upward
	require.Len(t, *events, 1)
}

func TestErrorReplyCarriesProtocolError(t *testing.T) {
	c, ft, _ := newTestClient(t)

	var err error
	require.NoError(t, c.Request(janus.NewRequest(janus.KindAttach), func(msg *janus.Message) {
		err = msg.Err()
	}))
	txn := lastRequest(t, ft).Transaction

	c.HandleMessage([]byte(fmt.Sprintf(`{"janus":"error","transaction":"%s","error":{"code":460,"reason":"No such plugin"}}`, txn)))

	var jerr *janus.Error
	require.ErrorAs(t, err, &jerr)
	require.Equal(t, janus.JANUS_ERROR_PLUGIN_NOT_FOUND, jerr.Code)
}

func TestUnsolicitedMessagesGoUpward(t *testing.T) {
	c, _, events := newTestClient(t)

	c.HandleMessage([]byte(`{"janus":"webrtcup","session_id":1,"sender":2}`))
	c.HandleMessage([]byte(`{"janus":"ack","transaction":"unknown"}`))
	c.HandleMessage([]byte(`not json`))

	require.Len(t, *events, 2)
	require.Equal(t, janus.KindWebrtcUp, (*events)[0].Janus)
	require.Equal(t, uint64(2), (*events)[0].Sender)
	require.Equal(t, janus.KindAck, (*events)[1].Janus)
}

func TestCallbackMayIssueRequest(t *testing.T) {
	c, ft, _ := newTestClient(t)

	done := make(chan struct{})
	require.NoError(t, c.Request(janus.NewRequest(janus.KindCreate), func(msg *janus.Message) {
		// would deadlock if invoked under the lock
		require.NoError(t, c.Request(janus.NewRequest(janus.KindKeepalive), nil))
		close(done)
	}))
	txn := lastRequest(t, ft).Transaction
	c.HandleMessage([]byte(fmt.Sprintf(`{"janus":"success","transaction":"%s","data":{"id":1}}`, txn)))

	<-done
	require.Equal(t, janus.KindKeepalive, lastRequest(t, ft).Janus)
}

func TestReplyBeforeSendReturns(t *testing.T) {
	c, ft, _ := newTestClient(t)

	ft.OnSend(func(data []byte) {
		var req janus.Request
		require.NoError(t, json.Unmarshal(data, &req))
		c.HandleMessage([]byte(fmt.Sprintf(`{"janus":"ack","transaction":"%s"}`, req.Transaction)))
	})

	var acked atomic.Bool
	require.NoError(t, c.Request(janus.NewRequest(janus.KindTrickle), func(msg *janus.Message) {
		acked.Store(msg.Janus == janus.KindAck)
	}))
	require.True(t, acked.Load())
}

func TestSendFailureForgetsTransaction(t *testing.T) {
	c, ft, _ := newTestClient(t)
	ft.Disconnect()

	err := c.Request(janus.NewRequest(janus.KindKeepalive), func(*janus.Message) {})
	require.Error(t, err)
	require.Equal(t, 0, c.PendingCount())
}

func TestAbandonDropsCallbacks(t *testing.T) {
	c, ft, _ := newTestClient(t)

	var calls atomic.Int32
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Request(janus.NewRequest(janus.KindMessage), func(*janus.Message) { calls.Inc() }))
	}
	txn := lastRequest(t, ft).Transaction

	require.Equal(t, 3, c.Abandon())
	c.HandleMessage([]byte(fmt.Sprintf(`{"janus":"success","transaction":"%s"}`, txn)))
	require.Equal(t, int32(0), calls.Load())
}

func TestTransactionIDsUniqueWhilePending(t *testing.T) {
	c, ft, _ := newTestClient(t)

	for i := 0; i < 200; i++ {
		require.NoError(t, c.Request(janus.NewRequest(janus.KindMessage), func(*janus.Message) {}))
	}
	seen := make(map[string]struct{})
	for _, frame := range ft.Sent() {
		var req janus.Request
		require.NoError(t, json.Unmarshal(frame.Data, &req))
		_, dup := seen[req.Transaction]
		require.False(t, dup)
		seen[req.Transaction] = struct{}{}
	}
	require.Equal(t, 200, c.PendingCount())
}
