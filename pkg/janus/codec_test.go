package janus

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeReply(t *testing.T) {
	msg, err := Decode([]byte(`{"janus":"success","transaction":"abc","data":{"id":42}}`))
	require.NoError(t, err)
	require.Equal(t, KindSuccess, msg.Janus)
	require.True(t, msg.IsReply())
	require.Equal(t, "abc", msg.Transaction)
	require.Equal(t, uint64(42), msg.Data.ID)
	require.NoError(t, msg.Err())
}

func TestDecodeError(t *testing.T) {
	msg, err := Decode([]byte(`{"janus":"error","transaction":"abc","error":{"code":458,"reason":"No such session"}}`))
	require.NoError(t, err)

	var jerr *Error
	require.True(t, errors.As(msg.Err(), &jerr))
	require.Equal(t, JANUS_ERROR_SESSION_NOT_FOUND, jerr.Code)
	require.Equal(t, "No such session", jerr.Reason)
}

func TestDecodeEvents(t *testing.T) {
	t.Run("trickle", func(t *testing.T) {
		msg, err := Decode([]byte(`{"janus":"trickle","session_id":1,"sender":7,"candidate":{"candidate":"candidate:1 1 udp 1 1.1.1.1 5000 typ host","sdpMid":"0","sdpMLineIndex":0}}`))
		require.NoError(t, err)
		require.False(t, msg.IsReply())
		require.Equal(t, uint64(7), msg.Sender)
		require.NotNil(t, msg.Candidate)
		require.False(t, msg.Candidate.IsEndOfCandidates())
		require.Equal(t, uint16(0), *msg.Candidate.SdpMLineIndex)
	})

	t.Run("trickle completed", func(t *testing.T) {
		msg, err := Decode([]byte(`{"janus":"trickle","sender":7,"candidate":{"completed":true}}`))
		require.NoError(t, err)
		require.True(t, msg.Candidate.IsEndOfCandidates())
	})

	t.Run("plugin event", func(t *testing.T) {
		msg, err := Decode([]byte(`{"janus":"event","sender":7,"plugindata":{"plugin":"janus.plugin.videoroom","data":{"videoroom":"joined","room":1234}},"jsep":{"type":"answer","sdp":"v=0"}}`))
		require.NoError(t, err)
		require.True(t, msg.JSEP.IsAnswer())

		data := struct {
			VideoRoom string `json:"videoroom"`
			Room      uint64 `json:"room"`
		}{}
		require.NoError(t, DecodePluginData(msg, &data))
		require.Equal(t, "joined", data.VideoRoom)
		require.Equal(t, uint64(1234), data.Room)
	})
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode([]byte(`{"janus":`))
	var perr *ParseError
	require.True(t, errors.As(err, &perr))

	_, err = Decode([]byte(`{"transaction":"abc"}`))
	require.ErrorIs(t, err, ErrMissingKind)
}

func TestEncodeRequest(t *testing.T) {
	idx := uint16(1)
	req := NewRequest(KindTrickle)
	req.Transaction = "t1"
	req.SessionID = 10
	req.HandleID = 20
	req.Candidate = &Candidate{Candidate: "candidate:x", SdpMid: "1", SdpMLineIndex: &idx}

	data, err := Encode(req)
	require.NoError(t, err)

	fields := map[string]any{}
	require.NoError(t, json.Unmarshal(data, &fields))
	require.Equal(t, "trickle", fields["janus"])
	require.Equal(t, float64(10), fields["session_id"])
	require.Equal(t, float64(20), fields["handle_id"])
	require.NotContains(t, fields, "token")
	require.NotContains(t, fields, "body")
}

func TestTransactionID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := NewTransactionID()
		require.Len(t, id, transactionIDLength)
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestServerInfo(t *testing.T) {
	msg, err := Decode([]byte(`{"janus":"server_info","transaction":"x","name":"Janus WebRTC Server","version":1200,"version_string":"1.2.0","plugins":{"janus.plugin.videoroom":{"name":"JANUS VideoRoom plugin"}}}`))
	require.NoError(t, err)

	info, err := DecodeServerInfo(msg)
	require.NoError(t, err)
	require.True(t, info.HasPlugin("janus.plugin.videoroom"))
	require.False(t, info.HasPlugin("janus.plugin.echotest"))

	ok, err := info.AtLeast("1.0.0")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = info.AtLeast("1.3")
	require.NoError(t, err)
	require.False(t, ok)
}
