package simulcast

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const chromeOffer = "v=0\r\n" +
	"o=- 4611731400430051336 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"a=group:BUNDLE 0 1\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:0\r\n" +
	"a=sendrecv\r\n" +
	"a=rtpmap:111 opus/48000/2\r\n" +
	"a=ssrc:1111 cname:abc\r\n" +
	"m=video 9 UDP/TLS/RTP/SAVPF 96 97\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:1\r\n" +
	"a=sendrecv\r\n" +
	"a=rtpmap:96 VP8/90000\r\n" +
	"a=rtpmap:97 rtx/90000\r\n" +
	"a=fmtp:97 apt=96\r\n" +
	"a=ssrc-group:FID 2222 3333\r\n" +
	"a=ssrc:2222 cname:abc\r\n" +
	"a=ssrc:2222 msid:stream track\r\n" +
	"a=ssrc:3333 cname:abc\r\n" +
	"a=ssrc:3333 msid:stream track\r\n" +
	"m=application 9 UDP/DTLS/SCTP webrtc-datachannel\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:2\r\n"

func TestInjectAddsSimulcastGroup(t *testing.T) {
	out, err := Inject(chromeOffer, 2)
	require.NoError(t, err)

	sim := regexp.MustCompile(`a=ssrc-group:SIM (\d+) (\d+) (\d+)`).FindStringSubmatch(out)
	require.NotNil(t, sim)
	require.Equal(t, "2222", sim[1])
	require.NotEqual(t, sim[2], sim[3])

	// one FID group per layer, cname and msid per ssrc
	require.Equal(t, 3, strings.Count(out, "a=ssrc-group:FID"))
	require.Equal(t, 6, strings.Count(out, "cname:abc")-1)
	require.Equal(t, 6, strings.Count(out, "msid:stream track"))

	// the group lands before the next m-line
	require.Less(t, strings.Index(out, "a=ssrc-group:SIM"), strings.Index(out, "m=application"))
	require.Greater(t, strings.Index(out, "a=ssrc-group:SIM"), strings.Index(out, "m=video"))

	// audio section untouched
	require.Contains(t, out, "a=ssrc:1111 cname:abc")
}

func TestInjectFIDAfterSSRCLines(t *testing.T) {
	fidLine := "a=ssrc-group:FID 2222 3333\r\n"
	offer := strings.Replace(chromeOffer, fidLine, "", 1)
	offer = strings.Replace(offer, "m=application", fidLine+"m=application", 1)
	require.Less(t, strings.Index(offer, "a=ssrc:3333"), strings.Index(offer, "a=ssrc-group:FID"))

	out, err := Inject(offer, 2)
	require.NoError(t, err)

	require.Regexp(t, `a=ssrc-group:SIM 2222 \d+ \d+\r\n`, out)
	require.Equal(t, 1, strings.Count(out, "a=ssrc:3333 cname:abc"))
	require.Equal(t, 1, strings.Count(out, "a=ssrc:2222 cname:abc"))
	require.Equal(t, 1, strings.Count(out, "a=ssrc-group:FID 2222 3333"))
	require.Equal(t, 3, strings.Count(out, "a=ssrc-group:FID"))
}

func TestInjectSingleLayer(t *testing.T) {
	out, err := Inject(chromeOffer, 1)
	require.NoError(t, err)
	require.Regexp(t, `a=ssrc-group:SIM 2222 \d+\r\n`, out)
}

func TestInjectLastSection(t *testing.T) {
	offer := strings.Split(chromeOffer, "m=application")[0]
	out, err := Inject(offer, 2)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(out, "\r\n"))
	require.Contains(t, out, "a=ssrc-group:SIM 2222 ")
}

func TestInjectIsNoopWhenAlreadySimulcast(t *testing.T) {
	once, err := Inject(chromeOffer, 2)
	require.NoError(t, err)

	twice, err := Inject(once, 2)
	require.NoError(t, err)
	require.Equal(t, once, twice)
}

func TestInjectIsNoopWithoutVideo(t *testing.T) {
	offer := strings.Split(chromeOffer, "m=video")[0]
	out, err := Inject(offer, 2)
	require.NoError(t, err)
	require.Equal(t, offer, out)
}

func TestInjectRejectsInvalidInput(t *testing.T) {
	_, err := Inject("not an sdp", 2)
	require.Error(t, err)

	_, err = Inject(chromeOffer, 3)
	require.ErrorIs(t, err, ErrInvalidLayers)
}

func TestEncodings(t *testing.T) {
	encodings := Encodings(nil)
	require.Equal(t, []Encoding{
		{Rid: "h", MaxBitrate: 900_000, ScaleResolutionDownBy: 1},
		{Rid: "m", MaxBitrate: 300_000, ScaleResolutionDownBy: 2},
		{Rid: "m", MaxBitrate: 100_000, ScaleResolutionDownBy: 4},
	}, encodings)
	require.True(t, HasDuplicateRids(encodings))

	encodings = Encodings([]string{"f", "h", "q"})
	require.Equal(t, "q", encodings[2].Rid)
	require.False(t, HasDuplicateRids(encodings))
}
