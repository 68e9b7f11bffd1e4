package handle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeMediaDiff(t *testing.T) {
	off := false
	testCases := []struct {
		name    string
		media   MediaConfig
		current LocalTracks
		audio   TrackDiff
		video   TrackDiff
		err     error
	}{
		{
			name:  "nothing present adds requested media",
			media: MediaConfig{Audio: true, Video: true},
			audio: TrackDiff{Add: true},
			video: TrackDiff{Add: true},
		},
		{
			name:    "matching tracks are kept",
			media:   MediaConfig{Audio: true, Video: true},
			current: LocalTracks{MediaAudio: true, MediaVideo: true},
			audio:   TrackDiff{Keep: true},
			video:   TrackDiff{Keep: true},
		},
		{
			name:    "turning a medium off removes it",
			media:   MediaConfig{Audio: true, Video: true, VideoSend: &off},
			current: LocalTracks{MediaAudio: true, MediaVideo: true},
			audio:   TrackDiff{Keep: true},
			video:   TrackDiff{Remove: true},
		},
		{
			name:    "a medium left out keeps its track",
			media:   MediaConfig{Audio: true},
			current: LocalTracks{MediaAudio: true, MediaVideo: true},
			audio:   TrackDiff{Keep: true},
			video:   TrackDiff{Keep: true},
		},
		{
			name:    "disabling audio send removes it",
			media:   MediaConfig{Video: true, AudioSend: &off},
			current: LocalTracks{MediaAudio: true, MediaVideo: true},
			audio:   TrackDiff{Remove: true},
			video:   TrackDiff{Keep: true},
		},
		{
			name:    "explicit replace swaps the track",
			media:   MediaConfig{Audio: true, ReplaceAudio: true},
			current: LocalTracks{MediaAudio: true},
			audio:   TrackDiff{Replace: true},
			video:   TrackDiff{Keep: true},
		},
		{
			name:  "replace without a track adds one",
			media: MediaConfig{ReplaceVideo: true},
			audio: TrackDiff{Keep: true},
			video: TrackDiff{Add: true},
		},
		{
			name:    "explicit remove wins",
			media:   MediaConfig{Audio: true, RemoveAudio: true, ReplaceAudio: true},
			current: LocalTracks{MediaAudio: true},
			audio:   TrackDiff{Remove: true},
			video:   TrackDiff{Keep: true},
		},
		{
			name:    "adding over an existing track is rejected",
			media:   MediaConfig{Video: true, AddVideo: true},
			current: LocalTracks{MediaVideo: true},
			err:     ErrAlreadyPresent,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			diff, err := ComputeMediaDiff(tc.media, tc.current)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.audio, diff.Audio)
			require.Equal(t, tc.video, diff.Video)
		})
	}
}

func TestMediaDiffKeepAll(t *testing.T) {
	media := MediaConfig{Audio: true, Video: true}
	current := LocalTracks{MediaAudio: true, MediaVideo: true}

	first, err := ComputeMediaDiff(media, current)
	require.NoError(t, err)
	second, err := ComputeMediaDiff(media, current)
	require.NoError(t, err)

	require.True(t, first.KeepAll())
	require.Equal(t, first, second)
}

func TestMediaConfigDefaults(t *testing.T) {
	recvOnly := false
	media := MediaConfig{Audio: true, Video: true, VideoSend: &recvOnly}

	require.True(t, media.SendAudio())
	require.True(t, media.RecvAudio())
	require.False(t, media.SendVideo())
	require.True(t, media.RecvVideo())
}
