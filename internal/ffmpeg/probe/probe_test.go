// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ZSC714725/convertqueue/internal/apperr"
)

func TestParse_FullDocument(t *testing.T) {
	raw := `{
		"streams": [
			{"codec_type": "video", "codec_name": "H264", "width": 1920, "height": 1080,
			 "avg_frame_rate": "30000/1001", "r_frame_rate": "30/1",
			 "color_primaries": "bt709", "color_transfer": "bt709", "color_space": "bt709"},
			{"codec_type": "audio", "codec_name": "AAC", "channels": 6},
			{"codec_type": "subtitle", "codec_name": "subrip"},
			{"codec_type": "subtitle", "codec_name": "hdmv_pgs_subtitle"}
		],
		"format": {"duration": "3600.5"}
	}`

	result, err := Parse([]byte(raw))
	assert.NoError(t, err)
	assert.JSONEq(t, raw, string(result.Raw))

	s := result.Summary
	assert.InDelta(t, 3600.5, s.DurationSec, 1e-9)
	assert.Equal(t, 1920, s.Width)
	assert.Equal(t, 1080, s.Height)
	assert.InDelta(t, 29.97, s.Fps, 0.01)
	assert.Equal(t, "h264", s.VideoCodec, "codec names are lowercased")
	assert.Equal(t, "aac", s.AudioCodec)
	assert.Equal(t, 6, s.Channels)
	assert.True(t, s.HasTextSubs)
	assert.True(t, s.HasImageSubs)
	assert.True(t, s.HasVideo())
	assert.True(t, s.HasAudio())

	assert.NotNil(t, s.Color)
	assert.Equal(t, "bt709", s.Color.Primaries)
	assert.Equal(t, "bt709", s.Color.Trc)
	assert.Equal(t, "bt709", s.Color.Space)
}

func TestParse_AudioOnly(t *testing.T) {
	raw := `{
		"streams": [{"codec_type": "audio", "codec_name": "FLAC", "channels": 2}],
		"format": {"duration": "240.0"}
	}`

	result, err := Parse([]byte(raw))
	assert.NoError(t, err)

	s := result.Summary
	assert.False(t, s.HasVideo())
	assert.True(t, s.HasAudio())
	assert.Equal(t, "flac", s.AudioCodec)
	assert.Equal(t, 0, s.Width)
	assert.Zero(t, s.Fps)
	assert.Nil(t, s.Color)
}

func TestParse_FrameRate(t *testing.T) {
	tests := []struct {
		name string
		avg  string
		r    string
		want float64
	}{
		{"rational avg", "24000/1001", "30/1", 23.976},
		{"avg missing falls back to r", "", "25/1", 25.0},
		{"plain decimal", "29.97", "", 29.97},
		{"zero denominator rejected", "0/0", "30/1", 0},
		{"garbage rejected", "abc", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := `{
				"streams": [{"codec_type": "video", "codec_name": "h264",
					"avg_frame_rate": "` + tt.avg + `", "r_frame_rate": "` + tt.r + `"}],
				"format": {}
			}`

			result, err := Parse([]byte(raw))
			assert.NoError(t, err)
			assert.InDelta(t, tt.want, result.Summary.Fps, 0.001)
		})
	}
}

func TestParse_FirstStreamWins(t *testing.T) {
	raw := `{
		"streams": [
			{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080},
			{"codec_type": "video", "codec_name": "mjpeg", "width": 300, "height": 300},
			{"codec_type": "audio", "codec_name": "aac", "channels": 2},
			{"codec_type": "audio", "codec_name": "ac3", "channels": 6}
		],
		"format": {"duration": "10"}
	}`

	result, err := Parse([]byte(raw))
	assert.NoError(t, err)
	assert.Equal(t, "h264", result.Summary.VideoCodec)
	assert.Equal(t, 1920, result.Summary.Width)
	assert.Equal(t, "aac", result.Summary.AudioCodec)
	assert.Equal(t, 2, result.Summary.Channels)
}

func TestParse_MissingDuration(t *testing.T) {
	raw := `{"streams": [], "format": {}}`

	result, err := Parse([]byte(raw))
	assert.NoError(t, err)
	assert.Zero(t, result.Summary.DurationSec)
	assert.False(t, result.Summary.HasVideo())
	assert.False(t, result.Summary.HasAudio())
}

func TestParse_InvalidJSON(t *testing.T) {
	_, err := Parse([]byte("not json at all"))
	assert.Error(t, err)
	assert.Equal(t, apperr.CodeProbeParseJSON, apperr.CodeOf(err))
}

func TestIsImageSubtitle(t *testing.T) {
	tests := []struct {
		codec string
		image bool
	}{
		{"hdmv_pgs_subtitle", true},
		{"dvd_subtitle", true},
		{"dvdsub", true},
		{"pgs", true},
		{"xsub", true},
		{"subrip", false},
		{"ass", false},
		{"mov_text", false},
		{"webvtt", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.image, isImageSubtitle(tt.codec), "codec %s", tt.codec)
	}
}
