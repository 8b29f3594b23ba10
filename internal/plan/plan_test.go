// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package plan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ZSC714725/convertqueue/internal/ffmpeg/caps"
	"github.com/ZSC714725/convertqueue/internal/ffmpeg/probe"
)

// fullSnapshot reports every encoder the catalog can ask for
var fullSnapshot = caps.Snapshot{
	VideoEncoders: []string{"gif", "libsvtav1", "libvpx-vp9", "libwebp", "libx264", "libx265", "mjpeg", "png", "prores_ks"},
	AudioEncoders: []string{"aac", "libmp3lame", "libopus", "pcm_s16le"},
	Formats:       []string{"gif", "image2", "ipod", "matroska", "mov", "mp3", "mp4", "webm", "webp"},
	Filters:       []string{"palettegen", "paletteuse", "scale", "subtitles"},
}

func planFor(t *testing.T, presetID string, tier Tier, summary probe.Summary) *Decision {
	t.Helper()
	p := NewPlanner(SoftwareStrategy{}, nil)
	return p.Plan(Request{
		Source:  "/media/in.mkv",
		Preset:  mustPreset(t, presetID),
		Tier:    tier,
		Summary: summary,
	}, fullSnapshot)
}

func containsFragment(list []string, fragment string) bool {
	for _, n := range list {
		if strings.Contains(n, fragment) {
			return true
		}
	}
	return false
}

func TestPlan_Remux(t *testing.T) {
	summary := probe.Summary{DurationSec: 60, VideoCodec: "h264", AudioCodec: "aac", HasTextSubs: true}
	d := planFor(t, "mkv-remux", TierBalanced, summary)

	assert.Equal(t, ActionCopy, d.VideoAction)
	assert.Equal(t, ActionCopy, d.AudioAction)
	assert.Equal(t, ActionCopy, d.SubtitleAction)
	assert.True(t, d.RemuxOnly)
	assert.False(t, d.Exclusive)
	assert.Empty(t, d.Warnings)

	assert.Equal(t, []string{
		"-hide_banner", "-nostdin", "-i", "/media/in.mkv",
		"-map", "0:v:0", "-map", "0:a:0", "-map", "0:s?",
		"-c:v", "copy", "-c:a", "copy", "-c:s", "copy",
		"-f", "matroska",
	}, d.Args)
}

func TestPlan_RemuxWithoutSubtitles(t *testing.T) {
	// no subtitle streams: still a pure remux, no -map 0:s? and no -sn
	summary := probe.Summary{VideoCodec: "h264", AudioCodec: "aac"}
	d := planFor(t, "mp4-remux", TierBalanced, summary)

	assert.True(t, d.RemuxOnly)
	assert.Equal(t, []string{
		"-hide_banner", "-nostdin", "-i", "/media/in.mkv",
		"-map", "0:v:0", "-map", "0:a:0",
		"-c:v", "copy", "-c:a", "copy",
		"-movflags", "+faststart",
		"-f", "mp4",
	}, d.Args)
}

func TestPlan_RemuxCodecMismatchWarns(t *testing.T) {
	// vp9 copied into mp4: the container rule does not list it
	summary := probe.Summary{VideoCodec: "vp9", AudioCodec: "aac"}
	d := planFor(t, "mp4-remux", TierBalanced, summary)

	assert.Equal(t, ActionCopy, d.VideoAction)
	assert.True(t, d.RemuxOnly)
	assert.True(t, containsFragment(d.Warnings, "does not list video codec 'vp9'"))
}

func TestPlan_Transcode(t *testing.T) {
	summary := probe.Summary{DurationSec: 60, VideoCodec: "hevc", AudioCodec: "flac"}
	d := planFor(t, "mp4-h264", TierBalanced, summary)

	assert.Equal(t, ActionTranscode, d.VideoAction)
	assert.Equal(t, "libx264", d.VideoEncoder)
	assert.Equal(t, ActionTranscode, d.AudioAction)
	assert.Equal(t, "aac", d.AudioEncoder)
	assert.Equal(t, ActionDrop, d.SubtitleAction, "convert with no source subtitles drops")
	assert.False(t, d.RemuxOnly)

	assert.Equal(t, []string{
		"-hide_banner", "-nostdin", "-i", "/media/in.mkv",
		"-map", "0:v:0", "-map", "0:a:0", "-sn",
		"-c:v", "libx264", "-crf", "23", "-profile:v", "high",
		"-c:a", "aac", "-b:a", "192k",
		"-movflags", "+faststart",
		"-f", "mp4",
	}, d.Args)
}

func TestPlan_CopyWhenCodecAlreadyMatches(t *testing.T) {
	summary := probe.Summary{VideoCodec: "h264", AudioCodec: "aac"}
	d := planFor(t, "mp4-h264", TierHigh, summary)

	assert.Equal(t, ActionCopy, d.VideoAction)
	assert.Empty(t, d.VideoEncoder)
	assert.Equal(t, ActionCopy, d.AudioAction)
	// subtitle mode is convert and the source has none, so not a remux
	assert.Equal(t, ActionDrop, d.SubtitleAction)
	assert.False(t, d.RemuxOnly)
	assert.Contains(t, d.Args, "copy")
	assert.NotContains(t, d.Args, "libx264")
}

func TestPlan_SubtitleConvert(t *testing.T) {
	summary := probe.Summary{VideoCodec: "h264", AudioCodec: "aac", HasTextSubs: true}
	d := planFor(t, "mp4-h264", TierBalanced, summary)

	assert.Equal(t, ActionConvert, d.SubtitleAction)
	assert.False(t, d.RemuxOnly)

	joined := strings.Join(d.Args, " ")
	assert.Contains(t, joined, "-map 0:s?")
	assert.Contains(t, joined, "-c:s mov_text", "mp4 text subtitle target")
}

func TestPlan_ImageSubtitlesCannotConvert(t *testing.T) {
	summary := probe.Summary{VideoCodec: "h264", AudioCodec: "aac", HasImageSubs: true}
	d := planFor(t, "mp4-h264", TierBalanced, summary)

	assert.Equal(t, ActionDrop, d.SubtitleAction)
	assert.True(t, containsFragment(d.Warnings, "image subtitles cannot be converted"))
	assert.Contains(t, d.Args, "-sn")
}

func TestPlan_BurnForcesTranscode(t *testing.T) {
	// source codec matches the preset target, so without burn-in this would
	// be a video copy
	summary := probe.Summary{DurationSec: 60, VideoCodec: "h264", AudioCodec: "aac", HasTextSubs: true}
	d := planFor(t, "mp4-h264-burn", TierBalanced, summary)

	assert.True(t, d.BurnIn)
	assert.Equal(t, ActionBurn, d.SubtitleAction)
	assert.Equal(t, ActionTranscode, d.VideoAction)
	assert.Equal(t, "libx264", d.VideoEncoder)
	assert.True(t, containsFragment(d.Notes, "re-encoded to burn"))
	assert.False(t, d.RemuxOnly)

	joined := strings.Join(d.Args, " ")
	assert.Contains(t, joined, "-sn", "burned subtitles never map as streams")
	assert.NotContains(t, joined, "subtitles=", "the filter is injected at spawn, not planned")
	assert.Contains(t, joined, "-crf 23")
}

func TestPlan_BurnWithoutTextSubtitles(t *testing.T) {
	summary := probe.Summary{VideoCodec: "h264", AudioCodec: "aac"}
	d := planFor(t, "mp4-h264-burn", TierBalanced, summary)

	assert.False(t, d.BurnIn)
	assert.Equal(t, ActionDrop, d.SubtitleAction)
	assert.Equal(t, ActionCopy, d.VideoAction, "no burn, copy stands")
	assert.True(t, containsFragment(d.Warnings, "no text subtitles"))
}

func TestPlan_BurnWithoutVideo(t *testing.T) {
	// text subtitles but no video stream to draw on
	summary := probe.Summary{AudioCodec: "aac", HasTextSubs: true}
	d := planFor(t, "mp4-h264-burn", TierBalanced, summary)

	assert.False(t, d.BurnIn)
	assert.Equal(t, ActionDrop, d.VideoAction)
	assert.Equal(t, ActionDrop, d.SubtitleAction)
	assert.True(t, containsFragment(d.Warnings, "no video stream to burn into"))
}

func TestPlan_TierFallback(t *testing.T) {
	tests := []struct {
		name      string
		preset    string
		tier      Tier
		note      string
		argNeeded string
	}{
		{"av1 has no fast tier", "mkv-av1", TierFast, "video tier 'fast' not defined; using 'balanced'", "-crf 30"},
		{"prores only has high", "mov-prores", TierBalanced, "video tier 'balanced' not defined; using 'high'", "-profile:v 3"},
		{"webp only has fast", "webp-anim", TierHigh, "video tier 'high' not defined; using 'fast'", "-quality 75"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := probe.Summary{DurationSec: 60, VideoCodec: "h264", AudioCodec: "flac", Fps: 30, Width: 1920}
			d := planFor(t, tt.preset, tt.tier, summary)

			assert.True(t, containsFragment(d.Notes, tt.note), "notes: %v", d.Notes)
			assert.Contains(t, strings.Join(d.Args, " "), tt.argNeeded)
		})
	}
}

func TestPlan_DefaultTier(t *testing.T) {
	summary := probe.Summary{VideoCodec: "hevc", AudioCodec: "flac"}
	p := NewPlanner(SoftwareStrategy{}, nil)
	d := p.Plan(Request{Source: "/in.mkv", Preset: mustPreset(t, "mp4-h264"), Summary: summary}, fullSnapshot)

	assert.Equal(t, TierBalanced, d.Tier)
	assert.Contains(t, strings.Join(d.Args, " "), "-crf 23")
}

func TestPlan_ExclusivePresets(t *testing.T) {
	summary := probe.Summary{VideoCodec: "h264", AudioCodec: "aac"}

	assert.True(t, planFor(t, "mkv-av1", TierBalanced, summary).Exclusive)
	assert.True(t, planFor(t, "mov-prores", TierHigh, summary).Exclusive)
	assert.False(t, planFor(t, "mp4-h264", TierBalanced, summary).Exclusive)
	assert.False(t, planFor(t, "mp4-remux", TierBalanced, summary).Exclusive)
}

func TestPlan_MissingVideoStream(t *testing.T) {
	summary := probe.Summary{AudioCodec: "flac"}
	d := planFor(t, "mp4-h264", TierBalanced, summary)

	assert.Equal(t, ActionDrop, d.VideoAction)
	assert.True(t, containsFragment(d.Warnings, "no video stream"))
	assert.Contains(t, d.Args, "-vn")
	assert.Equal(t, ActionTranscode, d.AudioAction, "audio side is planned independently")
}

func TestPlan_MissingAudioStream(t *testing.T) {
	summary := probe.Summary{VideoCodec: "hevc"}
	d := planFor(t, "mp4-h264", TierBalanced, summary)

	assert.Equal(t, ActionDrop, d.AudioAction)
	assert.True(t, containsFragment(d.Warnings, "no audio stream"))
	assert.Contains(t, d.Args, "-an")
}

func TestPlan_AudioOnlyPreset(t *testing.T) {
	summary := probe.Summary{DurationSec: 300, VideoCodec: "h264", AudioCodec: "flac"}
	d := planFor(t, "m4a-aac", TierBalanced, summary)

	assert.Equal(t, ActionDrop, d.VideoAction, "video policy 'none' always drops")
	assert.Empty(t, d.Warnings, "dropping by policy is not a warning")
	assert.Equal(t, ActionTranscode, d.AudioAction)

	assert.Equal(t, []string{
		"-hide_banner", "-nostdin", "-i", "/media/in.mkv",
		"-vn", "-map", "0:a:0", "-sn",
		"-c:a", "aac", "-b:a", "192k",
		"-movflags", "+faststart",
		"-f", "ipod",
	}, d.Args)
}

func TestPlan_Mp3Tiers(t *testing.T) {
	summary := probe.Summary{AudioCodec: "flac", Channels: 6}

	high := planFor(t, "mp3", TierHigh, summary)
	joined := strings.Join(high.Args, " ")
	assert.Contains(t, joined, "-c:a libmp3lame")
	assert.Contains(t, joined, "-q:a 0", "high tier is VBR")
	assert.Contains(t, joined, "-ac 2", "stereo downmix")
	assert.NotContains(t, joined, "-b:a")

	balanced := planFor(t, "mp3", TierBalanced, summary)
	assert.Contains(t, strings.Join(balanced.Args, " "), "-b:a 192k")
}

func TestPlan_Vp9Args(t *testing.T) {
	summary := probe.Summary{VideoCodec: "h264", AudioCodec: "aac"}
	d := planFor(t, "webm-vp9", TierBalanced, summary)

	joined := strings.Join(d.Args, " ")
	assert.Contains(t, joined, "-c:v libvpx-vp9")
	assert.Contains(t, joined, "-b:v 0", "constrained-quality mode needs the explicit zero bitrate")
	assert.Contains(t, joined, "-crf 31")
	assert.Contains(t, joined, "-c:a libopus")
	assert.True(t, strings.HasSuffix(joined, "-f webm"))
}

func TestPlan_CopyColorMetadata(t *testing.T) {
	summary := probe.Summary{
		VideoCodec: "hevc", AudioCodec: "aac",
		Color: &probe.Color{Primaries: "bt2020", Trc: "smpte2084", Space: "bt2020nc"},
	}
	d := planFor(t, "mp4-h264", TierBalanced, summary)

	joined := strings.Join(d.Args, " ")
	assert.Contains(t, joined, "-color_primaries bt2020")
	assert.Contains(t, joined, "-color_trc smpte2084")
	assert.Contains(t, joined, "-colorspace bt2020nc")
}

func TestPlan_NoColorArgsOnCopy(t *testing.T) {
	summary := probe.Summary{
		VideoCodec: "h264", AudioCodec: "aac",
		Color: &probe.Color{Primaries: "bt709"},
	}
	d := planFor(t, "mp4-h264", TierBalanced, summary)

	assert.Equal(t, ActionCopy, d.VideoAction)
	assert.NotContains(t, strings.Join(d.Args, " "), "-color_primaries")
}

func TestPlan_ImagePreset(t *testing.T) {
	summary := probe.Summary{VideoCodec: "h264", AudioCodec: "aac", Width: 1920, Height: 1080}
	d := planFor(t, "png-frame", TierBalanced, summary)

	assert.Equal(t, ActionTranscode, d.VideoAction)
	assert.Equal(t, "png", d.VideoEncoder)
	assert.Equal(t, ActionDrop, d.AudioAction)

	assert.Equal(t, []string{
		"-hide_banner", "-nostdin", "-i", "/media/in.mkv",
		"-map", "0:v:0", "-frames:v", "1",
		"-c:v", "png",
		"-an", "-sn",
		"-f", "image2",
	}, d.Args)
}

func TestPlan_ImagePresetJpegTiers(t *testing.T) {
	summary := probe.Summary{VideoCodec: "h264"}
	d := planFor(t, "jpg-frame", TierHigh, summary)

	joined := strings.Join(d.Args, " ")
	assert.Contains(t, joined, "-c:v mjpeg")
	assert.Contains(t, joined, "-q:v 2")
	assert.True(t, strings.HasSuffix(joined, "-f image2"))
}

func TestPlan_ImagePresetNoVideo(t *testing.T) {
	summary := probe.Summary{AudioCodec: "aac"}
	d := planFor(t, "png-frame", TierBalanced, summary)

	assert.Equal(t, ActionDrop, d.VideoAction)
	assert.True(t, containsFragment(d.Warnings, "no video stream"))
	assert.Contains(t, d.Args, "-vn")
}

func TestPlan_AnimatedGif(t *testing.T) {
	summary := probe.Summary{VideoCodec: "h264", Fps: 30, Width: 1920}
	d := planFor(t, "gif-anim", TierBalanced, summary)

	assert.Equal(t, ActionTranscode, d.VideoAction)
	assert.Equal(t, "gif", d.VideoEncoder)

	joined := strings.Join(d.Args, " ")
	// fps and width clamp down to the preset bounds
	assert.Contains(t, joined, "-filter_complex")
	assert.Contains(t, joined, "fps=12,scale=480:-1:flags=lanczos,split [a][b];[a] palettegen [p];[b][p] paletteuse")
	assert.Contains(t, joined, "-loop 0")
	assert.True(t, strings.HasSuffix(joined, "-f gif"))
}

func TestPlan_AnimatedClampsToSource(t *testing.T) {
	// a source below the bounds keeps its own fps and width
	summary := probe.Summary{VideoCodec: "h264", Fps: 10, Width: 320}
	d := planFor(t, "gif-anim", TierBalanced, summary)

	assert.Contains(t, strings.Join(d.Args, " "), "fps=10,scale=320:-1:flags=lanczos")
}

func TestPlan_AnimatedWebp(t *testing.T) {
	summary := probe.Summary{VideoCodec: "h264", Fps: 60, Width: 3840}
	d := planFor(t, "webp-anim", TierFast, summary)

	assert.Equal(t, "libwebp", d.VideoEncoder)

	joined := strings.Join(d.Args, " ")
	assert.NotContains(t, joined, "-filter_complex", "palette graph is gif-only")
	assert.Contains(t, joined, "-vf fps=15,scale=640:-1:flags=lanczos")
	assert.Contains(t, joined, "-quality 75")
	assert.True(t, strings.HasSuffix(joined, "-f webp"))
}

func TestPlan_MuxerAlwaysLast(t *testing.T) {
	summary := probe.Summary{VideoCodec: "h264", AudioCodec: "aac", HasTextSubs: true, Fps: 30, Width: 1920}

	tests := []struct {
		preset string
		muxer  string
	}{
		{"mp4-h264", "mp4"},
		{"mkv-remux", "matroska"},
		{"webm-vp9", "webm"},
		{"mov-prores", "mov"},
		{"m4a-aac", "ipod"},
		{"mp3", "mp3"},
		{"png-frame", "image2"},
		{"gif-anim", "gif"},
	}

	for _, tt := range tests {
		d := planFor(t, tt.preset, TierBalanced, summary)
		n := len(d.Args)
		assert.GreaterOrEqual(t, n, 2, "preset %s", tt.preset)
		assert.Equal(t, "-f", d.Args[n-2], "preset %s", tt.preset)
		assert.Equal(t, tt.muxer, d.Args[n-1], "preset %s", tt.preset)
	}
}

func TestPlan_MissingEncoderWarns(t *testing.T) {
	summary := probe.Summary{VideoCodec: "hevc", AudioCodec: "flac"}
	p := NewPlanner(SoftwareStrategy{}, nil)
	d := p.Plan(Request{
		Source:  "/in.mkv",
		Preset:  mustPreset(t, "mp4-h264"),
		Tier:    TierBalanced,
		Summary: summary,
	}, caps.Snapshot{})

	assert.True(t, containsFragment(d.Warnings, "'libx264' not reported"))
	assert.True(t, containsFragment(d.Warnings, "'aac' not reported"))
	assert.NotEmpty(t, d.Args, "planning never fails, execution is still attempted")
}
