// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package plan

// ContainerRule describes what a container can carry. A nil codec list with
// the matching Any flag unset means the container takes no stream of that
// type at all (audio-only containers).
type ContainerRule struct {
	Container string   `json:"container"`
	Video     []string `json:"video,omitempty"`
	AnyVideo  bool     `json:"any_video,omitempty"`
	Audio     []string `json:"audio,omitempty"`
	AnyAudio  bool     `json:"any_audio,omitempty"`
	TextSubs  []string `json:"text_subs,omitempty"`
	ImageSubs []string `json:"image_subs,omitempty"`
	Faststart bool     `json:"faststart,omitempty"`
}

// AllowsVideo reports whether the container accepts the video codec
func (r ContainerRule) AllowsVideo(codec string) bool {
	if r.AnyVideo {
		return true
	}
	return contains(r.Video, codec)
}

// AllowsAudio reports whether the container accepts the audio codec
func (r ContainerRule) AllowsAudio(codec string) bool {
	if r.AnyAudio {
		return true
	}
	return contains(r.Audio, codec)
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

// 容器兼容表, 启动时构建一次
var containerRules = map[string]ContainerRule{
	"mp4": {
		Container: "mp4",
		Video:     []string{"h264", "hevc", "av1", "mpeg4"},
		Audio:     []string{"aac", "mp3", "ac3", "alac"},
		TextSubs:  []string{"mov_text"},
		Faststart: true,
	},
	"mkv": {
		Container: "mkv",
		AnyVideo:  true,
		AnyAudio:  true,
		TextSubs:  []string{"subrip", "srt", "ass", "ssa"},
		ImageSubs: []string{"hdmv_pgs_subtitle", "dvd_subtitle"},
	},
	"webm": {
		Container: "webm",
		Video:     []string{"vp8", "vp9", "av1"},
		Audio:     []string{"opus", "vorbis"},
		TextSubs:  []string{"webvtt"},
	},
	"mov": {
		Container: "mov",
		Video:     []string{"h264", "hevc", "prores", "mjpeg"},
		Audio:     []string{"aac", "alac", "pcm_s16le"},
		TextSubs:  []string{"mov_text"},
		Faststart: true,
	},
	"m4a": {
		Container: "m4a",
		Audio:     []string{"aac", "alac"},
		Faststart: true,
	},
	"mp3": {
		Container: "mp3",
		Audio:     []string{"mp3"},
	},
}

// Rules looks up the rule for a container. The second return is false for
// unknown containers; the planner then assumes compatibility and warns
// instead of failing.
func Rules(container string) (ContainerRule, bool) {
	rule, ok := containerRules[container]
	return rule, ok
}
