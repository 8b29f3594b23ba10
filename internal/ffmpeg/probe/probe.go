// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

// Package probe runs ffprobe against a media file and distills the JSON
// document into the summary the conversion planner consumes.
package probe

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ZSC714725/convertqueue/internal/apperr"
)

// Color carries the color metadata of the first video stream. Empty fields
// were not reported by ffprobe.
type Color struct {
	Primaries string `json:"primaries,omitempty"`
	Trc       string `json:"trc,omitempty"`
	Space     string `json:"space,omitempty"`
}

// Summary is the distilled view of a media file. Zero values mean the
// corresponding stream or field is absent; codec names are lowercased.
type Summary struct {
	DurationSec  float64 `json:"duration_sec"`
	Width        int     `json:"width,omitempty"`
	Height       int     `json:"height,omitempty"`
	Fps          float64 `json:"fps,omitempty"`
	VideoCodec   string  `json:"vcodec,omitempty"`
	AudioCodec   string  `json:"acodec,omitempty"`
	HasTextSubs  bool    `json:"has_text_subs"`
	HasImageSubs bool    `json:"has_image_subs"`
	Channels     int     `json:"channels,omitempty"`
	Color        *Color  `json:"color,omitempty"`
}

// HasVideo reports whether a video stream was found
func (s Summary) HasVideo() bool { return s.VideoCodec != "" }

// HasAudio reports whether an audio stream was found
func (s Summary) HasAudio() bool { return s.AudioCodec != "" }

// Result pairs the summary with the raw ffprobe document, kept for API
// consumers that want fields the summary drops.
type Result struct {
	Raw     json.RawMessage `json:"raw"`
	Summary Summary         `json:"summary"`
}

// ffprobe 输出的原始结构, 只映射需要的字段
type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeStream struct {
	CodecType      string `json:"codec_type"`
	CodecName      string `json:"codec_name"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	AvgFrameRate   string `json:"avg_frame_rate"`
	RFrameRate     string `json:"r_frame_rate"`
	Channels       int    `json:"channels"`
	ColorPrimaries string `json:"color_primaries"`
	ColorTransfer  string `json:"color_transfer"`
	ColorSpace     string `json:"color_space"`
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

// Run executes ffprobe on path and parses the result. The binary must
// already be resolved; see the ffmpeg facade for resolution.
func Run(ctx context.Context, binary, path string) (*Result, error) {
	cmd := exec.CommandContext(ctx, binary,
		"-hide_banner",
		"-loglevel", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	cmd.Env = []string{}

	out, err := cmd.Output()
	if err != nil {
		if exit, ok := err.(*exec.ExitError); ok {
			return nil, apperr.Errorf(apperr.CodeProbeExec,
				"ffprobe exited with status %d (stderr: %s)",
				exit.ExitCode(), strings.TrimSpace(string(exit.Stderr)))
		}
		return nil, apperr.Wrap(apperr.CodeProbeExec, err, "unable to execute ffprobe")
	}

	return Parse(out)
}

// Parse distills a raw ffprobe JSON document into a Result.
func Parse(raw []byte) (*Result, error) {
	var parsed ffprobeOutput
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, apperr.Wrap(apperr.CodeProbeParseJSON, err, "invalid ffprobe output")
	}

	return &Result{
		Raw:     json.RawMessage(append([]byte(nil), raw...)),
		Summary: summarize(&parsed),
	}, nil
}

// summarize picks the first video and audio streams, scans every stream for
// subtitles, and normalizes codec names to lowercase.
func summarize(data *ffprobeOutput) Summary {
	summary := Summary{}

	if sec, err := strconv.ParseFloat(data.Format.Duration, 64); err == nil {
		summary.DurationSec = sec
	}

	var video, audio *ffprobeStream
	for i := range data.Streams {
		stream := &data.Streams[i]
		switch stream.CodecType {
		case "video":
			if video == nil {
				video = stream
			}
		case "audio":
			if audio == nil {
				audio = stream
			}
		case "subtitle":
			if isImageSubtitle(strings.ToLower(stream.CodecName)) {
				summary.HasImageSubs = true
			} else {
				summary.HasTextSubs = true
			}
		}
	}

	if video != nil {
		summary.Width = video.Width
		summary.Height = video.Height
		summary.VideoCodec = strings.ToLower(video.CodecName)

		rate := video.AvgFrameRate
		if rate == "" {
			rate = video.RFrameRate
		}
		if fps, ok := parseFrameRate(rate); ok {
			summary.Fps = fps
		}

		if video.ColorPrimaries != "" || video.ColorTransfer != "" || video.ColorSpace != "" {
			summary.Color = &Color{
				Primaries: video.ColorPrimaries,
				Trc:       video.ColorTransfer,
				Space:     video.ColorSpace,
			}
		}
	}

	if audio != nil {
		summary.AudioCodec = strings.ToLower(audio.CodecName)
		summary.Channels = audio.Channels
	}

	return summary
}

// isImageSubtitle reports whether codec names a bitmap subtitle format. Those
// cannot be burned into video without OCR, so the planner treats them
// differently from text subtitles.
func isImageSubtitle(codec string) bool {
	switch codec {
	case "pgs", "hdmv_pgs_subtitle", "dvd_subtitle", "dvdsub", "xsub", "webp":
		return true
	}
	return false
}

// parseFrameRate accepts the rational "30000/1001" form and the plain
// decimal form. A zero denominator is rejected.
func parseFrameRate(value string) (float64, bool) {
	if value == "" {
		return 0, false
	}

	if num, den, found := strings.Cut(value, "/"); found {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, false
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil || d == 0 {
			return 0, false
		}
		return n / d, true
	}

	fps, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return fps, true
}
