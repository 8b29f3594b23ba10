// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package plan

import (
	"fmt"
	"strconv"
)

// muxers maps containers to the -f muxer name. The muxer is always emitted
// explicitly because the runner writes to a temp path whose extension says
// nothing about the target format.
var muxers = map[string]string{
	"mp4":  "mp4",
	"mkv":  "matroska",
	"webm": "webm",
	"mov":  "mov",
	"m4a":  "ipod",
	"mp3":  "mp3",
	"png":  "image2",
	"jpg":  "image2",
	"gif":  "gif",
	"webp": "webp",
}

func muxerFor(container string) string {
	if m, ok := muxers[container]; ok {
		return m
	}
	return container
}

// buildStandardArgs assembles the generic command line: globals, input,
// stream maps, per-stream codec args, container flags, muxer.
func buildStandardArgs(req Request, d *Decision, rule ContainerRule, videoParams VideoTierParams, audioParams AudioTierParams, subTarget string) []string {
	args := []string{"-hide_banner", "-nostdin", "-i", req.Source}

	if d.VideoAction == ActionDrop {
		args = append(args, "-vn")
	} else {
		args = append(args, "-map", "0:v:0")
	}
	if d.AudioAction == ActionDrop {
		args = append(args, "-an")
	} else {
		args = append(args, "-map", "0:a:0")
	}

	hasSubs := req.Summary.HasTextSubs || req.Summary.HasImageSubs
	switch d.SubtitleAction {
	case ActionCopy:
		if hasSubs {
			args = append(args, "-map", "0:s?")
		}
	case ActionConvert:
		args = append(args, "-map", "0:s?")
	default:
		// drop and burn: subtitles never map as output streams
		args = append(args, "-sn")
	}

	args = appendVideoArgs(args, d, req, videoParams)
	args = appendAudioArgs(args, d, req.Preset.Audio, audioParams)

	switch d.SubtitleAction {
	case ActionCopy:
		if hasSubs {
			args = append(args, "-c:s", "copy")
		}
	case ActionConvert:
		args = append(args, "-c:s", subTarget)
	}

	if rule.Faststart {
		args = append(args, "-movflags", "+faststart")
	}

	return append(args, "-f", muxerFor(req.Preset.Container))
}

// buildImageArgs exports exactly one frame
func buildImageArgs(req Request, d *Decision, params VideoTierParams) []string {
	args := []string{"-hide_banner", "-nostdin", "-i", req.Source}

	if d.VideoAction == ActionDrop {
		args = append(args, "-vn")
	} else {
		args = append(args, "-map", "0:v:0", "-frames:v", "1")
		if d.VideoAction == ActionCopy {
			args = append(args, "-c:v", "copy")
		} else {
			args = append(args, "-c:v", d.VideoEncoder)
			args = append(args, params.ExtraArgs...)
		}
	}

	args = append(args, "-an", "-sn")
	return append(args, "-f", muxerFor(req.Preset.Container))
}

// buildAnimatedArgs clamps frame rate and width. GIF goes through the
// two-pass palette graph; other targets take a plain filter chain.
func buildAnimatedArgs(req Request, d *Decision, params VideoTierParams, fps float64, width int) []string {
	args := []string{"-hide_banner", "-nostdin", "-i", req.Source}

	if d.VideoAction == ActionDrop {
		args = append(args, "-vn", "-an", "-sn")
		return append(args, "-f", muxerFor(req.Preset.Container))
	}

	chain := fmt.Sprintf("fps=%s,scale=%d:-1:flags=lanczos", formatFps(fps), width)
	if req.Preset.Container == "gif" {
		graph := fmt.Sprintf("[0:v] %s,split [a][b];[a] palettegen [p];[b][p] paletteuse", chain)
		args = append(args, "-filter_complex", graph)
	} else {
		args = append(args, "-map", "0:v:0", "-vf", chain)
	}

	args = append(args, "-c:v", d.VideoEncoder)
	args = append(args, params.ExtraArgs...)
	args = append(args, "-loop", "0", "-an", "-sn")
	return append(args, "-f", muxerFor(req.Preset.Container))
}

func appendVideoArgs(args []string, d *Decision, req Request, params VideoTierParams) []string {
	switch d.VideoAction {
	case ActionCopy:
		return append(args, "-c:v", "copy")
	case ActionTranscode:
		args = append(args, "-c:v", d.VideoEncoder)
		if params.Bitrate != "" {
			args = append(args, "-b:v", params.Bitrate)
		}
		if params.Maxrate != "" {
			args = append(args, "-maxrate", params.Maxrate)
		}
		if params.Bufsize != "" {
			args = append(args, "-bufsize", params.Bufsize)
		}
		if params.CRF > 0 {
			args = append(args, "-crf", strconv.Itoa(params.CRF))
		}
		if params.Profile != "" {
			args = append(args, "-profile:v", params.Profile)
		}
		args = append(args, params.ExtraArgs...)
		if req.Preset.Video.CopyColor && req.Summary.Color != nil {
			c := req.Summary.Color
			if c.Primaries != "" {
				args = append(args, "-color_primaries", c.Primaries)
			}
			if c.Trc != "" {
				args = append(args, "-color_trc", c.Trc)
			}
			if c.Space != "" {
				args = append(args, "-colorspace", c.Space)
			}
		}
	}
	return args
}

func appendAudioArgs(args []string, d *Decision, policy AudioPolicy, params AudioTierParams) []string {
	switch d.AudioAction {
	case ActionCopy:
		return append(args, "-c:a", "copy")
	case ActionTranscode:
		args = append(args, "-c:a", d.AudioEncoder)
		if params.Bitrate != "" {
			args = append(args, "-b:a", params.Bitrate)
		}
		if params.Quality != "" {
			args = append(args, "-q:a", params.Quality)
		}
		args = append(args, params.ExtraArgs...)
		if policy.StereoOnly {
			args = append(args, "-ac", "2")
		}
	}
	return args
}

func formatFps(fps float64) string {
	return strconv.FormatFloat(fps, 'g', -1, 64)
}
