// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package plan

import (
	"github.com/ZSC714725/convertqueue/internal/ffmpeg/caps"
)

// StreamKind selects the encoder table to consult
type StreamKind string

const (
	StreamVideo StreamKind = "video"
	StreamAudio StreamKind = "audio"
)

// EncoderStrategy maps a target codec to a concrete encoder name. The
// strategy is chosen when the planner is constructed, never per call.
type EncoderStrategy interface {
	Name() string
	EncoderFor(kind StreamKind, codec string, snapshot caps.Snapshot) string
}

// softwareEncoders maps target codecs to their software encoder. Codecs not
// listed encode under their own name.
var softwareEncoders = map[string]string{
	"h264":   "libx264",
	"hevc":   "libx265",
	"vp8":    "libvpx",
	"vp9":    "libvpx-vp9",
	"prores": "prores_ks",
	"webp":   "libwebp",
	"mp3":    "libmp3lame",
	"opus":   "libopus",
	"vorbis": "libvorbis",
}

// av1 has two common software encoders; prefer SVT when the binary reports
// it, fall back to aom.
const (
	av1Svt = "libsvtav1"
	av1Aom = "libaom-av1"
)

// SoftwareStrategy always picks the software encoder
type SoftwareStrategy struct{}

func (SoftwareStrategy) Name() string { return "software" }

func (SoftwareStrategy) EncoderFor(kind StreamKind, codec string, snapshot caps.Snapshot) string {
	if kind == StreamVideo && codec == "av1" {
		if !snapshot.HasVideoEncoder(av1Svt) && snapshot.HasVideoEncoder(av1Aom) {
			return av1Aom
		}
		return av1Svt
	}
	if name, ok := softwareEncoders[codec]; ok {
		return name
	}
	return codec
}

// hardwareEncoders lists hardware encoder candidates per codec in preference
// order: videotoolbox, nvenc, qsv, vaapi.
var hardwareEncoders = map[string][]string{
	"h264":   {"h264_videotoolbox", "h264_nvenc", "h264_qsv", "h264_vaapi"},
	"hevc":   {"hevc_videotoolbox", "hevc_nvenc", "hevc_qsv", "hevc_vaapi"},
	"av1":    {"av1_nvenc", "av1_qsv", "av1_vaapi"},
	"prores": {"prores_videotoolbox"},
}

// HardwareFirstStrategy picks the first hardware encoder the capability
// snapshot reports, falling back to the software choice. Audio always goes
// through the software table.
type HardwareFirstStrategy struct{}

func (HardwareFirstStrategy) Name() string { return "hardware-first" }

func (HardwareFirstStrategy) EncoderFor(kind StreamKind, codec string, snapshot caps.Snapshot) string {
	if kind == StreamVideo {
		for _, name := range hardwareEncoders[codec] {
			if snapshot.HasVideoEncoder(name) {
				return name
			}
		}
	}
	return SoftwareStrategy{}.EncoderFor(kind, codec, snapshot)
}

// StrategyByName resolves a configured strategy name; unknown names get the
// software strategy.
func StrategyByName(name string) EncoderStrategy {
	if name == "hardware-first" || name == "hardware" {
		return HardwareFirstStrategy{}
	}
	return SoftwareStrategy{}
}
