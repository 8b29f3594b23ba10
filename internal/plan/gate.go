// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package plan

import (
	"github.com/ZSC714725/convertqueue/internal/ffmpeg/caps"
)

// PresetIsAvailable reports whether the preset can run against the detected
// capability snapshot. Remux presets and copy/none policies never need an
// encoder, so they stay available even with an empty snapshot.
func PresetIsAvailable(preset Preset, snapshot caps.Snapshot, strategy EncoderStrategy) bool {
	if preset.RemuxOnly {
		return true
	}

	if codec := preset.Video.Codec; codec != "" && codec != "copy" && codec != "none" {
		encoder := strategy.EncoderFor(StreamVideo, codec, snapshot)
		if !snapshot.HasVideoEncoder(encoder) {
			return false
		}
	}

	if codec := preset.Audio.Codec; codec != "" && codec != "copy" && codec != "none" {
		encoder := strategy.EncoderFor(StreamAudio, codec, snapshot)
		if !snapshot.HasAudioEncoder(encoder) {
			return false
		}
	}

	return true
}

// AvailablePresets filters the catalog through PresetIsAvailable, keeping
// catalog order.
func AvailablePresets(snapshot caps.Snapshot, strategy EncoderStrategy) []Preset {
	var out []Preset
	for _, preset := range Catalog() {
		if PresetIsAvailable(preset, snapshot, strategy) {
			out = append(out, preset)
		}
	}
	return out
}
