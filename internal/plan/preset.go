// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package plan

// Tier names a quality/performance point
type Tier string

const (
	TierFast     Tier = "fast"
	TierBalanced Tier = "balanced"
	TierHigh     Tier = "high"
)

// tierFallback is the fixed priority order used when a preset does not
// define the requested tier.
var tierFallback = []Tier{TierBalanced, TierFast, TierHigh}

// VideoTierParams holds per-tier video encoder parameters. Zero values are
// omitted from the command line.
type VideoTierParams struct {
	Bitrate   string   `json:"bitrate,omitempty"`
	Maxrate   string   `json:"maxrate,omitempty"`
	Bufsize   string   `json:"bufsize,omitempty"`
	CRF       int      `json:"crf,omitempty"`
	Profile   string   `json:"profile,omitempty"`
	ExtraArgs []string `json:"extra_args,omitempty"`
}

// AudioTierParams holds per-tier audio encoder parameters
type AudioTierParams struct {
	Bitrate   string   `json:"bitrate,omitempty"`
	Quality   string   `json:"quality,omitempty"` // -q:a 值, VBR 模式
	ExtraArgs []string `json:"extra_args,omitempty"`
}

// VideoPolicy describes the video side of a preset. Codec "copy" keeps the
// source stream, "none" drops it.
type VideoPolicy struct {
	Codec     string                   `json:"codec"`
	Tiers     map[Tier]VideoTierParams `json:"tiers,omitempty"`
	CopyColor bool                     `json:"copy_color,omitempty"`
}

// AudioPolicy describes the audio side of a preset
type AudioPolicy struct {
	Codec      string                   `json:"codec"`
	Tiers      map[Tier]AudioTierParams `json:"tiers,omitempty"`
	StereoOnly bool                     `json:"stereo_only,omitempty"`
}

// SubtitleMode selects how subtitle streams are handled
type SubtitleMode string

const (
	SubKeep    SubtitleMode = "keep"
	SubConvert SubtitleMode = "convert"
	SubBurn    SubtitleMode = "burn"
	SubDrop    SubtitleMode = "drop"
)

// OutputKind separates the generic video/audio path from the specialized
// image exports.
type OutputKind string

const (
	KindStandard OutputKind = "standard"
	KindImage    OutputKind = "image"    // single frame
	KindAnimated OutputKind = "animated" // fps/width clamped animation
)

// exclusiveCodecs are encode targets expensive enough that nothing else may
// run alongside them.
var exclusiveCodecs = map[string]bool{
	"av1":    true,
	"prores": true,
}

// Preset is one output target. Presets are built once at startup and never
// mutated; jobs reference them by id.
type Preset struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Container    string       `json:"container"`
	Kind         OutputKind   `json:"kind"`
	Video        VideoPolicy  `json:"video"`
	Audio        AudioPolicy  `json:"audio"`
	Subtitle     SubtitleMode `json:"subtitle"`
	RemuxOnly    bool         `json:"remux_only,omitempty"`
	Experimental bool         `json:"experimental,omitempty"`

	// bounds for the animated kind
	MaxFps   float64 `json:"max_fps,omitempty"`
	MaxWidth int     `json:"max_width,omitempty"`
}

// Exclusive reports whether jobs for this preset must run alone
func (p Preset) Exclusive() bool {
	return exclusiveCodecs[p.Video.Codec]
}

// catalog is ordered; the API and the capability gate preserve this order.
var catalog = []Preset{
	{
		ID: "mp4-h264", Name: "MP4 (H.264)", Container: "mp4", Kind: KindStandard,
		Video: VideoPolicy{
			Codec: "h264",
			Tiers: map[Tier]VideoTierParams{
				TierFast:     {CRF: 28, Profile: "main"},
				TierBalanced: {CRF: 23, Profile: "high"},
				TierHigh:     {CRF: 18, Profile: "high"},
			},
			CopyColor: true,
		},
		Audio: AudioPolicy{
			Codec: "aac",
			Tiers: map[Tier]AudioTierParams{
				TierFast:     {Bitrate: "128k"},
				TierBalanced: {Bitrate: "192k"},
				TierHigh:     {Bitrate: "256k"},
			},
		},
		Subtitle: SubConvert,
	},
	{
		ID: "mp4-hevc", Name: "MP4 (HEVC)", Container: "mp4", Kind: KindStandard,
		Video: VideoPolicy{
			Codec: "hevc",
			Tiers: map[Tier]VideoTierParams{
				TierFast:     {CRF: 30, Profile: "main"},
				TierBalanced: {CRF: 26, Profile: "main"},
				TierHigh:     {CRF: 21, Profile: "main"},
			},
			CopyColor: true,
		},
		Audio: AudioPolicy{
			Codec: "aac",
			Tiers: map[Tier]AudioTierParams{
				TierFast:     {Bitrate: "128k"},
				TierBalanced: {Bitrate: "192k"},
				TierHigh:     {Bitrate: "256k"},
			},
		},
		Subtitle: SubConvert,
	},
	{
		ID: "mp4-h264-burn", Name: "MP4 (H.264, burned subtitles)", Container: "mp4", Kind: KindStandard,
		Video: VideoPolicy{
			Codec: "h264",
			Tiers: map[Tier]VideoTierParams{
				TierFast:     {CRF: 28, Profile: "main"},
				TierBalanced: {CRF: 23, Profile: "high"},
				TierHigh:     {CRF: 18, Profile: "high"},
			},
			CopyColor: true,
		},
		Audio: AudioPolicy{
			Codec: "aac",
			Tiers: map[Tier]AudioTierParams{
				TierBalanced: {Bitrate: "192k"},
			},
		},
		Subtitle: SubBurn,
	},
	{
		ID: "mkv-av1", Name: "MKV (AV1)", Container: "mkv", Kind: KindStandard,
		Video: VideoPolicy{
			Codec: "av1",
			Tiers: map[Tier]VideoTierParams{
				TierBalanced: {CRF: 30},
				TierHigh:     {CRF: 24},
			},
			CopyColor: true,
		},
		Audio: AudioPolicy{
			Codec: "opus",
			Tiers: map[Tier]AudioTierParams{
				TierBalanced: {Bitrate: "128k"},
				TierHigh:     {Bitrate: "192k"},
			},
		},
		Subtitle: SubKeep,
	},
	{
		ID: "webm-vp9", Name: "WebM (VP9)", Container: "webm", Kind: KindStandard,
		Video: VideoPolicy{
			Codec: "vp9",
			Tiers: map[Tier]VideoTierParams{
				TierFast:     {CRF: 36, Bitrate: "0"},
				TierBalanced: {CRF: 31, Bitrate: "0"},
				TierHigh:     {CRF: 24, Bitrate: "0"},
			},
			CopyColor: true,
		},
		Audio: AudioPolicy{
			Codec: "opus",
			Tiers: map[Tier]AudioTierParams{
				TierFast:     {Bitrate: "96k"},
				TierBalanced: {Bitrate: "128k"},
				TierHigh:     {Bitrate: "192k"},
			},
		},
		Subtitle: SubDrop,
	},
	{
		ID: "mov-prores", Name: "MOV (ProRes)", Container: "mov", Kind: KindStandard,
		Video: VideoPolicy{
			Codec: "prores",
			Tiers: map[Tier]VideoTierParams{
				TierHigh: {Profile: "3"},
			},
			CopyColor: true,
		},
		Audio: AudioPolicy{
			Codec: "pcm_s16le",
		},
		Subtitle: SubDrop,
	},
	{
		ID: "mp4-remux", Name: "MP4 (remux)", Container: "mp4", Kind: KindStandard,
		Video:     VideoPolicy{Codec: "copy"},
		Audio:     AudioPolicy{Codec: "copy"},
		Subtitle:  SubKeep,
		RemuxOnly: true,
	},
	{
		ID: "mkv-remux", Name: "MKV (remux)", Container: "mkv", Kind: KindStandard,
		Video:     VideoPolicy{Codec: "copy"},
		Audio:     AudioPolicy{Codec: "copy"},
		Subtitle:  SubKeep,
		RemuxOnly: true,
	},
	{
		ID: "m4a-aac", Name: "M4A (AAC audio)", Container: "m4a", Kind: KindStandard,
		Video: VideoPolicy{Codec: "none"},
		Audio: AudioPolicy{
			Codec: "aac",
			Tiers: map[Tier]AudioTierParams{
				TierFast:     {Bitrate: "128k"},
				TierBalanced: {Bitrate: "192k"},
				TierHigh:     {Bitrate: "256k"},
			},
		},
		Subtitle: SubDrop,
	},
	{
		ID: "mp3", Name: "MP3 (audio)", Container: "mp3", Kind: KindStandard,
		Video: VideoPolicy{Codec: "none"},
		Audio: AudioPolicy{
			Codec: "mp3",
			Tiers: map[Tier]AudioTierParams{
				TierFast:     {Quality: "5"},
				TierBalanced: {Bitrate: "192k"},
				TierHigh:     {Quality: "0"},
			},
			StereoOnly: true,
		},
		Subtitle: SubDrop,
	},
	{
		ID: "png-frame", Name: "PNG (first frame)", Container: "png", Kind: KindImage,
		Video:    VideoPolicy{Codec: "png"},
		Audio:    AudioPolicy{Codec: "none"},
		Subtitle: SubDrop,
	},
	{
		ID: "jpg-frame", Name: "JPEG (first frame)", Container: "jpg", Kind: KindImage,
		Video: VideoPolicy{
			Codec: "mjpeg",
			Tiers: map[Tier]VideoTierParams{
				TierFast:     {ExtraArgs: []string{"-q:v", "5"}},
				TierBalanced: {ExtraArgs: []string{"-q:v", "3"}},
				TierHigh:     {ExtraArgs: []string{"-q:v", "2"}},
			},
		},
		Audio:    AudioPolicy{Codec: "none"},
		Subtitle: SubDrop,
	},
	{
		ID: "gif-anim", Name: "GIF (animated)", Container: "gif", Kind: KindAnimated,
		Video:    VideoPolicy{Codec: "gif"},
		Audio:    AudioPolicy{Codec: "none"},
		Subtitle: SubDrop,
		MaxFps:   12,
		MaxWidth: 480,
	},
	{
		ID: "webp-anim", Name: "WebP (animated)", Container: "webp", Kind: KindAnimated,
		Video: VideoPolicy{
			Codec: "webp",
			Tiers: map[Tier]VideoTierParams{
				TierFast: {ExtraArgs: []string{"-quality", "75"}},
			},
		},
		Audio:        AudioPolicy{Codec: "none"},
		Subtitle:     SubDrop,
		Experimental: true,
		MaxFps:       15,
		MaxWidth:     640,
	},
}

// Catalog returns the ordered built-in presets
func Catalog() []Preset {
	out := make([]Preset, len(catalog))
	copy(out, catalog)
	return out
}

// PresetByID looks up a preset
func PresetByID(id string) (Preset, bool) {
	for _, p := range catalog {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}

// ParseTier maps a request string onto a known tier. Empty picks the
// default.
func ParseTier(value string) (Tier, bool) {
	switch Tier(value) {
	case "":
		return TierBalanced, true
	case TierFast, TierBalanced, TierHigh:
		return Tier(value), true
	}
	return "", false
}
