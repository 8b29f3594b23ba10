// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

// Package plan turns a probed media summary, a preset, and a quality tier
// into a concrete FFmpeg argument list. Planning never fails: problems are
// surfaced as warnings on the decision and execution is still attempted.
package plan

import (
	"fmt"
	"strings"

	"github.com/ZSC714725/convertqueue/internal/ffmpeg/caps"
	"github.com/ZSC714725/convertqueue/internal/ffmpeg/probe"
	"github.com/ZSC714725/convertqueue/internal/logger"
)

// Action classifies what happens to one stream
type Action string

const (
	ActionCopy      Action = "copy"
	ActionTranscode Action = "transcode"
	ActionDrop      Action = "drop"
	ActionConvert   Action = "convert" // subtitles only
	ActionBurn      Action = "burn"    // subtitles only
)

// Decision is the planner output: the argument list up to (but excluding)
// the progress flag and the output path, plus everything the scheduler and
// the API need to know about the planned run.
type Decision struct {
	PresetID       string   `json:"preset_id"`
	Container      string   `json:"container"`
	Tier           Tier     `json:"tier"`
	Args           []string `json:"args"`
	RemuxOnly      bool     `json:"remux_only"`
	Exclusive      bool     `json:"exclusive"`
	BurnIn         bool     `json:"burn_in,omitempty"`
	VideoAction    Action   `json:"video_action"`
	AudioAction    Action   `json:"audio_action"`
	SubtitleAction Action   `json:"subtitle_action"`
	VideoEncoder   string   `json:"video_encoder,omitempty"`
	AudioEncoder   string   `json:"audio_encoder,omitempty"`
	Notes          []string `json:"notes,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

func (d *Decision) notef(format string, args ...interface{}) {
	d.Notes = append(d.Notes, fmt.Sprintf(format, args...))
}

func (d *Decision) warnf(format string, args ...interface{}) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}

// Request carries everything the planner needs for one job
type Request struct {
	Source  string
	Preset  Preset
	Tier    Tier
	Summary probe.Summary
}

// Planner builds decisions. The encoder strategy is fixed at construction.
type Planner struct {
	strategy EncoderStrategy
	log      logger.Logger
}

// NewPlanner creates a Planner
func NewPlanner(strategy EncoderStrategy, log logger.Logger) *Planner {
	if strategy == nil {
		strategy = SoftwareStrategy{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Planner{strategy: strategy, log: log}
}

// Strategy returns the encoder strategy the planner was built with
func (p *Planner) Strategy() EncoderStrategy {
	return p.strategy
}

// Plan produces the decision for one job. Warnings are logged and attached;
// only the caller decides whether to run anyway (it always does).
func (p *Planner) Plan(req Request, snapshot caps.Snapshot) *Decision {
	tier := req.Tier
	if tier == "" {
		tier = TierBalanced
	}

	d := &Decision{
		PresetID:  req.Preset.ID,
		Container: req.Preset.Container,
		Tier:      tier,
		Exclusive: req.Preset.Exclusive(),
	}

	rule, known := Rules(req.Preset.Container)
	if !known {
		d.warnf("no container rule for '%s'; assuming compatibility", req.Preset.Container)
	}

	switch req.Preset.Kind {
	case KindImage:
		p.planImage(req, tier, snapshot, d)
	case KindAnimated:
		p.planAnimated(req, tier, snapshot, d)
	default:
		p.planStandard(req, tier, snapshot, rule, known, d)
	}

	for _, w := range d.Warnings {
		p.log.Warn("plan %s: %s", req.Preset.ID, w)
	}
	return d
}

// planStandard runs the generic per-stream algorithm: video and audio
// independently, then the subtitle mode, then remux classification.
func (p *Planner) planStandard(req Request, tier Tier, snapshot caps.Snapshot, rule ContainerRule, known bool, d *Decision) {
	summary := req.Summary
	preset := req.Preset

	var videoParams VideoTierParams
	vcodec := normalizeCodec(preset.Video.Codec)
	switch {
	case vcodec == "" || vcodec == "none":
		d.VideoAction = ActionDrop
	case !summary.HasVideo():
		d.VideoAction = ActionDrop
		d.warnf("preset expects video output but the source has no video stream; stream dropped")
	case vcodec == "copy" || summary.VideoCodec == vcodec:
		d.VideoAction = ActionCopy
		if known && !rule.AllowsVideo(summary.VideoCodec) {
			d.warnf("container '%s' does not list video codec '%s'; copy may fail",
				preset.Container, summary.VideoCodec)
		}
	default:
		d.VideoAction = ActionTranscode
		d.VideoEncoder = p.strategy.EncoderFor(StreamVideo, vcodec, snapshot)
		if !snapshot.HasVideoEncoder(d.VideoEncoder) {
			d.warnf("encoder '%s' not reported by ffmpeg; run may fail", d.VideoEncoder)
		}
		videoParams = resolveVideoTier(preset.Video, tier, d)
	}

	var audioParams AudioTierParams
	acodec := normalizeCodec(preset.Audio.Codec)
	switch {
	case acodec == "" || acodec == "none":
		d.AudioAction = ActionDrop
	case !summary.HasAudio():
		d.AudioAction = ActionDrop
		d.warnf("preset expects audio output but the source has no audio stream; stream dropped")
	case acodec == "copy" || summary.AudioCodec == acodec:
		d.AudioAction = ActionCopy
		if known && !rule.AllowsAudio(summary.AudioCodec) {
			d.warnf("container '%s' does not list audio codec '%s'; copy may fail",
				preset.Container, summary.AudioCodec)
		}
	default:
		d.AudioAction = ActionTranscode
		d.AudioEncoder = p.strategy.EncoderFor(StreamAudio, acodec, snapshot)
		if !snapshot.HasAudioEncoder(d.AudioEncoder) {
			d.warnf("encoder '%s' not reported by ffmpeg; run may fail", d.AudioEncoder)
		}
		audioParams = resolveAudioTier(preset.Audio, tier, d)
	}

	var subTarget string
	d.SubtitleAction, subTarget = subtitleDecision(preset.Subtitle, summary, rule, known, d)

	// Burn-in needs a re-encoded video stream to draw on. The filter itself
	// is injected at spawn time; here we only flip copy to transcode.
	if d.SubtitleAction == ActionBurn {
		d.BurnIn = true
		switch d.VideoAction {
		case ActionCopy:
			target := vcodec
			if target == "copy" {
				target = summary.VideoCodec
			}
			d.VideoAction = ActionTranscode
			d.VideoEncoder = p.strategy.EncoderFor(StreamVideo, target, snapshot)
			if !snapshot.HasVideoEncoder(d.VideoEncoder) {
				d.warnf("encoder '%s' not reported by ffmpeg; run may fail", d.VideoEncoder)
			}
			videoParams = resolveVideoTier(preset.Video, tier, d)
			d.notef("video re-encoded to burn subtitles")
		case ActionDrop:
			d.SubtitleAction = ActionDrop
			d.BurnIn = false
			d.warnf("burn-in requested but there is no video stream to burn into; subtitles dropped")
		}
	}

	d.RemuxOnly = d.VideoAction == ActionCopy &&
		d.AudioAction == ActionCopy &&
		d.SubtitleAction == ActionCopy

	d.Args = buildStandardArgs(req, d, rule, videoParams, audioParams, subTarget)
}

// planImage exports the first video frame. Audio and subtitles never map.
func (p *Planner) planImage(req Request, tier Tier, snapshot caps.Snapshot, d *Decision) {
	summary := req.Summary
	preset := req.Preset

	d.AudioAction = ActionDrop
	d.SubtitleAction = ActionDrop

	var params VideoTierParams
	vcodec := normalizeCodec(preset.Video.Codec)
	switch {
	case !summary.HasVideo():
		d.VideoAction = ActionDrop
		d.warnf("preset expects video output but the source has no video stream; stream dropped")
	case summary.VideoCodec == vcodec:
		d.VideoAction = ActionCopy
	default:
		d.VideoAction = ActionTranscode
		d.VideoEncoder = p.strategy.EncoderFor(StreamVideo, vcodec, snapshot)
		if !snapshot.HasVideoEncoder(d.VideoEncoder) {
			d.warnf("encoder '%s' not reported by ffmpeg; run may fail", d.VideoEncoder)
		}
		params = resolveVideoTier(preset.Video, tier, d)
	}

	d.Args = buildImageArgs(req, d, params)
}

// planAnimated builds the clamped animation export. The filter graph forces
// a re-encode, so the video action is always transcode.
func (p *Planner) planAnimated(req Request, tier Tier, snapshot caps.Snapshot, d *Decision) {
	summary := req.Summary
	preset := req.Preset

	d.AudioAction = ActionDrop
	d.SubtitleAction = ActionDrop

	if !summary.HasVideo() {
		d.VideoAction = ActionDrop
		d.warnf("preset expects video output but the source has no video stream; stream dropped")
		d.Args = buildAnimatedArgs(req, d, VideoTierParams{}, 0, 0)
		return
	}

	vcodec := normalizeCodec(preset.Video.Codec)
	d.VideoAction = ActionTranscode
	d.VideoEncoder = p.strategy.EncoderFor(StreamVideo, vcodec, snapshot)
	if !snapshot.HasVideoEncoder(d.VideoEncoder) {
		d.warnf("encoder '%s' not reported by ffmpeg; run may fail", d.VideoEncoder)
	}
	params := resolveVideoTier(preset.Video, tier, d)

	fps := preset.MaxFps
	if summary.Fps > 0 && summary.Fps < fps {
		fps = summary.Fps
	}
	width := preset.MaxWidth
	if summary.Width > 0 && summary.Width < width {
		width = summary.Width
	}

	d.Args = buildAnimatedArgs(req, d, params, fps, width)
}

// subtitleDecision resolves the subtitle mode against what the source
// actually carries. The returned target codec is only set for convert.
func subtitleDecision(mode SubtitleMode, summary probe.Summary, rule ContainerRule, known bool, d *Decision) (Action, string) {
	hasSubs := summary.HasTextSubs || summary.HasImageSubs

	switch mode {
	case SubKeep:
		if !hasSubs {
			return ActionCopy, "" // nothing to carry, still a pure copy
		}
		if known {
			if summary.HasTextSubs && len(rule.TextSubs) == 0 {
				d.warnf("container '%s' does not carry text subtitles; muxing may fail", rule.Container)
			}
			if summary.HasImageSubs && len(rule.ImageSubs) == 0 {
				d.warnf("container '%s' does not carry image subtitles; muxing may fail", rule.Container)
			}
		}
		return ActionCopy, ""
	case SubConvert:
		if !hasSubs {
			return ActionDrop, ""
		}
		if summary.HasImageSubs && !summary.HasTextSubs {
			d.warnf("image subtitles cannot be converted to text; subtitles dropped")
			return ActionDrop, ""
		}
		target := "srt"
		if known && len(rule.TextSubs) > 0 {
			target = rule.TextSubs[0]
		}
		return ActionConvert, target
	case SubBurn:
		if !summary.HasTextSubs {
			d.warnf("burn-in requested but the source has no text subtitles; subtitles dropped")
			return ActionDrop, ""
		}
		return ActionBurn, ""
	}

	return ActionDrop, ""
}

// resolveVideoTier picks the closest defined tier, recording a fallback note
// when the requested one is missing. Presets without tiers resolve to empty
// parameters silently.
func resolveVideoTier(policy VideoPolicy, requested Tier, d *Decision) VideoTierParams {
	if len(policy.Tiers) == 0 {
		return VideoTierParams{}
	}
	if params, ok := policy.Tiers[requested]; ok {
		return params
	}
	for _, t := range tierFallback {
		if t == requested {
			continue
		}
		if params, ok := policy.Tiers[t]; ok {
			d.notef("video tier '%s' not defined; using '%s'", requested, t)
			return params
		}
	}
	return VideoTierParams{}
}

func resolveAudioTier(policy AudioPolicy, requested Tier, d *Decision) AudioTierParams {
	if len(policy.Tiers) == 0 {
		return AudioTierParams{}
	}
	if params, ok := policy.Tiers[requested]; ok {
		return params
	}
	for _, t := range tierFallback {
		if t == requested {
			continue
		}
		if params, ok := policy.Tiers[t]; ok {
			d.notef("audio tier '%s' not defined; using '%s'", requested, t)
			return params
		}
	}
	return AudioTierParams{}
}

func normalizeCodec(codec string) string {
	return strings.ToLower(strings.TrimSpace(codec))
}
