// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ZSC714725/convertqueue/internal/apperr"
)

func TestValidator_AllowBlock(t *testing.T) {
	v, err := NewValidator([]string{"^-c:v$", "^libx26[45]$"}, []string{"[;|&]"})
	assert.NoError(t, err)

	assert.True(t, v.IsValid("-c:v"))
	assert.True(t, v.IsValid("libx264"))
	assert.True(t, v.IsValid("libx265"))
	assert.False(t, v.IsValid("-c:a"), "not on the allow list")
	assert.False(t, v.IsValid("libx264;rm"), "block wins over allow")
}

func TestValidator_BlockOnly(t *testing.T) {
	// with no allow expressions everything not blocked passes
	v, err := NewValidator(nil, []string{"[;|&]"})
	assert.NoError(t, err)

	assert.True(t, v.IsValid("anything goes"))
	assert.False(t, v.IsValid("a|b"))
}

func TestValidator_EmptyExpressionsIgnored(t *testing.T) {
	v, err := NewValidator([]string{"", "  "}, []string{""})
	assert.NoError(t, err)
	assert.True(t, v.IsValid("whatever"), "only empty expressions configured")
}

func TestValidator_BadExpression(t *testing.T) {
	_, err := NewValidator([]string{"["}, nil)
	assert.Error(t, err)

	_, err = NewValidator(nil, []string{"("})
	assert.Error(t, err)
}

func TestValidateArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		ok   bool
	}{
		{"typical transcode args", []string{"-hide_banner", "-nostdin", "-i", "/media/in file.mkv", "-c:v", "libx264", "-crf", "23", "/media/out.mp4.tmp"}, true},
		{"empty list", nil, false},
		{"semicolon", []string{"-i", "in.mkv; rm -rf /"}, false},
		{"pipe", []string{"-i", "in.mkv|cat"}, false},
		{"ampersand", []string{"-i", "in.mkv & echo"}, false},
		{"backtick", []string{"-i", "`id`.mkv"}, false},
		{"command substitution", []string{"$(whoami).mkv"}, false},
		{"dollar inside path is fine", []string{"/media/a$b.mkv"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArgs(tt.args)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Equal(t, apperr.CodeInvalidArgs, apperr.CodeOf(err))
			}
		})
	}
}
