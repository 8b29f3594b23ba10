// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package ffmpeg

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ZSC714725/convertqueue/internal/apperr"
)

// Validator validates if a string is eligible as part of an FFmpeg command line
type Validator interface {
	IsValid(text string) bool
}

type validator struct {
	allow []*regexp.Regexp
	block []*regexp.Regexp
}

// NewValidator creates a new Validator. Empty expressions are ignored.
func NewValidator(allow, block []string) (Validator, error) {
	v := &validator{}

	for _, exp := range allow {
		exp = strings.TrimSpace(exp)
		if exp == "" {
			continue
		}
		re, err := regexp.Compile(exp)
		if err != nil {
			return nil, fmt.Errorf("invalid allow expression '%s': %w", exp, err)
		}
		v.allow = append(v.allow, re)
	}

	for _, exp := range block {
		exp = strings.TrimSpace(exp)
		if exp == "" {
			continue
		}
		re, err := regexp.Compile(exp)
		if err != nil {
			return nil, fmt.Errorf("invalid block expression '%s': %w", exp, err)
		}
		v.block = append(v.block, re)
	}

	return v, nil
}

func (v *validator) IsValid(text string) bool {
	for _, e := range v.block {
		if e.MatchString(text) {
			return false
		}
	}
	if len(v.allow) == 0 {
		return true
	}
	for _, e := range v.allow {
		if e.MatchString(text) {
			return true
		}
	}
	return false
}

// Shell metacharacters never belong in an FFmpeg argument; their presence
// means the value was assembled from untrusted input.
var argBlock = []string{
	"[;|&`]",
	`^\$\(`,
}

var argValidator = func() Validator {
	v, err := NewValidator(nil, argBlock)
	if err != nil {
		panic(err)
	}
	return v
}()

// ValidateArgs rejects empty argument lists and arguments that carry shell
// metacharacters.
func ValidateArgs(args []string) error {
	if len(args) == 0 {
		return apperr.New(apperr.CodeInvalidArgs, "FFmpeg arguments must not be empty")
	}
	for _, arg := range args {
		if !argValidator.IsValid(arg) {
			return apperr.Errorf(apperr.CodeInvalidArgs, "unsafe argument detected: %s", arg)
		}
	}
	return nil
}
