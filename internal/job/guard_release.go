// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

//go:build !lifecycledebug

package job

// transitionGuard does nothing in release builds: an illegal transition is
// refused and reported to the caller, never fatal to the process.
func transitionGuard(id string, from, to Status) {}
