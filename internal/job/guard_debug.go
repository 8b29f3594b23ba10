// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

//go:build lifecycledebug

package job

import "fmt"

// transitionGuard crashes debug builds on an illegal transition so lifecycle
// bugs surface immediately instead of being logged away.
func transitionGuard(id string, from, to Status) {
	panic(fmt.Sprintf("job %s: illegal transition %s -> %s", id, from, to))
}
