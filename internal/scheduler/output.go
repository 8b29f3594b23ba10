// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZSC714725/convertqueue/internal/apperr"
	"github.com/ZSC714725/convertqueue/internal/plan"
)

// outputPathFor derives the final output path: configured output directory
// (or the source's directory), source stem, the preset's container as the
// extension. A name collision with the source gets an extra ".out".
func outputPathFor(source, outputDir string, preset plan.Preset) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	dir := outputDir
	if dir == "" {
		dir = filepath.Dir(source)
	}

	out := filepath.Join(dir, fmt.Sprintf("%s.%s", stem, preset.Container))
	if out == source {
		out = filepath.Join(dir, fmt.Sprintf("%s.out.%s", stem, preset.Container))
	}
	return out
}

// tempPathFor places the in-flight file next to the final one. The planner
// always pins the muxer with -f, so the .tmp extension never confuses
// FFmpeg.
func tempPathFor(finalPath string) string {
	return finalPath + ".tmp"
}

// prepareOutput validates the output location, creates parent directories,
// and probes write permission by touching the temp file. It returns the
// temp path the process should write to.
func prepareOutput(finalPath string) (string, error) {
	if !filepath.IsAbs(finalPath) {
		return "", apperr.Errorf(apperr.CodeOutputInvalid, "output path must be absolute: %s", finalPath)
	}
	// only a full ".." element escapes the directory; dotted file names are
	// legal
	for _, elem := range strings.Split(finalPath, string(filepath.Separator)) {
		if elem == ".." {
			return "", apperr.New(apperr.CodeOutputInvalid, "output path cannot contain '..'")
		}
	}

	if parent := filepath.Dir(finalPath); parent != "" {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return "", apperr.Wrap(apperr.CodeOutputDirectory, err,
				fmt.Sprintf("failed creating output directory %s", parent))
		}
	}

	temp := tempPathFor(finalPath)

	// Touch-and-remove also clears any stale temp left by a crashed run.
	f, err := os.Create(temp)
	if err != nil {
		if os.IsPermission(err) {
			return "", apperr.Wrap(apperr.CodeOutputPermission, err,
				fmt.Sprintf("unable to write output file at %s", finalPath))
		}
		return "", apperr.Wrap(apperr.CodeOutputPrepare, err,
			fmt.Sprintf("failed preparing output file %s", finalPath))
	}
	f.Close()
	os.Remove(temp)

	return temp, nil
}

// finalizeOutput moves the finished temp file onto the final path. Any
// pre-existing file at the destination is replaced.
func finalizeOutput(tempPath, finalPath string) error {
	if _, err := os.Stat(finalPath); err == nil {
		os.Remove(finalPath)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return apperr.Wrap(apperr.CodeFinalizeFailed, err, "failed to finalize output file")
	}
	return nil
}

// cleanupTemp drops a partial output, best effort
func cleanupTemp(tempPath string) {
	if tempPath != "" {
		os.Remove(tempPath)
	}
}
