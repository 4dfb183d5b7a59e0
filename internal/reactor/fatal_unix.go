// SPDX-License-Identifier: Apache-2.0

//go:build unix

package reactor

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isFatalWatchError reports watcher errors the watch cannot recover from: the inotify watch limit
// (ENOSPC) and the per-process or system-wide descriptor limits (EMFILE, ENFILE).
func isFatalWatchError(err error) bool {
	return errors.Is(err, unix.ENOSPC) ||
		errors.Is(err, unix.EMFILE) ||
		errors.Is(err, unix.ENFILE)
}
