// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"fmt"
	"os"
	"strings"
)

const DefaultCmdlinePath = "/proc/cmdline"

// SafeModeProbe reports whether the host is running degraded and modules must be quarantined
// instead of loaded.
type SafeModeProbe interface {
	Enabled() bool
}

// SafeMode detects safe mode from a forced flag, marker files and kernel command line tokens.
// Any one of them is enough.
type SafeMode struct {
	Force         bool
	Markers       []string
	CmdlinePath   string
	CmdlineTokens []string
}

func (s SafeMode) Enabled() bool {
	return s.Reason() != ""
}

// Reason describes why safe mode is on, or returns "" when it is off.
func (s SafeMode) Reason() string {
	if s.Force {
		return "forced by configuration"
	}

	for _, marker := range s.Markers {
		if marker == "" {
			continue
		}
		if _, err := os.Stat(marker); err == nil {
			return fmt.Sprintf("marker file %s is present", marker)
		}
	}

	if len(s.CmdlineTokens) == 0 {
		return ""
	}

	path := s.CmdlinePath
	if path == "" {
		path = DefaultCmdlinePath
	}

	// an unreadable command line is treated as a normal boot
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	for _, field := range strings.Fields(string(b)) {
		for _, token := range s.CmdlineTokens {
			if field == token {
				return fmt.Sprintf("kernel command line contains %s", token)
			}
		}
	}

	return ""
}
