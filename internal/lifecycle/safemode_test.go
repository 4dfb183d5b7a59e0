// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeMode(t *testing.T) {
	tmp := t.TempDir()

	marker := filepath.Join(tmp, "safemode")
	require.NoError(t, os.WriteFile(marker, nil, 0o644))

	cmdline := filepath.Join(tmp, "cmdline")
	require.NoError(t, os.WriteFile(cmdline, []byte("console=ttyS0 androidboot.safemode=1 quiet\n"), 0o644))

	tests := []struct {
		name string
		mode SafeMode
		want bool
	}{
		{name: "zero value", mode: SafeMode{}, want: false},
		{name: "forced", mode: SafeMode{Force: true}, want: true},
		{name: "marker present", mode: SafeMode{Markers: []string{filepath.Join(tmp, "missing"), marker}}, want: true},
		{name: "marker absent", mode: SafeMode{Markers: []string{filepath.Join(tmp, "missing"), ""}}, want: false},
		{
			name: "cmdline token",
			mode: SafeMode{CmdlinePath: cmdline, CmdlineTokens: []string{"androidboot.safemode=1"}},
			want: true,
		},
		{
			name: "token must match a whole field",
			mode: SafeMode{CmdlinePath: cmdline, CmdlineTokens: []string{"safemode=1"}},
			want: false,
		},
		{
			name: "unreadable cmdline",
			mode: SafeMode{CmdlinePath: filepath.Join(tmp, "missing"), CmdlineTokens: []string{"androidboot.safemode=1"}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.mode.Enabled())
			if tt.want {
				assert.NotEmpty(t, tt.mode.Reason())
			} else {
				assert.Empty(t, tt.mode.Reason())
			}
		})
	}
}
