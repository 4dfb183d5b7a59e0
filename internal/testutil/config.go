// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"path/filepath"
	"testing"

	"github.com/hashgraph/kpmd/internal/config"
	"github.com/stretchr/testify/require"
)

// UseTestConfig installs a configuration rooted in a temporary directory and restores the
// previous one when the test ends. Safe mode detection reads a command line file that does not
// exist so the host's own boot state never leaks into a test.
func UseTestConfig(t *testing.T) config.Config {
	t.Helper()

	prev := config.Get()
	t.Cleanup(func() {
		_ = config.Set(&prev)
	})

	root := t.TempDir()
	cfg := config.Default()
	cfg.Modules.Dir = filepath.Join(root, "kpm")
	cfg.SafeMode.CmdlinePath = filepath.Join(root, "cmdline")
	cfg.Daemon.LockFile = filepath.Join(root, "kpmd.lock")
	cfg.Launcher.Binary = filepath.Join(root, "uid_scanner")
	cfg.Launcher.LinkDir = filepath.Join(root, "bin")
	cfg.Launcher.ServiceDir = filepath.Join(root, "service.d")
	require.NoError(t, config.Set(&cfg))

	return cfg
}
