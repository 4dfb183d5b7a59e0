// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kpmd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/data/adb/kpm", cfg.Modules.ModuleDir().Path)
	assert.Equal(t, ".kpm", cfg.Modules.ModuleDir().Extension)
	assert.True(t, cfg.Daemon.BootLoad)
	assert.False(t, cfg.SafeMode.Probe().Force)
}

func TestInitialize_NoFile(t *testing.T) {
	require.NoError(t, Initialize(""))
	assert.Equal(t, Default().Modules, Get().Modules)
	assert.Equal(t, Default().Daemon, Get().Daemon)
}

func TestInitialize_File(t *testing.T) {
	path := writeConfig(t, `
log:
  level: "Debug"
modules:
  dir: "/data/local/kpm"
  extension: ".ko"
safeMode:
  force: true
  markers:
    - "/data/adb/ksu/.safemode"
launcher:
  enabled: true
  binary: "/data/adb/uid_scanner"
  linkDir: "/data/adb/ksu/bin"
  serviceDir: "/data/adb/service.d"
daemon:
  lockFile: "/dev/kpmd.lock"
`)

	require.NoError(t, Initialize(path))

	cfg := Get()
	assert.Equal(t, "/data/local/kpm", cfg.Modules.Dir)
	assert.Equal(t, ".ko", cfg.Modules.Extension)
	assert.Equal(t, Default().Modules.ListBufferSize, cfg.Modules.ListBufferSize)
	assert.True(t, cfg.SafeMode.Force)
	assert.Equal(t, []string{"/data/adb/ksu/.safemode"}, cfg.SafeMode.Markers)
	assert.True(t, cfg.Launcher.Enabled)
	assert.Equal(t, "/data/adb/uid_scanner", cfg.Launcher.Config().Binary)
	assert.Equal(t, "/dev/kpmd.lock", cfg.Daemon.LockFile)
	assert.True(t, cfg.Daemon.BootLoad)
}

func TestInitialize_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
modules:
  dir: "/data/local/kpm"
`)

	t.Setenv("KPMD_MODULES_DIR", "/data/adb/kpm-test")
	t.Setenv("KPMD_DAEMON_BOOTLOAD", "false")

	require.NoError(t, Initialize(path))
	assert.Equal(t, "/data/adb/kpm-test", Get().Modules.Dir)
	assert.False(t, Get().Daemon.BootLoad)
}

func TestInitialize_MissingFile(t *testing.T) {
	err := Initialize(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, NotFoundError))
}

func TestInitialize_InvalidKeepsPreviousConfig(t *testing.T) {
	require.NoError(t, Initialize(""))

	path := writeConfig(t, `
modules:
  extension: "*"
`)

	err := Initialize(path)
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, errorx.IllegalArgument))
	assert.Equal(t, ".kpm", Get().Modules.Extension)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "relative module dir", mutate: func(c *Config) { c.Modules.Dir = "kpm" }},
		{name: "module dir traversal", mutate: func(c *Config) { c.Modules.Dir = "/data/../etc" }},
		{name: "extension without dot", mutate: func(c *Config) { c.Modules.Extension = "kpm" }},
		{name: "negative buffer", mutate: func(c *Config) { c.Modules.InfoBufferSize = -1 }},
		{name: "relative marker", mutate: func(c *Config) { c.SafeMode.Markers = []string{"safemode"} }},
		{name: "token with spaces", mutate: func(c *Config) { c.SafeMode.CmdlineTokens = []string{"a b"} }},
		{name: "launcher binary with metachars", mutate: func(c *Config) {
			c.Launcher.Enabled = true
			c.Launcher.Binary = "/data/adb/x;reboot"
		}},
		{name: "empty lock file", mutate: func(c *Config) { c.Daemon.LockFile = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errorx.IsOfType(err, errorx.IllegalArgument))
		})
	}
}

func TestLauncherConfig_DisabledSkipsValidation(t *testing.T) {
	cfg := Default()
	cfg.Launcher.Binary = "relative/binary"
	require.NoError(t, cfg.Validate())
}

func TestSet(t *testing.T) {
	cfg := Default()
	cfg.Modules.Dir = "/tmp/kpm"
	require.NoError(t, Set(&cfg))
	assert.Equal(t, "/tmp/kpm", Get().Modules.Dir)

	cfg.Modules.Dir = ""
	require.Error(t, Set(&cfg))
	assert.Equal(t, "/tmp/kpm", Get().Modules.Dir)
}
