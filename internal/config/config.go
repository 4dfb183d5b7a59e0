// SPDX-License-Identifier: Apache-2.0

package config

import (
	"strings"

	"github.com/automa-saga/logx"
	"github.com/hashgraph/kpmd/internal/launcher"
	"github.com/hashgraph/kpmd/internal/lifecycle"
	"github.com/hashgraph/kpmd/pkg/kpm"
	"github.com/hashgraph/kpmd/pkg/moddir"
	"github.com/hashgraph/kpmd/pkg/sanity"
	"github.com/joomcode/errorx"
	"github.com/spf13/viper"
)

const (
	EnvPrefix       = "KPMD"
	DefaultLockFile = "/data/adb/ksu/kpmd.lock"
)

// Config holds the global configuration for the application.
type Config struct {
	Log      logx.LoggingConfig `yaml:"log" json:"log"`
	Modules  ModulesConfig      `yaml:"modules" json:"modules"`
	SafeMode SafeModeConfig     `yaml:"safeMode" json:"safeMode"`
	Launcher LauncherConfig     `yaml:"launcher" json:"launcher"`
	Daemon   DaemonConfig       `yaml:"daemon" json:"daemon"`
}

// ModulesConfig represents the `modules` section. Buffer sizes of zero keep the protocol defaults.
type ModulesConfig struct {
	Dir               string `yaml:"dir" json:"dir"`
	Extension         string `yaml:"extension" json:"extension"`
	ListBufferSize    int    `yaml:"listBufferSize" json:"listBufferSize"`
	InfoBufferSize    int    `yaml:"infoBufferSize" json:"infoBufferSize"`
	VersionBufferSize int    `yaml:"versionBufferSize" json:"versionBufferSize"`
}

// ModuleDir returns the module directory described by the section.
func (c ModulesConfig) ModuleDir() moddir.Dir {
	return moddir.New(c.Dir, c.Extension)
}

func (c ModulesConfig) Validate() error {
	if _, err := sanity.SanitizePath(c.Dir); err != nil {
		return errorx.IllegalArgument.Wrap(err, "invalid module directory: %s", c.Dir)
	}

	if err := sanity.ValidateExtension(c.Extension); err != nil {
		return errorx.IllegalArgument.Wrap(err, "invalid module extension: %s", c.Extension)
	}

	if c.ListBufferSize < 0 || c.InfoBufferSize < 0 || c.VersionBufferSize < 0 {
		return errorx.IllegalArgument.New("module buffer sizes cannot be negative")
	}

	return nil
}

// SafeModeConfig represents the `safeMode` section.
type SafeModeConfig struct {
	Force         bool     `yaml:"force" json:"force"`
	Markers       []string `yaml:"markers" json:"markers"`
	CmdlinePath   string   `yaml:"cmdlinePath" json:"cmdlinePath"`
	CmdlineTokens []string `yaml:"cmdlineTokens" json:"cmdlineTokens"`
}

func (c SafeModeConfig) Probe() lifecycle.SafeMode {
	return lifecycle.SafeMode{
		Force:         c.Force,
		Markers:       c.Markers,
		CmdlinePath:   c.CmdlinePath,
		CmdlineTokens: c.CmdlineTokens,
	}
}

func (c SafeModeConfig) Validate() error {
	for i, marker := range c.Markers {
		if _, err := sanity.SanitizePath(marker); err != nil {
			return errorx.IllegalArgument.Wrap(err, "safe mode marker[%d]: invalid path: %s", i, marker)
		}
	}

	if c.CmdlinePath != "" {
		if _, err := sanity.SanitizePath(c.CmdlinePath); err != nil {
			return errorx.IllegalArgument.Wrap(err, "invalid kernel command line path: %s", c.CmdlinePath)
		}
	}

	for i, token := range c.CmdlineTokens {
		if token == "" || strings.ContainsAny(token, " \t\n") {
			return errorx.IllegalArgument.New("safe mode cmdline token[%d]: must be a single non-empty word", i)
		}
	}

	return nil
}

// LauncherConfig represents the `launcher` section for the auxiliary daemon.
type LauncherConfig struct {
	Enabled    bool     `yaml:"enabled" json:"enabled"`
	Binary     string   `yaml:"binary" json:"binary"`
	Args       []string `yaml:"args" json:"args"`
	LinkDir    string   `yaml:"linkDir" json:"linkDir"`
	ServiceDir string   `yaml:"serviceDir" json:"serviceDir"`
}

func (c LauncherConfig) Config() launcher.Config {
	return launcher.Config{
		Binary:     c.Binary,
		Args:       c.Args,
		LinkDir:    c.LinkDir,
		ServiceDir: c.ServiceDir,
	}
}

// Validate checks the paths only when the launcher is enabled. The binary path ends up in a shell
// script so it must be free of shell metacharacters.
func (c LauncherConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	paths := map[string]string{
		"binary":      c.Binary,
		"link dir":    c.LinkDir,
		"service dir": c.ServiceDir,
	}
	for name, path := range paths {
		if _, err := sanity.SanitizePath(path); err != nil {
			return errorx.IllegalArgument.Wrap(err, "invalid launcher %s: %s", name, path)
		}
	}

	return nil
}

// DaemonConfig represents the `daemon` section.
type DaemonConfig struct {
	LockFile string `yaml:"lockFile" json:"lockFile"`
	BootLoad bool   `yaml:"bootLoad" json:"bootLoad"`
}

func (c DaemonConfig) Validate() error {
	if _, err := sanity.SanitizePath(c.LockFile); err != nil {
		return errorx.IllegalArgument.Wrap(err, "invalid lock file: %s", c.LockFile)
	}
	return nil
}

// Validate validates all configuration fields to ensure they are safe and secure.
func (c Config) Validate() error {
	if err := c.Modules.Validate(); err != nil {
		return err
	}
	if err := c.SafeMode.Validate(); err != nil {
		return err
	}
	if err := c.Launcher.Validate(); err != nil {
		return err
	}
	if err := c.Daemon.Validate(); err != nil {
		return err
	}
	return nil
}

// Default returns the built in configuration.
func Default() Config {
	return Config{
		Log: logx.LoggingConfig{
			Level:          "Info",
			ConsoleLogging: true,
			FileLogging:    false,
		},
		Modules: ModulesConfig{
			Dir:               moddir.DefaultPath,
			Extension:         moddir.DefaultExtension,
			ListBufferSize:    kpm.DefaultListBufferSize,
			InfoBufferSize:    kpm.DefaultInfoBufferSize,
			VersionBufferSize: kpm.DefaultVersionBufferSize,
		},
		SafeMode: SafeModeConfig{
			CmdlinePath:   lifecycle.DefaultCmdlinePath,
			CmdlineTokens: []string{"androidboot.safemode=1"},
		},
		Launcher: LauncherConfig{
			Enabled:    false,
			Binary:     launcher.DefaultBinary,
			Args:       launcher.DefaultArgs,
			LinkDir:    launcher.DefaultLinkDir,
			ServiceDir: launcher.DefaultServiceDir,
		},
		Daemon: DaemonConfig{
			LockFile: DefaultLockFile,
			BootLoad: true,
		},
	}
}

var globalConfig = Default()

// setDefaults registers every default with viper so that environment variables can override keys
// the config file does not mention.
func setDefaults(c Config) {
	viper.SetDefault("log.level", c.Log.Level)
	viper.SetDefault("log.consoleLogging", c.Log.ConsoleLogging)
	viper.SetDefault("log.fileLogging", c.Log.FileLogging)
	viper.SetDefault("modules.dir", c.Modules.Dir)
	viper.SetDefault("modules.extension", c.Modules.Extension)
	viper.SetDefault("modules.listBufferSize", c.Modules.ListBufferSize)
	viper.SetDefault("modules.infoBufferSize", c.Modules.InfoBufferSize)
	viper.SetDefault("modules.versionBufferSize", c.Modules.VersionBufferSize)
	viper.SetDefault("safeMode.force", c.SafeMode.Force)
	viper.SetDefault("safeMode.markers", c.SafeMode.Markers)
	viper.SetDefault("safeMode.cmdlinePath", c.SafeMode.CmdlinePath)
	viper.SetDefault("safeMode.cmdlineTokens", c.SafeMode.CmdlineTokens)
	viper.SetDefault("launcher.enabled", c.Launcher.Enabled)
	viper.SetDefault("launcher.binary", c.Launcher.Binary)
	viper.SetDefault("launcher.args", c.Launcher.Args)
	viper.SetDefault("launcher.linkDir", c.Launcher.LinkDir)
	viper.SetDefault("launcher.serviceDir", c.Launcher.ServiceDir)
	viper.SetDefault("daemon.lockFile", c.Daemon.LockFile)
	viper.SetDefault("daemon.bootLoad", c.Daemon.BootLoad)
}

// Initialize loads the configuration from the specified file on top of the defaults. Environment
// variables prefixed with KPMD_ override both, e.g. KPMD_MODULES_DIR for modules.dir.
//
// An empty path applies the defaults and the environment only.
func Initialize(path string) error {
	cfg := Default()

	viper.Reset()
	setDefaults(cfg)
	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return NotFoundError.Wrap(err, "failed to read config file: %s", path).
				WithProperty(errorx.PropertyPayload(), path)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return errorx.IllegalFormat.Wrap(err, "failed to parse configuration").
			WithProperty(errorx.PropertyPayload(), path)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	globalConfig = cfg
	return nil
}

// Get returns the loaded configuration.
func Get() Config {
	return globalConfig
}

func Set(c *Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	globalConfig = *c
	return nil
}
