// SPDX-License-Identifier: Apache-2.0

// Package launcher starts an auxiliary daemon as a detached, high priority process and installs a
// boot script that restarts it.
package launcher

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"text/template"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

const (
	DefaultBinary     = "/data/adb/uid_scanner"
	DefaultLinkDir    = "/data/adb/ksu/bin"
	DefaultServiceDir = "/data/adb/service.d"
	DefaultPriority   = -20

	binaryMode os.FileMode = 0o755
	scriptMode os.FileMode = 0o755
)

var (
	DefaultArgs        = []string{"start"}
	DefaultRestartArgs = []string{"restart"}
)

var restartScript = template.Must(template.New("restart").Parse(`#!/system/bin/sh
# restarts {{ .Name }} once the user storage is mounted
until [ -d "/sdcard/Android" ]; do sleep 1; done
sleep 10
{{ .Command }}
`))

type Config struct {
	Binary      string
	Args        []string
	RestartArgs []string
	LinkDir     string
	ServiceDir  string
	Priority    int
}

// withDefaults fills every unset field. A Priority of zero keeps the default.
func (c Config) withDefaults() Config {
	if c.Binary == "" {
		c.Binary = DefaultBinary
	}
	if c.Args == nil {
		c.Args = DefaultArgs
	}
	if c.RestartArgs == nil {
		c.RestartArgs = DefaultRestartArgs
	}
	if c.LinkDir == "" {
		c.LinkDir = DefaultLinkDir
	}
	if c.ServiceDir == "" {
		c.ServiceDir = DefaultServiceDir
	}
	if c.Priority == 0 {
		c.Priority = DefaultPriority
	}
	return c
}

type Launcher struct {
	cfg Config
	log zerolog.Logger
}

type Option func(l *Launcher)

func WithLogger(log zerolog.Logger) Option {
	return func(l *Launcher) {
		l.log = log
	}
}

func New(cfg Config, opts ...Option) *Launcher {
	l := &Launcher{
		cfg: cfg.withDefaults(),
		log: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LinkPath is where the binary is linked into the bin directory.
func (l *Launcher) LinkPath() string {
	return filepath.Join(l.cfg.LinkDir, filepath.Base(l.cfg.Binary))
}

// ScriptPath is the restart-on-boot script of the binary.
func (l *Launcher) ScriptPath() string {
	return filepath.Join(l.cfg.ServiceDir, filepath.Base(l.cfg.Binary)+".sh")
}

// Launch prepares and spawns the daemon and returns its pid without waiting for it to exit.
// Linking, the restart script and the priority change are best effort and only logged.
func (l *Launcher) Launch() (int, error) {
	bin := l.cfg.Binary

	if _, err := os.Stat(bin); err != nil {
		return 0, NotFoundError.Wrap(err, "daemon binary %s not found", bin).
			WithProperty(binaryProperty, bin)
	}

	if err := os.Chmod(bin, binaryMode); err != nil {
		l.log.Warn().Err(err).Str("path", bin).Msg("Failed to set permissions of daemon binary")
	}

	if err := unix.Access(bin, unix.X_OK); err != nil {
		return 0, NotExecutableError.Wrap(err, "daemon binary %s is not executable", bin).
			WithProperty(binaryProperty, bin)
	}

	l.link()
	l.installRestartScript()

	return l.spawn()
}

func (l *Launcher) link() {
	if err := os.MkdirAll(l.cfg.LinkDir, os.ModePerm); err != nil {
		l.log.Warn().Err(err).Str("path", l.cfg.LinkDir).Msg("Failed to create bin directory")
		return
	}

	link := l.LinkPath()
	if _, err := os.Lstat(link); err == nil {
		return
	}

	if err := os.Symlink(l.cfg.Binary, link); err != nil {
		l.log.Warn().Err(err).Str("path", link).Msg("Failed to link daemon binary")
		return
	}

	l.log.Info().Str("target", l.cfg.Binary).Str("path", link).Msg("Linked daemon binary")
}

func (l *Launcher) installRestartScript() {
	if err := os.MkdirAll(l.cfg.ServiceDir, os.ModePerm); err != nil {
		l.log.Warn().Err(err).Str("path", l.cfg.ServiceDir).Msg("Failed to create service directory")
		return
	}

	path := l.ScriptPath()
	created, err := l.writeRestartScript(path)
	if err != nil {
		l.log.Warn().Err(err).Str("path", path).Msg("Failed to write restart script")
		return
	}
	if !created {
		return
	}

	l.log.Info().Str("path", path).Msg("Installed restart script")
}

// writeRestartScript creates the script only if it does not exist yet.
func (l *Launcher) writeRestartScript(path string) (bool, error) {
	var content bytes.Buffer
	err := restartScript.Execute(&content, map[string]string{
		"Name":    filepath.Base(l.cfg.Binary),
		"Command": strings.Join(append([]string{l.cfg.Binary}, l.cfg.RestartArgs...), " "),
	})
	if err != nil {
		return false, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, scriptMode)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	if _, err = f.Write(content.Bytes()); err != nil {
		return true, err
	}
	if err = f.Sync(); err != nil {
		return true, err
	}

	// the create mode is subject to the umask
	return true, os.Chmod(path, scriptMode)
}

func (l *Launcher) spawn() (int, error) {
	cmd := exec.Command(l.cfg.Binary, l.cfg.Args...)
	cmd.Dir = "/"
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, SpawnError.Wrap(err, "failed to start daemon %s", l.cfg.Binary).
			WithProperty(binaryProperty, l.cfg.Binary)
	}

	pid := cmd.Process.Pid
	if err := unix.Setpriority(unix.PRIO_PROCESS, pid, l.cfg.Priority); err != nil {
		l.log.Warn().Err(err).Int("pid", pid).Int("priority", l.cfg.Priority).Msg("Failed to raise daemon priority")
	}

	// reap the child without blocking the caller
	go func() {
		_ = cmd.Wait()
	}()

	l.log.Info().Str("binary", l.cfg.Binary).Int("pid", pid).Msg("Started daemon")
	return pid, nil
}
