// SPDX-License-Identifier: Apache-2.0

// Package lifecycle sequences the module subsystem at daemon start: the version gate, the
// directory guard, then either a quarantine sweep in safe mode or the directory watch. It also
// runs the boot time bulk load and explicit quarantine sweeps.
package lifecycle

import (
	"os"

	"github.com/hashgraph/kpmd/pkg/moddir"
	"github.com/joomcode/errorx"
	"github.com/rs/zerolog"
)

// ModuleClient is the part of the module protocol the orchestrator needs.
type ModuleClient interface {
	Load(path string, args string) error
	Unload(name string) error
	CheckVersion() (string, error)
}

// Watcher is started once the module directory is ready and the host is not in safe mode.
type Watcher interface {
	Start() error
}

type Outcome int

const (
	// OutcomeFailed means startup stopped on a directory or watcher error.
	OutcomeFailed Outcome = iota
	// OutcomeDisabled means the kernel module interface is absent or incompatible.
	OutcomeDisabled
	// OutcomeQuarantined means safe mode was detected and the modules were swept.
	OutcomeQuarantined
	// OutcomeWatching means the module directory is being watched.
	OutcomeWatching
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDisabled:
		return "disabled"
	case OutcomeQuarantined:
		return "quarantined"
	case OutcomeWatching:
		return "watching"
	default:
		return "failed"
	}
}

// Tally counts the per file results of a bulk operation. Disabled is set when the version gate
// failed and nothing was attempted.
type Tally struct {
	Succeeded int  `yaml:"succeeded" json:"succeeded"`
	Failed    int  `yaml:"failed" json:"failed"`
	Skipped   int  `yaml:"skipped" json:"skipped"`
	Disabled  bool `yaml:"disabled" json:"disabled"`
}

type Orchestrator struct {
	dir      moddir.Dir
	client   ModuleClient
	watcher  Watcher
	safeMode SafeModeProbe
	log      zerolog.Logger
}

type Option func(o *Orchestrator)

func WithLogger(log zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.log = log
	}
}

func WithWatcher(w Watcher) Option {
	return func(o *Orchestrator) {
		o.watcher = w
	}
}

func WithSafeMode(p SafeModeProbe) Option {
	return func(o *Orchestrator) {
		o.safeMode = p
	}
}

func New(dir moddir.Dir, client ModuleClient, opts ...Option) (*Orchestrator, error) {
	if client == nil {
		return nil, errorx.IllegalArgument.New("module client cannot be nil")
	}
	if dir.Path == "" {
		return nil, errorx.IllegalArgument.New("module directory cannot be empty")
	}

	o := &Orchestrator{
		dir:      dir,
		client:   client,
		safeMode: SafeMode{},
		log:      zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

// gate runs the version check. A failure switches module functionality off and is not an error.
func (o *Orchestrator) gate() bool {
	v, err := o.client.CheckVersion()
	if err != nil {
		o.log.Warn().Err(err).Msg("Kernel module interface is unavailable, module functionality is disabled")
		return false
	}

	o.log.Info().Str("version", v).Msg("Kernel module interface is available")
	return true
}

func (o *Orchestrator) ensure() error {
	if err := o.dir.Ensure(); err != nil {
		return errorx.Decorate(err, "module directory is not usable")
	}
	return nil
}

// Startup brings the module subsystem up for the lifetime of the process.
func (o *Orchestrator) Startup() (Outcome, error) {
	if !o.gate() {
		return OutcomeDisabled, nil
	}
	return o.startup(o.safeMode.Enabled())
}

// startup runs after the version gate passed. safe is the safe mode decision of the caller.
func (o *Orchestrator) startup(safe bool) (Outcome, error) {
	if err := o.ensure(); err != nil {
		return OutcomeFailed, err
	}

	if safe {
		o.log.Warn().Str("path", o.dir.Path).Msg("Host is in safe mode, quarantining all modules")
		if _, err := o.sweep(); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeQuarantined, nil
	}

	if o.watcher == nil {
		return OutcomeFailed, errorx.IllegalState.New("no module directory watcher configured")
	}

	if err := o.watcher.Start(); err != nil {
		return OutcomeFailed, StartupError.Wrap(err, "failed to start watching module directory %s", o.dir.Path).
			WithProperty(pathProperty, o.dir.Path)
	}

	return OutcomeWatching, nil
}

// BootLoad loads every module file present in the directory. A failing module never stops the
// others; only a failure to enumerate the directory aborts the batch.
func (o *Orchestrator) BootLoad() (Tally, error) {
	if !o.gate() {
		return Tally{Disabled: true}, nil
	}
	return o.bootLoad()
}

func (o *Orchestrator) bootLoad() (Tally, error) {
	if err := o.ensure(); err != nil {
		return Tally{}, err
	}

	files, err := o.dir.Scan()
	if err != nil {
		return Tally{}, errorx.Decorate(err, "boot load aborted")
	}

	var tally Tally
	for _, path := range files {
		if o.dir.Identity(path) == "" {
			o.log.Warn().Str("path", path).Msg("Skipping module file without a name")
			tally.Skipped++
			continue
		}

		if err := o.client.Load(path, ""); err != nil {
			o.log.Error().Err(err).Str("path", path).Msg("Failed to load module at boot")
			tally.Failed++
			continue
		}
		tally.Succeeded++
	}

	o.log.Info().
		Int("loaded", tally.Succeeded).
		Int("failed", tally.Failed).
		Int("skipped", tally.Skipped).
		Msg("Boot load completed")

	return tally, nil
}

// Quarantine unloads and deletes every module file in the directory.
func (o *Orchestrator) Quarantine() (Tally, error) {
	if !o.gate() {
		return Tally{Disabled: true}, nil
	}

	if err := o.ensure(); err != nil {
		return Tally{}, err
	}

	return o.sweep()
}

// sweep unloads each module of a directory snapshot exactly once. A module whose unload fails is
// still deleted so that it cannot come back at the next boot.
func (o *Orchestrator) sweep() (Tally, error) {
	files, err := o.dir.Scan()
	if err != nil {
		return Tally{}, errorx.Decorate(err, "quarantine aborted")
	}

	var tally Tally
	for _, path := range files {
		name := o.dir.Identity(path)
		if name == "" {
			// not addressable in the kernel, only the file can go
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				o.log.Error().Err(err).Str("path", path).Msg("Failed to delete module file")
				tally.Failed++
				continue
			}
			tally.Skipped++
			continue
		}

		if err := o.client.Unload(name); err != nil {
			o.log.Error().Err(err).Str("module", name).Msg("Failed to unload module during quarantine")
			tally.Failed++
			if _, rmErr := o.dir.Remove(name); rmErr != nil {
				o.log.Error().Err(rmErr).Str("module", name).Msg("Failed to delete module file")
			}
			continue
		}
		tally.Succeeded++
	}

	o.log.Info().
		Int("unloaded", tally.Succeeded).
		Int("failed", tally.Failed).
		Int("skipped", tally.Skipped).
		Msg("Quarantine completed")

	return tally, nil
}

// Boot is the daemon start sequence: the bulk load unless the host is in safe mode, followed by
// Startup. The version gate and the safe mode probe are evaluated once for the whole sequence.
func (o *Orchestrator) Boot() (Outcome, Tally, error) {
	if !o.gate() {
		return OutcomeDisabled, Tally{Disabled: true}, nil
	}

	safe := o.safeMode.Enabled()

	var tally Tally
	if !safe {
		t, err := o.bootLoad()
		if err != nil {
			return OutcomeFailed, t, err
		}
		tally = t
	}

	outcome, err := o.startup(safe)
	return outcome, tally, err
}
