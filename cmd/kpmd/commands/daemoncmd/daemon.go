// SPDX-License-Identifier: Apache-2.0

package daemoncmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/automa-saga/logx"
	"github.com/hashgraph/kpmd/cmd/kpmd/commands/common"
	"github.com/hashgraph/kpmd/internal/config"
	"github.com/hashgraph/kpmd/internal/launcher"
	"github.com/hashgraph/kpmd/internal/lifecycle"
	"github.com/hashgraph/kpmd/internal/reactor"
	"github.com/hashgraph/kpmd/internal/version"
	"github.com/hashgraph/kpmd/pkg/hostinfo"
	"github.com/hashgraph/kpmd/pkg/plock"
	"github.com/hashgraph/kpmd/pkg/systemd"
	"github.com/joomcode/errorx"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	flagSafeMode     bool
	flagSkipBootLoad bool
	flagLockTimeout  time.Duration

	daemonCmd = &cobra.Command{
		Use:   "daemon",
		Short: "Run the module lifecycle daemon",
		Long: "Load the modules of the module directory and keep watching it until interrupted. " +
			"Module failures are logged and never stop the daemon.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return Serve(ctx, Options{
				SafeMode:     flagSafeMode,
				SkipBootLoad: flagSkipBootLoad,
				LockTimeout:  flagLockTimeout,
			})
		},
	}
)

func init() {
	common.FlagSafeMode.SetVar(daemonCmd, &flagSafeMode)
	common.FlagSkipBootLoad.SetVar(daemonCmd, &flagSkipBootLoad)
	common.FlagLockTimeout.SetVar(daemonCmd, &flagLockTimeout)
}

func GetCmd() *cobra.Command {
	return daemonCmd
}

// Options tune a daemon run on top of the loaded configuration.
type Options struct {
	SafeMode     bool
	SkipBootLoad bool
	LockTimeout  time.Duration
}

// Serve runs the daemon until ctx is done or the watcher stops on its own.
//
// Only a second instance or an invalid setup is returned as an error. Whatever happens to the
// module subsystem is logged and Serve keeps going or returns nil.
func Serve(ctx context.Context, opts Options) error {
	cfg := config.Get()
	log := logx.As()

	lock, err := plock.NewLock(cfg.Daemon.LockFile)
	if err != nil {
		return err
	}
	if err = lock.TryAcquire(opts.LockTimeout); err != nil {
		return errorx.Decorate(err, "another kpmd daemon is already running")
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warn().Err(err).Msg("Failed to release the daemon lock")
		}
	}()

	build, err := version.Build()
	if err != nil {
		return errorx.Decorate(err, "failed to read build information")
	}

	log.Info().
		Str("version", build.Number).
		Str("channel", build.Channel).
		Str("commit", build.Commit).
		Object("host", hostinfo.Get()).
		Str("dir", cfg.Modules.Dir).
		Str("lock", lock.Info().String()).
		Msg("Starting kpmd daemon")

	if cfg.Launcher.Enabled {
		startLauncher(cfg.Launcher, log)
	}

	client, err := common.NewClient()
	if err != nil {
		return err
	}

	rc, err := reactor.New(cfg.Modules.ModuleDir(), client, reactor.WithLogger(*log))
	if err != nil {
		return err
	}
	defer rc.Stop()

	o, err := common.NewOrchestrator(client, opts.SafeMode, lifecycle.WithWatcher(rc))
	if err != nil {
		return err
	}

	var outcome lifecycle.Outcome
	if cfg.Daemon.BootLoad && !opts.SkipBootLoad {
		var tally lifecycle.Tally
		outcome, tally, err = o.Boot()
		log.Info().
			Int("loaded", tally.Succeeded).
			Int("failed", tally.Failed).
			Int("skipped", tally.Skipped).
			Msg("Boot load finished")
	} else {
		outcome, err = o.Startup()
	}
	if err != nil {
		log.Error().Err(err).Str("outcome", outcome.String()).Msg("Module subsystem failed to start")
	} else {
		log.Info().Str("outcome", outcome.String()).Msg("Module subsystem started")
	}

	if _, err = systemd.NotifyStatus("modules " + outcome.String()); err != nil {
		log.Warn().Err(err).Msg("Failed to publish status to the service manager")
	}
	if _, err = systemd.NotifyReady(); err != nil {
		log.Warn().Err(err).Msg("Failed to notify the service manager of readiness")
	}

	if outcome == lifecycle.OutcomeWatching {
		select {
		case <-ctx.Done():
			log.Info().Msg("Shutting down kpmd daemon")
		case <-rc.Done():
			log.Error().Err(rc.Err()).Msg("Module directory watcher stopped")
		}
	}

	if _, err = systemd.NotifyStopping(); err != nil {
		log.Warn().Err(err).Msg("Failed to notify the service manager of shutdown")
	}
	return nil
}

func startLauncher(c config.LauncherConfig, log *zerolog.Logger) {
	pid, err := launcher.New(c.Config(), launcher.WithLogger(*log)).Launch()
	switch {
	case err == nil:
		log.Info().Int("pid", pid).Str("binary", c.Binary).Msg("Auxiliary daemon started")
	case errorx.HasTrait(err, errorx.NotFound()):
		log.Warn().Str("binary", c.Binary).Msg("Auxiliary daemon binary not found")
	default:
		log.Warn().Err(err).Str("binary", c.Binary).Msg("Failed to start auxiliary daemon")
	}
}
