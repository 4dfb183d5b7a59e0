// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"

	"github.com/automa-saga/logx"
	"github.com/hashgraph/kpmd/cmd/kpmd/commands/common"
	"github.com/hashgraph/kpmd/cmd/kpmd/commands/daemoncmd"
	"github.com/hashgraph/kpmd/cmd/kpmd/commands/modulecmd"
	"github.com/hashgraph/kpmd/cmd/kpmd/commands/sweepcmd"
	"github.com/hashgraph/kpmd/cmd/kpmd/commands/versioncmd"
	"github.com/hashgraph/kpmd/internal/config"
	"github.com/hashgraph/kpmd/internal/doctor"
	"github.com/joomcode/errorx"
	"github.com/spf13/cobra"
)

// examples:
// kpmd load /data/adb/kpm/hello.kpm "greeting=hi"
// kpmd list
// kpmd daemon --config /data/adb/ksu/kpmd.yaml
// kpmd quarantine --module-dir /data/local/tmp/kpm

var (
	// Used for flags.
	flagConfig       string
	flagVersion      bool
	flagOutputFormat string
	flagModuleDir    string

	rootCmd = &cobra.Command{
		Use:   "kpmd",
		Short: "Manage kernel patch modules",
		Long:  "kpmd - loads, unloads and watches kernel patch modules through the kernel control interface",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagVersion {
				return versioncmd.PrintVersion(cmd, flagOutputFormat, false)
			}

			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	common.FlagConfig.SetVarP(rootCmd, &flagConfig)
	common.FlagModuleDir.SetVarP(rootCmd, &flagModuleDir)

	// support '--version', '-v' to show version information
	rootCmd.PersistentFlags().BoolVarP(&flagVersion, "version", "v", false, "Show version")
	common.FlagOutputFormat.SetVarP(rootCmd, &flagOutputFormat)

	// disable command sorting to keep the order of commands as added
	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(modulecmd.GetCmds()...)
	rootCmd.AddCommand(sweepcmd.GetCmds()...)
	rootCmd.AddCommand(daemoncmd.GetCmd())
	rootCmd.AddCommand(versioncmd.GetCmd())
}

// Execute executes the root command.
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errorx.IllegalArgument.New("context is required")
	}

	cobra.OnInitialize(func() {
		initConfig(ctx)
	})

	// execute the root command
	_, err := rootCmd.ExecuteContextC(ctx)
	if err != nil {
		// decorate so that the diagnosis still sees the original error type
		return errorx.Decorate(err, "failed to execute command")
	}

	return nil
}

func initConfig(ctx context.Context) {
	err := config.Initialize(flagConfig)
	if err != nil {
		doctor.CheckErr(ctx, err)
	}

	if flagModuleDir != "" {
		cfg := config.Get()
		cfg.Modules.Dir = flagModuleDir
		if err = config.Set(&cfg); err != nil {
			doctor.CheckErr(ctx, err)
		}
	}

	err = logx.Initialize(config.Get().Log)
	if err != nil {
		doctor.CheckErr(ctx, err)
	}
}
