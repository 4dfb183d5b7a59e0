// SPDX-License-Identifier: Apache-2.0

// Package sweepcmd holds the commands that act on every file of the module directory at once.
package sweepcmd

import (
	"github.com/hashgraph/kpmd/cmd/kpmd/commands/common"
	"github.com/spf13/cobra"
)

// GetCmds returns a fresh set of sweep commands.
func GetCmds() []*cobra.Command {
	return []*cobra.Command{
		newBootLoadCmd(),
		newQuarantineCmd(),
	}
}

func newBootLoadCmd() *cobra.Command {
	var flagOutputFormat string

	cmd := &cobra.Command{
		Use:   "boot-load",
		Short: "Load every module found in the module directory",
		Long: "Load every module file found in the module directory. Per file failures are reported " +
			"in the summary and do not fail the command.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := common.NewClient()
			if err != nil {
				return err
			}

			o, err := common.NewOrchestrator(client, false)
			if err != nil {
				return err
			}

			tally, err := o.BootLoad()
			if err != nil {
				return err
			}
			return common.PrintResult(cmd, tally, flagOutputFormat)
		},
	}
	common.FlagOutputFormat.SetVar(cmd, &flagOutputFormat)

	return cmd
}

func newQuarantineCmd() *cobra.Command {
	var flagOutputFormat string

	cmd := &cobra.Command{
		Use:   "quarantine",
		Short: "Unload and delete every module found in the module directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := common.NewClient()
			if err != nil {
				return err
			}

			o, err := common.NewOrchestrator(client, false)
			if err != nil {
				return err
			}

			tally, err := o.Quarantine()
			if err != nil {
				return err
			}
			return common.PrintResult(cmd, tally, flagOutputFormat)
		},
	}
	common.FlagOutputFormat.SetVar(cmd, &flagOutputFormat)

	return cmd
}
