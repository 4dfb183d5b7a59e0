// SPDX-License-Identifier: Apache-2.0

package versioncmd

import (
	"github.com/hashgraph/kpmd/cmd/kpmd/commands/common"
	"github.com/hashgraph/kpmd/internal/version"
	"github.com/joomcode/errorx"
	"github.com/spf13/cobra"
)

var (
	flagOutputFormat string
	flagKernel       bool

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Long:  "Show the current version of the application and optionally of the kernel module interface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return PrintVersion(cmd, flagOutputFormat, flagKernel)
		},
	}
)

func init() {
	common.FlagOutputFormat.SetVarP(versionCmd, &flagOutputFormat)
	versionCmd.Flags().BoolVarP(&flagKernel, "kernel", "k", false, "Also query the kernel module interface version")
}

func GetCmd() *cobra.Command {
	return versionCmd
}

// PrintVersion writes the build information to the command output. With kernel set, the kernel
// module interface is queried and a failure to do so is returned.
func PrintVersion(cmd *cobra.Command, format string, kernel bool) error {
	info, err := version.Build()
	if err != nil {
		return errorx.Decorate(err, "failed to read build information")
	}

	if kernel {
		client, err := common.NewClient()
		if err != nil {
			return err
		}

		info.Kernel, err = client.CheckVersion()
		if err != nil {
			return errorx.Decorate(err, "kernel module interface is unavailable")
		}
	}

	output, err := info.Render(format)
	if err != nil {
		return err
	}
	common.Println(cmd, output)
	return nil
}
