// SPDX-License-Identifier: Apache-2.0

// Package modulecmd holds the one-shot commands that talk to the kernel module interface.
package modulecmd

import (
	"strconv"

	"github.com/hashgraph/kpmd/cmd/kpmd/commands/common"
	"github.com/spf13/cobra"
)

// GetCmds returns a fresh set of module commands.
func GetCmds() []*cobra.Command {
	return []*cobra.Command{
		newLoadCmd(),
		newUnloadCmd(),
		newNumCmd(),
		newListCmd(),
		newInfoCmd(),
		newControlCmd(),
		newCheckVersionCmd(),
	}
}

func newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <path> [args]",
		Short: "Load a kernel module from a file",
		Long:  "Load the kernel module at path. The optional args string is passed to the module as is.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := common.NewClient()
			if err != nil {
				return err
			}

			var moduleArgs string
			if len(args) > 1 {
				moduleArgs = args[1]
			}

			if err = client.Load(args[0], moduleArgs); err != nil {
				return err
			}
			common.Println(cmd, "loaded", args[0])
			return nil
		},
	}
}

func newUnloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unload <name>",
		Short: "Unload a kernel module",
		Long:  "Unload the kernel module called name and delete its file from the module directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := common.NewClient()
			if err != nil {
				return err
			}

			if err = client.Unload(args[0]); err != nil {
				return err
			}
			common.Println(cmd, "unloaded", args[0])
			return nil
		},
	}
}

func newNumCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "num",
		Aliases: []string{"count"},
		Short:   "Print the number of loaded kernel modules",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := common.NewClient()
			if err != nil {
				return err
			}

			n, err := client.Count()
			if err != nil {
				return err
			}
			common.Println(cmd, strconv.Itoa(n))
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the loaded kernel modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := common.NewClient()
			if err != nil {
				return err
			}

			listing, err := client.List()
			if err != nil {
				return err
			}
			common.Println(cmd, listing)
			return nil
		},
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Show what the kernel knows about a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := common.NewClient()
			if err != nil {
				return err
			}

			info, err := client.Info(args[0])
			if err != nil {
				return err
			}
			common.Println(cmd, info)
			return nil
		},
	}
}

func newControlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "control <name> <msg>",
		Short: "Send a control message to a module",
		Long:  "Send msg to the module called name and print the reply code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := common.NewClient()
			if err != nil {
				return err
			}

			ret, err := client.Control(args[0], args[1])
			if err != nil {
				return err
			}
			common.Println(cmd, strconv.FormatInt(int64(ret), 10))
			return nil
		},
	}
}

func newCheckVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-version",
		Short: "Print the kernel module interface version",
		Long:  "Print the kernel module interface version. Fails when the interface is absent or incompatible.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := common.NewClient()
			if err != nil {
				return err
			}

			v, err := client.CheckVersion()
			if err != nil {
				return err
			}
			common.Println(cmd, v)
			return nil
		},
	}
}
