// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"bytes"

	"github.com/spf13/cobra"
)

// PrepareSubCmdForTest creates a root command with the given subcommands added.
// Use this from tests in other packages to avoid duplicating the helper.
func PrepareSubCmdForTest(sub ...*cobra.Command) *cobra.Command {
	root := &cobra.Command{Use: "root", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(sub...)
	return root
}

// ExecuteForTest runs root with args and returns what the command wrote to stdout.
func ExecuteForTest(root *cobra.Command, args ...string) (string, error) {
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}
