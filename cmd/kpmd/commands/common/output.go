// SPDX-License-Identifier: Apache-2.0

package common

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joomcode/errorx"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// PrintResult writes v to the command's output in the requested format.
func PrintResult(cmd *cobra.Command, v any, format string) error {
	var out []byte
	var err error
	switch strings.ToLower(format) {
	case FormatJSON:
		out, err = json.MarshalIndent(v, "", "  ")
		if err == nil {
			out = append(out, '\n')
		}
	case FormatYAML, "":
		out, err = yaml.Marshal(v)
	default:
		return errorx.IllegalFormat.New("unsupported format: %s", format)
	}
	if err != nil {
		return errorx.IllegalFormat.Wrap(err, "failed to marshal %T", v)
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), string(out))
	return err
}

// Println writes a line of primary output.
func Println(cmd *cobra.Command, a ...any) {
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), a...)
}
