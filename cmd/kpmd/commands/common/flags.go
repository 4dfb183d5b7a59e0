// SPDX-License-Identifier: Apache-2.0

package common

import (
	"context"
	"fmt"
	"time"

	"github.com/hashgraph/kpmd/internal/doctor"
	"github.com/joomcode/errorx"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	FlagConfig = FlagDefinition[string]{
		Name:        "config",
		ShortName:   "c",
		Description: "config file path",
		Default:     "",
	}

	FlagOutputFormat = FlagDefinition[string]{
		Name:        "output",
		ShortName:   "o",
		Description: "Output format (yaml|json)",
		Default:     "yaml",
	}

	FlagModuleDir = FlagDefinition[string]{
		Name:        "module-dir",
		ShortName:   "d",
		Description: "Module directory, overrides modules.dir",
		Default:     "",
	}

	FlagSafeMode = FlagDefinition[bool]{
		Name:        "safe-mode",
		ShortName:   "",
		Description: "Treat the host as being in safe mode and quarantine all modules",
		Default:     false,
	}

	FlagSkipBootLoad = FlagDefinition[bool]{
		Name:        "skip-boot-load",
		ShortName:   "",
		Description: "Do not load the modules already present in the module directory",
		Default:     false,
	}

	FlagLockTimeout = FlagDefinition[time.Duration]{
		Name:        "lock-timeout",
		ShortName:   "",
		Description: "How long to wait for another daemon instance to release the lock",
		Default:     time.Second,
	}
)

// FlagDefinition defines a command-line flag typed by T.
type FlagDefinition[T any] struct {
	Name        string
	ShortName   string
	Description string
	Default     T
}

// valueFrom contains the common type-switch logic to extract a value
// from the provided pflag.FlagSet.
func (fp *FlagDefinition[T]) valueFrom(flags *pflag.FlagSet) (T, error) {
	var zero T
	switch any(zero).(type) {
	case string:
		v, err := flags.GetString(fp.Name)
		if err != nil {
			return zero, err
		}
		return any(v).(T), nil
	case bool:
		v, err := flags.GetBool(fp.Name)
		if err != nil {
			return zero, err
		}
		return any(v).(T), nil
	case int:
		v, err := flags.GetInt(fp.Name)
		if err != nil {
			return zero, err
		}
		return any(v).(T), nil
	case time.Duration:
		v, err := flags.GetDuration(fp.Name)
		if err != nil {
			return zero, err
		}
		return any(v).(T), nil
	default:
		return zero, fmt.Errorf("unsupported flag type: %T", zero)
	}
}

// Value extracts the flag value, looking at persistent flags of parent commands too.
func (fp *FlagDefinition[T]) Value(cmd *cobra.Command, args []string) (T, error) {
	if args == nil {
		args = []string{}
	}

	err := cmd.ParseFlags(args)
	if err != nil {
		var zero T
		return zero, errorx.InternalError.Wrap(err, "failed to parse flags for command %s", cmd.Name())
	}

	return fp.valueFrom(cmd.Flags())
}

// SetVarP sets up the persistent flag and exits on error.
func (fp *FlagDefinition[T]) SetVarP(cmd *cobra.Command, p *T) {
	if err := fp.setFlagVar(cmd.PersistentFlags(), cmd, p); err != nil {
		doctor.CheckErr(context.Background(), err, fmt.Sprintf("failed to set flag %s", fp.Name))
	}
}

// SetVar sets up the non-persistent flag and exits on error.
func (fp *FlagDefinition[T]) SetVar(cmd *cobra.Command, p *T) {
	if err := fp.setFlagVar(cmd.Flags(), cmd, p); err != nil {
		doctor.CheckErr(context.Background(), err, fmt.Sprintf("failed to set flag %s", fp.Name))
	}
}

// setFlagVar contains the common registration logic and is used to set up both persistent and non-persistent flags.
func (fp *FlagDefinition[T]) setFlagVar(flags *pflag.FlagSet, cmd *cobra.Command, p *T) error {
	if p == nil {
		return errorx.IllegalArgument.New("pointer for flag %s is nil", fp.Name)
	}
	if cmd == nil {
		return errorx.IllegalArgument.New("command for flag %s is nil", fp.Name)
	}

	switch ptr := any(p).(type) {
	case *string:
		flags.StringVarP(ptr, fp.Name, fp.ShortName, any(fp.Default).(string), fp.Description)
	case *bool:
		flags.BoolVarP(ptr, fp.Name, fp.ShortName, any(fp.Default).(bool), fp.Description)
	case *int:
		flags.IntVarP(ptr, fp.Name, fp.ShortName, any(fp.Default).(int), fp.Description)
	case *time.Duration:
		flags.DurationVarP(ptr, fp.Name, fp.ShortName, any(fp.Default).(time.Duration), fp.Description)
	default:
		var zero T
		return errorx.IllegalArgument.New("unsupported flag type: %T", zero)
	}

	return nil
}
