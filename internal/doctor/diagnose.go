// SPDX-License-Identifier: Apache-2.0

package doctor

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/automa-saga/logx"
	"github.com/hashgraph/kpmd/internal/config"
	"github.com/hashgraph/kpmd/internal/launcher"
	"github.com/hashgraph/kpmd/internal/version"
	"github.com/hashgraph/kpmd/pkg/kpm"
	"github.com/hashgraph/kpmd/pkg/moddir"
	"github.com/hashgraph/kpmd/pkg/plock"
	"github.com/joomcode/errorx"
	"golang.org/x/sys/unix"
)

type ErrorDiagnosis struct {
	Error      error    `yaml:"error" json:"error"`
	Message    string   `yaml:"message" json:"message"`
	Cause      string   `yaml:"cause" json:"cause"`
	ErrorType  string   `yaml:"errorType" json:"errorType"`
	Errno      string   `yaml:"errno" json:"errno"`
	TraceId    string   `yaml:"traceId" json:"traceId"`
	Commit     string   `yaml:"commit" json:"commit"`
	Version    string   `yaml:"version" json:"version"`
	Pid        int      `yaml:"pid" json:"pid"`
	Code       int      `yaml:"code" json:"code"`
	Logfile    string   `yaml:"log" json:"log"`
	Resolution []string `yaml:"steps" json:"steps"`
}

func toErrorCode(err error) int {
	switch {
	case errorx.IsOfType(err, errorx.IllegalArgument), errorx.IsOfType(err, kpm.EncodingError):
		return 10400
	case errorx.IsOfType(err, kpm.VersionError):
		return 10412
	case errorx.IsOfType(err, errorx.IllegalFormat):
		return 10422
	case errorx.IsOfType(err, plock.LockHeldError):
		return 10423
	case errorx.IsOfType(err, kpm.KernelCallError):
		return 10502
	default:
		if errorx.HasTrait(err, errorx.NotFound()) {
			return 10404
		}
		return 10500
	}
}

func toErrorMessage(err error) (string, string) {
	e := errorx.Cast(err)
	if e == nil {
		return err.Error(), ""
	}

	if e.Cause() == nil {
		return e.Message(), ""
	}
	return e.Message(), fmt.Sprintf("%s", e.Cause())
}

func kernelCallResolution(err error) []string {
	errno, ok := kpm.Errno(err)
	if !ok {
		return []string{"Check the kernel log (dmesg) for details of the failed module call."}
	}

	switch errno {
	case unix.ENOSYS, unix.EINVAL:
		return []string{
			"Ensure the running kernel is built with loadable kernel patch module support.",
			"Run `kpmd check-version` to verify the kernel module interface.",
		}
	case unix.EPERM, unix.EACCES:
		return []string{"Run kpmd as root."}
	case unix.ENOENT:
		return []string{"Ensure the module name is correct. Run `kpmd list` to see loaded modules."}
	case unix.EEXIST:
		return []string{"The module is already loaded. Unload it first to load it again."}
	default:
		return []string{fmt.Sprintf("The kernel rejected the call with %s. Check the kernel log (dmesg) for details.", errno.Error())}
	}
}

func findResolution(err error) []string {
	switch {
	case errorx.IsOfType(err, errorx.IllegalArgument):
		if arg, ok := errorx.ExtractProperty(err, errorx.PropertyPayload()); ok {
			return []string{fmt.Sprintf("Ensure %q is provided.", arg)}
		}
		return []string{"Ensure all required arguments are provided."}
	case errorx.IsOfType(err, errorx.IllegalFormat):
		return []string{"Ensure provided data is in correct format."}
	case errorx.IsOfType(err, config.NotFoundError):
		if arg, ok := errorx.ExtractProperty(err, errorx.PropertyPayload()); ok {
			return []string{fmt.Sprintf("Ensure configuration file %q exists, is correctly formatted and accessible", arg)}
		}
		return []string{"Ensure configuration file exists and is accessible."}
	case errorx.IsOfType(err, kpm.EncodingError):
		return []string{"Module names, paths and messages cannot contain NUL bytes."}
	case errorx.IsOfType(err, kpm.VersionError):
		return []string{"The kernel module interface is present but unusable. Update the kernel or the manager."}
	case errorx.IsOfType(err, kpm.KernelCallError):
		return kernelCallResolution(err)
	case errorx.IsOfType(err, moddir.EnsureError), errorx.IsOfType(err, moddir.ScanError):
		return []string{fmt.Sprintf("Ensure the module directory %q can be created and read by root.", config.Get().Modules.Dir)}
	case errorx.IsOfType(err, plock.LockHeldError):
		return []string{"Another kpmd daemon is already running. Stop it before starting a new one."}
	case errorx.IsOfType(err, launcher.NotFoundError):
		return []string{fmt.Sprintf("Install the auxiliary daemon at %q or disable the launcher.", config.Get().Launcher.Binary)}
	default:
		return []string{"Check error message for details or contact support"}
	}
}

func traceIdFrom(ctx context.Context) string {
	if v, ok := ctx.Value("traceId").(string); ok {
		return v
	}
	return ""
}

// Diagnose attempts to find a resolution and provide a human friendly error response
func Diagnose(ctx context.Context, ex error) *ErrorDiagnosis {
	msg, cause := toErrorMessage(ex)

	var errno string
	if e, ok := kpm.Errno(ex); ok {
		errno = e.Error()
	}

	return &ErrorDiagnosis{
		Error:      ex,
		ErrorType:  errorx.GetTypeName(ex),
		Message:    msg,
		Cause:      cause,
		Errno:      errno,
		TraceId:    traceIdFrom(ctx),
		Code:       toErrorCode(ex),
		Commit:     version.Commit(),
		Version:    version.Number(),
		Pid:        os.Getpid(),
		Logfile:    config.Get().Log.Filename,
		Resolution: findResolution(ex),
	}
}

// Report prints a diagnosis. Optional instructions are printed ahead of the default resolution.
func Report(w io.Writer, resp *ErrorDiagnosis, instructions ...string) {
	p := paletteFor(w)
	fmt.Fprintf(w, "\n%s%s************************************** Error Diagnostics ******************************************%s\n", p.Bold, p.Red, p.Reset)
	fmt.Fprintf(w, "%s*%s\t%sError:%s %s\n", p.Red, p.Reset, p.Bold+p.White, p.Reset, resp.Message)
	if resp.Cause != "" {
		fmt.Fprintf(w, "%s*%s\t%sCause:%s %s\n", p.Red, p.Reset, p.Bold+p.White, p.Reset, resp.Cause)
	}
	fmt.Fprintf(w, "%s*%s\t%sError Type:%s %s\n", p.Red, p.Reset, p.Bold+p.White, p.Reset, resp.ErrorType)
	fmt.Fprintf(w, "%s*%s\t%sError Code:%s %d\n", p.Red, p.Reset, p.Bold+p.White, p.Reset, resp.Code)
	if resp.Errno != "" {
		fmt.Fprintf(w, "%s*%s\t%sErrno:%s %s\n", p.Red, p.Reset, p.Bold+p.White, p.Reset, resp.Errno)
	}
	fmt.Fprintf(w, "%s*%s\t%sCommit:%s %s\n", p.Red, p.Reset, p.Gray, p.Reset, resp.Commit)
	fmt.Fprintf(w, "%s*%s\t%sPid:%s %d\n", p.Red, p.Reset, p.Gray, p.Reset, resp.Pid)
	fmt.Fprintf(w, "%s*%s\t%sTraceId:%s %s\n", p.Red, p.Reset, p.Gray, p.Reset, resp.TraceId)
	fmt.Fprintf(w, "%s*%s\t%sVersion:%s %s\n", p.Red, p.Reset, p.Gray, p.Reset, resp.Version)
	if resp.Logfile != "" {
		fmt.Fprintf(w, "%s*%s\t%sLogfile:%s %s\n", p.Red, p.Reset, p.Cyan, p.Reset, resp.Logfile)
	}
	fmt.Fprintf(w, "%s%s***************************************************************************************************%s\n", p.Bold, p.Red, p.Reset)
	fmt.Fprintf(w, "\n%s%s****************************************** Resolution *********************************************%s\n", p.Bold, p.Yellow, p.Reset)

	if len(instructions) > 0 && instructions[0] != "" {
		for _, line := range strings.Split(instructions[0], "\n") {
			if line == "" {
				fmt.Fprintf(w, "%s*%s\n", p.Yellow, p.Reset)
			} else {
				fmt.Fprintf(w, "%s*%s\t%s\n", p.Yellow, p.Reset, p.Bold+p.White+line+p.Reset)
			}
		}
		if len(resp.Resolution) > 0 {
			fmt.Fprintf(w, "%s*%s\n", p.Yellow, p.Reset)
		}
	}

	for _, r := range resp.Resolution {
		fmt.Fprintf(w, "%s*%s\t%s\n", p.Yellow, p.Reset, p.White+r+p.Reset)
	}

	fmt.Fprintf(w, "%s%s***************************************************************************************************%s\n", p.Bold, p.Yellow, p.Reset)
}

// CheckErr prints diagnosis and exit with error code 1
// Optional instructions can be provided to give additional context to the user
func CheckErr(ctx context.Context, err error, instructions ...string) {
	logx.As().Error().Err(err).Msg("error occurred")
	fmt.Fprintf(os.Stderr, "%+v\n", err)
	Report(os.Stderr, Diagnose(ctx, err), instructions...)

	os.Exit(1)
}
