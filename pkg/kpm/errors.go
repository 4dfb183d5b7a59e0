// SPDX-License-Identifier: Apache-2.0

package kpm

import (
	"github.com/joomcode/errorx"
	"golang.org/x/sys/unix"
)

var (
	ErrorsNamespace = errorx.NewNamespace("kpm")
	KernelCallError = ErrorsNamespace.NewType("kernel_call_error")
	EncodingError   = ErrorsNamespace.NewType("encoding_error")
	VersionError    = ErrorsNamespace.NewType("version_invalid")
	ErrnoProperty   = errorx.RegisterPrintableProperty("errno")
	commandProperty = errorx.RegisterPrintableProperty("command")
	valueProperty   = errorx.RegisterPrintableProperty("value")
	versionProperty = errorx.RegisterPrintableProperty("version")
)

const (
	kernelCallErrorMsg = "control call %s failed: %s"
	encodingErrorMsg   = "value %q contains an embedded NUL byte"
	versionErrorMsg    = "kernel module interface reported an unusable version %q"
)

// NewKernelCallError returns the error for a control call that reported errno.
func NewKernelCallError(cmd Command, errno unix.Errno) *errorx.Error {
	return KernelCallError.Wrap(errno, kernelCallErrorMsg, cmd, errno.Error()).
		WithProperty(commandProperty, cmd.String()).
		WithProperty(ErrnoProperty, errno)
}

func NewEncodingError(cause error, value string) *errorx.Error {
	e := EncodingError.New(encodingErrorMsg, value).
		WithProperty(valueProperty, value)
	if cause != nil {
		e = e.WithUnderlyingErrors(cause)
	}
	return e
}

func NewVersionError(version string) *errorx.Error {
	return VersionError.New(versionErrorMsg, version).
		WithProperty(versionProperty, version)
}

// Errno extracts the platform error code carried by a KernelCallError.
func Errno(err error) (unix.Errno, bool) {
	v, ok := errorx.ExtractProperty(err, ErrnoProperty)
	if !ok {
		return 0, false
	}
	errno, ok := v.(unix.Errno)
	return errno, ok
}
