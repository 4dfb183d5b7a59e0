// SPDX-License-Identifier: Apache-2.0

package kpm

import "golang.org/x/sys/unix"

//go:generate mockgen -source=gateway.go -destination=mock_gateway_test.go -package=kpm

// Gateway issues control calls to the kernel module subsystem.
//
// Invoke performs exactly one privileged call and never retries. A negative kernel result is
// returned as a KernelCallError carrying the negated value as errno; the non-negative result is
// returned as is.
type Gateway interface {
	Invoke(cmd Command, arg1, arg2 Arg) (int32, error)
}

// NewGateway returns the gateway of the running platform.
func NewGateway() Gateway {
	return newPlatformGateway()
}

// resultError converts a control call result into an error. Non-negative results are success.
func resultError(cmd Command, result int32) error {
	if result >= 0 {
		return nil
	}
	return NewKernelCallError(cmd, errnoOf(result))
}

func errnoOf(result int32) unix.Errno {
	return unix.Errno(-int64(result))
}
