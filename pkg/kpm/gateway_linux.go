// SPDX-License-Identifier: Apache-2.0

//go:build linux

package kpm

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

type prctlGateway struct{}

func newPlatformGateway() Gateway {
	return prctlGateway{}
}

func (prctlGateway) Invoke(cmd Command, arg1, arg2 Arg) (int32, error) {
	// the kernel writes the reply through the last argument; a kernel without the
	// module subsystem leaves it untouched
	result := -int32(unix.ENOSYS)

	_, _, errno := unix.Syscall6(
		unix.SYS_PRCTL,
		Magic,
		uintptr(cmd),
		arg1.uintptr(),
		arg2.uintptr(),
		uintptr(unsafe.Pointer(&result)),
		0,
	)
	runtime.KeepAlive(arg1.buf)
	runtime.KeepAlive(arg2.buf)

	if errno != 0 {
		return -int32(errno), NewKernelCallError(cmd, errno)
	}

	return result, resultError(cmd, result)
}

func (a Arg) uintptr() uintptr {
	if len(a.buf) > 0 {
		return uintptr(unsafe.Pointer(&a.buf[0]))
	}
	return a.word
}
