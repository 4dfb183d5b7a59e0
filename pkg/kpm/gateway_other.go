// SPDX-License-Identifier: Apache-2.0

//go:build unix && !linux

package kpm

import "golang.org/x/sys/unix"

type unsupportedGateway struct{}

func newPlatformGateway() Gateway {
	return unsupportedGateway{}
}

func (unsupportedGateway) Invoke(cmd Command, _, _ Arg) (int32, error) {
	return -int32(unix.ENOSYS), NewKernelCallError(cmd, unix.ENOSYS)
}
