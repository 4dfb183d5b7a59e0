// SPDX-License-Identifier: Apache-2.0

package plock

import "github.com/joomcode/errorx"

var (
	ErrorsNamespace = errorx.NewNamespace("plock")
	LockError       = ErrorsNamespace.NewType("lock_error")
	LockHeldError   = ErrorsNamespace.NewType("lock_held", errorx.Timeout())
	pathProperty    = errorx.RegisterPrintableProperty("path")
)
