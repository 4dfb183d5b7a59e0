// SPDX-License-Identifier: Apache-2.0

package moddir

import "github.com/joomcode/errorx"

var (
	ErrorsNamespace = errorx.NewNamespace("moddir")
	EnsureError     = ErrorsNamespace.NewType("ensure_error")
	ScanError       = ErrorsNamespace.NewType("scan_error")
	RemoveError     = ErrorsNamespace.NewType("remove_error")
	pathProperty    = errorx.RegisterPrintableProperty("path")
)
