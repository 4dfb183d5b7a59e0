// SPDX-License-Identifier: Apache-2.0

package lifecycle

import "github.com/joomcode/errorx"

var (
	ErrorsNamespace = errorx.NewNamespace("lifecycle")
	StartupError    = ErrorsNamespace.NewType("startup_error")
	pathProperty    = errorx.RegisterPrintableProperty("path")
)
