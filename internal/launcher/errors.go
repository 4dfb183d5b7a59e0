// SPDX-License-Identifier: Apache-2.0

package launcher

import "github.com/joomcode/errorx"

var (
	ErrorsNamespace    = errorx.NewNamespace("launcher")
	NotFoundError      = ErrorsNamespace.NewType("not_found", errorx.NotFound())
	NotExecutableError = ErrorsNamespace.NewType("not_executable")
	SpawnError         = ErrorsNamespace.NewType("spawn_error")
	binaryProperty     = errorx.RegisterPrintableProperty("binary")
)
