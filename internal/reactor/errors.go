// SPDX-License-Identifier: Apache-2.0

package reactor

import "github.com/joomcode/errorx"

var (
	ErrorsNamespace = errorx.NewNamespace("reactor")
	SetupError      = ErrorsNamespace.NewType("setup_error")
	WatchError      = ErrorsNamespace.NewType("watch_error")
	pathProperty    = errorx.RegisterPrintableProperty("path")
)
