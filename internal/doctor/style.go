// SPDX-License-Identifier: Apache-2.0

package doctor

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// palette holds the ANSI escape codes used by Report.
type palette struct {
	Red    string
	Yellow string
	Cyan   string
	White  string
	Gray   string
	Reset  string
	Bold   string
}

var ansi = palette{
	Red:    "\033[31m",
	Yellow: "\033[33m",
	Cyan:   "\033[36m",
	White:  "\033[37m",
	Gray:   "\033[90m",
	Reset:  "\033[0m",
	Bold:   "\033[1m",
}

// paletteFor returns the colors for w: none unless w is a terminal and NO_COLOR is unset.
func paletteFor(w io.Writer) palette {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return palette{}
	}

	f, ok := w.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) {
		return palette{}
	}
	return ansi
}
