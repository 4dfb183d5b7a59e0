// SPDX-License-Identifier: Apache-2.0

package kpm

import "fmt"

// Magic is the prctl option value the kernel uses to route calls to the module subsystem.
const Magic uintptr = 0xDEADBEEF

// Command is a kernel module protocol command code.
type Command uint32

const (
	CmdLoad    Command = 28
	CmdUnload  Command = 29
	CmdCount   Command = 30
	CmdList    Command = 31
	CmdInfo    Command = 32
	CmdControl Command = 33
	CmdVersion Command = 34
)

var commandNames = map[Command]string{
	CmdLoad:    "load",
	CmdUnload:  "unload",
	CmdCount:   "count",
	CmdList:    "list",
	CmdInfo:    "info",
	CmdControl: "control",
	CmdVersion: "version",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", uint32(c))
}

// Valid reports whether c is one of the protocol command codes.
func (c Command) Valid() bool {
	_, ok := commandNames[c]
	return ok
}
