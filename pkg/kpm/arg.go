// SPDX-License-Identifier: Apache-2.0

package kpm

// Arg is a command specific control call argument. It is either a byte buffer passed by
// pointer, a plain word such as a buffer length, or null.
type Arg struct {
	buf  []byte
	word uintptr
}

// Null is the zero argument.
var Null = Arg{}

// Buffer passes b by pointer to its first byte. An empty buffer is passed as null.
func Buffer(b []byte) Arg {
	return Arg{buf: b}
}

// Word passes n by value.
func Word(n int) Arg {
	return Arg{word: uintptr(n)}
}

// Bytes returns the buffer backing a, or nil for word and null arguments.
func (a Arg) Bytes() []byte {
	return a.buf
}

// Value returns the word carried by a.
func (a Arg) Value() uintptr {
	return a.word
}

// IsNull reports whether a is passed to the kernel as zero.
func (a Arg) IsNull() bool {
	return len(a.buf) == 0 && a.word == 0
}
