// SPDX-License-Identifier: Apache-2.0

package kpm

import (
	"bytes"
	"strings"

	"golang.org/x/sys/unix"
	"golang.org/x/text/encoding/unicode"
)

// Decode returns the text a kernel wrote into buf. Everything after the first NUL byte is
// ignored and invalid UTF-8 sequences are replaced with U+FFFD.
func Decode(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}

	out, err := unicode.UTF8.NewDecoder().Bytes(buf)
	if err != nil {
		return strings.ToValidUTF8(string(buf), "\uFFFD")
	}

	return string(out)
}

// Encode returns s as a NUL terminated byte buffer. It fails with an EncodingError when s
// contains a NUL byte itself.
func Encode(s string) ([]byte, error) {
	b, err := unix.ByteSliceFromString(s)
	if err != nil {
		return nil, NewEncodingError(err, s)
	}
	return b, nil
}
