// SPDX-License-Identifier: Apache-2.0

// Package sanity validates user supplied paths and names before they reach the file system or a
// generated shell script.
package sanity

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joomcode/errorx"
)

// Security validation patterns for paths
var (
	// shellMetachars contains dangerous shell metacharacters that should be rejected
	shellMetachars = regexp.MustCompile(`[;&|$\x60<>(){}[\]*?~]`)

	// validPathChars allows alphanumeric, forward slash, dash, underscore and dot
	validPathChars = regexp.MustCompile(`^[a-zA-Z0-9/_.\-]+$`)

	// validExtension is a dot followed by at least one safe character
	validExtension = regexp.MustCompile(`^\.[a-zA-Z0-9_\-]+$`)
)

// SanitizePath validates and sanitizes the given path according to strict security rules.
//
// Specifically, it:
//  1. Rejects paths containing shell metacharacters (e.g., ; & | $ ` < > ( ) { } [ ] * ? ~).
//  2. Rejects path traversal attempts (segments equal to "..").
//  3. Requires the input path to be absolute.
//  4. Normalizes the path by removing redundant slashes and dot directories (using filepath.Clean).
//
// Returns the sanitized (cleaned) path, or an error if the input is invalid or unsafe.
func SanitizePath(path string) (string, error) {
	if path == "" {
		return "", errorx.IllegalArgument.New("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		return "", errorx.IllegalArgument.New("path must be absolute: %s", path)
	}

	// checked before cleaning since Clean would resolve the segments away
	for _, segment := range strings.Split(path, "/") {
		if segment == ".." {
			return "", errorx.IllegalArgument.New("path cannot contain '..' segments: %s", path)
		}
	}

	if shellMetachars.MatchString(path) {
		return "", errorx.IllegalArgument.New("path contains shell metacharacters: %s", path)
	}

	if !validPathChars.MatchString(path) {
		return "", errorx.IllegalArgument.New("path contains invalid characters: %s", path)
	}

	return filepath.Clean(path), nil
}

// ValidateExtension checks a file extension such as ".kpm". Glob metacharacters and separators
// are rejected since the extension is used to build match patterns.
func ValidateExtension(ext string) error {
	if !validExtension.MatchString(ext) {
		return errorx.IllegalArgument.New("invalid file extension: %q", ext)
	}
	return nil
}
