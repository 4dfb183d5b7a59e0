// SPDX-License-Identifier: Apache-2.0

// Package moddir guards the module directory: it keeps the directory present and world accessible
// and maps module files to the identities the kernel knows them by.
package moddir

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joomcode/errorx"
)

const (
	DefaultPath      = "/data/adb/kpm"
	DefaultExtension = ".kpm"

	// RequiredMode is the permission mask the directory must carry so that writers and the loader
	// running under different privilege contexts can all reach it.
	RequiredMode os.FileMode = 0o777
)

// Dir is the module directory. Files directly inside Path whose names end with Extension are
// module files; their identity is the file name without the extension.
type Dir struct {
	Path      string
	Extension string
}

// New returns a Dir, substituting the defaults for empty values.
func New(path string, ext string) Dir {
	if path == "" {
		path = DefaultPath
	}
	if ext == "" {
		ext = DefaultExtension
	}
	return Dir{Path: path, Extension: ext}
}

func Default() Dir {
	return New("", "")
}

// Ensure creates the directory and its parents if needed and widens its mode to RequiredMode.
// Calling it again on a conforming directory changes nothing.
func (d Dir) Ensure() error {
	if err := os.MkdirAll(d.Path, RequiredMode); err != nil {
		return EnsureError.Wrap(err, "failed to create module directory %s", d.Path).
			WithProperty(pathProperty, d.Path)
	}

	fi, err := os.Stat(d.Path)
	if err != nil {
		return EnsureError.Wrap(err, "failed to stat module directory %s", d.Path).
			WithProperty(pathProperty, d.Path)
	}

	if !fi.IsDir() {
		return EnsureError.New("module directory path %s is not a directory", d.Path).
			WithProperty(pathProperty, d.Path)
	}

	perm := fi.Mode().Perm()
	if perm&RequiredMode == RequiredMode {
		return nil
	}

	// MkdirAll is subject to the umask so the mode has to be set explicitly.
	if err = os.Chmod(d.Path, perm|RequiredMode); err != nil {
		return EnsureError.Wrap(err, "failed to set permissions of module directory %s", d.Path).
			WithProperty(pathProperty, d.Path)
	}

	return nil
}

// IsModuleFile reports whether the base name of path carries the module extension.
func (d Dir) IsModuleFile(path string) bool {
	ok, err := doublestar.Match("*"+d.Extension, filepath.Base(path))
	return err == nil && ok
}

// Identity returns the module identity of path: its base name without the module extension.
func (d Dir) Identity(path string) string {
	return strings.TrimSuffix(filepath.Base(path), d.Extension)
}

// File returns the path of the module file backing the identity name.
func (d Dir) File(name string) string {
	return filepath.Join(d.Path, name+d.Extension)
}

// Scan returns a snapshot of the module files in the directory sorted by name.
// Subdirectories are never module files.
func (d Dir) Scan() ([]string, error) {
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		return nil, ScanError.Wrap(err, "failed to read module directory %s", d.Path).
			WithProperty(pathProperty, d.Path)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !d.IsModuleFile(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(d.Path, entry.Name()))
	}

	return files, nil
}

// Remove deletes the module file backing the identity name. It reports whether a file was
// deleted; a missing file is not an error.
func (d Dir) Remove(name string) (bool, error) {
	if err := ValidateIdentity(name); err != nil {
		return false, err
	}

	path := d.File(name)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, RemoveError.Wrap(err, "failed to remove module file %s", path).
			WithProperty(pathProperty, path)
	}

	return true, nil
}

// ValidateIdentity rejects identities that cannot name a file directly inside the directory.
func ValidateIdentity(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, os.PathSeparator) {
		return errorx.IllegalArgument.New("invalid module identity %q", name)
	}
	return nil
}
