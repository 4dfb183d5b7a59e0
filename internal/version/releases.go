// SPDX-License-Identifier: Apache-2.0

package version

import (
	_ "embed"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/joomcode/errorx"
)

//go:embed COMMIT
var commit string

//go:embed VERSION
var number string

// buildMode is set at build time via ldflags for release builds
// -ldflags="-X 'github.com/hashgraph/kpmd/internal/version.buildMode=release'"
var buildMode string

func Commit() string {
	return strings.TrimSpace(commit)
}

func Number() string {
	return strings.TrimSpace(number)
}

// Semver parses the embedded version number.
func Semver() (*semver.Version, error) {
	v, err := semver.StrictNewVersion(Number())
	if err != nil {
		return nil, errorx.IllegalFormat.Wrap(err, "invalid build version %q", Number())
	}
	return v, nil
}

// IsReleaseBuild returns true if this is a production release build.
// Local/dev builds will return false.
func IsReleaseBuild() bool {
	return strings.TrimSpace(buildMode) == "release"
}

// BuildMode returns the current build mode ("release" or "dev")
func BuildMode() string {
	if IsReleaseBuild() {
		return "release"
	}
	return "dev"
}
