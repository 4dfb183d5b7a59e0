// SPDX-License-Identifier: Apache-2.0

package version

import (
	"encoding/json"
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/joomcode/errorx"
	"gopkg.in/yaml.v3"
)

const (
	FormatYAML = "yaml"
	FormatJSON = "json"

	ChannelStable     = "stable"
	ChannelPreview    = "preview"
	ChannelPrerelease = "prerelease"
)

// Info describes the running build and, once queried, the kernel module interface it drives.
type Info struct {
	Number    string `json:"version" yaml:"version"`
	Channel   string `json:"channel" yaml:"channel"`
	Commit    string `json:"commit" yaml:"commit"`
	GoVersion string `json:"go" yaml:"go"`
	BuildMode string `json:"build" yaml:"build"`
	Kernel    string `json:"kernel,omitempty" yaml:"kernel,omitempty"`
}

var encoders = map[string]func(any) ([]byte, error){
	FormatYAML: func(v any) ([]byte, error) { return yaml.Marshal(v) },
	FormatJSON: json.Marshal,
}

// Build returns the information of this binary. It fails with IllegalFormat when the embedded
// version number is not strict semver.
func Build() (Info, error) {
	v, err := Semver()
	if err != nil {
		return Info{}, err
	}

	return Info{
		Number:    v.String(),
		Channel:   channelOf(v),
		Commit:    Commit(),
		GoVersion: runtime.Version(),
		BuildMode: BuildMode(),
	}, nil
}

// channelOf classifies a version: anything with a pre-release tag is a prerelease, 0.x is a preview.
func channelOf(v *semver.Version) string {
	switch {
	case v.Prerelease() != "":
		return ChannelPrerelease
	case v.Major() == 0:
		return ChannelPreview
	default:
		return ChannelStable
	}
}

// Render encodes the info as yaml or json.
func (i Info) Render(format string) (string, error) {
	encode, ok := encoders[strings.ToLower(format)]
	if !ok {
		return "", errorx.IllegalFormat.New("unsupported format: %s", format)
	}

	out, err := encode(i)
	if err != nil {
		return "", errorx.IllegalFormat.Wrap(err, "failed to render version info as %s", format)
	}
	return string(out), nil
}
