// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hashgraph/kpmd/pkg/kpm"
	"golang.org/x/sys/unix"
)

// FakeGateway is an in-memory kernel module subsystem. A loaded module is named after its file
// without the extension.
type FakeGateway struct {
	mu      sync.Mutex
	version string
	modules map[string]string
	fail    map[kpm.Command]unix.Errno
	calls   []kpm.Command
}

func NewFakeGateway(version string) *FakeGateway {
	return &FakeGateway{
		version: version,
		modules: map[string]string{},
		fail:    map[kpm.Command]unix.Errno{},
	}
}

// Fail makes every later call of cmd return errno.
func (g *FakeGateway) Fail(cmd kpm.Command, errno unix.Errno) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail[cmd] = errno
}

// Loaded returns the names of the loaded modules in order.
func (g *FakeGateway) Loaded() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.names()
}

// Preload marks name as loaded with args.
func (g *FakeGateway) Preload(name, args string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.modules[name] = args
}

// Calls returns the commands issued so far.
func (g *FakeGateway) Calls() []kpm.Command {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]kpm.Command(nil), g.calls...)
}

func (g *FakeGateway) Invoke(cmd kpm.Command, arg1, arg2 kpm.Arg) (int32, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, cmd)
	if errno, ok := g.fail[cmd]; ok {
		return -int32(errno), kpm.NewKernelCallError(cmd, errno)
	}

	switch cmd {
	case kpm.CmdLoad:
		path := kpm.Decode(arg1.Bytes())
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if _, ok := g.modules[name]; ok {
			return g.errno(cmd, unix.EEXIST)
		}
		g.modules[name] = kpm.Decode(arg2.Bytes())
		return 0, nil
	case kpm.CmdUnload:
		name := kpm.Decode(arg1.Bytes())
		if _, ok := g.modules[name]; !ok {
			return g.errno(cmd, unix.ENOENT)
		}
		delete(g.modules, name)
		return 0, nil
	case kpm.CmdCount:
		return int32(len(g.modules)), nil
	case kpm.CmdList:
		copy(arg1.Bytes(), strings.Join(g.names(), "\n"))
		return 0, nil
	case kpm.CmdInfo:
		name := kpm.Decode(arg1.Bytes())
		args, ok := g.modules[name]
		if !ok {
			return g.errno(cmd, unix.ENOENT)
		}
		copy(arg2.Bytes(), fmt.Sprintf("name=%s\nargs=%s", name, args))
		return 0, nil
	case kpm.CmdControl:
		if _, ok := g.modules[kpm.Decode(arg1.Bytes())]; !ok {
			return g.errno(cmd, unix.ENOENT)
		}
		return int32(len(kpm.Decode(arg2.Bytes()))), nil
	case kpm.CmdVersion:
		if g.version == "" {
			return g.errno(cmd, unix.ENOSYS)
		}
		copy(arg1.Bytes(), g.version)
		return 0, nil
	default:
		return g.errno(cmd, unix.EINVAL)
	}
}

func (g *FakeGateway) errno(cmd kpm.Command, errno unix.Errno) (int32, error) {
	return -int32(errno), kpm.NewKernelCallError(cmd, errno)
}

func (g *FakeGateway) names() []string {
	names := make([]string, 0, len(g.modules))
	for name := range g.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
