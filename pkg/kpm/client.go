// SPDX-License-Identifier: Apache-2.0

package kpm

import (
	"strings"
	"sync"

	"github.com/hashgraph/kpmd/pkg/moddir"
	"github.com/joomcode/errorx"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

const (
	DefaultListBufferSize    = 1024
	DefaultInfoBufferSize    = 256
	DefaultVersionBufferSize = 4096

	// versionErrorMarker prefixes the version reply of a kernel whose module subsystem is
	// present but unusable.
	versionErrorMarker = "Error"
)

// Client speaks the kernel module protocol. Every operation is a single control call made through
// the Gateway; the kernel state is never cached.
//
// Calls made through one Client are serialised since the kernel interface is not assumed to be
// safe for overlapping calls.
type Client struct {
	mu          sync.Mutex
	gw          Gateway
	dir         moddir.Dir
	log         zerolog.Logger
	listSize    int
	infoSize    int
	versionSize int
}

type Option func(c *Client)

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithModuleDir sets the directory that Unload removes module files from.
func WithModuleDir(dir moddir.Dir) Option {
	return func(c *Client) {
		c.dir = dir
	}
}

// WithBufferSizes overrides the reply buffer sizes of List, Info and CheckVersion.
// Non-positive values keep the defaults.
func WithBufferSizes(list, info, version int) Option {
	return func(c *Client) {
		if list > 0 {
			c.listSize = list
		}
		if info > 0 {
			c.infoSize = info
		}
		if version > 0 {
			c.versionSize = version
		}
	}
}

func NewClient(gw Gateway, opts ...Option) (*Client, error) {
	if gw == nil {
		return nil, errorx.IllegalArgument.New("gateway cannot be nil")
	}

	c := &Client{
		gw:          gw,
		log:         zerolog.Nop(),
		listSize:    DefaultListBufferSize,
		infoSize:    DefaultInfoBufferSize,
		versionSize: DefaultVersionBufferSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Client) invoke(cmd Command, arg1, arg2 Arg) (int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.gw.Invoke(cmd, arg1, arg2)
}

// Load loads the module file at path. An empty args string is passed to the kernel as null.
// The module file is left in place.
func (c *Client) Load(path string, args string) error {
	p, err := Encode(path)
	if err != nil {
		return err
	}

	a := Null
	if args != "" {
		b, err := Encode(args)
		if err != nil {
			return err
		}
		a = Buffer(b)
	}

	if _, err = c.invoke(CmdLoad, Buffer(p), a); err != nil {
		return errorx.Decorate(err, "failed to load module from %s", path)
	}

	c.log.Info().Str("path", path).Msg("Loaded kernel module")
	return nil
}

// Unload unloads the module called name and then deletes the module files backing it.
//
// A module the kernel does not know about counts as unloaded. Failing to delete a module file
// is logged and does not fail the call since the kernel side is the operation of record.
func (c *Client) Unload(name string) error {
	if name == "" {
		return errorx.IllegalArgument.New("module name cannot be empty")
	}

	n, err := Encode(name)
	if err != nil {
		return err
	}

	if _, err = c.invoke(CmdUnload, Buffer(n), Null); err != nil {
		errno, ok := Errno(err)
		if !ok || errno != unix.ENOENT {
			return errorx.Decorate(err, "failed to unload module %s", name)
		}
		c.log.Debug().Str("module", name).Msg("Module is not loaded in the kernel")
	} else {
		c.log.Info().Str("module", name).Msg("Unloaded kernel module")
	}

	c.removeModuleFiles(name)
	return nil
}

func (c *Client) removeModuleFiles(name string) {
	if c.dir.Path == "" {
		return
	}

	removed, err := c.dir.Remove(name)
	if err != nil {
		c.log.Warn().Err(err).Str("module", name).Msg("Failed to delete module file after unload")
		return
	}
	if removed {
		c.log.Info().Str("module", name).Str("path", c.dir.File(name)).Msg("Deleted module file")
	}
}

// Count returns the number of modules currently loaded in the kernel.
func (c *Client) Count() (int, error) {
	n, err := c.invoke(CmdCount, Null, Null)
	if err != nil {
		return 0, errorx.Decorate(err, "failed to count loaded modules")
	}
	return int(n), nil
}

// List returns the kernel's listing of loaded modules. A listing larger than the reply buffer
// is truncated.
func (c *Client) List() (string, error) {
	buf := make([]byte, c.listSize)
	if _, err := c.invoke(CmdList, Buffer(buf), Word(len(buf))); err != nil {
		return "", errorx.Decorate(err, "failed to list loaded modules")
	}
	return Decode(buf), nil
}

// Info returns the kernel's description of the module called name.
func (c *Client) Info(name string) (string, error) {
	n, err := Encode(name)
	if err != nil {
		return "", err
	}

	buf := make([]byte, c.infoSize)
	if _, err = c.invoke(CmdInfo, Buffer(n), Buffer(buf)); err != nil {
		return "", errorx.Decorate(err, "failed to get info of module %s", name)
	}
	return Decode(buf), nil
}

// Control sends msg to the module called name and returns the module's reply code.
func (c *Client) Control(name string, msg string) (int32, error) {
	n, err := Encode(name)
	if err != nil {
		return 0, err
	}

	m, err := Encode(msg)
	if err != nil {
		return 0, err
	}

	ret, err := c.invoke(CmdControl, Buffer(n), Buffer(m))
	if err != nil {
		return 0, errorx.Decorate(err, "failed to send control message to module %s", name)
	}
	return ret, nil
}

// CheckVersion fetches the version token of the kernel module interface. It fails when the
// interface is absent or reports a token that is empty or starts with "Error".
func (c *Client) CheckVersion() (string, error) {
	buf := make([]byte, c.versionSize)
	if _, err := c.invoke(CmdVersion, Buffer(buf), Word(len(buf))); err != nil {
		return "", errorx.Decorate(err, "failed to query kernel module interface version")
	}

	v := Decode(buf)
	if err := ValidateVersion(v); err != nil {
		return "", err
	}
	return v, nil
}

// ValidateVersion checks the version token rule: non-empty and not starting with "Error".
func ValidateVersion(v string) error {
	if v == "" || strings.HasPrefix(v, versionErrorMarker) {
		return NewVersionError(v)
	}
	return nil
}
