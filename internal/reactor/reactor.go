// SPDX-License-Identifier: Apache-2.0

// Package reactor keeps the kernel in step with the module directory by turning file system
// events into module protocol calls.
package reactor

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/hashgraph/kpmd/pkg/moddir"
	"github.com/joomcode/errorx"
	"github.com/rs/zerolog"
)

// ModuleClient is the part of the module protocol the reactor drives.
type ModuleClient interface {
	Load(path string, args string) error
	Unload(name string) error
}

type State int

const (
	// Inactive means no watch is registered.
	Inactive State = iota
	// Active means the watch is registered and events are being dispatched.
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "inactive"
}

// Action is what the reactor did with a single event.
type Action int

const (
	ActionIgnore Action = iota
	ActionLoad
	ActionUnload
	ActionModify
)

func (a Action) String() string {
	switch a {
	case ActionLoad:
		return "load"
	case ActionUnload:
		return "unload"
	case ActionModify:
		return "modify"
	default:
		return "ignore"
	}
}

// Reactor watches the module directory. Create events of module files load them and remove
// events unload them. Writes, renames and permission changes are only logged.
//
// Events are consumed by a single goroutine in the order the watcher reports them, so protocol
// calls made by one reactor never overlap.
type Reactor struct {
	mu     sync.Mutex
	dir    moddir.Dir
	client ModuleClient
	log    zerolog.Logger

	state State
	fsw   *fsnotify.Watcher
	stop  chan struct{}
	done  chan struct{}
	err   error
}

type Option func(r *Reactor)

func WithLogger(log zerolog.Logger) Option {
	return func(r *Reactor) {
		r.log = log
	}
}

func New(dir moddir.Dir, client ModuleClient, opts ...Option) (*Reactor, error) {
	if client == nil {
		return nil, errorx.IllegalArgument.New("module client cannot be nil")
	}
	if dir.Path == "" {
		return nil, errorx.IllegalArgument.New("module directory cannot be empty")
	}

	r := &Reactor{
		dir:    dir,
		client: client,
		log:    zerolog.Nop(),
		state:  Inactive,
	}

	for _, opt := range opts {
		opt(r)
	}

	// a reactor that never started is already done
	r.done = make(chan struct{})
	close(r.done)

	return r, nil
}

// Start registers the watch and returns without waiting for any event.
func (r *Reactor) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Active {
		return errorx.IllegalState.New("reactor is already watching %s", r.dir.Path)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return SetupError.Wrap(err, "failed to create file system watcher").
			WithProperty(pathProperty, r.dir.Path)
	}

	if err = fsw.Add(r.dir.Path); err != nil {
		_ = fsw.Close()
		return SetupError.Wrap(err, "failed to watch module directory %s", r.dir.Path).
			WithProperty(pathProperty, r.dir.Path)
	}

	r.fsw = fsw
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.err = nil
	r.state = Active

	go r.run(fsw, r.stop, r.done)

	r.log.Info().Str("path", r.dir.Path).Msg("Watching module directory")
	return nil
}

// Stop removes the watch and waits for the event loop to finish. Stopping an inactive reactor
// does nothing.
func (r *Reactor) Stop() {
	r.mu.Lock()
	stop, done := r.stop, r.done
	r.stop = nil
	r.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	<-done
}

func (r *Reactor) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Done is closed when the event loop has ended, either because of Stop or a fatal watcher error.
func (r *Reactor) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Err returns the fatal error that ended the event loop, if any.
func (r *Reactor) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Reactor) run(fsw *fsnotify.Watcher, stop <-chan struct{}, done chan<- struct{}) {
	err := r.loop(fsw, stop)

	if closeErr := fsw.Close(); closeErr != nil {
		r.log.Warn().Err(closeErr).Msg("Failed to close file system watcher")
	}

	r.mu.Lock()
	r.err = err
	r.fsw = nil
	r.state = Inactive
	r.mu.Unlock()

	if err != nil {
		r.log.Error().Err(err).Str("path", r.dir.Path).Msg("Module directory watch stopped")
	} else {
		r.log.Info().Str("path", r.dir.Path).Msg("Module directory watch stopped")
	}

	close(done)
}

func (r *Reactor) loop(fsw *fsnotify.Watcher, stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil

		case evt, ok := <-fsw.Events:
			if !ok {
				return WatchError.New("file system event channel closed unexpectedly").
					WithProperty(pathProperty, r.dir.Path)
			}
			if r.isDirectoryGone(evt) {
				return WatchError.New("module directory %s was removed", r.dir.Path).
					WithProperty(pathProperty, r.dir.Path)
			}
			r.handle(evt)

		case err, ok := <-fsw.Errors:
			if !ok {
				return WatchError.New("file system error channel closed unexpectedly").
					WithProperty(pathProperty, r.dir.Path)
			}
			if isFatalWatchError(err) {
				return WatchError.Wrap(err, "fatal file system watcher error").
					WithProperty(pathProperty, r.dir.Path)
			}
			r.log.Warn().Err(err).Str("path", r.dir.Path).Msg("File system watcher error")
		}
	}
}

// isDirectoryGone reports whether evt removed or moved the watched directory itself. No further
// events arrive for it afterwards.
func (r *Reactor) isDirectoryGone(evt fsnotify.Event) bool {
	if !evt.Has(fsnotify.Remove) && !evt.Has(fsnotify.Rename) {
		return false
	}
	return filepath.Clean(evt.Name) == filepath.Clean(r.dir.Path)
}

// handle dispatches a single event. Protocol failures are logged and never end the watch.
func (r *Reactor) handle(evt fsnotify.Event) Action {
	switch {
	case evt.Has(fsnotify.Create):
		if !r.dir.IsModuleFile(evt.Name) || r.dir.Identity(evt.Name) == "" {
			return ActionIgnore
		}
		if fi, err := os.Stat(evt.Name); err == nil && fi.IsDir() {
			return ActionIgnore
		}

		r.log.Info().Str("path", evt.Name).Msg("Module file created")
		if err := r.client.Load(evt.Name, ""); err != nil {
			r.log.Error().Err(err).Str("path", evt.Name).Msg("Failed to load module")
		}
		return ActionLoad

	case evt.Has(fsnotify.Remove):
		if !r.dir.IsModuleFile(evt.Name) {
			return ActionIgnore
		}
		name := r.dir.Identity(evt.Name)
		if name == "" {
			return ActionIgnore
		}

		r.log.Info().Str("path", evt.Name).Str("module", name).Msg("Module file removed")
		if err := r.client.Unload(name); err != nil {
			r.log.Error().Err(err).Str("module", name).Msg("Failed to unload module")
		}
		return ActionUnload

	case evt.Has(fsnotify.Write), evt.Has(fsnotify.Rename), evt.Has(fsnotify.Chmod):
		if !r.dir.IsModuleFile(evt.Name) {
			return ActionIgnore
		}
		r.log.Debug().Str("path", evt.Name).Str("op", evt.Op.String()).Msg("Module file modified")
		return ActionModify
	}

	return ActionIgnore
}
