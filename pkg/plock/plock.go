// SPDX-License-Identifier: Apache-2.0

// Package plock provides a host wide process lock backed by flock(2). The lock is tied to the open
// lock file, so the kernel drops it when the owning process dies and stale locks cannot exist.
package plock

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/joomcode/errorx"
)

const (
	DefaultRetryDelay = 100 * time.Millisecond
	// IdentifierSeparator separates the fields of Info.String.
	IdentifierSeparator = ":"
)

// Lock is a process lock.
type Lock interface {
	// Acquire blocks until the lock is held.
	Acquire() error

	// TryAcquire attempts to take the lock until the timeout expires.
	TryAcquire(timeout time.Duration) error

	// Release releases the lock. It fails if the lock is not held.
	Release() error

	Info() *Info

	IsAcquired() bool
}

// Info describes a lock and its holder.
type Info struct {
	Name         string
	PID          int
	LockFilePath string
	ActivatedAt  *time.Time
}

// String returns {name}:{PID}:{ActivatedAt}:{lockFilePath}
func (i *Info) String() string {
	activatedAt := "-"
	if i.ActivatedAt != nil {
		activatedAt = i.ActivatedAt.Format(time.RFC3339)
	}

	return strings.Join([]string{
		i.Name,
		strconv.Itoa(i.PID),
		activatedAt,
		i.LockFilePath,
	}, IdentifierSeparator)
}

type fileLock struct {
	mu          sync.Mutex
	name        string
	path        string
	pid         int
	fl          *flock.Flock
	activatedAt *time.Time
}

// NewLock returns a Lock on the file at path. The file and its directory are created on Acquire
// and the file is left in place on Release.
func NewLock(path string) (Lock, error) {
	if path == "" {
		return nil, errorx.IllegalArgument.New("lock file path cannot be empty")
	}

	base := filepath.Base(path)
	return &fileLock{
		name: strings.TrimSuffix(base, filepath.Ext(base)),
		path: path,
		pid:  os.Getpid(),
		fl:   flock.New(path),
	}, nil
}

func (l *fileLock) prepare() error {
	if err := os.MkdirAll(filepath.Dir(l.path), os.ModePerm); err != nil {
		return LockError.Wrap(err, "failed to create lock directory for %s", l.path).
			WithProperty(pathProperty, l.path)
	}
	return nil
}

func (l *fileLock) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.activatedAt != nil {
		return nil
	}

	if err := l.prepare(); err != nil {
		return err
	}

	if err := l.fl.Lock(); err != nil {
		return LockError.Wrap(err, "failed to lock %s", l.path).
			WithProperty(pathProperty, l.path)
	}

	l.activated()
	return nil
}

func (l *fileLock) TryAcquire(timeout time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.activatedAt != nil {
		return nil
	}

	if err := l.prepare(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	locked, err := l.fl.TryLockContext(ctx, DefaultRetryDelay)
	if !locked {
		cause := err
		if cause == nil {
			cause = ctx.Err()
		}
		return LockHeldError.Wrap(cause, "lock %s is held by another process", l.path).
			WithProperty(pathProperty, l.path)
	}

	l.activated()
	return nil
}

// activated records the holder. Writing the pid is informational only.
func (l *fileLock) activated() {
	now := time.Now()
	l.activatedAt = &now
	_ = os.WriteFile(l.path, []byte(strconv.Itoa(l.pid)+"\n"), 0o644)
}

func (l *fileLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.activatedAt == nil {
		return errorx.IllegalState.New("lock %s is not acquired", l.path)
	}

	if err := l.fl.Unlock(); err != nil {
		return LockError.Wrap(err, "failed to unlock %s", l.path).
			WithProperty(pathProperty, l.path)
	}

	l.activatedAt = nil
	return nil
}

func (l *fileLock) Info() *Info {
	l.mu.Lock()
	defer l.mu.Unlock()

	return &Info{
		Name:         l.name,
		PID:          l.pid,
		LockFilePath: l.path,
		ActivatedAt:  l.activatedAt,
	}
}

func (l *fileLock) IsAcquired() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.activatedAt != nil
}
