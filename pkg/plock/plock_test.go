// SPDX-License-Identifier: Apache-2.0

package plock

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLock_EmptyPath(t *testing.T) {
	_, err := NewLock("")
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, errorx.IllegalArgument))
}

func TestLock_AcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "kpmd.lock")
	l, err := NewLock(path)
	require.NoError(t, err)
	assert.False(t, l.IsAcquired())

	require.NoError(t, l.Acquire())
	assert.True(t, l.IsAcquired())

	// acquiring a held lock again is a no-op
	require.NoError(t, l.Acquire())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(b)))

	info := l.Info()
	assert.Equal(t, "kpmd", info.Name)
	assert.Equal(t, os.Getpid(), info.PID)
	assert.Equal(t, path, info.LockFilePath)
	require.NotNil(t, info.ActivatedAt)
	assert.True(t, strings.HasPrefix(info.String(), "kpmd:"+strconv.Itoa(os.Getpid())+":"))

	require.NoError(t, l.Release())
	assert.False(t, l.IsAcquired())
	assert.Nil(t, l.Info().ActivatedAt)
	assert.FileExists(t, path)
}

func TestLock_ReleaseWithoutAcquire(t *testing.T) {
	l, err := NewLock(filepath.Join(t.TempDir(), "kpmd.lock"))
	require.NoError(t, err)

	err = l.Release()
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, errorx.IllegalState))
}

func TestLock_TryAcquire_Held(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kpmd.lock")

	first, err := NewLock(path)
	require.NoError(t, err)
	require.NoError(t, first.TryAcquire(time.Second))

	second, err := NewLock(path)
	require.NoError(t, err)

	err = second.TryAcquire(300 * time.Millisecond)
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, LockHeldError))
	assert.False(t, second.IsAcquired())

	require.NoError(t, first.Release())
	require.NoError(t, second.TryAcquire(time.Second))
	require.NoError(t, second.Release())
}

func TestInfo_String_NotActivated(t *testing.T) {
	i := &Info{Name: "kpmd", PID: 42, LockFilePath: "/tmp/kpmd.lock"}
	assert.Equal(t, "kpmd:42:-:/tmp/kpmd.lock", i.String())
}
