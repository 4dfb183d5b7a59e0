// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashgraph/kpmd/pkg/kpm"
	"github.com/hashgraph/kpmd/pkg/moddir"
	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// fakeClient records protocol calls. Like the real client, a successful unload deletes the
// module file.
type fakeClient struct {
	dir        moddir.Dir
	version    string
	versionErr error
	loadErrs   map[string]error
	unloadErrs map[string]error
	loads      []string
	unloads    []string
	checks     int
}

func (c *fakeClient) Load(path string, args string) error {
	c.loads = append(c.loads, path)
	return c.loadErrs[path]
}

func (c *fakeClient) Unload(name string) error {
	c.unloads = append(c.unloads, name)
	if err := c.unloadErrs[name]; err != nil {
		return err
	}
	_, err := c.dir.Remove(name)
	return err
}

func (c *fakeClient) CheckVersion() (string, error) {
	c.checks++
	return c.version, c.versionErr
}

// flippingProbe reports safe mode from its second call on.
type flippingProbe struct {
	calls int
}

func (p *flippingProbe) Enabled() bool {
	p.calls++
	return p.calls > 1
}

type fakeWatcher struct {
	starts int
	err    error
}

func (w *fakeWatcher) Start() error {
	w.starts++
	return w.err
}

func newModuleDir(t *testing.T, files ...string) moddir.Dir {
	t.Helper()
	dir := moddir.New(filepath.Join(t.TempDir(), "kpm"), ".kpm")
	require.NoError(t, os.MkdirAll(dir.Path, 0o755))
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir.Path, f), []byte("module"), 0o644))
	}
	return dir
}

func newOrchestrator(t *testing.T, dir moddir.Dir, client *fakeClient, opts ...Option) *Orchestrator {
	t.Helper()
	client.dir = dir
	if client.version == "" && client.versionErr == nil {
		client.version = "0.10.0"
	}
	o, err := New(dir, client, opts...)
	require.NoError(t, err)
	return o
}

func versionError() error {
	return kpm.NewKernelCallError(kpm.CmdVersion, unix.ENOSYS)
}

func TestNew_InvalidArguments(t *testing.T) {
	_, err := New(moddir.Default(), nil)
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, errorx.IllegalArgument))

	_, err = New(moddir.Dir{}, &fakeClient{})
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, errorx.IllegalArgument))
}

func TestOrchestrator_Startup_Disabled(t *testing.T) {
	dir := moddir.New(filepath.Join(t.TempDir(), "kpm"), ".kpm")
	w := &fakeWatcher{}
	o := newOrchestrator(t, dir, &fakeClient{versionErr: versionError()}, WithWatcher(w))

	outcome, err := o.Startup()
	require.NoError(t, err)
	assert.Equal(t, OutcomeDisabled, outcome)
	assert.Zero(t, w.starts)
	assert.NoDirExists(t, dir.Path)
}

func TestOrchestrator_Startup_Watching(t *testing.T) {
	dir := moddir.New(filepath.Join(t.TempDir(), "adb", "kpm"), ".kpm")
	w := &fakeWatcher{}
	o := newOrchestrator(t, dir, &fakeClient{}, WithWatcher(w))

	outcome, err := o.Startup()
	require.NoError(t, err)
	assert.Equal(t, OutcomeWatching, outcome)
	assert.Equal(t, 1, w.starts)

	fi, err := os.Stat(dir.Path)
	require.NoError(t, err)
	assert.Equal(t, moddir.RequiredMode, fi.Mode().Perm())
}

func TestOrchestrator_Startup_SafeMode(t *testing.T) {
	dir := newModuleDir(t, "a.kpm", "b.kpm")
	w := &fakeWatcher{}
	client := &fakeClient{}
	o := newOrchestrator(t, dir, client, WithWatcher(w), WithSafeMode(SafeMode{Force: true}))

	outcome, err := o.Startup()
	require.NoError(t, err)
	assert.Equal(t, OutcomeQuarantined, outcome)
	assert.Zero(t, w.starts)
	assert.Equal(t, []string{"a", "b"}, client.unloads)
	assert.Empty(t, client.loads)
}

func TestOrchestrator_Startup_WatcherFailure(t *testing.T) {
	dir := newModuleDir(t)
	w := &fakeWatcher{err: errorx.IllegalState.New("inotify unavailable")}
	o := newOrchestrator(t, dir, &fakeClient{}, WithWatcher(w))

	outcome, err := o.Startup()
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.True(t, errorx.IsOfType(err, StartupError))
}

func TestOrchestrator_Startup_NoWatcher(t *testing.T) {
	o := newOrchestrator(t, newModuleDir(t), &fakeClient{})

	outcome, err := o.Startup()
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.True(t, errorx.IsOfType(err, errorx.IllegalState))
}

func TestOrchestrator_Startup_DirectoryFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kpm")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	w := &fakeWatcher{}
	o := newOrchestrator(t, moddir.New(path, ".kpm"), &fakeClient{}, WithWatcher(w))

	outcome, err := o.Startup()
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.True(t, errorx.IsOfType(err, moddir.EnsureError))
	assert.Zero(t, w.starts)
}

func TestOrchestrator_BootLoad(t *testing.T) {
	dir := newModuleDir(t, "a.kpm", "b.kpm", "c.txt")
	client := &fakeClient{
		loadErrs: map[string]error{
			filepath.Join(dir.Path, "b.kpm"): kpm.NewKernelCallError(kpm.CmdLoad, unix.EINVAL),
		},
	}
	o := newOrchestrator(t, dir, client)

	tally, err := o.BootLoad()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir.Path, "a.kpm"),
		filepath.Join(dir.Path, "b.kpm"),
	}, client.loads)
	assert.Equal(t, Tally{Succeeded: 1, Failed: 1}, tally)

	// loading never deletes module files
	assert.FileExists(t, filepath.Join(dir.Path, "a.kpm"))
	assert.FileExists(t, filepath.Join(dir.Path, "b.kpm"))
}

func TestOrchestrator_BootLoad_SkipsNamelessFile(t *testing.T) {
	dir := newModuleDir(t, ".kpm", "a.kpm")
	client := &fakeClient{}
	o := newOrchestrator(t, dir, client)

	tally, err := o.BootLoad()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir.Path, "a.kpm")}, client.loads)
	assert.Equal(t, Tally{Succeeded: 1, Skipped: 1}, tally)
}

func TestOrchestrator_BootLoad_Disabled(t *testing.T) {
	dir := newModuleDir(t, "a.kpm")
	client := &fakeClient{versionErr: versionError()}
	o := newOrchestrator(t, dir, client)

	tally, err := o.BootLoad()
	require.NoError(t, err)
	assert.True(t, tally.Disabled)
	assert.Empty(t, client.loads)
}

func TestOrchestrator_Quarantine(t *testing.T) {
	dir := newModuleDir(t, "a.kpm", "b.kpm", "c.txt")
	client := &fakeClient{
		unloadErrs: map[string]error{
			"a": kpm.NewKernelCallError(kpm.CmdUnload, unix.EBUSY),
		},
	}
	o := newOrchestrator(t, dir, client)

	tally, err := o.Quarantine()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, client.unloads)
	assert.Equal(t, Tally{Succeeded: 1, Failed: 1}, tally)

	assert.NoFileExists(t, filepath.Join(dir.Path, "a.kpm"))
	assert.NoFileExists(t, filepath.Join(dir.Path, "b.kpm"))
	assert.FileExists(t, filepath.Join(dir.Path, "c.txt"))
}

func TestOrchestrator_Quarantine_NamelessFile(t *testing.T) {
	dir := newModuleDir(t, ".kpm")
	client := &fakeClient{}
	o := newOrchestrator(t, dir, client)

	tally, err := o.Quarantine()
	require.NoError(t, err)
	assert.Empty(t, client.unloads)
	assert.Equal(t, Tally{Skipped: 1}, tally)
	assert.NoFileExists(t, filepath.Join(dir.Path, ".kpm"))
}

func TestOrchestrator_Quarantine_Disabled(t *testing.T) {
	dir := newModuleDir(t, "a.kpm")
	client := &fakeClient{versionErr: kpm.NewVersionError("Error: not supported")}
	o := newOrchestrator(t, dir, client)

	tally, err := o.Quarantine()
	require.NoError(t, err)
	assert.True(t, tally.Disabled)
	assert.Empty(t, client.unloads)
	assert.FileExists(t, filepath.Join(dir.Path, "a.kpm"))
}

func TestOrchestrator_Boot(t *testing.T) {
	dir := newModuleDir(t, "a.kpm", "b.kpm")
	w := &fakeWatcher{}
	client := &fakeClient{}
	o := newOrchestrator(t, dir, client, WithWatcher(w))

	outcome, tally, err := o.Boot()
	require.NoError(t, err)
	assert.Equal(t, OutcomeWatching, outcome)
	assert.Equal(t, Tally{Succeeded: 2}, tally)
	assert.Len(t, client.loads, 2)
	assert.Equal(t, 1, w.starts)
	assert.Equal(t, 1, client.checks)
}

func TestOrchestrator_Boot_ProbesOnce(t *testing.T) {
	dir := newModuleDir(t, "a.kpm")
	w := &fakeWatcher{}
	probe := &flippingProbe{}
	client := &fakeClient{}
	o := newOrchestrator(t, dir, client, WithWatcher(w), WithSafeMode(probe))

	outcome, tally, err := o.Boot()
	require.NoError(t, err)
	assert.Equal(t, OutcomeWatching, outcome)
	assert.Equal(t, Tally{Succeeded: 1}, tally)
	assert.Empty(t, client.unloads)
	assert.Equal(t, 1, probe.calls)
	assert.Equal(t, 1, client.checks)
}

func TestOrchestrator_Boot_SafeMode(t *testing.T) {
	dir := newModuleDir(t, "a.kpm")
	w := &fakeWatcher{}
	client := &fakeClient{}
	o := newOrchestrator(t, dir, client, WithWatcher(w), WithSafeMode(SafeMode{Force: true}))

	outcome, _, err := o.Boot()
	require.NoError(t, err)
	assert.Equal(t, OutcomeQuarantined, outcome)
	assert.Empty(t, client.loads)
	assert.Equal(t, []string{"a"}, client.unloads)
	assert.Zero(t, w.starts)
}

func TestOrchestrator_Boot_Disabled(t *testing.T) {
	w := &fakeWatcher{}
	client := &fakeClient{versionErr: versionError()}
	o := newOrchestrator(t, newModuleDir(t, "a.kpm"), client, WithWatcher(w))

	outcome, tally, err := o.Boot()
	require.NoError(t, err)
	assert.Equal(t, OutcomeDisabled, outcome)
	assert.True(t, tally.Disabled)
	assert.Zero(t, w.starts)
	assert.Equal(t, 1, client.checks)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "disabled", OutcomeDisabled.String())
	assert.Equal(t, "quarantined", OutcomeQuarantined.String())
	assert.Equal(t, "watching", OutcomeWatching.String())
}
