package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aelpxy/volsnap/internal/archive"
	"github.com/aelpxy/volsnap/internal/transport"
	"github.com/aelpxy/volsnap/pkg/models"
	"github.com/juju/clock/testclock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	epoch  = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	self   = models.SelfIdentity{ID: "controller"}
	errBad = errors.New("boom")
)

type mockRuntime struct {
	mock.Mock
}

func (m *mockRuntime) StopContainersUsingVolume(ctx context.Context, volume string, self models.SelfIdentity) ([]models.ContainerHandle, error) {
	args := m.Called(ctx, volume, self)
	handles, _ := args.Get(0).([]models.ContainerHandle)
	return handles, args.Error(1)
}

func (m *mockRuntime) StartContainers(ctx context.Context, handles []models.ContainerHandle) error {
	return m.Called(ctx, handles).Error(0)
}

type mockArchiver struct {
	mock.Mock
}

func (m *mockArchiver) CompressDirectory(ctx context.Context, src, dst string) error {
	return m.Called(ctx, src, dst).Error(0)
}

func (m *mockArchiver) CompressFiles(ctx context.Context, paths []string, dst string) error {
	return m.Called(ctx, paths, dst).Error(0)
}

func (m *mockArchiver) Decompress(ctx context.Context, src, outDir string) error {
	return m.Called(ctx, src, outDir).Error(0)
}

// recordingRuntime stops one fake container per volume and logs every call.
type recordingRuntime struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingRuntime) StopContainersUsingVolume(_ context.Context, volume string, _ models.SelfIdentity) ([]models.ContainerHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "stop:"+volume)
	return []models.ContainerHandle{{ID: volume + "-app", Name: volume + "-app"}}, nil
}

func (r *recordingRuntime) StartContainers(_ context.Context, handles []models.ContainerHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range handles {
		r.calls = append(r.calls, "start:"+h.ID)
	}
	return nil
}

func (r *recordingRuntime) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type countingGuard struct {
	mu       sync.Mutex
	held     bool
	acquired int
}

func (g *countingGuard) Acquire(context.Context) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held {
		return nil, errors.New("already held")
	}
	g.held = true
	g.acquired++
	return func() {
		g.mu.Lock()
		g.held = false
		g.mu.Unlock()
	}, nil
}

type failingUpload struct {
	*transport.Local
}

func (f failingUpload) Upload(context.Context, string, string) error {
	return errBad
}

type failingDelete struct {
	*transport.Local
	reject string
}

func (f failingDelete) Delete(ctx context.Context, remotePath string) error {
	if filepath.Base(remotePath) == f.reject {
		return errBad
	}
	return f.Local.Delete(ctx, remotePath)
}

type env struct {
	root      string
	workspace string
	remote    string
	state     string
	clock     *testclock.Clock
	runtime   *recordingRuntime
	guard     *countingGuard
	history   *HistoryRegistry
}

func newEnv(t *testing.T, volumes map[string]string) *env {
	t.Helper()
	e := &env{
		root:      t.TempDir(),
		workspace: t.TempDir(),
		remote:    t.TempDir(),
		state:     t.TempDir(),
		clock:     testclock.NewClock(epoch),
		runtime:   &recordingRuntime{},
		guard:     &countingGuard{},
	}
	for name, content := range volumes {
		writeVolumeFile(t, e.root, name, content)
	}
	e.history = NewHistoryRegistry(e.state)
	require.NoError(t, e.history.Initialize())
	return e
}

func (e *env) manager(t *testing.T, tr transport.Transport, policy models.RetentionPolicy) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		VolumesRoot: e.root,
		Workspace:   e.workspace,
		RemoteDir:   e.remote,
		Retention:   policy,
	}, Deps{
		Runtime:   e.runtime,
		Archiver:  archive.NewCodec(),
		Transport: tr,
		Guard:     e.guard,
		History:   e.history,
		Clock:     e.clock,
		Self:      self,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	return m
}

func writeVolumeFile(t *testing.T, root, volume, content string) {
	t.Helper()
	dir := filepath.Join(root, volume)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.txt"), []byte(content), 0644))
}

func readVolumeFile(t *testing.T, root, volume string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, volume, "data.txt"))
	require.NoError(t, err)
	return string(data)
}

func remoteNames(t *testing.T, dir string) []string {
	t.Helper()
	names, err := transport.NewLocal().List(context.Background(), dir)
	require.NoError(t, err)
	return names
}

func touchRemote(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("old"), 0644))
}
