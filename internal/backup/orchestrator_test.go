package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aelpxy/volsnap/internal/errkind"
	"github.com/aelpxy/volsnap/pkg/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_ResumesAfterArchiveFailure(t *testing.T) {
	ctx := context.Background()
	handles := []models.ContainerHandle{{ID: "c1"}, {ID: "c2"}}
	vol := models.Volume{Name: "db", Path: "/backup/db"}

	rt := &mockRuntime{}
	rt.On("StopContainersUsingVolume", mock.Anything, "db", self).Return(handles, nil).Once()
	rt.On("StartContainers", mock.Anything, handles).Return(nil).Once()

	ar := &mockArchiver{}
	ar.On("CompressDirectory", mock.Anything, "/backup/db", "/tmp/ws/db.tar.gz").Return(errBad)

	o := NewOrchestrator(rt, ar, self, zerolog.Nop())
	_, err := o.Snapshot(ctx, vol, "/tmp/ws")

	require.Error(t, err)
	assert.ErrorIs(t, err, errBad)
	assert.Equal(t, errkind.Archive, errkind.KindOf(err))
	rt.AssertExpectations(t)
}

func TestSnapshot_Success(t *testing.T) {
	handles := []models.ContainerHandle{{ID: "c1"}}

	rt := &mockRuntime{}
	rt.On("StopContainersUsingVolume", mock.Anything, "db", self).Return(handles, nil).Once()
	rt.On("StartContainers", mock.Anything, handles).Return(nil).Once()

	ar := &mockArchiver{}
	ar.On("CompressDirectory", mock.Anything, "/backup/db", "/ws/db.tar.gz").Return(nil)

	o := NewOrchestrator(rt, ar, self, zerolog.Nop())
	path, err := o.Snapshot(context.Background(), models.Volume{Name: "db", Path: "/backup/db"}, "/ws")

	require.NoError(t, err)
	assert.Equal(t, "/ws/db.tar.gz", path)
	rt.AssertExpectations(t)
	ar.AssertExpectations(t)
}

func TestSnapshot_StopFailureResumesPartialHandles(t *testing.T) {
	partial := []models.ContainerHandle{{ID: "c1"}}
	stopErr := errkind.Wrap(errkind.ContainerControl, "stop", errors.New("daemon timeout"))

	rt := &mockRuntime{}
	rt.On("StopContainersUsingVolume", mock.Anything, "db", self).Return(partial, stopErr)
	rt.On("StartContainers", mock.Anything, partial).Return(nil).Once()

	ar := &mockArchiver{}

	o := NewOrchestrator(rt, ar, self, zerolog.Nop())
	_, err := o.Snapshot(context.Background(), models.Volume{Name: "db", Path: "/backup/db"}, "/ws")

	assert.Equal(t, errkind.ContainerControl, errkind.KindOf(err))
	rt.AssertExpectations(t)
	ar.AssertNotCalled(t, "CompressDirectory", mock.Anything, mock.Anything, mock.Anything)
}

func TestSnapshot_ResumeFailureWins(t *testing.T) {
	handles := []models.ContainerHandle{{ID: "c1"}}
	startErr := errkind.Wrap(errkind.ContainerControl, "start", errors.New("no such image"))

	rt := &mockRuntime{}
	rt.On("StopContainersUsingVolume", mock.Anything, "db", self).Return(handles, nil)
	rt.On("StartContainers", mock.Anything, handles).Return(startErr)

	ar := &mockArchiver{}
	ar.On("CompressDirectory", mock.Anything, mock.Anything, mock.Anything).Return(errBad)

	o := NewOrchestrator(rt, ar, self, zerolog.Nop())
	_, err := o.Snapshot(context.Background(), models.Volume{Name: "db", Path: "/backup/db"}, "/ws")

	assert.ErrorIs(t, err, startErr)
	assert.NotErrorIs(t, err, errBad)
}

func TestQuiesced_ResumesWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	handles := []models.ContainerHandle{{ID: "c1"}}

	rt := &mockRuntime{}
	rt.On("StopContainersUsingVolume", mock.Anything, "db", self).Return(handles, nil)
	rt.On("StartContainers", mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil }), handles).Return(nil).Once()

	o := NewOrchestrator(rt, &mockArchiver{}, self, zerolog.Nop())
	err := o.Quiesced(ctx, "db", func() error {
		cancel()
		return context.Canceled
	})

	assert.ErrorIs(t, err, context.Canceled)
	rt.AssertExpectations(t)
}

func TestSnapshotAll_OrderAndStopOnFailure(t *testing.T) {
	rt := &mockRuntime{}
	rt.On("StopContainersUsingVolume", mock.Anything, mock.Anything, self).Return([]models.ContainerHandle(nil), nil)
	rt.On("StartContainers", mock.Anything, mock.Anything).Return(nil)

	ar := &mockArchiver{}
	ar.On("CompressDirectory", mock.Anything, "/r/a", "/ws/a.tar.gz").Return(nil)
	ar.On("CompressDirectory", mock.Anything, "/r/b", "/ws/b.tar.gz").Return(errBad)

	o := NewOrchestrator(rt, ar, self, zerolog.Nop())
	volumes := []models.Volume{{Name: "a", Path: "/r/a"}, {Name: "b", Path: "/r/b"}, {Name: "c", Path: "/r/c"}}

	archives, err := o.SnapshotAll(context.Background(), volumes, "/ws")

	assert.ErrorContains(t, err, "volume b")
	assert.Equal(t, []string{"/ws/a.tar.gz"}, archives)
	rt.AssertNumberOfCalls(t, "StopContainersUsingVolume", 2)
	rt.AssertNumberOfCalls(t, "StartContainers", 2)
}

func TestDiscoverVolumes(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"redis", "app", "postgres"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, name), 0755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "README"), nil, 0644))

	volumes, err := DiscoverVolumes(root)
	require.NoError(t, err)

	var names []string
	for _, v := range volumes {
		names = append(names, v.Name)
		assert.Equal(t, filepath.Join(root, v.Name), v.Path)
	}
	assert.Equal(t, []string{"app", "postgres", "redis"}, names)
}

func TestDiscoverVolumes_MissingRoot(t *testing.T) {
	_, err := DiscoverVolumes(filepath.Join(t.TempDir(), "nope"))
	assert.Equal(t, errkind.Configuration, errkind.KindOf(err))
}
