package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aelpxy/volsnap/internal/archive"
	"github.com/aelpxy/volsnap/internal/artifact"
	"github.com/aelpxy/volsnap/internal/errkind"
	"github.com/aelpxy/volsnap/internal/transport"
	"github.com/aelpxy/volsnap/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCycle_UploadsBundleAndPrunes(t *testing.T) {
	e := newEnv(t, map[string]string{"a": "A", "b": "B"})
	for _, d := range []int{1, 2, 3} {
		touchRemote(t, e.remote, artifact.Name(epoch.AddDate(0, 0, -d)))
	}
	touchRemote(t, e.remote, "notes.txt")

	m := e.manager(t, transport.NewLocal(), models.RetentionPolicy{Count: 2, PeriodDays: 30})
	result, err := m.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, artifact.Name(epoch), result.Artifact)
	assert.Equal(t, []string{"a", "b"}, result.Volumes)
	assert.Equal(t, []string{artifact.Name(epoch.AddDate(0, 0, -2))}, result.PrePrune.Deleted)
	assert.Equal(t, []string{artifact.Name(epoch.AddDate(0, 0, -1))}, result.PostPrune.Deleted)
	assert.ElementsMatch(t, []string{
		artifact.Name(epoch),
		artifact.Name(epoch.AddDate(0, 0, -3)),
		"notes.txt",
	}, remoteNames(t, e.remote))

	assert.NoDirExists(t, filepath.Join(e.workspace, "backup"))
	assert.Equal(t, []string{"stop:a", "start:a-app", "stop:b", "start:b-app"}, e.runtime.Calls())

	out := t.TempDir()
	require.NoError(t, archive.NewCodec().Decompress(context.Background(), filepath.Join(e.remote, result.Artifact), out))
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.tar.gz", entries[0].Name())
	assert.Equal(t, "b.tar.gz", entries[1].Name())
}

func TestRunCycle_EmptyRootStillUploads(t *testing.T) {
	e := newEnv(t, nil)
	m := e.manager(t, transport.NewLocal(), models.UnboundedRetention())

	result, err := m.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.Volumes)
	assert.Equal(t, []string{artifact.Name(epoch)}, remoteNames(t, e.remote))
	assert.Empty(t, e.runtime.Calls())
}

func TestRunCycle_UploadFailureKeepsWorkspace(t *testing.T) {
	e := newEnv(t, map[string]string{"a": "A"})
	m := e.manager(t, failingUpload{transport.NewLocal()}, models.UnboundedRetention())

	_, err := m.RunCycle(context.Background())

	require.Error(t, err)
	assert.Equal(t, errkind.Transport, errkind.KindOf(err))
	assert.True(t, errkind.Retryable(err))
	assert.FileExists(t, filepath.Join(e.workspace, "backup", artifact.Name(epoch)))
	assert.Empty(t, remoteNames(t, e.remote))

	records := e.history.List(models.CycleBackup)
	require.Len(t, records, 1)
	assert.Equal(t, models.StatusFailed, records[0].Status)
	assert.Contains(t, records[0].Error, "upload")
}

func TestRunCycle_RecordsHistory(t *testing.T) {
	e := newEnv(t, map[string]string{"a": "A"})
	m := e.manager(t, transport.NewLocal(), models.UnboundedRetention())

	result, err := m.RunCycle(context.Background())
	require.NoError(t, err)

	rec, err := e.history.Get(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, rec.Status)
	assert.Equal(t, result.Artifact, rec.Artifact)
	assert.Equal(t, []string{"a"}, rec.Volumes)
	assert.Positive(t, rec.SizeBytes)
}

func TestRunCycle_GuardBusy(t *testing.T) {
	e := newEnv(t, nil)
	m := e.manager(t, transport.NewLocal(), models.UnboundedRetention())

	release, err := e.guard.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	_, err = m.RunCycle(context.Background())
	assert.Error(t, err)
	assert.Empty(t, remoteNames(t, e.remote))
}

func TestPrune_ToleratesIndividualFailures(t *testing.T) {
	e := newEnv(t, nil)
	stuck := artifact.Name(epoch.AddDate(0, 0, -50))
	old := artifact.Name(epoch.AddDate(0, 0, -40))
	fresh := artifact.Name(epoch.AddDate(0, 0, -1))
	for _, n := range []string{stuck, old, fresh, "backup-garbage.tar.gz"} {
		touchRemote(t, e.remote, n)
	}

	m := e.manager(t, failingDelete{Local: transport.NewLocal(), reject: stuck}, models.RetentionPolicy{Count: 5, PeriodDays: 30})
	result, deleted, err := m.Prune(context.Background(), false)

	require.Error(t, err)
	assert.Equal(t, errkind.Transport, errkind.KindOf(err))
	assert.Equal(t, []string{stuck}, result.Failed)
	assert.ElementsMatch(t, []string{old, "backup-garbage.tar.gz"}, deleted)
	assert.ElementsMatch(t, []string{stuck, fresh}, remoteNames(t, e.remote))
}

func TestPrune_DryRunDeletesNothing(t *testing.T) {
	e := newEnv(t, nil)
	old := artifact.Name(epoch.AddDate(0, 0, -40))
	touchRemote(t, e.remote, old)

	m := e.manager(t, transport.NewLocal(), models.RetentionPolicy{Count: 5, PeriodDays: 30})
	_, doomed, err := m.Prune(context.Background(), true)

	require.NoError(t, err)
	assert.Equal(t, []string{old}, doomed)
	assert.Equal(t, []string{old}, remoteNames(t, e.remote))
}

func TestPruner_Artifacts(t *testing.T) {
	e := newEnv(t, nil)
	for _, n := range []string{artifact.Name(epoch.Add(-time.Hour)), artifact.Name(epoch), "backup-junk.tar.gz", "x.txt"} {
		touchRemote(t, e.remote, n)
	}

	m := e.manager(t, transport.NewLocal(), models.UnboundedRetention())
	list, err := m.Pruner().Artifacts(context.Background())
	require.NoError(t, err)

	require.Len(t, list, 3)
	assert.Equal(t, artifact.Name(epoch), list[0].Name)
	assert.Equal(t, artifact.Name(epoch.Add(-time.Hour)), list[1].Name)
	assert.False(t, list[2].Valid)
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(Config{}, Deps{})
	assert.Equal(t, errkind.Configuration, errkind.KindOf(err))
}
