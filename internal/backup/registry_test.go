package backup

import (
	"testing"
	"time"

	"github.com/aelpxy/volsnap/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryRegistry_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	r := NewHistoryRegistry(dir)
	require.NoError(t, r.Initialize())
	require.NoError(t, r.Add(models.CycleRecord{ID: "one", Kind: models.CycleBackup, StartedAt: epoch, Status: models.StatusInProgress}))

	rec, err := r.Get("one")
	require.NoError(t, err)
	rec.Status = models.StatusCompleted
	require.NoError(t, r.Update(*rec))

	reloaded := NewHistoryRegistry(dir)
	require.NoError(t, reloaded.Initialize())

	got, err := reloaded.Get("one")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
}

func TestHistoryRegistry_ListNewestFirstAndFiltered(t *testing.T) {
	r := NewHistoryRegistry(t.TempDir())
	require.NoError(t, r.Initialize())

	require.NoError(t, r.Add(models.CycleRecord{ID: "old", Kind: models.CycleBackup, StartedAt: epoch}))
	require.NoError(t, r.Add(models.CycleRecord{ID: "restore", Kind: models.CycleRestore, StartedAt: epoch.Add(time.Minute)}))
	require.NoError(t, r.Add(models.CycleRecord{ID: "new", Kind: models.CycleBackup, StartedAt: epoch.Add(time.Hour)}))

	all := r.List("")
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].ID)

	backups := r.List(models.CycleBackup)
	require.Len(t, backups, 2)
	assert.Equal(t, []string{"new", "old"}, []string{backups[0].ID, backups[1].ID})
}

func TestHistoryRegistry_TrimsToLimit(t *testing.T) {
	r := NewHistoryRegistry(t.TempDir())
	r.limit = 3
	require.NoError(t, r.Initialize())

	for i, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, r.Add(models.CycleRecord{ID: id, StartedAt: epoch.Add(time.Duration(i) * time.Minute)}))
	}

	list := r.List("")
	require.Len(t, list, 3)
	assert.Equal(t, "e", list[0].ID)
	_, err := r.Get("a")
	assert.Error(t, err)
}

func TestHistoryRegistry_UpdateUnknown(t *testing.T) {
	r := NewHistoryRegistry(t.TempDir())
	require.NoError(t, r.Initialize())
	assert.Error(t, r.Update(models.CycleRecord{ID: "missing"}))
}
