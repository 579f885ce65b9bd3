package transport

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_UploadDownload(t *testing.T) {
	ctx := context.Background()
	work := t.TempDir()
	target := t.TempDir()

	src := filepath.Join(work, "backup-2025-01-01T00-00-00.tar.gz")
	require.NoError(t, os.WriteFile(src, []byte("bundle"), 0600))

	tr := NewLocal()
	remote := RemotePath(target, filepath.Base(src))
	require.NoError(t, tr.Upload(ctx, src, remote))

	dst := filepath.Join(work, "downloaded.tar.gz")
	require.NoError(t, tr.Download(ctx, remote, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "bundle", string(data))
}

func TestLocal_UploadMissingDirectory(t *testing.T) {
	work := t.TempDir()
	src := filepath.Join(work, "a")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0600))

	err := NewLocal().Upload(context.Background(), src, filepath.Join(work, "missing", "a"))
	assert.Error(t, err)
}

func TestLocal_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one"), nil, 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two"), nil, 0600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	tr := NewLocal()
	names, err := tr.List(ctx, dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one", "two"}, names)

	require.NoError(t, tr.Delete(ctx, filepath.Join(dir, "one")))
	names, err = tr.List(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"two"}, names)

	assert.Error(t, tr.Delete(ctx, filepath.Join(dir, "one")))
}

func TestLocal_ListNewest(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	files := map[string]time.Duration{
		"backup-a.tar.gz": 1 * time.Hour,
		"backup-b.tar.gz": 3 * time.Hour,
		"backup-c.tar.gz": 2 * time.Hour,
		"other.tar.gz":    5 * time.Hour,
	}
	for name, offset := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, nil, 0600))
		require.NoError(t, os.Chtimes(p, base.Add(offset), base.Add(offset)))
	}

	names, err := NewLocal().ListNewest(context.Background(), dir, "backup-*.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, []string{"backup-b.tar.gz", "backup-c.tar.gz", "backup-a.tar.gz"}, names)
}

func TestLocal_ListNewestEmptyAndMissing(t *testing.T) {
	names, err := NewLocal().ListNewest(context.Background(), t.TempDir(), "backup-*.tar.gz")
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = NewLocal().ListNewest(context.Background(), filepath.Join(t.TempDir(), "missing"), "backup-*.tar.gz")
	assert.Error(t, err)
}
