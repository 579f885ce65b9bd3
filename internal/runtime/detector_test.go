package runtime

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenUnix(t *testing.T, path string) {
	t.Helper()
	l, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
}

func TestDetectRuntime_Override(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "docker.sock")
	listenUnix(t, sock)

	info, err := DetectRuntime("unix://" + sock)
	require.NoError(t, err)
	assert.Equal(t, RuntimeDocker, info.Type)
	assert.Equal(t, sock, info.SocketPath)
	assert.Equal(t, "unix://"+sock, info.GetSocketURI())
}

func TestDetectRuntime_PodmanOverride(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "podman.sock")
	listenUnix(t, sock)

	info, err := DetectRuntime(sock)
	require.NoError(t, err)
	assert.Equal(t, RuntimePodman, info.Type)
	assert.Equal(t, "podman", info.GetRuntimeName())
}

func TestDetectRuntime_MissingOverride(t *testing.T) {
	_, err := DetectRuntime(filepath.Join(t.TempDir(), "missing.sock"))
	assert.ErrorContains(t, err, "socket not found")
}
