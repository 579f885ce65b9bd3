package runtime

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type RuntimeType string

const (
	RuntimeDocker RuntimeType = "docker"
	RuntimePodman RuntimeType = "podman"
)

type RuntimeInfo struct {
	Type       RuntimeType
	SocketPath string
	IsRootless bool
}

// DetectRuntime locates the container runtime socket. The controller
// usually runs inside a container with only the socket mounted, so no
// runtime CLI is required.
func DetectRuntime(socketOverride string) (*RuntimeInfo, error) {
	if socketOverride != "" {
		return fromSocket(strings.TrimPrefix(socketOverride, "unix://"))
	}

	if dockerHost := os.Getenv("DOCKER_HOST"); strings.HasPrefix(dockerHost, "unix://") {
		return fromSocket(strings.TrimPrefix(dockerHost, "unix://"))
	}

	if info, err := detectDocker(); err == nil {
		return info, nil
	}

	if info, err := detectPodman(); err == nil {
		return info, nil
	}

	return nil, fmt.Errorf("no container runtime socket found (tried docker, podman)")
}

func fromSocket(path string) (*RuntimeInfo, error) {
	info := &RuntimeInfo{Type: RuntimeDocker, SocketPath: path}
	if strings.Contains(path, "podman") {
		info.Type = RuntimePodman
		info.IsRootless = strings.HasPrefix(path, "/run/user/")
	}
	return info, info.EnsureSocketExists()
}

func detectDocker() (*RuntimeInfo, error) {
	socketPath := "/var/run/docker.sock"
	if _, err := os.Stat(socketPath); err != nil {
		return nil, fmt.Errorf("docker socket not found at %s", socketPath)
	}

	return &RuntimeInfo{
		Type:       RuntimeDocker,
		SocketPath: socketPath,
	}, nil
}

func detectPodman() (*RuntimeInfo, error) {
	socketPath := GetPodmanSocketPath()
	if _, err := os.Stat(socketPath); err != nil {
		return nil, fmt.Errorf("podman socket not found at %s", socketPath)
	}

	return &RuntimeInfo{
		Type:       RuntimePodman,
		SocketPath: socketPath,
		IsRootless: os.Getuid() != 0,
	}, nil
}

func (r *RuntimeInfo) GetSocketURI() string {
	return fmt.Sprintf("unix://%s", r.SocketPath)
}

func (r *RuntimeInfo) GetRuntimeName() string {
	name := string(r.Type)
	if r.Type == RuntimePodman && r.IsRootless {
		name += " (rootless)"
	}
	return name
}

func (r *RuntimeInfo) EnsureSocketExists() error {
	if _, err := os.Stat(r.SocketPath); err != nil {
		return fmt.Errorf("%s socket not found at %s - mount it into the controller container", r.Type, r.SocketPath)
	}
	return nil
}

func GetPodmanSocketPath() string {
	if os.Getuid() != 0 {
		return filepath.Join("/run/user", fmt.Sprintf("%d", os.Getuid()), "podman", "podman.sock")
	}
	return "/run/podman/podman.sock"
}
