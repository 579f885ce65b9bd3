package docker

import (
	"context"
	"fmt"

	"github.com/aelpxy/volsnap/internal/runtime"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog"
)

type Client struct {
	cli         *client.Client
	runtimeInfo *runtime.RuntimeInfo
	log         zerolog.Logger
}

// NewClient connects to the runtime socket at socketPath, or the detected
// docker/podman socket when socketPath is empty.
func NewClient(socketPath string, log zerolog.Logger) (*Client, error) {
	runtimeInfo, err := runtime.DetectRuntime(socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect container runtime: %w", err)
	}

	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithHost(runtimeInfo.GetSocketURI()),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create container runtime client: %w", err)
	}

	return &Client{
		cli:         cli,
		runtimeInfo: runtimeInfo,
		log:         log.With().Str("component", "docker").Logger(),
	}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func (c *Client) GetRuntimeInfo() *runtime.RuntimeInfo {
	return c.runtimeInfo
}

func (c *Client) Ping(ctx context.Context) (types.Version, error) {
	ctx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()

	if _, err := c.cli.Ping(ctx); err != nil {
		return types.Version{}, fmt.Errorf("runtime daemon not responding: %w", err)
	}

	v, err := c.cli.ServerVersion(ctx)
	if err != nil {
		return types.Version{}, fmt.Errorf("failed to query runtime version: %w", err)
	}
	return v, nil
}
