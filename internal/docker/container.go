package docker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aelpxy/volsnap/internal/errkind"
	"github.com/aelpxy/volsnap/pkg/models"
	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
)

// ListContainersUsingVolume returns the running containers that mount the
// named volume.
func (c *Client) ListContainersUsingVolume(ctx context.Context, volume string) ([]types.Container, error) {
	ctx, cancel := context.WithTimeout(ctx, ContainerOpTimeout)
	defer cancel()

	containers, err := c.cli.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(
			filters.Arg("volume", volume),
			filters.Arg("status", "running"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers using volume %s: %w", volume, err)
	}

	return containers, nil
}

// StopContainersUsingVolume stops every running container bound to volume
// except self. On failure the handles stopped so far are still returned so
// the caller can resume them.
func (c *Client) StopContainersUsingVolume(ctx context.Context, volume string, self models.SelfIdentity) ([]models.ContainerHandle, error) {
	containers, err := c.ListContainersUsingVolume(ctx, volume)
	if err != nil {
		return nil, errkind.Wrap(errkind.ContainerControl, "list", err)
	}

	var stopped []models.ContainerHandle
	for _, ctr := range containers {
		if isSelf(ctr, self) {
			c.log.Debug().Str("container", ctr.ID).Msg("skipping self")
			continue
		}

		handle := models.ContainerHandle{ID: ctr.ID, Name: containerName(ctr)}
		if err := c.StopContainer(ctx, ctr.ID); err != nil {
			return stopped, errkind.Wrap(errkind.ContainerControl, "stop", err)
		}
		c.log.Info().Str("container", handle.Name).Str("volume", volume).Msg("container stopped")
		stopped = append(stopped, handle)
	}

	return stopped, nil
}

// StartContainers starts every handle, continuing past failures. A
// container that no longer exists cannot be resumed and is only logged.
func (c *Client) StartContainers(ctx context.Context, handles []models.ContainerHandle) error {
	var errs []error
	for _, h := range handles {
		err := c.StartContainer(ctx, h.ID)
		switch {
		case err == nil:
			c.log.Info().Str("container", h.Name).Msg("container started")
		case errdefs.IsNotFound(err):
			c.log.Warn().Str("container", h.Name).Msg("container disappeared while stopped, not restarting")
		default:
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return errkind.Wrap(errkind.ContainerControl, "start", err)
	}
	return nil
}

func (c *Client) StartContainer(ctx context.Context, containerID string) error {
	ctx, cancel := context.WithTimeout(ctx, ContainerOpTimeout)
	defer cancel()

	err := c.cli.ContainerStart(ctx, containerID, container.StartOptions{})
	if err != nil {
		return fmt.Errorf("failed to start container %s: %w", containerID, err)
	}

	return nil
}

func (c *Client) StopContainer(ctx context.Context, containerID string) error {
	ctx, cancel := context.WithTimeout(ctx, ContainerOpTimeout)
	defer cancel()

	timeout := StopGracePeriod
	err := c.cli.ContainerStop(ctx, containerID, container.StopOptions{
		Timeout: &timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to stop container %s: %w", containerID, err)
	}

	return nil
}

// isSelf matches the controller's identity against a container. The
// hostname of a container is its short ID, so an identity of at least
// short ID length matches as a prefix; anything shorter must be a name.
func isSelf(ctr types.Container, self models.SelfIdentity) bool {
	if self.IsZero() {
		return false
	}
	if len(self.ID) >= ShortIDLength && strings.HasPrefix(ctr.ID, self.ID) {
		return true
	}
	for _, name := range ctr.Names {
		if strings.TrimPrefix(name, "/") == self.ID {
			return true
		}
	}
	return false
}

func containerName(ctr types.Container) string {
	if len(ctr.Names) > 0 {
		return strings.TrimPrefix(ctr.Names[0], "/")
	}
	if len(ctr.ID) > ShortIDLength {
		return ctr.ID[:ShortIDLength]
	}
	return ctr.ID
}
