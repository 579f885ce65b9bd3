package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aelpxy/volsnap/internal/errkind"
	"github.com/aelpxy/volsnap/pkg/models"
	"github.com/rs/zerolog"
)

// Orchestrator snapshots volumes while the containers using them are
// stopped.
type Orchestrator struct {
	runtime  ContainerRuntime
	archiver Archiver
	self     models.SelfIdentity
	log      zerolog.Logger
}

func NewOrchestrator(runtime ContainerRuntime, archiver Archiver, self models.SelfIdentity, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		runtime:  runtime,
		archiver: archiver,
		self:     self,
		log:      log.With().Str("component", "orchestrator").Logger(),
	}
}

// DiscoverVolumes lists the directories under root. Each one is a mounted
// volume of the same name.
func DiscoverVolumes(root string) ([]models.Volume, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errkind.Wrap(errkind.Configuration, "discover volumes", err)
	}

	var volumes []models.Volume
	for _, e := range entries {
		path := filepath.Join(root, e.Name())
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			continue
		}
		volumes = append(volumes, models.Volume{Name: e.Name(), Path: path})
	}
	return volumes, nil
}

// SnapshotAll archives each volume into workspace, in order, and returns
// the archive paths. It stops at the first failing volume.
func (o *Orchestrator) SnapshotAll(ctx context.Context, volumes []models.Volume, workspace string) ([]string, error) {
	archives := make([]string, 0, len(volumes))
	for _, vol := range volumes {
		path, err := o.Snapshot(ctx, vol, workspace)
		if err != nil {
			return archives, fmt.Errorf("volume %s: %w", vol.Name, err)
		}
		archives = append(archives, path)
	}
	return archives, nil
}

func (o *Orchestrator) Snapshot(ctx context.Context, vol models.Volume, workspace string) (string, error) {
	dst := filepath.Join(workspace, vol.Name+".tar.gz")
	log := o.log.With().Str("volume", vol.Name).Logger()

	err := o.Quiesced(ctx, vol.Name, func() error {
		log.Info().Msg("compressing volume")
		return errkind.Wrap(errkind.Archive, "compress", o.archiver.CompressDirectory(ctx, vol.Path, dst))
	})
	if err != nil {
		return "", err
	}

	log.Info().Str("archive", dst).Msg("volume snapshot complete")
	return dst, nil
}

// Quiesced runs fn with every container using volume stopped, and starts
// them again whatever fn returns. A resume failure takes precedence over
// fn's error, which is then only logged.
func (o *Orchestrator) Quiesced(ctx context.Context, volume string, fn func() error) error {
	handles, err := o.runtime.StopContainersUsingVolume(ctx, volume, o.self)
	if err == nil {
		err = fn()
	}

	// resume even if the cycle was cancelled
	if startErr := o.runtime.StartContainers(context.WithoutCancel(ctx), handles); startErr != nil {
		if err != nil {
			o.log.Error().Err(err).Str("volume", volume).Msg("operation failed before resume")
		}
		return startErr
	}
	return err
}

// joinVolumeErrors keeps per-volume context on each error.
func joinVolumeErrors(errs map[string]error, order []string) error {
	var out []error
	for _, name := range order {
		if err, ok := errs[name]; ok {
			out = append(out, fmt.Errorf("volume %s: %w", name, err))
		}
	}
	return errors.Join(out...)
}
