package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aelpxy/volsnap/internal/artifact"
	"github.com/aelpxy/volsnap/internal/constants"
	"github.com/aelpxy/volsnap/internal/errkind"
	"github.com/aelpxy/volsnap/internal/transport"
	"github.com/aelpxy/volsnap/internal/utils"
	"github.com/aelpxy/volsnap/pkg/models"
	"github.com/lucsky/cuid"
)

type RestoreRequest struct {
	// Backup is an artifact name or "latest".
	Backup string
	// Volumes is "all" or a comma separated list of volume names.
	Volumes string
}

// Restore replaces the contents of the selected volumes with the ones in a
// backup artifact. A safety backup of the current state is taken first.
// Volumes are restored independently: one failing does not undo or skip
// the others.
func (m *Manager) Restore(ctx context.Context, req RestoreRequest) (result *RestoreResult, err error) {
	release, err := m.guard.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	runID := cuid.New()
	log := m.log.With().Str("run_id", runID).Logger()
	result = &RestoreResult{RunID: runID}

	record := m.recordStart(runID, models.CycleRestore)
	defer func() {
		m.recordFinish(record, result, err)
	}()

	name, err := m.ResolveArtifact(ctx, req.Backup)
	if err != nil {
		return result, err
	}
	result.Artifact = name
	log = log.With().Str("artifact", name).Logger()

	workspace := m.restoreWorkspace()
	if err := os.RemoveAll(workspace); err != nil {
		return result, errkind.Wrap(errkind.Configuration, "clean workspace", err)
	}
	if err := os.MkdirAll(workspace, 0755); err != nil {
		return result, errkind.Wrap(errkind.Configuration, "create workspace", err)
	}

	local := filepath.Join(workspace, name)
	log.Info().Msg("downloading backup")
	if err := m.transport.Download(ctx, transport.RemotePath(m.cfg.RemoteDir, name), local); err != nil {
		return result, errkind.Wrap(errkind.Transport, "download", err)
	}

	bundleDir := filepath.Join(workspace, "volumes")
	if err := m.archiver.Decompress(ctx, local, bundleDir); err != nil {
		return result, errkind.Wrap(errkind.Archive, "extract bundle", err)
	}

	volumes, err := SelectVolumes(bundleDir, req.Volumes)
	if err != nil {
		return result, err
	}
	log.Info().Strs("volumes", volumes).Msg("volumes selected for restore")

	log.Info().Msg("taking safety backup before restore")
	result.Safety, err = m.runCycle(ctx, runID+"-safety")
	if err != nil {
		return result, fmt.Errorf("safety backup: %w", err)
	}

	errs := make(map[string]error)
	for _, vol := range volumes {
		if err := m.restoreVolume(ctx, vol, bundleDir); err != nil {
			log.Error().Err(err).Str("volume", vol).Msg("volume restore failed")
			errs[vol] = err
			result.Failed = append(result.Failed, vol)
			continue
		}
		log.Info().Str("volume", vol).Msg("volume restored")
		result.Restored = append(result.Restored, vol)
	}

	if err := joinVolumeErrors(errs, volumes); err != nil {
		log.Warn().Str("workspace", workspace).Msg("keeping restore workspace after failure")
		return result, err
	}

	if err := os.RemoveAll(workspace); err != nil {
		log.Warn().Err(err).Msg("failed to remove restore workspace")
	}

	log.Info().Msg("restore completed")
	return result, nil
}

func (m *Manager) restoreVolume(ctx context.Context, volume, bundleDir string) error {
	staging := filepath.Join(bundleDir, volume)
	if err := m.archiver.Decompress(ctx, filepath.Join(bundleDir, volume+".tar.gz"), staging); err != nil {
		return errkind.Wrap(errkind.Archive, "extract volume", err)
	}

	mount := filepath.Join(m.cfg.VolumesRoot, volume)
	return m.orchestrator.Quiesced(ctx, volume, func() error {
		info, err := os.Stat(mount)
		if err != nil || !info.IsDir() {
			return errkind.Errorf(errkind.Configuration, "restore",
				"volume %s does not exist: mount it at %s in the controller container", volume, mount)
		}

		if err := utils.RemoveChildren(mount); err != nil {
			return errkind.Wrap(errkind.Archive, "clear volume", err)
		}
		return errkind.Wrap(errkind.Archive, "move data", utils.MoveChildren(staging, mount))
	})
}

// ResolveArtifact maps "latest" to the newest artifact on the target and
// validates a literal name.
func (m *Manager) ResolveArtifact(ctx context.Context, selector string) (string, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" || selector == constants.LatestBackup {
		names, err := m.transport.ListNewest(ctx, m.cfg.RemoteDir, artifact.Pattern)
		if err != nil {
			return "", errkind.Wrap(errkind.Transport, "find latest backup", err)
		}
		for _, n := range names {
			if artifact.Matches(n) {
				return n, nil
			}
		}
		return "", errkind.Errorf(errkind.Configuration, "find latest backup", "no backups found in %s", m.cfg.RemoteDir)
	}

	if strings.ContainsAny(selector, `/\`) || !artifact.Matches(selector) {
		return "", errkind.Errorf(errkind.Configuration, "restore",
			"invalid backup name %q: expected %s or a name like %s", selector, constants.LatestBackup, artifact.Pattern)
	}
	return selector, nil
}

// SelectVolumes resolves the volume selector against an extracted bundle.
// "all" yields every volume archive in directory order.
func SelectVolumes(bundleDir, selector string) ([]string, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" || selector == constants.AllVolumes {
		entries, err := os.ReadDir(bundleDir)
		if err != nil {
			return nil, errkind.Wrap(errkind.Archive, "list bundle", err)
		}
		var names []string
		for _, e := range entries {
			if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ".tar.gz") {
				names = append(names, strings.TrimSuffix(e.Name(), ".tar.gz"))
			}
		}
		return names, nil
	}

	names := utils.SplitList(selector)
	if len(names) == 0 {
		return nil, errkind.Errorf(errkind.Configuration, "restore", "no volumes selected")
	}
	for _, name := range names {
		if !utils.IsValidVolumeName(name) {
			return nil, errkind.Errorf(errkind.Configuration, "restore", "invalid volume name %q", name)
		}
		if _, err := os.Stat(filepath.Join(bundleDir, name+".tar.gz")); err != nil {
			return nil, errkind.Errorf(errkind.Configuration, "restore", "volume %s is not in this backup", name)
		}
	}
	return names, nil
}
