// Package backup runs backup and restore cycles: quiescing containers,
// snapshotting their volumes, shipping bundles to the backup target and
// pruning old bundles.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aelpxy/volsnap/internal/errkind"
	"github.com/aelpxy/volsnap/internal/transport"
	"github.com/aelpxy/volsnap/pkg/models"
	"github.com/juju/clock"
	"github.com/lucsky/cuid"
	"github.com/rs/zerolog"
)

type Config struct {
	// VolumesRoot holds one directory per volume to back up.
	VolumesRoot string
	// Workspace is the parent of the per-cycle temp directories.
	Workspace string
	RemoteDir string
	Retention models.RetentionPolicy
}

type Deps struct {
	Runtime   ContainerRuntime
	Archiver  Archiver
	Transport transport.Transport
	Guard     Guard
	History   *HistoryRegistry
	Clock     clock.Clock
	Self      models.SelfIdentity
	Logger    zerolog.Logger
}

type Manager struct {
	cfg          Config
	orchestrator *Orchestrator
	combiner     *Combiner
	pruner       *Pruner
	archiver     Archiver
	transport    transport.Transport
	guard        Guard
	history      *HistoryRegistry
	clock        clock.Clock
	log          zerolog.Logger
}

func NewManager(cfg Config, deps Deps) (*Manager, error) {
	if cfg.VolumesRoot == "" || cfg.Workspace == "" {
		return nil, errkind.Errorf(errkind.Configuration, "backup manager", "volumes root and workspace are required")
	}
	if deps.Runtime == nil || deps.Archiver == nil || deps.Transport == nil || deps.Guard == nil {
		return nil, fmt.Errorf("backup manager: runtime, archiver, transport and guard are required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.WallClock
	}

	return &Manager{
		cfg:          cfg,
		orchestrator: NewOrchestrator(deps.Runtime, deps.Archiver, deps.Self, deps.Logger),
		combiner:     NewCombiner(deps.Archiver, deps.Transport, cfg.RemoteDir, deps.Logger),
		pruner:       NewPruner(deps.Transport, cfg.RemoteDir, deps.Clock, deps.Logger),
		archiver:     deps.Archiver,
		transport:    deps.Transport,
		guard:        deps.Guard,
		history:      deps.History,
		clock:        deps.Clock,
		log:          deps.Logger.With().Str("component", "backup").Logger(),
	}, nil
}

func (m *Manager) Policy() models.RetentionPolicy {
	return m.cfg.Retention
}

func (m *Manager) Pruner() *Pruner {
	return m.pruner
}

func (m *Manager) backupWorkspace() string {
	return filepath.Join(m.cfg.Workspace, "backup")
}

func (m *Manager) restoreWorkspace() string {
	return filepath.Join(m.cfg.Workspace, "restore")
}

// RunCycle performs one full backup: prune, snapshot every volume, combine,
// upload, prune again.
func (m *Manager) RunCycle(ctx context.Context) (*CycleResult, error) {
	release, err := m.guard.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return m.runCycle(ctx, cuid.New())
}

// Prune applies the retention policy outside of a cycle. With dryRun set it
// only reports what would be deleted.
func (m *Manager) Prune(ctx context.Context, dryRun bool) (PruneResult, []string, error) {
	release, err := m.guard.Acquire(ctx)
	if err != nil {
		return PruneResult{}, nil, err
	}
	defer release()

	if dryRun {
		return m.pruner.Plan(ctx, m.cfg.Retention)
	}
	result, err := m.pruner.Prune(ctx, m.cfg.Retention)
	return result, result.Deleted, err
}

func (m *Manager) runCycle(ctx context.Context, runID string) (result *CycleResult, err error) {
	log := m.log.With().Str("run_id", runID).Logger()
	workspace := m.backupWorkspace()
	result = &CycleResult{RunID: runID}

	record := m.recordStart(runID, models.CycleBackup)
	defer func() {
		m.recordFinish(record, result, err)
	}()

	log.Info().Msg("backup cycle started")

	if err := os.MkdirAll(workspace, 0755); err != nil {
		return result, errkind.Wrap(errkind.Configuration, "create workspace", err)
	}

	result.PrePrune, err = m.pruner.Prune(ctx, m.cfg.Retention)
	if err != nil {
		return result, fmt.Errorf("pre-backup prune: %w", err)
	}

	volumes, err := DiscoverVolumes(m.cfg.VolumesRoot)
	if err != nil {
		return result, err
	}
	for _, v := range volumes {
		result.Volumes = append(result.Volumes, v.Name)
	}
	log.Info().Strs("volumes", result.Volumes).Msg("volumes discovered")

	archives, err := m.orchestrator.SnapshotAll(ctx, volumes, workspace)
	if err != nil {
		return result, err
	}

	upload, err := m.combiner.CombineAndUpload(ctx, archives, workspace, m.clock.Now())
	if err != nil {
		return result, err
	}
	result.Artifact = upload.Name
	result.RemotePath = upload.RemotePath
	result.SizeBytes = upload.SizeBytes

	result.PostPrune, err = m.pruner.Prune(ctx, m.cfg.Retention)
	if err != nil {
		return result, fmt.Errorf("post-backup prune: %w", err)
	}

	log.Info().
		Str("artifact", upload.Name).
		Int("volumes", len(volumes)).
		Int("pruned", len(result.PrePrune.Deleted)+len(result.PostPrune.Deleted)).
		Msg("backup cycle completed")
	return result, nil
}

func (m *Manager) recordStart(runID string, kind models.CycleKind) *models.CycleRecord {
	if m.history == nil {
		return nil
	}
	rec := &models.CycleRecord{
		ID:        runID,
		Kind:      kind,
		Volumes:   []string{},
		StartedAt: m.clock.Now(),
		Status:    models.StatusInProgress,
	}
	if err := m.history.Add(*rec); err != nil {
		m.log.Warn().Err(err).Msg("failed to record cycle start")
	}
	return rec
}

func (m *Manager) recordFinish(rec *models.CycleRecord, result any, cycleErr error) {
	if rec == nil {
		return
	}

	switch r := result.(type) {
	case *CycleResult:
		if r != nil {
			rec.Artifact = r.Artifact
			rec.SizeBytes = r.SizeBytes
			rec.Volumes = append(rec.Volumes, r.Volumes...)
		}
	case *RestoreResult:
		if r != nil {
			rec.Artifact = r.Artifact
			rec.Volumes = append(rec.Volumes, r.Restored...)
		}
	}

	rec.CompletedAt = m.clock.Now()
	rec.Status = models.StatusCompleted
	if cycleErr != nil {
		rec.Status = models.StatusFailed
		rec.Error = cycleErr.Error()
	}

	if err := m.history.Update(*rec); err != nil {
		m.log.Warn().Err(err).Msg("failed to record cycle result")
	}
}
