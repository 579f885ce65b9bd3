package backup

import (
	"context"

	"github.com/aelpxy/volsnap/pkg/models"
)

// ContainerRuntime quiesces and resumes the containers bound to a volume.
type ContainerRuntime interface {
	StopContainersUsingVolume(ctx context.Context, volume string, self models.SelfIdentity) ([]models.ContainerHandle, error)
	StartContainers(ctx context.Context, handles []models.ContainerHandle) error
}

type Archiver interface {
	CompressDirectory(ctx context.Context, src, dst string) error
	CompressFiles(ctx context.Context, paths []string, dst string) error
	Decompress(ctx context.Context, src, outDir string) error
}

// Guard admits one cycle at a time. The returned func releases the slot.
type Guard interface {
	Acquire(ctx context.Context) (func(), error)
}

type CycleResult struct {
	RunID      string
	Artifact   string
	RemotePath string
	SizeBytes  int64
	Volumes    []string
	PrePrune   PruneResult
	PostPrune  PruneResult
}

type RestoreResult struct {
	RunID    string
	Artifact string
	Safety   *CycleResult
	Restored []string
	Failed   []string
}

type PruneResult struct {
	Considered []string
	Deleted    []string
	Failed     []string
}
