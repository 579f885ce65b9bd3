package backup

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/aelpxy/volsnap/internal/artifact"
	"github.com/aelpxy/volsnap/internal/errkind"
	"github.com/aelpxy/volsnap/internal/transport"
	"github.com/rs/zerolog"
)

type Combiner struct {
	archiver  Archiver
	transport transport.Transport
	remoteDir string
	log       zerolog.Logger
}

func NewCombiner(archiver Archiver, tr transport.Transport, remoteDir string, log zerolog.Logger) *Combiner {
	return &Combiner{
		archiver:  archiver,
		transport: tr,
		remoteDir: remoteDir,
		log:       log.With().Str("component", "combiner").Logger(),
	}
}

type Upload struct {
	Name       string
	RemotePath string
	SizeBytes  int64
}

// CombineAndUpload bundles the per-volume archives into one artifact named
// after timestamp and uploads it. The workspace is removed only after a
// successful upload; on failure it is left for inspection.
func (c *Combiner) CombineAndUpload(ctx context.Context, archives []string, workspace string, timestamp time.Time) (*Upload, error) {
	name := artifact.Name(timestamp)
	local := filepath.Join(workspace, name)

	if err := c.archiver.CompressFiles(ctx, archives, local); err != nil {
		return nil, errkind.Wrap(errkind.Archive, "combine", err)
	}

	var size int64
	if info, err := os.Stat(local); err == nil {
		size = info.Size()
	}

	remote := transport.RemotePath(c.remoteDir, name)
	c.log.Info().Str("artifact", name).Str("target", c.transport.String()).Int64("bytes", size).Msg("uploading backup")

	if err := c.transport.Upload(ctx, local, remote); err != nil {
		c.log.Error().Err(err).Str("workspace", workspace).Msg("upload failed, keeping local workspace")
		return nil, errkind.Wrap(errkind.Transport, "upload", err)
	}

	if err := os.RemoveAll(workspace); err != nil {
		c.log.Warn().Err(err).Str("workspace", workspace).Msg("failed to remove workspace")
	}

	return &Upload{Name: name, RemotePath: remote, SizeBytes: size}, nil
}
