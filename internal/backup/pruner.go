package backup

import (
	"context"
	"errors"
	"fmt"

	"github.com/aelpxy/volsnap/internal/artifact"
	"github.com/aelpxy/volsnap/internal/errkind"
	"github.com/aelpxy/volsnap/internal/retention"
	"github.com/aelpxy/volsnap/internal/transport"
	"github.com/aelpxy/volsnap/pkg/models"
	"github.com/juju/clock"
	"github.com/rs/zerolog"
)

type Pruner struct {
	transport transport.Transport
	remoteDir string
	clock     clock.Clock
	log       zerolog.Logger
}

func NewPruner(tr transport.Transport, remoteDir string, clk clock.Clock, log zerolog.Logger) *Pruner {
	return &Pruner{
		transport: tr,
		remoteDir: remoteDir,
		clock:     clk,
		log:       log.With().Str("component", "pruner").Logger(),
	}
}

// Plan lists the remote artifacts and returns the ones policy would delete
// without deleting anything.
func (p *Pruner) Plan(ctx context.Context, policy models.RetentionPolicy) (PruneResult, []string, error) {
	names, err := p.transport.List(ctx, p.remoteDir)
	if err != nil {
		return PruneResult{}, nil, errkind.Wrap(errkind.Transport, "list", err)
	}

	considered := artifact.Filter(names)
	doomed := retention.SelectForDeletion(considered, policy, p.clock.Now())
	return PruneResult{Considered: considered}, doomed, nil
}

// Prune deletes every artifact the policy does not retain. A failed delete
// does not stop the others; all failures are reported together.
func (p *Pruner) Prune(ctx context.Context, policy models.RetentionPolicy) (PruneResult, error) {
	result, doomed, err := p.Plan(ctx, policy)
	if err != nil {
		return result, err
	}

	var errs []error
	for _, name := range doomed {
		if err := p.transport.Delete(ctx, transport.RemotePath(p.remoteDir, name)); err != nil {
			p.log.Warn().Err(err).Str("artifact", name).Msg("failed to delete backup")
			result.Failed = append(result.Failed, name)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		p.log.Info().Str("artifact", name).Msg("deleted old backup")
		result.Deleted = append(result.Deleted, name)
	}

	if len(errs) > 0 {
		return result, errkind.Wrap(errkind.Transport, "prune", errors.Join(errs...))
	}
	return result, nil
}

// Artifacts returns the remote artifacts newest first, with parsed dates.
// Names whose timestamp does not parse sort last.
func (p *Pruner) Artifacts(ctx context.Context) ([]models.BackupArtifact, error) {
	names, err := p.transport.List(ctx, p.remoteDir)
	if err != nil {
		return nil, errkind.Wrap(errkind.Transport, "list", err)
	}

	var out []models.BackupArtifact
	for _, name := range artifact.Filter(names) {
		at, ok := artifact.Parse(name)
		out = append(out, models.BackupArtifact{Name: name, CreatedAt: at, Valid: ok})
	}
	sortNewestFirst(out)
	return out, nil
}
