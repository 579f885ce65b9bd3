package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aelpxy/volsnap/internal/archive"
	"github.com/aelpxy/volsnap/internal/backup"
	"github.com/aelpxy/volsnap/internal/config"
	"github.com/aelpxy/volsnap/internal/constants"
	"github.com/aelpxy/volsnap/internal/docker"
	"github.com/aelpxy/volsnap/internal/errkind"
	"github.com/aelpxy/volsnap/internal/lock"
	"github.com/aelpxy/volsnap/internal/logging"
	"github.com/aelpxy/volsnap/internal/transport"
	"github.com/aelpxy/volsnap/pkg/models"
	"github.com/juju/clock"
	"github.com/rs/zerolog"
)

// services bundles everything a command needs to run a cycle.
type services struct {
	cfg       *models.GlobalConfig
	log       zerolog.Logger
	logCloser io.Closer
	docker    *docker.Client
	transport transport.Transport
	history   *backup.HistoryRegistry
	manager   *backup.Manager
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if p := os.Getenv("VOLSNAP_CONFIG"); p != "" {
		return p
	}
	return constants.DefaultConfigPath
}

// loadConfig layers defaults, the config file, env files and the
// environment, then applies command line overrides.
func loadConfig() (*config.ConfigManager, error) {
	cm, err := config.NewConfigManager(resolveConfigPath(), envFiles...)
	if err != nil {
		return nil, err
	}

	cfg := cm.GetConfig()
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	return cm, nil
}

func newTransport(cfg *models.GlobalConfig, log zerolog.Logger) (transport.Transport, error) {
	if cfg.Transport.Kind == constants.TransportLocal {
		return transport.NewLocal(), nil
	}

	return transport.NewSFTP(transport.SFTPConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		User:           cfg.Server.User,
		KeyPath:        cfg.Server.KeyPath,
		KnownHostsPath: cfg.Server.KnownHostsPath,
		DialTimeout:    constants.SSHDialTimeout,
	}, log)
}

// newServices validates cfg and wires the backup manager. The runtime
// client is only connected when needRuntime is set, so listing and pruning
// work without the socket mounted.
func newServices(cfg *models.GlobalConfig, needRuntime bool) (*services, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	log, closer, err := logging.Setup(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, err
	}
	s := &services{cfg: cfg, log: log, logCloser: closer}

	s.transport, err = newTransport(cfg, log)
	if err != nil {
		s.Close()
		return nil, err
	}

	for _, dir := range []string{cfg.Paths.TempDir, cfg.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	locks, err := lock.NewLockManager(filepath.Join(cfg.Paths.StateDir, "locks"), constants.LockRetryInterval)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.history = backup.NewHistoryRegistry(cfg.Paths.StateDir)
	if err := s.history.Initialize(); err != nil {
		s.Close()
		return nil, err
	}

	self, err := docker.ResolveSelfIdentity(cfg.Runtime.SelfID)
	if err != nil {
		s.Close()
		return nil, err
	}

	codec, err := archive.NewCodecWithLevel(cfg.Backup.CompressionLevel)
	if err != nil {
		s.Close()
		return nil, errkind.Wrap(errkind.Configuration, "compression level", err)
	}

	var rt backup.ContainerRuntime = unavailableRuntime{}
	if needRuntime {
		s.docker, err = docker.NewClient(cfg.Runtime.SocketPath, log)
		if err != nil {
			s.Close()
			return nil, err
		}
		rt = s.docker
	}

	s.manager, err = backup.NewManager(backup.Config{
		VolumesRoot: cfg.Paths.BackupRoot,
		Workspace:   cfg.Paths.TempDir,
		RemoteDir:   config.RemoteDir(cfg),
		Retention:   cfg.Backup.Retention,
	}, backup.Deps{
		Runtime:   rt,
		Archiver:  codec,
		Transport: s.transport,
		Guard:     locks.Guard(constants.CycleLockName, constants.LockTimeout),
		History:   s.history,
		Clock:     clock.WallClock,
		Self:      self,
		Logger:    log,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	log.Debug().
		Str("transport", s.transport.String()).
		Str("self", self.ID).
		Str("config", resolveConfigPath()).
		Msg("services ready")
	return s, nil
}

func (s *services) Close() {
	if s.docker != nil {
		s.docker.Close()
	}
	if s.logCloser != nil {
		s.logCloser.Close()
	}
}

// unavailableRuntime stands in for the runtime client in commands that never
// touch containers.
type unavailableRuntime struct{}

func (unavailableRuntime) StopContainersUsingVolume(ctx context.Context, volume string, self models.SelfIdentity) ([]models.ContainerHandle, error) {
	return nil, errkind.Errorf(errkind.ContainerControl, "stop containers", "runtime not connected")
}

func (unavailableRuntime) StartContainers(ctx context.Context, handles []models.ContainerHandle) error {
	return errkind.Errorf(errkind.ContainerControl, "start containers", "runtime not connected")
}
