package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aelpxy/volsnap/internal/constants"
	"github.com/aelpxy/volsnap/internal/errkind"
	"github.com/aelpxy/volsnap/internal/scheduler"
	"github.com/aelpxy/volsnap/internal/utils"
	"github.com/aelpxy/volsnap/pkg/models"
	"github.com/rs/zerolog"
)

type LookupFunc func(key string) (string, bool)

type stringVar struct {
	key string
	dst *string
}

// ApplyEnv overlays environment variables onto cfg. Unset variables leave
// the current value alone.
func ApplyEnv(cfg *models.GlobalConfig, lookup LookupFunc) error {
	strs := []stringVar{
		{"ACTION", &cfg.Action},
		{"SERVER_IP", &cfg.Server.Host},
		{"SERVER_USER", &cfg.Server.User},
		{"SERVER_DIRECTORY", &cfg.Server.Directory},
		{"SSH_KEY_PATH", &cfg.Server.KeyPath},
		{"KNOWN_HOSTS_PATH", &cfg.Server.KnownHostsPath},
		{"BACKUP_CRON", &cfg.Backup.Cron},
		{"RESTORE_BACKUP", &cfg.Restore.Backup},
		{"RESTORE_VOLUMES", &cfg.Restore.Volumes},
		{"BACKUP_ROOT", &cfg.Paths.BackupRoot},
		{"TEMP_DIR", &cfg.Paths.TempDir},
		{"STATE_DIR", &cfg.Paths.StateDir},
		{"TRANSPORT", &cfg.Transport.Kind},
		{"LOCAL_TARGET_DIR", &cfg.Transport.TargetDir},
		{"DOCKER_SOCKET", &cfg.Runtime.SocketPath},
		{"SELF_CONTAINER_ID", &cfg.Runtime.SelfID},
		{"LOG_LEVEL", &cfg.Logging.Level},
		{"LOG_FORMAT", &cfg.Logging.Format},
		{"LOG_FILE", &cfg.Logging.File},
	}
	for _, v := range strs {
		if val, ok := lookup(v.key); ok {
			*v.dst = strings.TrimSpace(val)
		}
	}

	if val, ok := lookup("SERVER_PORT"); ok && strings.TrimSpace(val) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return errkind.Errorf(errkind.Configuration, "SERVER_PORT", "not a number: %q", val)
		}
		cfg.Server.Port = port
	}

	if val, ok := lookup("BACKUP_COMPRESSION_LEVEL"); ok && strings.TrimSpace(val) != "" {
		level, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return errkind.Errorf(errkind.Configuration, "BACKUP_COMPRESSION_LEVEL", "not a number: %q", val)
		}
		cfg.Backup.CompressionLevel = level
	}

	if val, ok := lookup("BACKUP_RETENTION_COUNT"); ok {
		n, err := ParseRetentionValue(val)
		if err != nil {
			return errkind.Wrap(errkind.Configuration, "BACKUP_RETENTION_COUNT", err)
		}
		cfg.Backup.Retention.Count = n
	}

	if val, ok := lookup("BACKUP_RETENTION_PERIOD_IN_DAYS"); ok {
		n, err := ParseRetentionValue(val)
		if err != nil {
			return errkind.Wrap(errkind.Configuration, "BACKUP_RETENTION_PERIOD_IN_DAYS", err)
		}
		cfg.Backup.Retention.PeriodDays = n
	}

	return nil
}

// ParseRetentionValue accepts a non-negative integer, or an empty string or
// "unbounded" for no limit.
func ParseRetentionValue(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "unbounded") {
		return models.Unbounded, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("expected a non-negative integer or \"unbounded\", got %q", s)
	}
	return n, nil
}

func ValidateAction(action string) error {
	switch action {
	case constants.ActionBackup, constants.ActionRestore:
		return nil
	case "":
		return errkind.Errorf(errkind.Configuration, "ACTION", "not set: expected %q or %q", constants.ActionBackup, constants.ActionRestore)
	default:
		return errkind.Errorf(errkind.Configuration, "ACTION", "unknown action %q: expected %q or %q", action, constants.ActionBackup, constants.ActionRestore)
	}
}

// Validate checks everything a cycle needs before any container is touched.
func Validate(cfg *models.GlobalConfig) error {
	fail := func(op, format string, args ...any) error {
		return errkind.Errorf(errkind.Configuration, op, format, args...)
	}

	if cfg.Paths.BackupRoot == "" || cfg.Paths.TempDir == "" || cfg.Paths.StateDir == "" {
		return fail("paths", "backup_root, temp_dir and state_dir must be set")
	}

	switch cfg.Transport.Kind {
	case constants.TransportSFTP:
		s := cfg.Server
		if s.Host == "" || s.User == "" || s.Directory == "" {
			return fail("server", "SERVER_IP, SERVER_USER and SERVER_DIRECTORY are required for sftp")
		}
		if s.KeyPath == "" {
			return fail("server", "SSH_KEY_PATH is required for sftp")
		}
		if s.Port < constants.MinPort || s.Port > constants.MaxPort {
			return fail("server", "port %d out of range", s.Port)
		}
	case constants.TransportLocal:
		if cfg.Transport.TargetDir == "" {
			return fail("transport", "LOCAL_TARGET_DIR is required for the local transport")
		}
	default:
		return fail("transport", "unknown transport %q: expected %q or %q", cfg.Transport.Kind, constants.TransportSFTP, constants.TransportLocal)
	}

	if cfg.Backup.Cron != "" {
		if _, err := scheduler.ParseSchedule(cfg.Backup.Cron); err != nil {
			return err
		}
	}

	if l := cfg.Backup.CompressionLevel; l < constants.MinCompressionLevel || l > constants.MaxCompressionLevel {
		return fail("backup", "compression level %d out of range", l)
	}

	r := cfg.Backup.Retention
	if r.Count < models.Unbounded || r.PeriodDays < models.Unbounded {
		return fail("retention", "count and period_days must be non-negative or unbounded")
	}

	if sel := strings.TrimSpace(cfg.Restore.Volumes); sel != "" && sel != constants.AllVolumes {
		for _, name := range utils.SplitList(sel) {
			if !utils.IsValidVolumeName(name) {
				return fail("restore", "invalid volume name %q", name)
			}
		}
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.Logging.Level)); err != nil {
		return fail("logging", "invalid level %q", cfg.Logging.Level)
	}

	return nil
}

// RemoteDir is the directory on the backup target holding the artifacts.
func RemoteDir(cfg *models.GlobalConfig) string {
	if cfg.Transport.Kind == constants.TransportLocal {
		return cfg.Transport.TargetDir
	}
	return cfg.Server.Directory
}
