package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/aelpxy/volsnap/internal/constants"
	"github.com/aelpxy/volsnap/internal/errkind"
	"github.com/aelpxy/volsnap/pkg/models"
	"github.com/joho/godotenv"
)

// ConfigManager layers configuration: built-in defaults, then the TOML
// file, then .env files, then the process environment. Flags are applied by
// the caller on top.
type ConfigManager struct {
	configPath string
	config     *models.GlobalConfig
}

func DefaultConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		Paths: models.PathsConfig{
			BackupRoot: constants.DefaultBackupRoot,
			TempDir:    constants.DefaultTempDir,
			StateDir:   constants.DefaultStateDir,
		},
		Server: models.ServerConfig{
			Port:    constants.DefaultPort,
			KeyPath: constants.DefaultKeyPath,
		},
		Transport: models.TransportConfig{
			Kind: constants.TransportSFTP,
		},
		Backup: models.BackupConfig{
			CompressionLevel: constants.DefaultCompressionLevel,
			Retention:        models.UnboundedRetention(),
		},
		Restore: models.RestoreConfig{
			Backup:  constants.LatestBackup,
			Volumes: constants.AllVolumes,
		},
		Logging: models.LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func NewConfigManager(configPath string, envFiles ...string) (*ConfigManager, error) {
	cm := &ConfigManager{
		configPath: configPath,
		config:     DefaultConfig(),
	}

	if err := cm.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errkind.Wrap(errkind.Configuration, "load config", err)
	}

	if err := loadDotEnv(envFiles); err != nil {
		return nil, errkind.Wrap(errkind.Configuration, "load env file", err)
	}

	if err := ApplyEnv(cm.config, os.LookupEnv); err != nil {
		return nil, err
	}

	return cm, nil
}

func (cm *ConfigManager) Load() error {
	if cm.configPath == "" {
		return os.ErrNotExist
	}
	if _, err := os.Stat(cm.configPath); os.IsNotExist(err) {
		return err
	}

	if _, err := toml.DecodeFile(cm.configPath, cm.config); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}

	return nil
}

func (cm *ConfigManager) Save() error {
	if err := os.MkdirAll(filepath.Dir(cm.configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(cm.configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(cm.config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

func (cm *ConfigManager) GetConfig() *models.GlobalConfig {
	return cm.config
}

func (cm *ConfigManager) Path() string {
	return cm.configPath
}

// loadDotEnv reads the given env files without overriding variables that
// are already set. Missing files are skipped.
func loadDotEnv(files []string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}
