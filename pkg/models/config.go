package models

type GlobalConfig struct {
	Action    string          `toml:"action" json:"action"`
	Paths     PathsConfig     `toml:"paths" json:"paths"`
	Server    ServerConfig    `toml:"server" json:"server"`
	Transport TransportConfig `toml:"transport" json:"transport"`
	Backup    BackupConfig    `toml:"backup" json:"backup"`
	Restore   RestoreConfig   `toml:"restore" json:"restore"`
	Runtime   RuntimeConfig   `toml:"runtime" json:"runtime"`
	Logging   LoggingConfig   `toml:"logging" json:"logging"`
}

type PathsConfig struct {
	BackupRoot string `toml:"backup_root" json:"backup_root"`
	TempDir    string `toml:"temp_dir" json:"temp_dir"`
	StateDir   string `toml:"state_dir" json:"state_dir"`
}

type ServerConfig struct {
	Host           string `toml:"host" json:"host"`
	Port           int    `toml:"port" json:"port"`
	User           string `toml:"user" json:"user"`
	Directory      string `toml:"directory" json:"directory"`
	KeyPath        string `toml:"key_path" json:"key_path"`
	KnownHostsPath string `toml:"known_hosts_path" json:"known_hosts_path"`
}

type TransportConfig struct {
	Kind      string `toml:"kind" json:"kind"`
	TargetDir string `toml:"target_dir" json:"target_dir"`
}

type BackupConfig struct {
	Cron             string          `toml:"cron" json:"cron"`
	CompressionLevel int             `toml:"compression_level" json:"compression_level"`
	Retention        RetentionPolicy `toml:"retention" json:"retention"`
}

// RetentionPolicy bounds the retained artifacts. A negative value means the
// dimension is unbounded.
type RetentionPolicy struct {
	Count      int `toml:"count" json:"count"`
	PeriodDays int `toml:"period_days" json:"period_days"`
}

const Unbounded = -1

func UnboundedRetention() RetentionPolicy {
	return RetentionPolicy{Count: Unbounded, PeriodDays: Unbounded}
}

type RestoreConfig struct {
	Backup  string `toml:"backup" json:"backup"`
	Volumes string `toml:"volumes" json:"volumes"`
}

type RuntimeConfig struct {
	SocketPath string `toml:"socket_path" json:"socket_path"`
	SelfID     string `toml:"self_id" json:"self_id"`
}

type LoggingConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`
	File   string `toml:"file" json:"file"`
}
