package constants

import "time"

const (
	MaxNameLength = 255
	MinNameLength = 1

	MinPort     = 1
	MaxPort     = 65535
	DefaultPort = 22

	MaxHistoryRecords = 200

	// gzip levels; -1 selects the library default, -2 Huffman only.
	DefaultCompressionLevel = -1
	MinCompressionLevel     = -2
	MaxCompressionLevel     = 9
)

const (
	DefaultBackupRoot = "/backup"
	DefaultTempDir    = "/tmp/volsnap"
	DefaultStateDir   = "/var/lib/volsnap"
	DefaultConfigPath = "/etc/volsnap/config.toml"
	DefaultKeyPath    = "/.ssh/id_rsa"

	LatestBackup = "latest"
	AllVolumes   = "all"

	ActionBackup  = "backup"
	ActionRestore = "restore"

	TransportSFTP  = "sftp"
	TransportLocal = "local"

	CycleLockName   = "cycle"
	HistoryFileName = "history.json"
)

const (
	LockTimeout       = 5 * time.Second
	LockRetryInterval = 250 * time.Millisecond
	SSHDialTimeout    = 30 * time.Second
)
