package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aelpxy/volsnap/internal/backup"
	"github.com/aelpxy/volsnap/internal/config"
	"github.com/aelpxy/volsnap/internal/constants"
	"github.com/aelpxy/volsnap/internal/docker"
	"github.com/aelpxy/volsnap/internal/lock"
	"github.com/aelpxy/volsnap/internal/utils"
	"github.com/aelpxy/volsnap/pkg/models"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, runtime and backup target",
	Long:  "Verify that the controller can reach the container runtime, read the\nvolumes and talk to the backup target before the first cycle runs.",
	Run:   runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) {
	fmt.Println(titleStyle.Render("==> checking controller health"))
	fmt.Println()

	cm, err := loadConfig()
	if err != nil {
		exitWithError("failed to load configuration", err)
	}
	cfg := cm.GetConfig()

	allGood := checkConfig(cfg)
	allGood = checkDirectories(cfg) && allGood
	allGood = checkRuntime(cfg) && allGood
	allGood = checkTarget(cfg) && allGood

	fmt.Println()
	if allGood {
		fmt.Println(successStyle.Render("  [done] all checks passed"))
		return
	}
	fmt.Println(errorStyle.Render("  [error] some checks failed"))
	fmt.Println()
	fmt.Println(dimStyle.Render("  fix the issues above before the next backup"))
	os.Exit(1)
}

func pass(format string, args ...any) {
	fmt.Printf("    %s %s\n", successStyle.Render("[✓]"), fmt.Sprintf(format, args...))
}

func fail(msg string, err error) {
	fmt.Printf("    %s %s\n", errorStyle.Render("[✗]"), msg)
	if err != nil {
		fmt.Printf("      %s\n", dimStyle.Render(err.Error()))
	}
}

func checkConfig(cfg *models.GlobalConfig) bool {
	fmt.Println(labelStyle.Render("  configuration"))

	path := resolveConfigPath()
	if _, err := os.Stat(path); err != nil {
		fmt.Printf("    %s %s not found, using defaults and environment\n", errorStyle.Render("[!]"), dimStyle.Render(path))
	} else {
		pass("%s", dimStyle.Render(path))
	}

	if err := config.Validate(cfg); err != nil {
		fail("configuration invalid", err)
		return false
	}
	pass("configuration valid")
	if cfg.Backup.Cron != "" {
		fmt.Printf("      %s %s\n", dimStyle.Render("schedule:"), dimStyle.Render(cfg.Backup.Cron))
	}
	return true
}

func checkDirectories(cfg *models.GlobalConfig) bool {
	fmt.Println(labelStyle.Render("  directories"))
	ok := true

	root, err := utils.ValidateDirectory(cfg.Paths.BackupRoot)
	if err != nil {
		fail("backup root unavailable", err)
		ok = false
	} else if vols, err := backup.DiscoverVolumes(root); err != nil {
		fail("cannot read backup root", err)
		ok = false
	} else {
		pass("%s (%d volumes)", dimStyle.Render(root), len(vols))
	}

	for _, dir := range []string{cfg.Paths.TempDir, cfg.Paths.StateDir} {
		if err := utils.IsWritableDir(dir); err != nil {
			fail(dir+" not writable", err)
			ok = false
			continue
		}
		pass("%s writable", dimStyle.Render(dir))
	}

	locks, err := lock.NewLockManager(filepath.Join(cfg.Paths.StateDir, "locks"), constants.LockRetryInterval)
	if err == nil && locks.IsLocked(constants.CycleLockName) {
		fmt.Printf("    %s a cycle is currently running\n", infoStyle.Render("[i]"))
	}
	return ok
}

func checkRuntime(cfg *models.GlobalConfig) bool {
	fmt.Println(labelStyle.Render("  runtime"))

	client, err := docker.NewClient(cfg.Runtime.SocketPath, zerolog.Nop())
	if err != nil {
		fail("runtime not detected", err)
		return false
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info := client.GetRuntimeInfo()
	ver, err := client.Ping(ctx)
	if err != nil {
		fail(info.GetRuntimeName()+" daemon not responding", err)
		return false
	}
	pass("%s %s", valueStyle.Render(info.GetRuntimeName()), dimStyle.Render(ver.Version))
	fmt.Printf("      %s %s\n", dimStyle.Render("socket:"), dimStyle.Render(info.SocketPath))

	self, err := docker.ResolveSelfIdentity(cfg.Runtime.SelfID)
	if err != nil {
		fail("cannot resolve own container id", err)
		return false
	}
	fmt.Printf("      %s %s\n", dimStyle.Render("self:"), dimStyle.Render(utils.TruncateID(self.ID, 12)))

	vols, err := backup.DiscoverVolumes(cfg.Paths.BackupRoot)
	if err != nil {
		return true
	}
	for _, v := range vols {
		ctrs, err := client.ListContainersUsingVolume(ctx, v.Name)
		if err != nil {
			fail("cannot list containers for "+v.Name, err)
			return false
		}
		fmt.Printf("      %s %s\n", dimStyle.Render(v.Name+":"), dimStyle.Render(fmt.Sprintf("%d running container(s)", len(ctrs))))
	}
	return true
}

func checkTarget(cfg *models.GlobalConfig) bool {
	fmt.Println(labelStyle.Render("  backup target"))

	if cfg.Transport.Kind == constants.TransportSFTP {
		if _, err := os.Stat(cfg.Server.KeyPath); err != nil {
			fail("ssh key not readable", err)
			return false
		}
		pass("ssh key %s", dimStyle.Render(cfg.Server.KeyPath))
		if cfg.Server.KnownHostsPath == "" {
			fmt.Printf("    %s host key not verified\n", errorStyle.Render("[!]"))
			fmt.Printf("      %s\n", dimStyle.Render("set KNOWN_HOSTS_PATH to pin the server's host key"))
		}
	}

	tr, err := newTransport(cfg, zerolog.Nop())
	if err != nil {
		fail("transport misconfigured", err)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.SSHDialTimeout+10*time.Second)
	defer cancel()

	names, err := tr.List(ctx, config.RemoteDir(cfg))
	if err != nil {
		fail("cannot list "+tr.String(), err)
		return false
	}
	pass("%s reachable (%d files)", valueStyle.Render(tr.String()), len(names))
	return true
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
