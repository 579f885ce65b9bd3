package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aelpxy/volsnap/internal/backup"
	"github.com/spf13/cobra"
)

var (
	restoreBackup  string
	restoreVolumes string
	restoreForce   bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore volumes from a backup",
	Long: "Download a backup, take a safety backup of the current state and replace\n" +
		"the contents of the selected volumes. Containers using a volume are\n" +
		"stopped while it is restored.",
	Example: `  volsnap restore
  volsnap restore --backup backup-2025-06-01T03-00-00.tar.gz --volumes db,uploads`,
	Run: runRestore,
}

func runRestore(cmd *cobra.Command, args []string) {
	cm, err := loadConfig()
	if err != nil {
		exitWithError("failed to load configuration", err)
	}
	cfg := cm.GetConfig()

	if cmd.Flags().Changed("backup") {
		cfg.Restore.Backup = restoreBackup
	}
	if cmd.Flags().Changed("volumes") {
		cfg.Restore.Volumes = restoreVolumes
	}

	if !restoreForce && !confirmRestore(cfg.Restore.Backup, cfg.Restore.Volumes) {
		fmt.Println(dimStyle.Render("  restore cancelled"))
		return
	}

	svc, err := newServices(cfg, true)
	if err != nil {
		exitWithError("failed to initialize", err)
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := restore(ctx, svc); err != nil {
		svc.Close()
		exitWithError("restore failed", err)
	}
}

func restore(ctx context.Context, svc *services) error {
	req := backup.RestoreRequest{
		Backup:  svc.cfg.Restore.Backup,
		Volumes: svc.cfg.Restore.Volumes,
	}

	fmt.Println(titleStyle.Render("==> volume restore"))
	fmt.Printf("  %s %s\n", labelStyle.Render("backup:"), valueStyle.Render(req.Backup))
	fmt.Printf("  %s %s\n", labelStyle.Render("volumes:"), valueStyle.Render(req.Volumes))
	fmt.Println()
	fmt.Println(progressStyle.Render("  --> downloading and restoring..."))

	result, err := svc.manager.Restore(ctx, req)
	if result != nil {
		if result.Safety != nil {
			fmt.Printf("  %s safety backup %s\n", successStyle.Render("[done]"), valueStyle.Render(result.Safety.Artifact))
		}
		for _, v := range result.Restored {
			fmt.Printf("  %s %s\n", successStyle.Render("[done]"), v)
		}
		for _, v := range result.Failed {
			fmt.Printf("  %s %s\n", errorStyle.Render("[failed]"), v)
		}
	}
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(successStyle.Render(fmt.Sprintf("  [done] restored %d volume(s) from %s", len(result.Restored), result.Artifact)))
	return nil
}

func confirmRestore(backupName, volumes string) bool {
	fmt.Printf("%s this replaces the contents of volumes %s with backup %s\n",
		errorStyle.Render("[warning]"), valueStyle.Render(volumes), valueStyle.Render(backupName))
	fmt.Print("  continue? (y/N): ")

	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().StringVarP(&restoreBackup, "backup", "b", "", "backup name or \"latest\"")
	restoreCmd.Flags().StringVar(&restoreVolumes, "volumes", "", "comma separated volume names or \"all\"")
	restoreCmd.Flags().BoolVarP(&restoreForce, "force", "f", false, "skip confirmation")
}
