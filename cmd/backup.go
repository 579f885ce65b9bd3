package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aelpxy/volsnap/internal/backup"
	"github.com/aelpxy/volsnap/internal/config"
	"github.com/aelpxy/volsnap/internal/errkind"
	"github.com/aelpxy/volsnap/internal/scheduler"
	"github.com/aelpxy/volsnap/internal/utils"
	"github.com/juju/clock"
	"github.com/spf13/cobra"
)

var (
	backupCron            string
	backupRetentionCount  string
	backupRetentionPeriod string
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up every volume under the backup root",
	Long: "Stop the containers using each volume, archive it, upload the combined bundle\n" +
		"and apply the retention policy. With a cron expression the command keeps\n" +
		"running and performs a cycle at every trigger.",
	Example: `  volsnap backup
  volsnap backup --cron "0 3 * * *" --retention-count 7 --retention-period 30`,
	Run: runBackup,
}

func runBackup(cmd *cobra.Command, args []string) {
	cm, err := loadConfig()
	if err != nil {
		exitWithError("failed to load configuration", err)
	}
	cfg := cm.GetConfig()

	if cmd.Flags().Changed("cron") {
		cfg.Backup.Cron = backupCron
	}
	if cmd.Flags().Changed("retention-count") {
		if cfg.Backup.Retention.Count, err = config.ParseRetentionValue(backupRetentionCount); err != nil {
			exitWithError("invalid --retention-count", err)
		}
	}
	if cmd.Flags().Changed("retention-period") {
		if cfg.Backup.Retention.PeriodDays, err = config.ParseRetentionValue(backupRetentionPeriod); err != nil {
			exitWithError("invalid --retention-period", err)
		}
	}

	svc, err := newServices(cfg, true)
	if err != nil {
		exitWithError("failed to initialize", err)
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := backupLoop(ctx, svc); err != nil {
		svc.Close()
		exitWithError("backup failed", err)
	}
}

// backupLoop runs a single cycle, or schedules cycles until ctx is done when
// a cron expression is configured.
func backupLoop(ctx context.Context, svc *services) error {
	policy := svc.manager.Policy()
	fmt.Println(titleStyle.Render("==> volume backup"))
	fmt.Printf("  %s %s\n", labelStyle.Render("root:"), valueStyle.Render(svc.cfg.Paths.BackupRoot))
	fmt.Printf("  %s %s\n", labelStyle.Render("target:"), valueStyle.Render(svc.transport.String()))
	fmt.Printf("  %s %s\n", labelStyle.Render("retention:"), valueStyle.Render(describePolicy(policy.Count, policy.PeriodDays)))
	fmt.Println()

	if svc.cfg.Backup.Cron == "" {
		return runOneCycle(ctx, svc.manager)
	}

	sched, err := scheduler.New(svc.cfg.Backup.Cron, clock.WallClock, svc.log)
	if err != nil {
		return err
	}
	sched.OnNext(func(next time.Time) {
		fmt.Printf("%s next backup at %s\n", infoStyle.Render("  -->"), valueStyle.Render(next.Format(time.RFC1123)))
	})

	fmt.Printf("%s scheduled with %s\n", infoStyle.Render("  -->"), valueStyle.Render(svc.cfg.Backup.Cron))
	err = sched.Run(ctx, func(ctx context.Context) error {
		return runOneCycle(ctx, svc.manager)
	})
	if errors.Is(err, context.Canceled) {
		fmt.Println(dimStyle.Render("  scheduler stopped"))
		return nil
	}
	return err
}

func runOneCycle(ctx context.Context, m *backup.Manager) error {
	fmt.Println(progressStyle.Render("  --> running backup cycle..."))
	start := time.Now()

	result, err := m.RunCycle(ctx)
	if err != nil {
		if k := errkind.KindOf(err); k != errkind.Unknown {
			fmt.Printf("  %s %s\n", errorStyle.Render("[failed]"), dimStyle.Render(k.String()))
		}
		return err
	}

	printCycle(result, time.Since(start))
	return nil
}

func printCycle(r *backup.CycleResult, took time.Duration) {
	fmt.Println(successStyle.Render(fmt.Sprintf("  [done] %s", r.Artifact)))
	fmt.Printf("    %s %s\n", labelStyle.Render("run:"), dimStyle.Render(r.RunID))
	fmt.Printf("    %s %d\n", labelStyle.Render("volumes:"), len(r.Volumes))
	fmt.Printf("    %s %s\n", labelStyle.Render("size:"), valueStyle.Render(utils.FormatBytes(r.SizeBytes)))
	fmt.Printf("    %s %s\n", labelStyle.Render("remote:"), dimStyle.Render(r.RemotePath))
	if pruned := len(r.PrePrune.Deleted) + len(r.PostPrune.Deleted); pruned > 0 {
		fmt.Printf("    %s %d\n", labelStyle.Render("pruned:"), pruned)
	}
	fmt.Printf("    %s %s\n", labelStyle.Render("took:"), dimStyle.Render(took.Round(time.Millisecond).String()))
	fmt.Println()
}

func describePolicy(count, days int) string {
	c := "unbounded"
	if count >= 0 {
		c = fmt.Sprintf("%d", count)
	}
	d := "forever"
	if days >= 0 {
		d = fmt.Sprintf("%d days", days)
	}
	return fmt.Sprintf("%s backups, %s", c, d)
}

func init() {
	rootCmd.AddCommand(backupCmd)

	backupCmd.Flags().StringVar(&backupCron, "cron", "", "cron expression; run continuously instead of once")
	backupCmd.Flags().StringVar(&backupRetentionCount, "retention-count", "", "maximum number of backups to keep (a number or \"unbounded\")")
	backupCmd.Flags().StringVar(&backupRetentionPeriod, "retention-period", "", "maximum age of backups in days (a number or \"unbounded\")")
}
