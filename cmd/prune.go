package cmd

import (
	"context"
	"fmt"

	"github.com/aelpxy/volsnap/internal/config"
	"github.com/spf13/cobra"
)

var (
	pruneDryRun          bool
	pruneRetentionCount  string
	pruneRetentionPeriod string
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the retention policy to the backup target",
	Example: `  volsnap prune --dry-run
  volsnap prune --retention-count 7`,
	Run: runPrune,
}

func runPrune(cmd *cobra.Command, args []string) {
	cm, err := loadConfig()
	if err != nil {
		exitWithError("failed to load configuration", err)
	}
	cfg := cm.GetConfig()

	if cmd.Flags().Changed("retention-count") {
		if cfg.Backup.Retention.Count, err = config.ParseRetentionValue(pruneRetentionCount); err != nil {
			exitWithError("invalid --retention-count", err)
		}
	}
	if cmd.Flags().Changed("retention-period") {
		if cfg.Backup.Retention.PeriodDays, err = config.ParseRetentionValue(pruneRetentionPeriod); err != nil {
			exitWithError("invalid --retention-period", err)
		}
	}

	svc, err := newServices(cfg, false)
	if err != nil {
		exitWithError("failed to initialize", err)
	}
	defer svc.Close()

	policy := svc.manager.Policy()
	if pruneDryRun {
		fmt.Println(titleStyle.Render("==> prune preview"))
	} else {
		fmt.Println(titleStyle.Render("==> pruning backups"))
	}
	fmt.Printf("  %s %s\n", labelStyle.Render("policy:"), valueStyle.Render(describePolicy(policy.Count, policy.PeriodDays)))
	fmt.Println()

	result, deleted, err := svc.manager.Prune(context.Background(), pruneDryRun)
	for _, name := range deleted {
		if pruneDryRun {
			fmt.Printf("  %s %s\n", dimStyle.Render("[would delete]"), name)
		} else {
			fmt.Printf("  %s %s\n", successStyle.Render("[deleted]"), name)
		}
	}
	for _, name := range result.Failed {
		fmt.Printf("  %s %s\n", errorStyle.Render("[failed]"), name)
	}
	if err != nil {
		svc.Close()
		exitWithError("prune failed", err)
	}

	fmt.Println()
	kept := len(result.Considered) - len(deleted)
	fmt.Println(successStyle.Render(fmt.Sprintf("  [done] %d considered, %d kept", len(result.Considered), kept)))
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "show what would be deleted without deleting")
	pruneCmd.Flags().StringVar(&pruneRetentionCount, "retention-count", "", "maximum number of backups to keep (a number or \"unbounded\")")
	pruneCmd.Flags().StringVar(&pruneRetentionPeriod, "retention-period", "", "maximum age of backups in days (a number or \"unbounded\")")
}
