package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/aelpxy/volsnap/internal/retention"
	"github.com/spf13/cobra"
)

var backupsCmd = &cobra.Command{
	Use:     "backups",
	Aliases: []string{"ls", "list"},
	Short:   "List backups on the backup target",
	Long:    "List the backups on the backup target, newest first, and mark the ones\nthe current retention policy would delete.",
	Run:     runBackups,
}

func runBackups(cmd *cobra.Command, args []string) {
	cm, err := loadConfig()
	if err != nil {
		exitWithError("failed to load configuration", err)
	}

	svc, err := newServices(cm.GetConfig(), false)
	if err != nil {
		exitWithError("failed to initialize", err)
	}
	defer svc.Close()

	artifacts, err := svc.manager.Pruner().Artifacts(context.Background())
	if err != nil {
		svc.Close()
		exitWithError("failed to list backups", err)
	}

	if len(artifacts) == 0 {
		fmt.Println(dimStyle.Render(fmt.Sprintf("no backups found on %s", svc.transport.String())))
		fmt.Println()
		fmt.Println(dimStyle.Render("create a backup with: volsnap backup"))
		return
	}

	names := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		names = append(names, a.Name)
	}
	doomed := make(map[string]bool)
	for _, n := range retention.SelectForDeletion(names, svc.manager.Policy(), time.Now()) {
		doomed[n] = true
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("==> backups on %s (%d)", svc.transport.String(), len(artifacts))))
	fmt.Println()

	rows := [][]string{}
	for _, a := range artifacts {
		created := "-"
		if a.Valid {
			created = a.CreatedAt.Local().Format("2006-01-02 15:04:05")
		}
		keep := "keep"
		if doomed[a.Name] {
			keep = "delete"
		}
		rows = append(rows, []string{a.Name, created, statusStyle(keep).Render(keep)})
	}

	fmt.Println(newTable("name", "created", "retention").Rows(rows...))
	fmt.Println()

	policy := svc.manager.Policy()
	fmt.Println(dimStyle.Render(fmt.Sprintf("  policy: %s, %d would be pruned", describePolicy(policy.Count, policy.PeriodDays), len(doomed))))
	fmt.Println()
	fmt.Println(dimStyle.Render("  commands:"))
	fmt.Printf("    %s\n", dimStyle.Render("volsnap restore --backup <name>   # restore backup"))
	fmt.Printf("    %s\n", dimStyle.Render("volsnap prune --dry-run           # preview pruning"))
	fmt.Println()
}

func init() {
	rootCmd.AddCommand(backupsCmd)
}
