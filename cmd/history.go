package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aelpxy/volsnap/internal/backup"
	"github.com/aelpxy/volsnap/internal/utils"
	"github.com/aelpxy/volsnap/pkg/models"
	"github.com/spf13/cobra"
)

var (
	historyKind  string
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent backup and restore cycles",
	Run:   runHistory,
}

func runHistory(cmd *cobra.Command, args []string) {
	cm, err := loadConfig()
	if err != nil {
		exitWithError("failed to load configuration", err)
	}

	registry := backup.NewHistoryRegistry(cm.GetConfig().Paths.StateDir)
	if err := registry.Initialize(); err != nil {
		exitWithError("failed to read history", err)
	}

	records := registry.List(models.CycleKind(historyKind))
	if historyLimit > 0 && len(records) > historyLimit {
		records = records[:historyLimit]
	}

	if historyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			exitWithError("failed to encode history", err)
		}
		return
	}

	if len(records) == 0 {
		fmt.Println(dimStyle.Render("no cycles recorded yet"))
		return
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("==> history (%d)", len(records))))
	fmt.Println()

	rows := [][]string{}
	for _, r := range records {
		took := "-"
		if !r.CompletedAt.IsZero() {
			took = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		size := "-"
		if r.SizeBytes > 0 {
			size = utils.FormatBytes(r.SizeBytes)
		}
		rows = append(rows, []string{
			utils.TruncateID(r.ID, 12),
			string(r.Kind),
			statusStyle(r.Status).Render(r.Status),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			took,
			r.Artifact,
			size,
		})
	}

	fmt.Println(newTable("id", "kind", "status", "started", "took", "artifact", "size").Rows(rows...))
	fmt.Println()

	for _, r := range records {
		if r.Status == models.StatusFailed && r.Error != "" {
			fmt.Println(dimStyle.Render(fmt.Sprintf("  last failure (%s): %s", utils.TruncateID(r.ID, 12), r.Error)))
			break
		}
	}
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyKind, "kind", "", "only show \"backup\" or \"restore\" cycles")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of cycles to show")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output as JSON")
}
