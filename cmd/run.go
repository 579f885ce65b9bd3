package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aelpxy/volsnap/internal/config"
	"github.com/aelpxy/volsnap/internal/constants"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Perform the action named by ACTION",
	Long: "Entry point for the controller container: ACTION=backup runs a backup\n" +
		"(scheduled when BACKUP_CRON is set), ACTION=restore restores without\n" +
		"asking for confirmation.",
	Run: runAction,
}

func runAction(cmd *cobra.Command, args []string) {
	cm, err := loadConfig()
	if err != nil {
		exitWithError("failed to load configuration", err)
	}
	cfg := cm.GetConfig()

	if err := config.ValidateAction(cfg.Action); err != nil {
		exitWithError("invalid action", err)
	}

	svc, err := newServices(cfg, true)
	if err != nil {
		exitWithError("failed to initialize", err)
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc.log.Info().Str("action", cfg.Action).Msg("starting")

	switch cfg.Action {
	case constants.ActionBackup:
		err = backupLoop(ctx, svc)
	case constants.ActionRestore:
		err = restore(ctx, svc)
	}
	if err != nil {
		svc.log.Error().Err(err).Str("action", cfg.Action).Msg("action failed")
		svc.Close()
		exitWithError(cfg.Action+" failed", err)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
}
