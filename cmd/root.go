package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("213"))

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14"))

	progressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Bold(true)
)

var (
	configPath string
	envFiles   []string
	verbose    bool
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "volsnap",
	Short: "scheduled backups of container volumes",
	Long: titleStyle.Render(`
                 __
 _   ______  / /________  ____ _____
| | / / __ \/ / ___/ __ \/ __ `+"`"+`/ __ \
| |/ / /_/ / (__  ) / / / /_/ / /_/ /
|___/\____/_/____/_/ /_/\__,_/ .___/
                            /_/
`) + "\n" + subtitleStyle.Render("volume snapshots for containers") + "\n\n" +
		"Stops the containers using each volume, archives it, ships the bundle\n" +
		"to a backup server and prunes old bundles by retention policy.\n\n" +
		"With ACTION set in the environment, running volsnap without a\n" +
		"subcommand performs that action (container entrypoint mode).",
	Version: "0.1.0",
	Run: func(cmd *cobra.Command, args []string) {
		if os.Getenv("ACTION") == "" {
			cmd.Help()
			return
		}
		runAction(cmd, args)
	},
}

func SetVersionInfo(v, bt, gc string) {
	version = v
	buildTime = bt
	gitCommit = gc
	rootCmd.Version = fmt.Sprintf("%s (built: %s, commit: %s)", version, buildTime, gitCommit)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("[error] Error: %v", err)))
		os.Exit(1)
	}
}

func exitWithError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s %s: %v\n", errorStyle.Render("[error]"), msg, err)
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $VOLSNAP_CONFIG or /etc/volsnap/config.toml)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "env files to load before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console or json")
}
