package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/aelpxy/volsnap/internal/config"
	"github.com/spf13/cobra"
)

var (
	configShowJSON  bool
	configInitForce bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "manage volsnap configuration",
	Long:  "inspect and create the volsnap configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "display the effective configuration",
	Long:  "show the configuration after layering the config file, env files and environment",
	Run: func(cmd *cobra.Command, args []string) {
		cm, err := loadConfig()
		if err != nil {
			exitWithError("failed to load config", err)
		}
		cfg := cm.GetConfig()

		if configShowJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(cfg); err != nil {
				exitWithError("failed to encode config", err)
			}
			return
		}

		fmt.Println()
		fmt.Println(titleStyle.Render("==> volsnap configuration"))
		fmt.Println("  " + dimStyle.Render(cm.Path()))
		fmt.Println()
		if err := toml.NewEncoder(os.Stdout).Encode(cfg); err != nil {
			exitWithError("failed to encode config", err)
		}
		fmt.Println()

		if err := config.Validate(cfg); err != nil {
			fmt.Println("  " + errorStyle.Render("[!]") + " " + dimStyle.Render(err.Error()))
		} else {
			fmt.Println("  " + successStyle.Render("[✓]") + " configuration valid")
		}
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "write a config file with the current settings",
	Long:  "write the effective configuration to the config file, so it can be edited instead of set through the environment",
	Run: func(cmd *cobra.Command, args []string) {
		cm, err := loadConfig()
		if err != nil {
			exitWithError("failed to load config", err)
		}

		if _, err := os.Stat(cm.Path()); err == nil && !configInitForce {
			fmt.Fprintf(os.Stderr, "%s %s already exists, use --force to overwrite\n", errorStyle.Render("[error]"), cm.Path())
			os.Exit(1)
		}

		if err := cm.Save(); err != nil {
			exitWithError("failed to save config", err)
		}

		fmt.Println(successStyle.Render("  [done]") + " wrote " + valueStyle.Render(cm.Path()))
		fmt.Println()
		fmt.Println("  " + dimStyle.Render("check it with: volsnap doctor"))
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	configShowCmd.Flags().BoolVar(&configShowJSON, "json", false, "output as JSON")
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "overwrite an existing config file")
}
