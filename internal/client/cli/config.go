package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"keepalive/internal/client/cli/ui"
	"keepalive/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  "Manage keepalive client configuration (default headers, timeouts, bandwidth, metrics)",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the defaults",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the effective configuration, including environment overrides",
	RunE:  runConfigShow,
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset configuration",
	Long:  "Delete the configuration file",
	RunE:  runConfigReset,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  "Load and validate the configuration file and environment overrides",
	RunE:  runConfigValidate,
}

var configForce bool

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configResetCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing configuration")
	configResetCmd.Flags().BoolVar(&configForce, "force", false, "Force reset without confirmation")

	rootCmd.AddCommand(configCmd)
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultClientConfigPath()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := resolvedConfigPath()
	if config.ConfigExists(path) && !configForce {
		return errors.Newf("configuration already exists at %s (use --force to overwrite)", path)
	}

	if err := config.SaveClientConfig(config.DefaultClientConfig(), path); err != nil {
		return errors.Wrap(err, "failed to save configuration")
	}

	fmt.Fprintln(cmd.OutOrStdout(), ui.RenderConfigSaved(path))
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	path := resolvedConfigPath()
	cfg, err := config.LoadClientConfig(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, cfg)
	}
	fmt.Fprintln(out, ui.RenderConfigShow(&ui.ConfigView{
		Path:           path,
		Exists:         config.ConfigExists(path),
		DefaultHeaders: cfg.DefaultHeaders,
		HostHeaders:    cfg.HostHeaders,
		DialTimeout:    cfg.DialTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		Bandwidth:      cfg.Bandwidth,
		MetricsAddr:    cfg.MetricsAddr,
		Insecure:       cfg.InsecureSkipVerify,
		Debug:          cfg.Debug,
	}))
	return nil
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	path := resolvedConfigPath()
	out := cmd.OutOrStdout()

	if !config.ConfigExists(path) {
		fmt.Fprintln(out, "No configuration file found")
		return nil
	}

	if !configForce {
		fmt.Fprint(out, "Are you sure you want to delete the configuration? (y/N): ")
		reader := bufio.NewReader(cmd.InOrStdin())
		response, _ := reader.ReadString('\n')
		response = strings.ToLower(strings.TrimSpace(response))

		if response != "y" && response != "yes" {
			fmt.Fprintln(out, "Cancelled")
			return nil
		}
	}

	if err := os.Remove(path); err != nil {
		return errors.Wrap(err, "failed to delete configuration")
	}

	fmt.Fprintln(out, ui.RenderConfigDeleted())
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := resolvedConfigPath()
	if _, err := config.LoadClientConfig(path); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), ui.Error("Failed to load configuration"))
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.RenderConfigValid(path))
	return nil
}
