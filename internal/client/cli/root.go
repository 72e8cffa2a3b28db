package cli

import (
	"context"
	"fmt"

	"keepalive/internal/client/cli/ui"
	"github.com/spf13/cobra"
)

var (
	// Version information
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"

	// Global flags
	configPath  string
	verbose     bool
	insecure    bool
	jsonOutput  bool
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "keepalive",
	Short: "keepalive - HTTP/1.1 requests over pooled persistent connections",
	Long: `keepalive - HTTP/1.1 requests over pooled persistent connections

Every command sends its requests through one connection pool per scheme,
so repeated requests to a host reuse an idle connection instead of dialing.

Configuration:
  Run 'keepalive config init' to write ~/.keepalive/config.yaml, then set
  default headers, timeouts and bandwidth there. Any field can be overridden
  with a KEEPALIVE_* environment variable.

Examples:
  keepalive get http://example.com/ http://example.com/about
  keepalive bench -n 20 http://localhost:8080/
  keepalive check --wait 30s http://localhost:8080/
  keepalive pool http://a.example/ http://b.example/`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ~/.keepalive/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&insecure, "insecure", "k", false, "Skip TLS verification (testing only, NOT recommended)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")

	rootCmd.AddCommand(versionCmd)
	// the remaining commands are added in their own init() functions
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), ui.Info(
			"keepalive",
			"",
			ui.KeyValue("Version", Version),
			ui.KeyValue("Git Commit", GitCommit),
			ui.KeyValue("Build Time", BuildTime),
		))
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which cancels in-flight
// requests when done.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetVersion sets the version information
func SetVersion(version, commit, buildTime string) {
	Version = version
	GitCommit = commit
	BuildTime = buildTime
}
