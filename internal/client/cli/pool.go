package cli

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"keepalive/internal/client/cli/ui"
	"keepalive/pkg/keepalive"
)

var poolCmd = &cobra.Command{
	Use:   "pool <url>...",
	Short: "Fetch URLs and show the connections left open",
	Long: `Fetch every URL through one pool per scheme and print, per host, how many
connections stay open afterwards, followed by the pool counters.

Example:
  keepalive pool http://a.example/ http://a.example/x http://b.example/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPool,
}

func init() {
	rootCmd.AddCommand(poolCmd)
}

// poolReport is the --json form of the pool command, per scheme.
type poolReport struct {
	Scheme string                `json:"scheme"`
	Open   []keepalive.HostConns `json:"open"`
	Stats  keepalive.Stats       `json:"stats"`
}

func runPool(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	failed := 0
	for _, rawURL := range args {
		if _, err := fetchDiscard(cmd.Context(), s.handler(schemeOf(rawURL)), rawURL); err != nil {
			failed++
			if !jsonOutput {
				fmt.Fprintln(errOut, ui.RenderFetchFailed(rawURL, err))
			}
		}
	}

	reports := collectPoolReports(s)
	if jsonOutput {
		if err := printJSON(out, reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			fmt.Fprint(out, renderOpenConnections(r))
			fmt.Fprint(out, ui.RenderPoolStats(poolStatus(r.Scheme, r.Stats)))
		}
	}

	if failed > 0 {
		return errors.Newf("%d of %d fetches failed", failed, len(args))
	}
	return nil
}

func collectPoolReports(s *session) []poolReport {
	var reports []poolReport
	for _, scheme := range s.schemes() {
		h := s.handler(scheme)
		reports = append(reports, poolReport{
			Scheme: scheme,
			Open:   h.OpenConnections(),
			Stats:  h.Stats(),
		})
	}
	return reports
}

func renderOpenConnections(r poolReport) string {
	if len(r.Open) == 0 {
		return ui.Info("No Open Connections", ui.Muted("Every "+r.Scheme+" connection was closed by its server")) + "\n"
	}
	table := ui.NewTable([]string{"HOST", "OPEN"}).
		WithTitle("Open " + r.Scheme + " Connections")
	for _, hc := range r.Open {
		table.AddRow([]string{ui.Cyan(hc.Host), strconv.Itoa(hc.Count)})
	}
	return table.Render()
}
