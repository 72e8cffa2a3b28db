package cli

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"keepalive/internal/client/cli/ui"
	"keepalive/pkg/keepalive"
)

var checkWait time.Duration

var checkCmd = &cobra.Command{
	Use:   "check <url>",
	Short: "Check that pooled reads return identical bodies",
	Long: `Fetch a URL three times over the pool, reading the body with plain reads,
line by line, and all lines at once, and compare SHA-256 digests.

With --wait the URL is fetched, the connection left idle for the given
time, and fetched again. Servers usually drop idle connections, so the
second fetch exercises the fallback from a dead connection to a new one.

Examples:
  keepalive check http://localhost:8080/
  keepalive check --wait 20s http://localhost:8080/`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().DurationVar(&checkWait, "wait", 0, "Also refetch after leaving the connection idle this long")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	h := s.handler(schemeOf(args[0]))
	results, err := checkContinuity(cmd.Context(), h, args[0])
	if err != nil {
		return err
	}
	if checkWait > 0 {
		r, err := checkIdleRefetch(cmd.Context(), h, args[0], checkWait)
		if err != nil {
			return err
		}
		results = append(results, r)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if err := printJSON(out, results); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, ui.RenderCheckResults(args[0], results))
	}
	for _, r := range results {
		if !r.OK {
			return errors.New("check failed")
		}
	}
	return nil
}

// bodyReadFunc consumes a whole response body.
type bodyReadFunc func(resp *keepalive.PooledResponse) ([]byte, error)

func readPlain(resp *keepalive.PooledResponse) ([]byte, error) {
	return io.ReadAll(resp)
}

func readByLine(resp *keepalive.PooledResponse) ([]byte, error) {
	var buf bytes.Buffer
	for {
		line, err := resp.ReadLine()
		buf.Write(line)
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return buf.Bytes(), err
		}
	}
}

func readAllLines(resp *keepalive.PooledResponse) ([]byte, error) {
	lines, err := resp.ReadLines(0)
	return bytes.Join(lines, nil), err
}

func fetchWith(ctx context.Context, h *keepalive.Handler, rawURL string, read bodyReadFunc) ([]byte, error) {
	req, err := keepalive.NewRequest("GET", rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.Dispatch(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Close()
	return read(resp)
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// checkContinuity fetches rawURL once per body reading style and reports
// whether every style produced the same digest as plain reads.
func checkContinuity(ctx context.Context, h *keepalive.Handler, rawURL string) ([]ui.CheckResult, error) {
	styles := []struct {
		name string
		read bodyReadFunc
	}{
		{"Read", readPlain},
		{"ReadLine", readByLine},
		{"ReadLines", readAllLines},
	}

	var want string
	results := make([]ui.CheckResult, 0, len(styles))
	for _, style := range styles {
		body, err := fetchWith(ctx, h, rawURL, style.read)
		if err != nil {
			return nil, errors.Wrapf(err, "fetch with %s", style.name)
		}
		sum := digest(body)
		if want == "" {
			want = sum
		}
		results = append(results, ui.CheckResult{
			Name:   style.name + " digest",
			OK:     sum == want,
			Detail: fmt.Sprintf("%s (%d bytes)", sum[:16], len(body)),
		})
	}
	return results, nil
}

// checkIdleRefetch fetches rawURL, leaves the connection idle for wait and
// fetches again, reporting whether both bodies match.
func checkIdleRefetch(ctx context.Context, h *keepalive.Handler, rawURL string, wait time.Duration) (ui.CheckResult, error) {
	first, err := fetchWith(ctx, h, rawURL, readPlain)
	if err != nil {
		return ui.CheckResult{}, errors.Wrap(err, "first fetch")
	}

	select {
	case <-time.After(wait):
	case <-ctx.Done():
		return ui.CheckResult{}, ctx.Err()
	}

	staleBefore := h.Stats().ReuseFailed
	second, err := fetchWith(ctx, h, rawURL, readPlain)
	if err != nil {
		return ui.CheckResult{}, errors.Wrap(err, "fetch after idle")
	}

	detail := "connection reused"
	if h.Stats().ReuseFailed > staleBefore {
		detail = "dropped connection replaced"
	}
	return ui.CheckResult{
		Name:   fmt.Sprintf("Refetch after %s idle", wait),
		OK:     bytes.Equal(first, second),
		Detail: detail,
	}, nil
}
