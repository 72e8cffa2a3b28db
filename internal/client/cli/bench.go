package cli

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"keepalive/internal/client/cli/ui"
	"keepalive/pkg/keepalive"
)

var benchCount int

var benchCmd = &cobra.Command{
	Use:   "bench <url>",
	Short: "Compare pooled fetches against a fresh connection per fetch",
	Long: `Fetch a URL N times through the pool, then N times closing the connection
after every fetch, and report how much faster the pooled run was. The body
length of every fetch is compared to catch a server that changes content.

Example:
  keepalive bench -n 50 http://localhost:8080/`,
	Args: cobra.ExactArgs(1),
	RunE: runBench,
}

func init() {
	benchCmd.Flags().IntVarP(&benchCount, "count", "n", 10, "Fetches per mode")
	rootCmd.AddCommand(benchCmd)
}

// benchResult is the --json form of a benchmark.
type benchResult struct {
	URL        string  `json:"url"`
	Count      int     `json:"count"`
	PooledMS   float64 `json:"pooled_ms"`
	UnpooledMS float64 `json:"unpooled_ms"`
	Speedup    float64 `json:"speedup"`
	Consistent bool    `json:"consistent"`
	Lengths    []int64 `json:"lengths"`
	Stats      keepalive.Stats `json:"stats"`
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchCount < 1 {
		return errors.Newf("invalid count %d: must be at least 1", benchCount)
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	result, err := benchmark(cmd.Context(), s, args[0], benchCount)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, benchResult{
			URL:        result.URL,
			Count:      result.Count,
			PooledMS:   float64(result.Pooled.Microseconds()) / 1000,
			UnpooledMS: float64(result.Unpooled.Microseconds()) / 1000,
			Speedup:    result.Improve,
			Consistent: result.Consistent,
			Lengths:    result.Lengths,
			Stats:      s.handler(schemeOf(args[0])).Stats(),
		})
	}
	fmt.Fprintln(out, ui.RenderBenchResult(result))
	fmt.Fprint(out, ui.RenderPoolStats(poolStatus(schemeOf(args[0]), s.handler(schemeOf(args[0])).Stats())))
	return nil
}

// benchmark fetches rawURL n times through the session's pool and n times
// through a handler whose connections are closed after every fetch.
func benchmark(ctx context.Context, s *session, rawURL string, n int) (*ui.BenchResult, error) {
	pooled := s.handler(schemeOf(rawURL))
	unpooled := s.newHandler(schemeOf(rawURL), "unpooled")
	defer unpooled.Close()

	var lengths []int64
	run := func(h *keepalive.Handler, closeAfter bool) (time.Duration, error) {
		start := time.Now()
		for i := 0; i < n; i++ {
			size, err := fetchDiscard(ctx, h, rawURL)
			if err != nil {
				return 0, err
			}
			lengths = append(lengths, size)
			if closeAfter {
				h.CloseAll()
			}
		}
		return time.Since(start), nil
	}

	pooledTime, err := run(pooled, false)
	if err != nil {
		return nil, errors.Wrap(err, "pooled run")
	}
	unpooledTime, err := run(unpooled, true)
	if err != nil {
		return nil, errors.Wrap(err, "unpooled run")
	}

	s.logger.Debug("Benchmark finished",
		zap.String("url", rawURL),
		zap.Int("count", n),
		zap.Duration("pooled", pooledTime),
		zap.Duration("unpooled", unpooledTime),
	)

	improve := 0.0
	if pooledTime > 0 {
		improve = float64(unpooledTime) / float64(pooledTime)
	}
	return &ui.BenchResult{
		URL:        rawURL,
		Count:      n,
		Pooled:     pooledTime,
		Unpooled:   unpooledTime,
		Improve:    improve,
		Consistent: len(slices.Compact(slices.Clone(lengths))) == 1,
		Lengths:    lengths,
	}, nil
}

// fetchDiscard GETs rawURL through h and returns the body length.
func fetchDiscard(ctx context.Context, h *keepalive.Handler, rawURL string) (int64, error) {
	req, err := keepalive.NewRequest("GET", rawURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := h.Dispatch(ctx, req)
	if err != nil {
		return 0, err
	}
	defer resp.Close()
	return io.Copy(io.Discard, resp)
}

func poolStatus(scheme string, st keepalive.Stats) *ui.PoolStatus {
	return &ui.PoolStatus{
		Scheme:      scheme,
		Opened:      st.Opened,
		Reused:      st.Reused,
		ReuseFailed: st.ReuseFailed,
		Discarded:   st.Discarded,
		BrokenPipes: st.BrokenPipes,
		Requests:    st.Requests,
		BytesIn:     st.BytesIn,
		BytesOut:    st.BytesOut,
		ReuseRatio:  st.ReuseRatio(),
	}
}
