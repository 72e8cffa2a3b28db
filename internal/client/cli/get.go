package cli

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"keepalive/internal/client/cli/ui"
	"keepalive/pkg/keepalive"
)

var (
	getMethod  string
	getHeaders []string
	getData    string
	getInclude bool
)

var getCmd = &cobra.Command{
	Use:   "get <url>...",
	Short: "Fetch URLs over pooled connections",
	Long: `Fetch one or more URLs in order, reusing connections between them.

Bodies are written to stdout and a status line per URL to stderr. With
--json only the summary of each fetch is printed.

Examples:
  keepalive get http://localhost:8080/a http://localhost:8080/b
  keepalive get -X POST -d 'name=value' http://localhost:8080/form
  keepalive get -X PUT -d @upload.bin http://localhost:8080/files/1
  keepalive get -H 'Accept: text/plain' -i http://example.com/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGet,
}

func init() {
	getCmd.Flags().StringVarP(&getMethod, "method", "X", "", "Request method (default GET, or POST with --data)")
	getCmd.Flags().StringArrayVarP(&getHeaders, "header", "H", nil, "Request header \"Name: value\" (repeatable)")
	getCmd.Flags().StringVarP(&getData, "data", "d", "", "Request body, or @file to send a file")
	getCmd.Flags().BoolVarP(&getInclude, "include", "i", false, "Print response headers before the body")
	rootCmd.AddCommand(getCmd)
}

// fetchResult summarizes one fetch for --json output.
type fetchResult struct {
	URL           string  `json:"url"`
	Status        int     `json:"status,omitempty"`
	Proto         string  `json:"proto,omitempty"`
	ContentLength int64   `json:"content_length,omitempty"`
	Bytes         int64   `json:"bytes"`
	Chunked       bool    `json:"chunked,omitempty"`
	WillClose     bool    `json:"will_close,omitempty"`
	Recovered     bool    `json:"recovered,omitempty"`
	DurationMS    float64 `json:"duration_ms"`
	Error         string  `json:"error,omitempty"`
}

func runGet(cmd *cobra.Command, args []string) error {
	header, err := parseHeaders(getHeaders)
	if err != nil {
		return err
	}
	method := getMethod
	if method == "" && getData != "" {
		method = "POST"
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	var results []fetchResult
	failed := 0
	for _, rawURL := range args {
		body, closer, err := requestBody(getData)
		if err != nil {
			return err
		}

		var dst io.Writer = out
		if jsonOutput {
			dst = io.Discard
		}
		res := getOne(cmd, s, method, rawURL, header, body, dst)
		if closer != nil {
			closer.Close()
		}

		results = append(results, res)
		if res.Error != "" {
			failed++
			if !jsonOutput {
				fmt.Fprintln(errOut, ui.RenderFetchFailed(rawURL, errors.New(res.Error)))
			}
			continue
		}
		if !jsonOutput {
			fmt.Fprintln(errOut, ui.RenderResponseLine(res.Status, res.URL, res.Bytes, time.Duration(res.DurationMS*float64(time.Millisecond))))
		}
	}

	if jsonOutput {
		if err := printJSON(out, results); err != nil {
			return err
		}
	}
	if failed > 0 {
		return errors.Newf("%d of %d fetches failed", failed, len(args))
	}
	return nil
}

// getOne fetches rawURL and copies its body to dst. Failures are reported
// in the result rather than returned so the remaining URLs still run.
func getOne(cmd *cobra.Command, s *session, method, rawURL string, header http.Header, body keepalive.Body, dst io.Writer) (res fetchResult) {
	res.URL = rawURL
	start := time.Now()
	defer func() { res.DurationMS = float64(time.Since(start).Microseconds()) / 1000 }()

	resp, err := s.fetch(cmd.Context(), method, rawURL, header, body)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer resp.Close()

	res.URL = resp.URL()
	res.Status = resp.StatusCode
	res.Proto = resp.Proto
	res.ContentLength = resp.ContentLength
	res.Chunked = resp.Chunked
	res.WillClose = resp.WillClose
	res.Recovered = resp.Recovered()

	if getInclude && !jsonOutput {
		writeHead(dst, resp.Proto, resp.Status(), resp.Header)
	}
	n, err := io.Copy(dst, resp)
	res.Bytes = n
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

func writeHead(w io.Writer, proto, status string, header http.Header) {
	fmt.Fprintf(w, "%s %s\n", proto, status)
	names := make([]string, 0, len(header))
	for name := range header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range header[name] {
			fmt.Fprintf(w, "%s: %s\n", name, v)
		}
	}
	fmt.Fprintln(w)
}
