package cli

import (
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	json "github.com/goccy/go-json"

	"keepalive/pkg/keepalive"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode output")
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// parseHeaders turns repeated "Name: value" flags into a header.
func parseHeaders(lines []string) (http.Header, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	h := make(http.Header, len(lines))
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.Newf("invalid header %q: expected \"Name: value\"", line)
		}
		h.Add(name, strings.TrimSpace(value))
	}
	return h, nil
}

// requestBody builds a body from --data. "@path" streams the named file.
func requestBody(data string) (keepalive.Body, io.Closer, error) {
	if data == "" {
		return nil, nil, nil
	}
	path, isFile := strings.CutPrefix(data, "@")
	if !isFile {
		return keepalive.NewFixedBody([]byte(data)), nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open request body")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, errors.Wrap(err, "failed to stat request body")
	}
	body, err := keepalive.NewStreamBody(f, info.Size())
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return body, f, nil
}
