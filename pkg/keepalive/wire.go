package keepalive

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"net/textproto"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"golang.org/x/net/http/httpguts"

	"keepalive/internal/shared/constants"
	"keepalive/internal/shared/pool"
)

// readLine reads one CRLF or LF terminated line without its terminator.
// It returns io.EOF when nothing was read and io.ErrUnexpectedEOF when the
// stream ended inside a line.
func readLine(br *bufio.Reader) (string, error) {
	var line []byte
	for {
		frag, err := br.ReadSlice('\n')
		if len(line)+len(frag) > constants.MaxLineLength {
			return "", errLineTooLong
		}
		line = append(line, frag...)
		switch err {
		case nil:
			line = bytes.TrimSuffix(line, []byte("\n"))
			return string(bytes.TrimSuffix(line, []byte("\r"))), nil
		case bufio.ErrBufferFull:
			continue
		case io.EOF:
			if len(line) == 0 {
				return "", io.EOF
			}
			return string(bytes.TrimSuffix(line, []byte("\r"))), io.ErrUnexpectedEOF
		default:
			return "", err
		}
	}
}

type statusLine struct {
	proto      string
	major      int
	minor      int
	statusCode int
	reason     string
}

func parseStatusLine(line string) (statusLine, error) {
	if !strings.HasPrefix(line, "HTTP/") {
		return statusLine{}, &BadStatusLineError{Line: line, Legacy: true}
	}

	proto, rest, ok := strings.Cut(line, " ")
	if !ok {
		return statusLine{}, &BadStatusLineError{Line: line}
	}
	major, minor, ok := http.ParseHTTPVersion(proto)
	if !ok || major != 1 {
		return statusLine{}, &BadStatusLineError{Line: line}
	}

	code, reason, _ := strings.Cut(strings.TrimLeft(rest, " "), " ")
	if len(code) != 3 {
		return statusLine{}, &BadStatusLineError{Line: line}
	}
	statusCode, err := strconv.Atoi(code)
	if err != nil || statusCode < 100 {
		return statusLine{}, &BadStatusLineError{Line: line}
	}

	return statusLine{
		proto:      proto,
		major:      major,
		minor:      minor,
		statusCode: statusCode,
		reason:     strings.TrimSpace(reason),
	}, nil
}

// readResponseHead reads the status line and header block of the next final
// response on br. Interim 1xx responses are skipped, except 101 Switching
// Protocols which ends the HTTP exchange.
func readResponseHead(br *bufio.Reader) (statusLine, http.Header, error) {
	tp := textproto.NewReader(br)
	for {
		line, err := readLine(br)
		if err != nil {
			return statusLine{}, nil, err
		}
		st, err := parseStatusLine(line)
		if err != nil {
			return statusLine{}, nil, err
		}
		mime, err := tp.ReadMIMEHeader()
		if err != nil {
			return statusLine{}, nil, errors.Wrap(err, "malformed response header")
		}
		if st.statusCode >= 100 && st.statusCode < 200 && st.statusCode != http.StatusSwitchingProtocols {
			continue
		}
		return st, http.Header(mime), nil
	}
}

// bodyAllowed reports whether a response to method with the given status
// carries a message body.
func bodyAllowed(method string, statusCode int) bool {
	switch {
	case method == http.MethodHead:
		return false
	case statusCode >= 100 && statusCode < 200:
		return false
	case statusCode == http.StatusNoContent, statusCode == http.StatusNotModified:
		return false
	}
	return true
}

// contentLength parses the Content-Length header, returning -1 when it is
// absent or unusable.
func contentLength(h http.Header) int64 {
	v := strings.TrimSpace(h.Get("Content-Length"))
	if v == "" {
		return -1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// shouldClose reports whether the server intends to close the connection
// after this response.
func shouldClose(major, minor int, h http.Header) bool {
	if major == 1 && minor >= 1 {
		return httpguts.HeaderValuesContainsToken(h["Connection"], "close")
	}
	if len(h["Keep-Alive"]) > 0 {
		return false
	}
	if httpguts.HeaderValuesContainsToken(h["Connection"], "keep-alive") {
		return false
	}
	return !httpguts.HeaderValuesContainsToken(h["Proxy-Connection"], "keep-alive")
}

// buildRequestHead appends the request line and header block for req to
// dst. Headers are merged defaults first, request last, and written in
// sorted order. The Host header omits defaultPort.
func buildRequestHead(dst []byte, req *Request, defaults http.Header, defaultPort string) ([]byte, error) {
	method := req.method()
	if !httpguts.ValidHeaderFieldName(method) {
		return dst, errors.Wrapf(ErrInvalidHeader, "method %q", method)
	}
	path := req.path()
	if strings.ContainsAny(path, " \r\n") {
		return dst, errors.Wrapf(ErrInvalidHeader, "path %q", path)
	}

	header := pool.GetHeader()
	defer pool.PutHeader(header)
	pool.Merge(header, defaults, req.Header)

	if header.Get("Host") == "" {
		header.Set("Host", req.hostHeader(defaultPort))
	}
	if _, ok := header["Accept-Encoding"]; !ok {
		header.Set("Accept-Encoding", constants.DefaultAcceptEncoding)
	}
	if req.Body != nil {
		if header.Get("Content-Type") == "" {
			header.Set("Content-Type", constants.DefaultContentType)
		}
		if declared := header.Get("Content-Length"); declared != "" {
			n, err := strconv.ParseInt(strings.TrimSpace(declared), 10, 64)
			if err != nil {
				return dst, errors.Wrapf(ErrInvalidHeader, "Content-Length %q", declared)
			}
			if n != req.Body.Len() {
				return dst, &ContentLengthMismatchError{Expected: n, Actual: req.Body.Len()}
			}
		} else {
			header.Set("Content-Length", strconv.FormatInt(req.Body.Len(), 10))
		}
	}

	keys := lo.Keys(header)
	slices.Sort(keys)
	for _, k := range keys {
		if !httpguts.ValidHeaderFieldName(k) {
			return dst, errors.Wrapf(ErrInvalidHeader, "name %q", k)
		}
		for _, v := range header[k] {
			if !httpguts.ValidHeaderFieldValue(v) {
				return dst, errors.Wrapf(ErrInvalidHeader, "value for %q", k)
			}
		}
	}

	dst = append(dst, method...)
	dst = append(dst, ' ')
	dst = append(dst, path...)
	dst = append(dst, ' ')
	dst = append(dst, constants.HTTPVersion...)
	dst = append(dst, "\r\n"...)
	for _, k := range keys {
		for _, v := range header[k] {
			dst = append(dst, k...)
			dst = append(dst, ": "...)
			dst = append(dst, strings.TrimSpace(v)...)
			dst = append(dst, "\r\n"...)
		}
	}
	return append(dst, "\r\n"...), nil
}
