package httputil

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
)

// RawResponse describes an HTTP/1.x response written byte for byte, so
// servers in tests can produce framing net/http would refuse to emit.
type RawResponse struct {
	Proto      string // defaults to HTTP/1.1
	StatusCode int
	Reason     string // defaults to http.StatusText(StatusCode)
	Header     http.Header
	Body       []byte

	// Chunked sends Body with chunked transfer coding split by ChunkSizes.
	Chunked    bool
	ChunkSizes []int

	// NoLength omits Content-Length on a non-chunked body, so the body
	// is delimited by closing the connection.
	NoLength bool
}

// WriteRawResponse serializes r to w. Header fields are written in sorted
// order after the framing headers.
func WriteRawResponse(w io.Writer, r RawResponse) error {
	bw := bufio.NewWriter(w)

	proto := r.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}
	reason := r.Reason
	if reason == "" {
		reason = http.StatusText(r.StatusCode)
	}
	fmt.Fprintf(bw, "%s %d %s\r\n", proto, r.StatusCode, reason)

	switch {
	case r.Chunked:
		bw.WriteString("Transfer-Encoding: chunked\r\n")
	case !r.NoLength:
		bw.WriteString("Content-Length: " + strconv.Itoa(len(r.Body)) + "\r\n")
	}

	keys := make([]string, 0, len(r.Header))
	for k := range r.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range r.Header[k] {
			fmt.Fprintf(bw, "%s: %s\r\n", k, v)
		}
	}
	bw.WriteString("\r\n")

	if r.Chunked {
		if err := EncodeChunked(bw, r.Body, r.ChunkSizes...); err != nil {
			return err
		}
	} else {
		bw.Write(r.Body)
	}
	return bw.Flush()
}

// Bytes returns the serialized response.
func (r RawResponse) Bytes() []byte {
	var buf bytes.Buffer
	WriteRawResponse(&buf, r)
	return buf.Bytes()
}

// WriteErrorResponse writes a plain-text response that closes the connection.
func WriteErrorResponse(w io.Writer, statusCode int, message string) error {
	return WriteRawResponse(w, RawResponse{
		StatusCode: statusCode,
		Header: http.Header{
			"Content-Type": {"text/plain"},
			"Connection":   {"close"},
		},
		Body: []byte(message + "\r\n"),
	})
}
