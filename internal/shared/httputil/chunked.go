package httputil

import (
	"fmt"
	"io"
	"net/http"
	"sort"
)

// WriteChunk writes p as one chunk of a chunked body. An empty p writes
// nothing, since a zero-size chunk would end the body.
func WriteChunk(w io.Writer, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "%x\r\n", len(p)); err != nil {
		return err
	}
	if _, err := w.Write(p); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

// EndChunked writes the last-chunk marker, the trailer fields in sorted
// order, and the final CRLF.
func EndChunked(w io.Writer, trailer http.Header) error {
	if _, err := io.WriteString(w, "0\r\n"); err != nil {
		return err
	}
	keys := make([]string, 0, len(trailer))
	for k := range trailer {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range trailer[k] {
			if _, err := fmt.Fprintf(w, "%s: %s\r\n", k, v); err != nil {
				return err
			}
		}
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

// EncodeChunked splits body into chunks of the given sizes, cycling through
// sizes until the body is used up, and terminates it. A nil or empty sizes
// writes body as a single chunk.
func EncodeChunked(w io.Writer, body []byte, sizes ...int) error {
	for i := 0; len(body) > 0; i++ {
		n := len(body)
		if len(sizes) > 0 && sizes[i%len(sizes)] > 0 {
			n = min(n, sizes[i%len(sizes)])
		}
		if err := WriteChunk(w, body[:n]); err != nil {
			return err
		}
		body = body[n:]
	}
	return EndChunked(w, nil)
}
