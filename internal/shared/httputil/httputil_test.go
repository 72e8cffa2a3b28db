package httputil

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	stdhttputil "net/http/httputil"
	"strings"
	"testing"
)

func TestEncodeChunked(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		sizes []int
		want  string
	}{
		{"single chunk", "hello", nil, "5\r\nhello\r\n0\r\n\r\n"},
		{"split", "hello world", []int{5}, "5\r\nhello\r\n5\r\n worl\r\n1\r\nd\r\n0\r\n\r\n"},
		{"cycled sizes", "abcdef", []int{1, 2}, "1\r\na\r\n2\r\nbc\r\n1\r\nd\r\n2\r\nef\r\n0\r\n\r\n"},
		{"empty body", "", []int{3}, "0\r\n\r\n"},
		{"large chunk hex", strings.Repeat("x", 26), nil, "1a\r\n" + strings.Repeat("x", 26) + "\r\n0\r\n\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := EncodeChunked(&buf, []byte(tt.body), tt.sizes...); err != nil {
				t.Fatalf("EncodeChunked() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("EncodeChunked() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeChunkedDecodesWithStdlib(t *testing.T) {
	body := bytes.Repeat([]byte("0123456789"), 500)
	var buf bytes.Buffer
	if err := EncodeChunked(&buf, body, 7, 1, 300); err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(stdhttputil.NewChunkedReader(&buf))
	if err != nil {
		t.Fatalf("NewChunkedReader: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Error("decoded body does not match")
	}
}

func TestEndChunkedTrailer(t *testing.T) {
	var buf bytes.Buffer
	EndChunked(&buf, http.Header{"X-B": {"2"}, "X-A": {"1"}})
	want := "0\r\nX-A: 1\r\nX-B: 2\r\n\r\n"
	if buf.String() != want {
		t.Errorf("EndChunked() = %q, want %q", buf.String(), want)
	}
}

func TestWriteRawResponseParses(t *testing.T) {
	tests := []struct {
		name      string
		resp      RawResponse
		wantClose bool
	}{
		{
			name: "content length",
			resp: RawResponse{StatusCode: 200, Body: []byte("payload"), Header: http.Header{"X-Test": {"1"}}},
		},
		{
			name: "chunked",
			resp: RawResponse{StatusCode: 200, Body: []byte("payload"), Chunked: true, ChunkSizes: []int{2}},
		},
		{
			name:      "http/1.0 read to close",
			resp:      RawResponse{Proto: "HTTP/1.0", StatusCode: 200, Body: []byte("payload"), NoLength: true},
			wantClose: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			br := bufio.NewReader(bytes.NewReader(tt.resp.Bytes()))
			resp, err := http.ReadResponse(br, nil)
			if err != nil {
				t.Fatalf("ReadResponse: %v", err)
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if string(body) != "payload" {
				t.Errorf("body = %q, want %q", body, "payload")
			}
			if resp.Close != tt.wantClose {
				t.Errorf("Close = %v, want %v", resp.Close, tt.wantClose)
			}
		})
	}
}

func TestWriteErrorResponse(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteErrorResponse(&buf, http.StatusServiceUnavailable, "busy"); err != nil {
		t.Fatal(err)
	}
	resp, err := http.ReadResponse(bufio.NewReader(&buf), nil)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", resp.StatusCode)
	}
	if !resp.Close {
		t.Error("error response should close the connection")
	}
}
