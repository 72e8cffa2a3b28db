package keepalive

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	tests := []struct {
		url      string
		wantHost string
		wantPath string
		wantErr  bool
	}{
		{url: "http://example.com/a/b?c=d", wantHost: "example.com:80", wantPath: "/a/b?c=d"},
		{url: "http://example.com", wantHost: "example.com:80", wantPath: "/"},
		{url: "https://example.com/x", wantHost: "example.com:443", wantPath: "/x"},
		{url: "http://127.0.0.1:8080/", wantHost: "127.0.0.1:8080", wantPath: "/"},
		{url: "http://[::1]:9000/v6", wantHost: "[::1]:9000", wantPath: "/v6"},
		{url: "ftp://example.com/", wantErr: true},
		{url: "/relative/only", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			req, err := NewRequest("GET", tt.url, nil)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantHost, req.Host)
			require.Equal(t, tt.wantPath, req.Path)
		})
	}
}

func TestNewRequestWithoutHost(t *testing.T) {
	_, err := NewRequest("GET", "/relative/only", nil)
	require.ErrorIs(t, err, ErrNoHost)
}

func TestHostHeaderElidesDefaultPort(t *testing.T) {
	require.Equal(t, "example.com", (&Request{Host: "example.com:80"}).hostHeader("80"))
	require.Equal(t, "example.com:8080", (&Request{Host: "example.com:8080"}).hostHeader("80"))
	require.Equal(t, "example.com", (&Request{Host: "example.com:443"}).hostHeader("443"))
	require.Equal(t, "example.com", (&Request{Host: "example.com"}).hostHeader("80"))
}

func TestNewStreamBody(t *testing.T) {
	_, err := NewStreamBody(strings.NewReader("12345"), 5)
	require.NoError(t, err)

	_, err = NewStreamBody(strings.NewReader("12345"), 4)
	var mismatch *ContentLengthMismatchError
	require.True(t, errors.As(err, &mismatch))
	require.Equal(t, int64(4), mismatch.Expected)
	require.Equal(t, int64(5), mismatch.Actual)

	_, err = NewStreamBody(nil, 0)
	require.Error(t, err)

	_, err = NewStreamBody(strings.NewReader(""), -1)
	require.Error(t, err)

	// Lengths of non-seekable sources can only be checked while sending.
	_, err = NewStreamBody(io.LimitReader(strings.NewReader("12345"), 5), 99)
	require.NoError(t, err)
}

func TestStreamBodyRewindsBeforeEachSend(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789"), 2000)
	body, err := NewStreamBody(bytes.NewReader(payload), int64(len(payload)))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		var out bytes.Buffer
		require.NoError(t, body.writeTo(&out))
		require.Equal(t, payload, out.Bytes())
	}
}

func TestStreamBodyLengthMismatch(t *testing.T) {
	tests := []struct {
		name       string
		src        string
		declared   int64
		wantActual int64
	}{
		{"source shorter", "abc", 5, 3},
		{"source longer", "abcdefg", 5, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := StreamBody{r: io.MultiReader(strings.NewReader(tt.src)), length: tt.declared}
			err := body.writeTo(io.Discard)

			var mismatch *ContentLengthMismatchError
			require.True(t, errors.As(err, &mismatch), "got %v", err)
			require.Equal(t, tt.declared, mismatch.Expected)
			require.Equal(t, tt.wantActual, mismatch.Actual)
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestStreamBodySourceError(t *testing.T) {
	body := StreamBody{r: failingReader{}, length: 10}
	err := body.writeTo(io.Discard)

	var src *bodySourceError
	require.True(t, errors.As(err, &src))
	require.Contains(t, err.Error(), "disk on fire")
}

func TestFixedBody(t *testing.T) {
	body := NewFixedBody([]byte("payload"))
	require.Equal(t, int64(7), body.Len())

	var out bytes.Buffer
	require.NoError(t, body.writeTo(&out))
	require.Equal(t, "payload", out.String())
}
