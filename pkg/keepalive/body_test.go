package keepalive

import (
	"bufio"
	"bytes"
	"io"
	"math/rand"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"keepalive/internal/shared/httputil"
)

func chunkedBody(t *testing.T, raw string) *bodyReader {
	t.Helper()
	return newBodyReader(newChunkedReader(bufio.NewReader(strings.NewReader(raw))))
}

func encodeChunked(t *testing.T, body []byte, sizes ...int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, httputil.EncodeChunked(&buf, body, sizes...))
	return buf.String()
}

func TestChunkedRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	payload := make([]byte, 20000)
	rng.Read(payload)

	tests := []struct {
		name  string
		sizes []int
		reads []int
	}{
		{"single chunk, read all", nil, nil},
		{"small chunks, read all", []int{1, 7, 300}, nil},
		{"large chunks, byte reads", []int{4096}, []int{1}},
		{"mixed chunks, mixed reads", []int{13, 2000, 5}, []int{3, 17, 8192}},
		{"reads spanning chunks", []int{10}, []int{1000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := chunkedBody(t, encodeChunked(t, payload, tt.sizes...))

			var got []byte
			if tt.reads == nil {
				var err error
				got, err = io.ReadAll(b)
				require.NoError(t, err)
			} else {
				for i := 0; ; i++ {
					p := make([]byte, tt.reads[i%len(tt.reads)])
					n, err := b.Read(p)
					got = append(got, p[:n]...)
					if err == io.EOF {
						break
					}
					require.NoError(t, err)
				}
			}
			require.Equal(t, payload, got)
		})
	}
}

func TestChunkedPartialReadKeepsRemainder(t *testing.T) {
	b := chunkedBody(t, "a\r\n0123456789\r\n0\r\n\r\n")

	p := make([]byte, 4)
	n, err := b.Read(p)
	require.NoError(t, err)
	require.Equal(t, "0123", string(p[:n]))

	rest, err := io.ReadAll(b)
	require.NoError(t, err)
	require.Equal(t, "456789", string(rest))
}

func TestChunkedFillsBufferAcrossChunks(t *testing.T) {
	b := chunkedBody(t, "3\r\nabc\r\n3\r\ndef\r\n3\r\nghi\r\n0\r\n\r\n")

	p := make([]byte, 7)
	n, err := b.Read(p)
	require.NoError(t, err)
	require.Equal(t, 7, n)
	require.Equal(t, "abcdefg", string(p))
}

func TestChunkedExtensionsAndTrailers(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"extension", "5;name=value\r\nhello\r\n0\r\n\r\n", "hello"},
		{"uppercase hex", "A\r\n0123456789\r\n0\r\n\r\n", "0123456789"},
		{"trailer fields", "5\r\nhello\r\n0\r\nX-Checksum: abc\r\nX-Other: 1\r\n\r\n", "hello"},
		{"trailer ends at EOF", "5\r\nhello\r\n0\r\nX-Checksum: abc\r\n", "hello"},
		{"no trailer CRLF", "5\r\nhello\r\n0\r\n", "hello"},
		{"empty body", "0\r\n\r\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(chunkedBody(t, tt.raw))
			require.NoError(t, err)
			require.Equal(t, tt.want, string(got))
		})
	}
}

func TestChunkedTrailerConsumed(t *testing.T) {
	raw := "5\r\nhello\r\n0\r\nX-Trailer: 1\r\n\r\nNEXT"
	br := bufio.NewReader(strings.NewReader(raw))
	b := newBodyReader(newChunkedReader(br))

	got, err := io.ReadAll(b)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))

	rest, err := io.ReadAll(br)
	require.NoError(t, err)
	require.Equal(t, "NEXT", string(rest), "the next response must start right after the trailer")
}

func TestChunkedFramingErrorCarriesPartial(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantLine string
	}{
		{"non-hex size", "5\r\nhello\r\n6\r\n world\r\nzz\r\nmore\r\n0\r\n\r\n", "zz"},
		{"negative size", "5\r\nhello\r\n6\r\n world\r\n-1\r\n", "-1"},
		{"missing CRLF after data", "5\r\nhello\r\n6\r\n worldXX\r\n", "XX"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := chunkedBody(t, tt.raw)
			var failed error
			b.onFail = func(err error) { failed = err }

			got, err := io.ReadAll(b)
			require.Equal(t, "hello world", string(got))

			var framing *ChunkFramingError
			require.True(t, errors.As(err, &framing), "got %v", err)
			require.Equal(t, tt.wantLine, framing.Line)
			require.Equal(t, "hello world", string(framing.Partial))

			var incomplete *IncompleteReadError
			require.True(t, errors.As(err, &incomplete))
			require.Equal(t, "hello world", string(incomplete.Partial))

			require.Same(t, framing, failed)

			_, err = b.Read(make([]byte, 10))
			require.Same(t, framing, err, "the error is sticky")
		})
	}
}

func TestChunkedTruncated(t *testing.T) {
	b := chunkedBody(t, "a\r\n01234")
	got, err := io.ReadAll(b)
	require.Equal(t, "01234", string(got))

	var incomplete *IncompleteReadError
	require.True(t, errors.As(err, &incomplete), "got %v", err)
	require.Equal(t, int64(5), incomplete.Expected)
}

func TestLengthBody(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("hello worldNEXT"))
	b := newBodyReader(&lengthReader{br: br, left: 11})

	eofs := 0
	b.onEOF = func() { eofs++ }

	got, err := io.ReadAll(b)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got))
	require.Equal(t, 1, eofs)

	_, err = b.Read(make([]byte, 1))
	require.Equal(t, io.EOF, err)
	require.Equal(t, 1, eofs, "onEOF fires once")

	rest, _ := io.ReadAll(br)
	require.Equal(t, "NEXT", string(rest))
}

func TestLengthBodyIncomplete(t *testing.T) {
	b := newBodyReader(&lengthReader{br: bufio.NewReader(strings.NewReader("short")), left: 10})

	p := make([]byte, 64)
	n, err := b.Read(p)
	require.Equal(t, 5, n)

	var incomplete *IncompleteReadError
	require.True(t, errors.As(err, &incomplete), "got %v", err)
	require.Equal(t, "short", string(incomplete.Partial))
	require.Equal(t, int64(5), incomplete.Expected)
}

func TestCloseDelimitedBody(t *testing.T) {
	b := newBodyReader(closeReader{br: bufio.NewReader(strings.NewReader("until the end"))})
	got, err := io.ReadAll(b)
	require.NoError(t, err)
	require.Equal(t, "until the end", string(got))
}

func TestReadLine(t *testing.T) {
	long := strings.Repeat("x", 20000)
	raw := "first\r\nsecond\n" + long + "\nlast without newline"

	sources := map[string]func() *bodyReader{
		"chunked": func() *bodyReader { return chunkedBody(t, encodeChunked(t, []byte(raw), 5, 3000)) },
		"length": func() *bodyReader {
			return newBodyReader(&lengthReader{br: bufio.NewReader(strings.NewReader(raw)), left: int64(len(raw))})
		},
	}
	for name, open := range sources {
		t.Run(name, func(t *testing.T) {
			b := open()
			want := []string{"first\r\n", "second\n", long + "\n", "last without newline"}
			for _, w := range want {
				line, err := b.ReadLine()
				require.NoError(t, err)
				require.Equal(t, w, string(line))
			}
			line, err := b.ReadLine()
			require.Equal(t, io.EOF, err)
			require.Nil(t, line)
		})
	}
}

func TestReadLineThenRead(t *testing.T) {
	b := chunkedBody(t, encodeChunked(t, []byte("header\nbody bytes"), 4))

	line, err := b.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "header\n", string(line))

	rest, err := io.ReadAll(b)
	require.NoError(t, err)
	require.Equal(t, "body bytes", string(rest))
}

func TestReadLines(t *testing.T) {
	raw := "one\ntwo\nthree\nfour\n"

	b := chunkedBody(t, encodeChunked(t, []byte(raw), 3))
	lines, err := b.ReadLines(0)
	require.NoError(t, err)
	require.Len(t, lines, 4)

	b = chunkedBody(t, encodeChunked(t, []byte(raw), 3))
	lines, err = b.ReadLines(6)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("one\n"), []byte("two\n")}, lines)
}

func TestDrain(t *testing.T) {
	b := chunkedBody(t, encodeChunked(t, bytes.Repeat([]byte("z"), 1000), 100))
	released := false
	b.onEOF = func() { released = true }
	require.True(t, b.drain(4096))
	require.True(t, released)

	b = newBodyReader(&lengthReader{br: bufio.NewReader(bytes.NewReader(make([]byte, 100000))), left: 100000})
	require.False(t, b.drain(1000), "bodies larger than the budget are not drained")

	require.True(t, emptyBody().drain(0))
}

func TestParseChunkSize(t *testing.T) {
	tests := []struct {
		line   string
		want   int64
		wantOK bool
	}{
		{"0", 0, true},
		{"1a", 26, true},
		{"FF", 255, true},
		{" 10 ", 16, true},
		{"10;ext=1", 16, true},
		{"", 0, false},
		{";ext", 0, false},
		{"xyz", 0, false},
		{"+5", 0, false},
		{"-5", 0, false},
		{"0x10", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseChunkSize(tt.line)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("parseChunkSize(%q) = %d, %v, want %d, %v", tt.line, got, ok, tt.want, tt.wantOK)
		}
	}
}
