package keepalive

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"keepalive/internal/shared/constants"
	"keepalive/internal/shared/pool"
)

type chunkState int

const (
	chunkSize chunkState = iota
	chunkData
	chunkDataEnd
	chunkTrailer
	chunkDone
	chunkBroken
)

// chunkedReader decodes a chunked transfer-coded body from br. Each Read
// returns data from at most one chunk; bodyReader stitches chunks together.
type chunkedReader struct {
	br    *bufio.Reader
	state chunkState
	left  int64
	err   error
}

func newChunkedReader(br *bufio.Reader) *chunkedReader {
	return &chunkedReader{br: br}
}

func (cr *chunkedReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		switch cr.state {
		case chunkSize:
			line, err := readLine(cr.br)
			if err != nil {
				return 0, cr.fail(truncated(err, -1))
			}
			size, ok := parseChunkSize(line)
			if !ok {
				return 0, cr.fail(&ChunkFramingError{Line: line})
			}
			if size == 0 {
				cr.state = chunkTrailer
				continue
			}
			cr.left, cr.state = size, chunkData

		case chunkData:
			if int64(len(p)) > cr.left {
				p = p[:cr.left]
			}
			n, err := cr.br.Read(p)
			cr.left -= int64(n)
			if cr.left == 0 {
				cr.state = chunkDataEnd
			}
			if err != nil {
				return n, cr.fail(truncated(err, cr.left))
			}
			return n, nil

		case chunkDataEnd:
			line, err := readLine(cr.br)
			if err != nil {
				return 0, cr.fail(truncated(err, -1))
			}
			if line != "" {
				return 0, cr.fail(&ChunkFramingError{Line: line})
			}
			cr.state = chunkSize

		case chunkTrailer:
			line, err := readLine(cr.br)
			if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
				return 0, cr.fail(truncated(err, -1))
			}
			if err != nil || line == "" {
				cr.state = chunkDone
			}

		case chunkDone:
			return 0, io.EOF

		default:
			return 0, cr.err
		}
	}
}

func (cr *chunkedReader) fail(err error) error {
	cr.state = chunkBroken
	cr.err = err
	return err
}

// parseChunkSize parses a hex chunk size, ignoring any chunk extension.
func parseChunkSize(line string) (int64, bool) {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '+' || line[0] == '-' {
		return 0, false
	}
	n, err := strconv.ParseInt(line, 16, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// truncated maps a read failure inside a framed body to the error callers
// see. left is the number of bytes still owed, or -1.
func truncated(err error, left int64) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return &IncompleteReadError{Expected: left}
	}
	if errors.Is(err, errLineTooLong) {
		return err
	}
	return &TransportError{Op: "read body", Err: err}
}

// lengthReader reads a body delimited by Content-Length.
type lengthReader struct {
	br   *bufio.Reader
	left int64
}

func (lr *lengthReader) Read(p []byte) (int, error) {
	if lr.left <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > lr.left {
		p = p[:lr.left]
	}
	n, err := lr.br.Read(p)
	lr.left -= int64(n)
	if err != nil {
		return n, truncated(err, lr.left)
	}
	return n, nil
}

// closeReader reads a body delimited by the server closing the connection.
type closeReader struct {
	br *bufio.Reader
}

func (cr closeReader) Read(p []byte) (int, error) {
	n, err := cr.br.Read(p)
	if err != nil && err != io.EOF {
		err = &TransportError{Op: "read body", Err: err}
	}
	return n, err
}

// bodyReader adds buffered and line oriented reads over a body source. It
// calls onEOF once when the source ends cleanly and onFail once when the
// source fails; after either it never touches the source again.
type bodyReader struct {
	src    io.Reader
	buf    []byte
	err    error
	onEOF  func()
	onFail func(error)
}

func newBodyReader(src io.Reader) *bodyReader {
	return &bodyReader{src: src}
}

// emptyBody returns a reader that is already at EOF.
func emptyBody() *bodyReader {
	return &bodyReader{err: io.EOF}
}

// Read fills p from the buffer and then from the source, stopping only when
// p is full or the body ends. A framing or truncation error is returned with
// the bytes this call produced, which the error also carries as Partial.
func (b *bodyReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n := copy(p, b.buf)
	b.buf = b.buf[n:]
	for n < len(p) && b.err == nil {
		m, err := b.src.Read(p[n:])
		n += m
		if err != nil {
			b.finish(err, p[:n])
		}
	}
	if n > 0 && (b.err == nil || b.err == io.EOF) {
		return n, nil
	}
	if n == 0 && b.err == nil {
		return 0, nil
	}
	return n, b.err
}

// ReadLine returns the next line including its terminator, or the
// unterminated remainder at the end of the body. It returns io.EOF once the
// body is exhausted.
func (b *bodyReader) ReadLine() ([]byte, error) {
	for {
		if i := bytes.IndexByte(b.buf, '\n'); i >= 0 {
			line := bytes.Clone(b.buf[:i+1])
			b.buf = b.buf[i+1:]
			return line, nil
		}
		if b.err != nil {
			break
		}
		b.fill()
	}

	if len(b.buf) > 0 {
		line := bytes.Clone(b.buf)
		b.buf = nil
		if b.err == io.EOF {
			return line, nil
		}
		return line, b.err
	}
	return nil, b.err
}

// ReadLines reads lines until the body ends or, when hint is positive, until
// at least hint bytes have been collected.
func (b *bodyReader) ReadLines(hint int) ([][]byte, error) {
	var lines [][]byte
	total := 0
	for {
		line, err := b.ReadLine()
		if len(line) > 0 {
			lines = append(lines, line)
			total += len(line)
		}
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return lines, err
		}
		if hint > 0 && total >= hint {
			return lines, nil
		}
	}
}

func (b *bodyReader) fill() {
	block := pool.GetBuffer(constants.ReadLineBlockSize)
	defer pool.PutBuffer(block)

	chunk := (*block)[:constants.ReadLineBlockSize]
	n, err := b.src.Read(chunk)
	b.buf = append(b.buf, chunk[:n]...)
	if err != nil {
		b.finish(err, chunk[:n])
	}
}

func (b *bodyReader) finish(err error, produced []byte) {
	if err == io.EOF {
		b.err = io.EOF
		if b.onEOF != nil {
			b.onEOF()
		}
		return
	}

	var framing *ChunkFramingError
	var incomplete *IncompleteReadError
	switch {
	case errors.As(err, &framing):
		framing.Partial = bytes.Clone(produced)
	case errors.As(err, &incomplete):
		incomplete.Partial = bytes.Clone(produced)
	}
	b.err = err
	if b.onFail != nil {
		b.onFail(err)
	}
}

// drain consumes up to limit unread bytes and reports whether the body
// ended cleanly within that budget.
func (b *bodyReader) drain(limit int64) bool {
	b.buf = nil
	if b.err != nil {
		return b.err == io.EOF
	}

	scratch := pool.GetBuffer(pool.SizeLarge)
	defer pool.PutBuffer(scratch)

	var total int64
	for b.err == nil && total <= limit {
		n, _ := b.Read((*scratch)[:pool.SizeLarge])
		total += int64(n)
	}
	return b.err == io.EOF
}
