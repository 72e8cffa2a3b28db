package pool

import (
	"bufio"
	"io"
	"sync"
)

// BufioWriterPool provides bufio.Writers for writing one request.
// Writers never outlive a single send, so a connection does not pin one while idle.
var BufioWriterPool = sync.Pool{
	New: func() interface{} {
		return bufio.NewWriterSize(nil, SizeMedium)
	},
}

// GetWriter gets a bufio.Writer from the pool and resets it to write to w.
func GetWriter(w io.Writer) *bufio.Writer {
	writer := BufioWriterPool.Get().(*bufio.Writer)
	writer.Reset(w)
	return writer
}

// PutWriter drops any pending bytes and sticky error, then returns the writer to the pool.
func PutWriter(writer *bufio.Writer) {
	writer.Reset(nil)
	BufioWriterPool.Put(writer)
}
