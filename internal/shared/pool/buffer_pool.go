package pool

import "sync"

const (
	SizeSmall  = 4 * 1024   // 4KB   - request heads, status lines
	SizeMedium = 8 * 1024   // 8KB   - stream body blocks
	SizeLarge  = 32 * 1024  // 32KB  - body drains
	SizeXLarge = 256 * 1024 // 256KB - bulk reads in the CLI
)

var sizeClasses = [...]int{SizeSmall, SizeMedium, SizeLarge, SizeXLarge}

// BufferPool hands out byte slices from fixed size classes.
type BufferPool struct {
	classes [len(sizeClasses)]sync.Pool
}

func NewBufferPool() *BufferPool {
	p := &BufferPool{}
	for i, size := range sizeClasses {
		size := size
		p.classes[i].New = func() interface{} {
			b := make([]byte, size)
			return &b
		}
	}
	return p
}

// Get returns a buffer of at least size bytes. Requests above SizeXLarge
// get a fresh allocation that Put will not retain.
func (p *BufferPool) Get(size int) *[]byte {
	for i, class := range sizeClasses {
		if size <= class {
			return p.classes[i].Get().(*[]byte)
		}
	}
	b := make([]byte, size)
	return &b
}

func (p *BufferPool) Put(buf *[]byte) {
	if buf == nil {
		return
	}

	size := cap(*buf)
	*buf = (*buf)[:size]
	for i, class := range sizeClasses {
		if size == class {
			p.classes[i].Put(buf)
			return
		}
	}
	// Note: buffers with non-standard sizes are not pooled (let GC handle them)
}

var globalBufferPool = NewBufferPool()

func GetBuffer(size int) *[]byte {
	return globalBufferPool.Get(size)
}

func PutBuffer(buf *[]byte) {
	globalBufferPool.Put(buf)
}
