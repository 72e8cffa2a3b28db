package pool

import (
	"net/http"
	"sync"
)

// HeaderPool manages a pool of http.Header objects for reuse.
type HeaderPool struct {
	pool sync.Pool
}

// NewHeaderPool creates a new header pool
func NewHeaderPool() *HeaderPool {
	return &HeaderPool{
		pool: sync.Pool{
			New: func() interface{} {
				return make(http.Header, 12)
			},
		},
	}
}

// Get retrieves an empty header from the pool.
func (p *HeaderPool) Get() http.Header {
	h := p.pool.Get().(http.Header)
	clear(h)
	return h
}

// Put returns a header to the pool.
func (p *HeaderPool) Put(h http.Header) {
	if h == nil {
		return
	}
	p.pool.Put(h)
}

// Merge clears dst and layers each source over it in order. A key present in a
// later layer replaces every value an earlier layer set for it. Keys are
// canonicalized, so "content-type" and "Content-Type" collide as they should.
func Merge(dst http.Header, layers ...http.Header) {
	clear(dst)
	for _, layer := range layers {
		for k, vv := range layer {
			if len(vv) == 0 {
				continue
			}
			values := make([]string, len(vv))
			copy(values, vv)
			dst[http.CanonicalHeaderKey(k)] = values
		}
	}
}

// globalHeaderPool is a package-level pool for convenience
var globalHeaderPool = NewHeaderPool()

// GetHeader retrieves a header from the global pool
func GetHeader() http.Header {
	return globalHeaderPool.Get()
}

// PutHeader returns a header to the global pool
func PutHeader(h http.Header) {
	globalHeaderPool.Put(h)
}
