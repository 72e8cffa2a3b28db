package qos

import (
	"context"
	"io"
	"net"
)

// Conn throttles reads and writes on a pooled socket through a shared Limiter.
type Conn struct {
	net.Conn
	limiter *Limiter
	ctx     context.Context
}

// WrapConn returns conn throttled by limiter. Waits are abandoned when ctx
// is done. conn is returned unchanged when limiter does not limit.
func WrapConn(ctx context.Context, conn net.Conn, limiter *Limiter) net.Conn {
	if !limiter.Limited() {
		return conn
	}
	return &Conn{Conn: conn, limiter: limiter, ctx: ctx}
}

func (c *Conn) Read(b []byte) (int, error) {
	if burst := c.limiter.Burst(); len(b) > burst {
		b = b[:burst]
	}

	n, err := c.Conn.Read(b)
	if n > 0 {
		if waitErr := c.limiter.WaitN(c.ctx, n); waitErr != nil && err == nil {
			err = waitErr
		}
	}
	return n, err
}

func (c *Conn) Write(b []byte) (int, error) {
	burst := c.limiter.Burst()
	total := 0
	for len(b) > 0 {
		chunk := min(len(b), burst)
		if err := c.limiter.WaitN(c.ctx, chunk); err != nil {
			return total, err
		}
		n, err := c.Conn.Write(b[:chunk])
		total += n
		if err != nil {
			return total, err
		}
		if n < chunk {
			return total, io.ErrShortWrite
		}
		b = b[chunk:]
	}
	return total, nil
}
