package netutil

import "net"

// ByteCounter receives the byte totals observed on a CountingConn.
type ByteCounter interface {
	AddBytesIn(n int64)
	AddBytesOut(n int64)
}

// CountingConn reports every successful read and write to a ByteCounter.
type CountingConn struct {
	net.Conn
	counter ByteCounter
}

func NewCountingConn(conn net.Conn, counter ByteCounter) net.Conn {
	if counter == nil {
		return conn
	}
	return &CountingConn{Conn: conn, counter: counter}
}

func (c *CountingConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.counter.AddBytesIn(int64(n))
	}
	return n, err
}

func (c *CountingConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	if n > 0 {
		c.counter.AddBytesOut(int64(n))
	}
	return n, err
}

// CloseWrite half-closes the connection when the wrapped conn supports it.
func (c *CountingConn) CloseWrite() error {
	if cw, ok := c.Conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}
