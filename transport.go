package memcache

import (
	"bufio"
	"io"
	"net"
)

// Transport is the duplex byte stream a Conn runs over. The engine
// assumes no framing help: writes carry raw request bytes, reads return
// arbitrary chunks of the response stream.
//
// Write and Flush are only called from the connection's run loop; Read
// only from its reader goroutine. Close may be called once, from the run
// loop, and must unblock a pending Read.
type Transport interface {
	io.ReadWriteCloser

	// Flush pushes buffered writes to the peer. A Transport with
	// unbuffered writes can make this a no-op.
	Flush() error
}

// netTransport adapts a net.Conn with buffered writes.
type netTransport struct {
	conn net.Conn
	bw   *bufio.Writer
}

// NewNetTransport wraps a net.Conn as a Transport with buffered writes.
func NewNetTransport(conn net.Conn) Transport {
	return &netTransport{
		conn: conn,
		bw:   bufio.NewWriter(conn),
	}
}

func (t *netTransport) Read(p []byte) (int, error) {
	return t.conn.Read(p)
}

func (t *netTransport) Write(p []byte) (int, error) {
	return t.bw.Write(p)
}

func (t *netTransport) Flush() error {
	return t.bw.Flush()
}

func (t *netTransport) Close() error {
	return t.conn.Close()
}
