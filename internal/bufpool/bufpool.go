// Package bufpool recycles fixed-size read chunks for the connection
// reader, so a long-lived connection does not allocate per read.
package bufpool

import "sync"

const chunkSize = 4096

var pool = sync.Pool{
	New: func() any {
		b := make([]byte, chunkSize)
		return &b
	},
}

// Get returns a chunk of chunkSize bytes.
func Get() []byte {
	return *pool.Get().(*[]byte)
}

// Put returns a chunk obtained from Get. Reslices of the original chunk
// are accepted; the full capacity is restored.
func Put(b []byte) {
	if cap(b) < chunkSize {
		return
	}
	b = b[:chunkSize]
	pool.Put(&b)
}
