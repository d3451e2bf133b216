package memcache

import (
	"time"

	"github.com/pipelined/memcache/meta"
)

// TTL is an item's time to live. The zero value leaves the server
// default in place. See meta.TTL for the rendering rules (send-time
// evaluation, >30-day absolute timestamps).
type TTL = meta.TTL

// Indefinite is a TTL that never expires.
var Indefinite = meta.Indefinite

// ExpiresIn returns a TTL that elapses d from now.
func ExpiresIn(d time.Duration) TTL {
	return meta.ExpiresIn(d)
}

// ExpiresAt returns a TTL that elapses at the given instant.
func ExpiresAt(t time.Time) TTL {
	return meta.ExpiresAt(t)
}
