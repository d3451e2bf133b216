// Package memcache is an asynchronous client for a single memcached
// server speaking the meta protocol (mg, ms, md, ma).
//
// All traffic multiplexes over one pipelined TCP connection. A Conn runs
// the connection engine: requests are serialized onto the socket in
// queue order and responses are paired back to their callers by FIFO
// position, which is sound because memcached answers a TCP stream
// strictly in send order.
//
// Client is the typed facade:
//
//	client, err := memcache.NewClient(memcache.Config{Addr: "localhost:11211"})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Set(ctx, "greeting", []byte("hello"), memcache.ExpiresIn(time.Minute))
//	value, found, err := client.Get(ctx, "greeting")
//
// TypedClient layers a Codec over the byte interface:
//
//	counters := memcache.NewTypedClient(client, memcache.UintCodec[uint64]{})
//	n, err := counters.Increment(ctx, "hits", 1)
//
// There is no connection pool and no reconnection: a transport failure
// or malformed frame terminates the engine, every waiting caller
// receives *ShutdownError, and the client must be replaced. Higher
// layers own retry policy.
package memcache
